package pipeline

import (
	"log"
	"sync"

	"github.com/google/uuid"
)

// Progress event types.
const (
	EventRunStarted            = "run_started"
	EventStageStarted          = "stage_started"
	EventStageCompleted        = "stage_completed"
	EventStageFailed           = "stage_failed"
	EventAwaitingClarification = "awaiting_clarification"
	EventRunResumed            = "run_resumed"
	EventRunCompleted          = "run_completed"
	EventRunFailed             = "run_failed"
)

// ProgressEvent represents a progress update during run execution.
type ProgressEvent struct {
	Type            string    `json:"type"`
	ClaimID         uuid.UUID `json:"claim_id"`
	RunID           uuid.UUID `json:"run_id"`
	Stage           string    `json:"stage,omitempty"`
	StageIndex      int       `json:"stage_index"`
	State           string    `json:"state"`
	PercentComplete float64   `json:"percent_complete"`
	Message         string    `json:"message"`
	Content         any       `json:"content,omitempty"`
}

// Terminal reports whether no further events follow for the run.
func (e ProgressEvent) Terminal() bool {
	return e.Type == EventRunCompleted || e.Type == EventRunFailed
}

// Notifier receives progress events. Implementations must not block.
type Notifier interface {
	Notify(event ProgressEvent)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(event ProgressEvent)

// Notify implements Notifier.
func (f NotifierFunc) Notify(event ProgressEvent) { f(event) }

const subscriberBuffer = 32

type subscriber struct {
	ch     chan ProgressEvent
	closed bool
}

// Broadcaster fans events out to subscribers of a claim. A subscriber whose
// buffer is full is dropped and its channel closed, so it can tell it missed
// events and resynchronize instead of waiting for one that never comes.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[uuid.UUID]map[*subscriber]struct{}
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[uuid.UUID]map[*subscriber]struct{})}
}

// Subscribe returns a channel of events for claimID and a function that
// ends the subscription. The channel is closed by cancel, or earlier when
// the subscriber falls behind.
func (b *Broadcaster) Subscribe(claimID uuid.UUID) (<-chan ProgressEvent, func()) {
	sub := &subscriber{ch: make(chan ProgressEvent, subscriberBuffer)}

	b.mu.Lock()
	if b.subs[claimID] == nil {
		b.subs[claimID] = make(map[*subscriber]struct{})
	}
	b.subs[claimID][sub] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		b.drop(claimID, sub)
		b.mu.Unlock()
	}
	return sub.ch, cancel
}

// drop removes sub and closes its channel. b.mu must be held.
func (b *Broadcaster) drop(claimID uuid.UUID, sub *subscriber) {
	if sub.closed {
		return
	}
	sub.closed = true
	close(sub.ch)
	delete(b.subs[claimID], sub)
	if len(b.subs[claimID]) == 0 {
		delete(b.subs, claimID)
	}
}

// Notify implements Notifier. It never blocks.
func (b *Broadcaster) Notify(event ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs[event.ClaimID] {
		select {
		case sub.ch <- event:
		default:
			log.Printf("[pipeline] subscriber of claim %s fell behind at %s, dropping it", event.ClaimID, event.Type)
			b.drop(event.ClaimID, sub)
		}
	}
}

// Subscribers returns the number of open subscriptions for claimID.
func (b *Broadcaster) Subscribers(claimID uuid.UUID) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[claimID])
}
