package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/claim-detective/internal/store"
	"github.com/jonathan/claim-detective/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingAuditStore struct{ store.AuditStore }

func (failingAuditStore) AppendAudit(context.Context, *types.AuditEvent) error {
	return errors.New("disk full")
}

func TestLog_TimestampsStrictlyIncrease(t *testing.T) {
	frozen := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	l := NewLog(store.NewMemory()).WithClock(func() time.Time { return frozen })
	claimID := uuid.New()
	ctx := context.Background()

	var prev time.Time
	for i := 0; i < 5; i++ {
		ev := &types.AuditEvent{ClaimID: claimID, Type: types.EventStageStarted}
		require.NoError(t, l.Append(ctx, ev))
		assert.True(t, ev.Timestamp.After(prev))
		assert.NotEqual(t, uuid.Nil, ev.ID)
		prev = ev.Timestamp
	}
}

func TestLog_ConcurrentAppendsKeepUniqueIDs(t *testing.T) {
	mem := store.NewMemory()
	l := NewLog(mem)
	ctx := context.Background()
	claims := []uuid.UUID{uuid.New(), uuid.New()}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, l.Record(ctx, claims[i%2], nil, "", types.EventStageCompleted, map[string]any{"i": i}))
		}(i)
	}
	wg.Wait()

	seen := make(map[uuid.UUID]bool)
	for _, c := range claims {
		events, err := l.Query(ctx, c, types.AuditFilter{})
		require.NoError(t, err)
		assert.Len(t, events, 25)
		for _, ev := range events {
			assert.False(t, seen[ev.ID])
			seen[ev.ID] = true
		}
	}
}

func TestLog_AppendRejectsMissingClaim(t *testing.T) {
	l := NewLog(store.NewMemory())
	err := l.Append(context.Background(), &types.AuditEvent{Type: types.EventRunStarted})
	assert.Equal(t, types.CodeValidation, types.ErrorCode(err))
}

func TestLog_AppendWrapsStoreFailure(t *testing.T) {
	l := NewLog(failingAuditStore{})
	err := l.Record(context.Background(), uuid.New(), nil, "", types.EventRunStarted, nil)
	assert.Equal(t, types.CodeInfrastructure, types.ErrorCode(err))
}

func TestLog_QuerySinceAndActor(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	clock := base
	l := NewLog(store.NewMemory()).WithClock(func() time.Time { return clock })
	ctx := context.Background()
	claimID := uuid.New()

	require.NoError(t, l.Record(ctx, claimID, nil, "", types.EventClaimSubmitted, nil))
	clock = base.Add(time.Minute)
	require.NoError(t, l.Record(ctx, claimID, nil, "reviewer-7", types.EventClarificationResponded, nil))

	since := base.Add(30 * time.Second)
	events, err := l.Query(ctx, claimID, types.AuditFilter{Since: &since})
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.NotNil(t, events[0].ActorID)
	assert.Equal(t, "reviewer-7", *events[0].ActorID)
}

func TestLog_ExportRange(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	clock := base
	l := NewLog(store.NewMemory()).WithClock(func() time.Time { return clock })
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		clock = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, l.Record(ctx, uuid.New(), nil, "", types.EventClaimSubmitted, nil))
	}

	events, err := l.ExportRange(ctx, base.Add(time.Hour), base.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Len(t, events, 2)

	_, err = l.ExportRange(ctx, base, base)
	assert.Equal(t, types.CodeValidation, types.ErrorCode(err))
}
