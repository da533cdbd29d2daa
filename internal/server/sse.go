package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// keepaliveInterval is how often an idle event stream sends a comment line.
const keepaliveInterval = 15 * time.Second

// eventStream writes Server-Sent Events, flushing after each one.
type eventStream struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

// openEventStream sends the stream headers. It fails when the writer chain
// cannot flush.
func openEventStream(w http.ResponseWriter) (*eventStream, error) {
	rc := http.NewResponseController(w)
	// Streams outlive the server's write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		return nil, fmt.Errorf("streaming not supported: %w", err)
	}
	return &eventStream{w: w, rc: rc}, nil
}

func (s *eventStream) send(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	return s.rc.Flush()
}

// comment sends a line clients ignore, keeping proxies from closing the stream.
func (s *eventStream) comment(text string) error {
	if _, err := fmt.Fprintf(s.w, ": %s\n\n", text); err != nil {
		return err
	}
	return s.rc.Flush()
}

func (s *eventStream) fail(message string) {
	_ = s.send("error", map[string]string{"error": message})
}

// complete tells the client the run is terminal and no more events follow.
func (s *eventStream) complete(runID, state string) {
	_ = s.send("complete", map[string]string{"run_id": runID, "state": state})
}
