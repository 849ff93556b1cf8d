package routes

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
)

// eventStream writes text/event-stream frames. Only the handler goroutine
// writes to it.
type eventStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
	once    sync.Once
}

func newEventStream(w http.ResponseWriter) (*eventStream, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	return &eventStream{w: w, flusher: flusher}, true
}

func (s *eventStream) open() {
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
	s.flusher.Flush()
}

func (s *eventStream) write(frame string) error {
	if _, err := fmt.Fprint(s.w, frame); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *eventStream) data(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.write("data: " + string(b) + "\n\n")
}

func (s *eventStream) comment(text string) error {
	return s.write(": " + text + "\n\n")
}

// finish writes the [DONE] sentinel; later calls are no-ops.
func (s *eventStream) finish() error {
	var err error
	s.once.Do(func() {
		err = s.write("data: [DONE]\n\n")
	})
	return err
}

// abort marks the stream closed without a sentinel.
func (s *eventStream) abort() {
	s.once.Do(func() {})
}
