package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/jonathan/webfont-splitter/internal/pipeline"
)

// SSE event names of POST /runs/stream
const (
	EventProgress = "progress"
	EventResult   = "result"
	EventError    = "error"
	EventComplete = "complete"
)

// runStream writes the events of one run as Server-Sent Events. Progress
// events use their sequence number as the event ID, so a client that lost
// the connection knows the last step it saw.
type runStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
	runID   string
	lastSeq int
}

// RunError is the payload of an error event
type RunError struct {
	RunID string `json:"run_id,omitempty"`
	Error string `json:"error"`
}

// RunComplete is the payload of the final event of a stream
type RunComplete struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
	Events int    `json:"events"`
}

func newRunStream(w http.ResponseWriter) (*runStream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("streaming not supported")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	return &runStream{w: w, flusher: flusher}, nil
}

func (s *runStream) progress(event pipeline.ProgressEvent) error {
	s.runID = event.RunID
	s.lastSeq = event.Seq
	return s.send(strconv.Itoa(event.Seq), EventProgress, event)
}

func (s *runStream) result(resp RunResponse) error {
	return s.send("", EventResult, resp)
}

func (s *runStream) failed(err error) error {
	return s.send("", EventError, RunError{RunID: s.runID, Error: err.Error()})
}

func (s *runStream) complete(resp RunResponse) error {
	return s.send("", EventComplete, RunComplete{
		RunID:  resp.RunID,
		Status: resp.Status,
		Events: s.lastSeq,
	})
}

// send writes one event; an empty id leaves the client's last event ID as is
func (s *runStream) send(id, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if id != "" {
		if _, err := fmt.Fprintf(s.w, "id: %s\n", id); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
