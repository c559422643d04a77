package pipeline

import "sync"

// Progress steps
const (
	StepStart         = "start"
	StepReferenceData = "reference_data"
	StepScan          = "scan"
	StepFont          = "font"
	StepPlan          = "plan"
	StepBucket        = "bucket"
	StepEmit          = "emit"
	StepComplete      = "complete"
)

// ProgressEvent represents a progress update during pipeline execution
type ProgressEvent struct {
	// Seq numbers the events of one run from 1 in delivery order.
	Seq     int    `json:"seq"`
	Step    string `json:"step"`
	RunID   string `json:"run_id,omitempty"`
	FontID  string `json:"font_id,omitempty"`
	Bucket  string `json:"bucket,omitempty"`
	Message string `json:"message"`
	Content any    `json:"content,omitempty"`
}

// ProgressCallback is called when pipeline progress occurs. Calls are
// serialized even though events come from several workers.
type ProgressCallback func(event ProgressEvent)

type progress struct {
	mu    sync.Mutex
	runID string
	seq   int
	fn    ProgressCallback
}

func (p *progress) emit(event ProgressEvent) {
	if p == nil || p.fn == nil {
		return
	}
	event.RunID = p.runID
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	event.Seq = p.seq
	p.fn(event)
}
