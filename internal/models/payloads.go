package models

import "github.com/google/uuid"

// These structs define the JSON payloads exchanged with the presentation layer
// over HTTP and returned by the Cloud Functions entry points.

// RunState is the lifecycle state of a batch run.
type RunState string

const (
	RunStateIdle      RunState = "IDLE"
	RunStateRunning   RunState = "RUNNING"
	RunStateCompleted RunState = "COMPLETED"
	RunStateCanceled  RunState = "CANCELED"
)

// IsTerminal reports whether the run will not change state again.
func (s RunState) IsTerminal() bool {
	return s == RunStateCompleted || s == RunStateCanceled
}

// Receipt is returned by a submission. Processing continues after it is returned.
type Receipt struct {
	RunID         uuid.UUID         `json:"runId"`
	AdmittedCount int               `json:"admittedCount"`
	Rejections    []RejectionRecord `json:"rejections"`
}

// Snapshot is a point-in-time view of a run's progress, sorted by document
// submission order and then page index.
type Snapshot struct {
	RunID    uuid.UUID         `json:"runId"`
	Version  uint64            `json:"version"`
	Pages    []PageState       `json:"pages"`
	Failures []DocumentFailure `json:"failures"`
}

// Summary counts pages per status for a run.
type Summary struct {
	Rendering        int `json:"rendering"`
	Recognizing      int `json:"recognizing"`
	Done             int `json:"done"`
	Failed           int `json:"failed"`
	DocumentFailures int `json:"documentFailures"`
}

// RunStatusResponse is the body returned when polling a run.
type RunStatusResponse struct {
	State    RunState `json:"state"`
	Summary  Summary  `json:"summary"`
	Snapshot Snapshot `json:"snapshot"`
}

// ExtractTextResponse is the body returned by the synchronous extract-text function.
type ExtractTextResponse struct {
	Receipt  Receipt  `json:"receipt"`
	State    RunState `json:"state"`
	Snapshot Snapshot `json:"snapshot"`
}

// GCSEvent is the data payload of a Cloud Storage object-finalized CloudEvent.
type GCSEvent struct {
	Bucket      string `json:"bucket"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Size        string `json:"size"`
}
