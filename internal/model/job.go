package model

import (
	"strings"
	"time"
)

// JobStatus is the local split-job status vocabulary
type JobStatus string

const (
	JobStatusQueued  JobStatus = "queued"
	JobStatusRunning JobStatus = "running"
	JobStatusDone    JobStatus = "done"
	JobStatusError   JobStatus = "error"
)

// IsTerminal reports whether no further transition is permitted.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusDone || s == JobStatusError
}

// workerStatus normalizes the split worker's status vocabulary, which has
// drifted across worker deployments. All branching on worker status strings
// goes through this table.
var workerStatus = map[string]JobStatus{
	"queued":     JobStatusQueued,
	"pending":    JobStatusQueued,
	"running":    JobStatusRunning,
	"processing": JobStatusRunning,
	"done":       JobStatusDone,
	"completed":  JobStatusDone,
	"success":    JobStatusDone,
	"error":      JobStatusError,
	"failed":     JobStatusError,
}

// StatusFromWorker maps a worker status token to the local vocabulary.
// Unrecognized tokens map to error, never to a live status.
func StatusFromWorker(token string) JobStatus {
	if s, ok := workerStatus[strings.ToLower(strings.TrimSpace(token))]; ok {
		return s
	}
	return JobStatusError
}

// SplitResult holds the download URLs for both stems.
type SplitResult struct {
	VocalsURL       string `json:"vocalsUrl"`
	InstrumentalURL string `json:"instrumentalUrl"`
}

// SplitJob is the local record of a stem-split request. Once the status
// reaches done or error the record is immutable.
type SplitJob struct {
	ID        string       `json:"id"`
	Status    JobStatus    `json:"status"`
	TrackName string       `json:"trackName"`
	InputPath string       `json:"inputPath,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
	Progress  string       `json:"progress,omitempty"`
	Error     string       `json:"error,omitempty"`
	Result    *SplitResult `json:"result,omitempty"`
}

// SubmitSplitResponse is returned by POST /splitter/split
type SubmitSplitResponse struct {
	JobID     string `json:"jobId"`
	StatusURL string `json:"statusUrl"`
}
