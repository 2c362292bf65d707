package model

// WebSocket message types
const (
	WSMessageTypeStatus   = "status"
	WSMessageTypeComplete = "complete"
	WSMessageTypeError    = "error"
	WSMessageTypePing     = "ping"
	WSMessageTypePong     = "pong"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// WSStatusMessage pushes a job status/progress update to subscribers.
// Progress is an opaque display string, latest value wins.
type WSStatusMessage struct {
	Type     string    `json:"type"`
	JobID    string    `json:"jobId"`
	Status   JobStatus `json:"status"`
	Progress string    `json:"progress,omitempty"`
}

// WSCompleteMessage carries the stem URLs once a job is done
type WSCompleteMessage struct {
	Type   string       `json:"type"`
	JobID  string       `json:"jobId"`
	Result *SplitResult `json:"result"`
}

// WSErrorMessage pushes a terminal job failure
type WSErrorMessage struct {
	Type  string `json:"type"`
	JobID string `json:"jobId"`
	Error string `json:"error"`
}
