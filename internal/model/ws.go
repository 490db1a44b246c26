package model

// WebSocket message types
const (
	WSMessageTypeProgress = "progress"
	WSMessageTypeComplete = "complete"
	WSMessageTypeError    = "error"
	WSMessageTypePing     = "ping"
	WSMessageTypePong     = "pong"
)

// WSMessage is the generic envelope read from clients.
type WSMessage struct {
	Type string `json:"type"`
}

// WSProgressMessage streams job progress to subscribers.
type WSProgressMessage struct {
	Type     string    `json:"type"`
	JobID    string    `json:"jobId"`
	Progress int       `json:"progress"`
	Status   JobStatus `json:"status"`
}

// WSCompleteMessage announces job completion with its output.
type WSCompleteMessage struct {
	Type   string      `json:"type"`
	JobID  string      `json:"jobId"`
	Output *OutputData `json:"output,omitempty"`
}

// WSErrorMessage announces terminal job failure.
type WSErrorMessage struct {
	Type  string  `json:"type"`
	JobID string  `json:"jobId"`
	Error WSError `json:"error"`
}

// WSError carries a machine code and human message.
type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
