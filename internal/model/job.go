package model

import "time"

// Job types
type JobType string

const (
	JobTypeNoiseRemoval       JobType = "noise-removal"
	JobTypeSubtitleGeneration JobType = "subtitle-generation"
)

var ValidJobTypes = []JobType{JobTypeNoiseRemoval, JobTypeSubtitleGeneration}

// Job status
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transition is allowed for this status.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job represents one durable record of a requested media transformation.
type Job struct {
	JobID        string      `json:"jobId"`
	Type         JobType     `json:"type"`
	Status       JobStatus   `json:"status"`
	OwnerID      string      `json:"ownerId"`
	ProjectID    string      `json:"projectId"`
	AssetID      string      `json:"assetId"`
	InputData    InputData   `json:"inputData"`
	OutputData   *OutputData `json:"outputData,omitempty"`
	Progress     int         `json:"progress"`
	RetryCount   int         `json:"retryCount"`
	ErrorMessage string      `json:"errorMessage,omitempty"`
	CreatedAt    time.Time   `json:"createdAt"`
	StartedAt    *time.Time  `json:"startedAt,omitempty"`
	CompletedAt  *time.Time  `json:"completedAt,omitempty"`
}

// InputData is the immutable snapshot of source asset properties captured at
// submission time. The pipeline never re-reads mutable asset state mid-run.
type InputData struct {
	SourcePath   string      `json:"sourceAssetPath"`
	OriginalName string      `json:"originalAssetName"`
	MimeType     string      `json:"mimeType"`
	FileSize     int64       `json:"fileSize"`
	Duration     float64     `json:"duration"`
	Dimensions   *Dimensions `json:"dimensions,omitempty"`
	FPS          float64     `json:"fps,omitempty"`
	HasAudio     bool        `json:"hasAudio"`
}

// Dimensions holds video frame dimensions in pixels.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// OutputData is populated only on successful completion. Its shape depends on
// the job type: noise removal yields a new asset reference, subtitle
// generation yields timed text segments.
type OutputData struct {
	ResultAssetID   string            `json:"resultAssetId,omitempty"`
	ResultAssetPath string            `json:"resultAssetPath,omitempty"`
	Subtitles       []SubtitleSegment `json:"subtitles,omitempty"`
}

// SubtitleSegment is one timed text span. Segments returned for a job are
// ordered by StartTime, non-overlapping, with EndTime > StartTime.
type SubtitleSegment struct {
	StartTime float64 `json:"startTime"`
	EndTime   float64 `json:"endTime"`
	Text      string  `json:"text"`
}

// TaskPayload is the queue wire payload. Mutable fields (status, progress)
// are intentionally excluded; the job store is authoritative for those.
type TaskPayload struct {
	JobID     string    `json:"jobId"`
	OwnerID   string    `json:"ownerId"`
	ProjectID string    `json:"projectId"`
	AssetID   string    `json:"assetId"`
	InputData InputData `json:"inputData"`
}

// JobSummary is the boundary view returned to the HTTP layer.
type JobSummary struct {
	JobID             string      `json:"jobId"`
	Type              JobType     `json:"type"`
	Status            JobStatus   `json:"status"`
	Progress          int         `json:"progress"`
	ProjectID         string      `json:"projectId,omitempty"`
	AssetID           string      `json:"assetId,omitempty"`
	EstimatedDuration int         `json:"estimatedDuration,omitempty"`
	OutputData        *OutputData `json:"outputData,omitempty"`
	ErrorMessage      string      `json:"errorMessage,omitempty"`
	CreatedAt         time.Time   `json:"createdAt"`
	StartedAt         *time.Time  `json:"startedAt,omitempty"`
	CompletedAt       *time.Time  `json:"completedAt,omitempty"`
}

// StartJobRequest is the submission request body.
type StartJobRequest struct {
	ProjectID string `json:"projectId" validate:"required"`
	AssetID   string `json:"assetId" validate:"required"`
}

// JobListFilters narrows ListJobs results. Zero values mean no filter.
type JobListFilters struct {
	ProjectID string
	Status    JobStatus
	Type      JobType
}
