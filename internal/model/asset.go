package model

import "strings"

// MediaAsset is the metadata view of an uploaded asset as seen by the job
// core. Upload, validation and project bookkeeping live outside this service.
type MediaAsset struct {
	AssetID      string      `json:"assetId"`
	OwnerID      string      `json:"ownerId"`
	ProjectID    string      `json:"projectId"`
	OriginalName string      `json:"originalName"`
	MimeType     string      `json:"mimeType"`
	StoragePath  string      `json:"storagePath"`
	URL          string      `json:"url,omitempty"`
	FileSize     int64       `json:"fileSize"`
	Duration     float64     `json:"duration"`
	Dimensions   *Dimensions `json:"dimensions,omitempty"`
	FPS          float64     `json:"fps,omitempty"`
	HasAudio     bool        `json:"hasAudio"`
}

// IsVideo reports whether the asset carries a video stream.
func (a *MediaAsset) IsVideo() bool {
	return strings.HasPrefix(a.MimeType, "video/")
}

// IsAudio reports whether the asset is audio-only.
func (a *MediaAsset) IsAudio() bool {
	return strings.HasPrefix(a.MimeType, "audio/")
}

// CreateAssetRequest describes a new asset produced by a pipeline run.
type CreateAssetRequest struct {
	OriginalName string      `json:"originalName"`
	MimeType     string      `json:"mimeType"`
	FileSize     int64       `json:"fileSize"`
	Duration     float64     `json:"duration"`
	Dimensions   *Dimensions `json:"dimensions,omitempty"`
	HasAudio     bool        `json:"hasAudio"`
}
