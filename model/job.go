package model

import "time"

// JobKind 任务类型，对应前端的四个页面
type JobKind string

const (
	JobKindImage   JobKind = "image"
	JobKindVideo   JobKind = "video"
	JobKindYoutube JobKind = "youtube"
	JobKindAudio   JobKind = "audio"
)

// JobStatus 任务状态
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further updates will happen.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job is the persisted record of one user interaction.
type Job struct {
	ID           string    `json:"id" gorm:"primaryKey;size:36"`
	Kind         JobKind   `json:"kind" gorm:"size:16;index;not null"`
	Status       JobStatus `json:"status" gorm:"size:16;index;not null"`
	SourceName   string    `json:"sourceName" gorm:"size:512"`
	RenderFactor int       `json:"renderFactor"`
	FrameCount   int       `json:"frameCount"`
	Duration     float64   `json:"duration"` // seconds
	ResultKey    string    `json:"resultKey" gorm:"size:512"`
	ErrorMessage string    `json:"errorMessage,omitempty" gorm:"type:text"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (Job) TableName() string {
	return "jobs"
}

// Progress 任务进度，只存 Redis，不落库
type Progress struct {
	JobID     string    `json:"jobId"`
	Stage     string    `json:"stage"`
	Current   int       `json:"current"`
	Total     int       `json:"total"`
	Status    JobStatus `json:"status"`
	Message   string    `json:"message,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}
