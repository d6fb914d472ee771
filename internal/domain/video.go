package domain

import "time"

// Video represents a single catalog item learners can watch
type Video struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	Category        string    `json:"category,omitempty"`
	DurationSeconds int       `json:"duration_seconds,omitempty"`
	PlaybackURL     string    `json:"playback_url"`
	ThumbnailURL    string    `json:"thumbnail_url,omitempty"`
	Published       bool      `json:"published"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// UpsertVideoRequest is the admin payload for creating or updating a video
type UpsertVideoRequest struct {
	Title           string `json:"title"`
	Description     string `json:"description,omitempty"`
	Category        string `json:"category,omitempty"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
	PlaybackURL     string `json:"playback_url"`
	ThumbnailURL    string `json:"thumbnail_url,omitempty"`
	Published       *bool  `json:"published,omitempty"`
}
