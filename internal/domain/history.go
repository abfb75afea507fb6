package domain

import "time"

// SeedMax bounds generation seeds to the signed 32-bit range used by the
// image backends.
const SeedMax = int64(1)<<31 - 1

// HistoryItem describes one generated image and the parameters that produced
// it. Records are immutable after creation except for IsFavorite.
type HistoryItem struct {
	ID             string  `json:"id"`
	Prompt         string  `json:"prompt"`
	ImageURL       string  `json:"image_url"`
	Seed           int64   `json:"seed"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	Timestamp      int64   `json:"timestamp"`
	GenerationTime float64 `json:"generation_time,omitempty"`
	IsFavorite     bool    `json:"is_favorite"`
	IsUpscaled     bool    `json:"is_upscaled,omitempty"`
}

// CreatedAt converts the millisecond timestamp into a time.Time.
func (h HistoryItem) CreatedAt() time.Time {
	return time.UnixMilli(h.Timestamp)
}

// SavedPrompt is a user-authored template with a lifecycle independent from
// generation history.
type SavedPrompt struct {
	ID        string `json:"id"`
	Prompt    string `json:"prompt"`
	Seed      int64  `json:"seed"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	CreatedAt int64  `json:"created_at"`
}
