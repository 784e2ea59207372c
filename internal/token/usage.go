package token

import "time"

// UsageKind distinguishes what a token spend paid for.
type UsageKind string

const (
	UsageContent UsageKind = "content"
	UsageTitle   UsageKind = "title"
)

// Usage is one recorded token spend against a chapter.
type Usage struct {
	ID           int64     `json:"id"`
	ChapterID    string    `json:"chapter_id"`
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	TotalTokens  int       `json:"total_tokens"`
	Kind         UsageKind `json:"kind"`
	CreatedAt    time.Time `json:"created_at"`
}
