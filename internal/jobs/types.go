package jobs

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

type EnqueueRequest struct {
	Source    string
	DedupeKey string
	Payload   JobPayload
}

// JobPayload identifies the chapter to translate. Thinking selects the
// enhanced reasoning model for the run.
type JobPayload struct {
	NovelID   string `json:"novel_id"`
	ChapterID string `json:"chapter_id"`
	Thinking  bool   `json:"thinking"`
}

// Mode names the translation mode encoded by the payload.
func (p JobPayload) Mode() string {
	if p.Thinking {
		return "thinking"
	}
	return "standard"
}

// DedupeKey builds the canonical dedupe key for a payload so manual and
// scheduled triggers of the same chapter/mode coalesce.
func (p JobPayload) DedupeKey() string {
	return fmt.Sprintf("%s|%s|%s", p.NovelID, p.ChapterID, p.Mode())
}

type TranslationJob struct {
	ID        string     `json:"id"`
	Source    string     `json:"source"`
	DedupeKey string     `json:"dedupe_key"`
	Payload   JobPayload `json:"payload"`
	Status    Status     `json:"status"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
