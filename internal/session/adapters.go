package session

import (
	"context"

	"github.com/hseol/chapter-translator/internal/chapter"
	"github.com/hseol/chapter-translator/internal/jobs"
)

// QueueSubmitter submits runs to the background job queue.
type QueueSubmitter struct {
	Queue  *jobs.Queue
	Source string
}

func (q QueueSubmitter) Submit(_ context.Context, payload jobs.JobPayload) (string, bool, error) {
	source := q.Source
	if source == "" {
		source = "manual"
	}
	job, created := q.Queue.Enqueue(jobs.EnqueueRequest{
		Source:    source,
		DedupeKey: payload.DedupeKey(),
		Payload:   payload,
	})
	return job.ID, created, nil
}

// ChapterStoreAdapter backs status checks and edit saves with the
// chapter store.
type ChapterStoreAdapter struct {
	Store chapter.Store
}

func (a ChapterStoreAdapter) TranslationStatus(ctx context.Context, chapterID string) (chapter.Status, error) {
	ch, err := a.Store.GetChapter(ctx, chapterID)
	if err != nil {
		return chapter.StatusNone, err
	}
	return ch.Status, nil
}

func (a ChapterStoreAdapter) SaveEdit(ctx context.Context, chapterID, content string) error {
	return a.Store.SaveTranslation(ctx, chapterID, content, "", "")
}
