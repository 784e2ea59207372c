package library

import (
	"context"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/hseol/chapter-translator/internal/chapter"
	"github.com/hseol/chapter-translator/pkg/file"
	"github.com/hseol/chapter-translator/pkg/log"
)

// ChapterStore is the slice of the persistence layer the importer needs.
type ChapterStore interface {
	ListChapters(ctx context.Context, novelID string) ([]*chapter.Chapter, error)
	UpsertChapter(ctx context.Context, ch *chapter.Chapter) error
}

// Importer brings chapter files from the scanner into the store. It only
// ever adds chapters; a position already present in the store is left
// alone so saved translations and edits survive rescans.
type Importer struct {
	scanner *Scanner
	store   ChapterStore

	mu       sync.Mutex
	lastSync time.Time
}

func NewImporter(scanner *Scanner, store ChapterStore) *Importer {
	return &Importer{scanner: scanner, store: store}
}

// Sync imports chapter files that are not in the store yet and returns
// how many were added. The first run reads every file; later runs only
// consider files modified since the previous one.
func (im *Importer) Sync(ctx context.Context) (int, error) {
	im.mu.Lock()
	defer im.mu.Unlock()

	started := time.Now()

	_, files, err := im.scanner.Scan(ctx)
	if err != nil {
		return 0, err
	}

	var recent map[string]bool
	if !im.lastSync.IsZero() {
		// A second of slack covers filesystems with coarse timestamps;
		// re-reading an already-imported file is a no-op anyway.
		paths, err := file.FindRecentAfter(im.scanner.Root(), im.lastSync.Add(-time.Second))
		if err == nil {
			recent = make(map[string]bool, len(paths))
			for _, p := range paths {
				recent[p] = true
			}
		} else {
			// Fall back to a full pass.
			log.Warn("Incremental scan failed, reading everything: %v", err)
		}
	}

	known := make(map[string]map[int]bool)
	imported := 0

	for _, f := range files {
		if recent != nil && !recent[f.Path] {
			continue
		}

		positions, ok := known[f.NovelID]
		if !ok {
			existing, err := im.store.ListChapters(ctx, f.NovelID)
			if err != nil {
				return imported, err
			}
			positions = make(map[int]bool, len(existing))
			for _, ch := range existing {
				positions[ch.Position] = true
			}
			known[f.NovelID] = positions
		}
		if positions[f.Position] {
			continue
		}

		data, err := os.ReadFile(f.Path)
		if err != nil {
			return imported, err
		}
		if strings.TrimSpace(string(data)) == "" {
			log.Warn("Skipping empty chapter file %s", f.Path)
			continue
		}

		ch := chapter.New(f.NovelID, f.Title, string(data), f.Position)
		if err := im.store.UpsertChapter(ctx, &ch); err != nil {
			return imported, err
		}
		positions[f.Position] = true
		imported++
	}

	if imported > 0 {
		log.Info("Imported %d chapters from %s", imported, im.scanner.Root())
	}
	im.lastSync = started
	return imported, nil
}
