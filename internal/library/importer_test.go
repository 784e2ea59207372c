package library

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hseol/chapter-translator/internal/chapter"
)

type memStore struct {
	chapters map[string][]*chapter.Chapter
}

func newMemStore() *memStore {
	return &memStore{chapters: make(map[string][]*chapter.Chapter)}
}

func (m *memStore) ListChapters(_ context.Context, novelID string) ([]*chapter.Chapter, error) {
	return m.chapters[novelID], nil
}

func (m *memStore) UpsertChapter(_ context.Context, ch *chapter.Chapter) error {
	tmp := *ch
	m.chapters[ch.NovelID] = append(m.chapters[ch.NovelID], &tmp)
	return nil
}

func writeChapterFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCleanChapterTitle(t *testing.T) {
	tests := []struct {
		basename string
		position int
		title    string
	}{
		{"0001 Prologue", 1, "Prologue"},
		{"0015 - The Duel", 15, "The Duel"},
		{"23_untitled_ending", 23, "untitled_ending"},
		{"0007", 7, "0007"},
		{"notes", 0, "notes"},
	}

	for _, tt := range tests {
		position, title := cleanChapterTitle(tt.basename)
		assert.Equal(t, tt.position, position, tt.basename)
		assert.Equal(t, tt.title, title, tt.basename)
	}
}

func TestScanOrdersChaptersByPosition(t *testing.T) {
	root := t.TempDir()
	novelDir := filepath.Join(root, "sword-saga")
	writeChapterFile(t, novelDir, "0002 Second.txt", "2장")
	writeChapterFile(t, novelDir, "0001 First.txt", "1장")
	writeChapterFile(t, novelDir, "cover.png", "not a chapter")

	novels, chapters, err := NewScanner(root).Scan(context.Background())
	require.NoError(t, err)

	require.Len(t, novels, 1)
	assert.Equal(t, "sword-saga", novels[0].ID)
	assert.Equal(t, 2, novels[0].ChapterCount)

	require.Len(t, chapters, 2)
	assert.Equal(t, "First", chapters[0].Title)
	assert.Equal(t, 1, chapters[0].Position)
	assert.Equal(t, "Second", chapters[1].Title)
}

func TestScanSidecarTitleOverride(t *testing.T) {
	root := t.TempDir()
	novelDir := filepath.Join(root, "sword-saga")
	writeChapterFile(t, novelDir, "0001 First.txt", "1장")
	writeChapterFile(t, novelDir, "0001 First.json", `{"title": "프롤로그"}`)

	_, chapters, err := NewScanner(root).Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, chapters, 1)
	assert.Equal(t, "프롤로그", chapters[0].Title)
}

func TestScanMissingRoot(t *testing.T) {
	novels, chapters, err := NewScanner(filepath.Join(t.TempDir(), "nope")).Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, novels)
	assert.Empty(t, chapters)
}

func TestImporterSyncAddsNewChaptersOnly(t *testing.T) {
	root := t.TempDir()
	novelDir := filepath.Join(root, "sword-saga")
	first := writeChapterFile(t, novelDir, "0001 First.txt", "첫 번째 장 원문")
	writeChapterFile(t, novelDir, "0002 Second.txt", "두 번째 장 원문")
	writeChapterFile(t, novelDir, "0003 Empty.txt", "   \n ")

	store := newMemStore()
	importer := NewImporter(NewScanner(root), store)

	imported, err := importer.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, imported)
	require.Len(t, store.chapters["sword-saga"], 2)

	// Rewriting an already-imported file must not produce a duplicate.
	require.NoError(t, os.WriteFile(first, []byte("수정된 원문"), 0o644))

	imported, err = importer.Sync(context.Background())
	require.NoError(t, err)
	assert.Zero(t, imported)
	assert.Len(t, store.chapters["sword-saga"], 2)

	// A new file picked up on the next pass.
	writeChapterFile(t, novelDir, "0004 Fourth.txt", "네 번째 장 원문")

	imported, err = importer.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, imported)
	require.Len(t, store.chapters["sword-saga"], 3)
}
