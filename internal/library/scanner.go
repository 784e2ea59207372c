package library

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/hseol/chapter-translator/pkg/file"
)

// Scanner walks an import root laid out as root/<novel>/<chapter files>.
// Each first-level directory is a novel; the directory name is the novel
// id. Chapter files carry a leading number that fixes their position,
// e.g. "0001 Prologue.txt". A sidecar with the same basename and a .json
// extension may override the parsed title.
type Scanner struct {
	root string
}

func NewScanner(root string) *Scanner {
	return &Scanner{root: root}
}

func (s *Scanner) Root() string {
	return s.root
}

var chapterExts = []string{".txt", ".md"}

var chapterNamePattern = regexp.MustCompile(`^(\d+)[-._ ]*(.*)$`)

// cleanChapterTitle parses numbered chapter filenames into a position
// and a display title.
// e.g. "0015 - The Duel" -> 15, "The Duel"
func cleanChapterTitle(basename string) (int, string) {
	m := chapterNamePattern.FindStringSubmatch(basename)
	if m == nil {
		return 0, basename
	}
	position, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, basename
	}
	title := strings.TrimSpace(m[2])
	if title == "" {
		title = basename
	}
	return position, title
}

type sidecarMeta struct {
	Title string `json:"title"`
}

// readSidecarTitle returns the title from the chapter's .json sidecar,
// or "" when there is none.
func readSidecarTitle(chapterPath string) string {
	data, err := os.ReadFile(file.ReplaceExt(chapterPath, "json"))
	if err != nil {
		return ""
	}
	var meta sidecarMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return ""
	}
	return strings.TrimSpace(meta.Title)
}

// Scan lists the novels and chapter files under the root. A missing
// root is treated as an empty library, not an error.
func (s *Scanner) Scan(ctx context.Context) ([]Novel, []ChapterFile, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, err
	}

	novels := make([]Novel, 0, len(entries))
	chapters := make([]ChapterFile, 0)

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		novel := Novel{
			ID:   entry.Name(),
			Name: entry.Name(),
			Path: filepath.Join(s.root, entry.Name()),
		}

		err := filepath.WalkDir(novel.Path, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if d.IsDir() {
				return nil
			}
			ext := strings.ToLower(filepath.Ext(path))
			if !slices.Contains(chapterExts, ext) {
				return nil
			}

			basename := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			position, title := cleanChapterTitle(basename)
			if sidecar := readSidecarTitle(path); sidecar != "" {
				title = sidecar
			}

			chapters = append(chapters, ChapterFile{
				NovelID:  novel.ID,
				Path:     path,
				Position: position,
				Title:    title,
			})
			novel.ChapterCount++
			return nil
		})
		if err != nil {
			return nil, nil, err
		}

		novels = append(novels, novel)
	}

	sort.Slice(chapters, func(i, j int) bool {
		if chapters[i].NovelID != chapters[j].NovelID {
			return chapters[i].NovelID < chapters[j].NovelID
		}
		return chapters[i].Position < chapters[j].Position
	})

	return novels, chapters, nil
}
