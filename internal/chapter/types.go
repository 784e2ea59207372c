package chapter

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/abadojack/whatlanggo"
	"github.com/google/uuid"
	"golang.org/x/text/language"

	"github.com/hseol/chapter-translator/internal/align"
)

// ErrEmptyContent rejects edits whose content is empty after trimming.
// Checked before any persistence or network call.
var ErrEmptyContent = errors.New("translation content is empty")

// Status tracks a chapter's out-of-band translation progress.
type Status string

const (
	StatusNone       Status = "none"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transition occurs.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Text is the immutable source/translation pair for one chapter view.
// It is replaced wholesale when a translation completes or an edit is
// saved; Translated is either empty or a complete renderable document.
type Text struct {
	Source          string `json:"source"`
	Translated      string `json:"translated,omitempty"`
	TranslatedTitle string `json:"translated_title,omitempty"`
}

func (t Text) HasTranslation() bool {
	return strings.TrimSpace(t.Translated) != ""
}

// WithTranslation returns a new Text with the translated document and
// title swapped in.
func (t Text) WithTranslation(translated, title string) Text {
	return Text{
		Source:          t.Source,
		Translated:      translated,
		TranslatedTitle: title,
	}
}

// Chapter is one chapter of a novel.
type Chapter struct {
	ID               string       `json:"id"`
	NovelID          string       `json:"novel_id"`
	Title            string       `json:"title"`
	Position         int          `json:"position"`
	Text             Text         `json:"text"`
	SourceLanguage   language.Tag `json:"source_language"`
	Status           Status       `json:"translation_status"`
	TranslationModel string       `json:"translation_model,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// New builds a chapter from imported source text, detecting the source
// language from its segmented units.
func New(novelID, title, source string, position int) Chapter {
	now := time.Now()
	return Chapter{
		ID:             uuid.NewString(),
		NovelID:        novelID,
		Title:          title,
		Position:       position,
		Text:           Text{Source: source},
		SourceLanguage: DetectLanguage(source),
		Status:         StatusNone,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// ValidateEdit rejects whitespace-only content before anything is sent
// anywhere.
func ValidateEdit(translated string) error {
	if strings.TrimSpace(translated) == "" {
		return ErrEmptyContent
	}
	return nil
}

// DetectLanguage votes per segmented unit so a few loanwords don't flip
// the result of a long chapter.
func DetectLanguage(text string) language.Tag {
	units := align.Segment(text)
	if len(units) == 0 {
		return language.Und
	}

	langMap := make(map[string]int)
	for _, unit := range units {
		lang := whatlanggo.DetectLang(unit.Text).Iso6391()
		langMap[lang]++
	}

	var topLang string
	var topCount int
	for lang, count := range langMap {
		if count > topCount {
			topLang = lang
			topCount = count
		}
	}

	return language.All.Make(topLang)
}

// Store persists chapters.
type Store interface {
	GetChapter(ctx context.Context, id string) (*Chapter, error)
	UpsertChapter(ctx context.Context, ch *Chapter) error
	// SaveTranslation replaces the translated document (and optionally
	// the translated title and model) for a chapter.
	SaveTranslation(ctx context.Context, id, translated, translatedTitle, model string) error
	SetTranslationStatus(ctx context.Context, id string, status Status) error
}
