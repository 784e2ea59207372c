package jobs

import (
	"context"
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/hseol/chapter-translator/internal/chapter"
	"github.com/hseol/chapter-translator/internal/glossary"
	"github.com/hseol/chapter-translator/internal/token"
	"github.com/hseol/chapter-translator/internal/translate"
	"github.com/hseol/chapter-translator/pkg/log"
)

// Translator is the slice of the translation service the executor
// needs.
type Translator interface {
	Translate(ctx context.Context, req translate.Request) (*translate.Result, error)
	TranslateTitle(ctx context.Context, title, sourceLanguage, targetLanguage string) (*translate.Result, error)
}

// UsageRecorder records actual token spend reported by the provider.
type UsageRecorder interface {
	RecordTokenUsage(ctx context.Context, usage token.Usage) error
}

// ExecutorDeps wires the chapter executor.
type ExecutorDeps struct {
	Chapters       chapter.Store
	Glossaries     glossary.Store
	Translator     Translator
	Usage          UsageRecorder
	TargetLanguage language.Tag
}

// NewChapterExecutor builds the queue executor that translates one
// chapter: body first, then the title. A failed title translation does
// not fail the job; the chapter keeps its source title.
func NewChapterExecutor(deps ExecutorDeps) Executor {
	return func(ctx context.Context, job *TranslationJob) error {
		ch, err := deps.Chapters.GetChapter(ctx, job.Payload.ChapterID)
		if err != nil {
			return fmt.Errorf("load chapter %s: %w", job.Payload.ChapterID, err)
		}

		mapping, err := deps.Glossaries.GetGlossary(ctx, ch.NovelID)
		if err != nil {
			log.Warn("Glossary unavailable for novel %s, translating without it: %v", ch.NovelID, err)
			mapping = glossary.Mapping{}
		}

		if err := deps.Chapters.SetTranslationStatus(ctx, ch.ID, chapter.StatusInProgress); err != nil {
			return fmt.Errorf("mark chapter %s in progress: %w", ch.ID, err)
		}

		sourceLang := languageName(ch.SourceLanguage)
		targetLang := languageName(deps.TargetLanguage)

		result, err := deps.Translator.Translate(ctx, translate.Request{
			Text:           ch.Text.Source,
			SourceLanguage: sourceLang,
			TargetLanguage: targetLang,
			Glossary:       mapping,
			Thinking:       job.Payload.Thinking,
		})
		if err != nil {
			if statusErr := deps.Chapters.SetTranslationStatus(ctx, ch.ID, chapter.StatusFailed); statusErr != nil {
				log.Error("Failed to mark chapter %s failed: %v", ch.ID, statusErr)
			}
			return fmt.Errorf("translate chapter %s: %w", ch.ID, err)
		}
		recordUsage(ctx, deps.Usage, ch.ID, result, token.UsageContent)

		translatedTitle := ""
		if titleResult, err := deps.Translator.TranslateTitle(ctx, ch.Title, sourceLang, targetLang); err != nil {
			log.Warn("Title translation failed for chapter %s, keeping source title: %v", ch.ID, err)
		} else {
			translatedTitle = titleResult.Text
			recordUsage(ctx, deps.Usage, ch.ID, titleResult, token.UsageTitle)
		}

		if err := deps.Chapters.SaveTranslation(ctx, ch.ID, result.Text, translatedTitle, result.Model); err != nil {
			return fmt.Errorf("save translation for chapter %s: %w", ch.ID, err)
		}
		if err := deps.Chapters.SetTranslationStatus(ctx, ch.ID, chapter.StatusCompleted); err != nil {
			return fmt.Errorf("mark chapter %s completed: %w", ch.ID, err)
		}

		log.Info("Chapter %s translated with %s (%d tokens)", ch.ID, result.Model, result.Usage.TotalTokens)
		return nil
	}
}

func recordUsage(ctx context.Context, recorder UsageRecorder, chapterID string, result *translate.Result, kind token.UsageKind) {
	if recorder == nil {
		return
	}
	err := recorder.RecordTokenUsage(ctx, token.Usage{
		ChapterID:    chapterID,
		Model:        result.Model,
		InputTokens:  result.Usage.PromptTokens,
		OutputTokens: result.Usage.CompletionTokens,
		TotalTokens:  result.Usage.TotalTokens,
		Kind:         kind,
	})
	if err != nil {
		log.Error("Failed to record token usage for chapter %s: %v", chapterID, err)
	}
}

// languageName renders a tag as the English language name models
// respond to best, falling back to the raw tag.
func languageName(tag language.Tag) string {
	if tag == language.Und {
		return "the source language"
	}
	name := display.English.Languages().Name(tag)
	if name == "" {
		return tag.String()
	}
	return name
}
