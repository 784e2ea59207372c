package translate

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hseol/chapter-translator/internal/glossary"
	"github.com/hseol/chapter-translator/internal/llm"
	"github.com/hseol/chapter-translator/pkg/log"
)

// ChatClient is the slice of the LLM client the translation service
// needs.
type ChatClient interface {
	ChatCompletion(ctx context.Context, messages []llm.Message, opts *llm.ChatCompletionOptions) (*llm.ChatResponse, error)
	Model() string
}

// Options tune how the service talks to the provider.
type Options struct {
	// ThinkingModel, when set, handles requests that ask for enhanced
	// reasoning. Empty means the default model handles everything.
	ThinkingModel string
	// ThinkingMaxTokens raises the output ceiling for thinking requests
	// since reasoning tokens count against it.
	ThinkingMaxTokens int
}

// Request is one chapter translation call.
type Request struct {
	Text           string
	SourceLanguage string
	TargetLanguage string
	Glossary       glossary.Mapping
	Thinking       bool
}

// Result carries the translation and the provider-reported usage so
// callers can record actual spend against the estimate.
type Result struct {
	Text  string
	Model string
	Usage llm.Usage
}

// Service turns chapters into translated chapters.
type Service struct {
	client ChatClient
	opts   Options

	mu            sync.RWMutex
	thinkingModel string
}

func NewService(client ChatClient, opts Options) *Service {
	if opts.ThinkingMaxTokens <= 0 {
		opts.ThinkingMaxTokens = 64000
	}
	return &Service{client: client, opts: opts, thinkingModel: opts.ThinkingModel}
}

// ThinkingModel returns the current thinking-mode model, "" when
// thinking requests use the default model.
func (s *Service) ThinkingModel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.thinkingModel
}

// SetThinkingModel changes the thinking-mode model for subsequent
// requests. Empty disables the override.
func (s *Service) SetThinkingModel(model string) {
	s.mu.Lock()
	s.thinkingModel = model
	s.mu.Unlock()
}

// Translate translates one chapter body. The text is cleaned before it
// is sent; the cleaned form is what estimates should be based on too.
func (s *Service) Translate(ctx context.Context, req Request) (*Result, error) {
	text := CleanText(req.Text)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("nothing to translate after cleaning")
	}

	systemPrompt := buildSystemPrompt(req.SourceLanguage, req.TargetLanguage, req.Glossary)
	return s.complete(ctx, systemPrompt, text, req.Thinking)
}

// TranslateTitle translates a chapter title. Callers treat failures
// here as non-fatal: a chapter with an untranslated title is still
// readable.
func (s *Service) TranslateTitle(ctx context.Context, title, sourceLanguage, targetLanguage string) (*Result, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("empty title")
	}

	systemPrompt := buildTitlePrompt(sourceLanguage, targetLanguage)
	result, err := s.complete(ctx, systemPrompt, title, false)
	if err != nil {
		return nil, err
	}
	result.Text = strings.Trim(strings.TrimSpace(result.Text), `"`)
	return result, nil
}

func (s *Service) complete(ctx context.Context, systemPrompt, userMessage string, thinking bool) (*Result, error) {
	opts := llm.NewChatCompletionOptions().WithSystemPrompt(systemPrompt)
	model := s.client.Model()
	if thinkingModel := s.ThinkingModel(); thinking && thinkingModel != "" {
		model = thinkingModel
		opts = opts.WithModel(model).WithMaxTokens(s.opts.ThinkingMaxTokens)
	}

	response, err := s.client.ChatCompletion(ctx, []llm.Message{
		{Role: "user", Content: userMessage},
	}, opts)
	if err != nil {
		return nil, fmt.Errorf("translation request failed: %w", err)
	}

	content, err := response.Content()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("empty translation from model %s", model)
	}

	log.Debug("translation completed: model=%s prompt_tokens=%d completion_tokens=%d",
		model, response.Usage.PromptTokens, response.Usage.CompletionTokens)

	return &Result{
		Text:  content,
		Model: model,
		Usage: response.Usage,
	}, nil
}
