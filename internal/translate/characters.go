package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hseol/chapter-translator/internal/glossary"
	"github.com/hseol/chapter-translator/internal/llm"
)

// DetectedCharacter is one character the model found in source text.
type DetectedCharacter struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// DetectCharacters asks the model for the named characters appearing in
// a chapter, with a one-line description each.
func (s *Service) DetectCharacters(ctx context.Context, text, sourceLanguage string) ([]DetectedCharacter, error) {
	systemPrompt := "You are a literary analyst. Identify the named characters in the given " + sourceLanguage + " text.\n" +
		"Return a JSON array of objects with \"name\" (as written in the text) and \"description\" (one short sentence about the character).\n" +
		"Return ONLY the JSON array. Skip generic references like \"the guard\" that are not proper names."

	content, err := s.jsonCompletion(ctx, systemPrompt, CleanText(text))
	if err != nil {
		return nil, err
	}

	var characters []DetectedCharacter
	if err := json.Unmarshal([]byte(content), &characters); err != nil {
		return nil, fmt.Errorf("unparseable character list: %w", err)
	}

	out := characters[:0]
	for _, ch := range characters {
		if strings.TrimSpace(ch.Name) != "" {
			out = append(out, ch)
		}
	}
	return out, nil
}

// TranslateNames produces target-language renderings for a set of
// source-language character names.
func (s *Service) TranslateNames(ctx context.Context, names []string, sourceLanguage, targetLanguage string) (map[string]string, error) {
	if len(names) == 0 {
		return map[string]string{}, nil
	}

	systemPrompt := "You are a professional literary translator. Romanize or translate each " + sourceLanguage + " character name into " + targetLanguage + " following common web novel conventions.\n" +
		"Return ONLY a JSON object mapping each original name to its " + targetLanguage + " rendering."

	content, err := s.jsonCompletion(ctx, systemPrompt, strings.Join(names, "\n"))
	if err != nil {
		return nil, err
	}

	var translated map[string]string
	if err := json.Unmarshal([]byte(content), &translated); err != nil {
		return nil, fmt.Errorf("unparseable name map: %w", err)
	}
	return translated, nil
}

// DetectGenders infers each character's gender from how the text refers
// to them. Unknown names come back as auto.
func (s *Service) DetectGenders(ctx context.Context, text string, names []string, sourceLanguage string) (map[string]glossary.Gender, error) {
	if len(names) == 0 {
		return map[string]glossary.Gender{}, nil
	}

	systemPrompt := "You are a literary analyst. For each listed character, infer their gender from the " + sourceLanguage + " text.\n" +
		"Return ONLY a JSON object mapping each name to one of: \"male\", \"female\", \"other\". Use \"other\" when the text gives no signal."

	userMessage := "CHARACTERS:\n" + strings.Join(names, "\n") + "\n\nTEXT:\n" + CleanText(text)
	content, err := s.jsonCompletion(ctx, systemPrompt, userMessage)
	if err != nil {
		return nil, err
	}

	var raw map[string]string
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("unparseable gender map: %w", err)
	}

	genders := make(map[string]glossary.Gender, len(names))
	for _, name := range names {
		switch glossary.Gender(raw[name]) {
		case glossary.GenderMale:
			genders[name] = glossary.GenderMale
		case glossary.GenderFemale:
			genders[name] = glossary.GenderFemale
		case glossary.GenderOther:
			genders[name] = glossary.GenderOther
		default:
			genders[name] = glossary.GenderAuto
		}
	}
	return genders, nil
}

func (s *Service) jsonCompletion(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	opts := llm.NewChatCompletionOptions().
		WithSystemPrompt(systemPrompt).
		WithTemperature(0.1)

	response, err := s.client.ChatCompletion(ctx, []llm.Message{
		{Role: "user", Content: userMessage},
	}, opts)
	if err != nil {
		return "", err
	}

	content, err := response.Content()
	if err != nil {
		return "", err
	}
	return extractJSONBlock(content), nil
}

// extractJSONBlock pulls the JSON payload out of a model reply, which
// may arrive bare, inside a ```json fence, or with prose around it.
func extractJSONBlock(content string) string {
	content = strings.TrimSpace(content)

	if start := strings.Index(content, "```json"); start >= 0 {
		rest := content[start+len("```json"):]
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end])
		}
	}
	if start := strings.Index(content, "```"); start >= 0 {
		rest := content[start+3:]
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end])
		}
	}

	if start := strings.IndexAny(content, "[{"); start >= 0 {
		closer := "]"
		if content[start] == '{' {
			closer = "}"
		}
		if end := strings.LastIndex(content, closer); end > start {
			return strings.TrimSpace(content[start : end+1])
		}
	}
	return content
}
