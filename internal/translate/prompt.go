package translate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hseol/chapter-translator/internal/glossary"
)

// buildSystemPrompt builds the translation system prompt, including the
// character glossary so established names and pronouns stay consistent
// across chapters.
func buildSystemPrompt(sourceLanguage, targetLanguage string, mapping glossary.Mapping) string {
	var prompt strings.Builder

	prompt.WriteString("You are a professional literary translator specializing in web novels. Translate the chapter from " + sourceLanguage + " to " + targetLanguage + " with natural, fluent prose that preserves the author's tone and pacing.\n\n")

	prompt.WriteString("=== FORMATTING RULES ===\n")
	prompt.WriteString("1. Preserve the paragraph structure: one output paragraph per input paragraph, separated by blank lines exactly as in the source\n")
	prompt.WriteString("2. Keep dialogue punctuation idiomatic for " + targetLanguage + "\n")
	prompt.WriteString("3. Do not merge, split, or reorder paragraphs\n")
	prompt.WriteString("4. Do not add translator notes, explanations, or headings\n")

	if len(mapping) > 0 {
		prompt.WriteString("\n=== CHARACTER GLOSSARY ===\n")
		prompt.WriteString("Use these established name translations consistently:\n")
		for _, entry := range sortedEntries(mapping) {
			line := fmt.Sprintf("- %s -> %s", entry.SourceName, entry.DisplayName)
			if note := pronounNote(entry.Gender); note != "" {
				line += " (" + note + ")"
			}
			if desc := strings.TrimSpace(entry.Description); desc != "" {
				line += ": " + desc
			}
			prompt.WriteString(line + "\n")
		}
	}

	prompt.WriteString("\n=== OUTPUT FORMAT ===\n")
	prompt.WriteString("Return ONLY the translated chapter text.\n")
	prompt.WriteString("Do not wrap the output in quotes or code fences.\n")

	return prompt.String()
}

func buildTitlePrompt(sourceLanguage, targetLanguage string) string {
	return "You are a professional literary translator. Translate the web novel chapter title from " + sourceLanguage + " to " + targetLanguage + ". Return ONLY the translated title with no quotes, notes, or extra text."
}

func pronounNote(g glossary.Gender) string {
	switch g {
	case glossary.GenderMale:
		return "male, use he/him pronouns"
	case glossary.GenderFemale:
		return "female, use she/her pronouns"
	case glossary.GenderOther:
		return "use they/them pronouns"
	default:
		return "infer pronouns from context"
	}
}

func sortedEntries(mapping glossary.Mapping) []glossary.Entry {
	entries := make([]glossary.Entry, 0, len(mapping))
	for _, entry := range mapping {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].SourceName != entries[j].SourceName {
			return entries[i].SourceName < entries[j].SourceName
		}
		return entries[i].ID < entries[j].ID
	})
	return entries
}
