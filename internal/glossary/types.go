package glossary

// Gender drives pronoun instructions in translation prompts.
// "auto" leaves the choice to the translator model.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
	GenderAuto   Gender = "auto"
)

// Entry is one known character: the source-language name, the display
// name used in translated prose, and optional reader-facing context.
// Entries without a description are used for translation consistency
// but are not decorated in the reading view.
type Entry struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	SourceName  string `json:"source_name"`
	Description string `json:"description,omitempty"`
	Gender      Gender `json:"gender,omitempty"`
}

// Mapping is a novel's glossary keyed by opaque entry id. It is
// supplied whole and treated as read-only for the duration of one
// highlight pass.
type Mapping map[string]Entry
