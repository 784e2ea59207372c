package translate

import (
	"regexp"
	"strings"
)

var (
	// Long base64-looking runs show up in scraped chapter text as inline
	// image data and tracking blobs. They waste tokens and confuse models.
	base64RunRe = regexp.MustCompile(`[A-Za-z0-9+/]{40,}={0,2}`)

	controlCharRe = regexp.MustCompile("[\x00-\x08\x0B-\x0C\x0E-\x1F\x7F-]")

	intraLineSpaceRe = regexp.MustCompile(`[ \t]+`)
)

// CleanText normalizes scraped chapter text before it is estimated or
// sent for translation. Line structure is preserved; junk inside lines
// is stripped and runs of spaces collapse to one.
func CleanText(text string) string {
	if text == "" {
		return ""
	}

	text = base64RunRe.ReplaceAllString(text, "")
	text = controlCharRe.ReplaceAllString(text, "")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(intraLineSpaceRe.ReplaceAllString(line, " "))
	}
	return strings.Join(lines, "\n")
}
