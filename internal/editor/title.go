package editor

import "strings"

const (
	maxDerivedTitleLength = 30
	fallbackTitle         = "Untitled"
)

// DeriveTitle produces a fallback title from the first line of note content
// when the user left the title blank. Markdown heading and emphasis markers
// are stripped and the result is truncated to 30 characters.
func DeriveTitle(content string) string {
	line := content
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	line = strings.TrimSpace(line)
	line = strings.TrimLeft(line, "# ")
	line = strings.NewReplacer("*", "", "_", "", "`", "", "~", "").Replace(line)
	line = strings.TrimSpace(line)
	if line == "" {
		return fallbackTitle
	}

	runes := []rune(line)
	if len(runes) > maxDerivedTitleLength {
		runes = runes[:maxDerivedTitleLength]
	}
	return string(runes)
}
