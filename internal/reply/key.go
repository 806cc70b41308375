package reply

import "strings"

const (
	// closingQuote ends a quoted title on the first line of a post. Keys
	// include it, so 「タイトル」 and 「タイトル」の続き share a key.
	closingQuote = "」"
	// maxKeyRunes is the longest key, in characters. Existing reply tables
	// are keyed on this cutoff, so it stays at 19 rather than 20.
	maxKeyRunes = 19
)

// ExtractKey derives the reply-table key from post text: the first line,
// cut just after the first closing quote if there is one, then cut to
// maxKeyRunes characters.
func ExtractKey(text string) string {
	line, _, _ := strings.Cut(text, "\n")
	if i := strings.Index(line, closingQuote); i >= 0 {
		line = line[:i+len(closingQuote)]
	}
	if runes := []rune(line); len(runes) > maxKeyRunes {
		line = string(runes[:maxKeyRunes])
	}
	return line
}
