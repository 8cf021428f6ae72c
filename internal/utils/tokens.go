package utils

import "strings"

// Token estimates use the rough 4-characters-per-token heuristic; they only
// size prompt context and never need to match a specific tokenizer.

// CountTokens estimates the number of tokens in text. Non-empty text is at
// least one token.
func CountTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	tokens := len([]rune(text)) / 4
	if tokens == 0 {
		return 1
	}
	return tokens
}

// TruncateToTokenLimit cuts text to roughly limit tokens. When a newline
// falls in the kept half, the cut moves back to it so lines stay whole.
func TruncateToTokenLimit(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(text)
	charLimit := limit * 4
	if charLimit >= len(runes) {
		return text
	}
	cut := string(runes[:charLimit])
	if i := strings.LastIndexByte(cut, '\n'); i >= len(cut)/2 {
		return cut[:i+1]
	}
	return cut
}

// Section is one labeled part of a larger text.
type Section struct {
	Label string
	Text  string
}

// TokenBreakdown estimates tokens per section, keeping section order.
func TokenBreakdown(sections []Section) []int {
	out := make([]int, len(sections))
	for i, s := range sections {
		out[i] = CountTokens(s.Text)
	}
	return out
}

// SplitSections splits text on lines ending in ':' written in upper case,
// e.g. "KEY INSIGHTS:". Text before the first heading is labeled "preamble".
func SplitSections(text string) []Section {
	var out []Section
	cur := Section{Label: "preamble"}
	var b strings.Builder
	flush := func() {
		cur.Text = b.String()
		if strings.TrimSpace(cur.Text) != "" {
			out = append(out, cur)
		}
		b.Reset()
	}
	for _, line := range strings.SplitAfter(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if isHeading(trimmed) {
			flush()
			cur = Section{Label: strings.TrimSuffix(trimmed, ":")}
		}
		b.WriteString(line)
	}
	flush()
	return out
}

func isHeading(s string) bool {
	if len(s) < 2 || !strings.HasSuffix(s, ":") || strings.HasPrefix(s, "-") {
		return false
	}
	return s == strings.ToUpper(s) && strings.ToLower(s) != s
}
