package render

import "strings"

const (
	// nameWrapWidth is the fixed character width product names wrap at
	nameWrapWidth = 18
	// nameMaxLines caps the wrapped product name
	nameMaxLines = 2
)

// wrapText greedily word-wraps text to at most width characters per line and
// caps the result at maxLines. A single word longer than the width gets its
// own (overflowing) line; shrink-to-fit handles the horizontal overflow.
func wrapText(text string, width, maxLines int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var lines []string
	current := words[0]
	for _, word := range words[1:] {
		if len(current)+1+len(word) <= width {
			current += " " + word
			continue
		}
		lines = append(lines, current)
		current = word
	}
	lines = append(lines, current)

	if len(lines) > maxLines {
		lines = lines[:maxLines]
	}
	return lines
}
