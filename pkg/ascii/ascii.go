// Package ascii provides box drawing for report banners
package ascii

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// MaxBoxWidth caps the inner width of a banner so long repository paths do
// not blow up CI log lines.
const MaxBoxWidth = 96

// Box builds a box containing the provided lines and returns it as a string.
// Lines are left-aligned with single-space padding on each side. Multi-width
// runes (emoji, CJK, etc.) are accounted for so the borders stay aligned.
// Lines wider than MaxBoxWidth are truncated.
func Box(lines []string) string {
	if len(lines) == 0 {
		return ""
	}

	trimmed := make([]string, len(lines))
	maxWidth := 0
	for i, line := range lines {
		trimmed[i] = TruncateForBox(strings.TrimRight(line, " "), MaxBoxWidth)
		if w := StringWidth(trimmed[i]); w > maxWidth {
			maxWidth = w
		}
	}

	leftPadding, rightPadding := 1, 1
	innerWidth := maxWidth + leftPadding + rightPadding
	border := strings.Repeat("─", innerWidth)

	var sb strings.Builder
	sb.WriteString("┌" + border + "┐\n")
	for _, line := range trimmed {
		fill := innerWidth - leftPadding - rightPadding - StringWidth(line)
		if fill < 0 {
			fill = 0
		}
		sb.WriteString("│ " + line + strings.Repeat(" ", fill) + " │\n")
	}
	sb.WriteString("└" + border + "┘\n")
	return sb.String()
}

// TruncateForBox truncates a string so that its display width fits within the
// provided width. An ellipsis ("...") is appended when truncation occurs and
// there is space for it.
func TruncateForBox(value string, width int) string {
	if width <= 0 {
		return ""
	}
	if StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return substringWithWidth(value, width)
	}
	return substringWithWidth(value, width-3) + "..."
}

func substringWithWidth(s string, target int) string {
	if target <= 0 {
		return ""
	}
	width := 0
	var sb strings.Builder
	for _, r := range s {
		w := runewidth.RuneWidth(r)
		if width+w > target {
			break
		}
		width += w
		sb.WriteRune(r)
	}
	return sb.String()
}

// StringWidth returns the display width of a string, accounting for multi-width
// Unicode characters (emoji, CJK, etc.).
func StringWidth(s string) int {
	return runewidth.StringWidth(s)
}
