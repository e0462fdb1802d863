package utils

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// FormatDuration renders a duration with its two most significant units, e.g. "2d 3h" or "45s".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}

	seconds := int64(d / time.Second)
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}

	units := []struct {
		size   int64
		suffix string
	}{
		{86400, "d"},
		{3600, "h"},
		{60, "m"},
		{1, "s"},
	}

	parts := make([]string, 0, 2)
	for _, unit := range units {
		if seconds >= unit.size {
			parts = append(parts, fmt.Sprintf("%d%s", seconds/unit.size, unit.suffix))
			seconds %= unit.size
		}

		if len(parts) == 2 {
			break
		}
	}

	return strings.Join(parts, " ")
}

// TruncateString shortens s to at most maxLength runes, ending with "...".
func TruncateString(s string, maxLength int) string {
	if utf8.RuneCountInString(s) <= maxLength {
		return s
	}

	if maxLength <= 3 {
		return string([]rune(s)[:maxLength])
	}

	return string([]rune(s)[:maxLength-3]) + "..."
}

// NormalizeString replaces newlines with spaces and removes backticks
// so the text is safe inside Discord inline code.
func NormalizeString(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "`", "")
}

// DiscordTimestamp formats t as a Discord timestamp tag with the given style.
func DiscordTimestamp(t time.Time, style string) string {
	return fmt.Sprintf("<t:%d:%s>", t.Unix(), style)
}
