package scripting

import "strings"

// SanitizeForDisplay removes control characters a script could use to
// corrupt the terminal.
func SanitizeForDisplay(input string) string {
	var result strings.Builder
	for _, r := range input {
		// Keep printable characters, newlines, and tabs
		if (r >= 32 && r < 127) || r == '\n' || r == '\t' {
			result.WriteRune(r)
		} else if r >= 160 {
			result.WriteRune(r)
		}
	}
	return result.String()
}
