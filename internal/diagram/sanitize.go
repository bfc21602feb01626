package diagram

import (
	"regexp"
	"strings"
	"unicode"
)

var emptyLabel = regexp.MustCompile(`\[\s*""\s*\]`)

// Sanitize is the post-processing pass applied to every diagram before it is
// handed to the renderer: line endings are normalized, non-printable
// characters are stripped, and empty quoted labels are rewritten so the
// renderer never sees X[""].
func Sanitize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var sb strings.Builder
	sb.Grow(len(text))
	for _, r := range text {
		if r == '\n' || r == '\t' || unicode.IsPrint(r) {
			sb.WriteRune(r)
		}
	}
	text = sb.String()

	return emptyLabel.ReplaceAllString(text, `["unnamed"]`)
}
