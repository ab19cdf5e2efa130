// Package clipboard puts transcript text on the system clipboard.
package clipboard

import (
	"strings"

	cb "github.com/atotto/clipboard"
)

func Copy(text string) error {
	return cb.WriteAll(text)
}

func Read() (string, error) {
	return cb.ReadAll()
}

// CopyPairs copies the whole transcript as original/translation blocks
// separated by blank lines.
func CopyPairs(originals, translations []string) error {
	return Copy(joinPairs(originals, translations))
}

func joinPairs(originals, translations []string) string {
	var b strings.Builder
	for i, orig := range originals {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(orig)
		if i < len(translations) && translations[i] != "" {
			b.WriteString("\n")
			b.WriteString(translations[i])
		}
	}
	return b.String()
}
