package extract

import "strings"

// JoinPages concatenates page texts in order, each followed by a newline.
// Pages that are empty or whitespace-only contribute nothing.
func JoinPages(pages []string) (string, int) {
	var b strings.Builder
	n := 0
	for _, p := range pages {
		if strings.TrimSpace(p) == "" {
			continue
		}
		b.WriteString(p)
		b.WriteString("\n")
		n++
	}
	return b.String(), n
}
