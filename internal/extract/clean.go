package extract

import "strings"

// CleanText normalizes line endings, strips zero-width characters, and
// collapses runs of blank lines in extracted text.
func CleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	text = strings.Map(func(r rune) rune {
		switch r {
		case '\u200b', '\u200c', '\u200d', '\ufeff', '\u00ad':
			return -1
		case '\u00a0':
			return ' '
		default:
			return r
		}
	}, text)

	lines := strings.Split(text, "\n")
	cleaned := make([]string, 0, len(lines))
	consecutiveEmpty := 0

	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) == "" {
			consecutiveEmpty++
			if consecutiveEmpty <= 2 {
				cleaned = append(cleaned, "")
			}
			continue
		}
		consecutiveEmpty = 0
		cleaned = append(cleaned, line)
	}

	return strings.TrimSpace(strings.Join(cleaned, "\n"))
}
