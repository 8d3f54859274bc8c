package popup

import "strings"

var newlines = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// Wrap hard-wraps text every n runes. Existing line breaks are kept as "\n"
// and the result has no trailing newline. n <= 0 only normalizes line breaks.
func Wrap(text string, n int) string {
	text = newlines.Replace(text)
	if n <= 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text) + len(text)/n)
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			b.WriteByte('\n')
		}
		count := 0
		for _, r := range line {
			if count == n {
				b.WriteByte('\n')
				count = 0
			}
			b.WriteRune(r)
			count++
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
