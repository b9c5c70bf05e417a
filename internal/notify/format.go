package notify

import (
	"fmt"
	"strings"
)

// formatPLN renders 1234.5 as "1 234,50", the pl-PL convention the rest of
// the system uses.
func formatPLN(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	whole, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	b.WriteByte(',')
	b.WriteString(frac)
	return b.String()
}

var sourceDisplayNames = map[string]string{
	"morele":     "Morele.net",
	"morele.net": "Morele.net",
	"xkom":       "x-kom",
	"x-kom":      "x-kom",
}

var sourceColors = map[string]int{
	"morele":     0x00a859,
	"morele.net": 0x00a859,
	"xkom":       0x1a1a1a,
	"x-kom":      0x1a1a1a,
}

const defaultEmbedColor = 0x10b981

func sourceDisplayName(source string) string {
	if n, ok := sourceDisplayNames[strings.ToLower(strings.TrimSpace(source))]; ok {
		return n
	}
	return source
}

func sourceColor(source string) int {
	if c, ok := sourceColors[strings.ToLower(strings.TrimSpace(source))]; ok {
		return c
	}
	return defaultEmbedColor
}
