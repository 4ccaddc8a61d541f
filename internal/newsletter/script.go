package newsletter

import (
	"strings"
)

// Script is the narration text split into its structural regions.
type Script struct {
	Opening string
	Body    string
	Closing string
}

// ParseScript splits text on blank lines. The first paragraph is the opening,
// the last is the closing, and everything between is the body. A single
// paragraph yields an empty closing.
func ParseScript(text string) Script {
	paragraphs := Paragraphs(text)
	switch len(paragraphs) {
	case 0:
		return Script{}
	case 1:
		return Script{Opening: paragraphs[0]}
	case 2:
		return Script{Opening: paragraphs[0], Closing: paragraphs[1]}
	default:
		return Script{
			Opening: paragraphs[0],
			Body:    strings.Join(paragraphs[1:len(paragraphs)-1], "\n\n"),
			Closing: paragraphs[len(paragraphs)-1],
		}
	}
}

// Text joins the regions back into narration text.
func (s Script) Text() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{s.Opening, s.Body, s.Closing} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Words counts words across all regions.
func (s Script) Words() int {
	return len(strings.Fields(s.Opening)) + len(strings.Fields(s.Body)) + len(strings.Fields(s.Closing))
}

// Paragraphs splits text on blank lines, dropping empty paragraphs and
// collapsing internal line wraps.
func Paragraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	var current []string
	flush := func() {
		if len(current) > 0 {
			out = append(out, strings.Join(current, " "))
			current = current[:0]
		}
	}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()
	return out
}
