package newsletter

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Document is one newsletter message. It is immutable once fetched.
type Document struct {
	ID       string
	ThreadID string
	Sender   string
	Subject  string
	Received time.Time
	Body     string
	Labels   []string
}

// WordCount returns the number of whitespace separated words in the body.
func (d Document) WordCount() int {
	return len(strings.Fields(d.Body))
}

// DisplaySender returns the human part of an RFC 5322 From header.
func (d Document) DisplaySender() string {
	return DisplaySender(d.Sender)
}

// HasLabel reports whether the document carried label when fetched.
func (d Document) HasLabel(label string) bool {
	for _, l := range d.Labels {
		if strings.EqualFold(l, label) {
			return true
		}
	}
	return false
}

var titleCaser = cases.Title(language.Und)

// DisplaySender turns `"Morning Brew" <crew@morningbrew.com>` into
// "Morning Brew". Names written entirely in one case are title-cased and a
// bare address falls back to its local part.
func DisplaySender(from string) string {
	from = strings.TrimSpace(from)
	if from == "" {
		return "Unknown sender"
	}
	name := from
	if idx := strings.Index(from, "<"); idx >= 0 {
		name = from[:idx]
		if strings.Trim(name, ` "'`) == "" {
			addr := strings.TrimSuffix(from[idx+1:], ">")
			name = addr
		}
	}
	name = strings.Trim(strings.TrimSpace(name), `"'`)
	if at := strings.Index(name, "@"); at > 0 {
		name = strings.NewReplacer(".", " ", "_", " ", "-", " ").Replace(name[:at])
	}
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return "Unknown sender"
	}
	if singleCase(name) {
		return titleCaser.String(name)
	}
	return name
}

func singleCase(s string) bool {
	var lower, upper bool
	for _, r := range s {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		}
	}
	return lower != upper
}
