package script

import (
	"regexp"
	"strings"
)

var (
	headingPattern   = regexp.MustCompile(`(?m)^[ \t]{0,3}#{1,6}[ \t]*`)
	bulletPattern    = regexp.MustCompile(`(?m)^[ \t]*(?:[-*•]|\d+[.)])[ \t]+`)
	boldPattern      = regexp.MustCompile(`(\*\*|__)([^*_\n]+)(\*\*|__)`)
	italicPattern    = regexp.MustCompile(`\*([^*\n]+)\*`)
	directionPattern = regexp.MustCompile(`(?i)[\[(](?:pause|music|sound|sfx|intro|outro|host|transition|beat|laughs?)[^\])]*[\])]`)
	speakerPattern   = regexp.MustCompile(`(?mi)^[ \t]*(?:host|narrator|speaker)[ \t]*:[ \t]*`)
	ruleLinePattern  = regexp.MustCompile(`(?m)^[ \t]*(?:-{3,}|\*{3,}|={3,})[ \t]*$`)
	linkPattern      = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	spacesPattern    = regexp.MustCompile(`[ \t]{2,}`)
)

// Clean strips markdown residue and production notes that would otherwise be
// read aloud.
func Clean(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = linkPattern.ReplaceAllString(text, "$1")
	text = directionPattern.ReplaceAllString(text, "")
	text = ruleLinePattern.ReplaceAllString(text, "")
	text = headingPattern.ReplaceAllString(text, "")
	text = bulletPattern.ReplaceAllString(text, "")
	text = boldPattern.ReplaceAllString(text, "$2")
	text = italicPattern.ReplaceAllString(text, "$1")
	text = speakerPattern.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "**", "")
	text = spacesPattern.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
