package textutil

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// minReadableWords is the smallest readability extraction accepted before
// falling back to a plain DOM text walk.
const minReadableWords = 40

var (
	blankRunPattern   = regexp.MustCompile(`\n{3,}`)
	spaceRunPattern   = regexp.MustCompile(`[ \t\x{00a0}]+`)
	invisiblePattern  = regexp.MustCompile(`[\x{200b}-\x{200d}\x{2060}\x{feff}\x{034f}\x{00ad}]`)
	mailPageReference = &url.URL{Scheme: "https", Host: "mail.local"}
)

// HTMLToText converts a newsletter HTML body to paragraph text. Readability
// is tried first because it drops navigation and footer chrome; short
// extractions fall back to a goquery walk over the whole document.
func HTMLToText(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}
	if article, err := readability.FromReader(strings.NewReader(html), mailPageReference); err == nil {
		text := NormalizeWhitespace(article.TextContent)
		if len(strings.Fields(text)) >= minReadableWords {
			if structured := domText(article.Content); structured != "" {
				return structured
			}
			return text
		}
	}
	return domText(html)
}

func domText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find("script, style, head, noscript, template, svg").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, div, li, tr, h1, h2, h3, h4, h5, h6, blockquote, table").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n\n")
	})
	return NormalizeWhitespace(doc.Text())
}

// NormalizeWhitespace trims every line, collapses runs of spaces, strips
// zero-width characters common in email preheaders, and keeps at most one
// blank line between paragraphs.
func NormalizeWhitespace(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = invisiblePattern.ReplaceAllString(text, "")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaceRunPattern.ReplaceAllString(line, " "))
	}
	text = strings.Join(lines, "\n")
	text = blankRunPattern.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// Truncate shortens text to at most limit runes, appending suffix when cut.
// The cut falls on the last whitespace before the limit when one exists.
func Truncate(text string, limit int, suffix string) string {
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	cut := string(runes[:limit])
	if idx := strings.LastIndexAny(cut, " \n\t"); idx > limit/2 {
		cut = cut[:idx]
	}
	return strings.TrimSpace(cut) + suffix
}
