package render

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"letterpod/internal/newsletter"
)

// Chunk splits text into pieces of at most limit UTF-8 bytes. Paragraphs are
// packed together while they fit; a paragraph that alone exceeds the limit is
// split between sentences. A single sentence longer than the limit is cut at
// word boundaries as a last resort, and a single oversized word at rune
// boundaries.
func Chunk(text string, limit int) []string {
	paragraphs := newsletter.Paragraphs(text)
	if limit <= 0 {
		if len(paragraphs) == 0 {
			return nil
		}
		return []string{strings.Join(paragraphs, "\n\n")}
	}

	var chunks []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}
	add := func(piece, sep string) {
		if current.Len() > 0 && current.Len()+len(sep)+len(piece) > limit {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString(sep)
		}
		current.WriteString(piece)
	}

	for _, para := range paragraphs {
		if len(para) <= limit {
			add(para, "\n\n")
			continue
		}
		flush()
		for _, sentence := range Sentences(para) {
			if len(sentence) <= limit {
				add(sentence, " ")
				continue
			}
			flush()
			for _, piece := range splitWords(sentence, limit) {
				add(piece, " ")
				flush()
			}
		}
		flush()
	}
	flush()
	return chunks
}

// Sentences splits a paragraph after terminal punctuation followed by
// whitespace. Trailing quotes and brackets stay with their sentence.
func Sentences(paragraph string) []string {
	runes := []rune(strings.TrimSpace(paragraph))
	var out []string
	start := 0
	for i := 0; i < len(runes); i++ {
		if !isTerminal(runes[i]) {
			continue
		}
		end := i + 1
		for end < len(runes) && isCloser(runes[end]) {
			end++
		}
		if end < len(runes) && !unicode.IsSpace(runes[end]) {
			continue
		}
		if s := strings.TrimSpace(string(runes[start:end])); s != "" {
			out = append(out, s)
		}
		start = end
		i = end - 1
	}
	if start < len(runes) {
		if s := strings.TrimSpace(string(runes[start:])); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?' || r == '…'
}

func isCloser(r rune) bool {
	return r == '"' || r == '\'' || r == ')' || r == ']' || r == '”' || r == '’' || isTerminal(r)
}

func splitWords(sentence string, limit int) []string {
	var out []string
	var current strings.Builder
	for _, word := range strings.Fields(sentence) {
		if current.Len() > 0 && current.Len()+1+len(word) > limit {
			out = append(out, current.String())
			current.Reset()
		}
		if len(word) > limit {
			pieces := splitRunes(word, limit)
			out = append(out, pieces[:len(pieces)-1]...)
			word = pieces[len(pieces)-1]
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		out = append(out, current.String())
	}
	return out
}

// splitRunes cuts s into pieces of at most limit bytes without breaking a
// multi-byte rune.
func splitRunes(s string, limit int) []string {
	var out []string
	start := 0
	for i, r := range s {
		if i+utf8.RuneLen(r)-start > limit && i > start {
			out = append(out, s[start:i])
			start = i
		}
	}
	return append(out, s[start:])
}
