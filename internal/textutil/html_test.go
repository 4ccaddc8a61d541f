package textutil

import (
	"strings"
	"testing"
)

func TestHTMLToTextDropsChromeAndKeepsParagraphs(t *testing.T) {
	html := `<html><head><style>.x{color:red}</style><title>t</title></head>
<body><script>track()</script>
<p>First&nbsp;paragraph about &amp; markets.</p>
<div>Second<br>line</div>
<ul><li>One</li><li>Two</li></ul>
</body></html>`
	got := HTMLToText(html)
	if strings.Contains(got, "track()") || strings.Contains(got, "color:red") {
		t.Fatalf("script or style leaked: %q", got)
	}
	if !strings.Contains(got, "First paragraph about & markets.") {
		t.Fatalf("expected decoded paragraph, got %q", got)
	}
	if !strings.Contains(got, "Second\nline") {
		t.Fatalf("expected <br> to become newline, got %q", got)
	}
	if strings.Contains(got, "\n\n\n") {
		t.Fatalf("expected collapsed blank lines, got %q", got)
	}
}

func TestHTMLToTextEmpty(t *testing.T) {
	if got := HTMLToText("   "); got != "" {
		t.Fatalf("expected empty output, got %q", got)
	}
}

func TestNormalizeWhitespace(t *testing.T) {
	in := "  Hello\u200b   world \r\n\r\n\r\n\r\n  next\tline  "
	if got := NormalizeWhitespace(in); got != "Hello world\n\nnext line" {
		t.Fatalf("NormalizeWhitespace() = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	text := strings.Repeat("word ", 10)
	got := Truncate(text, 22, "... [truncated]")
	if !strings.HasSuffix(got, "... [truncated]") {
		t.Fatalf("missing suffix: %q", got)
	}
	if strings.Contains(got, "wor...") {
		t.Fatalf("cut inside a word: %q", got)
	}
	if Truncate("short", 100, "...") != "short" {
		t.Fatal("short text must be unchanged")
	}
}
