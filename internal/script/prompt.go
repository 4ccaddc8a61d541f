package script

import (
	"fmt"
	"strings"
	"time"

	"letterpod/internal/newsletter"
	"letterpod/internal/textutil"
)

const (
	truncationSuffix     = "... [truncated]"
	defaultBodyCharLimit = 10000
	promptDateLayout     = "Monday, January 2, 2006"
)

// PromptInput is everything the prompt template needs.
type PromptInput struct {
	PodcastName    string
	Date           time.Time
	Set            newsletter.InclusionSet
	WordsPerMinute int
	BodyCharLimit  int
}

// BuildPrompt renders the generation prompt. Each included newsletter gets a
// block with its sender, subject, receive time, word budget, and truncated
// body. Overflow subjects are listed for a short bonus segment.
func BuildPrompt(in PromptInput) string {
	limit := in.BodyCharLimit
	if limit <= 0 {
		limit = defaultBodyCharLimit
	}
	wpm := in.WordsPerMinute
	if wpm <= 0 {
		wpm = 150
	}
	target := in.Set.TargetWords
	minutes := (target + wpm/2) / wpm
	name := strings.TrimSpace(in.PodcastName)
	if name == "" {
		name = "your daily newsletter briefing"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are an engaging podcast host recording %s for %s.\n\n", name, in.Date.Format(promptDateLayout))
	fmt.Fprintf(&b, "These %d newsletters arrived today, ordered by priority:\n\n", len(in.Set.Items))

	for i, item := range in.Set.Items {
		doc := item.Document
		fmt.Fprintf(&b, "--- Newsletter %d ---\n", i+1)
		fmt.Fprintf(&b, "From: %s\n", doc.DisplaySender())
		fmt.Fprintf(&b, "Subject: %s\n", strings.TrimSpace(doc.Subject))
		fmt.Fprintf(&b, "Received: %s\n", doc.Received.Format(time.RFC1123))
		fmt.Fprintf(&b, "Priority: %s\n", item.Rank)
		fmt.Fprintf(&b, "Word budget: about %d words\n\n", item.Budget)
		b.WriteString(textutil.Truncate(strings.TrimSpace(doc.Body), limit, truncationSuffix))
		b.WriteString("\n")
		b.WriteString("\n" + strings.Repeat("=", 80) + "\n\n")
	}

	fmt.Fprintf(&b, "Your task: write a conversational %d-minute podcast script of approximately %d words.\n\n", minutes, target)
	b.WriteString("Structure:\n")
	b.WriteString("1. Opening (one short paragraph): a warm greeting, today's date, and a preview of the topics.\n")
	b.WriteString("2. Main content: cover every newsletter above, spending roughly its word budget on it. ")
	b.WriteString("Group related topics, add context and analysis, and use natural spoken transitions.\n")
	if len(in.Set.Overflow) > 0 {
		b.WriteString("3. Bonus topics: near the end, mention each of these in a sentence or two:\n")
		for _, r := range in.Set.Overflow {
			fmt.Fprintf(&b, "   - %s (from %s)\n", strings.TrimSpace(r.Document.Subject), r.Document.DisplaySender())
		}
		b.WriteString("4. ")
	} else {
		b.WriteString("3. ")
	}
	b.WriteString("Closing (one short paragraph): key takeaways, a warm sign-off, and a note that this briefing is automated.\n\n")

	if in.Set.Thin {
		b.WriteString("There is less source material than usual today. Do not pad. Go deeper instead: ")
		b.WriteString("explain background, implications, and what to watch next for each story.\n\n")
	}

	b.WriteString("Output rules:\n")
	b.WriteString("- Plain spoken prose ready for text-to-speech, with paragraphs separated by blank lines.\n")
	b.WriteString("- No markdown, headings, bullet points, stage directions, or sound effect notes.\n")
	b.WriteString("- Do not mention that you are an AI or that the input was text.\n\n")
	b.WriteString("Begin the podcast script:")
	return b.String()
}
