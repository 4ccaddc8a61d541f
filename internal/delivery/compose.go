package delivery

import (
	"fmt"
	"strings"
	"time"

	"letterpod/internal/newsletter"
	"letterpod/internal/services"
)

const (
	subjectDateLayout = "January 2, 2006"
	fileDateLayout    = "2006-01-02"
	filePrefix        = "newsletter-podcast-"
)

// EpisodeSubject is the subject line of a delivered episode.
func EpisodeSubject(date time.Time) string {
	return "Your Daily Newsletter Podcast - " + date.Format(subjectDateLayout)
}

// FileName names the attachment for a render result kind.
func FileName(date time.Time, kind newsletter.ArtifactKind) string {
	ext := ".mp3"
	if kind == newsletter.KindTextOnly {
		ext = ".txt"
	}
	return filePrefix + date.Format(fileDateLayout) + ext
}

type bodyInput struct {
	Date      time.Time
	Set       newsletter.InclusionSet
	Result    newsletter.RenderResult
	FileName  string
	SizeBytes int64
	Limit     int64
}

func episodeBody(in bodyInput) string {
	var b strings.Builder
	b.WriteString("Good morning!\n\n")

	minutes := 0
	if audio, ok := hostedAudio(in.Result); ok && audio.Duration > 0 {
		minutes = int(audio.Duration.Round(time.Minute) / time.Minute)
	}
	if minutes > 0 {
		fmt.Fprintf(&b, "Your daily newsletter podcast for %s is ready. This %d-minute briefing covers the following newsletters:\n\n",
			in.Date.Format(subjectDateLayout), minutes)
	} else {
		fmt.Fprintf(&b, "Your daily newsletter briefing for %s is ready. It covers the following newsletters:\n\n",
			in.Date.Format(subjectDateLayout))
	}
	for i, item := range in.Set.Items {
		fmt.Fprintf(&b, "%d. %s\n   From: %s\n\n", i+1, strings.TrimSpace(item.Document.Subject), item.Document.DisplaySender())
	}
	if len(in.Set.Overflow) > 0 {
		b.WriteString("Bonus topics not covered in depth:\n")
		for _, r := range in.Set.Overflow {
			fmt.Fprintf(&b, "- %s (%s)\n", strings.TrimSpace(r.Document.Subject), r.Document.DisplaySender())
		}
		b.WriteString("\n")
	}

	if note := degradationNote(in.Result, in.SizeBytes, in.Limit); note != "" {
		b.WriteString(note)
		b.WriteString("\n\n")
	}
	switch r := in.Result.(type) {
	case newsletter.LinkOnly:
		fmt.Fprintf(&b, "Download: %s\n\n", r.URL)
	default:
		if in.Result.Kind() == newsletter.KindFullAudio {
			fmt.Fprintf(&b, "The podcast is attached as %s.\n\nEnjoy your listening!\n", in.FileName)
		} else {
			fmt.Fprintf(&b, "The script is attached as %s.\n", in.FileName)
		}
	}
	b.WriteString("\n---\nThis podcast was automatically generated by letterpod.\n")
	return b.String()
}

// degradationNote explains a non-audio or linked delivery.
func degradationNote(result newsletter.RenderResult, size, limit int64) string {
	var notes []string
	hosted := result.Kind()
	if link, ok := result.(newsletter.LinkOnly); ok {
		hosted = link.Hosted
	}
	if hosted == newsletter.KindTextOnly {
		reason := ""
		switch r := result.(type) {
		case newsletter.TextOnly:
			reason = r.Reason
		case newsletter.LinkOnly:
			reason = r.Reason
		}
		note := "Note: audio generation failed today, so you are receiving the script as text instead of a podcast."
		if reason != "" {
			note = fmt.Sprintf("Note: audio generation failed today (%s), so you are receiving the script as text instead of a podcast.", reason)
		}
		notes = append(notes, note)
	}
	if link, ok := result.(newsletter.LinkOnly); ok {
		notes = append(notes, fmt.Sprintf(
			"Note: the file (%s) exceeded the %s email attachment limit, so it is hosted online instead. The link expires %s.",
			humanBytes(size), humanBytes(limit), link.Expires.Format("Jan 2, 2006 15:04 MST"),
		))
	}
	return strings.Join(notes, "\n\n")
}

func hostedAudio(result newsletter.RenderResult) (newsletter.FullAudio, bool) {
	audio, ok := result.(newsletter.FullAudio)
	return audio, ok
}

func noContentMessage(to, label string, date time.Time) Message {
	body := "No new newsletters were found today"
	if label != "" {
		body += fmt.Sprintf(" with the label %q", label)
	}
	body += ".\n\nEnjoy your day!\n"
	return Message{
		To:      to,
		Subject: "No Newsletters Today - " + date.Format(subjectDateLayout),
		Body:    body,
	}
}

func failureMessage(to string, date time.Time, runErr error) Message {
	var b strings.Builder
	b.WriteString("An error occurred while generating your podcast.\n\n")
	fmt.Fprintf(&b, "Failure class: %s\n", services.FailureClass(runErr))
	if runErr != nil {
		fmt.Fprintf(&b, "Detail: %s\n", runErr.Error())
	}
	b.WriteString("\nNo newsletters were marked as processed. They stay in your inbox and will be picked up by the next run.\n")
	return Message{
		To:      to,
		Subject: "Podcast Generation Failed - " + date.Format(subjectDateLayout),
		Body:    b.String(),
	}
}

func humanBytes(n int64) string {
	const mib = 1 << 20
	if n >= mib {
		return fmt.Sprintf("%.1f MB", float64(n)/mib)
	}
	if n >= 1<<10 {
		return fmt.Sprintf("%.0f KB", float64(n)/(1<<10))
	}
	return fmt.Sprintf("%d bytes", n)
}
