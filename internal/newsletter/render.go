package newsletter

import "time"

// ArtifactKind names the variant of a RenderResult.
type ArtifactKind string

const (
	KindFullAudio ArtifactKind = "full_audio"
	KindTextOnly  ArtifactKind = "text_only"
	KindLinkOnly  ArtifactKind = "link_only"
)

// Degraded reports whether the kind is anything other than full audio.
func (k ArtifactKind) Degraded() bool {
	return k == KindTextOnly || k == KindLinkOnly
}

// RenderResult is the tagged variant produced by rendering and refined by
// delivery: FullAudio, TextOnly, or LinkOnly. Consumers switch on the
// concrete type.
type RenderResult interface {
	Kind() ArtifactKind
	renderResult()
}

// FullAudio is a complete narrated episode.
type FullAudio struct {
	Audio    []byte
	Format   string
	Duration time.Duration
	Chunks   int
}

func (FullAudio) Kind() ArtifactKind { return KindFullAudio }
func (FullAudio) renderResult()      {}

// TextOnly delivers the script itself because synthesis failed.
type TextOnly struct {
	Text   string
	Reason string
}

func (TextOnly) Kind() ArtifactKind { return KindTextOnly }
func (TextOnly) renderResult()      {}

// LinkOnly points at an artifact hosted in the large-object store because it
// exceeded the mail attachment ceiling.
type LinkOnly struct {
	URL     string
	Key     string
	Expires time.Time
	Size    int64
	// Hosted is the kind of the artifact behind the link.
	Hosted ArtifactKind
	Reason string
}

func (LinkOnly) Kind() ArtifactKind { return KindLinkOnly }
func (LinkOnly) renderResult()      {}
