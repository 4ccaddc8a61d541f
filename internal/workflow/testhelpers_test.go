package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"letterpod/internal/budget"
	"letterpod/internal/delivery"
	"letterpod/internal/events"
	"letterpod/internal/logging"
	"letterpod/internal/newsletter"
	"letterpod/internal/notifications"
	"letterpod/internal/prioritizer"
	"letterpod/internal/render"
	"letterpod/internal/script"
	"letterpod/internal/services"
	"letterpod/internal/state"
	"letterpod/internal/workflow"
)

const (
	sourceLabel    = "newsletters-to-podcast"
	processedLabel = "podcast-processed"
	degradedLabel  = "podcast-degraded"
	targetWords    = 600
)

var fetchedAt = time.Date(2025, 3, 10, 6, 0, 0, 0, time.UTC)

// mailboxSource serves documents that still carry the source label, the way
// the real mailbox query does.
type mailboxSource struct {
	store *state.MemoryStore
	docs  []newsletter.Document
	calls int
	err   error
	// after runs once the documents have been read.
	after func()
}

func (s *mailboxSource) Fetch(context.Context, time.Duration) ([]newsletter.Document, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if s.after != nil {
		defer s.after()
	}
	var out []newsletter.Document
	for _, doc := range s.docs {
		labels := s.store.Get(doc.ID)
		if hasLabel(labels, sourceLabel) && hasLabel(labels, "UNREAD") {
			out = append(out, doc)
		}
	}
	return out, nil
}

func hasLabel(labels []string, want string) bool {
	for _, l := range labels {
		if strings.EqualFold(l, want) {
			return true
		}
	}
	return false
}

// scriptGenerator replies with a well-formed script of exactly words words.
type scriptGenerator struct {
	mu      sync.Mutex
	words   int
	calls   int
	block   chan struct{}
	entered chan struct{}
}

func (g *scriptGenerator) Generate(ctx context.Context, _ string, _ int) (string, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	if g.block != nil {
		if g.entered != nil {
			close(g.entered)
		}
		select {
		case <-g.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	opening := "Good morning and welcome to the briefing."
	closing := "That is all for today, see you tomorrow."
	filler := g.words - len(strings.Fields(opening)) - len(strings.Fields(closing))
	if filler < 1 {
		filler = 1
	}
	body := strings.TrimSpace(strings.Repeat("update ", filler))
	return opening + "\n\n" + body + "\n\n" + closing, nil
}

type fakeSynth struct {
	mu     sync.Mutex
	calls  int
	err    error
	before func()
}

func (s *fakeSynth) Synthesize(context.Context, string, render.Voice) ([]byte, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.before != nil {
		s.before()
	}
	if s.err != nil {
		return nil, s.err
	}
	return []byte("ID3-audio-frame"), nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []delivery.Message
	errs []error
}

func (f *fakeMailer) Send(_ context.Context, msg delivery.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return err
		}
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeMailer) subjects() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, msg := range f.sent {
		out = append(out, msg.Subject)
	}
	return out
}

type fakeObjects struct {
	keys []string
}

func (f *fakeObjects) Upload(_ context.Context, key string, _ []byte, _ string, ttl time.Duration) (delivery.Link, error) {
	f.keys = append(f.keys, key)
	return delivery.Link{
		URL:     "https://objects.example/" + key,
		Key:     key,
		Expires: fetchedAt.Add(ttl),
	}, nil
}

type stubNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (s *stubNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *stubNotifier) has(event notifications.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.events {
		if e == event {
			return true
		}
	}
	return false
}

type stubEvents struct {
	published []events.RunEvent
}

func (s *stubEvents) PublishRun(_ context.Context, event events.RunEvent) error {
	s.published = append(s.published, event)
	return nil
}

type fakeLock struct {
	held     bool
	released int
}

func (l *fakeLock) TryAcquire(context.Context) (bool, error) { return !l.held, nil }
func (l *fakeLock) Release(context.Context) error {
	l.released++
	return nil
}
func (l *fakeLock) Describe() string { return "fake" }

type harness struct {
	store    *state.MemoryStore
	source   *mailboxSource
	gen      *scriptGenerator
	synth    *fakeSynth
	mailer   *fakeMailer
	objects  *fakeObjects
	notifier *stubNotifier
	events   *stubEvents
	recorder *logging.Recorder
	manager  *workflow.Manager
}

type harnessOptions struct {
	attachmentLimit int64
	dryRun          bool
	lock            *fakeLock
}

func fastPolicy() services.Policy {
	p := services.DefaultPolicy()
	p.MaxAttempts = 3
	p.MalformedAttempts = 2
	p.Sleep = func(context.Context, time.Duration) error { return nil }
	return p
}

func newHarness(t *testing.T, docs []newsletter.Document, opts harnessOptions) *harness {
	t.Helper()
	seed := make(map[string][]string, len(docs))
	for _, doc := range docs {
		seed[doc.ID] = []string{"INBOX", "UNREAD", sourceLabel}
	}
	logger, recorder := logging.NewRecorder()
	policy := fastPolicy()

	h := &harness{
		store:    state.NewMemoryStore(seed),
		gen:      &scriptGenerator{words: targetWords},
		synth:    &fakeSynth{},
		mailer:   &fakeMailer{},
		objects:  &fakeObjects{},
		notifier: &stubNotifier{},
		events:   &stubEvents{},
		recorder: recorder,
	}
	h.source = &mailboxSource{store: h.store, docs: docs}

	deliverer := delivery.New(h.mailer, h.objects, delivery.Options{
		Recipient:       "reader@example.com",
		SourceLabel:     sourceLabel,
		AttachmentLimit: opts.attachmentLimit,
		KeyPrefix:       "episodes",
		Location:        time.UTC,
		Policy:          policy,
	}, logger)
	tracker := state.New(h.store, state.Options{
		SourceLabel:    sourceLabel,
		ProcessedLabel: processedLabel,
		DegradedLabel:  degradedLabel,
		Policy:         policy,
	}, logger)

	c := workflow.Collaborators{
		Source:      h.source,
		Prioritizer: prioritizer.New(prioritizer.Options{MaxDocuments: 10}, nil, logger),
		Allocator:   budget.New(logger),
		Assembler:   script.New(h.gen, script.Options{PodcastName: "Morning Letters", WordsPerMinute: 150, Location: time.UTC, Policy: policy}, logger),
		Renderer:    render.New(h.synth, nil, render.Options{WordsPerMinute: 150, Policy: policy}, logger),
		Delivery:    deliverer,
		Tracker:     tracker,
		Notifier:    h.notifier,
		Events:      h.events,
	}
	if opts.lock != nil {
		c.Lock = opts.lock
	}
	h.manager = workflow.NewManager(c, workflow.Options{
		Window:      48 * time.Hour,
		TargetWords: targetWords,
		DryRun:      opts.dryRun,
		Policy:      policy,
	}, logger)
	return h
}

var topics = []string{
	"Rust compiler release adds incremental linking",
	"Central bank holds rates as inflation cools",
	"Orbital launch schedule slips into spring",
	"Coffee futures rally after frost damage",
	"Open source maintainers debate funding models",
	"Marathon training plans for busy parents",
}

var bodyWords = [][]string{
	{"compiler", "borrow", "checker", "linker", "crate", "toolchain", "cargo", "build"},
	{"rates", "inflation", "treasury", "yield", "mortgage", "policy", "committee", "bond"},
	{"rocket", "payload", "orbit", "booster", "launch", "satellite", "pad", "capsule"},
	{"coffee", "arabica", "frost", "harvest", "futures", "roaster", "brazil", "beans"},
	{"maintainer", "sponsor", "license", "foundation", "donation", "burnout", "repo", "grant"},
	{"marathon", "tempo", "mileage", "recovery", "stretch", "pace", "shoes", "hydration"},
}

// sampleDocs builds n distinct newsletters with unrelated bodies.
func sampleDocs(n int) []newsletter.Document {
	docs := make([]newsletter.Document, 0, n)
	for i := 0; i < n; i++ {
		words := bodyWords[i%len(bodyWords)]
		var b strings.Builder
		for j := 0; j < 40; j++ {
			b.WriteString(words[j%len(words)])
			b.WriteString(" ")
		}
		docs = append(docs, newsletter.Document{
			ID:       fmt.Sprintf("msg-%d", i+1),
			ThreadID: fmt.Sprintf("thread-%d", i+1),
			Sender:   fmt.Sprintf("Writer %d <writer%d@letters.example>", i+1, i+1),
			Subject:  topics[i%len(topics)],
			Received: fetchedAt.Add(-time.Duration(i+1) * time.Hour),
			Body:     strings.TrimSpace(b.String()),
			Labels:   []string{"INBOX", "UNREAD", sourceLabel},
		})
	}
	return docs
}

func assertUntouched(t *testing.T, h *harness, docs []newsletter.Document) {
	t.Helper()
	for _, doc := range docs {
		labels := h.store.Get(doc.ID)
		if hasLabel(labels, processedLabel) {
			t.Fatalf("%s unexpectedly marked processed: %v", doc.ID, labels)
		}
		if !hasLabel(labels, "UNREAD") || !hasLabel(labels, sourceLabel) {
			t.Fatalf("%s lost its pending labels: %v", doc.ID, labels)
		}
	}
}

func assertProcessed(t *testing.T, h *harness, id string, degraded bool) {
	t.Helper()
	labels := h.store.Get(id)
	if !hasLabel(labels, processedLabel) {
		t.Fatalf("%s not marked processed: %v", id, labels)
	}
	if hasLabel(labels, "UNREAD") || hasLabel(labels, sourceLabel) {
		t.Fatalf("%s still pending: %v", id, labels)
	}
	if hasLabel(labels, degradedLabel) != degraded {
		t.Fatalf("%s degraded label = %v, want %v (%v)", id, !degraded, degraded, labels)
	}
}

var errMailDown = errors.New("smtp relay refused")
