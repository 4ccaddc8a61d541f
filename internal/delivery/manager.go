package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"time"

	"letterpod/internal/logging"
	"letterpod/internal/newsletter"
	"letterpod/internal/services"
)

const (
	// DefaultAttachmentLimit mirrors the mail provider's 25 MB ceiling.
	DefaultAttachmentLimit int64 = 25 << 20
	DefaultLinkTTL               = 7 * 24 * time.Hour
	stageName                    = "delivering"
)

// Options tunes delivery.
type Options struct {
	Recipient       string
	SourceLabel     string
	AttachmentLimit int64
	LinkTTL         time.Duration
	KeyPrefix       string
	Location        *time.Location
	Policy          services.Policy
}

// Receipt describes what was actually sent.
type Receipt struct {
	Result     newsletter.RenderResult
	Subject    string
	Attachment string
	Bytes      int64
}

// Manager composes and sends episode, no-content, and failure messages.
type Manager struct {
	mailer Mailer
	store  ObjectStore
	opts   Options
	logger *slog.Logger
	now    func() time.Time
}

// New constructs a Manager. store may be nil when no large-object store is
// configured; oversize artifacts then fail delivery.
func New(mailer Mailer, store ObjectStore, opts Options, logger *slog.Logger) *Manager {
	if opts.AttachmentLimit <= 0 {
		opts.AttachmentLimit = DefaultAttachmentLimit
	}
	if opts.LinkTTL <= 0 {
		opts.LinkTTL = DefaultLinkTTL
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Manager{
		mailer: mailer,
		store:  store,
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "delivery"),
		now:    time.Now,
	}
}

// Deliver sends the render result to the recipient. The returned receipt
// carries the final result, which is LinkOnly when the artifact had to be
// hosted.
func (m *Manager) Deliver(ctx context.Context, set newsletter.InclusionSet, result newsletter.RenderResult) (Receipt, error) {
	if result == nil {
		return Receipt{}, services.Wrap(services.ErrValidation, stageName, "deliver", "render result is required", nil)
	}
	date := m.now().In(m.opts.Location)
	att, err := attachmentFor(result, date)
	if err != nil {
		return Receipt{}, err
	}
	size := int64(len(att.Data))

	if size > m.opts.AttachmentLimit {
		cause := services.Wrap(services.ErrConstraint, stageName, "attach",
			fmt.Sprintf("attachment is %s, limit %s", humanBytes(size), humanBytes(m.opts.AttachmentLimit)), nil)
		return m.deliverLink(ctx, set, result, att, date, cause)
	}

	msg := Message{
		To:      m.opts.Recipient,
		Subject: EpisodeSubject(date),
		Body: episodeBody(bodyInput{
			Date: date, Set: set, Result: result, FileName: att.Name, SizeBytes: size, Limit: m.opts.AttachmentLimit,
		}),
		Attachment: &att,
	}
	err = m.opts.Policy.Do(ctx, "send episode", func(ctx context.Context) error {
		return m.mailer.Send(ctx, msg)
	})
	if services.Classify(err) == services.KindConstraint {
		return m.deliverLink(ctx, set, result, att, date, err)
	}
	if err != nil {
		return Receipt{}, err
	}
	m.logger.Info("episode delivered",
		logging.String(logging.FieldEventType, "delivery_sent"),
		logging.String("artifact", string(result.Kind())),
		logging.String("attachment", att.Name),
		logging.Int64("bytes", size),
	)
	return Receipt{Result: result, Subject: msg.Subject, Attachment: att.Name, Bytes: size}, nil
}

func (m *Manager) deliverLink(ctx context.Context, set newsletter.InclusionSet, result newsletter.RenderResult, att Attachment, date time.Time, cause error) (Receipt, error) {
	size := int64(len(att.Data))
	logging.WarnWithContext(m.logger, "attachment exceeds mail ceiling; hosting artifact", "delivery_oversize",
		logging.Int64("bytes", size),
		logging.Int64("limit", m.opts.AttachmentLimit),
		logging.Error(cause),
		logging.String(logging.FieldErrorHint, "large-object store will serve a download link"),
		logging.String(logging.FieldImpact, "recipient receives a link instead of an attachment"),
	)
	if m.store == nil {
		return Receipt{}, services.Fatal(stageName, "artifact exceeds attachment ceiling and no object store is configured", cause)
	}

	key := path.Join(m.opts.KeyPrefix, att.Name)
	link, err := services.Retry(ctx, m.opts.Policy, "upload artifact", func(ctx context.Context) (Link, error) {
		return m.store.Upload(ctx, key, att.Data, att.ContentType, m.opts.LinkTTL)
	})
	if err != nil {
		return Receipt{}, err
	}

	reason := ""
	if text, ok := result.(newsletter.TextOnly); ok {
		reason = text.Reason
	}
	linked := newsletter.LinkOnly{
		URL:     link.URL,
		Key:     link.Key,
		Expires: link.Expires,
		Size:    size,
		Hosted:  result.Kind(),
		Reason:  reason,
	}
	msg := Message{
		To:      m.opts.Recipient,
		Subject: EpisodeSubject(date),
		Body: episodeBody(bodyInput{
			Date: date, Set: set, Result: linked, FileName: att.Name, SizeBytes: size, Limit: m.opts.AttachmentLimit,
		}),
	}
	if err := m.opts.Policy.Do(ctx, "send link", func(ctx context.Context) error {
		return m.mailer.Send(ctx, msg)
	}); err != nil {
		return Receipt{}, err
	}
	m.logger.Info("episode link delivered",
		logging.String(logging.FieldEventType, "delivery_link_sent"),
		logging.String("hosted", string(linked.Hosted)),
		logging.String("key", linked.Key),
		logging.Int64("bytes", size),
	)
	return Receipt{Result: linked, Subject: msg.Subject, Attachment: att.Name, Bytes: size}, nil
}

// SendNoContent tells the recipient nothing was found today.
func (m *Manager) SendNoContent(ctx context.Context) error {
	msg := noContentMessage(m.opts.Recipient, m.opts.SourceLabel, m.now().In(m.opts.Location))
	if err := m.opts.Policy.Do(ctx, "send no-content notice", func(ctx context.Context) error {
		return m.mailer.Send(ctx, msg)
	}); err != nil {
		return err
	}
	m.logger.Info("no-content notice sent", logging.String(logging.FieldEventType, "delivery_no_content"))
	return nil
}

// SendFailure tells the recipient the run failed and nothing was consumed.
func (m *Manager) SendFailure(ctx context.Context, runErr error) error {
	msg := failureMessage(m.opts.Recipient, m.now().In(m.opts.Location), runErr)
	if err := m.opts.Policy.Do(ctx, "send failure notice", func(ctx context.Context) error {
		return m.mailer.Send(ctx, msg)
	}); err != nil {
		return err
	}
	m.logger.Info("failure notice sent",
		logging.String(logging.FieldEventType, "delivery_failure_notice"),
		logging.String("failure_class", services.FailureClass(runErr)),
	)
	return nil
}

func attachmentFor(result newsletter.RenderResult, date time.Time) (Attachment, error) {
	switch r := result.(type) {
	case newsletter.FullAudio:
		if len(r.Audio) == 0 {
			return Attachment{}, services.Wrap(services.ErrValidation, stageName, "attach", "audio payload is empty", nil)
		}
		contentType := "audio/mpeg"
		if r.Format == "ogg_opus" {
			contentType = "audio/ogg"
		}
		return Attachment{Name: FileName(date, newsletter.KindFullAudio), ContentType: contentType, Data: r.Audio}, nil
	case newsletter.TextOnly:
		return Attachment{
			Name:        FileName(date, newsletter.KindTextOnly),
			ContentType: "text/plain; charset=utf-8",
			Data:        []byte(r.Text),
		}, nil
	default:
		return Attachment{}, services.Wrap(services.ErrValidation, stageName, "attach",
			fmt.Sprintf("cannot attach %s result", result.Kind()), nil)
	}
}
