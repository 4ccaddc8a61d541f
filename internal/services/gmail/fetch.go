package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/text/encoding/htmlindex"
	gmailapi "google.golang.org/api/gmail/v1"

	"letterpod/internal/logging"
	"letterpod/internal/newsletter"
	"letterpod/internal/services"
	"letterpod/internal/textutil"
)

// Query builds the search expression for unread messages carrying label
// received on or after the day containing since.
func Query(label string, since time.Time) string {
	if strings.ContainsAny(label, " \t") {
		label = `"` + label + `"`
	}
	return fmt.Sprintf("label:%s is:unread after:%s", label, since.Format("2006/01/02"))
}

// Fetch returns unread messages under the source label received within the
// trailing window.
func (c *Client) Fetch(ctx context.Context, window time.Duration) ([]newsletter.Document, error) {
	if c.sourceLabel == "" {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "fetch", "source label is not configured", nil)
	}
	if _, ok, err := c.labelID(ctx, c.sourceLabel); err != nil {
		return nil, err
	} else if !ok {
		logging.WarnWithContext(c.logger, "source label not found", "source_label_missing",
			logging.String("label", c.sourceLabel),
			logging.String(logging.FieldErrorHint, "create the label in Gmail and apply it to newsletters"),
			logging.String(logging.FieldImpact, "no newsletters can be fetched"),
		)
		return nil, nil
	}

	cutoff := c.now().Add(-window)
	query := Query(c.sourceLabel, cutoff)
	ids, err := c.listIDs(ctx, query)
	if err != nil {
		return nil, err
	}
	c.logger.Info("messages listed",
		logging.String(logging.FieldEventType, "fetch_listed"),
		logging.String("query", query),
		logging.Int("count", len(ids)),
	)

	docs := make([]newsletter.Document, 0, len(ids))
	for _, id := range ids {
		msg, err := c.svc.Users.Messages.Get(c.user, id).Format("full").Context(ctx).Do()
		if err != nil {
			if isNotFound(err) {
				logging.WarnWithContext(c.logger, "message vanished before fetch", "fetch_message_missing",
					logging.String(logging.FieldDocumentID, id),
					logging.String(logging.FieldImpact, "message skipped"),
				)
				continue
			}
			return nil, classify("get", err)
		}
		doc := c.toDocument(msg)
		if window > 0 && doc.Received.Before(cutoff) {
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (c *Client) listIDs(ctx context.Context, query string) ([]string, error) {
	var ids []string
	pageToken := ""
	for len(ids) < c.maxFetch {
		call := c.svc.Users.Messages.List(c.user).Q(query).MaxResults(pageSize).Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			return nil, classify("list", err)
		}
		for _, m := range resp.Messages {
			ids = append(ids, m.Id)
			if len(ids) == c.maxFetch {
				break
			}
		}
		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}
	return ids, nil
}

func (c *Client) toDocument(msg *gmailapi.Message) newsletter.Document {
	doc := newsletter.Document{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Subject:  "No Subject",
		Sender:   "Unknown",
		Labels:   c.labelNames(msg.LabelIds),
	}
	if msg.InternalDate > 0 {
		doc.Received = time.UnixMilli(msg.InternalDate)
	}
	if msg.Payload == nil {
		return doc
	}
	dec := new(mime.WordDecoder)
	for _, h := range msg.Payload.Headers {
		switch strings.ToLower(h.Name) {
		case "subject":
			doc.Subject = decodeHeader(dec, h.Value)
		case "from":
			doc.Sender = decodeHeader(dec, h.Value)
		case "date":
			if doc.Received.IsZero() {
				if t, err := mail.ParseDate(h.Value); err == nil {
					doc.Received = t
				}
			}
		}
	}
	doc.Body = extractBody(msg.Payload)
	return doc
}

func decodeHeader(dec *mime.WordDecoder, value string) string {
	decoded, err := dec.DecodeHeader(value)
	if err != nil {
		return strings.TrimSpace(value)
	}
	return strings.TrimSpace(decoded)
}

// extractBody prefers text/plain, walking nested parts, and falls back to
// HTML converted to text.
func extractBody(part *gmailapi.MessagePart) string {
	if text := findPart(part, "text/plain"); text != "" {
		return textutil.NormalizeWhitespace(text)
	}
	if html := findPart(part, "text/html"); html != "" {
		return textutil.HTMLToText(html)
	}
	return ""
}

func findPart(part *gmailapi.MessagePart, mimeType string) string {
	if part == nil {
		return ""
	}
	if strings.EqualFold(part.MimeType, mimeType) && part.Filename == "" && part.Body != nil && part.Body.Data != "" {
		data, err := decodeData(part.Body.Data)
		if err == nil {
			return toUTF8(data, charsetOf(part))
		}
	}
	for _, child := range part.Parts {
		if text := findPart(child, mimeType); text != "" {
			return text
		}
	}
	return ""
}

func decodeData(data string) ([]byte, error) {
	if out, err := base64.URLEncoding.DecodeString(data); err == nil {
		return out, nil
	}
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
}

func charsetOf(part *gmailapi.MessagePart) string {
	for _, h := range part.Headers {
		if !strings.EqualFold(h.Name, "Content-Type") {
			continue
		}
		if _, params, err := mime.ParseMediaType(h.Value); err == nil {
			return params["charset"]
		}
	}
	return ""
}

func toUTF8(data []byte, charset string) string {
	charset = strings.ToLower(strings.TrimSpace(charset))
	if charset == "" || charset == "utf-8" || charset == "us-ascii" {
		return string(data)
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return string(data)
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return string(data)
	}
	return string(out)
}
