package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/textproto"
	"strings"
	"time"

	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"

	"letterpod/internal/delivery"
	"letterpod/internal/logging"
	"letterpod/internal/services"
)

const base64LineLength = 76

// Send implements delivery.Mailer. The message is uploaded as raw RFC 822
// media so attachments are not limited by the JSON request size.
func (c *Client) Send(ctx context.Context, msg delivery.Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return services.Wrap(services.ErrConfiguration, stageName, "send", "recipient is not configured", nil)
	}
	raw, err := composeMIME(msg, c.now())
	if err != nil {
		return services.Wrap(services.ErrValidation, stageName, "send", "compose message", err)
	}
	sent, err := c.svc.Users.Messages.Send(c.user, &gmailapi.Message{}).
		Media(bytes.NewReader(raw), googleapi.ContentType("message/rfc822")).
		Context(ctx).
		Do()
	if err != nil {
		return classify("send", err)
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "mail_sent"),
		logging.String("subject", msg.Subject),
		logging.Int("bytes", len(raw)),
	}
	if sent != nil {
		attrs = append(attrs, logging.String("message_id", sent.Id))
	}
	c.logger.Info("message sent", logging.Args(attrs...)...)
	return nil
}

// composeMIME renders msg as a multipart/mixed RFC 822 message, or a single
// text/plain part when there is no attachment.
func composeMIME(msg delivery.Message, now time.Time) ([]byte, error) {
	var buf bytes.Buffer
	writeHeader(&buf, "To", msg.To)
	writeHeader(&buf, "Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	writeHeader(&buf, "Date", now.Format(time.RFC1123Z))
	writeHeader(&buf, "MIME-Version", "1.0")

	if msg.Attachment == nil {
		writeHeader(&buf, "Content-Type", "text/plain; charset=utf-8")
		writeHeader(&buf, "Content-Transfer-Encoding", "quoted-printable")
		buf.WriteString("\r\n")
		if err := writeQuotedPrintable(&buf, msg.Body); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	mw := multipart.NewWriter(&buf)
	writeHeader(&buf, "Content-Type", "multipart/mixed; boundary="+mw.Boundary())
	buf.WriteString("\r\n")

	textHeader := textproto.MIMEHeader{}
	textHeader.Set("Content-Type", "text/plain; charset=utf-8")
	textHeader.Set("Content-Transfer-Encoding", "quoted-printable")
	text, err := mw.CreatePart(textHeader)
	if err != nil {
		return nil, err
	}
	if err := writeQuotedPrintable(text, msg.Body); err != nil {
		return nil, err
	}

	att := msg.Attachment
	contentType := att.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	attHeader := textproto.MIMEHeader{}
	attHeader.Set("Content-Type", mime.FormatMediaType(baseType(contentType), map[string]string{"name": att.Name}))
	attHeader.Set("Content-Transfer-Encoding", "base64")
	attHeader.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": att.Name}))
	part, err := mw.CreatePart(attHeader)
	if err != nil {
		return nil, err
	}
	encoded := base64.StdEncoding.EncodeToString(att.Data)
	for len(encoded) > base64LineLength {
		if _, err := fmt.Fprintf(part, "%s\r\n", encoded[:base64LineLength]); err != nil {
			return nil, err
		}
		encoded = encoded[base64LineLength:]
	}
	if _, err := fmt.Fprintf(part, "%s\r\n", encoded); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeHeader(buf *bytes.Buffer, key, value string) {
	buf.WriteString(key)
	buf.WriteString(": ")
	buf.WriteString(value)
	buf.WriteString("\r\n")
}

func writeQuotedPrintable(w io.Writer, body string) error {
	qp := quotedprintable.NewWriter(w)
	if _, err := qp.Write([]byte(body)); err != nil {
		return err
	}
	return qp.Close()
}

func baseType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "application/octet-stream"
	}
	return mediaType
}
