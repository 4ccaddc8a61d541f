package delivery

import (
	"context"
	"time"
)

// Attachment is a file carried by a Message.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// Message is one outbound email.
type Message struct {
	To         string
	Subject    string
	Body       string
	Attachment *Attachment
}

// Mailer sends messages through the mail store.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Link is a time-limited download URL for a hosted object.
type Link struct {
	URL     string
	Key     string
	Expires time.Time
}

// ObjectStore hosts artifacts too large to attach.
type ObjectStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string, ttl time.Duration) (Link, error)
}
