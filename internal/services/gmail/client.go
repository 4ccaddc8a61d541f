// Package gmail adapts the Gmail API as the mail store: it fetches labelled
// newsletters, reads and writes labels, and sends messages.
package gmail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"letterpod/internal/logging"
	"letterpod/internal/services"
)

const (
	stageName       = "gmail"
	defaultUser     = "me"
	defaultMaxFetch = 100
	pageSize        = 100
)

var scopes = []string{
	gmailapi.GmailReadonlyScope,
	gmailapi.GmailModifyScope,
	gmailapi.GmailSendScope,
}

// Config holds mail store credentials. A refresh token wins over a
// service-account credentials file.
type Config struct {
	User            string
	SourceLabel     string
	MaxFetch        int
	ClientID        string
	ClientSecret    string
	RefreshToken    string
	CredentialsFile string
	Endpoint        string
	HTTPClient      *http.Client
}

// Client talks to one mailbox.
type Client struct {
	svc         *gmailapi.Service
	user        string
	sourceLabel string
	maxFetch    int
	logger      *slog.Logger
	now         func() time.Time

	mu     sync.Mutex
	byName map[string]string
	byID   map[string]string
}

// New authenticates and builds the mailbox client.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	opts, err := clientOptions(ctx, cfg)
	if err != nil {
		return nil, err
	}
	svc, err := gmailapi.NewService(ctx, opts...)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "new", "create gmail client", err)
	}
	user := strings.TrimSpace(cfg.User)
	if user == "" {
		user = defaultUser
	}
	maxFetch := cfg.MaxFetch
	if maxFetch <= 0 {
		maxFetch = defaultMaxFetch
	}
	return &Client{
		svc:         svc,
		user:        user,
		sourceLabel: strings.TrimSpace(cfg.SourceLabel),
		maxFetch:    maxFetch,
		logger:      logging.NewComponentLogger(logger, "gmail"),
		now:         time.Now,
	}, nil
}

func clientOptions(ctx context.Context, cfg Config) ([]option.ClientOption, error) {
	var opts []option.ClientOption
	switch {
	case cfg.HTTPClient != nil:
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	case strings.TrimSpace(cfg.RefreshToken) != "":
		if cfg.ClientID == "" || cfg.ClientSecret == "" {
			return nil, services.Wrap(services.ErrConfiguration, stageName, "auth", "client_id and client_secret are required with a refresh token", nil)
		}
		conf := &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       scopes,
		}
		ts := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: strings.TrimSpace(cfg.RefreshToken)})
		opts = append(opts, option.WithTokenSource(ts))
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		data, err := os.ReadFile(strings.TrimSpace(cfg.CredentialsFile))
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, stageName, "auth", "read service account file", err)
		}
		jwt, err := google.JWTConfigFromJSON(data, scopes...)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, stageName, "auth", "parse service account", err)
		}
		if user := strings.TrimSpace(cfg.User); user != "" && user != defaultUser {
			jwt.Subject = user
		}
		opts = append(opts, option.WithHTTPClient(jwt.Client(ctx)))
	default:
		return nil, services.Wrap(services.ErrConfiguration, stageName, "auth", "no gmail credentials configured", nil)
	}
	if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	return opts, nil
}

// HealthCheck reads the mailbox profile.
func (c *Client) HealthCheck(ctx context.Context) error {
	if _, err := c.svc.Users.GetProfile(c.user).Context(ctx).Do(); err != nil {
		return classify("profile", err)
	}
	return nil
}

// Labels returns the current label names of each message. Messages that no
// longer exist are omitted.
func (c *Client) Labels(ctx context.Context, ids []string) (map[string][]string, error) {
	if err := c.loadLabels(ctx, false); err != nil {
		return nil, err
	}
	out := make(map[string][]string, len(ids))
	for _, id := range ids {
		msg, err := c.svc.Users.Messages.Get(c.user, id).Format("minimal").Context(ctx).Do()
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, classify("labels", err)
		}
		out[id] = c.labelNames(msg.LabelIds)
	}
	return out, nil
}

// Modify adds and removes labels by name on every message in one call.
// Missing labels are created when added and ignored when removed.
func (c *Client) Modify(ctx context.Context, ids []string, add, remove []string) error {
	if len(ids) == 0 {
		return nil
	}
	addIDs := make([]string, 0, len(add))
	for _, name := range add {
		id, err := c.ensureLabel(ctx, name)
		if err != nil {
			return err
		}
		addIDs = append(addIDs, id)
	}
	removeIDs := make([]string, 0, len(remove))
	for _, name := range remove {
		id, ok, err := c.labelID(ctx, name)
		if err != nil {
			return err
		}
		if ok {
			removeIDs = append(removeIDs, id)
		}
	}
	req := &gmailapi.BatchModifyMessagesRequest{
		Ids:            ids,
		AddLabelIds:    addIDs,
		RemoveLabelIds: removeIDs,
	}
	if err := c.svc.Users.Messages.BatchModify(c.user, req).Context(ctx).Do(); err != nil {
		return classify("modify", err)
	}
	c.logger.Debug("labels modified",
		logging.String(logging.FieldEventType, "labels_modified"),
		logging.Int("messages", len(ids)),
		logging.Strings("added", add),
		logging.Strings("removed", remove),
	)
	return nil
}

func (c *Client) ensureLabel(ctx context.Context, name string) (string, error) {
	id, ok, err := c.labelID(ctx, name)
	if err != nil || ok {
		return id, err
	}
	created, err := c.svc.Users.Labels.Create(c.user, &gmailapi.Label{
		Name:                  name,
		LabelListVisibility:   "labelShow",
		MessageListVisibility: "show",
	}).Context(ctx).Do()
	if err != nil {
		return "", classify("create label", err)
	}
	c.mu.Lock()
	c.byName[strings.ToLower(created.Name)] = created.Id
	c.byID[created.Id] = created.Name
	c.mu.Unlock()
	c.logger.Info("label created",
		logging.String(logging.FieldEventType, "label_created"),
		logging.String("label", created.Name),
	)
	return created.Id, nil
}

func (c *Client) labelID(ctx context.Context, name string) (string, bool, error) {
	if err := c.loadLabels(ctx, false); err != nil {
		return "", false, err
	}
	c.mu.Lock()
	id, ok := c.byName[strings.ToLower(name)]
	c.mu.Unlock()
	if ok {
		return id, true, nil
	}
	// Another client may have created it since the cache was filled.
	if err := c.loadLabels(ctx, true); err != nil {
		return "", false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok = c.byName[strings.ToLower(name)]
	return id, ok, nil
}

func (c *Client) loadLabels(ctx context.Context, force bool) error {
	c.mu.Lock()
	loaded := c.byName != nil
	c.mu.Unlock()
	if loaded && !force {
		return nil
	}
	resp, err := c.svc.Users.Labels.List(c.user).Context(ctx).Do()
	if err != nil {
		return classify("labels", err)
	}
	byName := make(map[string]string, len(resp.Labels))
	byID := make(map[string]string, len(resp.Labels))
	for _, l := range resp.Labels {
		byName[strings.ToLower(l.Name)] = l.Id
		byID[l.Id] = l.Name
	}
	c.mu.Lock()
	c.byName, c.byID = byName, byID
	c.mu.Unlock()
	return nil
}

func (c *Client) labelNames(ids []string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if name, ok := c.byID[id]; ok {
			names = append(names, name)
			continue
		}
		names = append(names, id)
	}
	return names
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}

func classify(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, stageName, op, "request timed out", err)
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		msg := fmt.Sprintf("status %d", apiErr.Code)
		switch {
		case apiErr.Code == http.StatusTooManyRequests, apiErr.Code >= http.StatusInternalServerError:
			return services.Wrap(services.ErrTransient, stageName, op, msg, err)
		case apiErr.Code == http.StatusRequestEntityTooLarge, tooLarge(apiErr):
			return services.Wrap(services.ErrConstraint, stageName, op, "message exceeds size limit", err)
		case apiErr.Code == http.StatusUnauthorized, apiErr.Code == http.StatusForbidden && !rateLimited(apiErr):
			return services.Wrap(services.ErrConfiguration, stageName, op, "credentials rejected", err)
		case apiErr.Code == http.StatusForbidden:
			return services.Wrap(services.ErrTransient, stageName, op, "rate limited", err)
		case apiErr.Code == http.StatusNotFound:
			return services.Wrap(services.ErrNotFound, stageName, op, msg, err)
		default:
			return services.Wrap(services.ErrFatal, stageName, op, msg, err)
		}
	}
	return services.Wrap(services.ErrTransient, stageName, op, "request failed", err)
}

func tooLarge(apiErr *googleapi.Error) bool {
	if apiErr.Code != http.StatusBadRequest {
		return false
	}
	msg := strings.ToLower(apiErr.Message)
	return strings.Contains(msg, "too large") || strings.Contains(msg, "size limit")
}

func rateLimited(apiErr *googleapi.Error) bool {
	for _, item := range apiErr.Errors {
		switch item.Reason {
		case "rateLimitExceeded", "userRateLimitExceeded":
			return true
		}
	}
	return false
}
