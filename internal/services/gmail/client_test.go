package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"letterpod/internal/delivery"
	"letterpod/internal/services"
)

type fakeMailbox struct {
	mu       sync.Mutex
	labels   []map[string]string
	messages map[string]string
	pages    [][]string
	queries  []string
	modify   map[string][]string
	sent     string
	created  []string
}

func (f *fakeMailbox) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	path := r.URL.Path
	switch {
	case strings.HasSuffix(path, "/messages/send"):
		body, _ := io.ReadAll(r.Body)
		f.sent = string(body)
		_, _ = io.WriteString(w, `{"id":"sent-1"}`)
	case strings.HasSuffix(path, "/messages/batchModify"):
		var req map[string][]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.modify = req
		w.WriteHeader(http.StatusNoContent)
	case strings.HasSuffix(path, "/labels") && r.Method == http.MethodPost:
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		id := "Label_new_" + req["name"]
		f.created = append(f.created, req["name"])
		f.labels = append(f.labels, map[string]string{"id": id, "name": req["name"]})
		_ = json.NewEncoder(w).Encode(map[string]string{"id": id, "name": req["name"]})
	case strings.HasSuffix(path, "/labels"):
		_ = json.NewEncoder(w).Encode(map[string]any{"labels": f.labels})
	case strings.HasSuffix(path, "/messages"):
		f.queries = append(f.queries, r.URL.Query().Get("q"))
		page := 0
		if tok := r.URL.Query().Get("pageToken"); tok != "" {
			page = 1
		}
		var msgs []map[string]string
		for _, id := range f.pages[page] {
			msgs = append(msgs, map[string]string{"id": id})
		}
		resp := map[string]any{"messages": msgs}
		if page+1 < len(f.pages) {
			resp["nextPageToken"] = "next"
		}
		_ = json.NewEncoder(w).Encode(resp)
	case strings.Contains(path, "/messages/"):
		id := path[strings.LastIndex(path, "/")+1:]
		body, ok := f.messages[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error":{"code":404,"message":"Not Found"}}`)
			return
		}
		_, _ = io.WriteString(w, body)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func b64(s string) string { return base64.URLEncoding.EncodeToString([]byte(s)) }

func messageJSON(id string, received time.Time, payload string) string {
	return `{"id":"` + id + `","threadId":"t-` + id + `","labelIds":["Label_src","UNREAD"],"internalDate":"` +
		jsonInt(received.UnixMilli()) + `","payload":` + payload + `}`
}

func jsonInt(v int64) string {
	out, _ := json.Marshal(v)
	return string(out)
}

func newTestClient(t *testing.T, box *fakeMailbox, now time.Time) *Client {
	t.Helper()
	server := httptest.NewServer(box)
	t.Cleanup(server.Close)
	client, err := New(context.Background(), Config{
		SourceLabel: "newsletters-to-podcast",
		HTTPClient:  server.Client(),
		Endpoint:    server.URL + "/",
	}, nil)
	require.NoError(t, err)
	client.now = func() time.Time { return now }
	return client
}

func defaultLabels() []map[string]string {
	return []map[string]string{
		{"id": "Label_src", "name": "newsletters-to-podcast"},
		{"id": "UNREAD", "name": "UNREAD"},
	}
}

func TestFetchParsesMessages(t *testing.T) {
	now := time.Date(2025, 3, 11, 6, 0, 0, 0, time.UTC)
	plain := `{"mimeType":"multipart/alternative","headers":[{"name":"Subject","value":"=?utf-8?q?Rates_hold?="},{"name":"From","value":"Morning Brew <crew@brew.com>"}],` +
		`"parts":[{"mimeType":"text/html","body":{"data":"` + b64("<p>html version</p>") + `"}},` +
		`{"mimeType":"text/plain","headers":[{"name":"Content-Type","value":"text/plain; charset=utf-8"}],"body":{"data":"` + b64("Plain   body\r\n\r\n\r\nSecond") + `"}}]}`
	html := `{"mimeType":"text/html","headers":[{"name":"Subject","value":"Weekly"},{"name":"From","value":"dev@weekly.dev"}],` +
		`"body":{"data":"` + b64("<html><body><p>Compiler news</p><script>x()</script></body></html>") + `"}}`
	stale := `{"mimeType":"text/plain","headers":[{"name":"Subject","value":"Old"}],"body":{"data":"` + b64("old") + `"}}`

	box := &fakeMailbox{
		labels: defaultLabels(),
		pages:  [][]string{{"m1", "gone"}, {"m2", "m3"}},
		messages: map[string]string{
			"m1": messageJSON("m1", now.Add(-2*time.Hour), plain),
			"m2": messageJSON("m2", now.Add(-3*time.Hour), html),
			"m3": messageJSON("m3", now.Add(-30*time.Hour), stale),
		},
	}
	client := newTestClient(t, box, now)

	docs, err := client.Fetch(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, "m1", docs[0].ID)
	assert.Equal(t, "t-m1", docs[0].ThreadID)
	assert.Equal(t, "Rates hold", docs[0].Subject)
	assert.Equal(t, "Morning Brew <crew@brew.com>", docs[0].Sender)
	assert.Equal(t, "Plain body\n\nSecond", docs[0].Body)
	assert.Equal(t, []string{"newsletters-to-podcast", "UNREAD"}, docs[0].Labels)
	assert.True(t, docs[0].Received.Equal(now.Add(-2*time.Hour)))

	assert.Equal(t, "Compiler news", docs[1].Body)
	require.Len(t, box.queries, 2)
	assert.Equal(t, "label:newsletters-to-podcast is:unread after:2025/03/10", box.queries[0])
}

func TestFetchHonoursMaxFetch(t *testing.T) {
	now := time.Date(2025, 3, 11, 6, 0, 0, 0, time.UTC)
	payload := `{"mimeType":"text/plain","body":{"data":"` + b64("body") + `"}}`
	box := &fakeMailbox{
		labels: defaultLabels(),
		pages:  [][]string{{"a", "b", "c"}},
		messages: map[string]string{
			"a": messageJSON("a", now, payload),
			"b": messageJSON("b", now, payload),
			"c": messageJSON("c", now, payload),
		},
	}
	client := newTestClient(t, box, now)
	client.maxFetch = 2

	docs, err := client.Fetch(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestFetchMissingSourceLabelReturnsNothing(t *testing.T) {
	box := &fakeMailbox{labels: []map[string]string{{"id": "UNREAD", "name": "UNREAD"}}}
	client := newTestClient(t, box, time.Now())

	docs, err := client.Fetch(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.Empty(t, box.queries)
}

func TestModifyCreatesMissingLabels(t *testing.T) {
	box := &fakeMailbox{labels: defaultLabels()}
	client := newTestClient(t, box, time.Now())

	err := client.Modify(context.Background(), []string{"m1", "m2"},
		[]string{"podcast-processed"}, []string{"UNREAD", "newsletters-to-podcast", "never-existed"})
	require.NoError(t, err)

	assert.Equal(t, []string{"podcast-processed"}, box.created)
	assert.Equal(t, []string{"m1", "m2"}, box.modify["ids"])
	assert.Equal(t, []string{"Label_new_podcast-processed"}, box.modify["addLabelIds"])
	assert.Equal(t, []string{"UNREAD", "Label_src"}, box.modify["removeLabelIds"])
}

func TestLabelsSkipsVanishedMessages(t *testing.T) {
	box := &fakeMailbox{
		labels:   append(defaultLabels(), map[string]string{"id": "Label_done", "name": "podcast-processed"}),
		messages: map[string]string{"m1": `{"id":"m1","labelIds":["Label_done"]}`},
	}
	client := newTestClient(t, box, time.Now())

	labels, err := client.Labels(context.Background(), []string{"m1", "gone"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"m1": {"podcast-processed"}}, labels)
}

func TestSendUploadsRawMessage(t *testing.T) {
	box := &fakeMailbox{labels: defaultLabels()}
	client := newTestClient(t, box, time.Date(2025, 3, 11, 6, 0, 0, 0, time.UTC))

	err := client.Send(context.Background(), delivery.Message{
		To:      "reader@example.com",
		Subject: "Your Daily Newsletter Podcast - March 11, 2025",
		Body:    "Good morning!",
		Attachment: &delivery.Attachment{
			Name: "newsletter-podcast-2025-03-11.mp3", ContentType: "audio/mpeg", Data: []byte("ID3audio"),
		},
	})
	require.NoError(t, err)
	assert.Contains(t, box.sent, "To: reader@example.com")
	assert.Contains(t, box.sent, "filename=newsletter-podcast-2025-03-11.mp3")
}

func TestSendRequiresRecipient(t *testing.T) {
	client := newTestClient(t, &fakeMailbox{}, time.Now())
	err := client.Send(context.Background(), delivery.Message{Subject: "x"})
	assert.ErrorIs(t, err, services.ErrConfiguration)
}

func TestComposeMIMEMultipart(t *testing.T) {
	raw, err := composeMIME(delivery.Message{
		To:      "reader@example.com",
		Subject: "Café briefing",
		Body:    "Hello there",
		Attachment: &delivery.Attachment{
			Name: "script.txt", ContentType: "text/plain; charset=utf-8", Data: []byte(strings.Repeat("a", 200)),
		},
	}, time.Date(2025, 3, 11, 6, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	msg, err := mail.ReadMessage(strings.NewReader(string(raw)))
	require.NoError(t, err)
	subject, err := new(mime.WordDecoder).DecodeHeader(msg.Header.Get("Subject"))
	require.NoError(t, err)
	assert.Equal(t, "Café briefing", subject)

	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/mixed", mediaType)

	mr := multipart.NewReader(msg.Body, params["boundary"])
	text, err := mr.NextPart()
	require.NoError(t, err)
	body, _ := io.ReadAll(text)
	assert.Equal(t, "Hello there", string(body))

	att, err := mr.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "script.txt", att.FileName())
	encoded, _ := io.ReadAll(att)
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(string(encoded), "\r\n", ""))
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("a", 200), string(decoded))
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  *googleapi.Error
		want services.Kind
	}{
		{&googleapi.Error{Code: 503}, services.KindTransient},
		{&googleapi.Error{Code: 429}, services.KindTransient},
		{&googleapi.Error{Code: 413}, services.KindConstraint},
		{&googleapi.Error{Code: 400, Message: "Message too large"}, services.KindConstraint},
		{&googleapi.Error{Code: 401}, services.KindFatal},
		{&googleapi.Error{Code: 403, Errors: []googleapi.ErrorItem{{Reason: "userRateLimitExceeded"}}}, services.KindTransient},
		{&googleapi.Error{Code: 400}, services.KindFatal},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, services.Classify(classify("op", tc.err)), "status %d", tc.err.Code)
	}
}

func TestQueryQuotesLabelsWithSpaces(t *testing.T) {
	since := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, `label:"my letters" is:unread after:2025/01/02`, Query("my letters", since))
}
