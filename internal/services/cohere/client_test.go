package cohere

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	cohere "github.com/cohere-ai/cohere-go/v2"
	"github.com/cohere-ai/cohere-go/v2/option"
	"github.com/stretchr/testify/require"

	"letterpod/internal/services"
)

type fakeChat struct {
	got  *cohere.ChatRequest
	resp *cohere.NonStreamedChatResponse
	err  error
}

func (f *fakeChat) Chat(_ context.Context, req *cohere.ChatRequest, _ ...option.RequestOption) (*cohere.NonStreamedChatResponse, error) {
	f.got = req
	return f.resp, f.err
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(Config{})
	require.ErrorIs(t, err, services.ErrConfiguration)
}

func TestGenerateSendsPromptAndSettings(t *testing.T) {
	api := &fakeChat{resp: &cohere.NonStreamedChatResponse{Text: "  Hello listeners.  "}}
	client := newWithAPI(api, Config{Model: "command-r"})

	text, err := client.Generate(context.Background(), "write it", 7000)
	require.NoError(t, err)
	require.Equal(t, "Hello listeners.", text)
	require.Equal(t, "write it", api.got.Message)
	require.Equal(t, "command-r", *api.got.Model)
	require.Equal(t, 7000, *api.got.MaxTokens)
	require.InDelta(t, 0.7, *api.got.Temperature, 1e-9)
	require.NotNil(t, api.got.Preamble)
}

func TestGenerateEmptyTextIsMalformed(t *testing.T) {
	client := newWithAPI(&fakeChat{resp: &cohere.NonStreamedChatResponse{Text: " "}}, Config{})
	_, err := client.Generate(context.Background(), "write it", 0)
	require.ErrorIs(t, err, services.ErrMalformed)
}

func TestGenerateClassifiesAPIErrors(t *testing.T) {
	cases := map[int]services.Kind{
		http.StatusServiceUnavailable: services.KindTransient,
		http.StatusUnauthorized:       services.KindFatal,
		http.StatusBadRequest:         services.KindFatal,
	}
	for status, want := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"message":"nope"}`))
		}))
		client, err := New(Config{APIKey: "key", BaseURL: server.URL})
		require.NoError(t, err)
		_, err = client.Generate(context.Background(), "write it", 0)
		server.Close()
		require.Error(t, err)
		require.Equal(t, want, services.Classify(err), "status %d: %v", status, err)
	}
}

func TestGenerateAgainstServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"Good morning.","generation_id":"g1","finish_reason":"COMPLETE"}`))
	}))
	defer server.Close()

	client, err := New(Config{APIKey: "key", BaseURL: server.URL})
	require.NoError(t, err)
	text, err := client.Generate(context.Background(), "write it", 0)
	require.NoError(t, err)
	require.Equal(t, "Good morning.", text)
}

func TestGenerateNetworkErrorIsTransient(t *testing.T) {
	client := newWithAPI(&fakeChat{err: errors.New("connection reset")}, Config{})
	_, err := client.Generate(context.Background(), "write it", 0)
	require.ErrorIs(t, err, services.ErrTransient)
}
