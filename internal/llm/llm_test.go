package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func sampleRequest() *Request {
	return &Request{
		Messages: []Message{
			{Role: RoleSystem, Content: "be helpful"},
			{Role: RoleUser, Content: "User question: hi"},
		},
		Model:   DefaultModel,
		Private: true,
	}
}

func TestHTTPProviderPostsJSONAndReturnsText(t *testing.T) {
	var got Request
	var method, ctype, auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		ctype = r.Header.Get("Content-Type")
		auth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte("here is the fix"))
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "k", time.Second)
	out, err := p.Complete(context.Background(), sampleRequest())
	require.NoError(t, err)
	require.Equal(t, "here is the fix", out)
	require.Equal(t, "POST", method)
	require.Equal(t, "application/json", ctype)
	require.Equal(t, "Bearer k", auth)
	require.Equal(t, "mistral", got.Model)
	require.True(t, got.Private)
	require.Len(t, got.Messages, 2)
	require.Equal(t, RoleSystem, got.Messages[0].Role)
}

func TestHTTPProviderNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHTTPProvider(srv.URL, "", time.Second).Complete(context.Background(), sampleRequest())
	var se *StatusError
	require.True(t, errors.As(err, &se))
	require.Equal(t, http.StatusServiceUnavailable, se.Code)
}

func TestHTTPProviderUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTPProvider(url, "", time.Second).Complete(context.Background(), sampleRequest())
	require.Error(t, err)
}

func TestOpenAIProvider(t *testing.T) {
	var path, model string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		var body struct {
			Model string `json:"model"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		model = body.Model
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"use a semicolon"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("k", srv.URL)
	out, err := p.Complete(context.Background(), sampleRequest())
	require.NoError(t, err)
	require.Equal(t, "use a semicolon", out)
	require.Equal(t, "/chat/completions", path)
	require.Equal(t, "mistral", model)
}

func TestDummyProviderEchoesQuestion(t *testing.T) {
	out, err := NewDummyProvider(0).Complete(context.Background(), sampleRequest())
	require.NoError(t, err)
	require.Contains(t, out, `"hi"`)

	_, err = NewDummyProvider(0).Complete(context.Background(), &Request{})
	require.Error(t, err)
}

type countingProvider struct{ calls atomic.Int32 }

func (c *countingProvider) Complete(context.Context, *Request) (string, error) {
	c.calls.Add(1)
	return "ok", nil
}

func (c *countingProvider) Name() string { return "counting" }

func TestRateLimitedBlocksPastBurst(t *testing.T) {
	inner := &countingProvider{}
	p := NewRateLimited(inner, 1)

	_, err := p.Complete(context.Background(), sampleRequest())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = p.Complete(ctx, sampleRequest())
	require.Error(t, err)
	require.Equal(t, int32(1), inner.calls.Load())
	require.Equal(t, "counting", p.Name())
}

func TestNew(t *testing.T) {
	p, err := New(Config{Provider: "dummy"})
	require.NoError(t, err)
	require.Equal(t, "dummy", p.Name())

	p, err = New(Config{URL: "http://localhost:1/api", RatePerMinute: 10})
	require.NoError(t, err)
	_, ok := p.(*RateLimited)
	require.True(t, ok)
	require.Equal(t, "http", p.Name())

	p, err = New(Config{Provider: "openai", APIKey: "k"})
	require.NoError(t, err)
	require.Equal(t, "openai", p.Name())

	_, err = New(Config{Provider: "http"})
	require.Error(t, err)

	_, err = New(Config{Provider: "carrier-pigeon"})
	require.Error(t, err)
}
