package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComplete(t *testing.T) {
	var gotReq chatRequest
	var gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Write([]byte(`{"choices":[{"message":{"content":"hello there"}}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "llama-3.3-70b-versatile", "sk-test")
	got, err := c.Complete(context.Background(), "say hi", 0.7, 100)
	require.NoError(t, err)
	assert.Equal(t, "hello there", got)

	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "llama-3.3-70b-versatile", gotReq.Model)
	require.Len(t, gotReq.Messages, 1)
	assert.Equal(t, "user", gotReq.Messages[0].Role)
	assert.Equal(t, "say hi", gotReq.Messages[0].Content)
	assert.Equal(t, 0.7, gotReq.Temperature)
	assert.Equal(t, 100, gotReq.MaxTokens)
}

func TestCompleteAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limit exceeded"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "m", "sk-test")
	_, err := c.Complete(context.Background(), "x", 0.7, 10)
	assert.ErrorContains(t, err, "rate limit exceeded")
}

func TestCompleteNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "m", "sk-test")
	_, err := c.Complete(context.Background(), "x", 0.7, 10)
	assert.ErrorContains(t, err, "no choices")
}

func TestCompleteRequiresKey(t *testing.T) {
	t.Setenv("LLM_API_KEY", "")
	c := New("http://localhost", "m", "")
	_, err := c.Complete(context.Background(), "x", 0.7, 10)
	assert.ErrorContains(t, err, "LLM_API_KEY")
}
