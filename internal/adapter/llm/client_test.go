package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wompbot/internal/game/questions"
	"wompbot/internal/game/trivia"
)

func TestClientComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-test", req.Model)
		assert.Equal(t, 512, req.MaxTokens)
		require.Len(t, req.Messages, 2)
		assert.Contains(t, req.Messages[0].Content, "[schema]")
		assert.Equal(t, "give me trivia", req.Messages[1].Content)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"index":0,"message":{"role":"assistant","content":"[]"}}]}`)
	}))
	defer server.Close()

	client := NewClient(Options{BaseURL: server.URL + "/v1/", APIKey: "secret", Model: "gpt-test"})
	text, err := client.Complete(context.Background(), "give me trivia", "[schema]", 512)
	require.NoError(t, err)
	assert.Equal(t, "[]", text)
}

func TestClientComplete_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"bad model"}}`)
	}))
	defer server.Close()

	client := NewClient(Options{BaseURL: server.URL, MaxRetries: 3, RetryDelay: time.Millisecond})
	_, err := client.Complete(context.Background(), "p", "", 0)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "bad model", apiErr.Message)
	assert.EqualValues(t, 1, calls.Load())
}

func TestClientComplete_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	}))
	defer server.Close()

	client := NewClient(Options{BaseURL: server.URL, MaxRetries: 2, RetryDelay: time.Millisecond})
	text, err := client.Complete(context.Background(), "p", "", 0)
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.EqualValues(t, 3, calls.Load())
}

func TestClientComplete_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[]}`)
	}))
	defer server.Close()

	_, err := NewClient(Options{BaseURL: server.URL}).Complete(context.Background(), "p", "", 0)
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestMockClientFeedsGenerator(t *testing.T) {
	gen := questions.NewGenerator(NewMockClient(), 0)

	qs, err := gen.Generate(context.Background(), trivia.New(), "anything", "easy", 10)
	require.NoError(t, err)
	require.Len(t, qs, 10)
	assert.Equal(t, "Paris", qs[0].Answer)
	assert.Equal(t, []string{"6"}, qs[3].Alternatives)
	assert.Equal(t, "Paris", qs[8].Answer)
}
