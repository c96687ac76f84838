package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/mealsize/internal/vision"
)

// capturedRequest mirrors the subset of the chat completions request the
// tests assert on.
type capturedRequest struct {
	Model     string `json:"model"`
	MaxTokens int    `json:"max_tokens"`
	Messages  []struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	} `json:"messages"`
}

type contentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	ImageURL struct {
		URL string `json:"url"`
	} `json:"image_url"`
}

func completion(content string) map[string]interface{} {
	return map[string]interface{}{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   DefaultModel,
		"choices": []map[string]interface{}{
			{
				"index":         0,
				"message":       map[string]interface{}{"role": "assistant", "content": content},
				"finish_reason": "stop",
			},
		},
	}
}

func TestOpenAIClassify(t *testing.T) {
	var got capturedRequest
	var gotAuth, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(completion("heavy")); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	classifier := NewOpenAIClassifier("", server.URL+"/v1")

	answer, err := classifier.Classify(context.Background(), "sk-test", "https://x/y.jpg")
	require.NoError(t, err)
	assert.Equal(t, "heavy", answer)

	assert.Equal(t, "/v1/chat/completions", gotPath)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, DefaultModel, got.Model)
	assert.Equal(t, vision.MaxOutputTokens, got.MaxTokens)
	require.Len(t, got.Messages, 2)

	assert.Equal(t, "system", got.Messages[0].Role)
	var system string
	require.NoError(t, json.Unmarshal(got.Messages[0].Content, &system))
	assert.Equal(t, vision.SystemPrompt, system)

	assert.Equal(t, "user", got.Messages[1].Role)
	var parts []contentPart
	require.NoError(t, json.Unmarshal(got.Messages[1].Content, &parts))
	require.Len(t, parts, 2)
	assert.Equal(t, "text", parts[0].Type)
	assert.Equal(t, vision.UserPrompt, parts[0].Text)
	assert.Equal(t, "image_url", parts[1].Type)
	assert.Equal(t, "https://x/y.jpg", parts[1].ImageURL.URL)
}

func TestOpenAIClassifyReturnsRawAnswer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completion(" Light \n"))
	}))
	defer server.Close()

	answer, err := NewOpenAIClassifier("gpt-4o", server.URL).Classify(context.Background(), "sk-test", "https://x/y.jpg")
	require.NoError(t, err)
	assert.Equal(t, " Light \n", answer)
}

func TestOpenAIClassifyAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"requests","code":"rate_limit_exceeded"}}`))
	}))
	defer server.Close()

	_, err := NewOpenAIClassifier("", server.URL).Classify(context.Background(), "sk-test", "https://x/y.jpg")
	assert.Error(t, err)
}

func TestOpenAIClassifyNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"chatcmpl-test","object":"chat.completion","choices":[]}`))
	}))
	defer server.Close()

	_, err := NewOpenAIClassifier("", server.URL).Classify(context.Background(), "sk-test", "https://x/y.jpg")
	assert.ErrorIs(t, err, errNoChoices)
}

func TestOpenAIClassifyNetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewOpenAIClassifier("", url).Classify(context.Background(), "sk-test", "https://x/y.jpg")
	assert.Error(t, err)
}
