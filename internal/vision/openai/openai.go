package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	oai "github.com/sashabaranov/go-openai"

	"github.com/vbonduro/mealsize/internal/vision"
)

const DefaultModel = "gpt-4o-mini"

var errNoChoices = errors.New("openai returned no choices")

type OpenAIClassifier struct {
	model   string
	baseURL string
	client  *http.Client
}

// NewOpenAIClassifier returns a classifier for the chat completions API.
// An empty baseURL targets api.openai.com; any OpenAI-compatible endpoint
// (for example Ollama's /v1) may be used instead.
func NewOpenAIClassifier(model, baseURL string) *OpenAIClassifier {
	if model == "" {
		model = DefaultModel
	}
	return &OpenAIClassifier{
		model:   model,
		baseURL: baseURL,
		client:  &http.Client{},
	}
}

// buildMessages constructs the system turn and the multi-part user turn
// carrying the image reference.
func buildMessages(imageURL string) []oai.ChatCompletionMessage {
	return []oai.ChatCompletionMessage{
		{
			Role:    oai.ChatMessageRoleSystem,
			Content: vision.SystemPrompt,
		},
		{
			Role: oai.ChatMessageRoleUser,
			MultiContent: []oai.ChatMessagePart{
				{Type: oai.ChatMessagePartTypeText, Text: vision.UserPrompt},
				{
					Type:     oai.ChatMessagePartTypeImageURL,
					ImageURL: &oai.ChatMessageImageURL{URL: imageURL},
				},
			},
		},
	}
}

// newClient builds a client per call because the key is resolved per call.
func (c *OpenAIClassifier) newClient(apiKey string) *oai.Client {
	cfg := oai.DefaultConfig(apiKey)
	if c.baseURL != "" {
		cfg.BaseURL = c.baseURL
	}
	cfg.HTTPClient = c.client
	return oai.NewClientWithConfig(cfg)
}

func (c *OpenAIClassifier) Classify(ctx context.Context, apiKey, imageURL string) (string, error) {
	resp, err := c.newClient(apiKey).CreateChatCompletion(ctx, oai.ChatCompletionRequest{
		Model:     c.model,
		Messages:  buildMessages(imageURL),
		MaxTokens: vision.MaxOutputTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to call openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errNoChoices
	}
	return resp.Choices[0].Message.Content, nil
}
