package claude

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/liushuangls/go-anthropic/v2"

	"github.com/vbonduro/mealsize/internal/photostore"
	"github.com/vbonduro/mealsize/internal/vision"
)

const DefaultModel = "claude-3-5-haiku-latest"

var errNoText = errors.New("claude returned no text content")

// ClaudeAnalyzer classifies meal photos with the Anthropic Messages API.
// The API takes inline image bytes, so image references are loaded through
// a PhotoSource first.
type ClaudeAnalyzer struct {
	model   string
	photos  photostore.PhotoSource
	client  *http.Client
	baseURL string
}

func NewClaudeAnalyzer(model string, photos photostore.PhotoSource) *ClaudeAnalyzer {
	if model == "" {
		model = DefaultModel
	}
	return &ClaudeAnalyzer{
		model:  model,
		photos: photos,
		client: &http.Client{},
	}
}

// buildMessages constructs the user turn carrying the inline image.
func buildMessages(imageData []byte, mimeType string) []anthropic.Message {
	return []anthropic.Message{{
		Role: anthropic.RoleUser,
		Content: []anthropic.MessageContent{
			anthropic.NewImageMessageContent(anthropic.NewMessageContentSource(
				anthropic.MessagesContentSourceTypeBase64,
				mimeType,
				base64.StdEncoding.EncodeToString(imageData),
			)),
			anthropic.NewTextMessageContent(vision.UserPrompt),
		},
	}}
}

func (a *ClaudeAnalyzer) newClient(apiKey string) *anthropic.Client {
	opts := []anthropic.ClientOption{anthropic.WithHTTPClient(a.client)}
	if a.baseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(a.baseURL))
	}
	return anthropic.NewClient(apiKey, opts...)
}

func (a *ClaudeAnalyzer) Classify(ctx context.Context, apiKey, imageURL string) (string, error) {
	r, mimeType, err := a.photos.Get(ctx, imageURL)
	if err != nil {
		return "", fmt.Errorf("failed to load image: %w", err)
	}
	defer func() {
		if err := r.Close(); err != nil {
			slog.Error("failed to close image reader", "error", err)
		}
	}()

	imageData, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}

	resp, err := a.newClient(apiKey).CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(a.model),
		System:    vision.SystemPrompt,
		Messages:  buildMessages(imageData, mimeType),
		MaxTokens: vision.MaxOutputTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to call claude: %w", err)
	}

	for _, blk := range resp.Content {
		if blk.Type == anthropic.MessagesContentTypeText && blk.Text != nil {
			return *blk.Text, nil
		}
	}
	return "", errNoText
}
