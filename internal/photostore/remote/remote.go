package remote

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/vbonduro/mealsize/internal/photostore"
)

const (
	// MaxPhotoSize matches the 20 MB per-image limit of the hosted vision APIs.
	MaxPhotoSize = 20 * 1024 * 1024

	defaultTimeout = 15 * time.Second
)

var (
	ErrUnsupportedScheme = errors.New("unsupported image reference scheme")
	ErrTooLarge          = errors.New("image exceeds size limit")
	ErrNotImage          = errors.New("unsupported image format")
)

// Source resolves https image URLs and inline data URLs.
type Source struct {
	client        *resty.Client
	allowInsecure bool
	maxBytes      int64
}

// NewSource returns a Source. Plain http URLs are rejected unless
// allowInsecure is set.
func NewSource(allowInsecure bool) *Source {
	return &Source{
		client:        resty.New().SetTimeout(defaultTimeout),
		allowInsecure: allowInsecure,
		maxBytes:      MaxPhotoSize,
	}
}

var _ photostore.PhotoSource = (*Source)(nil)

func (s *Source) Get(ctx context.Context, ref string) (io.ReadCloser, string, error) {
	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(ref, "data:") {
		data, err = decodeDataURL(ref)
	} else {
		data, err = s.fetch(ctx, ref)
	}
	if err != nil {
		return nil, "", err
	}
	if int64(len(data)) > s.maxBytes {
		return nil, "", ErrTooLarge
	}

	mimeType, ok := photostore.DetectImageMIME(data)
	if !ok {
		return nil, "", ErrNotImage
	}
	return io.NopCloser(bytes.NewReader(data)), mimeType, nil
}

func (s *Source) fetch(ctx context.Context, ref string) ([]byte, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("invalid image url: %w", err)
	}
	switch u.Scheme {
	case "https":
	case "http":
		if !s.allowInsecure {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(u.String())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	body := resp.RawBody()
	defer func() {
		if err := body.Close(); err != nil {
			slog.Error("failed to close image response body", "error", err)
		}
	}()

	if !resp.IsSuccess() {
		return nil, fmt.Errorf("image host returned status %d", resp.StatusCode())
	}

	// Read one byte past the limit so oversize bodies are detected, not truncated.
	data, err := io.ReadAll(io.LimitReader(body, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return data, nil
}

// decodeDataURL decodes a base64 data URL. The declared media type is
// ignored; callers sniff the decoded bytes instead.
func decodeDataURL(ref string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return nil, fmt.Errorf("%w: data url must be base64 encoded", ErrUnsupportedScheme)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode data url: %w", err)
	}
	return data, nil
}
