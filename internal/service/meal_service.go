package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/tidwall/gjson"

	"github.com/vbonduro/mealsize/internal/auth"
	"github.com/vbonduro/mealsize/internal/domain"
	"github.com/vbonduro/mealsize/internal/metrics"
	"github.com/vbonduro/mealsize/internal/vision"
)

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrInvalidArgument = errors.New("invalid argument")
)

// defaultModelTimeout stays below the 30s limit callable hosts enforce.
const defaultModelTimeout = 25 * time.Second

// credentialLookup is the subset of secrets.Chain that MealService requires.
type credentialLookup interface {
	Lookup(ctx context.Context, key string) (string, bool)
}

// Request is one callable invocation.
type Request struct {
	// Payload is the raw JSON "data" value of the call, nil when absent.
	Payload json.RawMessage
	// Caller is nil for unauthenticated calls.
	Caller *auth.Caller
}

type Options struct {
	// Trusted disables the authentication requirement (local emulation).
	Trusted bool
	// CredentialKey names the API key resolved for each call.
	CredentialKey string
	// ModelTimeout bounds a single model call.
	ModelTimeout time.Duration
}

// MealService classifies meal photos into portion levels.
type MealService struct {
	classifier  vision.Classifier
	credentials credentialLookup
	metrics     *metrics.Metrics
	logger      *slog.Logger
	opts        Options
}

func NewMealService(
	classifier vision.Classifier,
	credentials credentialLookup,
	m *metrics.Metrics,
	logger *slog.Logger,
	opts Options,
) *MealService {
	if opts.ModelTimeout <= 0 {
		opts.ModelTimeout = defaultModelTimeout
	}
	return &MealService{
		classifier:  classifier,
		credentials: credentials,
		metrics:     m,
		logger:      logger,
		opts:        opts,
	}
}

// Classify runs the callable pipeline. Only ErrUnauthenticated and
// ErrInvalidArgument are ever returned; every later failure resolves to
// domain.FallbackLevel.
func (s *MealService) Classify(ctx context.Context, req Request) (domain.Level, error) {
	s.logger.Debug("classify request received",
		"trusted", s.opts.Trusted,
		"has_auth", req.Caller != nil,
		"payload_type", payloadType(req.Payload),
		"payload_bytes", len(req.Payload),
	)

	if err := s.Authorize(req.Caller); err != nil {
		return "", err
	}

	imageURL, err := ExtractImageURL(req.Payload)
	if err != nil {
		s.logger.Error("invalid imageUrl", "error", err)
		s.metrics.RecordClassification("", metrics.OutcomeInvalidArgument)
		return "", err
	}

	apiKey, ok := s.credentials.Lookup(ctx, s.opts.CredentialKey)
	if !ok {
		s.logger.Error("api key is not set", "key", s.opts.CredentialKey)
		return s.fallback(metrics.OutcomeNoCredential), nil
	}

	raw, err := s.callModel(ctx, apiKey, imageURL)
	if err != nil {
		s.logger.Error("vision model call failed", "error", err)
		return s.fallback(metrics.OutcomeModelError), nil
	}

	level, ok := domain.ParseLevel(raw)
	if !ok {
		s.logger.Warn("unexpected model answer", "answer", raw)
		return s.fallback(metrics.OutcomeUnexpectedAnswer), nil
	}

	s.metrics.RecordClassification(level.String(), metrics.OutcomeClassified)
	return level, nil
}

// Authorize is the authentication gate Classify applies first. Transports
// call it directly when a request fails before a payload can be built.
func (s *MealService) Authorize(caller *auth.Caller) error {
	if !s.opts.Trusted && caller == nil {
		s.metrics.RecordClassification("", metrics.OutcomeUnauthenticated)
		return ErrUnauthenticated
	}
	return nil
}

func (s *MealService) callModel(ctx context.Context, apiKey, imageURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.ModelTimeout)
	defer cancel()

	start := time.Now()
	raw, err := s.classifier.Classify(ctx, apiKey, imageURL)
	s.metrics.ObserveModelCall(time.Since(start), err)
	return raw, err
}

func (s *MealService) fallback(outcome string) domain.Level {
	s.metrics.RecordClassification(domain.FallbackLevel.String(), outcome)
	return domain.FallbackLevel
}

// payloadType names the JSON kind of a payload for request logging.
func payloadType(payload json.RawMessage) string {
	if len(payload) == 0 {
		return "undefined"
	}
	switch r := gjson.ParseBytes(payload); {
	case r.IsObject():
		return "object"
	case r.IsArray():
		return "array"
	default:
		return r.Type.String()
	}
}
