package auth

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"
)

// GoogleCertsURL publishes the x509 certificates Firebase ID tokens are
// signed with.
const GoogleCertsURL = "https://www.googleapis.com/robot/v1/metadata/x509/securetoken@system.gserviceaccount.com"

const defaultKeyTTL = time.Hour

// minRefreshInterval limits forced refreshes triggered by unknown key ids.
const minRefreshInterval = time.Minute

// GoogleKeySource fetches and caches Google's token signing certificates.
// Keys are refreshed once the Cache-Control max-age of the last response
// has passed. mu is held across fetches so concurrent callers share one
// request.
type GoogleKeySource struct {
	client *resty.Client
	url    string
	now    func() time.Time

	mu      sync.Mutex
	keys    map[string]*rsa.PublicKey
	fetched time.Time
	expires time.Time
}

func NewGoogleKeySource(url string) *GoogleKeySource {
	if url == "" {
		url = GoogleCertsURL
	}
	return &GoogleKeySource{
		client: resty.New().SetTimeout(10 * time.Second),
		url:    url,
		now:    time.Now,
	}
}

func (s *GoogleKeySource) Keys(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.keys != nil && s.now().Before(s.expires) {
		return s.keys, nil
	}
	return s.fetchLocked(ctx)
}

// Refresh refetches the certificates ahead of expiry, at most once per
// minRefreshInterval.
func (s *GoogleKeySource) Refresh(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.keys != nil && s.now().Sub(s.fetched) < minRefreshInterval {
		return s.keys, nil
	}
	return s.fetchLocked(ctx)
}

func (s *GoogleKeySource) fetchLocked(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	resp, err := s.client.R().SetContext(ctx).Get(s.url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch signing certificates: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("signing certificates returned status %d", resp.StatusCode())
	}

	var certs map[string]string
	if err := json.Unmarshal(resp.Body(), &certs); err != nil {
		return nil, fmt.Errorf("failed to decode signing certificates: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(certs))
	for kid, pem := range certs {
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pem))
		if err != nil {
			return nil, fmt.Errorf("failed to parse certificate %s: %w", kid, err)
		}
		keys[kid] = key
	}

	s.keys = keys
	s.fetched = s.now()
	s.expires = s.fetched.Add(maxAge(resp.Header().Get("Cache-Control")))
	return keys, nil
}

// maxAge parses the max-age directive of a Cache-Control header.
func maxAge(header string) time.Duration {
	for _, directive := range strings.Split(header, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(directive), "=")
		if !ok || !strings.EqualFold(name, "max-age") {
			continue
		}
		if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultKeyTTL
}
