package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testProject = "meal-app"

// staticKeys serves a fixed key set.
type staticKeys map[string]*rsa.PublicKey

func (s staticKeys) Keys(context.Context) (map[string]*rsa.PublicKey, error) {
	return s, nil
}

func newKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func signToken(t *testing.T, key *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func validClaims() jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"iss":   "https://securetoken.google.com/" + testProject,
		"aud":   testProject,
		"sub":   "user-123",
		"email": "eater@example.com",
		"iat":   now.Add(-time.Minute).Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}
}

func TestFirebaseVerifierValidToken(t *testing.T) {
	key := newKey(t)
	v := NewFirebaseVerifier(testProject, staticKeys{"k1": &key.PublicKey})

	caller, err := v.Verify(context.Background(), signToken(t, key, "k1", validClaims()))
	require.NoError(t, err)
	assert.Equal(t, &Caller{UID: "user-123", Email: "eater@example.com"}, caller)
}

func TestFirebaseVerifierRejects(t *testing.T) {
	key := newKey(t)
	other := newKey(t)
	v := NewFirebaseVerifier(testProject, staticKeys{"k1": &key.PublicKey})

	with := func(k string, val interface{}) jwt.MapClaims {
		c := validClaims()
		c[k] = val
		return c
	}
	without := func(k string) jwt.MapClaims {
		c := validClaims()
		delete(c, k)
		return c
	}

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "garbage", token: "not-a-jwt"},
		{name: "wrong audience", token: signToken(t, key, "k1", with("aud", "other-project"))},
		{name: "wrong issuer", token: signToken(t, key, "k1", with("iss", "https://evil.example.com"))},
		{name: "expired", token: signToken(t, key, "k1", with("exp", time.Now().Add(-time.Minute).Unix()))},
		{name: "missing expiry", token: signToken(t, key, "k1", without("exp"))},
		{name: "empty subject", token: signToken(t, key, "k1", with("sub", ""))},
		{name: "unknown kid", token: signToken(t, key, "k2", validClaims())},
		{name: "wrong signer", token: signToken(t, other, "k1", validClaims())},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caller, err := v.Verify(context.Background(), tt.token)
			assert.Error(t, err)
			assert.Nil(t, caller)
		})
	}
}

func TestFirebaseVerifierRejectsHMAC(t *testing.T) {
	key := newKey(t)
	v := NewFirebaseVerifier(testProject, staticKeys{"k1": &key.PublicKey})

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims())
	token.Header["kid"] = "k1"
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), signed)
	assert.Error(t, err)
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc.def", BearerToken("Bearer abc.def"))
	assert.Equal(t, "abc.def", BearerToken("bearer  abc.def "))
	assert.Equal(t, "", BearerToken("Basic dXNlcjpwYXNz"))
	assert.Equal(t, "", BearerToken("Bearer"))
	assert.Equal(t, "", BearerToken(""))
}

func publicKeyPEM(t *testing.T, key *rsa.PrivateKey) string {
	t.Helper()
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
}

func TestGoogleKeySourceCaches(t *testing.T) {
	key := newKey(t)
	certs := map[string]string{"k1": publicKeyPEM(t, key)}
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "public, max-age=600, must-revalidate")
		_ = json.NewEncoder(w).Encode(certs)
	}))
	defer server.Close()

	now := time.Now()
	src := NewGoogleKeySource(server.URL)
	src.now = func() time.Time { return now }

	keys, err := src.Keys(context.Background())
	require.NoError(t, err)
	require.Contains(t, keys, "k1")
	assert.Equal(t, key.PublicKey.N, keys["k1"].N)

	_, err = src.Keys(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())

	now = now.Add(11 * time.Minute)
	_, err = src.Keys(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestGoogleKeySourceStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewGoogleKeySource(server.URL).Keys(context.Background())
	assert.Error(t, err)
}

func TestGoogleKeySourceWithVerifier(t *testing.T) {
	key := newKey(t)
	certs := map[string]string{"k1": publicKeyPEM(t, key)}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(certs)
	}))
	defer server.Close()

	v := NewFirebaseVerifier(testProject, NewGoogleKeySource(server.URL))
	caller, err := v.Verify(context.Background(), signToken(t, key, "k1", validClaims()))
	require.NoError(t, err)
	assert.Equal(t, "user-123", caller.UID)
}

func TestGoogleKeySourceRefreshesOnRotatedKey(t *testing.T) {
	oldKey, newKeyPair := newKey(t), newKey(t)
	before := map[string]string{"k1": publicKeyPEM(t, oldKey)}
	after := map[string]string{"k1": publicKeyPEM(t, oldKey), "k2": publicKeyPEM(t, newKeyPair)}

	var served atomic.Pointer[map[string]string]
	served.Store(&before)
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "max-age=3600")
		_ = json.NewEncoder(w).Encode(*served.Load())
	}))
	defer server.Close()

	now := time.Now()
	src := NewGoogleKeySource(server.URL)
	src.now = func() time.Time { return now }
	v := NewFirebaseVerifier(testProject, src)

	_, err := v.Verify(context.Background(), signToken(t, oldKey, "k1", validClaims()))
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())

	served.Store(&after)
	now = now.Add(2 * minRefreshInterval)

	caller, err := v.Verify(context.Background(), signToken(t, newKeyPair, "k2", validClaims()))
	require.NoError(t, err)
	assert.Equal(t, "user-123", caller.UID)
	assert.Equal(t, int32(2), hits.Load())

	// Unknown ids do not trigger another fetch within the refresh interval.
	_, err = v.Verify(context.Background(), signToken(t, newKeyPair, "k3", validClaims()))
	assert.ErrorIs(t, err, ErrUnknownKey)
	assert.Equal(t, int32(2), hits.Load())
}

func TestMaxAge(t *testing.T) {
	assert.Equal(t, 19427*time.Second, maxAge("public, max-age=19427, must-revalidate, no-transform"))
	assert.Equal(t, defaultKeyTTL, maxAge("no-cache"))
	assert.Equal(t, defaultKeyTTL, maxAge(""))
	assert.Equal(t, defaultKeyTTL, maxAge("max-age=abc"))
}
