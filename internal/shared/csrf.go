package shared

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
)

const (
	// CSRFSessionKey is the session key holding the token.
	CSRFSessionKey = "csrf_token"
	// CSRFFormField is the form field carrying the token.
	CSRFFormField = "csrf_token"
	// CSRFHeader is the header alternative to the form field.
	CSRFHeader = "X-CSRF-Token"
)

// TokenHolder is the session surface the CSRF manager needs.
type TokenHolder interface {
	Get(key string) string
	Set(key, value string)
}

// CSRFManager issues and verifies per-session CSRF tokens.
type CSRFManager struct {
	secret []byte
}

// NewCSRFManager returns a CSRFManager keyed with secret.
func NewCSRFManager(secret string) *CSRFManager {
	return &CSRFManager{secret: []byte(secret)}
}

// EnsureToken returns the session token, generating one on first use.
func (m *CSRFManager) EnsureToken(ctx context.Context, holder TokenHolder) (string, error) {
	if isNil(holder) {
		return "", errors.New("csrf: session missing")
	}
	if token := holder.Get(CSRFSessionKey); token != "" {
		return token, nil
	}
	token, err := m.generate()
	if err != nil {
		return "", err
	}
	holder.Set(CSRFSessionKey, token)
	return token, nil
}

// VerifyToken compares token with the one stored in the session.
func (m *CSRFManager) VerifyToken(ctx context.Context, holder TokenHolder, token string) error {
	if isNil(holder) || token == "" {
		return ErrCSRFTokenMissing
	}
	expected := holder.Get(CSRFSessionKey)
	if expected == "" {
		return ErrCSRFTokenMissing
	}
	if !hmac.Equal([]byte(expected), []byte(token)) {
		return ErrCSRFTokenMismatch
	}
	return nil
}

func (m *CSRFManager) generate() (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("csrf: nonce: %w", err)
	}
	mac := hmac.New(sha256.New, m.secret)
	_, _ = mac.Write(nonce)
	sum := mac.Sum(nil)
	return base64.RawURLEncoding.EncodeToString(append(nonce, sum[:16]...)), nil
}
