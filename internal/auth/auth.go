// Package auth guards the operator endpoints with static API keys and
// signed bearer tokens. Variation decisions are never authenticated; only
// the administrative surface goes through this package.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

var (
	ErrAuthDisabled = errors.New("auth disabled")
	ErrInvalidToken = errors.New("invalid token")
	ErrInvalidKey   = errors.New("invalid api key")
)

// Credential methods recorded on a Principal.
const (
	MethodAPIKey = "api_key"
	MethodToken  = "token"
)

// Principal identifies the caller of an operator endpoint.
type Principal struct {
	ID     string
	Name   string
	Method string
}

// Config configures authentication helpers.
type Config struct {
	JWTSecret   string
	TokenExpiry time.Duration
	APIKeys     []string
}

// Service validates bearer tokens and API keys.
type Service struct {
	jwt     *JWTService
	apiKeys map[string]Principal
}

// NewService constructs an auth service from static configuration.
func NewService(cfg Config) *Service {
	service := &Service{apiKeys: buildKeyIndex(cfg.APIKeys)}
	if strings.TrimSpace(cfg.JWTSecret) != "" {
		service.jwt = NewJWTService(cfg.JWTSecret, cfg.TokenExpiry)
	}
	return service
}

// Enabled reports whether auth checks should run.
func (s *Service) Enabled() bool {
	return s != nil && (s.jwt != nil || len(s.apiKeys) > 0)
}

// GenerateToken issues a signed token for the given subject.
func (s *Service) GenerateToken(subject, name string) (string, error) {
	if s == nil || s.jwt == nil {
		return "", ErrAuthDisabled
	}
	return s.jwt.Generate(subject, name)
}

// ValidateToken validates a bearer token and returns the caller identity.
func (s *Service) ValidateToken(token string) (*Principal, error) {
	if s == nil || s.jwt == nil {
		return nil, ErrAuthDisabled
	}
	return s.jwt.Validate(token)
}

// ValidateAPIKey validates an API key and returns the caller identity.
// Uses constant-time comparison to prevent timing attacks.
func (s *Service) ValidateAPIKey(key string) (*Principal, error) {
	if s == nil || len(s.apiKeys) == 0 {
		return nil, ErrAuthDisabled
	}
	input := strings.TrimSpace(key)
	// Compare against every stored key so the duration does not depend
	// on which key matched.
	var matched *Principal
	for stored, principal := range s.apiKeys {
		if subtle.ConstantTimeCompare([]byte(input), []byte(stored)) == 1 {
			p := principal
			matched = &p
		}
	}
	if matched == nil {
		return nil, ErrInvalidKey
	}
	return matched, nil
}

// buildKeyIndex derives a stable identity for each configured key from a
// hash prefix, so logs can attribute calls without echoing the key.
func buildKeyIndex(keys []string) map[string]Principal {
	out := map[string]Principal{}
	for _, entry := range keys {
		key := strings.TrimSpace(entry)
		if key == "" {
			continue
		}
		sum := sha256.Sum256([]byte(key))
		out[key] = Principal{
			ID:     "api_" + hex.EncodeToString(sum[:8]),
			Method: MethodAPIKey,
		}
	}
	return out
}
