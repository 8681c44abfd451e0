// Package auth validates opaque bearer tokens.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"os"
	"strings"
)

// ErrUnauthorized is returned for a missing or unknown token.
var ErrUnauthorized = errors.New("unauthorized")

// StaticTokens accepts a fixed list of tokens. An empty list disables
// authentication.
type StaticTokens struct {
	tokens [][]byte
}

// NewStaticTokens creates a validator for tokens. Blank entries are ignored.
func NewStaticTokens(tokens []string) *StaticTokens {
	s := &StaticTokens{}
	for _, t := range tokens {
		t = strings.TrimSpace(t)
		if t != "" {
			s.tokens = append(s.tokens, []byte(t))
		}
	}
	return s
}

// FromEnv reads a comma separated token list from the named variable.
func FromEnv(name string) *StaticTokens {
	if name == "" {
		return NewStaticTokens(nil)
	}
	return NewStaticTokens(strings.Split(os.Getenv(name), ","))
}

// Enabled implements port.TokenValidator.
func (s *StaticTokens) Enabled() bool {
	return len(s.tokens) > 0
}

// Validate implements port.TokenValidator.
func (s *StaticTokens) Validate(ctx context.Context, token string) error {
	if !s.Enabled() {
		return nil
	}
	if token == "" {
		return ErrUnauthorized
	}
	candidate := []byte(token)
	for _, t := range s.tokens {
		if subtle.ConstantTimeCompare(t, candidate) == 1 {
			return nil
		}
	}
	return ErrUnauthorized
}
