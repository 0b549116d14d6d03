// Package token generates the session tokens that key the progress channel.
package token

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
)

// DefaultLength matches the token length the mirroring service expects.
const DefaultLength = 20

const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Scope controls how long a token lives.
type Scope string

// Supported token scopes.
const (
	// ScopeRequest issues a fresh token for every download request.
	ScopeRequest Scope = "request"
	// ScopeProcess reuses one token for the lifetime of the process, the way
	// the browser page did for every request within one page load.
	ScopeProcess Scope = "process"
)

// ErrInvalidLength is returned for non-positive token lengths.
var ErrInvalidLength = errors.New("token length must be > 0")

// ParseScope normalizes a configured scope value.
func ParseScope(s string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case "", ScopeRequest:
		return ScopeRequest, nil
	case ScopeProcess:
		return ScopeProcess, nil
	default:
		return "", fmt.Errorf("unknown token scope %q", s)
	}
}

// Generate returns a random alphanumeric token of length n.
func Generate(n int) (string, error) {
	if n <= 0 {
		return "", ErrInvalidLength
	}
	bound := big.NewInt(int64(len(alphabet)))
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, bound)
		if err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		b.WriteByte(alphabet[idx.Int64()])
	}
	return b.String(), nil
}

// Valid reports whether s looks like a token produced by Generate.
func Valid(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !strings.ContainsRune(alphabet, rune(s[i])) {
			return false
		}
	}
	return true
}

// Source hands out tokens according to its Scope. It is safe for concurrent use.
type Source struct {
	scope  Scope
	length int

	mu      sync.Mutex
	current string
}

// NewSource builds a Source. A non-positive length falls back to DefaultLength.
func NewSource(scope Scope, length int) *Source {
	if length <= 0 {
		length = DefaultLength
	}
	if scope == "" {
		scope = ScopeRequest
	}
	return &Source{scope: scope, length: length}
}

// Scope returns the configured scope.
func (s *Source) Scope() Scope {
	return s.scope
}

// Next returns the token to use for the next request. Process-scoped sources
// return the same value on every call.
func (s *Source) Next() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scope == ScopeProcess && s.current != "" {
		return s.current, nil
	}
	tok, err := Generate(s.length)
	if err != nil {
		return "", err
	}
	s.current = tok
	return tok, nil
}
