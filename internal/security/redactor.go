// Package security keeps provider credentials out of log output and
// bounds the request rate of unauthenticated HTTP clients.
package security

import (
	"regexp"
	"strings"
	"sync"
)

// RedactPlaceholder is the replacement string for redacted secrets.
const RedactPlaceholder = "***REDACTED***"

// Redactor replaces secret values in strings with a redaction placeholder.
// It matches known API key formats by pattern and exact credential values
// registered at startup. Safe for concurrent use.
type Redactor struct {
	mu       sync.RWMutex
	patterns []*regexp.Regexp
	literals []string
}

// NewRedactor creates a Redactor pre-loaded with patterns for the API key
// formats of the providers this process talks to.
func NewRedactor() *Redactor {
	return &Redactor{
		patterns: []*regexp.Regexp{
			// Anthropic: sk-ant-...
			regexp.MustCompile(`sk-ant-[a-zA-Z0-9\-]{20,}`),
			// OpenAI: sk-...
			regexp.MustCompile(`sk-[a-zA-Z0-9]{20,}`),
			// Bearer tokens in echoed headers.
			regexp.MustCompile(`Bearer [a-zA-Z0-9\-._~+/]{16,}=*`),
		},
	}
}

// AddLiteral registers a credential value that must be redacted on sight.
// Empty strings are ignored.
func (r *Redactor) AddLiteral(secret string) {
	if secret == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.literals = append(r.literals, secret)
}

// Redact replaces all known secret patterns and literal values in s
// with RedactPlaceholder.
func (r *Redactor) Redact(s string) string {
	if s == "" {
		return s
	}

	r.mu.RLock()
	patterns := r.patterns
	literals := r.literals
	r.mu.RUnlock()

	for _, p := range patterns {
		s = p.ReplaceAllString(s, RedactPlaceholder)
	}
	for _, lit := range literals {
		if strings.Contains(s, lit) {
			s = strings.ReplaceAll(s, lit, RedactPlaceholder)
		}
	}
	return s
}
