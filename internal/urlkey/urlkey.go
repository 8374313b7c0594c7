// Package urlkey derives the canonical storage key for a URL. Two links that
// only differ by a redirect wrapper (Google Alert links carry the real target
// in a url= query parameter) normalize to the same key, which is what the
// dedup store keys on.
package urlkey

import (
	"errors"
	"net/url"
	"strings"
)

// MaxKeyLen bounds the key size so it always fits the document-store id limit.
const MaxKeyLen = 500

// ErrEmptyKey is returned when a URL normalizes to nothing but separators.
// Callers treat this as an invariant violation, not as skippable input.
var ErrEmptyKey = errors.New("url normalizes to an empty key")

const maxUnwrapDepth = 4

// Normalize converts a raw URL into its canonical storage key. It is pure and
// deterministic: same input, same key.
func Normalize(raw string) (string, error) {
	target := Unwrap(raw)

	if decoded, err := url.QueryUnescape(target); err == nil {
		target = decoded
	}

	var b strings.Builder
	b.Grow(len(target))
	lastDash := true // swallow leading dashes
	for _, r := range strings.TrimSpace(target) {
		if isSafe(r) && r != '-' {
			b.WriteRune(r)
			lastDash = false
			continue
		}
		// literal dashes and unsafe runes both collapse into one separator
		if !lastDash {
			b.WriteByte('-')
			lastDash = true
		}
	}

	key := strings.Trim(b.String(), "-")
	if len(key) > MaxKeyLen {
		key = strings.TrimRight(key[:MaxKeyLen], "-")
	}
	if key == "" {
		return "", ErrEmptyKey
	}
	return key, nil
}

// Unwrap resolves redirect-wrapper URLs by following the embedded url= query
// parameter. Nested wrappers are followed up to a fixed depth; anything else
// is returned unchanged.
func Unwrap(raw string) string {
	current := raw
	for i := 0; i < maxUnwrapDepth; i++ {
		parsed, err := url.Parse(strings.TrimSpace(current))
		if err != nil {
			return current
		}
		embedded := parsed.Query().Get("url")
		if embedded == "" {
			return current
		}
		if decoded, err := url.QueryUnescape(embedded); err == nil {
			embedded = decoded
		}
		current = embedded
	}
	return current
}

func isSafe(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '_' || r == '-':
		return true
	}
	return false
}
