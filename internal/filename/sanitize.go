// Package filename turns downloader output names into names that are safe in a
// Content-Disposition header and on any common filesystem.
package filename

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	DefaultMaxLength = 100
	Placeholder      = '_'

	// DefaultBase replaces a base name that sanitizes down to nothing.
	DefaultBase = "download"
)

// Only short alphanumeric suffixes count as an extension worth preserving.
var extPattern = regexp.MustCompile(`^\.[A-Za-z0-9]{1,10}$`)

type Sanitizer struct {
	// MaxLength bounds the base name (extension excluded) in runes.
	MaxLength int
	// ASCIIOnly also replaces every non-ASCII rune.
	ASCIIOnly bool
}

// Sanitize replaces unsafe characters with Placeholder, then truncates the
// base name to MaxLength. The extension is kept as is. Sanitize is idempotent.
func (s Sanitizer) Sanitize(name string) string {
	ext := extension(name)
	base := s.cleanBase(strings.TrimSuffix(name, ext))
	if ext == "" {
		// Truncation can expose an extension inside the base; split it off so
		// the result already has the shape a second call would give it.
		if inner := extension(base); inner != "" {
			ext = inner
			base = s.cleanBase(strings.TrimSuffix(base, inner))
		}
	}
	return base + ext
}

// Sanitize uses the default limits.
func Sanitize(name string) string {
	return Sanitizer{MaxLength: DefaultMaxLength}.Sanitize(name)
}

func extension(name string) string {
	ext := filepath.Ext(name)
	if !extPattern.MatchString(ext) {
		return ""
	}
	return ext
}

// cleanBase maps unsafe runes, trims leading space, truncates, then trims
// trailing space and dots. An empty result becomes DefaultBase.
func (s Sanitizer) cleanBase(base string) string {
	base = strings.Map(s.replace, base)
	base = strings.TrimLeftFunc(base, unicode.IsSpace)
	base = truncate(base, s.maxLength())
	base = strings.TrimRightFunc(base, func(r rune) bool {
		return r == '.' || unicode.IsSpace(r)
	})
	if base == "" {
		return truncate(DefaultBase, s.maxLength())
	}
	return base
}

func (s Sanitizer) maxLength() int {
	if s.MaxLength <= 0 {
		return DefaultMaxLength
	}
	return s.MaxLength
}

func (s Sanitizer) replace(r rune) rune {
	switch {
	case r < 0x20 || r == 0x7F:
		return Placeholder
	case strings.ContainsRune(`<>:"/\|?*`, r):
		return Placeholder
	case r == utf8.RuneError:
		return Placeholder
	case s.ASCIIOnly && r > 0x7E:
		return Placeholder
	}
	return r
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// IsASCII reports whether a Content-Disposition filename needs an RFC 5987
// filename* companion.
func IsASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7E {
			return false
		}
	}
	return true
}
