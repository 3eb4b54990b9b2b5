package runner

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// DefaultMaxInputSize is 4KB (conservative default)
	DefaultMaxInputSize = 4096
	// EnvMaxInputSize is the environment variable to override the default
	EnvMaxInputSize = "PARLEY_MAX_INPUT_SIZE"
)

var (
	ErrInputTooLarge = errors.New("input exceeds maximum allowed size")
	ErrInvalidUTF8   = errors.New("input contains invalid UTF-8 sequences")
)

// Sanitizer cleans user utterances before they reach the orchestrator.
type Sanitizer struct {
	MaxSize int
}

// NewSanitizer returns a Sanitizer with the given byte limit.
// A non-positive limit falls back to $PARLEY_MAX_INPUT_SIZE, then DefaultMaxInputSize.
func NewSanitizer(maxSize int) Sanitizer {
	if maxSize <= 0 {
		maxSize = maxInputSizeFromEnv()
	}
	return Sanitizer{MaxSize: maxSize}
}

// SanitizeInput cleans input with the default limit.
func SanitizeInput(input string) (string, error) {
	return NewSanitizer(0).Clean(input)
}

// Clean enforces the size limit, validates UTF-8 and strips control characters
// other than newline, tab and carriage return. Oversized input is rejected, not truncated.
func (s Sanitizer) Clean(input string) (string, error) {
	limit := s.MaxSize
	if limit <= 0 {
		limit = DefaultMaxInputSize
	}
	if len(input) > limit {
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrInputTooLarge, len(input), limit)
	}

	if !utf8.ValidString(input) {
		return "", ErrInvalidUTF8
	}

	// ESC, NUL and BEL would poison logs and the terminal transcript.
	clean := true
	for _, r := range input {
		if unicode.IsControl(r) && !isSafeControl(r) {
			clean = false
			break
		}
	}
	if clean {
		return input, nil
	}

	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if !unicode.IsControl(r) || isSafeControl(r) {
			b.WriteRune(r)
		}
	}
	return b.String(), nil
}

func isSafeControl(r rune) bool {
	return r == '\n' || r == '\t' || r == '\r'
}

func maxInputSizeFromEnv() int {
	if val := os.Getenv(EnvMaxInputSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxInputSize
}
