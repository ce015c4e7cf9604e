package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedLanguage indicates a narration language with no voice mapping.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Language selects the narration voice and locale.
type Language string

// Supported narration languages.
const (
	English Language = "English"
	Chinese Language = "Chinese"
)

// ParseLanguage accepts a display name ("English", "chinese") or a locale code ("en-US", "cmn-CN").
func ParseLanguage(value string) (Language, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "english", "en-us":
		return English, nil
	case "chinese", "cmn-cn":
		return Chinese, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, value)
	}
}
