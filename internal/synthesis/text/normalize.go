// Package text prepares product copy for speech synthesis.
//
// Pasted product descriptions often carry layout artefacts (hard line
// breaks, bullet glyphs, typographic quotes, runs of punctuation) that the
// synthesis engine reads aloud or pauses on. Normalizer removes them while
// leaving URLs and e-mail addresses untouched.
package text

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Regex patterns for text normalisation.
const (
	urlRegexPattern        = `https?://\S+`
	emailRegexPattern      = `[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`
	bulletRegexPattern     = `(?m)^\s*(?:[-*•·▪‣◦]|\d+[.)])\s+`
	whitespaceRegexPattern = `\s+`
)

const placeholderPattern = `__TOKEN_%d__`

// Punctuation and formatting constants.
const (
	emDash       = "—"
	enDash       = "–"
	figureDash   = "‒"
	ellipsis     = "..."
	ellipsisChar = "…"
)

// Normalizer cleans narration text before it is sent for synthesis.
type Normalizer struct {
	urlPattern        *regexp.Regexp
	emailPattern      *regexp.Regexp
	bulletPattern     *regexp.Regexp
	whitespacePattern *regexp.Regexp
	quoteReplacer     *strings.Replacer
}

// NewNormalizer creates a Normalizer with precompiled patterns.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		urlPattern:        regexp.MustCompile(urlRegexPattern),
		emailPattern:      regexp.MustCompile(emailRegexPattern),
		bulletPattern:     regexp.MustCompile(bulletRegexPattern),
		whitespacePattern: regexp.MustCompile(whitespaceRegexPattern),
		quoteReplacer: strings.NewReplacer(
			emDash, "-",
			enDash, "-",
			figureDash, "-",
			ellipsisChar, ellipsis,
			"“", `"`, "”", `"`,
			"‘", "'", "’", "'",
		),
	}
}

// Normalize returns text ready for synthesis. Empty input stays empty.
func (n *Normalizer) Normalize(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	cleaned := n.bulletPattern.ReplaceAllString(text, "")

	preserved, placeholders := n.preserveTokens(cleaned)

	preserved = n.quoteReplacer.Replace(preserved)
	preserved = removeRepeatedPunctuation(preserved)
	preserved = n.whitespacePattern.ReplaceAllString(preserved, " ")

	restored := restoreTokens(strings.TrimSpace(preserved), placeholders)

	return ensureSentenceEnding(restored)
}

// preserveTokens swaps URLs and e-mail addresses for placeholders so the
// punctuation cleanup cannot corrupt them.
func (n *Normalizer) preserveTokens(text string) (string, map[string]string) {
	placeholders := make(map[string]string)
	counter := 0

	replace := func(match string) string {
		placeholder := fmt.Sprintf(placeholderPattern, counter)
		counter++
		placeholders[placeholder] = match

		return placeholder
	}

	text = n.urlPattern.ReplaceAllStringFunc(text, replace)
	text = n.emailPattern.ReplaceAllStringFunc(text, replace)

	return text, placeholders
}

func restoreTokens(text string, placeholders map[string]string) string {
	for placeholder, original := range placeholders {
		text = strings.ReplaceAll(text, placeholder, original)
	}

	return text
}

// removeRepeatedPunctuation collapses runs of the same punctuation mark.
// An ASCII ellipsis is kept as is.
func removeRepeatedPunctuation(text string) string {
	var builder strings.Builder

	builder.Grow(len(text))

	var (
		last    rune
		run     int
		started bool
	)

	for _, char := range text {
		if started && char == last && unicode.IsPunct(char) && char != '_' {
			run++
			if char == '.' && run <= len(ellipsis) {
				builder.WriteRune(char)
			}

			continue
		}

		builder.WriteRune(char)

		last = char
		run = 1
		started = true
	}

	return builder.String()
}

// ensureSentenceEnding appends a full stop matching the script of the text
// when the last sentence is left open.
func ensureSentenceEnding(text string) string {
	if text == "" {
		return ""
	}

	lastChar, _ := utf8.DecodeLastRuneInString(text)

	switch lastChar {
	case '.', '!', '?', '。', '！', '？':
		return text
	}

	if unicode.Is(unicode.Han, lastChar) {
		return text + "。"
	}

	return text + "."
}
