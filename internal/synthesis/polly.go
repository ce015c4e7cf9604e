// Package synthesis implements the speech synthesis client on top of Amazon Polly.
package synthesis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/book-expert/logger"
	"github.com/book-expert/narrator/internal/core"
	"github.com/book-expert/narrator/internal/synthesis/text"
)

const tempFilePattern = "narration-*.mp3"

var (
	// ErrTextEmpty indicates that there is nothing to narrate.
	ErrTextEmpty = fmt.Errorf("%w: text cannot be empty", core.ErrInvalidInput)
	// ErrTextTooLong indicates that the text exceeds the synthesis request limit.
	ErrTextTooLong = fmt.Errorf("%w: text is too long", core.ErrInvalidInput)
	// ErrEmptyAudio indicates that the service returned no audio.
	ErrEmptyAudio = errors.New("received empty audio stream")
)

// Voice is the voice and locale pair used for one language.
type Voice struct {
	ID           types.VoiceId
	LanguageCode types.LanguageCode
}

var voices = map[core.Language]Voice{
	core.English: {ID: types.VoiceIdJoanna, LanguageCode: types.LanguageCodeEnUs},
	core.Chinese: {ID: types.VoiceIdZhiyu, LanguageCode: types.LanguageCodeCmnCn},
}

// VoiceFor returns the voice for a language. Unknown languages are rejected.
func VoiceFor(language core.Language) (Voice, error) {
	voice, ok := voices[language]
	if !ok {
		return Voice{}, fmt.Errorf("%w: %q", core.ErrUnsupportedLanguage, string(language))
	}

	return voice, nil
}

// SpeechAPI is the subset of the Polly client used here.
type SpeechAPI interface {
	SynthesizeSpeech(
		ctx context.Context,
		params *polly.SynthesizeSpeechInput,
		optFns ...func(*polly.Options),
	) (*polly.SynthesizeSpeechOutput, error)
}

// Options tune a Client.
type Options struct {
	// TempDir receives the synthesised files. Empty means os.TempDir().
	TempDir string
	// MaxTextChars bounds the request text. Zero disables the check.
	MaxTextChars int
	// Normalize cleans pasted product copy before synthesis.
	Normalize bool
}

// Client implements core.Synthesizer with Amazon Polly.
type Client struct {
	api        SpeechAPI
	normalizer *text.Normalizer
	opts       Options
	log        *logger.Logger
}

// New creates a new Client.
func New(api SpeechAPI, opts Options, log *logger.Logger) *Client {
	return &Client{
		api:        api,
		normalizer: text.NewNormalizer(),
		opts:       opts,
		log:        log,
	}
}

// Synthesize converts text to mp3 speech and returns the path of a new
// temporary file. The caller owns the file.
func (c *Client) Synthesize(ctx context.Context, input string, language core.Language) (string, error) {
	voice, err := VoiceFor(language)
	if err != nil {
		return "", err
	}

	narration := input
	if c.opts.Normalize {
		narration = c.normalizer.Normalize(input)
	}

	if strings.TrimSpace(narration) == "" {
		return "", ErrTextEmpty
	}

	if c.opts.MaxTextChars > 0 && utf8.RuneCountInString(narration) > c.opts.MaxTextChars {
		return "", fmt.Errorf("%w: %d characters, limit is %d",
			ErrTextTooLong, utf8.RuneCountInString(narration), c.opts.MaxTextChars)
	}

	out, err := c.api.SynthesizeSpeech(ctx, &polly.SynthesizeSpeechInput{
		Text:         aws.String(narration),
		OutputFormat: types.OutputFormatMp3,
		VoiceId:      voice.ID,
		LanguageCode: voice.LanguageCode,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrSynthesis, err)
	}
	defer out.AudioStream.Close()

	path, err := c.writeTempFile(out.AudioStream)
	if err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrSynthesis, err)
	}

	c.log.Info("Synthesised %s narration with voice %s to %s", language, voice.ID, path)

	return path, nil
}

// writeTempFile persists the stream. The file is removed on any failure.
func (c *Client) writeTempFile(stream io.Reader) (path string, err error) {
	file, err := os.CreateTemp(c.opts.TempDir, tempFilePattern)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file for audio: %w", err)
	}

	defer func() {
		if err == nil {
			return
		}

		removeErr := os.Remove(file.Name())
		if removeErr != nil {
			c.log.Warn("Failed to remove partial audio file '%s': %v", file.Name(), removeErr)
		}
	}()

	written, err := io.Copy(file, stream)
	closeErr := file.Close()

	if err != nil {
		return "", fmt.Errorf("failed to write audio stream: %w", err)
	}

	if closeErr != nil {
		return "", fmt.Errorf("failed to close audio file: %w", closeErr)
	}

	if written == 0 {
		return "", ErrEmptyAudio
	}

	return file.Name(), nil
}
