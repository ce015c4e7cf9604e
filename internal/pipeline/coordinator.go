// Package pipeline sequences synthesis, storage and transcoding into the
// operator workflows.
//
// Every workflow owns the temporary files it creates and removes them before
// returning, whether it succeeded or failed. Objects already uploaded to the
// bucket are left in place on failure.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/narrator/internal/core"
	"github.com/book-expert/narrator/internal/keys"
)

// Operator-facing messages.
const (
	msgAudioReady    = "Audio generated successfully! Download your audio file here: %s"
	msgAudioNoLink   = "Audio generated successfully! Failed to generate download link for the audio file."
	msgVideoReady    = "Video processed successfully! Download your merged video here: %s"
	msgVideoNoLink   = "Video processed successfully! Failed to generate download link for the merged video."
	tempAudioPattern = "operator-audio-*.mp3"
	tempVideoPattern = "operator-video-*.mp4"
)

var (
	// ErrTextMissing indicates that no product details were entered.
	ErrTextMissing = fmt.Errorf("%w: please enter product details", core.ErrInvalidInput)
	// ErrMediaMissing indicates that a merge was requested without both files.
	ErrMediaMissing = fmt.Errorf("%w: please upload both an MP3 file and a video file", core.ErrInvalidInput)
	// ErrVideoMissing indicates that the composed workflow got no video.
	ErrVideoMissing = fmt.Errorf("%w: please upload a video file", core.ErrInvalidInput)
)

// Kind tells which artefact a Result refers to.
type Kind string

// Result kinds.
const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

// Result is the outcome of a successful workflow.
type Result struct {
	Kind Kind
	Key  string
	// URL is empty when no download link could be generated.
	URL string
}

// LinkUnavailable reports whether the artefact exists but has no download link.
func (r *Result) LinkUnavailable() bool {
	return r.URL == ""
}

// Message renders the operator-facing success text.
func (r *Result) Message() string {
	switch {
	case r.Kind == KindAudio && r.LinkUnavailable():
		return msgAudioNoLink
	case r.Kind == KindAudio:
		return fmt.Sprintf(msgAudioReady, r.URL)
	case r.LinkUnavailable():
		return msgVideoNoLink
	default:
		return fmt.Sprintf(msgVideoReady, r.URL)
	}
}

// Options tune a Coordinator.
type Options struct {
	Bucket        string
	TempDir       string
	PresignExpiry time.Duration
}

// Coordinator runs the operator workflows.
type Coordinator struct {
	synthesizer core.Synthesizer
	storage     core.Storage
	transcoder  core.Transcoder
	opts        Options
	log         *logger.Logger
}

// New creates a new Coordinator.
func New(
	synthesizer core.Synthesizer,
	storage core.Storage,
	transcoder core.Transcoder,
	opts Options,
	log *logger.Logger,
) *Coordinator {
	return &Coordinator{
		synthesizer: synthesizer,
		storage:     storage,
		transcoder:  transcoder,
		opts:        opts,
		log:         log,
	}
}

// GenerateAudio synthesises text, stores the audio under step1_output/ and
// returns a download link for it.
func (c *Coordinator) GenerateAudio(ctx context.Context, text string, language core.Language) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrTextMissing
	}

	audioPath, err := c.synthesizer.Synthesize(ctx, text, language)
	if err != nil {
		return nil, fmt.Errorf("failed to generate audio: %w", err)
	}
	defer c.remove(audioPath)

	key, err := c.storage.Upload(ctx, audioPath, c.opts.Bucket, keys.GeneratedAudio())
	if err != nil {
		return nil, fmt.Errorf("failed to store generated audio: %w", err)
	}

	return c.finish(ctx, KindAudio, key), nil
}

// MergeAudioVideo stores the operator's audio and video under step2_input/,
// merges them and returns a download link for the merged video.
func (c *Coordinator) MergeAudioVideo(ctx context.Context, audio, video io.Reader) (*Result, error) {
	if audio == nil || video == nil {
		return nil, ErrMediaMissing
	}

	audioPath, err := c.persist(audio, tempAudioPattern)
	if err != nil {
		return nil, err
	}
	defer c.remove(audioPath)

	videoPath, err := c.persist(video, tempVideoPattern)
	if err != nil {
		return nil, err
	}
	defer c.remove(videoPath)

	audioKey, err := c.storage.Upload(ctx, audioPath, c.opts.Bucket, keys.MergeInputAudio())
	if err != nil {
		return nil, fmt.Errorf("failed to store audio: %w", err)
	}

	videoKey, err := c.storage.Upload(ctx, videoPath, c.opts.Bucket, keys.MergeInputVideo())
	if err != nil {
		return nil, fmt.Errorf("failed to store video: %w", err)
	}

	return c.merge(ctx, videoKey, audioKey)
}

// ProcessVideo narrates text and merges the narration straight into video.
// Inputs are stored under input/.
func (c *Coordinator) ProcessVideo(
	ctx context.Context,
	text string,
	language core.Language,
	video io.Reader,
) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrTextMissing
	}

	if video == nil {
		return nil, ErrVideoMissing
	}

	videoPath, err := c.persist(video, tempVideoPattern)
	if err != nil {
		return nil, err
	}
	defer c.remove(videoPath)

	audioPath, err := c.synthesizer.Synthesize(ctx, text, language)
	if err != nil {
		return nil, fmt.Errorf("failed to generate audio: %w", err)
	}
	defer c.remove(audioPath)

	videoKey, err := c.storage.Upload(ctx, videoPath, c.opts.Bucket, keys.InputVideo())
	if err != nil {
		return nil, fmt.Errorf("failed to store video: %w", err)
	}

	audioKey, err := c.storage.Upload(ctx, audioPath, c.opts.Bucket, keys.InputAudio())
	if err != nil {
		return nil, fmt.Errorf("failed to store audio: %w", err)
	}

	return c.merge(ctx, videoKey, audioKey)
}

func (c *Coordinator) merge(ctx context.Context, videoKey, audioKey string) (*Result, error) {
	outputKey, err := c.transcoder.MergeAudioVideo(ctx, videoKey, audioKey)
	if err != nil {
		return nil, fmt.Errorf("failed to merge audio and video: %w", err)
	}

	return c.finish(ctx, KindVideo, outputKey), nil
}

// finish presigns the artefact. A missing link does not fail the workflow.
func (c *Coordinator) finish(ctx context.Context, kind Kind, key string) *Result {
	result := &Result{
		Kind: kind,
		Key:  key,
		URL:  c.storage.Presign(ctx, c.opts.Bucket, key, c.opts.PresignExpiry),
	}

	if result.LinkUnavailable() {
		c.log.Warn("No download link for %s %s", kind, key)
	}

	return result
}

// persist copies an operator upload into a fresh temp file.
func (c *Coordinator) persist(src io.Reader, pattern string) (string, error) {
	file, err := os.CreateTemp(c.opts.TempDir, pattern)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}

	_, copyErr := io.Copy(file, src)
	closeErr := file.Close()

	if copyErr != nil || closeErr != nil {
		c.remove(file.Name())

		if copyErr != nil {
			return "", fmt.Errorf("failed to save upload: %w", copyErr)
		}

		return "", fmt.Errorf("failed to close upload: %w", closeErr)
	}

	return file.Name(), nil
}

func (c *Coordinator) remove(path string) {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		c.log.Warn("Failed to remove temp file '%s': %v", path, err)
	}
}
