// Package core defines the interfaces and error taxonomy shared by the narrator components.
package core

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrInvalidInput indicates that the operator supplied unusable input.
	ErrInvalidInput = errors.New("invalid input")
	// ErrSynthesis indicates that the speech synthesis service failed.
	ErrSynthesis = errors.New("speech synthesis failed")
	// ErrStorage indicates that an object storage transfer failed.
	ErrStorage = errors.New("object storage transfer failed")
	// ErrTranscode indicates that a transcode job ended in error.
	ErrTranscode = errors.New("transcode job failed")
)

// Synthesizer turns narration text into a local audio file.
// The caller owns the returned file and must remove it.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, language Language) (string, error)
}

// Storage moves local files into the bucket and issues download links.
type Storage interface {
	Upload(ctx context.Context, localPath, bucket, key string) (string, error)
	// Presign returns an empty string when no link could be produced.
	Presign(ctx context.Context, bucket, key string, expiry time.Duration) string
}

// Transcoder merges an uploaded video with an uploaded narration track.
type Transcoder interface {
	MergeAudioVideo(ctx context.Context, videoKey, audioKey string) (string, error)
}

// Inbox holds operator-supplied files until a workflow consumes them.
type Inbox interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	UploadFile(ctx context.Context, key, path string) error
	Delete(ctx context.Context, key string) error
}
