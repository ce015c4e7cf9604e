// Package keys generates bucket keys for every pipeline stage.
//
// Each key embeds a random UUID so concurrent invocations never collide.
package keys

import (
	"strings"

	"github.com/google/uuid"
)

// Stage prefixes of the bucket layout.
const (
	InputPrefix    = "input/"
	StepOneOutput  = "step1_output/"
	StepTwoInput   = "step2_input/"
	StepTwoOutput  = "step2_output/"
	mergeJobPrefix = "merge_job_"
	AudioExtension = ".mp3"
	VideoExtension = ".mp4"
)

// New returns prefix + random UUID + ext.
func New(prefix, ext string) string {
	return prefix + uuid.NewString() + ext
}

// InputVideo is the key of a video staged by the composed workflow.
func InputVideo() string {
	return New(InputPrefix, VideoExtension)
}

// InputAudio is the key of narration produced by the composed workflow.
func InputAudio() string {
	return New(InputPrefix, AudioExtension)
}

// GeneratedAudio is the key of audio produced by the generate-audio workflow.
func GeneratedAudio() string {
	return New(StepOneOutput, AudioExtension)
}

// MergeInputAudio is the key of operator audio for the merge workflow.
func MergeInputAudio() string {
	return New(StepTwoInput, AudioExtension)
}

// MergeInputVideo is the key of operator video for the merge workflow.
func MergeInputVideo() string {
	return New(StepTwoInput, VideoExtension)
}

// MergeOutput names a merge job and returns its output key and the
// extensionless destination the transcoder writes to.
func MergeOutput() (outputKey, destinationKey string) {
	destinationKey = StepTwoOutput + mergeJobPrefix + uuid.NewString()

	return destinationKey + VideoExtension, destinationKey
}

// ContentType maps a key extension to the MIME type stored with the object.
func ContentType(key string) string {
	switch {
	case strings.HasSuffix(key, AudioExtension):
		return "audio/mpeg"
	case strings.HasSuffix(key, VideoExtension):
		return "video/mp4"
	default:
		return "application/octet-stream"
	}
}
