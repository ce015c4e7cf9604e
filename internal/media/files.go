// Package media checks operator media files and formats their properties for display.
package media

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/book-expert/narrator/internal/core"
)

// Data size constants.
const (
	byteUnit = 1
	kilobyte = byteUnit * 1024
	megabyte = kilobyte * 1024
	gigabyte = megabyte * 1024
)

// Time and size formatting constants.
const (
	secondsInMinute = 60
	secondsInHour   = 3600
	formatSeconds   = "%.1fs"
	formatMinutes   = "%dm %.1fs"
	formatHours     = "%dh %dm"
	formatGB        = "%.1f GB"
	formatMB        = "%.1f MB"
	formatKB        = "%.1f KB"
	formatBytes     = "%d B"
)

// File extension constants.
const (
	extAVI = ".avi"
	extMOV = ".mov"
	extMP3 = ".mp3"
	extMP4 = ".mp4"
)

const invalidCharReplacement = "_"

var (
	// ErrUnsupportedAudio indicates an audio upload that is not an mp3.
	ErrUnsupportedAudio = fmt.Errorf("%w: audio must be an mp3 file", core.ErrInvalidInput)
	// ErrUnsupportedVideo indicates a video upload of an unaccepted type.
	ErrUnsupportedVideo = fmt.Errorf("%w: video must be an mp4, mov or avi file", core.ErrInvalidInput)
	// ErrNotRegularFile indicates a path that is a directory or device.
	ErrNotRegularFile = fmt.Errorf("%w: not a regular file", core.ErrInvalidInput)
)

// IsValidAudioFile reports whether filename has an accepted audio extension.
func IsValidAudioFile(filename string) bool {
	return extension(filename) == extMP3
}

// IsValidVideoFile reports whether filename has an accepted video extension.
func IsValidVideoFile(filename string) bool {
	switch extension(filename) {
	case extMP4, extMOV, extAVI:
		return true
	default:
		return false
	}
}

// CheckAudioFile validates a local audio file and returns its size in bytes.
func CheckAudioFile(path string) (int64, error) {
	if !IsValidAudioFile(path) {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedAudio, filepath.Base(path))
	}

	return regularFileSize(path)
}

// CheckVideoFile validates a local video file and returns its size in bytes.
func CheckVideoFile(path string) (int64, error) {
	if !IsValidVideoFile(path) {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedVideo, filepath.Base(path))
	}

	return regularFileSize(path)
}

func regularFileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("%w: %s", ErrNotRegularFile, path)
	}

	return info.Size(), nil
}

func extension(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

// FormatDuration formats a duration in a human-readable string (e.g., "1h 15m", "5m
// 30.5s", "45.2s").
func FormatDuration(seconds float64) string {
	if seconds < secondsInMinute {
		return fmt.Sprintf(formatSeconds, seconds)
	}

	if seconds < secondsInHour {
		minutes := int(seconds / secondsInMinute)
		remainingSeconds := seconds - float64(minutes*secondsInMinute)

		return fmt.Sprintf(formatMinutes, minutes, remainingSeconds)
	}

	hours := int(seconds / secondsInHour)
	remainingSeconds := seconds - float64(hours*secondsInHour)
	remainingMinutes := int(remainingSeconds / secondsInMinute)

	return fmt.Sprintf(formatHours, hours, remainingMinutes)
}

// FormatFileSize formats a file size in a human-readable string (e.g., "1.2 GB", "500.5
// MB").
func FormatFileSize(bytes int64) string {
	switch {
	case bytes >= gigabyte:
		return fmt.Sprintf(formatGB, float64(bytes)/gigabyte)
	case bytes >= megabyte:
		return fmt.Sprintf(formatMB, float64(bytes)/megabyte)
	case bytes >= kilobyte:
		return fmt.Sprintf(formatKB, float64(bytes)/kilobyte)
	default:
		return fmt.Sprintf(formatBytes, bytes)
	}
}

// SanitizeFilename replaces characters that are unsafe in object names.
func SanitizeFilename(filename string) string {
	replacer := strings.NewReplacer(
		"<", invalidCharReplacement,
		">", invalidCharReplacement,
		":", invalidCharReplacement,
		"\"", invalidCharReplacement,
		"/", invalidCharReplacement,
		"\\", invalidCharReplacement,
		"|", invalidCharReplacement,
		"?", invalidCharReplacement,
		"*", invalidCharReplacement,
		" ", invalidCharReplacement,
	)

	return replacer.Replace(filename)
}
