// Package fileutil holds the path and naming helpers used for stored clips
// and voice samples.
package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const envDataDir = "VOICE_STUDIO_DATA_DIR"

const (
	appName               = "voice-studio"
	dotLocalShare         = ".local/share"
	defaultDirPermissions = 0o750
	clipNameReplacement   = '_'
	unknownClipLength     = "-"
)

const errFmtFailedToCreateDir = "failed to create directory %s: %w"

// sampleExtensions are the upload formats accepted for voice clones.
var sampleExtensions = map[string]bool{
	"aac":  true,
	"flac": true,
	"m4a":  true,
	"mp3":  true,
	"ogg":  true,
	"wav":  true,
}

// DataDir returns the directory downloaded clips default to, honouring an
// environment override.
func DataDir() string {
	if dataDir := os.Getenv(envDataDir); dataDir != "" {
		return dataDir
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), appName)
	}

	return filepath.Join(homeDir, dotLocalShare, appName)
}

// EnsureDir creates path and its parents when missing.
func EnsureDir(path string) error {
	err := os.MkdirAll(path, defaultDirPermissions)
	if err != nil {
		return fmt.Errorf(errFmtFailedToCreateDir, path, err)
	}

	return nil
}

// ClipLength renders a clip duration the way players do: "0:07", "3:25",
// "1:02:09". Unknown or negative durations render as "-".
func ClipLength(seconds float64) string {
	if seconds <= 0 {
		return unknownClipLength
	}

	total := int(seconds + 0.5)
	hours, minutes, secs := total/3600, total/60%60, total%60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, secs)
	}

	return fmt.Sprintf("%d:%02d", minutes, secs)
}

// ClipName reduces an object key to a flat file name. Letters, digits, '.',
// '-' and '_' are kept; everything else, path separators included, becomes '_'.
func ClipName(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return clipNameReplacement
		}
	}, key)
}

// IsValidAudioFile reports whether filename looks like an accepted voice sample.
func IsValidAudioFile(filename string) bool {
	return sampleExtensions[strings.ToLower(GetFileExtension(filename))]
}

// GetFileExtension returns the file extension without the leading dot.
func GetFileExtension(filename string) string {
	return strings.TrimPrefix(filepath.Ext(filename), ".")
}
