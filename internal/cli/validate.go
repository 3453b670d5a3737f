package cli

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/devello/devello-studios/internal/resolve"
)

// ValidateAndResolveFile checks that path exists and is a regular file, then
// returns its absolute path. Exits fatally on failure.
func ValidateAndResolveFile(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Fatal().Str("path", path).Msg("File not found")
		}
		log.Fatal().Err(err).Str("path", path).Msg("Failed to access file")
	}
	if info.IsDir() {
		log.Fatal().Str("path", path).Msg("Path is a directory")
	}

	if absPath, err := filepath.Abs(path); err == nil {
		path = absPath
	}
	return path
}

// ExitCode maps a resolver failure to a process exit status.
func ExitCode(err error) int {
	var re *resolve.Error
	if !errors.As(err, &re) {
		return 1
	}
	switch re.Kind {
	case resolve.KindInvalidRequest:
		return 2
	case resolve.KindUnauthorized:
		return 3
	case resolve.KindTimeout:
		return 4
	case resolve.KindCanceled:
		return 130
	default:
		return 1
	}
}

// HandleResolveError logs a resolver failure with a hint for its kind and
// exits with ExitCode(err).
func HandleResolveError(err error) {
	var re *resolve.Error
	if errors.As(err, &re) {
		event := log.Error().Str("kind", re.Kind.String()).Str("jobId", re.JobID).Int("attempts", re.Attempts)
		switch re.Kind {
		case resolve.KindInvalidRequest:
			event.Msg("Request rejected: " + re.Message)
		case resolve.KindUnauthorized:
			event.Msg("Not authorized. Check DEVELLO_ACCESS_TOKEN: " + re.Message)
		case resolve.KindTimeout:
			event.Msg("Processing timed out. Check the job later with: devello job " + re.JobID)
		case resolve.KindCanceled:
			event.Msg("Canceled")
		case resolve.KindTransport:
			event.Err(re.Err).Msg("Network error. Please check your connection")
		default:
			event.Msg("Edit failed: " + re.Message)
		}
	} else {
		log.Error().Err(err).Msg("unexpected error")
	}
	os.Exit(ExitCode(err))
}
