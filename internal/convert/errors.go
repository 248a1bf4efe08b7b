package convert

import (
	"errors"
	"net/http"

	"ytconvert/internal/workarea"
	"ytconvert/internal/ytdlp"
)

var (
	ErrMissingParameter  = errors.New("missing url parameter")
	ErrInvalidFormat     = errors.New("invalid format parameter")
	ErrInvalidURL        = errors.New("invalid url parameter")
	ErrArtifactNotFound  = workarea.ErrArtifactNotFound
	ErrAmbiguousArtifact = workarea.ErrAmbiguousArtifact
	ErrReadFailure       = errors.New("failed to read downloaded file")
)

// Bounds on how much downloader stderr is echoed back to clients.
const (
	MetadataDiagnosticLimit = 300
	DownloadDiagnosticLimit = 500
)

const (
	msgMissingParameter = "URL parameter is required"
	msgInvalidFormat    = "Invalid format parameter (must be mp3 or mp4)"
	msgInvalidURL       = "URL must be an absolute http or https URL"

	DefaultMetadataFailure = "Failed to fetch video metadata."
	DefaultDownloadFailure = "Failed to download video."
)

// StatusCode maps err onto the response status: client errors for bad input,
// server errors for everything else.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrMissingParameter), errors.Is(err, ErrInvalidURL), errors.Is(err, ErrInvalidFormat):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Message is the text placed in a failure response. Downloader failures carry
// their stderr cut to limit runes; anything without text falls back.
func Message(err error, limit int, fallback string) string {
	switch {
	case err == nil:
		return fallback
	case errors.Is(err, ErrMissingParameter):
		return msgMissingParameter
	case errors.Is(err, ErrInvalidURL):
		return msgInvalidURL
	case errors.Is(err, ErrInvalidFormat):
		return msgInvalidFormat
	}
	if te, ok := ytdlp.AsToolError(err); ok {
		return te.Message(limit)
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return fallback
}
