package media

import (
	"errors"
	"fmt"
	"strings"
)

// Format is the container the user asked for.
type Format string

const (
	FormatMP3 Format = "mp3"
	FormatMP4 Format = "mp4"

	DefaultFormat = FormatMP3
)

// Placeholders used when the downloader's JSON leaves a field out.
const (
	UnknownTitle  = "Unknown Title"
	UnknownArtist = "Unknown Artist"
)

var ErrUnsupportedFormat = errors.New("unsupported format")

// ParseFormat maps a query value onto a Format. An empty value selects DefaultFormat.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.TrimSpace(s)) {
	case "":
		return DefaultFormat, nil
	case FormatMP3:
		return FormatMP3, nil
	case FormatMP4:
		return FormatMP4, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

func (f Format) String() string {
	return string(f)
}

// ContentType is the fixed response MIME type for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatMP4:
		return "video/mp4"
	default:
		return "audio/mpeg"
	}
}

// Request is a single download request, built from query parameters.
type Request struct {
	URL    string `json:"url"`
	Format Format `json:"format"`
}

// Metadata is the display triple shown for a queued URL.
type Metadata struct {
	Title     string  `json:"title"`
	Artist    string  `json:"artist"`
	Thumbnail *string `json:"thumbnail"`
	Duration  float64 `json:"duration,omitempty"`
}

// Info is the subset of the downloader's --dump-json document we read.
type Info struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Uploader  string  `json:"uploader"`
	Channel   string  `json:"channel"`
	Thumbnail string  `json:"thumbnail"`
	Duration  float64 `json:"duration"`
}

// Metadata applies the fallback chains: title to UnknownTitle, artist from
// uploader to channel to UnknownArtist, thumbnail to nil.
func (i *Info) Metadata() Metadata {
	m := Metadata{
		Title:    firstNonEmpty(i.Title, UnknownTitle),
		Artist:   firstNonEmpty(i.Uploader, i.Channel, UnknownArtist),
		Duration: i.Duration,
	}
	if i.Thumbnail != "" {
		thumb := i.Thumbnail
		m.Thumbnail = &thumb
	}
	return m
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
