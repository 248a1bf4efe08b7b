package ytdlp

// Package ytdlp wraps the yt-dlp command-line downloader: argument building for
// metadata and download invocations, subprocess execution and the structured
// error returned when the tool fails.
