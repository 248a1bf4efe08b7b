// Package convert orchestrates the two operations the service exposes:
// metadata lookup and single-file download through a private work area.
package convert

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"ytconvert/internal/filename"
	"ytconvert/internal/media"
	"ytconvert/internal/workarea"
	"ytconvert/internal/ytdlp"
)

// Tool is the external downloader. *ytdlp.Client satisfies it; tests swap in
// doubles.
type Tool interface {
	FetchInfo(ctx context.Context, url string) (*media.Info, error)
	Download(ctx context.Context, url string, outputTemplate string, format media.Format) error
}

// MetadataCache stores successful metadata lookups. Implementations must be
// safe for concurrent use.
type MetadataCache interface {
	Get(ctx context.Context, url string) (*media.Metadata, error)
	Set(ctx context.Context, url string, m media.Metadata) error
}

type nopCache struct{}

func (nopCache) Get(context.Context, string) (*media.Metadata, error) { return nil, nil }

func (nopCache) Set(context.Context, string, media.Metadata) error { return nil }

// Artifact is the downloaded file handed to the deliver callback. Body is only
// valid for the duration of that callback.
type Artifact struct {
	Name        string
	SourceName  string
	Size        int64
	Format      media.Format
	ContentType string
	Body        io.Reader
}

type Options struct {
	TempRoot        string
	Sanitizer       filename.Sanitizer
	MetadataTimeout time.Duration
	DownloadTimeout time.Duration
	Cache           MetadataCache
}

type Service struct {
	tool Tool
	opts Options
	log  *zap.Logger
}

func NewService(tool Tool, logger *zap.Logger, opts Options) *Service {
	if opts.Cache == nil {
		opts.Cache = nopCache{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		tool: tool,
		opts: opts,
		log:  logger.Named("convert"),
	}
}

// ParseRequest validates the query of a download request. The URL is checked
// before the format.
func ParseRequest(q url.Values) (media.Request, error) {
	u, err := checkURL(q.Get("url"))
	if err != nil {
		return media.Request{}, err
	}
	format, err := media.ParseFormat(q.Get("format"))
	if err != nil {
		return media.Request{URL: u}, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	return media.Request{URL: u, Format: format}, nil
}

// Metadata looks up display metadata for rawURL without downloading media.
func (s *Service) Metadata(ctx context.Context, rawURL string) (media.Metadata, error) {
	u, err := checkURL(rawURL)
	if err != nil {
		return media.Metadata{}, err
	}
	log := s.log.With(zap.String("url", u))

	if cached, err := s.opts.Cache.Get(ctx, u); err != nil {
		log.Warn("metadata cache read failed", zap.Error(err))
	} else if cached != nil {
		log.Debug("metadata cache hit")
		return *cached, nil
	}

	runCtx, cancel := withTimeout(ctx, s.opts.MetadataTimeout)
	defer cancel()
	info, err := s.tool.FetchInfo(runCtx, u)
	if err != nil {
		return media.Metadata{}, err
	}
	m := info.Metadata()
	log.Info("fetched metadata",
		zap.String("title", m.Title),
		zap.String("artist", m.Artist),
		zap.Bool("thumbnail", m.Thumbnail != nil),
	)

	if err := s.opts.Cache.Set(ctx, u, m); err != nil {
		log.Warn("metadata cache write failed", zap.Error(err))
	}
	return m, nil
}

// Download materializes req into a fresh work area, finds the single artifact
// and passes it to deliver. The work area is removed before Download returns,
// whatever the outcome; removal failures are only logged.
func (s *Service) Download(ctx context.Context, req media.Request, deliver func(*Artifact) error) error {
	u, err := checkURL(req.URL)
	if err != nil {
		return err
	}
	req.URL = u
	if _, err := media.ParseFormat(req.Format.String()); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if req.Format == "" {
		req.Format = media.DefaultFormat
	}

	area, err := workarea.New(s.opts.TempRoot)
	if err != nil {
		return err
	}
	log := s.log.With(zap.String("url", req.URL), zap.String("format", req.Format.String()), zap.String("work_area", area.Dir()))
	defer func() {
		if err := area.Close(); err != nil {
			log.Warn("work area cleanup failed", zap.Error(err))
		}
	}()

	runCtx, cancel := withTimeout(ctx, s.opts.DownloadTimeout)
	defer cancel()
	start := time.Now()
	if err := s.tool.Download(runCtx, req.URL, area.OutputTemplate(ytdlp.OutputName), req.Format); err != nil {
		return err
	}
	log.Info("downloader finished", zap.Duration("elapsed", time.Since(start)))

	path, err := area.Artifact()
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrReadFailure, err)
	}
	defer f.Close()
	stat, err := f.Stat()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrReadFailure, err)
	}

	source := filepath.Base(path)
	return deliver(&Artifact{
		Name:        s.opts.Sanitizer.Sanitize(source),
		SourceName:  source,
		Size:        stat.Size(),
		Format:      req.Format,
		ContentType: req.Format.ContentType(),
		Body:        f,
	})
}

// checkURL trims raw and accepts only absolute http(s) URLs. The URL is the
// downloader's first argument, so anything else could be read as an option.
func checkURL(raw string) (string, error) {
	u := strings.TrimSpace(raw)
	if u == "" {
		return "", ErrMissingParameter
	}
	parsed, err := url.Parse(u)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("%w: scheme %q not allowed", ErrInvalidURL, parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return u, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
