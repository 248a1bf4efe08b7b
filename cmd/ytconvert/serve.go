package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"ytconvert/internal/config"
	"ytconvert/internal/convert"
	"ytconvert/internal/filename"
	"ytconvert/internal/logging"
	"ytconvert/internal/server"
	"ytconvert/internal/store"
	"ytconvert/internal/ytdlp"
)

func serveCommand() *cli.Command {
	d := config.Default()
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: d.Addr, Usage: "listen `ADDRESS`", EnvVars: []string{"ADDR"}},
			&cli.StringFlag{Name: "yt-dlp", Value: config.DefaultYtDlpPath, Usage: "yt-dlp binary `PATH`", EnvVars: config.YtDlpPathEnv},
			&cli.StringFlag{Name: "temp-dir", Value: d.TempDir, Usage: "root `DIR` for per-request work areas", EnvVars: []string{"TEMP_DIR"}},
			&cli.IntFlag{Name: "max-filename-length", Value: d.MaxFilenameLength, Usage: "maximum download name length, extension excluded", EnvVars: []string{"MAX_FILENAME_LENGTH"}},
			&cli.BoolFlag{Name: "ascii-filenames", Usage: "replace non-ASCII characters in download names", EnvVars: []string{"ASCII_FILENAMES"}},
			&cli.DurationFlag{Name: "metadata-timeout", Value: d.MetadataTimeout, Usage: "limit on a metadata lookup, 0 for none", EnvVars: []string{"METADATA_TIMEOUT"}},
			&cli.DurationFlag{Name: "download-timeout", Value: d.DownloadTimeout, Usage: "limit on a download, 0 for none", EnvVars: []string{"DOWNLOAD_TIMEOUT"}},
			&cli.Float64Flag{Name: "rate", Value: d.RequestsPerSecond, Usage: "requests per second", EnvVars: []string{"RATE_LIMIT"}},
			&cli.IntFlag{Name: "burst", Value: d.Burst, Usage: "rate limit burst", EnvVars: []string{"RATE_BURST"}},
			&cli.BoolFlag{Name: "redis", Value: d.RedisEnabled, Usage: "cache metadata in Redis when reachable", EnvVars: []string{"REDIS_ENABLED"}},
			&cli.StringFlag{Name: "redis-addr", Value: d.RedisAddr, Usage: "Redis `ADDRESS`", EnvVars: []string{"REDIS_ADDR"}},
			&cli.StringFlag{Name: "redis-password", Value: d.RedisPassword, Usage: "Redis password", EnvVars: []string{"REDIS_PASSWORD"}},
			&cli.IntFlag{Name: "redis-db", Value: d.RedisDB, Usage: "Redis database", EnvVars: []string{"REDIS_DB"}},
			&cli.DurationFlag{Name: "metadata-ttl", Value: d.MetadataCacheTTL, Usage: "metadata cache expiry", EnvVars: []string{"METADATA_CACHE_TTL"}},
			&cli.StringFlag{Name: "history", Value: "ytconvert.db", Usage: "download history database `FILE`, empty to disable", EnvVars: []string{"HISTORY_PATH"}},
			&cli.DurationFlag{Name: "work-area-expiration", Value: d.WorkAreaExpiration, Usage: "age after which leftover work areas are removed", EnvVars: []string{"WORK_AREA_EXPIRATION"}},
			&cli.DurationFlag{Name: "janitor-interval", Value: d.JanitorInterval, Usage: "how often leftover work areas are swept", EnvVars: []string{"JANITOR_INTERVAL"}},
			&cli.DurationFlag{Name: "health-interval", Value: d.HealthCheckInterval, Usage: "how often stats are logged, 0 to disable", EnvVars: []string{"HEALTH_CHECK_INTERVAL"}},
		},
		Action: func(c *cli.Context) error {
			cfg := configFromFlags(c)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			logger, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			return serve(c.Context, cfg, logger)
		},
	}
}

func configFromFlags(c *cli.Context) config.Config {
	return config.Config{
		Addr:                c.String("addr"),
		YtDlpPath:           c.String("yt-dlp"),
		TempDir:             c.String("temp-dir"),
		MaxFilenameLength:   c.Int("max-filename-length"),
		ASCIIFilenames:      c.Bool("ascii-filenames"),
		MetadataTimeout:     c.Duration("metadata-timeout"),
		DownloadTimeout:     c.Duration("download-timeout"),
		RequestsPerSecond:   c.Float64("rate"),
		Burst:               c.Int("burst"),
		RedisEnabled:        c.Bool("redis"),
		RedisAddr:           c.String("redis-addr"),
		RedisPassword:       c.String("redis-password"),
		RedisDB:             c.Int("redis-db"),
		MetadataCacheTTL:    c.Duration("metadata-ttl"),
		HistoryPath:         c.String("history"),
		WorkAreaExpiration:  c.Duration("work-area-expiration"),
		JanitorInterval:     c.Duration("janitor-interval"),
		HealthCheckInterval: c.Duration("health-interval"),
		LogLevel:            c.String("log-level"),
		LogDevelopment:      c.Bool("log-development"),
	}
}

func serve(ctx context.Context, cfg config.Config, logger *zap.Logger) (err error) {
	var closers []func() error
	defer func() {
		var result *multierror.Error
		for i := len(closers) - 1; i >= 0; i-- {
			if cerr := closers[i](); cerr != nil {
				result = multierror.Append(result, cerr)
			}
		}
		if cerr := result.ErrorOrNil(); cerr != nil {
			logger.Error("shutdown incomplete", zap.Error(cerr))
			if err == nil {
				err = cerr
			}
		}
	}()

	opts := convert.Options{
		TempRoot:        cfg.TempDir,
		Sanitizer:       filename.Sanitizer{MaxLength: cfg.MaxFilenameLength, ASCIIOnly: cfg.ASCIIFilenames},
		MetadataTimeout: cfg.MetadataTimeout,
		DownloadTimeout: cfg.DownloadTimeout,
	}
	if cfg.RedisEnabled {
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		cache, err := store.ConnectRedis(pingCtx, store.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.MetadataCacheTTL,
		})
		cancel()
		if err != nil {
			logger.Warn("metadata cache disabled", zap.Error(err))
		} else {
			logger.Info("redis connected", zap.String("addr", cfg.RedisAddr))
			opts.Cache = cache
			closers = append(closers, cache.Close)
		}
	}

	srvOpts := server.Options{
		ToolPath:           cfg.YtDlpPath,
		TempRoot:           cfg.TempDir,
		WorkAreaExpiration: cfg.WorkAreaExpiration,
		JanitorInterval:    cfg.JanitorInterval,
		HealthInterval:     cfg.HealthCheckInterval,
		RequestsPerSecond:  cfg.RequestsPerSecond,
		Burst:              cfg.Burst,
	}
	if cfg.HistoryPath != "" {
		history, err := store.OpenHistory(cfg.HistoryPath)
		if err != nil {
			return err
		}
		srvOpts.History = history
		closers = append(closers, history.Close)
	}

	tool := ytdlp.NewClient(ytdlp.ExecRunner{Binary: cfg.YtDlpPath})
	svc := convert.NewService(tool, logger, opts)
	s := server.New(svc, logger, srvOpts)

	bgCtx, stopBackground := context.WithCancel(ctx)
	defer stopBackground()
	go s.RunBackground(bgCtx)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			zap.String("addr", cfg.Addr),
			zap.String("yt_dlp", cfg.YtDlpPath),
			zap.Float64("rate_limit", cfg.RequestsPerSecond),
			zap.Int("burst", cfg.Burst),
		)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
