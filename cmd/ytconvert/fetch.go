package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"ytconvert/internal/client"
	"ytconvert/internal/logging"
	"ytconvert/internal/media"
	"ytconvert/internal/queue"
)

func fetchCommand() *cli.Command {
	return &cli.Command{
		Name:      "fetch",
		Usage:     "queue URLs against a running server and save the results",
		ArgsUsage: "URL...",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "server", Value: "http://localhost:8080", Usage: "server base `URL`", EnvVars: []string{"YTCONVERT_SERVER"}},
			&cli.StringFlag{Name: "format", Value: string(media.DefaultFormat), Usage: "mp3 or mp4"},
			&cli.StringFlag{Name: "out", Value: ".", Usage: "save downloads to `DIR`"},
		},
		Action: fetch,
	}
}

func fetch(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("at least one URL is required")
	}
	format, err := media.ParseFormat(c.String("format"))
	if err != nil {
		return err
	}
	logger, err := logging.New(c.String("log-level"), true)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	api, err := client.New(c.String("server"), nil)
	if err != nil {
		return err
	}
	ctrl := queue.NewController(api, queue.DirSaver{Dir: c.String("out"), Progress: os.Stderr}, logger)
	ctrl.SetUpdateCallback(func(it queue.Item) {
		logger.Debug("queue item", zap.String("url", it.URL), zap.String("status", string(it.Status)))
	})

	for _, u := range c.Args().Slice() {
		it, err := ctrl.Submit(c.Context, u)
		if err != nil {
			return fmt.Errorf("%q: %w", u, err)
		}
		if it.Status == queue.StatusPending {
			logger.Info("queued", zap.String("title", it.Title), zap.String("artist", it.Artist))
		}
	}

	if _, err := ctrl.DownloadAll(c.Context, format); err != nil {
		return err
	}

	var result *multierror.Error
	for _, it := range ctrl.Items() {
		switch it.Status {
		case queue.StatusTriggered:
			logger.Info("saved", zap.String("path", it.SavedPath))
		case queue.StatusError:
			result = multierror.Append(result, fmt.Errorf("%s: %s", it.URL, it.Error))
		}
	}
	return result.ErrorOrNil()
}
