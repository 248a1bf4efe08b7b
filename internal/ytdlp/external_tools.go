package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"

	"ytconvert/internal/media"
)

const (
	DefaultBinary       = "yt-dlp"
	DefaultRetries      = 2
	DefaultAudioQuality = "192K"

	// OutputName is the per-file template placed inside a work area. The tool
	// picks the real name; callers discover it afterwards.
	OutputName = "%(title)s.%(ext)s"

	waitDelay = 5 * time.Second

	mp4Selector = "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best"
)

// Runner executes the downloader binary with the given arguments and returns
// its standard output.
type Runner interface {
	Run(ctx context.Context, args []string) ([]byte, error)
}

// ExecRunner runs the real binary as a subprocess.
type ExecRunner struct {
	Binary string
}

func (r ExecRunner) Run(ctx context.Context, args []string) ([]byte, error) {
	binary := r.Binary
	if binary == "" {
		binary = DefaultBinary
	}
	cmd := exec.CommandContext(ctx, binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Children that inherit the pipes must not hold Run open after a kill.
	cmd.WaitDelay = waitDelay
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w (%v)", ctxErr, err)
		}
		return stdout.Bytes(), &ToolError{Err: err, Stderr: stderr.String()}
	}
	return stdout.Bytes(), nil
}

// ToolError is returned when the downloader could not be started or exited
// non-zero. Stderr holds whatever diagnostic text it printed, possibly none.
type ToolError struct {
	Err    error
	Stderr string
}

func (e *ToolError) Error() string {
	if diag, ok := e.Diagnostic(); ok {
		return fmt.Sprintf("yt-dlp failed: %v | %s", e.Err, diag)
	}
	return fmt.Sprintf("yt-dlp failed: %v", e.Err)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// Diagnostic returns the trimmed stderr text and whether there was any.
func (e *ToolError) Diagnostic() (string, bool) {
	s := strings.TrimSpace(e.Stderr)
	return s, s != ""
}

// Message is the user-facing text: the diagnostic cut to limit runes when
// present, otherwise the underlying error. A run stopped by its context says
// so first, since its stderr is only whatever was printed before the kill.
func (e *ToolError) Message(limit int) string {
	diag, ok := e.Diagnostic()
	if ctxErr := contextError(e.Err); ctxErr != nil {
		msg := "yt-dlp stopped: " + ctxErr.Error()
		if ok {
			msg += " | " + Truncate(diag, limit)
		}
		return msg
	}
	if ok {
		return "yt-dlp error: " + Truncate(diag, limit)
	}
	return e.Error()
}

func contextError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return context.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return context.Canceled
	}
	return nil
}

// AsToolError unwraps err into a *ToolError if it carries one.
func AsToolError(err error) (*ToolError, bool) {
	var te *ToolError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:n]))
}

// Client builds invocations for the two operations the service needs.
type Client struct {
	runner       Runner
	retries      int
	audioQuality string
}

type Option func(*Client)

func WithRetries(n int) Option {
	return func(c *Client) {
		c.retries = n
	}
}

func WithAudioQuality(q string) Option {
	return func(c *Client) {
		c.audioQuality = q
	}
}

func NewClient(runner Runner, opts ...Option) *Client {
	c := &Client{
		runner:       runner,
		retries:      DefaultRetries,
		audioQuality: DefaultAudioQuality,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchInfo runs the tool in metadata-only mode and decodes the first JSON
// object it prints.
func (c *Client) FetchInfo(ctx context.Context, url string) (*media.Info, error) {
	out, err := c.runner.Run(ctx, MetadataArgs(url))
	if err != nil {
		return nil, err
	}
	var info media.Info
	if err := json.NewDecoder(bytes.NewReader(out)).Decode(&info); err != nil {
		return nil, fmt.Errorf("yt-dlp metadata parse error: %w", err)
	}
	return &info, nil
}

// Download materializes url into outputTemplate using the flags for format.
func (c *Client) Download(ctx context.Context, url string, outputTemplate string, format media.Format) error {
	_, err := c.runner.Run(ctx, c.DownloadArgs(url, outputTemplate, format))
	return err
}

func MetadataArgs(url string) []string {
	return []string{
		url,
		"--skip-download",
		"--dump-json",
		"--no-warnings",
		"--ignore-errors",
	}
}

func (c *Client) DownloadArgs(url string, outputTemplate string, format media.Format) []string {
	args := []string{
		url,
		"-o", outputTemplate,
		"--no-warnings",
		"--ignore-errors",
		"--retries", fmt.Sprint(c.retries),
	}
	switch format {
	case media.FormatMP4:
		args = append(args,
			"-f", mp4Selector,
			"--embed-thumbnail",
			"--add-metadata",
		)
	default:
		args = append(args,
			"-x",
			"--audio-format", "mp3",
			"--audio-quality", c.audioQuality,
			"--embed-thumbnail",
			"--add-metadata",
		)
	}
	return args
}
