package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ytconvert/internal/media"
)

type fakeRunner struct {
	args   [][]string
	stdout string
	err    error
}

func (f *fakeRunner) Run(_ context.Context, args []string) ([]byte, error) {
	f.args = append(f.args, args)
	return []byte(f.stdout), f.err
}

func TestMetadataArgs(t *testing.T) {
	assert.Equal(t,
		[]string{"https://youtu.be/x", "--skip-download", "--dump-json", "--no-warnings", "--ignore-errors"},
		MetadataArgs("https://youtu.be/x"),
	)
}

func TestDownloadArgs(t *testing.T) {
	c := NewClient(&fakeRunner{})

	mp3 := c.DownloadArgs("u", "/tmp/a/%(title)s.%(ext)s", media.FormatMP3)
	assert.Equal(t, []string{
		"u", "-o", "/tmp/a/%(title)s.%(ext)s", "--no-warnings", "--ignore-errors", "--retries", "2",
		"-x", "--audio-format", "mp3", "--audio-quality", "192K", "--embed-thumbnail", "--add-metadata",
	}, mp3)

	mp4 := c.DownloadArgs("u", "/tmp/a/%(title)s.%(ext)s", media.FormatMP4)
	assert.Equal(t, []string{
		"u", "-o", "/tmp/a/%(title)s.%(ext)s", "--no-warnings", "--ignore-errors", "--retries", "2",
		"-f", "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best", "--embed-thumbnail", "--add-metadata",
	}, mp4)
}

func TestDownloadArgs_Options(t *testing.T) {
	c := NewClient(&fakeRunner{}, WithRetries(5), WithAudioQuality("0"))
	args := strings.Join(c.DownloadArgs("u", "o", media.FormatMP3), " ")
	assert.Contains(t, args, "--retries 5")
	assert.Contains(t, args, "--audio-quality 0")
}

func TestClient_FetchInfo(t *testing.T) {
	r := &fakeRunner{stdout: `{"title":"Song","uploader":"Band","thumbnail":"t.jpg"}` + "\n"}
	info, err := NewClient(r).FetchInfo(context.Background(), "u")
	require.NoError(t, err)
	assert.Equal(t, "Song", info.Title)
	assert.Equal(t, "Band", info.Uploader)
	require.Len(t, r.args, 1)
	assert.Equal(t, MetadataArgs("u"), r.args[0])
}

func TestClient_FetchInfo_FirstObjectOnly(t *testing.T) {
	r := &fakeRunner{stdout: "{\"title\":\"one\"}\n{\"title\":\"two\"}\n"}
	info, err := NewClient(r).FetchInfo(context.Background(), "u")
	require.NoError(t, err)
	assert.Equal(t, "one", info.Title)
}

func TestClient_FetchInfo_Malformed(t *testing.T) {
	for _, out := range []string{"", "not json", "{\"title\":"} {
		_, err := NewClient(&fakeRunner{stdout: out}).FetchInfo(context.Background(), "u")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse error")
	}
}

func TestClient_FetchInfo_ToolError(t *testing.T) {
	r := &fakeRunner{err: &ToolError{Err: errors.New("exit status 1"), Stderr: "ERROR: Unsupported URL\n"}}
	_, err := NewClient(r).FetchInfo(context.Background(), "u")
	te, ok := AsToolError(err)
	require.True(t, ok)
	diag, ok := te.Diagnostic()
	assert.True(t, ok)
	assert.Equal(t, "ERROR: Unsupported URL", diag)
}

func TestToolError_Message(t *testing.T) {
	te := &ToolError{Err: errors.New("exit status 1"), Stderr: "  " + strings.Repeat("é", 400) + "  "}
	msg := te.Message(300)
	assert.True(t, strings.HasPrefix(msg, "yt-dlp error: "))
	assert.Equal(t, 300, len([]rune(strings.TrimPrefix(msg, "yt-dlp error: "))))

	bare := &ToolError{Err: errors.New("executable file not found")}
	_, ok := bare.Diagnostic()
	assert.False(t, ok)
	assert.Equal(t, "yt-dlp failed: executable file not found", bare.Message(300))
}

func TestToolError_MessageOnContextError(t *testing.T) {
	timedOut := &ToolError{
		Err:    fmt.Errorf("%w (%v)", context.DeadlineExceeded, errors.New("signal: killed")),
		Stderr: "[youtube] abc: Downloading webpage\n",
	}
	assert.Equal(t, "yt-dlp stopped: context deadline exceeded | [youtube] abc: Downloading webpage", timedOut.Message(300))

	canceled := &ToolError{Err: fmt.Errorf("%w (%v)", context.Canceled, errors.New("signal: killed"))}
	assert.Equal(t, "yt-dlp stopped: context canceled", canceled.Message(300))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 10))
	assert.Equal(t, "ab", Truncate("abc", 2))
	assert.Equal(t, "abc", Truncate("abc", 0))
	assert.Equal(t, "日本", Truncate("日本語", 2))
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in needs a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "yt-dlp")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestExecRunner_Success(t *testing.T) {
	bin := writeScript(t, `echo "{\"title\":\"$1\"}"`)
	info, err := NewClient(ExecRunner{Binary: bin}).FetchInfo(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", info.Title)
}

func TestExecRunner_Failure(t *testing.T) {
	bin := writeScript(t, `echo "ERROR: [generic] Unsupported URL" >&2; exit 1`)
	_, err := ExecRunner{Binary: bin}.Run(context.Background(), []string{"x"})
	te, ok := AsToolError(err)
	require.True(t, ok)
	assert.Equal(t, "yt-dlp error: ERROR: [generic] Unsupported URL", te.Message(300))
}

func TestExecRunner_Timeout(t *testing.T) {
	bin := writeScript(t, `echo "[youtube] abc: Downloading webpage" >&2; exec sleep 5`)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := ExecRunner{Binary: bin}.Run(ctx, []string{"x"})
	te, ok := AsToolError(err)
	require.True(t, ok)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, strings.HasPrefix(te.Message(300), "yt-dlp stopped: context deadline exceeded"), te.Message(300))
}

func TestExecRunner_MissingBinary(t *testing.T) {
	_, err := ExecRunner{Binary: filepath.Join(t.TempDir(), "nope")}.Run(context.Background(), nil)
	te, ok := AsToolError(err)
	require.True(t, ok)
	_, hasDiag := te.Diagnostic()
	assert.False(t, hasDiag)
}
