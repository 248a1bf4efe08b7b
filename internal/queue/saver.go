package queue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"

	"ytconvert/internal/client"
	"ytconvert/internal/filename"
)

// DirSaver writes downloads into Dir under the server-supplied name, adding a
// numeric suffix rather than overwriting. Progress goes to Progress when set.
type DirSaver struct {
	Dir      string
	Progress io.Writer
}

func (s DirSaver) Save(ctx context.Context, d *client.Download) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", err
	}
	name := filename.Sanitize(filepath.Base(d.Filename))
	f, path, err := createUnique(s.Dir, name)
	if err != nil {
		return "", err
	}

	var dst io.Writer = f
	var bar *progressbar.ProgressBar
	if s.Progress != nil {
		bar = newBar(d.Size, filepath.Base(path), s.Progress)
		dst = io.MultiWriter(f, bar)
	}

	n, err := io.Copy(dst, &ctxReader{ctx: ctx, r: d.Body})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && d.Size >= 0 && n != d.Size {
		err = fmt.Errorf("short download: got %d of %d bytes", n, d.Size)
	}
	if err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("save %s: %w", path, err)
	}
	if bar != nil {
		_ = bar.Finish()
	}
	return path, nil
}

func createUnique(dir, name string) (*os.File, string, error) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for i := 0; i < 1000; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s (%d)%s", base, i, ext)
		}
		path := filepath.Join(dir, candidate)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return nil, "", err
		}
		return f, path, nil
	}
	return nil, "", fmt.Errorf("no free file name for %s in %s", name, dir)
}

func newBar(size int64, description string, w io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions64(size,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(10),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() { fmt.Fprint(w, "\n") }),
		progressbar.OptionSpinnerType(14),
	)
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
