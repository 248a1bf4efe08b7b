// Package queue is the client-side download queue: URLs are submitted, their
// metadata resolved, and pending items downloaded one at a time.
package queue

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ytconvert/internal/client"
	"ytconvert/internal/media"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusLoading   Status = "loading"
	StatusTriggered Status = "triggered"
	StatusError     Status = "error"
)

var (
	ErrEmptyURL = errors.New("url must not be empty")
	ErrBusy     = errors.New("a bulk download is already running")
	ErrNotFound = errors.New("queue item not found")
)

type Item struct {
	ID        string
	URL       string
	Status    Status
	Title     string
	Artist    string
	Thumbnail *string
	Error     string
	SavedPath string
}

// API is the subset of *client.Client the controller needs.
type API interface {
	Metadata(ctx context.Context, videoURL string) (media.Metadata, error)
	Download(ctx context.Context, videoURL string, format media.Format) (*client.Download, error)
}

// Saver persists a downloaded file and returns where it went.
type Saver interface {
	Save(ctx context.Context, d *client.Download) (string, error)
}

// Controller owns the queue. All methods are safe for concurrent use; the
// update callback runs on the goroutine that caused the transition.
type Controller struct {
	api   API
	saver Saver
	log   *zap.Logger

	mu       sync.Mutex
	items    []*Item
	onUpdate func(Item)
	busy     bool
}

func NewController(api API, saver Saver, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{api: api, saver: saver, log: logger.Named("queue")}
}

// SetUpdateCallback registers fn to observe every item transition.
func (c *Controller) SetUpdateCallback(fn func(Item)) {
	c.mu.Lock()
	c.onUpdate = fn
	c.mu.Unlock()
}

// Items returns a snapshot of the queue in submission order.
func (c *Controller) Items() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Item, len(c.items))
	for i, it := range c.items {
		out[i] = *it
	}
	return out
}

// Submit queues rawURL as loading, then resolves its metadata. The returned
// item reflects the state after the lookup.
func (c *Controller) Submit(ctx context.Context, rawURL string) (Item, error) {
	u := strings.TrimSpace(rawURL)
	if u == "" {
		return Item{}, ErrEmptyURL
	}
	it := &Item{ID: uuid.NewString(), URL: u, Status: StatusLoading}
	c.mu.Lock()
	c.items = append(c.items, it)
	c.mu.Unlock()
	c.notify(it)

	m, err := c.api.Metadata(ctx, u)
	if err != nil {
		c.log.Warn("metadata lookup failed", zap.String("url", u), zap.Error(err))
		return c.update(it, func(it *Item) {
			it.Status = StatusError
			it.Error = err.Error()
		}), nil
	}
	return c.update(it, func(it *Item) {
		it.Status = StatusPending
		it.Title = m.Title
		it.Artist = m.Artist
		it.Thumbnail = m.Thumbnail
	}), nil
}

// Remove deletes the item with the given ID.
func (c *Controller) Remove(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, it := range c.items {
		if it.ID == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// DownloadAll downloads every item pending at call time, strictly in order and
// one at a time. Per-item failures mark the item as error and do not stop the
// run. It returns the number of items triggered.
func (c *Controller) DownloadAll(ctx context.Context, format media.Format) (int, error) {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return 0, ErrBusy
	}
	c.busy = true
	var pending []*Item
	for _, it := range c.items {
		if it.Status == StatusPending {
			pending = append(pending, it)
		}
	}
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.busy = false
		c.mu.Unlock()
	}()

	triggered := 0
	for _, it := range pending {
		if err := ctx.Err(); err != nil {
			return triggered, err
		}
		path, err := c.downloadOne(ctx, it.URL, format)
		if err != nil {
			c.log.Warn("download failed", zap.String("url", it.URL), zap.Error(err))
			c.update(it, func(it *Item) {
				it.Status = StatusError
				it.Error = err.Error()
			})
			continue
		}
		triggered++
		c.update(it, func(it *Item) {
			it.Status = StatusTriggered
			it.SavedPath = path
		})
	}
	return triggered, nil
}

func (c *Controller) downloadOne(ctx context.Context, videoURL string, format media.Format) (string, error) {
	d, err := c.api.Download(ctx, videoURL, format)
	if err != nil {
		return "", err
	}
	defer d.Body.Close()
	return c.saver.Save(ctx, d)
}

func (c *Controller) update(it *Item, fn func(*Item)) Item {
	c.mu.Lock()
	fn(it)
	c.mu.Unlock()
	return c.notify(it)
}

func (c *Controller) notify(it *Item) Item {
	c.mu.Lock()
	snapshot := *it
	fn := c.onUpdate
	c.mu.Unlock()
	if fn != nil {
		fn(snapshot)
	}
	return snapshot
}
