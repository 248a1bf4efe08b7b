package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

var Buckets = struct {
	Metadata []byte
	History  []byte
}{
	Metadata: []byte("__metadata__"),
	History:  []byte("history"),
}

var MetadataKeys = struct {
	Version []byte
}{
	Version: []byte("version"),
}

const currentVersion = 1

var ErrNotFound = errors.New("history entry not found")

// Entry records one file that was served to a client.
type Entry struct {
	ID           string    `json:"id"`
	URL          string    `json:"url"`
	Format       string    `json:"format"`
	Filename     string    `json:"filename"`
	Title        string    `json:"title"`
	Size         int64     `json:"size"`
	DownloadedAt time.Time `json:"downloaded_at"`
}

// History is an append-mostly log of completed downloads in a bbolt file.
// Keys are UUIDv7 strings, so key order is insertion order.
type History struct {
	db *bbolt.DB
}

func OpenHistory(path string) (_ *History, err error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = db.Close()
		}
	}()
	err = db.Update(func(tx *bbolt.Tx) error {
		metadata, err := tx.CreateBucketIfNotExists(Buckets.Metadata)
		if err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(Buckets.History); err != nil {
			return err
		}

		var version int
		if versionBytes := metadata.Get(MetadataKeys.Version); versionBytes != nil {
			if err := json.Unmarshal(versionBytes, &version); err != nil {
				return err
			}
		}
		if version > currentVersion {
			return fmt.Errorf("history database version %d is newer than supported %d", version, currentVersion)
		}
		versionBytes, err := json.Marshal(currentVersion)
		if err != nil {
			return err
		}
		return metadata.Put(MetadataKeys.Version, versionBytes)
	})
	if err != nil {
		return nil, err
	}
	return &History{db: db}, nil
}

func (h *History) Close() error {
	return h.db.Close()
}

// Add stores e, assigning ID and DownloadedAt when unset.
func (h *History) Add(e *Entry) error {
	if e.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		e.ID = id.String()
	}
	if e.DownloadedAt.IsZero() {
		e.DownloadedAt = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return h.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(Buckets.History).Put([]byte(e.ID), data)
	})
}

// List returns up to limit entries, newest first. limit <= 0 means all.
func (h *History) List(limit int) ([]Entry, error) {
	entries := []Entry{}
	err := h.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(Buckets.History).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(entries) >= limit {
				break
			}
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("corrupt history entry %s: %w", k, err)
			}
			entries = append(entries, e)
		}
		return nil
	})
	return entries, err
}

func (h *History) Delete(id string) error {
	return h.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(Buckets.History)
		if b.Get([]byte(id)) == nil {
			return ErrNotFound
		}
		return b.Delete([]byte(id))
	})
}

func (h *History) Count() (int, error) {
	var n int
	err := h.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(Buckets.History).Stats().KeyN
		return nil
	})
	return n, err
}
