// Presenced - Discord Rich Presence for MPRIS Media Players
// Copyright 2026 Presenced Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenced/presenced

package cover

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/presenced/presenced/internal/logging"
	"github.com/presenced/presenced/internal/metrics"
	"github.com/presenced/presenced/internal/models"
)

// Key prefixes for BadgerDB storage.
const (
	entryKeyPrefix = "cover:"
	imageKeyPrefix = "img:"
)

// maintenanceInterval paces the expiry sweep and value-log GC.
const maintenanceInterval = time.Hour

// Cache is the on-disk cover-art cache: one sidecar record per
// fingerprint, plus optional raw image bytes for upload providers.
type Cache struct {
	db *badger.DB
}

// OpenCache opens (or creates) the cache at dir. Empty dir selects the
// XDG cache home.
func OpenCache(dir string) (*Cache, error) {
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("cannot determine cache directory: %w", err)
		}
		dir = filepath.Join(base, "presenced", "cover")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("cannot create cache directory: %w", err)
	}

	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("cannot open cover cache: %w", err)
	}
	return &Cache{db: db}, nil
}

// Get returns the cached entry for a fingerprint, or false when absent
// or expired. Expired entries are left for the maintenance sweep.
func (c *Cache) Get(fingerprint string) (*models.CoverArtEntry, bool, error) {
	var entry models.CoverArtEntry

	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(entryKeyPrefix + fingerprint))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		metrics.CoverCacheMisses.Inc()
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache read: %w", err)
	}

	if entry.Expired(time.Now()) {
		metrics.CoverCacheMisses.Inc()
		return nil, false, nil
	}

	metrics.CoverCacheHits.Inc()
	return &entry, true, nil
}

// Put stores the sidecar record for a fingerprint.
func (c *Cache) Put(fingerprint string, entry *models.CoverArtEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	err = c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(entryKeyPrefix+fingerprint), data)
	})
	if err != nil {
		return fmt.Errorf("cache write: %w", err)
	}
	return nil
}

// PutImage stores raw image bytes alongside the sidecar, so upload
// providers can retry without re-reading the media file.
func (c *Cache) PutImage(fingerprint string, data []byte) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(imageKeyPrefix+fingerprint), data)
	})
	if err != nil {
		return fmt.Errorf("image write: %w", err)
	}
	return nil
}

// GetImage returns stored image bytes, or false when absent.
func (c *Cache) GetImage(fingerprint string) ([]byte, bool, error) {
	var data []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(imageKeyPrefix + fingerprint))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("image read: %w", err)
	}
	return data, true, nil
}

// Sweep removes expired sidecar records and their image bytes, returning
// how many entries were dropped.
func (c *Cache) Sweep(now time.Time) (int, error) {
	var expired []string

	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(entryKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var entry models.CoverArtEntry
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
			if err != nil || entry.Expired(now) {
				expired = append(expired, string(item.Key())[len(entryKeyPrefix):])
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("cache sweep scan: %w", err)
	}

	for _, fingerprint := range expired {
		err := c.db.Update(func(txn *badger.Txn) error {
			if err := txn.Delete([]byte(entryKeyPrefix + fingerprint)); err != nil {
				return err
			}
			err := txn.Delete([]byte(imageKeyPrefix + fingerprint))
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		})
		if err != nil {
			return 0, fmt.Errorf("cache sweep delete: %w", err)
		}
	}

	return len(expired), nil
}

// Serve runs periodic maintenance until ctx is canceled: expiry sweep
// plus Badger value-log GC. Implements the suture service contract.
func (c *Cache) Serve(ctx context.Context) error {
	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if dropped, err := c.Sweep(time.Now()); err != nil {
				logging.Warn().Err(err).Msg("Cover cache sweep failed")
			} else if dropped > 0 {
				logging.Debug().Int("dropped", dropped).Msg("Cover cache sweep")
			}

			// One pass per tick; ErrNoRewrite just means nothing to do.
			if err := c.db.RunValueLogGC(0.5); err != nil &&
				!errors.Is(err, badger.ErrNoRewrite) {
				logging.Warn().Err(err).Msg("Cover cache value-log GC failed")
			}
		}
	}
}

func (c *Cache) String() string { return "cover-cache" }

// Close flushes and closes the underlying store.
func (c *Cache) Close() error {
	return c.db.Close()
}
