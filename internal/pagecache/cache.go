// Package pagecache provides a memoizing random-access reader over a
// remote document. A first "record" pass captures every (offset, length)
// read the PDF engine makes while indexing; later passes replay those
// reads from the persisted cache instead of re-fetching the file.
package pagecache

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/openvault/docpipeline/internal/storage"
)

// ErrMissingIndex is returned when the persisted byte-access cache cannot
// be read. Replay opens must fail loudly rather than fall back to a full
// record pass, which would be prohibitively slow page-by-page on very
// large files.
var ErrMissingIndex = errors.New("byte-access index missing: document was never indexed")

// Key identifies one memoized read.
type Key struct {
	Offset int64
	Length int32
}

// Cache maps exact (offset, length) reads to their bytes. Safe for
// concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[Key][]byte
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: map[Key][]byte{}}
}

// Get returns the cached bytes for an exact read, if present.
func (c *Cache) Get(key Key) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, ok := c.entries[key]
	return data, ok
}

// Put memoizes a read.
func (c *Cache) Put(key Key, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = data
}

// Len reports the number of memoized reads.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

type cacheEntry struct {
	Key  Key
	Data []byte
}

// WriteTo serializes the cache as a gzip-compressed gob stream.
func (c *Cache) WriteTo(w io.Writer) error {
	c.mu.RLock()
	entries := make([]cacheEntry, 0, len(c.entries))
	for key, data := range c.entries {
		entries = append(entries, cacheEntry{Key: key, Data: data})
	}
	c.mu.RUnlock()

	zw := gzip.NewWriter(w)
	if err := gob.NewEncoder(zw).Encode(entries); err != nil {
		return fmt.Errorf("failed to encode byte-access cache: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to compress byte-access cache: %w", err)
	}
	return nil
}

// ReadFrom replaces the cache contents from a serialized stream.
func (c *Cache) ReadFrom(r io.Reader) error {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("failed to decompress byte-access cache: %w", err)
	}
	defer zr.Close()

	var entries []cacheEntry
	if err := gob.NewDecoder(zr).Decode(&entries); err != nil {
		return fmt.Errorf("failed to decode byte-access cache: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[Key][]byte, len(entries))
	for _, entry := range entries {
		c.entries[entry.Key] = entry.Data
	}
	return nil
}

// Save persists the cache to object storage.
func (c *Cache) Save(ctx context.Context, store storage.ObjectStore, path string) error {
	var buf bytes.Buffer
	if err := c.WriteTo(&buf); err != nil {
		return err
	}
	if err := store.Upload(ctx, path, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to upload byte-access cache: %w", err)
	}
	return nil
}

// Load reads a persisted cache from object storage. A missing or
// unreadable index surfaces ErrMissingIndex.
func Load(ctx context.Context, store storage.ObjectStore, path string) (*Cache, error) {
	data, err := store.ReadAll(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingIndex, err)
	}
	c := NewCache()
	if err := c.ReadFrom(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingIndex, err)
	}
	return c, nil
}
