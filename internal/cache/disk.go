package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"chtl/internal/diag"
)

// Current schema version - increment when Entry format changes.
const diskSchemaVersion uint16 = 2

// DiskCache stores parsed compiler results on disk, one msgpack file per key.
// It is safe for concurrent use.
type DiskCache struct {
	mu  sync.RWMutex
	dir string
}

// Entry is the cached outcome of one compiler run.
type Entry struct {
	Schema   uint16        `msgpack:"schema"`
	Success  bool          `msgpack:"success"`
	ExitCode int           `msgpack:"exit"`
	Records  []diag.Record `msgpack:"records"`
	Created  int64         `msgpack:"created"`
}

// OpenDiskCache opens the cache under $XDG_CACHE_HOME/<app> (or
// ~/.cache/<app>).
func OpenDiskCache(app string) (*DiskCache, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	return OpenDiskCacheDir(filepath.Join(base, app))
}

// OpenDiskCacheDir opens the cache rooted at dir, creating it if needed.
func OpenDiskCacheDir(dir string) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskCache{dir: dir}, nil
}

// Dir returns the cache root.
func (c *DiskCache) Dir() string {
	return c.dir
}

func (c *DiskCache) pathFor(key Digest) string {
	return filepath.Join(c.dir, "results", key.String()+".mp")
}

// Put serializes and writes an entry, replacing any previous one atomically.
func (c *DiskCache) Put(key Digest, entry *Entry) (err error) {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	stored := *entry
	stored.Schema = diskSchemaVersion
	if stored.Created == 0 {
		stored.Created = time.Now().Unix()
	}
	if err := msgpack.NewEncoder(f).Encode(&stored); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode cache entry: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, p)
}

// Get reads an entry. Missing entries and entries written by another schema
// version report false without error.
func (c *DiskCache) Get(key Digest, out *Entry) (bool, error) {
	if c == nil {
		return false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()

	var entry Entry
	if err := msgpack.NewDecoder(f).Decode(&entry); err != nil {
		return false, fmt.Errorf("decode cache entry: %w", err)
	}
	if entry.Schema != diskSchemaVersion {
		return false, nil
	}
	*out = entry
	return true, nil
}

// DropAll invalidates the cache.
func (c *DiskCache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.dir + ".old-" + time.Now().Format("20060102150405")
	if err := os.Rename(c.dir, old); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}
	return os.RemoveAll(old)
}
