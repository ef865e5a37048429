package replay

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"kernelfuzz/internal/ir"
)

// Current schema version - increment when the cached Outcome layout changes
const cacheSchemaVersion uint16 = 1

// Cache stores outcomes on disk keyed by input digest and runner
// fingerprint. A nil *Cache is a valid, always-missing cache.
type Cache struct {
	mu  sync.RWMutex
	dir string
}

type cacheRecord struct {
	Schema  uint16
	Outcome Outcome
}

// DefaultCacheDir is $XDG_CACHE_HOME/kernelfuzz, falling back to
// ~/.cache/kernelfuzz.
func DefaultCacheDir() (string, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".cache")
	}
	return filepath.Join(base, "kernelfuzz"), nil
}

// OpenCache creates dir if needed. An empty dir means DefaultCacheDir.
func OpenCache(dir string) (*Cache, error) {
	if dir == "" {
		var err error
		if dir, err = DefaultCacheDir(); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Cache{dir: dir}, nil
}

func (c *Cache) Dir() string {
	if c == nil {
		return ""
	}
	return c.dir
}

// CacheKey combines the input digest with a runner fingerprint.
func CacheKey(input ir.Digest, fingerprint []byte) ir.Digest {
	return ir.SumInput(input[:], fingerprint)
}

func (c *Cache) pathFor(key ir.Digest) string {
	// подкаталоги по первому байту, чтобы не копить миллионы файлов в одном
	hexKey := key.String()
	return filepath.Join(c.dir, "outcomes", hexKey[:2], hexKey+".mp")
}

// Put writes out under key.
func (c *Cache) Put(key ir.Digest, out Outcome) error {
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
	defer func() {
		_ = os.Remove(f.Name())
	}()

	if err := msgpack.NewEncoder(f).Encode(&cacheRecord{Schema: cacheSchemaVersion, Outcome: out}); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	// Атомарная замена
	return os.Rename(f.Name(), p)
}

// Get reads the outcome stored under key. Records of another schema are
// treated as missing.
func (c *Cache) Get(key ir.Digest) (Outcome, bool, error) {
	if c == nil {
		return Outcome{}, false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Outcome{}, false, nil
		}
		return Outcome{}, false, err
	}
	defer f.Close()

	var rec cacheRecord
	if err := msgpack.NewDecoder(f).Decode(&rec); err != nil {
		return Outcome{}, false, err
	}
	if rec.Schema != cacheSchemaVersion {
		return Outcome{}, false, nil
	}
	return rec.Outcome, true, nil
}

// DropAll invalidates the cache.
func (c *Cache) DropAll() error {
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
	if err := os.RemoveAll(old); err != nil {
		return err
	}
	return os.MkdirAll(c.dir, 0o755)
}
