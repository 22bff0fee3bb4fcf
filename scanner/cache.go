package scanner

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/kbukum/wirekit/decl"
)

// CacheVersion is bumped whenever the entry layout or extraction rules
// change; caches written with another version are ignored.
const CacheVersion = 2

// Cache holds the declarations of each unit from a previous run, keyed by
// unit path.
type Cache struct {
	Version int                   `json:"version"`
	RunID   string                `json:"run_id,omitempty"`
	Entries map[string]CacheEntry `json:"entries"`
}

// CacheEntry is one unit's cached declarations.
type CacheEntry struct {
	Fingerprint string    `json:"fingerprint"`
	Parser      string    `json:"parser"`
	Unit        decl.Unit `json:"unit"`
	ScannedAt   time.Time `json:"scanned_at"`
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{Version: CacheVersion, Entries: make(map[string]CacheEntry)}
}

// LoadCache reads a cache file. A missing file yields an empty cache and no
// error. An unreadable, corrupt or outdated file also yields an empty cache,
// together with an error the caller should report as a warning.
func LoadCache(path string) (*Cache, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewCache(), nil
		}
		return NewCache(), fmt.Errorf("scanner: reading cache %s: %w", path, err)
	}
	var c Cache
	if err := json.Unmarshal(data, &c); err != nil {
		return NewCache(), fmt.Errorf("scanner: cache %s is corrupt: %w", path, err)
	}
	if c.Version != CacheVersion {
		return NewCache(), fmt.Errorf("scanner: cache %s has version %d, want %d", path, c.Version, CacheVersion)
	}
	if c.Entries == nil {
		c.Entries = make(map[string]CacheEntry)
	}
	return &c, nil
}

// Save writes the cache to path, replacing any existing file atomically.
func (c *Cache) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("scanner: encoding cache: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("scanner: creating cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".wirekit-cache-*")
	if err != nil {
		return fmt.Errorf("scanner: creating temp cache: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("scanner: writing cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("scanner: writing cache: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("scanner: replacing cache: %w", err)
	}
	return nil
}

// Lookup returns the cached unit at path if it was produced by parser from
// content with the given fingerprint.
func (c *Cache) Lookup(path, parser, fingerprint string) (decl.Unit, bool) {
	if c == nil {
		return decl.Unit{}, false
	}
	e, ok := c.Entries[path]
	if !ok || e.Fingerprint != fingerprint || e.Parser != parser {
		return decl.Unit{}, false
	}
	return e.Unit, true
}

// Len returns the number of cached units.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Entries)
}

// Fingerprint returns the BLAKE2b-256 digest of a unit's content.
func Fingerprint(src []byte) string {
	sum := blake2b.Sum256(src)
	return hex.EncodeToString(sum[:])
}

// FS returns the directory at root as an fs.FS.
func FS(root string) fs.FS {
	return os.DirFS(root)
}
