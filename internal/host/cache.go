package host

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Entry is a cached step output.
type Entry struct {
	Key    Key    `json:"key"`
	Step   string `json:"step"`
	Output []byte `json:"-"`
}

// Cache stores step outputs by key. Get returns nil, nil on a miss.
type Cache interface {
	Get(key Key) (*Entry, error)
	Put(entry *Entry) error
}

// FileCache stores entries on disk:
//
//	{Dir}/{key[0:2]}/{key}/
//	  metadata.json
//	  output.blob
type FileCache struct {
	Dir string
}

func NewFileCache(dir string) *FileCache { return &FileCache{Dir: dir} }

func (c *FileCache) entryPath(key Key) string {
	k := string(key)
	if len(k) < 2 {
		return filepath.Join(c.Dir, k)
	}
	return filepath.Join(c.Dir, k[:2], k)
}

func (c *FileCache) Get(key Key) (*Entry, error) {
	dir := c.entryPath(key)
	data, err := os.ReadFile(filepath.Join(dir, "metadata.json"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading cache metadata: %w", err)
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("parsing cache metadata: %w", err)
	}
	if e.Key != key {
		return nil, fmt.Errorf("cache entry %s holds key %s", key, e.Key)
	}
	e.Output, err = os.ReadFile(filepath.Join(dir, "output.blob"))
	if err != nil {
		return nil, fmt.Errorf("reading cached output: %w", err)
	}
	return &e, nil
}

// Put writes the entry into a temporary directory and renames it into
// place, so a crash leaves either no entry or a complete one.
func (c *FileCache) Put(e *Entry) error {
	if e == nil {
		return errors.New("cache entry is nil")
	}
	dir := c.entryPath(e.Key)
	parent := filepath.Dir(dir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	tmpDir, err := os.MkdirTemp(parent, "tmp-entry-"+string(e.Key)+"-")
	if err != nil {
		return fmt.Errorf("creating temp cache entry dir: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = os.RemoveAll(tmpDir)
		}
	}()

	if err := writeFileAtomic(filepath.Join(tmpDir, "output.blob"), e.Output, 0o644); err != nil {
		return fmt.Errorf("writing cached output: %w", err)
	}
	meta, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling cache metadata: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(tmpDir, "metadata.json"), meta, 0o644); err != nil {
		return fmt.Errorf("writing cache metadata: %w", err)
	}

	// A crash between remove and rename yields a miss, not a corrupt entry.
	_ = os.RemoveAll(dir)
	if err := os.Rename(tmpDir, dir); err != nil {
		return fmt.Errorf("committing cache entry: %w", err)
	}
	committed = true
	return nil
}

// MemoryCache keeps entries in memory.
type MemoryCache struct {
	entries map[Key]*Entry
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[Key]*Entry)}
}

func (c *MemoryCache) Get(key Key) (*Entry, error) {
	e, ok := c.entries[key]
	if !ok {
		return nil, nil
	}
	return copyEntry(e), nil
}

func (c *MemoryCache) Put(e *Entry) error {
	if e == nil {
		return errors.New("cache entry is nil")
	}
	c.entries[e.Key] = copyEntry(e)
	return nil
}

// Len reports the number of stored entries.
func (c *MemoryCache) Len() int { return len(c.entries) }

func copyEntry(e *Entry) *Entry {
	return &Entry{Key: e.Key, Step: e.Step, Output: append([]byte(nil), e.Output...)}
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	_ = tmp.Sync()
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
