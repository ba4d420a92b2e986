// Package diskcache persists the last-known-good payload of an upstream
// feed to disk so a restart can render immediately without the network.
package diskcache

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Cache manages timestamped payload files for one feed.
type Cache struct {
	dir      string
	prefix   string
	maxFiles int
}

// New creates a Cache that stores files named <prefix>_<unix>.json in dir
// and keeps at most maxFiles of them.
func New(dir, prefix string, maxFiles int) *Cache {
	if maxFiles <= 0 {
		maxFiles = 5
	}
	return &Cache{
		dir:      dir,
		prefix:   prefix,
		maxFiles: maxFiles,
	}
}

// Write saves data to a timestamped file and prunes old files beyond the
// configured maximum.
func (c *Cache) Write(data []byte, ts time.Time) error {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}

	filename := fmt.Sprintf("%s_%d.json", c.prefix, ts.Unix())
	path := filepath.Join(c.dir, filename)

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}

	return c.prune()
}

// LoadLatest reads the newest cache file by the timestamp embedded in its
// filename. Returns the payload and the timestamp it was written at.
func (c *Cache) LoadLatest() ([]byte, time.Time, error) {
	files, err := c.listFiles()
	if err != nil {
		return nil, time.Time{}, err
	}
	if len(files) == 0 {
		return nil, time.Time{}, fmt.Errorf("no %s cache files found", c.prefix)
	}

	latest := files[len(files)-1]
	data, err := os.ReadFile(filepath.Join(c.dir, latest.name))
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("reading cache file: %w", err)
	}

	return data, latest.ts, nil
}

type cacheFile struct {
	name string
	ts   time.Time
}

// listFiles returns this feed's cache files sorted oldest first.
func (c *Cache) listFiles() ([]cacheFile, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing cache dir: %w", err)
	}

	var files []cacheFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, c.prefix+"_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		tsStr := strings.TrimSuffix(strings.TrimPrefix(name, c.prefix+"_"), ".json")
		unix, err := strconv.ParseInt(tsStr, 10, 64)
		if err != nil {
			continue
		}
		files = append(files, cacheFile{name: name, ts: time.Unix(unix, 0).UTC()})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].ts.Before(files[j].ts) })
	return files, nil
}

// prune removes the oldest files beyond maxFiles.
func (c *Cache) prune() error {
	files, err := c.listFiles()
	if err != nil {
		return err
	}
	for len(files) > c.maxFiles {
		if err := os.Remove(filepath.Join(c.dir, files[0].name)); err != nil {
			return fmt.Errorf("pruning cache file: %w", err)
		}
		files = files[1:]
	}
	return nil
}
