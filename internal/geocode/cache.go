package geocode

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Cache memoizes place-name lookups as city:name -> [lng, lat]. Entries are
// immutable once written and the cache is append-only for the duration of a
// run; it is persisted to a JSON file between runs. Single writer per run:
// concurrent processes sharing one cache file are not supported.
type Cache struct {
	path    string
	entries map[string][2]float64
}

// NewCache returns an empty cache that will persist to path.
func NewCache(path string) *Cache {
	return &Cache{path: path, entries: make(map[string][2]float64)}
}

// LoadCache reads the persisted cache, returning an empty cache when the
// file does not exist yet.
func LoadCache(path string) (*Cache, error) {
	c := &Cache{path: path, entries: make(map[string][2]float64)}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("read geocode cache: %w", err)
	}
	if err := json.Unmarshal(data, &c.entries); err != nil {
		return nil, fmt.Errorf("decode geocode cache %s: %w", path, err)
	}
	return c, nil
}

func cacheKey(city, name string) string { return city + ":" + name }

func (c *Cache) Get(city, name string) (Point, bool) {
	v, ok := c.entries[cacheKey(city, name)]
	if !ok {
		return Point{}, false
	}
	return Point{Lng: v[0], Lat: v[1]}, true
}

func (c *Cache) Put(city, name string, pt Point) {
	c.entries[cacheKey(city, name)] = [2]float64{pt.Lng, pt.Lat}
}

func (c *Cache) Len() int { return len(c.entries) }

// Save persists the cache with write-then-rename so a crash mid-write never
// corrupts the previous cache file.
func (c *Cache) Save() error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode geocode cache: %w", err)
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write geocode cache: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("rename geocode cache: %w", err)
	}
	return nil
}
