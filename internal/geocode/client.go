package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Point is a WGS84-like coordinate pair in decimal degrees, as returned by
// the geocoding provider.
type Point struct {
	Lng float64
	Lat float64
}

// Config for the geocoding client.
type Config struct {
	APIKey   string
	BaseURL  string        // default AMap v3 geocode endpoint
	Timeout  time.Duration // per-request timeout
	Interval time.Duration // minimum gap between consecutive network calls
}

// Client resolves a place name + city into coordinates, memoized through a
// Cache. A cache hit returns immediately with no network call; a miss issues
// exactly one provider request; the Interval gap is a throttle, not a retry.
type Client struct {
	cfg    Config
	cache  *Cache
	http   *http.Client
	logger *slog.Logger

	mu       sync.Mutex
	lastCall time.Time
}

func NewClient(cfg Config, cache *Cache, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://restapi.amap.com/v3/geocode/geo"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Interval < 0 {
		cfg.Interval = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		cache:  cache,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type amapResponse struct {
	Status   string `json:"status"`
	Geocodes []struct {
		Location string `json:"location"` // "lng,lat"
	} `json:"geocodes"`
}

// Geocode resolves name within city. A nil Point with nil error means
// "unresolvable": a non-success provider status or an empty candidate list
// is a valid outcome, not a failure. Callers must treat nil as skippable.
func (c *Client) Geocode(ctx context.Context, name, city string) (*Point, error) {
	if pt, ok := c.cache.Get(city, name); ok {
		c.logger.Debug("geocode.cache_hit", "city", city, "name", name)
		return &pt, nil
	}

	c.throttle()

	q := url.Values{}
	q.Set("key", c.cfg.APIKey)
	q.Set("address", name)
	q.Set("city", city)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocode request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("geocode.bad_status", "status", resp.StatusCode, "name", name)
		return nil, nil
	}
	var out amapResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode geocode response: %w", err)
	}
	if out.Status != "1" || len(out.Geocodes) == 0 {
		c.logger.Debug("geocode.unresolved", "city", city, "name", name, "status", out.Status)
		return nil, nil
	}

	pt, ok := parseLocation(out.Geocodes[0].Location)
	if !ok {
		c.logger.Warn("geocode.bad_location", "name", name, "location", out.Geocodes[0].Location)
		return nil, nil
	}

	c.cache.Put(city, name, pt)
	c.logger.Debug("geocode.resolved", "city", city, "name", name, "lng", pt.Lng, "lat", pt.Lat)
	return &pt, nil
}

// throttle enforces the process-wide minimum interval between network calls.
func (c *Client) throttle() {
	if c.cfg.Interval <= 0 {
		return
	}
	c.mu.Lock()
	wait := c.cfg.Interval - time.Since(c.lastCall)
	if wait > 0 {
		time.Sleep(wait)
	}
	c.lastCall = time.Now()
	c.mu.Unlock()
}

// parseLocation splits the provider's "lng,lat" delimited pair.
func parseLocation(loc string) (Point, bool) {
	parts := strings.Split(loc, ",")
	if len(parts) != 2 {
		return Point{}, false
	}
	lng, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lat, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return Point{}, false
	}
	return Point{Lng: lng, Lat: lat}, true
}
