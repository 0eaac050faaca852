package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Paths   PathsConfig
	LLM     LLMConfig
	Geocode GeocodeConfig
	Polygon PolygonConfig
}

// PathsConfig holds the data directory layout
type PathsConfig struct {
	InputDir   string // raw source documents (pdf/docx/xlsx/txt)
	TextDir    string // extracted plain text
	JSONDir    string // structured per-document JSON
	PolygonDir string // GeoJSON output; points/ and items/ live underneath
	CacheFile  string // persisted geocode cache
	BackupDir  string // previous versions of replaced polygon files
}

// LLMConfig holds Ark (chat completions) configuration
type LLMConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	Timeout   time.Duration
	MaxTokens int

	// DirectThreshold is the maximum text size (in runes) sent as a single
	// request; longer texts go through the blob-upload or segmented path.
	DirectThreshold int
	// MaxSegmentChars bounds individual segments produced by the splitter.
	MaxSegmentChars int
	// FileDelay is the pause between consecutive document requests.
	FileDelay time.Duration
}

// GeocodeConfig holds geocoding provider configuration
type GeocodeConfig struct {
	APIKey   string
	BaseURL  string
	City     string
	Timeout  time.Duration
	Interval time.Duration // throttle between network calls
}

// PolygonConfig holds polygon synthesis configuration
type PolygonConfig struct {
	HullMethod   string  // bbox | convex | concave
	ConcaveRatio float64 // 0..1, lower hugs the points tighter
	ItemBufferM  float64 // include-area buffer radius in meters
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			InputDir:   getEnv("ZONEMAP_INPUT_DIR", "data/files"),
			TextDir:    getEnv("ZONEMAP_TEXT_DIR", "data/outputs"),
			JSONDir:    getEnv("ZONEMAP_JSON_DIR", "data/json"),
			PolygonDir: getEnv("ZONEMAP_POLYGON_DIR", "data/polygons"),
			CacheFile:  getEnv("ZONEMAP_GEOCODE_CACHE", "data/.geocode_cache.json"),
			BackupDir:  getEnv("ZONEMAP_BACKUP_DIR", "data/polygons/.backup"),
		},
		LLM: LLMConfig{
			APIKey:          getEnv("ARK_API_KEY", ""),
			BaseURL:         getEnv("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
			Model:           getEnv("ARK_MODEL", "doubao-seed-1-6"),
			Timeout:         getEnvAsDuration("ARK_TIMEOUT", 600*time.Second),
			MaxTokens:       getEnvAsInt("ARK_MAX_TOKENS", 16384),
			DirectThreshold: getEnvAsInt("ZONEMAP_DIRECT_THRESHOLD", 8000),
			MaxSegmentChars: getEnvAsInt("ZONEMAP_MAX_SEGMENT_CHARS", 6000),
			FileDelay:       getEnvAsDuration("ZONEMAP_FILE_DELAY", 500*time.Millisecond),
		},
		Geocode: GeocodeConfig{
			APIKey:   getEnv("AMAP_KEY", ""),
			BaseURL:  getEnv("AMAP_BASE_URL", "https://restapi.amap.com/v3/geocode/geo"),
			City:     getEnv("ZONEMAP_CITY", "苏州"),
			Timeout:  getEnvAsDuration("AMAP_TIMEOUT", 10*time.Second),
			Interval: getEnvAsDuration("ZONEMAP_GEOCODE_INTERVAL", 200*time.Millisecond),
		},
		Polygon: PolygonConfig{
			HullMethod:   getEnv("ZONEMAP_HULL", "convex"),
			ConcaveRatio: getEnvAsFloat64("ZONEMAP_CONCAVE_RATIO", 0.5),
			ItemBufferM:  getEnvAsFloat64("ZONEMAP_ITEM_BUFFER_M", 300),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// ValidateTransform checks the configuration needed before any LLM call.
// Detected eagerly so a missing credential never leaves half-written output.
func (c *Config) ValidateTransform() error {
	if c.LLM.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "ARK_API_KEY is required for transform; set it in the environment", ErrInvalidInput)
	}
	if c.LLM.Model == "" {
		return NewAppError("CONFIG_ERROR", "ARK_MODEL is required", ErrInvalidInput)
	}
	return nil
}

// ValidatePolygon checks the configuration needed before any geocode call.
func (c *Config) ValidatePolygon() error {
	if c.Geocode.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "AMAP_KEY is required for polygon; provide --key or set AMAP_KEY", ErrInvalidInput)
	}
	switch c.Polygon.HullMethod {
	case "bbox", "convex", "concave":
	default:
		return NewAppError("CONFIG_ERROR", "hull method must be one of bbox, convex, concave", ErrInvalidInput)
	}
	return nil
}
