package ark

import (
	"os"
	"time"
)

// Config for the Ark chat-completions client.
type Config struct {
	APIKey    string        // if empty, falls back to env ARK_API_KEY
	BaseURL   string        // default https://ark.cn-beijing.volces.com/api/v3
	Model     string        // model name or inference endpoint id
	Timeout   time.Duration // http client timeout
	MaxTokens int           // default completion budget when a request sets none
}

func (c *Config) applyDefaults() {
	if c.APIKey == "" {
		c.APIKey = os.Getenv("ARK_API_KEY")
	}
	if c.BaseURL == "" {
		c.BaseURL = "https://ark.cn-beijing.volces.com/api/v3"
	}
	if c.Model == "" {
		c.Model = os.Getenv("ARK_MODEL")
	}
	if c.Timeout <= 0 {
		c.Timeout = 600 * time.Second
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 16384
	}
}
