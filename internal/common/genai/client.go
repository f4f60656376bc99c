// Package genai talks to the GenAI gateway that fronts the completion and
// embedding models.
package genai

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	commonhttp "finqa-agent/internal/common/http"
	"finqa-agent/internal/ports"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	generatePath = "/api/ai/generate"
	embedPath    = "/api/ai/embed"
)

type Config struct {
	BaseURL        string
	APIKey         string
	Model          string
	EmbeddingModel string
	Temperature    float64
	MaxTokens      int
	Timeout        time.Duration
	CacheSize      int
}

type generateRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

type generateResponse struct {
	Text string `json:"text"`
}

type embedRequest struct {
	Model    string `json:"model"`
	Text     string `json:"text"`
	TaskType string `json:"task_type"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Client implements ports.LLM and ports.Embedder over the gateway's REST API.
type Client struct {
	config *Config
	http   *commonhttp.Client

	cacheMu sync.Mutex
	cache   *lru.Cache[string, []float32]
}

func NewClient(config *Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("genai: base url is required")
	}
	c := &Client{
		config: config,
		http:   commonhttp.NewClient(config.Timeout).WithBearerToken(config.APIKey),
	}
	if config.CacheSize > 0 {
		if err := c.EnableCache(config.CacheSize); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// EnableCache keeps up to size query embeddings in memory.
func (c *Client) EnableCache(size int) error {
	if size <= 0 {
		return fmt.Errorf("genai: cache size must be greater than zero")
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return fmt.Errorf("genai: init cache: %w", err)
	}
	c.cacheMu.Lock()
	c.cache = cache
	c.cacheMu.Unlock()
	return nil
}

func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	var resp generateResponse
	err := c.http.PostJSON(ctx, c.url(generatePath), generateRequest{
		Model:       c.config.Model,
		Prompt:      prompt,
		Temperature: c.config.Temperature,
		MaxTokens:   c.config.MaxTokens,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("genai generate: %w", err)
	}
	if strings.TrimSpace(resp.Text) == "" {
		return "", fmt.Errorf("genai generate: empty completion")
	}
	return resp.Text, nil
}

func (c *Client) Embed(ctx context.Context, text string, mode ports.EmbedMode) ([]float32, error) {
	key := string(mode) + "\x00" + text
	if cache := c.getCache(); cache != nil {
		if vector, ok := cache.Get(key); ok {
			return cloneVector(vector), nil
		}
	}

	var resp embedResponse
	err := c.http.PostJSON(ctx, c.url(embedPath), embedRequest{
		Model:    c.config.EmbeddingModel,
		Text:     text,
		TaskType: taskType(mode),
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("genai embed: %w", err)
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("genai embed: empty embedding")
	}

	if cache := c.getCache(); cache != nil {
		cache.Add(key, cloneVector(resp.Embedding))
	}
	return resp.Embedding, nil
}

func (c *Client) getCache() *lru.Cache[string, []float32] {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	return c.cache
}

func (c *Client) url(path string) string {
	return strings.TrimRight(c.config.BaseURL, "/") + path
}

func taskType(mode ports.EmbedMode) string {
	if mode == ports.EmbedModeDocument {
		return "RETRIEVAL_DOCUMENT"
	}
	return "RETRIEVAL_QUERY"
}

func cloneVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
