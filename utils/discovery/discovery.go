// Package discovery lists the models each provider can serve so the user
// can pick an inference model.
package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/generative-ai-go/genai"
	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/kris-hansen/summaprompt/utils/config"
)

// DefaultTTL is how long a fetched model list is reused
const DefaultTTL = time.Hour

var defaultBaseURLs = map[string]string{
	"openai":   "https://api.openai.com/v1",
	"xai":      "https://api.x.ai/v1",
	"deepseek": "https://api.deepseek.com/v1",
	"ollama":   "http://localhost:11434",
}

// Static lists for providers without a listing endpoint, and the fallback
// when a listing call fails
var staticModels = map[string][]string{
	"anthropic": {
		"claude-3-5-haiku-latest",
		"claude-3-7-sonnet-latest",
		"claude-sonnet-4-20250514",
		"claude-opus-4-20250514",
	},
	"google": {
		"gemini-1.5-flash",
		"gemini-1.5-pro",
		"gemini-2.0-flash",
		"gemini-2.0-flash-lite",
	},
	"mock": {"mock-model"},
}

type cached struct {
	models  []string
	fetched time.Time
}

// Lister fetches and caches model lists per provider
type Lister struct {
	env    *config.EnvConfig
	client *http.Client
	ttl    time.Duration
	now    func() time.Time

	mu    sync.RWMutex
	cache map[string]cached
}

// New creates a lister using the API keys and base URLs in env
func New(env *config.EnvConfig) *Lister {
	return &Lister{
		env:    env,
		client: &http.Client{Timeout: 10 * time.Second},
		ttl:    DefaultTTL,
		now:    time.Now,
		cache:  make(map[string]cached),
	}
}

func (l *Lister) baseURL(provider string) string {
	if pc, ok := l.env.Providers[provider]; ok && pc != nil && pc.BaseURL != "" {
		return strings.TrimRight(pc.BaseURL, "/")
	}
	return defaultBaseURLs[provider]
}

// Models returns the models available from provider, sorted by name
func (l *Lister) Models(ctx context.Context, provider string) ([]string, error) {
	l.mu.RLock()
	entry, ok := l.cache[provider]
	l.mu.RUnlock()
	if ok && l.now().Sub(entry.fetched) < l.ttl {
		config.DebugLog("[Discovery] Using cached models for %s", provider)
		return entry.models, nil
	}

	var (
		models []string
		err    error
	)
	switch provider {
	case "openai", "xai", "deepseek":
		models, err = l.openAICompatible(ctx, provider)
	case "google":
		models, err = l.google(ctx)
	case "ollama":
		models, err = l.ollama(ctx)
	case "anthropic", "mock":
		models = staticModels[provider]
	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}
	if err != nil {
		return nil, err
	}

	sorted := append([]string(nil), models...)
	sort.Strings(sorted)
	l.mu.Lock()
	l.cache[provider] = cached{models: sorted, fetched: l.now()}
	l.mu.Unlock()
	return sorted, nil
}

// ClearCache forgets every fetched list
func (l *Lister) ClearCache() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache = make(map[string]cached)
}

func (l *Lister) openAICompatible(ctx context.Context, provider string) ([]string, error) {
	apiKey := l.env.APIKey(provider)
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required to list %s models", provider)
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = l.baseURL(provider)
	cfg.HTTPClient = l.client

	list, err := openai.NewClientWithConfig(cfg).ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("error fetching %s models: %w", provider, err)
	}
	names := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		names = append(names, m.ID)
	}
	return names, nil
}

// google lists generative models, falling back to the static list when the
// API cannot be reached
func (l *Lister) google(ctx context.Context) ([]string, error) {
	apiKey := l.env.APIKey("google")
	if apiKey == "" {
		return staticModels["google"], nil
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		config.DebugLog("[Discovery] Google client error, using static list: %v", err)
		return staticModels["google"], nil
	}
	defer client.Close()

	var names []string
	it := client.ListModels(ctx)
	for {
		m, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			config.DebugLog("[Discovery] Google listing error, using static list: %v", err)
			return staticModels["google"], nil
		}
		name := m.Name
		if idx := strings.LastIndex(name, "/"); idx != -1 {
			name = name[idx+1:]
		}
		if strings.HasPrefix(name, "gemini") {
			names = append(names, name)
		}
	}
	return names, nil
}

func (l *Lister) ollama(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL("ollama")+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error connecting to Ollama API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("Ollama API error (status %d): %s", resp.StatusCode, string(body))
	}

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("error decoding Ollama response: %w", err)
	}
	names := make([]string, len(tags.Models))
	for i, m := range tags.Models {
		names[i] = m.Name
	}
	return names, nil
}
