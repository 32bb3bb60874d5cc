package config

import "time"

// StoreConfig selects and configures the session store driver
type StoreConfig struct {
	Driver    string        `yaml:"driver"` // memory, file, sqlite, postgres, redis
	Dir       string        `yaml:"dir,omitempty"`
	DSN       string        `yaml:"dsn,omitempty"`
	RedisAddr string        `yaml:"redis_addr,omitempty"`
	RedisDB   int           `yaml:"redis_db,omitempty"`
	RedisTTL  time.Duration `yaml:"redis_ttl,omitempty"`
}

// WorkflowConfig holds the models and limits used by the wizard
type WorkflowConfig struct {
	GenerationModel string `yaml:"generation_model"`
	InferenceModel  string `yaml:"inference_model"`
	MaxTokens       int    `yaml:"max_tokens"`
	MaxIterations   int    `yaml:"max_iterations"`
}

// BatchConfig bounds the size and parallelism of summarization calls
type BatchConfig struct {
	MaxItems    int `yaml:"max_items"`
	MaxChars    int `yaml:"max_chars"`
	Concurrency int `yaml:"concurrency"`
	MaxTokens   int `yaml:"max_tokens"`
}

// GatewayConfig holds settings for calls to the text generation providers
type GatewayConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// InputConfig controls how response files are turned into response items
type InputConfig struct {
	MaxItems   int   `yaml:"max_items"` // 0 keeps every item
	SampleSeed int64 `yaml:"sample_seed"`
}

const (
	DefaultStoreDriver     = "file"
	DefaultStoreDir        = ".summaprompt/sessions"
	DefaultGenerationModel = "gpt-4o-mini"
	DefaultMaxTokens       = 2000
	DefaultMaxIterations   = 3
	DefaultBatchItems      = 15
	DefaultBatchChars      = 24000
	DefaultConcurrency     = 4
	DefaultBatchMaxTokens  = 4000
	DefaultGatewayTimeout  = 90 * time.Second
	DefaultSampleSeed      = 42
)

func (c *EnvConfig) applyDefaults() {
	if c.Store.Driver == "" {
		c.Store.Driver = DefaultStoreDriver
	}
	if c.Store.Driver == "file" && c.Store.Dir == "" {
		c.Store.Dir = DefaultStoreDir
	}
	if c.Workflow.GenerationModel == "" {
		c.Workflow.GenerationModel = DefaultGenerationModel
	}
	if c.Workflow.InferenceModel == "" {
		c.Workflow.InferenceModel = c.Workflow.GenerationModel
	}
	if c.Workflow.MaxTokens <= 0 {
		c.Workflow.MaxTokens = DefaultMaxTokens
	}
	if c.Workflow.MaxIterations <= 0 {
		c.Workflow.MaxIterations = DefaultMaxIterations
	}
	if c.Batch.MaxItems <= 0 {
		c.Batch.MaxItems = DefaultBatchItems
	}
	if c.Batch.MaxChars <= 0 {
		c.Batch.MaxChars = DefaultBatchChars
	}
	if c.Batch.Concurrency <= 0 {
		c.Batch.Concurrency = DefaultConcurrency
	}
	if c.Batch.MaxTokens <= 0 {
		c.Batch.MaxTokens = DefaultBatchMaxTokens
	}
	if c.Gateway.Timeout <= 0 {
		c.Gateway.Timeout = DefaultGatewayTimeout
	}
	if c.Input.SampleSeed == 0 {
		c.Input.SampleSeed = DefaultSampleSeed
	}
}
