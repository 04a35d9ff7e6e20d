package profile

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Profile is configuration to start the concierge server and CLI.
type Profile struct {
	// LLM used for Signal A (OpenAI-compatible protocol, or ollama)
	LLMProvider string // openai, deepseek, siliconflow, dashscope, openrouter, ollama
	LLMAPIKey   string
	LLMBaseURL  string // optional, has default per provider
	LLMModel    string
	LLMTimeout  int     // seconds, default 120
	LLMRPS      float64 // outgoing request limit, 0 disables limiting

	// Embedding model used for Signal B and document search.
	// Samples and queries must be embedded with the same model.
	EmbeddingProvider string
	EmbeddingModel    string
	EmbeddingAPIKey   string
	EmbeddingBaseURL  string
	VectorThreshold   float64

	// Location collection: MongoURI wins over LocationsFile.
	MongoURI        string
	MongoDatabase   string
	MongoCollection string
	LocationsFile   string

	// Retrieval cache
	CacheBackend  string // memory, redis, noop
	CacheCapacity int
	CacheTTL      time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	LogLevel  string
	LogFormat string // json, text

	Mode    string
	Addr    string
	Driver  string
	DSN     string
	Version string
	Port    int
}

// Provider default configurations for the LLM.
// Used when the base URL or model is not explicitly set.
var llmProviderDefaults = map[string]struct {
	BaseURL string
	Model   string
}{
	"openai": {
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-4o-mini",
	},
	"deepseek": {
		BaseURL: "https://api.deepseek.com",
		Model:   "deepseek-chat",
	},
	"siliconflow": {
		BaseURL: "https://api.siliconflow.cn/v1",
		Model:   "Qwen/Qwen2.5-7B-Instruct",
	},
	"dashscope": {
		BaseURL: "https://dashscope.aliyuncs.com/compatible-mode/v1",
		Model:   "qwen-plus",
	},
	"openrouter": {
		BaseURL: "https://openrouter.ai/api/v1",
		Model:   "openai/gpt-4o-mini",
	},
	"ollama": {
		BaseURL: "http://localhost:11434",
		Model:   "llama3.1",
	},
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsLLMEnabled reports whether Signal A has a usable backend.
// Ollama runs locally without a key.
func (p *Profile) IsLLMEnabled() bool {
	return p.LLMAPIKey != "" || p.LLMProvider == "ollama"
}

// IsEmbeddingEnabled reports whether Signal B has a usable backend.
func (p *Profile) IsEmbeddingEnabled() bool {
	return p.EmbeddingAPIKey != "" || p.EmbeddingProvider == "ollama"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		slog.Warn("ignoring non-integer environment value", "key", key, "value", value)
	}
	return defaultValue
}

func getEnvOrDefaultFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
		slog.Warn("ignoring non-numeric environment value", "key", key, "value", value)
	}
	return defaultValue
}

func getEnvOrDefaultDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		slog.Warn("ignoring invalid duration", "key", key, "value", value)
	}
	return defaultValue
}

// FromEnv loads AI, location, cache and logging configuration from
// CONCIERGE_* environment variables. Server flags (mode, addr, port, driver,
// dsn) are bound by the command line.
func (p *Profile) FromEnv() {
	p.LLMProvider = getEnvOrDefault("CONCIERGE_LLM_PROVIDER", "openai")
	p.LLMAPIKey = getEnvOrDefault("CONCIERGE_LLM_API_KEY", "")
	p.LLMBaseURL = getEnvOrDefault("CONCIERGE_LLM_BASE_URL", "")
	p.LLMModel = getEnvOrDefault("CONCIERGE_LLM_MODEL", "")
	p.LLMTimeout = getEnvOrDefaultInt("CONCIERGE_LLM_TIMEOUT_SECONDS", 120)
	p.LLMRPS = getEnvOrDefaultFloat("CONCIERGE_LLM_RPS", 0)

	if _, ok := llmProviderDefaults[p.LLMProvider]; !ok {
		slog.Warn("Unknown LLM provider, using default: openai", "provider", p.LLMProvider)
		p.LLMProvider = "openai"
	}
	defaults := llmProviderDefaults[p.LLMProvider]
	if p.LLMBaseURL == "" {
		p.LLMBaseURL = defaults.BaseURL
	}
	if p.LLMModel == "" {
		p.LLMModel = defaults.Model
	}

	p.EmbeddingProvider = getEnvOrDefault("CONCIERGE_EMBEDDING_PROVIDER", "openai")
	p.EmbeddingModel = getEnvOrDefault("CONCIERGE_EMBEDDING_MODEL", "text-embedding-3-small")
	p.EmbeddingAPIKey = getEnvOrDefault("CONCIERGE_EMBEDDING_API_KEY", p.LLMAPIKey)
	p.EmbeddingBaseURL = getEnvOrDefault("CONCIERGE_EMBEDDING_BASE_URL", "")
	p.VectorThreshold = getEnvOrDefaultFloat("CONCIERGE_VECTOR_THRESHOLD", 0.65)

	p.MongoURI = getEnvOrDefault("CONCIERGE_MONGO_URI", "")
	p.MongoDatabase = getEnvOrDefault("CONCIERGE_MONGO_DATABASE", "concierge")
	p.MongoCollection = getEnvOrDefault("CONCIERGE_MONGO_COLLECTION", "locations")
	p.LocationsFile = getEnvOrDefault("CONCIERGE_LOCATIONS_FILE", "")

	p.CacheBackend = getEnvOrDefault("CONCIERGE_CACHE_BACKEND", "memory")
	p.CacheCapacity = getEnvOrDefaultInt("CONCIERGE_CACHE_CAPACITY", 500)
	p.CacheTTL = getEnvOrDefaultDuration("CONCIERGE_CACHE_TTL", 10*time.Minute)
	p.RedisAddr = getEnvOrDefault("CONCIERGE_REDIS_ADDR", "localhost:6379")
	p.RedisPassword = getEnvOrDefault("CONCIERGE_REDIS_PASSWORD", "")
	p.RedisDB = getEnvOrDefaultInt("CONCIERGE_REDIS_DB", 0)

	p.LogLevel = getEnvOrDefault("CONCIERGE_LOG_LEVEL", "")
	p.LogFormat = getEnvOrDefault("CONCIERGE_LOG_FORMAT", "")
}

// Validate normalizes the profile and rejects unusable settings.
func (p *Profile) Validate() error {
	if p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "dev"
	}
	if p.LogLevel == "" {
		p.LogLevel = "info"
		if p.IsDev() {
			p.LogLevel = "debug"
		}
	}
	if p.LogFormat == "" {
		p.LogFormat = "text"
		if !p.IsDev() {
			p.LogFormat = "json"
		}
	}

	switch p.Driver {
	case "postgres":
		if p.DSN == "" {
			return errors.New("postgres driver requires a dsn")
		}
	case "sqlite":
		if p.DSN == "" {
			p.DSN = "concierge_" + p.Mode + ".db"
		}
	case "":
		// Without a vector store Signal B always degrades.
	default:
		return errors.Errorf("unsupported database driver %q", p.Driver)
	}

	p.CacheBackend = strings.ToLower(p.CacheBackend)
	switch p.CacheBackend {
	case "":
		p.CacheBackend = "memory"
	case "memory", "noop":
	case "redis":
		if p.RedisAddr == "" {
			return errors.New("redis cache backend requires an address")
		}
	default:
		return errors.Errorf("unsupported cache backend %q", p.CacheBackend)
	}
	if p.CacheCapacity < 0 {
		return errors.Errorf("cache capacity cannot be negative: %d", p.CacheCapacity)
	}

	if p.VectorThreshold < -1 || p.VectorThreshold > 1 {
		return errors.Errorf("vector threshold must be within [-1, 1]: %v", p.VectorThreshold)
	}
	if p.LLMRPS < 0 {
		return errors.Errorf("llm rps cannot be negative: %v", p.LLMRPS)
	}
	return nil
}
