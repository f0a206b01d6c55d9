package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port string

	AllowedOrigins []string

	DBDSN string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Quota limits
	MaxRequestsPerHour int
	MaxTokensPerHour   int
	RateLimitWindow    time.Duration

	MaxInputLength int
	HistoryWindow  int

	// AI provider
	AIProvider          string
	OpenAIAPIKey        string
	OpenAIBaseURL       string
	OpenAIModel         string
	OpenRouterBaseURL   string
	OpenRouterAPIKey    string
	OpenRouterModel     string
	OpenRouterSiteURL   string
	OpenRouterAppName   string
	OllamaBaseURL       string
	OllamaModel         string
	MaxCompletionTokens int
	Temperature         float64

	SystemPromptFile string

	// Turnstile
	TurnstileSecretKey string
	TurnstileVerifyURL string

	// usage queue (empty URL = report token usage in-process)
	RabbitURL   string
	RabbitQueue string

	// commits widget
	GitHubRepo      string
	GitHubToken     string
	CommitsCacheTTL time.Duration
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// defaultOrigins mirrors the production site plus the local dev ports the
// frontend tooling actually uses.
var defaultOrigins = []string{
	"https://plonguo.com",
	"https://www.plonguo.com",
	"http://localhost:5173",
	"http://localhost:4173",
	"http://localhost:3000",
	"http://localhost:3001",
	"http://127.0.0.1:5173",
	"http://127.0.0.1:3000",
}

func Load() Config {
	origins := defaultOrigins
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		origins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
	}

	return Config{
		Port: envStr("PORT", "8080"),

		AllowedOrigins: origins,

		// Empty DSN lets internal/db fall back to an embedded sqlite file,
		// which is enough for the single-row commits cache in local runs.
		DBDSN: os.Getenv("DB_DSN"),

		RedisAddr:     envStr("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),

		MaxRequestsPerHour: envInt("MAX_REQUESTS_PER_HOUR", 30),
		MaxTokensPerHour:   envInt("MAX_TOKENS_PER_HOUR", 100000),
		RateLimitWindow:    envDuration("RATE_LIMIT_WINDOW", time.Hour),

		MaxInputLength: envInt("MAX_INPUT_LENGTH", 1000),
		HistoryWindow:  envInt("HISTORY_WINDOW", 10),

		AIProvider:          envStr("AI_PROVIDER", "openai"),
		OpenAIAPIKey:        os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:       os.Getenv("OPENAI_BASE_URL"),
		OpenAIModel:         envStr("OPENAI_MODEL", "gpt-4o-mini"),
		OpenRouterBaseURL:   envStr("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		OpenRouterAPIKey:    os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterModel:     envStr("OPENROUTER_MODEL", "openrouter/auto"),
		OpenRouterSiteURL:   os.Getenv("OPENROUTER_SITE_URL"),
		OpenRouterAppName:   os.Getenv("OPENROUTER_APP_NAME"),
		OllamaBaseURL:       envStr("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaModel:         envStr("OLLAMA_MODEL", "llama3:latest"),
		MaxCompletionTokens: envInt("MAX_COMPLETION_TOKENS", 1024),
		Temperature:         envFloat("TEMPERATURE", 0.7),

		SystemPromptFile: os.Getenv("SYSTEM_PROMPT_FILE"),

		TurnstileSecretKey: os.Getenv("TURNSTILE_SECRET_KEY"),
		TurnstileVerifyURL: envStr("TURNSTILE_VERIFY_URL",
			"https://challenges.cloudflare.com/turnstile/v0/siteverify"),

		RabbitURL:   os.Getenv("RABBIT_URL"),
		RabbitQueue: envStr("RABBIT_QUEUE", "chat_usage"),

		GitHubRepo:      envStr("GITHUB_REPO", "PlonGuo/Responsive-personal-portfolio"),
		GitHubToken:     os.Getenv("GITHUB_TOKEN"),
		CommitsCacheTTL: envDuration("COMMITS_CACHE_TTL", 5*time.Minute),
	}
}
