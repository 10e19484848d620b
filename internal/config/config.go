package config

import (
	"os"
	"strconv"
	"strings"
)

// Config centralizes runtime settings for the API and workers.
type Config struct {
	Port string

	AuthTokens         map[string]string
	UserPlans          map[string]string
	CORSAllowedOrigins []string

	DatabaseURL string

	OpenAIAPIKey     string
	OpenAIBaseURL    string
	OpenAITimeoutMS  int
	OpenAIMaxRetries int

	OpenRouterAPIKey  string
	OpenRouterBaseURL string
	OpenRouterSiteURL string
	OpenRouterAppName string

	ModelKeywordsPrimary   string
	ModelKeywordsFallback  string
	ModelHeadlinesPrimary  string
	ModelHeadlinesFallback string
	ModelDraftsPrimary     string
	ModelDraftsFallback    string
	ModelConceptsPrimary   string
	ModelConceptsFallback  string
	ModelArticlePrimary    string
	ModelArticleFallback   string
	ModelImage             string

	SerpAPIKey     string
	SerpAPIBaseURL string

	TwitterAPIKey  string
	TwitterBaseURL string

	MediumAPIKey  string
	MediumBaseURL string

	SignalTimeoutMS int

	SemanticCacheTTLSeconds int
	SemanticCacheMaxEntries int
	PromptsDir              string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisStream   string
	RedisDLQ      string
	RedisGroup    string
	RedisConsumer string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	RateLimitRPS   float64
	RateLimitBurst int

	QueueBatchingEnabled     bool
	QueueBatchSize           int
	QueueBatchFlushMS        int
	QueueBatchFlushTimeoutMS int
	QueueBatchQueueCapacity  int
	QueueBatchMaxInFlight    int

	VisibilityCutoff int
	PipelineSeed     int64

	WorkerEnabled bool
}

func Load() Config {
	return Config{
		Port: getEnv("PORT", "8080"),

		AuthTokens:         parseTokenTable(getEnv("API_AUTH_TOKENS", "")),
		UserPlans:          parseTokenTable(getEnv("USER_PLANS", "")),
		CORSAllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "")),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAITimeoutMS:  getEnvInt("OPENAI_TIMEOUT_MS", 20000),
		OpenAIMaxRetries: getEnvInt("OPENAI_MAX_RETRIES", 2),

		OpenRouterAPIKey:  getEnv("OPENROUTER_API_KEY", ""),
		OpenRouterBaseURL: getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		OpenRouterSiteURL: getEnv("OPENROUTER_SITE_URL", ""),
		OpenRouterAppName: getEnv("OPENROUTER_APP_NAME", "contentpulse"),

		ModelKeywordsPrimary:   getEnv("MODEL_KEYWORDS_PRIMARY", "gpt-4.1-mini"),
		ModelKeywordsFallback:  getEnv("MODEL_KEYWORDS_FALLBACK", "gpt-4.1-nano"),
		ModelHeadlinesPrimary:  getEnv("MODEL_HEADLINES_PRIMARY", "gpt-4.1-mini"),
		ModelHeadlinesFallback: getEnv("MODEL_HEADLINES_FALLBACK", "gpt-4.1-nano"),
		ModelDraftsPrimary:     getEnv("MODEL_DRAFTS_PRIMARY", "gpt-4.1-mini"),
		ModelDraftsFallback:    getEnv("MODEL_DRAFTS_FALLBACK", "gpt-4.1-nano"),
		ModelConceptsPrimary:   getEnv("MODEL_CONCEPTS_PRIMARY", "gpt-4.1-mini"),
		ModelConceptsFallback:  getEnv("MODEL_CONCEPTS_FALLBACK", "gpt-4.1-nano"),
		ModelArticlePrimary:    getEnv("MODEL_ARTICLE_PRIMARY", "gpt-4.1"),
		ModelArticleFallback:   getEnv("MODEL_ARTICLE_FALLBACK", "gpt-4.1-mini"),
		ModelImage:             getEnv("MODEL_IMAGE", "gpt-image-1"),

		SerpAPIKey:     getEnv("SERPAPI_KEY", ""),
		SerpAPIBaseURL: getEnv("SERPAPI_BASE_URL", "https://serpapi.com"),

		TwitterAPIKey:  getEnv("TWITTER_API_KEY", ""),
		TwitterBaseURL: getEnv("TWITTER_BASE_URL", "https://twitter154.p.rapidapi.com"),

		MediumAPIKey:  getEnv("MEDIUM_API_KEY", ""),
		MediumBaseURL: getEnv("MEDIUM_BASE_URL", "https://medium2.p.rapidapi.com"),

		SignalTimeoutMS: getEnvInt("SIGNAL_TIMEOUT_MS", 12000),

		SemanticCacheTTLSeconds: getEnvInt("SEMANTIC_CACHE_TTL_SECONDS", 900),
		SemanticCacheMaxEntries: getEnvInt("SEMANTIC_CACHE_MAX_ENTRIES", 2000),
		PromptsDir:              getEnv("PROMPTS_DIR", "prompts"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		RedisStream:   getEnv("REDIS_STREAM", "cp_jobs"),
		RedisDLQ:      getEnv("REDIS_DLQ_STREAM", "cp_jobs_dlq"),
		RedisGroup:    getEnv("REDIS_GROUP", "cp_workers"),
		RedisConsumer: getEnv("REDIS_CONSUMER", "api-1"),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "contentpulse-assets"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),

		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 40),

		QueueBatchingEnabled:     getEnvBool("QUEUE_BATCHING_ENABLED", true),
		QueueBatchSize:           getEnvInt("QUEUE_BATCH_SIZE", 32),
		QueueBatchFlushMS:        getEnvInt("QUEUE_BATCH_FLUSH_MS", 25),
		QueueBatchFlushTimeoutMS: getEnvInt("QUEUE_BATCH_FLUSH_TIMEOUT_MS", 3000),
		QueueBatchQueueCapacity:  getEnvInt("QUEUE_BATCH_QUEUE_CAPACITY", 2048),
		QueueBatchMaxInFlight:    getEnvInt("QUEUE_BATCH_MAX_IN_FLIGHT", 4),

		VisibilityCutoff: getEnvInt("VISIBILITY_CUTOFF", 5),
		PipelineSeed:     int64(getEnvInt("PIPELINE_SEED", 0)),

		WorkerEnabled: getEnvBool("WORKER_ENABLED", true),
	}
}

// parseTokenTable parses "key1:value1,key2:value2" pairs. Used for the
// bearer token table and the user plan table.
func parseTokenTable(value string) map[string]string {
	table := make(map[string]string)
	for _, pair := range strings.Split(value, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		token, userID, ok := strings.Cut(pair, ":")
		if !ok || token == "" || userID == "" {
			continue
		}
		table[token] = userID
	}
	return table
}

func splitCSV(value string) []string {
	parts := make([]string, 0)
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
