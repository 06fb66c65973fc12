package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	ServerPort     string
	ServerHost     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestBody int64

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Kafka
	KafkaBrokers       []string
	KafkaGroupID       string
	CallEventsTopic    string
	LoadEventsTopic    string
	CarrierEventsTopic string

	// Auth
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
	JWTTTL      time.Duration

	// OIDC (enterprise SSO)
	OIDCIssuer       string
	OIDCClientID     string
	OIDCClientSecret string
	OIDCRedirectURL  string

	// Call ingestion
	UploadDir      string
	ArtifactDir    string
	MaxUploadBytes int64
	PollInterval   time.Duration

	// Pipeline
	PipelineMaxJobs    int
	ExtractionRules    string
	EquipmentCatalog   string
	ExtractionCacheTTL time.Duration
	SummaryCacheTTL    time.Duration

	// Speech-to-text provider
	STTBaseURL string
	STTAPIKey  string

	// LLM
	LLMAPIKey      string
	LLMBaseURL     string
	LLMModelName   string
	LLMTemperature float64
	LLMMaxRetries  int

	// FMCSA
	FMCSABaseURL  string
	FMCSAWebKey   string
	FMCSACacheTTL time.Duration

	// Carrier matching
	CarrierMatchThreshold float64

	// Analytics
	RollupInterval time.Duration

	// Billing
	BillingPortalBaseURL string

	// Gateway specific
	CallServiceURL      string
	LoadServiceURL      string
	CarrierServiceURL   string
	AnalyticsServiceURL string

	GatewayRequestTimeout time.Duration
	GatewayRateLimitRPS   int
	GatewayRateLimitBurst int
}

func Load() *Config {
	// Local development keeps overrides in a .env file; absence is fine.
	_ = godotenv.Load()

	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 30*time.Second),
		MaxRequestBody: int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 4*1024*1024)),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "freightdesk"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "freightdesk123"),
		PostgresDB:       getEnv("POSTGRES_DB", "freightdesk"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		KafkaBrokers:       getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID:       getEnv("KAFKA_GROUP_ID", "freightdesk-platform"),
		CallEventsTopic:    getEnv("CALL_EVENTS_TOPIC", "call-events"),
		LoadEventsTopic:    getEnv("LOAD_EVENTS_TOPIC", "load-events"),
		CarrierEventsTopic: getEnv("CARRIER_EVENTS_TOPIC", "carrier-events"),

		JWTSecret:   getEnv("JWT_SECRET", "dev-secret-change-me"),
		JWTIssuer:   getEnv("JWT_ISSUER", "freightdesk"),
		JWTAudience: getEnv("JWT_AUDIENCE", "freightdesk-api"),
		JWTTTL:      getDuration("JWT_TTL", 12*time.Hour),

		OIDCIssuer:       getEnv("OIDC_ISSUER", ""),
		OIDCClientID:     getEnv("OIDC_CLIENT_ID", ""),
		OIDCClientSecret: getEnv("OIDC_CLIENT_SECRET", ""),
		OIDCRedirectURL:  getEnv("OIDC_REDIRECT_URL", ""),

		UploadDir:      getEnv("UPLOAD_DIR", "/var/lib/freightdesk/uploads"),
		ArtifactDir:    getEnv("ARTIFACT_DIR", "/var/lib/freightdesk/artifacts"),
		MaxUploadBytes: int64(getIntEnv("MAX_UPLOAD_BYTES", 500*1024*1024)),
		PollInterval:   getDuration("POLL_INTERVAL", 5*time.Second),

		PipelineMaxJobs:    getIntEnv("PIPELINE_MAX_JOBS", 4),
		ExtractionRules:    getEnv("EXTRACTION_RULES_PATH", "configs/extraction_rules.yaml"),
		EquipmentCatalog:   getEnv("EQUIPMENT_CATALOG_PATH", "configs/equipment.yaml"),
		ExtractionCacheTTL: getDuration("EXTRACTION_CACHE_TTL", 24*time.Hour),
		SummaryCacheTTL:    getDuration("SUMMARY_CACHE_TTL", 24*time.Hour),

		STTBaseURL: getEnv("STT_BASE_URL", "https://api.speechkit.example.com"),
		STTAPIKey:  getEnv("STT_API_KEY", ""),

		LLMAPIKey:      getEnv("LLM_API_KEY", ""),
		LLMBaseURL:     getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
		LLMModelName:   getEnv("LLM_MODEL_NAME", "gpt-4o-mini"),
		LLMTemperature: getFloatEnv("LLM_TEMPERATURE", 0.1),
		LLMMaxRetries:  getIntEnv("LLM_MAX_RETRIES", 3),

		FMCSABaseURL:  getEnv("FMCSA_BASE_URL", "https://mobile.fmcsa.dot.gov/qc/services"),
		FMCSAWebKey:   getEnv("FMCSA_WEB_KEY", ""),
		FMCSACacheTTL: getDuration("FMCSA_CACHE_TTL", 24*time.Hour),

		CarrierMatchThreshold: getFloatEnv("CARRIER_MATCH_THRESHOLD", 0.88),

		RollupInterval: getDuration("ROLLUP_INTERVAL", time.Hour),

		BillingPortalBaseURL: getEnv("BILLING_PORTAL_BASE_URL", "https://billing.freightdesk.ai/portal"),

		CallServiceURL:      getEnv("CALL_SERVICE_URL", "http://localhost:8081"),
		LoadServiceURL:      getEnv("LOAD_SERVICE_URL", "http://localhost:8083"),
		CarrierServiceURL:   getEnv("CARRIER_SERVICE_URL", "http://localhost:8084"),
		AnalyticsServiceURL: getEnv("ANALYTICS_SERVICE_URL", "http://localhost:8085"),

		GatewayRequestTimeout: getDuration("GATEWAY_REQUEST_TIMEOUT", 10*time.Second),
		GatewayRateLimitRPS:   getIntEnv("GATEWAY_RATE_LIMIT_RPS", 50),
		GatewayRateLimitBurst: getIntEnv("GATEWAY_RATE_LIMIT_BURST", 100),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return []string{value}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
