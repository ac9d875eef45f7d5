package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	// ProviderNone disables the Gemini client; every chat that reaches
	// generation fails with LLM_UNAVAILABLE.
	ProviderNone   = "none"
	ProviderGemini = "gemini"
)

type Config struct {
	GeminiAPIKey string
	GeminiModel  string
	LLMProvider  string
	LLMTimeout   time.Duration

	DatabaseDriver string
	DatabaseURL    string

	HTTPPort  string
	LogLevel  string
	JWTSecret string
	JWTTTL    time.Duration

	MaxContextItems        int
	MaxChatHistoryMessages int
	Locale                 string

	RateLimitRPS   float64
	RateLimitBurst int
	// TrustProxyHeaders makes client addresses come from X-Forwarded-For and
	// X-Real-IP. Enable it only behind a proxy that overwrites those headers.
	TrustProxyHeaders bool
}

var AppConfig Config

// LoadConfig populates AppConfig and exits the process on invalid configuration.
func LoadConfig() {
	cfg, err := Load()
	if err != nil {
		log.Fatal(err)
	}
	AppConfig = *cfg
}

// Load reads configuration from the environment, after loading .env when present.
func Load() (*Config, error) {
	cfg := read()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadAuth is Load for commands that only sign admin tokens: it checks the JWT
// settings and ignores the LLM and database ones.
func LoadAuth() (*Config, error) {
	cfg := read()
	if err := cfg.ValidateAuth(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func read() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-1.5-flash-latest"),
		LLMProvider:  getEnv("LLM_PROVIDER", ProviderGemini),
		LLMTimeout:   getEnvAsDuration("LLM_TIMEOUT", 30*time.Second),

		DatabaseDriver: getEnv("DATABASE_DRIVER", DriverSQLite),
		DatabaseURL:    getEnv("DATABASE_URL", "tenant_chatbot.db"),

		HTTPPort:  getEnv("HTTP_PORT", "8080"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTTTL:    getEnvAsDuration("JWT_TTL", 24*time.Hour),

		MaxContextItems:        getEnvAsInt("MAX_CONTEXT_ITEMS", 5),
		MaxChatHistoryMessages: getEnvAsInt("MAX_CHAT_HISTORY_MESSAGES", 10),
		Locale:                 getEnv("CHAT_LOCALE", ""),

		RateLimitRPS:   getEnvAsFloat("RATE_LIMIT_RPS", 1),
		RateLimitBurst: getEnvAsInt("RATE_LIMIT_BURST", 5),

		TrustProxyHeaders: getEnvAsBool("TRUST_PROXY_HEADERS", false),
	}
	return cfg
}

func (c *Config) Validate() error {
	if c.LLMProvider == ProviderGemini && c.GeminiAPIKey == "" {
		return errors.New("GEMINI_API_KEY environment variable is required")
	}
	if c.LLMProvider != ProviderGemini && c.LLMProvider != ProviderNone {
		return errors.New("LLM_PROVIDER must be one of: gemini, none")
	}
	if err := c.ValidateAuth(); err != nil {
		return err
	}
	if c.DatabaseDriver != DriverSQLite && c.DatabaseDriver != DriverPostgres {
		return errors.New("DATABASE_DRIVER must be one of: sqlite, postgres")
	}
	if c.MaxContextItems < 1 {
		return errors.New("MAX_CONTEXT_ITEMS must be positive")
	}
	if c.MaxChatHistoryMessages < 0 {
		return errors.New("MAX_CHAT_HISTORY_MESSAGES cannot be negative")
	}
	return nil
}

func (c *Config) ValidateAuth() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET environment variable is required")
	}
	if c.JWTTTL <= 0 {
		return errors.New("JWT_TTL must be positive")
	}
	return nil
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
