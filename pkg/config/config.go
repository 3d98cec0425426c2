package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	SQLite    SQLiteConfig
	Redis     RedisConfig
	LLM       LLMConfig
	Places    PlacesConfig
	Analysis  AnalysisConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    int
	WriteTimeout   int
	BodyLimit      int
	AllowedOrigins []string
	Development    bool
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type LLMConfig struct {
	// Provider is "bedrock" or "openai".
	Provider    string
	Model       string
	Models      []string
	Region      string
	BaseURL     string
	APIKey      string
	Temperature float32
	MaxTokens   int
	TimeoutSec  int
}

type PlacesConfig struct {
	APIKey     string
	BaseURL    string
	TimeoutSec int
}

type AnalysisConfig struct {
	BatchSize       int
	BatchDelayMs    int
	CacheTTLMinutes int
	AIVersion       string
}

func (c AnalysisConfig) BatchDelay() time.Duration {
	return time.Duration(c.BatchDelayMs) * time.Millisecond
}

func (c AnalysisConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMinutes) * time.Minute
}

type AuthConfig struct {
	JWTSecret     string
	TokenTTLHours int
	SecureCookie  bool
}

type RateLimitConfig struct {
	Enabled              bool
	MaxRequestsPerMinute int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	if err := loadDotEnv(".env.local", ".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/trustbites")

	v.SetEnvPrefix("TRUSTBITES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// loadDotEnv loads the first env files that exist without overriding
// variables already set in the process environment.
func loadDotEnv(paths ...string) error {
	for _, path := range paths {
		err := godotenv.Load(path)
		if err == nil {
			continue
		}
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "bedrock", "openai":
	default:
		return fmt.Errorf("unsupported llm provider %q", c.LLM.Provider)
	}
	if c.Analysis.BatchSize <= 0 {
		return fmt.Errorf("analysis.batchSize must be positive, got %d", c.Analysis.BatchSize)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwtSecret is required")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 120)
	v.SetDefault("server.bodyLimit", 1048576)
	v.SetDefault("server.allowedOrigins", []string{"http://localhost:3000"})
	v.SetDefault("server.development", false)

	v.SetDefault("sqlite.path", "./data/trustbites.db")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	v.SetDefault("llm.provider", "bedrock")
	v.SetDefault("llm.model", "meta.llama3-70b-instruct-v1:0")
	v.SetDefault("llm.models", []string{
		"meta.llama3-70b-instruct-v1:0",
		"meta.llama3-8b-instruct-v1:0",
		"mistral.mistral-large-2402-v1:0",
	})
	v.SetDefault("llm.region", "us-east-1")
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.maxTokens", 1000)
	v.SetDefault("llm.timeoutSec", 60)

	v.SetDefault("places.baseURL", "https://maps.googleapis.com/maps/api")
	v.SetDefault("places.timeoutSec", 10)

	v.SetDefault("analysis.batchSize", 5)
	v.SetDefault("analysis.batchDelayMs", 1000)
	v.SetDefault("analysis.cacheTTLMinutes", 24*60)
	v.SetDefault("analysis.aiVersion", "1.0")

	v.SetDefault("auth.jwtSecret", "")
	v.SetDefault("auth.tokenTTLHours", 7*24)
	v.SetDefault("auth.secureCookie", true)

	v.SetDefault("rateLimit.enabled", true)
	v.SetDefault("rateLimit.maxRequestsPerMinute", 120)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.outputPath", "stdout")
}
