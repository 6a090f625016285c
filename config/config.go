// Package config loads the process-wide configuration record (spec.md
// §6) once at startup into an immutable value passed by reference — the
// only mutation point is tests, which construct their own value (spec.md
// §9, "Global singleton configuration").
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LLMProvider is the recognized LLM_PROVIDER enum (spec.md §6).
type LLMProvider string

const (
	ProviderLocal    LLMProvider = "local"
	ProviderOpenAI   LLMProvider = "openai"
	ProviderAnthropic LLMProvider = "anthropic"
	ProviderRouter   LLMProvider = "router"
)

// Config is the flat configuration record with the recognized options of
// spec.md §6.
type Config struct {
	Store struct {
		Host     string
		Port     int
		Name     string
		User     string
		Password string
	}
	LLM struct {
		Provider    LLMProvider
		Host        string
		Model       string
		APIKey      string
		Temperature float64
		TimeoutS    int
	}
	Browser struct {
		Headless    bool
		TimeoutMS   int
		ViewportW   int
		ViewportH   int
	}
	Extraction struct {
		MaxDepth       int
		MaxCategories  int
		MaxRetries     int
		RetryDelayMS   int
		BlueprintDir   string
		ReanalysisBudget int
		Concurrency    int
	}
	Logging struct {
		Level          string
		File           string
		RotationSizeMB int
		RetentionDays  int
	}
	Server struct {
		Port int
	}
}

// Load reads configuration purely from the environment (spec.md §6),
// applying the documented defaults, and fails fast on missing
// credentials for the selected store/LLM provider.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("LLM_PROVIDER", string(ProviderLocal))
	v.SetDefault("MODEL_TEMPERATURE", 0.0)
	v.SetDefault("MODEL_TIMEOUT_S", 180)
	v.SetDefault("BROWSER_HEADLESS", true)
	v.SetDefault("BROWSER_TIMEOUT_MS", 60000)
	v.SetDefault("BROWSER_VIEWPORT_W", 1440)
	v.SetDefault("BROWSER_VIEWPORT_H", 900)
	v.SetDefault("MAX_DEPTH", 5)
	v.SetDefault("MAX_CATEGORIES", 10000)
	v.SetDefault("MAX_RETRIES", 3)
	v.SetDefault("RETRY_DELAY_MS", 1000)
	v.SetDefault("BLUEPRINT_DIR", "./blueprints")
	v.SetDefault("REANALYSIS_BUDGET", 3)
	v.SetDefault("CONCURRENCY", 4)
	v.SetDefault("LOG_LEVEL", "INFO")
	v.SetDefault("LOG_FILE", "./logs/catscout.log")
	v.SetDefault("LOG_ROTATION_MB", 50)
	v.SetDefault("LOG_RETENTION_DAYS", 14)
	v.SetDefault("SERVER_PORT", 8080)

	cfg := &Config{}
	cfg.Store.Host = v.GetString("DB_HOST")
	cfg.Store.Port = v.GetInt("DB_PORT")
	cfg.Store.Name = v.GetString("DB_NAME")
	cfg.Store.User = v.GetString("DB_USER")
	cfg.Store.Password = v.GetString("DB_PASSWORD")

	cfg.LLM.Provider = LLMProvider(v.GetString("LLM_PROVIDER"))
	cfg.LLM.Host = v.GetString("LLM_HOST")
	cfg.LLM.Model = v.GetString("LLM_MODEL")
	cfg.LLM.APIKey = v.GetString("LLM_API_KEY")
	cfg.LLM.Temperature = v.GetFloat64("MODEL_TEMPERATURE")
	cfg.LLM.TimeoutS = v.GetInt("MODEL_TIMEOUT_S")

	cfg.Browser.Headless = v.GetBool("BROWSER_HEADLESS")
	cfg.Browser.TimeoutMS = v.GetInt("BROWSER_TIMEOUT_MS")
	cfg.Browser.ViewportW = v.GetInt("BROWSER_VIEWPORT_W")
	cfg.Browser.ViewportH = v.GetInt("BROWSER_VIEWPORT_H")

	cfg.Extraction.MaxDepth = v.GetInt("MAX_DEPTH")
	cfg.Extraction.MaxCategories = v.GetInt("MAX_CATEGORIES")
	cfg.Extraction.MaxRetries = v.GetInt("MAX_RETRIES")
	cfg.Extraction.RetryDelayMS = v.GetInt("RETRY_DELAY_MS")
	cfg.Extraction.BlueprintDir = v.GetString("BLUEPRINT_DIR")
	cfg.Extraction.ReanalysisBudget = v.GetInt("REANALYSIS_BUDGET")
	cfg.Extraction.Concurrency = v.GetInt("CONCURRENCY")

	cfg.Logging.Level = v.GetString("LOG_LEVEL")
	cfg.Logging.File = v.GetString("LOG_FILE")
	cfg.Logging.RotationSizeMB = v.GetInt("LOG_ROTATION_MB")
	cfg.Logging.RetentionDays = v.GetInt("LOG_RETENTION_DAYS")

	cfg.Server.Port = v.GetInt("SERVER_PORT")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate enforces spec.md §6's fatal-at-startup conditions: missing
// store password or missing credentials for the selected LLM provider.
func (c *Config) validate() error {
	if c.Store.Password == "" {
		return fmt.Errorf("missing required environment variable: DB_PASSWORD")
	}
	switch c.LLM.Provider {
	case ProviderAnthropic, ProviderOpenAI:
		if c.LLM.APIKey == "" {
			return fmt.Errorf("missing required environment variable: LLM_API_KEY (required for LLM_PROVIDER=%s)", c.LLM.Provider)
		}
	case ProviderLocal:
		if c.LLM.Host == "" {
			return fmt.Errorf("missing required environment variable: LLM_HOST (required for LLM_PROVIDER=local)")
		}
	case ProviderRouter:
		if c.LLM.Host == "" {
			return fmt.Errorf("missing required environment variable: LLM_HOST (required for LLM_PROVIDER=router)")
		}
	default:
		return fmt.Errorf("unrecognized LLM_PROVIDER: %q", c.LLM.Provider)
	}
	return nil
}

// DSN renders a postgres connection string from the store fields.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=disable",
		c.Store.Host, c.Store.Port, c.Store.Name, c.Store.User, c.Store.Password)
}
