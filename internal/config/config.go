// Package config loads runtime settings from defaults, an optional YAML file,
// a .env file and FINSYNC_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store backends.
const (
	BackendBigQuery = "bigquery"
	BackendNotion   = "notion"
)

// Config represents the complete application configuration.
type Config struct {
	Mail struct {
		Label           string `mapstructure:"label"`
		DeadLetterLabel string `mapstructure:"dead_letter_label"`
		CredentialsFile string `mapstructure:"credentials_file"`
		TokenFile       string `mapstructure:"token_file"`
		User            string `mapstructure:"user"`
	} `mapstructure:"mail"`

	LLM struct {
		Model         string `mapstructure:"model"`
		APIKey        string `mapstructure:"api_key"`
		MaxInputChars int    `mapstructure:"max_input_chars"`
	} `mapstructure:"llm"`

	Ledger struct {
		Path         string `mapstructure:"path"`
		AttemptsPath string `mapstructure:"attempts_path"`
		MaxAttempts  int    `mapstructure:"max_attempts"`
	} `mapstructure:"ledger"`

	Store struct {
		Backend    string `mapstructure:"backend"`
		ProjectID  string `mapstructure:"project_id"`
		Dataset    string `mapstructure:"dataset"`
		SettingsID string `mapstructure:"settings_id"`
	} `mapstructure:"store"`

	Reference struct {
		File string `mapstructure:"file"`
	} `mapstructure:"reference"`

	Notion struct {
		Token      string `mapstructure:"token"`
		DatabaseID string `mapstructure:"database_id"`
	} `mapstructure:"notion"`

	Archive struct {
		Bucket string `mapstructure:"bucket"`
		Prefix string `mapstructure:"prefix"`
	} `mapstructure:"archive"`

	Defaults struct {
		Type     string `mapstructure:"type"`
		Currency string `mapstructure:"currency"`
		Title    string `mapstructure:"title"`
		Category string `mapstructure:"category"`
		Card     string `mapstructure:"card"`
		Context  string `mapstructure:"context"`
		Comments string `mapstructure:"comments"`
		Timezone string `mapstructure:"timezone"`
	} `mapstructure:"defaults"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`

	API struct {
		Port       string `mapstructure:"port"`
		Token      string `mapstructure:"token"`
		CORSOrigin string `mapstructure:"cors_origin"`
	} `mapstructure:"api"`

	Worker struct {
		Interval time.Duration `mapstructure:"interval"`
	} `mapstructure:"worker"`
}

// Options control where Load looks for configuration.
type Options struct {
	// ConfigFile, when set, is read instead of searching the default paths.
	ConfigFile string
	// EnvFile is loaded with godotenv before reading the environment. Missing files are ignored.
	EnvFile string
}

// Load reads the configuration and validates it.
func Load(opts Options) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: loading %s: %w", envFile, err)
	}

	v := viper.New()
	setDefaults(v)

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME/.finsync")
		v.AddConfigPath(".finsync")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("FINSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.ConfigFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: reading %s: %w", v.ConfigFileUsed(), err)
		}
	}

	// Provider keys keep their conventional unprefixed names.
	if err := v.BindEnv("llm.api_key", "FINSYNC_LLM_API_KEY", "GEMINI_API_KEY"); err != nil {
		return nil, fmt.Errorf("config: binding GEMINI_API_KEY: %w", err)
	}
	if err := v.BindEnv("notion.token", "FINSYNC_NOTION_TOKEN", "NOTION_TOKEN"); err != nil {
		return nil, fmt.Errorf("config: binding NOTION_TOKEN: %w", err)
	}
	if err := v.BindEnv("store.project_id", "FINSYNC_STORE_PROJECT_ID", "GOOGLE_CLOUD_PROJECT"); err != nil {
		return nil, fmt.Errorf("config: binding GOOGLE_CLOUD_PROJECT: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mail.label", "Bancos/PendingBot")
	v.SetDefault("mail.dead_letter_label", "")
	v.SetDefault("mail.credentials_file", "credentials.json")
	v.SetDefault("mail.token_file", "token.json")
	v.SetDefault("mail.user", "me")

	v.SetDefault("llm.model", "gemini-2.5-flash")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.max_input_chars", 3500)

	v.SetDefault("ledger.path", "processed_emails.txt")
	v.SetDefault("ledger.attempts_path", "failed_attempts.txt")
	v.SetDefault("ledger.max_attempts", 5)

	v.SetDefault("store.backend", BackendBigQuery)
	v.SetDefault("store.project_id", "")
	v.SetDefault("store.dataset", "finance")
	v.SetDefault("store.settings_id", "default")

	v.SetDefault("reference.file", "")

	v.SetDefault("notion.token", "")
	v.SetDefault("notion.database_id", "")

	v.SetDefault("archive.bucket", "")
	v.SetDefault("archive.prefix", "emails")

	v.SetDefault("defaults.type", "debit")
	v.SetDefault("defaults.currency", "COP")
	v.SetDefault("defaults.title", "Sin concepto especificado")
	v.SetDefault("defaults.category", "general")
	v.SetDefault("defaults.card", "general")
	v.SetDefault("defaults.context", "personal")
	v.SetDefault("defaults.comments", "Importado automáticamente desde Gmail via IA")
	v.SetDefault("defaults.timezone", "Local")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("api.port", "8080")
	v.SetDefault("api.token", "")
	v.SetDefault("api.cors_origin", "*")

	v.SetDefault("worker.interval", "15m")
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Mail.Label) == "" {
		return errors.New("mail.label is required")
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		return errors.New("llm.model is required")
	}
	if c.LLM.MaxInputChars <= 0 {
		return fmt.Errorf("llm.max_input_chars must be positive, got %d", c.LLM.MaxInputChars)
	}
	if c.Ledger.MaxAttempts < 0 {
		return fmt.Errorf("ledger.max_attempts must not be negative, got %d", c.Ledger.MaxAttempts)
	}
	if c.Ledger.Path == "" || c.Ledger.AttemptsPath == "" {
		return errors.New("ledger.path and ledger.attempts_path are required")
	}

	switch c.Store.Backend {
	case BackendBigQuery:
	case BackendNotion:
		if c.Notion.Token == "" || c.Notion.DatabaseID == "" {
			return errors.New("notion backend requires notion.token and notion.database_id")
		}
	default:
		return fmt.Errorf("unknown store.backend %q", c.Store.Backend)
	}

	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Worker.Interval < 0 {
		return fmt.Errorf("worker.interval must not be negative, got %s", c.Worker.Interval)
	}

	return nil
}

// Location resolves defaults.timezone. "Local" and "" mean time.Local.
func (c *Config) Location() (*time.Location, error) {
	switch c.Defaults.Timezone {
	case "", "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Defaults.Timezone)
	if err != nil {
		return nil, fmt.Errorf("defaults.timezone %q: %w", c.Defaults.Timezone, err)
	}
	return loc, nil
}
