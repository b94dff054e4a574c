package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	LLM    LLMConfig    `mapstructure:"llm"`
	Gemini GeminiConfig `mapstructure:"gemini"`
	OpenAI OpenAIConfig `mapstructure:"openai"`
	Log    LogConfig    `mapstructure:"log"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Host         string        `mapstructure:"host"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
	CORSOrigins  []string      `mapstructure:"cors_origins"`
}

type LLMConfig struct {
	Provider string `mapstructure:"provider"`
}

type GeminiConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	APIEndpoint string        `mapstructure:"endpoint"`
	Model       string        `mapstructure:"model"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type OpenAIConfig struct {
	Provider       string        `mapstructure:"provider"`
	APIKey         string        `mapstructure:"api_key"`
	APIEndpoint    string        `mapstructure:"endpoint"`
	Model          string        `mapstructure:"model"`
	DeploymentName string        `mapstructure:"deployment"`
	APIVersion     string        `mapstructure:"api_version"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// key -> env var, default
var settings = []struct {
	key  string
	env  string
	dflt interface{}
}{
	{"server.port", "SERVER_PORT", "13337"},
	{"server.host", "SERVER_HOST", "127.0.0.1"},
	{"server.read_timeout", "SERVER_READ_TIMEOUT", "30s"},
	{"server.write_timeout", "SERVER_WRITE_TIMEOUT", "150s"},
	{"server.max_body_bytes", "SERVER_MAX_BODY_BYTES", int64(1 << 20)},
	{"server.cors_origins", "SERVER_CORS_ORIGINS", []string{}},

	{"llm.provider", "LLM_PROVIDER", ProviderGemini},

	{"gemini.api_key", "GEMINI_API_KEY", ""},
	{"gemini.endpoint", "GEMINI_ENDPOINT", "https://generativelanguage.googleapis.com"},
	{"gemini.model", "GEMINI_MODEL", "gemini-2.5-flash-preview-05-20"},
	{"gemini.timeout", "GEMINI_TIMEOUT", "120s"},

	{"openai.provider", "OPENAI_PROVIDER", "openai"},
	{"openai.api_key", "OPENAI_API_KEY", ""},
	{"openai.endpoint", "OPENAI_ENDPOINT", "https://api.openai.com/v1"},
	{"openai.model", "OPENAI_MODEL", "gpt-4o-mini"},
	{"openai.deployment", "OPENAI_DEPLOYMENT", "gpt-4o"},
	{"openai.api_version", "OPENAI_API_VERSION", "2024-08-01-preview"},
	{"openai.timeout", "OPENAI_TIMEOUT", "120s"},

	{"log.level", "LOG_LEVEL", "info"},
	{"log.format", "LOG_FORMAT", "text"},
}

// LoadConfig reads defaults, then the optional config file at path, then the
// environment. Later sources win.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	for _, s := range settings {
		v.SetDefault(s.key, s.dflt)
		if err := v.BindEnv(s.key, s.env); err != nil {
			return nil, err
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	cfg.Server.CORSOrigins = splitList(cfg.Server.CORSOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	slog.Info("configuration loaded successfully", "provider", cfg.LLM.Provider)
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New("server port cannot be empty")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return errors.New("server max body bytes must be positive")
	}

	switch c.LLM.Provider {
	case ProviderGemini:
		if c.Gemini.APIKey == "" {
			return errors.New("GEMINI_API_KEY is required for the gemini provider")
		}
		if c.Gemini.Model == "" {
			return errors.New("gemini model cannot be empty")
		}
		if c.Gemini.Timeout <= 0 {
			return errors.New("gemini timeout must be positive")
		}
	case ProviderOpenAI:
		if c.OpenAI.APIKey == "" {
			return errors.New("OPENAI_API_KEY is required for the openai provider")
		}
		if c.OpenAI.Provider != "openai" && c.OpenAI.Provider != "azure" {
			return fmt.Errorf("unknown openai provider %q", c.OpenAI.Provider)
		}
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
	return nil
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// env values arrive as one comma separated string
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
