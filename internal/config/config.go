// Package config loads service settings from defaults, an optional config
// file, a .env file and DEEPREVIEW_* environment variables, in increasing
// precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/deepreview/socratic/internal/llm"
)

const envPrefix = "DEEPREVIEW"

type Config struct {
	Server     Server
	Log        Log
	Database   Database
	Redis      Redis
	AMQP       AMQP
	Auth       Auth
	LLM        llm.Config
	Assessment Assessment
}

type Server struct {
	Port        int
	Mode        string // debug, release or test
	CORSOrigins []string
}

type Log struct {
	Mode string // dev or prod
}

type Database struct {
	Driver string // sqlite or postgres
	DSN    string
}

// Redis enables the distributed session lock when Addr is set.
type Redis struct {
	Addr     string
	Password string
	DB       int
}

// AMQP enables event publishing when URL is set.
type AMQP struct {
	URL      string
	Exchange string
}

type Auth struct {
	JWTSecret string
	Issuer    string
}

type Assessment struct {
	// TurnTimeout bounds one turn, including a rate-limit wait.
	TurnTimeout time.Duration

	// LockWait is how long a turn waits for another turn on the same
	// session to finish.
	LockWait time.Duration

	// EvaluateSessions asks the model for a qualitative evaluation on
	// completion instead of using the fixed fallback.
	EvaluateSessions bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("log.mode", "dev")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("amqp.url", "")
	v.SetDefault("amqp.exchange", "deepreview.events")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "deepreview")

	d := llm.DefaultConfig()
	v.SetDefault("llm.provider", "")
	v.SetDefault("llm.anthropic.api_key", "")
	v.SetDefault("llm.anthropic.model", d.Anthropic.Model)
	v.SetDefault("llm.openai.api_key", "")
	v.SetDefault("llm.openai.model", d.OpenAI.Model)
	v.SetDefault("llm.openai.base_url", "")
	v.SetDefault("llm.gemini.api_key", "")
	v.SetDefault("llm.gemini.model", d.Gemini.Model)
	v.SetDefault("llm.openrouter.api_key", "")
	v.SetDefault("llm.openrouter.model", d.OpenRouter.Model)
	v.SetDefault("llm.openrouter.base_url", "")
	v.SetDefault("llm.retry.max_attempts", d.Retry.MaxAttempts)
	v.SetDefault("llm.retry.default_retry_after", d.Retry.DefaultRetryAfter)
	v.SetDefault("llm.retry.max_retry_after", d.Retry.MaxRetryAfter)

	v.SetDefault("assessment.turn_timeout", 150*time.Second)
	v.SetDefault("assessment.lock_wait", 5*time.Second)
	v.SetDefault("assessment.evaluate_sessions", true)
}

// Load reads configuration. configFile may be empty. A missing .env file is
// not an error.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	cfg := &Config{
		Server: Server{
			Port:        v.GetInt("server.port"),
			Mode:        v.GetString("server.mode"),
			CORSOrigins: splitList(v.GetStringSlice("server.cors_origins")),
		},
		Log: Log{Mode: v.GetString("log.mode")},
		Database: Database{
			Driver: v.GetString("database.driver"),
			DSN:    v.GetString("database.dsn"),
		},
		Redis: Redis{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		AMQP: AMQP{
			URL:      v.GetString("amqp.url"),
			Exchange: v.GetString("amqp.exchange"),
		},
		Auth: Auth{
			JWTSecret: v.GetString("auth.jwt_secret"),
			Issuer:    v.GetString("auth.issuer"),
		},
		LLM: llm.Config{
			Provider: v.GetString("llm.provider"),
			Anthropic: llm.AnthropicConfig{
				APIKey: v.GetString("llm.anthropic.api_key"),
				Model:  v.GetString("llm.anthropic.model"),
			},
			OpenAI: llm.OpenAIConfig{
				APIKey:  v.GetString("llm.openai.api_key"),
				Model:   v.GetString("llm.openai.model"),
				BaseURL: v.GetString("llm.openai.base_url"),
			},
			Gemini: llm.GeminiConfig{
				APIKey: v.GetString("llm.gemini.api_key"),
				Model:  v.GetString("llm.gemini.model"),
			},
			OpenRouter: llm.OpenRouterConfig{
				APIKey:  v.GetString("llm.openrouter.api_key"),
				Model:   v.GetString("llm.openrouter.model"),
				BaseURL: v.GetString("llm.openrouter.base_url"),
			},
			Retry: llm.RetryPolicy{
				MaxAttempts:       v.GetInt("llm.retry.max_attempts"),
				DefaultRetryAfter: v.GetDuration("llm.retry.default_retry_after"),
				MaxRetryAfter:     v.GetDuration("llm.retry.max_retry_after"),
			},
		},
		Assessment: Assessment{
			TurnTimeout:      v.GetDuration("assessment.turn_timeout"),
			LockWait:         v.GetDuration("assessment.lock_wait"),
			EvaluateSessions: v.GetBool("assessment.evaluate_sessions"),
		},
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = llm.DefaultConfig().Provider
		if discovered, ok := llm.Discover(cfg.LLM); ok {
			cfg.LLM = discovered
		}
	}
	return cfg, nil
}

// Validate checks the settings the HTTP service cannot run without.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("%s_AUTH_JWT_SECRET is required", envPrefix)
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.Database.Driver == "postgres" && c.Database.DSN == "" {
		return fmt.Errorf("%s_DATABASE_DSN is required for postgres", envPrefix)
	}
	if c.Assessment.TurnTimeout <= c.LLM.Retry.DefaultRetryAfter {
		return fmt.Errorf("assessment turn timeout %s must exceed the rate-limit wait %s",
			c.Assessment.TurnTimeout, c.LLM.Retry.DefaultRetryAfter)
	}
	return c.LLM.Validate()
}

// splitList accepts both a list and a single comma-separated string, which
// is what an environment variable yields.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
