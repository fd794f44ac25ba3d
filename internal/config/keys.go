package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kFloat
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	altEnv  string // conventional variable read when env is unset
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

// account is the secret store account name of a secret key.
func (s keySpec) account() string {
	return strings.ReplaceAll(s.key, ".", "_")
}

// lookupEnv returns the first non-empty value of env and altEnv.
func (s keySpec) lookupEnv() (name, value string) {
	for _, name := range []string{s.env, s.altEnv} {
		if name == "" {
			continue
		}
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return name, v
		}
	}
	return "", ""
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "MAVKUS_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.mcp_enabled", typ: kBool, env: "MAVKUS_SERVER_MCP_ENABLED",
		apply:   func(cfg *Config, v any) { cfg.Server.MCPEnabled = v.(bool) },
		extract: func(cfg Config) any { return cfg.Server.MCPEnabled },
	},
	{
		key: "server.cors_origins", typ: kString, env: "MAVKUS_SERVER_CORS_ORIGINS",
		apply:   func(cfg *Config, v any) { cfg.Server.CORSOrigins = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.CORSOrigins },
	},
	{
		key: "server.api_token", typ: kString, env: "MAVKUS_SERVER_API_TOKEN",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.Server.APIToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.APIToken },
	},
	{
		key: "generalist.provider", typ: kString, env: "MAVKUS_GENERALIST_PROVIDER",
		apply:   func(cfg *Config, v any) { cfg.Generalist.Provider = v.(string) },
		extract: func(cfg Config) any { return cfg.Generalist.Provider },
	},
	{
		key: "generalist.base_url", typ: kString, env: "MAVKUS_GENERALIST_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Generalist.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Generalist.BaseURL },
	},
	{
		key: "generalist.model", typ: kString, env: "MAVKUS_GENERALIST_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Generalist.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Generalist.Model },
	},
	{
		key: "generalist.temperature", typ: kFloat, env: "MAVKUS_GENERALIST_TEMPERATURE",
		apply:   func(cfg *Config, v any) { cfg.Generalist.Temperature = v.(float64) },
		extract: func(cfg Config) any { return cfg.Generalist.Temperature },
	},
	{
		key: "generalist.max_tokens", typ: kInt, env: "MAVKUS_GENERALIST_MAX_TOKENS",
		apply:   func(cfg *Config, v any) { cfg.Generalist.MaxTokens = v.(int) },
		extract: func(cfg Config) any { return cfg.Generalist.MaxTokens },
	},
	{
		key: "generalist.timeout", typ: kString, env: "MAVKUS_GENERALIST_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Generalist.Timeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Generalist.Timeout },
	},
	{
		key: "generalist.api_key", typ: kString, env: "MAVKUS_GENERALIST_API_KEY", altEnv: "GROQ_API_KEY",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.Generalist.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Generalist.APIKey },
	},
	{
		key: "critic.temperature", typ: kFloat, env: "MAVKUS_CRITIC_TEMPERATURE",
		apply:   func(cfg *Config, v any) { cfg.Critic.Temperature = v.(float64) },
		extract: func(cfg Config) any { return cfg.Critic.Temperature },
	},
	{
		key: "critic.max_tokens", typ: kInt, env: "MAVKUS_CRITIC_MAX_TOKENS",
		apply:   func(cfg *Config, v any) { cfg.Critic.MaxTokens = v.(int) },
		extract: func(cfg Config) any { return cfg.Critic.MaxTokens },
	},
	{
		key: "critic.timeout", typ: kString, env: "MAVKUS_CRITIC_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Critic.Timeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Critic.Timeout },
	},
	{
		key: "specialist.model", typ: kString, env: "MAVKUS_SPECIALIST_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Specialist.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Specialist.Model },
	},
	{
		key: "specialist.timeout", typ: kString, env: "MAVKUS_SPECIALIST_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Specialist.Timeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Specialist.Timeout },
	},
	{
		key: "specialist.api_key", typ: kString, env: "MAVKUS_SPECIALIST_API_KEY", altEnv: "GEMINI_API_KEY",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.Specialist.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Specialist.APIKey },
	},
	{
		key: "ollama.base_url", typ: kString, env: "MAVKUS_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "ollama.model", typ: kString, env: "MAVKUS_OLLAMA_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.Model },
	},
	{
		key: "storage.data_dir", typ: kString, env: "MAVKUS_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "memory.backend", typ: kString, env: "MAVKUS_MEMORY_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.Memory.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.Memory.Backend },
	},
	{
		key: "memory.redis_url", typ: kString, env: "MAVKUS_MEMORY_REDIS_URL", altEnv: "REDIS_URL",
		apply:   func(cfg *Config, v any) { cfg.Memory.RedisURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Memory.RedisURL },
	},
	{
		key: "memory.save_every", typ: kInt, env: "MAVKUS_MEMORY_SAVE_EVERY",
		apply:   func(cfg *Config, v any) { cfg.Memory.SaveEvery = v.(int) },
		extract: func(cfg Config) any { return cfg.Memory.SaveEvery },
	},
	{
		key: "cache.size", typ: kInt, env: "MAVKUS_CACHE_SIZE",
		apply:   func(cfg *Config, v any) { cfg.Cache.Size = v.(int) },
		extract: func(cfg Config) any { return cfg.Cache.Size },
	},
	{
		key: "security.encryption_key", typ: kString, env: "MAVKUS_ENCRYPTION_KEY", altEnv: "ENCRYPTION_KEY",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.Security.EncryptionKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Security.EncryptionKey },
	},
	{
		key: "log.level", typ: kString, env: "MAVKUS_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "log.file", typ: kString, env: "MAVKUS_LOG_FILE",
		apply:   func(cfg *Config, v any) { cfg.Log.File = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.File },
	},
	{
		key: "log.format", typ: kString, env: "MAVKUS_LOG_FORMAT",
		apply:   func(cfg *Config, v any) { cfg.Log.Format = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Format },
	},
}

func applyBackend(cfg *Config, b Backend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kBool:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if bv, err := strconv.ParseBool(v); err == nil {
					s.apply(cfg, bv)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		case kFloat:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if f, err := strconv.ParseFloat(v, 64); err == nil {
					s.apply(cfg, f)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse float from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		env, raw := s.lookupEnv()
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", env, raw, err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", env, raw, err)
			}
		case kFloat:
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				s.apply(cfg, f)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse float from env var %s=%q: %v. Using default value.\n", env, raw, err)
			}
		}
	}
}
