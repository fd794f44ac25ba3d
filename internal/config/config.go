package config

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Server     ServerConfig
	Generalist GeneralistConfig
	Critic     CriticConfig
	Specialist SpecialistConfig
	Ollama     OllamaConfig
	Storage    StorageConfig
	Memory     MemoryConfig
	Cache      CacheConfig
	Security   SecurityConfig
	Log        LogConfig
}

type ServerConfig struct {
	Port        int
	MCPEnabled  bool
	CORSOrigins string // comma separated
	APIToken    string
}

type GeneralistConfig struct {
	Provider    string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     string
	APIKey      string
}

type CriticConfig struct {
	Temperature float64
	MaxTokens   int
	Timeout     string
}

type SpecialistConfig struct {
	Model   string
	Timeout string
	APIKey  string
}

type OllamaConfig struct {
	BaseURL string
	Model   string
}

type StorageConfig struct {
	DataDir string
}

type MemoryConfig struct {
	Backend   string // sqlite, redis or memory
	RedisURL  string
	SaveEvery int
}

type CacheConfig struct {
	Size int
}

type SecurityConfig struct {
	EncryptionKey string
}

type LogConfig struct {
	Level  string
	File   string
	Format string
}

// Memory backends.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// keychainService is the service name used for secrets in the platform store.
const keychainService = "mavkus"

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 8000,
			CORSOrigins: strings.Join([]string{
				"http://localhost:3000",
				"http://localhost:3001",
				"https://mavkus-frontend-eta.vercel.app",
				"https://mavkus-frontend.vercel.app",
			}, ","),
		},
		Generalist: GeneralistConfig{
			Provider:    "groq",
			Model:       "llama-3.3-70b-versatile",
			Temperature: 0.7,
			MaxTokens:   4096,
			Timeout:     "90s",
		},
		Critic: CriticConfig{
			Temperature: 0.3,
			MaxTokens:   1024,
			Timeout:     "30s",
		},
		Specialist: SpecialistConfig{
			Model:   "gemini-2.0-flash",
			Timeout: "60s",
		},
		Ollama: OllamaConfig{
			BaseURL: "http://localhost:11434",
			Model:   "llama3.2",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Memory: MemoryConfig{
			Backend:   BackendSQLite,
			RedisURL:  "redis://localhost:6379",
			SaveEvery: 5,
		},
		Cache: CacheConfig{
			Size: 100,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from the platform-native backend, a .env file in
// the working directory, environment variables, and the platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.mavkus.app) and secrets
// fall back to macOS Keychain.
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/mavkus/config.json
// and secrets fall back to $XDG_DATA_HOME/mavkus/secrets.json.
//
// Environment variables (MAVKUS_*) override backend values on all platforms.
func Load() (Config, error) {
	loadDotEnv(".env")
	return loadWith(newPlatformBackend(), keychainReader{})
}

// keychain abstracts Keychain access for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadWith(b Backend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)
	applySecretFallback(&cfg, kc)

	if cfg.Security.EncryptionKey == "" {
		msg := "missing required config: encryption key. " +
			"Set it via environment variable MAVKUS_ENCRYPTION_KEY or ENCRYPTION_KEY" +
			secretHint("security_encryption_key")
		return Config{}, fmt.Errorf("%s", msg)
	}

	switch cfg.Memory.Backend {
	case BackendSQLite, BackendRedis, BackendMemory:
	default:
		return Config{}, fmt.Errorf("invalid memory.backend %q: want sqlite, redis or memory", cfg.Memory.Backend)
	}

	return cfg, nil
}

// applySecretFallback fills empty secrets from the platform secret store.
func applySecretFallback(cfg *Config, kc keychain) {
	for _, s := range specs {
		if !s.secret || s.extract(*cfg).(string) != "" {
			continue
		}
		if v, err := kc.Get(keychainService, s.account()); err == nil && v != "" {
			s.apply(cfg, v)
		}
	}
}

// Origins returns the configured CORS origins.
func (c ServerConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Duration parses a timeout value such as "90s". Empty or invalid values
// yield def.
func Duration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// keychainReader reads from the platform secret store.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainExec(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
