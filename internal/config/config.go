package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultSecretKey is the development signing secret. Deployments must
// override it; rotating the secret invalidates every issued token.
const DefaultSecretKey = "change-me-in-production-use-env"

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	App struct {
		Name string
	}
	Server struct {
		Addr string
	}
	Database struct {
		Path string
	}
	Auth struct {
		SecretKey       string
		Algorithm       string
		TokenTTLMinutes int
		SecureCookies   bool
	}
	Storage struct {
		Bucket        string
		KeyPrefix     string
		Region        string
		Endpoint      string
		URLTTLMinutes int
	}
	AWS struct {
		Profile string
	}
	Log struct {
		Level string
	}
}

// TokenTTL is the lifetime of issued access tokens.
func (c Config) TokenTTL() time.Duration {
	return time.Duration(c.Auth.TokenTTLMinutes) * time.Minute
}

// ImageURLTTL is the lifetime of presigned image URLs.
func (c Config) ImageURLTTL() time.Duration {
	return time.Duration(c.Storage.URLTTLMinutes) * time.Minute
}

// legacyEnv maps config keys to the unprefixed variable names older
// deployments set.
var legacyEnv = map[string]string{
	"app.name":             "APP_NAME",
	"database.path":        "DATABASE_PATH",
	"auth.secretkey":       "SECRET_KEY",
	"auth.algorithm":       "ALGORITHM",
	"auth.tokenttlminutes": "ACCESS_TOKEN_EXPIRE_MINUTES",
}

// Load reads configuration from environment variables and optional config files.
func Load() (Config, error) {
	loadDotEnv(".env")

	v := viper.New()
	v.SetEnvPrefix("EVENTBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("app.name", "Event Board")
	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("database.path", "data/events.db")
	v.SetDefault("auth.secretkey", DefaultSecretKey)
	v.SetDefault("auth.algorithm", "HS256")
	v.SetDefault("auth.tokenttlminutes", 1440)
	v.SetDefault("auth.securecookies", false)
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.keyprefix", "event-images")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.urlttlminutes", 60)
	v.SetDefault("aws.profile", "")
	v.SetDefault("log.level", "info")

	for key, env := range legacyEnv {
		prefixed := "EVENTBOARD_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	v.SetConfigName("config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		// the file is optional
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.Auth.TokenTTLMinutes <= 0 {
		return Config{}, fmt.Errorf("auth.tokenttlminutes must be positive, got %d", cfg.Auth.TokenTTLMinutes)
	}

	return cfg, nil
}

// loadDotEnv exports KEY=VALUE pairs from path without overriding variables
// that are already set.
func loadDotEnv(path string) {
	file, err := os.Open(path)
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		if key == "" {
			continue
		}

		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, value)
		}
	}
}
