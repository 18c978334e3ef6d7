// config.go
package main

import (
	"os"
	"runtime"
	"strconv"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// AppConfig is the process-wide, immutable-after-start record every request
// is served against. It is populated once in main() and never mutated
// afterward; concurrent requests read it without synchronization.
type AppConfig struct {
	Host            string        `toml:"host"`
	Port            int           `toml:"port"`
	Workers         int           `toml:"workers"`
	MaxConnections  int           `toml:"max_connections"`
	KeepAlive       time.Duration `toml:"-"`
	RequestTimeout  time.Duration `toml:"-"`
	ResponseTimeout time.Duration `toml:"-"`
	MaxRequestSize  int64         `toml:"max_request_size"`

	KeepAliveSeconds       int `toml:"keep_alive"`
	RequestTimeoutSeconds  int `toml:"request_timeout"`
	ResponseTimeoutSeconds int `toml:"response_timeout"`
}

func DefaultConfig() AppConfig {
	cfg := AppConfig{
		Host:                   "127.0.0.1",
		Port:                   3000,
		Workers:                runtime.NumCPU(),
		MaxConnections:         25000,
		MaxRequestSize:         5 * 1024 * 1024,
		KeepAliveSeconds:       90,
		RequestTimeoutSeconds:  60,
		ResponseTimeoutSeconds: 60,
	}
	cfg.resolveDurations()
	return cfg
}

func (c *AppConfig) resolveDurations() {
	c.KeepAlive = time.Duration(c.KeepAliveSeconds) * time.Second
	c.RequestTimeout = time.Duration(c.RequestTimeoutSeconds) * time.Second
	c.ResponseTimeout = time.Duration(c.ResponseTimeoutSeconds) * time.Second
}

func LoadConfigFromTOML(data []byte) (AppConfig, error) {
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return AppConfig{}, err
	}
	cfg.resolveDurations()
	return cfg, nil
}

// LoadConfigFromEnv overlays the environment variables spec.md names onto an
// already-loaded config; env always wins over a config file.
func LoadConfigFromEnv(cfg AppConfig) AppConfig {
	if host := os.Getenv("HOST"); host != "" {
		cfg.Host = host
	}
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	if workers := os.Getenv("WORKERS"); workers != "" {
		if w, err := strconv.Atoi(workers); err == nil {
			cfg.Workers = w
		}
	}
	if maxConn := os.Getenv("MAX_CONNECTIONS"); maxConn != "" {
		if m, err := strconv.Atoi(maxConn); err == nil {
			cfg.MaxConnections = m
		}
	}
	if keepAlive := os.Getenv("KEEP_ALIVE"); keepAlive != "" {
		if k, err := strconv.Atoi(keepAlive); err == nil {
			cfg.KeepAliveSeconds = k
		}
	}
	if reqTimeout := os.Getenv("REQUEST_TIMEOUT"); reqTimeout != "" {
		if r, err := strconv.Atoi(reqTimeout); err == nil {
			cfg.RequestTimeoutSeconds = r
		}
	}
	if respTimeout := os.Getenv("RESPONSE_TIMEOUT"); respTimeout != "" {
		if r, err := strconv.Atoi(respTimeout); err == nil {
			cfg.ResponseTimeoutSeconds = r
		}
	}
	if maxSize := os.Getenv("MAX_REQUEST_SIZE"); maxSize != "" {
		if m, err := strconv.ParseInt(maxSize, 10, 64); err == nil {
			cfg.MaxRequestSize = m
		}
	}

	cfg.resolveDurations()
	return cfg
}

// LoadConfig auto-discovers a TOML config file (unless configPath is given),
// then layers environment variables on top, matching the precedence order
// the teacher's proxy config loader uses.
func LoadConfig(configPath string) (AppConfig, error) {
	cfg := DefaultConfig()

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			defaultPath := home + "/.config/llm-gateway/config.toml"
			if _, err := os.Stat(defaultPath); err == nil {
				configPath = defaultPath
			}
		}
	}

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err == nil {
			cfg, err = LoadConfigFromTOML(data)
			if err != nil {
				return AppConfig{}, err
			}
		}
	}

	cfg = LoadConfigFromEnv(cfg)
	return cfg, nil
}
