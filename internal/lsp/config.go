package lsp

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config controls the bridge: where the server farm lives, which languages
// route to which paths, and how reconnection behaves.
type Config struct {
	// Endpoint is the base URL of the language server gateway. http(s)
	// schemes are rewritten to ws(s).
	Endpoint string `toml:"endpoint"`

	// RootURI is sent as the workspace root during the handshake.
	RootURI string `toml:"root_uri"`

	// Languages maps a language id to the gateway path serving it. A
	// language absent from this table is unsupported.
	Languages map[string]string `toml:"languages"`

	// Reconnect bounds automatic reconnection after an established
	// connection drops.
	Reconnect ReconnectConfig `toml:"reconnect"`

	// RequestTimeoutMillis bounds each feature request.
	RequestTimeoutMillis int `toml:"request_timeout_ms"`
}

// ReconnectConfig bounds the reconnect loop.
type ReconnectConfig struct {
	Enabled     bool `toml:"enabled"`
	MaxAttempts int  `toml:"max_attempts"`
	DelayMillis int  `toml:"delay_ms"`
}

// DefaultConfig returns the built-in defaults: five reconnect attempts three
// seconds apart, ten second request timeout.
func DefaultConfig() Config {
	return Config{
		Endpoint:  "ws://127.0.0.1:9257",
		Languages: map[string]string{},
		Reconnect: ReconnectConfig{
			Enabled:     true,
			MaxAttempts: 5,
			DelayMillis: 3000,
		},
		RequestTimeoutMillis: 10000,
	}
}

// LoadConfig reads a TOML config file over the defaults. A missing file is
// not an error; the defaults apply.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("config: endpoint is required")
	}
	if c.Reconnect.MaxAttempts < 0 {
		return fmt.Errorf("config: reconnect max_attempts must not be negative")
	}
	if c.Reconnect.DelayMillis < 0 {
		return fmt.Errorf("config: reconnect delay_ms must not be negative")
	}
	return nil
}

// RequestTimeout returns the per-request timeout as a duration.
func (c Config) RequestTimeout() time.Duration {
	if c.RequestTimeoutMillis <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.RequestTimeoutMillis) * time.Millisecond
}

// ReconnectDelay returns the delay between reconnect attempts.
func (c Config) ReconnectDelay() time.Duration {
	if c.Reconnect.DelayMillis <= 0 {
		return 3 * time.Second
	}
	return time.Duration(c.Reconnect.DelayMillis) * time.Millisecond
}
