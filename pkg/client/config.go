package client

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the structure of the client config file
type Config struct {
	API           APISection           `toml:"api"`
	Realtime      RealtimeSection      `toml:"realtime"`
	Local         LocalSection         `toml:"local"`
	Notifications NotificationsSection `toml:"notifications"`
	Metrics       MetricsSection       `toml:"metrics"`
}

type APISection struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type RealtimeSection struct {
	URL                  string `toml:"url"` // empty derives from api.base_url
	AutoReconnect        bool   `toml:"auto_reconnect"`
	MaxReconnectAttempts int    `toml:"max_reconnect_attempts"`
	ReconnectDelayMS     int    `toml:"reconnect_delay_ms"`
	TypingIdleMS         int    `toml:"typing_idle_ms"`
}

type LocalSection struct {
	StateDB string `toml:"state_db"`
}

type NotificationsSection struct {
	Desktop bool `toml:"desktop"`
}

type MetricsSection struct {
	Listen string `toml:"listen"` // e.g. "127.0.0.1:9464"; empty disables
}

// ConfigError represents a structured configuration error
type ConfigError struct {
	Path       string
	Message    string
	LineNumber int // 0 if not a parse error
}

func (e *ConfigError) Error() string {
	if e.LineNumber > 0 {
		return fmt.Sprintf("%s: %s (line %d)", e.Path, e.Message, e.LineNumber)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// getXDGConfigHome returns the XDG config directory
func getXDGConfigHome() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return xdg
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".config")
}

// getXDGDataHome returns the XDG data directory
func getXDGDataHome() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return xdg
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".local", "share")
}

// DefaultConfigPath returns $XDG_CONFIG_HOME/socialite/config.toml
func DefaultConfigPath() string {
	return filepath.Join(getXDGConfigHome(), "socialite", "config.toml")
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		API: APISection{
			BaseURL:        "http://localhost:3000/api",
			TimeoutSeconds: 15,
		},
		Realtime: RealtimeSection{
			AutoReconnect:        true,
			MaxReconnectAttempts: DefaultMaxReconnectAttempts,
			ReconnectDelayMS:     int(DefaultReconnectDelay / time.Millisecond),
			TypingIdleMS:         int(DefaultTypingIdle / time.Millisecond),
		},
		Local: LocalSection{
			StateDB: filepath.Join(getXDGDataHome(), "socialite", "state.db"),
		},
		Notifications: NotificationsSection{
			Desktop: true,
		},
	}
}

// LoadConfig loads configuration from a TOML file, creating a default one if
// it does not exist. Keys missing from the file keep their default values.
func LoadConfig(path string) (Config, error) {
	path, err := expandHome(path)
	if err != nil {
		return Config{}, err
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		config := DefaultConfig()
		// Not being able to write the default is not fatal
		_ = writeDefaultConfig(path, config)
		return config, nil
	}

	config := DefaultConfig()
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return Config{}, &ConfigError{
			Path:       path,
			Message:    cleanErrorMessage(err.Error()),
			LineNumber: extractLineNumber(err.Error()),
		}
	}

	if err := validateConfig(&config); err != nil {
		return Config{}, &ConfigError{
			Path:    path,
			Message: err.Error(),
		}
	}

	return config, nil
}

var lineNumberPattern = regexp.MustCompile(`line (\d+)`)

// extractLineNumber tries to extract a line number from a TOML parse error
func extractLineNumber(errMsg string) int {
	matches := lineNumberPattern.FindStringSubmatch(errMsg)
	if len(matches) > 1 {
		if num, err := strconv.Atoi(matches[1]); err == nil {
			return num
		}
	}
	return 0
}

func cleanErrorMessage(errMsg string) string {
	return strings.TrimPrefix(errMsg, "toml: ")
}

// validateConfig validates configuration values
func validateConfig(config *Config) error {
	var errors []string

	if u, err := url.Parse(config.API.BaseURL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		errors = append(errors, fmt.Sprintf("Invalid api.base_url: %q (must be an http or https URL)", config.API.BaseURL))
	}

	if config.API.TimeoutSeconds <= 0 {
		errors = append(errors, "api.timeout_seconds must be positive")
	}

	if config.Realtime.URL != "" {
		if u, err := url.Parse(config.Realtime.URL); err != nil || u.Host == "" || (u.Scheme != "ws" && u.Scheme != "wss") {
			errors = append(errors, fmt.Sprintf("Invalid realtime.url: %q (must be a ws or wss URL)", config.Realtime.URL))
		}
	}

	if config.Realtime.MaxReconnectAttempts < 0 {
		errors = append(errors, "realtime.max_reconnect_attempts cannot be negative")
	}

	if config.Realtime.ReconnectDelayMS < 0 {
		errors = append(errors, "realtime.reconnect_delay_ms cannot be negative")
	}

	if config.Realtime.TypingIdleMS <= 0 {
		errors = append(errors, "realtime.typing_idle_ms must be positive")
	}

	if strings.TrimSpace(config.Local.StateDB) == "" {
		errors = append(errors, "local.state_db cannot be empty")
	}

	if len(errors) > 0 {
		return fmt.Errorf("Configuration validation failed:\n  • %s", strings.Join(errors, "\n  • "))
	}

	return nil
}

// writeDefaultConfig writes the default config to a file
func writeDefaultConfig(path string, config Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	header := `# Socialite Client Configuration
# This file was auto-generated with default values
# Leave realtime.url empty to derive it from api.base_url

`
	if _, err := f.WriteString(header); err != nil {
		return err
	}

	if err := toml.NewEncoder(f).Encode(config); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, path[2:]), nil
}

// GetStateDBPath returns the state database path with ~ expanded
func (c *Config) GetStateDBPath() (string, error) {
	return expandHome(c.Local.StateDB)
}

// RealtimeURL returns the websocket endpoint, derived from the API base URL
// unless realtime.url overrides it.
func (c *Config) RealtimeURL() (string, error) {
	return ResolveRealtimeURL(c.API.BaseURL, c.Realtime.URL)
}

// APITimeout returns the per-request HTTP timeout
func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// ReconnectDelay returns the fixed delay between reconnect attempts
func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.Realtime.ReconnectDelayMS) * time.Millisecond
}

// TypingIdle returns how long input may be idle before stop_typing is sent
func (c *Config) TypingIdle() time.Duration {
	return time.Duration(c.Realtime.TypingIdleMS) * time.Millisecond
}

// ResetConfigToDefault rewrites the config file with defaults, keeping a
// dated backup of the old one when backup is true.
func ResetConfigToDefault(path string, backup bool) error {
	path, err := expandHome(path)
	if err != nil {
		return err
	}

	if backup {
		backupPath := fmt.Sprintf("%s.backup-%s", path, time.Now().Format("2006-01-02"))
		if err := copyFile(path, backupPath); err != nil {
			return fmt.Errorf("failed to create backup: %w", err)
		}
	}

	if err := writeDefaultConfig(path, DefaultConfig()); err != nil {
		return fmt.Errorf("failed to write default config: %w", err)
	}

	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0644)
}
