package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Editor      EditorConfig    `toml:"editor"`
	Autosave    AutosaveConfig  `toml:"autosave"`
	Publish     PublishConfig   `toml:"publish"`
	Logging     LoggingConfig   `toml:"logging"`
	WebSocket   WebSocketConfig `toml:"websocket"`
	Remote      RemoteConfig    `toml:"remote"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger     BadgerConfig     `toml:"badger"`
	Filesystem FilesystemConfig `toml:"filesystem"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type FilesystemConfig struct {
	Images  string `toml:"images"`  // Directory served as the image store
	Publish string `toml:"publish"` // Directory receiving markdown exports
}

// EditorConfig contains editor session behavior
type EditorConfig struct {
	IdleNormalizeDelay time.Duration `toml:"idle_normalize_delay"` // Full-document normalization after a typing pause
	SessionIdleTimeout time.Duration `toml:"session_idle_timeout"` // Close sessions with no client activity
}

// AutosaveConfig contains the autosave coordinator timing and retry policy.
// Defaults match the editor's designed behavior; tests shrink them.
type AutosaveConfig struct {
	Debounce   time.Duration `toml:"debounce"`    // Quiet period after the last change before saving
	MaxDelay   time.Duration `toml:"max_delay"`   // Ceiling on continuous-typing save deferral
	MaxRetries int           `toml:"max_retries"` // Retry attempts for transient save failures
}

// PublishConfig contains the scheduled markdown export settings
type PublishConfig struct {
	Enabled  bool   `toml:"enabled"`  // Run the export schedule
	Schedule string `toml:"schedule"` // Cron schedule format
	BaseURL  string `toml:"base_url"` // Base URL for resolving image links in exports
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Format     string   `toml:"format"`      // "json" or "text"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05.000")
}

// WebSocketConfig contains configuration for editor session streaming
type WebSocketConfig struct {
	// Minimum interval between autosave status broadcasts per session.
	// Bursty status flips (dirty -> saving -> saved) coalesce under this throttle.
	StatusThrottle time.Duration `toml:"status_throttle"`
	// Maximum inbound message size in bytes
	MaxMessageSize int64 `toml:"max_message_size"`
}

// RemoteConfig selects the persistence endpoint for entry saves.
// Empty URL keeps saves on local storage.
type RemoteConfig struct {
	SaveURL        string        `toml:"save_url"`        // Remote save endpoint, e.g. https://journal.example.com/api/entries
	RequestTimeout time.Duration `toml:"request_timeout"` // HTTP request timeout
}

// NewDefaultConfig creates a configuration with default values
// Technical parameters are hardcoded here for production stability.
// Only user-facing settings should be exposed in scribo.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development", // Default to development mode
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
			Filesystem: FilesystemConfig{
				Images:  "./data/images",
				Publish: "./data/publish",
			},
		},
		Editor: EditorConfig{
			IdleNormalizeDelay: 2 * time.Second,
			SessionIdleTimeout: 30 * time.Minute,
		},
		Autosave: AutosaveConfig{
			Debounce:   3 * time.Second,  // Save 3s after the last change
			MaxDelay:   30 * time.Second, // Never defer longer than 30s of continuous typing
			MaxRetries: 3,                // Transient failures retried with exponential backoff
		},
		Publish: PublishConfig{
			Enabled:  false,         // Disabled by default - user must explicitly opt-in
			Schedule: "0 */6 * * *", // Every 6 hours (standard cron format)
			BaseURL:  "",
		},
		Logging: LoggingConfig{
			Level:  "info",                     // Info level for production (debug|info|warn|error)
			Format: "text",                     // Human-readable text format (text|json)
			Output: []string{"stdout", "file"}, // Log to both console and file
		},
		WebSocket: WebSocketConfig{
			StatusThrottle: 250 * time.Millisecond,
			MaxMessageSize: 2 * 1024 * 1024, // 2MB covers large pasted documents
		},
		Remote: RemoteConfig{
			SaveURL:        "", // Empty = local storage saves
			RequestTimeout: 30 * time.Second,
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env -> CLI
// Priority system: CLI flags > Environment variables > Config file > Defaults
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files with priority: default -> file1 -> file2 -> ... -> env -> CLI
// Later files override earlier files.
// Example: LoadFromFiles("base.toml", "override.toml") - override.toml settings take precedence over base.toml
func LoadFromFiles(paths ...string) (*Config, error) {
	// Start with defaults
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier files)
	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		// Unmarshal into config (merges with existing values, later values override)
		err = toml.Unmarshal(data, config)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	// Apply environment variables (overrides all file configs)
	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	// Environment configuration (highest priority: SCRIBO_ENV, fallback: GO_ENV)
	if env := os.Getenv("SCRIBO_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("SCRIBO_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("SCRIBO_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Storage configuration
	if badgerPath := os.Getenv("SCRIBO_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}
	if imagesDir := os.Getenv("SCRIBO_IMAGES_DIR"); imagesDir != "" {
		config.Storage.Filesystem.Images = imagesDir
	}
	if publishDir := os.Getenv("SCRIBO_PUBLISH_DIR"); publishDir != "" {
		config.Storage.Filesystem.Publish = publishDir
	}

	// Editor configuration
	if idleDelay := os.Getenv("SCRIBO_EDITOR_IDLE_NORMALIZE_DELAY"); idleDelay != "" {
		if d, err := time.ParseDuration(idleDelay); err == nil {
			config.Editor.IdleNormalizeDelay = d
		}
	}

	// Autosave configuration
	if debounce := os.Getenv("SCRIBO_AUTOSAVE_DEBOUNCE"); debounce != "" {
		if d, err := time.ParseDuration(debounce); err == nil {
			config.Autosave.Debounce = d
		}
	}
	if maxDelay := os.Getenv("SCRIBO_AUTOSAVE_MAX_DELAY"); maxDelay != "" {
		if d, err := time.ParseDuration(maxDelay); err == nil {
			config.Autosave.MaxDelay = d
		}
	}
	if maxRetries := os.Getenv("SCRIBO_AUTOSAVE_MAX_RETRIES"); maxRetries != "" {
		if mr, err := strconv.Atoi(maxRetries); err == nil {
			config.Autosave.MaxRetries = mr
		}
	}

	// Publish configuration
	if enabled := os.Getenv("SCRIBO_PUBLISH_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Publish.Enabled = e
		}
	}
	if schedule := os.Getenv("SCRIBO_PUBLISH_SCHEDULE"); schedule != "" {
		config.Publish.Schedule = schedule
	}
	if baseURL := os.Getenv("SCRIBO_PUBLISH_BASE_URL"); baseURL != "" {
		config.Publish.BaseURL = baseURL
	}

	// Logging configuration
	if level := os.Getenv("SCRIBO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("SCRIBO_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if output := os.Getenv("SCRIBO_LOG_OUTPUT"); output != "" {
		// Split comma-separated output types
		outputs := []string{}
		for _, o := range splitString(output, ",") {
			trimmed := trimSpace(o)
			if trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// WebSocket configuration
	if throttle := os.Getenv("SCRIBO_WEBSOCKET_STATUS_THROTTLE"); throttle != "" {
		if d, err := time.ParseDuration(throttle); err == nil {
			config.WebSocket.StatusThrottle = d
		}
	}

	// Remote save configuration
	if saveURL := os.Getenv("SCRIBO_REMOTE_SAVE_URL"); saveURL != "" {
		config.Remote.SaveURL = saveURL
	}
	if timeout := os.Getenv("SCRIBO_REMOTE_REQUEST_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Remote.RequestTimeout = d
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	// Command-line flags have highest priority
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Helper functions for string manipulation
func splitString(s, sep string) []string {
	result := []string{}
	start := 0
	for i := 0; i < len(s); i++ {
		if i+len(sep) <= len(s) && s[i:i+len(sep)] == sep {
			result = append(result, s[start:i])
			start = i + len(sep)
			i = start - 1
		}
	}
	result = append(result, s[start:])
	return result
}

func trimSpace(s string) string {
	start := 0
	end := len(s)
	for start < end && (s[start] == ' ' || s[start] == '\t' || s[start] == '\n' || s[start] == '\r') {
		start++
	}
	for end > start && (s[end-1] == ' ' || s[end-1] == '\t' || s[end-1] == '\n' || s[end-1] == '\r') {
		end--
	}
	return s[start:end]
}

// ValidatePublishSchedule validates a cron schedule expression and ensures minimum 5-minute interval
func ValidatePublishSchedule(schedule string) error {
	// Parse the cron expression
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	_, err := parser.Parse(schedule)
	if err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	// Check for minimum 5-minute interval
	// Validate minute field (first field in standard cron)
	parts := strings.Fields(schedule)
	if len(parts) < 5 {
		return fmt.Errorf("invalid cron format: expected 5 fields")
	}

	minuteField := parts[0]

	// Check for patterns that violate 5-minute minimum
	if minuteField == "*" {
		return fmt.Errorf("schedule must have minimum 5-minute interval (every minute is not allowed)")
	}

	// Check for */n patterns where n < 5
	if strings.HasPrefix(minuteField, "*/") {
		intervalStr := strings.TrimPrefix(minuteField, "*/")
		interval, err := strconv.Atoi(intervalStr)
		if err == nil && interval < 5 {
			return fmt.Errorf("schedule interval must be at least 5 minutes, got %d", interval)
		}
	}

	return nil
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
