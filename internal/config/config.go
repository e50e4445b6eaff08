package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration for watchengine
type Config struct {
	Providers    ProvidersConfig    `mapstructure:"providers"`
	API          APIConfig          `mapstructure:"api"`
	Playback     PlaybackConfig     `mapstructure:"playback"`
	MediaSession MediaSessionConfig `mapstructure:"media_session"`
	Skip         SkipConfig         `mapstructure:"skip"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	Advanced     AdvancedConfig     `mapstructure:"advanced"`
}

// ProvidersConfig configures the upstream stream providers
type ProvidersConfig struct {
	Default string                `mapstructure:"default"` // direct, catalog or embed
	Timeout time.Duration         `mapstructure:"timeout"`
	Direct  DirectProviderConfig  `mapstructure:"direct"`
	Catalog CatalogProviderConfig `mapstructure:"catalog"`
	Embed   EmbedProviderConfig   `mapstructure:"embed"`
}

// DirectProviderConfig configures the direct-manifest provider
type DirectProviderConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	PlayerURL string `mapstructure:"player_url"`
}

// CatalogProviderConfig configures the secondary-catalog provider
type CatalogProviderConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"base_url"`
}

// EmbedProviderConfig configures the third-party embed provider
type EmbedProviderConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	BaseURL     string `mapstructure:"base_url"`
	PlayerURL   string `mapstructure:"player_url"`
	DownloadURL string `mapstructure:"download_url"`
}

// APIConfig configures the series-detail catalog API
type APIConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Retries    int           `mapstructure:"retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// PlaybackConfig holds playback behaviour settings
type PlaybackConfig struct {
	PresentationMode string `mapstructure:"presentation_mode"` // fullscreen or inline
	DefaultLanguage  string `mapstructure:"default_language"`  // sub or dub
	LoadUserConfig   bool   `mapstructure:"load_user_config"`  // load the user's mpv.conf
	Fullscreen       bool   `mapstructure:"fullscreen"`
}

// MediaSessionConfig configures the transport-control surface bridge
type MediaSessionConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
}

// SkipConfig configures intro/outro skip-time lookups
type SkipConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"base_url"`
}

// CacheConfig bounds the in-process caches
type CacheConfig struct {
	MaxEntries int `mapstructure:"max_entries"`
}

// DatabaseConfig configures the sqlite database
type DatabaseConfig struct {
	Path           string `mapstructure:"path"`
	MaxConnections int    `mapstructure:"max_connections"`
	WALMode        bool   `mapstructure:"wal_mode"`
	AutoVacuum     bool   `mapstructure:"auto_vacuum"`
}

// LoggingConfig configures the application logger
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // text or json
	File       string `mapstructure:"file"`
	Color      bool   `mapstructure:"color"`
	MaxSize    int    `mapstructure:"max_size"` // megabytes
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
}

// AdvancedConfig holds rarely changed settings
type AdvancedConfig struct {
	Debug            bool   `mapstructure:"debug"`
	ClipboardCommand string `mapstructure:"clipboard_command"` // used when the system clipboard is unavailable
}

// SetDefaults registers default values on the given viper instance
func SetDefaults(v *viper.Viper) {
	v.SetDefault("providers.default", "catalog")
	v.SetDefault("providers.timeout", 30*time.Second)
	v.SetDefault("providers.direct.enabled", true)
	v.SetDefault("providers.direct.player_url", "https://player.example.net/embed")
	v.SetDefault("providers.catalog.enabled", true)
	v.SetDefault("providers.catalog.base_url", "https://catalog.example.net/api")
	v.SetDefault("providers.embed.enabled", true)
	v.SetDefault("providers.embed.base_url", "https://embed.example.net")
	v.SetDefault("providers.embed.player_url", "https://embed.example.net/player")
	v.SetDefault("providers.embed.download_url", "https://embed.example.net/download")

	v.SetDefault("api.base_url", "http://localhost:8080/api")
	v.SetDefault("api.timeout", 30*time.Second)
	v.SetDefault("api.retries", 3)
	v.SetDefault("api.retry_delay", time.Second)

	v.SetDefault("playback.presentation_mode", "fullscreen")
	v.SetDefault("playback.default_language", "sub")
	v.SetDefault("playback.load_user_config", false)
	v.SetDefault("playback.fullscreen", false)

	v.SetDefault("media_session.enabled", true)
	v.SetDefault("media_session.refresh_interval", time.Second)
	v.SetDefault("media_session.poll_interval", 3*time.Second)

	v.SetDefault("skip.enabled", true)
	v.SetDefault("skip.base_url", "https://api.aniskip.com/v1/skip-times")

	v.SetDefault("cache.max_entries", 64)

	v.SetDefault("database.path", filepath.Join(getDataDir(), "watchengine", "watchengine.db"))
	v.SetDefault("database.max_connections", 4)
	v.SetDefault("database.wal_mode", true)
	v.SetDefault("database.auto_vacuum", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.color", true)
	v.SetDefault("logging.max_size", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", false)

	v.SetDefault("advanced.debug", false)
	v.SetDefault("advanced.clipboard_command", "")
}

// Load reads configuration from cfgFile, or from the default location when empty.
// A missing config file is not an error; defaults are used instead.
func Load(cfgFile string) (*Config, *viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Join(getConfigDir(), "watchengine"))
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("WATCHENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	return &cfg, v, nil
}

// Validate checks the values that cannot be defaulted away
func (c *Config) Validate() error {
	switch c.Providers.Default {
	case "direct", "catalog", "embed":
	default:
		return fmt.Errorf("invalid providers.default %q: must be direct, catalog or embed", c.Providers.Default)
	}

	switch c.Playback.PresentationMode {
	case "fullscreen", "inline":
	default:
		return fmt.Errorf("invalid playback.presentation_mode %q: must be fullscreen or inline", c.Playback.PresentationMode)
	}

	switch c.Playback.DefaultLanguage {
	case "sub", "dub":
	default:
		return fmt.Errorf("invalid playback.default_language %q: must be sub or dub", c.Playback.DefaultLanguage)
	}

	if c.MediaSession.RefreshInterval <= 0 || c.MediaSession.PollInterval <= 0 {
		return fmt.Errorf("media_session intervals must be positive")
	}

	return nil
}

// InitializeDirs creates the config, data and state directories
func InitializeDirs() error {
	dirs := []string{
		filepath.Join(getConfigDir(), "watchengine"),
		filepath.Join(getDataDir(), "watchengine"),
		filepath.Join(getStateDir(), "watchengine"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

func getConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return dir
	}
	if runtime.GOOS == "windows" {
		if dir := os.Getenv("APPDATA"); dir != "" {
			return dir
		}
	}
	return filepath.Join(homeDir(), ".config")
}

func getDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return dir
	}
	return filepath.Join(homeDir(), ".local", "share")
}

func getStateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return dir
	}
	return filepath.Join(homeDir(), ".local", "state")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.TempDir()
	}
	return home
}
