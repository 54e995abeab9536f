package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the root application configuration
type Config struct {
	Logging     LoggingConfig     `mapstructure:"logging" yaml:"logging"`
	Database    DatabaseConfig    `mapstructure:"database" yaml:"database"`
	RemoteStore RemoteStoreConfig `mapstructure:"remote_store" yaml:"remote_store"`
	Gateway     GatewayConfig     `mapstructure:"gateway" yaml:"gateway"`
	Metadata    MetadataConfig    `mapstructure:"metadata" yaml:"metadata"`
	Sources     SourcesConfig     `mapstructure:"sources" yaml:"sources"`
	Images      ImagesConfig      `mapstructure:"images" yaml:"images"`
	History     HistoryConfig     `mapstructure:"history" yaml:"history"`
	Server      ServerConfig      `mapstructure:"server" yaml:"server"`
	Player      PlayerConfig      `mapstructure:"player" yaml:"player"`
	Advanced    AdvancedConfig    `mapstructure:"advanced" yaml:"advanced"`
}

// LoggingConfig controls the slog handler and log rotation
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"` // text or json
	File       string `mapstructure:"file" yaml:"file"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"` // megabytes
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"` // days
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
	Color      bool   `mapstructure:"color" yaml:"color"`
}

// DatabaseConfig describes the local SQLite database
type DatabaseConfig struct {
	Path           string `mapstructure:"path" yaml:"path"`
	MaxConnections int    `mapstructure:"max_connections" yaml:"max_connections"`
	WALMode        bool   `mapstructure:"wal_mode" yaml:"wal_mode"`
	AutoVacuum     bool   `mapstructure:"auto_vacuum" yaml:"auto_vacuum"`
}

// RemoteStoreConfig describes the optional shared backend table.
// An empty Path leaves the remote store unconfigured.
type RemoteStoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// GatewayConfig controls outbound fetches
type GatewayConfig struct {
	ProxyURL      string        `mapstructure:"proxy_url" yaml:"proxy_url"`
	DirectTimeout time.Duration `mapstructure:"direct_timeout" yaml:"direct_timeout"`
	ProxyTimeout  time.Duration `mapstructure:"proxy_timeout" yaml:"proxy_timeout"`
	UserAgent     string        `mapstructure:"user_agent" yaml:"user_agent"`
}

// MetadataConfig points at the metadata service
type MetadataConfig struct {
	SuggestURL  string        `mapstructure:"suggest_url" yaml:"suggest_url"`
	SubjectURL  string        `mapstructure:"subject_url" yaml:"subject_url"` // detail page, id appended
	HotURL      string        `mapstructure:"hot_url" yaml:"hot_url"`
	CacheSize   int           `mapstructure:"cache_size" yaml:"cache_size"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
	CatalogTTL  time.Duration `mapstructure:"catalog_ttl" yaml:"catalog_ttl"`
	MaxReviews  int           `mapstructure:"max_reviews" yaml:"max_reviews"`
	MaxCast     int           `mapstructure:"max_cast" yaml:"max_cast"`
	MaxRelated  int           `mapstructure:"max_related" yaml:"max_related"`
	Referer     string        `mapstructure:"referer" yaml:"referer"`
}

// SourcesConfig holds the built-in backend entry
type SourcesConfig struct {
	BuiltinName string `mapstructure:"builtin_name" yaml:"builtin_name"`
	BuiltinURL  string `mapstructure:"builtin_url" yaml:"builtin_url"`
}

// ImagesConfig drives the image fallback pipeline
type ImagesConfig struct {
	ProxyTemplates []string `mapstructure:"proxy_templates" yaml:"proxy_templates"`
	BadPatterns    []string `mapstructure:"bad_patterns" yaml:"bad_patterns"`
	SizeHost       string   `mapstructure:"size_host" yaml:"size_host"`
	SizeFrom       string   `mapstructure:"size_from" yaml:"size_from"`
	SizeTo         string   `mapstructure:"size_to" yaml:"size_to"`
	ViewportMargin int      `mapstructure:"viewport_margin" yaml:"viewport_margin"` // px, reported to clients
}

// HistoryConfig caps the watch history
type HistoryConfig struct {
	MaxEntries int `mapstructure:"max_entries" yaml:"max_entries"`
}

// ServerConfig configures `vodhub serve`
type ServerConfig struct {
	Addr       string `mapstructure:"addr" yaml:"addr"`
	Passphrase string `mapstructure:"passphrase" yaml:"passphrase"`
}

// PlayerConfig selects the external player used by `vodhub play --watch`
type PlayerConfig struct {
	Binary string   `mapstructure:"binary" yaml:"binary"` // mpv, vlc or iina; empty autodetects
	Args   []string `mapstructure:"args" yaml:"args"`
}

// AdvancedConfig holds debug switches
type AdvancedConfig struct {
	Debug            bool   `mapstructure:"debug" yaml:"debug"`
	ClipboardCommand string `mapstructure:"clipboard_command" yaml:"clipboard_command"` // fallback when the system clipboard is unreachable
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
			Color:      true,
		},
		Database: DatabaseConfig{
			Path:           filepath.Join(GetDataDir(), "vodhub.db"),
			MaxConnections: 4,
			WALMode:        true,
			AutoVacuum:     true,
		},
		Gateway: GatewayConfig{
			DirectTimeout: 6 * time.Second,
			ProxyTimeout:  12 * time.Second,
			UserAgent:     "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
		},
		Metadata: MetadataConfig{
			SuggestURL:  "https://movie.douban.com/j/subject_suggest",
			SubjectURL:  "https://movie.douban.com/subject/",
			HotURL:      "https://movie.douban.com/j/search_subjects",
			CacheSize:   256,
			CacheTTL:    time.Hour,
			CatalogTTL:  30 * time.Minute,
			MaxReviews:  10,
			MaxCast:     15,
			MaxRelated:  12,
			Referer:     "https://movie.douban.com/",
		},
		Sources: SourcesConfig{
			BuiltinName: "默认源",
			BuiltinURL:  "https://api.example-cms.com/api.php/provide/vod",
		},
		Images: ImagesConfig{
			ProxyTemplates: []string{
				"https://images.weserv.nl/?url={url}&output=webp&q=80&n=-1",
				"https://wsrv.nl/?url={url}&output=webp&q=70&n=-1",
			},
			BadPatterns:    []string{"nopic", "default.jpg", "placeholder"},
			SizeHost:       "doubanio.com",
			SizeFrom:       "/s_ratio_poster/",
			SizeTo:         "/m_ratio_poster/",
			ViewportMargin: 300,
		},
		History: HistoryConfig{
			MaxEntries: 20,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8787",
		},
		Player: PlayerConfig{
			Args: []string{},
		},
	}
}

// Load reads the configuration file (if any), applies defaults and environment overrides
func Load(cfgFile string) (*Config, *viper.Viper, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix("VODHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(GetConfigDir())
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to decode config: %w", err)
	}

	return cfg, v, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.max_size", d.Logging.MaxSize)
	v.SetDefault("logging.max_backups", d.Logging.MaxBackups)
	v.SetDefault("logging.max_age", d.Logging.MaxAge)
	v.SetDefault("logging.compress", d.Logging.Compress)
	v.SetDefault("logging.color", d.Logging.Color)

	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("database.max_connections", d.Database.MaxConnections)
	v.SetDefault("database.wal_mode", d.Database.WALMode)
	v.SetDefault("database.auto_vacuum", d.Database.AutoVacuum)

	v.SetDefault("remote_store.path", d.RemoteStore.Path)

	v.SetDefault("gateway.proxy_url", d.Gateway.ProxyURL)
	v.SetDefault("gateway.direct_timeout", d.Gateway.DirectTimeout)
	v.SetDefault("gateway.proxy_timeout", d.Gateway.ProxyTimeout)
	v.SetDefault("gateway.user_agent", d.Gateway.UserAgent)

	v.SetDefault("metadata.suggest_url", d.Metadata.SuggestURL)
	v.SetDefault("metadata.subject_url", d.Metadata.SubjectURL)
	v.SetDefault("metadata.hot_url", d.Metadata.HotURL)
	v.SetDefault("metadata.cache_size", d.Metadata.CacheSize)
	v.SetDefault("metadata.cache_ttl", d.Metadata.CacheTTL)
	v.SetDefault("metadata.catalog_ttl", d.Metadata.CatalogTTL)
	v.SetDefault("metadata.max_reviews", d.Metadata.MaxReviews)
	v.SetDefault("metadata.max_cast", d.Metadata.MaxCast)
	v.SetDefault("metadata.max_related", d.Metadata.MaxRelated)
	v.SetDefault("metadata.referer", d.Metadata.Referer)

	v.SetDefault("sources.builtin_name", d.Sources.BuiltinName)
	v.SetDefault("sources.builtin_url", d.Sources.BuiltinURL)

	v.SetDefault("images.proxy_templates", d.Images.ProxyTemplates)
	v.SetDefault("images.bad_patterns", d.Images.BadPatterns)
	v.SetDefault("images.size_host", d.Images.SizeHost)
	v.SetDefault("images.size_from", d.Images.SizeFrom)
	v.SetDefault("images.size_to", d.Images.SizeTo)
	v.SetDefault("images.viewport_margin", d.Images.ViewportMargin)

	v.SetDefault("history.max_entries", d.History.MaxEntries)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.passphrase", d.Server.Passphrase)

	v.SetDefault("player.binary", d.Player.Binary)
	v.SetDefault("player.args", d.Player.Args)

	v.SetDefault("advanced.debug", d.Advanced.Debug)
	v.SetDefault("advanced.clipboard_command", d.Advanced.ClipboardCommand)
}

// SaveDefaultConfig writes the default configuration as YAML
func SaveDefaultConfig(path string) error {
	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("failed to encode default config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// InitializeDirs creates the config, data and state directories
func InitializeDirs() error {
	for _, dir := range []string{GetConfigDir(), GetDataDir(), filepath.Join(getStateDir(), "vodhub")} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// GetConfigDir returns $XDG_CONFIG_HOME/vodhub
func GetConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "vodhub")
	}
	return filepath.Join(homeDir(), ".config", "vodhub")
}

// GetDataDir returns $XDG_DATA_HOME/vodhub
func GetDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "vodhub")
	}
	return filepath.Join(homeDir(), ".local", "share", "vodhub")
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
