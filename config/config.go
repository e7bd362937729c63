package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	ExtractorExifTool = "exiftool"
	ExtractorGoExif   = "goexif"
)

const (
	EnvPrefix      = "PHOTOINGEST"
	configFileName = "photoingest"

	defaultNumWorkers         = 8
	defaultWriteQueueSize     = 256
	defaultThumbnailMaxSize   = 512
	defaultBracketMaxDuration = 5 * time.Second
)

var defaultExtensions = []string{".CR2", ".CR3", ".JPG", ".JPEG"}

type Config struct {
	// directories scanned recursively for photos
	IngestPaths []string `mapstructure:"ingest_paths"`

	// store output directory; photos.db and locations.db live here
	DatabaseDir string `mapstructure:"database_dir"`

	// Google Takeout location history (JSON); empty disables history lookups
	LocationHistoryFile string `mapstructure:"location_history_file"`

	Reprocess bool `mapstructure:"reprocess"`

	// worker settings
	NumWorkers     int `mapstructure:"num_workers"`
	WriteQueueSize int `mapstructure:"write_queue_size"`

	Extensions []string `mapstructure:"extensions"`

	DetectBrackets     bool          `mapstructure:"detect_brackets"`
	BracketMaxDuration time.Duration `mapstructure:"bracket_max_duration"`

	ThumbnailMaxSize int `mapstructure:"thumbnail_max_size"`

	Extractor    string `mapstructure:"extractor"`
	ExifToolPath string `mapstructure:"exiftool_path"`

	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`

	// Warnings lists values that were invalid and replaced by defaults.
	// They are collected here because the logger is built from this config.
	Warnings []string `mapstructure:"-"`
}

// PhotoStorePath is the sqlite file holding processed photos.
func (c Config) PhotoStorePath() string {
	return filepath.Join(c.DatabaseDir, "photos.db")
}

// LocationStorePath is the sqlite file holding the location index.
func (c Config) LocationStorePath() string {
	return filepath.Join(c.DatabaseDir, "locations.db")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ingest_paths", []string{})
	v.SetDefault("database_dir", ".")
	v.SetDefault("location_history_file", "")
	v.SetDefault("reprocess", false)
	v.SetDefault("num_workers", defaultNumWorkers)
	v.SetDefault("write_queue_size", defaultWriteQueueSize)
	v.SetDefault("extensions", defaultExtensions)
	v.SetDefault("detect_brackets", true)
	v.SetDefault("bracket_max_duration", defaultBracketMaxDuration)
	v.SetDefault("thumbnail_max_size", defaultThumbnailMaxSize)
	v.SetDefault("extractor", ExtractorExifTool)
	v.SetDefault("exiftool_path", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
}

// New returns a viper instance with defaults, environment binding and the
// config file search paths set up. configFile, when non-empty, is the only
// file read.
func New(configFile string) *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		return v
	}
	v.SetConfigName(configFileName)
	v.SetConfigType("toml")
	if configDir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(configDir, configFileName))
	}
	v.AddConfigPath(".")
	return v
}

// LoadConfig reads .env (if present), the optional config file and the
// PHOTOINGEST_* environment. bind, when set, can attach command line flags
// to v before anything is read.
func LoadConfig(configFile string, bind func(v *viper.Viper) error) (Config, error) {
	// a missing .env is fine
	_ = godotenv.Load()

	v := New(configFile)
	if bind != nil {
		if err := bind(v); err != nil {
			return Config{}, fmt.Errorf("failed to bind flags: %w", err)
		}
	}
	return FromViper(v)
}

// FromViper reads the config file registered on v and decodes and validates
// the result.
func FromViper(v *viper.Viper) (Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	// env values arrive as one string; split on whitespace
	cfg.IngestPaths = splitList(v.GetStringSlice("ingest_paths"))
	cfg.Extensions = splitList(v.GetStringSlice("extensions"))

	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		out = append(out, strings.Fields(v)...)
	}
	return out
}

func (c *Config) positiveIntOrDefault(key string, val *int, defaultVal int) {
	if *val <= 0 {
		c.Warnings = append(c.Warnings, fmt.Sprintf("invalid %s %d, using default %d", key, *val, defaultVal))
		*val = defaultVal
	}
}

func (c *Config) normalize() error {
	c.positiveIntOrDefault("num_workers", &c.NumWorkers, defaultNumWorkers)
	c.positiveIntOrDefault("write_queue_size", &c.WriteQueueSize, defaultWriteQueueSize)
	c.positiveIntOrDefault("thumbnail_max_size", &c.ThumbnailMaxSize, defaultThumbnailMaxSize)

	if c.BracketMaxDuration <= 0 {
		c.Warnings = append(c.Warnings, fmt.Sprintf("invalid bracket_max_duration %s, using default %s", c.BracketMaxDuration, defaultBracketMaxDuration))
		c.BracketMaxDuration = defaultBracketMaxDuration
	}
	if len(c.Extensions) == 0 {
		c.Extensions = append([]string(nil), defaultExtensions...)
	}

	c.Extractor = strings.ToLower(strings.TrimSpace(c.Extractor))
	switch c.Extractor {
	case "":
		c.Extractor = ExtractorExifTool
	case ExtractorExifTool, ExtractorGoExif:
	default:
		return fmt.Errorf("unknown extractor %q (want %s or %s)", c.Extractor, ExtractorExifTool, ExtractorGoExif)
	}

	absDir, err := filepath.Abs(c.DatabaseDir)
	if err != nil {
		return fmt.Errorf("failed to get absolute path for database dir '%s': %w", c.DatabaseDir, err)
	}
	c.DatabaseDir = absDir

	for i, p := range c.IngestPaths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("failed to get absolute path for ingest path '%s': %w", p, err)
		}
		c.IngestPaths[i] = abs
	}
	return nil
}
