package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Store backends
const (
	BackendS3     = "s3"
	BackendSwift  = "swift"
	BackendMemory = "memory"
)

// Delivery modes
const (
	DeliveryArchive   = "archive"
	DeliveryPerObject = "per-object"
)

// Decode policies
const (
	PolicyLenient = "lenient"
	PolicyStrict  = "strict"
)

const (
	defaultChunkSize     = 64 * 1024
	defaultStagingDir    = "/tmp"
	defaultArchivePrefix = "mp3-magic-machine/archive"
	defaultMetricsJob    = "mp3-magic-machine"
)

// Config represents the complete service configuration
type Config struct {
	Store    StoreConfig    `yaml:"store"`
	Delivery DeliveryConfig `yaml:"delivery"`
	Staging  StagingConfig  `yaml:"staging"`
	Bridge   BridgeConfig   `yaml:"bridge"`
	Decode   DecodeConfig   `yaml:"decode"`
	Encoder  EncoderConfig  `yaml:"encoder"`
	HTTP     HTTPConfig     `yaml:"http"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// StoreConfig selects and configures the object store backend
type StoreConfig struct {
	Backend   string      `yaml:"backend"`
	Region    string      `yaml:"region"`
	Endpoint  string      `yaml:"endpoint"`
	PathStyle bool        `yaml:"path_style"`
	Swift     SwiftConfig `yaml:"swift"`
}

// SwiftConfig contains OpenStack Swift credentials
type SwiftConfig struct {
	Username string `yaml:"username"`
	APIKey   string `yaml:"api_key"`
	AuthURL  string `yaml:"auth_url"`
	Domain   string `yaml:"domain"`
	Tenant   string `yaml:"tenant"`
}

// DeliveryConfig controls where encoded results are published
type DeliveryConfig struct {
	Mode          string `yaml:"mode"`
	Bucket        string `yaml:"bucket"`         // empty: source bucket (per-object only)
	ArchivePrefix string `yaml:"archive_prefix"` // key prefix for dated archives
}

// StagingConfig contains local scratch space settings
type StagingConfig struct {
	Dir     string `yaml:"dir"`
	Cleanup bool   `yaml:"cleanup"` // remove staged files once delivered
}

// BridgeConfig contains hand-off queue settings
type BridgeConfig struct {
	ChunkSize     int `yaml:"chunk_size"`     // bytes per chunk pulled from the store
	QueueCapacity int `yaml:"queue_capacity"` // 0 means unbounded
}

// DecodeConfig contains WAV decoding settings
type DecodeConfig struct {
	Policy string `yaml:"policy"`
}

// EncoderConfig contains MP3 encoder settings
type EncoderConfig struct {
	Quality     int `yaml:"quality"`      // LAME algorithm quality, 0 (best) to 9 (fastest)
	BitrateKbps int `yaml:"bitrate_kbps"` // 0 keeps the LAME default
}

// HTTPConfig contains HTTP notification endpoint configuration
type HTTPConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
	Enabled bool   `yaml:"enabled"`
}

// MetricsConfig contains Prometheus push settings
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url"`
	Job            string `yaml:"job"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns a configuration with every optional field populated
func Default() *Config {
	return &Config{
		Store: StoreConfig{Backend: BackendS3},
		Delivery: DeliveryConfig{
			Mode:          DeliveryArchive,
			ArchivePrefix: defaultArchivePrefix,
		},
		Staging: StagingConfig{Dir: defaultStagingDir, Cleanup: true},
		Bridge:  BridgeConfig{ChunkSize: defaultChunkSize},
		Decode:  DecodeConfig{Policy: PolicyLenient},
		Encoder: EncoderConfig{Quality: 2},
		HTTP:    HTTPConfig{Address: "0.0.0.0", Port: 8080},
		Metrics: MetricsConfig{Job: defaultMetricsJob},
		Logging: LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
	}
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store config: %w", err)
	}

	if err := c.Delivery.Validate(); err != nil {
		return fmt.Errorf("delivery config: %w", err)
	}

	if err := c.Staging.Validate(); err != nil {
		return fmt.Errorf("staging config: %w", err)
	}

	if err := c.Bridge.Validate(); err != nil {
		return fmt.Errorf("bridge config: %w", err)
	}

	if err := c.Decode.Validate(); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}

	if err := c.Encoder.Validate(); err != nil {
		return fmt.Errorf("encoder config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates store configuration
func (s *StoreConfig) Validate() error {
	switch s.Backend {
	case BackendS3, BackendMemory:
		return nil
	case BackendSwift:
		if s.Swift.Username == "" {
			return fmt.Errorf("swift username cannot be empty")
		}
		if s.Swift.APIKey == "" {
			return fmt.Errorf("swift api_key cannot be empty")
		}
		if s.Swift.AuthURL == "" {
			return fmt.Errorf("swift auth_url cannot be empty")
		}
		return nil
	default:
		return fmt.Errorf("backend must be one of [s3, swift, memory], got '%s'", s.Backend)
	}
}

// Validate validates delivery configuration
func (d *DeliveryConfig) Validate() error {
	switch d.Mode {
	case DeliveryArchive:
		if d.Bucket == "" {
			return fmt.Errorf("bucket cannot be empty in archive mode")
		}
		if strings.Trim(d.ArchivePrefix, "/") == "" {
			return fmt.Errorf("archive_prefix cannot be empty in archive mode")
		}
	case DeliveryPerObject:
	default:
		return fmt.Errorf("mode must be '%s' or '%s', got '%s'", DeliveryArchive, DeliveryPerObject, d.Mode)
	}

	return nil
}

// Validate validates staging configuration
func (s *StagingConfig) Validate() error {
	if s.Dir == "" {
		return fmt.Errorf("dir cannot be empty")
	}
	return nil
}

// Validate validates bridge configuration
func (b *BridgeConfig) Validate() error {
	if b.ChunkSize < 512 {
		return fmt.Errorf("chunk_size must be at least 512 bytes, got %d", b.ChunkSize)
	}

	if b.QueueCapacity < 0 {
		return fmt.Errorf("queue_capacity cannot be negative, got %d", b.QueueCapacity)
	}

	return nil
}

// Validate validates decode configuration
func (d *DecodeConfig) Validate() error {
	if d.Policy != PolicyLenient && d.Policy != PolicyStrict {
		return fmt.Errorf("policy must be '%s' or '%s', got '%s'", PolicyLenient, PolicyStrict, d.Policy)
	}
	return nil
}

// Validate validates encoder configuration
func (e *EncoderConfig) Validate() error {
	if e.Quality < 0 || e.Quality > 9 {
		return fmt.Errorf("quality must be between 0 and 9, got %d", e.Quality)
	}

	if e.BitrateKbps < 0 || e.BitrateKbps > 320 {
		return fmt.Errorf("bitrate_kbps must be between 0 and 320, got %d", e.BitrateKbps)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Enabled {
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
		}

		if h.Address == "" {
			return fmt.Errorf("http address cannot be empty when HTTP is enabled")
		}
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// IsStrict reports whether corrupt samples abort decoding
func (d *DecodeConfig) IsStrict() bool {
	return d.Policy == PolicyStrict
}

// IsBounded reports whether the hand-off queue blocks its producer when full
func (b *BridgeConfig) IsBounded() bool {
	return b.QueueCapacity > 0
}

// GetAddress returns the listen address of the HTTP endpoint
func (h *HTTPConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", h.Address, h.Port)
}
