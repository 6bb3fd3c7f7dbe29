package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

var ErrMissingToken = errors.New("BOT_TOKEN is not set")

const (
	// SizeCheckBeforeNotify rejects oversized uploads before the operator
	// hears about them.
	SizeCheckBeforeNotify = "before_notify"
	// SizeCheckAfterNotify reports every upload first, then applies the
	// size ceiling.
	SizeCheckAfterNotify = "after_notify"
)

const configPathEnvVar = "CONFIG_PATH"

var defaultConfigPaths = []string{"roundclip.yaml", "roundclip.yml"}

type Config struct {
	Bot       BotConfig       `koanf:"bot"`
	HTTP      HTTPConfig      `koanf:"http"`
	Policy    PolicyConfig    `koanf:"policy"`
	Notify    NotifyConfig    `koanf:"notify"`
	Registry  RegistryConfig  `koanf:"registry"`
	Transcode TranscodeConfig `koanf:"transcode"`
	Events    EventsConfig    `koanf:"events"`
	Archive   ArchiveConfig   `koanf:"archive"`
	Logging   LoggingConfig   `koanf:"logging"`
}

type BotConfig struct {
	Token       string `koanf:"token"`
	PollTimeout int    `koanf:"poll_timeout"`
}

type HTTPConfig struct {
	Port      int    `koanf:"port"`
	StaticDir string `koanf:"static_dir"`
}

type PolicyConfig struct {
	RequiredChannel    string `koanf:"required_channel"`
	MaxDurationSeconds int    `koanf:"max_duration_seconds"`
	// MaxSizeBytes of 0 disables the size ceiling.
	MaxSizeBytes   int64  `koanf:"max_size_bytes"`
	SizeCheckOrder string `koanf:"size_check_order"`
}

type NotifyConfig struct {
	OperatorID  int64 `koanf:"operator_id"`
	EveryUpload bool  `koanf:"every_upload"`
}

type RegistryConfig struct {
	Path string `koanf:"path"`
}

type TranscodeConfig struct {
	WorkDir      string `koanf:"work_dir"`
	FFmpegPath   string `koanf:"ffmpeg_path"`
	FFprobePath  string `koanf:"ffprobe_path"`
	Size         int    `koanf:"size"`
	Preset       string `koanf:"preset"`
	CRF          int    `koanf:"crf"`
	AudioBitrate string `koanf:"audio_bitrate"`
}

type EventsConfig struct {
	RedisDSN     string `koanf:"redis_dsn"`
	RedisChannel string `koanf:"redis_channel"`
	AMQPURL      string `koanf:"amqp_url"`
	AMQPExchange string `koanf:"amqp_exchange"`
}

type ArchiveConfig struct {
	Bucket    string `koanf:"bucket"`
	Region    string `koanf:"region"`
	Endpoint  string `koanf:"endpoint"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	Prefix    string `koanf:"prefix"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

func defaultConfig() *Config {
	return &Config{
		Bot: BotConfig{PollTimeout: 60},
		HTTP: HTTPConfig{
			Port:      10000,
			StaticDir: "static",
		},
		Policy: PolicyConfig{
			RequiredChannel:    "@sqw_factory",
			MaxDurationSeconds: 60,
			MaxSizeBytes:       20 << 20, // getFile refuses anything larger
			SizeCheckOrder:     SizeCheckBeforeNotify,
		},
		Registry: RegistryConfig{Path: "users.json"},
		Transcode: TranscodeConfig{
			WorkDir:      filepath.Join(os.TempDir(), "roundclip"),
			FFmpegPath:   "ffmpeg",
			FFprobePath:  "ffprobe",
			Size:         640,
			Preset:       "veryfast",
			CRF:          26,
			AudioBitrate: "128k",
		},
		Events: EventsConfig{
			RedisChannel: "roundclip.events",
			AMQPExchange: "roundclip.events",
		},
		Archive: ArchiveConfig{
			Region: "us-east-1",
			Prefix: "notes",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadConfig layers defaults, an optional YAML file and the environment, in
// that order of precedence.
func LoadConfig() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(configPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range defaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

var envMappings = map[string]string{
	"bot_token":              "bot.token",
	"poll_timeout":           "bot.poll_timeout",
	"port":                   "http.port",
	"static_dir":             "http.static_dir",
	"required_channel":       "policy.required_channel",
	"max_duration_seconds":   "policy.max_duration_seconds",
	"max_size_bytes":         "policy.max_size_bytes",
	"size_check_order":       "policy.size_check_order",
	"operator_id":            "notify.operator_id",
	"notify_on_every_upload": "notify.every_upload",
	"registry_path":          "registry.path",
	"work_dir":               "transcode.work_dir",
	"ffmpeg_path":            "transcode.ffmpeg_path",
	"ffprobe_path":           "transcode.ffprobe_path",
	"note_size":              "transcode.size",
	"video_preset":           "transcode.preset",
	"video_crf":              "transcode.crf",
	"audio_bitrate":          "transcode.audio_bitrate",
	"redis_dsn":              "events.redis_dsn",
	"redis_channel":          "events.redis_channel",
	"rabbitmq_url":           "events.amqp_url",
	"rabbitmq_exchange":      "events.amqp_exchange",
	"s3_bucket":              "archive.bucket",
	"s3_region":              "archive.region",
	"s3_endpoint":            "archive.endpoint",
	"s3_access_key":          "archive.access_key",
	"s3_secret_key":          "archive.secret_key",
	"s3_prefix":              "archive.prefix",
	"log_level":              "logging.level",
	"log_format":             "logging.format",
}

// envTransformFunc maps known environment variables onto config keys and
// drops everything else.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Bot.Token) == "" {
		return ErrMissingToken
	}
	if c.Policy.RequiredChannel == "" {
		return errors.New("required channel must not be empty")
	}
	if c.Policy.MaxDurationSeconds <= 0 {
		return fmt.Errorf("max duration must be positive, got %d", c.Policy.MaxDurationSeconds)
	}
	if c.Policy.MaxSizeBytes < 0 {
		return fmt.Errorf("max size must not be negative, got %d", c.Policy.MaxSizeBytes)
	}
	switch c.Policy.SizeCheckOrder {
	case SizeCheckBeforeNotify, SizeCheckAfterNotify:
	default:
		return fmt.Errorf("unknown size check order %q", c.Policy.SizeCheckOrder)
	}
	if c.Transcode.Size <= 0 || c.Transcode.Size%2 != 0 {
		return fmt.Errorf("note size must be a positive even number, got %d", c.Transcode.Size)
	}
	if c.Transcode.CRF < 20 || c.Transcode.CRF > 28 {
		return fmt.Errorf("crf must be within [20,28], got %d", c.Transcode.CRF)
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.HTTP.Port)
	}
	return nil
}

// Recipe derives the transcoding recipe. The duration cap always matches
// the validation ceiling.
func (c *Config) Recipe() Recipe {
	return Recipe{
		Size:         c.Transcode.Size,
		Preset:       c.Transcode.Preset,
		CRF:          c.Transcode.CRF,
		AudioBitrate: c.Transcode.AudioBitrate,
		MaxSeconds:   c.Policy.MaxDurationSeconds,
	}
}
