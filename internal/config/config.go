package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/satriahrh/arunika/client/domain"
)

// Config represents the complete client configuration
type Config struct {
	Agent   AgentConfig   `yaml:"agent"`
	HTTP    HTTPConfig    `yaml:"http"`
	Audio   AudioConfig   `yaml:"audio"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// AgentConfig describes the conversational agent endpoint
type AgentConfig struct {
	URL                string `yaml:"url"`
	HandshakeTimeoutMs int    `yaml:"handshake_timeout_ms"`
}

// HTTPConfig contains the control API configuration
type HTTPConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
}

// AudioConfig contains capture and playback parameters
type AudioConfig struct {
	ChunkIntervalMs    int    `yaml:"chunk_interval_ms"`
	StopCooldownMs     int    `yaml:"stop_cooldown_ms"`
	PlaybackSampleRate int    `yaml:"playback_sample_rate"`
	MicSource          string `yaml:"mic_source"`   // WAV or raw PCM16 file
	SpeakerSink        string `yaml:"speaker_sink"` // optional float32LE output file
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig toggles the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Agent: AgentConfig{
			URL:                "ws://localhost:8000/ws",
			HandshakeTimeoutMs: 10000,
		},
		HTTP: HTTPConfig{
			Port:    8081,
			Address: "127.0.0.1",
		},
		Audio: AudioConfig{
			ChunkIntervalMs:    100,
			StopCooldownMs:     2000,
			PlaybackSampleRate: domain.PlaybackSampleRate,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, in increasing precedence. Variables in a .env file are loaded
// into the environment first. When path is empty CONFIG_FILE is used.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}

	config := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := config.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return config, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s must be an integer, got %q", key, v)
		}
		*dst = n
		return nil
	}

	str("ARUNIKA_WS_URL", &c.Agent.URL)
	str("MIC_SOURCE", &c.Audio.MicSource)
	str("SPEAKER_SINK", &c.Audio.SpeakerSink)
	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FORMAT", &c.Logging.Format)

	for key, dst := range map[string]*int{
		"PORT":                 &c.HTTP.Port,
		"CHUNK_INTERVAL_MS":    &c.Audio.ChunkIntervalMs,
		"STOP_COOLDOWN_MS":     &c.Audio.StopCooldownMs,
		"PLAYBACK_SAMPLE_RATE": &c.Audio.PlaybackSampleRate,
	} {
		if err := num(key, dst); err != nil {
			return err
		}
	}

	if v, ok := lookup("METRICS_ENABLED"); ok {
		enabled, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("METRICS_ENABLED must be a boolean, got %q", v)
		}
		c.Metrics.Enabled = enabled
	}
	return nil
}

// Validate performs validation of every section
func (c *Config) Validate() error {
	if err := c.Agent.Validate(); err != nil {
		return fmt.Errorf("agent config: %w", err)
	}
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

// Validate validates the agent endpoint
func (a *AgentConfig) Validate() error {
	u, err := url.Parse(a.URL)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", a.URL, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("url scheme must be ws or wss, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("url must include a host")
	}
	if a.HandshakeTimeoutMs < 0 {
		return fmt.Errorf("handshake_timeout_ms cannot be negative, got %d", a.HandshakeTimeoutMs)
	}
	return nil
}

// HandshakeTimeout returns the dial timeout
func (a AgentConfig) HandshakeTimeout() time.Duration {
	return time.Duration(a.HandshakeTimeoutMs) * time.Millisecond
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Port < 1 || h.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", h.Port)
	}
	return nil
}

// ListenAddress returns host:port for the control API
func (h HTTPConfig) ListenAddress() string {
	return fmt.Sprintf("%s:%d", h.Address, h.Port)
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.ChunkIntervalMs < 1 {
		return fmt.Errorf("chunk_interval_ms must be positive, got %d", a.ChunkIntervalMs)
	}
	if a.StopCooldownMs < 0 {
		return fmt.Errorf("stop_cooldown_ms cannot be negative, got %d", a.StopCooldownMs)
	}
	if a.PlaybackSampleRate != domain.PlaybackSampleRate {
		return fmt.Errorf("playback_sample_rate must be %d Hz, got %d", domain.PlaybackSampleRate, a.PlaybackSampleRate)
	}
	return nil
}

// ChunkInterval returns the capture timeslice
func (a AudioConfig) ChunkInterval() time.Duration {
	return time.Duration(a.ChunkIntervalMs) * time.Millisecond
}

// StopCooldown returns how long late chunks are suppressed after a stop
func (a AudioConfig) StopCooldown() time.Duration {
	return time.Duration(a.StopCooldownMs) * time.Millisecond
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("level must be one of debug, info, warn, error, got %q", l.Level)
	}
	switch strings.ToLower(l.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("format must be json or console, got %q", l.Format)
	}
	return nil
}
