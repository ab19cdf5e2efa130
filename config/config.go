package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Sample rates probed, in order, when a device reports no default rate.
var ProbeSampleRates = []int{16000, 44100, 48000, 22050, 11025, 8000}

const FallbackSampleRate = 16000

// apiKeyRegex matches service keys: "sk-" followed by 32 alphanumerics.
var apiKeyRegex = regexp.MustCompile(`sk-[a-zA-Z0-9]{32}`)

var keyFileExts = []string{".txt", ".key"}

type Config struct {
	// Audio. SampleRate may be adjusted once during device negotiation,
	// before capture starts; immutable afterwards.
	SampleRate  int `yaml:"sample_rate"`
	Channels    int `yaml:"channels"`
	BlockSizeMs int `yaml:"block_size_ms"`

	// PreferredDevice selects the input device by name substring,
	// overriding the loopback/default preference. Set by -setup.
	PreferredDevice string `yaml:"preferred_device"`

	// SaveAudio keeps a FLAC copy of each session in the result dir.
	SaveAudio bool `yaml:"save_audio"`

	// Languages.
	SourceLang string `yaml:"source_lang"`
	TargetLang string `yaml:"target_lang"`

	// Recognizer service.
	APIKey   string `yaml:"api_key"`
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`

	// Pipeline tuning.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	SettleThreshold   int           `yaml:"settle_threshold"`

	// Startup connectivity gate.
	NetworkCheckTimeout    time.Duration `yaml:"network_check_timeout"`
	ConnectionCheckRetries int           `yaml:"connection_check_retries"`
	ConnectionCheckDelay   time.Duration `yaml:"connection_check_delay"`

	// Capture retry budget.
	CaptureRetries    int           `yaml:"capture_retries"`
	CaptureRetryDelay time.Duration `yaml:"capture_retry_delay"`

	// Results.
	ResultDir    string `yaml:"result_dir"`
	OutputFormat string `yaml:"output_format"` // "parallel" or "separate"
}

func Default() *Config {
	return &Config{
		SampleRate:             48000,
		Channels:               2,
		BlockSizeMs:            100,
		SourceLang:             "en",
		TargetLang:             "zh",
		Endpoint:               "wss://dashscope.aliyuncs.com/api-ws/v1/inference",
		Model:                  "gummy-realtime-v1",
		HeartbeatInterval:      5 * time.Second,
		SettleThreshold:        2,
		NetworkCheckTimeout:    10 * time.Second,
		ConnectionCheckRetries: 3,
		ConnectionCheckDelay:   2 * time.Second,
		CaptureRetries:         5,
		CaptureRetryDelay:      2 * time.Second,
		ResultDir:              "result",
		OutputFormat:           "parallel",
	}
}

// BlockSize returns the capture block size in frames.
func (c *Config) BlockSize() int {
	return c.SampleRate * c.BlockSizeMs / 1000
}

// configYAML is the on-disk shape: durations are "10s"-style strings.
type configYAML struct {
	SampleRate      int    `yaml:"sample_rate"`
	Channels        int    `yaml:"channels"`
	BlockSizeMs     int    `yaml:"block_size_ms"`
	PreferredDevice string `yaml:"preferred_device,omitempty"`
	SaveAudio       bool   `yaml:"save_audio"`

	SourceLang string `yaml:"source_lang"`
	TargetLang string `yaml:"target_lang"`

	APIKey   string `yaml:"api_key,omitempty"`
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`

	HeartbeatInterval string `yaml:"heartbeat_interval"`
	SettleThreshold   int    `yaml:"settle_threshold"`

	NetworkCheckTimeout    string `yaml:"network_check_timeout"`
	ConnectionCheckRetries int    `yaml:"connection_check_retries"`
	ConnectionCheckDelay   string `yaml:"connection_check_delay"`

	CaptureRetries    int    `yaml:"capture_retries"`
	CaptureRetryDelay string `yaml:"capture_retry_delay"`

	ResultDir    string `yaml:"result_dir"`
	OutputFormat string `yaml:"output_format"`
}

func (c *Config) toYAML() configYAML {
	return configYAML{
		SampleRate:             c.SampleRate,
		Channels:               c.Channels,
		BlockSizeMs:            c.BlockSizeMs,
		PreferredDevice:        c.PreferredDevice,
		SaveAudio:              c.SaveAudio,
		SourceLang:             c.SourceLang,
		TargetLang:             c.TargetLang,
		APIKey:                 c.APIKey,
		Endpoint:               c.Endpoint,
		Model:                  c.Model,
		HeartbeatInterval:      c.HeartbeatInterval.String(),
		SettleThreshold:        c.SettleThreshold,
		NetworkCheckTimeout:    c.NetworkCheckTimeout.String(),
		ConnectionCheckRetries: c.ConnectionCheckRetries,
		ConnectionCheckDelay:   c.ConnectionCheckDelay.String(),
		CaptureRetries:         c.CaptureRetries,
		CaptureRetryDelay:      c.CaptureRetryDelay.String(),
		ResultDir:              c.ResultDir,
		OutputFormat:           c.OutputFormat,
	}
}

func (c *Config) fromYAML(raw configYAML) error {
	c.SampleRate = raw.SampleRate
	c.Channels = raw.Channels
	c.BlockSizeMs = raw.BlockSizeMs
	c.PreferredDevice = raw.PreferredDevice
	c.SaveAudio = raw.SaveAudio
	c.SourceLang = raw.SourceLang
	c.TargetLang = raw.TargetLang
	c.APIKey = raw.APIKey
	c.Endpoint = raw.Endpoint
	c.Model = raw.Model
	c.SettleThreshold = raw.SettleThreshold
	c.ConnectionCheckRetries = raw.ConnectionCheckRetries
	c.CaptureRetries = raw.CaptureRetries
	c.ResultDir = raw.ResultDir
	c.OutputFormat = raw.OutputFormat

	for _, d := range []struct {
		s   string
		dst *time.Duration
	}{
		{raw.HeartbeatInterval, &c.HeartbeatInterval},
		{raw.NetworkCheckTimeout, &c.NetworkCheckTimeout},
		{raw.ConnectionCheckDelay, &c.ConnectionCheckDelay},
		{raw.CaptureRetryDelay, &c.CaptureRetryDelay},
	} {
		if d.s == "" {
			continue
		}
		v, err := time.ParseDuration(d.s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", d.s, err)
		}
		*d.dst = v
	}
	return nil
}

// UnmarshalYAML keeps the current values as defaults for omitted keys.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	raw := c.toYAML()
	if err := value.Decode(&raw); err != nil {
		return err
	}
	return c.fromYAML(raw)
}

func (c *Config) MarshalYAML() (any, error) {
	return c.toYAML(), nil
}

// Save writes the config to path as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Load builds a Config from defaults, an optional YAML file, the
// environment (including a .env file if present), and finally key-file
// discovery for the API key.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	// .env is optional; ignore a missing file.
	godotenv.Load()

	if key := os.Getenv("LIVESUB_API_KEY"); key != "" {
		cfg.APIKey = key
	} else if key := os.Getenv("DASHSCOPE_API_KEY"); key != "" {
		cfg.APIKey = key
	}

	if cfg.APIKey == "" {
		if wd, err := os.Getwd(); err == nil {
			cfg.APIKey = DiscoverAPIKey(wd)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels != 1 && c.Channels != 2 {
		return fmt.Errorf("channels must be 1 or 2, got %d", c.Channels)
	}
	if c.BlockSizeMs <= 0 {
		return fmt.Errorf("block_size_ms must be positive, got %d", c.BlockSizeMs)
	}
	if c.SettleThreshold < 0 {
		return fmt.Errorf("settle_threshold must not be negative, got %d", c.SettleThreshold)
	}
	switch c.OutputFormat {
	case "parallel", "separate":
	default:
		return fmt.Errorf("output_format must be \"parallel\" or \"separate\", got %q", c.OutputFormat)
	}
	return nil
}

// DiscoverAPIKey scans dir and its direct subdirectories for text files
// containing a service key. Returns the first match, or "".
func DiscoverAPIKey(dir string) string {
	var found string
	root := filepath.Clean(dir)
	filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || found != "" {
			return filepath.SkipAll
		}
		if info.IsDir() {
			// Current dir and direct subdirectories only.
			rel, relErr := filepath.Rel(root, path)
			if relErr == nil && strings.Count(rel, string(os.PathSeparator)) > 0 {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		ok := false
		for _, e := range keyFileExts {
			if ext == e {
				ok = true
				break
			}
		}
		if !ok {
			return nil
		}
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil
		}
		if m := apiKeyRegex.Find(data); m != nil {
			found = string(m)
			return filepath.SkipAll
		}
		return nil
	})
	return found
}
