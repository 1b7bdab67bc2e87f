package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/lupppig/dchunk/internal/cdc"
	"github.com/lupppig/dchunk/internal/digest"
)

type Config struct {
	Parallelism   int           `mapstructure:"parallelism"`
	AllowInsecure bool          `mapstructure:"allow_insecure"`
	LogJSON       bool          `mapstructure:"log_json"`
	NoColor       bool          `mapstructure:"no_color"`
	Compression   string        `mapstructure:"compression"`
	Encrypt       bool          `mapstructure:"encrypt"`
	KeyFile       string        `mapstructure:"encryption_key_file"`
	Chunking      Chunking      `mapstructure:"chunking"`
	Targets       []string      `mapstructure:"targets"`
	Jobs          []JobConfig   `mapstructure:"jobs"`
	Notifications Notifications `mapstructure:"notifications"`
}

type Notifications struct {
	Slack    SlackConfig     `mapstructure:"slack"`
	Webhooks []WebhookConfig `mapstructure:"webhooks"`
}

type SlackConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
	Template   string `mapstructure:"template"`
}

type WebhookConfig struct {
	URL      string            `mapstructure:"url"`
	Method   string            `mapstructure:"method"`
	Template string            `mapstructure:"template"`
	Headers  map[string]string `mapstructure:"headers"`
}

// Chunking mirrors cdc.Config plus the stream settings.
type Chunking struct {
	Average    int    `mapstructure:"average"`
	Minimum    int    `mapstructure:"minimum"`
	Maximum    int    `mapstructure:"maximum"`
	Digest     string `mapstructure:"digest"`
	BufferSize int    `mapstructure:"buffer_size"`
}

// JobConfig describes one source to chunk when no files are given on the
// command line.
type JobConfig struct {
	ID          string `mapstructure:"id"`
	Source      string `mapstructure:"source"`
	To          string `mapstructure:"to"`
	Name        string `mapstructure:"name"`
	Compression string `mapstructure:"compression"`
	DryRun      bool   `mapstructure:"dry_run"`
	Encrypt     bool   `mapstructure:"encrypt"`

	// Scheduled jobs store each run as <name>-<timestamp> and prune the
	// older runs with Keep and Retention.
	Schedule   string `mapstructure:"schedule"` // cron spec, @every, or a bare duration
	Retries    int    `mapstructure:"retries"`
	RetryDelay string `mapstructure:"retry_delay"`
	Keep       int    `mapstructure:"keep"`
	Retention  string `mapstructure:"retention"`
}

func (c Chunking) Config() cdc.Config {
	return cdc.Config{Average: c.Average, Minimum: c.Minimum, Maximum: c.Maximum}
}

func (c Chunking) Algorithm() (digest.Algorithm, error) {
	return digest.Parse(c.Digest)
}

// FitBuffer grows a stream buffer that cannot hold a maximum-size chunk to
// maximum plus the default buffer size.
func (c Chunking) FitBuffer() Chunking {
	if c.BufferSize <= c.Maximum {
		c.BufferSize = c.Maximum + cdc.DefaultBufferSize
	}
	return c
}

// Validate checks the chunk sizes and the digest name.
func (c Chunking) Validate() error {
	if err := c.Config().Validate(); err != nil {
		return err
	}
	if c.BufferSize != 0 && c.BufferSize <= c.Maximum {
		return fmt.Errorf("chunking.buffer_size (%d) must be larger than chunking.maximum (%d)", c.BufferSize, c.Maximum)
	}
	_, err := c.Algorithm()
	return err
}

var (
	mu           sync.RWMutex
	globalConfig *Config
)

func Initialize(configPath string) error {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("dchunk")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".dchunk"))
		}
	}

	v.SetEnvPrefix("DCHUNK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return err
	}
	store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		if cfg, err := decode(v); err == nil {
			store(cfg)
		}
	})

	return nil
}

func setDefaults(v *viper.Viper) {
	def := cdc.DefaultConfig()
	v.SetDefault("parallelism", 4)
	v.SetDefault("allow_insecure", false)
	v.SetDefault("compression", "none")
	v.SetDefault("encrypt", false)
	v.SetDefault("encryption_key_file", "")
	v.SetDefault("chunking.average", def.Average)
	v.SetDefault("chunking.minimum", def.Minimum)
	v.SetDefault("chunking.maximum", def.Maximum)
	v.SetDefault("chunking.digest", string(digest.Default))
	v.SetDefault("chunking.buffer_size", cdc.DefaultBufferSize)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func store(cfg *Config) {
	mu.Lock()
	globalConfig = cfg
	mu.Unlock()
}

func GetConfig() *Config {
	mu.RLock()
	defer mu.RUnlock()
	if globalConfig == nil {
		return Defaults()
	}
	return globalConfig
}

// Defaults is the configuration used before Initialize runs.
func Defaults() *Config {
	def := cdc.DefaultConfig()
	return &Config{
		Parallelism: 4,
		Compression: "none",
		Chunking: Chunking{
			Average:    def.Average,
			Minimum:    def.Minimum,
			Maximum:    def.Maximum,
			Digest:     string(digest.Default),
			BufferSize: cdc.DefaultBufferSize,
		},
	}
}
