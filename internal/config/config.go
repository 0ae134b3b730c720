// internal/config/config.go
package config

import (
	"errors"
	"io/fs"
	"os"
	"runtime"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LogConfig selects the zap encoder and level
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "console"
}

// AgentConfig for the host agent
type AgentConfig struct {
	LogPath       string        `yaml:"log_path"`
	Source        string        `yaml:"source"`
	CollectorURL  string        `yaml:"collector_url"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	StateFile     string        `yaml:"state_file"`
	MaxLines      int           `yaml:"max_lines"`
	Hostname      string        `yaml:"hostname"`
	TLSSkipVerify bool          `yaml:"tls_skip_verify"`
	Log           LogConfig     `yaml:"log"`
	APIKey        string        `yaml:"-"` // from env only
}

// LLMEndpoint represents one LLM provider in the fallback chain
type LLMEndpoint struct {
	URL       string `yaml:"url"`
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env"` // env var name for API key
	APIKey    string `yaml:"-"`           // resolved at load time
}

// KafkaConfig enables alert publishing when brokers are set
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// CollectorConfig for the central collector
type CollectorConfig struct {
	ListenAddr      string        `yaml:"listen_addr"`
	DBPath          string        `yaml:"db_path"`
	MaxPayloadBytes int64         `yaml:"max_payload_bytes"`
	TLSCert         string        `yaml:"tls_cert"`
	TLSKey          string        `yaml:"tls_key"`
	LLMEndpoints    []LLMEndpoint `yaml:"llm_endpoints"` // fallback chain
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	Workers         int           `yaml:"workers"`
	RedisURL        string        `yaml:"redis_url"`
	IntelCacheTTL   time.Duration `yaml:"intel_cache_ttl"`
	Kafka           KafkaConfig   `yaml:"kafka"`
	Log             LogConfig     `yaml:"log"`
	APIKey          string        `yaml:"-"` // agent auth, from env
}

const (
	DefaultListenAddr      = ":9311"
	DefaultDBPath          = "threatscope.db"
	DefaultMaxPayloadBytes = 10 << 20
	DefaultIntelCacheTTL   = time.Hour
	DefaultKafkaTopic      = "threatscope.alerts"
	DefaultPollInterval    = time.Minute
	DefaultMaxLines        = 5000
)

// loadDotEnv reads .env from the working directory if there is one.
// Variables already set in the environment win.
func loadDotEnv() error {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// LoadAgentConfig loads agent config from YAML file with env overrides
func LoadAgentConfig(path string) (*AgentConfig, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg AgentConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Env overrides
	if key := os.Getenv("THREATSCOPE_API_KEY"); key != "" {
		cfg.APIKey = key
	}
	if hostname := os.Getenv("THREATSCOPE_HOSTNAME"); hostname != "" {
		cfg.Hostname = hostname
	}
	if level := os.Getenv("THREATSCOPE_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}

	if cfg.Hostname == "" {
		cfg.Hostname, _ = os.Hostname()
	}
	if cfg.Source == "" {
		cfg.Source = cfg.LogPath
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MaxLines <= 0 {
		cfg.MaxLines = DefaultMaxLines
	}

	return &cfg, nil
}

// LoadCollectorConfig loads collector config from YAML file with env overrides
func LoadCollectorConfig(path string) (*CollectorConfig, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg CollectorConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Env overrides
	if key := os.Getenv("THREATSCOPE_API_KEY"); key != "" {
		cfg.APIKey = key
	}
	if p := os.Getenv("THREATSCOPE_DB_PATH"); p != "" {
		cfg.DBPath = p
	}
	if addr := os.Getenv("THREATSCOPE_LISTEN_ADDR"); addr != "" {
		cfg.ListenAddr = addr
	}
	if url := os.Getenv("THREATSCOPE_REDIS_URL"); url != "" {
		cfg.RedisURL = url
	}
	if level := os.Getenv("THREATSCOPE_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}

	// Resolve API keys for each LLM endpoint from env vars
	for i := range cfg.LLMEndpoints {
		if cfg.LLMEndpoints[i].APIKeyEnv != "" {
			cfg.LLMEndpoints[i].APIKey = os.Getenv(cfg.LLMEndpoints[i].APIKeyEnv)
		}
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *CollectorConfig) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.DBPath == "" {
		c.DBPath = DefaultDBPath
	}
	if c.MaxPayloadBytes <= 0 {
		c.MaxPayloadBytes = DefaultMaxPayloadBytes
	}
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if c.IntelCacheTTL <= 0 {
		c.IntelCacheTTL = DefaultIntelCacheTTL
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = DefaultKafkaTopic
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
}
