package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Backend   BackendConfig   `mapstructure:"backend"`
	Provider  ProviderConfig  `mapstructure:"provider"`
	Session   SessionConfig   `mapstructure:"session"`
	Reconnect ReconnectConfig `mapstructure:"reconnect"`
	Viewer    ViewerConfig    `mapstructure:"viewer"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig is the loopback API the local renderer talks to.
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxHeaderBytes int           `mapstructure:"max_header_bytes"`
	Metrics        bool          `mapstructure:"metrics"`
}

// BackendConfig addresses the Kitsune chat and notebook service.
type BackendConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	ChatPath      string        `mapstructure:"chat_path"`
	WatchPath     string        `mapstructure:"watch_path"`
	ViewerPath    string        `mapstructure:"viewer_path"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RetryCount    int           `mapstructure:"retry_count"`
	RetryWaitMin  time.Duration `mapstructure:"retry_wait_min"`
	RetryWaitMax  time.Duration `mapstructure:"retry_wait_max"`
	SessionHeader string        `mapstructure:"session_header"`
	// RequestsPerSecond caps outbound requests; zero means unlimited.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// ProviderConfig selects who answers chat exchanges. "kitsune" streams from
// the backend; the other providers talk to a model directly.
type ProviderConfig struct {
	Type         string       `mapstructure:"type"`
	SystemPrompt string       `mapstructure:"system_prompt"`
	OpenAI       OpenAIConfig `mapstructure:"openai"`
	Doubao       DoubaoConfig `mapstructure:"doubao"`
	Qwen         QwenConfig   `mapstructure:"qwen"`
}

type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

type DoubaoConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type QwenConfig struct {
	APIKey       string        `mapstructure:"api_key"`
	BaseURL      string        `mapstructure:"base_url"`
	Model        string        `mapstructure:"model"`
	MaxTokens    int           `mapstructure:"max_tokens"`
	Temperature  float32       `mapstructure:"temperature"`
	TopP         float32       `mapstructure:"top_p"`
	Timeout      time.Duration `mapstructure:"timeout"`
	DebugRequest bool          `mapstructure:"debug_request"`
}

type SessionConfig struct {
	Store   string `mapstructure:"store"`
	DataDir string `mapstructure:"data_dir"`
	Key     string `mapstructure:"key"`
}

type ReconnectConfig struct {
	MinWait time.Duration `mapstructure:"min_wait"`
	MaxWait time.Duration `mapstructure:"max_wait"`
}

type ViewerConfig struct {
	FileSuffix string `mapstructure:"file_suffix"`
	Welcome    string `mapstructure:"welcome"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

const (
	ProviderKitsune = "kitsune"
	ProviderOpenAI  = "openai"
	ProviderDoubao  = "ark"
	ProviderQwen    = "qwen"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8020)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 0)
	v.SetDefault("server.max_header_bytes", 1<<20)
	v.SetDefault("server.metrics", true)

	v.SetDefault("backend.base_url", "http://localhost:8010")
	v.SetDefault("backend.chat_path", "/chat")
	v.SetDefault("backend.watch_path", "/notebooks/watch")
	v.SetDefault("backend.viewer_path", "/notebooks/{session}")
	v.SetDefault("backend.timeout", 30*time.Second)
	v.SetDefault("backend.retry_count", 3)
	v.SetDefault("backend.retry_wait_min", time.Second)
	v.SetDefault("backend.retry_wait_max", 10*time.Second)
	v.SetDefault("backend.session_header", "x-session-id")
	v.SetDefault("backend.requests_per_second", 10)

	v.SetDefault("provider.type", ProviderKitsune)
	v.SetDefault("provider.system_prompt", "You are Kitsune, an assistant for data analysis in marimo notebooks.")
	v.SetDefault("provider.openai.api_key", "")
	v.SetDefault("provider.openai.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("provider.openai.model", "gpt-4o-mini")
	v.SetDefault("provider.doubao.api_key", "")
	v.SetDefault("provider.doubao.base_url", "")
	v.SetDefault("provider.doubao.model", "")
	v.SetDefault("provider.doubao.timeout", 2*time.Minute)
	v.SetDefault("provider.qwen.api_key", "")
	v.SetDefault("provider.qwen.base_url", "https://dashscope.aliyuncs.com/compatible-mode/v1")
	v.SetDefault("provider.qwen.model", "qwen-plus")
	v.SetDefault("provider.qwen.max_tokens", 4096)
	v.SetDefault("provider.qwen.temperature", 0.7)
	v.SetDefault("provider.qwen.top_p", 0.9)
	v.SetDefault("provider.qwen.timeout", 2*time.Minute)
	v.SetDefault("provider.qwen.debug_request", false)

	v.SetDefault("session.store", "disk")
	v.SetDefault("session.data_dir", defaultDataDir())
	v.SetDefault("session.key", "kitsune-session-id")

	v.SetDefault("reconnect.min_wait", 500*time.Millisecond)
	v.SetDefault("reconnect.max_wait", 30*time.Second)

	v.SetDefault("viewer.file_suffix", ".py")
	v.SetDefault("viewer.welcome", "Welcome")

	v.SetDefault("cors.allowed_origins", []string{"http://localhost:5173"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Origin", "Content-Type", "Accept"})
	v.SetDefault("cors.exposed_headers", []string{})
	v.SetDefault("cors.allow_credentials", false)
	v.SetDefault("cors.max_age", 600)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir + string(os.PathSeparator) + "kitsune"
	}
	return "./data"
}

// Load reads the YAML file at configPath (optional; a missing file means
// defaults) and overlays KITSUNE_* environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("KITSUNE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", configPath, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// the config file wins; the providers' conventional variables fill gaps
	if cfg.Provider.OpenAI.APIKey == "" {
		cfg.Provider.OpenAI.APIKey = firstEnv("OPENAI_API_KEY", "OPENROUTER_API_KEY")
	}
	if cfg.Provider.Doubao.APIKey == "" {
		cfg.Provider.Doubao.APIKey = firstEnv("ARK_API_KEY", "DOUBAO_API_KEY")
	}
	if cfg.Provider.Qwen.APIKey == "" {
		cfg.Provider.Qwen.APIKey = firstEnv("DASHSCOPE_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return ""
}

func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return errors.New("backend.base_url is required")
	}
	switch c.Provider.Type {
	case ProviderKitsune, ProviderOpenAI, ProviderDoubao, ProviderQwen:
	default:
		return fmt.Errorf("unsupported provider type %q", c.Provider.Type)
	}
	switch c.Session.Store {
	case "memory", "disk":
	default:
		return fmt.Errorf("unsupported session store %q", c.Session.Store)
	}
	if c.Reconnect.MinWait <= 0 || c.Reconnect.MaxWait < c.Reconnect.MinWait {
		return fmt.Errorf("invalid reconnect window %s..%s", c.Reconnect.MinWait, c.Reconnect.MaxWait)
	}
	return nil
}

// Addr is the loopback listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
