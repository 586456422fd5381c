package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/correlate-cli/internal/utils"
)

// Global configuration structure.
type Global struct {
	APIKey          string  `mapstructure:"api_key" yaml:"api_key"`
	DefaultModel    string  `mapstructure:"default_model" yaml:"default_model"`
	DefaultProvider string  `mapstructure:"default_provider" yaml:"default_provider"`
	MaxTokens       int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature     float64 `mapstructure:"temperature" yaml:"temperature"`

	// Analysis
	MinPoints int  `mapstructure:"min_points" yaml:"min_points"`
	Offline   bool `mapstructure:"offline" yaml:"offline"`

	// HTTP/Retry configuration
	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`

	// Local runtimes (Ollama)
	OllamaHost       string `mapstructure:"ollama_host" yaml:"ollama_host"`
	OllamaTimeoutSec int    `mapstructure:"ollama_timeout_sec" yaml:"ollama_timeout_sec"`

	// HTTP API
	ListenAddr  string `mapstructure:"listen_addr" yaml:"listen_addr"`
	MaxUploadMB int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`
}

const dirName = ".correlate"

var defaults = map[string]any{
	"default_model":       "openai/gpt-4o-mini",
	"default_provider":    "openrouter",
	"max_tokens":          1024,
	"temperature":         0.2,
	"min_points":          3,
	"offline":             false,
	"http_timeout_sec":    60,
	"retry_max_attempts":  3,
	"retry_base_delay_ms": 500,
	"retry_max_delay_ms":  4000,
	"ollama_host":         "http://127.0.0.1:11434",
	"ollama_timeout_sec":  60,
	"listen_addr":         ":8080",
	"max_upload_mb":       32,
}

// Default returns the built-in configuration.
func Default() *Global {
	c, err := decode(newViper())
	if err != nil {
		panic(err)
	}
	return c
}

// DefaultPath is ~/.correlate/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, dirName, "config.yaml"), nil
}

// Save writes c to cfgFile, or to DefaultPath when cfgFile is empty,
// creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := utils.SafeWriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("CORRELATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// conventional provider variables
	_ = v.BindEnv("api_key", "CORRELATE_API_KEY", "OPENROUTER_API_KEY")
	_ = v.BindEnv("ollama_host", "CORRELATE_OLLAMA_HOST", "OLLAMA_HOST")
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	return v
}

func decode(v *viper.Viper) (*Global, error) {
	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults. A missing file is not an error.
func Load(cfgFile string) (*Global, error) {
	v := newViper()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		path, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(filepath.Dir(path))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return decode(v)
}

// Keys lists the settable keys in display order.
func Keys() []string {
	return []string{
		"api_key", "default_model", "default_provider", "max_tokens", "temperature",
		"min_points", "offline",
		"http_timeout_sec", "retry_max_attempts", "retry_base_delay_ms", "retry_max_delay_ms",
		"ollama_host", "ollama_timeout_sec",
		"listen_addr", "max_upload_mb",
	}
}

// Get returns the display value of key. The API key is masked.
func (c *Global) Get(key string) (string, error) {
	switch key {
	case "api_key":
		return Mask(c.APIKey), nil
	case "default_model":
		return c.DefaultModel, nil
	case "default_provider":
		return c.DefaultProvider, nil
	case "max_tokens":
		return strconv.Itoa(c.MaxTokens), nil
	case "temperature":
		return strconv.FormatFloat(c.Temperature, 'f', 3, 64), nil
	case "min_points":
		return strconv.Itoa(c.MinPoints), nil
	case "offline":
		return strconv.FormatBool(c.Offline), nil
	case "http_timeout_sec":
		return strconv.Itoa(c.HTTPTimeoutSec), nil
	case "retry_max_attempts":
		return strconv.Itoa(c.RetryMaxAttempts), nil
	case "retry_base_delay_ms":
		return strconv.Itoa(c.RetryBaseDelayMs), nil
	case "retry_max_delay_ms":
		return strconv.Itoa(c.RetryMaxDelayMs), nil
	case "ollama_host":
		return c.OllamaHost, nil
	case "ollama_timeout_sec":
		return strconv.Itoa(c.OllamaTimeoutSec), nil
	case "listen_addr":
		return c.ListenAddr, nil
	case "max_upload_mb":
		return strconv.Itoa(c.MaxUploadMB), nil
	}
	return "", fmt.Errorf("unknown key: %s", key)
}

// Set parses val for key and stores it.
func (c *Global) Set(key, val string) error {
	switch key {
	case "api_key":
		c.APIKey = val
	case "default_model":
		c.DefaultModel = val
	case "default_provider":
		switch strings.ToLower(val) {
		case "openrouter":
			c.DefaultProvider = "openrouter"
		case "ollama", "local":
			c.DefaultProvider = "ollama"
		case "offline":
			c.DefaultProvider = "offline"
		default:
			return fmt.Errorf("invalid default_provider: %s (use openrouter, ollama or offline)", val)
		}
	case "temperature":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil || f < 0 {
			return fmt.Errorf("invalid float for temperature: %v", val)
		}
		c.Temperature = f
	case "offline":
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("invalid bool for offline: %w", err)
		}
		c.Offline = b
	case "ollama_host":
		c.OllamaHost = val
	case "listen_addr":
		c.ListenAddr = val
	default:
		dst := c.intField(key)
		if dst == nil {
			return fmt.Errorf("unknown key: %s", key)
		}
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return fmt.Errorf("invalid int for %s: %v", key, val)
		}
		if key == "min_points" && i < 2 {
			return fmt.Errorf("min_points must be at least 2")
		}
		*dst = i
	}
	return nil
}

func (c *Global) intField(key string) *int {
	switch key {
	case "max_tokens":
		return &c.MaxTokens
	case "min_points":
		return &c.MinPoints
	case "http_timeout_sec":
		return &c.HTTPTimeoutSec
	case "retry_max_attempts":
		return &c.RetryMaxAttempts
	case "retry_base_delay_ms":
		return &c.RetryBaseDelayMs
	case "retry_max_delay_ms":
		return &c.RetryMaxDelayMs
	case "ollama_timeout_sec":
		return &c.OllamaTimeoutSec
	case "max_upload_mb":
		return &c.MaxUploadMB
	}
	return nil
}

// Mask hides all but the ends of a secret.
func Mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}
