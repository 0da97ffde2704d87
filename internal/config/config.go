package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config represents the application configuration
type Config struct {
	Database struct {
		URL string `koanf:"url"`
	} `koanf:"database"`

	Queue struct {
		Name              string  `koanf:"name"`
		VisibilitySeconds int     `koanf:"visibility_seconds"`
		MaxReceiveCount   int     `koanf:"max_receive_count"`
		BatchSize         int     `koanf:"batch_size"`
		ReceivesPerSecond float64 `koanf:"receives_per_second"`
	} `koanf:"queue"`

	Storage struct {
		Bucket string `koanf:"bucket"`
	} `koanf:"storage"`

	Model struct {
		Name        string  `koanf:"name"`
		APIKey      string  `koanf:"api_key"`
		Temperature float64 `koanf:"temperature"`
	} `koanf:"model"`

	API struct {
		Addr string `koanf:"addr"`
	} `koanf:"api"`

	Log struct {
		Level string `koanf:"level"`
	} `koanf:"log"`
}

// Visibility returns the queue lease duration.
func (c *Config) Visibility() time.Duration {
	return time.Duration(c.Queue.VisibilitySeconds) * time.Second
}

// LoadConfig loads the configuration from a file
func LoadConfig(configPath string) (*Config, error) {
	var k = koanf.New(".")

	// Set up default configuration
	k.Load(confmap.Provider(map[string]interface{}{
		"queue.name":                "content-review",
		"queue.visibility_seconds":  300,
		"queue.max_receive_count":   0,
		"queue.batch_size":          5,
		"queue.receives_per_second": 2.0,
		"model.name":                "gemini-2.5-flash",
		"model.temperature":         0.2,
		"api.addr":                  ":8080",
		"log.level":                 "info",
	}, "."), nil)

	// Load from TOML file if it exists
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	} else {
		defaultPaths := []string{"./contentreview.toml", "$HOME/.contentreview.toml"}
		for _, path := range defaultPaths {
			path = os.ExpandEnv(path)
			if _, err := os.Stat(path); err == nil {
				if err := k.Load(file.Provider(path), toml.Parser()); err == nil {
					break
				}
			}
		}
	}

	// Load from environment variables with prefix CONTENTREVIEW_
	k.Load(env.Provider("CONTENTREVIEW_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "CONTENTREVIEW_")
		return strings.Replace(strings.ToLower(s), "_", ".", 1)
	}), nil)

	// Unmarshal into Config struct
	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	return &config, nil
}

// InitConfig initializes a new configuration file
func InitConfig(configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists at %s", configPath)
	}

	sampleConfig := `# Content Review Configuration

[database]
url = "postgres://localhost:5432/contentreview"

[queue]
name = "content-review"
visibility_seconds = 300
max_receive_count = 0

[storage]
bucket = "content-review-uploads"

[model]
name = "gemini-2.5-flash"
api_key = "your-api-key"
temperature = 0.2

[api]
addr = ":8080"

[log]
level = "info"
`

	return os.WriteFile(configPath, []byte(sampleConfig), 0644)
}

// Validate validates the configuration
func Validate(config *Config) error {
	if config.Database.URL == "" {
		return fmt.Errorf("database url is required")
	}
	if config.Queue.Name == "" {
		return fmt.Errorf("queue name is required")
	}
	if config.Queue.VisibilitySeconds <= 0 {
		return fmt.Errorf("queue visibility must be positive")
	}
	if config.Model.Name == "" {
		return fmt.Errorf("model name is required")
	}
	if config.Model.APIKey == "" {
		return fmt.Errorf("model api_key is required")
	}
	return nil
}
