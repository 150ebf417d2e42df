package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPort        = 3000
	DefaultGeminiModel = "gemini-2.5-pro"
	DefaultJWKSURL     = "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"
)

type Config struct {
	Server struct {
		Host         string        `yaml:"host"`
		Port         int           `yaml:"port"`
		Mode         string        `yaml:"mode"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
		TLS          struct {
			Enabled  bool   `yaml:"enabled"`
			CertFile string `yaml:"cert_file"`
			KeyFile  string `yaml:"key_file"`
		} `yaml:"tls"`
	} `yaml:"server"`

	Mongo struct {
		URI                    string        `yaml:"uri"`
		Database               string        `yaml:"database"`
		MaxPoolSize            uint64        `yaml:"max_pool_size"`
		MinPoolSize            uint64        `yaml:"min_pool_size"`
		ConnectTimeout         time.Duration `yaml:"connect_timeout"`
		ServerSelectionTimeout time.Duration `yaml:"server_selection_timeout"`
		TLSCAFile              string        `yaml:"tls_ca_file"`
	} `yaml:"mongo"`

	Firebase struct {
		CredentialsFile string `yaml:"credentials_file"`
		ProjectID       string `yaml:"project_id"`
		JWKSURL         string `yaml:"jwks_url"`
	} `yaml:"firebase"`

	Gemini struct {
		APIKey string `yaml:"api_key"`
		Model  string `yaml:"model"`
	} `yaml:"gemini"`

	Elasticsearch struct {
		URL      string `yaml:"url"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
	} `yaml:"elasticsearch"`

	Security struct {
		EncryptionKey  string  `yaml:"encryption_key"`
		RateLimitRPS   float64 `yaml:"rate_limit_rps"`
		RateLimitBurst int     `yaml:"rate_limit_burst"`
	} `yaml:"security"`
}

// Load reads the first configuration file found, then applies environment
// overrides. A missing file is not an error: every setting has an env key.
func Load() (*Config, error) {
	config := defaults()

	if err := loadFile(config, configPaths()); err != nil {
		return nil, err
	}

	applyEnv(config, viper.New())

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func defaults() *Config {
	var config Config
	config.Server.Host = "0.0.0.0"
	config.Server.Port = DefaultPort
	config.Server.Mode = "release"
	config.Server.ReadTimeout = 15 * time.Second
	config.Server.WriteTimeout = 2 * time.Minute
	config.Mongo.URI = "mongodb://localhost:27017"
	config.Mongo.Database = "clinical_notes"
	config.Mongo.MaxPoolSize = 50
	config.Mongo.MinPoolSize = 5
	config.Mongo.ConnectTimeout = 10 * time.Second
	config.Mongo.ServerSelectionTimeout = 5 * time.Second
	config.Firebase.JWKSURL = DefaultJWKSURL
	config.Gemini.Model = DefaultGeminiModel
	config.Security.RateLimitRPS = 30
	config.Security.RateLimitBurst = 60
	return &config
}

func configPaths() []string {
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		return []string{path}
	}
	return []string{
		"./configs/config.yaml",
		"../configs/config.yaml",
		"/etc/clinical-notes/config.yaml",
	}
}

func loadFile(config *Config, paths []string) error {
	for _, path := range paths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			continue
		}

		configFile, err := os.ReadFile(absPath)
		if err != nil {
			continue
		}

		if err := yaml.Unmarshal(configFile, config); err != nil {
			return fmt.Errorf("failed to parse %s: %w", absPath, err)
		}
		return nil
	}
	return nil
}

func applyEnv(config *Config, v *viper.Viper) {
	v.AutomaticEnv()

	overrideString(v, "SERVER_HOST", &config.Server.Host)
	overrideInt(v, "SERVER_PORT", &config.Server.Port)
	overrideString(v, "SERVER_MODE", &config.Server.Mode)
	overrideString(v, "MONGO_URI", &config.Mongo.URI)
	overrideString(v, "MONGO_DATABASE", &config.Mongo.Database)
	overrideString(v, "GOOGLE_APPLICATION_CREDENTIALS", &config.Firebase.CredentialsFile)
	overrideString(v, "FIREBASE_PROJECT_ID", &config.Firebase.ProjectID)
	overrideString(v, "FIREBASE_JWKS_URL", &config.Firebase.JWKSURL)
	overrideString(v, "GEMINI_API_KEY", &config.Gemini.APIKey)
	overrideString(v, "GEMINI_MODEL", &config.Gemini.Model)
	overrideString(v, "ELASTICSEARCH_URL", &config.Elasticsearch.URL)
	overrideString(v, "ELASTICSEARCH_USERNAME", &config.Elasticsearch.Username)
	overrideString(v, "ELASTICSEARCH_PASSWORD", &config.Elasticsearch.Password)
	overrideString(v, "ENCRYPTION_KEY", &config.Security.EncryptionKey)

	if v.IsSet("RATE_LIMIT_RPS") {
		config.Security.RateLimitRPS = v.GetFloat64("RATE_LIMIT_RPS")
	}
	overrideInt(v, "RATE_LIMIT_BURST", &config.Security.RateLimitBurst)
}

func overrideString(v *viper.Viper, key string, dst *string) {
	if v.IsSet(key) {
		*dst = v.GetString(key)
	}
}

func overrideInt(v *viper.Viper, key string, dst *int) {
	if v.IsSet(key) {
		*dst = v.GetInt(key)
	}
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("invalid server mode %q", c.Server.Mode)
	}
	if c.Mongo.URI == "" {
		return errors.New("mongo uri is required")
	}
	if c.Mongo.Database == "" {
		return errors.New("mongo database is required")
	}
	if c.Firebase.CredentialsFile == "" && c.Firebase.ProjectID == "" {
		return errors.New("firebase credentials file or project id is required")
	}
	if c.Security.RateLimitRPS <= 0 || c.Security.RateLimitBurst <= 0 {
		return errors.New("rate limit must be positive")
	}
	return nil
}
