package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Model     ModelConfig
	Catalog   CatalogConfig
	Storage   StorageConfig
	Detection DetectionConfig
	Annotate  AnnotateConfig
	Cache     CacheConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	MaxUploadMB    int      `mapstructure:"max_upload_mb"`
}

// ModelConfig holds the detection service connection settings
type ModelConfig struct {
	InferenceURL      string        `mapstructure:"inference_url"`
	APIKey            string        `mapstructure:"api_key"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
}

// CatalogConfig holds the locations of the species and recipe data
type CatalogConfig struct {
	SpeciesPath string `mapstructure:"species_path"`
	RecipesPath string `mapstructure:"recipes_path"`
}

// StorageConfig holds upload and annotated-output directories
type StorageConfig struct {
	UploadDir   string `mapstructure:"upload_dir"`
	DownloadDir string `mapstructure:"download_dir"`
}

// DetectionConfig holds detection defaults
type DetectionConfig struct {
	Confidence float64 `mapstructure:"confidence"`
}

// AnnotateConfig holds the bounding box stroke style
type AnnotateConfig struct {
	StrokeColor string `mapstructure:"stroke_color"`
	StrokeWidth int    `mapstructure:"stroke_width"`
	Workers     int    `mapstructure:"workers"`
}

// CacheConfig holds result-store configuration
type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// Load loads configuration from a .env file, environment variables and config files
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/wildin/")

	// Environment variable settings
	v.SetEnvPrefix("WILDIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile loads ./.env if present. Variables already set in the environment win.
func loadEnvFile() error {
	if _, err := os.Stat(".env"); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return gotenv.Load(".env")
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.max_upload_mb", 20)

	// Model defaults
	v.SetDefault("model.inference_url", "http://localhost:5000/predict")
	v.SetDefault("model.api_key", "")
	v.SetDefault("model.timeout", "30s")
	v.SetDefault("model.max_retries", 3)
	v.SetDefault("model.requests_per_second", 2.0)
	v.SetDefault("model.burst", 4)

	// Catalog defaults
	v.SetDefault("catalog.species_path", "./model/info.json")
	v.SetDefault("catalog.recipes_path", "./model/recipes.json")

	// Storage defaults
	v.SetDefault("storage.upload_dir", "./data/uploads")
	v.SetDefault("storage.download_dir", "./data/downloads")

	// Detection defaults
	v.SetDefault("detection.confidence", 0.5)

	// Annotation defaults
	v.SetDefault("annotate.stroke_color", "#ff0000")
	v.SetDefault("annotate.stroke_width", 2)
	v.SetDefault("annotate.workers", 4)

	// Cache defaults
	v.SetDefault("cache.ttl", "1h")
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Model.InferenceURL == "" {
		return fmt.Errorf("inference URL is required (set WILDIN_MODEL_INFERENCE_URL)")
	}

	if config.Detection.Confidence < 0 || config.Detection.Confidence > 1 {
		return fmt.Errorf("detection confidence must be within [0,1], got: %v", config.Detection.Confidence)
	}

	if config.Annotate.StrokeWidth < 1 {
		return fmt.Errorf("annotate stroke width must be at least 1, got: %d", config.Annotate.StrokeWidth)
	}

	if _, err := colorful.Hex(config.Annotate.StrokeColor); err != nil {
		return fmt.Errorf("annotate stroke color must be a hex colour like #ff0000, got: %q", config.Annotate.StrokeColor)
	}

	if config.Annotate.Workers < 1 {
		return fmt.Errorf("annotate workers must be at least 1, got: %d", config.Annotate.Workers)
	}

	if config.Catalog.SpeciesPath == "" || config.Catalog.RecipesPath == "" {
		return fmt.Errorf("catalog species_path and recipes_path are required")
	}

	return nil
}
