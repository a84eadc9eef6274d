package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the entire configuration for the Reelforge server.
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Storage   StorageConfig   `yaml:"storage" mapstructure:"storage"`
	Providers ProvidersConfig `yaml:"providers" mapstructure:"providers"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Billing   BillingConfig   `yaml:"billing" mapstructure:"billing"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Port           int           `yaml:"port" mapstructure:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
	Mode           string        `yaml:"mode" mapstructure:"mode"`
}

// StorageConfig selects and configures the persistence backend. Only the
// local sqlite mode ships today; Mode is kept so a hosted backend can slot in
// without a config migration.
type StorageConfig struct {
	Mode  string             `yaml:"mode" mapstructure:"mode"`
	Local LocalStorageConfig `yaml:"local" mapstructure:"local"`
}

// LocalStorageConfig configures the sqlite-backed local store.
type LocalStorageConfig struct {
	DatabasePath string `yaml:"database_path" mapstructure:"database_path"`
}

// ProvidersConfig holds the base endpoints for the external collaborators.
// Each provider is a JSON-over-HTTP contract; clients are built once at
// startup and injected by reference.
type ProvidersConfig struct {
	Segmentation ProviderEndpoint `yaml:"segmentation" mapstructure:"segmentation"`
	ShotPlanner  ProviderEndpoint `yaml:"shot_planner" mapstructure:"shot_planner"`
	ImageGen     ProviderEndpoint `yaml:"image_gen" mapstructure:"image_gen"`
	Analyzer     ProviderEndpoint `yaml:"analyzer" mapstructure:"analyzer"`
	Training     ProviderEndpoint `yaml:"training" mapstructure:"training"`
}

// ProviderEndpoint is one collaborator's connection settings.
type ProviderEndpoint struct {
	BaseURL string        `yaml:"base_url" mapstructure:"base_url"`
	APIKey  string        `yaml:"api_key" mapstructure:"api_key"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// PipelineConfig tunes the decomposition pipeline.
type PipelineConfig struct {
	BatchConcurrency     int    `yaml:"batch_concurrency" mapstructure:"batch_concurrency"`
	DefaultModel         string `yaml:"default_model" mapstructure:"default_model"`
	DefaultQualityTier   string `yaml:"default_quality_tier" mapstructure:"default_quality_tier"`
	ConsistencyThreshold int    `yaml:"consistency_threshold" mapstructure:"consistency_threshold"`
}

// BillingConfig carries the fixed cost estimates charged per billable action.
type BillingConfig struct {
	ShotPlanCost float64 `yaml:"shot_plan_cost" mapstructure:"shot_plan_cost"`
	ImageGenCost float64 `yaml:"image_gen_cost" mapstructure:"image_gen_cost"`
	TrainingCost float64 `yaml:"training_cost" mapstructure:"training_cost"`
}

// DefaultConfigPath is the default path for the reelforge configuration file.
const DefaultConfigPath = "reelforge.yaml"

// LoadConfig reads the configuration from the given path or default paths and
// applies defaults for anything unset.
func LoadConfig(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = DefaultConfigPath
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		altPath := filepath.Join("config", "reelforge.yaml")
		if _, err2 := os.Stat(altPath); err2 == nil {
			configPath = altPath
		} else {
			return nil, fmt.Errorf("configuration file not found at %s or default locations: %w", configPath, err)
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %s: %w", configPath, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %s: %w", configPath, err)
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills unset fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = 60 * time.Second
	}
	if c.Storage.Mode == "" {
		c.Storage.Mode = "local"
	}
	if c.Storage.Local.DatabasePath == "" {
		c.Storage.Local.DatabasePath = filepath.Join("data", "reelforge.db")
	}
	if c.Pipeline.BatchConcurrency == 0 {
		c.Pipeline.BatchConcurrency = 3
	}
	if c.Pipeline.DefaultModel == "" {
		c.Pipeline.DefaultModel = "sdxl-base"
	}
	if c.Pipeline.DefaultQualityTier == "" {
		c.Pipeline.DefaultQualityTier = "standard"
	}
	if c.Pipeline.ConsistencyThreshold == 0 {
		c.Pipeline.ConsistencyThreshold = 70
	}
	if c.Billing.ShotPlanCost == 0 {
		c.Billing.ShotPlanCost = 0.02
	}
	if c.Billing.ImageGenCost == 0 {
		c.Billing.ImageGenCost = 0.04
	}
	if c.Billing.TrainingCost == 0 {
		c.Billing.TrainingCost = 2.50
	}
	for _, p := range []*ProviderEndpoint{
		&c.Providers.Segmentation, &c.Providers.ShotPlanner,
		&c.Providers.ImageGen, &c.Providers.Analyzer, &c.Providers.Training,
	} {
		if p.Timeout == 0 {
			p.Timeout = 120 * time.Second
		}
	}
}
