// config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Port string `yaml:"port"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // postgres, mysql or sqlite
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"` // file path for sqlite
	SSLMode  string `yaml:"sslmode"`

	// Credentials may instead come from a dbt style profiles.yml.
	ProfilePath   string `yaml:"profile_path"`
	ProfileName   string `yaml:"profile_name"`
	ProfileTarget string `yaml:"profile_target"`
}

type SurveyConfig struct {
	IndexURL            string        `yaml:"index_url"`
	IndexLabel          string        `yaml:"index_label"`
	DownloadURLTemplate string        `yaml:"download_url_template"`
	ArchiveDir          string        `yaml:"archive_dir"`
	Encoding            string        `yaml:"encoding"`
	NullValues          []string      `yaml:"null_values"`
	Since               int           `yaml:"since"`
	RequestTimeoutStr   string        `yaml:"request_timeout"`
	RequestTimeout      time.Duration `yaml:"-"` // Parsed duration
}

// DiscoveryMode decides what offline discovery does with a filename it cannot parse.
type DiscoveryMode string

const (
	DiscoveryStrict  DiscoveryMode = "strict"
	DiscoveryLenient DiscoveryMode = "lenient"
)

// ContinuationPolicy decides whether one failing dataset stops a multi-year batch.
type ContinuationPolicy string

const (
	ContinueAbort ContinuationPolicy = "abort"
	ContinueSkip  ContinuationPolicy = "skip"
)

type PipelineConfig struct {
	DiscoveryMode DiscoveryMode      `yaml:"discovery_mode"`
	OnError       ContinuationPolicy `yaml:"on_error"`
}

// Output targets.
const (
	TargetDatabase = "database"
	TargetFlatFile = "flatfile"
)

type OutputConfig struct {
	Target      string `yaml:"target"`
	FlatFileDir string `yaml:"flatfile_dir"`
	MetadataCSV string `yaml:"metadata_csv"`
}

type ChartsConfig struct {
	OutputDir         string `yaml:"output_dir"`
	DistributionField string `yaml:"distribution_field"`
	TopValues         int    `yaml:"top_values"`
}

type PublishConfig struct {
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Survey   SurveyConfig   `yaml:"survey"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Output   OutputConfig   `yaml:"output"`
	Charts   ChartsConfig   `yaml:"charts"`
	Publish  PublishConfig  `yaml:"publish"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig reads configuration from configPath (may be empty), then the
// optional .env file at envPath, then SURVEY_* environment variables.
func LoadConfig(configPath, envPath string) (*Config, error) {
	cfg := &Config{}

	if configPath != "" {
		file, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(file, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", envPath, err)
		}
	}
	cfg.applyEnv()

	if cfg.Database.ProfilePath != "" {
		profile, err := LoadProfile(cfg.Database.ProfilePath, cfg.Database.ProfileName, cfg.Database.ProfileTarget)
		if err != nil {
			return nil, err
		}
		cfg.Database.mergeProfile(profile)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	overrides := map[string]*string{
		"SURVEY_DB_DRIVER":       &c.Database.Driver,
		"SURVEY_DB_HOST":         &c.Database.Host,
		"SURVEY_DB_PORT":         &c.Database.Port,
		"SURVEY_DB_USER":         &c.Database.User,
		"SURVEY_DB_PASSWORD":     &c.Database.Password,
		"SURVEY_DB_NAME":         &c.Database.DBName,
		"SURVEY_DB_PROFILE_PATH": &c.Database.ProfilePath,
		"SURVEY_ARCHIVE_DIR":     &c.Survey.ArchiveDir,
		"SURVEY_OUTPUT_TARGET":   &c.Output.Target,
		"SURVEY_PUBLISH_BUCKET":  &c.Publish.Bucket,
		"SURVEY_SERVER_PORT":     &c.Server.Port,
	}
	for key, field := range overrides {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*field = v
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}

	s := &c.Survey
	if s.IndexURL == "" {
		s.IndexURL = "https://insights.stackoverflow.com/survey"
	}
	if s.IndexLabel == "" {
		s.IndexLabel = "Download Full Data Set (CSV)"
	}
	if s.DownloadURLTemplate == "" {
		s.DownloadURLTemplate = "https://drive.google.com/uc?export=download&id={id}"
	}
	if s.ArchiveDir == "" {
		s.ArchiveDir = filepath.Join("data", "sources")
	}
	if s.Encoding == "" {
		s.Encoding = "iso-8859-2"
	}
	if s.NullValues == nil {
		s.NullValues = []string{"", "NA"}
	}
	if s.Since == 0 {
		s.Since = 2017
	}
	if s.RequestTimeout == 0 {
		s.RequestTimeout = 5 * time.Minute // archives are tens of MB
	}

	if c.Pipeline.DiscoveryMode == "" {
		c.Pipeline.DiscoveryMode = DiscoveryStrict
	}
	if c.Pipeline.OnError == "" {
		c.Pipeline.OnError = ContinueAbort
	}

	if c.Output.Target == "" {
		c.Output.Target = TargetDatabase
	}
	if c.Output.FlatFileDir == "" {
		c.Output.FlatFileDir = filepath.Join("data", "output")
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.Port == "" {
		switch c.Database.Driver {
		case "postgres":
			c.Database.Port = "5432"
		case "mysql":
			c.Database.Port = "3306"
		}
	}

	if c.Charts.OutputDir == "" {
		c.Charts.OutputDir = filepath.Join("data", "charts")
	}
	if c.Charts.DistributionField == "" {
		c.Charts.DistributionField = "main_branch"
	}
	if c.Charts.TopValues == 0 {
		c.Charts.TopValues = 8
	}

	if c.Publish.Region == "" {
		c.Publish.Region = "us-east-1"
	}
}

func (c *Config) validate() error {
	if c.Survey.RequestTimeoutStr != "" {
		d, err := time.ParseDuration(c.Survey.RequestTimeoutStr)
		if err != nil {
			return fmt.Errorf("failed to parse request_timeout: %w", err)
		}
		c.Survey.RequestTimeout = d
	}
	if !strings.Contains(c.Survey.DownloadURLTemplate, "{id}") {
		return fmt.Errorf("download_url_template %q has no {id} placeholder", c.Survey.DownloadURLTemplate)
	}

	switch c.Pipeline.DiscoveryMode {
	case DiscoveryStrict, DiscoveryLenient:
	default:
		return fmt.Errorf("unknown discovery_mode %q (use strict or lenient)", c.Pipeline.DiscoveryMode)
	}
	switch c.Pipeline.OnError {
	case ContinueAbort, ContinueSkip:
	default:
		return fmt.Errorf("unknown on_error policy %q (use abort or skip)", c.Pipeline.OnError)
	}
	switch c.Output.Target {
	case TargetDatabase, TargetFlatFile:
	default:
		return fmt.Errorf("unknown output target %q (use database or flatfile)", c.Output.Target)
	}
	switch c.Database.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	return nil
}
