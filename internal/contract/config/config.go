// Package config loads the service configuration from YAML with a few
// environment overrides for secrets and deployment specific addresses.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gartstein/hrm/internal/contract/db"
	"github.com/gartstein/hrm/internal/contract/models"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// PathEnv overrides the default config location.
const PathEnv = "HRM_CONFIG"

// DefaultPath is relative to the repository root.
var DefaultPath = filepath.Join("internal", "contract", "config", "config.yaml")

type Config struct {
	DBHost     string `yaml:"DB_HOST"`
	DBPort     int    `yaml:"DB_PORT"`
	DBUser     string `yaml:"DB_USER"`
	DBPassword string `yaml:"DB_PASSWORD"`
	DBName     string `yaml:"DB_NAME"`
	DBSSLMode  string `yaml:"DB_SSLMODE"`

	KafkaBrokers  []string `yaml:"KAFKA_BROKERS"`
	EventsTopic   string   `yaml:"EVENTS_TOPIC"`
	CommandsTopic string   `yaml:"COMMANDS_TOPIC"`
	ConsumerGroup string   `yaml:"CONSUMER_GROUP"`

	// ApprovalLevels is the ordered approval chain every submission gets.
	ApprovalLevels    []models.ApprovalLevel `yaml:"APPROVAL_LEVELS"`
	DefaultRegion     int                    `yaml:"DEFAULT_REGION"`
	DefaultGrade      int                    `yaml:"DEFAULT_GRADE"`
	GradeMaxDeviation string                 `yaml:"GRADE_MAX_DEVIATION"`
	ConflictRetries   uint64                 `yaml:"CONFLICT_RETRIES"`

	LogDevelopment bool `yaml:"LOG_DEVELOPMENT"`
}

// Load reads the file at path, or at $HRM_CONFIG / DefaultPath when path is
// empty, applies environment overrides and defaults, and validates.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(PathEnv)
	}
	if path == "" {
		path = DefaultPath
	}
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(file)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML, then applies environment overrides and defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv("DB_HOST"); ok {
		c.DBHost = v
	}
	if v, ok := os.LookupEnv("DB_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DB_PORT: %w", err)
		}
		c.DBPort = port
	}
	if v, ok := os.LookupEnv("DB_PASSWORD"); ok {
		c.DBPassword = v
	}
	if v, ok := os.LookupEnv("KAFKA_BROKERS"); ok {
		c.KafkaBrokers = nil
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				c.KafkaBrokers = append(c.KafkaBrokers, b)
			}
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.DBSSLMode == "" {
		c.DBSSLMode = "disable"
	}
	if c.EventsTopic == "" {
		c.EventsTopic = "contract.events"
	}
	if c.CommandsTopic == "" {
		c.CommandsTopic = "contract.commands"
	}
	if c.ConsumerGroup == "" {
		c.ConsumerGroup = "contract-service"
	}
	if len(c.ApprovalLevels) == 0 {
		c.ApprovalLevels = []models.ApprovalLevel{models.LevelDirector}
	}
	if c.DefaultRegion == 0 {
		c.DefaultRegion = 1
	}
	if c.DefaultGrade == 0 {
		c.DefaultGrade = 1
	}
	if c.ConflictRetries == 0 {
		c.ConflictRetries = 3
	}
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	var problems []string
	if c.DBHost == "" {
		problems = append(problems, "DB_HOST is required")
	}
	if c.DBPort <= 0 {
		problems = append(problems, "DB_PORT must be positive")
	}
	if c.DBName == "" {
		problems = append(problems, "DB_NAME is required")
	}
	if len(c.KafkaBrokers) == 0 {
		problems = append(problems, "KAFKA_BROKERS is required")
	}
	seen := map[models.ApprovalLevel]bool{}
	for _, l := range c.ApprovalLevels {
		if !l.Valid() {
			problems = append(problems, fmt.Sprintf("unknown approval level %q", l))
		}
		if seen[l] {
			problems = append(problems, fmt.Sprintf("approval level %q listed twice", l))
		}
		seen[l] = true
	}
	if c.DefaultGrade < 1 || c.DefaultGrade > 7 {
		problems = append(problems, "DEFAULT_GRADE must be between 1 and 7")
	}
	if c.DefaultRegion < 0 {
		problems = append(problems, "DEFAULT_REGION must be positive")
	}
	if c.GradeMaxDeviation != "" {
		d, err := decimal.NewFromString(c.GradeMaxDeviation)
		if err != nil || d.IsNegative() {
			problems = append(problems, "GRADE_MAX_DEVIATION must be a non-negative decimal")
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// MaxDeviation is the parsed grade tolerance; zero disables the check.
func (c *Config) MaxDeviation() decimal.Decimal {
	d, err := decimal.NewFromString(c.GradeMaxDeviation)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Database returns the connection settings for db.NewRepository.
func (c *Config) Database() *db.Config {
	return &db.Config{
		Host:     c.DBHost,
		Port:     c.DBPort,
		User:     c.DBUser,
		Password: c.DBPassword,
		DBName:   c.DBName,
		SSLMode:  c.DBSSLMode,
	}
}
