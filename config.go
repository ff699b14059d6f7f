package sqldoctest

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

// Config represents the sqldoctest configuration
type Config struct {
	Dialect      Dialect             `yaml:"dialect"`
	DatabaseName string              `yaml:"database_name"`
	TestDir      string              `yaml:"test_dir"`
	FilePattern  string              `yaml:"file_pattern"`
	Databases    map[string]Database `yaml:"databases"`
	Connect      ConnectConfig       `yaml:"connect"`
	Report       ReportConfig        `yaml:"report"`
	Variables    map[string]string   `yaml:"variables"`
}

// Database represents database connection configuration
type Database struct {
	// Connection is the DSN used to reach the server. For postgres and mysql the
	// database part is replaced by DatabaseName for every test file.
	Connection string `yaml:"connection"`
	// AdminConnection is used for DROP/CREATE DATABASE. Defaults to Connection.
	AdminConnection string `yaml:"admin_connection"`
	// Dialect overrides Config.Dialect for this environment.
	Dialect Dialect `yaml:"dialect"`
}

// ConnectConfig controls how long the runner waits for a database to accept connections
type ConnectConfig struct {
	MaxWait time.Duration `yaml:"max_wait"`
}

// ReportConfig selects reporters and their output files
type ReportConfig struct {
	Formats  []string `yaml:"formats"`
	JUnit    string   `yaml:"junit"`
	JSON     string   `yaml:"json"`
	Markdown string   `yaml:"markdown"`
	HTML     string   `yaml:"html"`
}

// LoadConfig loads configuration from the specified file
func LoadConfig(configPath string) (*Config, error) {
	// Load .env files first
	err := loadEnvFiles()
	if err != nil {
		return nil, fmt.Errorf("failed to load environment files: %w", err)
	}

	_, err = os.Stat(configPath)
	if os.IsNotExist(err) {
		config := getDefaultConfig()
		expandConfigEnvVars(config)

		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return ParseConfig(data)
}

// ParseConfig parses YAML configuration data, applies defaults and expands environment variables
func ParseConfig(data []byte) (*Config, error) {
	var config Config

	// Strict mode rejects unknown fields
	err := yaml.UnmarshalWithOptions(data, &config, yaml.Strict())
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&config)
	expandConfigEnvVars(&config)

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// DatabaseFor returns the database configuration of an environment together with its effective dialect
func (c *Config) DatabaseFor(env string) (Database, Dialect, error) {
	db, ok := c.Databases[env]
	if !ok {
		return Database{}, "", fmt.Errorf("%w: '%s'", ErrEnvironmentNotFound, env)
	}

	dialect := c.Dialect
	if db.Dialect != "" {
		dialect = db.Dialect
	}

	if db.AdminConnection == "" {
		db.AdminConnection = db.Connection
	}

	return db, dialect, nil
}

// validateConfig validates the configuration for common errors and inconsistencies
func validateConfig(config *Config) error {
	if !config.Dialect.Valid() {
		return fmt.Errorf("%w: invalid dialect '%s': must be one of postgres, mysql, sqlite, duckdb", ErrConfigValidation, config.Dialect)
	}

	for name, db := range config.Databases {
		if db.Dialect != "" && !db.Dialect.Valid() {
			return fmt.Errorf("%w: database '%s': invalid dialect '%s'", ErrConfigValidation, name, db.Dialect)
		}
	}

	if !identifierPattern.MatchString(config.DatabaseName) {
		return fmt.Errorf("%w: database_name '%s' must be a plain identifier", ErrConfigValidation, config.DatabaseName)
	}

	if config.Connect.MaxWait < 0 {
		return fmt.Errorf("%w: connect.max_wait must be >= 0, got %s", ErrConfigValidation, config.Connect.MaxWait)
	}

	validFormats := map[string]bool{
		"console":  true,
		"json":     true,
		"junit":    true,
		"markdown": true,
		"html":     true,
	}
	for _, format := range config.Report.Formats {
		if !validFormats[format] {
			return fmt.Errorf("%w: report format '%s' is invalid: must be one of console, json, junit, markdown, html", ErrConfigValidation, format)
		}
	}

	return nil
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// getDefaultConfig returns the default configuration
func getDefaultConfig() *Config {
	return &Config{
		Dialect:      DialectPostgres,
		DatabaseName: "runnerdb",
		TestDir:      "./tests",
		FilePattern:  "*.test",
		Databases:    make(map[string]Database),
		Connect: ConnectConfig{
			MaxWait: 30 * time.Second,
		},
		Report: ReportConfig{
			Formats: []string{"console"},
		},
		Variables: make(map[string]string),
	}
}

// applyDefaults applies default values to missing configuration fields
func applyDefaults(config *Config) {
	defaults := getDefaultConfig()

	if config.Dialect == "" {
		config.Dialect = defaults.Dialect
	}

	if config.DatabaseName == "" {
		config.DatabaseName = defaults.DatabaseName
	}

	if config.TestDir == "" {
		config.TestDir = defaults.TestDir
	}

	if config.FilePattern == "" {
		config.FilePattern = defaults.FilePattern
	}

	if config.Databases == nil {
		config.Databases = defaults.Databases
	}

	if config.Connect.MaxWait == 0 {
		config.Connect.MaxWait = defaults.Connect.MaxWait
	}

	if len(config.Report.Formats) == 0 {
		config.Report.Formats = defaults.Report.Formats
	}

	if config.Variables == nil {
		config.Variables = defaults.Variables
	}
}

// loadEnvFiles loads .env files if they exist
func loadEnvFiles() error {
	if fileExists(".env") {
		err := godotenv.Load(".env")
		if err != nil {
			return fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	return nil
}

var (
	bracedEnvVar = regexp.MustCompile(`\$\{([^}]+)\}`)
	plainEnvVar  = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
)

// expandEnvVars expands environment variables in the format ${VAR} or $VAR
func expandEnvVars(s string) string {
	s = bracedEnvVar.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})

	return plainEnvVar.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(match[1:])
	})
}

// expandConfigEnvVars expands environment variables in connection strings and paths
func expandConfigEnvVars(config *Config) {
	for name, db := range config.Databases {
		db.Connection = expandEnvVars(db.Connection)
		db.AdminConnection = expandEnvVars(db.AdminConnection)
		config.Databases[name] = db
	}

	config.TestDir = expandEnvVars(config.TestDir)
	config.Report.JUnit = expandEnvVars(config.Report.JUnit)
	config.Report.JSON = expandEnvVars(config.Report.JSON)
	config.Report.Markdown = expandEnvVars(config.Report.Markdown)
	config.Report.HTML = expandEnvVars(config.Report.HTML)

	for key, value := range config.Variables {
		config.Variables[key] = expandEnvVars(value)
	}
}

// fileExists checks if a file exists
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
