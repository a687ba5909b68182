package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete ilmari configuration
type Config struct {
	Credentials CredentialsConfig            `mapstructure:"credentials" yaml:"credentials"`
	Storage     StorageConfig                `mapstructure:"storage" yaml:"storage"`
	Devices     DevicesConfig                `mapstructure:"devices" yaml:"devices"`
	Commands    map[string]map[string]string `mapstructure:"commands" yaml:"commands"`
	SSH         SSHConfig                    `mapstructure:"ssh" yaml:"ssh"`
	Pacing      PacingConfig                 `mapstructure:"pacing" yaml:"pacing"`
	Health      HealthConfig                 `mapstructure:"health" yaml:"health"`
	SNMP        SNMPConfig                   `mapstructure:"snmp" yaml:"snmp"`
	Archive     ArchiveConfig                `mapstructure:"archive" yaml:"archive"`
	Claude      ClaudeConfig                 `mapstructure:"claude" yaml:"claude"`
	Output      OutputConfig                 `mapstructure:"output" yaml:"output"`
	Logging     LoggingConfig                `mapstructure:"logging" yaml:"logging"`
}

// CredentialsConfig locates the credential source
type CredentialsConfig struct {
	File             string `mapstructure:"file" yaml:"file"`
	FallbackUsername string `mapstructure:"fallback_username" yaml:"fallback_username"`
}

// StorageConfig contains storage configuration
type StorageConfig struct {
	BaseDir      string `mapstructure:"base_dir" yaml:"base_dir"`
	GoldenDir    string `mapstructure:"golden_dir" yaml:"golden_dir"`
	ExportDir    string `mapstructure:"export_dir" yaml:"export_dir"`
	IPAMFile     string `mapstructure:"ipam_file" yaml:"ipam_file"`
	JournalPath  string `mapstructure:"journal_path" yaml:"journal_path"`
	SnapshotKind string `mapstructure:"snapshot_kind" yaml:"snapshot_kind"`
}

// DevicesConfig maps devices to command-set types
type DevicesConfig struct {
	DefaultType  string            `mapstructure:"default_type" yaml:"default_type"`
	Types        map[string]string `mapstructure:"types" yaml:"types"`
	TypePrefixes map[string]string `mapstructure:"type_prefixes" yaml:"type_prefixes"`
}

// SSHConfig contains command channel settings
type SSHConfig struct {
	Port          int           `mapstructure:"port" yaml:"port"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	HostKeyPolicy string        `mapstructure:"host_key_policy" yaml:"host_key_policy"`
	KnownHosts    string        `mapstructure:"known_hosts" yaml:"known_hosts"`
}

// PacingConfig sets the minimum interval between device connections
type PacingConfig struct {
	MinInterval time.Duration `mapstructure:"min_interval" yaml:"min_interval"`
}

// HealthConfig contains health check parameters
type HealthConfig struct {
	PingTargets  []string `mapstructure:"ping_targets" yaml:"ping_targets"`
	CPUThreshold float64  `mapstructure:"cpu_threshold" yaml:"cpu_threshold"`
}

// SNMPConfig contains SNMP CPU polling parameters
type SNMPConfig struct {
	Targets   []string      `mapstructure:"targets" yaml:"targets"`
	Community string        `mapstructure:"community" yaml:"community"`
	Version   string        `mapstructure:"version" yaml:"version"`
	Port      int           `mapstructure:"port" yaml:"port"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Retries   int           `mapstructure:"retries" yaml:"retries"`
	Threshold float64       `mapstructure:"threshold" yaml:"threshold"`
}

// ArchiveConfig contains remote golden archive configuration
type ArchiveConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// ClaudeConfig contains Claude AI configuration
type ClaudeConfig struct {
	APIKey string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	Model  string `mapstructure:"model" yaml:"model"`
}

// OutputConfig contains output formatting configuration
type OutputConfig struct {
	Format  string `mapstructure:"format" yaml:"format"`
	NoColor bool   `mapstructure:"no_color" yaml:"no_color"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	File   string `mapstructure:"file" yaml:"file"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Credentials: CredentialsConfig{
			File:             "~/.ilmari/rotated_passwords.csv",
			FallbackUsername: "admin",
		},
		Storage: StorageConfig{
			BaseDir:      "~/.ilmari",
			GoldenDir:    "",
			ExportDir:    "",
			IPAMFile:     "",
			JournalPath:  "",
			SnapshotKind: "golden",
		},
		Devices: DevicesConfig{
			DefaultType:  "arista_eos",
			Types:        map[string]string{},
			TypePrefixes: map[string]string{},
		},
		Commands: map[string]map[string]string{},
		SSH: SSHConfig{
			Port:          22,
			Timeout:       30 * time.Second,
			HostKeyPolicy: "insecure",
		},
		Pacing: PacingConfig{
			MinInterval: 2 * time.Second,
		},
		Health: HealthConfig{
			PingTargets:  []string{"198.100.100.2", "2003:db8::1"},
			CPUThreshold: 70,
		},
		SNMP: SNMPConfig{
			Targets:   []string{},
			Community: "public",
			Version:   "2c",
			Port:      161,
			Timeout:   5 * time.Second,
			Retries:   1,
			Threshold: 50,
		},
		Claude: ClaudeConfig{
			APIKey: "",
			Model:  "claude-sonnet-4-20250514",
		},
		Output: OutputConfig{
			Format:  "text",
			NoColor: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			File:   "",
		},
	}
}

// Load loads configuration from various sources
func Load() (*Config, error) {
	config := DefaultConfig()

	// An explicit file from --config wins; SetConfigName would clear it
	explicit := viper.ConfigFileUsed()
	if explicit == "" {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")

		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".ilmari"))
		}
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
	}

	// Set environment variable support
	viper.SetEnvPrefix("ILMARI")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.BindEnv("claude.api_key", "ILMARI_CLAUDE_API_KEY", "ANTHROPIC_API_KEY")
	viper.BindEnv("logging.level", "ILMARI_LOGGING_LEVEL", "LOG_LEVEL")
	viper.BindEnv("credentials.file", "ILMARI_CREDENTIALS_FILE")
	viper.BindEnv("archive.url", "ILMARI_ARCHIVE_URL")

	// Read configuration file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || explicit != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is not an error - we'll use defaults
	}

	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.applyDerivedDefaults()

	return config, nil
}

// applyDerivedDefaults fills storage paths that default to locations under BaseDir.
func (c *Config) applyDerivedDefaults() {
	if c.Storage.GoldenDir == "" {
		c.Storage.GoldenDir = filepath.Join(c.Storage.BaseDir, "golden_configs")
	}
	if c.Storage.ExportDir == "" {
		c.Storage.ExportDir = filepath.Join(c.Storage.BaseDir, "running_configs")
	}
	if c.Storage.IPAMFile == "" {
		c.Storage.IPAMFile = filepath.Join(c.Storage.BaseDir, "dynamic_ipam.csv")
	}
	if c.Storage.JournalPath == "" {
		c.Storage.JournalPath = filepath.Join(c.Storage.BaseDir, "journal.db")
	}
	if c.Storage.SnapshotKind == "" {
		c.Storage.SnapshotKind = "golden"
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Credentials.File == "" {
		return fmt.Errorf("credentials file is required")
	}
	if c.Storage.BaseDir == "" {
		return fmt.Errorf("storage base dir is required")
	}
	if strings.ContainsAny(c.Storage.SnapshotKind, `/\_`) {
		return fmt.Errorf("storage snapshot kind %q must not contain path separators or underscores", c.Storage.SnapshotKind)
	}
	if c.Pacing.MinInterval < 0 {
		return fmt.Errorf("pacing min interval must not be negative")
	}
	if c.SSH.Port <= 0 || c.SSH.Port > 65535 {
		return fmt.Errorf("ssh port %d out of range", c.SSH.Port)
	}
	if c.SSH.Timeout <= 0 {
		return fmt.Errorf("ssh timeout must be positive")
	}
	switch c.SSH.HostKeyPolicy {
	case "insecure":
	case "known_hosts":
		if c.SSH.KnownHosts == "" {
			return fmt.Errorf("ssh known_hosts path is required when host_key_policy is known_hosts")
		}
	default:
		return fmt.Errorf("unsupported ssh host key policy: %s", c.SSH.HostKeyPolicy)
	}
	switch c.Output.Format {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("unsupported output format: %s", c.Output.Format)
	}
	return nil
}

// HasAIFeatures checks if AI features are available
func (c *Config) HasAIFeatures() bool {
	return c.Claude.APIKey != ""
}

// ExpandPaths expands home directory paths
func (c *Config) ExpandPaths() error {
	paths := []*string{
		&c.Credentials.File,
		&c.Storage.BaseDir,
		&c.Storage.GoldenDir,
		&c.Storage.ExportDir,
		&c.Storage.IPAMFile,
		&c.Storage.JournalPath,
		&c.SSH.KnownHosts,
		&c.Logging.File,
	}

	for _, p := range paths {
		expanded, err := expandPath(*p)
		if err != nil {
			return fmt.Errorf("failed to expand path %s: %w", *p, err)
		}
		*p = expanded
	}

	return nil
}

// expandPath expands ~ to home directory
func expandPath(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path, err
	}

	if len(path) == 1 {
		return home, nil
	}

	return filepath.Join(home, path[1:]), nil
}
