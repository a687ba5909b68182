package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// credentialFileNames are looked for in the working directory
var credentialFileNames = []string{"rotated_passwords.csv", "credentials.csv", "passwords.csv"}

// DefaultsManager handles smart defaults for a first ilmari configuration
type DefaultsManager struct {
	workingDir string
	homeDir    string
	getenv     func(string) string
}

// NewDefaultsManager creates a new defaults manager
func NewDefaultsManager() *DefaultsManager {
	wd, _ := os.Getwd()
	home, _ := os.UserHomeDir()
	return &DefaultsManager{
		workingDir: wd,
		homeDir:    home,
		getenv:     os.Getenv,
	}
}

// GenerateSmartDefaults creates a configuration with defaults adjusted to
// what is found on this machine. Derived storage paths are left empty so they
// follow base_dir.
func (dm *DefaultsManager) GenerateSmartDefaults() *Config {
	config := DefaultConfig()
	config.Storage.BaseDir = dm.getDefaultStoragePath()

	if path := dm.findCredentialFile(); path != "" {
		config.Credentials.File = path
	} else {
		config.Credentials.File = filepath.Join(config.Storage.BaseDir, credentialFileNames[0])
	}

	if knownHosts := dm.findKnownHosts(); knownHosts != "" {
		config.SSH.HostKeyPolicy = "known_hosts"
		config.SSH.KnownHosts = knownHosts
	}

	return config
}

// getDefaultStoragePath returns ~/.ilmari, or ./.ilmari without a home directory
func (dm *DefaultsManager) getDefaultStoragePath() string {
	if dm.homeDir == "" {
		return filepath.Join(dm.workingDir, ".ilmari")
	}
	return filepath.Join(dm.homeDir, ".ilmari")
}

// findCredentialFile returns a credential file in the working directory
func (dm *DefaultsManager) findCredentialFile() string {
	for _, name := range credentialFileNames {
		path := filepath.Join(dm.workingDir, name)
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			return path
		}
	}
	return ""
}

// findKnownHosts returns the user's known_hosts file when there is one
func (dm *DefaultsManager) findKnownHosts() string {
	if dm.homeDir == "" {
		return ""
	}
	path := filepath.Join(dm.homeDir, ".ssh", "known_hosts")
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return ""
}

// ValidateDefaults checks that the storage directory can be created
func (dm *DefaultsManager) ValidateDefaults(config *Config) error {
	if err := os.MkdirAll(config.Storage.BaseDir, 0o755); err != nil {
		return fmt.Errorf("cannot create storage directory %s: %w", config.Storage.BaseDir, err)
	}
	return nil
}

// GetUserFriendlyFeedback returns helpful information about the generated defaults
func (dm *DefaultsManager) GetUserFriendlyFeedback(config *Config) []string {
	var feedback []string

	feedback = append(feedback, fmt.Sprintf("Storage location: %s", config.Storage.BaseDir))

	if _, err := os.Stat(config.Credentials.File); err == nil {
		feedback = append(feedback, fmt.Sprintf("Credential file: %s", config.Credentials.File))
	} else {
		feedback = append(feedback, fmt.Sprintf("Credential file %s does not exist yet; create it with the columns Device,Hostname,Username,New_Password", config.Credentials.File))
	}

	if config.SSH.HostKeyPolicy == "known_hosts" {
		feedback = append(feedback, fmt.Sprintf("Host keys verified against %s", config.SSH.KnownHosts))
	} else {
		feedback = append(feedback, "Host keys are not verified; set ssh.host_key_policy to known_hosts to enable")
	}

	if dm.getenv("ANTHROPIC_API_KEY") != "" || dm.getenv("ILMARI_CLAUDE_API_KEY") != "" {
		feedback = append(feedback, "Claude API key found in the environment; compare --explain is available")
	}

	return feedback
}

// Redacted returns a copy of c that is safe to print
func (c *Config) Redacted() *Config {
	out := *c
	if out.Claude.APIKey != "" {
		out.Claude.APIKey = "********"
	}
	if out.SNMP.Community != "" {
		out.SNMP.Community = "********"
	}
	return &out
}

// Marshal renders c as config.yaml content
func (c *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// WriteFile writes c to path. An existing file is only replaced when overwrite is set.
func WriteFile(path string, c *Config, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file %s already exists", path)
		}
	}

	data, err := c.Marshal()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}
