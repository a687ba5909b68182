package types

import (
	"errors"
	"strings"
)

// Credential is one row of the credential source.
type Credential struct {
	CanonicalID string `json:"canonical_id" yaml:"canonical_id"`
	Alias       string `json:"alias" yaml:"alias"`
	Username    string `json:"username" yaml:"username"`
	Secret      string `json:"-" yaml:"-"`
}

// Validate checks that the credential can be used to open a session.
func (c *Credential) Validate() error {
	if strings.TrimSpace(c.CanonicalID) == "" {
		return errors.New("credential canonical id is required")
	}
	if strings.TrimSpace(c.Username) == "" {
		return errors.New("credential username is required")
	}
	if c.Secret == "" {
		return errors.New("credential secret is required")
	}
	return nil
}

// Matches reports whether identifier names this credential by canonical id or alias.
// Comparison is case-insensitive.
func (c *Credential) Matches(identifier string) bool {
	id := strings.TrimSpace(identifier)
	if id == "" {
		return false
	}
	if strings.EqualFold(c.CanonicalID, id) {
		return true
	}
	return c.Alias != "" && strings.EqualFold(c.Alias, id)
}

// Device is an immutable descriptor built from the credential store at start-up.
type Device struct {
	CanonicalID string     `json:"canonical_id" yaml:"canonical_id"`
	DisplayName string     `json:"display_name" yaml:"display_name"`
	Type        string     `json:"type" yaml:"type"`
	Credential  Credential `json:"credential" yaml:"credential"`
}

// Host returns the address used to open a command channel.
func (d Device) Host() string {
	return d.CanonicalID
}

// Name returns the display name, falling back to the canonical id.
func (d Device) Name() string {
	if d.DisplayName != "" && !strings.EqualFold(d.DisplayName, "N/A") {
		return d.DisplayName
	}
	return d.CanonicalID
}
