package render

import (
	_ "embed"
	"errors"
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{3}([0-9a-fA-F]{3})?$`)

// StatusStyle is how a status is presented in the status-changed email.
type StatusStyle struct {
	Code    string `yaml:"code"`
	Label   string `yaml:"label"`
	Emoji   string `yaml:"emoji"`
	Color   string `yaml:"color"`
	Message string `yaml:"message"`
}

// Catalog maps status labels and codes to their presentation.
type Catalog struct {
	Statuses []StatusStyle `yaml:"statuses"`
	Fallback StatusStyle   `yaml:"fallback"`

	byKey map[string]StatusStyle
}

// DefaultCatalog returns the embedded catalog.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// ParseCatalog decodes and validates a YAML catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse status catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	c.byKey = make(map[string]StatusStyle, len(c.Statuses)*2)
	for _, s := range c.Statuses {
		c.byKey[s.Code] = s
	}
	// labels win over codes when they collide
	for _, s := range c.Statuses {
		c.byKey[s.Label] = s
	}
	return &c, nil
}

// Validate checks that every entry is complete and colors are hex literals.
func (c *Catalog) Validate() error {
	if len(c.Statuses) == 0 {
		return errors.New("status catalog has no statuses")
	}

	var errs []error
	seen := make(map[string]bool)
	for i, s := range c.Statuses {
		if s.Code == "" || s.Label == "" || s.Message == "" {
			errs = append(errs, fmt.Errorf("status %d: code, label and message are required", i))
		}
		if !hexColor.MatchString(s.Color) {
			errs = append(errs, fmt.Errorf("status %q: invalid color %q", s.Code, s.Color))
		}
		if seen[s.Code] {
			errs = append(errs, fmt.Errorf("status %q: duplicate code", s.Code))
		}
		seen[s.Code] = true
	}
	if c.Fallback.Message == "" || !hexColor.MatchString(c.Fallback.Color) {
		errs = append(errs, errors.New("fallback needs a message and a hex color"))
	}
	return errors.Join(errs...)
}

// Lookup returns the style for a label or code, or the fallback.
func (c *Catalog) Lookup(key string) StatusStyle {
	if s, ok := c.byKey[key]; ok {
		return s
	}
	return c.Fallback
}
