// Package agent loads a Java agent into a running JVM, either directly or by
// re-running this program as the JVM's owner.
package agent

import (
	"fmt"
	"strings"
)

// Configuration keys with special handling.
const (
	KeyActivationMethod     = "activation_method"
	DefaultActivationMethod = "GOATTACH_CLI"
)

// Setting is a single agent option.
type Setting struct {
	Key   string
	Value string
}

// Config is an ordered set of agent options. Later values for a key replace
// earlier ones in place.
type Config struct {
	settings []Setting
}

// Set adds or replaces key.
func (c *Config) Set(key, value string) {
	for i := range c.settings {
		if c.settings[i].Key == key {
			c.settings[i].Value = value
			return
		}
	}
	c.settings = append(c.settings, Setting{Key: key, Value: value})
}

// Get returns the value of key.
func (c Config) Get(key string) (string, bool) {
	for _, s := range c.settings {
		if s.Key == key {
			return s.Value, true
		}
	}
	return "", false
}

// Settings returns a copy of the options in insertion order.
func (c Config) Settings() []Setting { return append([]Setting(nil), c.settings...) }

// Len returns the number of options.
func (c Config) Len() int { return len(c.settings) }

// WithDefaults returns a copy with activation_method set when absent.
func (c Config) WithDefaults() Config {
	out := Config{settings: c.Settings()}
	if _, ok := out.Get(KeyActivationMethod); !ok {
		out.Set(KeyActivationMethod, DefaultActivationMethod)
	}
	return out
}

// String renders the options as agent arguments: key1=value1;key2=value2.
func (c Config) String() string {
	parts := make([]string, 0, len(c.settings))
	for _, s := range c.settings {
		parts = append(parts, s.Key+"="+s.Value)
	}
	return strings.Join(parts, ";")
}

// SetPair parses key=value. Only the first '=' separates, so values may contain '='.
func (c *Config) SetPair(pair string) error {
	key, value, ok := strings.Cut(pair, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return fmt.Errorf("config %q: expected key=value", pair)
	}
	c.Set(key, value)
	return nil
}

// ParseArgs parses key1=value1;key2=value2 as printed by an args provider.
// Empty segments are ignored.
func ParseArgs(s string) (Config, error) {
	var c Config
	for _, part := range strings.Split(strings.TrimSpace(s), ";") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		if err := c.SetPair(part); err != nil {
			return Config{}, err
		}
	}
	return c, nil
}
