package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. GOATTACH_POLL_INTERVAL.
const EnvPrefix = "GOATTACH"

const (
	defaultPollInterval    = time.Second
	defaultProbeTimeout    = 5 * time.Second
	defaultJournalCapacity = 1024
)

// Config aggregates the tunables of the attacher.
type Config struct {
	PollInterval     time.Duration
	ProbeTimeout     time.Duration
	SudoPath         string
	JcmdPath         string
	PsCommand        []string
	RuntimeToken     string
	MarkerDirs       []string
	AttachedProperty string
	StatusSocket     string
	JournalCapacity  int
	JournalFile      string
}

// Load builds a Config from defaults, an optional YAML (or JSON/TOML) file and
// GOATTACH_* environment overrides, in increasing precedence.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("poll_interval", defaultPollInterval.String())
	v.SetDefault("probe_timeout", defaultProbeTimeout.String())
	v.SetDefault("sudo_path", "sudo")
	v.SetDefault("jcmd_path", "jcmd")
	v.SetDefault("ps_command", []string{"ps", "aux"})
	v.SetDefault("runtime_token", "java")
	v.SetDefault("marker_dirs", []string{})
	v.SetDefault("attached_property", "agent.attached")
	v.SetDefault("status_socket", "")
	v.SetDefault("journal_capacity", defaultJournalCapacity)
	v.SetDefault("journal_file", "")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	var cfg Config
	var err error
	if cfg.PollInterval, err = duration(v, "poll_interval"); err != nil {
		return Config{}, err
	}
	if cfg.ProbeTimeout, err = duration(v, "probe_timeout"); err != nil {
		return Config{}, err
	}
	cfg.SudoPath = strings.TrimSpace(v.GetString("sudo_path"))
	cfg.JcmdPath = strings.TrimSpace(v.GetString("jcmd_path"))
	cfg.PsCommand = clean(v.GetStringSlice("ps_command"))
	cfg.RuntimeToken = strings.TrimSpace(v.GetString("runtime_token"))
	cfg.MarkerDirs = clean(v.GetStringSlice("marker_dirs"))
	cfg.AttachedProperty = strings.TrimSpace(v.GetString("attached_property"))
	cfg.StatusSocket = strings.TrimSpace(v.GetString("status_socket"))
	cfg.JournalCapacity = v.GetInt("journal_capacity")
	cfg.JournalFile = strings.TrimSpace(v.GetString("journal_file"))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case c.SudoPath == "":
		return errors.New("sudo_path must not be empty")
	case c.JcmdPath == "":
		return errors.New("jcmd_path must not be empty")
	case len(c.PsCommand) == 0:
		return errors.New("ps_command must not be empty")
	case c.RuntimeToken == "":
		return errors.New("runtime_token must not be empty")
	case c.AttachedProperty == "":
		return errors.New("attached_property must not be empty")
	case c.JournalCapacity <= 0:
		return fmt.Errorf("journal_capacity must be > 0, got %d", c.JournalCapacity)
	}
	return nil
}

func duration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be > 0", key)
	}
	return d, nil
}

func clean(xs []string) []string {
	out := make([]string, 0, len(xs))
	for _, x := range xs {
		if x = strings.TrimSpace(x); x != "" {
			out = append(out, x)
		}
	}
	return out
}
