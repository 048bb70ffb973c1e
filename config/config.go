// Copyright (c) 2026 Digital Drip Team
// ddrip-deploy - stage and role aware remote task runner
// This source code is licensed under the MIT license found in the LICENSE file.

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/digital-drip/ddrip-deploy/core/model"
	"github.com/digital-drip/ddrip-deploy/core/recipe"
	"github.com/digital-drip/ddrip-deploy/internal/i18n"
)

const (
	// FileName is the config file base name searched for.
	FileName = "ddrip-deploy"
	// EnvPrefix prefixes environment overrides, e.g. DDRIP_SSH_PORT.
	EnvPrefix = "ddrip"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// ServerConfig declares one host in a role.
type ServerConfig struct {
	Host      string         `mapstructure:"host" yaml:"host"`
	Primary   bool           `mapstructure:"primary" yaml:"primary,omitempty"`
	NoRelease bool           `mapstructure:"no_release" yaml:"no_release,omitempty"`
	Options   map[string]any `mapstructure:"options" yaml:"options,omitempty"`
}

// StageConfig declares a stage.
type StageConfig struct {
	Banner   string                    `mapstructure:"banner" yaml:"banner,omitempty"`
	DeployTo string                    `mapstructure:"deploy_to" yaml:"deploy_to"`
	Vars     map[string]string         `mapstructure:"vars" yaml:"vars,omitempty"`
	Roles    map[string][]ServerConfig `mapstructure:"roles" yaml:"roles"`
}

// SSHConfig controls remote connections.
type SSHConfig struct {
	IdentityFile          string        `mapstructure:"identity_file" yaml:"identity_file,omitempty"`
	KnownHosts            string        `mapstructure:"known_hosts" yaml:"known_hosts,omitempty"`
	Port                  int           `mapstructure:"port" yaml:"port"`
	Timeout               time.Duration `mapstructure:"timeout" yaml:"timeout"`
	InsecureIgnoreHostKey bool          `mapstructure:"insecure_ignore_host_key" yaml:"insecure_ignore_host_key,omitempty"`
	MaxHosts              int           `mapstructure:"max_hosts" yaml:"max_hosts,omitempty"`
}

// HistoryConfig controls the run history database.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Type    string `mapstructure:"type" yaml:"type"`
	DSN     string `mapstructure:"dsn" yaml:"dsn,omitempty"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// Config is the whole configuration file.
type Config struct {
	Settings model.Settings         `mapstructure:"settings" yaml:"settings"`
	Stages   map[string]StageConfig `mapstructure:"stages" yaml:"stages"`
	SSH      SSHConfig              `mapstructure:"ssh" yaml:"ssh"`
	History  HistoryConfig          `mapstructure:"history" yaml:"history"`
	Log      LogConfig              `mapstructure:"log" yaml:"log"`
	Language string                 `mapstructure:"language" yaml:"language"`
}

// Defaults returns the scalar defaults registered with viper. Stages are
// not defaulted here, so a config file that declares stages replaces the
// built-in ones instead of merging with them.
func Defaults() map[string]any {
	s := recipe.DefaultSettings()
	return map[string]any{
		"settings.repository":          s.Repository,
		"settings.application":         s.Application,
		"settings.scm":                 s.SCM,
		"settings.user":                s.User,
		"settings.branch":              s.Branch,
		"settings.use_sudo":            s.UseSudo,
		"settings.sudo_prompt":         s.SudoPrompt,
		"ssh.port":                     22,
		"ssh.timeout":                  "10s",
		"ssh.insecure_ignore_host_key": false,
		"ssh.max_hosts":                0,
		"history.enabled":              true,
		"history.type":                 "sqlite",
		"history.dsn":                  "",
		"log.level":                    "info",
		"language":                     "en",
	}
}

// Default returns the built-in configuration, equal to what Load yields
// when no file, environment or flags are present.
func Default() Config {
	c := Config{
		Settings: recipe.DefaultSettings(),
		SSH:      SSHConfig{Port: 22, Timeout: 10 * time.Second},
		History:  HistoryConfig{Enabled: true, Type: "sqlite"},
		Log:      LogConfig{Level: "info"},
		Language: "en",
	}
	c.Stages = DefaultStages()
	return c
}

// DefaultStages converts the built-in recipe stages to config form.
func DefaultStages() map[string]StageConfig {
	out := map[string]StageConfig{}
	for _, s := range recipe.DefaultStages() {
		sc := StageConfig{Banner: s.Banner, DeployTo: s.DeployTo, Roles: map[string][]ServerConfig{}}
		for role, servers := range s.Roles {
			for _, srv := range servers {
				sc.Roles[role] = append(sc.Roles[role], ServerConfig{
					Host:      srv.Host,
					Primary:   srv.Primary(),
					NoRelease: srv.NoRelease(),
				})
			}
		}
		out[s.Name] = sc
	}
	return out
}

// GetConfigPath returns the user or system config file path.
func GetConfigPath(system bool) (string, error) {
	var configDir string
	if system {
		switch runtime.GOOS {
		case "windows":
			configDir = filepath.Join(os.Getenv("ProgramData"), "ddrip-deploy")
		default:
			configDir = "/etc/ddrip-deploy"
		}
	} else {
		dir, err := os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("could not get user config directory: %w", err)
		}
		configDir = filepath.Join(dir, "ddrip-deploy")
	}
	return filepath.Join(configDir, FileName+".yaml"), nil
}

// LoadConfig reads configuration into T. configFile, when non-nil, is read
// instead of searching the standard locations. It returns the path of the
// file used, or "" when running on defaults.
func LoadConfig[T any](cmd *cobra.Command, defaults map[string]any, configFile *string) (T, string, error) {
	var c T
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName(FileName)
	v.SetConfigType("yaml")
	if configFile != nil && *configFile != "" {
		v.SetConfigFile(*configFile)
	} else {
		v.AddConfigPath(".")
		if p, err := GetConfigPath(false); err == nil {
			v.AddConfigPath(filepath.Dir(p))
		}
		if p, err := GetConfigPath(true); err == nil {
			v.AddConfigPath(filepath.Dir(p))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return c, "", err
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cmd != nil {
		if err := v.BindPFlags(cmd.Flags()); err != nil {
			return c, "", err
		}
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, "", fmt.Errorf("failed to decode configuration: %w", err)
	}
	return c, v.ConfigFileUsed(), nil
}

// Load reads the ddrip-deploy configuration and fills in the built-in
// stages when none are declared.
func Load(cmd *cobra.Command, configFile *string) (Config, string, error) {
	c, used, err := LoadConfig[Config](cmd, Defaults(), configFile)
	if err != nil {
		return c, used, err
	}
	if len(c.Stages) == 0 {
		c.Stages = DefaultStages()
	}
	if c.Settings.SudoPrompt == "" {
		c.Settings.SudoPrompt = recipe.DefaultSudoPrompt
	}
	return c, used, c.Validate()
}

// Validate checks stage and role declarations.
func (c Config) Validate() error {
	var errs []error
	for _, name := range c.StageNames() {
		st := c.Stages[name]
		if strings.TrimSpace(st.DeployTo) == "" {
			errs = append(errs, fmt.Errorf("stage %s: deploy_to is required", name))
		}
		if len(st.Roles) == 0 {
			errs = append(errs, fmt.Errorf("stage %s: at least one role is required", name))
		}
		for role, servers := range st.Roles {
			if len(servers) == 0 {
				errs = append(errs, fmt.Errorf("stage %s: role %s has no hosts", name, role))
			}
			for i, srv := range servers {
				if strings.TrimSpace(srv.Host) == "" {
					errs = append(errs, fmt.Errorf("stage %s: role %s: server %d has no host", name, role, i))
				}
				for _, opt := range []string{model.OptionPrimary, model.OptionNoRelease} {
					if v, ok := srv.Options[opt]; ok {
						if _, isBool := v.(bool); !isBool {
							errs = append(errs, fmt.Errorf("stage %s: role %s: %s: option %s must be true or false", name, role, srv.Host, opt))
						}
					}
				}
			}
		}
	}
	if c.SSH.Port < 0 || c.SSH.Port > 65535 {
		errs = append(errs, fmt.Errorf("ssh.port %d is out of range", c.SSH.Port))
	}
	if c.SSH.MaxHosts < 0 {
		errs = append(errs, errors.New("ssh.max_hosts must not be negative"))
	}
	if c.Language != "" && !i18n.IsAvailable(c.Language) {
		errs = append(errs, fmt.Errorf("language %q has no catalogue (available: %s)", c.Language, strings.Join(i18n.Available(), ", ")))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// StageNames returns the declared stage names sorted.
func (c Config) StageNames() []string {
	names := make([]string, 0, len(c.Stages))
	for name := range c.Stages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Recipe builds a recipe from the configuration.
func (c Config) Recipe() (*recipe.Recipe, error) {
	r := recipe.New()
	r.ApplySettings(c.Settings)
	for _, name := range c.StageNames() {
		sc := c.Stages[name]
		st := model.Stage{
			Name:     name,
			Banner:   sc.Banner,
			DeployTo: sc.DeployTo,
			Vars:     sc.Vars,
			Roles:    map[string][]model.Server{},
		}
		for role, servers := range sc.Roles {
			for _, srv := range servers {
				st.Roles[role] = append(st.Roles[role], srv.server())
			}
		}
		if err := r.DefineStage(st); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (s ServerConfig) server() model.Server {
	opts := make(map[string]any, len(s.Options)+2)
	for k, v := range s.Options {
		opts[k] = v
	}
	if s.Primary {
		opts[model.OptionPrimary] = true
	}
	if s.NoRelease {
		opts[model.OptionNoRelease] = true
	}
	return model.NewServer(s.Host, opts)
}

// WriteConfigFile writes c as YAML to path, creating parent directories.
func WriteConfigFile(c *Config, path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("could not create config directory %s: %w", dir, err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("could not write config file %s: %w", path, err)
	}
	return nil
}
