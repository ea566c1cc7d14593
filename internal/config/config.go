package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the resolved tool configuration.
type Config struct {
	OSC        OSCConfig        `mapstructure:"osc" yaml:"osc"`
	Automation AutomationConfig `mapstructure:"automation" yaml:"automation"`
	Output     OutputConfig     `mapstructure:"output" yaml:"output"`
}

// OSCConfig describes how to reach AbletonOSC.
type OSCConfig struct {
	Host         string        `mapstructure:"host" yaml:"host"`
	SendPort     int           `mapstructure:"send_port" yaml:"send_port"`
	ReceivePort  int           `mapstructure:"receive_port" yaml:"receive_port"`
	QueryTimeout time.Duration `mapstructure:"query_timeout" yaml:"query_timeout"`
}

// AutomationConfig tunes the GUI automation timing.
type AutomationConfig struct {
	AppName           string        `mapstructure:"app_name" yaml:"app_name"`
	ProcessName       string        `mapstructure:"process_name" yaml:"process_name"`
	ScriptTimeout     time.Duration `mapstructure:"script_timeout" yaml:"script_timeout"`
	SettleDelay       time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	DialogDelay       time.Duration `mapstructure:"dialog_delay" yaml:"dialog_delay"`
	PollInterval      time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	CompletionTimeout time.Duration `mapstructure:"completion_timeout" yaml:"completion_timeout"`
	ActivationRetries int           `mapstructure:"activation_retries" yaml:"activation_retries"`
	// ExportDelay is the settle pause between two exports of a batch run.
	// Sending the next shortcut before the previous dialog has fully closed
	// makes the next window classification stale.
	ExportDelay time.Duration `mapstructure:"export_delay" yaml:"export_delay"`
}

// OutputConfig describes where exports land by default.
type OutputConfig struct {
	Directory string `mapstructure:"directory" yaml:"directory"`
	Format    string `mapstructure:"format" yaml:"format"`
}

var defaultConfig = Config{
	OSC: OSCConfig{
		Host:         "127.0.0.1",
		SendPort:     11000,
		ReceivePort:  11001,
		QueryTimeout: 2 * time.Second,
	},
	Automation: AutomationConfig{
		AppName:           "Ableton Live 12 Suite",
		ProcessName:       "Live",
		ScriptTimeout:     30 * time.Second,
		SettleDelay:       500 * time.Millisecond,
		DialogDelay:       1500 * time.Millisecond,
		PollInterval:      time.Second,
		CompletionTimeout: 120 * time.Second,
		ActivationRetries: 3,
		ExportDelay:       2 * time.Second,
	},
	Output: OutputConfig{
		Directory: filepath.Join(os.Getenv("HOME"), "Desktop", "ableton-exports"),
		Format:    "wav",
	},
}

// Default returns a copy of the built-in configuration.
func Default() *Config {
	cfg := defaultConfig
	return &cfg
}

// DefaultPath is where Load looks when no config file is given.
func DefaultPath() string {
	return filepath.Join(os.Getenv("HOME"), ".config", "liveexport.yaml")
}

// Load reads the configuration file, falling back to built-in defaults for
// anything unset. A missing file at the default path is not an error; an
// explicitly named file must exist.
func Load(configFile string) (*Config, error) {
	explicit := configFile != ""
	if configFile == "" {
		configFile = DefaultPath()
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configFile)
	v.SetEnvPrefix("LIVEEXPORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(configFile); explicit || statErr == nil {
			return nil, fmt.Errorf("failed to read config %s: %w", configFile, err)
		}
		// No file at the default location, defaults apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", configFile, err)
	}

	cfg.Output.Directory = expandPath(cfg.Output.Directory)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("osc.host", defaultConfig.OSC.Host)
	v.SetDefault("osc.send_port", defaultConfig.OSC.SendPort)
	v.SetDefault("osc.receive_port", defaultConfig.OSC.ReceivePort)
	v.SetDefault("osc.query_timeout", defaultConfig.OSC.QueryTimeout)
	v.SetDefault("automation.app_name", defaultConfig.Automation.AppName)
	v.SetDefault("automation.process_name", defaultConfig.Automation.ProcessName)
	v.SetDefault("automation.script_timeout", defaultConfig.Automation.ScriptTimeout)
	v.SetDefault("automation.settle_delay", defaultConfig.Automation.SettleDelay)
	v.SetDefault("automation.dialog_delay", defaultConfig.Automation.DialogDelay)
	v.SetDefault("automation.poll_interval", defaultConfig.Automation.PollInterval)
	v.SetDefault("automation.completion_timeout", defaultConfig.Automation.CompletionTimeout)
	v.SetDefault("automation.activation_retries", defaultConfig.Automation.ActivationRetries)
	v.SetDefault("automation.export_delay", defaultConfig.Automation.ExportDelay)
	v.SetDefault("output.directory", defaultConfig.Output.Directory)
	v.SetDefault("output.format", defaultConfig.Output.Format)
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if err := validatePort(c.OSC.SendPort, "osc.send_port"); err != nil {
		return err
	}
	if err := validatePort(c.OSC.ReceivePort, "osc.receive_port"); err != nil {
		return err
	}
	if c.OSC.SendPort == c.OSC.ReceivePort {
		return fmt.Errorf("osc.send_port and osc.receive_port must differ, both are %d", c.OSC.SendPort)
	}
	if c.OSC.QueryTimeout <= 0 {
		return fmt.Errorf("osc.query_timeout must be positive, got %s", c.OSC.QueryTimeout)
	}
	for name, d := range map[string]time.Duration{
		"automation.script_timeout":     c.Automation.ScriptTimeout,
		"automation.poll_interval":      c.Automation.PollInterval,
		"automation.completion_timeout": c.Automation.CompletionTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if c.Automation.ActivationRetries < 1 {
		return fmt.Errorf("automation.activation_retries must be at least 1, got %d", c.Automation.ActivationRetries)
	}
	switch c.Output.Format {
	case "wav", "aif", "aiff", "flac", "mp3":
	default:
		return fmt.Errorf("output.format %q is not a Live export format", c.Output.Format)
	}
	return nil
}

// YAML renders the configuration in the on-disk file format, with durations
// as human-readable strings.
func (c *Config) YAML() ([]byte, error) {
	doc := map[string]interface{}{
		"osc": map[string]interface{}{
			"host":          c.OSC.Host,
			"send_port":     c.OSC.SendPort,
			"receive_port":  c.OSC.ReceivePort,
			"query_timeout": c.OSC.QueryTimeout.String(),
		},
		"automation": map[string]interface{}{
			"app_name":           c.Automation.AppName,
			"process_name":       c.Automation.ProcessName,
			"script_timeout":     c.Automation.ScriptTimeout.String(),
			"settle_delay":       c.Automation.SettleDelay.String(),
			"dialog_delay":       c.Automation.DialogDelay.String(),
			"poll_interval":      c.Automation.PollInterval.String(),
			"completion_timeout": c.Automation.CompletionTimeout.String(),
			"activation_retries": c.Automation.ActivationRetries,
			"export_delay":       c.Automation.ExportDelay.String(),
		},
		"output": map[string]interface{}{
			"directory": c.Output.Directory,
			"format":    c.Output.Format,
		},
	}
	return yaml.Marshal(doc)
}

// WriteDefault writes the built-in configuration to path, refusing to
// overwrite an existing file.
func WriteDefault(path string) error {
	if path == "" {
		path = DefaultPath()
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}
	data, err := Default().YAML()
	if err != nil {
		return fmt.Errorf("failed to render default config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func validatePort(port int, name string) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s must be in 1-65535, got %d", name, port)
	}
	return nil
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(os.Getenv("HOME"), path[2:])
	}
	return path
}
