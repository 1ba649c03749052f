// Package config gathers the console settings from defaults, environment
// variables (UARTCON_*), an optional YAML file and command line flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/robotalks/uartcon/pkg/cli"
	"github.com/robotalks/uartcon/pkg/cli/cmds/system"
	"github.com/robotalks/uartcon/pkg/console"
	"github.com/robotalks/uartcon/pkg/device"
	fx "github.com/robotalks/uartcon/pkg/framework"
	"github.com/robotalks/uartcon/pkg/serial"
	"github.com/robotalks/uartcon/pkg/transport"
)

// EnvPrefix is prepended to every environment variable.
const EnvPrefix = "UARTCON_"

// Config is the console configuration.
type Config struct {
	// URL selects the UART transport, e.g.
	// serial:///dev/ttyUSB0?baud=115200, mqtt://host:1883/uartcon/ or
	// ws://0.0.0.0:8080/console.
	URL string `yaml:"url" env:"URL"`
	// Broker is the MQTT broker used for discovery.
	Broker string `yaml:"broker" env:"BROKER"`

	ID          string `yaml:"id" env:"ID"`
	Description string `yaml:"description" env:"DESCRIPTION"`
	Version     string `yaml:"version" env:"VERSION"`

	Welcome   string `yaml:"welcome" env:"WELCOME"`
	Prompt    string `yaml:"prompt" env:"PROMPT"`
	MaxInput  int    `yaml:"max_input" env:"MAX_INPUT"`
	MaxOutput int    `yaml:"max_output" env:"MAX_OUTPUT"`

	RxSize   int    `yaml:"rx_size" env:"RX_SIZE"`
	TxSize   int    `yaml:"tx_size" env:"TX_SIZE"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`
	TickRate int    `yaml:"tick_rate" env:"TICK_RATE"`
}

var defaultConfig = Config{
	URL:       "serial:///dev/ttyUSB0?baud=115200",
	Broker:    "mqtt://localhost:1883/uartcon/",
	Version:   system.DefaultVersion,
	Welcome:   console.DefaultWelcome,
	Prompt:    console.DefaultPrompt,
	MaxInput:  console.DefaultMaxInput,
	MaxOutput: cli.DefaultMaxOutput,
	RxSize:    serial.DefaultRxSize,
	TxSize:    serial.DefaultTxSize,
	LogLevel:  serial.LogInfo.String(),
	TickRate:  fx.DefaultTickRate,
}

var (
	configFile string
	envErr     error
)

func init() {
	defaultConfig.ID = MachineID()
	envErr = ParseEnv(&defaultConfig)
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target *Config) error {
	if err := env.ParseWithOptions(target, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// SetupFlags sets command line flags.
func SetupFlags() {
	setupFlagSet(flag.CommandLine, &defaultConfig)
	flag.StringVar(&configFile, "config", os.Getenv(EnvPrefix+"CONFIG"), "YAML config file")
}

func setupFlagSet(fs *flag.FlagSet, c *Config) {
	fs.StringVar(&c.URL, "url", c.URL, "Console transport URL")
	fs.StringVar(&c.Broker, "mqtt", c.Broker, "MQTT broker URL for discovery")
	fs.StringVar(&c.ID, "id", c.ID, "Console ID")
	fs.StringVar(&c.Description, "desc", c.Description, "Console description")
	fs.StringVar(&c.Version, "version", c.Version, "Firmware version")
	fs.StringVar(&c.Prompt, "prompt", c.Prompt, "Command prompt")
	fs.IntVar(&c.MaxInput, "max-input", c.MaxInput, "Maximum command line length")
	fs.IntVar(&c.MaxOutput, "max-output", c.MaxOutput, "Command output chunk size")
	fs.IntVar(&c.RxSize, "rx-size", c.RxSize, "RX buffer size")
	fs.IntVar(&c.TxSize, "tx-size", c.TxSize, "TX buffer size")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Serial debug log level")
	fs.IntVar(&c.TickRate, "tick-rate", c.TickRate, "Scheduler tick rate in Hz")
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Load applies the -config file, if any, and returns the configuration.
// Environment variables and explicit flags take precedence over the file.
func Load() (*Config, error) {
	if envErr != nil {
		return nil, envErr
	}
	if err := overlay(flag.CommandLine, &defaultConfig, configFile); err != nil {
		return nil, err
	}
	conf := NewConfig()
	return conf, conf.Validate()
}

// MustLoad loads the configuration and fails on error.
func MustLoad() *Config {
	conf, err := Load()
	if err != nil {
		log.Fatalln(err)
	}
	return conf
}

func overlay(fs *flag.FlagSet, c *Config, path string) error {
	if path == "" {
		return nil
	}
	explicit := make(map[string]string)
	fs.Visit(func(f *flag.Flag) {
		explicit[f.Name] = f.Value.String()
	})
	if err := c.LoadFile(path); err != nil {
		return err
	}
	if err := ParseEnv(c); err != nil {
		return err
	}
	for name, val := range explicit {
		if err := fs.Set(name, val); err != nil {
			return err
		}
	}
	return nil
}

// LoadFile overlays the YAML file at path onto c.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err = yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Validate checks the settings.
func (c *Config) Validate() error {
	if c.URL == "" {
		return errors.New("console URL required")
	}
	if _, err := serial.ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	if c.MaxInput < 0 || c.MaxOutput < 0 || c.RxSize < 0 || c.TxSize < 0 {
		return errors.New("sizes must not be negative")
	}
	if c.TickRate < 0 {
		return fmt.Errorf("invalid tick rate %d", c.TickRate)
	}
	return nil
}

// SerialOptions returns the serial console options.
func (c *Config) SerialOptions() serial.Options {
	level, err := serial.ParseLogLevel(c.LogLevel)
	if err != nil {
		level = serial.LogInfo
	}
	return serial.Options{RxSize: c.RxSize, TxSize: c.TxSize, Level: level}
}

// ConsoleOptions returns the console session options.
func (c *Config) ConsoleOptions() console.Options {
	return console.Options{Welcome: c.Welcome, Prompt: c.Prompt, MaxInput: c.MaxInput}
}

// DeviceOptions returns the device options.
func (c *Config) DeviceOptions() device.Options {
	return device.Options{
		Version:   c.Version,
		TickRate:  c.TickRate,
		MaxOutput: c.MaxOutput,
		Serial:    c.SerialOptions(),
		Console:   c.ConsoleOptions(),
	}
}

// TransportOptions returns what the transport announces.
func (c *Config) TransportOptions() transport.Options {
	return transport.Options{ID: c.ID, Description: c.Description, Version: c.Version}
}
