package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/uartcon/pkg/serial"
)

func writeFile(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "uartcon.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaults(t *testing.T) {
	conf := NewConfig()
	require.NoError(t, conf.Validate())
	assert.NotEmpty(t, conf.ID)
	assert.Equal(t, "0.0.1", conf.Version)
	assert.Equal(t, "> ", conf.Prompt)
	assert.Equal(t, 50, conf.MaxInput)
	assert.Equal(t, 100, conf.MaxOutput)
	assert.Equal(t, 1000, conf.TickRate)

	opts := conf.SerialOptions()
	assert.Equal(t, serial.LogInfo, opts.Level)
	assert.Equal(t, 512, opts.RxSize)

	dev := conf.DeviceOptions()
	assert.Equal(t, conf.Welcome, dev.Console.Welcome)
	assert.Equal(t, 100, dev.MaxOutput)
	assert.Equal(t, conf.ID, conf.TransportOptions().ID)
}

func TestParseEnv(t *testing.T) {
	t.Setenv("UARTCON_URL", "ws://0.0.0.0:8080/console")
	t.Setenv("UARTCON_MAX_INPUT", "20")
	t.Setenv("UARTCON_LOG_LEVEL", "debug")
	conf := Config{URL: "serial:///dev/ttyS0", MaxInput: 50}
	require.NoError(t, ParseEnv(&conf))
	assert.Equal(t, "ws://0.0.0.0:8080/console", conf.URL)
	assert.Equal(t, 20, conf.MaxInput)
	assert.Equal(t, serial.LogDebug, conf.SerialOptions().Level)

	t.Setenv("UARTCON_TX_SIZE", "many")
	assert.ErrorContains(t, ParseEnv(&conf), "parse env")
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, "url: mqtt://broker:1883/uartcon/\nid: bench\nwelcome: \"Hi\\r\\n\"\nrx_size: 64\n")
	conf := NewConfig()
	require.NoError(t, conf.LoadFile(path))
	assert.Equal(t, "mqtt://broker:1883/uartcon/", conf.URL)
	assert.Equal(t, "bench", conf.ID)
	assert.Equal(t, "Hi\r\n", conf.Welcome)
	assert.Equal(t, 64, conf.RxSize)
	assert.Equal(t, "> ", conf.Prompt, "unset keys keep their values")

	assert.Error(t, conf.LoadFile(filepath.Join(t.TempDir(), "missing.yaml")))
	assert.Error(t, conf.LoadFile(writeFile(t, "rx_size: [")))
}

func TestOverlayPrecedence(t *testing.T) {
	path := writeFile(t, "id: from-file\nprompt: \"$ \"\nversion: \"1.0.0\"\n")
	t.Setenv("UARTCON_VERSION", "2.0.0")

	conf := NewConfig()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	setupFlagSet(fs, conf)
	require.NoError(t, fs.Parse([]string{"-id", "from-flag"}))

	require.NoError(t, overlay(fs, conf, path))
	assert.Equal(t, "from-flag", conf.ID)
	assert.Equal(t, "2.0.0", conf.Version)
	assert.Equal(t, "$ ", conf.Prompt)
}

func TestOverlayWithoutFile(t *testing.T) {
	conf := NewConfig()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	require.NoError(t, overlay(fs, conf, ""))
	assert.Equal(t, NewConfig(), conf)
}

func TestValidate(t *testing.T) {
	conf := NewConfig()
	conf.LogLevel = "chatty"
	assert.Error(t, conf.Validate())

	conf = NewConfig()
	conf.URL = ""
	assert.Error(t, conf.Validate())

	conf = NewConfig()
	conf.RxSize = -1
	assert.Error(t, conf.Validate())
}
