package system

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/uartcon/pkg/cli"
	"github.com/robotalks/uartcon/pkg/serial"
)

type fixedTicks uint64

func (t fixedTicks) Ticks() uint64 { return uint64(t) }

type fakeSerial struct {
	level serial.LogLevel
	stats serial.Stats
}

func (s *fakeSerial) Level() serial.LogLevel { return s.level }

func (s *fakeSerial) SetLogLevel(l serial.LogLevel) error {
	s.level = l
	return nil
}

func (s *fakeSerial) Stats() serial.Stats { return s.stats }

type deviceTestEnv struct {
	interp *cli.Interpreter
	resets int
	serial *fakeSerial
}

func newDeviceTestEnv(t *testing.T) *deviceTestEnv {
	env := &deviceTestEnv{
		interp: cli.New(),
		serial: &fakeSerial{stats: serial.Stats{RxBuffered: 1, RxDropped: 2, TxBuffered: 3, TxDropped: 4}},
	}
	require.NoError(t, Register(env.interp, Device{
		Version:  "1.2.3",
		Ticks:    fixedTicks(4242),
		Resetter: ResetFunc(func() { env.resets++ }),
		Serial:   env.serial,
	}))
	return env
}

func (e *deviceTestEnv) run(t *testing.T, line string) string {
	var out bytes.Buffer
	require.NoError(t, e.interp.Process(line, &out))
	return out.String()
}

func TestCommands(t *testing.T) {
	env := newDeviceTestEnv(t)
	require.Equal(t, "\x1b[2J", env.run(t, "cls"))
	require.Equal(t, "Firmware version: 1.2.3\r\n", env.run(t, "version"))
	require.Equal(t, "Ticks: 4242\r\n", env.run(t, "ticks"))
	require.Equal(t, "RX: 1 buffered, 2 dropped\r\nTX: 3 buffered, 4 dropped\r\n", env.run(t, "stats"))

	require.Empty(t, env.run(t, "reset"))
	require.Equal(t, 1, env.resets)

	require.Equal(t, cli.MsgIncorrectParams, env.run(t, "version now"))
}

func TestLogLevelCmd(t *testing.T) {
	env := newDeviceTestEnv(t)
	require.Equal(t, "Log level: info\r\n", env.run(t, "loglevel"))
	require.Equal(t, "Log level: error\r\n", env.run(t, "loglevel ERROR"))
	require.Equal(t, serial.LogError, env.serial.level)
	require.Equal(t, "Error: invalid log level \"loud\"\r\n", env.run(t, "loglevel loud"))
	require.Equal(t, serial.LogError, env.serial.level)
	require.Equal(t, cli.MsgIncorrectParams, env.run(t, "loglevel a b"))
}

func TestHelpOrder(t *testing.T) {
	env := newDeviceTestEnv(t)
	var names []string
	for _, cmd := range env.interp.Commands() {
		names = append(names, cmd.Name)
	}
	require.Equal(t, []string{"help", "cls", "reset", "version", "ticks", "loglevel", "stats"}, names)
}

func TestCommandsMinimalDevice(t *testing.T) {
	interp := cli.New()
	require.NoError(t, Register(interp, Device{}))
	var out bytes.Buffer
	require.NoError(t, interp.Process("version", &out))
	require.Equal(t, "Firmware version: "+DefaultVersion+"\r\n", out.String())
	require.Nil(t, interp.Lookup("reset"))
	require.Nil(t, interp.Lookup("ticks"))
}
