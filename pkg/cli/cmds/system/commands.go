// Package system provides the built-in device commands of the console.
package system

import (
	"strings"

	"github.com/robotalks/uartcon/pkg/cli"
	fx "github.com/robotalks/uartcon/pkg/framework"
	"github.com/robotalks/uartcon/pkg/serial"
)

// DefaultVersion is the firmware version reported when none is configured.
const DefaultVersion = "0.0.1"

// Resetter resets the device.
type Resetter interface {
	Reset()
}

// ResetFunc is the func form of Resetter.
type ResetFunc func()

// Reset implements Resetter.
func (f ResetFunc) Reset() {
	f()
}

// SerialControl exposes the serial console settings to commands.
type SerialControl interface {
	Level() serial.LogLevel
	SetLogLevel(serial.LogLevel) error
	Stats() serial.Stats
}

// Device is what the commands operate on.
type Device struct {
	Version  string
	Ticks    fx.TickSource
	Resetter Resetter
	Serial   SerialControl
}

// ClsCmd clears the terminal screen.
func ClsCmd() *cli.Command {
	return &cli.Command{
		Name: "cls",
		Help: "cls: Clears the terminal screen\r\n",
		Func: func(c *cli.Context) bool {
			c.Print("\x1b[2J")
			return false
		},
	}
}

// ResetCmd resets the device.
func ResetCmd(r Resetter) *cli.Command {
	return &cli.Command{
		Name: "reset",
		Help: "reset: Resets the device\r\n",
		Func: func(c *cli.Context) bool {
			r.Reset()
			return false
		},
	}
}

// VersionCmd prints the firmware version.
func VersionCmd(version string) *cli.Command {
	if version == "" {
		version = DefaultVersion
	}
	return &cli.Command{
		Name: "version",
		Help: "version:\r\n Prints the firmware version.\r\n",
		Func: func(c *cli.Context) bool {
			c.Printf("Firmware version: %s\r\n", version)
			return false
		},
	}
}

// TicksCmd prints the scheduler ticks.
func TicksCmd(ticks fx.TickSource) *cli.Command {
	return &cli.Command{
		Name: "ticks",
		Help: "ticks:\r\n Prints the number of ticks since the scheduler started.\r\n",
		Func: func(c *cli.Context) bool {
			c.Printf("Ticks: %d\r\n", ticks.Ticks())
			return false
		},
	}
}

// LogLevelCmd shows or sets the serial debug log level.
func LogLevelCmd(s SerialControl) *cli.Command {
	return &cli.Command{
		Name:   "loglevel",
		Help:   "loglevel [LEVEL]:\r\n Shows or sets the debug log level (" + strings.Join(serial.LogLevelNames(), "|") + ").\r\n",
		Params: cli.VariableParams,
		Func: func(c *cli.Context) bool {
			switch len(c.Args) {
			case 0:
			case 1:
				level, err := serial.ParseLogLevel(c.Args[0])
				if err == nil {
					err = s.SetLogLevel(level)
				}
				if err != nil {
					c.Err(err)
					return false
				}
			default:
				c.Print(cli.MsgIncorrectParams)
				return false
			}
			c.Printf("Log level: %s\r\n", s.Level())
			return false
		},
	}
}

// StatsCmd prints serial buffer statistics.
func StatsCmd(s SerialControl) *cli.Command {
	return &cli.Command{
		Name: "stats",
		Help: "stats:\r\n Prints serial buffer statistics.\r\n",
		Func: func(c *cli.Context) bool {
			st := s.Stats()
			c.Printf("RX: %d buffered, %d dropped\r\nTX: %d buffered, %d dropped\r\n",
				st.RxBuffered, st.RxDropped, st.TxBuffered, st.TxDropped)
			return false
		},
	}
}

// Commands returns the commands supported by d, in help order.
func Commands(d Device) []*cli.Command {
	cmds := []*cli.Command{ClsCmd()}
	if d.Resetter != nil {
		cmds = append(cmds, ResetCmd(d.Resetter))
	}
	cmds = append(cmds, VersionCmd(d.Version))
	if d.Ticks != nil {
		cmds = append(cmds, TicksCmd(d.Ticks))
	}
	if d.Serial != nil {
		cmds = append(cmds, LogLevelCmd(d.Serial), StatsCmd(d.Serial))
	}
	return cmds
}

// Register registers the commands of d.
func Register(interp *cli.Interpreter, d Device) error {
	return interp.Register(Commands(d)...)
}
