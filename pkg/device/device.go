// Package device runs the console firmware: it boots the serial console
// and the command task on each accepted UART and reboots them on reset.
package device

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/uartcon/pkg/cli"
	"github.com/robotalks/uartcon/pkg/cli/cmds/system"
	"github.com/robotalks/uartcon/pkg/console"
	fx "github.com/robotalks/uartcon/pkg/framework"
	"github.com/robotalks/uartcon/pkg/serial"
)

// errReset stops the runners of a boot when reset is requested.
var errReset = errors.New("reset")

// Acceptor hands out UARTs, one at a time.
type Acceptor interface {
	Accept(ctx context.Context) (io.ReadWriteCloser, error)
}

// Options configures the device.
type Options struct {
	Version   string
	TickRate  int
	MaxOutput int
	Serial    serial.Options
	Console   console.Options
}

// DefaultOptions returns the default device options.
func DefaultOptions() Options {
	return Options{
		Version:   system.DefaultVersion,
		TickRate:  fx.DefaultTickRate,
		MaxOutput: cli.DefaultMaxOutput,
		Serial:    serial.DefaultOptions(),
		Console:   console.DefaultOptions(),
	}
}

// Device is the console firmware.
type Device struct {
	Acceptor Acceptor
	Options  Options

	// OnBoot is called with the serial console after each boot.
	OnBoot func(*serial.Console)

	lock  sync.Mutex
	boots int
}

// New creates a Device.
func New(acceptor Acceptor, opts Options) *Device {
	return &Device{Acceptor: acceptor, Options: opts}
}

// Name implements framework.Named.
func (d *Device) Name() string {
	return "device"
}

// Boots returns how many times the device booted.
func (d *Device) Boots() int {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.boots
}

// Run implements framework.Runnable. Each accepted UART is served until
// the peer goes away, then the next one is accepted.
func (d *Device) Run(ctx context.Context) error {
	for {
		rwc, err := d.Acceptor.Accept(ctx)
		if err != nil {
			return err
		}
		l := newLink(rwc)
		err = d.serve(ctx, l)
		l.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			glog.Infof("device: session ended: %v", err)
		}
	}
}

func (d *Device) serve(ctx context.Context, l *link) error {
	for {
		reset, err := d.boot(ctx, l.attach())
		if !reset {
			return err
		}
		glog.Info("device: reset")
	}
}

// boot initializes the clock, the serial console and the command task
// and runs them until the UART fails, ctx is done or reset is requested.
func (d *Device) boot(ctx context.Context, uart io.ReadWriteCloser) (bool, error) {
	d.lock.Lock()
	d.boots++
	d.lock.Unlock()

	clock := fx.NewClock(d.Options.TickRate).Start()
	con := serial.New(uart, d.Options.Serial)

	runner := fx.NewRunnerWith(ctx).Ignore(serial.ErrClosed, errReset)
	resetCh := make(chan struct{})
	var resetOnce sync.Once
	// The reset command does not return until the boot is torn down, so no
	// prompt follows it.
	resetter := system.ResetFunc(func() {
		resetOnce.Do(func() { close(resetCh) })
		<-runner.Context.Done()
	})

	interp := cli.New()
	if d.Options.MaxOutput > 0 {
		interp.MaxOutput = d.Options.MaxOutput
	}
	if err := system.Register(interp, system.Device{
		Version:  d.Options.Version,
		Ticks:    clock,
		Resetter: resetter,
		Serial:   con,
	}); err != nil {
		runner.Stop()
		con.Close()
		return false, err
	}
	session := console.NewSession(con, interp, d.Options.Console)

	waitReset := fx.RunFunc(func(ctx context.Context) error {
		select {
		case <-resetCh:
			con.Flush(ctx)
			return errReset
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	if d.OnBoot != nil {
		d.OnBoot(con)
	}
	err := runner.Go(con, session, fx.NamedRun("reset", waitReset)).WaitAny()
	select {
	case <-resetCh:
		return ctx.Err() == nil, nil
	default:
		return false, err
	}
}
