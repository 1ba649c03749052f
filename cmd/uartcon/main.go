package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"
	"log"

	"github.com/golang/glog"

	"github.com/robotalks/uartcon/pkg/config"
	"github.com/robotalks/uartcon/pkg/device"
	fx "github.com/robotalks/uartcon/pkg/framework"
	"github.com/robotalks/uartcon/pkg/serial"
	"github.com/robotalks/uartcon/pkg/transport"
)

func init() {
	config.SetupFlags()
}

func main() {
	flag.Parse()
	defer glog.Flush()

	conf := config.MustLoad()
	listener, err := transport.Listen(conf.URL, conf.TransportOptions())
	if err != nil {
		log.Fatalln(err)
	}
	defer listener.Close()

	dev := device.New(listener, conf.DeviceOptions())
	dev.OnBoot = func(con *serial.Console) {
		glog.Infof("boot #%d on %s", dev.Boots(), conf.URL)
		con.Logf(serial.LogDebug, "boot #%d\r\n", dev.Boots())
	}
	err = fx.NewRunner().HandleSignals().Ignore(context.Canceled).Go(dev).Wait()
	if err != nil {
		log.Fatalln(err)
	}
}
