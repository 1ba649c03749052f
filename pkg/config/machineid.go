package config

import (
	"os"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
)

// MachineID retrieves an ID identifying the machine, protected so the raw
// machine ID is not published. It falls back to the host name.
func MachineID() string {
	id, err := machineid.ProtectedID("uartcon")
	if err == nil {
		return id[:12]
	}
	glog.Warningf("machine id unavailable: %v", err)
	if host, err := os.Hostname(); err == nil {
		return host
	}
	return "uartcon"
}
