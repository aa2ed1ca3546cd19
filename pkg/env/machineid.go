// Package env provides information about the host the service runs on.
package env

import (
	"os"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
)

// AppID scopes the device id so the raw machine id is never published.
const AppID = "inkframe"

// DeviceID retrieves a stable ID identifying this device. It falls back to
// the hostname when the machine id is unavailable.
func DeviceID() string {
	id, err := machineid.ProtectedID(AppID)
	if err == nil {
		return id[:16]
	}
	glog.Warningf("machine id unavailable: %v", err)
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "unknown"
}
