package serial

import (
	"flag"
	"os"
	"time"
)

const (
	// AutoDetect as the device name picks the first USB serial port.
	AutoDetect = "auto"
	// DefaultPollTimeout is the read timeout used to probe for input.
	DefaultPollTimeout = 10 * time.Millisecond
)

// Config defines the UART settings.
type Config struct {
	// Device is the port name, e.g. /dev/ttyAMA0, COM3 or "auto".
	Device string
	Baud   int
	// PollTimeout bounds how long IsReadable waits for a byte.
	PollTimeout time.Duration
}

var defaultConfig = Config{
	Device:      AutoDetect,
	Baud:        115200,
	PollTimeout: DefaultPollTimeout,
}

func init() {
	if val := os.Getenv("INKFRAME_PORT"); val != "" {
		defaultConfig.Device = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.Device, "port", defaultConfig.Device, "Serial device connected to the peer, \"auto\" to detect.")
	flag.IntVar(&defaultConfig.Baud, "baud", defaultConfig.Baud, "Serial baud rate.")
	flag.DurationVar(&defaultConfig.PollTimeout, "serial-poll", defaultConfig.PollTimeout, "Max wait of a single readability poll.")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a config with defaults.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}
