package epd

import (
	"flag"
	"time"
)

// Config defines the SPI port and pins of the panel.
type Config struct {
	// SPIPort is the periph.io SPI port name, empty for the first one.
	SPIPort string
	SPIHz   int64
	RSTPin  string
	DCPin   string
	BusyPin string
	// PWRPin is optional, newer HAT revisions switch panel power.
	PWRPin string

	BusyTimeout time.Duration
}

var defaultConfig = Config{
	SPIHz:       4000000,
	RSTPin:      "GPIO17",
	DCPin:       "GPIO25",
	BusyPin:     "GPIO24",
	BusyTimeout: 60 * time.Second,
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.SPIPort, "epd-spi", defaultConfig.SPIPort, "SPI port of the e-paper panel.")
	flag.Int64Var(&defaultConfig.SPIHz, "epd-hz", defaultConfig.SPIHz, "SPI clock in Hz.")
	flag.StringVar(&defaultConfig.RSTPin, "epd-rst", defaultConfig.RSTPin, "Reset pin.")
	flag.StringVar(&defaultConfig.DCPin, "epd-dc", defaultConfig.DCPin, "Data/command pin.")
	flag.StringVar(&defaultConfig.BusyPin, "epd-busy", defaultConfig.BusyPin, "Busy pin.")
	flag.StringVar(&defaultConfig.PWRPin, "epd-pwr", defaultConfig.PWRPin, "Power pin, empty if not wired.")
	flag.DurationVar(&defaultConfig.BusyTimeout, "epd-busy-timeout", defaultConfig.BusyTimeout, "Max wait for the panel to become idle.")
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
