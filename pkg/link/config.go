package link

import (
	"encoding/hex"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/robotalks/inkframe.go/pkg/clock"
)

// Protocol defaults.
const (
	DefaultRequest  = "SENDIMG\n"
	DefaultAckToken = "ACK"
)

// DefaultSOF is the default start-of-frame marker.
var DefaultSOF = []byte{0xAA, 0x55, 0xAA, 0x55}

// Config defines the wire tokens and phase deadlines.
type Config struct {
	Request     string
	AckToken    string
	SOF         []byte
	AckLineSize int

	SettleDelay    time.Duration
	AckTimeout     time.Duration
	SOFTimeout     time.Duration
	HeaderTimeout  time.Duration
	PayloadTimeout time.Duration

	// PollInterval is slept between polls which found no input. Zero
	// spins.
	PollInterval time.Duration
	// ProgressBytes logs (V(2)) every time this many payload bytes arrived.
	ProgressBytes int
	// ProgressInterval logs the payload progress periodically.
	ProgressInterval time.Duration
}

var defaultConfig = Config{
	Request:          DefaultRequest,
	AckToken:         DefaultAckToken,
	SOF:              DefaultSOF,
	AckLineSize:      64,
	SettleDelay:      20 * time.Millisecond,
	AckTimeout:       10 * time.Second,
	SOFTimeout:       60 * time.Second,
	HeaderTimeout:    5 * time.Second,
	PayloadTimeout:   180 * time.Second,
	ProgressBytes:    4096,
	ProgressInterval: 2 * time.Second,
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.AckToken, "ack-token", defaultConfig.AckToken, "Substring which acknowledges a request.")
	flag.Var((*hexBytes)(&defaultConfig.SOF), "sof", "Start-of-frame marker in hex.")
	flag.DurationVar(&defaultConfig.AckTimeout, "ack-timeout", defaultConfig.AckTimeout, "Deadline for the ACK line.")
	flag.DurationVar(&defaultConfig.SOFTimeout, "sof-timeout", defaultConfig.SOFTimeout, "Deadline for the start-of-frame marker.")
	flag.DurationVar(&defaultConfig.HeaderTimeout, "header-timeout", defaultConfig.HeaderTimeout, "Deadline for the length header.")
	flag.DurationVar(&defaultConfig.PayloadTimeout, "payload-timeout", defaultConfig.PayloadTimeout, "Deadline for the whole payload.")
	flag.DurationVar(&defaultConfig.SettleDelay, "settle", defaultConfig.SettleDelay, "Delay after sending a request.")
	flag.DurationVar(&defaultConfig.PollInterval, "poll-interval", defaultConfig.PollInterval, "Sleep between empty polls, 0 to spin.")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a config with defaults.
func NewConfig() *Config {
	conf := defaultConfig
	conf.SOF = append([]byte(nil), defaultConfig.SOF...)
	return &conf
}

// Validate checks the config is usable.
func (c *Config) Validate() error {
	if c.Request == "" {
		return fmt.Errorf("%w: empty request", ErrInvalidConfig)
	}
	if c.AckToken == "" {
		return fmt.Errorf("%w: empty ACK token", ErrInvalidConfig)
	}
	if len(c.SOF) == 0 {
		return fmt.Errorf("%w: empty start-of-frame marker", ErrInvalidConfig)
	}
	if c.AckLineSize < 2 {
		return fmt.Errorf("%w: ACK line size %d", ErrInvalidConfig, c.AckLineSize)
	}
	return nil
}

// NewReceiver creates a Receiver using the config.
func (c *Config) NewReceiver(t Transport, clk clock.Clock) (*Receiver, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	r := NewReceiver(t, clk)
	r.Config = *c
	return r, nil
}

type hexBytes []byte

func (h *hexBytes) String() string {
	return strings.ToUpper(hex.EncodeToString(*h))
}

func (h *hexBytes) Set(s string) error {
	b, err := ParseHex(s)
	if err != nil {
		return err
	}
	*h = b
	return nil
}

// ParseHex decodes a hex string like "AA 55 AA 55" or "aa:55:aa:55".
func ParseHex(s string) ([]byte, error) {
	return hex.DecodeString(strings.NewReplacer(" ", "", ":", "").Replace(s))
}
