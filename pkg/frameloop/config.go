package frameloop

import (
	"flag"
	"fmt"
	"time"

	"github.com/robotalks/inkframe.go/pkg/clock"
	"github.com/robotalks/inkframe.go/pkg/display"
	"github.com/robotalks/inkframe.go/pkg/status"
)

// Dedupe policies.
const (
	DedupeChecksum = "checksum"
	DedupeNone     = "none"
)

// Config defines the loop timing and policies.
type Config struct {
	FrameSize int
	FillByte  byte

	Interval     time.Duration
	RenderSettle time.Duration
	RetryBackoff time.Duration
	FatalDelay   time.Duration

	// SkipDisplaySleep keeps the display powered after a render.
	SkipDisplaySleep bool
	Dedupe           string

	// FallbackAfter is the number of consecutive failed cycles after which
	// FallbackImage is shown. Zero disables the fallback.
	FallbackAfter int
	FallbackImage string
}

var defaultConfig = Config{
	FrameSize:    192000,
	FillByte:     0xFF,
	Interval:     5 * time.Minute,
	RenderSettle: 5 * time.Second,
	RetryBackoff: 3 * time.Second,
	FatalDelay:   5 * time.Second,
	Dedupe:       DedupeChecksum,
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.IntVar(&defaultConfig.FrameSize, "frame-size", defaultConfig.FrameSize, "Frame buffer capacity in bytes.")
	flag.DurationVar(&defaultConfig.Interval, "interval", defaultConfig.Interval, "Cooldown between updates.")
	flag.DurationVar(&defaultConfig.RenderSettle, "render-settle", defaultConfig.RenderSettle, "Wait after a render before the display sleeps.")
	flag.DurationVar(&defaultConfig.RetryBackoff, "retry-backoff", defaultConfig.RetryBackoff, "Wait after a timed out cycle.")
	flag.DurationVar(&defaultConfig.FatalDelay, "fatal-delay", defaultConfig.FatalDelay, "Wait after a failed cycle.")
	flag.BoolVar(&defaultConfig.SkipDisplaySleep, "skip-display-sleep", defaultConfig.SkipDisplaySleep, "Keep the display powered after render.")
	flag.StringVar(&defaultConfig.Dedupe, "dedupe", defaultConfig.Dedupe, "Render dedupe policy: checksum, none.")
	flag.IntVar(&defaultConfig.FallbackAfter, "fallback-after", defaultConfig.FallbackAfter, "Show the fallback image after this many failed cycles, 0 disables.")
	flag.StringVar(&defaultConfig.FallbackImage, "fallback-image", defaultConfig.FallbackImage, "Raw frame file shown after repeated failures.")
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

// NewDeduper creates the Deduper selected by Dedupe.
func (c *Config) NewDeduper() (Deduper, error) {
	switch c.Dedupe {
	case DedupeChecksum, "":
		return &ChecksumDedupe{}, nil
	case DedupeNone:
		return NoDedupe{}, nil
	default:
		return nil, fmt.Errorf("unknown dedupe policy %q", c.Dedupe)
	}
}

// NewFallback creates the Fallback selected by FallbackAfter and
// FallbackImage.
func (c *Config) NewFallback() (Fallback, error) {
	if c.FallbackAfter <= 0 {
		return NoFallback{}, nil
	}
	if c.FallbackImage == "" {
		return nil, fmt.Errorf("fallback after %d failures requires an image", c.FallbackAfter)
	}
	return &FileFallback{After: c.FallbackAfter, Path: c.FallbackImage}, nil
}

// NewOrchestrator creates an Orchestrator using the config.
func (c *Config) NewOrchestrator(recv Receiver, sink display.Sink, ind status.Indicator, clk clock.Clock) (*Orchestrator, error) {
	if c.FrameSize <= 0 {
		return nil, fmt.Errorf("invalid frame size %d", c.FrameSize)
	}
	dedupe, err := c.NewDeduper()
	if err != nil {
		return nil, err
	}
	fallback, err := c.NewFallback()
	if err != nil {
		return nil, err
	}
	o := New(recv, sink, ind, clk)
	o.Config = *c
	o.Deduper = dedupe
	o.Fallback = fallback
	return o, nil
}
