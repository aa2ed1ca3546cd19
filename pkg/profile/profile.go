// Package profile loads deployment profiles in TOML and applies them onto
// the package configs. Flags given explicitly on the command line win over
// the profile.
package profile

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/robotalks/inkframe.go/pkg/display/epd"
	"github.com/robotalks/inkframe.go/pkg/frameloop"
	"github.com/robotalks/inkframe.go/pkg/link"
	"github.com/robotalks/inkframe.go/pkg/link/serial"
)

// Profile is the file content. Durations are Go duration strings.
type Profile struct {
	Port    string      `toml:"port"`
	MQTT    string      `toml:"mqtt"`
	Display string      `toml:"display"`
	Link    linkSection `toml:"link"`
	Serial  struct {
		Baud        int    `toml:"baud"`
		PollTimeout string `toml:"poll_timeout"`
	} `toml:"serial"`
	Loop loopSection `toml:"loop"`
	EPD  epdSection  `toml:"epd"`

	meta     toml.MetaData
	explicit map[string]bool
}

type linkSection struct {
	Request        string `toml:"request"`
	AckToken       string `toml:"ack_token"`
	SOF            string `toml:"sof"`
	AckTimeout     string `toml:"ack_timeout"`
	SOFTimeout     string `toml:"sof_timeout"`
	HeaderTimeout  string `toml:"header_timeout"`
	PayloadTimeout string `toml:"payload_timeout"`
	Settle         string `toml:"settle"`
	PollInterval   string `toml:"poll_interval"`
}

type loopSection struct {
	FrameSize        int    `toml:"frame_size"`
	Interval         string `toml:"interval"`
	RenderSettle     string `toml:"render_settle"`
	RetryBackoff     string `toml:"retry_backoff"`
	FatalDelay       string `toml:"fatal_delay"`
	SkipDisplaySleep bool   `toml:"skip_display_sleep"`
	Dedupe           string `toml:"dedupe"`
	FallbackAfter    int    `toml:"fallback_after"`
	FallbackImage    string `toml:"fallback_image"`
}

type epdSection struct {
	SPI         string `toml:"spi"`
	Hz          int64  `toml:"hz"`
	RST         string `toml:"rst"`
	DC          string `toml:"dc"`
	Busy        string `toml:"busy"`
	PWR         string `toml:"pwr"`
	BusyTimeout string `toml:"busy_timeout"`
}

// Targets are the configs a profile is applied onto. Nil targets are
// skipped.
type Targets struct {
	Link    *link.Config
	Serial  *serial.Config
	Loop    *frameloop.Config
	EPD     *epd.Config
	MQTT    *string
	Display *string
}

// Load reads a profile file.
func Load(path string) (*Profile, error) {
	var p Profile
	meta, err := toml.DecodeFile(path, &p)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return p.init(meta)
}

// Parse decodes a profile from a string.
func Parse(content string) (*Profile, error) {
	var p Profile
	meta, err := toml.Decode(content, &p)
	if err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}
	return p.init(meta)
}

func (p *Profile) init(meta toml.MetaData) (*Profile, error) {
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("profile: unknown key %q", undecoded[0].String())
	}
	p.meta = meta
	return p, nil
}

// ExplicitFlags returns the names of flags set on the command line.
func ExplicitFlags(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	return set
}

// Apply writes the values defined in the profile onto t, except those
// whose flag is in explicit.
func (p *Profile) Apply(t Targets, explicit map[string]bool) error {
	p.explicit = explicit
	var errs []string
	check := func(err error) {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	if t.MQTT != nil && p.use("mqtt", "mqtt") {
		*t.MQTT = p.MQTT
	}
	if t.Display != nil && p.use("display", "display") {
		*t.Display = p.Display
	}
	if c := t.Serial; c != nil {
		if p.use("port", "port") {
			c.Device = p.Port
		}
		if p.use("baud", "serial", "baud") {
			c.Baud = p.Serial.Baud
		}
		if p.use("serial-poll", "serial", "poll_timeout") {
			check(setDuration(&c.PollTimeout, "serial.poll_timeout", p.Serial.PollTimeout))
		}
	}
	if c := t.Link; c != nil {
		s := &p.Link
		if p.use("", "link", "request") {
			c.Request = s.Request
		}
		if p.use("ack-token", "link", "ack_token") {
			c.AckToken = s.AckToken
		}
		if p.use("sof", "link", "sof") {
			if sof, err := link.ParseHex(s.SOF); err != nil {
				check(fmt.Errorf("link.sof: %w", err))
			} else {
				c.SOF = sof
			}
		}
		if p.use("ack-timeout", "link", "ack_timeout") {
			check(setDuration(&c.AckTimeout, "link.ack_timeout", s.AckTimeout))
		}
		if p.use("sof-timeout", "link", "sof_timeout") {
			check(setDuration(&c.SOFTimeout, "link.sof_timeout", s.SOFTimeout))
		}
		if p.use("header-timeout", "link", "header_timeout") {
			check(setDuration(&c.HeaderTimeout, "link.header_timeout", s.HeaderTimeout))
		}
		if p.use("payload-timeout", "link", "payload_timeout") {
			check(setDuration(&c.PayloadTimeout, "link.payload_timeout", s.PayloadTimeout))
		}
		if p.use("settle", "link", "settle") {
			check(setDuration(&c.SettleDelay, "link.settle", s.Settle))
		}
		if p.use("poll-interval", "link", "poll_interval") {
			check(setDuration(&c.PollInterval, "link.poll_interval", s.PollInterval))
		}
	}
	if c := t.Loop; c != nil {
		s := &p.Loop
		if p.use("frame-size", "loop", "frame_size") {
			c.FrameSize = s.FrameSize
		}
		if p.use("interval", "loop", "interval") {
			check(setDuration(&c.Interval, "loop.interval", s.Interval))
		}
		if p.use("render-settle", "loop", "render_settle") {
			check(setDuration(&c.RenderSettle, "loop.render_settle", s.RenderSettle))
		}
		if p.use("retry-backoff", "loop", "retry_backoff") {
			check(setDuration(&c.RetryBackoff, "loop.retry_backoff", s.RetryBackoff))
		}
		if p.use("fatal-delay", "loop", "fatal_delay") {
			check(setDuration(&c.FatalDelay, "loop.fatal_delay", s.FatalDelay))
		}
		if p.use("skip-display-sleep", "loop", "skip_display_sleep") {
			c.SkipDisplaySleep = s.SkipDisplaySleep
		}
		if p.use("dedupe", "loop", "dedupe") {
			c.Dedupe = s.Dedupe
		}
		if p.use("fallback-after", "loop", "fallback_after") {
			c.FallbackAfter = s.FallbackAfter
		}
		if p.use("fallback-image", "loop", "fallback_image") {
			c.FallbackImage = s.FallbackImage
		}
	}
	if c := t.EPD; c != nil {
		s := &p.EPD
		if p.use("epd-spi", "epd", "spi") {
			c.SPIPort = s.SPI
		}
		if p.use("epd-hz", "epd", "hz") {
			c.SPIHz = s.Hz
		}
		if p.use("epd-rst", "epd", "rst") {
			c.RSTPin = s.RST
		}
		if p.use("epd-dc", "epd", "dc") {
			c.DCPin = s.DC
		}
		if p.use("epd-busy", "epd", "busy") {
			c.BusyPin = s.Busy
		}
		if p.use("epd-pwr", "epd", "pwr") {
			c.PWRPin = s.PWR
		}
		if p.use("epd-busy-timeout", "epd", "busy_timeout") {
			check(setDuration(&c.BusyTimeout, "epd.busy_timeout", s.BusyTimeout))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("apply profile: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (p *Profile) use(flagName string, key ...string) bool {
	if !p.meta.IsDefined(key...) {
		return false
	}
	return flagName == "" || !p.explicit[flagName]
}

func setDuration(dst *time.Duration, key, val string) error {
	d, err := time.ParseDuration(strings.TrimSpace(val))
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
