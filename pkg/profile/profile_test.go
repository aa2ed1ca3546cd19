package profile

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/inkframe.go/pkg/display/epd"
	"github.com/robotalks/inkframe.go/pkg/frameloop"
	"github.com/robotalks/inkframe.go/pkg/link"
	"github.com/robotalks/inkframe.go/pkg/link/serial"
)

const sample = `
port = "/dev/ttyAMA0"
mqtt = "mqtt://broker:1883/inkframe/"

[link]
ack_token = "OK"
sof = "CA FE"
ack_timeout = "2s"
payload_timeout = "1m"

[serial]
baud = 921600

[loop]
interval = "10m"
dedupe = "none"
fallback_after = 3
fallback_image = "/var/lib/inkframe/offline.bin"

[epd]
busy = "GPIO5"
busy_timeout = "30s"
`

type targets struct {
	link   *link.Config
	serial *serial.Config
	loop   *frameloop.Config
	epd    *epd.Config
	mqtt   string
}

func newTargets() *targets {
	return &targets{
		link:   link.NewConfig(),
		serial: serial.NewConfig(),
		loop:   frameloop.NewConfig(),
		epd:    epd.NewConfig(),
	}
}

func (t *targets) Targets() Targets {
	return Targets{Link: t.link, Serial: t.serial, Loop: t.loop, EPD: t.epd, MQTT: &t.mqtt}
}

func TestApply(t *testing.T) {
	p, err := Parse(sample)
	require.NoError(t, err)
	tg := newTargets()
	require.NoError(t, p.Apply(tg.Targets(), nil))

	assert.Equal(t, "/dev/ttyAMA0", tg.serial.Device)
	assert.Equal(t, 921600, tg.serial.Baud)
	assert.Equal(t, "mqtt://broker:1883/inkframe/", tg.mqtt)
	assert.Equal(t, "OK", tg.link.AckToken)
	assert.Equal(t, []byte{0xCA, 0xFE}, tg.link.SOF)
	assert.Equal(t, 2*time.Second, tg.link.AckTimeout)
	assert.Equal(t, time.Minute, tg.link.PayloadTimeout)
	assert.Equal(t, 10*time.Minute, tg.loop.Interval)
	assert.Equal(t, frameloop.DedupeNone, tg.loop.Dedupe)
	assert.Equal(t, 3, tg.loop.FallbackAfter)
	assert.Equal(t, "GPIO5", tg.epd.BusyPin)
	assert.Equal(t, 30*time.Second, tg.epd.BusyTimeout)

	// untouched keys keep their defaults
	assert.Equal(t, 60*time.Second, tg.link.SOFTimeout)
	assert.Equal(t, 192000, tg.loop.FrameSize)
	assert.Equal(t, "GPIO17", tg.epd.RSTPin)
}

func TestExplicitFlagsWin(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Duration("ack-timeout", 10*time.Second, "")
	fs.Int("baud", 115200, "")
	fs.String("port", "auto", "")
	require.NoError(t, fs.Parse([]string{"-ack-timeout=7s", "-port", "/dev/ttyUSB0"}))
	explicit := ExplicitFlags(fs)
	assert.Equal(t, map[string]bool{"ack-timeout": true, "port": true}, explicit)

	p, err := Parse(sample)
	require.NoError(t, err)
	tg := newTargets()
	tg.link.AckTimeout = 7 * time.Second
	tg.serial.Device = "/dev/ttyUSB0"
	require.NoError(t, p.Apply(tg.Targets(), explicit))

	assert.Equal(t, 7*time.Second, tg.link.AckTimeout)
	assert.Equal(t, "/dev/ttyUSB0", tg.serial.Device)
	assert.Equal(t, 921600, tg.serial.Baud, "flag not given, profile applies")
}

func TestApplyErrors(t *testing.T) {
	p, err := Parse(`
[link]
ack_timeout = "soon"
sof = "xyz"
`)
	require.NoError(t, err)
	tg := newTargets()
	err = p.Apply(tg.Targets(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "link.ack_timeout")
	assert.Contains(t, err.Error(), "link.sof")
}

func TestUnknownKey(t *testing.T) {
	_, err := Parse(`[link]
ack_timeuot = "1s"
`)
	assert.Error(t, err)
}

func TestApplyNilTargets(t *testing.T) {
	p, err := Parse(sample)
	require.NoError(t, err)
	assert.NoError(t, p.Apply(Targets{}, nil))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.toml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0644))
	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyAMA0", p.Port)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
