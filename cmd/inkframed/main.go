package main

import (
	"flag"
	"io"
	"os"
	"strings"

	"github.com/golang/glog"

	"github.com/robotalks/inkframe.go/pkg/clock"
	"github.com/robotalks/inkframe.go/pkg/display"
	"github.com/robotalks/inkframe.go/pkg/display/epd"
	"github.com/robotalks/inkframe.go/pkg/env"
	"github.com/robotalks/inkframe.go/pkg/frameloop"
	"github.com/robotalks/inkframe.go/pkg/framework"
	"github.com/robotalks/inkframe.go/pkg/link"
	"github.com/robotalks/inkframe.go/pkg/link/serial"
	"github.com/robotalks/inkframe.go/pkg/link/stream"
	"github.com/robotalks/inkframe.go/pkg/link/websocket"
	"github.com/robotalks/inkframe.go/pkg/mqtt"
	"github.com/robotalks/inkframe.go/pkg/profile"
	"github.com/robotalks/inkframe.go/pkg/status"
)

var (
	mqttURL     string
	displayName = "epd"
	profilePath string
	ledPin      string
	description = "E-Paper Frame"
)

func init() {
	if val := os.Getenv("INKFRAME_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL for status reports, empty to disable.")
	flag.StringVar(&displayName, "display", displayName, "Display sink: epd, log.")
	flag.StringVar(&profilePath, "profile", profilePath, "TOML deployment profile.")
	flag.StringVar(&ledPin, "led", ledPin, "GPIO of the status LED, empty if not wired.")
	flag.StringVar(&description, "description", description, "Description published in MQTT meta.")
	link.SetupFlags()
	serial.SetupFlags()
	frameloop.SetupFlags()
	epd.SetupFlags()
}

func openTransport(conf *serial.Config) (link.Transport, io.Closer, error) {
	switch {
	case strings.HasPrefix(conf.Device, "tcp://"):
		t, err := stream.Dial(conf.Device)
		return t, t, err
	case strings.HasPrefix(conf.Device, "ws://"), strings.HasPrefix(conf.Device, "wss://"):
		t, err := websocket.Dial(conf.Device, "")
		return t, t, err
	default:
		p, err := conf.Open()
		return p, p, err
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func newSink() (display.Sink, io.Closer, error) {
	switch displayName {
	case "log":
		return &display.Log{}, nopCloser{}, nil
	default:
		d, err := epd.Default().NewDriver()
		return d, d, err
	}
}

func main() {
	flag.Parse()
	defer glog.Flush()

	if profilePath != "" {
		p, err := profile.Load(profilePath)
		if err != nil {
			glog.Exit(err)
		}
		err = p.Apply(profile.Targets{
			Link:    link.Default(),
			Serial:  serial.Default(),
			Loop:    frameloop.Default(),
			EPD:     epd.Default(),
			MQTT:    &mqttURL,
			Display: &displayName,
		}, profile.ExplicitFlags(flag.CommandLine))
		if err != nil {
			glog.Exit(err)
		}
	}

	transport, transportCloser, err := openTransport(serial.Default())
	if err != nil {
		glog.Exitf("open transport: %v", err)
	}
	defer transportCloser.Close()
	recv, err := link.Default().NewReceiver(transport, clock.System{})
	if err != nil {
		glog.Exit(err)
	}

	sink, sinkCloser, err := newSink()
	if err != nil {
		glog.Exitf("display: %v", err)
	}
	defer sinkCloser.Close()

	runner := framework.NewRunner().HandleSignals()
	indicators := status.Multi{status.Log{}}
	if ledPin != "" {
		led, err := status.NewLED(ledPin)
		if err != nil {
			glog.Exit(err)
		}
		indicators = append(indicators, led)
	}

	var pub *mqtt.Publisher
	if mqttURL != "" {
		deviceID := env.DeviceID()
		pub, err = mqtt.NewPublisher(mqttURL, deviceID, mqtt.Meta{
			Description: description,
			FrameSize:   frameloop.Default().FrameSize,
		})
		if err != nil {
			glog.Exit(err)
		}
		glog.Infof("reporting to %s as %s", mqttURL, deviceID)
		indicators = append(indicators, pub)
	}

	loop, err := frameloop.Default().NewOrchestrator(recv, sink, indicators, clock.System{})
	if err != nil {
		glog.Exit(err)
	}
	if pub != nil {
		pub.OnRefresh = loop.TriggerNext
		runner.Go(framework.NamedRun("mqtt", pub))
	}
	runner.Go(loop)
	if err := runner.Wait(); err != nil {
		glog.Error(err)
	}
}
