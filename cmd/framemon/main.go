package main

import (
	"flag"
	"os"
	"strings"

	"github.com/golang/glog"
	"github.com/golang/protobuf/jsonpb"

	"github.com/robotalks/inkframe.go/pkg/mqtt"
)

var (
	mqttURL = "mqtt://localhost:1883/inkframe/"
)

func init() {
	if val := os.Getenv("INKFRAME_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
}

func main() {
	flag.Parse()

	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		glog.Exit(err)
	}

	var marshaler jsonpb.Marshaler
	q.Sub("#", func(topic string, payload []byte) {
		if !strings.HasSuffix(topic, "/"+mqtt.TopicStatus) {
			glog.Infof("%s: %s", topic, string(payload))
			return
		}
		report, err := mqtt.DecodeReport(payload)
		if err != nil {
			glog.Warningf("%s: bad report: %v", topic, err)
			return
		}
		out, err := marshaler.MarshalToString(report)
		if err != nil {
			glog.Warningf("%s: %v", topic, err)
			return
		}
		glog.Infof("%s: %s", topic, out)
	})
	if token := q.Connect(); token.Wait() && token.Error() != nil {
		glog.Exit(token.Error())
	}
	<-(chan struct{})(nil)
}
