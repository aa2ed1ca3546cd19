// Package display defines where received frames are rendered.
package display

import (
	"github.com/golang/glog"
)

// Sink renders frames to a persistent display.
type Sink interface {
	// Init wakes and prepares the display for a render.
	Init() error
	// Render shows the first n bytes of buf.
	Render(buf []byte, n int) error
	// Sleep powers the display down; the image is kept.
	Sleep() error
}

// Log is a Sink which only logs, for headless runs.
type Log struct {
	Renders int
	LastLen int
}

// Init implements Sink.
func (l *Log) Init() error {
	glog.V(1).Info("display: init")
	return nil
}

// Render implements Sink.
func (l *Log) Render(buf []byte, n int) error {
	l.Renders++
	l.LastLen = n
	glog.Infof("display: render %d bytes", n)
	return nil
}

// Sleep implements Sink.
func (l *Log) Sleep() error {
	glog.V(1).Info("display: sleep")
	return nil
}
