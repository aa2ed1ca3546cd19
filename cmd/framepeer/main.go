package main

import (
	"context"
	"flag"
	"io"
	"net/http"

	"github.com/golang/glog"

	"github.com/robotalks/inkframe.go/pkg/frameloop"
	"github.com/robotalks/inkframe.go/pkg/framework"
	"github.com/robotalks/inkframe.go/pkg/link"
	"github.com/robotalks/inkframe.go/pkg/link/serial"
	"github.com/robotalks/inkframe.go/pkg/link/websocket"
	"github.com/robotalks/inkframe.go/pkg/peer"
	"github.com/robotalks/inkframe.go/pkg/peer/sh"
)

var (
	listenAddr string
	wsAddr     string
	serialPeer bool
	framePath  string
	fillByte   uint
	chatter    string
)

func init() {
	flag.StringVar(&listenAddr, "listen", listenAddr, "Serve the frame protocol on this TCP address.")
	flag.StringVar(&wsAddr, "ws", wsAddr, "Serve the frame protocol over websocket on this HTTP address.")
	flag.BoolVar(&serialPeer, "serial", serialPeer, "Serve the frame protocol on the serial port.")
	flag.StringVar(&framePath, "frame", framePath, "Raw frame file to serve.")
	flag.UintVar(&fillByte, "fill", 0x11, "Byte value of the frame served without -frame.")
	flag.StringVar(&chatter, "chatter", chatter, "Text sent before every ACK.")
	link.SetupFlags()
	serial.SetupFlags()
	frameloop.SetupFlags()
	sh.SetupFlags()
}

func main() {
	flag.Parse()
	defer glog.Flush()

	server := peer.NewServer(nil)
	server.Config = *link.Default()
	server.Chatter = chatter
	if framePath != "" {
		if err := server.LoadFrame(framePath); err != nil {
			glog.Exit(err)
		}
	} else {
		frame := make([]byte, frameloop.Default().FrameSize)
		for i := range frame {
			frame[i] = byte(fillByte)
		}
		server.SetFrame(frame)
	}

	shell := sh.New(server)
	interactive := shell.Interactive || flag.NArg() > 0
	runner := framework.NewRunner()
	if !interactive {
		runner.HandleSignals()
	}
	if listenAddr != "" {
		runner.Go(framework.NamedRun("tcp", framework.RunnableFunc(func(ctx context.Context) error {
			return server.ListenAndServe(ctx, listenAddr)
		})))
	}
	if wsAddr != "" {
		runner.Go(framework.NamedRun("websocket", framework.RunnableFunc(func(ctx context.Context) error {
			srv := &http.Server{
				Addr: wsAddr,
				Handler: websocket.Handler(func(rw io.ReadWriter) {
					if err := server.Serve(ctx, rw); err != nil && err != context.Canceled {
						glog.V(1).Infof("websocket peer: %v", err)
					}
				}),
			}
			glog.Infof("peer listening on ws://%s", wsAddr)
			return framework.RunWithContextCloser(ctx, srv, srv.ListenAndServe)
		})))
	}
	if serialPeer {
		port, err := serial.Default().Open()
		if err != nil {
			glog.Exit(err)
		}
		glog.Infof("peer serving on %s", port.Name)
		runner.Go(framework.NamedRun("serial", framework.RunnableFunc(func(ctx context.Context) error {
			return server.Serve(ctx, port.Raw())
		})))
	}

	if interactive {
		shell.Run(flag.Args()...)
		runner.Stop()
	}
	if err := runner.Wait(); err != nil {
		glog.Error(err)
	}
}
