// Package sh provides an interactive shell to drive a peer.Server.
package sh

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"strconv"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/inkframe.go/pkg/frameloop"
	"github.com/robotalks/inkframe.go/pkg/peer"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool

	Shell  *ishell.Shell
	Server *peer.Server
}

// Info summarizes the served frame.
type Info struct {
	Size     int    `json:"size"`
	Checksum uint32 `json:"checksum"`
	Requests int    `json:"requests"`
}

const (
	shellKey = "$shell"
	prompt   = "peer > "
)

var (
	evalOnly   bool
	outputJSON bool

	commands = []*ishell.Cmd{
		&LoadCmd,
		&FillCmd,
		&FaultCmd,
		&InfoCmd,
	}
)

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// New creates a new shell.
func New(server *peer.Server) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:  ishell.New(),
		Server: server,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(prompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// Info returns the current frame summary.
func (s *Shell) Info() Info {
	frame := s.Server.Frame()
	return Info{
		Size:     len(frame),
		Checksum: frameloop.Checksum(frame),
		Requests: s.Server.Requests(),
	}
}

// Run runs the shell. With args, they are processed as a single command.
func (s *Shell) Run(args ...string) {
	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
	}
}

func (s *Shell) printInfo(c *ishell.Context) {
	info := s.Info()
	if s.OutputJSON {
		out, err := json.Marshal(&info)
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(string(out))
		return
	}
	c.Printf("%d bytes, checksum %d, %d requests\n", info.Size, info.Checksum, info.Requests)
}

var (
	// LoadCmd loads a raw frame file.
	LoadCmd = ishell.Cmd{
		Name:    "load",
		Aliases: []string{"l"},
		Help:    "FILE",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("FILE required"))
				return
			}
			s := ShellFrom(c)
			if err := s.Server.LoadFrame(c.Args[0]); err != nil {
				c.Err(err)
				return
			}
			s.printInfo(c)
		},
	}

	// FillCmd serves a frame of a single byte value.
	FillCmd = ishell.Cmd{
		Name:    "fill",
		Aliases: []string{"f"},
		Help:    "BYTE [SIZE]",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("BYTE required"))
				return
			}
			val, err := strconv.ParseUint(c.Args[0], 0, 8)
			if err != nil {
				c.Err(fmt.Errorf("Invalid BYTE: %v", err))
				return
			}
			size := frameloop.Default().FrameSize
			if len(c.Args) > 1 {
				if size, err = strconv.Atoi(c.Args[1]); err != nil || size < 0 {
					c.Err(fmt.Errorf("Invalid SIZE: %s", c.Args[1]))
					return
				}
			}
			frame := make([]byte, size)
			for i := range frame {
				frame[i] = byte(val)
			}
			s := ShellFrom(c)
			s.Server.SetFrame(frame)
			s.printInfo(c)
		},
	}

	// FaultCmd injects a fault into the next reply.
	FaultCmd = ishell.Cmd{
		Name: "fault",
		Help: "none|silent|nack|nosof|stall|oversize [sticky]",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("FAULT required"))
				return
			}
			fault, err := peer.ParseFault(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			sticky := len(c.Args) > 1 && c.Args[1] == "sticky"
			ShellFrom(c).Server.InjectFault(fault, sticky)
			c.Println("OK")
		},
	}

	// InfoCmd prints the served frame summary.
	InfoCmd = ishell.Cmd{
		Name:    "info",
		Aliases: []string{"i"},
		Help:    "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).printInfo(c)
		},
	}
)
