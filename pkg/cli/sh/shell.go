// Package sh is the operator shell talking to consoles from the host side.
package sh

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/uartcon/pkg/config"
	"github.com/robotalks/uartcon/pkg/transport/mqtt"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	ConnectURL  string
	Idle        time.Duration

	Shell  *ishell.Shell
	Config *config.Config
	Conn   *Conn
}

const (
	shellKey          = "$shell"
	unconnectedPrompt = "[none] > "
	upArrow           = "\x1b[A"
)

var (
	// flags

	evalOnly   bool
	outputJSON bool
	connectURL string
	idle       = DefaultIdle

	// commands
	commands = []*ishell.Cmd{
		&DiscoverCmd,
		&ConnectCmd,
		&DisconnectCmd,
		&ExecCmd,
		&UpCmd,
		&RawCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
	flag.StringVar(&connectURL, "c", connectURL, "Console URL to connect on start.")
	flag.DurationVar(&idle, "idle", idle, "Wait this long for more console output.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *config.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,
		ConnectURL:  connectURL,
		Idle:        idle,

		Shell:  ishell.New(),
		Config: conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unconnectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeConnected wraps command func requires a connection.
func MustBeConnected(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Conn == nil {
			c.Err(ErrNotConnected)
			return
		}
		fn(c)
	}
}

// FormatMeta prints Meta into friendly string for display.
func FormatMeta(meta mqtt.Meta) string {
	var w bytes.Buffer
	fmt.Fprintf(&w, "%s", meta.ID)
	if meta.Description != "" {
		fmt.Fprintf(&w, ": %s", meta.Description)
	}
	if meta.Version != "" {
		fmt.Fprintf(&w, " (%s)", meta.Version)
	}
	return w.String()
}

// ConsoleURL builds the URL of console id announced on broker.
func ConsoleURL(broker, id string) (string, error) {
	u, err := url.Parse(broker)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("id", id)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Unescape interprets Go escapes like \r, \x1b in raw input.
func Unescape(text string) (string, error) {
	return strconv.Unquote(`"` + strings.ReplaceAll(text, `"`, `\"`) + `"`)
}

// DisplayText converts console output for the host terminal.
func DisplayText(out string) string {
	return strings.ReplaceAll(out, "\r\n", "\n")
}

// Discover lists announced consoles.
func (s *Shell) Discover() ([]mqtt.Meta, error) {
	return mqtt.Discover(context.TODO(), s.Config.Broker, mqtt.DefaultDiscoverTimeout)
}

// SelectConsole discovers consoles and asks for a choice.
func (s *Shell) SelectConsole() (*mqtt.Meta, error) {
	found, err := s.Discover()
	if err != nil || len(found) == 0 {
		return nil, err
	}
	var index int
	if len(found) > 1 {
		if !s.Interactive {
			return nil, fmt.Errorf("more than 1 consoles discovered in non-interactive mode")
		}
		items := make([]string, len(found))
		for n, meta := range found {
			items[n] = FormatMeta(meta)
		}
		index = s.Shell.MultiChoice(items, "Which one to connect?")
	}
	return &found[index], nil
}

// Connect connects to the console at url and returns its greeting.
func (s *Shell) Connect(url string) (string, error) {
	conn, err := Open(url)
	if err != nil {
		return "", err
	}
	s.Disconnect()
	s.Conn = conn
	s.Shell.SetPrompt(fmt.Sprintf("%s > ", url))
	return conn.Drain(context.TODO(), s.Config.Prompt, s.Idle)
}

// Disconnect disconnects the current console.
func (s *Shell) Disconnect() {
	if s.Conn != nil {
		s.Conn.Close()
		s.Conn = nil
		s.Shell.SetPrompt(unconnectedPrompt)
	}
}

// Exchange sends data to the console and returns the reply.
func (s *Shell) Exchange(data string) (string, error) {
	if s.Conn == nil {
		return "", ErrNotConnected
	}
	return s.Conn.Exchange(context.TODO(), data, s.Config.Prompt, s.Idle)
}

func (s *Shell) printReply(c *ishell.Context, sent, out string) {
	if s.OutputJSON {
		data, err := json.Marshal(map[string]string{"sent": sent, "output": out})
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(string(data))
		return
	}
	c.Print(DisplayText(out))
	if !strings.HasSuffix(out, "\n") {
		c.Println()
	}
}

func (s *Shell) exchange(c *ishell.Context, data string) {
	out, err := s.Exchange(data)
	s.printReply(c, data, out)
	if err != nil {
		c.Err(err)
	}
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if s.ConnectURL != "" {
		if s.Interactive {
			s.Shell.Printf("Connecting %s ...\n", s.ConnectURL)
		}
		greeting, err := s.Connect(s.ConnectURL)
		if err != nil {
			log.Fatalf("connect %q failed: %v", s.ConnectURL, err)
		}
		if s.Interactive {
			s.Shell.Print(DisplayText(greeting))
			s.Shell.Println()
		}
	}
	defer s.Disconnect()

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

var (
	// DiscoverCmd discovers consoles announced on the MQTT broker.
	DiscoverCmd = ishell.Cmd{
		Name:    "discover",
		Aliases: []string{"list", "l"},
		Help:    "lists consoles on the MQTT broker",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			found, err := s.Discover()
			if err != nil {
				c.Err(err)
				return
			}
			if s.OutputJSON {
				if len(found) == 0 {
					// in case found is nil, make it empty slice.
					found = []mqtt.Meta{}
				}
				out, err := json.Marshal(found)
				if err != nil {
					c.Err(err)
					return
				}
				c.Println(string(out))
				return
			}
			if len(found) == 0 {
				c.Println("No consoles found")
				return
			}
			for _, meta := range found {
				c.Println(FormatMeta(meta))
			}
		},
	}

	// ConnectCmd connects a console.
	ConnectCmd = ishell.Cmd{
		Name:    "connect",
		Aliases: []string{"c"},
		Help:    "URL | ID",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			var target string
			switch {
			case len(c.Args) > 1:
				c.Err(fmt.Errorf("at most one URL or ID expected"))
				return
			case len(c.Args) == 1 && strings.Contains(c.Args[0], "/"):
				target = c.Args[0]
			default:
				var id string
				if len(c.Args) == 1 {
					id = c.Args[0]
				} else {
					meta, err := s.SelectConsole()
					if err != nil {
						c.Err(err)
						return
					}
					if meta == nil {
						c.Err(fmt.Errorf("no console discovered"))
						return
					}
					id = meta.ID
				}
				u, err := ConsoleURL(s.Config.Broker, id)
				if err != nil {
					c.Err(err)
					return
				}
				target = u
			}
			greeting, err := s.Connect(target)
			if err != nil {
				c.Err(err)
				return
			}
			if greeting != "" {
				c.Print(DisplayText(greeting))
				c.Println()
			}
		},
	}

	// DisconnectCmd disconnects the current console.
	DisconnectCmd = ishell.Cmd{
		Name:    "disconnect",
		Aliases: []string{"d"},
		Func: func(c *ishell.Context) {
			ShellFrom(c).Disconnect()
		},
	}

	// ExecCmd runs a command line on the console.
	ExecCmd = ishell.Cmd{
		Name:    "exec",
		Aliases: []string{"x"},
		Help:    "LINE...",
		Func: MustBeConnected(func(c *ishell.Context) {
			ShellFrom(c).exchange(c, strings.Join(c.Args, " ")+"\r")
		}),
	}

	// UpCmd recalls and runs the previous line on the console.
	UpCmd = ishell.Cmd{
		Name: "up",
		Help: "re-runs the last console command",
		Func: MustBeConnected(func(c *ishell.Context) {
			ShellFrom(c).exchange(c, upArrow+"\r")
		}),
	}

	// RawCmd sends bytes as typed, with Go escapes.
	RawCmd = ishell.Cmd{
		Name: "raw",
		Help: `TEXT, e.g. raw ticks\r`,
		Func: MustBeConnected(func(c *ishell.Context) {
			text, err := Unescape(strings.Join(c.Args, " "))
			if err != nil {
				c.Err(err)
				return
			}
			ShellFrom(c).exchange(c, text)
		}),
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	config.SetupFlags()
	flag.Parse()
	New(config.MustLoad()).Run(flag.Args()...)
}
