// Package console is the AT style line interface of the node. It reads
// commands from a serial port (or stdin) and is the sink for the node's
// notification lines.
package console

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	logger "github.com/sirupsen/logrus"
)

const (
	OK    = "OK"
	Error = "ERROR"
	eol   = "\r\n"
)

// Func runs a command and returns the lines printed before the final OK.
type Func func() ([]string, error)

// SetFunc runs the NAME=value form of a command.
type SetFunc func(arg string) ([]string, error)

type command struct {
	help string
	fn   Func
	set  SetFunc
}

// Dispatcher maps command names to handlers. Not safe for concurrent use,
// callers run Execute on the scheduler goroutine.
type Dispatcher struct {
	commands map[string]command
}

func NewDispatcher() *Dispatcher {
	d := &Dispatcher{commands: map[string]command{}}
	d.Register("AT", "Attention", func() ([]string, error) {
		return nil, nil
	})
	d.Register("AT$HELP", "List commands", d.help)
	d.Register("AT+CLAC", "List commands", d.help)
	return d
}

// Register adds or replaces a command. Names are case insensitive.
func (d *Dispatcher) Register(name, help string, fn Func) {
	cmd := d.commands[strings.ToUpper(name)]
	cmd.help, cmd.fn = help, fn
	d.commands[strings.ToUpper(name)] = cmd
}

// RegisterSet adds the NAME=value form of a command.
func (d *Dispatcher) RegisterSet(name, help string, fn SetFunc) {
	cmd := d.commands[strings.ToUpper(name)]
	cmd.help, cmd.set = help, fn
	d.commands[strings.ToUpper(name)] = cmd
}

// Execute runs one input line. Blank lines produce no output.
func (d *Dispatcher) Execute(line string) []string {
	name, arg, isSet := strings.Cut(strings.TrimSpace(line), "=")
	name = strings.ToUpper(name)
	if name == "" {
		return nil
	}
	cmd, ok := d.commands[name]
	if !ok || (isSet && cmd.set == nil) || (!isSet && cmd.fn == nil) {
		logger.Warnf("Unknown command [%v]", line)
		return []string{Error}
	}
	var out []string
	var err error
	if isSet {
		out, err = cmd.set(arg)
	} else {
		out, err = cmd.fn()
	}
	if err != nil {
		logger.Errorf("Command [%v] failed [%v]", name, err)
		return append(out, Error)
	}
	return append(out, OK)
}

func (d *Dispatcher) help() ([]string, error) {
	names := make([]string, 0, len(d.commands))
	for name := range d.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("%s: %s", name, d.commands[name].help))
	}
	return lines, nil
}

// Console serialises writes from the command loop and from notifications.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

func New(w io.Writer) *Console {
	return &Console{w: w}
}

// Printf writes one notification line.
func (c *Console) Printf(format string, args ...interface{}) {
	c.WriteLines(fmt.Sprintf(format, args...))
}

func (c *Console) WriteLines(lines ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, l := range lines {
		if _, err := io.WriteString(c.w, l+eol); err != nil {
			logger.Errorf("Console write failed [%v]", err)
			return
		}
	}
}

// Serve reads lines from r until EOF, passing each to exec and writing back
// the result.
func (c *Console) Serve(r io.Reader, exec func(line string) []string) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		logger.Debugf("Console command [%v]", line)
		c.WriteLines(exec(line)...)
	}
	return scanner.Err()
}
