// Package node ties the measurement streams, sampling cadence, calibration
// coordinator and uplink cycle to one scheduler. Everything here runs on
// the scheduler goroutine, other goroutines go through Post, Press, Event
// and Exec.
package node

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	logger "github.com/sirupsen/logrus"

	"github.com/gr-butler/airnode/calibration"
	"github.com/gr-butler/airnode/console"
	"github.com/gr-butler/airnode/data"
	"github.com/gr-butler/airnode/env"
	"github.com/gr-butler/airnode/led"
	"github.com/gr-butler/airnode/sampling"
	"github.com/gr-butler/airnode/scheduler"
	"github.com/gr-butler/airnode/sensors"
	"github.com/gr-butler/airnode/status"
	"github.com/gr-butler/airnode/transport"
	"github.com/gr-butler/airnode/uplink"
)

var (
	ErrNoIndicator   = errors.New("node: no indicator")
	ErrIndicatorBusy = errors.New("node: indicator in use by calibration")
)

type Notifier interface {
	Printf(format string, args ...interface{})
}

type Config struct {
	Clock clockwork.Clock
	// Sensors by channel, a channel without a sensor stays empty.
	Sensors    map[data.Channel]sampling.Sensor
	Calibrator calibration.Calibrator
	Indicator  calibration.Indicator
	Transport  uplink.Transport
	Notify     Notifier
	Recorder   uplink.Recorder
}

type Node struct {
	Sched       *scheduler.Scheduler
	Streams     *data.Streams
	Cadence     *sampling.Cadence
	Calibration *calibration.Coordinator
	Uplink      *uplink.Cycle

	indicator calibration.Indicator
	notify    Notifier
	commands  *console.Dispatcher
	blinkTask scheduler.TaskID
}

func New(cfg Config) *Node {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	n := &Node{
		Sched:     scheduler.New(cfg.Clock),
		Streams:   data.CreateStreams(),
		indicator: cfg.Indicator,
		notify:    cfg.Notify,
	}
	n.Cadence = sampling.New(n.Sched, n.Streams)
	for _, ch := range data.Channels {
		sensor, ok := cfg.Sensors[ch]
		if !ok || sensor == nil {
			logger.Warnf("No sensor for %v", ch)
			continue
		}
		policy := sampling.SkipOnError
		if ch == data.CO2 {
			policy = sampling.ResetOnError
		}
		n.Cadence.Add(ch, sensor, ch.Period(), policy)
	}

	n.Calibration = calibration.New(n.Sched, n.Cadence, cfg.Calibrator, cfg.Indicator, cfg.Notify)
	n.Uplink = uplink.New(n.Sched, n.Streams, cfg.Transport, cfg.Notify)
	if cfg.Recorder != nil {
		n.Uplink.SetRecorder(cfg.Recorder)
	}
	n.commands = n.dispatcher()
	return n
}

func (n *Node) dispatcher() *console.Dispatcher {
	d := console.NewDispatcher()
	d.Register("AT$SEND", "Send the current averages now", func() ([]string, error) {
		n.SendNow()
		return nil, nil
	})
	d.Register("AT$CALIBRATION", "Start or cancel CO2 calibration", func() ([]string, error) {
		n.ToggleCalibration()
		return nil, nil
	})
	d.Register("AT$BLINK", "LED blink 3 times", func() ([]string, error) {
		return nil, n.Blink()
	})
	d.RegisterSet("AT$LED", "LED on/off, AT$LED=1 or AT$LED=0", func(arg string) ([]string, error) {
		return nil, n.SetLED(arg)
	})
	d.Register("AT$STATUS", "Report channel averages", func() ([]string, error) {
		lines := []string{}
		for _, l := range n.Status() {
			lines = append(lines, l.String())
		}
		return lines, nil
	})
	return d
}

// Run drives the scheduler until ctx is cancelled.
func (n *Node) Run(ctx context.Context) error {
	return n.Sched.Run(ctx)
}

// Click sends now with a ButtonClick header.
func (n *Node) Click() {
	n.Uplink.Click()
}

// Hold toggles CO2 calibration.
func (n *Node) Hold() {
	n.ToggleCalibration()
}

func (n *Node) SendNow() {
	n.Uplink.SendNow()
}

func (n *Node) ToggleCalibration() {
	n.Calibration.Toggle()
}

func (n *Node) Status() []status.Line {
	return status.Report(n.Streams)
}

// TransportEvent shows link state on the indicator while calibration is
// not using it.
func (n *Node) TransportEvent(e transport.Event) {
	logger.Debugf("Transport event [%v]", e)
	switch e {
	case transport.JoinOK:
		n.notify.Printf("$JOIN_OK")
	case transport.JoinError:
		n.notify.Printf("$JOIN_ERROR")
	}
	if n.Calibration.Active() || n.indicator == nil {
		return
	}
	switch e {
	case transport.JoinError, transport.SendError:
		n.indicator.SetMode(led.ModeBlinkFast)
	case transport.SendStart:
		n.indicator.SetMode(led.ModeOn)
	case transport.JoinOK, transport.SendDone:
		n.indicator.SetMode(led.ModeOff)
	}
}

func (n *Node) indicatorFree() error {
	if n.indicator == nil {
		return ErrNoIndicator
	}
	if n.Calibration.Active() {
		return ErrIndicatorBusy
	}
	return nil
}

// Blink flashes the indicator LEDBlinkCount times then turns it off.
func (n *Node) Blink() error {
	if err := n.indicatorFree(); err != nil {
		return err
	}
	d := 2 * env.LEDBlinkCount * env.LEDBlinkFast
	n.indicator.SetMode(led.ModeBlinkFast)
	if n.Sched.Registered(n.blinkTask) {
		n.Sched.PlanRelative(n.blinkTask, d)
		return nil
	}
	n.blinkTask = n.Sched.Register(func() {
		n.Sched.Unregister(n.Sched.Current())
		if !n.Calibration.Active() {
			n.indicator.SetMode(led.ModeOff)
		}
	}, n.Sched.Now().Add(d))
	return nil
}

// SetLED switches the indicator on ("1") or off ("0").
func (n *Node) SetLED(arg string) error {
	if err := n.indicatorFree(); err != nil {
		return err
	}
	var m led.Mode
	switch strings.ToUpper(strings.TrimSpace(arg)) {
	case "1", "ON":
		m = led.ModeOn
	case "0", "OFF":
		m = led.ModeOff
	default:
		return fmt.Errorf("node: bad LED value [%v]", arg)
	}
	n.Sched.Unregister(n.blinkTask)
	n.indicator.SetMode(m)
	return nil
}

// Post runs fn on the scheduler goroutine.
func (n *Node) Post(fn func()) {
	n.Sched.Post(fn)
}

// Press hands a button press to the scheduler goroutine.
func (n *Node) Press(p sensors.Press) {
	n.Post(func() {
		if p == sensors.Hold {
			n.Hold()
			return
		}
		n.Click()
	})
}

// Event hands a transport event to the scheduler goroutine.
func (n *Node) Event(e transport.Event) {
	n.Post(func() { n.TransportEvent(e) })
}

// call runs fn on the scheduler goroutine and waits for it.
func (n *Node) call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	n.Post(func() {
		fn()
		close(done)
	})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Exec runs one console command line and returns its output.
func (n *Node) Exec(ctx context.Context, line string) []string {
	var out []string
	if err := n.call(ctx, func() { out = n.commands.Execute(line) }); err != nil {
		logger.Errorf("Command [%v] not run [%v]", line, err)
		return []string{console.Error}
	}
	return out
}

type Snapshot struct {
	Time               time.Time     `json:"time"`
	Header             string        `json:"header"`
	Calibration        string        `json:"calibration"`
	CalibrationCounter int           `json:"calibration_counter"`
	Channels           []status.Line `json:"channels"`
}

// Snapshot reads the node state from the scheduler goroutine.
func (n *Node) Snapshot(ctx context.Context) (Snapshot, error) {
	var s Snapshot
	err := n.call(ctx, func() {
		s = Snapshot{
			Time:               n.Sched.Now(),
			Header:             n.Uplink.Header().String(),
			Calibration:        n.Calibration.State().String(),
			CalibrationCounter: n.Calibration.Counter(),
			Channels:           n.Status(),
		}
	})
	return s, err
}
