// Package calibration runs the user triggered CO2 calibration sequence.
//
// A start request waits env.CalibrationStartDelay for the sensor to settle,
// then issues env.CalibrationTicks calibration actions, one every
// env.CalibrationMeasureInterval, with the CO2 channel sampled at the same
// faster rate. Repeating the request at any point cancels the sequence.
package calibration

import (
	"time"

	logger "github.com/sirupsen/logrus"

	"github.com/gr-butler/airnode/data"
	"github.com/gr-butler/airnode/env"
	"github.com/gr-butler/airnode/led"
	"github.com/gr-butler/airnode/metrics"
	"github.com/gr-butler/airnode/scheduler"
)

type State int

const (
	Idle State = iota
	AwaitingStart
	Running
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingStart:
		return "awaiting-start"
	case Running:
		return "running"
	}
	return "unknown"
}

// Calibrator is the CO2 sensor's calibration action.
type Calibrator interface {
	Calibrate() error
}

type Indicator interface {
	SetMode(m led.Mode)
}

// Sampler owns the CO2 channel's sampling interval.
type Sampler interface {
	SetInterval(ch data.Channel, d time.Duration)
	Restore(ch data.Channel)
}

type Notifier interface {
	Printf(format string, args ...interface{})
}

type Coordinator struct {
	sched     *scheduler.Scheduler
	sampler   Sampler
	sensor    Calibrator
	indicator Indicator
	notify    Notifier
	state     State
	counter   int
	task      scheduler.TaskID
}

func New(sched *scheduler.Scheduler, sampler Sampler, sensor Calibrator, indicator Indicator, notify Notifier) *Coordinator {
	return &Coordinator{
		sched:     sched,
		sampler:   sampler,
		sensor:    sensor,
		indicator: indicator,
		notify:    notify,
	}
}

func (c *Coordinator) State() State {
	return c.state
}

// Counter is the number of calibration ticks still to run.
func (c *Coordinator) Counter() int {
	return c.counter
}

func (c *Coordinator) Active() bool {
	return c.state != Idle
}

// Toggle starts a sequence when idle and cancels one otherwise.
func (c *Coordinator) Toggle() {
	if c.state == Idle {
		c.Start()
		return
	}
	c.Stop()
}

func (c *Coordinator) Start() {
	if c.state != Idle {
		logger.Infof("CO2 calibration already %v", c.state)
		return
	}
	logger.Infof("CO2 calibration starting in [%v]", env.CalibrationStartDelay)
	c.counter = env.CalibrationTicks
	c.state = AwaitingStart
	metrics.CalibrationCounter.Set(float64(c.counter))

	c.indicator.SetMode(led.ModeBlinkFast)
	c.task = c.sched.Register(c.tick, c.sched.Now().Add(env.CalibrationStartDelay))
	c.notify.Printf("$CO2_CALIBRATION: \"START\"")
}

// Stop cancels the pending tick and puts CO2 sampling back on its baseline.
func (c *Coordinator) Stop() {
	if c.state == Idle {
		return
	}
	logger.Infof("CO2 calibration stopping with [%v] ticks left", c.counter)
	c.sched.Unregister(c.task)
	c.task = 0
	c.state = Idle
	c.counter = 0
	metrics.CalibrationCounter.Set(0)

	c.indicator.SetMode(led.ModeOff)
	c.sampler.Restore(data.CO2)
	c.notify.Printf("$CO2_CALIBRATION: \"STOP\"")
}

func (c *Coordinator) tick() {
	if c.state == AwaitingStart {
		c.state = Running
		c.indicator.SetMode(led.ModeBlinkSlow)
		c.sampler.SetInterval(data.CO2, env.CalibrationMeasureInterval)
	}

	if err := c.sensor.Calibrate(); err != nil {
		logger.Errorf("CO2 calibration action failed [%v]", err)
		metrics.CalibrationFailures.Inc()
	}

	c.counter -= 1
	metrics.CalibrationCounter.Set(float64(c.counter))
	c.notify.Printf("$CO2_CALIBRATION_COUNTER: \"%d\"", c.counter)

	if c.counter <= 0 {
		c.Stop()
		return
	}
	c.sched.PlanCurrentRelative(env.CalibrationMeasureInterval)
}
