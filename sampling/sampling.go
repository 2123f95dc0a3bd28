package sampling

import (
	"errors"
	"time"

	logger "github.com/sirupsen/logrus"

	"github.com/gr-butler/airnode/data"
	"github.com/gr-butler/airnode/metrics"
	"github.com/gr-butler/airnode/scheduler"
)

/*
 * Cadence reads every channel's sensor on its own period and feeds the
 * result into the channel's stream.
 */

// ErrNotReady is returned by a sensor that has no new reading yet. The
// tick is skipped without counting as a failure.
var ErrNotReady = errors.New("sensor: data not ready")

// Sensor is one channel's source of readings.
type Sensor interface {
	Sense() (float64, error)
}

// SensorFunc adapts a plain function to Sensor.
type SensorFunc func() (float64, error)

func (f SensorFunc) Sense() (float64, error) {
	return f()
}

// Policy decides what a failed read does to the stream.
type Policy int

const (
	// SkipOnError keeps the history and waits for the next tick.
	SkipOnError Policy = iota
	// ResetOnError throws the history away, the channel reports nothing
	// until it produces good readings again.
	ResetOnError
)

type channel struct {
	sensor   Sensor
	base     time.Duration
	interval time.Duration
	policy   Policy
	task     scheduler.TaskID
}

type Cadence struct {
	sched    *scheduler.Scheduler
	streams  *data.Streams
	channels map[data.Channel]*channel
}

func New(sched *scheduler.Scheduler, streams *data.Streams) *Cadence {
	return &Cadence{
		sched:    sched,
		streams:  streams,
		channels: make(map[data.Channel]*channel),
	}
}

// Add starts sampling ch every interval. The first read happens straight away.
func (c *Cadence) Add(ch data.Channel, sensor Sensor, interval time.Duration, policy Policy) {
	if old, ok := c.channels[ch]; ok {
		c.sched.Unregister(old.task)
	}
	cc := &channel{
		sensor:   sensor,
		base:     interval,
		interval: interval,
		policy:   policy,
	}
	cc.task = c.sched.Register(func() {
		c.Sample(ch)
		c.sched.PlanCurrentRelative(cc.interval)
	}, c.sched.Now())
	c.channels[ch] = cc
	logger.Infof("Sampling %v every [%v]", ch, interval)
}

// Sample takes one reading of ch and applies the channel's failure policy.
func (c *Cadence) Sample(ch data.Channel) {
	cc, ok := c.channels[ch]
	if !ok {
		return
	}
	stream := c.streams.Stream(ch)
	v, err := cc.sensor.Sense()
	if errors.Is(err, ErrNotReady) {
		logger.Debugf("%v not ready, skipping", ch)
		return
	}
	if err != nil {
		metrics.SampleFailures.WithLabelValues(ch.String()).Inc()
		if cc.policy == ResetOnError {
			logger.Warnf("%v read failed, dropping history [%v]", ch, err)
			stream.Reset()
			return
		}
		logger.Warnf("%v read failed [%v]", ch, err)
		return
	}
	logger.Debugf("%v measurement [%v]", ch, v)
	stream.Feed(v)
	metrics.SamplesFed.WithLabelValues(ch.String()).Inc()
}

// SetInterval changes how often ch is read. The next read is planned d from now.
func (c *Cadence) SetInterval(ch data.Channel, d time.Duration) {
	cc, ok := c.channels[ch]
	if !ok {
		logger.Errorf("No sampler for %v", ch)
		return
	}
	if cc.interval == d {
		return
	}
	logger.Infof("%v sampling interval [%v] -> [%v]", ch, cc.interval, d)
	cc.interval = d
	c.sched.PlanRelative(cc.task, d)
}

// Restore puts ch back on the interval it was added with.
func (c *Cadence) Restore(ch data.Channel) {
	if cc, ok := c.channels[ch]; ok {
		c.SetInterval(ch, cc.base)
	}
}

func (c *Cadence) Interval(ch data.Channel) time.Duration {
	if cc, ok := c.channels[ch]; ok {
		return cc.interval
	}
	return 0
}

func (c *Cadence) BaseInterval(ch data.Channel) time.Duration {
	if cc, ok := c.channels[ch]; ok {
		return cc.base
	}
	return 0
}
