package uplink

import (
	"time"

	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"

	"github.com/gr-butler/airnode/data"
	"github.com/gr-butler/airnode/env"
	"github.com/gr-butler/airnode/metrics"
	"github.com/gr-butler/airnode/payload"
	"github.com/gr-butler/airnode/scheduler"
)

// Transport carries packets off the node.
type Transport interface {
	// Ready reports whether a send can succeed right now.
	Ready() bool
	Send(p payload.Packet) error
}

// Record is one packet handed to the transport.
type Record struct {
	ID     uuid.UUID
	SentAt time.Time
	Header payload.Header
	Packet payload.Packet
}

// Recorder keeps a history of sent packets. Record must not block.
type Recorder interface {
	Record(r Record)
}

type Notifier interface {
	Printf(format string, args ...interface{})
}

// Cycle encodes and sends the current averages once per reporting window.
type Cycle struct {
	sched     *scheduler.Scheduler
	streams   payload.Averager
	transport Transport
	notify    Notifier
	recorder  Recorder
	header    payload.Header
	task      scheduler.TaskID
}

// New plans the first send env.BootSendDelay from now with a Boot header.
func New(sched *scheduler.Scheduler, streams payload.Averager, transport Transport, notify Notifier) *Cycle {
	c := &Cycle{
		sched:     sched,
		streams:   streams,
		transport: transport,
		notify:    notify,
		header:    payload.Boot,
	}
	c.task = sched.Register(c.run, sched.Now().Add(env.BootSendDelay))
	return c
}

func (c *Cycle) SetRecorder(r Recorder) {
	c.recorder = r
}

// Header is what the next packet will carry.
func (c *Cycle) Header() payload.Header {
	return c.header
}

// SendNow brings the next send forward to now.
func (c *Cycle) SendNow() {
	logger.Info("Send requested")
	c.sched.PlanNow(c.task)
}

// Click marks the next packet as a button click and sends it now.
func (c *Cycle) Click() {
	c.header = payload.ButtonClick
	c.SendNow()
}

func (c *Cycle) run() {
	if !c.transport.Ready() {
		// poll without touching the reporting window
		metrics.TransportWaits.Inc()
		c.sched.PlanCurrentRelative(env.ReadyPollInterval)
		return
	}

	p := payload.Encode(c.header, c.streams)
	c.observe()

	if err := c.transport.Send(p); err != nil {
		logger.Errorf("Failed to send packet [%v] [%v]", p.Hex(), err)
		metrics.UplinkFailures.Inc()
	} else {
		logger.Infof("Packet sent [%v] header [%v]", p.Hex(), c.header)
		metrics.UplinksSent.Inc()
		c.notify.Printf("$SEND: %s", p.Hex())
		if c.recorder != nil {
			c.recorder.Record(Record{
				ID:     uuid.New(),
				SentAt: c.sched.Now(),
				Header: c.header,
				Packet: p,
			})
		}
		c.header = payload.Update
	}

	c.sched.PlanCurrentRelative(env.SendInterval)
}

func (c *Cycle) observe() {
	for _, ch := range data.Channels {
		if v, ok := c.streams.Average(ch); ok {
			metrics.ChannelAverage.WithLabelValues(ch.String()).Set(v)
		}
	}
}
