package data

import (
	"time"

	"github.com/gr-butler/airnode/buffer"
	"github.com/gr-butler/airnode/env"
)

// holder for every measurement channel and its rolling window

type Channel int

// Declaration order is the status report order.
const (
	Voltage Channel = iota
	Temperature
	Humidity
	VOC
	Pressure
	CO2
)

// Channels lists every channel in report order.
var Channels = []Channel{Voltage, Temperature, Humidity, VOC, Pressure, CO2}

type channelInfo struct {
	name      string
	unit      string
	precision int
	period    time.Duration
}

var info = map[Channel]channelInfo{
	Voltage:     {name: "Voltage", unit: "V", precision: 1, period: env.MeasureInterval},
	Temperature: {name: "Temperature", unit: "C", precision: 1, period: env.MeasureInterval},
	Humidity:    {name: "Humidity", unit: "%", precision: 1, period: env.MeasureInterval},
	VOC:         {name: "VOC", unit: "ppb", precision: 1, period: env.MeasureIntervalVOC},
	Pressure:    {name: "Pressure", unit: "Pa", precision: 0, period: env.MeasureIntervalBarometer},
	CO2:         {name: "CO2", unit: "ppm", precision: 0, period: env.MeasureIntervalCO2},
}

func (c Channel) String() string {
	if i, ok := info[c]; ok {
		return i.name
	}
	return "Unknown"
}

func (c Channel) Unit() string {
	return info[c].unit
}

// Precision is the number of decimal places used when reporting the channel.
func (c Channel) Precision() int {
	return info[c].precision
}

// Period is the nominal sampling period of the channel.
func (c Channel) Period() time.Duration {
	return info[c].period
}

// Capacity is the number of samples that fit in one reporting window.
// Battery voltage is fixed at env.VoltageSamples.
func Capacity(c Channel) int {
	if c == Voltage {
		return env.VoltageSamples
	}
	return int(env.SendInterval / c.Period())
}

type Streams struct {
	buffers map[Channel]*buffer.Stream
}

func CreateStreams() *Streams {
	s := Streams{}

	s.buffers = make(map[Channel]*buffer.Stream)
	for _, c := range Channels {
		s.buffers[c] = buffer.NewStream(Capacity(c))
	}

	return &s
}

func (s *Streams) Stream(c Channel) *buffer.Stream {
	return s.buffers[c]
}

// Average returns the rolling average of channel c.
func (s *Streams) Average(c Channel) (float64, bool) {
	b, ok := s.buffers[c]
	if !ok {
		return 0, false
	}
	return b.Average()
}
