package sensors

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	logger "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/gpio/gpioutil"

	"github.com/gr-butler/airnode/env"
)

type Press int

const (
	Click Press = iota
	Hold
)

func (p Press) String() string {
	if p == Hold {
		return "hold"
	}
	return "click"
}

// Button turns edges on an active low input into clicks and holds. A press
// released after env.ButtonHoldDuration or more is a hold.
type Button struct {
	pin       gpio.PinIn
	clock     clockwork.Clock
	onPress   func(Press)
	pressed   bool
	pressedAt time.Time
}

func NewButton(pinName string, onPress func(Press)) (*Button, error) {
	bp := gpioreg.ByName(pinName)
	if bp == nil {
		return nil, fmt.Errorf("failed to find %v - button pin", pinName)
	}
	logger.Infof("%s: %s", bp, bp.Function())

	if err := bp.In(gpio.PullUp, gpio.BothEdges); err != nil {
		return nil, err
	}
	pin, err := gpioutil.Debounce(bp, env.ButtonDebounce, env.ButtonDebounce, gpio.BothEdges)
	if err != nil {
		logger.Errorf("Failed to set debounce [%v]", err)
		return nil, err
	}
	return newButton(pin, clockwork.NewRealClock(), onPress), nil
}

func newButton(pin gpio.PinIn, clock clockwork.Clock, onPress func(Press)) *Button {
	return &Button{pin: pin, clock: clock, onPress: onPress}
}

// Run watches the pin until ctx is done. onPress is called from this goroutine.
func (b *Button) Run(ctx context.Context) {
	logger.Info("Starting button monitor")
	defer func() { _ = b.pin.Halt() }()
	for ctx.Err() == nil {
		if b.pin.WaitForEdge(100 * time.Millisecond) {
			b.edge(b.pin.Read())
		}
	}
}

func (b *Button) edge(level gpio.Level) {
	if level == gpio.Low {
		if !b.pressed {
			b.pressed = true
			b.pressedAt = b.clock.Now()
		}
		return
	}
	if !b.pressed {
		return
	}
	b.pressed = false
	held := b.clock.Since(b.pressedAt)
	p := Click
	if held >= env.ButtonHoldDuration {
		p = Hold
	}
	logger.Infof("Button %v [%v]", p, held)
	b.onPress(p)
}
