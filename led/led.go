package led

import (
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"

	"github.com/gr-butler/airnode/env"
)

type Mode int

const (
	ModeOff Mode = iota
	ModeOn
	ModeBlinkSlow
	ModeBlinkFast
)

func (m Mode) String() string {
	switch m {
	case ModeOff:
		return "off"
	case ModeOn:
		return "on"
	case ModeBlinkSlow:
		return "blink-slow"
	case ModeBlinkFast:
		return "blink-fast"
	}
	return "unknown"
}

type LED struct {
	Name    string
	lock    sync.Mutex
	mode    Mode
	change  chan Mode
	close   chan struct{}
	gpioPin gpio.PinOut
}

// NewLED drives pin from its own goroutine until Close is called.
func NewLED(name string, pin gpio.PinOut) *LED {
	l := &LED{
		Name:    name,
		mode:    ModeOff,
		change:  make(chan Mode, 1),
		close:   make(chan struct{}),
		gpioPin: pin,
	}
	l.out(gpio.Low)
	go l.run()
	return l
}

// ByName opens the LED on a named GPIO and flickers it to show it's working.
func ByName(name string, gpioName string) *LED {
	logger.Infof("Creating new LED on pin [%v] called [%v]", gpioName, name)
	p := gpioreg.ByName(gpioName)
	if p == nil {
		// a missing LED is not critical
		logger.Errorf("Failed to find %v pin", gpioName)
		return NewLED(name, nil)
	}
	for i := 0; i < 3; i++ {
		_ = p.Out(gpio.High)
		time.Sleep(time.Millisecond * 100)
		_ = p.Out(gpio.Low)
		time.Sleep(time.Millisecond * 100)
	}
	return NewLED(name, p)
}

// SetMode never blocks; only the latest mode matters.
func (l *LED) SetMode(m Mode) {
	l.lock.Lock()
	l.mode = m
	l.lock.Unlock()
	select {
	case <-l.change:
	default:
	}
	l.change <- m
}

func (l *LED) Mode() Mode {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.mode
}

func (l *LED) Close() {
	close(l.close)
}

func (l *LED) run() {
	var ticker *time.Ticker
	var tick <-chan time.Time
	level := gpio.Low
	stop := func() {
		if ticker != nil {
			ticker.Stop()
			ticker = nil
			tick = nil
		}
	}
	for {
		select {
		case m := <-l.change:
			stop()
			switch m {
			case ModeOn:
				level = gpio.High
			case ModeBlinkSlow:
				ticker = time.NewTicker(env.LEDBlinkSlow)
				tick = ticker.C
				level = gpio.High
			case ModeBlinkFast:
				ticker = time.NewTicker(env.LEDBlinkFast)
				tick = ticker.C
				level = gpio.High
			default:
				level = gpio.Low
			}
			l.out(level)
		case <-tick:
			level = !level
			l.out(level)
		case <-l.close:
			stop()
			l.out(gpio.Low)
			return
		}
	}
}

func (l *LED) out(level gpio.Level) {
	if l.gpioPin == nil {
		return
	}
	if err := l.gpioPin.Out(level); err != nil {
		logger.Debugf("LED %v write failed [%v]", l.Name, err)
	}
}
