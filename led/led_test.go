package led

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

func Test_LED_SetMode(t *testing.T) {
	p := &gpiotest.Pin{N: "LED"}
	l := NewLED("status", p)
	defer l.Close()

	assert.Equal(t, ModeOff, l.Mode())

	l.SetMode(ModeOn)
	assert.Equal(t, ModeOn, l.Mode())
	assert.Eventually(t, func() bool { return p.Read() == gpio.High }, time.Second, time.Millisecond)

	l.SetMode(ModeOff)
	assert.Eventually(t, func() bool { return p.Read() == gpio.Low }, time.Second, time.Millisecond)
}

func Test_LED_BlinkFast(t *testing.T) {
	p := &gpiotest.Pin{N: "LED"}
	l := NewLED("status", p)
	defer l.Close()

	l.SetMode(ModeBlinkFast)
	assert.Eventually(t, func() bool { return p.Read() == gpio.High }, time.Second, time.Millisecond)
	// toggles back off on the next blink
	assert.Eventually(t, func() bool { return p.Read() == gpio.Low }, time.Second, time.Millisecond)
}

func Test_LED_NoPin(t *testing.T) {
	l := NewLED("missing", nil)
	l.SetMode(ModeBlinkSlow)
	l.SetMode(ModeOff)
	l.Close()
	assert.Equal(t, ModeOff, l.Mode())
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "blink-fast", ModeBlinkFast.String())
	assert.Equal(t, "unknown", Mode(9).String())
}
