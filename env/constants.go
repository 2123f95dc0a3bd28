package env

import "time"

const (
	GPIO17 = "GPIO17" // user button
	GPIO20 = "GPIO20" // status LED

	ButtonIn  = GPIO17
	StatusLed = GPIO20

	// base sampling period T, every other period is a multiple of it
	MeasureInterval          = time.Minute
	MeasureIntervalBarometer = 5 * time.Minute
	MeasureIntervalCO2       = 5 * time.Minute
	MeasureIntervalVOC       = 5 * time.Minute

	// reporting window, one uplink per window
	SendInterval = 15 * time.Minute
	// first uplink after boot
	BootSendDelay = 10 * time.Second
	// transport readiness poll
	ReadyPollInterval = 100 * time.Millisecond

	VoltageSamples = 8

	CalibrationStartDelay      = 15 * time.Minute
	CalibrationMeasureInterval = 2 * time.Minute
	CalibrationTicks           = 32

	ButtonHoldDuration = 2 * time.Second
	ButtonDebounce     = 20 * time.Millisecond

	LEDBlinkSlow = time.Second
	LEDBlinkFast = time.Millisecond * 250
	// AT$BLINK flashes this many times
	LEDBlinkCount = 3

	DefaultPort  = 2
	DefaultTopic = "airnode"
)
