package sensors

import (
	"errors"
	"fmt"
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c"
)

const (
	SCD4X_I2C = 0x62

	scd4xWakeUp          = 0x36f6
	scd4xStartPeriodic   = 0x21b1
	scd4xStopPeriodic    = 0x3f86
	scd4xDataReady       = 0xe4b8
	scd4xReadMeasurement = 0xec05
	scd4xForcedRecal     = 0x362f

	// fresh outdoor air, the reference the sensor is calibrated against
	CO2ReferencePPM = 400
)

var ErrCalibrationFailed = errors.New("scd4x: forced recalibration failed")

// CO2 reads an SCD4x in periodic measurement mode. A read never waits for
// the sensor, a sample that is not ready yet is reported as ErrNotReady.
type CO2 struct {
	mu      sync.Mutex
	dev     sensirion
	sensing bool
}

func NewCO2(bus i2c.Bus) *CO2 {
	logger.Infof("Starting SCD4x CO2 sensor [%x]", SCD4X_I2C)
	return &CO2{
		dev: sensirion{
			name:  "scd4x",
			d:     &i2c.Dev{Bus: bus, Addr: SCD4X_I2C},
			sleep: time.Sleep,
		},
	}
}

// Start puts the sensor into periodic measurement mode.
func (c *CO2) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.start()
}

func (c *CO2) start() error {
	if c.sensing {
		return nil
	}
	if err := c.dev.command(scd4xWakeUp); err != nil {
		// a sensor already measuring rejects everything but stop
		_ = c.dev.command(scd4xStopPeriodic)
		c.dev.sleep(500 * time.Millisecond)
	}
	if err := c.dev.command(scd4xStartPeriodic); err != nil {
		return err
	}
	c.sensing = true
	return nil
}

func (c *CO2) stop() error {
	if err := c.dev.command(scd4xStopPeriodic); err != nil {
		return err
	}
	c.sensing = false
	c.dev.sleep(500 * time.Millisecond)
	return nil
}

// Sense returns the latest CO2 concentration in ppm.
func (c *CO2) Sense() (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.start(); err != nil {
		return 0, err
	}
	words, err := c.dev.read(scd4xDataReady, 1)
	if err != nil {
		return 0, err
	}
	if words[0]&0x07ff == 0 {
		return 0, ErrNotReady
	}
	words, err = c.dev.read(scd4xReadMeasurement, 3)
	if err != nil {
		return 0, err
	}
	ppm := float64(words[0])
	logger.Debugf("SCD4x [%v ppm]", ppm)
	return ppm, nil
}

// Calibrate runs a forced recalibration against CO2ReferencePPM and puts
// the sensor back into periodic mode.
func (c *CO2) Calibrate() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.stop(); err != nil {
		return err
	}
	words, err := c.dev.fetch(scd4xForcedRecal, 400*time.Millisecond, 1, CO2ReferencePPM)
	if rerr := c.start(); rerr != nil {
		logger.Errorf("Failed to restart SCD4x after calibration [%v]", rerr)
	}
	if err != nil {
		return err
	}
	if words[0] == 0xffff {
		return ErrCalibrationFailed
	}
	correction := int(words[0]) - 0x8000
	logger.Infof("SCD4x forced recalibration correction [%v ppm]", correction)
	return nil
}

func (c *CO2) String() string {
	return fmt.Sprintf("scd4x@%x", SCD4X_I2C)
}
