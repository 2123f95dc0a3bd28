package sensors

import (
	"errors"

	logger "github.com/sirupsen/logrus"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"
	"periph.io/x/devices/v3/mcp9808"
)

const (
	MCP9808_I2C = 0x18
	BME280_I2C  = 0x76
)

var ErrNoSensor = errors.New("sensor not present")

type envSensor interface {
	Sense(e *physic.Env) error
}

// Atmosphere reads pressure and humidity from a BME280. Temperature comes
// from an MCP9808 when one is fitted, it is more accurate than the BME280.
type Atmosphere struct {
	PH   envSensor // BME280 pressure, humidity, temperature
	Temp envSensor // MCP9808 temperature, optional
}

func NewAtmosphere(bus i2c.Bus) (*Atmosphere, error) {
	a := &Atmosphere{}

	logger.Infof("Starting BME280 reader [%x]", BME280_I2C)
	bme, err := bmxx80.NewI2C(bus, BME280_I2C, &bmxx80.DefaultOpts)
	if err != nil {
		logger.Errorf("Failed to initialize bme280: %v", err)
		return nil, err
	}
	a.PH = bme

	logger.Infof("Starting MCP9808 Temperature Sensor [%x]", MCP9808_I2C)
	tempSensor, err := mcp9808.New(bus, &mcp9808.Opts{Addr: MCP9808_I2C, Res: mcp9808.High})
	if err != nil {
		logger.Warnf("No MCP9808, using BME280 temperature [%v]", err)
	} else {
		a.Temp = tempSensor
	}

	return a, nil
}

func (a *Atmosphere) sense(s envSensor) (physic.Env, error) {
	em := physic.Env{}
	if s == nil {
		return em, ErrNoSensor
	}
	err := s.Sense(&em)
	return em, err
}

// Temperature in degrees C.
func (a *Atmosphere) Temperature() (float64, error) {
	src := a.Temp
	if src == nil {
		src = a.PH
	}
	em, err := a.sense(src)
	if err != nil {
		return 0, err
	}
	return em.Temperature.Celsius(), nil
}

// Humidity in %RH.
func (a *Atmosphere) Humidity() (float64, error) {
	em, err := a.sense(a.PH)
	if err != nil {
		return 0, err
	}
	return float64(em.Humidity) / float64(physic.PercentRH), nil
}

// Pressure in Pa.
func (a *Atmosphere) Pressure() (float64, error) {
	em, err := a.sense(a.PH)
	if err != nil {
		return 0, err
	}
	return float64(em.Pressure) / float64(physic.Pascal), nil
}
