package sensors

import (
	logger "github.com/sirupsen/logrus"

	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"
)

// the cell is measured through a 1:1 resistor divider
const BatteryDivider = 2.0

type analogReader interface {
	Read() (analog.Sample, error)
}

// Battery reads the cell voltage on channel 0 of an ADS1115.
type Battery struct {
	pin     analogReader
	Divider float64
}

func NewBattery(bus i2c.Bus) (*Battery, error) {
	logger.Infof("Starting battery ADC I2C [%x]", ads1x15.DefaultOpts.I2cAddress)
	adc, err := ads1x15.NewADS1115(bus, &ads1x15.DefaultOpts)
	if err != nil {
		logger.Errorf("Failed to open ADS1115 [%v]", err)
		return nil, err
	}
	pin, err := adc.PinForChannel(ads1x15.Channel0, 4*physic.Volt, 1*physic.Hertz, ads1x15.SaveEnergy)
	if err != nil {
		logger.Errorf("Failed to open ADC channel [%v]", err)
		return nil, err
	}
	return &Battery{pin: pin, Divider: BatteryDivider}, nil
}

// Sense returns the battery voltage in V.
func (b *Battery) Sense() (float64, error) {
	sample, err := b.pin.Read()
	if err != nil {
		return 0, err
	}
	return float64(sample.V) / float64(physic.Volt) * b.Divider, nil
}
