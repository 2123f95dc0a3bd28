package sensors

import (
	logger "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

/*
 * Sensors owns the I2C bus and every device on it. Each device is optional,
 * a missing part leaves its channel empty rather than stopping the node.
 */

type Sensors struct {
	Bus     i2c.BusCloser
	Atm     *Atmosphere
	Battery *Battery
	CO2     *CO2
	VOC     *VOC
}

func InitSensors(busName string) (*Sensors, error) {
	if _, err := host.Init(); err != nil {
		logger.Errorf("Failed to init host [%v]", err)
		return nil, err
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		logger.Errorf("Failed to open I²C [%v]", err)
		return nil, err
	}
	s := &Sensors{Bus: bus}

	if s.Atm, err = NewAtmosphere(bus); err != nil {
		logger.Errorf("Atmosphere sensor unavailable [%v]", err)
		s.Atm = nil
	}
	if s.Battery, err = NewBattery(bus); err != nil {
		logger.Errorf("Battery ADC unavailable [%v]", err)
		s.Battery = nil
	}

	s.CO2 = NewCO2(bus)
	if err := s.CO2.Start(); err != nil {
		logger.Errorf("Failed to start SCD4x [%v]", err)
	}

	s.VOC = NewVOC(bus)
	if err := s.VOC.Init(); err != nil {
		logger.Errorf("Failed to init SGP30 [%v]", err)
	}

	logger.Info("Sensors initialized.")
	return s, nil
}

func (s *Sensors) Close() error {
	return s.Bus.Close()
}
