package sensors

import (
	"context"
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c"
)

const (
	SGP30_I2C = 0x58

	sgp30InitAirQuality    = 0x2003
	sgp30MeasureAirQuality = 0x2008
)

// VOC drives an SGP30. The part needs a measurement every second to keep
// its baseline compensation running, Run does that and Sense returns the
// most recent TVOC value in ppb.
type VOC struct {
	mu    sync.Mutex
	dev   sensirion
	tvoc  float64
	valid bool
}

func NewVOC(bus i2c.Bus) *VOC {
	logger.Infof("Starting SGP30 VOC sensor [%x]", SGP30_I2C)
	return &VOC{
		dev: sensirion{
			name:  "sgp30",
			d:     &i2c.Dev{Bus: bus, Addr: SGP30_I2C},
			sleep: time.Sleep,
		},
	}
}

func (v *VOC) Init() error {
	if err := v.dev.command(sgp30InitAirQuality); err != nil {
		return err
	}
	v.dev.sleep(10 * time.Millisecond)
	return nil
}

func (v *VOC) measure() error {
	words, err := v.dev.fetch(sgp30MeasureAirQuality, 12*time.Millisecond, 2)
	if err != nil {
		v.mu.Lock()
		v.valid = false
		v.mu.Unlock()
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tvoc = float64(words[1])
	v.valid = true
	return nil
}

// Run measures once a second until ctx is done.
func (v *VOC) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := v.measure(); err != nil {
				logger.Debugf("SGP30 measure failed [%v]", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (v *VOC) Sense() (float64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.valid {
		return 0, ErrNotReady
	}
	return v.tvoc, nil
}
