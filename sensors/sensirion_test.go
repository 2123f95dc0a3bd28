package sensors

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c/i2ctest"
)

func noSleep(time.Duration) {}

func TestCRC8(t *testing.T) {
	tests := []struct {
		word uint16
		want byte
	}{
		{0xbeef, 0x92},
		{0x0000, 0x81},
		{0x8000, 0xa2},
		{0x8006, 0x04},
		{0x022c, 0xa3},
		{0x0190, 0x4c},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, crc8([]byte{byte(tt.word >> 8), byte(tt.word)}), "word 0x%04x", tt.word)
	}
}

func TestEncodeCommand(t *testing.T) {
	assert.Equal(t, []byte{0xe4, 0xb8}, encodeCommand(scd4xDataReady))
	assert.Equal(t, []byte{0x36, 0x2f, 0x01, 0x90, 0x4c}, encodeCommand(scd4xForcedRecal, 400))
}

func TestDecodeWords(t *testing.T) {
	words, err := decodeWords([]byte{0x02, 0x2c, 0xa3, 0x80, 0x06, 0x04})
	require.NoError(t, err)
	assert.Equal(t, []uint16{556, 0x8006}, words)

	_, err = decodeWords([]byte{0x02, 0x2c, 0xa4})
	assert.ErrorIs(t, err, ErrCRC)
}

func newTestCO2(ops []i2ctest.IO) (*CO2, *i2ctest.Playback) {
	bus := &i2ctest.Playback{Ops: ops, DontPanic: true}
	c := NewCO2(bus)
	c.dev.sleep = noSleep
	return c, bus
}

var co2Start = []i2ctest.IO{
	{Addr: SCD4X_I2C, W: []byte{0x36, 0xf6}},
	{Addr: SCD4X_I2C, W: []byte{0x21, 0xb1}},
}

func ops(groups ...[]i2ctest.IO) []i2ctest.IO {
	all := []i2ctest.IO{}
	for _, g := range groups {
		all = append(all, g...)
	}
	return all
}

func Test_CO2_Sense(t *testing.T) {
	c, bus := newTestCO2(ops(co2Start, []i2ctest.IO{
		{Addr: SCD4X_I2C, W: []byte{0xe4, 0xb8}, R: []byte{0x80, 0x06, 0x04}},
		{Addr: SCD4X_I2C, W: []byte{0xec, 0x05}, R: []byte{0x02, 0x2c, 0xa3, 0x67, 0x0d, 0x36, 0x4d, 0x08, 0xf1}},
		{Addr: SCD4X_I2C, W: []byte{0xe4, 0xb8}, R: []byte{0x80, 0x06, 0x04}},
		{Addr: SCD4X_I2C, W: []byte{0xec, 0x05}, R: []byte{0x01, 0x90, 0x4c, 0x67, 0x0d, 0x36, 0x4d, 0x08, 0xf1}},
	}))

	v, err := c.Sense()
	require.NoError(t, err)
	assert.Equal(t, 556.0, v)

	// already in periodic mode, no second start
	v, err = c.Sense()
	require.NoError(t, err)
	assert.Equal(t, 400.0, v)
	require.NoError(t, bus.Close())
}

func Test_CO2_NotReady(t *testing.T) {
	c, bus := newTestCO2(ops(co2Start, []i2ctest.IO{
		{Addr: SCD4X_I2C, W: []byte{0xe4, 0xb8}, R: []byte{0x80, 0x00, 0xa2}},
	}))

	_, err := c.Sense()
	assert.ErrorIs(t, err, ErrNotReady)
	require.NoError(t, bus.Close())
}

func Test_CO2_BadCRC(t *testing.T) {
	c, bus := newTestCO2(ops(co2Start, []i2ctest.IO{
		{Addr: SCD4X_I2C, W: []byte{0xe4, 0xb8}, R: []byte{0x80, 0x06, 0x04}},
		{Addr: SCD4X_I2C, W: []byte{0xec, 0x05}, R: []byte{0x02, 0x2c, 0x00, 0x67, 0x0d, 0x36, 0x4d, 0x08, 0xf1}},
	}))

	_, err := c.Sense()
	assert.ErrorIs(t, err, ErrCRC)
	require.NoError(t, bus.Close())
}

func Test_CO2_Calibrate(t *testing.T) {
	c, bus := newTestCO2(ops(co2Start, []i2ctest.IO{
		{Addr: SCD4X_I2C, W: []byte{0x3f, 0x86}},
		{Addr: SCD4X_I2C, W: []byte{0x36, 0x2f, 0x01, 0x90, 0x4c}},
		{Addr: SCD4X_I2C, R: []byte{0x80, 0x06, 0x04}},
	}, co2Start))

	require.NoError(t, c.Start())
	require.NoError(t, c.Calibrate())
	assert.True(t, c.sensing)
	require.NoError(t, bus.Close())
}

func Test_CO2_CalibrateRejected(t *testing.T) {
	c, bus := newTestCO2(ops(co2Start, []i2ctest.IO{
		{Addr: SCD4X_I2C, W: []byte{0x3f, 0x86}},
		{Addr: SCD4X_I2C, W: []byte{0x36, 0x2f, 0x01, 0x90, 0x4c}},
		{Addr: SCD4X_I2C, R: []byte{0xff, 0xff, 0xac}},
	}, co2Start))

	require.NoError(t, c.Start())
	assert.ErrorIs(t, c.Calibrate(), ErrCalibrationFailed)
	// measuring again regardless
	assert.True(t, c.sensing)
	require.NoError(t, bus.Close())
}

func Test_VOC(t *testing.T) {
	bus := &i2ctest.Playback{Ops: []i2ctest.IO{
		{Addr: SGP30_I2C, W: []byte{0x20, 0x03}},
		{Addr: SGP30_I2C, W: []byte{0x20, 0x08}},
		{Addr: SGP30_I2C, R: []byte{0x01, 0x90, 0x4c, 0x00, 0x7b, 0x93}},
		{Addr: SGP30_I2C, W: []byte{0x20, 0x08}},
		{Addr: SGP30_I2C, R: []byte{0x01, 0x90, 0x4c, 0x00, 0x7b, 0x00}},
	}, DontPanic: true}
	v := NewVOC(bus)
	v.dev.sleep = noSleep

	require.NoError(t, v.Init())
	_, err := v.Sense()
	assert.ErrorIs(t, err, ErrNotReady)

	require.NoError(t, v.measure())
	tvoc, err := v.Sense()
	require.NoError(t, err)
	assert.Equal(t, 123.0, tvoc)

	// a corrupt measurement invalidates the last value
	assert.ErrorIs(t, v.measure(), ErrCRC)
	_, err = v.Sense()
	assert.ErrorIs(t, err, ErrNotReady)
	require.NoError(t, bus.Close())
}
