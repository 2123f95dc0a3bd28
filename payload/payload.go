package payload

import (
	"encoding/binary"
	"encoding/hex"
	"math"

	"github.com/gr-butler/airnode/data"
)

/*
Uplink packet, 11 bytes, multi-byte fields big endian. A field with no data
is left as 0xFF in every byte.

Byte	Field			Encoding
0		Header			Header value
1		Voltage			ceil(V * 10), uint8
2-3		Temperature		C * 10 truncated, int16
4		Humidity		%RH * 2 truncated, uint8
5-6		VOC				ppb truncated, uint16
7-8		Pressure		Pa / 2 truncated, uint16
9-10	CO2				ppm truncated, uint16

Present values are clamped so they can never encode to the all-0xFF
sentinel: unsigned fields top out one below it and a temperature of
-0.1C (raw 0xFFFF) is sent as 0.
*/

const (
	Size     = 11
	Sentinel = 0xFF

	maxU8  = 0xFE
	maxU16 = 0xFFFE
)

type Header uint8

const (
	Boot Header = iota
	Update
	ButtonClick
	ButtonHold
)

func (h Header) String() string {
	switch h {
	case Boot:
		return "BOOT"
	case Update:
		return "UPDATE"
	case ButtonClick:
		return "BUTTON_CLICK"
	case ButtonHold:
		return "BUTTON_HOLD"
	}
	return "UNKNOWN"
}

func (h Header) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

type Packet [Size]byte

func (p Packet) Bytes() []byte {
	return p[:]
}

// Hex is the lowercase hex form used in the $SEND echo.
func (p Packet) Hex() string {
	return hex.EncodeToString(p[:])
}

// Averager supplies the current rolling average of a channel.
type Averager interface {
	Average(ch data.Channel) (float64, bool)
}

// Encode packs the header and the current averages into a packet.
func Encode(h Header, s Averager) Packet {
	var p Packet
	for i := range p {
		p[i] = Sentinel
	}

	p[0] = byte(h)

	if v, ok := average(s, data.Voltage); ok {
		p[1] = toU8(math.Ceil(v * 10))
	}

	if v, ok := average(s, data.Temperature); ok {
		binary.BigEndian.PutUint16(p[2:4], uint16(toI16(v*10)))
	}

	if v, ok := average(s, data.Humidity); ok {
		p[4] = toU8(v * 2)
	}

	if v, ok := average(s, data.VOC); ok {
		binary.BigEndian.PutUint16(p[5:7], toU16(v))
	}

	if v, ok := average(s, data.Pressure); ok {
		binary.BigEndian.PutUint16(p[7:9], toU16(v/2))
	}

	if v, ok := average(s, data.CO2); ok {
		binary.BigEndian.PutUint16(p[9:11], toU16(v))
	}

	return p
}

func average(s Averager, ch data.Channel) (float64, bool) {
	v, ok := s.Average(ch)
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func toU8(v float64) byte {
	v = math.Trunc(v)
	if v < 0 {
		return 0
	}
	if v > maxU8 {
		return maxU8
	}
	return byte(v)
}

func toU16(v float64) uint16 {
	v = math.Trunc(v)
	if v < 0 {
		return 0
	}
	if v > maxU16 {
		return maxU16
	}
	return uint16(v)
}

func toI16(v float64) int16 {
	v = math.Trunc(v)
	if v < math.MinInt16 {
		return math.MinInt16
	}
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	t := int16(v)
	if t == -1 {
		// 0xFFFF is the sentinel
		t = 0
	}
	return t
}
