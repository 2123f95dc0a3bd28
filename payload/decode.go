package payload

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/go-querystring/query"
)

var (
	ErrPacketLength  = errors.New("payload: packet must be 11 bytes")
	ErrUnknownHeader = errors.New("payload: unknown header")
)

// Reading is a decoded packet. Fields sent as sentinel are nil.
type Reading struct {
	Header      Header   `url:"header" json:"header"`
	Voltage     *float64 `url:"voltage,omitempty" json:"voltage"`
	Temperature *float64 `url:"temperature,omitempty" json:"temperature"`
	Humidity    *float64 `url:"humidity,omitempty" json:"humidity"`
	VOC         *float64 `url:"voc,omitempty" json:"voc"`
	Pressure    *float64 `url:"pressure,omitempty" json:"pressure"`
	CO2         *float64 `url:"co2,omitempty" json:"co2"`
}

// Decode reverses Encode to the resolution of each field.
func Decode(b []byte) (*Reading, error) {
	if len(b) != Size {
		return nil, fmt.Errorf("%w, got %d", ErrPacketLength, len(b))
	}
	h := Header(b[0])
	if h > ButtonHold {
		return nil, fmt.Errorf("%w 0x%02x", ErrUnknownHeader, b[0])
	}

	r := &Reading{Header: h}

	if b[1] != Sentinel {
		r.Voltage = f(float64(b[1]) / 10)
	}
	if u := binary.BigEndian.Uint16(b[2:4]); u != 0xFFFF {
		r.Temperature = f(float64(int16(u)) / 10)
	}
	if b[4] != Sentinel {
		r.Humidity = f(float64(b[4]) / 2)
	}
	if u := binary.BigEndian.Uint16(b[5:7]); u != 0xFFFF {
		r.VOC = f(float64(u))
	}
	if u := binary.BigEndian.Uint16(b[7:9]); u != 0xFFFF {
		r.Pressure = f(float64(u) * 2)
	}
	if u := binary.BigEndian.Uint16(b[9:11]); u != 0xFFFF {
		r.CO2 = f(float64(u))
	}
	return r, nil
}

// DecodeHex decodes the hex form printed by the $SEND echo.
func DecodeHex(s string) (*Reading, error) {
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("payload: bad hex: %w", err)
	}
	return Decode(b)
}

// Values renders the reading as URL query values, absent fields omitted.
func (r *Reading) Values() (url.Values, error) {
	return query.Values(r)
}

func f(v float64) *float64 {
	return &v
}
