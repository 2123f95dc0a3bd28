package sensors

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3"

	"github.com/gr-butler/airnode/sampling"
)

// Sensirion parts (SCD4x, SGP30) share one framing: a 16 bit command word,
// then 16 bit data words each followed by a CRC8 byte.

var ErrCRC = errors.New("sensirion: crc mismatch")
var ErrNotReady = sampling.ErrNotReady

func crc8(b []byte) byte {
	crc := byte(0xff)
	for _, v := range b {
		crc ^= v
		for bit := 0; bit < 8; bit++ {
			if crc&0x80 != 0 {
				crc = (crc << 1) ^ 0x31
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

func encodeCommand(cmd uint16, args ...uint16) []byte {
	w := []byte{byte(cmd >> 8), byte(cmd)}
	for _, a := range args {
		word := []byte{byte(a >> 8), byte(a)}
		w = append(w, word[0], word[1], crc8(word))
	}
	return w
}

func decodeWords(r []byte) ([]uint16, error) {
	words := make([]uint16, 0, len(r)/3)
	for i := 0; i+2 < len(r); i += 3 {
		if crc8(r[i:i+2]) != r[i+2] {
			return nil, ErrCRC
		}
		words = append(words, uint16(r[i])<<8|uint16(r[i+1]))
	}
	return words, nil
}

// sensirion sends commands to one device. Commands with a processing time
// are written, waited on, then read back.
type sensirion struct {
	name  string
	d     conn.Conn
	sleep func(time.Duration)
}

func (s *sensirion) command(cmd uint16, args ...uint16) error {
	if err := s.d.Tx(encodeCommand(cmd, args...), nil); err != nil {
		return fmt.Errorf("%s cmd 0x%04x: %w", s.name, cmd, err)
	}
	return nil
}

// read issues cmd and reads back n words in a single transaction.
func (s *sensirion) read(cmd uint16, n int) ([]uint16, error) {
	r := make([]byte, n*3)
	if err := s.d.Tx(encodeCommand(cmd), r); err != nil {
		return nil, fmt.Errorf("%s cmd 0x%04x: %w", s.name, cmd, err)
	}
	words, err := decodeWords(r)
	if err != nil {
		return nil, fmt.Errorf("%s cmd 0x%04x: %w", s.name, cmd, err)
	}
	return words, nil
}

// fetch issues cmd, waits wait, then reads back n words.
func (s *sensirion) fetch(cmd uint16, wait time.Duration, n int, args ...uint16) ([]uint16, error) {
	if err := s.command(cmd, args...); err != nil {
		return nil, err
	}
	s.sleep(wait)
	r := make([]byte, n*3)
	if err := s.d.Tx(nil, r); err != nil {
		return nil, fmt.Errorf("%s cmd 0x%04x read: %w", s.name, cmd, err)
	}
	words, err := decodeWords(r)
	if err != nil {
		return nil, fmt.Errorf("%s cmd 0x%04x: %w", s.name, cmd, err)
	}
	return words, nil
}
