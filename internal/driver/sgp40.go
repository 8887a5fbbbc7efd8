package driver

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/Guliveer/aerostat/internal/source"
)

// SGP40 commands are 16-bit big endian words; data words carry a CRC-8.
const (
	SGP40Addr = 0x59

	sgpSelfTestOK = 0xD400

	sgpSelfTestDelay = 320 * time.Millisecond
	sgpMeasureDelay  = 30 * time.Millisecond
)

var (
	sgpCmdSelfTest   = []byte{0x28, 0x0E}
	sgpCmdMeasureRaw = []byte{0x26, 0x0F}
)

// SGP40 is the metal-oxide VOC sensor. It needs the ambient temperature
// and humidity for compensation, so it acts as the Combiner of a derived
// source fed by a temperature and a humidity source.
type SGP40 struct {
	dev *Device

	mu    sync.Mutex
	index *VOCIndex
}

var _ source.Combiner = (*SGP40)(nil)

// NewSGP40 creates the driver for the sensor at its fixed address.
func NewSGP40(bus *Bus) *SGP40 {
	return &SGP40{dev: bus.Device(SGP40Addr), index: NewVOCIndex()}
}

// Initialize runs the built-in self test.
func (s *SGP40) Initialize(ctx context.Context) error {
	if err := s.dev.Tx(sgpCmdSelfTest, nil); err != nil {
		return err
	}
	if err := s.dev.Wait(ctx, sgpSelfTestDelay); err != nil {
		return err
	}
	word, err := s.readWord()
	if err != nil {
		return err
	}
	if word != sgpSelfTestOK {
		return fmt.Errorf("sgp40: self test failed (0x%04x)", word)
	}
	return nil
}

// Combine measures with compensation for temperature (°C) and relative
// humidity (%) and returns the VOC index.
func (s *SGP40) Combine(ctx context.Context, temperature, humidity float64) (float64, error) {
	raw, err := s.MeasureRaw(ctx, temperature, humidity)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Process(float64(raw)), nil
}

// MeasureRaw returns the compensated raw signal in ticks.
func (s *SGP40) MeasureRaw(ctx context.Context, temperature, humidity float64) (uint16, error) {
	cmd := make([]byte, 0, 8)
	cmd = append(cmd, sgpCmdMeasureRaw...)
	cmd = appendWord(cmd, humidityTicks(humidity))
	cmd = appendWord(cmd, temperatureTicks(temperature))
	if err := s.dev.Tx(cmd, nil); err != nil {
		return 0, err
	}
	if err := s.dev.Wait(ctx, sgpMeasureDelay); err != nil {
		return 0, err
	}
	return s.readWord()
}

func (s *SGP40) readWord() (uint16, error) {
	b, err := s.dev.Read(3)
	if err != nil {
		return 0, err
	}
	if crc := sensirionCRC(b[:2]); crc != b[2] {
		return 0, fmt.Errorf("sgp40: crc mismatch (got 0x%02x, want 0x%02x)", b[2], crc)
	}
	return uint16(b[0])<<8 | uint16(b[1]), nil
}

func appendWord(b []byte, w uint16) []byte {
	hi, lo := byte(w>>8), byte(w)
	return append(b, hi, lo, sensirionCRC([]byte{hi, lo}))
}

func humidityTicks(rh float64) uint16 {
	rh = math.Min(math.Max(rh, 0), 100)
	return uint16(math.Round(rh * 65535 / 100))
}

func temperatureTicks(c float64) uint16 {
	c = math.Min(math.Max(c, -45), 130)
	return uint16(math.Round((c + 45) * 65535 / 175))
}

// sensirionCRC is CRC-8 with polynomial 0x31 and initial value 0xFF.
func sensirionCRC(data []byte) byte {
	crc := byte(0xFF)
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ 0x31
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
