package periph

import (
	"sync"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/spi"
)

// ADC chips that can sit on the SPI bus.
const (
	MCP3008 = "mcp3008"
	MCP3208 = "mcp3208"
)

// adc reads single ended channels from an MCP3x08 converter.
type adc struct {
	mu   sync.Mutex
	kind string
	conn spi.Conn
}

func newADC(kind string, conn spi.Conn) (*adc, error) {
	switch kind {
	case MCP3008, MCP3208:
	default:
		return nil, errors.Errorf("unsupported adc %q", kind)
	}
	return &adc{kind: kind, conn: conn}, nil
}

// fullScale is the largest raw sample.
func (a *adc) fullScale() int {
	if a.kind == MCP3208 {
		return 4095
	}
	return 1023
}

func (a *adc) read(channel int) (int, error) {
	if channel < 0 || channel > 7 {
		return 0, errors.Errorf("adc channel %d out of range", channel)
	}
	var tx []byte
	if a.kind == MCP3208 {
		// start bit, single ended, then D2..D0 across the first two bytes
		tx = []byte{0x06 | byte(channel>>2), byte(channel&3) << 6, 0}
	} else {
		tx = []byte{1, byte(8+channel) << 4, 0}
	}
	rx := make([]byte, len(tx))

	a.mu.Lock()
	err := a.conn.Tx(tx, rx)
	a.mu.Unlock()
	if err != nil {
		return 0, errors.Wrapf(err, "%s transfer failed", a.kind)
	}

	if a.kind == MCP3208 {
		return int(rx[1]&0x0f)<<8 | int(rx[2]), nil
	}
	return int(rx[1]&0x03)<<8 | int(rx[2]), nil
}
