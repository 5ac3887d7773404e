package device

import (
	"io"
	"time"

	"github.com/tarm/serial"
)

// SerialConfig configures a serial port.
type SerialConfig struct {
	Name        string
	Baud        int
	ReadTimeout time.Duration
}

// DefaultReadTimeout is used when SerialConfig.ReadTimeout is unset.
const DefaultReadTimeout = 500 * time.Millisecond

// NewSerial returns a Port for a local serial device.
func NewSerial(cfg SerialConfig) *Conn {
	if cfg.Baud == 0 {
		cfg.Baud = 9600
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}

	return NewConn(cfg.Name, func() (io.ReadWriteCloser, error) {
		return serial.OpenPort(&serial.Config{
			Name:        cfg.Name,
			Baud:        cfg.Baud,
			ReadTimeout: cfg.ReadTimeout,
		})
	})
}
