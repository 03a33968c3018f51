package serial

import (
	"errors"
	"io"
	"time"

	"github.com/tarm/serial"
)

// tarmPort adapts github.com/tarm/serial. Its read timeout is fixed when
// the port is opened, so the per-call timeout is ignored.
type tarmPort struct {
	port *serial.Port
	buf  [1]byte
}

func openTarm(cfg Config) (Transport, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, err
	}
	return &tarmPort{port: port}, nil
}

func (p *tarmPort) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

func (p *tarmPort) ReadByte(time.Duration) (byte, error) {
	n, err := p.port.Read(p.buf[:])
	if errors.Is(err, io.EOF) || (err == nil && n == 0) {
		return 0, ErrTimeout
	}
	if err != nil {
		return 0, err
	}
	return p.buf[0], nil
}

func (p *tarmPort) Flush() error {
	return p.port.Flush()
}

func (p *tarmPort) Close() error {
	return p.port.Close()
}
