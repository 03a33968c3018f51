package serial

import (
	"time"

	bugst "go.bug.st/serial"
)

// bugstPort adapts go.bug.st/serial. The read timeout is set per call and
// cached to avoid an ioctl on every byte.
type bugstPort struct {
	port    bugst.Port
	timeout time.Duration
	buf     [1]byte
}

func openBugst(cfg Config) (Transport, error) {
	mode := &bugst.Mode{
		BaudRate: cfg.Baud,
		DataBits: 8,
		Parity:   bugst.NoParity,
		StopBits: bugst.OneStopBit,
	}
	port, err := bugst.Open(cfg.Device, mode)
	if err != nil {
		return nil, err
	}
	p := &bugstPort{port: port}
	if err := p.setTimeout(cfg.ReadTimeout); err != nil {
		port.Close()
		return nil, err
	}
	return p, nil
}

func (p *bugstPort) setTimeout(d time.Duration) error {
	if d == p.timeout {
		return nil
	}
	if err := p.port.SetReadTimeout(d); err != nil {
		return err
	}
	p.timeout = d
	return nil
}

func (p *bugstPort) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

func (p *bugstPort) ReadByte(timeout time.Duration) (byte, error) {
	if err := p.setTimeout(timeout); err != nil {
		return 0, err
	}
	n, err := p.port.Read(p.buf[:])
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrTimeout
	}
	return p.buf[0], nil
}

func (p *bugstPort) Flush() error {
	return p.port.ResetInputBuffer()
}

func (p *bugstPort) Close() error {
	return p.port.Close()
}
