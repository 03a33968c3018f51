// Package serial moves bytes between the host and a SkyWatcher motor
// controller. It knows nothing about framing; see package protocol.
package serial

import (
	"errors"
	"fmt"
	"time"
)

// ErrTimeout is returned by ReadByte when nothing arrives in time.
var ErrTimeout = errors.New("serial: read timeout")

// ErrNoPort is returned when device auto-detection finds no serial port.
var ErrNoPort = errors.New("serial: no serial port found")

// AutoDevice asks Open to pick the first detected port.
const AutoDevice = "auto"

// Backend names accepted in Config.Backend.
const (
	BackendBugst = "bugst"
	BackendTarm  = "tarm"
)

// Transport is a byte channel to the motor controller.
type Transport interface {
	Write(p []byte) (int, error)
	ReadByte(timeout time.Duration) (byte, error)
	Close() error
}

// Flusher is implemented by transports that can discard unread input.
type Flusher interface {
	Flush() error
}

// Config describes how to open the controller's serial port.
type Config struct {
	Device      string
	Baud        int
	ReadTimeout time.Duration
	Backend     string
}

// DefaultConfig returns the settings SkyWatcher controllers expect.
func DefaultConfig(device string) Config {
	return Config{
		Device:      device,
		Baud:        9600,
		ReadTimeout: time.Second,
		Backend:     BackendBugst,
	}
}

func (c Config) validate() error {
	if c.Device == "" {
		return errors.New("serial: device must not be empty")
	}
	if c.Baud <= 0 {
		return fmt.Errorf("serial: baud must be > 0, got %d", c.Baud)
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("serial: read timeout must be > 0, got %v", c.ReadTimeout)
	}
	return nil
}

type opener func(Config) (Transport, error)

var backends = map[string]opener{
	BackendBugst: openBugst,
	BackendTarm:  openTarm,
}

// Open opens the port described by cfg with the selected backend.
// An empty backend means BackendBugst.
func Open(cfg Config) (Transport, error) {
	if cfg.Backend == "" {
		cfg.Backend = BackendBugst
	}
	open, ok := backends[cfg.Backend]
	if !ok {
		return nil, fmt.Errorf("serial: unknown backend %q", cfg.Backend)
	}
	if cfg.Device == AutoDevice {
		name, err := FindPort()
		if err != nil {
			return nil, err
		}
		cfg.Device = name
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	t, err := open(cfg)
	if err != nil {
		return nil, fmt.Errorf("serial: open %s: %w", cfg.Device, err)
	}
	return t, nil
}
