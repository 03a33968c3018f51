package gpio

import (
	"fmt"

	"github.com/stianeikeland/go-rpio/v4"

	"github.com/cjeanneret/StarGo/internal/debug"
)

// RPiDriver drives the header through go-rpio's memory-mapped registers.
// Pins are configured on first use when SetupPin was not called.
type RPiDriver struct {
	pins map[int]PinMode
}

// NewRPiDriver maps the GPIO registers. It needs /dev/gpiomem or root.
func NewRPiDriver() (*RPiDriver, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("gpio: open: %w (not a Raspberry Pi?)", err)
	}
	debug.Verbose("GPIO registers mapped")
	return &RPiDriver{pins: make(map[int]PinMode)}, nil
}

func (r *RPiDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("setup", pin, mode)
	p := rpio.Pin(pin)
	switch mode {
	case Input:
		p.Input()
	case Output:
		p.Output()
	default:
		return fmt.Errorf("gpio: unknown pin mode %d", mode)
	}
	r.pins[pin] = mode
	return nil
}

func (r *RPiDriver) ensure(pin int, mode PinMode) error {
	if current, ok := r.pins[pin]; ok && current == mode {
		return nil
	}
	return r.SetupPin(pin, mode)
}

func (r *RPiDriver) WritePin(pin int, level Level) error {
	debug.GPIO("write", pin, level)
	if err := r.ensure(pin, Output); err != nil {
		return err
	}
	if level == High {
		rpio.Pin(pin).High()
	} else {
		rpio.Pin(pin).Low()
	}
	return nil
}

func (r *RPiDriver) ReadPin(pin int) (Level, error) {
	if _, ok := r.pins[pin]; !ok {
		if err := r.SetupPin(pin, Input); err != nil {
			return Low, err
		}
	}
	return Level(rpio.Pin(pin).Read() == rpio.High), nil
}

// Close returns every used pin to input, the header's safe state, and
// unmaps the registers.
func (r *RPiDriver) Close() error {
	for pin := range r.pins {
		rpio.Pin(pin).Input()
	}
	debug.Trace("GPIO close (%d pins released)", len(r.pins))
	return rpio.Close()
}
