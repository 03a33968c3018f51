package camera

import (
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/cjeanneret/StarGo/internal/debug"
	"github.com/cjeanneret/StarGo/internal/hw/gpio"
)

// RemoteRelease drives the focus and shutter lines of a wired remote
// release (Nikon MC-DC2, Canon N3 and similar). Both lines are active low
// and pulled high when idle.
type RemoteRelease struct {
	drv          gpio.Driver
	focusPin     int
	shutterPin   int
	focusDelay   time.Duration
	shutterDelay time.Duration
	sleep        func(time.Duration)
}

// NewRemoteRelease configures both pins as outputs and releases them.
func NewRemoteRelease(drv gpio.Driver, focusPin, shutterPin int, focusDelay, shutterDelay time.Duration) (*RemoteRelease, error) {
	if focusPin == shutterPin {
		return nil, fmt.Errorf("remote release: focus and shutter share pin %d", focusPin)
	}
	r := &RemoteRelease{
		drv:          drv,
		focusPin:     focusPin,
		shutterPin:   shutterPin,
		focusDelay:   focusDelay,
		shutterDelay: shutterDelay,
		sleep:        time.Sleep,
	}
	for _, pin := range []int{focusPin, shutterPin} {
		if err := drv.SetupPin(pin, gpio.Output); err != nil {
			return nil, fmt.Errorf("remote release: setup pin %d: %w", pin, err)
		}
	}
	if err := r.release(); err != nil {
		return nil, err
	}
	debug.Verbose("remote release ready (focus=%d shutter=%d)", focusPin, shutterPin)
	return r, nil
}

// Shoot half-presses for focusDelay, fully presses for shutterDelay, then
// lets go of both lines.
func (r *RemoteRelease) Shoot() error {
	debug.Shot("remote release")
	if err := r.drv.WritePin(r.focusPin, gpio.Low); err != nil {
		return fmt.Errorf("remote release: focus: %w", err)
	}
	r.sleep(r.focusDelay)

	if err := r.drv.WritePin(r.shutterPin, gpio.Low); err != nil {
		return multierr.Append(fmt.Errorf("remote release: shutter: %w", err), r.release())
	}
	r.sleep(r.shutterDelay)
	return r.release()
}

// release pulls shutter then focus high. Both writes are attempted.
func (r *RemoteRelease) release() error {
	var err error
	if e := r.drv.WritePin(r.shutterPin, gpio.High); e != nil {
		err = multierr.Append(err, fmt.Errorf("remote release: release shutter: %w", e))
	}
	if e := r.drv.WritePin(r.focusPin, gpio.High); e != nil {
		err = multierr.Append(err, fmt.Errorf("remote release: release focus: %w", e))
	}
	return err
}
