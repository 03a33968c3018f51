package camera

import (
	"fmt"
	"time"

	"github.com/cjeanneret/StarGo/internal/debug"
)

// Switcher closes or opens the auxiliary switch of the motor controller.
// *motion.Controller satisfies it.
type Switcher interface {
	SetSwitch(on bool) error
}

// SnapPort fires a camera wired to the mount's SNAP socket: the switch is
// closed for the exposure time, then opened again.
type SnapPort struct {
	sw    Switcher
	hold  time.Duration
	sleep func(time.Duration)
}

// NewSnapPort creates a snap-port camera that holds the shutter for hold.
func NewSnapPort(sw Switcher, hold time.Duration) *SnapPort {
	return &SnapPort{sw: sw, hold: hold, sleep: time.Sleep}
}

// Shoot closes the switch, waits, and opens it again. A failed close
// leaves the switch untouched.
func (s *SnapPort) Shoot() error {
	debug.Shot("snap port")
	if err := s.sw.SetSwitch(true); err != nil {
		return fmt.Errorf("snap port: close switch: %w", err)
	}
	debug.Verbose("snap port: holding shutter %v", s.hold)
	s.sleep(s.hold)
	if err := s.sw.SetSwitch(false); err != nil {
		return fmt.Errorf("snap port: open switch: %w", err)
	}
	return nil
}
