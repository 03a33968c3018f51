package motion

import (
	"time"

	"github.com/cjeanneret/StarGo/internal/hw/serial"
	"github.com/cjeanneret/StarGo/internal/logic/units"
	"github.com/cjeanneret/StarGo/internal/protocol"
)

// Default timing used when Options leaves a field at zero.
const (
	DefaultPollInterval = 100 * time.Millisecond
	DefaultMaxStopPolls = 600
	DefaultReadTimeout  = time.Second
	DefaultProbeTimeout = 500 * time.Millisecond
)

// Options tunes a Controller.
type Options struct {
	// SilentSlew keeps the motors in low-speed stepping mode.
	SilentSlew bool

	// PollInterval is the pause between status reads while waiting for
	// an axis to stop; MaxStopPolls bounds the number of reads.
	PollInterval time.Duration
	MaxStopPolls int

	// Sleep is used for the wait-for-stop pause. Tests inject a no-op.
	Sleep func(time.Duration)

	// ReadTimeout is the per-byte deadline of a command exchange;
	// ProbeTimeout is used while detecting DC-motor controllers.
	ReadTimeout  time.Duration
	ProbeTimeout time.Duration
}

// DefaultOptions returns the timings used with real hardware.
func DefaultOptions() Options {
	return Options{
		PollInterval: DefaultPollInterval,
		MaxStopPolls: DefaultMaxStopPolls,
		Sleep:        time.Sleep,
		ReadTimeout:  DefaultReadTimeout,
		ProbeTimeout: DefaultProbeTimeout,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.PollInterval <= 0 {
		o.PollInterval = d.PollInterval
	}
	if o.MaxStopPolls <= 0 {
		o.MaxStopPolls = d.MaxStopPolls
	}
	if o.Sleep == nil {
		o.Sleep = d.Sleep
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = d.ReadTimeout
	}
	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = d.ProbeTimeout
	}
	return o
}

// EncoderPosition is an axis position in raw controller microsteps.
// Reference and Zero are captured once, on the first non-recovery
// initialization.
type EncoderPosition struct {
	Current   int64
	Reference int64
	Zero      int64
}

type axisState struct {
	cal        units.Calibration
	status     protocol.AxisStatus
	stale      bool
	encoder    EncoderPosition
	gotoMargin int64
	lastTarget int64
	slewSpeed  float64
}

// Controller drives the two axes of a SkyWatcher mount through one
// serial transport. It is not safe for concurrent use.
type Controller struct {
	port        serial.Transport
	opts        Options
	reader      protocol.ResponseReader
	axes        [2]axisState
	identity    MountIdentity
	initialized bool
}

// NewController creates a controller talking over port. Both axes start
// Stopped and not initialized.
func NewController(port serial.Transport, opts Options) *Controller {
	c := &Controller{
		port: port,
		opts: opts.withDefaults(),
	}
	for i := range c.axes {
		c.axes[i].status = protocol.AxisStatus{State: protocol.Stopped, NotInitialized: true}
	}
	return c
}

// state returns a copy of the axis state; an invalid axis reads as zero.
func (c *Controller) state(axis protocol.AxisID) axisState {
	if !axis.Valid() {
		return axisState{}
	}
	return c.axes[axis]
}

// Initialized reports whether InitMount has completed.
func (c *Controller) Initialized() bool {
	return c.initialized
}

// GetStatus returns the locally tracked status of an axis.
func (c *Controller) GetStatus(axis protocol.AxisID) protocol.AxisStatus {
	return c.state(axis).status
}

// IsInMotion reports whether the local status shows the axis moving.
func (c *Controller) IsInMotion(axis protocol.AxisID) bool {
	return c.state(axis).status.Moving()
}

// Stale reports whether a command failed since the last successful
// status read, in which case GetStatus should not be trusted.
func (c *Controller) Stale(axis protocol.AxisID) bool {
	return c.state(axis).stale
}

// Calibration returns the constants read during InitMount.
func (c *Controller) Calibration(axis protocol.AxisID) units.Calibration {
	return c.state(axis).cal
}

// Encoder returns the last encoder reading and the reference positions.
func (c *Controller) Encoder(axis protocol.AxisID) EncoderPosition {
	return c.state(axis).encoder
}

// LowSpeedGotoMargin returns the distance from target, in microsteps,
// under which gotos run at low speed.
func (c *Controller) LowSpeedGotoMargin(axis protocol.AxisID) int64 {
	return c.state(axis).gotoMargin
}

// LastSlewToTarget is the absolute encoder target of the latest goto.
func (c *Controller) LastSlewToTarget(axis protocol.AxisID) int64 {
	return c.state(axis).lastTarget
}

// SlewingSpeed is the signed speed, in rad/s, of the latest Slew.
func (c *Controller) SlewingSpeed(axis protocol.AxisID) float64 {
	return c.state(axis).slewSpeed
}

// Identity returns what InitMount learned about the mount.
func (c *Controller) Identity() MountIdentity {
	return c.identity
}

// Close releases the transport.
func (c *Controller) Close() error {
	return c.port.Close()
}
