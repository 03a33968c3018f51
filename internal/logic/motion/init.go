package motion

import (
	"fmt"

	"github.com/cjeanneret/StarGo/internal/debug"
	"github.com/cjeanneret/StarGo/internal/logic/units"
	"github.com/cjeanneret/StarGo/internal/protocol"
)

func initErr(step string, err error) error {
	return &protocol.InitError{Step: step, Err: err}
}

// InitMount identifies the controller, reads the calibration of both
// axes and marks them initialized. With recovering set, the reference
// and zero encoder positions of an earlier initialization are kept.
func (c *Controller) InitMount(recovering bool) error {
	c.initialized = false
	debug.Section("Mount initialization")

	debug.Step(1, "DC motor probe")
	dc, err := c.probeDCMotor()
	if err != nil {
		return initErr("dc motor probe", err)
	}

	debug.Step(2, "Motor board version")
	mc, err := c.MotorBoardVersion()
	if err != nil {
		return initErr("motor board version", err)
	}
	c.identity = MountIdentity{MCVersion: mc, MountCode: byte(mc & 0xFF), DCMotor: dc}
	if c.identity.MountCode < minGotoMountCode {
		return initErr("mount code", fmt.Errorf("%w: %#02x (%s)",
			protocol.ErrUnsupportedMount, c.identity.MountCode, c.identity.Family()))
	}
	debug.Info("Mount: %v", c.identity)

	debug.Step(3, "Calibration")
	for _, axis := range protocol.Axes {
		if err := c.readCalibration(axis); err != nil {
			return err
		}
	}

	if !dc {
		debug.Step(4, "PEC period")
		for _, axis := range protocol.Axes {
			n, err := c.microstepsPerWormRevolution(axis)
			if err != nil {
				debug.Warn("%v: no worm period: %v", axis, err)
				c.axes[axis].cal.MicrostepsPerWormRevolution = nil
				continue
			}
			c.axes[axis].cal.MicrostepsPerWormRevolution = &n
		}
	}

	debug.Step(5, "Encoders")
	for _, axis := range protocol.Axes {
		pos, err := c.ReadEncoder(axis)
		if err != nil {
			return initErr("read encoder", err)
		}
		if !recovering {
			c.axes[axis].encoder.Reference = pos
			c.axes[axis].encoder.Zero = pos
		}
		debug.Verbose("%v encoder before init: %d", axis, pos)
	}

	debug.Step(6, "Initialization done")
	for _, axis := range protocol.Axes {
		if err := c.markInitialized(axis); err != nil {
			return initErr("initialization done", err)
		}
	}

	for _, axis := range protocol.Axes {
		pos, err := c.ReadEncoder(axis)
		if err != nil {
			return initErr("read encoder", err)
		}
		if _, err := c.RefreshStatus(axis); err != nil {
			return initErr("status", err)
		}
		debug.Verbose("%v encoder after init: %d", axis, pos)
	}

	for _, axis := range protocol.Axes {
		a := &c.axes[axis]
		a.gotoMargin = units.LowSpeedGotoMargin(a.cal)
		debug.PrintStruct(axis.String()+" calibration", a.cal)
	}

	c.initialized = true
	debug.Summary("Mount initialized")
	return nil
}

func (c *Controller) readCalibration(axis protocol.AxisID) error {
	steps, err := c.microstepsPerRevolution(axis)
	if err != nil {
		return initErr("microsteps per revolution", err)
	}
	if fixed, ok := c.identity.microstepsOverride(); ok {
		debug.Verbose("%v: overriding reported %d microsteps/rev with %d", axis, steps, fixed)
		steps = fixed
	}
	cal := units.NewCalibration(steps)

	if cal.StepperClockFrequency, err = c.stepperClockFrequency(axis); err != nil {
		return initErr("stepper clock frequency", err)
	}
	if cal.HighSpeedRatio, err = c.highSpeedRatio(axis); err != nil {
		return initErr("high speed ratio", err)
	}
	if steps == 0 || cal.StepperClockFrequency == 0 || cal.HighSpeedRatio == 0 {
		return initErr("calibration", fmt.Errorf("%v reported zero: %d microsteps/rev, %d Hz, ratio %d",
			axis, steps, cal.StepperClockFrequency, cal.HighSpeedRatio))
	}
	debug.Value(axis.String()+" microsteps/degree", cal.MicrostepsPerDegree)
	c.axes[axis].cal = cal
	return nil
}
