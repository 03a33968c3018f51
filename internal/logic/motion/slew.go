package motion

import (
	"fmt"
	"math"

	"go.uber.org/multierr"

	"github.com/cjeanneret/StarGo/internal/debug"
	"github.com/cjeanneret/StarGo/internal/logic/units"
	"github.com/cjeanneret/StarGo/internal/protocol"
)

const (
	// minClockTicks is the fastest step period the controllers accept;
	// maxClockTicks is the slowest the 24-bit register can hold.
	minClockTicks = 6
	maxClockTicks = 0xFFFFFF

	highSpeedGotoRamp = 3200
	lowSpeedGotoRamp  = 200
)

// SlewOptions adjusts a single Slew call.
type SlewOptions struct {
	// IgnoreSilentMode permits high-speed stepping even when the
	// controller runs with Options.SilentSlew.
	IgnoreSilentMode bool
}

func (c *Controller) ready(axis protocol.AxisID) error {
	if !axis.Valid() {
		return fmt.Errorf("invalid axis %d", axis)
	}
	if !c.initialized {
		return protocol.ErrNotInitialized
	}
	return nil
}

// fail marks the axis stale and wraps a failed step of op.
func (c *Controller) fail(op string, axis protocol.AxisID, step string, err error) error {
	c.axes[axis].stale = true
	return fmt.Errorf("%s %v: %s: %w", op, axis, step, err)
}

// Slew starts a continuous motion at speed rad/s; the sign gives the
// direction. Speeds at or below units.NegligibleSpeed stop the axis.
func (c *Controller) Slew(axis protocol.AxisID, speed float64) error {
	return c.SlewWithOptions(axis, speed, SlewOptions{})
}

// SlewWithOptions is Slew with per-call options.
func (c *Controller) SlewWithOptions(axis protocol.AxisID, speed float64, so SlewOptions) error {
	if err := c.ready(axis); err != nil {
		return fmt.Errorf("slew %v: %w", axis, err)
	}
	if math.IsNaN(speed) {
		return fmt.Errorf("slew %v: speed is not a number", axis)
	}
	speed = math.Max(-units.MaxSpeed, math.Min(units.MaxSpeed, speed))
	mag := math.Abs(speed)
	if mag <= units.NegligibleSpeed {
		debug.Axis(axis, "Slew %.3g rad/s is negligible, slow stop", speed)
		if err := c.slowStop(axis); err != nil {
			return c.fail("slew", axis, "slow stop", err)
		}
		return nil
	}

	dir := protocol.Forward
	if speed < 0 {
		dir = protocol.Reverse
	}
	mode := protocol.LowSpeed
	if mag > units.LowSpeedMargin && (so.IgnoreSilentMode || !c.opts.SilentSlew) {
		mode = protocol.HighSpeed
	}
	debug.Axis(axis, "Slew %.6f rad/s %v %v", speed, dir, mode)

	stopped, err := c.stopUnless(axis, "slew", func(st protocol.AxisStatus) bool {
		return st.State == protocol.SlewingContinuous &&
			st.Speed == protocol.LowSpeed &&
			mag < units.LowSpeedMargin &&
			st.Direction == dir
	})
	if err != nil {
		return err
	}
	// A running controller refuses mode changes; a compatible slew only
	// needs the new speed.
	if stopped {
		if err := c.setMotionMode(axis, protocol.MotionFunc(false, mode), dir); err != nil {
			return c.fail("slew", axis, "set motion mode", err)
		}
	}

	effective := mag
	if mode == protocol.HighSpeed {
		effective = mag / float64(c.axes[axis].cal.HighSpeedRatio)
	}
	ticks := c.clockTicks(axis, effective)
	debug.Verbose("%v: %d clock ticks per microstep", axis, ticks)
	if err := c.setClockTicksPerMicrostep(axis, ticks); err != nil {
		return c.fail("slew", axis, "set clock ticks", err)
	}
	if err := c.startMotion(axis); err != nil {
		return c.fail("slew", axis, "start motion", err)
	}

	a := &c.axes[axis]
	a.status = protocol.ContinuousStatus(dir, mode)
	a.slewSpeed = speed
	return nil
}

// SlewTo starts a goto of offset microsteps relative to the current
// position. A zero offset does nothing. A moving axis is always brought
// to rest first, whatever its motion: the controller refuses a motion
// mode change while running.
func (c *Controller) SlewTo(axis protocol.AxisID, offset int64) error {
	if err := c.ready(axis); err != nil {
		return fmt.Errorf("slew to %v: %w", axis, err)
	}
	if offset == 0 {
		return nil
	}

	dir, mag := protocol.Forward, offset
	if offset < 0 {
		dir, mag = protocol.Reverse, -offset
	}
	if mag > 0xFFFFFF {
		return fmt.Errorf("slew to %v: offset %d exceeds 24 bits", axis, offset)
	}
	a := &c.axes[axis]
	mode := protocol.LowSpeed
	if mag > a.gotoMargin && !c.opts.SilentSlew {
		mode = protocol.HighSpeed
	}
	target := a.encoder.Current + offset
	debug.Axis(axis, "SlewTo offset %d (%v %v), target %d", offset, dir, mode, target)

	// Switching from slew to goto is a mode change, so any motion stops.
	if _, err := c.stopUnless(axis, "slew to", func(protocol.AxisStatus) bool { return false }); err != nil {
		return err
	}

	if err := c.setMotionMode(axis, protocol.MotionFunc(true, mode), dir); err != nil {
		return c.fail("slew to", axis, "set motion mode", err)
	}
	if err := c.setGotoTargetOffset(axis, mag); err != nil {
		return c.fail("slew to", axis, "set goto target", err)
	}
	ramp := min(mag, lowSpeedGotoRamp)
	if mode == protocol.HighSpeed {
		ramp = min(mag, highSpeedGotoRamp)
	}
	if err := c.setSlewToModeDecelerationRamp(axis, ramp); err != nil {
		return c.fail("slew to", axis, "set deceleration ramp", err)
	}
	if err := c.startMotion(axis); err != nil {
		return c.fail("slew to", axis, "start motion", err)
	}

	a.status = protocol.GotoStatus(dir, mode)
	a.lastTarget = target
	return nil
}

// InstantStop halts the axis without deceleration. The local status is
// Stopped afterwards.
func (c *Controller) InstantStop(axis protocol.AxisID) error {
	if !axis.Valid() {
		return fmt.Errorf("instant stop: invalid axis %d", axis)
	}
	debug.Axis(axis, "Instant stop")
	if err := c.instantStop(axis); err != nil {
		return c.fail("instant stop", axis, "stop", err)
	}
	a := &c.axes[axis]
	a.status.State = protocol.Stopped
	a.slewSpeed = 0
	return nil
}

// SlowStop decelerates the axis to rest. The local status is left alone;
// RefreshStatus shows when the axis has stopped.
func (c *Controller) SlowStop(axis protocol.AxisID) error {
	if !axis.Valid() {
		return fmt.Errorf("slow stop: invalid axis %d", axis)
	}
	debug.Axis(axis, "Slow stop")
	if err := c.slowStop(axis); err != nil {
		return c.fail("slow stop", axis, "stop", err)
	}
	return nil
}

// StopAll instant-stops both axes, attempting each even if the other fails.
func (c *Controller) StopAll() error {
	var err error
	for _, axis := range protocol.Axes {
		err = multierr.Append(err, c.InstantStop(axis))
	}
	return err
}

// RefreshStatus reads the axis status from the controller and replaces
// the local copy. A goto that has just finished is checked against its
// target.
func (c *Controller) RefreshStatus(axis protocol.AxisID) (protocol.AxisStatus, error) {
	if !axis.Valid() {
		return protocol.AxisStatus{}, fmt.Errorf("refresh status: invalid axis %d", axis)
	}
	st, err := c.QueryStatus(axis)
	if err != nil {
		c.axes[axis].stale = true
		return st, err
	}
	a := &c.axes[axis]
	if a.status.State == protocol.SlewingToTarget && !st.Moving() {
		c.reportGotoResult(axis)
	}
	a.status = st
	a.stale = false
	debug.Verbose("%v status: %v", axis, st)
	return st, nil
}

func (c *Controller) reportGotoResult(axis protocol.AxisID) {
	pos, err := c.ReadEncoder(axis)
	if err != nil {
		debug.Warn("%v: goto finished, encoder read failed: %v", axis, err)
		return
	}
	a := &c.axes[axis]
	miss := a.lastTarget - pos
	debug.Axis(axis, "SlewTo complete: %d microsteps (%.1f arcsec) from target %d, encoder %d",
		miss, a.cal.MicrostepsToDegrees(miss)*3600, a.lastTarget, pos)
}

// stopUnless refreshes the status and, when the axis is moving and
// compatible rejects the motion, slow-stops it and waits for rest. It
// reports whether the axis is stopped on return.
func (c *Controller) stopUnless(axis protocol.AxisID, op string, compatible func(protocol.AxisStatus) bool) (bool, error) {
	st, err := c.RefreshStatus(axis)
	if err != nil {
		return false, c.fail(op, axis, "status", err)
	}
	if !st.Moving() {
		return true, nil
	}
	if compatible(st) {
		return false, nil
	}
	debug.Axis(axis, "Stopping %v motion first", st.State)
	if err := c.slowStop(axis); err != nil {
		return false, c.fail(op, axis, "slow stop", err)
	}
	if err := c.waitForStop(axis); err != nil {
		return false, c.fail(op, axis, "wait for stop", err)
	}
	return true, nil
}

func (c *Controller) waitForStop(axis protocol.AxisID) error {
	for i := 0; i < c.opts.MaxStopPolls; i++ {
		st, err := c.RefreshStatus(axis)
		if err != nil {
			return err
		}
		if !st.Moving() {
			return nil
		}
		c.opts.Sleep(c.opts.PollInterval)
	}
	return fmt.Errorf("%w: still moving after %d polls", protocol.ErrStopTimeout, c.opts.MaxStopPolls)
}

// clockTicks converts a speed to the controller's step period.
func (c *Controller) clockTicks(axis protocol.AxisID, radiansPerSecond float64) int64 {
	ticks := c.axes[axis].cal.RadiansPerSecondToClockTicks(radiansPerSecond)
	if c.identity.needsTickCorrection() {
		ticks -= 3
	}
	return max(minClockTicks, min(ticks, maxClockTicks))
}
