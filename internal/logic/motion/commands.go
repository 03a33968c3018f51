package motion

import (
	"fmt"

	"github.com/cjeanneret/StarGo/internal/debug"
	"github.com/cjeanneret/StarGo/internal/protocol"
)

// query sends a command without payload and decodes a 24-bit reply.
func (c *Controller) query(axis protocol.AxisID, cmd protocol.Command) (int64, error) {
	resp, err := c.talk(axis, cmd, "")
	if err != nil {
		return 0, err
	}
	v, err := protocol.Decode24(resp)
	if err != nil {
		return 0, fmt.Errorf("%v reply: %w", cmd, err)
	}
	return int64(v), nil
}

// set sends a command with a 24-bit payload. Values the register
// cannot hold are refused rather than truncated.
func (c *Controller) set(axis protocol.AxisID, cmd protocol.Command, value int64) error {
	if value < 0 || value > 0xFFFFFF {
		return fmt.Errorf("%v: value %d does not fit in 24 bits", cmd, value)
	}
	_, err := c.talk(axis, cmd, protocol.Encode24(uint32(value)))
	return err
}

// MotorBoardVersion returns the controller's MCVersion: firmware major,
// minor and mount code, most significant byte first.
func (c *Controller) MotorBoardVersion() (uint32, error) {
	raw, err := c.query(protocol.Axis1, protocol.CmdMotorBoardVersion)
	if err != nil {
		return 0, err
	}
	v := uint32(raw)
	return (v&0xFF)<<16 | v&0xFF00 | (v&0xFF0000)>>16, nil
}

func (c *Controller) microstepsPerRevolution(axis protocol.AxisID) (int64, error) {
	return c.query(axis, protocol.CmdMicrostepsPerRevolution)
}

func (c *Controller) stepperClockFrequency(axis protocol.AxisID) (int64, error) {
	return c.query(axis, protocol.CmdStepperClockFrequency)
}

func (c *Controller) highSpeedRatio(axis protocol.AxisID) (int64, error) {
	resp, err := c.talk(axis, protocol.CmdHighSpeedRatio, "")
	if err != nil {
		return 0, err
	}
	v, err := protocol.DecodeHigh8(resp)
	if err != nil {
		return 0, fmt.Errorf("%v reply: %w", protocol.CmdHighSpeedRatio, err)
	}
	return int64(v), nil
}

func (c *Controller) microstepsPerWormRevolution(axis protocol.AxisID) (int64, error) {
	return c.query(axis, protocol.CmdMicrostepsPerWormRev)
}

// ReadEncoder reads the axis position and updates the cached encoder.
func (c *Controller) ReadEncoder(axis protocol.AxisID) (int64, error) {
	v, err := c.query(axis, protocol.CmdReadEncoder)
	if err != nil {
		return 0, err
	}
	c.axes[axis].encoder.Current = v
	return v, nil
}

// SetEncoder overwrites the controller's position counter. The axis
// must be stopped.
func (c *Controller) SetEncoder(axis protocol.AxisID, microsteps int64) error {
	if err := c.set(axis, protocol.CmdSetEncoder, microsteps); err != nil {
		return err
	}
	c.axes[axis].encoder.Current = microsteps
	return nil
}

func (c *Controller) markInitialized(axis protocol.AxisID) error {
	_, err := c.talk(axis, protocol.CmdInitializationDone, "")
	return err
}

// QueryStatus reads the axis status without touching the local copy.
func (c *Controller) QueryStatus(axis protocol.AxisID) (protocol.AxisStatus, error) {
	resp, err := c.talk(axis, protocol.CmdStatus, "")
	if err != nil {
		return protocol.AxisStatus{}, err
	}
	return protocol.ParseStatus(resp)
}

func (c *Controller) setMotionMode(axis protocol.AxisID, f protocol.Func, d protocol.Direction) error {
	_, err := c.talk(axis, protocol.CmdSetMotionMode, protocol.EncodeMotionMode(f, d))
	return err
}

func (c *Controller) setClockTicksPerMicrostep(axis protocol.AxisID, ticks int64) error {
	return c.set(axis, protocol.CmdSetClockTicks, ticks)
}

func (c *Controller) setGotoTargetOffset(axis protocol.AxisID, offset int64) error {
	return c.set(axis, protocol.CmdSetGotoTargetOffset, offset)
}

// SetSlewModeDecelerationRamp sets the braking distance, in microsteps,
// used when a continuous slew is stopped.
func (c *Controller) SetSlewModeDecelerationRamp(axis protocol.AxisID, microsteps int64) error {
	return c.set(axis, protocol.CmdSetSlewModeRamp, microsteps)
}

func (c *Controller) setSlewToModeDecelerationRamp(axis protocol.AxisID, microsteps int64) error {
	return c.set(axis, protocol.CmdSetSlewToModeRamp, microsteps)
}

func (c *Controller) startMotion(axis protocol.AxisID) error {
	_, err := c.talk(axis, protocol.CmdStartMotion, "")
	return err
}

func (c *Controller) slowStop(axis protocol.AxisID) error {
	_, err := c.talk(axis, protocol.CmdSlowStop, "")
	return err
}

func (c *Controller) instantStop(axis protocol.AxisID) error {
	_, err := c.talk(axis, protocol.CmdInstantStop, "")
	return err
}

// SetSwitch drives the controller's auxiliary output, usually wired to
// a camera snap port.
func (c *Controller) SetSwitch(on bool) error {
	payload := "0"
	if on {
		payload = "1"
	}
	debug.Live("Auxiliary switch -> %s", payload)
	_, err := c.talk(protocol.Axis1, protocol.CmdSetSwitch, payload)
	return err
}
