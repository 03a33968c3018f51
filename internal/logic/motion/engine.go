package motion

import (
	"errors"
	"fmt"

	"github.com/cjeanneret/StarGo/internal/debug"
	"github.com/cjeanneret/StarGo/internal/hw/serial"
	"github.com/cjeanneret/StarGo/internal/protocol"
)

// maxResponseBytes bounds a single exchange so a chattering line cannot
// hold the caller forever.
const maxResponseBytes = 256

// talk sends one command and returns the reply payload. Every hardware
// access goes through here; nothing is retried.
func (c *Controller) talk(axis protocol.AxisID, cmd protocol.Command, payload string) (string, error) {
	if !axis.Valid() {
		return "", fmt.Errorf("%v: invalid axis %d", cmd, axis)
	}
	if f, ok := c.port.(serial.Flusher); ok {
		if err := f.Flush(); err != nil {
			return "", fmt.Errorf("%w: flush before %v: %w", protocol.ErrTransportError, cmd, err)
		}
	}

	req := protocol.BuildRequest(cmd, axis, payload)
	debug.Wire("tx", axis, string(req))
	n, err := c.port.Write(req)
	if err != nil {
		return "", fmt.Errorf("%w: write %v: %w", protocol.ErrTransportError, cmd, err)
	}
	if n != len(req) {
		return "", fmt.Errorf("%w: short write %v: %d of %d bytes", protocol.ErrTransportError, cmd, n, len(req))
	}

	c.reader.Reset()
	for i := 0; ; i++ {
		if i == maxResponseBytes {
			return "", fmt.Errorf("%w: %v: no frame in %d bytes", protocol.ErrTransportError, cmd, maxResponseBytes)
		}
		b, err := c.port.ReadByte(c.opts.ReadTimeout)
		if err != nil {
			if errors.Is(err, serial.ErrTimeout) {
				return "", fmt.Errorf("%w: %v on %v", protocol.ErrTransportTimeout, cmd, axis)
			}
			return "", fmt.Errorf("%w: read %v: %w", protocol.ErrTransportError, cmd, err)
		}
		if c.reader.Feed(b) {
			break
		}
	}

	resp := c.reader.Response()
	if !resp.OK {
		debug.Wire("rx!", axis, resp.Payload)
		return "", &protocol.ControllerError{Axis: axis, Command: cmd, Code: resp.Payload}
	}
	debug.Wire("rx", axis, resp.Payload)
	return resp.Payload, nil
}

// probeDCMotor detects DC-motor controllers, which echo every byte they
// receive. Silence means a stepper controller.
func (c *Controller) probeDCMotor() (bool, error) {
	if f, ok := c.port.(serial.Flusher); ok {
		if err := f.Flush(); err != nil {
			return false, fmt.Errorf("%w: flush: %w", protocol.ErrTransportError, err)
		}
	}
	for i := 0; i < maxResponseBytes; i++ {
		_, err := c.port.ReadByte(c.opts.ProbeTimeout)
		if errors.Is(err, serial.ErrTimeout) {
			break
		}
		if err != nil {
			return false, fmt.Errorf("%w: drain: %w", protocol.ErrTransportError, err)
		}
	}

	if _, err := c.port.Write([]byte{protocol.StartByte}); err != nil {
		return false, fmt.Errorf("%w: probe write: %w", protocol.ErrTransportError, err)
	}
	b, err := c.port.ReadByte(c.opts.ProbeTimeout)
	if errors.Is(err, serial.ErrTimeout) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: probe read: %w", protocol.ErrTransportError, err)
	}
	return b == protocol.StartByte, nil
}
