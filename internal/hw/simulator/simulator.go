// Package simulator emulates a SkyWatcher motor controller behind the
// serial.Transport interface, so the motion layer can run without a mount.
package simulator

import (
	"fmt"
	"sync"
	"time"

	"github.com/cjeanneret/StarGo/internal/debug"
	"github.com/cjeanneret/StarGo/internal/hw/serial"
	"github.com/cjeanneret/StarGo/internal/protocol"
)

// Error codes sent after the '!' marker.
const (
	codeUnknownCommand  = "0"
	codeLength          = "1"
	codeMotorNotStopped = "2"
	codeInvalidChar     = "3"
)

// Options configures the simulated controller.
type Options struct {
	MountCode byte
	// Firmware is major<<8 | minor, e.g. 0x0207 for 2.07.
	Firmware                uint16
	MicrostepsPerRevolution [2]uint32
	ClockFrequency          uint32
	HighSpeedRatio          uint32
	// MicrostepsPerWormRevolution is nil when the controller should
	// refuse the query, as DC-motor boards do.
	MicrostepsPerWormRevolution *uint32
	Encoder                     [2]uint32
	// DCMotor makes the controller echo every byte it receives.
	DCMotor bool
	// GotoPolls is the number of status reads a goto stays running for.
	GotoPolls int
}

// DefaultOptions returns a GT controller with firmware 2.07 and encoders
// at the usual 0x800000 home value.
func DefaultOptions() Options {
	worm := uint32(0x9000)
	return Options{
		MountCode:                   0x80,
		Firmware:                    0x0207,
		MicrostepsPerRevolution:     [2]uint32{0x162B97, 0x162B97},
		ClockFrequency:              1000000,
		HighSpeedRatio:              16,
		MicrostepsPerWormRevolution: &worm,
		Encoder:                     [2]uint32{0x800000, 0x800000},
	}
}

type axisState struct {
	position    uint32
	running     bool
	initialized bool
	goTo        bool
	reverse     bool
	highSpeed   bool
	ticks       uint32
	offset      uint32
	slewRamp    uint32
	gotoRamp    uint32
	pollsLeft   int
}

// Simulator implements serial.Transport.
type Simulator struct {
	mu       sync.Mutex
	opts     Options
	axes     [2]axisState
	inFrame  bool
	frame    []byte
	out      []byte
	requests []string
	switchOn bool
	closed   bool
}

var _ serial.Transport = (*Simulator)(nil)

// New creates a simulator in the power-on state.
func New(opts Options) *Simulator {
	s := &Simulator{opts: opts}
	for i := range s.axes {
		s.axes[i].position = opts.Encoder[i] & 0xFFFFFF
	}
	debug.Info("Using simulated motor controller (mount code %#02x)", opts.MountCode)
	return s
}

// Write parses request frames and queues the replies.
func (s *Simulator) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, fmt.Errorf("simulator: write on closed port")
	}
	for _, c := range p {
		if s.opts.DCMotor {
			s.out = append(s.out, c)
		}
		switch {
		case c == protocol.StartByte:
			s.inFrame = true
			s.frame = s.frame[:0]
		case c == protocol.Terminator && s.inFrame:
			s.inFrame = false
			s.requests = append(s.requests, ":"+string(s.frame)+"\r")
			s.reply(s.handle(s.frame))
		case s.inFrame:
			s.frame = append(s.frame, c)
		}
	}
	return len(p), nil
}

// ReadByte pops one queued reply byte. The timeout is not waited out:
// an empty queue reports serial.ErrTimeout at once.
func (s *Simulator) ReadByte(time.Duration) (byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.out) == 0 {
		return 0, serial.ErrTimeout
	}
	c := s.out[0]
	s.out = s.out[1:]
	return c, nil
}

// Flush drops unread reply bytes.
func (s *Simulator) Flush() error {
	s.mu.Lock()
	s.out = s.out[:0]
	s.mu.Unlock()
	return nil
}

func (s *Simulator) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Requests returns every complete request frame received so far.
func (s *Simulator) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// ResetRequests forgets the recorded request frames.
func (s *Simulator) ResetRequests() {
	s.mu.Lock()
	s.requests = nil
	s.mu.Unlock()
}

// Position returns the simulated encoder of an axis.
func (s *Simulator) Position(axis protocol.AxisID) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.axes[axis].position
}

// Running reports whether the simulated axis is moving.
func (s *Simulator) Running(axis protocol.AxisID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.axes[axis].running
}

// SwitchOn reports the state of the auxiliary switch.
func (s *Simulator) SwitchOn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.switchOn
}

func (s *Simulator) reply(ok bool, payload string) {
	marker := protocol.GoodMarker
	if !ok {
		marker = protocol.ErrorMarker
	}
	s.out = append(s.out, marker)
	s.out = append(s.out, payload...)
	s.out = append(s.out, protocol.Terminator)
}

func fail(code string) (bool, string) { return false, code }

func (s *Simulator) handle(frame []byte) (bool, string) {
	if len(frame) < 2 {
		return fail(codeLength)
	}
	cmd := protocol.Command(frame[0])
	var axis protocol.AxisID
	switch frame[1] {
	case '1':
		axis = protocol.Axis1
	case '2':
		axis = protocol.Axis2
	default:
		return fail(codeInvalidChar)
	}
	payload := string(frame[2:])
	a := &s.axes[axis]

	switch cmd {
	case protocol.CmdMotorBoardVersion:
		mc := uint32(s.opts.Firmware)<<8 | uint32(s.opts.MountCode)
		return true, protocol.Encode24(swapBytes(mc))
	case protocol.CmdMicrostepsPerRevolution:
		return true, protocol.Encode24(s.opts.MicrostepsPerRevolution[axis])
	case protocol.CmdStepperClockFrequency:
		return true, protocol.Encode24(s.opts.ClockFrequency)
	case protocol.CmdHighSpeedRatio:
		return true, fmt.Sprintf("%02X", s.opts.HighSpeedRatio&0xFF)
	case protocol.CmdMicrostepsPerWormRev:
		if s.opts.MicrostepsPerWormRevolution == nil {
			return fail(codeUnknownCommand)
		}
		return true, protocol.Encode24(*s.opts.MicrostepsPerWormRevolution)
	case protocol.CmdReadEncoder:
		return true, protocol.Encode24(a.position)
	case protocol.CmdSetEncoder:
		if a.running {
			return fail(codeMotorNotStopped)
		}
		v, err := protocol.Decode24(payload)
		if err != nil {
			return fail(codeInvalidChar)
		}
		a.position = v
		return true, ""
	case protocol.CmdSlowStop, protocol.CmdInstantStop:
		a.running = false
		a.pollsLeft = 0
		return true, ""
	case protocol.CmdInitializationDone:
		a.initialized = true
		return true, ""
	case protocol.CmdStatus:
		status := s.status(a)
		if a.running && a.goTo {
			if a.pollsLeft--; a.pollsLeft <= 0 {
				a.running = false
			}
		}
		return true, protocol.EncodeStatus(status)
	case protocol.CmdSetMotionMode:
		return s.setMotionMode(a, payload)
	case protocol.CmdSetClockTicks:
		// Speed changes are accepted during a continuous slew.
		if a.running && a.goTo {
			return fail(codeMotorNotStopped)
		}
		return decodeInto(&a.ticks, payload)
	case protocol.CmdSetGotoTargetOffset:
		if a.running {
			return fail(codeMotorNotStopped)
		}
		return decodeInto(&a.offset, payload)
	case protocol.CmdSetSlewModeRamp:
		return decodeInto(&a.slewRamp, payload)
	case protocol.CmdSetSlewToModeRamp:
		return decodeInto(&a.gotoRamp, payload)
	case protocol.CmdStartMotion:
		s.start(a)
		return true, ""
	case protocol.CmdSetSwitch:
		switch payload {
		case "0":
			s.switchOn = false
		case "1":
			s.switchOn = true
		default:
			return fail(codeInvalidChar)
		}
		return true, ""
	default:
		return fail(codeUnknownCommand)
	}
}

func (s *Simulator) setMotionMode(a *axisState, payload string) (bool, string) {
	if a.running {
		return fail(codeMotorNotStopped)
	}
	if len(payload) != 2 {
		return fail(codeLength)
	}
	switch protocol.Func(payload[0]) {
	case protocol.FuncGotoHighSpeed:
		a.goTo, a.highSpeed = true, true
	case protocol.FuncSlewLowSpeed:
		a.goTo, a.highSpeed = false, false
	case protocol.FuncGotoLowSpeed:
		a.goTo, a.highSpeed = true, false
	case protocol.FuncSlewHighSpeed:
		a.goTo, a.highSpeed = false, true
	default:
		return fail(codeInvalidChar)
	}
	switch payload[1] {
	case '0':
		a.reverse = false
	case '1':
		a.reverse = true
	default:
		return fail(codeInvalidChar)
	}
	return true, ""
}

func (s *Simulator) start(a *axisState) {
	if a.running {
		return
	}
	if !a.goTo {
		a.running = true
		return
	}
	if a.reverse {
		a.position = (a.position - a.offset) & 0xFFFFFF
	} else {
		a.position = (a.position + a.offset) & 0xFFFFFF
	}
	a.pollsLeft = s.opts.GotoPolls
	a.running = a.pollsLeft > 0
}

func (s *Simulator) status(a *axisState) protocol.AxisStatus {
	var st protocol.AxisStatus
	dir := protocol.Forward
	if a.reverse {
		dir = protocol.Reverse
	}
	speed := protocol.LowSpeed
	if a.highSpeed {
		speed = protocol.HighSpeed
	}
	switch {
	case !a.running:
		st = protocol.StoppedStatus()
		st.Direction, st.Speed = dir, speed
	case a.goTo:
		st = protocol.GotoStatus(dir, speed)
	default:
		st = protocol.ContinuousStatus(dir, speed)
	}
	st.NotInitialized = !a.initialized
	return st
}

func decodeInto(dst *uint32, payload string) (bool, string) {
	v, err := protocol.Decode24(payload)
	if err != nil {
		return fail(codeInvalidChar)
	}
	*dst = v
	return true, ""
}

func swapBytes(v uint32) uint32 {
	return (v&0xFF)<<16 | v&0xFF00 | (v&0xFF0000)>>16
}
