package protocol

import "fmt"

// MotionState is the mutually exclusive motion state of an axis.
type MotionState int

const (
	Stopped MotionState = iota
	SlewingContinuous
	SlewingToTarget
)

func (s MotionState) String() string {
	switch s {
	case SlewingContinuous:
		return "slewing"
	case SlewingToTarget:
		return "slewing_to"
	default:
		return "stopped"
	}
}

// Direction of travel; Forward increases the encoder count.
type Direction int

const (
	Forward Direction = iota
	Reverse
)

func (d Direction) String() string {
	if d == Reverse {
		return "reverse"
	}
	return "forward"
}

// SpeedMode is the controller's stepping mode.
type SpeedMode int

const (
	LowSpeed SpeedMode = iota
	HighSpeed
)

func (m SpeedMode) String() string {
	if m == HighSpeed {
		return "high"
	}
	return "low"
}

// AxisStatus is one axis' motion state. Direction and Speed only mean
// something while State != Stopped.
type AxisStatus struct {
	State          MotionState
	Direction      Direction
	Speed          SpeedMode
	NotInitialized bool
}

// StoppedStatus returns a stopped status.
func StoppedStatus() AxisStatus {
	return AxisStatus{State: Stopped}
}

// ContinuousStatus returns a continuous slewing status.
func ContinuousStatus(d Direction, m SpeedMode) AxisStatus {
	return AxisStatus{State: SlewingContinuous, Direction: d, Speed: m}
}

// GotoStatus returns a slewing-to-target status.
func GotoStatus(d Direction, m SpeedMode) AxisStatus {
	return AxisStatus{State: SlewingToTarget, Direction: d, Speed: m}
}

// Moving reports whether the axis is slewing in either mode.
func (s AxisStatus) Moving() bool {
	return s.State != Stopped
}

func (s AxisStatus) String() string {
	if s.State == Stopped {
		return fmt.Sprintf("stopped (initialized=%t)", !s.NotInitialized)
	}
	return fmt.Sprintf("%s %s %s-speed (initialized=%t)", s.State, s.Direction, s.Speed, !s.NotInitialized)
}

// Status bits.
const (
	statusSlewMode  = 0x01 // byte 0: continuous slew (clear: goto)
	statusReverse   = 0x02 // byte 0
	statusHighSpeed = 0x04 // byte 0
	statusRunning   = 0x01 // byte 1
	statusInitDone  = 0x01 // byte 2
)

// InterpretStatus decodes the three status bytes of the 'f' reply. The
// controller sends each as an ASCII hex digit; anything else is tested as
// a raw byte.
func InterpretStatus(raw [3]byte) AxisStatus {
	var v [3]byte
	for i, c := range raw {
		if n, ok := nibble(c); ok {
			v[i] = n
		} else {
			v[i] = c
		}
	}

	var s AxisStatus
	if v[1]&statusRunning != 0 {
		if v[0]&statusSlewMode != 0 {
			s.State = SlewingContinuous
		} else {
			s.State = SlewingToTarget
		}
	}
	if v[0]&statusReverse != 0 {
		s.Direction = Reverse
	}
	if v[0]&statusHighSpeed != 0 {
		s.Speed = HighSpeed
	}
	s.NotInitialized = v[2]&statusInitDone == 0
	return s
}

// ParseStatus decodes a status reply payload.
func ParseStatus(payload string) (AxisStatus, error) {
	if len(payload) < 3 {
		return AxisStatus{}, fmt.Errorf("%w: status reply %q too short", ErrMalformedEncoding, payload)
	}
	return InterpretStatus([3]byte{payload[0], payload[1], payload[2]}), nil
}

// EncodeStatus is the inverse of InterpretStatus; the simulator replies with it.
func EncodeStatus(s AxisStatus) string {
	var b0, b1, b2 byte
	if s.State == SlewingContinuous {
		b0 |= statusSlewMode
	}
	if s.Direction == Reverse {
		b0 |= statusReverse
	}
	if s.Speed == HighSpeed {
		b0 |= statusHighSpeed
	}
	if s.Moving() {
		b1 |= statusRunning
	}
	if !s.NotInitialized {
		b2 |= statusInitDone
	}
	return string([]byte{hexDigits[b0], hexDigits[b1], hexDigits[b2]})
}
