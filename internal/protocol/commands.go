package protocol

// AxisID identifies one of the two motor channels.
type AxisID int

const (
	Axis1 AxisID = iota
	Axis2
)

// Axes lists both axes in protocol order.
var Axes = [2]AxisID{Axis1, Axis2}

// Byte returns the axis selector sent on the wire.
func (a AxisID) Byte() byte {
	if a == Axis2 {
		return '2'
	}
	return '1'
}

func (a AxisID) String() string {
	if a == Axis2 {
		return "AXIS2"
	}
	return "AXIS1"
}

// Valid reports whether a names a real axis.
func (a AxisID) Valid() bool {
	return a == Axis1 || a == Axis2
}

// Command is a single command letter.
type Command byte

const (
	CmdMotorBoardVersion       Command = 'e'
	CmdMicrostepsPerRevolution Command = 'a'
	CmdStepperClockFrequency   Command = 'b'
	CmdHighSpeedRatio          Command = 'g'
	CmdMicrostepsPerWormRev    Command = 's'
	CmdReadEncoder             Command = 'j'
	CmdSetEncoder              Command = 'E' // firmware expects E; L with a payload is an instant stop
	CmdSlowStop                Command = 'K'
	CmdInstantStop             Command = 'L'
	CmdInitializationDone      Command = 'F'
	CmdStatus                  Command = 'f'
	CmdSetMotionMode           Command = 'G'
	CmdSetClockTicks           Command = 'I'
	CmdSetGotoTargetOffset     Command = 'H'
	CmdSetSlewModeRamp         Command = 'U'
	CmdSetSlewToModeRamp       Command = 'M'
	CmdStartMotion             Command = 'J'
	CmdSetSwitch               Command = 'O'
)

var commandNames = map[Command]string{
	CmdMotorBoardVersion:       "motor board version",
	CmdMicrostepsPerRevolution: "microsteps per revolution",
	CmdStepperClockFrequency:   "stepper clock frequency",
	CmdHighSpeedRatio:          "high speed ratio",
	CmdMicrostepsPerWormRev:    "microsteps per worm revolution",
	CmdReadEncoder:             "read encoder",
	CmdSetEncoder:              "set encoder",
	CmdSlowStop:                "slow stop",
	CmdInstantStop:             "instant stop",
	CmdInitializationDone:      "initialization done",
	CmdStatus:                  "status",
	CmdSetMotionMode:           "set motion mode",
	CmdSetClockTicks:           "set clock ticks per microstep",
	CmdSetGotoTargetOffset:     "set goto target offset",
	CmdSetSlewModeRamp:         "set slew mode deceleration ramp",
	CmdSetSlewToModeRamp:       "set slew-to mode deceleration ramp",
	CmdStartMotion:             "start motion",
	CmdSetSwitch:               "set switch",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return "command " + string([]byte{byte(c)})
}
