package motion

import "fmt"

// Mount codes with special handling.
const (
	MountCodeGT    = 0x80
	MountCodeMF    = 0x81
	MountCode114GT = 0x82
	MountCodeDOB   = 0x90
)

const (
	minGotoMountCode = 0x80
	minVirtuosoCode  = 0x90

	// Early MC001 firmware misreports microsteps per revolution.
	gtMicrostepsRev    = 0x162B97
	gt114MicrostepsRev = 0x205318
)

var mountFamilies = map[byte]string{
	0x00: "EQ6",
	0x01: "HEQ5",
	0x02: "EQ5",
	0x03: "EQ3",
	0x04: "EQ8",
	0x05: "AZEQ6",
	0x06: "AZEQ5",
	0x80: "GT",
	0x81: "MF",
	0x82: "114GT",
	0x90: "DOB",
	0xF0: "GEEHALEL",
}

// Rotation is the sense in which an axis turns for increasing encoder
// values, seen from above the mount.
type Rotation int

const (
	Anticlockwise Rotation = iota
	Clockwise
)

func (r Rotation) String() string {
	if r == Clockwise {
		return "clockwise"
	}
	return "anticlockwise"
}

// MountIdentity is what the controller reports about itself.
type MountIdentity struct {
	// MCVersion is firmware major, minor and mount code, one byte each.
	MCVersion uint32
	MountCode byte
	DCMotor   bool
}

// IsVirtuoso reports whether the mount is a Virtuoso-style alt-az base.
func (m MountIdentity) IsVirtuoso() bool {
	return m.MountCode >= minVirtuosoCode
}

// Family returns the model name for the mount code.
func (m MountIdentity) Family() string {
	if name, ok := mountFamilies[m.MountCode]; ok {
		return name
	}
	return "CUSTOM"
}

// FirmwareString formats the firmware version as the hand controller
// shows it, e.g. "2.07".
func (m MountIdentity) FirmwareString() string {
	return fmt.Sprintf("%X.%02X", (m.MCVersion>>16)&0xFF, (m.MCVersion>>8)&0xFF)
}

// PositiveRotation is the same for both axes of a mount.
func (m MountIdentity) PositiveRotation() Rotation {
	if m.MountCode == MountCode114GT {
		return Clockwise
	}
	return Anticlockwise
}

func (m MountIdentity) String() string {
	kind := "stepper"
	if m.DCMotor {
		kind = "DC"
	}
	return fmt.Sprintf("%s (code %#02x) firmware %s, %s motors", m.Family(), m.MountCode, m.FirmwareString(), kind)
}

// needsTickCorrection matches the two firmware builds whose step period
// runs 3 ticks slow.
func (m MountIdentity) needsTickCorrection() bool {
	return m.MCVersion == 0x010600 || m.MCVersion == 0x010601
}

// microstepsOverride returns the corrected microsteps per revolution for
// legacy boards that misreport it.
func (m MountIdentity) microstepsOverride() (int64, bool) {
	switch m.MountCode {
	case MountCodeGT:
		return gtMicrostepsRev, true
	case MountCode114GT:
		return gt114MicrostepsRev, true
	}
	return 0, false
}
