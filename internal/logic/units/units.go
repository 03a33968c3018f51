package units

import "math"

// SiderealRate is the Earth's sidereal angular rate in radians per second.
const SiderealRate = 2 * math.Pi / 86164.09065

const (
	// LowSpeedMargin is the speed (rad/s) above which continuous slews use
	// the controller's high-speed stepping mode.
	LowSpeedMargin = 128.0 * SiderealRate

	// MaxSpeed clamps requested slew speeds. The unit is taken to be rad/s;
	// it has not been checked against a controller datasheet.
	MaxSpeed = 500.0

	// NegligibleSpeed is the magnitude at or below which a slew request
	// means "stop".
	NegligibleSpeed = SiderealRate / 1000.0

	// gotoMarginRate is 5 seconds of travel at 128x sidereal.
	gotoMarginRate = 640.0 * SiderealRate
)

// Calibration holds the per-axis constants read from the controller, plus
// the values derived from microsteps per revolution.
type Calibration struct {
	MicrostepsPerRevolution int64
	StepperClockFrequency   int64
	HighSpeedRatio          int64

	// MicrostepsPerWormRevolution is nil when the controller does not report it.
	MicrostepsPerWormRevolution *int64

	RadiansPerMicrostep float64
	MicrostepsPerRadian float64
	DegreesPerMicrostep float64
	MicrostepsPerDegree float64
}

// NewCalibration creates a calibration with the derived constants computed
// from microstepsPerRev.
func NewCalibration(microstepsPerRev int64) Calibration {
	var c Calibration
	c.SetMicrostepsPerRevolution(microstepsPerRev)
	return c
}

// SetMicrostepsPerRevolution stores the raw value and recomputes the
// derived constants.
func (c *Calibration) SetMicrostepsPerRevolution(n int64) {
	c.MicrostepsPerRevolution = n
	if n == 0 {
		c.RadiansPerMicrostep, c.MicrostepsPerRadian = 0, 0
		c.DegreesPerMicrostep, c.MicrostepsPerDegree = 0, 0
		return
	}
	raw := float64(n)
	c.MicrostepsPerRadian = raw / (2 * math.Pi)
	c.RadiansPerMicrostep = 2 * math.Pi / raw
	c.MicrostepsPerDegree = raw / 360.0
	c.DegreesPerMicrostep = 360.0 / raw
}

// ArcsecondsPerMicrostep returns the angular resolution of the axis.
func (c Calibration) ArcsecondsPerMicrostep() float64 {
	return c.DegreesPerMicrostep * 3600.0
}

// RadiansPerSecondToClockTicks converts an angular speed to the controller's
// clock ticks per microstep. Smaller values mean faster motion.
func (c Calibration) RadiansPerSecondToClockTicks(radiansPerSecond float64) int64 {
	return clockTicks(c.StepperClockFrequency, radiansPerSecond*c.MicrostepsPerRadian)
}

// DegreesPerSecondToClockTicks is RadiansPerSecondToClockTicks for degrees.
func (c Calibration) DegreesPerSecondToClockTicks(degreesPerSecond float64) int64 {
	return clockTicks(c.StepperClockFrequency, degreesPerSecond*c.MicrostepsPerDegree)
}

func clockTicks(frequency int64, microstepsPerSecond float64) int64 {
	return int64(math.Floor(float64(frequency) / microstepsPerSecond))
}

// RadiansToMicrosteps converts an angle to microsteps, truncating toward zero.
func (c Calibration) RadiansToMicrosteps(radians float64) int64 {
	return int64(radians * c.MicrostepsPerRadian)
}

// DegreesToMicrosteps converts an angle to microsteps, truncating toward zero.
func (c Calibration) DegreesToMicrosteps(degrees float64) int64 {
	return int64(degrees * c.MicrostepsPerDegree)
}

// MicrostepsToRadians converts microsteps to an angle in radians.
func (c Calibration) MicrostepsToRadians(microsteps int64) float64 {
	return float64(microsteps) * c.RadiansPerMicrostep
}

// MicrostepsToDegrees converts microsteps to an angle in degrees.
func (c Calibration) MicrostepsToDegrees(microsteps int64) float64 {
	return float64(microsteps) * c.DegreesPerMicrostep
}

// LowSpeedGotoMargin is the distance from a goto target, in microsteps,
// inside which the axis must not be travelling at high speed.
func LowSpeedGotoMargin(c Calibration) int64 {
	return int64(gotoMarginRate * c.MicrostepsPerRadian)
}
