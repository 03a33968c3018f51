package geometry

import (
	"fmt"
	"math"
)

// Optics describes the imaging train: camera sensor behind a telescope or lens.
type Optics struct {
	FocalLengthMm  float64
	SensorWidthMm  float64
	SensorHeightMm float64
}

// Validate checks that every dimension is a positive number.
func (o Optics) Validate() error {
	for _, v := range []struct {
		name string
		val  float64
	}{
		{"focal length", o.FocalLengthMm},
		{"sensor width", o.SensorWidthMm},
		{"sensor height", o.SensorHeightMm},
	} {
		if math.IsNaN(v.val) || math.IsInf(v.val, 0) || v.val <= 0 {
			return fmt.Errorf("optics: %s must be > 0, got %g", v.name, v.val)
		}
	}
	return nil
}

// HorizontalFOV calculates the horizontal field of view in degrees.
// Formula: FOV = 2 × arctan(sensor_width / (2 × focal_length))
func (o Optics) HorizontalFOV() float64 {
	return fov(o.SensorWidthMm, o.FocalLengthMm)
}

// VerticalFOV calculates the vertical field of view in degrees.
func (o Optics) VerticalFOV() float64 {
	return fov(o.SensorHeightMm, o.FocalLengthMm)
}

func fov(sensorMm, focalMm float64) float64 {
	return 2.0 * math.Atan(sensorMm/(2.0*focalMm)) * 180.0 / math.Pi
}

// StepAngle is the rotation between two neighbouring frames that keeps
// overlapRatio of each frame shared with the next: FOV × (1 - overlap).
func StepAngle(fovDeg, overlapRatio float64) float64 {
	return fovDeg * (1.0 - overlapRatio)
}
