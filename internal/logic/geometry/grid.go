package geometry

import (
	"fmt"
	"math"

	"github.com/cjeanneret/StarGo/internal/logic/units"
)

// maxDeclination keeps the right ascension stretch finite near the pole.
const maxDeclination = 80.0

// MosaicRequest describes the sky area to tile.
type MosaicRequest struct {
	Optics Optics
	// OverlapRatio is the shared fraction between neighbours, in [0, 1).
	OverlapRatio float64
	// WidthDeg spans axis 1, HeightDeg spans axis 2.
	WidthDeg  float64
	HeightDeg float64
	// DeclinationDeg widens axis-1 steps by 1/cos(dec) on equatorial
	// mounts. Zero for alt-az mounts.
	DeclinationDeg float64
}

// MosaicPlan is a grid of frames centred on the current position.
type MosaicPlan struct {
	Columns int // frames along axis 1
	Rows    int // frames along axis 2

	StepDeg [2]float64 // rotation between frames, per axis
	Step    [2]int64   // same, in microsteps

	// Start is the offset from the centre to the first frame, per axis.
	Start [2]int64
}

// Frames returns the number of exposures in the plan.
func (p *MosaicPlan) Frames() int {
	return p.Columns * p.Rows
}

// PlanMosaic computes the grid needed to cover the request, with each
// axis converted through its calibration.
func PlanMosaic(req MosaicRequest, cal [2]units.Calibration) (*MosaicPlan, error) {
	if err := req.Optics.Validate(); err != nil {
		return nil, err
	}
	if req.OverlapRatio < 0 || req.OverlapRatio >= 1 {
		return nil, fmt.Errorf("mosaic: overlap must be in [0, 1), got %g", req.OverlapRatio)
	}
	if req.WidthDeg < 0 || req.HeightDeg < 0 || req.WidthDeg > 360 || req.HeightDeg > 180 {
		return nil, fmt.Errorf("mosaic: area %gx%g degrees out of range", req.WidthDeg, req.HeightDeg)
	}
	if math.Abs(req.DeclinationDeg) > maxDeclination {
		return nil, fmt.Errorf("mosaic: declination must be within ±%g degrees, got %g", maxDeclination, req.DeclinationDeg)
	}
	for i, c := range cal {
		if c.MicrostepsPerDegree == 0 {
			return nil, fmt.Errorf("mosaic: axis %d is not calibrated", i+1)
		}
	}

	stretch := 1 / math.Cos(req.DeclinationDeg*math.Pi/180)
	step := [2]float64{
		StepAngle(req.Optics.HorizontalFOV(), req.OverlapRatio) * stretch,
		StepAngle(req.Optics.VerticalFOV(), req.OverlapRatio),
	}

	columns := frames(req.WidthDeg*stretch, step[0])
	rows := frames(req.HeightDeg, step[1])

	plan := &MosaicPlan{Columns: columns, Rows: rows, StepDeg: step}
	counts := [2]int{columns, rows}
	for i := range cal {
		plan.Step[i] = cal[i].DegreesToMicrosteps(step[i])
		plan.Start[i] = -int64(counts[i]-1) * plan.Step[i] / 2
	}
	return plan, nil
}

// frames returns how many frames of step degrees cover span, at least one.
func frames(span, step float64) int {
	n := int(math.Ceil(span / step))
	if n < 1 {
		return 1
	}
	return n
}
