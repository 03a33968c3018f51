// Package capture runs photo sequences that combine mount motion with
// camera exposures.
package capture

import (
	"context"
	"fmt"
	"time"

	"github.com/cjeanneret/StarGo/internal/debug"
	"github.com/cjeanneret/StarGo/internal/hw/camera"
	"github.com/cjeanneret/StarGo/internal/logic/geometry"
	"github.com/cjeanneret/StarGo/internal/protocol"
)

// Default timing used when Params leaves a field at zero.
const (
	DefaultPollInterval = 100 * time.Millisecond
	DefaultMaxPolls     = 600
)

// Mount is the part of the motion controller a sequence drives.
type Mount interface {
	SlewTo(axis protocol.AxisID, offset int64) error
	RefreshStatus(axis protocol.AxisID) (protocol.AxisStatus, error)
}

// Sequence contains high-level logic for photo capture.
type Sequence struct {
	mount  Mount
	camera camera.Camera
	sleep  func(time.Duration)
}

func NewSequence(m Mount, c camera.Camera) *Sequence {
	return &Sequence{
		mount:  m,
		camera: c,
		sleep:  time.Sleep,
	}
}

// MosaicParams defines the parameters for a mosaic traversal.
type MosaicParams struct {
	Plan *geometry.MosaicPlan

	Settle   time.Duration // pause after a goto, before the exposure
	PostShot time.Duration // pause after the exposure, before moving

	// PollInterval and MaxPolls bound the wait for each goto.
	PollInterval time.Duration
	MaxPolls     int
}

func (p MosaicParams) withDefaults() MosaicParams {
	if p.PollInterval <= 0 {
		p.PollInterval = DefaultPollInterval
	}
	if p.MaxPolls <= 0 {
		p.MaxPolls = DefaultMaxPolls
	}
	return p
}

// RunMosaic shoots the plan in columns (serpentine pattern):
// Column 0: first row to last, then one step along axis 1
// Column 1: last row to first, then one step along axis 1
// etc.
// The mount returns to the centre once the last frame is taken. On
// error or cancellation it stays where it is.
func (s *Sequence) RunMosaic(ctx context.Context, p MosaicParams) error {
	p = p.withDefaults()
	plan := p.Plan
	if plan == nil || plan.Frames() == 0 {
		return fmt.Errorf("mosaic: empty plan")
	}

	debug.Section("Mosaic")
	debug.Live("%d columns x %d rows, %d frames", plan.Columns, plan.Rows, plan.Frames())

	var pos [2]int64
	moveTo := func(target [2]int64) error {
		if err := s.goTo(ctx, p, pos, target); err != nil {
			return err
		}
		pos = target
		return nil
	}

	if err := moveTo(plan.Start); err != nil {
		return fmt.Errorf("mosaic: move to start: %w", err)
	}

	frame := 0
	for col := 0; col < plan.Columns; col++ {
		forward := col%2 == 0
		debug.Verbose("Column %d/%d", col+1, plan.Columns)

		for i := 0; i < plan.Rows; i++ {
			row := i
			if !forward {
				row = plan.Rows - 1 - i
			}
			target := [2]int64{
				plan.Start[0] + int64(col)*plan.Step[0],
				plan.Start[1] + int64(row)*plan.Step[1],
			}
			if err := moveTo(target); err != nil {
				return fmt.Errorf("mosaic: frame %d: %w", frame+1, err)
			}
			if err := s.wait(ctx, p.Settle); err != nil {
				return err
			}
			frame++
			debug.Shot(fmt.Sprintf("mosaic %d/%d (column %d, row %d)", frame, plan.Frames(), col+1, row+1))
			if err := s.camera.Shoot(); err != nil {
				return fmt.Errorf("mosaic: frame %d: %w", frame, err)
			}
			if err := s.wait(ctx, p.PostShot); err != nil {
				return err
			}
		}
	}

	if err := moveTo([2]int64{}); err != nil {
		return fmt.Errorf("mosaic: return to centre: %w", err)
	}
	debug.Live("Mosaic complete")
	return nil
}

// goTo moves each axis from pos to target and waits for both to stop.
func (s *Sequence) goTo(ctx context.Context, p MosaicParams, pos, target [2]int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var moved []protocol.AxisID
	for _, axis := range protocol.Axes {
		offset := target[axis] - pos[axis]
		if offset == 0 {
			continue
		}
		if err := s.mount.SlewTo(axis, offset); err != nil {
			return err
		}
		moved = append(moved, axis)
	}
	for _, axis := range moved {
		if err := s.waitForGoto(ctx, p, axis); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sequence) waitForGoto(ctx context.Context, p MosaicParams, axis protocol.AxisID) error {
	for i := 0; i < p.MaxPolls; i++ {
		st, err := s.mount.RefreshStatus(axis)
		if err != nil {
			return err
		}
		if !st.Moving() {
			return nil
		}
		if err := s.wait(ctx, p.PollInterval); err != nil {
			return err
		}
	}
	return fmt.Errorf("%v: %w: goto still running after %d polls", axis, protocol.ErrStopTimeout, p.MaxPolls)
}

// wait pauses for d unless ctx is cancelled first.
func (s *Sequence) wait(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d > 0 {
		s.sleep(d)
	}
	return ctx.Err()
}
