package web

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/cjeanneret/StarGo/internal/hw/camera"
	"github.com/cjeanneret/StarGo/internal/logic/capture"
	"github.com/cjeanneret/StarGo/internal/logic/geometry"
	"github.com/cjeanneret/StarGo/internal/protocol"
)

func newMosaicHandlers(t *testing.T, cam camera.Camera, run MosaicFunc) (*Handlers, http.Handler) {
	t.Helper()
	c, _ := newMount(t, true)
	h := NewHandlers(NewLogBroadcaster(), c, cam)
	h.RunMosaic = run
	return h, NewServer(":0", h).Mux()
}

// waitMosaic blocks until the running mosaic, if any, has exited.
func waitMosaic(t *testing.T, h *Handlers) {
	t.Helper()
	h.runningMu.Lock()
	done := h.mosaicDone
	h.runningMu.Unlock()
	if done == nil {
		return
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("mosaic did not finish")
	}
}

// blockingMosaic runs until cancelled and reports when it has started.
func blockingMosaic(started chan<- struct{}) MosaicFunc {
	return func(ctx context.Context, m capture.Mount, cam camera.Camera) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}
}

// ---------- Mosaic ----------

func TestHandleMosaic_RunsSequence(t *testing.T) {
	cam := &fakeCamera{}
	run := func(ctx context.Context, m capture.Mount, c camera.Camera) error {
		plan := &geometry.MosaicPlan{Columns: 2, Rows: 2, Step: [2]int64{100, 100}, Start: [2]int64{-50, -50}}
		return capture.NewSequence(m, c).RunMosaic(ctx, capture.MosaicParams{Plan: plan})
	}
	h, mux := newMosaicHandlers(t, cam, run)
	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	w := post(t, mux, "/mosaic", struct{}{})
	if w.Code != http.StatusAccepted {
		t.Fatalf("code = %d, body %s", w.Code, w.Body.String())
	}
	waitMosaic(t, h)

	if cam.shots != 4 {
		t.Errorf("shots = %d, want 4", cam.shots)
	}
	if h.MosaicRunning() {
		t.Error("mosaic still marked running")
	}
	select {
	case msg := <-ch:
		if !strings.Contains(msg, "Mosaic complete") {
			t.Errorf("broadcast = %q", msg)
		}
	case <-time.After(time.Second):
		t.Error("no completion broadcast")
	}
}

func TestHandleMosaic_AlreadyRunning(t *testing.T) {
	started := make(chan struct{})
	h, mux := newMosaicHandlers(t, &fakeCamera{}, blockingMosaic(started))

	if w := post(t, mux, "/mosaic", struct{}{}); w.Code != http.StatusAccepted {
		t.Fatalf("first start: code = %d", w.Code)
	}
	<-started
	if !h.MosaicRunning() {
		t.Error("MosaicRunning() = false while running")
	}
	if st := getStatus(t, mux); !st.Mosaic {
		t.Error("status does not report the running mosaic")
	}
	if w := post(t, mux, "/mosaic", struct{}{}); w.Code != http.StatusConflict {
		t.Errorf("second start: code = %d, want 409", w.Code)
	}

	if w := post(t, mux, "/stop", StopRequest{Instant: true}); w.Code != http.StatusOK {
		t.Fatalf("stop: code = %d, body %s", w.Code, w.Body.String())
	}
	if h.MosaicRunning() {
		t.Error("stop did not cancel the mosaic")
	}
}

func TestHandleMosaic_StopCancelsSequence(t *testing.T) {
	shot := make(chan struct{}, 1)
	cam := &fakeCamera{}
	run := func(ctx context.Context, m capture.Mount, c camera.Camera) error {
		plan := &geometry.MosaicPlan{Columns: 50, Rows: 50, Step: [2]int64{10, 10}}
		counted := cameraFunc(func() error {
			if err := c.Shoot(); err != nil {
				return err
			}
			select {
			case shot <- struct{}{}:
			default:
			}
			return nil
		})
		return capture.NewSequence(m, counted).RunMosaic(ctx, capture.MosaicParams{Plan: plan, PostShot: time.Millisecond})
	}
	h, mux := newMosaicHandlers(t, cam, run)

	if w := post(t, mux, "/mosaic", struct{}{}); w.Code != http.StatusAccepted {
		t.Fatalf("start: code = %d", w.Code)
	}
	<-shot
	if w := post(t, mux, "/stop", StopRequest{Axis: 1}); w.Code != http.StatusOK {
		t.Fatalf("stop: code = %d, body %s", w.Code, w.Body.String())
	}
	if h.MosaicRunning() {
		t.Error("mosaic still running after stop")
	}
	if cam.shots == 0 || cam.shots >= 2500 {
		t.Errorf("shots = %d, want a partial mosaic", cam.shots)
	}
}

func TestServerRun_CancelsMosaicOnShutdown(t *testing.T) {
	started := make(chan struct{})
	h, mux := newMosaicHandlers(t, &fakeCamera{}, blockingMosaic(started))
	if w := post(t, mux, "/mosaic", struct{}{}); w.Code != http.StatusAccepted {
		t.Fatalf("start: code = %d", w.Code)
	}
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- NewServer("127.0.0.1:0", h).Run(ctx) }()
	cancel()

	select {
	case err := <-result:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
	if h.MosaicRunning() {
		t.Error("mosaic still running after Run returned")
	}
}

func TestHandleMosaic_Unavailable(t *testing.T) {
	noop := func(context.Context, capture.Mount, camera.Camera) error { return nil }
	cases := []struct {
		name string
		cam  camera.Camera
		run  MosaicFunc
	}{
		{"no_runner", &fakeCamera{}, nil},
		{"no_camera", nil, noop},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, mux := newMosaicHandlers(t, tc.cam, tc.run)
			if w := post(t, mux, "/mosaic", struct{}{}); w.Code != http.StatusServiceUnavailable {
				t.Errorf("code = %d, want 503", w.Code)
			}
		})
	}
}

func TestHandleMosaic_NotInitialized(t *testing.T) {
	c, _ := newMount(t, false)
	h := NewHandlers(NewLogBroadcaster(), c, &fakeCamera{})
	h.RunMosaic = func(context.Context, capture.Mount, camera.Camera) error { return nil }
	w := post(t, NewServer(":0", h).Mux(), "/mosaic", struct{}{})
	if w.Code != http.StatusConflict {
		t.Errorf("code = %d, want 409", w.Code)
	}
}

func TestHandleMosaic_FailureBroadcast(t *testing.T) {
	run := func(context.Context, capture.Mount, camera.Camera) error {
		return protocol.ErrStopTimeout
	}
	h, mux := newMosaicHandlers(t, &fakeCamera{}, run)
	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	if w := post(t, mux, "/mosaic", struct{}{}); w.Code != http.StatusAccepted {
		t.Fatalf("code = %d", w.Code)
	}
	waitMosaic(t, h)

	for {
		select {
		case msg := <-ch:
			if strings.Contains(msg, "Mosaic failed") {
				return
			}
		case <-time.After(time.Second):
			t.Fatal("no failure broadcast")
		}
	}
}

func TestLockedMount_PassesThrough(t *testing.T) {
	c, sim := newMount(t, true)
	h := NewHandlers(NewLogBroadcaster(), c, nil)
	m := lockedMount{h}

	if err := m.SlewTo(protocol.Axis2, 500); err != nil {
		t.Fatalf("SlewTo: %v", err)
	}
	st, err := m.RefreshStatus(protocol.Axis2)
	if err != nil {
		t.Fatalf("RefreshStatus: %v", err)
	}
	if st.Moving() {
		t.Errorf("status = %v, want stopped", st)
	}
	if got := sim.Position(protocol.Axis2); got != 0x800000+500 {
		t.Errorf("position = %#x, want %#x", got, 0x800000+500)
	}
	if err := m.SlewTo(protocol.AxisID(5), 1); err == nil {
		t.Error("expected error for an invalid axis")
	}
}

type cameraFunc func() error

func (f cameraFunc) Shoot() error { return f() }
