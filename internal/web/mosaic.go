package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/cjeanneret/StarGo/internal/debug"
	"github.com/cjeanneret/StarGo/internal/hw/camera"
	"github.com/cjeanneret/StarGo/internal/logic/capture"
	"github.com/cjeanneret/StarGo/internal/protocol"
)

// MosaicFunc runs a mosaic through m and cam until it completes or ctx
// is cancelled.
type MosaicFunc func(ctx context.Context, m capture.Mount, cam camera.Camera) error

// lockedMount takes the handler lock around every controller call, so
// a running mosaic interleaves with HTTP requests.
type lockedMount struct{ h *Handlers }

func (l lockedMount) SlewTo(axis protocol.AxisID, offset int64) error {
	l.h.mu.Lock()
	defer l.h.mu.Unlock()
	return l.h.mount.SlewTo(axis, offset)
}

func (l lockedMount) RefreshStatus(axis protocol.AxisID) (protocol.AxisStatus, error) {
	l.h.mu.Lock()
	defer l.h.mu.Unlock()
	return l.h.mount.RefreshStatus(axis)
}

type lockedCamera struct{ h *Handlers }

func (l lockedCamera) Shoot() error {
	l.h.mu.Lock()
	defer l.h.mu.Unlock()
	return l.h.camera.Shoot()
}

// MosaicRunning reports whether a mosaic started over HTTP is in progress.
func (h *Handlers) MosaicRunning() bool {
	h.runningMu.Lock()
	defer h.runningMu.Unlock()
	return h.cancelMosaic != nil
}

// HandleMosaic handles POST /mosaic to start a mosaic in the background.
func (h *Handlers) HandleMosaic(w http.ResponseWriter, r *http.Request) {
	if h.RunMosaic == nil {
		http.Error(w, "mosaic not configured", http.StatusServiceUnavailable)
		return
	}
	if h.camera == nil {
		http.Error(w, "camera not configured", http.StatusServiceUnavailable)
		return
	}
	h.mu.Lock()
	initialized := h.mount.Initialized()
	h.mu.Unlock()
	if !initialized {
		http.Error(w, protocol.ErrNotInitialized.Error(), http.StatusConflict)
		return
	}

	h.runningMu.Lock()
	if h.cancelMosaic != nil {
		h.runningMu.Unlock()
		http.Error(w, "mosaic already in progress", http.StatusConflict)
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	h.cancelMosaic, h.mosaicDone = cancel, done
	h.runningMu.Unlock()

	// Run in goroutine; clear running when done
	go func() {
		defer close(done)
		defer func() {
			h.runningMu.Lock()
			h.cancelMosaic = nil
			h.runningMu.Unlock()
			cancel()
		}()

		err := h.RunMosaic(ctx, lockedMount{h}, lockedCamera{h})
		switch {
		case errors.Is(err, context.Canceled):
			h.Broadcaster.Broadcast("warning", "Mosaic cancelled")
		case err != nil:
			h.Broadcaster.Broadcast("error", "Mosaic failed: "+err.Error())
			debug.Error(err)
		default:
			h.Broadcaster.Broadcast("info", "Mosaic complete")
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

// cancelRunningMosaic stops a running mosaic and returns a channel closed
// once it has exited, or nil when none was running.
func (h *Handlers) cancelRunningMosaic() <-chan struct{} {
	h.runningMu.Lock()
	defer h.runningMu.Unlock()
	if h.cancelMosaic == nil {
		return nil
	}
	debug.Live("web: cancelling mosaic")
	h.cancelMosaic()
	return h.mosaicDone
}
