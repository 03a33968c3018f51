package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/cjeanneret/StarGo/internal/debug"
	"github.com/cjeanneret/StarGo/internal/hw/camera"
	"github.com/cjeanneret/StarGo/internal/logic/motion"
	"github.com/cjeanneret/StarGo/internal/logic/units"
	"github.com/cjeanneret/StarGo/internal/protocol"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// maxOffset is the largest goto distance the controller accepts.
const maxOffset = 0xFFFFFF

// Mount is the part of *motion.Controller driven over HTTP.
type Mount interface {
	Initialized() bool
	Identity() motion.MountIdentity
	RefreshStatus(axis protocol.AxisID) (protocol.AxisStatus, error)
	GetStatus(axis protocol.AxisID) protocol.AxisStatus
	Stale(axis protocol.AxisID) bool
	Encoder(axis protocol.AxisID) motion.EncoderPosition
	Calibration(axis protocol.AxisID) units.Calibration
	LastSlewToTarget(axis protocol.AxisID) int64
	SlewingSpeed(axis protocol.AxisID) float64
	Slew(axis protocol.AxisID, speed float64) error
	SlewTo(axis protocol.AxisID, offset int64) error
	SlowStop(axis protocol.AxisID) error
	InstantStop(axis protocol.AxisID) error
	StopAll() error
}

// SlewRequest starts a continuous slew. Rate is in multiples of the
// sidereal rate; its sign gives the direction.
type SlewRequest struct {
	Axis int     `json:"axis"`
	Rate float64 `json:"rate"`
}

// GotoRequest moves an axis by Offset microsteps.
type GotoRequest struct {
	Axis   int   `json:"axis"`
	Offset int64 `json:"offset"`
}

// GotoDegreesRequest moves an axis by Degrees.
type GotoDegreesRequest struct {
	Axis    int     `json:"axis"`
	Degrees float64 `json:"degrees"`
}

// StopRequest stops one axis, or both when Axis is 0.
type StopRequest struct {
	Axis    int  `json:"axis"`
	Instant bool `json:"instant"`
}

// AxisReport is the JSON view of one axis.
type AxisReport struct {
	Axis        string  `json:"axis"`
	State       string  `json:"state"`
	Direction   string  `json:"direction,omitempty"`
	Speed       string  `json:"speed,omitempty"`
	Initialized bool    `json:"initialized"`
	Stale       bool    `json:"stale"`
	Encoder     int64   `json:"encoder"`
	Zero        int64   `json:"zero"`
	Degrees     float64 `json:"degrees"`
	SlewRate    float64 `json:"slew_rate"`
	Target      int64   `json:"target"`
}

// StatusReport is the JSON body of GET /status.
type StatusReport struct {
	Initialized bool         `json:"initialized"`
	Mount       string       `json:"mount,omitempty"`
	Firmware    string       `json:"firmware,omitempty"`
	Rotation    string       `json:"rotation,omitempty"`
	Mosaic      bool         `json:"mosaic_running"`
	Axes        []AxisReport `json:"axes"`
}

// Handlers holds dependencies for HTTP handlers. mu serializes every
// exchange with the controller, snap-port shots included.
type Handlers struct {
	Broadcaster *LogBroadcaster

	// RunMosaic is set by main; nil disables POST /mosaic.
	RunMosaic MosaicFunc

	mount  Mount
	camera camera.Camera
	mu     sync.Mutex

	runningMu    sync.Mutex
	cancelMosaic context.CancelFunc
	mosaicDone   chan struct{}
}

// NewHandlers creates handlers. cam may be nil, in which case POST /shoot
// and POST /mosaic return 503 Service Unavailable.
func NewHandlers(broadcaster *LogBroadcaster, mount Mount, cam camera.Camera) *Handlers {
	return &Handlers{
		Broadcaster: broadcaster,
		mount:       mount,
		camera:      cam,
	}
}

// ValidateSlew checks the axis and that the rate is a finite number.
func ValidateSlew(req SlewRequest) (protocol.AxisID, error) {
	axis, err := parseAxis(req.Axis)
	if err != nil {
		return axis, err
	}
	if math.IsNaN(req.Rate) || math.IsInf(req.Rate, 0) {
		return axis, fmt.Errorf("rate must be a finite number, got %g", req.Rate)
	}
	return axis, nil
}

// ValidateGoto checks the axis and the 24-bit offset range.
func ValidateGoto(req GotoRequest) (protocol.AxisID, error) {
	axis, err := parseAxis(req.Axis)
	if err != nil {
		return axis, err
	}
	if req.Offset > maxOffset || req.Offset < -maxOffset {
		return axis, fmt.Errorf("offset must be within ±%d microsteps, got %d", maxOffset, req.Offset)
	}
	return axis, nil
}

// ValidateGotoDegrees checks the axis and that degrees is within one turn.
func ValidateGotoDegrees(req GotoDegreesRequest) (protocol.AxisID, error) {
	axis, err := parseAxis(req.Axis)
	if err != nil {
		return axis, err
	}
	if math.IsNaN(req.Degrees) || math.IsInf(req.Degrees, 0) || math.Abs(req.Degrees) > 360 {
		return axis, fmt.Errorf("degrees must be between -360 and 360, got %g", req.Degrees)
	}
	return axis, nil
}

func parseAxis(n int) (protocol.AxisID, error) {
	switch n {
	case 1:
		return protocol.Axis1, nil
	case 2:
		return protocol.Axis2, nil
	default:
		return protocol.Axis1, fmt.Errorf("axis must be 1 or 2, got %d", n)
	}
}

// decodeJSON reads a bounded JSON body into dst, answering 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// writeMountError maps controller failures to HTTP status codes.
func writeMountError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, protocol.ErrNotInitialized):
		code = http.StatusConflict
	case errors.Is(err, protocol.ErrStopTimeout), errors.Is(err, protocol.ErrTransportTimeout):
		code = http.StatusGatewayTimeout
	case errors.Is(err, protocol.ErrController), errors.Is(err, protocol.ErrTransportError):
		code = http.StatusBadGateway
	}
	debug.Error(err)
	http.Error(w, err.Error(), code)
}

func writeOK(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleStatus reads both axes and returns the mount state as JSON.
// Before initialization only the local view is reported.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	mosaic := h.MosaicRunning()
	h.mu.Lock()
	defer h.mu.Unlock()

	report := StatusReport{Initialized: h.mount.Initialized(), Mosaic: mosaic}
	if report.Initialized {
		id := h.mount.Identity()
		report.Mount = id.String()
		report.Firmware = id.FirmwareString()
		report.Rotation = id.PositiveRotation().String()
	}
	for _, axis := range protocol.Axes {
		st := h.mount.GetStatus(axis)
		if report.Initialized {
			if fresh, err := h.mount.RefreshStatus(axis); err == nil {
				st = fresh
			} else {
				debug.Warn("status %v: %v", axis, err)
			}
		}
		enc := h.mount.Encoder(axis)
		ar := AxisReport{
			Axis:        axis.String(),
			State:       st.State.String(),
			Initialized: !st.NotInitialized,
			Stale:       h.mount.Stale(axis),
			Encoder:     enc.Current,
			Zero:        enc.Zero,
			Degrees:     h.mount.Calibration(axis).MicrostepsToDegrees(enc.Current - enc.Zero),
			SlewRate:    h.mount.SlewingSpeed(axis) / units.SiderealRate,
			Target:      h.mount.LastSlewToTarget(axis),
		}
		if st.Moving() {
			ar.Direction = st.Direction.String()
			ar.Speed = st.Speed.String()
		}
		report.Axes = append(report.Axes, ar)
	}
	writeJSON(w, http.StatusOK, report)
}

// HandleSlew handles POST /slew.
func (h *Handlers) HandleSlew(w http.ResponseWriter, r *http.Request) {
	var req SlewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	axis, err := ValidateSlew(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	debug.Live("web: slew %v at %gx sidereal", axis, req.Rate)
	if err := h.mount.Slew(axis, req.Rate*units.SiderealRate); err != nil {
		writeMountError(w, err)
		return
	}
	writeOK(w)
}

// HandleGoto handles POST /goto.
func (h *Handlers) HandleGoto(w http.ResponseWriter, r *http.Request) {
	var req GotoRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	axis, err := ValidateGoto(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.slewTo(w, axis, req.Offset)
}

// HandleGotoDegrees handles POST /goto/degrees.
func (h *Handlers) HandleGotoDegrees(w http.ResponseWriter, r *http.Request) {
	var req GotoDegreesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	axis, err := ValidateGotoDegrees(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.mu.Lock()
	offset := h.mount.Calibration(axis).DegreesToMicrosteps(req.Degrees)
	h.mu.Unlock()
	h.slewTo(w, axis, offset)
}

func (h *Handlers) slewTo(w http.ResponseWriter, axis protocol.AxisID, offset int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	debug.Live("web: goto %v by %d microsteps", axis, offset)
	if err := h.mount.SlewTo(axis, offset); err != nil {
		writeMountError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"target": h.mount.LastSlewToTarget(axis),
	})
}

// HandleStop handles POST /stop. Axis 0 stops both axes; an instant stop
// of both uses StopAll so the second axis is stopped even if the first fails.
// A running mosaic is cancelled first, whichever axis is named.
func (h *Handlers) HandleStop(w http.ResponseWriter, r *http.Request) {
	var req StopRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	axes := protocol.Axes[:]
	if req.Axis != 0 {
		axis, err := parseAxis(req.Axis)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		axes = []protocol.AxisID{axis}
	}
	if done := h.cancelRunningMosaic(); done != nil {
		<-done
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	var err error
	switch {
	case req.Instant && len(axes) == 2:
		err = h.mount.StopAll()
	case req.Instant:
		err = h.mount.InstantStop(axes[0])
	default:
		for _, axis := range axes {
			if err = h.mount.SlowStop(axis); err != nil {
				break
			}
		}
	}
	if err != nil {
		writeMountError(w, err)
		return
	}
	writeOK(w)
}

// HandleShoot handles POST /shoot.
func (h *Handlers) HandleShoot(w http.ResponseWriter, r *http.Request) {
	if h.camera == nil {
		http.Error(w, "camera not configured", http.StatusServiceUnavailable)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.camera.Shoot(); err != nil {
		debug.Error(err)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeOK(w)
}

// HandleLogStream handles GET /log/stream for SSE.
func (h *Handlers) HandleLogStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	// Heartbeat while idle
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
