package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/multierr"

	"github.com/cjeanneret/StarGo/internal/config"
	"github.com/cjeanneret/StarGo/internal/debug"
	"github.com/cjeanneret/StarGo/internal/hw/camera"
	"github.com/cjeanneret/StarGo/internal/hw/gpio"
	"github.com/cjeanneret/StarGo/internal/hw/serial"
	"github.com/cjeanneret/StarGo/internal/hw/simulator"
	"github.com/cjeanneret/StarGo/internal/logic/capture"
	"github.com/cjeanneret/StarGo/internal/logic/geometry"
	"github.com/cjeanneret/StarGo/internal/logic/motion"
	"github.com/cjeanneret/StarGo/internal/logic/units"
	"github.com/cjeanneret/StarGo/internal/protocol"
	"github.com/cjeanneret/StarGo/internal/web"
)

// options are the command-line settings that are not in the config file.
type options struct {
	cfgPath   string
	webPort   int
	listPorts bool
	initOnly  bool
	recover   bool
	shoot     bool
	mosaic    bool
	debug     int
	slew      string
	goTo      string
}

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start web server on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	listPorts := flag.Bool("list-ports", false, "list serial ports and exit")
	initOnly := flag.Bool("init-only", false, "initialize the mount, print its identity and exit")
	recoverFlag := flag.Bool("recover", false, "keep encoder references from a previous session")
	shoot := flag.Bool("shoot", false, "trigger the camera once")
	mosaic := flag.Bool("mosaic", false, "shoot the mosaic described in the config, centred on the current position")
	debugLevel := flag.Int("debug", -1, "override debug level (0-4)")
	slew := flag.String("slew", "", "slew AXIS:RATE, rate in multiples of sidereal (e.g. 1:-20); runs until interrupted")
	goTo := flag.String("goto", "", "goto AXIS:OFFSET in microsteps (e.g. 2:0x1000)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err := run(ctx, options{
		cfgPath:   *cfgPath,
		webPort:   webPort.port(),
		listPorts: *listPorts,
		initOnly:  *initOnly,
		recover:   *recoverFlag,
		shoot:     *shoot,
		mosaic:    *mosaic,
		debug:     *debugLevel,
		slew:      *slew,
		goTo:      *goTo,
	})
	if err != nil {
		log.Fatalf("stargo: %v", err)
	}
}

func run(ctx context.Context, opts options) (err error) {
	if opts.listPorts {
		return printPorts(os.Stdout)
	}

	// Load configuration
	cfg, err := config.Load(opts.cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.debug >= 0 {
		cfg.Defaults.DebugLevel = opts.debug
	}

	// Initialize debug system
	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", opts.cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)

	// Parse motion requests before touching hardware
	var slewReq *slewArg
	if opts.slew != "" {
		a, err := parseSlewArg(opts.slew)
		if err != nil {
			return err
		}
		slewReq = &a
	}
	var gotoReq *gotoArg
	if opts.goTo != "" {
		a, err := parseGotoArg(opts.goTo)
		if err != nil {
			return err
		}
		gotoReq = &a
	}

	debug.Step(1, "Opening controller link")
	port, err := openTransport(cfg)
	if err != nil {
		return err
	}
	ctrl := motion.NewController(port, motionOptions(cfg))

	var gpioDriver gpio.Driver
	if cfg.Camera.Type == camera.KindGPIO {
		debug.Step(2, "Initializing GPIO driver")
		debug.Value("Mock GPIO", cfg.Defaults.MockGPIO)
		if gpioDriver, err = gpio.NewDriver(cfg.Defaults.MockGPIO); err != nil {
			return multierr.Append(fmt.Errorf("init GPIO: %w", err), ctrl.Close())
		}
	}
	defer func() {
		err = multierr.Append(err, shutdown(ctrl, gpioDriver))
	}()

	debug.Step(3, "Initializing camera")
	cam, err := newCameraFromConfig(cfg, ctrl, gpioDriver)
	if err != nil {
		return fmt.Errorf("init camera: %w", err)
	}
	debug.Value("Camera type", cfg.Camera.Type)

	debug.Step(4, "Initializing mount")
	if err := ctrl.InitMount(opts.recover || cfg.Mount.Recover); err != nil {
		return err
	}
	id := ctrl.Identity()
	debug.Summary(id.String())
	if opts.initOnly {
		fmt.Println(id)
		return nil
	}

	if opts.webPort > 0 {
		broadcaster := web.NewLogBroadcaster()
		debug.SetOutput(io.MultiWriter(os.Stdout, web.LogWriter(broadcaster)))
		handlers := web.NewHandlers(broadcaster, ctrl, cam)
		if cfg.Mosaic.Enabled() {
			handlers.RunMosaic = func(ctx context.Context, m capture.Mount, c camera.Camera) error {
				p, err := mosaicParams(cfg, ctrl)
				if err != nil {
					return err
				}
				return capture.NewSequence(m, c).RunMosaic(ctx, p)
			}
		}
		srv := web.NewServer(fmt.Sprintf(":%d", opts.webPort), handlers)
		return srv.Run(ctx)
	}

	if opts.shoot {
		if cam == nil {
			return errors.New("no camera configured")
		}
		if err := cam.Shoot(); err != nil {
			return err
		}
	}
	if opts.mosaic {
		if cam == nil {
			return errors.New("mosaic: no camera configured")
		}
		p, err := mosaicParams(cfg, ctrl)
		if err != nil {
			return err
		}
		fmt.Printf("mosaic: %d columns x %d rows\n", p.Plan.Columns, p.Plan.Rows)
		if err := capture.NewSequence(ctrl, cam).RunMosaic(ctx, p); err != nil {
			return err
		}
	}
	if gotoReq != nil {
		if err := ctrl.SlewTo(gotoReq.axis, gotoReq.offset); err != nil {
			return err
		}
		if err := waitForGoto(ctx, ctrl, gotoReq.axis, cfg.PollInterval()); err != nil {
			return err
		}
		enc := ctrl.Encoder(gotoReq.axis)
		fmt.Printf("%v: encoder %d, target %d\n", gotoReq.axis, enc.Current, ctrl.LastSlewToTarget(gotoReq.axis))
	}
	if slewReq != nil {
		if err := ctrl.Slew(slewReq.axis, slewReq.rate*units.SiderealRate); err != nil {
			return err
		}
		fmt.Printf("%v slewing at %gx sidereal, interrupt to stop\n", slewReq.axis, slewReq.rate)
		<-ctx.Done()
	}
	return nil
}

// shutdown stops an initialized mount and releases every device, keeping
// all errors.
func shutdown(ctrl *motion.Controller, drv gpio.Driver) error {
	var err error
	if ctrl.Initialized() {
		err = multierr.Append(err, ctrl.StopAll())
	}
	err = multierr.Append(err, ctrl.Close())
	if drv != nil {
		err = multierr.Append(err, drv.Close())
	}
	return err
}

// waitForGoto polls the axis until it stops or ctx is cancelled.
func waitForGoto(ctx context.Context, ctrl *motion.Controller, axis protocol.AxisID, interval time.Duration) error {
	for {
		st, err := ctrl.RefreshStatus(axis)
		if err != nil {
			return err
		}
		if !st.Moving() {
			_, err := ctrl.ReadEncoder(axis)
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

func printPorts(w io.Writer) error {
	ports, err := serial.ListPorts()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Fprintln(w, "no serial ports found")
		return nil
	}
	for _, p := range ports {
		fmt.Fprintln(w, p)
	}
	return nil
}

// openTransport returns the in-process simulator or the configured serial port.
func openTransport(cfg *config.Config) (serial.Transport, error) {
	if cfg.Simulator.Enabled {
		opts := simulatorOptions(cfg.Simulator)
		debug.Info("Using simulated controller (mount code %#02x)", opts.MountCode)
		return simulator.New(opts), nil
	}
	debug.Value("Serial device", cfg.Serial.Device)
	debug.Value("Serial backend", cfg.Serial.Backend)
	return serial.Open(serial.Config{
		Device:      cfg.Serial.Device,
		Baud:        cfg.Serial.Baud,
		ReadTimeout: cfg.ReadTimeout(),
		Backend:     cfg.Serial.Backend,
	})
}

// simulatorOptions overlays the non-zero config values on the simulator defaults.
func simulatorOptions(sc config.SimulatorConfig) simulator.Options {
	o := simulator.DefaultOptions()
	if sc.MountCode != 0 {
		o.MountCode = byte(sc.MountCode)
	}
	if sc.Firmware != 0 {
		o.Firmware = uint16(sc.Firmware)
	}
	if sc.MicrostepsPerRev != 0 {
		n := uint32(sc.MicrostepsPerRev)
		o.MicrostepsPerRevolution = [2]uint32{n, n}
	}
	if sc.ClockFrequency != 0 {
		o.ClockFrequency = uint32(sc.ClockFrequency)
	}
	if sc.HighSpeedRatio != 0 {
		o.HighSpeedRatio = uint32(sc.HighSpeedRatio)
	}
	if sc.DCMotor {
		o.DCMotor = true
		o.MicrostepsPerWormRevolution = nil
	}
	o.GotoPolls = sc.GotoPolls
	return o
}

// mosaicParams plans the configured mosaic with the mount's calibration.
func mosaicParams(cfg *config.Config, ctrl *motion.Controller) (capture.MosaicParams, error) {
	if !cfg.Mosaic.Enabled() {
		return capture.MosaicParams{}, errors.New("mosaic: mosaic.focal_length_mm is not set")
	}
	m := cfg.Mosaic
	plan, err := geometry.PlanMosaic(geometry.MosaicRequest{
		Optics: geometry.Optics{
			FocalLengthMm:  m.FocalLengthMm,
			SensorWidthMm:  m.SensorWidthMm,
			SensorHeightMm: m.SensorHeightMm,
		},
		OverlapRatio:   cfg.OverlapRatio(),
		WidthDeg:       m.WidthDeg,
		HeightDeg:      m.HeightDeg,
		DeclinationDeg: m.DeclinationDeg,
	}, [2]units.Calibration{ctrl.Calibration(protocol.Axis1), ctrl.Calibration(protocol.Axis2)})
	if err != nil {
		return capture.MosaicParams{}, err
	}
	debug.Value("Mosaic frames", plan.Frames())
	return capture.MosaicParams{
		Plan:         plan,
		Settle:       cfg.SettleDelay(),
		PostShot:     cfg.PostShotDelay(),
		PollInterval: cfg.PollInterval(),
		MaxPolls:     cfg.Mount.MaxStopPolls,
	}, nil
}

func motionOptions(cfg *config.Config) motion.Options {
	o := motion.DefaultOptions()
	o.SilentSlew = cfg.Mount.SilentSlew
	o.PollInterval = cfg.PollInterval()
	o.MaxStopPolls = cfg.Mount.MaxStopPolls
	o.ReadTimeout = cfg.ReadTimeout()
	o.ProbeTimeout = cfg.ProbeTimeout()
	return o
}

// newCameraFromConfig selects a camera implementation based on configuration.
// It returns nil for "none".
func newCameraFromConfig(cfg *config.Config, ctrl camera.Switcher, drv gpio.Driver) (camera.Camera, error) {
	kind, err := camera.ParseKind(cfg.Camera.Type)
	if err != nil {
		return nil, err
	}
	switch kind {
	case camera.KindSnap:
		return camera.NewSnapPort(ctrl, cfg.ShutterDelay()), nil
	case camera.KindGPIO:
		if drv == nil {
			return nil, errors.New("gpio camera needs a GPIO driver")
		}
		debug.Value("Focus pin", cfg.Camera.FocusPin)
		debug.Value("Shutter pin", cfg.Camera.ShutterPin)
		return camera.NewRemoteRelease(drv, cfg.Camera.FocusPin, cfg.Camera.ShutterPin, cfg.FocusDelay(), cfg.ShutterDelay())
	default:
		return nil, nil
	}
}

type slewArg struct {
	axis protocol.AxisID
	rate float64
}

type gotoArg struct {
	axis   protocol.AxisID
	offset int64
}

// splitAxisArg splits "AXIS:VALUE" where AXIS is 1 or 2.
func splitAxisArg(s string) (protocol.AxisID, string, error) {
	a, v, found := strings.Cut(s, ":")
	if !found || v == "" {
		return 0, "", fmt.Errorf("%q: want AXIS:VALUE", s)
	}
	switch a {
	case "1":
		return protocol.Axis1, v, nil
	case "2":
		return protocol.Axis2, v, nil
	default:
		return 0, "", fmt.Errorf("%q: axis must be 1 or 2", s)
	}
}

func parseSlewArg(s string) (slewArg, error) {
	axis, v, err := splitAxisArg(s)
	if err != nil {
		return slewArg{}, fmt.Errorf("slew: %w", err)
	}
	rate, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return slewArg{}, fmt.Errorf("slew: rate %q is not a finite number", v)
	}
	return slewArg{axis: axis, rate: rate}, nil
}

func parseGotoArg(s string) (gotoArg, error) {
	axis, v, err := splitAxisArg(s)
	if err != nil {
		return gotoArg{}, fmt.Errorf("goto: %w", err)
	}
	offset, err := strconv.ParseInt(v, 0, 64)
	if err != nil {
		return gotoArg{}, fmt.Errorf("goto: offset %q: %w", v, err)
	}
	if offset > 0xFFFFFF || offset < -0xFFFFFF {
		return gotoArg{}, fmt.Errorf("goto: offset %d exceeds 24 bits", offset)
	}
	return gotoArg{axis: axis, offset: offset}, nil
}

// webPortFlag implements flag.Value for -web: 0 = disabled, -web= or -web 8080 → 8080, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }
