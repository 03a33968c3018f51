package motion

import (
	"errors"
	"strings"
	"testing"

	"github.com/cjeanneret/StarGo/internal/hw/simulator"
	"github.com/cjeanneret/StarGo/internal/logic/units"
	"github.com/cjeanneret/StarGo/internal/protocol"
)

// letterScript answers by command letter, "=\r" when not listed.
func letterScript(replies map[byte]string) func(string) string {
	return func(frame string) string {
		if len(frame) > 1 {
			if r, ok := replies[frame[1]]; ok {
				return r
			}
		}
		return "=\r"
	}
}

func TestInitMount_DCMotorGT(t *testing.T) {
	sim := newSim(func(o *simulator.Options) {
		o.DCMotor = true
		o.MountCode = 0x80
		o.MicrostepsPerRevolution = [2]uint32{0x100000, 0x100000}
		o.ClockFrequency = 1000000
		o.HighSpeedRatio = 64
		o.MicrostepsPerWormRevolution = nil
		o.Encoder = [2]uint32{0, 0}
	})
	c := NewController(sim, Options{Sleep: noSleep})

	if err := c.InitMount(false); err != nil {
		t.Fatalf("InitMount: %v", err)
	}
	if !c.Initialized() {
		t.Error("controller should be initialized")
	}
	id := c.Identity()
	if !id.DCMotor || id.MountCode != 0x80 {
		t.Errorf("identity = %+v", id)
	}
	for _, axis := range protocol.Axes {
		st := c.GetStatus(axis)
		if st.State != protocol.Stopped || st.NotInitialized {
			t.Errorf("%v: status = %v, want stopped and initialized", axis, st)
		}
		cal := c.Calibration(axis)
		if cal.MicrostepsPerRevolution != 0x162B97 {
			t.Errorf("%v: microsteps/rev = %#x, want GT override 0x162B97", axis, cal.MicrostepsPerRevolution)
		}
		if cal.StepperClockFrequency != 1000000 || cal.HighSpeedRatio != 64 {
			t.Errorf("%v: calibration = %+v", axis, cal)
		}
		if cal.MicrostepsPerWormRevolution != nil {
			t.Errorf("%v: DC motors have no worm period", axis)
		}
		if enc := c.Encoder(axis); enc != (EncoderPosition{}) {
			t.Errorf("%v: encoder = %+v, want all zero", axis, enc)
		}
		if got, want := c.LowSpeedGotoMargin(axis), units.LowSpeedGotoMargin(cal); got != want {
			t.Errorf("%v: goto margin = %d, want %d", axis, got, want)
		}
	}
	if strings.Contains(letters(sim.Requests()), "s") {
		t.Error("DC-motor controllers must not be asked for the worm period")
	}
}

func TestInitMount_CommandOrder(t *testing.T) {
	sim := newSim(nil)
	c := NewController(sim, Options{Sleep: noSleep})
	if err := c.InitMount(false); err != nil {
		t.Fatalf("InitMount: %v", err)
	}
	// e, calibration per axis, worm per axis, encoders, F, then encoder
	// and status per axis.
	if got, want := letters(sim.Requests()), "eabgabgssjjFFjfjf"; got != want {
		t.Errorf("commands = %q, want %q", got, want)
	}
}

func TestInitMount_UnsupportedMount(t *testing.T) {
	sim := newSim(func(o *simulator.Options) { o.MountCode = 0x01 })
	c := NewController(sim, Options{Sleep: noSleep})

	err := c.InitMount(false)
	if !errors.Is(err, protocol.ErrUnsupportedMount) {
		t.Fatalf("err = %v, want ErrUnsupportedMount", err)
	}
	if !errors.Is(err, protocol.ErrInit) {
		t.Errorf("err = %v, want it to be an init error", err)
	}
	var ie *protocol.InitError
	if !errors.As(err, &ie) || ie.Step != "mount code" {
		t.Errorf("InitError = %+v", ie)
	}
	sameRequests(t, sim.Requests(), ":e1\r")
	if c.Initialized() {
		t.Error("controller must stay uninitialized")
	}
	if err := c.Slew(protocol.Axis1, 0.01); !errors.Is(err, protocol.ErrNotInitialized) {
		t.Errorf("Slew after failed init = %v, want ErrNotInitialized", err)
	}
}

func TestInitMount_WormPeriod(t *testing.T) {
	c, _ := newReady(t, Options{}, nil)
	worm := c.Calibration(protocol.Axis1).MicrostepsPerWormRevolution
	if worm == nil || *worm != 0x9000 {
		t.Errorf("worm = %v, want 0x9000", worm)
	}

	c, _ = newReady(t, Options{}, func(o *simulator.Options) { o.MicrostepsPerWormRevolution = nil })
	if c.Calibration(protocol.Axis2).MicrostepsPerWormRevolution != nil {
		t.Error("refused worm query should leave the value absent")
	}
}

func TestInitMount_Recovering(t *testing.T) {
	c, _ := newReady(t, Options{}, nil)
	if err := c.SetEncoder(protocol.Axis1, 0x800100); err != nil {
		t.Fatalf("SetEncoder: %v", err)
	}

	if err := c.InitMount(true); err != nil {
		t.Fatalf("InitMount(true): %v", err)
	}
	enc := c.Encoder(protocol.Axis1)
	if enc.Current != 0x800100 || enc.Reference != 0x800000 || enc.Zero != 0x800000 {
		t.Errorf("recovered encoder = %+v, want references kept", enc)
	}

	if err := c.InitMount(false); err != nil {
		t.Fatalf("InitMount(false): %v", err)
	}
	enc = c.Encoder(protocol.Axis1)
	if enc.Reference != 0x800100 || enc.Zero != 0x800100 {
		t.Errorf("fresh encoder = %+v, want references recaptured", enc)
	}
}

func TestInitMount_114GT(t *testing.T) {
	c, _ := newReady(t, Options{}, func(o *simulator.Options) { o.MountCode = MountCode114GT })
	if got := c.Calibration(protocol.Axis2).MicrostepsPerRevolution; got != 0x205318 {
		t.Errorf("microsteps/rev = %#x, want 0x205318", got)
	}
	if c.Identity().PositiveRotation() != Clockwise {
		t.Error("114GT turns clockwise")
	}
}

func TestInitMount_Failures(t *testing.T) {
	version := "=" + protocol.Encode24(0x800702) + "\r" // MCVersion 0x020780
	cases := []struct {
		name string
		tr   *scriptTransport
		step string
		want error
	}{
		{"probe", &scriptTransport{readErr: errors.New("io")}, "dc motor probe", protocol.ErrTransportError},
		{"version_timeout", &scriptTransport{}, "motor board version", protocol.ErrTransportTimeout},
		{"microsteps", &scriptTransport{respond: letterScript(map[byte]string{
			'e': version, 'a': "!0\r",
		})}, "microsteps per revolution", protocol.ErrController},
		{"clock", &scriptTransport{respond: letterScript(map[byte]string{
			'e': version, 'a': "=000010\r", 'b': "=XYZ\r",
		})}, "stepper clock frequency", protocol.ErrMalformedEncoding},
		{"zero_ratio", &scriptTransport{respond: letterScript(map[byte]string{
			'e': version, 'a': "=000010\r", 'b': "=40420F\r", 'g': "=00\r",
		})}, "calibration", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewController(tc.tr, Options{Sleep: noSleep})
			err := c.InitMount(false)
			var ie *protocol.InitError
			if !errors.As(err, &ie) {
				t.Fatalf("err = %v, want *InitError", err)
			}
			if ie.Step != tc.step {
				t.Errorf("step = %q, want %q", ie.Step, tc.step)
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
			if c.Initialized() {
				t.Error("controller must stay uninitialized")
			}
		})
	}
}

func TestMotorBoardVersion(t *testing.T) {
	sim := newSim(func(o *simulator.Options) {
		o.MountCode = 0x90
		o.Firmware = 0x0312
	})
	c := NewController(sim, Options{})
	got, err := c.MotorBoardVersion()
	if err != nil {
		t.Fatal(err)
	}
	if got != 0x031290 {
		t.Errorf("MCVersion = %#06x, want 0x031290", got)
	}
}

func TestSetSwitch(t *testing.T) {
	c, sim := newReady(t, Options{}, nil)
	if err := c.SetSwitch(true); err != nil {
		t.Fatal(err)
	}
	if !sim.SwitchOn() {
		t.Error("switch should be on")
	}
	if err := c.SetSwitch(false); err != nil {
		t.Fatal(err)
	}
	sameRequests(t, sim.Requests(), ":O11\r", ":O10\r")
}

func TestSetSlewModeDecelerationRamp(t *testing.T) {
	c, sim := newReady(t, Options{}, nil)
	if err := c.SetSlewModeDecelerationRamp(protocol.Axis2, 400); err != nil {
		t.Fatal(err)
	}
	sameRequests(t, sim.Requests(), ":U2"+protocol.Encode24(400)+"\r")
}
