package camera

import (
	"errors"
	"testing"
	"time"

	"github.com/cjeanneret/StarGo/internal/hw/gpio"
)

func noSleep(time.Duration) {}

// ---------- ParseKind ----------

func TestParseKind(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", KindNone, false},
		{"none", KindNone, false},
		{" SNAP ", KindSnap, false},
		{"gpio", KindGPIO, false},
		{"usb", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseKind(tc.in)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
			if got != tc.want {
				t.Errorf("ParseKind(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

// ---------- SnapPort ----------

type fakeSwitch struct {
	states []bool
	failOn map[bool]error
}

func (f *fakeSwitch) SetSwitch(on bool) error {
	if err := f.failOn[on]; err != nil {
		return err
	}
	f.states = append(f.states, on)
	return nil
}

func TestSnapPort_Shoot(t *testing.T) {
	sw := &fakeSwitch{}
	var held time.Duration
	cam := NewSnapPort(sw, 2*time.Second)
	cam.sleep = func(d time.Duration) { held = d }

	if err := cam.Shoot(); err != nil {
		t.Fatalf("Shoot: %v", err)
	}
	if len(sw.states) != 2 || !sw.states[0] || sw.states[1] {
		t.Errorf("switch states = %v, want [true false]", sw.states)
	}
	if held != 2*time.Second {
		t.Errorf("held %v, want 2s", held)
	}
}

func TestSnapPort_CloseFails(t *testing.T) {
	boom := errors.New("timeout")
	sw := &fakeSwitch{failOn: map[bool]error{true: boom}}
	cam := NewSnapPort(sw, 0)
	cam.sleep = noSleep

	if err := cam.Shoot(); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped timeout", err)
	}
	if len(sw.states) != 0 {
		t.Errorf("switch touched after failure: %v", sw.states)
	}
}

func TestSnapPort_OpenFails(t *testing.T) {
	boom := errors.New("link down")
	sw := &fakeSwitch{failOn: map[bool]error{false: boom}}
	cam := NewSnapPort(sw, 0)
	cam.sleep = noSleep

	if err := cam.Shoot(); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped link down", err)
	}
}

// ---------- RemoteRelease ----------

// recordingDriver records GPIO calls for verification.
type recordingDriver struct {
	calls   []gpioCall
	failPin int
	failLvl gpio.Level
}

type gpioCall struct {
	op    string
	pin   int
	level gpio.Level
}

func (d *recordingDriver) SetupPin(pin int, mode gpio.PinMode) error {
	d.calls = append(d.calls, gpioCall{op: "setup", pin: pin})
	return nil
}

func (d *recordingDriver) WritePin(pin int, level gpio.Level) error {
	if d.failPin != 0 && pin == d.failPin && level == d.failLvl {
		return errors.New("write failed")
	}
	d.calls = append(d.calls, gpioCall{op: "write", pin: pin, level: level})
	return nil
}

func (d *recordingDriver) ReadPin(pin int) (gpio.Level, error) {
	return gpio.Low, nil
}

func (d *recordingDriver) Close() error { return nil }

func (d *recordingDriver) writeCalls() []gpioCall {
	var result []gpioCall
	for _, c := range d.calls {
		if c.op == "write" {
			result = append(result, c)
		}
	}
	return result
}

func TestRemoteRelease_PinsReleasedOnCreate(t *testing.T) {
	drv := &recordingDriver{}
	if _, err := NewRemoteRelease(drv, 24, 25, time.Millisecond, time.Millisecond); err != nil {
		t.Fatal(err)
	}
	want := []gpioCall{
		{op: "setup", pin: 24},
		{op: "setup", pin: 25},
		{op: "write", pin: 25, level: gpio.High},
		{op: "write", pin: 24, level: gpio.High},
	}
	if len(drv.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", drv.calls, want)
	}
	for i := range want {
		if drv.calls[i] != want[i] {
			t.Errorf("call %d = %+v, want %+v", i, drv.calls[i], want[i])
		}
	}
}

func TestRemoteRelease_SamePin(t *testing.T) {
	if _, err := NewRemoteRelease(&recordingDriver{}, 24, 24, 0, 0); err == nil {
		t.Error("shared pin should be rejected")
	}
}

func TestRemoteRelease_ShootSequence(t *testing.T) {
	drv := &recordingDriver{}
	cam, err := NewRemoteRelease(drv, 24, 25, time.Second, 2*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	var sleeps []time.Duration
	cam.sleep = func(d time.Duration) { sleeps = append(sleeps, d) }
	drv.calls = nil

	if err := cam.Shoot(); err != nil {
		t.Fatalf("Shoot: %v", err)
	}

	expected := []struct {
		pin   int
		level gpio.Level
		desc  string
	}{
		{24, gpio.Low, "focus LOW (half press)"},
		{25, gpio.Low, "shutter LOW (full press)"},
		{25, gpio.High, "shutter HIGH (release)"},
		{24, gpio.High, "focus HIGH (release)"},
	}
	writes := drv.writeCalls()
	if len(writes) != len(expected) {
		t.Fatalf("expected %d writes, got %d: %v", len(expected), len(writes), writes)
	}
	for i, exp := range expected {
		if writes[i].pin != exp.pin || writes[i].level != exp.level {
			t.Errorf("step %d (%s): pin=%d level=%v", i, exp.desc, writes[i].pin, writes[i].level)
		}
	}
	if len(sleeps) != 2 || sleeps[0] != time.Second || sleeps[1] != 2*time.Second {
		t.Errorf("sleeps = %v, want [1s 2s]", sleeps)
	}
}

func TestRemoteRelease_ShutterFailureReleasesFocus(t *testing.T) {
	drv := &recordingDriver{}
	cam, err := NewRemoteRelease(drv, 24, 25, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	cam.sleep = noSleep
	drv.calls = nil
	drv.failPin, drv.failLvl = 25, gpio.Low

	if err := cam.Shoot(); err == nil {
		t.Fatal("expected shutter error")
	}
	writes := drv.writeCalls()
	last := writes[len(writes)-1]
	if last.pin != 24 || last.level != gpio.High {
		t.Errorf("last write = %+v, want focus released", last)
	}
}

func TestRemoteRelease_WithMockDriver(t *testing.T) {
	drv := gpio.NewMockDriver()
	cam, err := NewRemoteRelease(drv, 17, 27, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	cam.sleep = noSleep
	if err := cam.Shoot(); err != nil {
		t.Fatal(err)
	}
	for _, pin := range []int{17, 27} {
		if l, _ := drv.ReadPin(pin); l != gpio.High {
			t.Errorf("pin %d left %v after shot", pin, l)
		}
	}
}

func TestImplementsCamera(t *testing.T) {
	var _ Camera = &SnapPort{}
	var _ Camera = &RemoteRelease{}
}
