package protocol

import (
	"errors"
	"testing"
)

func TestInterpretStatus(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want AxisStatus
	}{
		{"stopped_initialized", "101", AxisStatus{State: Stopped}},
		{"stopped_not_initialized", "100", AxisStatus{State: Stopped, NotInitialized: true}},
		{"slewing_forward_low", "111", ContinuousStatus(Forward, LowSpeed)},
		{"slewing_reverse_high", "711", ContinuousStatus(Reverse, HighSpeed)},
		{"goto_forward_high", "411", GotoStatus(Forward, HighSpeed)},
		{"goto_reverse_low", "211", GotoStatus(Reverse, LowSpeed)},
		{"blocked_bit_ignored", "131", ContinuousStatus(Forward, LowSpeed)},
		{"level_switch_ignored", "013", GotoStatus(Forward, LowSpeed)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := InterpretStatus([3]byte{tc.raw[0], tc.raw[1], tc.raw[2]})
			if got != tc.want {
				t.Errorf("InterpretStatus(%q) = %+v, want %+v", tc.raw, got, tc.want)
			}
		})
	}
}

func TestInterpretStatus_RawBytes(t *testing.T) {
	got := InterpretStatus([3]byte{0x05, 0x01, 0x01})
	want := ContinuousStatus(Forward, HighSpeed)
	if got != want {
		t.Errorf("raw bytes = %+v, want %+v", got, want)
	}
}

func TestInterpretStatus_ExactlyOneState(t *testing.T) {
	for b0 := byte(0); b0 < 8; b0++ {
		for b1 := byte(0); b1 < 4; b1++ {
			s := InterpretStatus([3]byte{hexDigits[b0], hexDigits[b1], '1'})
			switch s.State {
			case Stopped, SlewingContinuous, SlewingToTarget:
			default:
				t.Errorf("b0=%d b1=%d: unexpected state %v", b0, b1, s.State)
			}
			if (b1&1 == 0) != (s.State == Stopped) {
				t.Errorf("b0=%d b1=%d: moving bit disagrees with state %v", b0, b1, s.State)
			}
		}
	}
}

func TestEncodeStatus_RoundTrip(t *testing.T) {
	statuses := []AxisStatus{
		StoppedStatus(),
		{State: Stopped, NotInitialized: true},
		ContinuousStatus(Reverse, HighSpeed),
		GotoStatus(Forward, LowSpeed),
		GotoStatus(Reverse, HighSpeed),
	}
	for _, s := range statuses {
		got, err := ParseStatus(EncodeStatus(s))
		if err != nil {
			t.Fatalf("ParseStatus: %v", err)
		}
		if got != s {
			t.Errorf("round trip %+v -> %+v", s, got)
		}
	}
}

func TestParseStatus_Short(t *testing.T) {
	if _, err := ParseStatus("10"); !errors.Is(err, ErrMalformedEncoding) {
		t.Errorf("error = %v, want ErrMalformedEncoding", err)
	}
}

func TestAxisStatus_Moving(t *testing.T) {
	if StoppedStatus().Moving() {
		t.Error("stopped should not be moving")
	}
	if !ContinuousStatus(Forward, LowSpeed).Moving() || !GotoStatus(Reverse, HighSpeed).Moving() {
		t.Error("slewing states should be moving")
	}
}
