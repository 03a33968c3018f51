package protocol

import (
	"errors"
	"strings"
	"testing"
)

func TestEncode24_Example(t *testing.T) {
	if got := Encode24(0x0A1B2C); got != "2C1B0A" {
		t.Errorf("Encode24(0x0A1B2C) = %q, want %q", got, "2C1B0A")
	}
}

func TestDecode24_Example(t *testing.T) {
	got, err := Decode24("2C1B0A")
	if err != nil {
		t.Fatalf("Decode24: %v", err)
	}
	if got != 0x0A1B2C {
		t.Errorf("Decode24(\"2C1B0A\") = %#x, want 0x0A1B2C", got)
	}
}

func TestEncode24_AlwaysSixUppercaseHex(t *testing.T) {
	cases := []uint32{0, 1, 0xFF, 0x100, 0xABCDEF, 0xFFFFFF, 0x1FFFFFF}
	for _, n := range cases {
		s := Encode24(n)
		if len(s) != 6 {
			t.Errorf("Encode24(%#x) = %q, want 6 characters", n, s)
		}
		if strings.ToUpper(s) != s {
			t.Errorf("Encode24(%#x) = %q, want uppercase", n, s)
		}
		for _, c := range []byte(s) {
			if !strings.ContainsRune(hexDigits, rune(c)) {
				t.Errorf("Encode24(%#x) = %q contains non-hex %q", n, s, c)
			}
		}
	}
}

func TestEncode24_DropsBitsAbove24(t *testing.T) {
	if got := Encode24(0x1000001); got != "010000" {
		t.Errorf("Encode24(0x1000001) = %q, want %q", got, "010000")
	}
}

func TestBCD_RoundTripFullRange(t *testing.T) {
	if testing.Short() {
		t.Skip("full 24-bit sweep")
	}
	for n := uint32(0); n <= 0xFFFFFF; n++ {
		got, err := Decode24(Encode24(n))
		if err != nil {
			t.Fatalf("Decode24(Encode24(%#x)): %v", n, err)
		}
		if got != n {
			t.Fatalf("round trip %#x -> %#x", n, got)
		}
	}
}

func TestDecode24_AcceptsLowercase(t *testing.T) {
	got, err := Decode24("2c1b0a")
	if err != nil {
		t.Fatalf("Decode24: %v", err)
	}
	if got != 0x0A1B2C {
		t.Errorf("got %#x, want 0x0A1B2C", got)
	}
}

func TestDecode24_Malformed(t *testing.T) {
	cases := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"short", "2C1B0"},
		{"long", "2C1B0A0"},
		{"non_hex", "2C1G0A"},
		{"space", "2C B0A"},
		{"marker", "=C1B0A"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode24(tc.in)
			if !errors.Is(err, ErrMalformedEncoding) {
				t.Errorf("Decode24(%q) error = %v, want ErrMalformedEncoding", tc.in, err)
			}
		})
	}
}

func TestDecodeHigh8(t *testing.T) {
	cases := []struct {
		in   string
		want uint32
	}{
		{"40", 64},
		{"10", 16},
		{"400000", 64},
		{"ff", 255},
	}
	for _, tc := range cases {
		got, err := DecodeHigh8(tc.in)
		if err != nil {
			t.Errorf("DecodeHigh8(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("DecodeHigh8(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}

	for _, bad := range []string{"", "4", "G0"} {
		if _, err := DecodeHigh8(bad); !errors.Is(err, ErrMalformedEncoding) {
			t.Errorf("DecodeHigh8(%q) error = %v, want ErrMalformedEncoding", bad, err)
		}
	}
}

func TestEncodeMotionMode(t *testing.T) {
	cases := []struct {
		f    Func
		d    Direction
		want string
	}{
		{FuncGotoHighSpeed, Forward, "00"},
		{FuncSlewLowSpeed, Reverse, "11"},
		{FuncGotoLowSpeed, Forward, "20"},
		{FuncSlewHighSpeed, Reverse, "31"},
	}
	for _, tc := range cases {
		if got := EncodeMotionMode(tc.f, tc.d); got != tc.want {
			t.Errorf("EncodeMotionMode(%c, %v) = %q, want %q", tc.f, tc.d, got, tc.want)
		}
	}
}

func TestMotionFunc(t *testing.T) {
	if f := MotionFunc(true, HighSpeed); f != FuncGotoHighSpeed {
		t.Errorf("goto/high = %c", f)
	}
	if f := MotionFunc(true, LowSpeed); f != FuncGotoLowSpeed {
		t.Errorf("goto/low = %c", f)
	}
	if f := MotionFunc(false, HighSpeed); f != FuncSlewHighSpeed {
		t.Errorf("slew/high = %c", f)
	}
	if f := MotionFunc(false, LowSpeed); f != FuncSlewLowSpeed {
		t.Errorf("slew/low = %c", f)
	}
}
