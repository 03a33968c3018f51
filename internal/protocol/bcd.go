package protocol

import "fmt"

const hexDigits = "0123456789ABCDEF"

// Encode24 encodes the low 24 bits of n as six uppercase hex characters,
// low byte first: 0x0A1B2C becomes "2C1B0A".
func Encode24(n uint32) string {
	var b [6]byte
	for i := 0; i < 3; i++ {
		v := byte(n >> (8 * i))
		b[2*i] = hexDigits[v>>4]
		b[2*i+1] = hexDigits[v&0x0F]
	}
	return string(b[:])
}

// Decode24 is the inverse of Encode24.
func Decode24(s string) (uint32, error) {
	if len(s) != 6 {
		return 0, fmt.Errorf("%w: want 6 hex characters, got %q", ErrMalformedEncoding, s)
	}
	var v uint32
	for _, i := range [6]int{4, 5, 2, 3, 0, 1} {
		n, ok := nibble(s[i])
		if !ok {
			return 0, fmt.Errorf("%w: non-hex character in %q", ErrMalformedEncoding, s)
		}
		v = v<<4 | uint32(n)
	}
	return v, nil
}

// DecodeHigh8 reads the first two hex characters of s as one byte. The
// high-speed ratio reply uses this shorter form.
func DecodeHigh8(s string) (uint32, error) {
	if len(s) < 2 {
		return 0, fmt.Errorf("%w: want at least 2 hex characters, got %q", ErrMalformedEncoding, s)
	}
	hi, ok1 := nibble(s[0])
	lo, ok2 := nibble(s[1])
	if !ok1 || !ok2 {
		return 0, fmt.Errorf("%w: non-hex character in %q", ErrMalformedEncoding, s)
	}
	return uint32(hi)<<4 | uint32(lo), nil
}

func nibble(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	}
	return 0, false
}

// Func selects the controller's motion mode.
type Func byte

const (
	FuncGotoHighSpeed Func = '0'
	FuncSlewLowSpeed  Func = '1'
	FuncGotoLowSpeed  Func = '2'
	FuncSlewHighSpeed Func = '3'
)

// EncodeMotionMode builds the two-byte payload of the set motion mode command.
func EncodeMotionMode(f Func, d Direction) string {
	dir := byte('0')
	if d == Reverse {
		dir = '1'
	}
	return string([]byte{byte(f), dir})
}

// MotionFunc picks the mode byte for a goto or continuous slew.
func MotionFunc(goTo bool, speed SpeedMode) Func {
	switch {
	case goTo && speed == HighSpeed:
		return FuncGotoHighSpeed
	case goTo:
		return FuncGotoLowSpeed
	case speed == HighSpeed:
		return FuncSlewHighSpeed
	default:
		return FuncSlewLowSpeed
	}
}
