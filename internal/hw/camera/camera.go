// Package camera triggers an imaging camera, either through the mount's
// snap port or through a two-wire remote release on the GPIO header.
package camera

import (
	"fmt"
	"strings"
)

// Camera takes a single exposure.
type Camera interface {
	Shoot() error
}

// Kinds accepted by the configuration.
const (
	KindNone = "none"
	KindSnap = "snap"
	KindGPIO = "gpio"
)

// ParseKind normalises a configured camera type.
func ParseKind(s string) (string, error) {
	switch k := strings.ToLower(strings.TrimSpace(s)); k {
	case "", KindNone:
		return KindNone, nil
	case KindSnap, KindGPIO:
		return k, nil
	default:
		return "", fmt.Errorf("camera: unknown type %q (want none, snap or gpio)", s)
	}
}
