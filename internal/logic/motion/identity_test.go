package motion

import (
	"strings"
	"testing"
)

func TestMountIdentity_Family(t *testing.T) {
	cases := []struct {
		code byte
		want string
	}{
		{0x00, "EQ6"},
		{0x05, "AZEQ6"},
		{0x80, "GT"},
		{0x82, "114GT"},
		{0x90, "DOB"},
		{0xF0, "GEEHALEL"},
		{0x42, "CUSTOM"},
	}
	for _, tc := range cases {
		if got := (MountIdentity{MountCode: tc.code}).Family(); got != tc.want {
			t.Errorf("Family(%#02x) = %q, want %q", tc.code, got, tc.want)
		}
	}
}

func TestMountIdentity_FirmwareString(t *testing.T) {
	cases := []struct {
		mc   uint32
		want string
	}{
		{0x020780, "2.07"},
		{0x031290, "3.12"},
		{0x010600, "1.06"},
	}
	for _, tc := range cases {
		if got := (MountIdentity{MCVersion: tc.mc}).FirmwareString(); got != tc.want {
			t.Errorf("FirmwareString(%#06x) = %q, want %q", tc.mc, got, tc.want)
		}
	}
}

func TestMountIdentity_Virtuoso(t *testing.T) {
	if (MountIdentity{MountCode: 0x82}).IsVirtuoso() {
		t.Error("114GT is not a Virtuoso")
	}
	if !(MountIdentity{MountCode: 0x90}).IsVirtuoso() {
		t.Error("DOB is a Virtuoso")
	}
}

func TestMountIdentity_PositiveRotation(t *testing.T) {
	if got := (MountIdentity{MountCode: MountCode114GT}).PositiveRotation(); got != Clockwise {
		t.Errorf("114GT = %v", got)
	}
	if got := (MountIdentity{MountCode: MountCodeGT}).PositiveRotation(); got != Anticlockwise {
		t.Errorf("GT = %v", got)
	}
}

func TestMountIdentity_String(t *testing.T) {
	s := MountIdentity{MCVersion: 0x020780, MountCode: 0x80, DCMotor: true}.String()
	for _, want := range []string{"GT", "2.07", "DC"} {
		if !strings.Contains(s, want) {
			t.Errorf("String() = %q, missing %q", s, want)
		}
	}
}
