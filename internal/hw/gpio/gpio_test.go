package gpio

import "testing"

func TestNewDriver_Mock(t *testing.T) {
	d, err := NewDriver(true)
	if err != nil {
		t.Fatalf("NewDriver(true): %v", err)
	}
	if _, ok := d.(*MockDriver); !ok {
		t.Errorf("driver = %T, want *MockDriver", d)
	}
}

func TestMockDriver_RemembersLevels(t *testing.T) {
	m := NewMockDriver()
	if err := m.SetupPin(24, Output); err != nil {
		t.Fatal(err)
	}
	if mode, ok := m.Mode(24); !ok || mode != Output {
		t.Errorf("Mode(24) = %v, %v", mode, ok)
	}
	if _, ok := m.Mode(25); ok {
		t.Error("pin 25 was never set up")
	}

	m.WritePin(24, High)
	if l, _ := m.ReadPin(24); l != High {
		t.Errorf("ReadPin(24) = %v, want HIGH", l)
	}
	m.WritePin(24, Low)
	if l, _ := m.ReadPin(24); l != Low {
		t.Errorf("ReadPin(24) = %v, want LOW", l)
	}
	if l, _ := m.ReadPin(7); l != Low {
		t.Errorf("unwritten pin = %v, want LOW", l)
	}
	if err := m.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestLevel_String(t *testing.T) {
	if High.String() != "HIGH" || Low.String() != "LOW" {
		t.Error("level names")
	}
}
