package gpio

import (
	"errors"
	"testing"
)

func TestFakeDriverWriteAndRead(t *testing.T) {
	f := NewFakeDriver()

	if err := f.Open(18, SchemeLogical); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := f.SetDirection(18, Output); err != nil {
		t.Fatalf("set direction: %v", err)
	}
	if err := f.Write(18, High); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := f.Read(18)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != High {
		t.Errorf("level: got %v, want HIGH", got)
	}
	if f.Directions[18] != Output {
		t.Errorf("direction: got %v, want Output", f.Directions[18])
	}
}

func TestFakeDriverRequiresOpen(t *testing.T) {
	f := NewFakeDriver()

	if err := f.SetDirection(4, Output); !errors.Is(err, ErrPinNotOpen) {
		t.Errorf("set direction: got %v, want ErrPinNotOpen", err)
	}
	if _, err := f.Read(4); !errors.Is(err, ErrPinNotOpen) {
		t.Errorf("read: got %v, want ErrPinNotOpen", err)
	}
}

func TestFakeDriverWriteError(t *testing.T) {
	f := NewFakeDriver()
	f.Open(18, SchemeLogical)
	f.WriteError = errors.New("simulated error")

	err := f.Write(18, High)
	if err == nil || err.Error() != "simulated error" {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.Writes) != 1 {
		t.Errorf("failed write should still be recorded, got %d writes", len(f.Writes))
	}
	if lvl, _ := f.Read(18); lvl != Low {
		t.Errorf("level after failed write: got %v, want LOW", lvl)
	}
}

func TestFakeDriverWritesFor(t *testing.T) {
	f := NewFakeDriver()
	f.Write(18, High)
	f.Write(23, High)
	f.Write(18, Low)

	got := f.WritesFor(18)
	if len(got) != 2 || got[0] != High || got[1] != Low {
		t.Errorf("writes for 18: got %v, want [HIGH LOW]", got)
	}
}

func TestFakeDriverCloseAndReset(t *testing.T) {
	f := NewFakeDriver()
	f.Open(18, SchemeBoard)
	if f.Opened[18] != SchemeBoard {
		t.Errorf("scheme: got %q, want board", f.Opened[18])
	}

	f.Close(18)
	if _, ok := f.Opened[18]; ok {
		t.Error("pin should not be open after Close()")
	}
	if len(f.Closed) != 1 || f.Closed[0] != 18 {
		t.Errorf("closed: got %v, want [18]", f.Closed)
	}

	f.Write(18, High)
	f.Reset()
	if len(f.Writes) != 0 || len(f.Closed) != 0 {
		t.Error("Reset should clear recorded writes and closes")
	}
}

func TestParseScheme(t *testing.T) {
	tests := []struct {
		in   string
		want Scheme
		err  bool
	}{
		{"", SchemeLogical, false},
		{"logical", SchemeLogical, false},
		{"BCM", SchemeLogical, false},
		{"board", SchemeBoard, false},
		{"wiringpi", "", true},
	}
	for _, tt := range tests {
		got, err := ParseScheme(tt.in)
		if (err != nil) != tt.err {
			t.Errorf("ParseScheme(%q): err=%v, want err=%v", tt.in, err, tt.err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseScheme(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLevelString(t *testing.T) {
	if High.String() != "HIGH" || Low.String() != "LOW" {
		t.Errorf("got %q/%q, want HIGH/LOW", High.String(), Low.String())
	}
}
