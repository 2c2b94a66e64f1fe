package joypad

import "testing"

func TestJoypad_ReadDefaultAllReleased(t *testing.T) {
	j := New(nil)
	j.WriteSelect(0x00) // select both banks
	if got := j.Read(); got != 0xCF {
		t.Fatalf("Read got %02x, want CF", got)
	}
}

func TestJoypad_DirectionSelect(t *testing.T) {
	j := New(nil)
	j.Press(Right)
	j.Press(Down)

	j.WriteSelect(0x20) // select directions (P14 low), buttons deselected
	if got := j.Read() & 0x0F; got != 0x06 {
		t.Fatalf("directions got %04b, want 0110 (Right and Down low)", got)
	}

	j.WriteSelect(0x10) // select buttons instead; directions not read
	if got := j.Read() & 0x0F; got != 0x0F {
		t.Fatalf("buttons got %04b, want 1111 (none held)", got)
	}
}

func TestJoypad_ButtonSelect(t *testing.T) {
	j := New(nil)
	j.Press(A)
	j.Press(Start)

	j.WriteSelect(0x10) // select buttons (P15 low)
	if got := j.Read() & 0x0F; got != 0x06 {
		t.Fatalf("buttons got %04b, want 0110 (A and Start low)", got)
	}
}

func TestJoypad_PressRaisesInterruptOnNewlyUnmaskedBit(t *testing.T) {
	var fired int
	j := New(func() { fired++ })
	j.WriteSelect(0x20) // directions selected

	j.Press(Up)
	if fired != 1 {
		t.Fatalf("fired got %d, want 1 after first press", fired)
	}

	j.Press(Up) // already held, no edge
	if fired != 1 {
		t.Fatalf("fired got %d, want 1 after repeat press", fired)
	}

	j.Release(Up)
	j.Press(Up)
	if fired != 2 {
		t.Fatalf("fired got %d, want 2 after release+press", fired)
	}
}

func TestJoypad_PressWhileBankDeselectedDoesNotRaiseInterrupt(t *testing.T) {
	var fired int
	j := New(func() { fired++ })
	j.WriteSelect(0x30) // neither bank selected

	j.Press(A)
	if fired != 0 {
		t.Fatalf("fired got %d, want 0 when buttons are not selected", fired)
	}
}

func TestJoypad_ReleaseClearsHeldState(t *testing.T) {
	j := New(nil)
	j.WriteSelect(0x20)
	j.Press(Left)
	j.Release(Left)
	if got := j.Read() & 0x0F; got != 0x0F {
		t.Fatalf("after release got %04b, want 1111", got)
	}
}
