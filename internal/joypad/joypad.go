// Package joypad models the DMG button matrix exposed at 0xFF00 (JOYP/P1).
// It holds no knowledge of host input devices; the presenter calls Press and
// Release with its own button encoding through the bus.
package joypad

// Button indexes the eight physical inputs. The low nibble shares a select
// line with the high nibble in hardware: Right/Left/Up/Down use the
// direction select bit, A/B/Select/Start use the button select bit.
type Button int

const (
	Right Button = iota
	Left
	Up
	Down
	A
	B
	Select
	Start
)

// Requester raises the Joypad interrupt; supplied by the owning bus.
type Requester func()

// Joypad tracks which of the eight buttons are held and which bank (P14
// directions / P15 buttons) the game has selected for reading.
type Joypad struct {
	held [8]bool

	selectDirs bool // P14 (bit 4) written high: direction keys not readable
	selectBtns bool // P15 (bit 5) written high: action keys not readable

	req Requester
}

// New creates a Joypad that calls req on a press that newly unmasks a bit.
func New(req Requester) *Joypad {
	return &Joypad{req: req}
}

// Read returns the JOYP byte: bits 5-4 echo the select lines, bits 3-0 are
// active-low state for the currently selected bank (1 = released), and bits
// 7-6 always read as 1.
func (j *Joypad) Read() byte {
	v := byte(0xC0)
	if j.selectBtns {
		v |= 1 << 5
	}
	if j.selectDirs {
		v |= 1 << 4
	}
	v |= j.nibble()
	return v
}

// WriteSelect stores the two select bits written to JOYP; the low nibble is
// read-only from the CPU's perspective.
func (j *Joypad) WriteSelect(v byte) {
	j.selectBtns = v&(1<<5) != 0
	j.selectDirs = v&(1<<4) != 0
}

// nibble returns the active-low 4-bit reading for whichever bank(s) are
// currently selected, merging both when both select bits are 0 (both lines
// selected).
func (j *Joypad) nibble() byte {
	var n byte = 0x0F
	if !j.selectDirs {
		n &^= j.dirBits()
	}
	if !j.selectBtns {
		n &^= j.btnBits()
	}
	return n
}

func (j *Joypad) dirBits() byte {
	var b byte
	if j.held[Right] {
		b |= 1 << 0
	}
	if j.held[Left] {
		b |= 1 << 1
	}
	if j.held[Up] {
		b |= 1 << 2
	}
	if j.held[Down] {
		b |= 1 << 3
	}
	return b
}

func (j *Joypad) btnBits() byte {
	var b byte
	if j.held[A] {
		b |= 1 << 0
	}
	if j.held[B] {
		b |= 1 << 1
	}
	if j.held[Select] {
		b |= 1 << 2
	}
	if j.held[Start] {
		b |= 1 << 3
	}
	return b
}

// Press marks a button held. A press that clears a previously-1 bit in the
// currently selected bank(s) raises the Joypad interrupt, matching the
// DMG's edge-triggered latch behavior.
func (j *Joypad) Press(btn Button) {
	if j.held[btn] {
		return
	}
	before := j.nibble()
	j.held[btn] = true
	after := j.nibble()
	if before&^after != 0 && j.req != nil {
		j.req()
	}
}

// Release marks a button no longer held.
func (j *Joypad) Release(btn Button) {
	j.held[btn] = false
}
