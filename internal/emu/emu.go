// Package emu wires CPU, Bus, and their owned PPU/timer/joypad/interrupt
// components into the single stepping loop an outer driver (a demo
// presenter, a headless runner, a test) talks to. It owns no file or
// window I/O; callers hand it ROM bytes and pull a framebuffer snapshot.
package emu

import (
	"io"

	"github.com/retrosilicon/dmgcore/internal/bus"
	"github.com/retrosilicon/dmgcore/internal/cart"
	"github.com/retrosilicon/dmgcore/internal/cpu"
	"github.com/retrosilicon/dmgcore/internal/joypad"
)

// Machine is the DMG core: one CPU driving one Bus, advanced one
// instruction (and one interrupt check) at a time.
type Machine struct {
	cfg Config

	bus *bus.Bus
	cpu *cpu.CPU

	header *cart.Header
}

// New constructs a Machine with no cartridge loaded; call LoadROM before
// stepping.
func New(cfg Config) *Machine {
	return &Machine{cfg: cfg}
}

// LoadROM builds a fresh Bus/CPU pair around rom. A no-mapper ROM larger
// than 32 KiB is truncated by the cartridge's own addressing, per the
// no-bank-switching simplification the core commits to.
func (m *Machine) LoadROM(rom []byte) error {
	h, err := cart.ParseHeader(rom)
	if err != nil {
		return err
	}
	m.header = h
	m.bus = bus.New(rom)
	m.cpu = cpu.New(m.bus)
	m.cpu.ResetNoBoot()
	return nil
}

// SetBootROM installs a boot ROM image to run before the cartridge entry
// point, resetting PC to 0 so it executes from the start.
func (m *Machine) SetBootROM(data []byte) {
	if m.bus == nil {
		return
	}
	m.bus.SetBootROM(data)
	m.cpu.SetPC(0)
}

// Header exposes the parsed cartridge header for diagnostics.
func (m *Machine) Header() *cart.Header { return m.header }

// SetSerialWriter forwards bytes written to the serial port (0xFF01/0xFF02)
// to w; used by test harnesses that read a ROM's pass/fail report.
func (m *Machine) SetSerialWriter(w io.Writer) {
	if m.bus != nil {
		m.bus.SetSerialWriter(w)
	}
}

// PressKey and ReleaseKey forward host input to the joypad latch.
func (m *Machine) PressKey(btn joypad.Button) {
	if m.bus != nil {
		m.bus.PressKey(btn)
	}
}

func (m *Machine) ReleaseKey(btn joypad.Button) {
	if m.bus != nil {
		m.bus.ReleaseKey(btn)
	}
}

// Framebuffer returns the PPU's current 160x144 frame, one 0x00RRGGBB word
// per pixel, refreshed a scanline at a time as StepFrame runs.
func (m *Machine) Framebuffer() *[160 * 144]uint32 {
	return m.bus.PPU().Framebuffer()
}

// StepFrame runs CPU instructions until the PPU completes one more frame
// (LY wraps from 153 back to 0), then returns. With the LCD off this would
// spin forever, so it also bails out once an excessive number of steps has
// run without a frame boundary.
func (m *Machine) StepFrame() {
	if m.cpu == nil {
		return
	}
	start := m.bus.PPU().FrameCount()
	const stepBudget = 1 << 20 // generous upper bound on one frame's instructions
	for i := 0; i < stepBudget; i++ {
		m.cpu.Step()
		if m.bus.PPU().FrameCount() != start {
			return
		}
	}
}

// Step executes exactly one CPU instruction (or interrupt dispatch) and
// returns the machine cycles it took, for single-step debugging tools.
func (m *Machine) Step() int {
	if m.cpu == nil {
		return 0
	}
	return m.cpu.Step()
}

// CPU exposes the underlying CPU for tools that need direct register access.
func (m *Machine) CPU() *cpu.CPU { return m.cpu }

// Bus exposes the underlying bus for tools that need direct memory access.
func (m *Machine) Bus() *bus.Bus { return m.bus }
