package emu

import (
	"bytes"
	"testing"

	"github.com/retrosilicon/dmgcore/internal/joypad"
)

// buildHeader writes a minimal valid header (checksum included) into rom so
// LoadROM's header parse succeeds.
func buildHeader(rom []byte) {
	copy(rom[0x0134:0x0144], []byte("TESTROM"))
	var sum byte
	for addr := 0x0134; addr <= 0x014C; addr++ {
		sum = sum - rom[addr] - 1
	}
	rom[0x014D] = sum
}

// Program: LD A,'O'; LD (FF01),A; LD A,0x81; LD (FF02),A; JR -2 (spin)
func serialEchoProgram() []byte {
	rom := make([]byte, 0x8000)
	buildHeader(rom)
	prog := []byte{
		0x3E, 'O', // LD A,'O'
		0xE0, 0x01, // LDH (FF01),A
		0x3E, 0x81, // LD A,0x81
		0xE0, 0x02, // LDH (FF02),A
		0x18, 0xFE, // JR -2
	}
	copy(rom[0x0100:], prog)
	return rom
}

func TestMachine_SerialOutput(t *testing.T) {
	m := New(Config{})
	if err := m.LoadROM(serialEchoProgram()); err != nil {
		t.Fatalf("LoadROM: %v", err)
	}
	var buf bytes.Buffer
	m.SetSerialWriter(&buf)
	m.CPU().SetPC(0x0100)

	for i := 0; i < 20; i++ {
		m.Step()
	}
	if buf.Len() == 0 || buf.Bytes()[0] != 'O' {
		t.Fatalf("expected serial output starting with 'O', got %q", buf.String())
	}
}

func TestMachine_StepFrameAdvancesFramebuffer(t *testing.T) {
	rom := make([]byte, 0x8000)
	buildHeader(rom)
	// LCD on, then spin forever so StepFrame's only exit is the frame boundary.
	prog := []byte{
		0x3E, 0x80, // LD A,0x80
		0xE0, 0x40, // LDH (FF40),A  ; LCDC = LCD on
		0x18, 0xFE, // JR -2
	}
	copy(rom[0x0100:], prog)
	m := New(Config{})
	if err := m.LoadROM(rom); err != nil {
		t.Fatalf("LoadROM: %v", err)
	}
	m.CPU().SetPC(0x0100)

	before := m.Bus().PPU().FrameCount()
	m.StepFrame()
	after := m.Bus().PPU().FrameCount()
	if after != before+1 {
		t.Fatalf("FrameCount got %d want %d", after, before+1)
	}
	fb := m.Framebuffer()
	if len(fb) != 160*144 {
		t.Fatalf("framebuffer size got %d want %d", len(fb), 160*144)
	}
}

func TestMachine_JoypadPassthrough(t *testing.T) {
	rom := make([]byte, 0x8000)
	buildHeader(rom)
	m := New(Config{})
	if err := m.LoadROM(rom); err != nil {
		t.Fatalf("LoadROM: %v", err)
	}
	m.Bus().Write(0xFF00, 0x20) // select D-pad
	m.PressKey(joypad.Right)
	if got := m.Bus().Read(0xFF00) & 0x0F; got != 0x0E {
		t.Fatalf("JOYP after press got %02x want 0E", got)
	}
	m.ReleaseKey(joypad.Right)
	if got := m.Bus().Read(0xFF00) & 0x0F; got != 0x0F {
		t.Fatalf("JOYP after release got %02x want 0F", got)
	}
}
