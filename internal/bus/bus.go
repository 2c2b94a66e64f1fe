package bus

import (
	"io"

	"github.com/retrosilicon/dmgcore/internal/cart"
	"github.com/retrosilicon/dmgcore/internal/interrupt"
	"github.com/retrosilicon/dmgcore/internal/joypad"
	"github.com/retrosilicon/dmgcore/internal/ppu"
	"github.com/retrosilicon/dmgcore/internal/timer"
)

// Bus wires the CPU-visible 16-bit address space to the cartridge, WRAM,
// HRAM, and the I/O-owning components (PPU, timer, joypad, interrupt
// controller). It is the only component that touches raw memory arrays;
// everything else reaches them through Read/Write or a narrow accessor,
// per the no-component-owns-another rule the rest of the core follows.
type Bus struct {
	cart cart.Cartridge

	// Work RAM (WRAM) 8 KiB at 0xC000-0xDFFF; Echo 0xE000-0xFDFF mirrors it.
	wram [0x2000]byte

	// High RAM (HRAM) 0xFF80-0xFFFE (127 bytes).
	hram [0x7F]byte

	ppu   *ppu.PPU
	timer *timer.Timer
	joyp  *joypad.Joypad
	irq   interrupt.Controller

	// Serial port: stored bytes only, no link-cable emulation.
	sb byte
	sc byte
	sw io.Writer

	dma       byte // FF46, last written source high byte
	dmaActive bool
	dmaSrc    uint16
	dmaIndex  int

	bootROM     []byte
	bootEnabled bool
}

// New constructs a Bus with a ROM-only cartridge built from the raw image.
func New(rom []byte) *Bus {
	return NewWithCartridge(cart.New(rom))
}

// NewWithCartridge wires a provided cartridge implementation.
func NewWithCartridge(c cart.Cartridge) *Bus {
	b := &Bus{cart: c}
	b.ppu = ppu.New(func(bit int) { b.irq.Request(interrupt.Kind(bit)) })
	b.timer = timer.New(func() { b.irq.Request(interrupt.Timer) })
	b.joyp = joypad.New(func() { b.irq.Request(interrupt.Joypad) })
	return b
}

// PPU returns the internal PPU for read-only rendering helpers.
func (b *Bus) PPU() *ppu.PPU { return b.ppu }

// Cart returns the underlying cartridge.
func (b *Bus) Cart() cart.Cartridge { return b.cart }

// oamBlocked reports whether the CPU is currently locked out of OAM: either
// an in-flight DMA transfer, or PPU mode 2/3 on a line being scanned/drawn.
func (b *Bus) oamBlocked() bool {
	if b.dmaActive {
		return true
	}
	mode := b.ppu.CPURead(0xFF41) & 0x03
	return mode == 2 || mode == 3
}

func (b *Bus) Read(addr uint16) byte {
	// A faithful OAM DMA blocks CPU access to everything but HRAM while it
	// runs; non-HRAM reads observe open-bus 0xFF for the duration. The DMA
	// engine itself reads through readRaw, bypassing this lock, since it is
	// the bus master during the copy, not the locked-out CPU.
	if b.dmaActive && !(addr >= 0xFF80 && addr <= 0xFFFE) && addr != 0xFF46 {
		return 0xFF
	}
	return b.readRaw(addr)
}

func (b *Bus) readRaw(addr uint16) byte {
	switch {
	case addr < 0x8000:
		if b.bootEnabled && addr < 0x0100 && len(b.bootROM) >= 0x100 {
			return b.bootROM[addr]
		}
		return b.cart.Read(addr)
	case addr >= 0x8000 && addr <= 0x9FFF:
		return b.ppu.CPURead(addr)
	case addr >= 0xA000 && addr <= 0xBFFF:
		return b.cart.Read(addr)
	case addr >= 0xC000 && addr <= 0xDFFF:
		return b.wram[addr-0xC000]
	case addr >= 0xE000 && addr <= 0xFDFF:
		mirror := addr - 0x2000
		return b.wram[mirror-0xC000]
	case addr >= 0xFF80 && addr <= 0xFFFE:
		return b.hram[addr-0xFF80]
	case addr >= 0xFE00 && addr <= 0xFE9F:
		if b.oamBlocked() {
			return 0xFF
		}
		return b.ppu.CPURead(addr)
	case addr == 0xFF00:
		return b.joyp.Read()
	case addr == 0xFF04:
		return b.timer.ReadDIV()
	case addr == 0xFF05:
		return b.timer.ReadTIMA()
	case addr == 0xFF06:
		return b.timer.ReadTMA()
	case addr == 0xFF07:
		return b.timer.ReadTAC()
	case addr == 0xFF01:
		return b.sb
	case addr == 0xFF02:
		return 0x7E | (b.sc & 0x81)
	case addr == 0xFF40, addr == 0xFF41, addr == 0xFF42, addr == 0xFF43,
		addr == 0xFF44, addr == 0xFF45,
		addr == 0xFF47, addr == 0xFF48, addr == 0xFF49,
		addr == 0xFF4A, addr == 0xFF4B:
		return b.ppu.CPURead(addr)
	case addr == 0xFF46:
		return b.dma
	case addr == 0xFF50:
		return 0xFF
	case addr == 0xFF0F:
		return b.irq.ReadIF()
	case addr == 0xFFFF:
		return b.irq.ReadIE()
	}
	return 0xFF
}

func (b *Bus) Write(addr uint16, value byte) {
	if b.dmaActive && !(addr >= 0xFF80 && addr <= 0xFFFE) && addr != 0xFF46 {
		return
	}
	switch {
	case addr < 0x8000:
		// Writes to ROM are ignored; the no-mapper cartridge enforces this.
		b.cart.Write(addr, value)
		return
	case addr >= 0x8000 && addr <= 0x9FFF:
		b.ppu.CPUWrite(addr, value)
		return
	case addr >= 0xA000 && addr <= 0xBFFF:
		b.cart.Write(addr, value)
		return
	case addr >= 0xC000 && addr <= 0xDFFF:
		b.wram[addr-0xC000] = value
		return
	case addr >= 0xE000 && addr <= 0xFDFF:
		mirror := addr - 0x2000
		b.wram[mirror-0xC000] = value
		return
	case addr >= 0xFF80 && addr <= 0xFFFE:
		b.hram[addr-0xFF80] = value
		return
	case addr >= 0xFE00 && addr <= 0xFE9F:
		if b.oamBlocked() {
			return
		}
		b.ppu.CPUWrite(addr, value)
		return
	case addr == 0xFF00:
		b.joyp.WriteSelect(value)
		return
	case addr == 0xFF04:
		b.timer.WriteDIV(value)
		return
	case addr == 0xFF05:
		b.timer.WriteTIMA(value)
		return
	case addr == 0xFF06:
		b.timer.WriteTMA(value)
		return
	case addr == 0xFF07:
		b.timer.WriteTAC(value)
		return
	case addr == 0xFF01:
		b.sb = value
		return
	case addr == 0xFF02:
		b.sc = value & 0x81
		if b.sc&0x80 != 0 {
			if b.sw != nil {
				_, _ = b.sw.Write([]byte{b.sb})
			}
			b.irq.Request(interrupt.Serial)
			b.sc &^= 0x80
		}
		return
	case addr == 0xFF40, addr == 0xFF41, addr == 0xFF42, addr == 0xFF43,
		addr == 0xFF44, addr == 0xFF45,
		addr == 0xFF47, addr == 0xFF48, addr == 0xFF49,
		addr == 0xFF4A, addr == 0xFF4B:
		b.ppu.CPUWrite(addr, value)
		return
	case addr == 0xFF46:
		b.dma = value
		b.dmaActive = true
		b.dmaSrc = uint16(value) << 8
		b.dmaIndex = 0
		return
	case addr == 0xFF50:
		if value != 0x00 {
			b.bootEnabled = false
		}
		return
	case addr == 0xFF0F:
		b.irq.WriteIF(value)
		return
	case addr == 0xFFFF:
		b.irq.WriteIE(value)
		return
	}
}

// Joypad button indices, re-exported from the joypad package for callers
// that only import the bus.
const (
	JoypRight  = joypad.Right
	JoypLeft   = joypad.Left
	JoypUp     = joypad.Up
	JoypDown   = joypad.Down
	JoypA      = joypad.A
	JoypB      = joypad.B
	JoypSelect = joypad.Select
	JoypStart  = joypad.Start
)

// PressKey and ReleaseKey forward host input to the joypad latch.
func (b *Bus) PressKey(btn joypad.Button)   { b.joyp.Press(btn) }
func (b *Bus) ReleaseKey(btn joypad.Button) { b.joyp.Release(btn) }

// SetSerialWriter sets a sink that receives bytes written via the serial port.
func (b *Bus) SetSerialWriter(w io.Writer) { b.sw = w }

// SetBootROM loads a DMG boot ROM mapped at 0x0000-0x00FF until a non-zero
// write to 0xFF50 disables the overlay.
func (b *Bus) SetBootROM(data []byte) {
	b.bootROM = nil
	b.bootEnabled = false
	if len(data) >= 0x100 {
		b.bootROM = make([]byte, 0x100)
		copy(b.bootROM, data[:0x100])
		b.bootEnabled = true
	}
}

// Tick advances the timer, PPU, and DMA engine by cycles machine cycles —
// the value CPU.Step just returned. The PPU's internal clock runs in
// T-cycles (4 per M-cycle); the timer and DMA engine consume M-cycles
// directly, per their own register-level contracts.
func (b *Bus) Tick(cycles int) {
	if cycles <= 0 {
		return
	}
	b.timer.Tick(cycles)
	b.ppu.Tick(cycles * 4)
	if b.dmaActive {
		for i := 0; i < cycles && b.dmaActive; i++ {
			v := b.readRaw(b.dmaSrc + uint16(b.dmaIndex))
			b.ppu.DMAWriteOAM(b.dmaIndex, v)
			b.dmaIndex++
			if b.dmaIndex >= 0xA0 {
				b.dmaActive = false
			}
		}
	}
}

// RequestInterrupt lets components outside this package (e.g. a host input
// layer driving the joypad indirectly) raise an interrupt by kind.
func (b *Bus) RequestInterrupt(kind interrupt.Kind) { b.irq.Request(kind) }

// PendingInterrupt reports and consumes the next interrupt, for CPU dispatch.
func (b *Bus) PendingInterrupt() (kind interrupt.Kind, vector uint16, ok bool) {
	return b.irq.Next()
}

// InterruptsPending reports whether any enabled interrupt is latched,
// without consuming it — used to resume from HALT.
func (b *Bus) InterruptsPending() bool { return b.irq.Pending() }
