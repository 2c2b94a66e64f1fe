package bus

import "testing"

// tick advances the bus by n machine cycles (the unit CPU.Step returns).
func tick(b *Bus, n int) { b.Tick(n) }

func TestPPU_STAT_HBlankInterrupt(t *testing.T) {
	b := New(make([]byte, 0x8000))
	b.Write(0xFF40, 0x80)  // LCD on
	b.Write(0xFF41, 1<<3)  // STAT HBlank interrupt enable
	b.Write(0xFF0F, 0)     // clear IF
	tick(b, 20+43)         // OAM search + pixel transfer -> HBlank
	if (b.Read(0xFF0F) & (1 << 1)) == 0 {
		t.Fatalf("expected STAT IF on HBlank mode change")
	}
}

func TestPPU_LYC_InterruptAndFlag(t *testing.T) {
	b := New(make([]byte, 0x8000))
	b.Write(0xFF40, 0x80) // LCD on
	b.Write(0xFF41, 1<<6) // LYC=LY STAT interrupt enable
	b.Write(0xFF45, 0x01) // LYC=1
	b.Write(0xFF0F, 0)
	tick(b, 114) // one full scanline -> LY=1
	if (b.Read(0xFF0F) & (1 << 1)) == 0 {
		t.Fatalf("expected STAT IF on LYC=LY match at LY=1")
	}
	stat := b.Read(0xFF41)
	if (stat & (1 << 2)) == 0 {
		t.Fatalf("expected STAT coincidence flag set when LY==LYC")
	}
}

func TestPPU_VRAM_OAM_AccessRestrictions(t *testing.T) {
	b := New(make([]byte, 0x8000))
	b.Write(0xFF40, 0x80)
	tick(b, 20+43) // mode 0 (HBlank): both VRAM and OAM are writable
	b.Write(0x8000, 0x11)
	b.Write(0xFE00, 0x22)
	tick(b, 114-63) // new line start (mode 2)
	tick(b, 20)     // enter mode 3
	b.Write(0x8000, 0xAA)
	b.Write(0xFE00, 0xBB)
	if got := b.Read(0x8000); got != 0xFF {
		t.Fatalf("VRAM read during mode3 got %02X want FF", got)
	}
	if got := b.Read(0xFE00); got != 0xFF {
		t.Fatalf("OAM read during mode3 got %02X want FF", got)
	}
	tick(b, 43) // HBlank
	if got := b.Read(0x8000); got != 0x11 {
		t.Fatalf("VRAM value changed despite blocked write: got %02X want 11", got)
	}
	if got := b.Read(0xFE00); got != 0x22 {
		t.Fatalf("OAM value changed despite blocked write: got %02X want 22", got)
	}
}

func TestBus_OAMDMA_StepwiseAndBlocking(t *testing.T) {
	b := New(make([]byte, 0x8000))
	for i := 0; i < 0xA0; i++ {
		b.Write(0xC000+uint16(i), byte(i))
	}
	b.Write(0xFF46, 0xC0) // start DMA from 0xC000
	if got := b.Read(0xFE00); got != 0xFF {
		t.Fatalf("OAM read during DMA got %02X want FF", got)
	}
	b.Write(0xFE00, 0xEE) // ignored
	tick(b, 80)
	if got := b.Read(0xFE10); got != 0xFF {
		t.Fatalf("mid-DMA OAM read got %02X want FF", got)
	}
	tick(b, 80) // complete the 160-cycle transfer
	for i := 0; i < 0xA0; i++ {
		if got := b.Read(0xFE00 + uint16(i)); got != byte(i) {
			t.Fatalf("OAM[%02X] got %02X want %02X", i, got, byte(i))
		}
	}
	b.Write(0xFE00, 0x99)
	if got := b.Read(0xFE00); got != 0x99 {
		t.Fatalf("OAM write post-DMA failed: got %02X", got)
	}
}

func TestBus_OAMDMA_BlocksNonHRAMBus(t *testing.T) {
	b := New(make([]byte, 0x8000))
	b.Write(0xC000, 0x7A)
	b.Write(0xFF80, 0x11) // HRAM, should remain reachable during DMA
	b.Write(0xFF46, 0xC0)
	if got := b.Read(0xC000); got != 0xFF {
		t.Fatalf("WRAM read during DMA got %02X want FF", got)
	}
	if got := b.Read(0xFF80); got != 0x11 {
		t.Fatalf("HRAM read during DMA got %02X want 11", got)
	}
	b.Write(0xFF81, 0x22)
	if got := b.Read(0xFF81); got != 0x22 {
		t.Fatalf("HRAM write during DMA was blocked: got %02X", got)
	}
}

func TestPPU_ModeSequenceVisibleLine(t *testing.T) {
	b := New(make([]byte, 0x8000))
	b.Write(0xFF40, 0x80) // LCD on
	if mode := b.Read(0xFF41) & 0x03; mode != 2 {
		t.Fatalf("mode at start got %d want 2", mode)
	}
	tick(b, 20)
	if mode := b.Read(0xFF41) & 0x03; mode != 3 {
		t.Fatalf("mode at M-cycle 20 got %d want 3", mode)
	}
	tick(b, 43)
	if mode := b.Read(0xFF41) & 0x03; mode != 0 {
		t.Fatalf("mode at M-cycle 63 got %d want 0", mode)
	}
	tick(b, 114-63)
	if ly := b.Read(0xFF44); ly != 1 {
		t.Fatalf("LY after 1 line got %d want 1", ly)
	}
	if mode := b.Read(0xFF41) & 0x03; mode != 2 {
		t.Fatalf("mode at new line got %d want 2", mode)
	}
}

func TestPPU_VBlankDurationAndIF(t *testing.T) {
	b := New(make([]byte, 0x8000))
	b.Write(0xFF40, 0x80)
	b.Write(0xFF0F, 0)
	tick(b, 144*114)
	if ly := b.Read(0xFF44); ly != 144 {
		t.Fatalf("LY at vblank start got %d want 144", ly)
	}
	if mode := b.Read(0xFF41) & 0x03; mode != 1 {
		t.Fatalf("mode at vblank start got %d want 1", mode)
	}
	if (b.Read(0xFF0F) & 0x01) == 0 {
		t.Fatalf("VBlank IF not set on entering vblank")
	}
	tick(b, 10*114)
	if ly := b.Read(0xFF44); ly != 0 {
		t.Fatalf("LY after vblank wrap got %d want 0", ly)
	}
}

func TestPPU_WriteLYResetsLineAndMode(t *testing.T) {
	b := New(make([]byte, 0x8000))
	b.Write(0xFF40, 0x80)
	tick(b, 63)
	if mode := b.Read(0xFF41) & 0x03; mode != 0 {
		t.Fatalf("pre-reset mode got %d want 0", mode)
	}
	b.Write(0xFF44, 0x99)
	if ly := b.Read(0xFF44); ly != 0 {
		t.Fatalf("LY not reset to 0: %d", ly)
	}
	if mode := b.Read(0xFF41) & 0x03; mode != 2 {
		t.Fatalf("mode after LY reset got %d want 2", mode)
	}
}

func TestPPU_STAT_VBlankInterruptEnable(t *testing.T) {
	b := New(make([]byte, 0x8000))
	b.Write(0xFF40, 0x80)
	b.Write(0xFF0F, 0)
	b.Write(0xFF41, 0)
	tick(b, 144*114)
	if (b.Read(0xFF0F) & 0x01) == 0 {
		t.Fatalf("VBlank IF not set")
	}
	if (b.Read(0xFF0F) & 0x02) != 0 {
		t.Fatalf("STAT IF set unexpectedly when disabled")
	}
	b.Write(0xFF0F, 0)
	b.Write(0xFF41, 1<<4)
	tick(b, 154*114)
	if (b.Read(0xFF0F) & 0x02) == 0 {
		t.Fatalf("STAT IF not set on VBlank when enabled")
	}
}
