package ppu

// InterruptRequester is a callback signature to request IF bits (0:VBlank, 1:STAT, etc.).
type InterruptRequester func(bit int)

// shades is the reference monochrome palette, index by 2-bit color id.
var shades = [4]uint32{0xFFFFFF, 0xCCCCCC, 0x777777, 0x000000}

// LineRegs is a snapshot of the registers that shape one scanline's render,
// captured when the line enters pixel-transfer (mode 3) so a CPU write
// later in the same line cannot retroactively change what already rendered.
type LineRegs struct {
	SCX, SCY, WX, WY, LCDC byte
	WinLine                int
	WindowVisible          bool
}

// PPU models VRAM/OAM, LCDC/STAT regs, LY/LYC, and scanline/sprite rendering.
// It exposes CPU-facing Read/Write for VRAM/OAM and PPU IO regs, and a
// 160x144 framebuffer updated one scanline at a time.
type PPU struct {
	// memory
	vram [0x2000]byte // 0x8000–0x9FFF
	oam  [0xA0]byte   // 0xFE00–0xFE9F

	// regs
	lcdc byte // FF40
	stat byte // FF41 (mode bits 0-1, coincidence flag bit2, enables bits3-6)
	scy  byte // FF42
	scx  byte // FF43
	ly   byte // FF44
	lyc  byte // FF45
	bgp  byte // FF47
	obp0 byte // FF48
	obp1 byte // FF49
	wy   byte // FF4A
	wx   byte // FF4B

	dot int // dots (T-cycles) within current line [0..455]

	winLineCounter int
	lineRegs       [144]LineRegs

	fb        [160 * 144]uint32
	frameDone int // increments each time LY wraps 153->0

	req InterruptRequester
}

func New(req InterruptRequester) *PPU {
	p := &PPU{req: req}
	for i := range p.fb {
		p.fb[i] = shades[0]
	}
	return p
}

// CPURead returns bytes for VRAM, OAM, and PPU IO registers. Returns 0xFF for others.
func (p *PPU) CPURead(addr uint16) byte {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		if (p.stat & 0x03) == 3 {
			return 0xFF
		}
		return p.vram[addr-0x8000]
	case addr >= 0xFE00 && addr <= 0xFE9F:
		m := p.stat & 0x03
		if m == 2 || m == 3 {
			return 0xFF
		}
		return p.oam[addr-0xFE00]
	case addr == 0xFF40:
		return p.lcdc
	case addr == 0xFF41:
		return 0x80 | (p.stat & 0x7F)
	case addr == 0xFF42:
		return p.scy
	case addr == 0xFF43:
		return p.scx
	case addr == 0xFF44:
		return p.ly
	case addr == 0xFF45:
		return p.lyc
	case addr == 0xFF47:
		return p.bgp
	case addr == 0xFF48:
		return p.obp0
	case addr == 0xFF49:
		return p.obp1
	case addr == 0xFF4A:
		return p.wy
	case addr == 0xFF4B:
		return p.wx
	default:
		return 0xFF
	}
}

// CPUWrite handles writes to VRAM, OAM, and PPU IO regs. Others are ignored here.
func (p *PPU) CPUWrite(addr uint16, value byte) {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		if (p.stat & 0x03) == 3 {
			return
		}
		p.vram[addr-0x8000] = value
	case addr >= 0xFE00 && addr <= 0xFE9F:
		m := p.stat & 0x03
		if m == 2 || m == 3 {
			return
		}
		p.oam[addr-0xFE00] = value
	case addr == 0xFF40:
		prev := p.lcdc
		p.lcdc = value
		if (p.lcdc&0x80) == 0 && (prev&0x80) != 0 {
			p.ly = 0
			p.dot = 0
			p.setMode(0)
			p.updateLYC()
		} else if (p.lcdc&0x80) != 0 && (prev&0x80) == 0 {
			p.ly = 0
			p.dot = 0
			p.winLineCounter = 0
			p.setMode(2)
			p.updateLYC()
		}
	case addr == 0xFF41:
		p.stat = (p.stat & 0x07) | (value & 0x78)
	case addr == 0xFF42:
		p.scy = value
	case addr == 0xFF43:
		p.scx = value
	case addr == 0xFF44:
		p.ly = 0
		p.dot = 0
		p.updateLYC()
		if (p.lcdc & 0x80) != 0 {
			p.setMode(2)
		}
	case addr == 0xFF45:
		p.lyc = value
		p.updateLYC()
	case addr == 0xFF47:
		p.bgp = value
	case addr == 0xFF48:
		p.obp0 = value
	case addr == 0xFF49:
		p.obp1 = value
	case addr == 0xFF4A:
		p.wy = value
	case addr == 0xFF4B:
		p.wx = value
	}
}

// DMAWriteOAM stores a byte directly into OAM, bypassing the mode-2/3 CPU
// lock. The DMA engine is a second bus master and is not blocked by it.
func (p *PPU) DMAWriteOAM(i int, v byte) {
	if i >= 0 && i < len(p.oam) {
		p.oam[i] = v
	}
}

// FrameCount returns how many times LY has wrapped from 153 back to 0.
func (p *PPU) FrameCount() int { return p.frameDone }

// Framebuffer returns the current 160x144 frame, one 0x00RRGGBB word per pixel.
func (p *PPU) Framebuffer() *[160 * 144]uint32 { return &p.fb }

// Tick advances PPU state by the given number of dots (T-cycles).
func (p *PPU) Tick(cycles int) {
	if cycles <= 0 {
		return
	}
	for i := 0; i < cycles; i++ {
		if (p.lcdc & 0x80) == 0 { // LCD off
			continue
		}
		p.dot++

		var mode byte
		if p.ly >= 144 {
			mode = 1
		} else {
			switch {
			case p.dot < 80:
				mode = 2
			case p.dot < 80+172:
				mode = 3
			default:
				mode = 0
			}
		}
		prevMode := p.stat & 0x03
		p.setMode(mode)
		if prevMode != 3 && mode == 3 && p.ly < 144 {
			p.captureLineRegs(int(p.ly))
		}
		if prevMode == 3 && mode == 0 && p.ly < 144 {
			p.renderScanline(int(p.ly))
		}

		if p.dot >= 456 {
			p.dot = 0
			p.ly++
			if p.ly == 144 {
				if p.req != nil {
					p.req(0) // VBlank IF
				}
				if (p.stat & (1 << 4)) != 0 {
					if p.req != nil {
						p.req(1)
					}
				}
			} else if p.ly > 153 {
				p.ly = 0
				p.winLineCounter = 0
				p.frameDone++
			}
			p.updateLYC()
			if p.ly >= 144 {
				p.setMode(1)
			} else {
				p.setMode(2)
			}
		}
	}
}

func (p *PPU) setMode(mode byte) {
	prev := p.stat & 0x03
	if prev == mode {
		return
	}
	p.stat = (p.stat &^ 0x03) | (mode & 0x03)
	switch mode {
	case 0: // HBlank
		if (p.stat & (1 << 3)) != 0 {
			if p.req != nil {
				p.req(1)
			}
		}
	case 2: // OAM
		if (p.stat & (1 << 5)) != 0 {
			if p.req != nil {
				p.req(1)
			}
		}
	}
}

func (p *PPU) updateLYC() {
	if p.ly == p.lyc {
		p.stat |= 1 << 2
		if (p.stat & (1 << 6)) != 0 {
			if p.req != nil {
				p.req(1)
			}
		}
	} else {
		p.stat &^= 1 << 2
	}
}

// captureLineRegs freezes the registers that drive rendering for ly and
// advances the window line counter if the window is visible on this line.
func (p *PPU) captureLineRegs(ly int) {
	lr := LineRegs{SCX: p.scx, SCY: p.scy, WX: p.wx, WY: p.wy, LCDC: p.lcdc}
	winOn := p.lcdc&0x20 != 0
	wxStart := int(p.wx) - 7
	if winOn && int(p.wy) <= ly && wxStart < 160 {
		lr.WindowVisible = true
		lr.WinLine = p.winLineCounter
		p.winLineCounter++
	}
	p.lineRegs[ly] = lr
}

// LineRegs returns the snapshot captured for scanline ly.
func (p *PPU) LineRegs(ly int) LineRegs { return p.lineRegs[ly] }

// vramAccess lets the scanline helpers read VRAM without going through the
// CPU-facing mode lock (the renderer runs as the PPU's own bus master).
type vramAccess struct{ p *PPU }

func (v vramAccess) Read(addr uint16) byte {
	if addr >= 0x8000 && addr <= 0x9FFF {
		return v.p.vram[addr-0x8000]
	}
	return 0xFF
}

func (p *PPU) renderScanline(ly int) {
	lr := p.lineRegs[ly]
	mem := vramAccess{p}

	bgMapBase := uint16(0x9800)
	if lr.LCDC&0x08 != 0 {
		bgMapBase = 0x9C00
	}
	tileData8000 := lr.LCDC&0x10 != 0

	var bg [160]byte
	bgOn := lr.LCDC&0x01 != 0
	if bgOn {
		bg = RenderBackgroundScanline(mem, bgMapBase, tileData8000, lr.SCX, lr.SCY, byte(ly))
	}

	if lr.WindowVisible {
		winMapBase := uint16(0x9800)
		if lr.LCDC&0x40 != 0 {
			winMapBase = 0x9C00
		}
		win := RenderWindowScanline(mem, winMapBase, tileData8000, int(lr.WX)-7, byte(lr.WinLine))
		start := int(lr.WX) - 7
		if start < 0 {
			start = 0
		}
		for x := start; x < 160; x++ {
			bg[x] = win[x]
		}
	}

	var row [160]uint32
	for x := 0; x < 160; x++ {
		row[x] = shades[applyPalette(bg[x], p.bgp)]
	}

	if lr.LCDC&0x02 != 0 { // sprites enabled
		sprites := scanOAM(&p.oam, ly, lr.LCDC&0x04 != 0)
		spr := ComposeSpriteLine(mem, sprites, ly, bg, lr.LCDC&0x04 != 0)
		for x := 0; x < 160; x++ {
			ci := spr[x] & 0x03
			if ci == 0 {
				continue
			}
			pal := p.obp0
			if spr[x]&0x04 != 0 {
				pal = p.obp1
			}
			row[x] = shades[applyPalette(ci, pal)]
		}
	}

	copy(p.fb[ly*160:ly*160+160], row[:])
}

func applyPalette(ci, pal byte) byte {
	return (pal >> (ci * 2)) & 0x03
}

// Expose palettes and scroll for renderer convenience (optional helpers)
func (p *PPU) BGP() byte  { return p.bgp }
func (p *PPU) OBP0() byte { return p.obp0 }
func (p *PPU) OBP1() byte { return p.obp1 }
func (p *PPU) LCDC() byte { return p.lcdc }
func (p *PPU) SCY() byte  { return p.scy }
func (p *PPU) SCX() byte  { return p.scx }
func (p *PPU) WY() byte   { return p.wy }
func (p *PPU) WX() byte   { return p.wx }
