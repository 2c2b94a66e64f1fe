package ppu

// VRAMReader is read-only VRAM access for scanline rendering. The live PPU
// satisfies it with a thin adapter (vramAccess in ppu.go) that bypasses the
// CPU-facing mode lock, since the renderer is the PPU's own bus master, not
// a locked-out CPU; tests satisfy it with a plain map.
type VRAMReader interface {
	Read(addr uint16) byte
}

// tileDataAddr resolves the first data byte of tile row fineY for tileNum,
// honouring LCDC's addressing mode: unsigned 0x8000-based when tileData8000
// is set, otherwise signed and based at 0x9000.
func tileDataAddr(tileNum byte, tileData8000 bool, fineY byte) uint16 {
	if tileData8000 {
		return 0x8000 + uint16(tileNum)*16 + uint16(fineY)*2
	}
	return 0x9000 + uint16(int8(tileNum))*16 + uint16(fineY)*2
}

// tileRow decodes one 8x1 tile row into 2-bit colour indices, leftmost
// pixel (bit 7) first.
func tileRow(mem VRAMReader, addr uint16) [8]byte {
	lo := mem.Read(addr)
	hi := mem.Read(addr + 1)
	var row [8]byte
	for i := range row {
		bit := 7 - byte(i)
		row[i] = ((hi>>bit)&1)<<1 | ((lo >> bit) & 1)
	}
	return row
}

// RenderBackgroundScanline resolves the 160 background colour indices for
// scanline ly, scrolled by scx/scy, reading the tile map at mapBase and
// tile data per tileData8000. A tile row is decoded once and reused for the
// 8 screen columns it covers, so mem sees one map lookup per column group
// rather than one per pixel.
func RenderBackgroundScanline(mem VRAMReader, mapBase uint16, tileData8000 bool, scx, scy, ly byte) [160]byte {
	var out [160]byte
	bgY := uint16(ly) + uint16(scy)
	fineY := byte(bgY & 7)
	mapRow := (bgY >> 3) & 31

	var row [8]byte
	loadedCol := -1
	for x := 0; x < 160; x++ {
		bgX := (uint16(x) + uint16(scx)) & 0xFF
		col := int((bgX >> 3) & 31)
		if col != loadedCol {
			tileNum := mem.Read(mapBase + mapRow*32 + uint16(col))
			row = tileRow(mem, tileDataAddr(tileNum, tileData8000, fineY))
			loadedCol = col
		}
		out[x] = row[bgX&7]
	}
	return out
}

// RenderWindowScanline resolves the window layer's colour indices for the
// screen columns from wxStart (WX-7) through 159, using winLine as the
// window's own vertical line counter (it only advances on lines where the
// window is actually drawn, not every LY). Columns left of wxStart stay 0
// so a caller can blend the result over a background row unconditionally.
func RenderWindowScanline(mem VRAMReader, mapBase uint16, tileData8000 bool, wxStart int, winLine byte) [160]byte {
	var out [160]byte
	if wxStart >= 160 {
		return out
	}
	if wxStart < 0 {
		wxStart = 0
	}
	mapRow := (uint16(winLine) >> 3) & 31
	fineY := winLine & 7

	var row [8]byte
	loadedCol := -1
	for x := wxStart; x < 160; x++ {
		winX := uint16(x - wxStart)
		col := int((winX >> 3) & 31)
		if col != loadedCol {
			tileNum := mem.Read(mapBase + mapRow*32 + uint16(col))
			row = tileRow(mem, tileDataAddr(tileNum, tileData8000, fineY))
			loadedCol = col
		}
		out[x] = row[winX&7]
	}
	return out
}
