package ppu

import "sort"

// Sprite is a decoded OAM entry ready for scanline compositing. X and Y are
// already converted to screen space (OAM's stored y-16, x-8).
type Sprite struct {
	X, Y     int
	Tile     byte
	Attr     byte
	OAMIndex int
}

// ComposeSpriteLine renders the sprite layer for one scanline. sprites must
// already be the (at most 10) entries whose vertical extent contains ly;
// bgci is the background/window color-index row already computed for the
// same line, consulted to resolve attr bit 7 (behind-background priority).
//
// The low two bits of each returned byte are the sprite's 2-bit color index
// (0 means no opaque sprite pixel at that column); bit 2 carries which OBP
// register won the pixel, so callers can apply the correct palette without
// re-deriving priority.
func ComposeSpriteLine(mem VRAMReader, sprites []Sprite, ly int, bgci [160]byte, is8x16 bool) [160]byte {
	var out [160]byte
	height := 8
	if is8x16 {
		height = 16
	}

	ordered := make([]Sprite, len(sprites))
	copy(ordered, sprites)
	// Smaller X wins; equal X breaks by lower OAM index, matching Pan Docs'
	// description of DMG (non-CGB) sprite priority.
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].X != ordered[j].X {
			return ordered[i].X < ordered[j].X
		}
		return ordered[i].OAMIndex < ordered[j].OAMIndex
	})

	for x := 0; x < 160; x++ {
		for _, s := range ordered {
			if x < s.X || x >= s.X+8 {
				continue
			}
			row := ly - s.Y
			if s.Attr&(1<<6) != 0 { // Y flip
				row = height - 1 - row
			}
			tile := s.Tile
			if is8x16 {
				tile &^= 1
				if row >= 8 {
					tile |= 1
					row -= 8
				}
			}
			col := x - s.X
			if s.Attr&(1<<5) != 0 { // X flip
				col = 7 - col
			}
			base := 0x8000 + uint16(tile)*16 + uint16(row)*2
			lo := mem.Read(base)
			hi := mem.Read(base + 1)
			bit := 7 - byte(col)
			ci := ((hi>>bit)&1)<<1 | ((lo >> bit) & 1)
			if ci == 0 {
				continue // transparent: let a lower-priority sprite show through
			}
			if s.Attr&(1<<7) != 0 && bgci[x] != 0 {
				break // behind non-zero background: background wins this pixel
			}
			v := ci
			if s.Attr&(1<<4) != 0 {
				v |= 1 << 2
			}
			out[x] = v
			break
		}
	}
	return out
}

// scanOAM returns up to 10 sprites whose vertical extent contains ly, in
// OAM order (hardware scans OAM low-to-high and stops at the 10th hit).
func scanOAM(oam *[0xA0]byte, ly int, is8x16 bool) []Sprite {
	height := 8
	if is8x16 {
		height = 16
	}
	var out []Sprite
	for i := 0; i < 40 && len(out) < 10; i++ {
		base := i * 4
		y := int(oam[base]) - 16
		if ly < y || ly >= y+height {
			continue
		}
		out = append(out, Sprite{
			X:        int(oam[base+1]) - 8,
			Y:        y,
			Tile:     oam[base+2],
			Attr:     oam[base+3],
			OAMIndex: i,
		})
	}
	return out
}
