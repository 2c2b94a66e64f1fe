package ppu

import "testing"

func TestComposeSpriteLine_TransparentPixelDoesNotObscureLowerPrioritySprite(t *testing.T) {
	mem := mockVRAM{}
	// Tile 0: left half transparent (color 0), right half opaque color 3.
	mem[0x8000] = 0x0F
	mem[0x8001] = 0x0F
	// Tile 1: fully opaque color 1 across the row.
	mem[0x8010] = 0xFF
	mem[0x8011] = 0x00

	front := Sprite{X: 50, Y: 0, Tile: 0, Attr: 0, OAMIndex: 0} // equal X, so lower OAM index is drawn first
	back := Sprite{X: 50, Y: 0, Tile: 1, Attr: 0, OAMIndex: 1}
	var bg [160]byte

	out := ComposeSpriteLine(mem, []Sprite{front, back}, 0, bg, false)
	// Columns 0-3 of the sprite (screen x 50-53) are transparent in front,
	// so back's opaque color 1 should show through.
	for x := 50; x < 54; x++ {
		if out[x]&0x03 != 1 {
			t.Fatalf("x=%d: expected back sprite's color 1 through front's transparent gap, got %d", x, out[x]&0x03)
		}
	}
	// Columns 4-7 are opaque in front (color 3) and must win.
	for x := 54; x < 58; x++ {
		if out[x]&0x03 != 3 {
			t.Fatalf("x=%d: expected front sprite's opaque color 3, got %d", x, out[x]&0x03)
		}
	}
}

func TestComposeSpriteLine_BehindBGBitHidesSpriteUnderNonZeroBackground(t *testing.T) {
	mem := mockVRAM{}
	mem[0x8000] = 0xFF
	mem[0x8001] = 0x00 // fully opaque color 1 row

	s := Sprite{X: 30, Y: 0, Tile: 0, Attr: 1 << 7, OAMIndex: 0}
	var bg [160]byte
	bg[30] = 2 // non-zero background wins when the priority bit is set

	out := ComposeSpriteLine(mem, []Sprite{s}, 0, bg, false)
	if out[30] != 0 {
		t.Fatalf("expected sprite hidden behind non-zero background, got %d", out[30])
	}

	bg[30] = 0
	out = ComposeSpriteLine(mem, []Sprite{s}, 0, bg, false)
	if out[30]&0x03 != 1 {
		t.Fatalf("expected sprite visible over zero background, got %d", out[30]&0x03)
	}
}

func TestComposeSpriteLine_EqualXBreaksTieByLowerOAMIndex(t *testing.T) {
	mem := mockVRAM{}
	mem[0x8000] = 0xFF
	mem[0x8001] = 0x00
	mem[0x8010] = 0x00
	mem[0x8011] = 0xFF // distinct opaque color (2) so the winner is identifiable

	lowIndex := Sprite{X: 40, Y: 0, Tile: 0, Attr: 0, OAMIndex: 1}
	highIndex := Sprite{X: 40, Y: 0, Tile: 1, Attr: 0, OAMIndex: 9}
	var bg [160]byte

	out := ComposeSpriteLine(mem, []Sprite{highIndex, lowIndex}, 0, bg, false)
	if out[40]&0x03 != 1 {
		t.Fatalf("expected lower OAM index sprite (color 1) to win the tie, got %d", out[40]&0x03)
	}
}

func TestComposeSpriteLine_SmallerXWinsOverLargerXRegardlessOfOAMOrder(t *testing.T) {
	mem := mockVRAM{}
	mem[0x8000] = 0xFF
	mem[0x8001] = 0x00
	mem[0x8010] = 0x00
	mem[0x8011] = 0xFF // distinct opaque color (2) so the winner is identifiable

	leftSprite := Sprite{X: 10, Y: 0, Tile: 0, Attr: 0, OAMIndex: 7}
	rightSprite := Sprite{X: 12, Y: 0, Tile: 1, Attr: 0, OAMIndex: 0}
	var bg [160]byte

	out := ComposeSpriteLine(mem, []Sprite{rightSprite, leftSprite}, 0, bg, false)
	// At x=12, both sprites overlap (leftSprite spans 10-17); leftSprite's
	// smaller X must win despite its higher OAM index.
	if out[12]&0x03 != 1 {
		t.Fatalf("expected smaller-X sprite (color 1) to win at x=12, got %d", out[12]&0x03)
	}
}
