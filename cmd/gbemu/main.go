// Command gbemu is a minimal demo presenter: it loads a ROM image, drives
// the emu.Machine one frame at a time, and either displays it in an ebiten
// window or dumps a checksum/PNG in headless mode. Windowing, keyboard
// polling, and ROM file I/O live only here; the core package never touches
// any of them.
package main

import (
	"flag"
	"fmt"
	"hash/crc32"
	"image"
	"image/png"
	"log"
	"os"
	"strings"
	"time"

	"github.com/retrosilicon/dmgcore/internal/cart"
	"github.com/retrosilicon/dmgcore/internal/emu"
	"github.com/retrosilicon/dmgcore/internal/joypad"
	"github.com/hajimehoshi/ebiten/v2"
)

type cliFlags struct {
	ROMPath string
	BootROM string
	Scale   int
	Title   string
	Trace   bool

	Headless bool
	Frames   int
	PNGOut   string
	Expect   string
}

func parseFlags() cliFlags {
	var f cliFlags
	flag.StringVar(&f.ROMPath, "rom", "", "path to ROM (.gb)")
	flag.StringVar(&f.BootROM, "bootrom", "", "optional DMG boot ROM")
	flag.IntVar(&f.Scale, "scale", 3, "window scale")
	flag.StringVar(&f.Title, "title", "gbemu", "window title")
	flag.BoolVar(&f.Trace, "trace", false, "CPU trace flag (stored in emu.Config; no trace is printed)")
	flag.BoolVar(&f.Headless, "headless", false, "run without a window")
	flag.IntVar(&f.Frames, "frames", 300, "frames to run in headless mode")
	flag.StringVar(&f.PNGOut, "outpng", "", "write last framebuffer to PNG at path")
	flag.StringVar(&f.Expect, "expect", "", "assert framebuffer CRC32 (hex)")
	flag.Parse()
	return f
}

func mustRead(path string) []byte {
	if path == "" {
		return nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("read %s: %v", path, err)
	}
	return b
}

// toRGBA expands the PPU's 0x00RRGGBB framebuffer into ebiten's RGBA8888.
func toRGBA(fb *[160 * 144]uint32) []byte {
	out := make([]byte, 160*144*4)
	for i, px := range fb {
		out[i*4+0] = byte(px >> 16)
		out[i*4+1] = byte(px >> 8)
		out[i*4+2] = byte(px)
		out[i*4+3] = 0xFF
	}
	return out
}

func runHeadless(m *emu.Machine, frames int, pngPath, expectCRC string) error {
	if frames <= 0 {
		frames = 1
	}
	start := time.Now()
	for i := 0; i < frames; i++ {
		m.StepFrame()
	}
	dur := time.Since(start)

	pix := toRGBA(m.Framebuffer())
	crc := crc32.ChecksumIEEE(pix)
	fps := float64(frames) / dur.Seconds()
	log.Printf("headless: frames=%d elapsed=%s fps=%.2f fb_crc32=%08x",
		frames, dur.Truncate(time.Millisecond), fps, crc)

	if pngPath != "" {
		img := &image.RGBA{Pix: pix, Stride: 4 * 160, Rect: image.Rect(0, 0, 160, 144)}
		f, err := os.Create(pngPath)
		if err != nil {
			return fmt.Errorf("create %s: %w", pngPath, err)
		}
		defer f.Close()
		if err := png.Encode(f, img); err != nil {
			return fmt.Errorf("encode PNG: %w", err)
		}
		log.Printf("wrote %s", pngPath)
	}

	if expectCRC != "" {
		want := strings.TrimPrefix(strings.ToLower(expectCRC), "0x")
		got := fmt.Sprintf("%08x", crc)
		if got != want {
			return fmt.Errorf("checksum mismatch: got %s, want %s", got, want)
		}
	}
	return nil
}

// game implements ebiten.Game, translating arrow/Z/X/Enter/Shift keys to
// the joypad latch and blitting the PPU framebuffer every Draw.
type game struct {
	m   *emu.Machine
	tex *ebiten.Image
}

func keyPad(k ebiten.Key, btn joypad.Button, m *emu.Machine) {
	if ebiten.IsKeyPressed(k) {
		m.PressKey(btn)
	} else {
		m.ReleaseKey(btn)
	}
}

func (g *game) Update() error {
	keyPad(ebiten.KeyArrowRight, joypad.Right, g.m)
	keyPad(ebiten.KeyArrowLeft, joypad.Left, g.m)
	keyPad(ebiten.KeyArrowUp, joypad.Up, g.m)
	keyPad(ebiten.KeyArrowDown, joypad.Down, g.m)
	keyPad(ebiten.KeyZ, joypad.A, g.m)
	keyPad(ebiten.KeyX, joypad.B, g.m)
	keyPad(ebiten.KeyEnter, joypad.Start, g.m)
	keyPad(ebiten.KeyShiftRight, joypad.Select, g.m)
	g.m.StepFrame()
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	if g.tex == nil {
		g.tex = ebiten.NewImage(160, 144)
	}
	g.tex.WritePixels(toRGBA(g.m.Framebuffer()))
	screen.DrawImage(g.tex, nil)
}

func (g *game) Layout(outsideWidth, outsideHeight int) (int, int) { return 160, 144 }

func main() {
	f := parseFlags()
	var rom []byte
	if f.ROMPath != "" {
		rom = mustRead(f.ROMPath)
	}
	boot := mustRead(f.BootROM)

	if len(rom) >= 0x150 {
		if h, err := cart.ParseHeader(rom); err == nil {
			log.Printf("ROM: %q type=%s banks=%d ram=%dB", h.Title, h.CartTypeStr, h.ROMBanks, h.RAMSizeBytes)
		}
	}

	m := emu.New(emu.Config{Trace: f.Trace})
	if len(rom) > 0 {
		if err := m.LoadROM(rom); err != nil {
			log.Fatalf("load ROM: %v", err)
		}
	}
	if len(boot) >= 0x100 {
		m.SetBootROM(boot)
	}

	if f.Headless {
		if err := runHeadless(m, f.Frames, f.PNGOut, f.Expect); err != nil {
			log.Fatal(err)
		}
		return
	}

	ebiten.SetWindowTitle(f.Title)
	ebiten.SetWindowSize(160*f.Scale, 144*f.Scale)
	if err := ebiten.RunGame(&game{m: m}); err != nil {
		log.Fatal(err)
	}
}
