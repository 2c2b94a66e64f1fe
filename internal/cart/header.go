package cart

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Header layout per Pan Docs' cartridge header, 0x0100-0x014F.
const (
	headerLogoOffset  = 0x0104
	headerTitleOffset = 0x0134
	headerTitleEnd    = 0x0144
	headerEnd         = 0x014F
)

var nintendoLogo = [48]byte{
	0xCE, 0xED, 0x66, 0x66, 0xCC, 0x0D, 0x00, 0x0B, 0x03, 0x73, 0x00, 0x83, 0x00, 0x0C, 0x00, 0x0D,
	0x00, 0x08, 0x11, 0x1F, 0x88, 0x89, 0x00, 0x0E, 0xDC, 0xCC, 0x6E, 0xE6, 0xDD, 0xDD, 0xD9, 0x99,
	0xBB, 0xBB, 0x67, 0x63, 0x6E, 0x0E, 0xEC, 0xCC, 0xDD, 0xDC, 0x99, 0x9F, 0xBB, 0xB9, 0x33, 0x3E,
}

// Header is the decoded contents of a cartridge's 0x0100-0x014F block,
// plus a few derived fields (ROM/RAM byte counts, a human cart-type name)
// callers want without re-running the decode tables themselves.
type Header struct {
	Title          string
	CGBFlag        byte
	NewLicensee    string
	SGBFlag        byte
	CartType       byte
	ROMSizeCode    byte
	RAMSizeCode    byte
	Destination    byte
	OldLicensee    byte
	ROMVersion     byte
	HeaderChecksum byte
	GlobalChecksum uint16
	LogoValid      bool

	ROMSizeBytes int
	ROMBanks     int
	RAMSizeBytes int
	CartTypeStr  string
}

// ParseHeader decodes the cartridge header out of rom. It does not reject a
// mismatched Nintendo logo or a bad header checksum — those are surfaced via
// LogoValid and HeaderChecksumOK so a caller can decide how strict to be;
// the only hard failure is a ROM too short to even hold the header bytes.
func ParseHeader(rom []byte) (*Header, error) {
	if len(rom) < headerEnd+1 {
		return nil, fmt.Errorf("cart: ROM is %d bytes, too small for a %d-byte header", len(rom), headerEnd+1)
	}

	h := &Header{
		Title:          string(bytes.TrimRight(rom[headerTitleOffset:headerTitleEnd], "\x00")),
		CGBFlag:        rom[0x0143],
		NewLicensee:    string(rom[0x0144:0x0146]),
		SGBFlag:        rom[0x0146],
		CartType:       rom[0x0147],
		ROMSizeCode:    rom[0x0148],
		RAMSizeCode:    rom[0x0149],
		Destination:    rom[0x014A],
		OldLicensee:    rom[0x014B],
		ROMVersion:     rom[0x014C],
		HeaderChecksum: rom[0x014D],
		GlobalChecksum: binary.BigEndian.Uint16(rom[0x014E:0x0150]),
		LogoValid:      bytes.Equal(rom[headerLogoOffset:headerLogoOffset+48], nintendoLogo[:]),
	}

	h.ROMSizeBytes, h.ROMBanks = romSizeTable.decode(h.ROMSizeCode)
	h.RAMSizeBytes, _ = ramSizeTable.decode(h.RAMSizeCode)
	h.CartTypeStr = cartTypeName(h.CartType)

	return h, nil
}

// HeaderChecksumOK recomputes the header checksum (Pan Docs' running
// subtract-and-borrow over 0x0134-0x014C) and compares it against the byte
// stored at 0x014D.
func HeaderChecksumOK(rom []byte) bool {
	if len(rom) < 0x014E {
		return false
	}
	var sum byte
	for addr := headerTitleOffset; addr <= 0x014C; addr++ {
		sum = sum - rom[addr] - 1
	}
	return sum == rom[0x014D]
}

type sizeEntry struct {
	code  byte
	bytes int
	banks int // 0 for the RAM table, which has no bank concept
}

type sizeTable []sizeEntry

func (t sizeTable) decode(code byte) (size, banks int) {
	for _, e := range t {
		if e.code == code {
			return e.bytes, e.banks
		}
	}
	return 0, 0
}

var romSizeTable = sizeTable{
	{0x00, 32 * 1024, 2},
	{0x01, 64 * 1024, 4},
	{0x02, 128 * 1024, 8},
	{0x03, 256 * 1024, 16},
	{0x04, 512 * 1024, 32},
	{0x05, 1024 * 1024, 64},
	{0x06, 2 * 1024 * 1024, 128},
	{0x07, 4 * 1024 * 1024, 256},
	{0x08, 8 * 1024 * 1024, 512},
	{0x52, 1152 * 1024, 72},
	{0x53, 1280 * 1024, 80},
	{0x54, 1536 * 1024, 96},
}

var ramSizeTable = sizeTable{
	{0x00, 0, 0},
	{0x02, 8 * 1024, 0},
	{0x03, 32 * 1024, 0},
	{0x04, 128 * 1024, 0},
	{0x05, 64 * 1024, 0},
}

var cartTypeNames = map[byte]string{
	0x00: "ROM ONLY",
	0x01: "MBC1", 0x02: "MBC1+RAM", 0x03: "MBC1+RAM+BATTERY",
	0x05: "MBC2", 0x06: "MBC2+BATTERY",
	0x0F: "MBC3+TIMER+BATTERY", 0x10: "MBC3+TIMER+RAM+BATTERY",
	0x11: "MBC3", 0x12: "MBC3+RAM", 0x13: "MBC3+RAM+BATTERY",
	0x19: "MBC5", 0x1A: "MBC5+RAM", 0x1B: "MBC5+RAM+BATTERY",
	0x1C: "MBC5+RUMBLE", 0x1D: "MBC5+RUMBLE+RAM", 0x1E: "MBC5+RUMBLE+RAM+BATTERY",
}

func cartTypeName(code byte) string {
	if name, ok := cartTypeNames[code]; ok {
		return name
	}
	return fmt.Sprintf("unknown (0x%02X)", code)
}
