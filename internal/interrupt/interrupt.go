// Package interrupt models the DMG interrupt controller: the IE/IF register
// pair and vector dispatch. It holds no other state (the IME master flag
// lives on the CPU) and is owned by the bus, which is the only component
// allowed to read or write memory-mapped registers.
package interrupt

// Kind enumerates the five interrupt sources in hardware priority order
// (lowest index wins when more than one is pending).
type Kind int

const (
	VBlank Kind = iota
	LCDStat
	Timer
	Serial
	Joypad
)

// vectors holds the fixed jump target for each interrupt kind.
var vectors = [5]uint16{
	VBlank:  0x40,
	LCDStat: 0x48,
	Timer:   0x50,
	Serial:  0x58,
	Joypad:  0x60,
}

// Controller holds IE (0xFFFF) and IF (0xFF0F). Only the low 5 bits of each
// register are meaningful on DMG hardware; reads of IF report the unused top
// three bits as 1, matching real hardware.
type Controller struct {
	ie byte
	iF byte
}

// Request sets the IF bit for kind. Called by the timer, PPU, joypad, and
// serial port when they detect a condition that should raise an interrupt.
func (c *Controller) Request(kind Kind) {
	c.iF |= 1 << uint(kind)
}

// ReadIE returns the raw IE register.
func (c *Controller) ReadIE() byte { return c.ie }

// WriteIE stores the IE register.
func (c *Controller) WriteIE(v byte) { c.ie = v }

// ReadIF returns IF with the unused top bits set, as DMG hardware does.
func (c *Controller) ReadIF() byte { return 0xE0 | (c.iF & 0x1F) }

// WriteIF stores the low 5 bits of IF.
func (c *Controller) WriteIF(v byte) { c.iF = v & 0x1F }

// Pending reports whether any enabled interrupt is currently requested.
func (c *Controller) Pending() bool {
	return (c.ie & c.iF & 0x1F) != 0
}

// Next returns the lowest-priority-index pending-and-enabled interrupt and
// its vector, clearing its IF bit. ok is false if nothing is pending.
func (c *Controller) Next() (kind Kind, vector uint16, ok bool) {
	pending := c.ie & c.iF & 0x1F
	if pending == 0 {
		return 0, 0, false
	}
	for bit := uint(0); bit < 5; bit++ {
		if pending&(1<<bit) != 0 {
			c.iF &^= 1 << bit
			return Kind(bit), vectors[bit], true
		}
	}
	return 0, 0, false
}
