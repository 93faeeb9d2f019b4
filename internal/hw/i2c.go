package hw

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/nasutils/ledd/internal/state"
)

// Defaults for the on-board LED controller.
const (
	DefaultDevice  = "/dev/i2c-1"
	DefaultAddress = 0x3a
)

// i2c-dev ioctl to select the slave address.
const i2cSlave = 0x0703

// Controller command opcodes.
const (
	opSetRGB        = 0x02
	opSetOnOff      = 0x03
	opSetBlink      = 0x04
	opSetBreath     = 0x05
	opSetBrightness = 0x06
)

// Status block register base; each slot occupies one 11-byte block.
const statusBase = 0x81

// Modification status codes reported by the controller after a write.
const (
	ackPending = 0
	ackOK      = 1
)

// I2C drives the LED controller over the Linux i2c-dev interface.
type I2C struct {
	f    *os.File
	addr int
}

// OpenI2C opens the i2c device node and binds the controller address.
func OpenI2C(device string, addr int) (*I2C, error) {
	f, err := os.OpenFile(device, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open i2c device: %w", err)
	}
	if err := unix.IoctlSetInt(int(f.Fd()), i2cSlave, addr); err != nil {
		f.Close()
		return nil, fmt.Errorf("bind i2c slave 0x%02x: %w", addr, err)
	}
	return &I2C{f: f, addr: addr}, nil
}

// Close releases the device node.
func (c *I2C) Close() error {
	return c.f.Close()
}

// Status reads one slot's 11-byte status block. A block whose checksum
// does not verify marks the slot unavailable.
func (c *I2C) Status(slot int) (state.LED, error) {
	if _, err := c.f.Write([]byte{byte(statusBase + slot)}); err != nil {
		return state.LED{}, fmt.Errorf("select status register: %w", err)
	}
	buf := make([]byte, 11)
	if _, err := c.f.Read(buf); err != nil {
		return state.LED{}, fmt.Errorf("read status block: %w", err)
	}

	if checksum(buf[:9]) != uint16(buf[9])<<8|uint16(buf[10]) {
		return state.LED{Available: false}, nil
	}

	led := state.LED{
		Available:  true,
		Brightness: buf[1],
		R:          buf[2],
		G:          buf[3],
		B:          buf[4],
		TOn:        int(buf[5])<<8 | int(buf[6]),
		TOff:       int(buf[7])<<8 | int(buf[8]),
	}
	switch buf[0] {
	case 0:
		led.Mode = state.ModeOff
	case 1:
		led.Mode = state.ModeOn
	case 2:
		led.Mode = state.ModeBlink
	case 3:
		led.Mode = state.ModeBreath
	default:
		led.Available = false
	}
	return led, nil
}

// SetOnOff turns a slot fully on or off.
func (c *I2C) SetOnOff(slot int, on bool) error {
	var v byte
	if on {
		v = 1
	}
	return c.command(slot, opSetOnOff, [4]byte{v})
}

// SetBrightness sets a slot's brightness level.
func (c *I2C) SetBrightness(slot int, level uint8) error {
	return c.command(slot, opSetBrightness, [4]byte{level})
}

// SetRGB sets a slot's color.
func (c *I2C) SetRGB(slot int, r, g, b uint8) error {
	return c.command(slot, opSetRGB, [4]byte{r, g, b})
}

// SetBlink puts a slot in blink mode with the given cadence.
func (c *I2C) SetBlink(slot int, tOnMs, tOffMs int) error {
	return c.command(slot, opSetBlink, timingParams(tOnMs, tOffMs))
}

// SetBreath puts a slot in breath mode with the given cadence.
func (c *I2C) SetBreath(slot int, tOnMs, tOffMs int) error {
	return c.command(slot, opSetBreath, timingParams(tOnMs, tOffMs))
}

func timingParams(tOnMs, tOffMs int) [4]byte {
	return [4]byte{
		byte(tOnMs >> 8), byte(tOnMs),
		byte(tOffMs >> 8), byte(tOffMs),
	}
}

// command sends one write transaction and waits for the controller to
// acknowledge it via the modification-status byte.
func (c *I2C) command(slot int, op byte, params [4]byte) error {
	msg := []byte{0x00, 0xa0, 0x01, 0x00, 0x00, byte(slot), op,
		params[0], params[1], params[2], params[3]}
	sum := checksum(msg)
	msg = append(msg, byte(sum>>8), byte(sum))

	if _, err := c.f.Write(msg); err != nil {
		return fmt.Errorf("i2c write: %w", err)
	}

	// The controller needs a moment to latch the command before the
	// ack register reads back as anything but pending.
	ack := make([]byte, 1)
	for attempt := 0; attempt < 5; attempt++ {
		time.Sleep(2 * time.Millisecond)
		if _, err := c.f.Write([]byte{0x80}); err != nil {
			return fmt.Errorf("select ack register: %w", err)
		}
		if _, err := c.f.Read(ack); err != nil {
			return fmt.Errorf("read ack: %w", err)
		}
		switch ack[0] {
		case ackPending:
			continue
		case ackOK:
			return nil
		default:
			return fmt.Errorf("controller rejected command 0x%02x for led %d", op, slot)
		}
	}
	return fmt.Errorf("controller did not ack command 0x%02x for led %d", op, slot)
}

func checksum(data []byte) uint16 {
	var sum uint16
	for _, b := range data {
		sum += uint16(b)
	}
	return sum
}
