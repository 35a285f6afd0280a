// Package header describes the 40 physical slots of a Raspberry Pi compatible GPIO header.
package header

import "github.com/samber/lo"

// Role is the electrical role a slot plays on the header.
type Role int

// The roles a slot can have. Only GeneralPurpose slots can be configured.
const (
	Unknown Role = iota
	Ground
	ThreeVolt
	FiveVolt
	GeneralPurpose
)

func (r Role) String() string {
	switch r {
	case Ground:
		return "ground"
	case ThreeVolt:
		return "3v3"
	case FiveVolt:
		return "5v"
	case GeneralPurpose:
		return "gpio"
	case Unknown:
	}
	return "unknown"
}

// Capability is the alternate function a general purpose slot offers.
type Capability int

// Slot capabilities. Standard means no alternate function.
const (
	Standard Capability = iota
	SerialData
	SerialClock
	ClockOut
	UartTx
	UartRx
	PcmClock
	Mosi
	Miso
	Sclk
	ChipEnable0
	ChipEnable1
	BoardIDData
	BoardIDClock
	HardwarePWM
	PcmFrameSync
	PcmDataIn
	PcmDataOut
)

var capabilityNames = map[Capability]string{
	Standard:     "standard",
	SerialData:   "i2c-sda",
	SerialClock:  "i2c-scl",
	ClockOut:     "gpclk0",
	UartTx:       "uart-tx",
	UartRx:       "uart-rx",
	PcmClock:     "pcm-clk",
	Mosi:         "spi-mosi",
	Miso:         "spi-miso",
	Sclk:         "spi-sclk",
	ChipEnable0:  "spi-ce0",
	ChipEnable1:  "spi-ce1",
	BoardIDData:  "id-sd",
	BoardIDClock: "id-sc",
	HardwarePWM:  "hw-pwm",
	PcmFrameSync: "pcm-fs",
	PcmDataIn:    "pcm-din",
	PcmDataOut:   "pcm-dout",
}

func (c Capability) String() string {
	if name, ok := capabilityNames[c]; ok {
		return name
	}
	return "standard"
}

// A Slot is one numbered physical position on the header. Slots are values and never change.
type Slot struct {
	Number     int
	Role       Role
	Capability Capability
	// BCM is the Broadcom line offset of a general purpose slot, or -1.
	BCM int
}

// Blank is returned for lookups of slot numbers that do not exist.
var Blank = Slot{Number: -1, Role: Unknown, Capability: Standard, BCM: -1}

// NumSlots is the number of physical slots on the header.
const NumSlots = 40

func power(number int, role Role) Slot {
	return Slot{Number: number, Role: role, Capability: Standard, BCM: -1}
}

func gpio(number, bcm int, capability Capability) Slot {
	return Slot{Number: number, Role: GeneralPurpose, Capability: capability, BCM: bcm}
}

// slots is indexed by slot number; index 0 is unused.
var slots = [NumSlots + 1]Slot{
	Blank,
	power(1, ThreeVolt), power(2, FiveVolt),
	gpio(3, 2, SerialData), power(4, FiveVolt),
	gpio(5, 3, SerialClock), power(6, Ground),
	gpio(7, 4, ClockOut), gpio(8, 14, UartTx),
	power(9, Ground), gpio(10, 15, UartRx),
	gpio(11, 17, Standard), gpio(12, 18, PcmClock),
	gpio(13, 27, Standard), power(14, Ground),
	gpio(15, 22, Standard), gpio(16, 23, Standard),
	power(17, ThreeVolt), gpio(18, 24, Standard),
	gpio(19, 10, Mosi), power(20, Ground),
	gpio(21, 9, Miso), gpio(22, 25, Standard),
	gpio(23, 11, Sclk), gpio(24, 8, ChipEnable0),
	power(25, Ground), gpio(26, 7, ChipEnable1),
	gpio(27, 0, BoardIDData), gpio(28, 1, BoardIDClock),
	gpio(29, 5, Standard), power(30, Ground),
	gpio(31, 6, Standard), gpio(32, 12, HardwarePWM),
	gpio(33, 13, HardwarePWM), power(34, Ground),
	gpio(35, 19, PcmFrameSync), gpio(36, 16, Standard),
	gpio(37, 26, Standard), gpio(38, 20, PcmDataIn),
	power(39, Ground), gpio(40, 21, PcmDataOut),
}

// Lookup returns the slot with the given number, or Blank if there is none.
func Lookup(number int) Slot {
	if number < 1 || number > NumSlots {
		return Blank
	}
	return slots[number]
}

// RoleOf returns the role of the slot with the given number.
func RoleOf(number int) Role {
	return Lookup(number).Role
}

// All returns every slot in number order, without Blank.
func All() []Slot {
	out := make([]Slot, NumSlots)
	copy(out, slots[1:])
	return out
}

// Configurable returns the general purpose slots in number order.
func Configurable() []Slot {
	return lo.Filter(All(), func(s Slot, _ int) bool { return s.IsConfigurable() })
}

// WithCapability returns the slots offering the given capability, in number order.
func WithCapability(capability Capability) []Slot {
	return lo.Filter(Configurable(), func(s Slot, _ int) bool { return s.Capability == capability })
}

// ByBCM returns the general purpose slot wired to the given Broadcom line.
func ByBCM(bcm int) (Slot, bool) {
	return lo.Find(Configurable(), func(s Slot) bool { return s.BCM == bcm })
}

// IsConfigurable reports whether the slot can be claimed by a pin.
func (s Slot) IsConfigurable() bool {
	return s.Role == GeneralPurpose
}

// IsStandard reports whether the slot has no alternate function.
func (s Slot) IsStandard() bool {
	return s.Capability == Standard
}

// IsBlank reports whether the slot is the lookup-miss sentinel.
func (s Slot) IsBlank() bool {
	return s.Number == Blank.Number
}
