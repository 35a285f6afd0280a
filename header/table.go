package header

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Table renders the given slots as a table with columns of number, role, capability and BCM line.
func Table(slots []Slot) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Pin", "Role", "Capability", "BCM"})
	for _, s := range slots {
		bcm := ""
		if s.BCM >= 0 {
			bcm = fmt.Sprintf("GPIO%d", s.BCM)
		}
		capability := ""
		if s.IsConfigurable() {
			capability = s.Capability.String()
		}
		t.AppendRow(table.Row{s.Number, s.Role.String(), capability, bcm})
	}
	return t.Render()
}

// String prints a single slot, e.g. "pin 19 (gpio, spi-mosi)".
func (s Slot) String() string {
	if s.IsConfigurable() {
		return fmt.Sprintf("pin %d (%s, %s)", s.Number, s.Role, s.Capability)
	}
	return fmt.Sprintf("pin %d (%s)", s.Number, s.Role)
}
