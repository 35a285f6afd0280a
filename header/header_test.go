package header

import (
	"strings"
	"testing"

	"go.viam.com/test"
)

func TestLookup(t *testing.T) {
	for number := 1; number <= NumSlots; number++ {
		test.That(t, Lookup(number).Number, test.ShouldEqual, number)
	}

	test.That(t, Lookup(0), test.ShouldResemble, Blank)
	test.That(t, Lookup(41), test.ShouldResemble, Blank)
	test.That(t, Lookup(-1).IsBlank(), test.ShouldBeTrue)
	test.That(t, Lookup(-1).Role, test.ShouldEqual, Unknown)

	test.That(t, RoleOf(6), test.ShouldEqual, Ground)
	test.That(t, RoleOf(1), test.ShouldEqual, ThreeVolt)
	test.That(t, RoleOf(2), test.ShouldEqual, FiveVolt)
	test.That(t, RoleOf(19), test.ShouldEqual, GeneralPurpose)
	test.That(t, Lookup(19).Capability, test.ShouldEqual, Mosi)
	test.That(t, Lookup(11).IsStandard(), test.ShouldBeTrue)
}

func TestCatalogShape(t *testing.T) {
	all := All()
	test.That(t, len(all), test.ShouldEqual, NumSlots)

	seen := map[int]struct{}{}
	bcmSeen := map[int]struct{}{}
	for _, s := range all {
		_, dup := seen[s.Number]
		test.That(t, dup, test.ShouldBeFalse)
		seen[s.Number] = struct{}{}

		if s.IsConfigurable() {
			test.That(t, s.BCM, test.ShouldBeGreaterThanOrEqualTo, 0)
			test.That(t, s.BCM, test.ShouldBeLessThanOrEqualTo, 27)
			_, dup := bcmSeen[s.BCM]
			test.That(t, dup, test.ShouldBeFalse)
			bcmSeen[s.BCM] = struct{}{}
		} else {
			test.That(t, s.BCM, test.ShouldEqual, -1)
			test.That(t, s.Capability, test.ShouldEqual, Standard)
		}
	}

	test.That(t, len(Configurable()), test.ShouldEqual, 28)

	// mutating the returned slice must not affect the catalog
	all[18].Role = Ground
	test.That(t, Lookup(19).Role, test.ShouldEqual, GeneralPurpose)
}

func TestCapabilityQueries(t *testing.T) {
	pwm := WithCapability(HardwarePWM)
	test.That(t, len(pwm), test.ShouldEqual, 2)
	test.That(t, pwm[0].Number, test.ShouldEqual, 32)
	test.That(t, pwm[1].Number, test.ShouldEqual, 33)

	s, ok := ByBCM(10)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, s.Number, test.ShouldEqual, 19)

	_, ok = ByBCM(-1)
	test.That(t, ok, test.ShouldBeFalse)
}

func TestTable(t *testing.T) {
	out := Table([]Slot{Lookup(6), Lookup(19)})
	test.That(t, out, test.ShouldContainSubstring, "spi-mosi")
	test.That(t, out, test.ShouldContainSubstring, "GPIO10")
	test.That(t, out, test.ShouldContainSubstring, "ground")
	test.That(t, len(strings.Split(out, "\n")), test.ShouldBeGreaterThan, 3)

	test.That(t, Lookup(19).String(), test.ShouldEqual, "pin 19 (gpio, spi-mosi)")
	test.That(t, Lookup(6).String(), test.ShouldEqual, "pin 6 (ground)")
}
