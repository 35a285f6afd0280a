package pins

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
)

// Bounds of the raw value space.
const (
	DefaultMinimum  = 0
	DefaultMaximum  = 1023
	ExtendedMaximum = 4095
)

// ErrRangeOutOfBounds is returned when a configured minimum or maximum cannot be addressed by
// the converter.
var ErrRangeOutOfBounds = errors.New("range out of bounds")

// A Range is a validated [Min, Max] bound. Build one with NewRange.
type Range struct {
	Min      int
	Max      int
	Extended bool
}

// FullScale is the largest value the converter behind the range can address.
func (r Range) FullScale() int {
	if r.Extended {
		return ExtendedMaximum
	}
	return DefaultMaximum
}

func (r Range) String() string {
	return fmt.Sprintf("[%d, %d]", r.Min, r.Max)
}

// ValidateMinimum returns the configured minimum, or 0 when raw is nil.
func ValidateMinimum(raw *int, extended bool) (int, error) {
	if raw == nil {
		return DefaultMinimum, nil
	}
	minimum := *raw
	if minimum < 0 || minimum > ExtendedMaximum {
		return 0, errors.Wrapf(ErrRangeOutOfBounds, "minimum %d must be within [0, %d]", minimum, ExtendedMaximum)
	}
	if !extended && minimum > DefaultMaximum {
		return 0, errors.Wrapf(ErrRangeOutOfBounds, "minimum %d requires extended resolution", minimum)
	}
	return minimum, nil
}

// ValidateMaximum returns the configured maximum, or the full scale of the resolution when raw
// is nil.
func ValidateMaximum(raw *int, minimum int, extended bool) (int, error) {
	if raw == nil {
		if extended {
			return ExtendedMaximum, nil
		}
		return DefaultMaximum, nil
	}
	maximum := *raw
	if maximum < minimum {
		return 0, errors.Wrapf(ErrRangeOutOfBounds, "maximum %d is below minimum %d", maximum, minimum)
	}
	if maximum < 0 || maximum > ExtendedMaximum {
		return 0, errors.Wrapf(ErrRangeOutOfBounds, "maximum %d must be within [0, %d]", maximum, ExtendedMaximum)
	}
	if !extended && maximum > DefaultMaximum {
		return 0, errors.Wrapf(ErrRangeOutOfBounds, "maximum %d requires extended resolution", maximum)
	}
	return maximum, nil
}

// NewRange validates both bounds. A nil bound takes its default.
func NewRange(minimum, maximum *int, extended bool) (Range, error) {
	lo, err := ValidateMinimum(minimum, extended)
	if err != nil {
		return Range{}, err
	}
	hi, err := ValidateMaximum(maximum, lo, extended)
	if err != nil {
		return Range{}, err
	}
	return Range{Min: lo, Max: hi, Extended: extended}, nil
}

// Clamp constrains value into r, inclusive. NaN clamps to the minimum.
func Clamp(value float64, r Range) float64 {
	if math.IsNaN(value) {
		return float64(r.Min)
	}
	return math.Max(float64(r.Min), math.Min(float64(r.Max), value))
}
