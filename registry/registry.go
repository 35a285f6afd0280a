// Package registry tracks which header slots are owned by a pin. Every pin constructor is handed
// a *Registry; there is no package level registry.
package registry

import (
	"sync"

	"github.com/pkg/errors"

	"go.viam.com/gpioheader/header"
	"go.viam.com/gpioheader/logging"
)

var (
	// ErrSlotAlreadyClaimed is returned when claiming a slot that another pin owns.
	ErrSlotAlreadyClaimed = errors.New("pin is already in use")
	// ErrSlotNotConfigurable is returned when claiming a slot that is not general purpose.
	ErrSlotNotConfigurable = errors.New("pin is not configurable")
)

// A Registry records the claimed set of header slots. It is safe for concurrent use.
type Registry struct {
	mu sync.Mutex
	// owners is indexed by slot number; nil means available.
	owners [header.NumSlots + 1]*Claim
	logger logging.Logger
}

// New returns an empty registry.
func New(logger logging.Logger) *Registry {
	return &Registry{logger: logger}
}

// A Claim is exclusive ownership of one slot. Release it exactly once when the pin is closed;
// additional releases are no-ops.
type Claim struct {
	reg  *Registry
	slot header.Slot
}

// Slot returns the claimed slot.
func (c *Claim) Slot() header.Slot {
	return c.slot
}

// Release gives the slot back to its registry.
func (c *Claim) Release() {
	if c == nil || c.reg == nil {
		return
	}
	c.reg.Release(c)
}

// IsConfigurable reports whether the slot may ever be claimed. Legality is a static property
// of the catalog entry, so a hand built Slot cannot promote a ground pin.
func IsConfigurable(slot header.Slot) bool {
	return slot.IsConfigurable() && header.Lookup(slot.Number).IsConfigurable()
}

// CheckConfigurable returns ErrSlotNotConfigurable, naming the slot's role, unless the numbered
// slot is general purpose.
func CheckConfigurable(number int) error {
	if IsConfigurable(header.Lookup(number)) {
		return nil
	}
	return errors.Wrapf(ErrSlotNotConfigurable, "pin %d (%s)", number, header.RoleOf(number))
}

// Claim takes ownership of the slot. Legality is checked before availability, so a slot that is
// not general purpose fails with ErrSlotNotConfigurable whatever the claim state. A failed claim
// leaves the registry untouched.
func (r *Registry) Claim(slot header.Slot) (*Claim, error) {
	if !IsConfigurable(slot) {
		return nil, errors.Wrapf(ErrSlotNotConfigurable, "failed to initiate pin %d", slot.Number)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.owners[slot.Number] != nil {
		return nil, errors.Wrapf(ErrSlotAlreadyClaimed, "failed to initiate pin %d", slot.Number)
	}
	claim := &Claim{reg: r, slot: slot}
	r.owners[slot.Number] = claim
	r.logger.Debugw("pin claimed", "pin", slot.Number, "capability", slot.Capability.String())
	return claim, nil
}

// Release removes the claim from the claimed set. Releasing an already released claim, or a
// claim from another registry, does nothing.
func (r *Registry) Release(claim *Claim) {
	if claim == nil || claim.reg != r {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	number := claim.slot.Number
	if r.owners[number] != claim {
		return
	}
	r.owners[number] = nil
	r.logger.Debugw("pin released", "pin", number)
}

// IsAvailable reports whether the slot is on the header and not currently claimed.
func (r *Registry) IsAvailable(slot header.Slot) bool {
	if slot.Number < 1 || slot.Number > header.NumSlots {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.owners[slot.Number] == nil
}

// IsConfigurable reports whether the slot may be claimed at all.
func (r *Registry) IsConfigurable(slot header.Slot) bool {
	return IsConfigurable(slot)
}

// Claimed returns the claimed slot numbers in ascending order.
func (r *Registry) Claimed() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var numbers []int
	for number, owner := range r.owners {
		if owner != nil {
			numbers = append(numbers, number)
		}
	}
	return numbers
}

// Len returns the number of claimed slots.
func (r *Registry) Len() int {
	return len(r.Claimed())
}
