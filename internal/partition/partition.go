// Package partition splits the atom dimension by type and by compute device.
//
// Atoms are stored grouped contiguously by type. Each type's slice is cut
// into K contiguous blocks, one per device, padded to a common width so every
// device sees the same layout. Neighbor indices are remapped into a padded
// device-major coordinate space shared by all devices; the sentinel index is
// reserved for padding and out-of-range references, so a gather can never
// silently read an atom that does not exist.
package partition

import (
	"errors"
	"fmt"
)

var ErrBadTypeCount = errors.New("partition: type counts must be non-negative with at least one atom")

// Partitioner owns the per-type, per-device index arithmetic. It is immutable
// after construction; a changed type layout means a new simulation.
type Partitioner struct {
	typeCount []int
	starts    []int // global start index of each type group
	devices   int
	perDev    []int // padded per-device slice width, per type
	offsets   []int // local start of each type block within a device
	width     int   // padded atoms per device = sum(perDev)
}

func New(typeCount []int, devices int) (*Partitioner, error) {
	if devices < 1 {
		return nil, fmt.Errorf("partition: devices must be >= 1, got %d", devices)
	}
	total := 0
	for _, c := range typeCount {
		if c < 0 {
			return nil, ErrBadTypeCount
		}
		total += c
	}
	if total == 0 {
		return nil, ErrBadTypeCount
	}
	p := &Partitioner{
		typeCount: append([]int(nil), typeCount...),
		starts:    make([]int, len(typeCount)+1),
		devices:   devices,
		perDev:    make([]int, len(typeCount)),
		offsets:   make([]int, len(typeCount)+1),
	}
	for t, c := range typeCount {
		p.starts[t+1] = p.starts[t] + c
		p.perDev[t] = (c + devices - 1) / devices
		p.offsets[t+1] = p.offsets[t] + p.perDev[t]
	}
	p.width = p.offsets[len(typeCount)]
	return p, nil
}

func (p *Partitioner) Devices() int { return p.devices }

func (p *Partitioner) NumTypes() int { return len(p.typeCount) }

func (p *Partitioner) TypeCount() []int { return append([]int(nil), p.typeCount...) }

func (p *Partitioner) TotalAtoms() int { return p.starts[len(p.typeCount)] }

func (p *Partitioner) DeviceWidth() int { return p.width }

// Sentinel is the out-of-range index used for padding and for invalid
// references. It is the first index past the padded coordinate space.
func (p *Partitioner) Sentinel() int32 {
	return int32(p.width * p.devices)
}

// TypeRange returns the global [lo, hi) index range of type t.
func (p *Partitioner) TypeRange(t int) (int, int) {
	return p.starts[t], p.starts[t+1]
}

// Block returns the global [lo, hi) range of type-t atoms owned by device d.
// The last block of a type may be shorter than the padded width.
func (p *Partitioner) Block(t, d int) (int, int) {
	lo := p.starts[t] + d*p.perDev[t]
	hi := lo + p.perDev[t]
	if hi > p.starts[t+1] {
		hi = p.starts[t+1]
	}
	if lo > hi {
		lo = hi
	}
	return lo, hi
}

// Device returns the device owning the given global atom index.
func (p *Partitioner) Device(global int) int {
	t := p.typeOf(global)
	if p.perDev[t] == 0 {
		return 0
	}
	return (global - p.starts[t]) / p.perDev[t]
}

// Remap converts a global atom index into the padded coordinate space: the
// owning device's page of width DeviceWidth, then the type block offset
// within the page. Out-of-range indices return the sentinel.
func (p *Partitioner) Remap(global int) int32 {
	if global < 0 || global >= p.TotalAtoms() {
		return p.Sentinel()
	}
	t := p.typeOf(global)
	d := p.Device(global)
	within := global - p.starts[t] - d*p.perDev[t]
	return int32(d*p.width + p.offsets[t] + within)
}

// GlobalFromPadded inverts Remap. The second return is false for the
// sentinel and for padding slots with no atom behind them.
func (p *Partitioner) GlobalFromPadded(local int32) (int, bool) {
	if local < 0 || int(local) >= p.width*p.devices {
		return 0, false
	}
	d := int(local) / p.width
	rem := int(local) % p.width
	t := 0
	for t < len(p.typeCount) && rem >= p.offsets[t+1] {
		t++
	}
	within := rem - p.offsets[t]
	global := p.starts[t] + d*p.perDev[t] + within
	if global >= p.starts[t+1] {
		return 0, false
	}
	return global, true
}

func (p *Partitioner) typeOf(global int) int {
	t := 0
	for t < len(p.typeCount)-1 && global >= p.starts[t+1] {
		t++
	}
	return t
}
