package partition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidation(t *testing.T) {
	_, err := New([]int{4, 2}, 0)
	assert.Error(t, err)
	_, err = New([]int{-1}, 1)
	assert.Error(t, err)
	_, err = New([]int{0, 0}, 1)
	assert.Error(t, err)
}

func TestSingleDeviceIdentityLayout(t *testing.T) {
	p, err := New([]int{3, 2}, 1)
	require.NoError(t, err)

	assert.Equal(t, 5, p.TotalAtoms())
	assert.Equal(t, 5, p.DeviceWidth())
	assert.Equal(t, int32(5), p.Sentinel())

	for g := 0; g < 5; g++ {
		local := p.Remap(g)
		require.NotEqual(t, p.Sentinel(), local)
		back, ok := p.GlobalFromPadded(local)
		require.True(t, ok)
		assert.Equal(t, g, back)
	}
}

func TestBlocksArePaddedAndContiguous(t *testing.T) {
	// 5 atoms of type 0, 3 of type 1, on 2 devices:
	// type 0 pads to 3 per device, type 1 to 2 per device.
	p, err := New([]int{5, 3}, 2)
	require.NoError(t, err)

	assert.Equal(t, 5, p.DeviceWidth())

	lo, hi := p.Block(0, 0)
	assert.Equal(t, 0, lo)
	assert.Equal(t, 3, hi)
	lo, hi = p.Block(0, 1)
	assert.Equal(t, 3, lo)
	assert.Equal(t, 5, hi)

	lo, hi = p.Block(1, 0)
	assert.Equal(t, 5, lo)
	assert.Equal(t, 7, hi)
	lo, hi = p.Block(1, 1)
	assert.Equal(t, 7, lo)
	assert.Equal(t, 8, hi)
}

func TestRemapEncodesOwningDevice(t *testing.T) {
	p, err := New([]int{5, 3}, 2)
	require.NoError(t, err)

	// Atom 4 (type 0) lives on device 1: its padded coordinate lands on
	// device 1's page and decodes back regardless of who gathers it.
	assert.Equal(t, 1, p.Device(4))
	local := p.Remap(4)
	assert.Equal(t, int32(1*p.DeviceWidth()+1), local)
	back, ok := p.GlobalFromPadded(local)
	require.True(t, ok)
	assert.Equal(t, 4, back)

	// Out-of-range indices are sentinel.
	assert.Equal(t, p.Sentinel(), p.Remap(8))
	assert.Equal(t, p.Sentinel(), p.Remap(-1))
}

func TestRoundTripAllAtoms(t *testing.T) {
	p, err := New([]int{5, 3, 1}, 2)
	require.NoError(t, err)

	for g := 0; g < p.TotalAtoms(); g++ {
		local := p.Remap(g)
		require.NotEqual(t, p.Sentinel(), local, "atom %d", g)
		back, ok := p.GlobalFromPadded(local)
		require.True(t, ok, "atom %d", g)
		assert.Equal(t, g, back)
	}
}

func TestPaddingSlotsHaveNoAtom(t *testing.T) {
	// Type 1 has 3 atoms padded to 2 per device: device 1 holds one atom and
	// one padding slot.
	p, err := New([]int{5, 3}, 2)
	require.NoError(t, err)

	_, ok := p.GlobalFromPadded(int32(2*p.DeviceWidth() - 1))
	assert.False(t, ok)

	_, ok = p.GlobalFromPadded(p.Sentinel())
	assert.False(t, ok)
}
