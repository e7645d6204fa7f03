package mdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestMoneyToWire(t *testing.T) {
	assert.Equal(t, uint16(500), Money(500).ToWire(1))
	assert.Equal(t, uint16(50), Money(500).ToWire(10))
	assert.Equal(t, UnknownValue, Money(-1).ToWire(1))
	assert.Equal(t, UnknownValue, Money(1<<20).ToWire(1))
	assert.Equal(t, uint16(500), Money(500).ToWire(0)) // scale<=0 treated as 1
}

func TestMoneyFromWire(t *testing.T) {
	m, ok := MoneyFromWire(500, 1)
	require.True(t, ok)
	assert.Equal(t, Money(500), m)

	m, ok = MoneyFromWire(50, 10)
	require.True(t, ok)
	assert.Equal(t, Money(500), m)

	_, ok = MoneyFromWire(UnknownValue, 1)
	assert.False(t, ok)
}

func TestMoneyWireRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		scale := rapid.IntRange(1, 100).Draw(t, "scale")
		cents := rapid.Int64Range(0, int64(MaxWireValue)).Draw(t, "cents")
		m := Money(cents * int64(scale))

		wire := m.ToWire(scale)
		if wire == UnknownValue {
			return // out of representable range for this scale, not a bug
		}
		back, ok := MoneyFromWire(wire, scale)
		require.True(t, ok)
		assert.Equal(t, m, back)
	})
}
