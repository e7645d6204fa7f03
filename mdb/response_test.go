package mdb

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderNoPayloadOpcodes(t *testing.T) {
	b := NewBuilder(DefaultReaderConfig(), Identity{})
	assert.Equal(t, []byte{byte(OpJustReset)}, b.JustReset())
	assert.Equal(t, []byte{byte(OpDenyVend)}, b.DenyVend())
	assert.Equal(t, []byte{byte(OpEndSession)}, b.EndSession())
	assert.Equal(t, []byte{byte(OpCancelled)}, b.Cancelled())
}

func TestBuilderReaderConfigData(t *testing.T) {
	cfg := DefaultReaderConfig()
	b := NewBuilder(cfg, Identity{})
	out := b.ReaderConfigData()
	require.Len(t, out, 8)
	assert.Equal(t, byte(OpReaderConfig), out[0])
	assert.Equal(t, cfg.FeatureLevel, out[1])
	assert.Equal(t, cfg.CountryCode, binary.BigEndian.Uint16(out[2:4]))
	assert.Equal(t, cfg.ScaleFactor, out[4])
	assert.Equal(t, cfg.DecimalPlaces, out[5])
}

func TestBuilderBeginSessionUnknownBalance(t *testing.T) {
	b := NewBuilder(DefaultReaderConfig(), Identity{})
	out := b.BeginSession(0, false)
	require.Len(t, out, 3)
	assert.Equal(t, byte(OpBeginSession), out[0])
	assert.Equal(t, UnknownValue, binary.BigEndian.Uint16(out[1:3]))
}

func TestBuilderBeginSessionKnownBalance(t *testing.T) {
	b := NewBuilder(DefaultReaderConfig(), Identity{})
	out := b.BeginSession(1250, true)
	assert.Equal(t, uint16(1250), binary.BigEndian.Uint16(out[1:3]))
}

func TestBuilderBeginSessionAppliesScale(t *testing.T) {
	cfg := DefaultReaderConfig()
	cfg.ScaleFactor = 5
	b := NewBuilder(cfg, Identity{})
	out := b.BeginSession(500, true)
	assert.Equal(t, uint16(100), binary.BigEndian.Uint16(out[1:3]))
}
