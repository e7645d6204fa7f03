package mdb

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeReset(t *testing.T) {
	d := NewDecoder()
	cmd := d.Decode(Packet{Raw: []byte{0x10}})
	assert.Equal(t, TagReset, cmd.Tag)
	assert.Equal(t, SlotPrimary, cmd.Slot)
}

func TestDecodeSecondarySlot(t *testing.T) {
	d := NewDecoder()
	cmd := d.Decode(Packet{Raw: []byte{0x62}})
	assert.Equal(t, TagPoll, cmd.Tag)
	assert.Equal(t, SlotSecondary, cmd.Slot)
}

func TestDecodeVendRequest(t *testing.T) {
	d := NewDecoder()
	data := make([]byte, 5)
	data[0] = 0x00
	binary.BigEndian.PutUint16(data[1:3], 150)
	binary.BigEndian.PutUint16(data[3:5], 7)
	cmd := d.Decode(Packet{Raw: append([]byte{0x13}, data...)})
	require.Equal(t, TagVendRequest, cmd.Tag)
	require.NotNil(t, cmd.VendRequest)
	assert.Equal(t, Money(150), cmd.VendRequest.ItemPrice)
	require.NotNil(t, cmd.VendRequest.ItemNumber)
	assert.Equal(t, uint16(7), *cmd.VendRequest.ItemNumber)
}

func TestDecodeVendRequestUnknownItem(t *testing.T) {
	d := NewDecoder()
	data := make([]byte, 5)
	binary.BigEndian.PutUint16(data[1:3], 150)
	binary.BigEndian.PutUint16(data[3:5], UnknownValue)
	cmd := d.Decode(Packet{Raw: append([]byte{0x13}, data...)})
	require.NotNil(t, cmd.VendRequest)
	assert.Nil(t, cmd.VendRequest.ItemNumber)
}

func TestDecodeExpansionRequestID(t *testing.T) {
	d := NewDecoder()
	data := make([]byte, 30)
	data[0] = 0x00
	copy(data[1:4], "ABC")
	copy(data[4:16], "SERIAL123456")
	copy(data[16:28], "MODEL1234567")
	binary.BigEndian.PutUint16(data[28:30], 0x0102)
	cmd := d.Decode(Packet{Raw: append([]byte{0x17}, data...)})
	require.Equal(t, TagExpansionRequestID, cmd.Tag)
	require.NotNil(t, cmd.ExpansionRequestID)
	assert.Equal(t, "ABC", cmd.ExpansionRequestID.Manufacturer)
	assert.Equal(t, "SERIAL123456", cmd.ExpansionRequestID.Serial)
	assert.Equal(t, uint16(0x0102), cmd.ExpansionRequestID.SoftwareVersion)
}

func TestDecodeObservedCoinChanger(t *testing.T) {
	d := NewDecoder()
	cmd := d.Decode(Packet{Raw: []byte{0x08}})
	require.Equal(t, TagPeripheralObserved, cmd.Tag)
	assert.Equal(t, ClassCoinChanger, cmd.Observed.Class)
}

func TestDecodeObservedBillValidator(t *testing.T) {
	d := NewDecoder()
	cmd := d.Decode(Packet{Raw: []byte{0x30}})
	require.Equal(t, TagPeripheralObserved, cmd.Tag)
	assert.Equal(t, ClassBillValidator, cmd.Observed.Class)
}

func TestDecodeTruncatedPayloadIsUnknown(t *testing.T) {
	d := NewDecoder()
	cmd := d.Decode(Packet{Raw: []byte{0x13, 0x00, 0x01}}) // VEND_REQUEST needs 5 data bytes
	assert.Equal(t, TagUnknown, cmd.Tag)
	require.NotNil(t, cmd.Unknown)
	assert.Equal(t, "130001", cmd.Unknown.Hex)
}

func TestDecodeACKRETNAK(t *testing.T) {
	d := NewDecoder()
	assert.Equal(t, TagACK, d.Decode(Packet{Raw: []byte{0x00}}).Tag)
	assert.Equal(t, TagRET, d.Decode(Packet{Raw: []byte{0xAA}}).Tag)
	assert.Equal(t, TagNAK, d.Decode(Packet{Raw: []byte{0xFF}}).Tag)
}

func TestBuilderApproveVendRoundTripsThroughMoneyFromWire(t *testing.T) {
	b := NewBuilder(DefaultReaderConfig(), Identity{Manufacturer: "VBS", Model: "X1"})
	wire := b.ApproveVend(275)
	assert.Equal(t, byte(OpApproveVend), wire[0])
	amount := binary.BigEndian.Uint16(wire[1:3])
	m, ok := MoneyFromWire(amount, 1)
	require.True(t, ok)
	assert.Equal(t, Money(275), m)
}

func TestBuilderPeripheralIDPadding(t *testing.T) {
	b := NewBuilder(DefaultReaderConfig(), Identity{Manufacturer: "VB", Serial: "1", Model: "M", SoftwareVersion: 0x0102})
	out := b.PeripheralID()
	require.Len(t, out, 30)
	assert.Equal(t, byte(OpPeripheralID), out[0])
	assert.Equal(t, "VB ", string(out[1:4]))
	assert.Equal(t, uint16(0x0102), binary.BigEndian.Uint16(out[28:30]))
}
