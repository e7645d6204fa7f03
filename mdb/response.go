package mdb

import "encoding/binary"

// Op identifies a peripheral-originated response opcode. Responses carry no
// address byte: the VMC identifies the recipient by which device it polled.
type Op byte

const (
	OpJustReset      Op = 0x00
	OpReaderConfig   Op = 0x01
	OpBeginSession   Op = 0x03
	OpApproveVend    Op = 0x05
	OpDenyVend       Op = 0x06
	OpEndSession     Op = 0x07
	OpCancelled      Op = 0x08
	OpPeripheralID   Op = 0x09
)

// Identity is the peripheral's configured self-description, sent verbatim
// in response to EXPANSION_REQUEST_ID.
type Identity struct {
	Manufacturer    string // 3 ASCII chars
	Serial          string // up to 12 ASCII chars, right-padded with spaces
	Model           string // up to 12 ASCII chars, right-padded with spaces
	SoftwareVersion uint16 // 2 bytes, BCD/hex per VMC convention
}

// ReaderConfig is the peripheral's advertised capability set, sent in
// response to SETUP_CONFIG_DATA.
type ReaderConfig struct {
	FeatureLevel               byte
	CountryCode                uint16 // 2 BCD bytes, e.g. 0x0001 for USA
	ScaleFactor                byte
	DecimalPlaces              byte
	MaxResponseTimeSeconds     byte
	MiscOptions                byte
}

// DefaultReaderConfig matches §6's defaults: feature level 1, USA country
// code, scale factor 1, 2 decimal places, 10s max response time, no misc
// options.
func DefaultReaderConfig() ReaderConfig {
	return ReaderConfig{
		FeatureLevel:           1,
		CountryCode:            0x0001,
		ScaleFactor:            1,
		DecimalPlaces:          2,
		MaxResponseTimeSeconds: 10,
		MiscOptions:            0,
	}
}

func padASCII(s string, n int) []byte {
	out := make([]byte, n)
	copy(out, s)
	for i := len(s); i < n; i++ {
		out[i] = ' '
	}
	return out
}

// Builder encodes typed responses to wire form. Each opcode that carries
// data gets its own operation; opcodes with no payload are plain values
// with no arguments, so there is no shared polymorphic "build" to get wrong.
type Builder struct {
	Config ReaderConfig
	ID     Identity
}

// NewBuilder constructs a Builder from the peripheral's configured reader
// capabilities and identity.
func NewBuilder(cfg ReaderConfig, id Identity) *Builder {
	return &Builder{Config: cfg, ID: id}
}

// JustReset encodes the JUST_RESET response (opcode 00, no payload).
func (b *Builder) JustReset() []byte {
	return []byte{byte(OpJustReset)}
}

// ReaderConfigData encodes the READER_CONFIG_DATA response (opcode 01, 7
// bytes: feature level, country high/low, scale factor, decimal places,
// max response time, misc options).
func (b *Builder) ReaderConfigData() []byte {
	c := b.Config
	return []byte{
		byte(OpReaderConfig),
		c.FeatureLevel,
		byte(c.CountryCode >> 8),
		byte(c.CountryCode),
		c.ScaleFactor,
		c.DecimalPlaces,
		c.MaxResponseTimeSeconds,
		c.MiscOptions,
	}
}

// BeginSession encodes the BEGIN_SESSION response (opcode 03, 2 bytes:
// available balance). Pass known=false for "unknown balance".
func (b *Builder) BeginSession(balance Money, known bool) []byte {
	out := make([]byte, 3)
	out[0] = byte(OpBeginSession)
	wire := UnknownValue
	if known {
		wire = balance.ToWire(int(b.Config.ScaleFactor))
	}
	binary.BigEndian.PutUint16(out[1:], wire)
	return out
}

// ApproveVend encodes the APPROVE_VEND response (opcode 05, 2 bytes: amount
// charged).
func (b *Builder) ApproveVend(amount Money) []byte {
	out := make([]byte, 3)
	out[0] = byte(OpApproveVend)
	binary.BigEndian.PutUint16(out[1:], amount.ToWire(int(b.Config.ScaleFactor)))
	return out
}

// DenyVend encodes the DENY_VEND response (opcode 06, no payload).
func (b *Builder) DenyVend() []byte {
	return []byte{byte(OpDenyVend)}
}

// EndSession encodes the END_SESSION response (opcode 07, no payload).
func (b *Builder) EndSession() []byte {
	return []byte{byte(OpEndSession)}
}

// Cancelled encodes the CANCELLED response (opcode 08, no payload).
func (b *Builder) Cancelled() []byte {
	return []byte{byte(OpCancelled)}
}

// PeripheralID encodes the PERIPHERAL_ID response (opcode 09, 29 bytes:
// manufacturer(3) + serial(12) + model(12) + version(2)), using the
// Builder's configured identity.
func (b *Builder) PeripheralID() []byte {
	out := make([]byte, 0, 30)
	out = append(out, byte(OpPeripheralID))
	out = append(out, padASCII(b.ID.Manufacturer, 3)...)
	out = append(out, padASCII(b.ID.Serial, 12)...)
	out = append(out, padASCII(b.ID.Model, 12)...)
	ver := make([]byte, 2)
	binary.BigEndian.PutUint16(ver, b.ID.SoftwareVersion)
	out = append(out, ver...)
	return out
}
