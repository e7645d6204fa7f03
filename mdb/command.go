package mdb

import (
	"encoding/binary"
	"strings"
)

// Slot distinguishes the primary and secondary cashless addressing ranges.
// A single Peripheral answers one slot; the other is still recognised on
// the wire (per the data model) but never answered.
type Slot int

const (
	SlotPrimary Slot = iota
	SlotSecondary
)

func (s Slot) String() string {
	if s == SlotSecondary {
		return "secondary"
	}
	return "primary"
}

// PeripheralClass identifies a non-cashless device class whose opcodes are
// recognised on the bus but never answered by this peripheral (§1 Non-goals).
type PeripheralClass int

const (
	ClassCoinChanger PeripheralClass = iota
	ClassBillValidator
)

// Tag identifies the variant of a decoded Command. This is a closed set:
// adding an opcode means adding a Tag and wiring it through the state
// machine, not extending a dictionary at runtime.
type Tag int

const (
	TagACK Tag = iota
	TagRET
	TagNAK
	TagPeripheralObserved
	TagReset
	TagPoll
	TagSetupConfig
	TagSetupPrices
	TagVendRequest
	TagVendCancel
	TagVendSuccess
	TagVendFailure
	TagVendSessionComplete
	TagCashSale
	TagReaderDisable
	TagReaderEnable
	TagReaderCancel
	TagExpansionRequestID
	TagUnknown
)

func (t Tag) String() string {
	switch t {
	case TagACK:
		return "ACK"
	case TagRET:
		return "RET"
	case TagNAK:
		return "NAK"
	case TagPeripheralObserved:
		return "PERIPHERAL_OBSERVED"
	case TagReset:
		return "RESET"
	case TagPoll:
		return "POLL"
	case TagSetupConfig:
		return "SETUP_CONFIG_DATA"
	case TagSetupPrices:
		return "SETUP_PRICE_DATA"
	case TagVendRequest:
		return "VEND_REQUEST"
	case TagVendCancel:
		return "VEND_CANCEL"
	case TagVendSuccess:
		return "VEND_SUCCESS"
	case TagVendFailure:
		return "VEND_FAILURE"
	case TagVendSessionComplete:
		return "VEND_SESSION_COMPLETE"
	case TagCashSale:
		return "CASH_SALE"
	case TagReaderDisable:
		return "READER_DISABLE"
	case TagReaderEnable:
		return "READER_ENABLE"
	case TagReaderCancel:
		return "READER_CANCEL"
	case TagExpansionRequestID:
		return "EXPANSION_REQUEST_ID"
	case TagUnknown:
		return "UNKNOWN"
	default:
		return "UNKNOWN"
	}
}

// SetupConfigData is the payload of SETUP_CONFIG_DATA.
type SetupConfigData struct {
	FeatureLevel   byte
	DisplayColumns byte
	DisplayRows    byte
	DisplayType    byte
}

// SetupPriceData is the payload of SETUP_PRICE_DATA.
type SetupPriceData struct {
	MaxPrice Money
	MinPrice Money
}

// VendRequestData is the payload of VEND_REQUEST.
type VendRequestData struct {
	ItemPrice  Money
	ItemNumber *uint16
}

// VendSuccessData is the payload of VEND_SUCCESS.
type VendSuccessData struct {
	ItemNumber *uint16
}

// CashSaleData is the payload of CASH_SALE (secondary-address opcode 1305;
// recognised and surfaced even though no response is owed for it).
type CashSaleData struct {
	ItemPrice  Money
	ItemNumber *uint16
}

// ExpansionRequestIDData is the payload of EXPANSION_REQUEST_ID, the VMC's
// self-identification. The peripheral never validates these fields; it
// surfaces them and answers with its own configured identity.
type ExpansionRequestIDData struct {
	Manufacturer    string
	Serial          string
	Model           string
	SoftwareVersion uint16
}

// PeripheralObservedData tags a recognised-but-unanswered coin-changer or
// bill-validator opcode.
type PeripheralObservedData struct {
	Address byte
	Class   PeripheralClass
}

// UnknownData preserves the raw hex of an opcode the decoder could not
// classify.
type UnknownData struct {
	Hex string
}

// Command is the decoded form of one Packet: a closed tag plus whichever
// payload pointer matches that tag (all others nil).
type Command struct {
	Tag  Tag
	Slot Slot

	SetupConfig        *SetupConfigData
	SetupPrices        *SetupPriceData
	VendRequest        *VendRequestData
	VendSuccess        *VendSuccessData
	CashSale           *CashSaleData
	ExpansionRequestID *ExpansionRequestIDData
	Observed           *PeripheralObservedData
	Unknown            *UnknownData
}

// Decoder turns framed Packets into typed Commands. Scale is the
// peripheral's declared scaling factor (READER_CONFIG_DATA's scale_factor),
// needed to interpret incoming Money fields the same way outgoing ones are
// encoded.
type Decoder struct {
	Scale int
}

// NewDecoder returns a Decoder with scale factor 1 (no scaling).
func NewDecoder() *Decoder {
	return &Decoder{Scale: 1}
}

func hexUpper(b []byte) string {
	const digits = "0123456789ABCDEF"
	out := make([]byte, 0, len(b)*2)
	for _, x := range b {
		out = append(out, digits[x>>4], digits[x&0xF])
	}
	return string(out)
}

func (d *Decoder) unknown(pkt Packet) Command {
	return Command{Tag: TagUnknown, Unknown: &UnknownData{Hex: hexUpper(pkt.Raw)}}
}

func (d *Decoder) money(wire uint16) Money {
	m, ok := MoneyFromWire(wire, d.Scale)
	if !ok {
		return Money(-1)
	}
	return m
}

func (d *Decoder) optionalItem(wire uint16) *uint16 {
	if wire == UnknownValue {
		return nil
	}
	v := wire
	return &v
}

// Decode maps an address byte + payload to a typed Command per the
// address-command table. Unknown opcodes are tagged Unknown with the raw
// hex preserved; Decode never fails the stream.
func (d *Decoder) Decode(pkt Packet) Command {
	if len(pkt.Raw) == 0 {
		return Command{Tag: TagUnknown, Unknown: &UnknownData{Hex: ""}}
	}
	addr := pkt.Raw[0]

	switch addr {
	case 0x00:
		return Command{Tag: TagACK}
	case 0xAA:
		return Command{Tag: TagRET}
	case 0xFF:
		return Command{Tag: TagNAK}
	case 0x08, 0x0B:
		return Command{Tag: TagPeripheralObserved, Observed: &PeripheralObservedData{Address: addr, Class: ClassCoinChanger}}
	case 0x30, 0x33:
		return Command{Tag: TagPeripheralObserved, Observed: &PeripheralObservedData{Address: addr, Class: ClassBillValidator}}
	}

	var slot Slot
	var base byte
	switch {
	case addr >= 0x10 && addr <= 0x17:
		slot, base = SlotPrimary, 0x10
	case addr >= 0x60 && addr <= 0x67:
		slot, base = SlotSecondary, 0x60
	default:
		return d.unknown(pkt)
	}

	mode := addr - base
	data := pkt.Raw[1:]

	switch mode {
	case 0x00: // RESET
		return Command{Tag: TagReset, Slot: slot}

	case 0x01: // SETUP
		if len(data) < 1 {
			return d.unknown(pkt)
		}
		switch data[0] {
		case 0x00: // SETUP_CONFIG_DATA: 4 bytes
			if len(data) < 5 {
				return d.unknown(pkt)
			}
			return Command{Tag: TagSetupConfig, Slot: slot, SetupConfig: &SetupConfigData{
				FeatureLevel:   data[1],
				DisplayColumns: data[2],
				DisplayRows:    data[3],
				DisplayType:    data[4],
			}}
		case 0x01: // SETUP_PRICE_DATA: 4 bytes (max, min)
			if len(data) < 5 {
				return d.unknown(pkt)
			}
			maxP := binary.BigEndian.Uint16(data[1:3])
			minP := binary.BigEndian.Uint16(data[3:5])
			return Command{Tag: TagSetupPrices, Slot: slot, SetupPrices: &SetupPriceData{
				MaxPrice: d.money(maxP),
				MinPrice: d.money(minP),
			}}
		default:
			return d.unknown(pkt)
		}

	case 0x02: // POLL
		return Command{Tag: TagPoll, Slot: slot}

	case 0x03: // VEND
		if len(data) < 1 {
			return d.unknown(pkt)
		}
		switch data[0] {
		case 0x00: // VEND_REQUEST: 4 bytes (price, item)
			if len(data) < 5 {
				return d.unknown(pkt)
			}
			price := binary.BigEndian.Uint16(data[1:3])
			item := binary.BigEndian.Uint16(data[3:5])
			return Command{Tag: TagVendRequest, Slot: slot, VendRequest: &VendRequestData{
				ItemPrice:  d.money(price),
				ItemNumber: d.optionalItem(item),
			}}
		case 0x01: // VEND_CANCEL
			return Command{Tag: TagVendCancel, Slot: slot}
		case 0x02: // VEND_SUCCESS: 2 bytes (item)
			if len(data) < 3 {
				return d.unknown(pkt)
			}
			item := binary.BigEndian.Uint16(data[1:3])
			return Command{Tag: TagVendSuccess, Slot: slot, VendSuccess: &VendSuccessData{
				ItemNumber: d.optionalItem(item),
			}}
		case 0x03: // VEND_FAILURE
			return Command{Tag: TagVendFailure, Slot: slot}
		case 0x04: // VEND_SESSION_COMPLETE
			return Command{Tag: TagVendSessionComplete, Slot: slot}
		case 0x05: // CASH_SALE: 4 bytes (price, item)
			if len(data) < 5 {
				return d.unknown(pkt)
			}
			price := binary.BigEndian.Uint16(data[1:3])
			item := binary.BigEndian.Uint16(data[3:5])
			return Command{Tag: TagCashSale, Slot: slot, CashSale: &CashSaleData{
				ItemPrice:  d.money(price),
				ItemNumber: d.optionalItem(item),
			}}
		default:
			return d.unknown(pkt)
		}

	case 0x04: // READER
		if len(data) < 1 {
			return d.unknown(pkt)
		}
		switch data[0] {
		case 0x00:
			return Command{Tag: TagReaderDisable, Slot: slot}
		case 0x01:
			return Command{Tag: TagReaderEnable, Slot: slot}
		case 0x02:
			return Command{Tag: TagReaderCancel, Slot: slot}
		default:
			return d.unknown(pkt)
		}

	case 0x07: // EXPANSION
		if len(data) < 1 {
			return d.unknown(pkt)
		}
		switch data[0] {
		case 0x00: // EXPANSION_REQUEST_ID: 29 bytes
			if len(data) < 30 {
				return d.unknown(pkt)
			}
			manufacturer := strings.TrimRight(string(data[1:4]), " ")
			serial := strings.TrimRight(string(data[4:16]), " ")
			model := strings.TrimRight(string(data[16:28]), " ")
			version := binary.BigEndian.Uint16(data[28:30])
			return Command{Tag: TagExpansionRequestID, Slot: slot, ExpansionRequestID: &ExpansionRequestIDData{
				Manufacturer:    manufacturer,
				Serial:          serial,
				Model:           model,
				SoftwareVersion: version,
			}}
		default:
			return d.unknown(pkt)
		}

	default:
		return d.unknown(pkt)
	}
}
