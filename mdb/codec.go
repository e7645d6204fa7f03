package mdb

import "time"

// bytePeriod is the worst-case per-byte transmission time the codec waits
// out after a write before it may safely toggle parity mode: ~1.04ms/byte
// at 9600/8N1 plus margin. There is no portable way to ask the UART "has
// your output buffer drained yet", so the codec sleeps instead. Toggling
// parity before the last data byte has actually left the shift register
// corrupts the frame — this sleep is a hard correctness requirement, not an
// optimisation.
const bytePeriod = 1250 * time.Microsecond

// UART is the minimal device surface the Line Codec needs: byte-level
// read/write with a bounded read timeout, plus the mark/space parity toggle
// that emulates MDB's 9th bit over an 8-bit UART. serial.Port satisfies
// this directly.
type UART interface {
	Write(data []byte) (int, error)
	ReadTimeout(data []byte, timeout time.Duration) (int, error)
	SetParitySpace() error
	SetParityMark() error
}

// Codec is the Line Codec (§4.A): it sends and receives individual MDB
// words with correct 9th-bit semantics and computes/verifies checksums.
type Codec struct {
	uart        UART
	readTimeout time.Duration
	sleep       func(time.Duration)
}

// CodecOption configures a Codec at construction.
type CodecOption func(*Codec)

// WithSleepFunc overrides the post-write drain sleep, for tests that want
// to run the write-drain-toggle sequence without real wall-clock delay.
func WithSleepFunc(f func(time.Duration)) CodecOption {
	return func(c *Codec) { c.sleep = f }
}

// NewCodec wraps a UART with MDB line-level framing. readTimeout bounds
// each inbound byte read (§5/§6 default ≈10ms).
func NewCodec(uart UART, readTimeout time.Duration, opts ...CodecOption) *Codec {
	c := &Codec{uart: uart, readTimeout: readTimeout, sleep: time.Sleep}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ReadByte implements ByteSource for the FrameReader. ok=false with a nil
// error means the read timed out — non-fatal, the caller just loops.
func (c *Codec) ReadByte() (b byte, ok bool, err error) {
	buf := [1]byte{}
	n, err := c.uart.ReadTimeout(buf[:], c.readTimeout)
	if err != nil {
		return 0, false, newError(KindFatal, "uart read failed", err)
	}
	if n == 0 {
		return 0, false, nil
	}
	return buf[0], true, nil
}

// SendAck writes the bare ACK token: a single byte 0x00 with mark parity
// (9th bit = 1), the same wire class as an address byte. It is not a
// checksummed packet.
func (c *Codec) SendAck() error {
	return c.sendToken(0x00)
}

// SendNak writes the bare NAK token (0xFF, mark parity).
func (c *Codec) SendNak() error {
	return c.sendToken(0xFF)
}

// SendRet writes the bare RET token (0xAA, mark parity).
func (c *Codec) SendRet() error {
	return c.sendToken(0xAA)
}

func (c *Codec) sendToken(b byte) error {
	if err := c.uart.SetParityMark(); err != nil {
		return newError(KindFatal, "uart write failed", err)
	}
	if _, err := c.uart.Write([]byte{b}); err != nil {
		return newError(KindFatal, "uart write failed", err)
	}
	c.sleep(bytePeriod)
	if err := c.uart.SetParitySpace(); err != nil {
		return newError(KindFatal, "uart write failed", err)
	}
	return nil
}

// SendPacket writes data with space parity, drains, then appends the
// checksum byte with mark parity before returning the line to space parity
// — the exact sequence §4.A requires. data must not include the checksum;
// SendPacket computes and appends it.
func (c *Codec) SendPacket(data []byte) error {
	if err := c.uart.SetParitySpace(); err != nil {
		return newError(KindFatal, "uart write failed", err)
	}
	if len(data) > 0 {
		if _, err := c.uart.Write(data); err != nil {
			return newError(KindFatal, "uart write failed", err)
		}
		c.sleep(time.Duration(len(data)) * bytePeriod)
	}
	chk := Checksum(data)
	if err := c.uart.SetParityMark(); err != nil {
		return newError(KindFatal, "uart write failed", err)
	}
	if _, err := c.uart.Write([]byte{chk}); err != nil {
		return newError(KindFatal, "uart write failed", err)
	}
	c.sleep(bytePeriod)
	return c.uart.SetParitySpace()
}
