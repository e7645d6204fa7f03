package mdb

// MaxPacketBytes bounds the number of data bytes (address byte inclusive,
// checksum exclusive) a single packet may carry before the reader gives up
// and resynchronises. An address-byte value can legitimately recur as a
// data byte inside a long packet, so FF 00 alone cannot terminate resync;
// this bound exists purely to stop runaway concatenation when the stream
// is actually misframed.
const MaxPacketBytes = 36

// Packet is one complete MDB packet as seen by the Command Decoder: the
// address byte followed by any data bytes, with the checksum already
// verified and stripped. Special single-byte tokens (ACK/RET/NAK) appear
// as a one-byte Raw with no checksum.
type Packet struct {
	Raw []byte
}

// ByteSource is the minimal read interface the FrameReader needs. It mirrors
// serial.Port.ReadTimeout: a read that may legitimately return 0 bytes and a
// nil error on timeout, which the reader treats as "nothing happened yet".
type ByteSource interface {
	ReadByte() (b byte, ok bool, err error)
}

// FrameReader resynchronises on FF 00 address markers and assembles
// complete packets. It holds no goroutine of its own; ReadPacket is called
// in a loop by the owner (mdb.Peripheral).
type FrameReader struct {
	src    ByteSource
	window [2]byte
	filled int
}

// NewFrameReader wraps a ByteSource with MDB frame resynchronisation.
func NewFrameReader(src ByteSource) *FrameReader {
	return &FrameReader{src: src}
}

// ReadPacket blocks (subject to the underlying ByteSource's own timeout
// behaviour) until one complete packet has been assembled, a fatal I/O
// error occurs, or the caller's stop condition should be checked again.
// A nil Packet with a nil error means "no data yet, try again" (a read
// timeout); callers should re-enter their loop and check for shutdown.
func (r *FrameReader) ReadPacket() (*Packet, error) {
	for {
		b, ok, err := r.src.ReadByte()
		if err != nil {
			return nil, newError(KindFatal, "frame reader: read failed", err)
		}
		if !ok {
			return nil, nil
		}
		r.window[0] = r.window[1]
		r.window[1] = b
		r.filled++
		if r.filled < 2 {
			continue
		}
		if r.window[0] != 0xFF || r.window[1] != 0x00 {
			continue
		}
		// Resynchronised on FF 00: the next byte is the address byte.
		addr, ok, err := r.readByteBlocking()
		if err != nil {
			return nil, err
		}
		if !ok {
			// Shutdown or fatal mid-resync: drop back to scanning.
			r.filled = 0
			return nil, nil
		}
		if addr == 0x00 || addr == 0xAA || addr == 0xFF {
			r.filled = 0
			return &Packet{Raw: []byte{addr}}, nil
		}
		pkt, discarded, err := r.readDataAndChecksum(addr)
		r.filled = 0
		if discarded {
			// Over-long packet (a framing violation, non-fatal): resynchronise
			// from scratch; the FF 00 we just consumed is gone, so the window
			// must refill before matching again.
			continue
		}
		if err != nil {
			return nil, err
		}
		return pkt, nil
	}
}

func (r *FrameReader) readByteBlocking() (byte, bool, error) {
	for {
		b, ok, err := r.src.ReadByte()
		if err != nil {
			return 0, false, newError(KindFatal, "frame reader: read failed", err)
		}
		if ok {
			return b, true, nil
		}
		// Timeout while mid-packet: keep waiting for the rest of this
		// packet rather than abandoning it on every idle poll interval.
	}
}

func (r *FrameReader) readDataAndChecksum(addr byte) (pkt *Packet, discarded bool, err error) {
	data := []byte{addr}
	sum := addr
	for {
		if len(data) > MaxPacketBytes {
			return nil, true, newError(KindFraming, "packet exceeded 36 bytes, discarding", nil)
		}
		b, ok, rerr := r.readByteBlocking()
		if rerr != nil {
			return nil, false, rerr
		}
		if !ok {
			return nil, true, nil
		}
		if b == sum {
			return &Packet{Raw: data}, false, nil
		}
		data = append(data, b)
		sum += b
	}
}

// Checksum computes sum(bytes) mod 256.
func Checksum(bytes []byte) byte {
	var sum byte
	for _, b := range bytes {
		sum += b
	}
	return sum
}
