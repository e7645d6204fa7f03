package mdb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeUART is an in-memory UART double: writes land in a byte log annotated
// with the parity mode active at the time, reads are served from a queue.
type fakeUART struct {
	writes []fakeWrite
	parity string // "space" or "mark"
	inbox  [][]byte
}

type fakeWrite struct {
	data   []byte
	parity string
}

func (f *fakeUART) Write(data []byte) (int, error) {
	cp := append([]byte(nil), data...)
	f.writes = append(f.writes, fakeWrite{data: cp, parity: f.parity})
	return len(data), nil
}

func (f *fakeUART) ReadTimeout(data []byte, _ time.Duration) (int, error) {
	if len(f.inbox) == 0 {
		return 0, nil
	}
	next := f.inbox[0]
	f.inbox = f.inbox[1:]
	n := copy(data, next)
	return n, nil
}

func (f *fakeUART) SetParitySpace() error { f.parity = "space"; return nil }
func (f *fakeUART) SetParityMark() error  { f.parity = "mark"; return nil }

func newTestCodec(u *fakeUART) *Codec {
	var slept time.Duration
	return NewCodec(u, 5*time.Millisecond, WithSleepFunc(func(d time.Duration) { slept += d }))
}

func TestCodecSendAckUsesMarkParity(t *testing.T) {
	u := &fakeUART{parity: "space"}
	c := newTestCodec(u)
	require.NoError(t, c.SendAck())
	require.Len(t, u.writes, 1)
	assert.Equal(t, []byte{0x00}, u.writes[0].data)
	assert.Equal(t, "mark", u.writes[0].parity)
	assert.Equal(t, "space", u.parity, "line must return to space parity afterwards")
}

func TestCodecSendPacketSequence(t *testing.T) {
	u := &fakeUART{parity: "mark"}
	c := newTestCodec(u)
	data := []byte{0x01, 0x02, 0x03}
	require.NoError(t, c.SendPacket(data))

	require.Len(t, u.writes, 2)
	assert.Equal(t, data, u.writes[0].data)
	assert.Equal(t, "space", u.writes[0].parity)
	assert.Equal(t, []byte{Checksum(data)}, u.writes[1].data)
	assert.Equal(t, "mark", u.writes[1].parity)
	assert.Equal(t, "space", u.parity)
}

func TestCodecSendPacketEmptyDataStillSendsChecksum(t *testing.T) {
	u := &fakeUART{parity: "space"}
	c := newTestCodec(u)
	require.NoError(t, c.SendPacket(nil))
	require.Len(t, u.writes, 1)
	assert.Equal(t, []byte{0x00}, u.writes[0].data) // Checksum(nil) == 0
}

func TestCodecReadByteTimeout(t *testing.T) {
	u := &fakeUART{}
	c := newTestCodec(u)
	_, ok, err := c.ReadByte()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCodecReadByteValue(t *testing.T) {
	u := &fakeUART{inbox: [][]byte{{0x42}}}
	c := newTestCodec(u)
	b, ok, err := c.ReadByte()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, byte(0x42), b)
}
