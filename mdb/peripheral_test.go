package mdb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vendbus/mdbcashless/serial"
)

// vmcFrame builds a raw FF 00-prefixed MDB command the way a real UART's
// PARMRK/INPCK marking would have delivered it, the same convention the
// command-line simulator uses against real hardware.
func vmcFrame(addr byte, data ...byte) []byte {
	payload := append([]byte{addr}, data...)
	chk := Checksum(payload)
	frame := append([]byte{0xFF, 0x00}, payload...)
	return append(frame, chk)
}

func sendFrame(t *testing.T, master *serial.Port, addr byte, data ...byte) {
	t.Helper()
	_, err := master.Write(vmcFrame(addr, data...))
	require.NoError(t, err)
}

// readN polls master for up to 500ms until it has collected n bytes.
func readN(t *testing.T, master *serial.Port, n int) []byte {
	t.Helper()
	out := make([]byte, 0, n)
	deadline := time.Now().Add(500 * time.Millisecond)
	buf := make([]byte, 64)
	for len(out) < n && time.Now().Before(deadline) {
		got, err := master.ReadTimeout(buf, 20*time.Millisecond)
		require.NoError(t, err)
		out = append(out, buf[:got]...)
	}
	require.GreaterOrEqual(t, len(out), n, "timed out waiting for %d bytes, got %X", n, out)
	return out
}

func newPTYPeripheral(t *testing.T) (*Peripheral, *serial.Port) {
	t.Helper()
	master, slave, err := serial.OpenPTY(nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { master.Close() })
	// A fresh pty slave is canonical with echo and XON/XOFF on; MDB bytes
	// must pass through untouched.
	require.NoError(t, slave.MakeRaw())

	p := NewPeripheral(slave, WithReadTimeout(5*time.Millisecond))
	p.Start()
	t.Cleanup(func() { p.Stop() })
	return p, master
}

func TestPeripheralColdStartThroughEnable(t *testing.T) {
	_, master := newPTYPeripheral(t)

	sendFrame(t, master, 0x10) // RESET
	assertACK(t, master)

	sendFrame(t, master, 0x12) // first POLL: JUST_RESET
	reply := readN(t, master, 2)
	require.Equal(t, byte(OpJustReset), reply[0])

	sendFrame(t, master, 0x12) // idle POLL: ACK
	assertACK(t, master)

	sendFrame(t, master, 0x11, 0x00, 0x01, 0x02, 0x10, 0x00) // SETUP_CONFIG_DATA: queued-only, no separate ACK

	sendFrame(t, master, 0x12) // POLL -> READER_CONFIG_DATA
	reply = readN(t, master, 8)
	require.Equal(t, byte(OpReaderConfig), reply[0])

	sendFrame(t, master, 0x14, 0x01) // READER_ENABLE
	assertACK(t, master)
}

func TestPeripheralVendApproveFlowOverPTY(t *testing.T) {
	p, master := newPTYPeripheral(t)

	sendFrame(t, master, 0x10)
	assertACK(t, master)
	sendFrame(t, master, 0x12)
	readN(t, master, 2)
	sendFrame(t, master, 0x14, 0x01) // READER_ENABLE
	assertACK(t, master)

	require.NoError(t, p.StartSession(500, true))
	sendFrame(t, master, 0x12) // POLL -> BEGIN_SESSION
	reply := readN(t, master, 3)
	require.Equal(t, byte(OpBeginSession), reply[0])

	sendFrame(t, master, 0x13, 0x00, 0x01, 0xF4, 0xFF, 0xFF) // VEND_REQUEST, price=500, item unknown
	assertACK(t, master)

	require.NoError(t, p.ApproveVend(500))
	sendFrame(t, master, 0x12) // POLL -> APPROVE_VEND
	reply = readN(t, master, 3)
	require.Equal(t, byte(OpApproveVend), reply[0])

	sendFrame(t, master, 0x13, 0x02, 0xFF, 0xFF) // VEND_SUCCESS, item unknown
	assertACK(t, master)
}

// assertACK drains exactly the bare ACK token (0x00, mark parity on a real
// line, plain on a pty loopback).
func assertACK(t *testing.T, master *serial.Port) {
	t.Helper()
	reply := readN(t, master, 1)
	require.Equal(t, byte(0x00), reply[0])
}

// TestPeripheralSurvivesIdleReadTimeout holds the line idle across several
// read-timeout windows with nothing in flight, then proves the reader is
// still alive and answering: an idle gap must never trip EventTerminal.
func TestPeripheralSurvivesIdleReadTimeout(t *testing.T) {
	p, master := newPTYPeripheral(t)

	time.Sleep(50 * time.Millisecond) // several multiples of the 5ms read timeout

	select {
	case ev := <-p.Events():
		t.Fatalf("unexpected event during idle wait: %+v", ev)
	default:
	}

	sendFrame(t, master, 0x10) // RESET
	assertACK(t, master)
}
