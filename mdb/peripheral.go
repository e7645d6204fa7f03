package mdb

import (
	"sync"
	"time"
)

// DefaultReadTimeout is the UART read timeout §5/§6 ask for: short enough
// that the stop flag is checked promptly, long enough not to busy-loop.
const DefaultReadTimeout = 10 * time.Millisecond

// eventBufferSize bounds the Event Surface's outbound channel. Past this,
// Peripheral starts dropping per the §4.G backpressure rule.
const eventBufferSize = 64

// Logger is the slim structured-logging surface Peripheral needs; a
// *log.Logger from github.com/charmbracelet/log satisfies it directly.
type Logger interface {
	Debug(msg interface{}, keyvals ...interface{})
	Warn(msg interface{}, keyvals ...interface{})
	Error(msg interface{}, keyvals ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debug(interface{}, ...interface{}) {}
func (nopLogger) Warn(interface{}, ...interface{})  {}
func (nopLogger) Error(interface{}, ...interface{}) {}

// Peripheral is the Event Surface (§4.G) and overall lifecycle owner: it
// wires the Line Codec, Frame Reader, Command Decoder and Cashless State
// Machine together, runs the reader loop on its own goroutine, and exposes
// the Application API of §6.
type Peripheral struct {
	codec   *Codec
	reader  *FrameReader
	decoder *Decoder
	machine *Machine
	builder *Builder
	uart    UART
	logger  Logger

	surfaceBusNoise bool

	events chan Event
	stop   chan struct{}
	done   chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
}

// Option configures a Peripheral at construction.
type Option func(*peripheralConfig)

type peripheralConfig struct {
	slot               Slot
	readerConfig       ReaderConfig
	identity           Identity
	logger             Logger
	readTimeout        time.Duration
	queueCapacity      int
	autoRestartSession bool
	surfaceBusNoise    bool
	scale              int
}

// WithSlot selects which address range (primary or secondary) this
// instance answers. Default: SlotPrimary.
func WithSlot(s Slot) Option { return func(c *peripheralConfig) { c.slot = s } }

// WithReaderConfig sets the advertised capability set returned in
// READER_CONFIG_DATA. Default: DefaultReaderConfig().
func WithReaderConfig(rc ReaderConfig) Option {
	return func(c *peripheralConfig) { c.readerConfig = rc }
}

// WithIdentity sets the manufacturer/serial/model/version returned in
// PERIPHERAL_ID.
func WithIdentity(id Identity) Option { return func(c *peripheralConfig) { c.identity = id } }

// WithLogger sets the structured logger. Default: a no-op logger.
func WithLogger(l Logger) Option { return func(c *peripheralConfig) { c.logger = l } }

// WithReadTimeout overrides the UART read timeout. Default: DefaultReadTimeout.
func WithReadTimeout(d time.Duration) Option {
	return func(c *peripheralConfig) { c.readTimeout = d }
}

// WithQueueCapacity overrides the send queue's overflow cap. Default: DefaultQueueCapacity.
func WithQueueCapacity(n int) Option { return func(c *peripheralConfig) { c.queueCapacity = n } }

// WithAutoRestartSession controls whether a new session is opened
// automatically after VEND_SESSION_COMPLETE (§C.2). Default: true.
func WithAutoRestartSession(b bool) Option {
	return func(c *peripheralConfig) { c.autoRestartSession = b }
}

// WithSurfaceBusNoise controls whether ACK/RET/NAK are delivered as events.
// Default: false (suppressed, per §4.G).
func WithSurfaceBusNoise(b bool) Option {
	return func(c *peripheralConfig) { c.surfaceBusNoise = b }
}

// WithScale sets the peripheral's declared scaling factor, used both to
// encode outbound Money and interpret inbound Money fields. Default: 1.
func WithScale(scale int) Option { return func(c *peripheralConfig) { c.scale = scale } }

// NewPeripheral wires a UART into a full cashless peripheral instance. The
// UART is assumed already open and configured (see serial.Port plus
// serial.Port.EnableParityMarkingInput); NewPeripheral does not open or
// close serial devices itself — that remains an external collaborator's
// job per §1, except that Stop will call Close on the UART if it
// implements io.Closer, matching §3's "terminates by ... closing the
// device" lifecycle contract.
func NewPeripheral(uart UART, opts ...Option) *Peripheral {
	cfg := &peripheralConfig{
		slot:               SlotPrimary,
		readerConfig:       DefaultReaderConfig(),
		identity:           Identity{},
		logger:             nopLogger{},
		readTimeout:        DefaultReadTimeout,
		queueCapacity:      DefaultQueueCapacity,
		autoRestartSession: true,
		scale:              1,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	cfg.readerConfig.ScaleFactor = byte(cfg.scale)

	builder := NewBuilder(cfg.readerConfig, cfg.identity)
	queue := NewQueue(cfg.queueCapacity)
	codec := NewCodec(uart, cfg.readTimeout)

	return &Peripheral{
		codec:           codec,
		reader:          NewFrameReader(codec),
		decoder:         &Decoder{Scale: cfg.scale},
		machine:         NewMachine(builder, cfg.slot, queue, cfg.autoRestartSession),
		builder:         builder,
		uart:            uart,
		logger:          cfg.logger,
		surfaceBusNoise: cfg.surfaceBusNoise,
		events:          make(chan Event, eventBufferSize),
		stop:            make(chan struct{}),
		done:            make(chan struct{}),
	}
}

// Events returns the Event Surface's outbound channel.
func (p *Peripheral) Events() <-chan Event { return p.events }

// State returns the current reader state.
func (p *Peripheral) State() State { return p.machine.State() }

// Start launches the reader loop on its own goroutine. Calling it more than
// once has no effect beyond the first call.
func (p *Peripheral) Start() {
	p.startOnce.Do(func() { go p.run() })
}

// Stop signals the reader loop to exit, waits for it to do so, and closes
// the UART if it implements io.Closer.
func (p *Peripheral) Stop() error {
	var closeErr error
	p.stopOnce.Do(func() {
		close(p.stop)
		<-p.done
		if closer, ok := p.uart.(interface{ Close() error }); ok {
			closeErr = closer.Close()
		}
		close(p.events)
	})
	return closeErr
}

func (p *Peripheral) run() {
	defer close(p.done)
	for {
		select {
		case <-p.stop:
			return
		default:
		}

		pkt, err := p.reader.ReadPacket()
		if err != nil {
			p.logger.Error("uart read failed, peripheral stopping", "err", err)
			p.emit(Event{Kind: EventTerminal, Detail: "fatal I/O error", Err: err})
			return
		}
		if pkt == nil {
			continue // read timeout, nothing to resynchronise on yet
		}

		cmd := p.decoder.Decode(*pkt)
		p.dispatch(cmd)
	}
}

func (p *Peripheral) dispatch(cmd Command) {
	switch cmd.Tag {
	case TagACK, TagRET, TagNAK:
		if p.surfaceBusNoise {
			p.emit(Event{Kind: EventCommand, Command: cmd})
		}
	case TagPeripheralObserved:
		p.emit(Event{Kind: EventCommand, Command: cmd})
	case TagPoll:
		if cmd.Slot != p.machine.slot {
			return // POLL for the slot this instance does not answer
		}
		action := p.machine.HandlePoll()
		var err error
		if action.Ack {
			err = p.codec.SendAck()
		} else {
			err = p.codec.SendPacket(action.Packet)
		}
		if err != nil {
			p.logger.Error("uart write failed", "err", err)
		}
	case TagUnknown:
		p.logger.Warn("unknown opcode", "hex", cmd.Unknown.Hex)
		p.emit(Event{Kind: EventCommand, Command: cmd})
	default:
		ack, events := p.machine.HandleCommand(cmd)
		if ack {
			if err := p.codec.SendAck(); err != nil {
				p.logger.Error("uart write failed", "err", err)
			}
		}
		for _, e := range events {
			if e.Kind == EventProtocolWarning {
				p.logger.Warn("protocol violation", "detail", e.Detail)
			}
			p.emit(e)
		}
	}
}

func mustNotDrop(t Tag) bool {
	switch t {
	case TagVendRequest, TagVendSuccess, TagVendFailure, TagSetupConfig, TagSetupPrices:
		return true
	default:
		return false
	}
}

func (p *Peripheral) emit(e Event) {
	select {
	case p.events <- e:
		return
	default:
	}
	if mustNotDrop(e.Command.Tag) {
		select {
		case <-p.events:
		default:
		}
		select {
		case p.events <- e:
			return
		default:
		}
	}
	p.logger.Warn("event dropped, subscriber too slow", "tag", e.Command.Tag)
}

// --- Application API (§4.G inbound / §6) ---

// StartSession opens a cashless session with the given balance. Pass
// known=false for an unknown balance. Only legal while ENABLED.
func (p *Peripheral) StartSession(balanceCents Money, known bool) error {
	return p.machine.StartSession(balanceCents, known)
}

// ApproveVend approves the pending vend for amountCents. Only legal in VEND.
func (p *Peripheral) ApproveVend(amountCents Money) error {
	return p.machine.ApproveVend(amountCents)
}

// DenyVend denies the pending vend, or refuses to open a session.
func (p *Peripheral) DenyVend() error {
	return p.machine.DenyVend()
}

// EndSession closes the current session.
func (p *Peripheral) EndSession() error {
	return p.machine.EndSession()
}

// Cancel reports a reader-initiated cancellation to the VMC.
func (p *Peripheral) Cancel() error {
	return p.machine.Cancel()
}
