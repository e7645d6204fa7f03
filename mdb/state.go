package mdb

import (
	"fmt"
	"sync"
)

// State is the reader's lifecycle position. INACTIVE is the initial state.
type State int

const (
	StateInactive State = iota
	StateDisabled
	StateEnabled
	StateIdle // session open (what §4.F informally calls "ENABLED-IDLE")
	StateVend
	StateRevalue
	StateNegativeVend
)

func (s State) String() string {
	switch s {
	case StateInactive:
		return "INACTIVE"
	case StateDisabled:
		return "DISABLED"
	case StateEnabled:
		return "ENABLED"
	case StateIdle:
		return "IDLE"
	case StateVend:
		return "VEND"
	case StateRevalue:
		return "REVALUE"
	case StateNegativeVend:
		return "NEGATIVE_VEND"
	default:
		return "UNKNOWN"
	}
}

// PollAction is what HandlePoll decides to put on the wire: either a plain
// ACK, or a fully-encoded data packet (which the codec must still checksum
// and frame).
type PollAction struct {
	Ack    bool
	Packet []byte
}

// Machine is the Cashless Session State Machine (§4.F): it enforces legal
// transitions and translates inbound commands and application calls into
// outbound responses via the shared Queue.
type Machine struct {
	mu          sync.Mutex
	state       State
	slot        Slot
	queue       *Queue
	builder     *Builder
	autoRestart bool
}

// NewMachine constructs a Machine that answers the given Slot, queuing
// through queue and encoding responses via builder. If autoRestartSession is
// true, a new session is opened automatically after VEND_SESSION_COMPLETE,
// matching the original implementation's auto-resume behaviour (§C.2).
func NewMachine(builder *Builder, slot Slot, queue *Queue, autoRestartSession bool) *Machine {
	return &Machine{
		state:       StateInactive,
		slot:        slot,
		queue:       queue,
		builder:     builder,
		autoRestart: autoRestartSession,
	}
}

// State returns the current reader state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) setState(s State) {
	m.state = s
}

func (m *Machine) in(states ...State) bool {
	for _, s := range states {
		if m.state == s {
			return true
		}
	}
	return false
}

// HandlePoll implements §4.E: POLL is the only point the peripheral may
// speak unprompted, and only one response is emitted, FIFO, per POLL.
func (m *Machine) HandlePoll() PollAction {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateInactive {
		m.setState(StateDisabled)
		return PollAction{Packet: m.builder.JustReset()}
	}
	if item, ok := m.queue.Dequeue(); ok {
		if item.Apply != nil {
			item.Apply(m)
		}
		return PollAction{Packet: item.Bytes}
	}
	return PollAction{Ack: true}
}

// HandleCommand implements the rest of §4.F: inbound commands other than
// POLL. ack reports whether the caller should write a bare ACK to the wire
// immediately (§4.F "Immediate ACK policy"); events carries zero or more
// Events to deliver to the application, in order. A Command addressed to
// the slot this Machine does not answer produces no ack and no events.
func (m *Machine) HandleCommand(cmd Command) (ack bool, events []Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !addressedTag(cmd.Tag) {
		return false, nil
	}
	if cmd.Slot != m.slot {
		return false, nil
	}

	// RESET is legal from any state and always reverts to INACTIVE.
	if cmd.Tag == TagReset {
		m.setState(StateInactive)
		m.queue.Reset()
		return true, []Event{{Kind: EventCommand, Command: cmd}}
	}

	switch cmd.Tag {
	case TagSetupConfig:
		return m.onSetupConfig(cmd)
	case TagSetupPrices:
		return m.onSetupPrices(cmd)
	case TagReaderEnable:
		return m.onReaderEnable(cmd)
	case TagReaderDisable:
		return m.onReaderDisable(cmd)
	case TagReaderCancel:
		return m.onReaderCancel(cmd)
	case TagVendRequest:
		return m.onVendRequest(cmd)
	case TagVendCancel:
		return m.onVendCancel(cmd)
	case TagVendSuccess:
		return m.onVendSuccess(cmd)
	case TagVendFailure:
		return m.onVendFailure(cmd)
	case TagVendSessionComplete:
		return m.onVendSessionComplete(cmd)
	case TagCashSale:
		return true, []Event{{Kind: EventCommand, Command: cmd}}
	case TagExpansionRequestID:
		return m.onExpansionRequestID(cmd)
	default:
		return false, nil
	}
}

func addressedTag(t Tag) bool {
	switch t {
	case TagReset, TagPoll, TagSetupConfig, TagSetupPrices, TagVendRequest,
		TagVendCancel, TagVendSuccess, TagVendFailure, TagVendSessionComplete,
		TagCashSale, TagReaderDisable, TagReaderEnable, TagReaderCancel,
		TagExpansionRequestID:
		return true
	default:
		return false
	}
}

func (m *Machine) warning(cmd Command, legal bool) []Event {
	events := []Event{{Kind: EventCommand, Command: cmd}}
	if !legal {
		events = append(events, Event{
			Kind:    EventProtocolWarning,
			Command: cmd,
			Detail:  fmt.Sprintf("%s illegal in state %s", cmd.Tag, m.state),
		})
	}
	return events
}

func (m *Machine) onSetupConfig(cmd Command) (bool, []Event) {
	legal := m.state == StateDisabled
	m.queue.Enqueue(QueueItem{Bytes: m.builder.ReaderConfigData()})
	return false, m.warning(cmd, legal)
}

func (m *Machine) onSetupPrices(cmd Command) (bool, []Event) {
	legal := m.state == StateDisabled
	return true, m.warning(cmd, legal)
}

func (m *Machine) onReaderEnable(cmd Command) (bool, []Event) {
	legal := m.state == StateDisabled
	m.setState(StateEnabled)
	return true, m.warning(cmd, legal)
}

func (m *Machine) onReaderDisable(cmd Command) (bool, []Event) {
	legal := m.in(StateEnabled, StateIdle)
	m.setState(StateDisabled)
	return true, m.warning(cmd, legal)
}

func (m *Machine) onReaderCancel(cmd Command) (bool, []Event) {
	legal := m.in(StateEnabled, StateIdle)
	m.queue.Enqueue(QueueItem{Bytes: m.builder.Cancelled()})
	return false, m.warning(cmd, legal)
}

func (m *Machine) onVendRequest(cmd Command) (bool, []Event) {
	legal := m.in(StateEnabled, StateIdle)
	m.setState(StateVend)
	return true, m.warning(cmd, legal)
}

func (m *Machine) onVendCancel(cmd Command) (bool, []Event) {
	legal := m.state == StateVend
	m.setState(StateIdle)
	return true, m.warning(cmd, legal)
}

func (m *Machine) onVendSuccess(cmd Command) (bool, []Event) {
	legal := m.state == StateVend
	m.setState(StateIdle)
	return true, m.warning(cmd, legal)
}

func (m *Machine) onVendFailure(cmd Command) (bool, []Event) {
	legal := m.state == StateVend
	m.setState(StateIdle)
	return true, m.warning(cmd, legal)
}

func (m *Machine) onVendSessionComplete(cmd Command) (bool, []Event) {
	legal := m.state == StateIdle
	m.setState(StateEnabled)
	m.queue.Enqueue(QueueItem{Bytes: m.builder.EndSession()})
	if m.autoRestart {
		m.queue.Enqueue(QueueItem{
			Bytes: m.builder.BeginSession(0, false),
			Apply: func(mm *Machine) { mm.setState(StateIdle) },
		})
	}
	return true, m.warning(cmd, legal)
}

func (m *Machine) onExpansionRequestID(cmd Command) (bool, []Event) {
	m.queue.Enqueue(QueueItem{Bytes: m.builder.PeripheralID()})
	return false, []Event{{Kind: EventCommand, Command: cmd}}
}

// --- Application-initiated actions (§4.G inbound, §6 Application API) ---

// misuse builds the KindMisuse error returned by the application-facing
// methods when called from a state the operation is not legal in; no wire
// traffic is produced.
func (m *Machine) misuse(op string) error {
	return newError(KindMisuse, fmt.Sprintf("%s: illegal in state %s", op, m.state), nil)
}

// StartSession queues BEGIN_SESSION with the given balance. known=false
// encodes "unknown balance" (wire value 0xFFFF). Only legal in ENABLED.
func (m *Machine) StartSession(balance Money, known bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateEnabled {
		return m.misuse("start_session")
	}
	m.queue.Enqueue(QueueItem{
		Bytes: m.builder.BeginSession(balance, known),
		Apply: func(mm *Machine) { mm.setState(StateIdle) },
	})
	return nil
}

// ApproveVend queues APPROVE_VEND for the given amount. Only legal in VEND.
func (m *Machine) ApproveVend(amount Money) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateVend {
		return m.misuse("approve_vend")
	}
	m.queue.Enqueue(QueueItem{
		Bytes: m.builder.ApproveVend(amount),
		Apply: func(mm *Machine) { mm.setState(StateIdle) },
	})
	return nil
}

// DenyVend queues DENY_VEND. Legal in VEND (denying the pending vend) and
// in ENABLED (refusing to open a session at all).
func (m *Machine) DenyVend() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.in(StateVend, StateEnabled) {
		return m.misuse("deny_vend")
	}
	wasVend := m.state == StateVend
	m.queue.Enqueue(QueueItem{
		Bytes: m.builder.DenyVend(),
		Apply: func(mm *Machine) {
			if wasVend {
				mm.setState(StateIdle)
			}
		},
	})
	return nil
}

// EndSession queues END_SESSION, closing an application-initiated session
// close. Only legal in IDLE (a session must be open).
func (m *Machine) EndSession() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateIdle {
		return m.misuse("end_session")
	}
	m.queue.Enqueue(QueueItem{
		Bytes: m.builder.EndSession(),
		Apply: func(mm *Machine) { mm.setState(StateEnabled) },
	})
	return nil
}

// Cancel queues CANCELLED. Legal in ENABLED and IDLE.
func (m *Machine) Cancel() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.in(StateEnabled, StateIdle) {
		return m.misuse("cancel")
	}
	m.queue.Enqueue(QueueItem{Bytes: m.builder.Cancelled()})
	return nil
}
