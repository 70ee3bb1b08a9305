// Package blackchannel holds the transport-agnostic frame exchange layer
// FSoE calls the "black channel": the safety layer makes no assumption
// about what carries its frames, only that Send/Recv behave as contracted.
// Grounded on the teacher's Bus interface / BusManager wrapper shape
// (bus.go, bus_manager.go), simplified from a subscriber-dispatch model to
// the point-to-point duplex FSoE actually needs.
package blackchannel

import "bytes"

// Channel is the abstract black channel a host backs with a concrete
// transport (a CAN bus, an EtherCAT mailbox, a socket, anything). Both
// methods must return without blocking.
type Channel interface {
	// Send transmits one frame.
	Send(frame []byte) error

	// Recv fills buffer with a new frame and returns its length, returns
	// 0 when no new frame is available, or returns a repeat of the
	// previous frame.
	Recv(buffer []byte) (int, error)
}

// Manager wraps a Channel and remembers the last frame sent and received,
// so the state machine driving it can detect duplicate deliveries per the
// black-channel contract: a Recv result identical to the last received
// frame is not a new frame.
type Manager struct {
	channel         Channel
	frameSize       int
	lastSent        []byte
	lastReceived    []byte
	haveReceived    bool
	currentReceived []byte
}

// NewManager wraps channel for frames of frameSize bytes.
func NewManager(channel Channel, frameSize int) *Manager {
	return &Manager{
		channel:         channel,
		frameSize:       frameSize,
		currentReceived: make([]byte, frameSize),
	}
}

// Send transmits frame and remembers it as LastSent.
func (m *Manager) Send(frame []byte) error {
	if err := m.channel.Send(frame); err != nil {
		return err
	}
	m.lastSent = append(m.lastSent[:0], frame...)
	return nil
}

// Recv polls the channel once. ok is false when nothing new arrived (no
// frame, or a repeat of the previously delivered frame); when ok is true,
// the returned slice is the new frame, valid until the next Recv call.
func (m *Manager) Recv() (data []byte, ok bool, err error) {
	n, err := m.channel.Recv(m.currentReceived)
	if err != nil {
		return nil, false, err
	}
	if n == 0 {
		return nil, false, nil
	}
	frame := m.currentReceived[:n]
	if m.haveReceived && bytes.Equal(frame, m.lastReceived) {
		return nil, false, nil
	}
	m.lastReceived = append(m.lastReceived[:0], frame...)
	m.haveReceived = true
	return m.lastReceived, true, nil
}

// LastSent returns the most recently sent frame, or nil if none was sent
// yet.
func (m *Manager) LastSent() []byte {
	return m.lastSent
}

// LastReceived returns the most recently accepted frame, or nil if none
// was received yet.
func (m *Manager) LastReceived() []byte {
	return m.lastReceived
}
