// Package cansocket adapts a Linux SocketCAN interface into a
// blackchannel.Channel, so an FSoE connection can be carried over a plain
// CAN bus (EtherCAT's mailbox being out of scope for a software-only black
// channel). Grounded on the teacher's socketcan Bus wrapper
// (pkg/can/socketcan/socketcan.go): same brutella/can dependency, same
// Connect/Subscribe/Handle shape, adapted from the teacher's
// publish-subscribe dispatch model to the single fixed-size-frame
// request/reply the FSoE black channel needs.
package cansocket

import (
	"fmt"
	"sync"

	sockcan "github.com/brutella/can"
)

// Channel carries FSoE frames over one CAN identifier pair on a SocketCAN
// interface: txID frames are sent, rxID frames are received. FSoE frames
// larger than 8 bytes are not representable on a single classic CAN frame
// and are rejected by Send.
type Channel struct {
	bus  *sockcan.Bus
	txID uint32
	rxID uint32

	mu      sync.Mutex
	pending []byte
}

// New opens ifname (e.g. "can0") and returns a Channel that sends on txID
// and listens on rxID. The caller is responsible for calling Close when
// done.
func New(ifname string, txID, rxID uint32) (*Channel, error) {
	bus, err := sockcan.NewBusForInterfaceWithName(ifname)
	if err != nil {
		return nil, fmt.Errorf("cansocket: open %s: %w", ifname, err)
	}

	c := &Channel{bus: bus, txID: txID, rxID: rxID}
	bus.Subscribe(c)
	go bus.ConnectAndPublish()
	return c, nil
}

// Handle is brutella/can's frame callback interface, invoked from the
// bus's own receive goroutine; it only stashes the latest rxID frame for
// the next Recv poll.
func (c *Channel) Handle(frame sockcan.Frame) {
	if frame.ID != c.rxID {
		return
	}
	c.mu.Lock()
	c.pending = append(c.pending[:0], frame.Data[:frame.Length]...)
	c.mu.Unlock()
}

// Send transmits frame as a single classic CAN data frame on txID.
func (c *Channel) Send(frame []byte) error {
	if len(frame) > 8 {
		return fmt.Errorf("cansocket: frame of %d bytes exceeds classic CAN payload", len(frame))
	}
	var data [8]byte
	copy(data[:], frame)
	return c.bus.Publish(sockcan.Frame{
		ID:     c.txID,
		Length: uint8(len(frame)),
		Data:   data,
	})
}

// Recv reports the most recent rxID frame received since the last call, or
// 0 if none arrived.
func (c *Channel) Recv(buffer []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pending) == 0 {
		return 0, nil
	}
	n := copy(buffer, c.pending)
	c.pending = c.pending[:0]
	return n, nil
}

// Close disconnects the underlying bus.
func (c *Channel) Close() error {
	return c.bus.Disconnect()
}
