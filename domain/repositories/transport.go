package repositories

import (
	"context"
	"errors"
)

// ErrTransportUnavailable is returned by a direct send while the connection is not open
var ErrTransportUnavailable = errors.New("transport is not open")

// TransportState is the lifecycle state of the duplex connection
type TransportState int

const (
	StateConnecting TransportState = iota
	StateOpen
	StateClosed
	StateErrored
)

func (s TransportState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateErrored:
		return "errored"
	}
	return "unknown"
}

// FrameHandler receives inbound frames in arrival order
type FrameHandler interface {
	// HandleText is called for every structured (text) frame
	HandleText(payload []byte)
	// HandleBinary is called for every binary frame
	HandleBinary(payload []byte)
}

// Transport abstracts the single duplex connection to the agent
type Transport interface {
	// Connect establishes the connection and starts delivering frames to handler
	Connect(ctx context.Context, handler FrameHandler) error
	// Send delivers a text frame immediately or fails with ErrTransportUnavailable
	Send(payload []byte) error
	// SendGuaranteed delivers a text frame now, or exactly once as soon as the connection opens
	SendGuaranteed(payload []byte)
	// State returns the current lifecycle state
	State() TransportState
	// OnStateChange registers a callback for lifecycle transitions
	OnStateChange(fn func(TransportState))
	// Close releases the connection
	Close() error
}
