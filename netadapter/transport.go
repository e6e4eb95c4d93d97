package netadapter

import "net"

// Transport is the byte stream a peer session runs over. Incoming bytes are
// delivered through the handlers given to the transport when it is started.
type Transport interface {
	// Write writes all of data or fails.
	Write(data []byte) error

	// Close closes the transport. Closing an already closed transport
	// is a no-op.
	Close() error

	LocalAddr() net.Addr
	RemoteAddr() net.Addr
}

// OnDataHandler receives bytes read from a transport. data is only valid
// for the duration of the call.
type OnDataHandler func(data []byte)

// OnCloseHandler is invoked once when a transport stops delivering data. err
// is nil when the transport was closed locally or the remote side closed it
// cleanly.
type OnCloseHandler func(err error)
