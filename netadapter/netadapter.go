package netadapter

import (
	"context"
	"net"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

// ConnectionHandler is invoked with every newly established connection,
// before it is started.
type ConnectionHandler func(conn *Conn)

// NetAdapter accepts inbound connections and establishes outbound ones,
// handing every connection to the same ConnectionHandler.
type NetAdapter struct {
	dialer            *Dialer
	connectionHandler ConnectionHandler

	listenersMtx sync.Mutex
	listeners    []net.Listener

	stop int32
	wg   sync.WaitGroup
}

// NewNetAdapter creates a NetAdapter dialing with dialer.
func NewNetAdapter(dialer *Dialer) *NetAdapter {
	if dialer == nil {
		dialer = &Dialer{}
	}
	return &NetAdapter{dialer: dialer}
}

// SetConnectionHandler sets the handler for new connections. It must be
// called before Listen or Connect.
func (na *NetAdapter) SetConnectionHandler(handler ConnectionHandler) {
	na.connectionHandler = handler
}

// Listen starts accepting connections on address and returns the address
// actually bound.
func (na *NetAdapter) Listen(address string) (net.Addr, error) {
	if na.connectionHandler == nil {
		return nil, errors.New("no connection handler is set")
	}
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, errors.Wrapf(err, "error listening on %s", address)
	}

	na.listenersMtx.Lock()
	na.listeners = append(na.listeners, listener)
	na.listenersMtx.Unlock()

	log.Infof("Listening on %s", listener.Addr())
	na.wg.Add(1)
	spawn("NetAdapter.acceptLoop", func() {
		defer na.wg.Done()
		na.acceptLoop(listener)
	})
	return listener.Addr(), nil
}

func (na *NetAdapter) acceptLoop(listener net.Listener) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if atomic.LoadInt32(&na.stop) == 0 {
				log.Errorf("Can't accept connection on %s: %s", listener.Addr(), err)
			}
			return
		}
		log.Debugf("Accepted connection from %s", conn.RemoteAddr())
		na.connectionHandler(NewConn(conn, true))
	}
}

// Connect establishes an outbound connection to address and hands it to the
// connection handler.
func (na *NetAdapter) Connect(ctx context.Context, address string) (*Conn, error) {
	if na.connectionHandler == nil {
		return nil, errors.New("no connection handler is set")
	}
	if atomic.LoadInt32(&na.stop) != 0 {
		return nil, errors.New("net adapter is stopped")
	}
	conn, err := na.dialer.Dial(ctx, address)
	if err != nil {
		return nil, err
	}
	log.Debugf("Connected to %s", conn)
	na.connectionHandler(conn)
	return conn, nil
}

// Stop closes every listener and waits for the accept loops to finish.
// Connections already handed out are not affected.
func (na *NetAdapter) Stop() error {
	if !atomic.CompareAndSwapInt32(&na.stop, 0, 1) {
		return errors.New("net adapter stopped more than once")
	}

	na.listenersMtx.Lock()
	var firstErr error
	for _, listener := range na.listeners {
		err := listener.Close()
		if err != nil && firstErr == nil {
			firstErr = errors.WithStack(err)
		}
	}
	na.listenersMtx.Unlock()

	na.wg.Wait()
	return firstErr
}
