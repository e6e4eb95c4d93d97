package netadapter

import (
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

// readBufferSize is the size of the buffer a connection reads into.
const readBufferSize = 64 * 1024

// Conn is a Transport over a net.Conn.
type Conn struct {
	conn    net.Conn
	inbound bool

	writeMtx sync.Mutex

	started   uint32
	closed    uint32
	closeOnce sync.Once
}

// NewConn wraps conn. inbound tells whether the remote side initiated it.
func NewConn(conn net.Conn, inbound bool) *Conn {
	return &Conn{
		conn:    conn,
		inbound: inbound,
	}
}

func (c *Conn) String() string {
	direction := "outbound"
	if c.inbound {
		direction = "inbound"
	}
	return fmt.Sprintf("%s (%s)", c.conn.RemoteAddr(), direction)
}

// IsInbound returns whether the remote side initiated the connection.
func (c *Conn) IsInbound() bool {
	return c.inbound
}

// Start begins reading from the connection. onData is called from a single
// goroutine for every read, and onClose once when reading stops. Calling
// Start more than once has no effect.
func (c *Conn) Start(onData OnDataHandler, onClose OnCloseHandler) {
	if !atomic.CompareAndSwapUint32(&c.started, 0, 1) {
		return
	}
	spawn("Conn.readLoop", func() {
		onClose(c.readLoop(onData))
	})
}

func (c *Conn) readLoop(onData OnDataHandler) error {
	buf := make([]byte, readBufferSize)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			onData(buf[:n])
		}
		if err != nil {
			if err == io.EOF || atomic.LoadUint32(&c.closed) != 0 {
				return nil
			}
			return errors.Wrapf(err, "error reading from %s", c)
		}
	}
}

// Write writes data to the connection. Concurrent writes are serialized so
// frames are never interleaved.
func (c *Conn) Write(data []byte) error {
	c.writeMtx.Lock()
	defer c.writeMtx.Unlock()

	if atomic.LoadUint32(&c.closed) != 0 {
		return errors.Errorf("cannot write to closed connection %s", c)
	}
	_, err := c.conn.Write(data)
	if err != nil {
		return errors.Wrapf(err, "error writing to %s", c)
	}
	return nil
}

// Close closes the connection.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		atomic.StoreUint32(&c.closed, 1)
		log.Debugf("Closing connection %s", c)
		err = c.conn.Close()
	})
	return errors.WithStack(err)
}

// LocalAddr returns the local network address.
func (c *Conn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// RemoteAddr returns the remote network address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
