package netadapter

import (
	"context"
	"net"
	"time"

	"github.com/btcsuite/go-socks/socks"
	"github.com/pkg/errors"
)

// DefaultConnectTimeout is the default timeout for establishing outbound
// connections.
const DefaultConnectTimeout = 30 * time.Second

// Dialer establishes outbound connections, directly or through a SOCKS5
// proxy.
type Dialer struct {
	// Proxy is the host:port of a SOCKS5 proxy. Connections are direct
	// when it is empty.
	Proxy     string
	ProxyUser string
	ProxyPass string

	// TorIsolation makes the proxy use fresh random credentials for
	// every connection.
	TorIsolation bool

	// Timeout bounds connection establishment. DefaultConnectTimeout is
	// used when it is zero.
	Timeout time.Duration
}

func (d *Dialer) timeout() time.Duration {
	if d.Timeout == 0 {
		return DefaultConnectTimeout
	}
	return d.Timeout
}

// Dial connects to address.
func (d *Dialer) Dial(ctx context.Context, address string) (*Conn, error) {
	if d.Proxy == "" {
		dialer := net.Dialer{Timeout: d.timeout()}
		conn, err := dialer.DialContext(ctx, "tcp", address)
		if err != nil {
			return nil, errors.Wrapf(err, "error connecting to %s", address)
		}
		return NewConn(conn, false), nil
	}

	if _, _, err := net.SplitHostPort(d.Proxy); err != nil {
		return nil, errors.Wrapf(err, "proxy address '%s' is invalid", d.Proxy)
	}
	proxy := &socks.Proxy{
		Addr:         d.Proxy,
		Username:     d.ProxyUser,
		Password:     d.ProxyPass,
		TorIsolation: d.TorIsolation,
	}

	// The proxy dial does not take a context, so run it aside and give up
	// on it when the context is done.
	type dialResult struct {
		conn net.Conn
		err  error
	}
	resultChan := make(chan dialResult, 1)
	spawn("Dialer.proxyDial", func() {
		conn, err := proxy.DialTimeout("tcp", address, d.timeout())
		resultChan <- dialResult{conn: conn, err: err}
	})

	select {
	case result := <-resultChan:
		if result.err != nil {
			return nil, errors.Wrapf(result.err, "error connecting to %s "+
				"through proxy %s", address, d.Proxy)
		}
		return NewConn(result.conn, false), nil

	case <-ctx.Done():
		spawn("Dialer.proxyDialCleanup", func() {
			result := <-resultChan
			if result.conn != nil {
				result.conn.Close()
			}
		})
		return nil, errors.WithStack(ctx.Err())
	}
}
