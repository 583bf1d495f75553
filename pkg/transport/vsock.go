package transport

import (
	"context"
	"net"

	"github.com/mdlayher/vsock"
)

const (
	CIDHypervisor = 0
	CIDLocal      = 1
	CIDHost       = 2
	CIDAny        = 0xFFFFFFFF
)

// DialContext is the default Dialer: it opens a vsock stream socket to
// (cid, port). vsock connects are host-local and normally fast, but the
// dial still honors ctx cancellation.
func DialContext(ctx context.Context, cid, port uint32) (net.Conn, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := vsock.Dial(cid, port, nil)
		ch <- result{conn: conn, err: err}
	}()
	select {
	case res := <-ch:
		if res.err != nil {
			return nil, ConnectionError(res.err, "dial vsock cid=%d port=%d", cid, port)
		}
		return res.conn, nil
	case <-ctx.Done():
		go func() {
			if res := <-ch; res.conn != nil {
				_ = res.conn.Close()
			}
		}()
		return nil, ConnectionError(ctx.Err(), "dial vsock cid=%d port=%d", cid, port)
	}
}

// Listen binds a vsock listener. CIDAny binds the wildcard context id.
func Listen(cid, port uint32) (net.Listener, error) {
	var (
		err error
		l   net.Listener
	)
	if cid == CIDAny {
		l, err = vsock.Listen(port, nil)
	} else {
		l, err = vsock.ListenContextID(cid, port, nil)
	}
	if err != nil {
		return nil, ConnectionError(err, "bind vsock cid=%d port=%d", cid, port)
	}
	return l, nil
}
