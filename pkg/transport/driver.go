package transport

import (
	"io"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// Driver keeps a multiplexing protocol's control plane serviced after the
// session's one data stream has been extracted. It owns the inbound-stream
// source exclusively: nothing else may accept streams from the connection
// while the driver runs. Any additional streams the peer opens are closed
// and discarded, because a session uses exactly one stream for its
// lifetime.
type Driver struct {
	name     string
	stopChan chan struct{}
	doneChan chan struct{}
	stopFlag int32
}

// StartDriver launches the background loop. accept must block until the
// next inbound stream arrives and return an error once the connection is
// closed or failed; closing the multiplexing session is what unblocks a
// pending accept during teardown.
func StartDriver(name string, accept func() (io.Closer, error)) *Driver {
	d := &Driver{
		name:     name,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
	go d.run(accept)
	return d
}

func (d *Driver) run(accept func() (io.Closer, error)) {
	defer close(d.doneChan)
	log.Debug().Str("proto", d.name).Msg("connection driver started")
	for {
		stream, err := accept()
		if err != nil {
			log.Debug().Str("proto", d.name).Err(err).Msg("connection driver stopped")
			return
		}
		_ = stream.Close()
		select {
		case <-d.stopChan:
			return
		default:
		}
	}
}

// Stop signals the loop and waits up to timeout for it to exit. On
// timeout the driver is abandoned to finish on its own; teardown proceeds
// regardless, so callers treat the returned error as a report, not a veto.
func (d *Driver) Stop(timeout time.Duration) error {
	if !atomic.CompareAndSwapInt32(&d.stopFlag, 0, 1) {
		return nil
	}
	close(d.stopChan)
	select {
	case <-d.doneChan:
		return nil
	case <-time.After(timeout):
		return TransportError(nil, "%s driver did not exit within %s", d.name, timeout)
	}
}
