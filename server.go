package virgo

import (
	"context"
	"errors"
	"net"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
	"github.com/vsockio/virgo/config"
	"github.com/vsockio/virgo/pkg/transport"
	"golang.org/x/sync/semaphore"
)

// Server is the accept-side facade handed out by a Manager, one per
// established connection. It shares the Session data surface with
// Client.
type Server struct {
	*Session
}

type (
	ManagerOption func(mgr *Manager)

	// Manager binds the listen address and turns each accepted raw
	// socket into one connected Server facade.
	Manager struct {
		cfg       *config.Server
		listener  net.Listener
		waitGroup conc.WaitGroup
		sem       *semaphore.Weighted
		running   int32
	}
)

// WithListener substitutes an already-bound listener for the vsock bind;
// tests use loopback TCP listeners.
func WithListener(l net.Listener) ManagerOption {
	return func(mgr *Manager) {
		mgr.listener = l
	}
}

func NewManager(cfg *config.Server, cbs ...ManagerOption) *Manager {
	if cfg == nil {
		cfg = config.DefaultServer()
	}
	mgr := &Manager{cfg: cfg}
	for _, cb := range cbs {
		cb(mgr)
	}
	return mgr
}

// Start validates the configuration and binds the listen address.
func (mgr *Manager) Start() (err error) {
	if err = mgr.cfg.Validate(); err != nil {
		return
	}
	if mgr.listener == nil {
		if mgr.listener, err = transport.Listen(mgr.cfg.ListenCID, mgr.cfg.ListenPort); err != nil {
			return
		}
	}
	if mgr.cfg.MaxConnections > 0 {
		mgr.sem = semaphore.NewWeighted(mgr.cfg.MaxConnections)
	}
	atomic.StoreInt32(&mgr.running, 1)
	log.Info().
		Uint32("cid", mgr.cfg.ListenCID).
		Uint32("port", mgr.cfg.ListenPort).
		Str("proto", mgr.cfg.Protocol).
		Msg("manager listening")
	return
}

func (mgr *Manager) IsRunning() bool {
	return atomic.LoadInt32(&mgr.running) == 1
}

func (mgr *Manager) transportOptions() []transport.Option {
	opts := []transport.Option{
		transport.WithFrameSize(mgr.cfg.FrameSize),
		transport.WithAcknowledge(mgr.cfg.Ack),
	}
	if mgr.cfg.Compress {
		opts = append(opts, transport.WithCompress())
	}
	return opts
}

// Accept blocks for the next raw connection and initializes protocol
// state over it, operating as the connection acceptor.
func (mgr *Manager) Accept(ctx context.Context) (srv *Server, err error) {
	if !mgr.IsRunning() {
		return nil, transport.OtherError(nil, "manager not running")
	}
	if err = ctx.Err(); err != nil {
		return nil, transport.ConnectionError(err, "accept")
	}
	var (
		conn net.Conn
	)
	if conn, err = mgr.listener.Accept(); err != nil {
		return nil, transport.ConnectionError(err, "accept")
	}
	tr := newTransport(mgr.cfg.Protocol, mgr.transportOptions()...)
	if err = tr.AcceptFrom(conn); err != nil {
		_ = conn.Close()
		return
	}
	srv = &Server{Session: newSession(tr)}
	srv.connected = true
	log.Info().Str("session", srv.id).Msg("connection accepted")
	return
}

// Run drives the accept loop, invoking handler on its own goroutine for
// every established connection. MaxConnections bounds how many handlers
// run at once. Run returns after Stop closes the listener and all
// handlers have finished.
func (mgr *Manager) Run(ctx context.Context, handler func(srv *Server)) (err error) {
	if !mgr.IsRunning() {
		if err = mgr.Start(); err != nil {
			return
		}
	}
	defer mgr.waitGroup.Wait()
	for {
		srv, aerr := mgr.Accept(ctx)
		if aerr != nil {
			if !mgr.IsRunning() || errors.Is(aerr, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			log.Warn().Err(aerr).Msg("accept failed")
			continue
		}
		if mgr.sem != nil {
			if err = mgr.sem.Acquire(ctx, 1); err != nil {
				_ = srv.Disconnect()
				return nil
			}
		}
		mgr.waitGroup.Go(func() {
			defer func() {
				if mgr.sem != nil {
					mgr.sem.Release(1)
				}
			}()
			handler(srv)
		})
	}
}

// RunEcho serves every connection with a whole-message echo loop until
// the peer disconnects.
func (mgr *Manager) RunEcho(ctx context.Context) error {
	return mgr.Run(ctx, func(srv *Server) {
		for {
			data, err := srv.ReceiveMessage()
			if err != nil {
				break
			}
			if _, err = srv.SendMessage(data); err != nil {
				break
			}
		}
		if srv.IsConnected() {
			_ = srv.Disconnect()
		}
	})
}

// Stop closes the listener and waits for running handlers. Accept calls
// made after Stop report not running.
func (mgr *Manager) Stop() (err error) {
	if !atomic.CompareAndSwapInt32(&mgr.running, 1, 0) {
		return
	}
	if mgr.listener != nil {
		err = mgr.listener.Close()
	}
	mgr.waitGroup.Wait()
	return
}
