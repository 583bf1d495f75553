package virgo

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/vsockio/virgo/config"
	"github.com/vsockio/virgo/pkg/transport"
)

func tcpDialer(addr string) transport.Dialer {
	return func(ctx context.Context, cid, port uint32) (net.Conn, error) {
		var (
			d net.Dialer
		)
		return d.DialContext(ctx, "tcp", addr)
	}
}

func startEchoManager(t *testing.T, proto string) (mgr *Manager, addr string) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	cfg := config.DefaultServer()
	cfg.Protocol = proto
	cfg.MaxConnections = 4
	mgr = NewManager(cfg, WithListener(l))
	if err = mgr.Start(); err != nil {
		t.Fatalf("start manager: %v", err)
	}
	go func() {
		_ = mgr.RunEcho(context.Background())
	}()
	t.Cleanup(func() {
		_ = mgr.Stop()
	})
	return mgr, l.Addr().String()
}

func echoClient(t *testing.T, proto, addr string) *Client {
	t.Helper()
	cfg := config.DefaultClient()
	cfg.Protocol = proto
	cli := NewClient(cfg, transport.WithDialer(tcpDialer(addr)))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := cli.Connect(ctx); err != nil {
		t.Fatalf("connect %s: %v", proto, err)
	}
	return cli
}

func TestEchoRoundTrip(t *testing.T) {
	for _, proto := range []string{transport.ProtoFramed, transport.ProtoYamux, transport.ProtoSmux} {
		t.Run(proto, func(t *testing.T) {
			_, addr := startEchoManager(t, proto)
			cli := echoClient(t, proto, addr)

			payload := bytes.Repeat([]byte{0xA5}, 512)
			if _, err := cli.Write(payload); err != nil {
				t.Fatalf("write: %v", err)
			}
			got := make([]byte, 0, len(payload))
			buf := make([]byte, 64)
			for len(got) < len(payload) {
				n, err := cli.Read(buf)
				if err != nil {
					t.Fatalf("read after %d bytes: %v", len(got), err)
				}
				got = append(got, buf[:n]...)
			}
			if !bytes.Equal(got, payload) {
				t.Fatal("echoed payload mismatch")
			}
			if cli.HasPendingData() {
				t.Fatal("pending data after full drain")
			}
			if err := cli.Disconnect(); err != nil {
				t.Fatalf("disconnect: %v", err)
			}
		})
	}
}

func TestWholeMessageEchoFramed(t *testing.T) {
	_, addr := startEchoManager(t, transport.ProtoFramed)
	cli := echoClient(t, transport.ProtoFramed, addr)

	payload := bytes.Repeat([]byte{0x5C}, 512)
	if _, err := cli.SendMessage(payload); err != nil {
		t.Fatalf("send message: %v", err)
	}
	got, err := cli.ReceiveMessage()
	if err != nil {
		t.Fatalf("receive message: %v", err)
	}
	if len(got) != 512 || !bytes.Equal(got, payload) {
		t.Fatalf("echo mismatch: %d bytes", len(got))
	}
	if err = cli.Disconnect(); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
}

func TestAcceptAfterStop(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	mgr := NewManager(config.DefaultServer(), WithListener(l))
	if err = mgr.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !mgr.IsRunning() {
		t.Fatal("manager not running after start")
	}
	if err = mgr.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if mgr.IsRunning() {
		t.Fatal("manager running after stop")
	}
	if _, err = mgr.Accept(context.Background()); err == nil {
		t.Fatal("accept after stop must fail")
	}
}

func TestManagerValidatesConfig(t *testing.T) {
	cfg := config.DefaultServer()
	cfg.Protocol = "carrier-pigeon"
	mgr := NewManager(cfg)
	if err := mgr.Start(); err == nil {
		t.Fatal("expected config validation failure")
	} else if transport.KindOf(err) != transport.KindConfig {
		t.Fatalf("expected config kind, got %v", transport.KindOf(err))
	}
}
