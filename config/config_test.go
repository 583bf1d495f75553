package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vsockio/virgo/pkg/transport"
)

func TestDefaults(t *testing.T) {
	cli := DefaultClient()
	if cli.PeerCID != DefaultServerCID || cli.PeerPort != DefaultPort {
		t.Fatalf("unexpected client defaults: %+v", cli)
	}
	if cli.Protocol != transport.ProtoYamux {
		t.Fatalf("default protocol %q", cli.Protocol)
	}
	if err := cli.Validate(); err != nil {
		t.Fatalf("default client invalid: %v", err)
	}
	srv := DefaultServer()
	if srv.ListenCID != transport.CIDAny {
		t.Fatalf("server must bind wildcard cid by default, got %d", srv.ListenCID)
	}
	if err := srv.Validate(); err != nil {
		t.Fatalf("default server invalid: %v", err)
	}
}

func TestValidateRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		mut  func(cfg *Client)
	}{
		{"zero port", func(cfg *Client) { cfg.PeerPort = 0 }},
		{"zero frame size", func(cfg *Client) { cfg.FrameSize = 0 }},
		{"unknown protocol", func(cfg *Client) { cfg.Protocol = "udp" }},
	}
	for _, tt := range tests {
		cfg := DefaultClient()
		tt.mut(cfg)
		err := cfg.Validate()
		if err == nil {
			t.Errorf("%s: expected validation error", tt.name)
			continue
		}
		if transport.KindOf(err) != transport.KindConfig {
			t.Errorf("%s: expected config kind, got %v", tt.name, transport.KindOf(err))
		}
	}
}

func TestLoadClientYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.yaml")
	doc := []byte(`
peerCID: 2
peerPort: 4321
protocol: framed
frameSize: 4096
ack: true
dialAttempts: 3
dialDelay: 250ms
`)
	if err := os.WriteFile(path, doc, 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	cfg, err := LoadClient(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.PeerCID != 2 || cfg.PeerPort != 4321 || cfg.Protocol != "framed" {
		t.Fatalf("unexpected values: %+v", cfg)
	}
	if cfg.FrameSize != 4096 || !cfg.Ack || cfg.DialAttempts != 3 {
		t.Fatalf("unexpected values: %+v", cfg)
	}
	if cfg.DialDelay.Value() != 250*time.Millisecond {
		t.Fatalf("unexpected dial delay: %v", cfg.DialDelay.Value())
	}
}

func TestLoadServerRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	if err := os.WriteFile(path, []byte("listenPort: 0\n"), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, err := LoadServer(path); err == nil {
		t.Fatal("expected validation failure")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := LoadClient(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected io error")
	} else if transport.KindOf(err) != transport.KindIO {
		t.Fatalf("expected io kind, got %v", transport.KindOf(err))
	}
}
