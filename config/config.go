// Package config holds the immutable value objects consumed by the
// session facades. Values are validated for well-formedness only; no
// semantic negotiation with the peer happens here.
package config

import (
	"os"
	"time"

	"github.com/vsockio/virgo/pkg/transport"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultServerCID is the context id the client dials by default.
	DefaultServerCID = 103
	DefaultPort      = 1234
	DefaultFrameSize = 1024
)

// Duration parses human-readable YAML values such as "500ms" or "3s".
type Duration time.Duration

func (d Duration) Value() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var (
		s string
	)
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return transport.ConfigError(err, "invalid duration %q", s)
	}
	*d = Duration(v)
	return nil
}

type (
	Client struct {
		PeerCID      uint32   `json:"peer_cid" yaml:"peerCID"`
		PeerPort     uint32   `json:"peer_port" yaml:"peerPort"`
		Protocol     string   `json:"protocol" yaml:"protocol"`
		FrameSize    uint32   `json:"frame_size" yaml:"frameSize"`
		Ack          bool     `json:"ack" yaml:"ack"`
		Compress     bool     `json:"compress" yaml:"compress"`
		DialAttempts uint     `json:"dial_attempts" yaml:"dialAttempts"`
		DialDelay    Duration `json:"dial_delay" yaml:"dialDelay"`
	}

	Server struct {
		ListenCID      uint32 `json:"listen_cid" yaml:"listenCID"`
		ListenPort     uint32 `json:"listen_port" yaml:"listenPort"`
		Protocol       string `json:"protocol" yaml:"protocol"`
		FrameSize      uint32 `json:"frame_size" yaml:"frameSize"`
		Ack            bool   `json:"ack" yaml:"ack"`
		Compress       bool   `json:"compress" yaml:"compress"`
		MaxConnections int64  `json:"max_connections" yaml:"maxConnections"`
	}
)

func DefaultClient() *Client {
	return &Client{
		PeerCID:      DefaultServerCID,
		PeerPort:     DefaultPort,
		Protocol:     transport.ProtoYamux,
		FrameSize:    DefaultFrameSize,
		DialAttempts: 1,
	}
}

func DefaultServer() *Server {
	return &Server{
		ListenCID:  transport.CIDAny,
		ListenPort: DefaultPort,
		Protocol:   transport.ProtoYamux,
		FrameSize:  DefaultFrameSize,
	}
}

func validProtocol(proto string) bool {
	switch proto {
	case "", transport.ProtoYamux, transport.ProtoSmux, transport.ProtoFramed:
		return true
	}
	return false
}

func (cfg *Client) Validate() error {
	if cfg.PeerPort == 0 {
		return transport.ConfigError(nil, "peer port must not be zero")
	}
	if cfg.FrameSize == 0 {
		return transport.ConfigError(nil, "frame size must not be zero")
	}
	if !validProtocol(cfg.Protocol) {
		return transport.ConfigError(nil, "unknown protocol %q", cfg.Protocol)
	}
	return nil
}

func (cfg *Server) Validate() error {
	if cfg.ListenPort == 0 {
		return transport.ConfigError(nil, "listen port must not be zero")
	}
	if cfg.FrameSize == 0 {
		return transport.ConfigError(nil, "frame size must not be zero")
	}
	if !validProtocol(cfg.Protocol) {
		return transport.ConfigError(nil, "unknown protocol %q", cfg.Protocol)
	}
	if cfg.MaxConnections < 0 {
		return transport.ConfigError(nil, "max connections must not be negative")
	}
	return nil
}

// LoadClient reads a YAML client configuration, applying defaults for
// omitted fields.
func LoadClient(path string) (cfg *Client, err error) {
	var (
		buf []byte
	)
	cfg = DefaultClient()
	if buf, err = os.ReadFile(path); err != nil {
		return nil, transport.IOError(err)
	}
	if err = yaml.Unmarshal(buf, cfg); err != nil {
		return nil, transport.ConfigError(err, "parse %s", path)
	}
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return
}

// LoadServer reads a YAML server configuration, applying defaults for
// omitted fields.
func LoadServer(path string) (cfg *Server, err error) {
	var (
		buf []byte
	)
	cfg = DefaultServer()
	if buf, err = os.ReadFile(path); err != nil {
		return nil, transport.IOError(err)
	}
	if err = yaml.Unmarshal(buf, cfg); err != nil {
		return nil, transport.ConfigError(err, "parse %s", path)
	}
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return
}
