package virgo

import (
	"context"

	retry "github.com/avast/retry-go"
	"github.com/rs/zerolog/log"
	"github.com/vsockio/virgo/config"
	"github.com/vsockio/virgo/pkg/transport"
)

// Client is the connect-side facade: one Client drives one session. A
// disconnected Client is terminal; construct a new one to reconnect.
type Client struct {
	*Session
	cfg  *config.Client
	opts []transport.Option
}

// NewClient builds a client from cfg. Extra transport options (for
// example a custom dialer) are appended after those derived from cfg.
func NewClient(cfg *config.Client, cbs ...transport.Option) *Client {
	if cfg == nil {
		cfg = config.DefaultClient()
	}
	return &Client{
		Session: newSession(nil),
		cfg:     cfg,
		opts:    cbs,
	}
}

func (cli *Client) transportOptions() []transport.Option {
	opts := []transport.Option{
		transport.WithFrameSize(cli.cfg.FrameSize),
		transport.WithAcknowledge(cli.cfg.Ack),
	}
	if cli.cfg.Compress {
		opts = append(opts, transport.WithCompress())
	}
	return append(opts, cli.opts...)
}

// Connect establishes the session as the connection initiator, retrying
// the dial per the configured attempt budget.
func (cli *Client) Connect(ctx context.Context) (err error) {
	if cli.connected {
		return transport.OtherError(nil, "already connected")
	}
	if err = cli.cfg.Validate(); err != nil {
		return
	}
	tr := newTransport(cli.cfg.Protocol, cli.transportOptions()...)
	attempts := cli.cfg.DialAttempts
	if attempts == 0 {
		attempts = 1
	}
	if err = retry.Do(
		func() error {
			return tr.Connect(ctx, cli.cfg.PeerCID, cli.cfg.PeerPort)
		},
		retry.Attempts(attempts),
		retry.Delay(cli.cfg.DialDelay.Value()),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	); err != nil {
		return
	}
	cli.tr = tr
	cli.connected = true
	log.Info().
		Str("session", cli.id).
		Str("proto", cli.cfg.Protocol).
		Uint32("cid", cli.cfg.PeerCID).
		Uint32("port", cli.cfg.PeerPort).
		Msg("client connected")
	return
}
