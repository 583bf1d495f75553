package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"flag"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/vsockio/virgo"
	"github.com/vsockio/virgo/config"
)

var (
	configFlag = flag.String("config", "", "Path to YAML client configuration")
	cidFlag    = flag.Uint("cid", config.DefaultServerCID, "Peer context id")
	portFlag   = flag.Uint("port", config.DefaultPort, "Peer port")
	protoFlag  = flag.String("proto", "yamux", "Session protocol (yamux, smux, framed)")
	sizeFlag   = flag.Uint("size", 512, "Payload size in bytes")
	debugFlag  = flag.Bool("debug", false, "Enable debug logging")
)

func main() {
	flag.Parse()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debugFlag {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	var (
		err error
		cfg *config.Client
	)
	if *configFlag != "" {
		if cfg, err = config.LoadClient(*configFlag); err != nil {
			log.Fatal().Err(err).Msg("load configuration")
		}
	} else {
		cfg = config.DefaultClient()
		cfg.PeerCID = uint32(*cidFlag)
		cfg.PeerPort = uint32(*portFlag)
		cfg.Protocol = *protoFlag
	}

	cli := virgo.NewClient(cfg)
	if err = cli.Connect(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("connect")
	}

	// Length-prefix convention: 8 bytes of big-endian length, then the
	// payload, echoed back the same way.
	payload := bytes.Repeat([]byte{1}, int(*sizeFlag))
	head := make([]byte, 8)
	binary.BigEndian.PutUint64(head, uint64(len(payload)))
	if _, err = cli.Write(head); err != nil {
		log.Fatal().Err(err).Msg("write length")
	}
	if _, err = cli.Write(payload); err != nil {
		log.Fatal().Err(err).Msg("write payload")
	}

	if _, err = cli.Read(head); err != nil {
		log.Fatal().Err(err).Msg("read length")
	}
	echo := make([]byte, binary.BigEndian.Uint64(head))
	n := 0
	for n < len(echo) {
		m, rerr := cli.Read(echo[n:])
		if rerr != nil {
			log.Fatal().Err(rerr).Msg("read payload")
		}
		n += m
	}
	log.Info().Int("bytes", n).Msg("echo received")

	if err = cli.Disconnect(); err != nil {
		log.Fatal().Err(err).Msg("disconnect")
	}
}
