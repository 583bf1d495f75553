package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/vsockio/virgo"
	"github.com/vsockio/virgo/config"
)

var (
	configFlag = flag.String("config", "", "Path to YAML server configuration")
	portFlag   = flag.Uint("port", config.DefaultPort, "Listen port")
	protoFlag  = flag.String("proto", "yamux", "Session protocol (yamux, smux, framed)")
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
		cfg *config.Server
	)
	if *configFlag != "" {
		if cfg, err = config.LoadServer(*configFlag); err != nil {
			log.Fatal().Err(err).Msg("load configuration")
		}
	} else {
		cfg = config.DefaultServer()
		cfg.ListenPort = uint32(*portFlag)
		cfg.Protocol = *protoFlag
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	mgr := virgo.NewManager(cfg)
	if err = mgr.Start(); err != nil {
		log.Fatal().Err(err).Msg("start manager")
	}
	go func() {
		<-ctx.Done()
		_ = mgr.Stop()
	}()
	if err = mgr.RunEcho(ctx); err != nil {
		log.Fatal().Err(err).Msg("serve")
	}
}
