package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/skshohagmiah/chanpool/internal/config"
	"github.com/skshohagmiah/chanpool/internal/logging"
	chnet "github.com/skshohagmiah/chanpool/internal/net"
)

const version = "1.0.0"

func main() {
	fs := pflag.NewFlagSet("chanpool", pflag.ExitOnError)
	configPath := fs.StringP("config", "c", "", "path to a YAML config file")
	connect := fs.Bool("connect", false, "start connecting each channel instead of leaving it idle")
	hold := fs.Bool("hold", false, "keep channels open until SIGINT/SIGTERM")
	showVersion := fs.BoolP("version", "v", false, "print version and exit")
	config.RegisterFlags(fs)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: chanpool [flags] <host:port>...\n\nFlags:\n%s", fs.FlagUsages())
	}
	fs.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("chanpool %s\n", version)
		return
	}

	if fs.NArg() == 0 {
		fs.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath, fs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.Setup(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	log.Debug().Stringer("config", cfg).Msg("loaded configuration")

	pool, err := chnet.NewChannelPool(cfg.PoolOptions(&logger))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create channel pool")
	}

	failed := 0
	for _, address := range fs.Args() {
		ch, err := pool.GetChannel(address)
		if err != nil {
			log.Error().Err(err).Str("address", address).Msg("failed to get channel")
			failed++
			continue
		}

		if *connect {
			ch.Conn().Connect()
		}

		log.Info().
			Str("address", ch.Address()).
			Str("target", ch.Target()).
			Str("channel_id", ch.ID()).
			Str("state", ch.State().String()).
			Int("max_frame_size", ch.Options().MaxFrameSize).
			Msg("channel ready")
	}

	if *hold {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		log.Info().Int("channels", pool.Len()).Msg("holding channels, press Ctrl+C to close")
		<-ctx.Done()
		cancel()
	}

	pool.Close()
	stats := pool.Stats()
	log.Info().
		Uint64("built", stats.Built).
		Uint64("shutdown_timeouts", stats.ShutdownTimeouts).
		Msg("shut down")

	if failed > 0 {
		os.Exit(1)
	}
}
