package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/driftwood-engine/driftwood/config"
)

func main() {
	configPath := flag.String("config", "", "path to engine config yaml")
	ticks := flag.Int("ticks", 0, "stop after this many ticks (0 runs until interrupted)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := cfg.BuildLogger()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	game, err := NewGame(cfg, log)
	if err != nil {
		log.Fatal("setup failed", zap.Error(err))
	}
	defer game.Close()

	if err := game.Run(ctx, *ticks); err != nil {
		log.Fatal("run failed", zap.Error(err))
	}
}
