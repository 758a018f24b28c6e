// Command wallcoord runs the video wall coordinator: it plays a playlist,
// ticks module schedules and broadcasts state to tiles over websockets.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/comalice/tilewall/internal/config"
	"github.com/comalice/tilewall/internal/coordinator"
	"github.com/comalice/tilewall/internal/logger"
	"github.com/comalice/tilewall/internal/production"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "wallcoord",
		Short:        "Video wall coordinator",
		SilenceUsage: true,
		RunE:         run,
	}
	fs := cmd.Flags()
	config.AddCommonFlags(fs)
	fs.String("addr", ":8080", "HTTP listen address")
	fs.String("playlist", "playlist.yaml", "playlist file (yaml or json)")
	fs.Duration("tick-rate", 0, "tick loop period (default 100ms)")
	fs.Duration("lead", 0, "time between announcing a module and showing it (default 5s)")
	fs.Duration("transition", 0, "transition duration (default 5s)")
	fs.Duration("time-interval", 0, "period of clock broadcasts (default 10s)")
	fs.Int("queue", 0, "per-tile send queue size")
	return cmd
}

func run(cmd *cobra.Command, _ []string) error {
	v, err := config.Load(cmd)
	if err != nil {
		return err
	}
	log, err := logger.New(v.GetString("log"), nil, nil)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	playlist, err := production.LoadPlaylist(v.GetString("playlist"))
	if err != nil {
		log.Error("failed to load playlist", zap.String("path", v.GetString("playlist")), zap.Error(err))
		return err
	}
	codec, err := production.CodecByName(v.GetString("codec"))
	if err != nil {
		return fmt.Errorf("%w (known: %v)", err, production.CodecNames())
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	c, err := coordinator.New(coordinator.Config{
		Addr:               v.GetString("addr"),
		Playlist:           playlist,
		Codec:              codec,
		TickRate:           v.GetDuration("tick-rate"),
		Lead:               v.GetDuration("lead"),
		TransitionDuration: v.GetDuration("transition"),
		TimeInterval:       v.GetDuration("time-interval"),
		QueueSize:          v.GetInt("queue"),
		Logger:             log,
		Registry:           registry,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return c.Run(ctx)
}
