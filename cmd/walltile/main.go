// Command walltile runs a headless tile: it follows a coordinator, mirrors
// its state and logs the frames it would draw.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/comalice/tilewall/internal/config"
	"github.com/comalice/tilewall/internal/extensibility"
	"github.com/comalice/tilewall/internal/logger"
	"github.com/comalice/tilewall/internal/primitives"
	"github.com/comalice/tilewall/internal/production"
	"github.com/comalice/tilewall/internal/tile"
	"github.com/google/uuid"
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
		Use:          "walltile",
		Short:        "Headless video wall tile",
		SilenceUsage: true,
		RunE:         run,
	}
	fs := cmd.Flags()
	config.AddCommonFlags(fs)
	fs.String("url", "ws://localhost:8080/ws", "coordinator websocket url")
	fs.String("id", "", "tile id (default random)")
	fs.Duration("frame-rate", 0, "frame period (default 16ms)")
	fs.Duration("max-backoff", 0, "reconnect backoff cap (default 10s)")
	fs.StringSlice("filter", nil, `message filter such as "type != time"; repeatable`)
	fs.Bool("render-log", false, "log every frame at debug level")
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

	codec, err := production.CodecByName(v.GetString("codec"))
	if err != nil {
		return err
	}
	filters, err := extensibility.ParseFilters(v.GetStringSlice("filter"))
	if err != nil {
		return err
	}
	id := v.GetString("id")
	if id == "" {
		id = uuid.NewString()
	}

	renderers := tile.Renderers{}
	if v.GetBool("render-log") {
		renderers = append(renderers, tile.LogRenderer{Log: log.Named("render")})
	}

	t := tile.New(tile.Config{
		ID:        id,
		Logger:    log,
		Renderer:  renderers,
		FrameRate: v.GetDuration("frame-rate"),
		Filters:   filters,
	})
	client, err := production.NewTileClient(production.TileClientConfig{
		URL:        v.GetString("url"),
		TileID:     id,
		Codec:      codec,
		Logger:     log,
		MaxBackoff: v.GetDuration("max-backoff"),
		OnDisconnect: func(err error) {
			log.Warn("disconnected from coordinator", zap.Error(err))
		},
	}, func(msg primitives.Message) { t.Deliver(msg) })
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() { errCh <- t.Run(ctx) }()
	go func() { errCh <- client.Run(ctx) }()

	err = <-errCh
	stop()
	<-errCh
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
