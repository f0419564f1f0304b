package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Hooolee/novel-splitter/events"
	"github.com/Hooolee/novel-splitter/server"
)

type serveArgs struct {
	Addr string
}

var sArgs serveArgs

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the UI command surface and event stream over HTTP",
	Long:  "Serve the UI command surface and event stream over HTTP",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&sArgs.Addr, "addr", "a", "", "listen address, overrides server.addr")
	RootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if sArgs.Addr != "" {
		appConfig.Server.Addr = sArgs.Addr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	worker := newWorker(appConfig)
	defer worker.Close()

	hub := events.NewHub(0)
	srv := server.New(server.Deps{
		Config:   appConfig,
		Hub:      hub,
		Renderer: worker,
		Logger:   slog.Default(),
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(ctx)
	})
	g.Go(func() error {
		mirrorEvents(ctx, hub, events.LogEmitter{Logger: slog.Default()})
		return nil
	})
	return g.Wait()
}

// mirrorEvents copies every hub message to e until ctx is done.
func mirrorEvents(ctx context.Context, hub *events.Hub, e events.Emitter) {
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-ch:
			e.Emit(msg.Name, msg.Payload)
		}
	}
}
