package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gogpu/ggar/handoff"
	"github.com/gogpu/ggar/server"
	"github.com/gogpu/ggar/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the handoff API and AR viewer",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := cfg.Store.Open()
		if err != nil {
			return err
		}
		defer st.Close()

		comp, err := cfg.Compose.Compositor()
		if err != nil {
			return err
		}
		enc, err := handoff.NewEncoder(cfg.QR)
		if err != nil {
			return err
		}
		srv := server.New(handoff.NewService(st, enc, cfg.Server.BaseURL), comp)

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return srv.Run(ctx, cfg.Server)
		})
		g.Go(func() error {
			err := store.NewSweeper(st, cfg.Store.SweepInterval, cfg.Store.MaxAge).Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
		return g.Wait()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
