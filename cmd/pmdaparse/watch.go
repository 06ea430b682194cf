package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgallion1/pmdaparse/internal/pipeline"
)

func newWatchCmd() *cobra.Command {
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Extract new or changed package inserts under dir into the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(os.Stdout)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := newApp(cfg, cfg.DBPath, log)
			if err != nil {
				return err
			}
			defer rt.Close()

			disc, err := pipeline.NewDiscovery(args[0], cfg.Include, cfg.Ignore)
			if err != nil {
				return err
			}
			w, err := pipeline.NewWatcher(disc, rt.worker, log)
			if err != nil {
				return err
			}
			w.SetDebounce(debounce)
			w.Start(ctx)
			defer w.Stop()

			log.Info("watching", "root", disc.Root(), "db", cfg.DBPath)
			<-ctx.Done()
			log.Info("shutting down...")
			return nil
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", pipeline.DefaultDebounce, "quiet period before processing changed files")
	return cmd
}
