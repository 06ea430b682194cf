package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/dgallion1/pmdaparse/internal/config"
	"github.com/dgallion1/pmdaparse/internal/extract"
	"github.com/dgallion1/pmdaparse/internal/pipeline"
	"github.com/dgallion1/pmdaparse/internal/report"
)

type extractOptions struct {
	output  string
	dbPath  string
	workers int
	quiet   bool
}

func newExtractCmd() *cobra.Command {
	var opts extractOptions
	cmd := &cobra.Command{
		Use:   "extract <dir>",
		Short: "Extract every package insert under dir into a JSON array",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if opts.workers > 0 {
				cfg.WorkerCount = opts.workers
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			if opts.output != "" && opts.output != "-" {
				f, err := os.Create(opts.output)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer f.Close()
				out = f
			}

			summary, err := runExtract(ctx, cfg, log, args[0], opts, out, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), summary.Markdown())
			return nil
		},
	}
	cmd.Flags().StringVarP(&opts.output, "output", "o", "-", "output file (- for stdout)")
	cmd.Flags().StringVar(&opts.dbPath, "db", "", "also store records in this SQLite database, skipping stored files")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "override worker_count")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "disable the progress bar")
	return cmd
}

// runExtract discovers, processes and writes the medicines of dir in
// discovery order.
func runExtract(ctx context.Context, cfg config.Config, log *slog.Logger, dir string, opts extractOptions, out, progress io.Writer) (report.Summary, error) {
	start := time.Now()

	disc, err := pipeline.NewDiscovery(dir, cfg.Include, cfg.Ignore)
	if err != nil {
		return report.Summary{}, err
	}
	inputs, dups, err := disc.Discover()
	if err != nil {
		return report.Summary{}, err
	}
	log.Info("discovered files", "root", dir, "files", len(inputs), "duplicates", dups)

	rt, err := newApp(cfg, opts.dbPath, log)
	if err != nil {
		return report.Summary{}, err
	}
	defer rt.Close()

	var onResult func(pipeline.Result)
	if !opts.quiet && len(inputs) > 0 {
		bar := progressbar.NewOptions(len(inputs),
			progressbar.OptionSetWriter(progress),
			progressbar.OptionSetDescription("Extracting files"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("files/s"),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprintln(progress)
			}),
		)
		onResult = func(pipeline.Result) { bar.Add(1) }
	}

	results, runErr := rt.orchestrator(cfg, log).Run(ctx, inputs, onResult)

	medicines := []extract.Medicine{}
	for _, r := range results {
		medicines = append(medicines, r.Medicines...)
	}
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(medicines); err != nil {
		return report.Summary{}, fmt.Errorf("write output: %w", err)
	}

	summary := pipeline.Summarize(results, dups, time.Since(start))
	if runErr != nil {
		return summary, runErr
	}
	return summary, nil
}
