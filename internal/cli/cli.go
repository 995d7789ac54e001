package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/pfrederiksen/phivolcs-events/internal/config"
	"github.com/pfrederiksen/phivolcs-events/internal/dataset"
	"github.com/pfrederiksen/phivolcs-events/internal/logger"
	"github.com/pfrederiksen/phivolcs-events/internal/metrics"
	"github.com/pfrederiksen/phivolcs-events/internal/quake"
	"github.com/pfrederiksen/phivolcs-events/internal/scraper"
	"github.com/pfrederiksen/phivolcs-events/internal/storage"
	"github.com/pfrederiksen/phivolcs-events/internal/syncer"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	ExitSuccess = 0
	ExitError   = 1
)

// app carries the state shared by the commands of one invocation
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	runID   string
	closers []io.Closer
	now     func() time.Time
	stderr  io.Writer
}

// NewRootCmd creates the root command. Running it without a subcommand performs a sync.
func NewRootCmd() *cobra.Command {
	a := &app{now: time.Now, stderr: os.Stderr}
	return newRootCmd(a)
}

func newRootCmd(a *app) *cobra.Command {
	sync := newSyncCmd(a)

	cmd := &cobra.Command{
		Use:   "phivolcs-events",
		Short: "Incrementally archive PHIVOLCS earthquake listings",
		Long: `A CLI tool that archives the PHIVOLCS latest earthquakes listing into monthly CSV files.
Each run appends only records that are not stored yet, routing every record to the
month it occurred in.`,
		Args:               cobra.NoArgs,
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
		RunE:               sync.RunE,
	}

	config.AddFlags(cmd)
	addSyncFlags(cmd)

	cmd.AddCommand(sync, newStatsCmd(a), newPartitionCmd(a), newCombineCmd(a))
	return cmd
}

// setup resolves configuration and the run logger before any command runs
func (a *app) setup(cmd *cobra.Command, args []string) error {
	v := viper.New()
	if err := config.BindFlags(v, cmd); err != nil {
		return err
	}
	cfgFile, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	var out io.Writer = a.stderr
	if cfg.LogFile != "" {
		w, closer, err := logger.OpenFile(cfg.LogFile, a.stderr)
		if err != nil {
			return err
		}
		out = w
		a.closers = append(a.closers, closer)
	}

	a.runID = uuid.NewString()
	a.log = logger.New(cfg.Level(), out).With(logger.Fields{
		"run_id":  a.runID,
		"command": cmd.Name(),
	})
	logger.SetDefault(a.log)
	return nil
}

func (a *app) teardown(cmd *cobra.Command, args []string) error {
	for _, c := range a.closers {
		c.Close()
	}
	a.closers = nil
	return nil
}

func (a *app) format() OutputFormat {
	return OutputFormat(a.cfg.Format)
}

func (a *app) storage() (*storage.Storage, error) {
	return storage.New(a.cfg.DataDir, a.cfg.FilePrefix)
}

func addSyncFlags(cmd *cobra.Command) {
	cmd.Flags().String("sort", string(SortBySource), "Sort new records: source, time or magnitude")
	cmd.Flags().Bool("verbose", false, "Show run details, skipped rows and record keys")
}

func newSyncCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch the latest listing and append new records to the monthly files",
		Args:  cobra.NoArgs,
		RunE:  a.runSync,
	}
	addSyncFlags(cmd)
	return cmd
}

// runSync is the main command logic
func (a *app) runSync(cmd *cobra.Command, args []string) error {
	sortFlag, _ := cmd.Flags().GetString("sort")
	verbose, _ := cmd.Flags().GetBool("verbose")

	order, err := ParseSortOrder(sortFlag)
	if err != nil {
		return err
	}

	started := a.now()
	rec := metrics.New()

	report, err := a.sync(cmd.Context(), rec, started)

	rec.ObserveRun(a.now().Sub(started), err == nil, a.now())
	if mErr := rec.WriteTextfile(a.cfg.MetricsFile); mErr != nil {
		a.log.Warn("Could not write metrics", logger.Fields{"file": a.cfg.MetricsFile, "error": mErr.Error()})
	}

	if err != nil {
		if report == nil {
			a.log.Error("Run failed", nil, err)
			return err
		}
		// Partitions appended before the failure stay appended; report them
		a.log.Error("Run failed", logger.Fields{
			"appended":   report.Appended,
			"partitions": len(report.Partitions),
		}, err)
		sortRecords(report.NewRecords, order)
		if wErr := WriteSync(cmd.OutOrStdout(), report, a.format(), verbose); wErr != nil {
			a.log.Warn("Could not write run summary", logger.Fields{"error": wErr.Error()})
		}
		return err
	}

	sortRecords(report.NewRecords, order)

	a.log.Info("Run complete", logger.Fields{
		"candidates": report.Candidates,
		"appended":   report.Appended,
		"duplicates": report.Duplicates,
		"skipped":    len(report.Skipped),
		"duration":   a.now().Sub(started).String(),
	})

	if err := WriteSync(cmd.OutOrStdout(), report, a.format(), verbose); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}

func (a *app) sync(ctx context.Context, rec *metrics.Recorder, started time.Time) (*SyncReport, error) {
	store, err := a.storage()
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}

	sc := scraper.New(
		scraper.WithURL(a.cfg.SourceURL),
		scraper.WithTimeout(a.cfg.Timeout),
		scraper.WithUserAgent(a.cfg.UserAgent),
		scraper.WithInsecureSkipVerify(a.cfg.InsecureSkipVerify),
		scraper.WithLogger(a.log),
	)
	sy := syncer.New(store,
		syncer.WithLogger(a.log),
		syncer.WithMetrics(rec),
		syncer.WithChronological(a.cfg.Chronological),
	)

	report := &SyncReport{
		RunID:     a.runID,
		CheckedAt: started.UTC(),
		Source:    sc.URL(),
		DataDir:   store.DataDir(),
	}

	if a.cfg.EnsureCurrent {
		created, err := sy.StartPartition(started)
		if err != nil {
			return nil, err
		}
		if created {
			report.StartedPartition = quake.CurrentPartitionKey(started).String()
		}
	}

	a.log.Debug("Fetching listing", logger.Fields{"url": sc.URL()})
	rows, err := sc.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching listing: %w", err)
	}

	result, err := sy.Sync(ctx, rows)
	if result != nil {
		report.Result = *result
	}
	if err != nil {
		if result == nil || result.Appended == 0 {
			return nil, fmt.Errorf("syncing partitions: %w", err)
		}
		return report, fmt.Errorf("syncing partitions: %w", err)
	}
	return report, nil
}

func newStatsCmd(a *app) *cobra.Command {
	var (
		partition string
		all       bool
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show row count and date range of a partition, or a summary of all partitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.storage()
			if err != nil {
				return fmt.Errorf("initializing storage: %w", err)
			}

			if all {
				combined, err := dataset.Combine(store)
				if err != nil {
					return fmt.Errorf("reading partitions: %w", err)
				}
				return WriteSummary(cmd.OutOrStdout(), &SummaryReport{
					Dataset: combined,
					Summary: dataset.Summarize(combined.Entries),
				}, a.format())
			}

			key := quake.CurrentPartitionKey(a.now())
			if partition != "" {
				k, ok := quake.ParsePartitionFileName("_" + partition + ".csv")
				if !ok {
					return fmt.Errorf("invalid partition: %s (expected YYYY_MM)", partition)
				}
				key = k
			}

			stats, err := dataset.PartitionStats(store, key)
			if err != nil {
				return fmt.Errorf("reading partition: %w", err)
			}
			return WriteStats(cmd.OutOrStdout(), stats, a.format())
		},
	}

	cmd.Flags().StringVar(&partition, "partition", "", "Partition to inspect as YYYY_MM (default: current month)")
	cmd.Flags().BoolVar(&all, "all", false, "Summarize every partition instead of one")
	return cmd
}

func newPartitionCmd(a *app) *cobra.Command {
	var year int

	cmd := &cobra.Command{
		Use:   "partition MASTER_CSV",
		Short: "Split a master CSV into the monthly files without overwriting existing rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening master file: %w", err)
			}
			defer f.Close()

			store, err := a.storage()
			if err != nil {
				return fmt.Errorf("initializing storage: %w", err)
			}
			sy := syncer.New(store, syncer.WithLogger(a.log))

			result, err := dataset.Split(cmd.Context(), f, sy, year)
			if err != nil {
				a.log.Error("Partitioning failed", logger.Fields{"file": args[0]}, err)
				return err
			}
			a.log.Info("Master file partitioned", logger.Fields{
				"file":     args[0],
				"rows":     result.Rows,
				"appended": result.Sync.Appended,
			})
			return WriteSplit(cmd.OutOrStdout(), result, a.format())
		},
	}

	cmd.Flags().IntVar(&year, "year", 0, "Only keep rows from this year (default: all years)")
	return cmd
}

func newCombineCmd(a *app) *cobra.Command {
	var (
		output   string
		compress bool
	)

	cmd := &cobra.Command{
		Use:   "combine",
		Short: "Merge all monthly files into one deduplicated CSV, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.storage()
			if err != nil {
				return fmt.Errorf("initializing storage: %w", err)
			}

			combined, err := dataset.Combine(store)
			if err != nil {
				return fmt.Errorf("reading partitions: %w", err)
			}
			if len(combined.Entries) == 0 {
				return errors.New("no records found in any partition")
			}

			if output == "" {
				output = filepath.Join(store.DataDir(), dataset.OutputName(a.cfg.FilePrefix, a.now(), compress))
			}
			if err := writeCombined(output, combined, compress); err != nil {
				return err
			}

			a.log.Info("Combined dataset saved", logger.Fields{
				"file":       output,
				"records":    len(combined.Entries),
				"duplicates": combined.Duplicates,
			})
			return WriteSummary(cmd.OutOrStdout(), &SummaryReport{
				Output:  output,
				Dataset: combined,
				Summary: dataset.Summarize(combined.Entries),
			}, a.format())
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: <data-dir>/<prefix>_complete_YYYYMMDD_HHMM.csv)")
	cmd.Flags().BoolVar(&compress, "zstd", false, "Compress the output with zstd")
	return cmd
}

func writeCombined(path string, combined *dataset.Combined, compress bool) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	if err := dataset.WriteCSV(f, combined.Entries, compress); err != nil {
		f.Close()
		return fmt.Errorf("writing output: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing output: %w", err)
	}
	return nil
}

// Execute runs the CLI and returns the process exit code
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitError
	}
	return ExitSuccess
}
