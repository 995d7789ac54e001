package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pfrederiksen/phivolcs-events/internal/logger"
	"github.com/pfrederiksen/phivolcs-events/internal/notifier"
	"github.com/pfrederiksen/phivolcs-events/internal/quake"
)

var (
	resultFile   = flag.String("result-file", "", "Path to sync JSON output (or read from stdin)")
	dryRun       = flag.Bool("dry-run", false, "Print tweets without posting")
	maxTweets    = flag.Int("max-tweets", 10, "Maximum number of tweets to post")
	minMagnitude = flag.Float64("min-magnitude", 4.0, "Only tweet records at or above this magnitude")
)

func main() {
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Stdin, os.Stdout); err != nil {
		logger.Error("Tweeting failed", logger.Fields{"result_file": *resultFile}, err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	// Read sync output from file or stdin
	reader := stdin
	if *resultFile != "" {
		f, err := os.Open(*resultFile)
		if err != nil {
			return fmt.Errorf("opening result file: %w", err)
		}
		defer f.Close()
		reader = f
	}

	records, err := readNewRecords(reader)
	if err != nil {
		return err
	}

	if len(records) == 0 {
		fmt.Fprintln(stdout, "No new records to tweet")
		return nil
	}

	records = notifier.FilterByMagnitude(records, *minMagnitude, *maxTweets)
	if len(records) == 0 {
		fmt.Fprintln(stdout, "No records match criteria")
		return nil
	}

	// Initialize Twitter client
	var tw notifier.Notifier
	if *dryRun {
		tw = notifier.NewDryRunNotifier(stdout)
		fmt.Fprintf(stdout, "DRY RUN MODE - Would tweet %d records:\n\n", len(records))
	} else {
		client, err := notifier.NewTwitterNotifier()
		if err != nil {
			return fmt.Errorf("initializing Twitter client: %w", err)
		}
		tw = client
	}

	// Post tweets
	if err := tw.Notify(ctx, records); err != nil {
		return fmt.Errorf("posting tweets: %w", err)
	}

	if !*dryRun {
		logger.Info("Tweets posted", logger.Fields{"count": len(records)})
		fmt.Fprintf(stdout, "Successfully posted %d tweets\n", len(records))
	}
	return nil
}

// readNewRecords decodes the new_records list of a `phivolcs-events sync --format json` run
func readNewRecords(r io.Reader) ([]*quake.Record, error) {
	var result struct {
		NewRecords []*quake.Record `json:"new_records"`
	}

	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&result); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	return result.NewRecords, nil
}
