package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/harun/cortex/internal/tracing"
	"github.com/spf13/cobra"
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize [date]",
	Short: "Summarize one day of notes into memory records",
	Long: `Summarize a day's note file into discrete memories, embed them, and
commit them to the store. Re-running a day is safe; memories that
already exist are skipped. The date uses the YYYY-MM-DD format and
defaults to today.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSummarize,
}

func init() {
	rootCmd.AddCommand(summarizeCmd)
}

func runSummarize(cmd *cobra.Command, args []string) error {
	date := time.Now().Format("2006-01-02")
	if len(args) == 1 {
		date = args[0]
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := buildLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Close()

	if err := tracing.InitOpenTelemetry(); err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracing")
	}
	defer tracing.ShutdownOpenTelemetry(context.Background())
	initJournal(cfg, log)

	store, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	ingestor, err := buildIngestor(cfg, log, store)
	if err != nil {
		return err
	}

	ctx := tracing.NewCommandContext(context.Background())
	report, err := ingestor.SummarizeDay(ctx, date)
	if err != nil {
		return fmt.Errorf("summarize failed: %w", err)
	}

	fmt.Printf("Summarized %s (run %s)\n", report.Date, report.RunID)
	fmt.Printf("  Entries:    %d\n", report.Entries)
	fmt.Printf("  Candidates: %d\n", report.Candidates)
	fmt.Printf("  Committed:  %d\n", report.Ready)
	if report.Pending > 0 {
		fmt.Printf("  Pending:    %d (embed later with: cortex reembed)\n", report.Pending)
	}
	if report.SkippedNoise > 0 {
		fmt.Printf("  Noise:      %d skipped\n", report.SkippedNoise)
	}
	if report.SkippedDuplicate > 0 {
		fmt.Printf("  Duplicates: %d skipped\n", report.SkippedDuplicate)
	}
	if report.Dropped > 0 {
		fmt.Printf("  Dropped:    %d invalid\n", report.Dropped)
	}

	return nil
}
