package cli

import (
	"context"
	"fmt"

	"github.com/harun/cortex/internal/tracing"
	"github.com/spf13/cobra"
)

var reembedCmd = &cobra.Command{
	Use:   "reembed",
	Short: "Embed pending memory records",
	Long: `Retry embedding for records that were committed as pending because the
embedding provider was unavailable. Each record that embeds
successfully becomes visible to semantic retrieval.`,
	RunE: runReembed,
}

func init() {
	rootCmd.AddCommand(reembedCmd)
}

func runReembed(cmd *cobra.Command, args []string) error {
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
	report, err := ingestor.RetryPending(ctx)
	if err != nil {
		return fmt.Errorf("reembed failed: %w", err)
	}

	if report.Scanned == 0 {
		fmt.Println("No pending records.")
		return nil
	}

	fmt.Printf("Scanned:  %d pending\n", report.Scanned)
	fmt.Printf("Embedded: %d\n", report.Embedded)
	if report.Failed > 0 {
		fmt.Printf("Failed:   %d (still pending)\n", report.Failed)
	}

	return nil
}
