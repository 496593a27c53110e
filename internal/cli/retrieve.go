package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/harun/cortex/internal/tracing"
	"github.com/harun/cortex/pkg/memory"
	"github.com/spf13/cobra"
)

var (
	retrieveLimit  int
	retrieveWeight float64
	retrieveJSON   bool
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve <query>",
	Short: "Search memories with hybrid semantic and keyword retrieval",
	Long: `Search committed memories by embedding similarity and recent raw notes
by keyword overlap, then rank the fused results. The semantic weight
controls the blend: 1.0 is purely semantic, 0.0 purely keyword.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRetrieve,
}

func init() {
	retrieveCmd.Flags().IntVarP(&retrieveLimit, "limit", "k", 0, "maximum results (default from config)")
	retrieveCmd.Flags().Float64VarP(&retrieveWeight, "semantic-weight", "w", -1, "semantic weight between 0 and 1 (default from config)")
	retrieveCmd.Flags().BoolVar(&retrieveJSON, "json", false, "emit results as JSON")
	rootCmd.AddCommand(retrieveCmd)
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")

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

	store, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	retriever, err := buildRetriever(cfg, log, store)
	if err != nil {
		return err
	}

	opts := &memory.RetrieveOptions{
		Limit:          cfg.Retrieval.Limit,
		SemanticWeight: cfg.Retrieval.SemanticWeight,
	}
	if retrieveLimit > 0 {
		opts.Limit = retrieveLimit
	}
	if retrieveWeight >= 0 {
		opts.SemanticWeight = retrieveWeight
	}

	ctx := tracing.NewCommandContext(context.Background())
	results, err := retriever.Retrieve(ctx, query, opts)
	if err != nil {
		return fmt.Errorf("retrieve failed: %w", err)
	}

	if retrieveJSON {
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode results: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	if len(results) == 0 {
		fmt.Println("No memories found.")
		return nil
	}

	fmt.Printf("Found %d memories:\n\n", len(results))
	for i, r := range results {
		fmt.Printf("%d. [%.3f] %s  %-9s %s\n", i+1, r.Score, r.Date, r.Type, r.Summary)
		if r.Excerpt != "" {
			fmt.Printf("   %s\n", r.Excerpt)
		}
		if len(r.Tags) > 0 {
			fmt.Printf("   Tags: %s\n", strings.Join(r.Tags, ", "))
		}
		fmt.Printf("   semantic=%.3f keyword=%.3f source=%s\n", r.Semantic, r.Keyword, r.Source)
	}

	return nil
}
