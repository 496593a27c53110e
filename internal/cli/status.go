package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/harun/cortex/pkg/memory"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store status",
	Long:  `Show the configured paths, provider settings, and memory store counts.`,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := buildLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Close()

	store, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	stats, err := store.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to read store stats: %w", err)
	}

	fmt.Printf("Store:      %s\n", cfg.Store.Path)
	fmt.Printf("Notes:      %s\n", cfg.Notes.Dir)
	fmt.Printf("Embedding:  %s (%s, %d dimensions)\n", cfg.Embedding.Provider, cfg.Embedding.Model, cfg.Embedding.Dimension)
	fmt.Printf("Summarizer: %s (%s)\n", cfg.Summarizer.Provider, cfg.Summarizer.Model)

	profile, err := store.Profile(ctx)
	switch {
	case errors.Is(err, memory.ErrNotFound):
		fmt.Printf("Profile:    (not set)\n")
	case err != nil:
		return fmt.Errorf("failed to read profile: %w", err)
	default:
		fmt.Printf("Profile:    %s @ %s\n", profile.UserName, profile.Device)
	}
	fmt.Println()

	fmt.Printf("Memories: %d total (%d ready, %d pending)\n", stats.TotalMemories, stats.Ready, stats.Pending)
	for _, t := range []string{"task", "knowledge", "note"} {
		if n, ok := stats.ByType[t]; ok && n > 0 {
			fmt.Printf("  %-10s %d\n", t+":", n)
		}
	}
	fmt.Printf("Vectors:  %d (%d mapped)\n", stats.Vectors, stats.Mappings)

	if err := store.VerifyIntegrity(ctx); err != nil {
		fmt.Printf("Integrity: FAILED (%v)\n", err)
		fmt.Println("Run 'cortex check' for details.")
	} else {
		fmt.Println("Integrity: OK")
	}

	return nil
}
