package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/harun/cortex/pkg/memory"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check store integrity",
	Long: `Verify that every ready memory has exactly one vector and one mapping
row, and that no vector or mapping is orphaned. Violations are never
repaired automatically; they indicate the store was modified outside
the commit path.`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
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

	report, err := store.CheckIntegrity(context.Background())
	if err != nil && !errors.Is(err, memory.ErrIntegrity) {
		return fmt.Errorf("integrity check failed to run: %w", err)
	}

	fmt.Printf("Ready memories: %d\n", report.Ready)
	fmt.Printf("Pending:        %d\n", report.Pending)
	fmt.Printf("Vectors:        %d\n", report.Vectors)
	fmt.Printf("Mappings:       %d\n", report.Mappings)

	if len(report.Violations) == 0 {
		fmt.Println("\nIntegrity: OK")
		return nil
	}

	fmt.Printf("\nIntegrity: %d violation(s)\n", len(report.Violations))
	for _, v := range report.Violations {
		fmt.Printf("  - %s\n", v)
	}

	return err
}
