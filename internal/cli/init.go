package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/harun/cortex/internal/config"
	"github.com/harun/cortex/internal/observability"
	"github.com/harun/cortex/pkg/memory"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the data directory and memory store",
	Long: `Create the Cortex data directory, the daily notes layout, and the
memory store schema. Safe to run more than once; existing data is
left untouched.`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Data directory
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	// Notes directory
	if err := memory.EnsureNotesDir(cfg.Notes.Dir); err != nil {
		return fmt.Errorf("failed to create notes directory: %w", err)
	}

	// Opening the store creates the schema and the vector index
	log, err := buildLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Close()
	initJournal(cfg, log)

	store, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	// Seed the owner profile so a fresh store is usable without a
	// profile command; the device label defaults to the hostname.
	ctx := context.Background()
	if _, err := store.Profile(ctx); errors.Is(err, memory.ErrNotFound) {
		device, herr := os.Hostname()
		if herr != nil || device == "" {
			device = "default-device"
		}
		if err := store.SetProfile(ctx, "user", device); err != nil {
			return fmt.Errorf("failed to seed profile: %w", err)
		}
	}

	// Write the default config when none exists yet
	loader := config.NewLoader(cfgFile)
	configPath := loader.GetConfigPath()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := loader.Save(cfg); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
		observability.RecordConfigAudit(ctx, "config_created", "init", map[string]interface{}{
			"path": configPath,
		})
		fmt.Printf("Config:  %s (created)\n", configPath)
	} else {
		fmt.Printf("Config:  %s\n", configPath)
	}

	fmt.Printf("Data:    %s\n", cfg.DataDir)
	fmt.Printf("Notes:   %s\n", cfg.Notes.Dir)
	fmt.Printf("Store:   %s (%d dimensions)\n", cfg.Store.Path, store.Dimension())
	fmt.Println("\nCortex is ready. Configure providers with: cortex configure")

	return nil
}
