package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/harun/cortex/pkg/memory"
	"github.com/spf13/cobra"
)

var (
	profileName   string
	profileDevice string
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show or update the stored user profile",
	Long: `Show the single user profile attached to the store, or update it with
the --name and --device flags. The profile is metadata for the memory
owner; it does not affect retrieval.`,
	RunE: runProfile,
}

func init() {
	profileCmd.Flags().StringVar(&profileName, "name", "", "set the user name")
	profileCmd.Flags().StringVar(&profileDevice, "device", "", "set the device label")
	rootCmd.AddCommand(profileCmd)
}

func runProfile(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

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

	ctx := context.Background()

	if profileName == "" && profileDevice == "" {
		profile, err := store.Profile(ctx)
		if errors.Is(err, memory.ErrNotFound) {
			fmt.Println("No profile stored. Set one with: cortex profile --name <name>")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read profile: %w", err)
		}

		fmt.Printf("Name:    %s\n", profile.UserName)
		fmt.Printf("Device:  %s\n", profile.Device)
		fmt.Printf("Updated: %s\n", profile.UpdatedAt.Format("2006-01-02 15:04:05"))
		return nil
	}

	// Partial updates keep the other field from the stored profile
	name, device := profileName, profileDevice
	if existing, err := store.Profile(ctx); err == nil {
		if name == "" {
			name = existing.UserName
		}
		if device == "" {
			device = existing.Device
		}
	}

	if err := store.SetProfile(ctx, name, device); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}

	fmt.Printf("Profile saved: %s", name)
	if device != "" {
		fmt.Printf(" (%s)", device)
	}
	fmt.Println()

	return nil
}
