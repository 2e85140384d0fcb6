package cmd

import (
	"fmt"
	"slices"

	"github.com/ThatOtherAndrew/Turntable/internal/config"
	"github.com/spf13/cobra"
)

var removeCmd = &cobra.Command{
	Use:   "remove [asset]",
	Short: "Remove an asset from the settings file",
	Args:  cobra.ExactArgs(1),
	RunE:  removeAsset,
}

func init() {
	rootCmd.AddCommand(removeCmd)
}

func removeAsset(cmd *cobra.Command, args []string) error {
	settings, path, err := loadSettings()
	if err != nil {
		return err
	}

	i := slices.Index(settings.Assets, args[0])
	if i < 0 {
		return fmt.Errorf("asset not found: %s", args[0])
	}
	settings.Assets = slices.Delete(settings.Assets, i, i+1)
	delete(settings.Rates, args[0])

	if err := config.SaveSettingsTo(path, settings); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	fmt.Println("Removed asset:", args[0])
	return nil
}
