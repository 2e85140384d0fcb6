package cmd

import (
	"fmt"

	"github.com/ThatOtherAndrew/Turntable/internal/loader"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured assets and where they resolve",
	RunE:  listAssets,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func listAssets(cmd *cobra.Command, args []string) error {
	settings, _, err := loadSettings()
	if err != nil {
		return err
	}
	if len(settings.Assets) == 0 {
		fmt.Println("No assets configured")
		return nil
	}

	fmt.Println("Configured assets:")
	if settings.AssetBaseURL != "" {
		for _, a := range settings.Assets {
			fmt.Printf("   %s (%s)\n", a, settings.AssetBaseURL)
		}
		return nil
	}

	fetcher := loader.FileFetcher{Root: settings.AssetDir}
	for _, a := range settings.Assets {
		path, err := fetcher.Resolve(a)
		if err != nil {
			fmt.Printf("   %s (missing)\n", a)
			continue
		}
		fmt.Printf("   %s %s\n", a, path)
	}
	return nil
}
