package cmd

import (
	"log/slog"
	"os"

	"github.com/ThatOtherAndrew/Turntable/internal/config"
	"github.com/ThatOtherAndrew/Turntable/internal/logging"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:          "turntable",
	Short:        "Spin 3D models in a window",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "settings file (default ~/.config/turntable/settings.toml)")
}

func Execute() error {
	return rootCmd.Execute()
}

func settingsPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.GetSettingsPath()
}

// loadSettings reads the settings and installs a logger at their level.
func loadSettings() (*config.Settings, string, error) {
	path, err := settingsPath()
	if err != nil {
		return nil, "", err
	}
	s, err := config.LoadSettingsFrom(path)
	if err != nil {
		return nil, "", err
	}
	logging.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logging.ParseLevel(s.LogLevel),
	})))
	return s, path, nil
}
