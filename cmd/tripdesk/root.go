// README: Root command and shared flags.
package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tripdesk/internal/config"
	"tripdesk/internal/logging"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "tripdesk",
	Short: "Conversational trip-request desk",
	Long: `tripdesk collects trip requests (origin, destination, date, transport) from travellers
in a chat, confirms them, and hands them to a human operator.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "tripdesk.yaml", "config file path")
	rootCmd.AddCommand(serveCmd, chatCmd, extractCmd)
}

func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	log, err := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}
