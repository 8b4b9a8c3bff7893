package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/miradorstack/covers-forecast/internal/config"
	"github.com/miradorstack/covers-forecast/internal/utils"
)

var (
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "forecast-engine",
	Short: "Restaurant covers forecasting and staffing engine",
	Long:  "Predicts restaurant covers per date and service period, explains the number and derives a staffing plan.",
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if os.Getenv("APP_ENV") != "production" {
			_ = godotenv.Load()
		}
		c, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c
		logger = utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
		slog.SetDefault(logger)
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file")
	rootCmd.AddCommand(serveCmd, trainCmd, forecastCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
