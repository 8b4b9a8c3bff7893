package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/miradorstack/covers-forecast/internal/api"
	"github.com/miradorstack/covers-forecast/internal/models"
)

var (
	forecastLocation string
	forecastPeriod   string
	forecastDates    []string
	forecastChart    string
)

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Forecast covers for one or more dates",
	Long: `Runs the forecast pipeline locally and prints JSON.

Examples:
  forecast-engine forecast --location loc_1 --date 2024-06-15
  forecast-engine forecast --location loc_1 --period lunch --date 2024-06-15 --date 2024-06-16 --chart week.html`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if len(forecastDates) == 0 {
			return fmt.Errorf("at least one --date is required")
		}

		deps, err := buildComponents(cfg, logger)
		if err != nil {
			return err
		}
		defer deps.Close()

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		if len(forecastDates) == 1 && forecastChart == "" {
			prediction, err := deps.service.ForecastOne(ctx, forecastLocation, forecastDates[0], forecastPeriod)
			if err != nil {
				return err
			}
			return enc.Encode(prediction)
		}

		outcomes, err := deps.service.ForecastBatch(ctx, forecastLocation, forecastDates, forecastPeriod)
		if err != nil {
			return err
		}
		if forecastChart != "" {
			if err := writeChart(forecastChart, outcomes); err != nil {
				return err
			}
		}
		return enc.Encode(api.NewBatchResponse(outcomes))
	},
}

func init() {
	forecastCmd.Flags().StringVar(&forecastLocation, "location", "", "Location ID")
	forecastCmd.Flags().StringVar(&forecastPeriod, "period", string(models.PeriodDinner), "Service period")
	forecastCmd.Flags().StringSliceVar(&forecastDates, "date", nil, "Service date (YYYY-MM-DD); repeatable")
	forecastCmd.Flags().StringVar(&forecastChart, "chart", "", "Write an HTML chart of the forecasts to this path")
	_ = forecastCmd.MarkFlagRequired("location")
}

func writeChart(path string, outcomes []models.BatchOutcome) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create chart: %w", err)
	}
	defer f.Close()
	title := fmt.Sprintf("Covers forecast: %s (%s)", forecastLocation, forecastPeriod)
	if err := api.RenderChart(f, title, outcomes); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	logger.Info("chart written", "path", path)
	return nil
}
