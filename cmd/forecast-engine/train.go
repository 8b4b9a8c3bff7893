package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/miradorstack/covers-forecast/internal/cache"
	"github.com/miradorstack/covers-forecast/internal/engine"
	"github.com/miradorstack/covers-forecast/internal/extractors"
	"github.com/miradorstack/covers-forecast/internal/models"
	"github.com/miradorstack/covers-forecast/internal/repo"
	"github.com/miradorstack/covers-forecast/internal/utils"
)

var (
	trainCSV      string
	trainPostgres bool
	trainLocation string
	trainPeriod   string
	trainFrom     string
	trainTo       string
	trainOutput   string
	trainIndex    bool
	trainOutlierZ float64
	trainDropOut  bool
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Fit the regression model from daily covers history",
	Long: `Fits the additive regression model and saves the artifact.

History comes from a CSV file (columns ds,y and optionally weather_score,
event_impact, occupancy) or from the configured Postgres table.

Examples:
  forecast-engine train --csv history.csv
  forecast-engine train --postgres --location loc_1 --period dinner --from 2023-01-01
  forecast-engine train --csv history.csv --index`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		period, err := models.ParseServicePeriod(trainPeriod)
		if err != nil {
			return err
		}
		history, err := loadHistory(ctx, period)
		if err != nil {
			return err
		}
		logger.Info("history loaded", slog.Int("observations", len(history)))

		outliers := extractors.NewOutlierDetector().Detect(history, trainOutlierZ)
		for _, o := range outliers {
			logger.Warn("history outlier",
				slog.String("date", utils.FormatDate(o.Date)),
				slog.Float64("covers", o.Covers),
				slog.Float64("weekday_mean", o.Mean),
				slog.Float64("z", o.Score))
		}
		if trainDropOut && len(outliers) > 0 {
			history = extractors.Without(history, outliers)
			logger.Info("outliers dropped", slog.Int("dropped", len(outliers)), slog.Int("remaining", len(history)))
		}

		opts := engine.DefaultModelOptions()
		opts.IntervalWidth = cfg.Forecast.IntervalWidth
		opts.Logger = logger
		model := engine.NewModel(opts)
		summary, err := model.Train(history)
		if err != nil {
			return fmt.Errorf("train: %w", err)
		}

		output := trainOutput
		if output == "" {
			output = cfg.Forecast.ModelPath
		}
		if err := model.Save(output); err != nil {
			return fmt.Errorf("save model: %w", err)
		}
		logger.Info("model saved", slog.String("path", output))

		next := utils.AddDays(summary.TrainedThrough, 1)
		smoke, err := model.Predict(next, repo.RegressorMeans(history))
		if err != nil {
			return fmt.Errorf("smoke prediction: %w", err)
		}

		if trainIndex {
			analogRepo := repo.NewWeaviateRepo(cfg.Analogs.Endpoint, cfg.Analogs.APIKey, cfg.Analogs.Timeout, cache.NoopProvider{}, 0, logger)
			if err := analogRepo.IndexHistory(ctx, repo.HistoricalDays(trainLocation, period, history)); err != nil {
				return fmt.Errorf("index history: %w", err)
			}
			logger.Info("history indexed", slog.Int("days", len(history)))
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Summary engine.TrainingSummary `json:"summary"`
			Model   string                 `json:"model"`
			Date    string                 `json:"smoke_date"`
			Smoke   models.ForecastResult  `json:"smoke_prediction"`
		}{summary, output, utils.FormatDate(next), smoke})
	},
}

func init() {
	trainCmd.Flags().StringVar(&trainCSV, "csv", "", "CSV file with ds,y history")
	trainCmd.Flags().BoolVar(&trainPostgres, "postgres", false, "Read history from the configured Postgres table")
	trainCmd.Flags().StringVar(&trainLocation, "location", "default", "Location ID for Postgres history and indexing")
	trainCmd.Flags().StringVar(&trainPeriod, "period", string(models.PeriodDinner), "Service period")
	trainCmd.Flags().StringVar(&trainFrom, "from", "", "First history date (YYYY-MM-DD)")
	trainCmd.Flags().StringVar(&trainTo, "to", "", "Last history date (YYYY-MM-DD)")
	trainCmd.Flags().StringVar(&trainOutput, "output", "", "Model artifact path (defaults to forecast.modelPath)")
	trainCmd.Flags().Float64Var(&trainOutlierZ, "outlier-threshold", extractors.DefaultOutlierThreshold, "Absolute per-weekday z-score that flags a history day")
	trainCmd.Flags().BoolVar(&trainDropOut, "drop-outliers", false, "Exclude flagged days from training")
	trainCmd.Flags().BoolVar(&trainIndex, "index", false, "Push history to the vector search service as analog candidates")
}

func loadHistory(ctx context.Context, period models.ServicePeriod) ([]models.Observation, error) {
	switch {
	case trainCSV != "" && trainPostgres:
		return nil, fmt.Errorf("--csv and --postgres are mutually exclusive")
	case trainCSV != "":
		return repo.LoadCSVHistoryFile(trainCSV)
	case trainPostgres:
		if cfg.History.DSN == "" {
			return nil, fmt.Errorf("history.dsn is not configured")
		}
		from, err := optionalDate(trainFrom)
		if err != nil {
			return nil, err
		}
		to, err := optionalDate(trainTo)
		if err != nil {
			return nil, err
		}
		pool, err := pgxpool.New(ctx, cfg.History.DSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		defer pool.Close()
		store, err := repo.NewPostgresHistory(pool, cfg.History.Table)
		if err != nil {
			return nil, err
		}
		return store.Load(ctx, trainLocation, period, from, to)
	default:
		return nil, fmt.Errorf("one of --csv or --postgres is required")
	}
}

func optionalDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return utils.ParseISODate(value)
}
