package repo

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/jszwec/csvutil"

	"github.com/miradorstack/covers-forecast/internal/models"
	"github.com/miradorstack/covers-forecast/internal/utils"
)

// LoadCSVHistoryFile reads training history from a CSV file.
func LoadCSVHistoryFile(path string) ([]models.Observation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	defer f.Close()
	return LoadCSVHistory(f)
}

// LoadCSVHistory reads rows with columns ds,y and optional
// weather_score,event_impact,occupancy. Empty regressor cells are treated as absent.
func LoadCSVHistory(r io.Reader) ([]models.Observation, error) {
	dec, err := csvutil.NewDecoder(csv.NewReader(r))
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("history csv is empty")
		}
		return nil, fmt.Errorf("read history header: %w", err)
	}
	header := dec.Header()
	for _, col := range []string{"ds", "y"} {
		if !slices.Contains(header, col) {
			return nil, fmt.Errorf("history csv: missing column %q", col)
		}
	}

	var out []models.Observation
	for line := 2; ; line++ {
		var row historyRow
		if err := dec.Decode(&row); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("history csv line %d: %w", line, err)
		}
		date, err := utils.ParseISODate(row.Date)
		if err != nil {
			return nil, fmt.Errorf("history csv line %d: %w", line, err)
		}
		out = append(out, models.Observation{
			Date:       date,
			Covers:     row.Covers,
			Regressors: row.regressors(),
		})
	}
	return out, nil
}
