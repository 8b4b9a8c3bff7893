package repo

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/miradorstack/covers-forecast/internal/models"
	"github.com/miradorstack/covers-forecast/internal/utils"
)

// DefaultHistoryTable holds one row per location, period and service date.
const DefaultHistoryTable = "daily_covers"

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Querier is the subset of pgxpool.Pool used by the history reader.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresHistory reads training history from Postgres.
type PostgresHistory struct {
	db    Querier
	table string
}

// NewPostgresHistory wraps db. An empty table uses DefaultHistoryTable.
func NewPostgresHistory(db Querier, table string) (*PostgresHistory, error) {
	if db == nil {
		return nil, fmt.Errorf("postgres history: nil pool")
	}
	if table == "" {
		table = DefaultHistoryTable
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("postgres history: invalid table name %q", table)
	}
	return &PostgresHistory{db: db, table: table}, nil
}

// Load returns observations for a location and period, oldest first. Zero
// bounds leave that side of the range open.
func (h *PostgresHistory) Load(ctx context.Context, locationID string, period models.ServicePeriod, from, to time.Time) ([]models.Observation, error) {
	query := fmt.Sprintf(`SELECT service_date, covers, weather_score, event_impact, occupancy
FROM %s
WHERE location_id = $1 AND service_period = $2
  AND ($3::date IS NULL OR service_date >= $3)
  AND ($4::date IS NULL OR service_date <= $4)
ORDER BY service_date`, h.table)

	rows, err := h.db.Query(ctx, query, locationID, string(period), optionalDate(from), optionalDate(to))
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []models.Observation
	for rows.Next() {
		var row historyRow
		var date time.Time
		if err := rows.Scan(&date, &row.Covers, &row.WeatherScore, &row.EventImpact, &row.Occupancy); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		out = append(out, models.Observation{
			Date:       utils.DateOnly(date),
			Covers:     row.Covers,
			Regressors: row.regressors(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return out, nil
}

func optionalDate(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	d := utils.DateOnly(t)
	return &d
}
