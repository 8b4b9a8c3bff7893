package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/miradorstack/covers-forecast/internal/analogs"
	"github.com/miradorstack/covers-forecast/internal/cache"
	"github.com/miradorstack/covers-forecast/internal/models"
	"github.com/miradorstack/covers-forecast/internal/utils"
)

const historicalDayClass = "HistoricalDay"

// WeaviateRepo finds analog days through a vector search service and indexes
// history into it. Without an endpoint, or when the service misbehaves, it
// answers from the synthetic generator.
type WeaviateRepo struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	cache      cache.Provider
	analogTTL  time.Duration
	synthetic  *analogs.Generator
	logger     *slog.Logger
}

// HistoricalDay is one indexed service: a date with its observed covers and context summary.
type HistoricalDay struct {
	LocationID    string
	ServicePeriod models.ServicePeriod
	Date          time.Time
	Covers        int
	Label         string
	DayOfWeek     string
	Weather       string
	Events        int
	Holiday       string
}

// NewWeaviateRepo constructs a Weaviate client.
func NewWeaviateRepo(endpoint, apiKey string, timeout time.Duration, cacheProvider cache.Provider, analogTTL time.Duration, logger *slog.Logger) *WeaviateRepo {
	if cacheProvider == nil {
		cacheProvider = cache.NoopProvider{}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if analogTTL < 0 {
		analogTTL = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WeaviateRepo{
		endpoint:   strings.TrimRight(endpoint, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		cache:      cacheProvider,
		analogTTL:  analogTTL,
		synthetic:  analogs.NewGenerator(),
		logger:     logger,
	}
}

// FindAnalogs returns up to limit analog days ranked by similarity.
func (r *WeaviateRepo) FindAnalogs(ctx context.Context, req models.ForecastRequest, snapshot models.ContextSnapshot, limit int) ([]models.AnalogDay, error) {
	if r == nil {
		return nil, fmt.Errorf("weaviate repo not initialised")
	}
	if limit <= 0 {
		limit = analogs.Count
	}
	if r.endpoint == "" {
		return r.synthetic.FindAnalogs(ctx, req, snapshot, limit)
	}

	cacheKey := ""
	if r.analogTTL > 0 {
		cacheKey = cacheAnalogsKey(req, limit)
		if cached, err := cache.GetJSON[[]models.AnalogDay](ctx, r.cache, cacheKey); err == nil {
			return cached, nil
		}
	}

	results, err := r.queryAnalogs(ctx, req, snapshot, limit)
	if err != nil || len(results) == 0 {
		r.logger.Warn("analog search unavailable, using synthetic analogs",
			slog.String("date", utils.FormatDate(req.ServiceDate)), slog.Any("error", err))
		return r.synthetic.FindAnalogs(ctx, req, snapshot, limit)
	}

	if cacheKey != "" {
		if err := cache.SetJSON(ctx, r.cache, cacheKey, results, r.analogTTL); err != nil {
			r.logger.Debug("analog cache write failed", slog.Any("error", err))
		}
	}
	return results, nil
}

func (r *WeaviateRepo) queryAnalogs(ctx context.Context, req models.ForecastRequest, snapshot models.ContextSnapshot, limit int) ([]models.AnalogDay, error) {
	concepts, _ := json.Marshal(analogConcepts(snapshot))
	gql := map[string]interface{}{
		"query": fmt.Sprintf(`{
          Get {
            %s(
              limit: %d
              nearText: {concepts: %s}
              where: {
                operator: And
                operands: [
                  {path: ["locationId"], operator: Equal, valueString: %q}
                  {path: ["servicePeriod"], operator: Equal, valueString: %q}
                  {path: ["serviceDate"], operator: LessThan, valueDate: %q}
                ]
              }
            ) {
              serviceDate
              label
              covers
              dayOfWeek
              weather
              events
              holiday
              _additional { id certainty }
            }
          }
        }`, historicalDayClass, limit, concepts, req.LocationID, req.ServicePeriod, req.ServiceDate.Format(time.RFC3339)),
	}

	payload, err := json.Marshal(gql)
	if err != nil {
		return nil, err
	}

	resp, err := r.post(ctx, "/v1/graphql", payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weaviate graphql status %d", resp.StatusCode)
	}

	var response struct {
		Data struct {
			Get map[string][]struct {
				ServiceDate string  `json:"serviceDate"`
				Label       string  `json:"label"`
				Covers      float64 `json:"covers"`
				DayOfWeek   string  `json:"dayOfWeek"`
				Weather     string  `json:"weather"`
				Events      int     `json:"events"`
				Holiday     string  `json:"holiday"`
				Additional  struct {
					ID        string  `json:"id"`
					Certainty float64 `json:"certainty"`
				} `json:"_additional"`
			} `json:"Get"`
		} `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode weaviate response: %w", err)
	}
	if len(response.Errors) > 0 {
		return nil, fmt.Errorf("weaviate graphql: %s", response.Errors[0].Message)
	}

	records := response.Data.Get[historicalDayClass]
	results := make([]models.AnalogDay, 0, len(records))
	for _, rec := range records {
		date, err := utils.ParseISODate(rec.ServiceDate)
		if err != nil {
			continue
		}
		covers, ok := observedCovers(rec.Covers)
		if !ok {
			r.logger.Debug("skipping analog without covers", slog.String("id", rec.Additional.ID), slog.Float64("covers", rec.Covers))
			continue
		}
		results = append(results, models.AnalogDay{
			ID:             rec.Additional.ID,
			Date:           date,
			Label:          rec.Label,
			ObservedCovers: covers,
			Similarity:     math.Round(clampUnit(rec.Additional.Certainty)*100) / 100,
			Metadata: map[string]string{
				"day_of_week": rec.DayOfWeek,
				"weather":     rec.Weather,
				"events":      strconv.Itoa(rec.Events),
				"holiday":     rec.Holiday,
			},
		})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Similarity > results[j].Similarity })
	if len(results) > limit {
		results = results[:limit]
	}
	for i := range results {
		if results[i].ID == "" {
			results[i].ID = fmt.Sprintf("pat_%03d", i+1)
		}
	}
	return results, nil
}

// IndexHistory stores observed days so later searches can recall them.
func (r *WeaviateRepo) IndexHistory(ctx context.Context, days []HistoricalDay) error {
	if r == nil {
		return fmt.Errorf("weaviate repo not initialised")
	}
	if r.endpoint == "" || len(days) == 0 {
		return nil
	}

	objects := make([]map[string]interface{}, 0, len(days))
	for _, day := range days {
		objects = append(objects, map[string]interface{}{
			"class":      historicalDayClass,
			"properties": buildHistoricalDayProperties(day),
		})
	}
	body, err := json.Marshal(map[string]interface{}{"objects": objects})
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	resp, err := r.post(ctx, "/v1/batch/objects", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("weaviate index history failed: %s", strings.TrimSpace(string(data)))
	}
	return nil
}

func (r *WeaviateRepo) post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}
	return r.httpClient.Do(req)
}

// observedCovers rounds a stored covers count, rejecting values below one.
func observedCovers(v float64) (int, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	covers := int(math.Round(v))
	return covers, covers >= 1
}

func clampUnit(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(1, math.Max(0, v))
}

func cacheAnalogsKey(req models.ForecastRequest, limit int) string {
	return cache.Key("analogs", req.LocationID, string(req.ServicePeriod), utils.FormatDate(req.ServiceDate), strconv.Itoa(limit))
}

func analogConcepts(snapshot models.ContextSnapshot) []string {
	concepts := []string{analogs.Label(snapshot), snapshot.DayOfWeek, snapshot.Weather.Condition}
	if snapshot.IsHoliday {
		concepts = append(concepts, snapshot.HolidayName)
	}
	return concepts
}

func buildHistoricalDayProperties(day HistoricalDay) map[string]interface{} {
	return map[string]interface{}{
		"locationId":    day.LocationID,
		"servicePeriod": string(day.ServicePeriod),
		"serviceDate":   utils.DateOnly(day.Date).Format(time.RFC3339),
		"covers":        day.Covers,
		"label":         day.Label,
		"dayOfWeek":     day.DayOfWeek,
		"weather":       day.Weather,
		"events":        day.Events,
		"holiday":       day.Holiday,
	}
}
