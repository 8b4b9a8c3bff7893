package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"time"
)

// historicalDay mirrors the HistoricalDay class properties.
type historicalDay struct {
	LocationID    string  `json:"locationId"`
	ServicePeriod string  `json:"servicePeriod"`
	ServiceDate   string  `json:"serviceDate"`
	Covers        float64 `json:"covers"`
	Label         string  `json:"label"`
	DayOfWeek     string  `json:"dayOfWeek"`
	Weather       string  `json:"weather"`
	Events        int     `json:"events"`
	Holiday       string  `json:"holiday"`
}

type additional struct {
	ID        string  `json:"id"`
	Certainty float64 `json:"certainty"`
}

type match struct {
	historicalDay
	Additional additional `json:"_additional"`
}

var (
	limitPattern    = regexp.MustCompile(`limit:\s*(\d+)`)
	conceptsPattern = regexp.MustCompile(`concepts:\s*(\[[^\]]*\])`)
	locationPattern = regexp.MustCompile(`\["locationId"\][^}]*valueString:\s*"([^"]*)"`)
	periodPattern   = regexp.MustCompile(`\["servicePeriod"\][^}]*valueString:\s*"([^"]*)"`)
	beforePattern   = regexp.MustCompile(`\["serviceDate"\][^}]*valueDate:\s*"([^"]*)"`)
)

type store struct {
	mu   sync.RWMutex
	days []historicalDay
}

func (s *store) add(days []historicalDay) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.days = append(s.days, days...)
}

func (s *store) search(query string) []match {
	limit := 3
	if m := limitPattern.FindStringSubmatch(query); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			limit = n
		}
	}
	var concepts []string
	if m := conceptsPattern.FindStringSubmatch(query); m != nil {
		_ = json.Unmarshal([]byte(m[1]), &concepts)
	}
	location := submatch(locationPattern, query)
	period := submatch(periodPattern, query)
	before, _ := time.Parse(time.RFC3339, submatch(beforePattern, query))

	s.mu.RLock()
	defer s.mu.RUnlock()
	results := make([]match, 0, len(s.days))
	for i, day := range s.days {
		if location != "" && day.LocationID != location {
			continue
		}
		if period != "" && day.ServicePeriod != period {
			continue
		}
		if date, err := time.Parse(time.RFC3339, day.ServiceDate); err == nil && !before.IsZero() && !date.Before(before) {
			continue
		}
		results = append(results, match{
			historicalDay: day,
			Additional:    additional{ID: fmt.Sprintf("day_%05d", i+1), Certainty: certainty(day, concepts)},
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Additional.Certainty > results[j].Additional.Certainty
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// certainty approximates semantic closeness by matching the label, weekday and weather concepts.
func certainty(day historicalDay, concepts []string) float64 {
	score := 0.6
	for i, c := range concepts {
		switch {
		case i == 0 && c == day.Label:
			score += 0.25
		case c == day.DayOfWeek:
			score += 0.08
		case c == day.Weather:
			score += 0.05
		case c != "" && c == day.Holiday:
			score += 0.1
		}
	}
	if score > 0.99 {
		score = 0.99
	}
	return score
}

func submatch(re *regexp.Regexp, s string) string {
	if m := re.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return ""
}

func main() {
	db := &store{}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/v1/batch/objects", func(w http.ResponseWriter, r *http.Request) {
		if !enforcePost(w, r) {
			return
		}
		var payload struct {
			Objects []struct {
				Class      string        `json:"class"`
				Properties historicalDay `json:"properties"`
			} `json:"objects"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, "invalid batch payload", http.StatusBadRequest)
			return
		}
		days := make([]historicalDay, 0, len(payload.Objects))
		for _, obj := range payload.Objects {
			days = append(days, obj.Properties)
		}
		db.add(days)
		writeJSON(w, map[string]any{"stored": len(days)})
	})

	mux.HandleFunc("/v1/graphql", func(w http.ResponseWriter, r *http.Request) {
		if !enforcePost(w, r) {
			return
		}
		var payload struct {
			Query string `json:"query"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, "invalid graphql payload", http.StatusBadRequest)
			return
		}
		writeJSON(w, map[string]any{
			"data": map[string]any{
				"Get": map[string]any{"HistoricalDay": db.search(payload.Query)},
			},
		})
	})

	logger := log.New(log.Writer(), "analogs-mock ", log.LstdFlags|log.Lmicroseconds)
	srv := &http.Server{
		Addr:    ":8081",
		Handler: logRequests(logger, mux),
	}

	logger.Println("listening on :8081")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server error: %v", err)
	}
}

func enforcePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode error: %v", err)
	}
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Printf("%s %s %d %s", r.Method, r.URL.Path, rw.status, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
