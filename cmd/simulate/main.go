// simulate hammers the booking endpoint with concurrent clients fighting for
// the same day's slots, then verifies in Postgres that no slot ended up with
// more than one non-cancelled appointment.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/parisrizo/clinic-booking/internal/clinic"
	"github.com/parisrizo/clinic-booking/internal/config"
	"github.com/parisrizo/clinic-booking/internal/db"
)

type SimConfig struct {
	APIBaseURL  string
	Workers     int
	Attempts    int
	LocationID  string
	Date        string
	PostgresDSN string
	AppID       string
}

type Metrics struct {
	Total     int64
	Booked    int64
	Conflict  int64
	Error     int64
	mu        sync.Mutex
	Latencies []time.Duration
}

func (m *Metrics) Record(latency time.Duration, status int) {
	atomic.AddInt64(&m.Total, 1)
	switch {
	case status == http.StatusCreated:
		atomic.AddInt64(&m.Booked, 1)
	case status == http.StatusConflict:
		atomic.AddInt64(&m.Conflict, 1)
	default:
		atomic.AddInt64(&m.Error, 1)
	}

	m.mu.Lock()
	m.Latencies = append(m.Latencies, latency)
	m.mu.Unlock()
}

func (m *Metrics) Stats() (avg, p50, p95 time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.Latencies) == 0 {
		return 0, 0, 0
	}

	latencies := make([]time.Duration, len(m.Latencies))
	copy(latencies, m.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	avg = sum / time.Duration(len(latencies))
	p50 = latencies[len(latencies)*50/100]
	p95 = latencies[min(len(latencies)*95/100, len(latencies)-1)]
	return avg, p50, p95
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadSimConfig()
	log.Printf("config: workers=%d attempts=%d location=%s date=%s",
		cfg.Workers, cfg.Attempts, cfg.LocationID, cfg.Date)

	loc, ok := clinic.LocationByID(cfg.LocationID)
	if !ok {
		log.Fatalf("unknown location %q", cfg.LocationID)
	}
	slots := loc.DaySlots()

	gofakeit.Seed(time.Now().UnixNano())

	metrics := &Metrics{}
	client := &http.Client{Timeout: 10 * time.Second}

	var wg sync.WaitGroup
	start := time.Now()
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < cfg.Attempts; i++ {
				slot := slots[rand.Intn(len(slots))]
				latency, status := attemptBooking(client, cfg, slot)
				metrics.Record(latency, status)
			}
		}()
	}
	wg.Wait()

	avg, p50, p95 := metrics.Stats()
	log.Printf("done in %s: total=%d booked=%d conflict=%d error=%d",
		time.Since(start), metrics.Total, metrics.Booked, metrics.Conflict, metrics.Error)
	log.Printf("latency: avg=%s p50=%s p95=%s", avg, p50, p95)

	if err := verifyNoDoubleBookings(cfg); err != nil {
		log.Fatalf("verification failed: %v", err)
	}
	log.Println("verified: no slot holds more than one non-cancelled appointment")
}

func attemptBooking(client *http.Client, cfg SimConfig, slot string) (time.Duration, int) {
	payload := map[string]any{
		"location_id": cfg.LocationID,
		"reason":      string(clinic.ReasonFirstVisit),
		"date":        cfg.Date,
		"time":        slot,
		"patient": map[string]string{
			"name":  gofakeit.Name(),
			"email": gofakeit.Email(),
			"phone": gofakeit.Phone(),
		},
	}
	body, _ := json.Marshal(payload)

	start := time.Now()
	resp, err := client.Post(cfg.APIBaseURL+"/bookings", "application/json", bytes.NewReader(body))
	latency := time.Since(start)
	if err != nil {
		return latency, 0
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return latency, resp.StatusCode
}

func verifyNoDoubleBookings(cfg SimConfig) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	var count int
	err = pool.QueryRow(ctx, `
		SELECT count(*)
		FROM (
			SELECT starts_at
			FROM appointments
			WHERE app_id = $1 AND location_id = $2 AND status <> 'cancelled'
			GROUP BY starts_at
			HAVING count(*) > 1
		) doubled
	`, cfg.AppID, cfg.LocationID).Scan(&count)
	if err != nil {
		return fmt.Errorf("query double bookings: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%d slots hold more than one non-cancelled appointment", count)
	}
	return nil
}

func loadSimConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load base config: %v", err)
	}

	return SimConfig{
		APIBaseURL:  getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Workers:     getInt("SIM_WORKERS", 10),
		Attempts:    getInt("SIM_ATTEMPTS", 50),
		LocationID:  getEnv("SIM_LOCATION_ID", "consultorio-paris-rizo"),
		Date:        getEnv("SIM_DATE", nextAllowedDate()),
		PostgresDSN: baseCfg.PostgresDSN,
		AppID:       baseCfg.AppID,
	}
}

// nextAllowedDate picks the first upcoming day the default location books.
func nextAllowedDate() string {
	loc := clinic.Locations[0]
	day := time.Now()
	for i := 0; i < 7; i++ {
		day = day.AddDate(0, 0, 1)
		for _, ad := range loc.AllowedDays {
			if ad == day.Weekday() {
				return day.Format(clinic.DateLayout)
			}
		}
	}
	return day.Format(clinic.DateLayout)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
