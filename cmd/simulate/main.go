// Booking storm simulator: hammers the API with concurrent booking
// requests for a deliberately small set of dentists and slots, then
// audits the database for double-bookings. Useful as a live check
// that overlapping requests produce exactly one winner.
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

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/APC-SoCIT/APC-2025-2026-T1-SS231-G07-DDC-Management-System-sub003/internal/db"
)

type simConfig struct {
	APIBaseURL   string
	PostgresDSN  string
	Duration     time.Duration
	Workers      int
	DentistLimit int
	PatientLimit int
}

type dataPool struct {
	Patients []uuid.UUID
	Dentists []uuid.UUID
	Clinics  map[uuid.UUID]uuid.UUID // dentist -> clinic with availability
	Services []uuid.UUID
}

type opMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	mu        sync.Mutex
	latencies []time.Duration
}

func (m *opMetrics) record(latency time.Duration, status int) {
	atomic.AddInt64(&m.Total, 1)
	switch {
	case status == http.StatusCreated:
		atomic.AddInt64(&m.Success, 1)
	case status == http.StatusConflict || status == http.StatusUnprocessableEntity:
		atomic.AddInt64(&m.Conflict, 1)
	default:
		atomic.AddInt64(&m.Error, 1)
	}
	m.mu.Lock()
	m.latencies = append(m.latencies, latency)
	m.mu.Unlock()
}

func (m *opMetrics) stats() (avg, p50, p95, max time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.latencies) == 0 {
		return 0, 0, 0, 0
	}
	ls := make([]time.Duration, len(m.latencies))
	copy(ls, m.latencies)
	sort.Slice(ls, func(i, j int) bool { return ls[i] < ls[j] })

	var sum time.Duration
	for _, l := range ls {
		sum += l
	}
	avg = sum / time.Duration(len(ls))
	p50 = ls[len(ls)*50/100]
	p95 = ls[min(len(ls)*95/100, len(ls)-1)]
	max = ls[len(ls)-1]
	return avg, p50, p95, max
}

func main() {
	log.SetFlags(log.LstdFlags)

	cfg := simConfig{
		APIBaseURL:   envOr("API_BASE_URL", "http://127.0.0.1:8080"),
		PostgresDSN:  os.Getenv("POSTGRES_DSN"),
		Duration:     envDuration("SIM_DURATION", 30*time.Second),
		Workers:      envInt("SIM_WORKERS", 16),
		DentistLimit: envInt("SIM_DENTISTS", 3),
		PatientLimit: envInt("SIM_PATIENTS", 200),
	}
	if cfg.PostgresDSN == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	cancel()
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	dp, err := loadDataPool(context.Background(), pool, cfg)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}
	log.Printf("data pool: %d patients, %d dentists, %d services",
		len(dp.Patients), len(dp.Dentists), len(dp.Services))

	metrics := &opMetrics{}
	runStorm(cfg, dp, metrics)

	avg, p50, p95, max := metrics.stats()
	log.Printf("bookings: total=%d success=%d conflict=%d error=%d",
		metrics.Total, metrics.Success, metrics.Conflict, metrics.Error)
	log.Printf("latency: avg=%s p50=%s p95=%s max=%s", avg, p50, p95, max)

	if err := auditDoubleBookings(context.Background(), pool); err != nil {
		log.Fatalf("audit failed: %v", err)
	}
	log.Println("audit passed: no overlapping active appointments per dentist")
}

func runStorm(cfg simConfig, dp *dataPool, metrics *opMetrics) {
	client := &http.Client{Timeout: 10 * time.Second}
	deadline := time.Now().Add(cfg.Duration)

	// A narrow target date and few slots maximizes contention.
	targetDate := time.Now().AddDate(0, 0, 7)
	for targetDate.Weekday() == time.Sunday {
		targetDate = targetDate.AddDate(0, 0, 1)
	}
	dateStr := targetDate.Format("2006-01-02")
	slotTimes := []string{"09:00", "09:30", "10:00", "10:30", "11:00"}

	var wg sync.WaitGroup
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for time.Now().Before(deadline) {
				dentist := dp.Dentists[rng.Intn(len(dp.Dentists))]
				body, _ := json.Marshal(map[string]string{
					"patient_id": dp.Patients[rng.Intn(len(dp.Patients))].String(),
					"dentist_id": dentist.String(),
					"clinic_id":  dp.Clinics[dentist].String(),
					"service_id": dp.Services[rng.Intn(len(dp.Services))].String(),
					"date":       dateStr,
					"time":       slotTimes[rng.Intn(len(slotTimes))],
				})

				start := time.Now()
				resp, err := client.Post(cfg.APIBaseURL+"/bookings", "application/json", bytes.NewReader(body))
				if err != nil {
					metrics.record(time.Since(start), 0)
					continue
				}
				_, _ = io.Copy(io.Discard, resp.Body)
				_ = resp.Body.Close()
				metrics.record(time.Since(start), resp.StatusCode)
			}
		}(int64(w) + time.Now().UnixNano())
	}
	wg.Wait()
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg simConfig) (*dataPool, error) {
	dp := &dataPool{Clinics: make(map[uuid.UUID]uuid.UUID)}

	rows, err := pool.Query(ctx, `SELECT id FROM patients LIMIT $1`, cfg.PatientLimit)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		dp.Patients = append(dp.Patients, id)
	}
	rows.Close()

	rows, err = pool.Query(ctx, `
		SELECT DISTINCT dentist_id, clinic_id
		FROM availability_windows
		LIMIT $1
	`, cfg.DentistLimit)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var dentistID, clinicID uuid.UUID
		if err := rows.Scan(&dentistID, &clinicID); err != nil {
			rows.Close()
			return nil, err
		}
		dp.Dentists = append(dp.Dentists, dentistID)
		dp.Clinics[dentistID] = clinicID
	}
	rows.Close()

	rows, err = pool.Query(ctx, `SELECT id FROM services`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		dp.Services = append(dp.Services, id)
	}
	rows.Close()

	if len(dp.Patients) == 0 || len(dp.Dentists) == 0 || len(dp.Services) == 0 {
		return nil, fmt.Errorf("data pool is empty, run the seed tool first")
	}
	return dp, nil
}

// auditDoubleBookings fails if any two non-terminal appointments for
// the same dentist overlap in time.
func auditDoubleBookings(ctx context.Context, pool *pgxpool.Pool) error {
	var count int
	err := pool.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments a
		JOIN appointments b
		  ON a.dentist_id = b.dentist_id
		 AND a.date = b.date
		 AND a.id < b.id
		 AND a.start_minute < b.start_minute + b.duration_minutes
		 AND b.start_minute < a.start_minute + a.duration_minutes
		WHERE a.status IN ('pending', 'confirmed', 'waiting', 'reschedule_requested', 'cancel_requested')
		  AND b.status IN ('pending', 'confirmed', 'waiting', 'reschedule_requested', 'cancel_requested')
	`).Scan(&count)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("found %d overlapping active appointment pairs", count)
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
