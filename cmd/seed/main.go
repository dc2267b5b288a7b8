package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/APC-SoCIT/APC-2025-2026-T1-SS231-G07-DDC-Management-System-sub003/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	clinics, err := seedClinics(context.Background(), pool)
	if err != nil {
		log.Fatalf("seed clinics: %v", err)
	}
	if err := seedServices(context.Background(), pool); err != nil {
		log.Fatalf("seed services: %v", err)
	}
	dentists, err := seedDentists(context.Background(), pool, 20)
	if err != nil {
		log.Fatalf("seed dentists: %v", err)
	}
	if err := seedPatients(context.Background(), pool, 2000); err != nil {
		log.Fatalf("seed patients: %v", err)
	}
	if err := seedAvailability(context.Background(), pool, dentists, clinics); err != nil {
		log.Fatalf("seed availability: %v", err)
	}

	log.Println("seed complete")
}

func seedClinics(ctx context.Context, pool *pgxpool.Pool) ([]uuid.UUID, error) {
	names := []string{"Dasmarinas Branch", "Imus Branch", "Bacoor Branch"}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, len(names))
	for _, name := range names {
		id := uuid.New()
		_, err := tx.Exec(ctx, `
			INSERT INTO clinics (id, name, address, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, name, gofakeit.Address().Address)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	log.Printf("clinics seeded: %d", len(ids))
	return ids, nil
}

func seedServices(ctx context.Context, pool *pgxpool.Pool) error {
	services := []struct {
		name        string
		duration    int
		autoConfirm bool
		immediate   bool
	}{
		{"Consultation", 30, true, true},
		{"Oral Prophylaxis", 30, true, false},
		{"Tooth Extraction", 30, false, false},
		{"Restoration", 60, false, false},
		{"Root Canal Treatment", 90, false, false},
		{"Teeth Whitening", 60, true, false},
		{"Orthodontic Adjustment", 30, true, true},
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, s := range services {
		_, err := tx.Exec(ctx, `
			INSERT INTO services (id, name, duration_minutes, auto_confirm, allow_immediate_reschedule)
			VALUES ($1, $2, $3, $4, $5)
		`, uuid.New(), s.name, s.duration, s.autoConfirm, s.immediate)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	log.Printf("services seeded: %d", len(services))
	return nil
}

func seedDentists(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d dentists", count)

	specialties := []string{
		"General Dentistry",
		"Orthodontics",
		"Endodontics",
		"Periodontics",
		"Prosthodontics",
		"Pediatric Dentistry",
		"Oral Surgery",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := "Dr. " + gofakeit.Name()
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO dentists (id, name, specialty, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, name, spec)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	log.Println("dentists seeded")
	return ids, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d patients", count)

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, email, created_at, updated_at)
				VALUES ($1, $2, $3, now(), now())
			`, uuid.New(), gofakeit.Name(), gofakeit.Email())
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("patients seeded: %d/%d", end, count)
	}

	return nil
}

// seedAvailability gives each dentist a weekday template at one
// clinic (9:00-17:00, Monday to Saturday) plus an occasional
// personal block.
func seedAvailability(ctx context.Context, pool *pgxpool.Pool, dentists, clinics []uuid.UUID) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const (
		dayStart = 9 * 60
		dayEnd   = 17 * 60
	)

	windows := 0
	for i, dentistID := range dentists {
		clinicID := clinics[i%len(clinics)]
		for weekday := 1; weekday <= 6; weekday++ { // Monday..Saturday
			_, err := tx.Exec(ctx, `
				INSERT INTO availability_windows (id, dentist_id, clinic_id, weekday, start_minute, end_minute)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, uuid.New(), dentistID, clinicID, weekday, dayStart, dayEnd)
			if err != nil {
				return err
			}
			windows++
		}

		if gofakeit.Number(0, 3) == 0 {
			blockDate := time.Now().AddDate(0, 0, gofakeit.Number(1, 14))
			_, err := tx.Exec(ctx, `
				INSERT INTO blocked_slots (id, dentist_id, clinic_id, date, start_minute, end_minute, reason)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, uuid.New(), dentistID, clinicID, blockDate, 12*60, 13*60, "personal block")
			if err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	log.Printf("availability windows seeded: %d", windows)
	return nil
}
