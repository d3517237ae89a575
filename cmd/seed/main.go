package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/parisrizo/clinic-booking/internal/clinic"
	"github.com/parisrizo/clinic-booking/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}
	appID := os.Getenv("APP_ID")
	if appID == "" {
		appID = "dental"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	patients, err := seedPatients(context.Background(), pool, appID, 200)
	if err != nil {
		log.Fatalf("seed patients: %v", err)
	}
	if err := seedAppointments(context.Background(), pool, appID, patients); err != nil {
		log.Fatalf("seed appointments: %v", err)
	}

	log.Println("seed complete")
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, appID string, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d patients", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Name()
		phone := gofakeit.Phone()

		// Roughly one in five patients books by phone only.
		var email *string
		if gofakeit.Number(0, 4) > 0 {
			e := gofakeit.Email()
			email = &e
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO patients (id, app_id, name, email, phone, notes, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, '', now(), now())
		`, id, appID, name, email, phone)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("patients seeded")
	return ids, nil
}

func seedAppointments(ctx context.Context, pool *pgxpool.Pool, appID string, patients []uuid.UUID) error {
	log.Println("seeding appointments over the next two weeks")

	reasons := []clinic.Reason{clinic.ReasonFirstVisit, clinic.ReasonFollowUp, clinic.ReasonSpecificService}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	total := 0
	for _, loc := range clinic.Locations {
		day := time.Now()
		for offset := 0; offset < 14; offset++ {
			day = day.AddDate(0, 0, 1)
			date := day.Format(clinic.DateLayout)
			slots := loc.DaySlots()

			for _, slot := range slots {
				// Fill about a third of the calendar.
				if gofakeit.Number(0, 2) != 0 {
					continue
				}

				startsAt, err := clinic.CombineDateTime(date, slot)
				if err != nil {
					return err
				}
				if !allows(loc, startsAt.Weekday()) {
					continue
				}

				patient := patients[gofakeit.Number(0, len(patients)-1)]
				reason := reasons[gofakeit.Number(0, len(reasons)-1)]

				_, err = tx.Exec(ctx, `
					INSERT INTO appointments (id, app_id, patient_id, location_id, reason, starts_at, status, notes, created_at, updated_at)
					VALUES ($1, $2, $3, $4, $5, $6, $7, '', now(), now())
					ON CONFLICT DO NOTHING
				`, uuid.New(), appID, patient, loc.ID, reason, startsAt, clinic.StatusConfirmed)
				if err != nil {
					return err
				}
				total++
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Printf("appointments seeded: %d", total)
	return nil
}

func allows(loc clinic.Location, d time.Weekday) bool {
	for _, ad := range loc.AllowedDays {
		if ad == d {
			return true
		}
	}
	return false
}
