package main

import (
	"context"
	_ "embed"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/parisrizo/clinic-booking/internal/auth"
	"github.com/parisrizo/clinic-booking/internal/db"
)

//go:embed schema.sql
var schema string

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("migrate starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, schema); err != nil {
		log.Fatalf("apply schema: %v", err)
	}
	log.Println("schema applied")

	// Bootstrap an admin account when requested.
	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		log.Println("migrate complete (no admin bootstrap)")
		return
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		log.Fatalf("hash admin password: %v", err)
	}

	_, err = pool.Exec(ctx, `
		INSERT INTO admin_users (id, email, password_hash, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (email) DO UPDATE SET password_hash = EXCLUDED.password_hash
	`, uuid.New(), email, hash)
	if err != nil {
		log.Fatalf("bootstrap admin user: %v", err)
	}
	log.Printf("admin user %s ready", email)

	log.Println("migrate complete")
}
