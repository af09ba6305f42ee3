package db

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

var DB *sqlx.DB

// Enabled reports whether report history is configured.
func Enabled() bool {
	return os.Getenv("DATABASE_URL") != ""
}

// Connect opens DATABASE_URL, retrying while the database container starts.
func Connect() error {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return fmt.Errorf("DATABASE_URL is not set")
	}

	var err error
	for i := 0; i < 30; i++ {
		DB, err = sqlx.Connect("postgres", databaseURL)
		if err == nil {
			break
		}
		log.Printf("Database connection attempt %d failed: %v", i+1, err)
		time.Sleep(1 * time.Second)
	}
	if err != nil {
		return fmt.Errorf("failed to connect to database after retries: %w", err)
	}

	DB.SetMaxOpenConns(10)
	DB.SetMaxIdleConns(10)
	return nil
}

const schema = `
	CREATE TABLE IF NOT EXISTS reports (
		id UUID PRIMARY KEY,
		media_url TEXT NOT NULL,
		generator VARCHAR(255) NOT NULL DEFAULT 'Unknown',
		method VARCHAR(50) NOT NULL DEFAULT 'None',
		total_matches INTEGER NOT NULL DEFAULT 0,
		is_viral BOOLEAN NOT NULL DEFAULT FALSE,
		payload JSONB NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_reports_created ON reports(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_reports_media_url ON reports(media_url);
`

func Migrate() error {
	_, err := DB.Exec(schema)
	return err
}

var errNotConnected = errors.New("database not connected")

func Ping(ctx context.Context) error {
	if DB == nil {
		return errNotConnected
	}
	return DB.PingContext(ctx)
}

// Reconnect replaces DB with a fresh pool. Unlike Connect it makes a single
// attempt so a request is never held for the full retry window.
func Reconnect() error {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return fmt.Errorf("DATABASE_URL is not set")
	}
	fresh, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return err
	}
	fresh.SetMaxOpenConns(10)
	fresh.SetMaxIdleConns(10)
	old := DB
	DB = fresh
	if old != nil {
		old.Close()
	}
	return nil
}

func Close() error {
	if DB != nil {
		return DB.Close()
	}
	return nil
}
