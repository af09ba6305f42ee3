package models

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type ReportRepository struct {
	db *sqlx.DB
}

func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

func (r *ReportRepository) Create(record *ReportRecord) error {
	query := `
		INSERT INTO reports (id, media_url, generator, method, total_matches, is_viral, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`

	err := r.db.QueryRow(query,
		record.ID, record.MediaURL, record.Generator, record.Method,
		record.TotalMatches, record.IsViral, record.Payload).
		Scan(&record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}
	return nil
}

func (r *ReportRepository) GetByID(id uuid.UUID) (*ReportRecord, error) {
	var record ReportRecord
	query := `SELECT id, media_url, generator, method, total_matches, is_viral, payload, created_at
		FROM reports WHERE id = $1`
	if err := r.db.Get(&record, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

func (r *ReportRepository) ListRecent(limit int) ([]ReportSummary, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	summaries := []ReportSummary{}
	query := `SELECT id, media_url, generator, method, total_matches, is_viral, created_at
		FROM reports ORDER BY created_at DESC LIMIT $1`
	if err := r.db.Select(&summaries, query, limit); err != nil {
		return nil, err
	}
	return summaries, nil
}
