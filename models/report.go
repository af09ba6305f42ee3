package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
)

var ErrNotFound = errors.New("report not found")

// ReportRecord is one stored analysis. Payload holds the full JSON report as
// it was returned to the caller.
type ReportRecord struct {
	ID           uuid.UUID      `json:"id" db:"id"`
	MediaURL     string         `json:"media_url" db:"media_url"`
	Generator    string         `json:"generator" db:"generator"`
	Method       string         `json:"method" db:"method"`
	TotalMatches int            `json:"total_matches" db:"total_matches"`
	IsViral      bool           `json:"is_viral" db:"is_viral"`
	Payload      types.JSONText `json:"payload" db:"payload"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
}

// ReportSummary is the list view of a record, without the payload.
type ReportSummary struct {
	ID           uuid.UUID `json:"id" db:"id"`
	MediaURL     string    `json:"media_url" db:"media_url"`
	Generator    string    `json:"generator" db:"generator"`
	Method       string    `json:"method" db:"method"`
	TotalMatches int       `json:"total_matches" db:"total_matches"`
	IsViral      bool      `json:"is_viral" db:"is_viral"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

type AnalyzeRequest struct {
	MediaURL string `json:"mediaUrl" validate:"required,http_url,max=2048"`
}

type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
