package models

import "github.com/google/uuid"

type ReportRepositoryInterface interface {
	Create(record *ReportRecord) error
	GetByID(id uuid.UUID) (*ReportRecord, error)
	ListRecent(limit int) ([]ReportSummary, error)
}
