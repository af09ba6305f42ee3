package services

import (
	"context"
	"encoding/json"
	"log"

	"github.com/jmoiron/sqlx/types"
	"github.com/yourusername/footprint/models"
)

// ReportRecorder archives a fresh report and adds it to the history table.
// Either side may be nil. Failures are logged and never fail the analysis.
type ReportRecorder struct {
	archiver *Archiver
	reports  models.ReportRepositoryInterface
}

func NewReportRecorder(archiver *Archiver, reports models.ReportRepositoryInterface) *ReportRecorder {
	return &ReportRecorder{archiver: archiver, reports: reports}
}

// Record sets report.ArchiveURL when archiving succeeds. If the history
// insert fails the archived copy is removed again so the two stay in step.
func (r *ReportRecorder) Record(ctx context.Context, report *Report) {
	if r.archiver != nil {
		if url, err := r.archiver.Archive(ctx, report); err != nil {
			log.Printf("Recorder: %v", err)
		} else {
			report.ArchiveURL = url
		}
	}
	if r.reports == nil {
		return
	}
	payload, err := json.Marshal(report)
	if err != nil {
		log.Printf("Recorder: failed to encode report %s: %v", report.ID, err)
		return
	}
	record := &models.ReportRecord{
		ID:           report.ID,
		MediaURL:     report.MediaURL,
		Generator:    report.Footprint.AIGeneratorName,
		Method:       report.Footprint.Method,
		TotalMatches: report.Footprint.TotalMatches,
		IsViral:      report.Footprint.IsViral,
		Payload:      types.JSONText(payload),
	}
	if err := r.reports.Create(record); err != nil {
		log.Printf("Recorder: failed to save report %s: %v", report.ID, err)
		if report.ArchiveURL != "" {
			if derr := r.archiver.Remove(ctx, report); derr != nil {
				log.Printf("Recorder: %v", derr)
			}
			report.ArchiveURL = ""
		}
	}
}
