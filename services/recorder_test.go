package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/footprint/models"
)

type memReports struct {
	created   []*models.ReportRecord
	createErr error
}

func (m *memReports) Create(record *models.ReportRecord) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, record)
	return nil
}

func (m *memReports) GetByID(id uuid.UUID) (*models.ReportRecord, error) {
	return nil, models.ErrNotFound
}

func (m *memReports) ListRecent(limit int) ([]models.ReportSummary, error) {
	return nil, nil
}

func TestReportRecorder(t *testing.T) {
	dir := t.TempDir()
	archiver := NewArchiver(NewLocalStorage(dir), "reports")
	repo := &memReports{}
	r := sampleReport("https://x.example/a.jpg")

	NewReportRecorder(archiver, repo).Record(context.Background(), r)

	assert.Equal(t, "/archive/reports/"+r.ID.String()+".json", r.ArchiveURL)
	require.Len(t, repo.created, 1)
	rec := repo.created[0]
	assert.Equal(t, r.ID, rec.ID)
	assert.Equal(t, "Sora (Filename Trace)", rec.Generator)
	assert.Equal(t, "Visual Fingerprint", rec.Method)
	assert.Contains(t, string(rec.Payload), r.ArchiveURL)
	assert.FileExists(t, filepath.Join(dir, "reports", r.ID.String()+".json"))
}

func TestReportRecorderRollsBackArchive(t *testing.T) {
	dir := t.TempDir()
	archiver := NewArchiver(NewLocalStorage(dir), "reports")
	repo := &memReports{createErr: errors.New("duplicate key")}
	r := sampleReport("https://x.example/a.jpg")

	NewReportRecorder(archiver, repo).Record(context.Background(), r)

	assert.Empty(t, r.ArchiveURL)
	_, err := os.Stat(filepath.Join(dir, "reports", r.ID.String()+".json"))
	assert.True(t, os.IsNotExist(err), "archived copy should be removed")
}

func TestReportRecorderHistoryOnly(t *testing.T) {
	repo := &memReports{}
	r := sampleReport("https://x.example/a.jpg")

	NewReportRecorder(nil, repo).Record(context.Background(), r)

	assert.Empty(t, r.ArchiveURL)
	assert.Len(t, repo.created, 1)
}
