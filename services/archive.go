package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
)

// Archiver writes finished reports to Storage as standalone JSON documents.
type Archiver struct {
	storage Storage
	prefix  string
}

func NewArchiver(storage Storage, prefix string) *Archiver {
	if prefix == "" {
		prefix = "reports"
	}
	return &Archiver{storage: storage, prefix: prefix}
}

func (a *Archiver) Key(report *Report) string {
	return path.Join(a.prefix, report.ID.String()+".json")
}

// Archive stores report and returns the URL it can be fetched from.
func (a *Archiver) Archive(ctx context.Context, report *Report) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}
	url, err := a.storage.Save(ctx, a.Key(report), bytes.NewReader(data), "application/json")
	if err != nil {
		return "", fmt.Errorf("failed to archive report: %w", err)
	}
	return url, nil
}

// Remove deletes the archived copy of report.
func (a *Archiver) Remove(ctx context.Context, report *Report) error {
	if err := a.storage.Delete(ctx, a.Key(report)); err != nil {
		return fmt.Errorf("failed to remove archived report: %w", err)
	}
	return nil
}
