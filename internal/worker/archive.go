package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/covenant-hq/church-backend/internal/models"
	"github.com/covenant-hq/church-backend/pkg/storage"
)

// AuditSource reads the audit records of a time range.
type AuditSource interface {
	ListBetween(ctx context.Context, from, to time.Time) ([]*models.AuditLog, error)
}

// ArchiveStore is the object store archives are uploaded to.
type ArchiveStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error)
}

// Archiver uploads one UTC day of audit records as JSON lines.
type Archiver struct {
	source   AuditSource
	store    ArchiveStore
	archived prometheus.Counter
	now      func() time.Time
	logger   *zap.Logger
}

// NewArchiver creates an audit archiver. archived may be nil.
func NewArchiver(source AuditSource, store ArchiveStore, archived prometheus.Counter, logger *zap.Logger) *Archiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archiver{source: source, store: store, archived: archived, now: time.Now, logger: logger}
}

// Archive uploads the records of day. An existing archive is left alone. It returns the number of records
// uploaded.
func (a *Archiver) Archive(ctx context.Context, day time.Time) (int, error) {
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	key := storage.ArchiveKey(from)

	exists, err := a.store.Exists(ctx, key)
	if err != nil {
		return 0, err
	}
	if exists {
		a.logger.Info("audit archive already present", zap.String("key", key))
		return 0, nil
	}

	entries, err := a.source.ListBetween(ctx, from, from.AddDate(0, 0, 1))
	if err != nil {
		return 0, fmt.Errorf("list audit records: %w", err)
	}
	if len(entries) == 0 {
		a.logger.Info("no audit records to archive", zap.String("day", from.Format("2006-01-02")))
		return 0, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return 0, fmt.Errorf("encode audit record %s: %w", e.ID, err)
		}
	}
	uri, err := a.store.Upload(ctx, key, storage.ContentTypeJSONLines, &buf)
	if err != nil {
		return 0, err
	}
	if a.archived != nil {
		a.archived.Add(float64(len(entries)))
	}
	a.logger.Info("audit archive uploaded", zap.String("uri", uri), zap.Int("records", len(entries)))
	return len(entries), nil
}

// ArchivePreviousDay archives yesterday (UTC).
func (a *Archiver) ArchivePreviousDay(ctx context.Context) error {
	_, err := a.Archive(ctx, a.now().UTC().AddDate(0, 0, -1))
	return err
}
