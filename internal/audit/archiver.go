package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/campuspass/backend/internal/models"
	"github.com/campuspass/backend/internal/store"
	"github.com/campuspass/backend/pkg/storage"
)

const (
	// CursorKey holds the created_at of the last archived entry.
	CursorKey = storage.FolderAudit + "/_cursor"
	// DefaultBatchSize is the maximum number of entries per archive object.
	DefaultBatchSize = 500
	// DefaultInterval is the pause between archive passes.
	DefaultInterval = 15 * time.Minute
)

// ObjectStore is satisfied by *storage.S3.
type ObjectStore interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader, contentLength int64) (string, error)
	GetObjectStream(ctx context.Context, key string) (io.ReadCloser, string, error)
}

// Archiver copies new audit entries to object storage as JSON Lines. Objects are keyed
// by their last entry, so re-running after a crash overwrites rather than duplicates.
type Archiver struct {
	src      store.AuditStore
	objects  ObjectStore
	batch    int
	interval time.Duration
	logger   *zap.Logger
}

// NewArchiver creates an Archiver. Non-positive batch or interval use the defaults.
func NewArchiver(src store.AuditStore, objects ObjectStore, batch int, interval time.Duration, logger *zap.Logger) *Archiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Archiver{src: src, objects: objects, batch: batch, interval: interval, logger: logger}
}

// Run archives until ctx is done. A failed pass is logged and retried next tick.
func (a *Archiver) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		if n, err := a.Drain(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			a.logger.Error("audit archive pass failed", zap.Error(err), zap.Int("archived", n))
		} else if n > 0 {
			a.logger.Info("audit entries archived", zap.Int("archived", n))
		}
		select {
		case <-ctx.Done():
			a.logger.Info("audit archiver stopping")
			return nil
		case <-ticker.C:
		}
	}
}

// Drain archives batches until no new entries remain and returns how many were written.
func (a *Archiver) Drain(ctx context.Context) (int, error) {
	total := 0
	for {
		n, err := a.ArchiveOnce(ctx)
		total += n
		if err != nil || n < a.batch {
			return total, err
		}
	}
}

// ArchiveOnce writes at most one batch and advances the cursor.
func (a *Archiver) ArchiveOnce(ctx context.Context) (int, error) {
	cursor, err := a.cursor(ctx)
	if err != nil {
		return 0, err
	}
	entries, err := a.src.ListSince(ctx, cursor, a.batch)
	if err != nil {
		return 0, fmt.Errorf("list audit entries: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	body, err := EncodeJSONL(entries)
	if err != nil {
		return 0, err
	}
	last := entries[len(entries)-1].CreatedAt
	key := storage.AuditKey(last)
	if _, err := a.objects.Upload(ctx, key, "application/x-ndjson", bytes.NewReader(body), int64(len(body))); err != nil {
		return 0, err
	}
	stamp := last.UTC().Format(time.RFC3339Nano)
	if _, err := a.objects.Upload(ctx, CursorKey, "text/plain", strings.NewReader(stamp), int64(len(stamp))); err != nil {
		return 0, fmt.Errorf("save cursor: %w", err)
	}
	a.logger.Debug("audit batch uploaded", zap.String("key", key), zap.Int("entries", len(entries)))
	return len(entries), nil
}

func (a *Archiver) cursor(ctx context.Context) (time.Time, error) {
	body, _, err := a.objects.GetObjectStream(ctx, CursorKey)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("load cursor: %w", err)
	}
	defer body.Close()
	raw, err := io.ReadAll(body)
	if err != nil {
		return time.Time{}, fmt.Errorf("read cursor: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(string(raw)))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cursor %q: %w", raw, err)
	}
	return t, nil
}

// EncodeJSONL renders entries one JSON object per line.
func EncodeJSONL(entries []models.AuditLogEntry) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range entries {
		if err := enc.Encode(&entries[i]); err != nil {
			return nil, fmt.Errorf("encode audit entry: %w", err)
		}
	}
	return buf.Bytes(), nil
}
