package backup

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/datatops/datatops/internal/store"
)

// Destination is the interface for a backup target.
type Destination interface {
	Write(ctx context.Context, key string, data []byte) error
}

// Scheduler exports the store to a destination on a cron schedule. Each run
// uploads a fresh timestamped object, so older backups are never overwritten.
type Scheduler struct {
	store  store.Store
	dest   Destination
	prefix string
	logger *slog.Logger
	cron   *cron.Cron
}

// NewScheduler creates a Scheduler. prefix is prepended to every object key.
func NewScheduler(s store.Store, dest Destination, prefix string, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		store:  s,
		dest:   dest,
		prefix: prefix,
		logger: logger,
		cron:   cron.New(),
	}
}

// Start registers the cron schedule (standard 5-field syntax) and begins
// running backups in the background.
func (s *Scheduler) Start(schedule string) error {
	_, err := s.cron.AddFunc(schedule, func() {
		if err := s.RunOnce(context.Background()); err != nil {
			s.logger.Error("backup failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("parse backup schedule %q: %w", schedule, err)
	}
	s.cron.Start()
	return nil
}

// Stop halts scheduling and waits for a running backup to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunOnce exports the store and uploads a single timestamped backup object.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	var buf bytes.Buffer
	if err := Export(ctx, s.store, &buf); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	key := ObjectKey(s.prefix, time.Now().UTC())
	if err := s.dest.Write(ctx, key, buf.Bytes()); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	s.logger.Info("backup completed", "key", key, "bytes", buf.Len())
	return nil
}

// ObjectKey builds the object key for a backup taken at ts.
func ObjectKey(prefix string, ts time.Time) string {
	return fmt.Sprintf("%sdatatops-%s.jsonl", prefix, ts.Format("20060102T150405Z"))
}
