package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fontbox/internal/repositories"
	"fontbox/internal/storage"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultOrphanMinAge keeps the sweeper away from files whose upload is
// still between SaveFile and the record insert.
const DefaultOrphanMinAge = 15 * time.Minute

// OrphanSweeper removes stored files that no font record references. Such
// files are left behind when a font's file delete fails after its record
// was already removed.
type OrphanSweeper struct {
	fonts   repositories.FontRepository
	storage storage.Backend
	minAge  time.Duration
	timeout time.Duration
	logger  *zap.Logger

	cron      *cron.Cron
	entryID   cron.EntryID
	mu        sync.Mutex
	isRunning bool
	now       func() time.Time
}

// NewOrphanSweeper creates a sweeper. Files younger than minAge are skipped.
func NewOrphanSweeper(fonts repositories.FontRepository, backend storage.Backend, minAge, timeout time.Duration, logger *zap.Logger) *OrphanSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if minAge <= 0 {
		minAge = DefaultOrphanMinAge
	}
	if timeout <= 0 {
		timeout = DefaultOperationTimeout
	}
	return &OrphanSweeper{
		fonts:   fonts,
		storage: backend,
		minAge:  minAge,
		timeout: timeout,
		logger:  logger,
		cron:    cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor))),
		now:     time.Now,
	}
}

// Sweep deletes every unreferenced font file older than the minimum age and
// returns how many were removed. Individual delete failures are logged and
// skipped.
func (s *OrphanSweeper) Sweep(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	files, err := s.storage.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list stored files: %w", err)
	}
	fonts, err := s.fonts.GetAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list fonts: %w", err)
	}

	referenced := make(map[string]struct{}, len(fonts))
	for _, f := range fonts {
		referenced[f.Filename] = struct{}{}
	}

	cutoff := s.now().Add(-s.minAge)
	removed := 0
	for _, file := range files {
		// Only font files this service wrote are candidates; the bucket or
		// directory may hold other data.
		if !storage.IsGeneratedFilename(file.Filename) {
			continue
		}
		if _, ok := referenced[file.Filename]; ok {
			continue
		}
		if file.ModTime.After(cutoff) {
			continue
		}
		if err := s.storage.DeleteFile(ctx, file.Filename); err != nil {
			s.logger.Warn("Failed to delete orphaned file", zap.String("filename", file.Filename), zap.Error(err))
			continue
		}
		s.logger.Info("Deleted orphaned file", zap.String("filename", file.Filename), zap.Time("modified", file.ModTime))
		removed++
	}
	return removed, nil
}

// Start runs Sweep on the given cron schedule until Stop is called.
func (s *OrphanSweeper) Start(schedule string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}
	entryID, err := s.cron.AddFunc(schedule, s.run)
	if err != nil {
		return fmt.Errorf("invalid orphan sweep schedule '%s': %w", schedule, err)
	}
	s.entryID = entryID
	s.cron.Start()
	s.isRunning = true

	s.logger.Info("Orphan sweeper started",
		zap.String("schedule", schedule),
		zap.Time("next_run", s.cron.Entry(entryID).Next))
	return nil
}

// Stop waits for a running sweep to finish and stops the schedule.
func (s *OrphanSweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}
	<-s.cron.Stop().Done()
	s.cron.Remove(s.entryID)
	s.isRunning = false
	s.logger.Info("Orphan sweeper stopped")
}

func (s *OrphanSweeper) run() {
	removed, err := s.Sweep(context.Background())
	if err != nil {
		s.logger.Error("Orphan sweep failed", zap.Error(err))
		return
	}
	s.logger.Debug("Orphan sweep finished", zap.Int("removed", removed))
}
