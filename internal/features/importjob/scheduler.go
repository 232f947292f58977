package importjob

import (
	"context"
	"fmt"
	"log"
	"time"

	"go-cohort/internal/config"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// FilePruner is the slice of the file store used by maintenance.
type FilePruner interface {
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// Maintenance owns the background housekeeping around import jobs: a
// startup sweep that pauses jobs a dead process left RUNNING, and a
// nightly retention pass over terminal jobs and their source files.
type Maintenance struct {
	ImportService ImportService
	Files         FilePruner
	Config        *config.Config
	Logger        *zap.Logger

	scheduler *cron.Cron
}

func NewMaintenance(importService ImportService, files FilePruner, cfg *config.Config, logger *zap.Logger) *Maintenance {
	return &Maintenance{
		ImportService: importService,
		Files:         files,
		Config:        cfg,
		Logger:        logger,
	}
}

func (m *Maintenance) Start(ctx context.Context) error {
	// Jobs marked RUNNING at boot were interrupted by the restart;
	// their checkpoints make them resumable.
	if _, err := m.ImportService.SweepInterrupted(ctx); err != nil {
		return fmt.Errorf("failed to sweep interrupted jobs: %w", err)
	}

	m.scheduler = cron.New()
	if _, err := m.scheduler.AddFunc("0 3 * * *", m.prune); err != nil {
		return fmt.Errorf("failed to schedule retention pruning: %w", err)
	}
	m.scheduler.Start()

	return nil
}

func (m *Maintenance) Stop() error {
	if m.scheduler != nil {
		ctx := m.scheduler.Stop()
		<-ctx.Done()
	}
	return nil
}

func (m *Maintenance) prune() {
	ctx := context.Background()

	pruned, err := m.ImportService.PruneExpired(ctx)
	if err != nil {
		log.Printf("Failed to prune expired import jobs: %v", err)
	}

	days := m.Config.Import.RetentionDays
	removed := 0
	if days > 0 {
		cutoff := time.Now().AddDate(0, 0, -days)
		removed, err = m.Files.PruneOlderThan(ctx, cutoff)
		if err != nil {
			log.Printf("Failed to prune expired upload files: %v", err)
		}
	}

	if pruned > 0 || removed > 0 {
		m.Logger.Info("retention pruning done",
			zap.Int64("jobsRemoved", pruned),
			zap.Int("filesRemoved", removed))
	}
}
