package importjob

import (
	"context"
	"fmt"
	"time"

	"go-cohort/internal/config"
	"go-cohort/internal/features/dataset"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type CreateJobRequest struct {
	DatasetID     string                          `json:"datasetId"`
	SourceFileRef string                          `json:"sourceFileRef"`
	ColumnMapping ColumnMapping                   `json:"columnMapping"`
	ColumnTypes   map[string]dataset.VariableKind `json:"columnTypes"`
	CreatedBy     string                          `json:"-"`
}

type PreviewRequest struct {
	SourceFileRef string         `json:"sourceFileRef"`
	DatasetID     string         `json:"datasetId"`
	Mapping       *ColumnMapping `json:"mapping,omitempty"`
}

type ImportService interface {
	CreateJob(ctx context.Context, req *CreateJobRequest) (*ImportJob, error)
	GetJob(ctx context.Context, id string) (*ImportJob, error)
	ListJobs(ctx context.Context, datasetID string, limit int) ([]ImportJob, error)
	// UpdateJob finalizes the mapping of a PENDING job and starts it.
	UpdateJob(ctx context.Context, id string, mapping ColumnMapping, columnTypes map[string]dataset.VariableKind) (*ImportJob, error)
	PauseJob(ctx context.Context, id string) error
	ResumeJob(ctx context.Context, id string) error
	CancelJob(ctx context.Context, id string) error
	Preview(ctx context.Context, req *PreviewRequest) (*PreviewResult, error)
	// SweepInterrupted pauses jobs left RUNNING by a dead process.
	SweepInterrupted(ctx context.Context) (int, error)
	// PruneExpired removes terminal jobs past the retention window.
	PruneExpired(ctx context.Context) (int64, error)
}

type ImportServiceImpl struct {
	JobRepo JobRepository
	Engine  *Engine
	Files   FileOpener
	Config  *config.Config
	Logger  *zap.Logger
}

func NewImportService(jobRepo JobRepository, engine *Engine, files FileOpener, cfg *config.Config, logger *zap.Logger) ImportService {
	return &ImportServiceImpl{
		JobRepo: jobRepo,
		Engine:  engine,
		Files:   files,
		Config:  cfg,
		Logger:  logger,
	}
}

var knownIdentityFields = map[string]bool{
	FieldReference:   true,
	FieldFirstName:   true,
	FieldLastName:    true,
	FieldDateOfBirth: true,
	FieldAge:         true,
	FieldGender:      true,
	FieldLatitude:    true,
	FieldLongitude:   true,
}

// validateMapping enforces the configuration-error contract: at least
// one identity field, only known field names, every mapped column
// present in the file, transforms that compile. Violations keep the job
// PENDING.
func (s *ImportServiceImpl) validateMapping(ctx context.Context, fileRef string, mapping ColumnMapping) error {
	if len(mapping.IdentityFields) == 0 {
		return fmt.Errorf("mapping must include at least one identity field")
	}

	it, err := s.Files.OpenRows(ctx, fileRef)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	headers := map[string]bool{}
	for _, h := range it.Headers() {
		headers[h] = true
	}
	it.Close()

	for field, column := range mapping.IdentityFields {
		if !knownIdentityFields[field] {
			return fmt.Errorf("unknown identity field %q", field)
		}
		if !headers[column] {
			return fmt.Errorf("identity field %s mapped to unknown column %q", field, column)
		}
	}

	for variable, column := range mapping.VariableFields {
		if !headers[column] {
			return fmt.Errorf("variable %s mapped to unknown column %q", variable, column)
		}
	}

	for column := range mapping.Transforms {
		if !headers[column] {
			return fmt.Errorf("transform on unknown column %q", column)
		}
	}
	if _, err := CompileTransforms(mapping.Transforms); err != nil {
		return err
	}

	return nil
}

func (s *ImportServiceImpl) CreateJob(ctx context.Context, req *CreateJobRequest) (*ImportJob, error) {
	datasetID, err := primitive.ObjectIDFromHex(req.DatasetID)
	if err != nil {
		return nil, fmt.Errorf("invalid dataset id")
	}

	stored, err := s.Files.Get(ctx, req.SourceFileRef)
	if err != nil {
		return nil, fmt.Errorf("source file not found: %w", err)
	}

	total, err := s.Files.CountRows(ctx, req.SourceFileRef)
	if err != nil {
		return nil, fmt.Errorf("failed to read source file: %w", err)
	}

	job := &ImportJob{
		DatasetID:     datasetID,
		SourceFileRef: req.SourceFileRef,
		FileName:      stored.OriginalName,
		ColumnMapping: req.ColumnMapping,
		ColumnTypes:   req.ColumnTypes,
		Status:        StatusPending,
		TotalRows:     total,
		CreatedBy:     req.CreatedBy,
	}

	start := !req.ColumnMapping.Empty()
	if start {
		if err := s.validateMapping(ctx, req.SourceFileRef, req.ColumnMapping); err != nil {
			return nil, err
		}
		job.Status = StatusRunning
		now := time.Now()
		job.StartedAt = &now
	}

	if err := s.JobRepo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	if start {
		if err := s.Engine.Start(job.ID.Hex()); err != nil {
			return nil, err
		}
	}

	return job, nil
}

func (s *ImportServiceImpl) GetJob(ctx context.Context, id string) (*ImportJob, error) {
	return s.JobRepo.Get(ctx, id)
}

func (s *ImportServiceImpl) ListJobs(ctx context.Context, datasetID string, limit int) ([]ImportJob, error) {
	return s.JobRepo.List(ctx, datasetID, limit)
}

func (s *ImportServiceImpl) UpdateJob(ctx context.Context, id string, mapping ColumnMapping, columnTypes map[string]dataset.VariableKind) (*ImportJob, error) {
	job, err := s.JobRepo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("job not found: %w", err)
	}

	if job.Status != StatusPending {
		return nil, fmt.Errorf("job is %s, mapping can only change while PENDING", job.Status)
	}

	if err := s.validateMapping(ctx, job.SourceFileRef, mapping); err != nil {
		return nil, err
	}

	job.ColumnMapping = mapping
	if columnTypes != nil {
		job.ColumnTypes = columnTypes
	}
	job.Status = StatusRunning
	now := time.Now()
	job.StartedAt = &now

	if err := s.JobRepo.Update(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to update job: %w", err)
	}

	if err := s.Engine.Start(job.ID.Hex()); err != nil {
		return nil, err
	}

	return job, nil
}

// PauseJob is asynchronous: the PAUSED transition is observed via a
// later GetJob once the worker reaches a row boundary.
func (s *ImportServiceImpl) PauseJob(ctx context.Context, id string) error {
	job, err := s.JobRepo.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("job not found: %w", err)
	}

	if job.Status != StatusRunning {
		return fmt.Errorf("cannot pause job in status %s", job.Status)
	}

	if !s.Engine.RequestPause(id) {
		// No live worker in this process (e.g. marked RUNNING before a
		// restart); transition directly.
		return s.JobRepo.UpdateStatus(ctx, id, StatusPaused, PausedManual)
	}
	return nil
}

func (s *ImportServiceImpl) ResumeJob(ctx context.Context, id string) error {
	job, err := s.JobRepo.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("job not found: %w", err)
	}

	if job.Status != StatusPaused {
		return fmt.Errorf("cannot resume job in status %s", job.Status)
	}

	job.Status = StatusRunning
	job.PausedReason = ""
	// Operator intervened; give the error streak a fresh start
	job.ConsecutiveErrors = 0

	if err := s.JobRepo.Update(ctx, job); err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	return s.Engine.Start(id)
}

func (s *ImportServiceImpl) CancelJob(ctx context.Context, id string) error {
	job, err := s.JobRepo.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("job not found: %w", err)
	}

	if !CanTransition(job.Status, StatusCancelled) {
		return fmt.Errorf("cannot cancel job in status %s", job.Status)
	}

	if s.Engine.RequestCancel(id) {
		// Worker stops and persists CANCELLED at the next row boundary
		return nil
	}
	return s.JobRepo.UpdateStatus(ctx, id, StatusCancelled, "")
}

func (s *ImportServiceImpl) Preview(ctx context.Context, req *PreviewRequest) (*PreviewResult, error) {
	return s.Engine.Preview(ctx, req.SourceFileRef, req.DatasetID, req.Mapping)
}

func (s *ImportServiceImpl) SweepInterrupted(ctx context.Context) (int, error) {
	jobs, err := s.JobRepo.FindByStatus(ctx, StatusRunning)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, job := range jobs {
		id := job.ID.Hex()
		if s.Engine.Running(id) {
			continue
		}
		if err := s.JobRepo.UpdateStatus(ctx, id, StatusPaused, PausedServerRestart); err != nil {
			s.Logger.Error("failed to pause interrupted job", zap.String("jobId", id), zap.Error(err))
			continue
		}
		swept++
	}

	if swept > 0 {
		s.Logger.Info("paused interrupted import jobs", zap.Int("count", swept))
	}
	return swept, nil
}

func (s *ImportServiceImpl) PruneExpired(ctx context.Context) (int64, error) {
	days := s.Config.Import.RetentionDays
	if days <= 0 {
		return 0, nil
	}

	cutoff := time.Now().AddDate(0, 0, -days)
	return s.JobRepo.DeleteTerminalOlderThan(ctx, cutoff)
}
