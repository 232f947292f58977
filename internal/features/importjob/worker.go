package importjob

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go-cohort/internal/config"
	"go-cohort/internal/features/dataset"
	"go-cohort/internal/features/filestore"
	"go-cohort/internal/features/patient"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Collaborator contracts consumed by the engine. The Mongo-backed
// feature services satisfy them; tests use fakes.

type FileOpener interface {
	Get(ctx context.Context, reference string) (*filestore.StoredFile, error)
	OpenRows(ctx context.Context, reference string) (filestore.RowIterator, error)
	CountRows(ctx context.Context, reference string) (int, error)
}

type PatientStore interface {
	AllPatients(ctx context.Context) ([]patient.Patient, error)
	CreatePatient(ctx context.Context, p *patient.Patient) (*patient.Patient, error)
}

type EntryStore interface {
	ListVariables(ctx context.Context, datasetID string) ([]dataset.Variable, error)
	EnsureVariable(ctx context.Context, datasetID primitive.ObjectID, name string, kind dataset.VariableKind) (*dataset.Variable, bool, error)
	SaveEntries(ctx context.Context, entries []dataset.DataEntry) error
}

// jobControl carries the cooperative pause/cancel signals for one live
// worker. Signals are observed between rows, never mid-row.
type jobControl struct {
	mu              sync.Mutex
	pauseRequested  bool
	cancelRequested bool
}

func (c *jobControl) requestPause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pauseRequested = true
}

func (c *jobControl) requestCancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelRequested = true
}

func (c *jobControl) signals() (pause, cancel bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pauseRequested, c.cancelRequested
}

// Engine runs import jobs. At most one worker per job id; a job already
// running cannot be started twice.
type Engine struct {
	Jobs     JobRepository
	Files    FileOpener
	Patients PatientStore
	Datasets EntryStore
	Config   *config.Config
	Logger   *zap.Logger

	mu       sync.Mutex
	controls map[string]*jobControl
}

func NewEngine(jobs JobRepository, files FileOpener, patients PatientStore, datasets EntryStore, cfg *config.Config, logger *zap.Logger) *Engine {
	return &Engine{
		Jobs:     jobs,
		Files:    files,
		Patients: patients,
		Datasets: datasets,
		Config:   cfg,
		Logger:   logger,
		controls: map[string]*jobControl{},
	}
}

// Start launches the worker goroutine for a job already transitioned to
// RUNNING. Returns an error if a worker for this id is active.
func (e *Engine) Start(jobID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, active := e.controls[jobID]; active {
		return fmt.Errorf("job %s is already running", jobID)
	}
	e.controls[jobID] = &jobControl{}

	go e.run(jobID)
	return nil
}

// Running reports whether a worker for the job is active in-process.
func (e *Engine) Running(jobID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, active := e.controls[jobID]
	return active
}

// RequestPause signals the job's worker. Returns false when no worker
// is active in this process.
func (e *Engine) RequestPause(jobID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	ctl, active := e.controls[jobID]
	if active {
		ctl.requestPause()
	}
	return active
}

// RequestCancel signals the job's worker. Returns false when no worker
// is active in this process.
func (e *Engine) RequestCancel(jobID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	ctl, active := e.controls[jobID]
	if active {
		ctl.requestCancel()
	}
	return active
}

func (e *Engine) control(jobID string) *jobControl {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.controls[jobID]
}

func (e *Engine) release(jobID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.controls, jobID)
}

func (e *Engine) run(jobID string) {
	defer e.release(jobID)

	ctx := context.Background()

	job, err := e.Jobs.Get(ctx, jobID)
	if err != nil {
		e.Logger.Error("import worker could not load job", zap.String("jobId", jobID), zap.Error(err))
		return
	}
	if job.Status != StatusRunning {
		e.Logger.Warn("import worker started on non-running job", zap.String("jobId", jobID), zap.String("status", string(job.Status)))
		return
	}

	if err := e.process(ctx, job); err != nil {
		e.fail(ctx, job, err)
	}
}

func (e *Engine) process(ctx context.Context, job *ImportJob) error {
	jobID := job.ID.Hex()
	ctl := e.control(jobID)

	patients, err := e.Patients.AllPatients(ctx)
	if err != nil {
		return fmt.Errorf("failed to load patient store: %w", err)
	}
	matcher := NewMatcher(patients, e.Config.Import)

	if job.TotalRows == 0 {
		total, err := e.Files.CountRows(ctx, job.SourceFileRef)
		if err != nil {
			return fmt.Errorf("failed to count rows: %w", err)
		}
		job.TotalRows = total
	}

	it, err := e.Files.OpenRows(ctx, job.SourceFileRef)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer it.Close()

	engine, err := newRowEngine(it.Headers(), job.ColumnMapping, job.ColumnTypes, matcher, e.Config.Import)
	if err != nil {
		return fmt.Errorf("invalid mapping: %w", err)
	}

	// Auto-create variables for unmapped data columns once per job
	for _, col := range engine.autoColumns {
		kind := job.ColumnTypes[col]
		_, created, err := e.Datasets.EnsureVariable(ctx, job.DatasetID, col, kind)
		if err != nil {
			return fmt.Errorf("failed to create variable %s: %w", col, err)
		}
		if created {
			job.VariablesCreated++
		}
	}

	rowTimeout := time.Duration(e.Config.Import.RowTimeoutSeconds) * time.Second
	batchSize := e.Config.Import.BatchSize
	if batchSize < 1 {
		batchSize = 100
	}

	var batch []dataset.DataEntry
	sinceCheckpoint := 0
	rowNum := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := e.Datasets.SaveEntries(ctx, batch); err != nil {
			return fmt.Errorf("failed to persist entries: %w", err)
		}
		batch = batch[:0]
		return nil
	}

	stopAs := func(status JobStatus, reason PausedReason) error {
		if err := flush(); err != nil {
			return err
		}
		job.Status = status
		job.PausedReason = reason
		if status == StatusCancelled {
			now := time.Now()
			job.CompletedAt = &now
		}
		if err := e.Jobs.Update(ctx, job); err != nil {
			return fmt.Errorf("failed to persist job: %w", err)
		}
		e.Logger.Info("import worker stopped",
			zap.String("jobId", jobID),
			zap.String("status", string(status)),
			zap.Int("processedRows", job.ProcessedRows))
		return nil
	}

	for {
		row, ok, err := it.Next()
		if err != nil {
			return fmt.Errorf("failed to read row: %w", err)
		}
		if !ok {
			break
		}
		rowNum++

		// Rows before the checkpoint were committed by a previous run;
		// replay them into the grouper only.
		if rowNum <= job.ProcessedRows {
			engine.Replay(ctx, rowNum, row)
			continue
		}

		pause, cancel := ctl.signals()
		if cancel {
			return stopAs(StatusCancelled, "")
		}
		if pause {
			return stopAs(StatusPaused, PausedManual)
		}

		rowCtx, cancelRow := context.WithTimeout(ctx, rowTimeout)
		outcome := engine.Process(rowCtx, rowNum, row)
		if err := e.apply(rowCtx, job, engine, &outcome); err != nil {
			cancelRow()
			return err
		}
		cancelRow()

		e.tally(job, outcome)
		job.ProcessedRows++
		sinceCheckpoint++

		if outcome.Status == RowUpdate || outcome.Status == RowNew {
			batch = append(batch, e.entryFor(job, outcome))
		}

		if job.ConsecutiveErrors >= e.Config.Import.ConsecutiveErrorThreshold {
			return stopAs(StatusPaused, PausedConsecutiveErrors)
		}

		if sinceCheckpoint >= batchSize {
			if err := flush(); err != nil {
				return err
			}
			if err := e.Jobs.Update(ctx, job); err != nil {
				return fmt.Errorf("failed to persist job: %w", err)
			}
			sinceCheckpoint = 0
		}
	}

	if err := flush(); err != nil {
		return err
	}

	job.Status = StatusCompleted
	job.PausedReason = ""
	now := time.Now()
	job.CompletedAt = &now
	if err := e.Jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("failed to persist job: %w", err)
	}

	e.Logger.Info("import completed",
		zap.String("jobId", jobID),
		zap.Int("imported", job.ImportedCount),
		zap.Int("updated", job.UpdatedCount),
		zap.Int("skipped", job.SkippedCount),
		zap.Int("errors", job.ErrorCount))
	return nil
}

// apply performs the row's side effects. Patient creation failures are
// row errors; only store-level batch failures abort the job.
func (e *Engine) apply(ctx context.Context, job *ImportJob, engine *rowEngine, outcome *rowOutcome) error {
	if outcome.Status != RowNew {
		return nil
	}

	p := patientFromIdentity(outcome.Identity, time.Now())
	if p.Reference == "" {
		// Rows matched by name only still need a unique reference
		p.Reference = "AUTO-" + uuid.New().String()
	}
	created, err := e.Patients.CreatePatient(ctx, p)
	if err != nil {
		outcome.Status = RowError
		outcome.Message = fmt.Sprintf("failed to create patient: %v", err)
		return nil
	}

	job.PatientsCreated++
	outcome.Candidate = &MatchCandidate{
		PatientID:   created.ID,
		Reference:   created.Reference,
		DisplayName: created.FirstName + " " + created.LastName,
	}
	return nil
}

// tally updates the counter set. Invariant: imported+updated+skipped+
// errors always equals the number of rows tallied.
func (e *Engine) tally(job *ImportJob, outcome rowOutcome) {
	switch outcome.Status {
	case RowFileDuplicate:
		job.SkippedCount++
		job.ConsecutiveErrors = 0
	case RowError:
		job.ErrorCount++
		job.ConsecutiveErrors++
		if len(job.Errors) < e.Config.Import.MaxStoredErrors {
			job.Errors = append(job.Errors, ImportError{
				RowNumber: outcome.RowNumber,
				Message:   outcome.Message,
			})
		}
	case RowUpdate:
		job.UpdatedCount++
		job.ConsecutiveErrors = 0
	case RowNew:
		job.ImportedCount++
		job.ConsecutiveErrors = 0
	}
}

func (e *Engine) entryFor(job *ImportJob, outcome rowOutcome) dataset.DataEntry {
	reference := outcome.Identity.Reference
	if reference == "" && outcome.Candidate != nil {
		reference = outcome.Candidate.Reference
	}

	entry := dataset.DataEntry{
		DatasetID: job.DatasetID,
		Reference: reference,
		Values:    outcome.Values,
	}
	if outcome.Candidate != nil {
		entry.PatientID = outcome.Candidate.PatientID
	}
	return entry
}

func (e *Engine) fail(ctx context.Context, job *ImportJob, cause error) {
	e.Logger.Error("import failed",
		zap.String("jobId", job.ID.Hex()),
		zap.Int("processedRows", job.ProcessedRows),
		zap.Error(cause))

	job.Status = StatusFailed
	job.PausedReason = ""
	now := time.Now()
	job.CompletedAt = &now
	if len(job.Errors) < e.Config.Import.MaxStoredErrors {
		job.Errors = append(job.Errors, ImportError{RowNumber: 0, Message: cause.Error()})
	}

	if err := e.Jobs.Update(ctx, job); err != nil {
		e.Logger.Error("failed to persist failed job", zap.String("jobId", job.ID.Hex()), zap.Error(err))
	}
}
