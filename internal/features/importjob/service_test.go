package importjob

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func newTestService(files *fakeFiles, repo *fakeJobRepo) (ImportService, *Engine) {
	engine := newTestEngine(files, &fakePatients{}, &fakeEntries{}, repo)
	return NewImportService(repo, engine, files, testConfig(), zap.NewNop()), engine
}

func waitForStatus(t *testing.T, repo *fakeJobRepo, id string, want JobStatus) ImportJob {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		job, err := repo.Get(nil, id)
		if err == nil && job.Status == want {
			return *job
		}
		time.Sleep(5 * time.Millisecond)
	}
	job, _ := repo.Get(nil, id)
	t.Fatalf("job never reached %s, last seen %+v", want, job)
	return ImportJob{}
}

func TestCanTransitionMatrix(t *testing.T) {
	tests := []struct {
		from, to JobStatus
		want     bool
	}{
		{StatusPending, StatusRunning, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusPaused, false},
		{StatusRunning, StatusPaused, true},
		{StatusRunning, StatusCompleted, true},
		{StatusRunning, StatusFailed, true},
		{StatusRunning, StatusCancelled, true},
		{StatusRunning, StatusPending, false},
		{StatusPaused, StatusRunning, true},
		{StatusPaused, StatusCancelled, true},
		{StatusPaused, StatusCompleted, false},
		{StatusCompleted, StatusRunning, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusFailed, StatusRunning, false},
		{StatusCancelled, StatusRunning, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestCreateJobWithoutMappingStaysPending(t *testing.T) {
	files := &fakeFiles{headers: []string{"first_name", "last_name", "dob"}, rows: [][]string{{"Jane", "Doe", "1980-01-15"}}}
	repo := newFakeJobRepo()
	svc, engine := newTestService(files, repo)

	job, err := svc.CreateJob(context.Background(), &CreateJobRequest{
		DatasetID:     primitive.NewObjectID().Hex(),
		SourceFileRef: "file-ref",
	})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	if job.Status != StatusPending {
		t.Errorf("status = %s, want PENDING", job.Status)
	}
	if job.TotalRows != 1 {
		t.Errorf("totalRows = %d, want 1", job.TotalRows)
	}
	if job.StartedAt != nil {
		t.Error("a PENDING job must not have a start time")
	}
	if engine.Running(job.ID.Hex()) {
		t.Error("worker must not start without a mapping")
	}
}

func TestCreateJobWithMappingStartsWorker(t *testing.T) {
	files := &fakeFiles{headers: []string{"first_name", "last_name", "dob"}, rows: [][]string{{"Jane", "Doe", "1980-01-15"}}}
	repo := newFakeJobRepo()
	svc, _ := newTestService(files, repo)

	job, err := svc.CreateJob(context.Background(), &CreateJobRequest{
		DatasetID:     primitive.NewObjectID().Hex(),
		SourceFileRef: "file-ref",
		ColumnMapping: identityMapping(),
	})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if job.Status != StatusRunning {
		t.Errorf("status = %s, want RUNNING", job.Status)
	}
	if job.StartedAt == nil {
		t.Error("a started job must record its start time")
	}

	done := waitForStatus(t, repo, job.ID.Hex(), StatusCompleted)
	if done.ImportedCount != 1 {
		t.Errorf("importedCount = %d, want 1", done.ImportedCount)
	}
}

func TestCreateJobRejectsInvalidMapping(t *testing.T) {
	files := &fakeFiles{headers: []string{"first_name", "last_name", "dob"}}
	repo := newFakeJobRepo()
	svc, _ := newTestService(files, repo)

	tests := []struct {
		name    string
		mapping ColumnMapping
		wantMsg string
	}{
		{
			name:    "no identity fields",
			mapping: ColumnMapping{VariableFields: map[string]string{"weight": "first_name"}},
			wantMsg: "identity field",
		},
		{
			name:    "unknown field name",
			mapping: ColumnMapping{IdentityFields: map[string]string{"middle_name": "first_name"}},
			wantMsg: "unknown identity field",
		},
		{
			name:    "column not in file",
			mapping: ColumnMapping{IdentityFields: map[string]string{FieldFirstName: "nickname"}},
			wantMsg: "unknown column",
		},
		{
			name: "transform does not compile",
			mapping: ColumnMapping{
				IdentityFields: map[string]string{FieldFirstName: "first_name"},
				Transforms:     map[string]string{"first_name": "value +"},
			},
			wantMsg: "transform",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateJob(context.Background(), &CreateJobRequest{
				DatasetID:     primitive.NewObjectID().Hex(),
				SourceFileRef: "file-ref",
				ColumnMapping: tt.mapping,
			})
			if err == nil {
				t.Fatal("expected a configuration error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %q, want mention of %q", err.Error(), tt.wantMsg)
			}
		})
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()
	if len(repo.jobs) != 0 {
		t.Errorf("invalid mappings must not persist jobs, found %d", len(repo.jobs))
	}
}

func TestUpdateJobOnlyWhilePending(t *testing.T) {
	files := &fakeFiles{headers: []string{"first_name", "last_name", "dob"}}
	repo := newFakeJobRepo()
	svc, _ := newTestService(files, repo)

	job := &ImportJob{SourceFileRef: "file-ref", Status: StatusCompleted}
	repo.Create(nil, job)

	_, err := svc.UpdateJob(context.Background(), job.ID.Hex(), identityMapping(), nil)
	if err == nil {
		t.Fatal("mapping change on a non-PENDING job must be rejected")
	}
}

func TestUpdateJobStartsPendingJob(t *testing.T) {
	files := &fakeFiles{headers: []string{"first_name", "last_name", "dob"}, rows: [][]string{{"Jane", "Doe", "1980-01-15"}}}
	repo := newFakeJobRepo()
	svc, _ := newTestService(files, repo)

	job := &ImportJob{SourceFileRef: "file-ref", Status: StatusPending, TotalRows: 1}
	repo.Create(nil, job)

	updated, err := svc.UpdateJob(context.Background(), job.ID.Hex(), identityMapping(), nil)
	if err != nil {
		t.Fatalf("UpdateJob: %v", err)
	}
	if updated.Status != StatusRunning {
		t.Errorf("status = %s, want RUNNING", updated.Status)
	}

	waitForStatus(t, repo, job.ID.Hex(), StatusCompleted)
}

func TestPauseJobRequiresRunning(t *testing.T) {
	files := &fakeFiles{headers: []string{"first_name"}}
	repo := newFakeJobRepo()
	svc, _ := newTestService(files, repo)

	job := &ImportJob{SourceFileRef: "file-ref", Status: StatusPending}
	repo.Create(nil, job)

	if err := svc.PauseJob(context.Background(), job.ID.Hex()); err == nil {
		t.Error("pausing a PENDING job must be rejected")
	}
}

func TestPauseJobWithoutWorkerTransitionsDirectly(t *testing.T) {
	files := &fakeFiles{headers: []string{"first_name"}}
	repo := newFakeJobRepo()
	svc, _ := newTestService(files, repo)

	// RUNNING in the store but no worker in this process
	job := &ImportJob{SourceFileRef: "file-ref", Status: StatusRunning}
	repo.Create(nil, job)

	if err := svc.PauseJob(context.Background(), job.ID.Hex()); err != nil {
		t.Fatalf("PauseJob: %v", err)
	}

	got, _ := repo.Get(nil, job.ID.Hex())
	if got.Status != StatusPaused || got.PausedReason != PausedManual {
		t.Errorf("job = %s/%s, want PAUSED/manual", got.Status, got.PausedReason)
	}
}

func TestResumeJobRequiresPaused(t *testing.T) {
	files := &fakeFiles{headers: []string{"first_name"}}
	repo := newFakeJobRepo()
	svc, _ := newTestService(files, repo)

	job := &ImportJob{SourceFileRef: "file-ref", Status: StatusRunning}
	repo.Create(nil, job)

	if err := svc.ResumeJob(context.Background(), job.ID.Hex()); err == nil {
		t.Error("resuming a RUNNING job must be rejected")
	}
}

func TestResumeJobRestartsWorkerAndResetsErrorStreak(t *testing.T) {
	files := &fakeFiles{
		headers: []string{"first_name", "last_name", "dob"},
		rows: [][]string{
			{"Jane", "Doe", "1980-01-15"},
			{"Bob", "Jones", "1990-05-02"},
		},
	}
	repo := newFakeJobRepo()
	svc, _ := newTestService(files, repo)

	job := &ImportJob{
		SourceFileRef:     "file-ref",
		ColumnMapping:     identityMapping(),
		Status:            StatusPaused,
		PausedReason:      PausedConsecutiveErrors,
		TotalRows:         2,
		ProcessedRows:     1,
		ImportedCount:     1,
		ConsecutiveErrors: 5,
	}
	repo.Create(nil, job)

	if err := svc.ResumeJob(context.Background(), job.ID.Hex()); err != nil {
		t.Fatalf("ResumeJob: %v", err)
	}

	done := waitForStatus(t, repo, job.ID.Hex(), StatusCompleted)
	if done.ProcessedRows != 2 {
		t.Errorf("processedRows = %d, want 2", done.ProcessedRows)
	}
	if done.ConsecutiveErrors != 0 {
		t.Errorf("consecutiveErrors = %d, want reset to 0", done.ConsecutiveErrors)
	}
	assertCounterInvariant(t, done)
}

func TestCancelJobFromPending(t *testing.T) {
	files := &fakeFiles{headers: []string{"first_name"}}
	repo := newFakeJobRepo()
	svc, _ := newTestService(files, repo)

	job := &ImportJob{SourceFileRef: "file-ref", Status: StatusPending}
	repo.Create(nil, job)

	if err := svc.CancelJob(context.Background(), job.ID.Hex()); err != nil {
		t.Fatalf("CancelJob: %v", err)
	}

	got, _ := repo.Get(nil, job.ID.Hex())
	if got.Status != StatusCancelled {
		t.Errorf("status = %s, want CANCELLED", got.Status)
	}
}

func TestCancelJobRejectedWhenTerminal(t *testing.T) {
	files := &fakeFiles{headers: []string{"first_name"}}
	repo := newFakeJobRepo()
	svc, _ := newTestService(files, repo)

	job := &ImportJob{SourceFileRef: "file-ref", Status: StatusCompleted}
	repo.Create(nil, job)

	if err := svc.CancelJob(context.Background(), job.ID.Hex()); err == nil {
		t.Error("cancelling a COMPLETED job must be rejected")
	}
}

func TestSweepInterruptedPausesOrphanedJobs(t *testing.T) {
	files := &fakeFiles{headers: []string{"first_name"}}
	repo := newFakeJobRepo()
	svc, _ := newTestService(files, repo)

	orphan := &ImportJob{SourceFileRef: "file-ref", Status: StatusRunning, ProcessedRows: 40}
	repo.Create(nil, orphan)
	idle := &ImportJob{SourceFileRef: "file-ref", Status: StatusPending}
	repo.Create(nil, idle)

	swept, err := svc.SweepInterrupted(context.Background())
	if err != nil {
		t.Fatalf("SweepInterrupted: %v", err)
	}
	if swept != 1 {
		t.Errorf("swept = %d, want 1", swept)
	}

	got, _ := repo.Get(nil, orphan.ID.Hex())
	if got.Status != StatusPaused || got.PausedReason != PausedServerRestart {
		t.Errorf("orphan = %s/%s, want PAUSED/server_restart", got.Status, got.PausedReason)
	}
	if got.ProcessedRows != 40 {
		t.Errorf("checkpoint lost: processedRows = %d, want 40", got.ProcessedRows)
	}
}

func TestPruneExpiredDisabledWithoutRetention(t *testing.T) {
	files := &fakeFiles{headers: []string{"first_name"}}
	repo := newFakeJobRepo()
	engine := newTestEngine(files, &fakePatients{}, &fakeEntries{}, repo)

	cfg := testConfig()
	cfg.Import.RetentionDays = 0
	svc := NewImportService(repo, engine, files, cfg, zap.NewNop())

	pruned, err := svc.PruneExpired(context.Background())
	if err != nil {
		t.Fatalf("PruneExpired: %v", err)
	}
	if pruned != 0 {
		t.Errorf("pruned = %d, want 0 when retention is disabled", pruned)
	}
}
