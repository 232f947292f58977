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

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func testConfig() *config.Config {
	return &config.Config{
		Import: config.ImportConfig{
			ConfirmThreshold:          0.7,
			AmbiguousThreshold:        0.5,
			NameSimilarityThreshold:   0.85,
			GeoRadiusMeters:           100,
			ConsecutiveErrorThreshold: 5,
			BatchSize:                 100,
			MaxStoredErrors:           100,
			PreviewSampleRows:         5,
			RowTimeoutSeconds:         30,
			RetentionDays:             90,
		},
	}
}

type memoryIterator struct {
	headers []string
	rows    [][]string
	pos     int
}

func (it *memoryIterator) Headers() []string { return it.headers }

func (it *memoryIterator) Next() ([]string, bool, error) {
	if it.pos >= len(it.rows) {
		return nil, false, nil
	}
	row := it.rows[it.pos]
	it.pos++
	return row, true, nil
}

func (it *memoryIterator) Close() error { return nil }

type fakeFiles struct {
	headers []string
	rows    [][]string
}

func (f *fakeFiles) Get(ctx context.Context, reference string) (*filestore.StoredFile, error) {
	return &filestore.StoredFile{Reference: reference, OriginalName: "upload.csv"}, nil
}

func (f *fakeFiles) OpenRows(ctx context.Context, reference string) (filestore.RowIterator, error) {
	return &memoryIterator{headers: f.headers, rows: f.rows}, nil
}

func (f *fakeFiles) CountRows(ctx context.Context, reference string) (int, error) {
	return len(f.rows), nil
}

// fakeJobRepo keeps every persisted snapshot so tests can assert the
// counter invariant held at each checkpoint.
type fakeJobRepo struct {
	mu        sync.Mutex
	jobs      map[string]ImportJob
	snapshots []ImportJob
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{jobs: map[string]ImportJob{}}
}

func (r *fakeJobRepo) Create(ctx context.Context, job *ImportJob) error {
	if job.ID.IsZero() {
		job.ID = primitive.NewObjectID()
	}
	if job.Status == "" {
		job.Status = StatusPending
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID.Hex()] = *job
	return nil
}

func (r *fakeJobRepo) Get(ctx context.Context, id string) (*ImportJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job not found")
	}
	copied := job
	return &copied, nil
}

func (r *fakeJobRepo) Update(ctx context.Context, job *ImportJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID.Hex()] = *job
	r.snapshots = append(r.snapshots, *job)
	return nil
}

func (r *fakeJobRepo) List(ctx context.Context, datasetID string, limit int) ([]ImportJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ImportJob
	for _, job := range r.jobs {
		out = append(out, job)
	}
	return out, nil
}

func (r *fakeJobRepo) UpdateStatus(ctx context.Context, id string, status JobStatus, reason PausedReason) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return fmt.Errorf("job not found")
	}
	job.Status = status
	if status == StatusPaused {
		job.PausedReason = reason
	} else {
		job.PausedReason = ""
	}
	r.jobs[id] = job
	r.snapshots = append(r.snapshots, job)
	return nil
}

func (r *fakeJobRepo) FindByStatus(ctx context.Context, status JobStatus) ([]ImportJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ImportJob
	for _, job := range r.jobs {
		if job.Status == status {
			out = append(out, job)
		}
	}
	return out, nil
}

func (r *fakeJobRepo) DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

type fakePatients struct {
	mu       sync.Mutex
	patients []patient.Patient
	created  []patient.Patient
	failAll  bool
}

func (s *fakePatients) AllPatients(ctx context.Context) ([]patient.Patient, error) {
	if s.failAll {
		return nil, fmt.Errorf("store unavailable")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]patient.Patient{}, s.patients...), nil
}

func (s *fakePatients) CreatePatient(ctx context.Context, p *patient.Patient) (*patient.Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = primitive.NewObjectID()
	s.created = append(s.created, *p)
	return p, nil
}

type fakeEntries struct {
	mu        sync.Mutex
	variables []dataset.Variable
	saved     []dataset.DataEntry
	failSave  bool
}

func (s *fakeEntries) ListVariables(ctx context.Context, datasetID string) ([]dataset.Variable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]dataset.Variable{}, s.variables...), nil
}

func (s *fakeEntries) EnsureVariable(ctx context.Context, datasetID primitive.ObjectID, name string, kind dataset.VariableKind) (*dataset.Variable, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.variables {
		if s.variables[i].Name == name {
			return &s.variables[i], false, nil
		}
	}
	v := dataset.Variable{
		ID:          primitive.NewObjectID(),
		DatasetID:   datasetID,
		Name:        name,
		Kind:        kind,
		AutoCreated: true,
	}
	s.variables = append(s.variables, v)
	return &v, true, nil
}

func (s *fakeEntries) SaveEntries(ctx context.Context, entries []dataset.DataEntry) error {
	if s.failSave {
		return fmt.Errorf("store unavailable")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, entries...)
	return nil
}

func newTestEngine(files *fakeFiles, patients *fakePatients, entries *fakeEntries, repo JobRepository) *Engine {
	return NewEngine(repo, files, patients, entries, testConfig(), zap.NewNop())
}

// runSync drives the worker loop on the caller's goroutine.
func runSync(e *Engine, jobID string, ctl *jobControl) {
	if ctl == nil {
		ctl = &jobControl{}
	}
	e.mu.Lock()
	e.controls[jobID] = ctl
	e.mu.Unlock()
	e.run(jobID)
}
