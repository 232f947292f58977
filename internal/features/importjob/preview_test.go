package importjob

import (
	"context"
	"reflect"
	"testing"

	"go-cohort/internal/features/dataset"
	"go-cohort/internal/features/patient"
)

func TestPreviewClassificationOnly(t *testing.T) {
	files := &fakeFiles{
		headers: []string{"first_name", "last_name", "dob", "weight_kg"},
		rows: [][]string{
			{"Jane", "Doe", "1980-01-15", "72.5"},
			{"Bob", "Jones", "1990-05-02", "81"},
		},
	}
	e := newTestEngine(files, &fakePatients{}, &fakeEntries{}, newFakeJobRepo())

	result, err := e.Preview(context.Background(), "file-ref", "", nil)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}

	if result.Stats != nil {
		t.Error("classification-only preview must not run the pipeline")
	}
	if len(result.SampleRows) != 2 {
		t.Errorf("SampleRows = %d, want 2", len(result.SampleRows))
	}
	if result.ColumnTypes["weight_kg"] != dataset.KindNumber {
		t.Errorf("ColumnTypes[weight_kg] = %v, want NUMBER", result.ColumnTypes["weight_kg"])
	}
	if got := result.SuggestedMapping.IdentityFields[FieldFirstName]; got != "first_name" {
		t.Errorf("suggested first_name column = %q", got)
	}
}

func TestPreviewDryRunStats(t *testing.T) {
	files := &fakeFiles{
		headers: []string{"first_name", "last_name", "dob"},
		rows: [][]string{
			{"Jane", "Doe", "1980-01-15"},
			{"Jane", "Doe", "1980-01-15"},
			{"Bad", "Row", "not-a-date"},
		},
	}
	e := newTestEngine(files, &fakePatients{}, &fakeEntries{}, newFakeJobRepo())

	mapping := identityMapping()
	result, err := e.Preview(context.Background(), "file-ref", "", &mapping)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if result.Stats == nil {
		t.Fatal("expected dry-run stats")
	}

	stats := result.Stats
	if stats.Total != 3 || stats.New != 1 || stats.FileDuplicates != 1 || stats.Errors != 1 {
		t.Errorf("stats = %+v, want total 3, new 1, fileDuplicates 1, errors 1", stats)
	}
	if stats.PatientsToCreate != 1 || stats.UniquePatients != 1 {
		t.Errorf("stats = %+v, want 1 patient to create, 1 unique", stats)
	}
}

func TestPreviewCountsExistingPatientsOnce(t *testing.T) {
	stored := storedPatient("PAT-1", "Jane", "Doe", datePtr(1980, 1, 15))
	files := &fakeFiles{
		headers: []string{"first_name", "last_name", "dob"},
		rows: [][]string{
			{"Jane", "Doe", "1980-01-15"},
		},
	}
	e := newTestEngine(files, &fakePatients{patients: []patient.Patient{stored}}, &fakeEntries{}, newFakeJobRepo())

	mapping := identityMapping()
	result, err := e.Preview(context.Background(), "file-ref", "", &mapping)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}

	stats := result.Stats
	if stats.Update != 1 || stats.PatientsExisting != 1 || stats.PatientsToCreate != 0 {
		t.Errorf("stats = %+v, want 1 update against the stored patient", stats)
	}
}

func TestPreviewIsDeterministic(t *testing.T) {
	files := &fakeFiles{
		headers: []string{"first_name", "last_name", "dob"},
		rows: [][]string{
			{"Jane", "Doe", "1980-01-15"},
			{"Jon", "Smith", "1975-06-01"},
			{"Jane", "Doe", "1980-01-15"},
			{"John", "Smith", "1975-06-01"},
		},
	}
	e := newTestEngine(files, &fakePatients{}, &fakeEntries{}, newFakeJobRepo())

	mapping := identityMapping()
	first, err := e.Preview(context.Background(), "file-ref", "", &mapping)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	second, err := e.Preview(context.Background(), "file-ref", "", &mapping)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}

	if !reflect.DeepEqual(first.Stats, second.Stats) {
		t.Errorf("stats differ between runs: %+v vs %+v", first.Stats, second.Stats)
	}
	if !reflect.DeepEqual(first.Rows, second.Rows) {
		t.Error("sample rows differ between runs")
	}
}

func TestPreviewMarksDuplicateRows(t *testing.T) {
	files := &fakeFiles{
		headers: []string{"first_name", "last_name", "dob"},
		rows: [][]string{
			{"Jane", "Doe", "1980-01-15"},
			{"Jane", "Doe", "1980-01-15"},
		},
	}
	e := newTestEngine(files, &fakePatients{}, &fakeEntries{}, newFakeJobRepo())

	mapping := identityMapping()
	result, err := e.Preview(context.Background(), "file-ref", "", &mapping)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("Rows = %d, want 2", len(result.Rows))
	}

	dup := result.Rows[1]
	if dup.Status != RowFileDuplicate {
		t.Fatalf("row 2 status = %q, want file_duplicate", dup.Status)
	}
	if dup.FileDuplicateOfRow == nil || *dup.FileDuplicateOfRow != 1 {
		t.Error("row 2 should point back to row 1")
	}
}
