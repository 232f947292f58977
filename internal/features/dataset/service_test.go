package dataset

import (
	"strings"
	"testing"
	"time"
)

func TestInferKind(t *testing.T) {
	tests := []struct {
		name    string
		samples []string
		want    VariableKind
	}{
		{"numbers", []string{"1", "2.5", "-3"}, KindNumber},
		{"dates", []string{"2024-01-15", "15/01/2024", "2024-03-01"}, KindDate},
		{"booleans", []string{"yes", "no", "true"}, KindBoolean},
		{"text", []string{"stable", "follow up"}, KindText},
		{"majority wins", []string{"1.5", "2", "3", "oops"}, KindNumber},
		{"empty cells ignored", []string{"", "", "42"}, KindNumber},
		{"all empty", []string{"", ""}, KindText},
		{"no samples", nil, KindText},
		{"numeric flags count as numbers", []string{"0", "1", "1"}, KindNumber},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InferKind(tt.samples); got != tt.want {
				t.Errorf("InferKind(%v) = %v, want %v", tt.samples, got, tt.want)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"1980-01-15", time.Date(1980, 1, 15, 0, 0, 0, 0, time.UTC)},
		{"15/01/1980", time.Date(1980, 1, 15, 0, 0, 0, 0, time.UTC)},
		{"1980/01/15", time.Date(1980, 1, 15, 0, 0, 0, 0, time.UTC)},
		{"  1980-01-15  ", time.Date(1980, 1, 15, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		got, err := ParseDate(tt.in)
		if err != nil {
			t.Errorf("ParseDate(%q): %v", tt.in, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("ParseDate(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := ParseDate("not a date"); err == nil {
		t.Error("ParseDate should reject unrecognized input")
	}
}

func TestParseBool(t *testing.T) {
	truthy := []string{"true", "YES", "y", "1", " Yes "}
	for _, in := range truthy {
		got, err := ParseBool(in)
		if err != nil || !got {
			t.Errorf("ParseBool(%q) = %v, %v, want true", in, got, err)
		}
	}

	falsy := []string{"false", "NO", "n", "0"}
	for _, in := range falsy {
		got, err := ParseBool(in)
		if err != nil || got {
			t.Errorf("ParseBool(%q) = %v, %v, want false", in, got, err)
		}
	}

	if _, err := ParseBool("maybe"); err == nil {
		t.Error("ParseBool should reject unrecognized input")
	}
}

func TestCoerceValue(t *testing.T) {
	got, err := CoerceValue("72.5", KindNumber)
	if err != nil || got != 72.5 {
		t.Errorf("CoerceValue number = %v, %v", got, err)
	}

	got, err = CoerceValue("2024-06-01", KindDate)
	if err != nil {
		t.Fatalf("CoerceValue date: %v", err)
	}
	if _, ok := got.(time.Time); !ok {
		t.Errorf("date values must coerce to time.Time, got %T", got)
	}

	got, err = CoerceValue("yes", KindBoolean)
	if err != nil || got != true {
		t.Errorf("CoerceValue bool = %v, %v", got, err)
	}

	got, err = CoerceValue("hello", KindText)
	if err != nil || got != "hello" {
		t.Errorf("CoerceValue text = %v, %v", got, err)
	}

	// Empty cells coerce to nil for every kind
	got, err = CoerceValue("  ", KindNumber)
	if err != nil || got != nil {
		t.Errorf("CoerceValue empty = %v, %v, want nil", got, err)
	}

	if _, err := CoerceValue("abc", KindNumber); err == nil {
		t.Error("non-numeric cell must fail NUMBER coercion")
	}
}

func TestBuildCSVTemplate(t *testing.T) {
	headers := append([]string{}, PatientColumns...)
	headers = append(headers, "weight_kg")
	sample := append([]string{}, patientSampleRow...)
	sample = append(sample, sampleCellFor(KindNumber))

	data, err := buildCSVTemplate(headers, sample)
	if err != nil {
		t.Fatalf("buildCSVTemplate: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("template has %d lines, want header and sample row", len(lines))
	}
	if !strings.HasPrefix(lines[0], "reference,first_name,last_name,date_of_birth") {
		t.Errorf("unexpected header line: %q", lines[0])
	}
	if !strings.HasSuffix(lines[0], "weight_kg") {
		t.Errorf("variable column missing from header: %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], "42") {
		t.Errorf("sample cell missing: %q", lines[1])
	}
}

func TestBuildExcelTemplate(t *testing.T) {
	data, err := buildExcelTemplate("Trial A", []string{"reference", "first_name"}, []string{"PAT-0001", "Jane"})
	if err != nil {
		t.Fatalf("buildExcelTemplate: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("empty workbook")
	}
	// XLSX files are zip archives
	if string(data[:2]) != "PK" {
		t.Errorf("output does not look like an xlsx file: % x", data[:2])
	}
}
