package importjob

import (
	"strings"

	"go-cohort/internal/features/dataset"
)

// patientColumnAliases maps each identity field to the header spellings
// commonly seen in uploaded files. Comparison is case and punctuation
// insensitive (see normalizeColumn).
var patientColumnAliases = map[string][]string{
	FieldReference:   {"reference", "ref", "patient_reference", "patient_ref", "patient_id", "patientid", "id", "identifier", "mrn"},
	FieldFirstName:   {"first_name", "firstname", "fname", "given_name", "forename", "first"},
	FieldLastName:    {"last_name", "lastname", "lname", "surname", "family_name", "last"},
	FieldDateOfBirth: {"date_of_birth", "dob", "birthdate", "birth_date", "dateofbirth", "born", "birthday"},
	FieldAge:         {"age", "age_years", "patient_age"},
	FieldGender:      {"gender", "sex"},
	FieldLatitude:    {"latitude", "lat"},
	FieldLongitude:   {"longitude", "lng", "long", "lon"},
}

// suggestionPriority fixes the order fields consume columns in, so a
// column claimed by a higher-priority field is never offered twice.
var suggestionPriority = []string{
	FieldReference,
	FieldFirstName,
	FieldLastName,
	FieldDateOfBirth,
	FieldAge,
	FieldGender,
	FieldLatitude,
	FieldLongitude,
}

// System columns are artifacts of a previous match export. They are
// flagged and never offered for mapping.
var systemColumnPrefixes = []string{"matched_", "file_duplicate_"}

var systemColumnNames = map[string]bool{
	"file_patient_group": true,
	"match_status":       true,
	"match_confidence":   true,
	"row_number":         true,
}

func normalizeColumn(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsSystemColumn reports whether the header was produced by a prior
// pipeline stage.
func IsSystemColumn(name string) bool {
	lower := strings.ToLower(strings.TrimSpace(name))
	if systemColumnNames[lower] {
		return true
	}
	for _, prefix := range systemColumnPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// Classification is the classifier output for one source file.
type Classification struct {
	ColumnTypes   map[string]dataset.VariableKind
	SystemColumns []string
	// IdentityFields and VariableFields are the suggested mapping.
	Suggested ColumnMapping
}

// Classify infers a type per column from its sample values and suggests
// a mapping. It never fails; unrecognized columns stay TEXT and
// unmapped.
func Classify(columns []string, samples map[string][]string, variables []dataset.Variable) Classification {
	result := Classification{
		ColumnTypes: make(map[string]dataset.VariableKind, len(columns)),
		Suggested: ColumnMapping{
			IdentityFields: map[string]string{},
			VariableFields: map[string]string{},
		},
	}

	for _, col := range columns {
		result.ColumnTypes[col] = dataset.InferKind(samples[col])
		if IsSystemColumn(col) {
			result.SystemColumns = append(result.SystemColumns, col)
		}
	}

	consumed := map[string]bool{}
	candidates := make([]string, 0, len(columns))
	for _, col := range columns {
		if !IsSystemColumn(col) {
			candidates = append(candidates, col)
		}
	}

	// Exact alias matches first, in field priority order
	for _, field := range suggestionPriority {
		if col, ok := findAliasColumn(field, candidates, consumed, true); ok {
			result.Suggested.IdentityFields[field] = col
			consumed[col] = true
		}
	}

	// Then substring matches for fields still unmapped
	for _, field := range suggestionPriority {
		if _, done := result.Suggested.IdentityFields[field]; done {
			continue
		}
		if col, ok := findAliasColumn(field, candidates, consumed, false); ok {
			result.Suggested.IdentityFields[field] = col
			consumed[col] = true
		}
	}

	// Remaining columns against existing variable display names
	for _, v := range variables {
		if col, ok := findVariableColumn(v.Name, candidates, consumed, true); ok {
			result.Suggested.VariableFields[v.Name] = col
			consumed[col] = true
		}
	}
	for _, v := range variables {
		if _, done := result.Suggested.VariableFields[v.Name]; done {
			continue
		}
		if col, ok := findVariableColumn(v.Name, candidates, consumed, false); ok {
			result.Suggested.VariableFields[v.Name] = col
			consumed[col] = true
		}
	}

	return result
}

func findAliasColumn(field string, columns []string, consumed map[string]bool, exact bool) (string, bool) {
	for _, col := range columns {
		if consumed[col] {
			continue
		}
		norm := normalizeColumn(col)
		for _, alias := range patientColumnAliases[field] {
			normAlias := normalizeColumn(alias)
			if exact && norm == normAlias {
				return col, true
			}
			if !exact && len(normAlias) >= 3 && strings.Contains(norm, normAlias) {
				return col, true
			}
		}
	}
	return "", false
}

func findVariableColumn(name string, columns []string, consumed map[string]bool, exact bool) (string, bool) {
	normName := normalizeColumn(name)
	if normName == "" {
		return "", false
	}
	for _, col := range columns {
		if consumed[col] {
			continue
		}
		norm := normalizeColumn(col)
		if exact && norm == normName {
			return col, true
		}
		if !exact && len(normName) >= 3 && strings.Contains(norm, normName) {
			return col, true
		}
	}
	return "", false
}
