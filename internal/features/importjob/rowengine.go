package importjob

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go-cohort/internal/config"
	"go-cohort/internal/features/dataset"
	"go-cohort/internal/features/patient"
)

// rowOutcome is the full classification of one row. The worker applies
// it to the stores; preview only aggregates it. Both paths go through
// the same rowEngine so a preview is a reliable predictor of a run.
type rowOutcome struct {
	RowNumber int
	Status    string
	Ambiguous bool

	DupOfRow int
	GroupID  int

	Candidate *MatchCandidate
	Identity  Identity

	// Values are the coerced variable values keyed by variable name.
	Values map[string]interface{}
	// RawValues are the mapped cells as read, for preview display.
	RawValues map[string]string

	Message string
}

type rowEngine struct {
	cfg         config.ImportConfig
	mapping     ColumnMapping
	columnTypes map[string]dataset.VariableKind
	colIndex    map[string]int
	matcher     *Matcher
	grouper     *Grouper
	transforms  map[string]*compiledTransform
	// autoColumns are data columns present in the file but mapped to
	// nothing. They become auto-created variables named after the
	// column.
	autoColumns []string
}

func newRowEngine(headers []string, mapping ColumnMapping, columnTypes map[string]dataset.VariableKind, matcher *Matcher, cfg config.ImportConfig) (*rowEngine, error) {
	transforms, err := CompileTransforms(mapping.Transforms)
	if err != nil {
		return nil, err
	}

	colIndex := make(map[string]int, len(headers))
	for i, h := range headers {
		colIndex[h] = i
	}

	mapped := map[string]bool{}
	for _, col := range mapping.IdentityFields {
		mapped[col] = true
	}
	for _, col := range mapping.VariableFields {
		mapped[col] = true
	}

	var autoColumns []string
	for _, h := range headers {
		if h == "" || mapped[h] || IsSystemColumn(h) {
			continue
		}
		autoColumns = append(autoColumns, h)
	}

	return &rowEngine{
		cfg:         cfg,
		mapping:     mapping,
		columnTypes: columnTypes,
		colIndex:    colIndex,
		matcher:     matcher,
		grouper:     NewGrouper(cfg),
		transforms:  transforms,
		autoColumns: autoColumns,
	}, nil
}

func (e *rowEngine) cell(row []string, column string) string {
	idx, ok := e.colIndex[column]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// mappedCell reads a cell and applies the column's transform, if any.
func (e *rowEngine) mappedCell(ctx context.Context, row []string, column string) (string, error) {
	raw := e.cell(row, column)
	if t, ok := e.transforms[column]; ok {
		return t.Apply(ctx, raw)
	}
	return raw, nil
}

func (e *rowEngine) identityFor(ctx context.Context, row []string) (Identity, error) {
	var id Identity

	get := func(field string) (string, bool, error) {
		column, ok := e.mapping.IdentityFields[field]
		if !ok || column == "" {
			return "", false, nil
		}
		v, err := e.mappedCell(ctx, row, column)
		if err != nil {
			return "", false, err
		}
		return v, v != "", nil
	}

	if v, ok, err := get(FieldReference); err != nil {
		return id, err
	} else if ok {
		id.Reference = v
	}

	if v, _, err := get(FieldFirstName); err != nil {
		return id, err
	} else {
		id.FirstName = v
	}
	if v, _, err := get(FieldLastName); err != nil {
		return id, err
	} else {
		id.LastName = v
	}

	if v, ok, err := get(FieldDateOfBirth); err != nil {
		return id, err
	} else if ok {
		dob, err := dataset.ParseDate(v)
		if err != nil {
			return id, fmt.Errorf("invalid date of birth %q", v)
		}
		id.DateOfBirth = &dob
	}

	if v, ok, err := get(FieldAge); err != nil {
		return id, err
	} else if ok {
		age, err := strconv.Atoi(v)
		if err != nil || age < 0 || age > 150 {
			return id, fmt.Errorf("invalid age %q", v)
		}
		id.Age = &age
	}

	if v, ok, err := get(FieldGender); err != nil {
		return id, err
	} else if ok {
		id.Gender = patient.ParseGender(v)
	}

	if v, ok, err := get(FieldLatitude); err != nil {
		return id, err
	} else if ok {
		lat, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return id, fmt.Errorf("invalid latitude %q", v)
		}
		id.Latitude = &lat
	}
	if v, ok, err := get(FieldLongitude); err != nil {
		return id, err
	} else if ok {
		lng, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return id, fmt.Errorf("invalid longitude %q", v)
		}
		id.Longitude = &lng
	}

	return id, nil
}

// Process classifies one row: grouper first, then the store matcher,
// then value coercion. Row numbers are 1-based data rows in file order.
func (e *rowEngine) Process(ctx context.Context, rowNumber int, row []string) rowOutcome {
	out := rowOutcome{RowNumber: rowNumber}

	id, err := e.identityFor(ctx, row)
	if err != nil {
		out.Status = RowError
		out.Message = err.Error()
		return out
	}
	out.Identity = id

	if id.Empty() {
		out.Status = RowError
		out.Message = "no identity values present in row"
		return out
	}

	if dupOf, groupID, isDup := e.grouper.Check(rowNumber, id); isDup {
		out.Status = RowFileDuplicate
		out.DupOfRow = dupOf
		out.GroupID = groupID
		return out
	}

	candidate, ambiguous := e.matcher.Best(id)
	out.Candidate = candidate
	out.Ambiguous = ambiguous

	values, rawValues, err := e.valuesFor(ctx, row)
	if err != nil {
		out.Status = RowError
		out.Message = err.Error()
		return out
	}
	out.Values = values
	out.RawValues = rawValues

	if candidate != nil && !ambiguous {
		out.Status = RowUpdate
	} else {
		// Ambiguous rows become new records, flagged for audit
		out.Status = RowNew
	}

	return out
}

func (e *rowEngine) valuesFor(ctx context.Context, row []string) (map[string]interface{}, map[string]string, error) {
	values := map[string]interface{}{}
	rawValues := map[string]string{}

	for variableName, column := range e.mapping.VariableFields {
		raw, err := e.mappedCell(ctx, row, column)
		if err != nil {
			return nil, nil, fmt.Errorf("column %s: %w", column, err)
		}
		rawValues[variableName] = raw

		kind, ok := e.columnTypes[column]
		if !ok {
			kind = dataset.KindText
		}

		coerced, err := dataset.CoerceValue(raw, kind)
		if err != nil {
			return nil, nil, fmt.Errorf("column %s: %w", column, err)
		}
		if coerced != nil {
			values[variableName] = coerced
		}
	}

	// Unmapped columns are lenient: a cell that does not fit the
	// inferred kind is kept as text instead of failing the row.
	for _, column := range e.autoColumns {
		raw := e.cell(row, column)
		if raw == "" {
			continue
		}
		rawValues[column] = raw

		kind, ok := e.columnTypes[column]
		if !ok {
			kind = dataset.KindText
		}
		coerced, err := dataset.CoerceValue(raw, kind)
		if err != nil {
			values[column] = raw
			continue
		}
		if coerced != nil {
			values[column] = coerced
		}
	}

	return values, rawValues, nil
}

// Replay feeds a previously processed row back through the grouper so a
// resumed run rebuilds its duplicate state without recounting the row.
func (e *rowEngine) Replay(ctx context.Context, rowNumber int, row []string) {
	id, err := e.identityFor(ctx, row)
	if err != nil || id.Empty() {
		return
	}
	e.grouper.Check(rowNumber, id)
}

// patientFromIdentity builds the record created for a new row. An age
// without a date of birth becomes a synthetic January 1st birth date.
func patientFromIdentity(id Identity, now time.Time) *patient.Patient {
	p := &patient.Patient{
		Reference:   id.Reference,
		FirstName:   id.FirstName,
		LastName:    id.LastName,
		DateOfBirth: id.DateOfBirth,
		Gender:      id.Gender,
		Latitude:    id.Latitude,
		Longitude:   id.Longitude,
	}
	if p.Gender == "" {
		p.Gender = patient.GenderUnknown
	}
	if p.DateOfBirth == nil && id.Age != nil {
		dob := time.Date(now.Year()-*id.Age, time.January, 1, 0, 0, 0, 0, time.UTC)
		p.DateOfBirth = &dob
	}
	return p
}
