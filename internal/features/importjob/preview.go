package importjob

import (
	"context"
	"fmt"

	"go-cohort/internal/features/dataset"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Preview runs the import pipeline in dry-run mode. Without a mapping it
// only classifies: columns, inferred types, suggested mapping, sample
// rows. With a mapping it walks every row through the same grouper and
// matcher the worker uses, writing nothing, and aggregates the stats.
// For a fixed store and file the result is deterministic.
func (e *Engine) Preview(ctx context.Context, fileRef, datasetID string, mapping *ColumnMapping) (*PreviewResult, error) {
	it, err := e.Files.OpenRows(ctx, fileRef)
	if err != nil {
		return nil, fmt.Errorf("failed to open source file: %w", err)
	}

	headers := append([]string{}, it.Headers()...)

	sampleLimit := e.Config.Import.PreviewSampleRows
	if sampleLimit < 1 {
		sampleLimit = 5
	}

	samples := map[string][]string{}
	var sampleRows []map[string]string
	for len(sampleRows) < sampleLimit {
		row, ok, err := it.Next()
		if err != nil {
			it.Close()
			return nil, err
		}
		if !ok {
			break
		}

		rowMap := map[string]string{}
		for i, h := range headers {
			v := ""
			if i < len(row) {
				v = row[i]
			}
			rowMap[h] = v
			samples[h] = append(samples[h], v)
		}
		sampleRows = append(sampleRows, rowMap)
	}
	it.Close()

	var variables []dataset.Variable
	if datasetID != "" {
		variables, err = e.Datasets.ListVariables(ctx, datasetID)
		if err != nil {
			return nil, fmt.Errorf("failed to load variables: %w", err)
		}
	}

	classification := Classify(headers, samples, variables)

	result := &PreviewResult{
		Columns:          headers,
		ColumnTypes:      classification.ColumnTypes,
		SystemColumns:    classification.SystemColumns,
		SuggestedMapping: &classification.Suggested,
		SampleRows:       sampleRows,
	}

	if mapping == nil || mapping.Empty() {
		return result, nil
	}

	stats, rows, err := e.dryRun(ctx, fileRef, datasetID, *mapping, classification.ColumnTypes, sampleLimit)
	if err != nil {
		return nil, err
	}
	result.Stats = stats
	result.Rows = rows

	return result, nil
}

func (e *Engine) dryRun(ctx context.Context, fileRef, datasetID string, mapping ColumnMapping, columnTypes map[string]dataset.VariableKind, sampleLimit int) (*PreviewStats, []PreviewRow, error) {
	patients, err := e.Patients.AllPatients(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load patient store: %w", err)
	}
	matcher := NewMatcher(patients, e.Config.Import)

	it, err := e.Files.OpenRows(ctx, fileRef)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open source file: %w", err)
	}
	defer it.Close()

	engine, err := newRowEngine(it.Headers(), mapping, columnTypes, matcher, e.Config.Import)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid mapping: %w", err)
	}

	stats := &PreviewStats{}
	var rows []PreviewRow
	seenPatients := map[primitive.ObjectID]bool{}

	rowNum := 0
	for {
		row, ok, err := it.Next()
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			break
		}
		rowNum++

		outcome := engine.Process(ctx, rowNum, row)
		stats.Total++

		switch outcome.Status {
		case RowNew:
			stats.New++
			stats.PatientsToCreate++
		case RowUpdate:
			stats.Update++
			if outcome.Candidate != nil && !seenPatients[outcome.Candidate.PatientID] {
				seenPatients[outcome.Candidate.PatientID] = true
				stats.PatientsExisting++
			}
		case RowError:
			stats.Errors++
		case RowFileDuplicate:
			stats.FileDuplicates++
		}
		if outcome.Ambiguous {
			stats.Ambiguous++
		}

		if len(rows) < sampleLimit {
			rows = append(rows, previewRowFrom(outcome))
		}
	}

	stats.UniquePatients = stats.PatientsExisting + stats.PatientsToCreate

	return stats, rows, nil
}

func previewRowFrom(outcome rowOutcome) PreviewRow {
	row := PreviewRow{
		RowNumber:    outcome.RowNumber,
		Status:       outcome.Status,
		Ambiguous:    outcome.Ambiguous,
		MappedValues: outcome.RawValues,
		Message:      outcome.Message,
	}

	if outcome.Status == RowFileDuplicate {
		dup, group := outcome.DupOfRow, outcome.GroupID
		row.FileDuplicateOfRow = &dup
		row.FileGroupID = &group
	}

	if outcome.Candidate != nil {
		row.PatientDisplayName = outcome.Candidate.DisplayName
		row.Confidence = outcome.Candidate.Confidence
	} else if outcome.Identity.HasName() {
		row.PatientDisplayName = outcome.Identity.FirstName + " " + outcome.Identity.LastName
	}

	return row
}
