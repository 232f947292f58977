package dataset

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// PatientColumns are the identity columns every import template carries
// ahead of the dataset's own variables.
var PatientColumns = []string{
	"reference",
	"first_name",
	"last_name",
	"date_of_birth",
	"gender",
	"latitude",
	"longitude",
}

var patientSampleRow = []string{
	"PAT-0001",
	"Jane",
	"Doe",
	"1980-01-15",
	"F",
	"51.5074",
	"-0.1278",
}

func sampleCellFor(kind VariableKind) string {
	switch kind {
	case KindNumber:
		return "42"
	case KindDate:
		return "2024-06-01"
	case KindBoolean:
		return "yes"
	default:
		return "example"
	}
}

// BuildTemplate produces a downloadable import template for the dataset:
// identity columns, one column per variable, and a single sample row.
func (s *DatasetServiceImpl) BuildTemplate(ctx context.Context, datasetID string, format string) ([]byte, string, error) {
	d, err := s.DatasetRepo.Get(ctx, datasetID)
	if err != nil {
		return nil, "", fmt.Errorf("dataset not found: %w", err)
	}

	vars, err := s.ListVariables(ctx, datasetID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load variables: %w", err)
	}

	headers := append([]string{}, PatientColumns...)
	sample := append([]string{}, patientSampleRow...)
	for _, v := range vars {
		headers = append(headers, v.Name)
		sample = append(sample, sampleCellFor(v.Kind))
	}

	switch format {
	case "xlsx":
		data, err := buildExcelTemplate(d.Name, headers, sample)
		if err != nil {
			return nil, "", err
		}
		return data, fmt.Sprintf("%s_template.xlsx", d.Name), nil
	default:
		data, err := buildCSVTemplate(headers, sample)
		if err != nil {
			return nil, "", err
		}
		return data, fmt.Sprintf("%s_template.csv", d.Name), nil
	}
}

func buildCSVTemplate(headers, sample []string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write template headers: %w", err)
	}
	if err := w.Write(sample); err != nil {
		return nil, fmt.Errorf("failed to write sample row: %w", err)
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func buildExcelTemplate(sheetName string, headers, sample []string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	defaultSheet := f.GetSheetName(0)
	if sheetName != "" && sheetName != defaultSheet {
		f.SetSheetName(defaultSheet, sheetName)
	} else {
		sheetName = defaultSheet
	}

	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		f.SetCellValue(sheetName, cell, h)
	}

	for i, v := range sample {
		cell, err := excelize.CoordinatesToCellName(i+1, 2)
		if err != nil {
			return nil, err
		}
		f.SetCellValue(sheetName, cell, v)
	}

	// Bold header row
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		endCell, _ := excelize.CoordinatesToCellName(len(headers), 1)
		f.SetCellStyle(sheetName, "A1", endCell, style)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write Excel template: %w", err)
	}

	return buf.Bytes(), nil
}
