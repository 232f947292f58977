package filestore

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"
)

// RowIterator walks the data rows of a tabular file. The header row is
// consumed up front and exposed via Headers. Next returns rows in file
// order; the second result is false once the file is exhausted.
type RowIterator interface {
	Headers() []string
	Next() ([]string, bool, error)
	Close() error
}

// OpenRowIterator picks a parser from the filename extension. Callers own
// the returned iterator and must Close it.
func OpenRowIterator(path, filename string) (RowIterator, error) {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".csv"):
		return openCSVIterator(path)
	case strings.HasSuffix(lower, ".xlsx"), strings.HasSuffix(lower, ".xls"):
		return openExcelIterator(path)
	default:
		return nil, fmt.Errorf("unsupported file format: %s", filename)
	}
}

// Skip advances the iterator past n data rows. Used to resume a job from
// its last checkpoint without re-reading processed rows into memory.
func Skip(it RowIterator, n int) error {
	for i := 0; i < n; i++ {
		_, ok, err := it.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}
	return nil
}

type csvIterator struct {
	file    *os.File
	reader  *csv.Reader
	headers []string
}

func openCSVIterator(path string) (*csvIterator, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to read CSV headers: %w", err)
	}

	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}

	return &csvIterator{file: file, reader: reader, headers: headers}, nil
}

func (it *csvIterator) Headers() []string { return it.headers }

func (it *csvIterator) Next() ([]string, bool, error) {
	rec, err := it.reader.Read()
	if err == io.EOF {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read CSV row: %w", err)
	}
	return rec, true, nil
}

func (it *csvIterator) Close() error { return it.file.Close() }

type excelIterator struct {
	file    *excelize.File
	rows    *excelize.Rows
	headers []string
}

func openExcelIterator(path string) (*excelIterator, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		f.Close()
		return nil, fmt.Errorf("no sheets found in Excel file")
	}

	rows, err := f.Rows(sheets[0])
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read Excel rows: %w", err)
	}

	if !rows.Next() {
		rows.Close()
		f.Close()
		return nil, fmt.Errorf("Excel file is empty")
	}

	headers, err := rows.Columns()
	if err != nil {
		rows.Close()
		f.Close()
		return nil, fmt.Errorf("failed to read Excel headers: %w", err)
	}

	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}

	return &excelIterator{file: f, rows: rows, headers: headers}, nil
}

func (it *excelIterator) Headers() []string { return it.headers }

func (it *excelIterator) Next() ([]string, bool, error) {
	if !it.rows.Next() {
		return nil, false, it.rows.Error()
	}
	cols, err := it.rows.Columns()
	if err != nil {
		return nil, false, fmt.Errorf("failed to read Excel row: %w", err)
	}
	return cols, true, nil
}

func (it *excelIterator) Close() error {
	it.rows.Close()
	return it.file.Close()
}
