package dataset

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type DatasetService interface {
	CreateDataset(ctx context.Context, d *Dataset) (*Dataset, error)
	GetDataset(ctx context.Context, id string) (*Dataset, error)
	ListDatasets(ctx context.Context) ([]Dataset, error)
	UpdateDataset(ctx context.Context, id string, d *Dataset) (*Dataset, error)
	DeleteDataset(ctx context.Context, id string) error

	CreateVariable(ctx context.Context, v *Variable) (*Variable, error)
	ListVariables(ctx context.Context, datasetID string) ([]Variable, error)
	// EnsureVariable returns the named variable, minting an auto-created
	// one of the given kind when it does not exist yet. The bool reports
	// whether a new variable was created.
	EnsureVariable(ctx context.Context, datasetID primitive.ObjectID, name string, kind VariableKind) (*Variable, bool, error)

	SaveEntry(ctx context.Context, e *DataEntry) error
	SaveEntries(ctx context.Context, entries []DataEntry) error
	ListEntries(ctx context.Context, datasetID string, page, limit int) ([]DataEntry, int64, error)

	BuildTemplate(ctx context.Context, datasetID string, format string) ([]byte, string, error)
}

type DatasetServiceImpl struct {
	DatasetRepo DatasetRepository
}

func NewDatasetService(datasetRepo DatasetRepository) DatasetService {
	return &DatasetServiceImpl{
		DatasetRepo: datasetRepo,
	}
}

func (s *DatasetServiceImpl) CreateDataset(ctx context.Context, d *Dataset) (*Dataset, error) {
	if strings.TrimSpace(d.Name) == "" {
		return nil, fmt.Errorf("dataset name is required")
	}

	if err := s.DatasetRepo.Create(ctx, d); err != nil {
		return nil, fmt.Errorf("failed to create dataset: %w", err)
	}

	return d, nil
}

func (s *DatasetServiceImpl) GetDataset(ctx context.Context, id string) (*Dataset, error) {
	return s.DatasetRepo.Get(ctx, id)
}

func (s *DatasetServiceImpl) ListDatasets(ctx context.Context) ([]Dataset, error) {
	return s.DatasetRepo.List(ctx)
}

func (s *DatasetServiceImpl) UpdateDataset(ctx context.Context, id string, d *Dataset) (*Dataset, error) {
	existing, err := s.DatasetRepo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("dataset not found: %w", err)
	}

	d.ID = existing.ID
	d.CreatedAt = existing.CreatedAt

	if err := s.DatasetRepo.Update(ctx, id, d); err != nil {
		return nil, fmt.Errorf("failed to update dataset: %w", err)
	}

	return d, nil
}

func (s *DatasetServiceImpl) DeleteDataset(ctx context.Context, id string) error {
	return s.DatasetRepo.Delete(ctx, id)
}

func (s *DatasetServiceImpl) CreateVariable(ctx context.Context, v *Variable) (*Variable, error) {
	if strings.TrimSpace(v.Name) == "" {
		return nil, fmt.Errorf("variable name is required")
	}
	if v.Kind == "" {
		v.Kind = KindText
	}

	existing, err := s.DatasetRepo.FindVariableByName(ctx, v.DatasetID, v.Name)
	if err != nil && err != mongo.ErrNoDocuments {
		return nil, fmt.Errorf("failed to check variable: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("variable %s already exists", v.Name)
	}

	if err := s.DatasetRepo.CreateVariable(ctx, v); err != nil {
		return nil, fmt.Errorf("failed to create variable: %w", err)
	}

	return v, nil
}

func (s *DatasetServiceImpl) ListVariables(ctx context.Context, datasetID string) ([]Variable, error) {
	objID, err := primitive.ObjectIDFromHex(datasetID)
	if err != nil {
		return nil, err
	}

	return s.DatasetRepo.FindVariables(ctx, objID)
}

func (s *DatasetServiceImpl) EnsureVariable(ctx context.Context, datasetID primitive.ObjectID, name string, kind VariableKind) (*Variable, bool, error) {
	existing, err := s.DatasetRepo.FindVariableByName(ctx, datasetID, name)
	if err == nil {
		return existing, false, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, false, err
	}

	if kind == "" {
		kind = KindText
	}
	v := &Variable{
		DatasetID:   datasetID,
		Name:        name,
		Kind:        kind,
		AutoCreated: true,
	}

	if err := s.DatasetRepo.CreateVariable(ctx, v); err != nil {
		return nil, false, fmt.Errorf("failed to auto-create variable %s: %w", name, err)
	}

	return v, true, nil
}

func (s *DatasetServiceImpl) SaveEntry(ctx context.Context, e *DataEntry) error {
	return s.DatasetRepo.UpsertEntry(ctx, e)
}

func (s *DatasetServiceImpl) SaveEntries(ctx context.Context, entries []DataEntry) error {
	return s.DatasetRepo.BulkUpsertEntries(ctx, entries)
}

func (s *DatasetServiceImpl) ListEntries(ctx context.Context, datasetID string, page, limit int) ([]DataEntry, int64, error) {
	objID, err := primitive.ObjectIDFromHex(datasetID)
	if err != nil {
		return nil, 0, err
	}

	return s.DatasetRepo.FindEntries(ctx, objID, page, limit)
}

// InferKind guesses a variable kind from non-empty sample cells by
// majority vote. Each sample votes for the first kind it parses as, in
// the order NUMBER, DATE, BOOLEAN, TEXT. An empty column is TEXT.
func InferKind(samples []string) VariableKind {
	votes := map[VariableKind]int{}
	nonEmpty := 0

	for _, raw := range samples {
		v := strings.TrimSpace(raw)
		if v == "" {
			continue
		}
		nonEmpty++

		switch {
		case isNumber(v):
			votes[KindNumber]++
		case looksLikeDate(v):
			votes[KindDate]++
		case looksLikeBool(v):
			votes[KindBoolean]++
		default:
			votes[KindText]++
		}
	}

	if nonEmpty == 0 {
		return KindText
	}

	best, bestCount := KindText, 0
	for _, kind := range []VariableKind{KindNumber, KindDate, KindBoolean, KindText} {
		if votes[kind] > bestCount {
			best, bestCount = kind, votes[kind]
		}
	}
	return best
}

func isNumber(v string) bool {
	_, err := strconv.ParseFloat(v, 64)
	return err == nil
}

var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"01/02/2006",
	"2006/01/02",
	"02-01-2006",
	time.RFC3339,
}

// ParseDate tries the supported date layouts in order.
func ParseDate(raw string) (time.Time, error) {
	v := strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format: %s", raw)
}

func looksLikeDate(v string) bool {
	_, err := ParseDate(v)
	return err == nil
}

func looksLikeBool(v string) bool {
	switch strings.ToLower(v) {
	case "true", "false", "yes", "no", "y", "n", "1", "0":
		return true
	}
	return false
}

// ParseBool maps the accepted boolean spellings onto true/false.
func ParseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "yes", "y", "1":
		return true, nil
	case "false", "no", "n", "0":
		return false, nil
	}
	return false, fmt.Errorf("unrecognized boolean value: %s", raw)
}

// CoerceValue converts a raw cell to the variable's kind. DATE values are
// stored as time.Time so Mongo keeps them queryable.
func CoerceValue(raw string, kind VariableKind) (interface{}, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil, nil
	}

	switch kind {
	case KindNumber:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number: %s", raw)
		}
		return f, nil
	case KindDate:
		t, err := ParseDate(v)
		if err != nil {
			return nil, err
		}
		return t, nil
	case KindBoolean:
		return ParseBool(v)
	default:
		return v, nil
	}
}
