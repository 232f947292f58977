package patient

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
)

type PatientService interface {
	CreatePatient(ctx context.Context, p *Patient) (*Patient, error)
	GetPatient(ctx context.Context, id string) (*Patient, error)
	GetByReference(ctx context.Context, reference string) (*Patient, error)
	ListPatients(ctx context.Context, page, limit int) ([]Patient, int64, error)
	UpdatePatient(ctx context.Context, id string, p *Patient) (*Patient, error)
	DeletePatient(ctx context.Context, id string) error
	AllPatients(ctx context.Context) ([]Patient, error)
}

type PatientServiceImpl struct {
	PatientRepo PatientRepository
}

func NewPatientService(patientRepo PatientRepository) PatientService {
	return &PatientServiceImpl{
		PatientRepo: patientRepo,
	}
}

func (s *PatientServiceImpl) CreatePatient(ctx context.Context, p *Patient) (*Patient, error) {
	if p.Reference == "" {
		return nil, fmt.Errorf("reference is required")
	}

	existing, err := s.PatientRepo.GetByReference(ctx, p.Reference)
	if err != nil && err != mongo.ErrNoDocuments {
		return nil, fmt.Errorf("failed to check reference: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("patient with reference %s already exists", p.Reference)
	}

	if err := s.PatientRepo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create patient: %w", err)
	}

	return p, nil
}

func (s *PatientServiceImpl) GetPatient(ctx context.Context, id string) (*Patient, error) {
	return s.PatientRepo.Get(ctx, id)
}

func (s *PatientServiceImpl) GetByReference(ctx context.Context, reference string) (*Patient, error) {
	return s.PatientRepo.GetByReference(ctx, reference)
}

func (s *PatientServiceImpl) ListPatients(ctx context.Context, page, limit int) ([]Patient, int64, error) {
	return s.PatientRepo.List(ctx, page, limit)
}

func (s *PatientServiceImpl) UpdatePatient(ctx context.Context, id string, p *Patient) (*Patient, error) {
	existing, err := s.PatientRepo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("patient not found: %w", err)
	}

	p.ID = existing.ID
	p.CreatedAt = existing.CreatedAt
	if p.Reference == "" {
		p.Reference = existing.Reference
	}

	if err := s.PatientRepo.Update(ctx, id, p); err != nil {
		return nil, fmt.Errorf("failed to update patient: %w", err)
	}

	return p, nil
}

func (s *PatientServiceImpl) DeletePatient(ctx context.Context, id string) error {
	return s.PatientRepo.Delete(ctx, id)
}

func (s *PatientServiceImpl) AllPatients(ctx context.Context) ([]Patient, error) {
	return s.PatientRepo.All(ctx)
}
