package filestore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go-cohort/internal/config"

	"github.com/google/uuid"
)

type FileService interface {
	Save(ctx context.Context, src io.Reader, originalName, contentType, uploadedBy string) (*StoredFile, error)
	Get(ctx context.Context, reference string) (*StoredFile, error)
	// OpenRows opens the stored file for row-wise reading.
	OpenRows(ctx context.Context, reference string) (RowIterator, error)
	// CountRows counts the data rows (header excluded).
	CountRows(ctx context.Context, reference string) (int, error)
	Delete(ctx context.Context, reference string) error
	// PruneOlderThan removes files and their metadata past the retention
	// cutoff. Returns how many files were removed.
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

type FileServiceImpl struct {
	FileRepo FileRepository
	BaseDir  string
}

func NewFileService(fileRepo FileRepository, cfg *config.Config) FileService {
	if _, err := os.Stat(cfg.FSPath); os.IsNotExist(err) {
		os.MkdirAll(cfg.FSPath, 0755)
	}
	return &FileServiceImpl{
		FileRepo: fileRepo,
		BaseDir:  cfg.FSPath,
	}
}

func (s *FileServiceImpl) Save(ctx context.Context, src io.Reader, originalName, contentType, uploadedBy string) (*StoredFile, error) {
	reference := uuid.New().String()
	storageName := reference + filepath.Ext(originalName)
	storagePath := filepath.Join(s.BaseDir, storageName)

	dst, err := os.Create(storagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	size, err := io.Copy(dst, src)
	if err != nil {
		os.Remove(storagePath)
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	stored := &StoredFile{
		Reference:    reference,
		OriginalName: filepath.Base(originalName),
		StoragePath:  storagePath,
		ContentType:  contentType,
		Size:         size,
		UploadedBy:   uploadedBy,
	}

	if err := s.FileRepo.Create(ctx, stored); err != nil {
		os.Remove(storagePath)
		return nil, fmt.Errorf("failed to save file metadata: %w", err)
	}

	return stored, nil
}

func (s *FileServiceImpl) Get(ctx context.Context, reference string) (*StoredFile, error) {
	return s.FileRepo.GetByReference(ctx, reference)
}

func (s *FileServiceImpl) OpenRows(ctx context.Context, reference string) (RowIterator, error) {
	stored, err := s.FileRepo.GetByReference(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("file not found: %w", err)
	}

	return OpenRowIterator(stored.StoragePath, stored.OriginalName)
}

func (s *FileServiceImpl) CountRows(ctx context.Context, reference string) (int, error) {
	it, err := s.OpenRows(ctx, reference)
	if err != nil {
		return 0, err
	}
	defer it.Close()

	count := 0
	for {
		_, ok, err := it.Next()
		if err != nil {
			return 0, err
		}
		if !ok {
			break
		}
		count++
	}

	return count, nil
}

func (s *FileServiceImpl) Delete(ctx context.Context, reference string) error {
	stored, err := s.FileRepo.GetByReference(ctx, reference)
	if err != nil {
		return err
	}

	if err := s.FileRepo.Delete(ctx, reference); err != nil {
		return err
	}

	os.Remove(stored.StoragePath)
	return nil
}

func (s *FileServiceImpl) PruneOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	files, err := s.FileRepo.FindOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, f := range files {
		if err := s.FileRepo.Delete(ctx, f.Reference); err != nil {
			continue
		}
		os.Remove(f.StoragePath)
		removed++
	}

	return removed, nil
}
