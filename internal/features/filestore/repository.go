package filestore

import (
	"context"
	"time"

	"go-cohort/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type FileRepository interface {
	Create(ctx context.Context, f *StoredFile) error
	GetByReference(ctx context.Context, reference string) (*StoredFile, error)
	Delete(ctx context.Context, reference string) error
	FindOlderThan(ctx context.Context, cutoff time.Time) ([]StoredFile, error)
}

type FileRepositoryImpl struct {
	collection *mongo.Collection
}

func NewFileRepository(db *database.MongodbDB) FileRepository {
	return &FileRepositoryImpl{
		collection: db.DB.Collection("files"),
	}
}

func (r *FileRepositoryImpl) Create(ctx context.Context, f *StoredFile) error {
	if f.ID.IsZero() {
		f.ID = primitive.NewObjectID()
	}
	f.CreatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, f)
	return err
}

func (r *FileRepositoryImpl) GetByReference(ctx context.Context, reference string) (*StoredFile, error) {
	var f StoredFile
	err := r.collection.FindOne(ctx, bson.M{"reference": reference}).Decode(&f)
	if err != nil {
		return nil, err
	}

	return &f, nil
}

func (r *FileRepositoryImpl) Delete(ctx context.Context, reference string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"reference": reference})
	return err
}

func (r *FileRepositoryImpl) FindOlderThan(ctx context.Context, cutoff time.Time) ([]StoredFile, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"created_at": bson.M{"$lt": cutoff}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var files []StoredFile
	if err = cursor.All(ctx, &files); err != nil {
		return nil, err
	}

	return files, nil
}
