package patient

import (
	"context"
	"time"

	"go-cohort/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	Get(ctx context.Context, id string) (*Patient, error)
	GetByReference(ctx context.Context, reference string) (*Patient, error)
	List(ctx context.Context, page, limit int) ([]Patient, int64, error)
	Update(ctx context.Context, id string, p *Patient) error
	Delete(ctx context.Context, id string) error
	// All streams every patient. The match engine uses it to build its
	// in-memory identity index before a run starts.
	All(ctx context.Context) ([]Patient, error)
	Count(ctx context.Context) (int64, error)
}

type PatientRepositoryImpl struct {
	collection *mongo.Collection
}

func NewPatientRepository(db *database.MongodbDB) PatientRepository {
	return &PatientRepositoryImpl{
		collection: db.DB.Collection("patients"),
	}
}

func (r *PatientRepositoryImpl) Create(ctx context.Context, p *Patient) error {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	if p.Gender == "" {
		p.Gender = GenderUnknown
	}
	p.CreatedAt = time.Now()
	p.UpdatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, p)
	return err
}

func (r *PatientRepositoryImpl) Get(ctx context.Context, id string) (*Patient, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	var p Patient
	err = r.collection.FindOne(ctx, bson.M{"_id": objID}).Decode(&p)
	if err != nil {
		return nil, err
	}

	return &p, nil
}

func (r *PatientRepositoryImpl) GetByReference(ctx context.Context, reference string) (*Patient, error) {
	var p Patient
	err := r.collection.FindOne(ctx, bson.M{"reference": reference}).Decode(&p)
	if err != nil {
		return nil, err
	}

	return &p, nil
}

func (r *PatientRepositoryImpl) List(ctx context.Context, page, limit int) ([]Patient, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	total, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit)).
		SetSort(bson.M{"created_at": -1})

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var patients []Patient
	if err = cursor.All(ctx, &patients); err != nil {
		return nil, 0, err
	}

	return patients, total, nil
}

func (r *PatientRepositoryImpl) Update(ctx context.Context, id string, p *Patient) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}

	p.UpdatedAt = time.Now()
	_, err = r.collection.ReplaceOne(ctx, bson.M{"_id": objID}, p)
	return err
}

func (r *PatientRepositoryImpl) Delete(ctx context.Context, id string) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}

	_, err = r.collection.DeleteOne(ctx, bson.M{"_id": objID})
	return err
}

func (r *PatientRepositoryImpl) All(ctx context.Context) ([]Patient, error) {
	cursor, err := r.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var patients []Patient
	if err = cursor.All(ctx, &patients); err != nil {
		return nil, err
	}

	return patients, nil
}

func (r *PatientRepositoryImpl) Count(ctx context.Context) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{})
}
