package dataset

import (
	"context"
	"time"

	"go-cohort/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type DatasetRepository interface {
	Create(ctx context.Context, d *Dataset) error
	Get(ctx context.Context, id string) (*Dataset, error)
	List(ctx context.Context) ([]Dataset, error)
	Update(ctx context.Context, id string, d *Dataset) error
	Delete(ctx context.Context, id string) error

	CreateVariable(ctx context.Context, v *Variable) error
	FindVariables(ctx context.Context, datasetID primitive.ObjectID) ([]Variable, error)
	FindVariableByName(ctx context.Context, datasetID primitive.ObjectID, name string) (*Variable, error)

	UpsertEntry(ctx context.Context, e *DataEntry) error
	BulkUpsertEntries(ctx context.Context, entries []DataEntry) error
	FindEntries(ctx context.Context, datasetID primitive.ObjectID, page, limit int) ([]DataEntry, int64, error)
	CountEntries(ctx context.Context, datasetID primitive.ObjectID) (int64, error)
}

type DatasetRepositoryImpl struct {
	datasets  *mongo.Collection
	variables *mongo.Collection
	entries   *mongo.Collection
}

func NewDatasetRepository(db *database.MongodbDB) DatasetRepository {
	return &DatasetRepositoryImpl{
		datasets:  db.DB.Collection("datasets"),
		variables: db.DB.Collection("variables"),
		entries:   db.DB.Collection("data_entries"),
	}
}

func (r *DatasetRepositoryImpl) Create(ctx context.Context, d *Dataset) error {
	if d.ID.IsZero() {
		d.ID = primitive.NewObjectID()
	}
	d.CreatedAt = time.Now()
	d.UpdatedAt = time.Now()

	_, err := r.datasets.InsertOne(ctx, d)
	return err
}

func (r *DatasetRepositoryImpl) Get(ctx context.Context, id string) (*Dataset, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	var d Dataset
	err = r.datasets.FindOne(ctx, bson.M{"_id": objID}).Decode(&d)
	if err != nil {
		return nil, err
	}

	return &d, nil
}

func (r *DatasetRepositoryImpl) List(ctx context.Context) ([]Dataset, error) {
	cursor, err := r.datasets.Find(ctx, bson.M{}, options.Find().SetSort(bson.M{"created_at": -1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var datasets []Dataset
	if err = cursor.All(ctx, &datasets); err != nil {
		return nil, err
	}

	return datasets, nil
}

func (r *DatasetRepositoryImpl) Update(ctx context.Context, id string, d *Dataset) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}

	d.UpdatedAt = time.Now()
	_, err = r.datasets.ReplaceOne(ctx, bson.M{"_id": objID}, d)
	return err
}

func (r *DatasetRepositoryImpl) Delete(ctx context.Context, id string) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}

	if _, err = r.datasets.DeleteOne(ctx, bson.M{"_id": objID}); err != nil {
		return err
	}

	// Variables and entries go with the dataset
	r.variables.DeleteMany(ctx, bson.M{"dataset_id": objID})
	r.entries.DeleteMany(ctx, bson.M{"dataset_id": objID})
	return nil
}

func (r *DatasetRepositoryImpl) CreateVariable(ctx context.Context, v *Variable) error {
	if v.ID.IsZero() {
		v.ID = primitive.NewObjectID()
	}
	v.CreatedAt = time.Now()

	_, err := r.variables.InsertOne(ctx, v)
	return err
}

func (r *DatasetRepositoryImpl) FindVariables(ctx context.Context, datasetID primitive.ObjectID) ([]Variable, error) {
	cursor, err := r.variables.Find(ctx, bson.M{"dataset_id": datasetID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var vars []Variable
	if err = cursor.All(ctx, &vars); err != nil {
		return nil, err
	}

	return vars, nil
}

func (r *DatasetRepositoryImpl) FindVariableByName(ctx context.Context, datasetID primitive.ObjectID, name string) (*Variable, error) {
	var v Variable
	err := r.variables.FindOne(ctx, bson.M{"dataset_id": datasetID, "name": name}).Decode(&v)
	if err != nil {
		return nil, err
	}

	return &v, nil
}

func (r *DatasetRepositoryImpl) UpsertEntry(ctx context.Context, e *DataEntry) error {
	filter := bson.M{"dataset_id": e.DatasetID, "patient_id": e.PatientID}

	setValues := bson.M{
		"reference":  e.Reference,
		"updated_at": time.Now(),
	}
	for name, value := range e.Values {
		setValues["values."+name] = value
	}

	update := bson.M{
		"$set":         setValues,
		"$setOnInsert": bson.M{"created_at": time.Now()},
	}

	_, err := r.entries.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

func (r *DatasetRepositoryImpl) BulkUpsertEntries(ctx context.Context, entries []DataEntry) error {
	if len(entries) == 0 {
		return nil
	}

	models := make([]mongo.WriteModel, 0, len(entries))
	for _, e := range entries {
		setValues := bson.M{
			"reference":  e.Reference,
			"updated_at": time.Now(),
		}
		for name, value := range e.Values {
			setValues["values."+name] = value
		}

		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"dataset_id": e.DatasetID, "patient_id": e.PatientID}).
			SetUpdate(bson.M{
				"$set":         setValues,
				"$setOnInsert": bson.M{"created_at": time.Now()},
			}).
			SetUpsert(true))
	}

	_, err := r.entries.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	return err
}

func (r *DatasetRepositoryImpl) FindEntries(ctx context.Context, datasetID primitive.ObjectID, page, limit int) ([]DataEntry, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}

	filter := bson.M{"dataset_id": datasetID}

	total, err := r.entries.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cursor, err := r.entries.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var entries []DataEntry
	if err = cursor.All(ctx, &entries); err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

func (r *DatasetRepositoryImpl) CountEntries(ctx context.Context, datasetID primitive.ObjectID) (int64, error) {
	return r.entries.CountDocuments(ctx, bson.M{"dataset_id": datasetID})
}
