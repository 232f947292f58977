package importjob

import (
	"context"
	"time"

	"go-cohort/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type JobRepository interface {
	Create(ctx context.Context, job *ImportJob) error
	Get(ctx context.Context, id string) (*ImportJob, error)
	Update(ctx context.Context, job *ImportJob) error
	List(ctx context.Context, datasetID string, limit int) ([]ImportJob, error)
	UpdateStatus(ctx context.Context, id string, status JobStatus, reason PausedReason) error
	FindByStatus(ctx context.Context, status JobStatus) ([]ImportJob, error)
	DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type JobRepositoryImpl struct {
	collection *mongo.Collection
}

func NewJobRepository(db *database.MongodbDB) JobRepository {
	return &JobRepositoryImpl{
		collection: db.DB.Collection("import_jobs"),
	}
}

func (r *JobRepositoryImpl) Create(ctx context.Context, job *ImportJob) error {
	if job.ID.IsZero() {
		job.ID = primitive.NewObjectID()
	}
	if job.Status == "" {
		job.Status = StatusPending
	}
	job.CreatedAt = time.Now()
	job.UpdatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, job)
	return err
}

func (r *JobRepositoryImpl) Get(ctx context.Context, id string) (*ImportJob, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	var job ImportJob
	err = r.collection.FindOne(ctx, bson.M{"_id": objID}).Decode(&job)
	if err != nil {
		return nil, err
	}

	return &job, nil
}

// Update replaces the whole document so the persisted counter set is
// always a consistent snapshot of one checkpoint.
func (r *JobRepositoryImpl) Update(ctx context.Context, job *ImportJob) error {
	job.UpdatedAt = time.Now()
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": job.ID}, job)
	return err
}

func (r *JobRepositoryImpl) List(ctx context.Context, datasetID string, limit int) ([]ImportJob, error) {
	filter := bson.M{}
	if datasetID != "" {
		objID, err := primitive.ObjectIDFromHex(datasetID)
		if err != nil {
			return nil, err
		}
		filter["dataset_id"] = objID
	}

	if limit < 1 {
		limit = 50
	}

	opts := options.Find().
		SetSort(bson.M{"created_at": -1}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var jobs []ImportJob
	if err = cursor.All(ctx, &jobs); err != nil {
		return nil, err
	}

	return jobs, nil
}

func (r *JobRepositoryImpl) UpdateStatus(ctx context.Context, id string, status JobStatus, reason PausedReason) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}

	set := bson.M{
		"status":     status,
		"updated_at": time.Now(),
	}
	if status == StatusPaused {
		set["paused_reason"] = reason
	} else {
		set["paused_reason"] = ""
	}
	if status == StatusCompleted || status == StatusFailed || status == StatusCancelled {
		now := time.Now()
		set["completed_at"] = &now
	}

	_, err = r.collection.UpdateOne(ctx, bson.M{"_id": objID}, bson.M{"$set": set})
	return err
}

func (r *JobRepositoryImpl) FindByStatus(ctx context.Context, status JobStatus) ([]ImportJob, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"status": status})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var jobs []ImportJob
	if err = cursor.All(ctx, &jobs); err != nil {
		return nil, err
	}

	return jobs, nil
}

func (r *JobRepositoryImpl) DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	filter := bson.M{
		"status":     bson.M{"$in": []JobStatus{StatusCompleted, StatusFailed, StatusCancelled}},
		"updated_at": bson.M{"$lt": cutoff},
	}

	res, err := r.collection.DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}

	return res.DeletedCount, nil
}
