package filestore

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// StoredFile is the metadata record kept alongside the file on disk.
// Reference is the opaque handle handed to clients and import jobs.
type StoredFile struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Reference    string             `bson:"reference" json:"reference"`
	OriginalName string             `bson:"original_name" json:"originalName"`
	StoragePath  string             `bson:"storage_path" json:"-"`
	ContentType  string             `bson:"content_type" json:"contentType"`
	Size         int64              `bson:"size" json:"size"`
	UploadedBy   string             `bson:"uploaded_by,omitempty" json:"uploadedBy,omitempty"`
	CreatedAt    time.Time          `bson:"created_at" json:"createdAt"`
}
