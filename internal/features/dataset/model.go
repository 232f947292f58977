package dataset

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// VariableKind is the declared type of a dataset column. Import rows are
// coerced to the variable's kind before persistence.
type VariableKind string

const (
	KindNumber  VariableKind = "NUMBER"
	KindDate    VariableKind = "DATE"
	KindBoolean VariableKind = "BOOLEAN"
	KindText    VariableKind = "TEXT"
)

type Dataset struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	CreatedBy   string             `bson:"created_by,omitempty" json:"createdBy,omitempty"`
	CreatedAt   time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updatedAt"`
}

type Variable struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	DatasetID primitive.ObjectID `bson:"dataset_id" json:"datasetId"`
	Name      string             `bson:"name" json:"name"`
	Kind      VariableKind       `bson:"kind" json:"kind"`
	// AutoCreated marks variables minted by an import run for columns
	// that were not mapped to an existing variable.
	AutoCreated bool      `bson:"auto_created" json:"autoCreated"`
	CreatedAt   time.Time `bson:"created_at" json:"createdAt"`
}

// DataEntry holds one patient's values within a dataset. Values is keyed
// by variable name. Repeated imports for the same patient merge into the
// same entry.
type DataEntry struct {
	ID        primitive.ObjectID     `bson:"_id,omitempty" json:"id"`
	DatasetID primitive.ObjectID     `bson:"dataset_id" json:"datasetId"`
	PatientID primitive.ObjectID     `bson:"patient_id" json:"patientId"`
	Reference string                 `bson:"reference,omitempty" json:"reference,omitempty"`
	Values    map[string]interface{} `bson:"values" json:"values"`
	CreatedAt time.Time              `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time              `bson:"updated_at" json:"updatedAt"`
}
