package importjob

import (
	"time"

	"go-cohort/internal/features/dataset"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type JobStatus string

const (
	StatusPending   JobStatus = "PENDING"
	StatusRunning   JobStatus = "RUNNING"
	StatusPaused    JobStatus = "PAUSED"
	StatusCompleted JobStatus = "COMPLETED"
	StatusFailed    JobStatus = "FAILED"
	StatusCancelled JobStatus = "CANCELLED"
)

type PausedReason string

const (
	PausedManual            PausedReason = "manual"
	PausedConsecutiveErrors PausedReason = "consecutive_errors"
	PausedServerRestart     PausedReason = "server_restart"
)

// Identity field names. These are the logical field keys used in
// ColumnMapping.IdentityFields and in classifier suggestions.
const (
	FieldReference   = "reference"
	FieldFirstName   = "firstName"
	FieldLastName    = "lastName"
	FieldDateOfBirth = "dateOfBirth"
	FieldAge         = "age"
	FieldGender      = "gender"
	FieldLatitude    = "latitude"
	FieldLongitude   = "longitude"
)

// ColumnMapping splits mapped columns into two namespaces: identity
// fields drive matching, variable fields carry data values. Transforms
// holds optional per-column expressions applied before coercion.
type ColumnMapping struct {
	IdentityFields map[string]string `bson:"identity_fields,omitempty" json:"identityFields,omitempty"`
	VariableFields map[string]string `bson:"variable_fields,omitempty" json:"variableFields,omitempty"`
	Transforms     map[string]string `bson:"transforms,omitempty" json:"transforms,omitempty"`
}

func (m ColumnMapping) Empty() bool {
	return len(m.IdentityFields) == 0 && len(m.VariableFields) == 0
}

type ImportError struct {
	RowNumber int    `bson:"row_number" json:"rowNumber"`
	Message   string `bson:"message" json:"message"`
}

type ImportJob struct {
	ID            primitive.ObjectID              `bson:"_id,omitempty" json:"id"`
	DatasetID     primitive.ObjectID              `bson:"dataset_id" json:"datasetId"`
	SourceFileRef string                          `bson:"source_file_ref" json:"sourceFileRef"`
	FileName      string                          `bson:"file_name,omitempty" json:"fileName,omitempty"`
	ColumnMapping ColumnMapping                   `bson:"column_mapping" json:"columnMapping"`
	ColumnTypes   map[string]dataset.VariableKind `bson:"column_types,omitempty" json:"columnTypes,omitempty"`

	Status       JobStatus    `bson:"status" json:"status"`
	PausedReason PausedReason `bson:"paused_reason,omitempty" json:"pausedReason,omitempty"`

	TotalRows     int `bson:"total_rows" json:"totalRows"`
	ProcessedRows int `bson:"processed_rows" json:"processedRows"`

	ImportedCount int `bson:"imported_count" json:"importedCount"`
	UpdatedCount  int `bson:"updated_count" json:"updatedCount"`
	SkippedCount  int `bson:"skipped_count" json:"skippedCount"`
	ErrorCount    int `bson:"error_count" json:"errorCount"`

	ConsecutiveErrors int `bson:"consecutive_errors" json:"consecutiveErrors"`

	PatientsCreated  int `bson:"patients_created" json:"patientsCreated"`
	VariablesCreated int `bson:"variables_created" json:"variablesCreated"`

	// Errors is bounded; once the cap is hit new errors only bump
	// ErrorCount, the stored list keeps the oldest entries.
	Errors []ImportError `bson:"errors,omitempty" json:"errors,omitempty"`

	CreatedBy   string     `bson:"created_by,omitempty" json:"createdBy,omitempty"`
	CreatedAt   time.Time  `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time  `bson:"updated_at" json:"updatedAt"`
	StartedAt   *time.Time `bson:"started_at,omitempty" json:"startedAt,omitempty"`
	CompletedAt *time.Time `bson:"completed_at,omitempty" json:"completedAt,omitempty"`
}

// CreatedEntitiesCount is the side-effect tally exposed on snapshots.
func (j *ImportJob) CreatedEntitiesCount() int {
	return j.PatientsCreated + j.VariablesCreated
}

// Terminal reports whether no further transitions are allowed.
func (j *ImportJob) Terminal() bool {
	switch j.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

var transitions = map[JobStatus][]JobStatus{
	StatusPending: {StatusRunning, StatusCancelled},
	StatusRunning: {StatusPaused, StatusCompleted, StatusFailed, StatusCancelled},
	StatusPaused:  {StatusRunning, StatusCancelled},
}

// CanTransition implements the job lifecycle table. Terminal states have
// no outgoing edges.
func CanTransition(from, to JobStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// MatchCandidate is the per-row result of matching against the patient
// store. Ephemeral, never persisted.
type MatchCandidate struct {
	PatientID   primitive.ObjectID `json:"patientId"`
	Reference   string             `json:"reference"`
	DisplayName string             `json:"displayName"`
	Confidence  float64            `json:"confidence"`
	MatchedOn   []string           `json:"matchedOn"`
}

// FileGroup collects rows of one file judged to denote the same person.
type FileGroup struct {
	GroupID           int   `json:"groupId"`
	RepresentativeRow int   `json:"representativeRow"`
	MemberRows        []int `json:"memberRows"`
}

// Row classification outcomes.
const (
	RowNew           = "new"
	RowUpdate        = "update"
	RowError         = "error"
	RowFileDuplicate = "file_duplicate"
)

// PreviewRow is the read-only per-row projection returned by dry runs.
type PreviewRow struct {
	RowNumber          int               `json:"rowNumber"`
	Status             string            `json:"status"`
	PatientDisplayName string            `json:"patientDisplayName,omitempty"`
	Confidence         float64           `json:"confidence,omitempty"`
	Ambiguous          bool              `json:"ambiguous,omitempty"`
	FileDuplicateOfRow *int              `json:"fileDuplicateOfRow,omitempty"`
	FileGroupID        *int              `json:"fileGroupId,omitempty"`
	MappedValues       map[string]string `json:"mappedValues,omitempty"`
	Message            string            `json:"message,omitempty"`
}

// PreviewStats aggregates a full dry run.
type PreviewStats struct {
	Total            int `json:"total"`
	New              int `json:"new"`
	Update           int `json:"update"`
	Errors           int `json:"errors"`
	FileDuplicates   int `json:"fileDuplicates"`
	Ambiguous        int `json:"ambiguous"`
	UniquePatients   int `json:"uniquePatients"`
	PatientsExisting int `json:"patientsExisting"`
	PatientsToCreate int `json:"patientsToCreate"`
}

// PreviewResult is the payload of previewImport. SuggestedMapping and
// ColumnTypes are always present; Stats and Rows only when a mapping was
// supplied (full dry run).
type PreviewResult struct {
	Columns          []string                        `json:"columns"`
	ColumnTypes      map[string]dataset.VariableKind `json:"columnTypes"`
	SystemColumns    []string                        `json:"systemColumns,omitempty"`
	SuggestedMapping *ColumnMapping                  `json:"suggestedMapping,omitempty"`
	SampleRows       []map[string]string             `json:"sampleRows,omitempty"`
	Rows             []PreviewRow                    `json:"rows,omitempty"`
	Stats            *PreviewStats                   `json:"stats,omitempty"`
}
