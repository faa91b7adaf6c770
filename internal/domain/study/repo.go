package study

import (
	"context"

	"github.com/google/uuid"
)

// UpsertParams carries one instance's contribution to its study row.
type UpsertParams struct {
	StudyInstanceUID string
	ArchiveStudyID   string
	AccessionNumber  string
	StudyDate        string
	StudyTime        string
	Description      string
	PatientID        uuid.UUID
	LabID            uuid.UUID
	Modality         string

	// History notes for the two outcomes. Exactly one is recorded,
	// depending on whether the row was inserted or updated.
	CreateNote string
	UpdateNote string
}

type Repository interface {
	// Upsert folds the instance into its study row in a single atomic
	// statement, creating the row when the Study Instance UID is new.
	// Descriptive fields keep their first non-empty value, the modality
	// set grows monotonically, and a history entry is appended. Returns
	// the resulting row and whether it was newly created.
	Upsert(ctx context.Context, p UpsertParams) (*Study, bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Study, error)
	GetByUID(ctx context.Context, studyInstanceUID string) (*Study, error)
	List(ctx context.Context, limit, offset int) ([]*Study, int, error)
}
