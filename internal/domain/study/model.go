package study

import (
	"time"

	"github.com/google/uuid"
)

// Workflow statuses an ingested study moves through. Ingestion only ever
// sets StatusNewStudyReceived; later workflow steps own the rest.
const (
	StatusNoActiveStudy    = "no_active_study"
	StatusNewStudyReceived = "new_study_received"
)

// Study maps to the dicom_studies table. One row per Study Instance UID;
// instances belonging to the same study fold into the existing row.
type Study struct {
	ID               uuid.UUID     `db:"id" json:"id"`
	StudyInstanceUID string        `db:"study_instance_uid" json:"study_instance_uid"`
	ArchiveStudyID   string        `db:"archive_study_id" json:"archive_study_id,omitempty"`
	AccessionNumber  string        `db:"accession_number" json:"accession_number,omitempty"`
	StudyDate        string        `db:"study_date" json:"study_date,omitempty"`
	StudyTime        string        `db:"study_time" json:"study_time,omitempty"`
	Description      string        `db:"description" json:"description,omitempty"`
	PatientID        uuid.UUID     `db:"patient_id" json:"patient_id"`
	LabID            uuid.UUID     `db:"lab_id" json:"lab_id"`
	Modalities       []string      `db:"modalities" json:"modalities"`
	WorkflowStatus   string        `db:"workflow_status" json:"workflow_status"`
	StatusHistory    []StatusEntry `db:"status_history" json:"status_history"`
	CreatedAt        time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time     `db:"updated_at" json:"updated_at"`
}

// StatusEntry is one element of the status_history jsonb column.
type StatusEntry struct {
	Status    string    `json:"status"`
	ChangedAt time.Time `json:"changedAt"`
	Note      string    `json:"note,omitempty"`
}
