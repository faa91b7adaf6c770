package study

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const studyCols = `id, study_instance_uid, archive_study_id, accession_number,
	study_date, study_time, description, patient_id, lab_id, modalities,
	workflow_status, status_history, created_at, updated_at`

func scanStudy(row pgx.Row) (*Study, error) {
	var s Study
	err := row.Scan(&s.ID, &s.StudyInstanceUID, &s.ArchiveStudyID, &s.AccessionNumber,
		&s.StudyDate, &s.StudyTime, &s.Description, &s.PatientID, &s.LabID,
		&s.Modalities, &s.WorkflowStatus, &s.StatusHistory, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *repoPG) Upsert(ctx context.Context, p UpsertParams) (*Study, bool, error) {
	now := time.Now().UTC()
	createEntry, err := json.Marshal(StatusEntry{Status: StatusNewStudyReceived, ChangedAt: now, Note: p.CreateNote})
	if err != nil {
		return nil, false, fmt.Errorf("marshal history entry: %w", err)
	}
	updateEntry, err := json.Marshal(StatusEntry{Status: StatusNewStudyReceived, ChangedAt: now, Note: p.UpdateNote})
	if err != nil {
		return nil, false, fmt.Errorf("marshal history entry: %w", err)
	}

	// Non-nil so the incoming value is always an array, never SQL NULL
	// (array concatenation with NULL would null out the merged set).
	modalities := make([]string, 0, 1)
	if p.Modality != "" {
		modalities = append(modalities, p.Modality)
	}

	// Single-statement upsert keyed on the study_instance_uid unique
	// constraint. Descriptive fields keep their first non-empty value,
	// the modality array is a deduplicated union, the workflow status
	// only moves off no_active_study, and the matching history entry is
	// appended. xmax = 0 distinguishes insert from update.
	var s Study
	var inserted bool
	err = r.pool.QueryRow(ctx, `
		INSERT INTO dicom_studies (id, study_instance_uid, archive_study_id,
			accession_number, study_date, study_time, description,
			patient_id, lab_id, modalities, workflow_status, status_history)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
			jsonb_build_array($12::jsonb))
		ON CONFLICT (study_instance_uid) DO UPDATE SET
			archive_study_id = COALESCE(NULLIF(dicom_studies.archive_study_id, ''), EXCLUDED.archive_study_id),
			accession_number = COALESCE(NULLIF(dicom_studies.accession_number, ''), EXCLUDED.accession_number),
			study_date       = COALESCE(NULLIF(dicom_studies.study_date, ''), EXCLUDED.study_date),
			study_time       = COALESCE(NULLIF(dicom_studies.study_time, ''), EXCLUDED.study_time),
			description      = COALESCE(NULLIF(dicom_studies.description, ''), EXCLUDED.description),
			patient_id       = EXCLUDED.patient_id,
			lab_id           = EXCLUDED.lab_id,
			modalities       = ARRAY(SELECT DISTINCT m
				FROM unnest(dicom_studies.modalities || EXCLUDED.modalities) AS m
				WHERE m <> '' ORDER BY m),
			workflow_status  = CASE WHEN dicom_studies.workflow_status = $13
				THEN $11 ELSE dicom_studies.workflow_status END,
			status_history   = dicom_studies.status_history || $14::jsonb,
			updated_at       = NOW()
		RETURNING `+studyCols+`, (xmax = 0)`,
		uuid.New(), p.StudyInstanceUID, p.ArchiveStudyID,
		p.AccessionNumber, p.StudyDate, p.StudyTime, p.Description,
		p.PatientID, p.LabID, modalities, StatusNewStudyReceived,
		createEntry, StatusNoActiveStudy, updateEntry,
	).Scan(&s.ID, &s.StudyInstanceUID, &s.ArchiveStudyID, &s.AccessionNumber,
		&s.StudyDate, &s.StudyTime, &s.Description, &s.PatientID, &s.LabID,
		&s.Modalities, &s.WorkflowStatus, &s.StatusHistory, &s.CreatedAt,
		&s.UpdatedAt, &inserted)
	if err != nil {
		return nil, false, err
	}
	return &s, inserted, nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Study, error) {
	return scanStudy(r.pool.QueryRow(ctx, `SELECT `+studyCols+` FROM dicom_studies WHERE id = $1`, id))
}

func (r *repoPG) GetByUID(ctx context.Context, studyInstanceUID string) (*Study, error) {
	return scanStudy(r.pool.QueryRow(ctx, `SELECT `+studyCols+` FROM dicom_studies WHERE study_instance_uid = $1`, studyInstanceUID))
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Study, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM dicom_studies`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `SELECT `+studyCols+` FROM dicom_studies ORDER BY updated_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var studies []*Study
	for rows.Next() {
		s, err := scanStudy(rows)
		if err != nil {
			return nil, 0, err
		}
		studies = append(studies, s)
	}
	return studies, total, rows.Err()
}
