package study

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// IngestInput is one processed instance's view of its study.
type IngestInput struct {
	StudyInstanceUID string
	SOPInstanceUID   string
	ArchiveStudyID   string
	AccessionNumber  string
	StudyDate        string
	StudyTime        string
	Description      string
	Modality         string
	PatientID        uuid.UUID
	LabID            uuid.UUID
	JobID            int64
}

// Ingest folds an instance into its study, creating the study row when the
// Study Instance UID has not been seen before. Returns the study and
// whether it was newly created.
func (s *Service) Ingest(ctx context.Context, in IngestInput) (*Study, bool, error) {
	if in.StudyInstanceUID == "" {
		return nil, false, fmt.Errorf("study instance uid is required")
	}

	st, created, err := s.repo.Upsert(ctx, UpsertParams{
		StudyInstanceUID: in.StudyInstanceUID,
		ArchiveStudyID:   in.ArchiveStudyID,
		AccessionNumber:  in.AccessionNumber,
		StudyDate:        in.StudyDate,
		StudyTime:        in.StudyTime,
		Description:      in.Description,
		PatientID:        in.PatientID,
		LabID:            in.LabID,
		Modality:         in.Modality,
		CreateNote:       fmt.Sprintf("First instance %s for new study processed asynchronously (Job %d).", in.SOPInstanceUID, in.JobID),
		UpdateNote:       fmt.Sprintf("Instance %s processed asynchronously (Job %d).", in.SOPInstanceUID, in.JobID),
	})
	if err != nil {
		return nil, false, fmt.Errorf("upsert study %s: %w", in.StudyInstanceUID, err)
	}
	return st, created, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Study, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByUID(ctx context.Context, uid string) (*Study, error) {
	return s.repo.GetByUID(ctx, uid)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Study, int, error) {
	return s.repo.List(ctx, limit, offset)
}
