package patient

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rispacs/ris/internal/platform/dicom"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Resolve maps the patient-level tags of a DICOM instance to a patient
// record, creating one when no record with the instance's MRN exists.
// Instances carrying neither an identifier nor a name all resolve to the
// shared unknown-patient record.
func (s *Service) Resolve(ctx context.Context, tags dicom.Tags) (*Patient, error) {
	mrn := tags.String(dicom.TagPatientID)
	name := tags.PersonName(dicom.TagPatientName)
	sex := tags.String(dicom.TagPatientSex)
	birthDate := dicom.NormalizeDate(tags.String(dicom.TagPatientBirthDate))

	if mrn == "" && name == "" {
		p, err := s.repo.FindOrCreate(ctx, &Patient{
			MRN:       UnknownMRN,
			DisplayID: NewDisplayID(),
			Name:      UnknownName,
			Sex:       sex,
			BirthDate: birthDate,
			Anonymous: true,
		})
		if err != nil {
			return nil, fmt.Errorf("resolve unknown patient: %w", err)
		}
		return p, nil
	}

	if name == "" {
		name = "Unknown Patient"
	}
	if mrn == "" {
		mrn = fmt.Sprintf("ANON_%d", time.Now().UnixMilli())
	}

	p, err := s.repo.FindOrCreate(ctx, &Patient{
		MRN:       mrn,
		DisplayID: NewDisplayID(),
		Name:      name,
		Sex:       sex,
		BirthDate: birthDate,
	})
	if err != nil {
		return nil, fmt.Errorf("resolve patient %s: %w", mrn, err)
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.repo.List(ctx, limit, offset)
}
