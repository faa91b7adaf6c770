package patient

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rispacs/ris/internal/platform/dicom"
)

// -- Mock Patient Repository --

type mockPatientRepo struct {
	patients map[string]*Patient
	inserts  int
}

func newMockPatientRepo() *mockPatientRepo {
	return &mockPatientRepo{patients: make(map[string]*Patient)}
}

func (m *mockPatientRepo) FindOrCreate(_ context.Context, p *Patient) (*Patient, error) {
	if existing, ok := m.patients[p.MRN]; ok {
		return existing, nil
	}
	m.inserts++
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now()
	p.UpdatedAt = time.Now()
	m.patients[p.MRN] = p
	return p, nil
}

func (m *mockPatientRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	for _, p := range m.patients {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, fmt.Errorf("not found")
}

func (m *mockPatientRepo) GetByMRN(_ context.Context, mrn string) (*Patient, error) {
	p, ok := m.patients[mrn]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return p, nil
}

func (m *mockPatientRepo) List(_ context.Context, limit, offset int) ([]*Patient, int, error) {
	var result []*Patient
	for _, p := range m.patients {
		result = append(result, p)
	}
	return result, len(result), nil
}

// -- Tests --

func TestResolveCreatesPatientFromTags(t *testing.T) {
	repo := newMockPatientRepo()
	svc := NewService(repo)

	p, err := svc.Resolve(context.Background(), dicom.Tags{
		"PatientID":        "MRN-1001",
		"PatientName":      map[string]any{"Alphabetic": "DOE^JANE"},
		"PatientSex":       "F",
		"PatientBirthDate": "19840321",
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if p.MRN != "MRN-1001" {
		t.Errorf("MRN = %q", p.MRN)
	}
	if p.Name != "DOE JANE" {
		t.Errorf("Name = %q", p.Name)
	}
	if p.Sex != "F" {
		t.Errorf("Sex = %q", p.Sex)
	}
	if p.BirthDate != "1984-03-21" {
		t.Errorf("BirthDate = %q", p.BirthDate)
	}
	if len(p.DisplayID) != 8 || p.DisplayID != strings.ToUpper(p.DisplayID) {
		t.Errorf("DisplayID = %q, want 8 uppercase chars", p.DisplayID)
	}
	if p.Anonymous {
		t.Error("patient with MRN must not be anonymous")
	}
}

func TestResolveReusesExistingMRN(t *testing.T) {
	repo := newMockPatientRepo()
	svc := NewService(repo)

	first, err := svc.Resolve(context.Background(), dicom.Tags{
		"PatientID":   "MRN-2002",
		"PatientName": "SMITH^ALEX",
	})
	if err != nil {
		t.Fatalf("first Resolve: %v", err)
	}

	// Same MRN with a conflicting name must not create a second record.
	second, err := svc.Resolve(context.Background(), dicom.Tags{
		"PatientID":   "MRN-2002",
		"PatientName": "SMITH^ALEXANDER",
	})
	if err != nil {
		t.Fatalf("second Resolve: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("resolved two different patients: %s vs %s", first.ID, second.ID)
	}
	if second.Name != "SMITH ALEX" {
		t.Errorf("existing name overwritten: %q", second.Name)
	}
	if repo.inserts != 1 {
		t.Errorf("inserts = %d, want 1", repo.inserts)
	}
}

func TestResolveUnknownPatientSentinel(t *testing.T) {
	repo := newMockPatientRepo()
	svc := NewService(repo)

	first, err := svc.Resolve(context.Background(), dicom.Tags{"Modality": "CT"})
	if err != nil {
		t.Fatalf("first Resolve: %v", err)
	}
	second, err := svc.Resolve(context.Background(), dicom.Tags{"Modality": "MR"})
	if err != nil {
		t.Fatalf("second Resolve: %v", err)
	}

	if first.MRN != UnknownMRN {
		t.Errorf("MRN = %q, want %q", first.MRN, UnknownMRN)
	}
	if !first.Anonymous {
		t.Error("sentinel patient must be anonymous")
	}
	if first.ID != second.ID {
		t.Error("sentinel patient must be shared, not created per call")
	}
	if repo.inserts != 1 {
		t.Errorf("inserts = %d, want 1", repo.inserts)
	}
}

func TestResolveNameWithoutMRN(t *testing.T) {
	repo := newMockPatientRepo()
	svc := NewService(repo)

	p, err := svc.Resolve(context.Background(), dicom.Tags{
		"PatientName": "ROE^SAM",
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if p.MRN == UnknownMRN || p.MRN == "" {
		t.Errorf("MRN = %q, want generated anonymous MRN", p.MRN)
	}
	if !strings.HasPrefix(p.MRN, "ANON_") {
		t.Errorf("MRN = %q, want ANON_ prefix", p.MRN)
	}
	if p.Name != "ROE SAM" {
		t.Errorf("Name = %q", p.Name)
	}
}

func TestResolveMalformedBirthDateLeftBlank(t *testing.T) {
	repo := newMockPatientRepo()
	svc := NewService(repo)

	p, err := svc.Resolve(context.Background(), dicom.Tags{
		"PatientID":        "MRN-3003",
		"PatientBirthDate": "1984",
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if p.BirthDate != "" {
		t.Errorf("BirthDate = %q, want blank for malformed input", p.BirthDate)
	}
}
