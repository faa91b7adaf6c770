package patient

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// FindOrCreate inserts p unless a patient with the same MRN already
	// exists, in which case the existing record is returned unchanged.
	// Safe under concurrent callers via the unique constraint on mrn.
	FindOrCreate(ctx context.Context, p *Patient) (*Patient, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByMRN(ctx context.Context, mrn string) (*Patient, error)
	List(ctx context.Context, limit, offset int) ([]*Patient, int, error)
}
