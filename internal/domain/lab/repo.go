package lab

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// FindOrCreate returns the lab with the given identifier, inserting it
	// with the given name when no such lab exists. Safe under concurrent
	// callers: the identifier column carries a unique constraint and the
	// insert is an upsert.
	FindOrCreate(ctx context.Context, identifier, name string) (*Lab, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Lab, error)
	GetByIdentifier(ctx context.Context, identifier string) (*Lab, error)
	List(ctx context.Context, limit, offset int) ([]*Lab, int, error)
}
