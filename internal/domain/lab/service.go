package lab

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

// ResolveSource returns the lab that studies arriving over the archive's
// HTTP notification channel are attributed to, creating it on first use.
func (s *Service) ResolveSource(ctx context.Context) (*Lab, error) {
	l, err := s.repo.FindOrCreate(ctx, SourceLabIdentifier, SourceLabName)
	if err != nil {
		return nil, fmt.Errorf("resolve source lab: %w", err)
	}
	return l, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Lab, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Lab, int, error) {
	return s.repo.List(ctx, limit, offset)
}
