package lab

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const labCols = `id, identifier, name, active, created_at, updated_at`

func scanLab(row pgx.Row) (*Lab, error) {
	var l Lab
	err := row.Scan(&l.ID, &l.Identifier, &l.Name, &l.Active, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *repoPG) FindOrCreate(ctx context.Context, identifier, name string) (*Lab, error) {
	// The no-op DO UPDATE makes RETURNING yield the existing row when the
	// identifier is already taken, so concurrent resolvers converge on one lab.
	return scanLab(r.pool.QueryRow(ctx, `
		INSERT INTO labs (id, identifier, name, active)
		VALUES ($1, $2, $3, TRUE)
		ON CONFLICT (identifier) DO UPDATE SET identifier = EXCLUDED.identifier
		RETURNING `+labCols,
		uuid.New(), identifier, name))
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Lab, error) {
	return scanLab(r.pool.QueryRow(ctx, `SELECT `+labCols+` FROM labs WHERE id = $1`, id))
}

func (r *repoPG) GetByIdentifier(ctx context.Context, identifier string) (*Lab, error) {
	return scanLab(r.pool.QueryRow(ctx, `SELECT `+labCols+` FROM labs WHERE identifier = $1`, identifier))
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Lab, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM labs`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `SELECT `+labCols+` FROM labs ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var labs []*Lab
	for rows.Next() {
		l, err := scanLab(rows)
		if err != nil {
			return nil, 0, err
		}
		labs = append(labs, l)
	}
	return labs, total, rows.Err()
}
