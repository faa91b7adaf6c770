package patient

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

const patientCols = `id, mrn, display_id, name, sex, birth_date, anonymous, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.MRN, &p.DisplayID, &p.Name, &p.Sex, &p.BirthDate,
		&p.Anonymous, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repoPG) FindOrCreate(ctx context.Context, p *Patient) (*Patient, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	// The no-op DO UPDATE makes RETURNING yield the existing row on an MRN
	// collision, so the loser of a concurrent insert race still gets the
	// winner's record.
	return scanPatient(r.pool.QueryRow(ctx, `
		INSERT INTO patients (id, mrn, display_id, name, sex, birth_date, anonymous)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (mrn) DO UPDATE SET mrn = EXCLUDED.mrn
		RETURNING `+patientCols,
		p.ID, p.MRN, p.DisplayID, p.Name, p.Sex, p.BirthDate, p.Anonymous))
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return scanPatient(r.pool.QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
}

func (r *repoPG) GetByMRN(ctx context.Context, mrn string) (*Patient, error) {
	return scanPatient(r.pool.QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE mrn = $1`, mrn))
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM patients`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `SELECT `+patientCols+` FROM patients ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var patients []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		patients = append(patients, p)
	}
	return patients, total, rows.Err()
}
