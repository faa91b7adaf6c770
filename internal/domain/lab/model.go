package lab

import (
	"time"

	"github.com/google/uuid"
)

// Identifier and display name of the lab record that owns studies pulled
// over HTTP from the primary archive. Created on first use.
const (
	SourceLabIdentifier = "ORTHANC_HTTP_SOURCE"
	SourceLabName       = "Primary Orthanc Instance (HTTP Source)"
)

// Lab maps to the labs table. A lab is an imaging source facility; every
// study is attributed to exactly one lab.
type Lab struct {
	ID         uuid.UUID `db:"id" json:"id"`
	Identifier string    `db:"identifier" json:"identifier"`
	Name       string    `db:"name" json:"name"`
	Active     bool      `db:"active" json:"active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}
