package patient

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Sentinel record shared by all instances arriving without a patient
// identifier or name. Created on first use, reused afterwards.
const (
	UnknownMRN  = "UNKNOWN_HTTP_PULL"
	UnknownName = "Unknown Patient (HTTP Pull)"
)

// Patient maps to the patients table. MRN is the external identifier
// carried in DICOM tags; DisplayID is the short identifier shown in the
// worklist, generated when the record is created.
type Patient struct {
	ID        uuid.UUID `db:"id" json:"id"`
	MRN       string    `db:"mrn" json:"mrn"`
	DisplayID string    `db:"display_id" json:"display_id"`
	Name      string    `db:"name" json:"name"`
	Sex       string    `db:"sex" json:"sex,omitempty"`
	BirthDate string    `db:"birth_date" json:"birth_date,omitempty"`
	Anonymous bool      `db:"anonymous" json:"anonymous"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// NewDisplayID generates an 8-character uppercase hex identifier.
func NewDisplayID() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
