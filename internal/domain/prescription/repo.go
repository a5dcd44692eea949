package prescription

import (
	"context"
	"time"
)

type PatientRepository interface {
	// FindByIdentity matches first name, last name and calendar birthdate
	// exactly. Returns ErrNotFound when no patient matches.
	FindByIdentity(ctx context.Context, firstName, lastName string, birthdate time.Time) (*Patient, error)
	// InsertIfAbsent inserts p and sets p.ID, or reports false when another
	// transaction already holds the same identity.
	InsertIfAbsent(ctx context.Context, p *Patient) (bool, error)
	GetByID(ctx context.Context, id int64) (*Patient, error)
}

type DoctorRepository interface {
	Exists(ctx context.Context, id int64) (bool, error)
	// EnsureByEmail inserts d unless a doctor with the same email exists and
	// sets d.ID either way.
	EnsureByEmail(ctx context.Context, d *Doctor) (created bool, err error)
}

type MedicamentRepository interface {
	// ExistingIDs returns the subset of ids present in the catalogue.
	ExistingIDs(ctx context.Context, ids []int64) ([]int64, error)
	// EnsureByName inserts m unless a medicament with the same name exists
	// and sets m.ID either way.
	EnsureByName(ctx context.Context, m *Medicament) (created bool, err error)
}

type PrescriptionRepository interface {
	Create(ctx context.Context, p *Prescription) error
	AddMedicament(ctx context.Context, pm *PrescriptionMedicament) error
	// ListByPatient returns the patient's prescriptions with their doctor,
	// ordered by due date then id. Medicaments are not populated.
	ListByPatient(ctx context.Context, patientID int64) ([]PrescriptionDetail, error)
	// GetDetail returns one prescription with its doctor. Medicaments are not
	// populated.
	GetDetail(ctx context.Context, id int64) (*PrescriptionDetail, error)
	// ListMedicaments groups the medication lines of the given prescriptions
	// by prescription id, each group ordered by medicament id.
	ListMedicaments(ctx context.Context, prescriptionIDs []int64) (map[int64][]MedicamentDetail, error)
}
