package prescription

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	MinMedicaments = 1
	MaxMedicaments = 10
)

var (
	// ErrValidation matches every *ValidationError via errors.Is.
	ErrValidation = errors.New("validation failed")

	ErrPatientNotFound      = errors.New("patient not found")
	ErrPrescriptionNotFound = errors.New("prescription not found")

	// ErrNotFound is returned by repositories when no row matches.
	ErrNotFound = errors.New("not found")
)

// ValidationError is a business rule violation. Msg is safe to show to
// clients.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func validationf(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// formatIDs renders ids as "[3, 7]".
func formatIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// -- Entities --

type Patient struct {
	ID        int64
	FirstName string
	LastName  string
	Birthdate time.Time
}

type Doctor struct {
	ID        int64
	FirstName string
	LastName  string
	Email     string
}

type Medicament struct {
	ID          int64
	Name        string
	Description string
	Type        string
}

type Prescription struct {
	ID        int64
	Date      time.Time
	DueDate   time.Time
	PatientID int64
	DoctorID  int64
}

type PrescriptionMedicament struct {
	MedicamentID   int64
	PrescriptionID int64
	Dose           int
	Details        string
}

// -- Requests --

type PatientInput struct {
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" validate:"required,max=100"`
	Birthdate Date   `json:"birthdate"`
}

// DoctorInput identifies the prescribing doctor. Only IDDoctor is used; the
// remaining fields are accepted for client convenience.
type DoctorInput struct {
	IDDoctor  int64  `json:"idDoctor" validate:"required,gt=0"`
	FirstName string `json:"firstName" validate:"max=100"`
	LastName  string `json:"lastName" validate:"max=100"`
	Email     string `json:"email" validate:"max=100"`
}

type MedicamentLine struct {
	IDMedicament int64  `json:"idMedicament" validate:"required,gt=0"`
	Dose         int    `json:"dose" validate:"required,gt=0"`
	Details      string `json:"details" validate:"max=100"`
}

type CreatePrescriptionRequest struct {
	Patient     PatientInput     `json:"patient"`
	Doctor      DoctorInput      `json:"doctor"`
	Date        Timestamp        `json:"date"`
	DueDate     Timestamp        `json:"dueDate"`
	Medicaments []MedicamentLine `json:"medicaments" validate:"required,min=1,max=10,dive"`
}

type CreatedResponse struct {
	ID int64 `json:"id"`
}

// -- Projections --

type PatientDetail struct {
	IDPatient     int64                `json:"idPatient"`
	FirstName     string               `json:"firstName"`
	LastName      string               `json:"lastName"`
	Birthdate     Date                 `json:"birthdate"`
	Prescriptions []PrescriptionDetail `json:"prescriptions"`
}

type PrescriptionDetail struct {
	IDPrescription int64              `json:"idPrescription"`
	IDPatient      int64              `json:"idPatient,omitempty"`
	Date           time.Time          `json:"date"`
	DueDate        time.Time          `json:"dueDate"`
	Doctor         DoctorDetail       `json:"doctor"`
	Medicaments    []MedicamentDetail `json:"medicaments"`
}

type DoctorDetail struct {
	IDDoctor  int64  `json:"idDoctor"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type MedicamentDetail struct {
	IDMedicament int64  `json:"idMedicament"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Dose         int    `json:"dose"`
	Details      string `json:"details"`
}
