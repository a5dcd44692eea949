package prescription

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rxapi/rxapi/internal/platform/db"
)

type Service struct {
	patients      PatientRepository
	doctors       DoctorRepository
	medicaments   MedicamentRepository
	prescriptions PrescriptionRepository
	tx            db.Transactor
}

func NewService(patients PatientRepository, doctors DoctorRepository, medicaments MedicamentRepository,
	prescriptions PrescriptionRepository, tx db.Transactor) *Service {
	return &Service{
		patients:      patients,
		doctors:       doctors,
		medicaments:   medicaments,
		prescriptions: prescriptions,
		tx:            tx,
	}
}

// checkRequest applies the rules that need no database access.
func checkRequest(req *CreatePrescriptionRequest) error {
	if req.Date.IsZero() {
		return validationf("date is required")
	}
	if req.DueDate.IsZero() {
		return validationf("due date is required")
	}
	if req.Patient.Birthdate.IsZero() {
		return validationf("patient birthdate is required")
	}
	if req.DueDate.Before(req.Date.Time) {
		return validationf("due date must be on or after the issue date")
	}

	switch n := len(req.Medicaments); {
	case n < MinMedicaments:
		return validationf("a prescription must include at least %d medication", MinMedicaments)
	case n > MaxMedicaments:
		return validationf("a prescription can include a maximum of %d medications", MaxMedicaments)
	}

	seen := make(map[int64]bool, len(req.Medicaments))
	var dups []int64
	for _, m := range req.Medicaments {
		if m.Dose <= 0 {
			return validationf("dose for medication %d must be positive", m.IDMedicament)
		}
		if seen[m.IDMedicament] && !containsID(dups, m.IDMedicament) {
			dups = append(dups, m.IDMedicament)
		}
		seen[m.IDMedicament] = true
	}
	if len(dups) > 0 {
		sortIDs(dups)
		return validationf("medications with IDs %s are listed more than once", formatIDs(dups))
	}
	return nil
}

// CreatePrescription validates req and stores the prescription with all of
// its lines atomically, creating the patient on first sight. It returns the
// new prescription id.
func (s *Service) CreatePrescription(ctx context.Context, req *CreatePrescriptionRequest) (int64, error) {
	if err := checkRequest(req); err != nil {
		return 0, err
	}

	ids := make([]int64, len(req.Medicaments))
	for i, m := range req.Medicaments {
		ids[i] = m.IDMedicament
	}

	var prescriptionID int64
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		existing, err := s.medicaments.ExistingIDs(ctx, ids)
		if err != nil {
			return err
		}
		if missing := missingIDs(ids, existing); len(missing) > 0 {
			return validationf("medications with IDs %s do not exist", formatIDs(missing))
		}

		patient, err := s.findOrCreatePatient(ctx, req.Patient)
		if err != nil {
			return err
		}

		ok, err := s.doctors.Exists(ctx, req.Doctor.IDDoctor)
		if err != nil {
			return err
		}
		if !ok {
			return validationf("doctor with ID %d does not exist", req.Doctor.IDDoctor)
		}

		p := &Prescription{
			Date:      req.Date.Time,
			DueDate:   req.DueDate.Time,
			PatientID: patient.ID,
			DoctorID:  req.Doctor.IDDoctor,
		}
		if err := s.prescriptions.Create(ctx, p); err != nil {
			return err
		}

		for _, m := range req.Medicaments {
			line := &PrescriptionMedicament{
				MedicamentID:   m.IDMedicament,
				PrescriptionID: p.ID,
				Dose:           m.Dose,
				Details:        m.Details,
			}
			if err := s.prescriptions.AddMedicament(ctx, line); err != nil {
				return err
			}
		}

		prescriptionID = p.ID
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrValidation) {
			return 0, err
		}
		return 0, fmt.Errorf("create prescription: %w", err)
	}
	return prescriptionID, nil
}

// findOrCreatePatient resolves the patient by identity. A concurrent insert
// of the same identity makes InsertIfAbsent report false, and the row that
// won is reused.
func (s *Service) findOrCreatePatient(ctx context.Context, in PatientInput) (*Patient, error) {
	p, err := s.patients.FindByIdentity(ctx, in.FirstName, in.LastName, in.Birthdate.Time)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("find patient: %w", err)
	}

	p = &Patient{
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Birthdate: in.Birthdate.Time,
	}
	inserted, err := s.patients.InsertIfAbsent(ctx, p)
	if err != nil {
		return nil, err
	}
	if inserted {
		return p, nil
	}

	p, err = s.patients.FindByIdentity(ctx, in.FirstName, in.LastName, in.Birthdate.Time)
	if err != nil {
		return nil, fmt.Errorf("re-read patient after conflict: %w", err)
	}
	return p, nil
}

// GetPatientDetails returns the patient with every prescription ordered by
// due date, read from a single snapshot.
func (s *Service) GetPatientDetails(ctx context.Context, patientID int64) (*PatientDetail, error) {
	var out *PatientDetail
	err := s.tx.InReadOnlyTx(ctx, func(ctx context.Context) error {
		p, err := s.patients.GetByID(ctx, patientID)
		if errors.Is(err, ErrNotFound) {
			return ErrPatientNotFound
		}
		if err != nil {
			return fmt.Errorf("get patient: %w", err)
		}

		items, err := s.prescriptions.ListByPatient(ctx, patientID)
		if err != nil {
			return err
		}
		if err := s.attachMedicaments(ctx, items); err != nil {
			return err
		}
		for i := range items {
			items[i].IDPatient = 0
		}

		out = &PatientDetail{
			IDPatient:     p.ID,
			FirstName:     p.FirstName,
			LastName:      p.LastName,
			Birthdate:     DateOf(p.Birthdate),
			Prescriptions: items,
		}
		if out.Prescriptions == nil {
			out.Prescriptions = []PrescriptionDetail{}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("get patient details %d: %w", patientID, err)
	}
	return out, nil
}

// GetPrescription returns one prescription with its doctor and lines.
func (s *Service) GetPrescription(ctx context.Context, id int64) (*PrescriptionDetail, error) {
	var out *PrescriptionDetail
	err := s.tx.InReadOnlyTx(ctx, func(ctx context.Context) error {
		pd, err := s.prescriptions.GetDetail(ctx, id)
		if errors.Is(err, ErrNotFound) {
			return ErrPrescriptionNotFound
		}
		if err != nil {
			return err
		}
		items := []PrescriptionDetail{*pd}
		if err := s.attachMedicaments(ctx, items); err != nil {
			return err
		}
		out = &items[0]
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrPrescriptionNotFound) {
			return nil, ErrPrescriptionNotFound
		}
		return nil, fmt.Errorf("get prescription %d: %w", id, err)
	}
	return out, nil
}

func (s *Service) attachMedicaments(ctx context.Context, items []PrescriptionDetail) error {
	ids := make([]int64, len(items))
	for i := range items {
		ids[i] = items[i].IDPrescription
	}
	lines, err := s.prescriptions.ListMedicaments(ctx, ids)
	if err != nil {
		return err
	}
	for i := range items {
		meds := lines[items[i].IDPrescription]
		if meds == nil {
			meds = []MedicamentDetail{}
		}
		items[i].Medicaments = meds
	}
	return nil
}

// missingIDs returns requested ids absent from existing, ascending.
func missingIDs(requested, existing []int64) []int64 {
	have := make(map[int64]bool, len(existing))
	for _, id := range existing {
		have[id] = true
	}
	var missing []int64
	for _, id := range requested {
		if !have[id] && !containsID(missing, id) {
			missing = append(missing, id)
		}
	}
	sortIDs(missing)
	return missing
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func sortIDs(ids []int64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
