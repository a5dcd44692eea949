package prescription

import (
	"context"
	"fmt"

	"github.com/rxapi/rxapi/internal/platform/db"
)

// ReferenceData is the catalogue a fresh database needs before prescriptions
// can be written.
type ReferenceData struct {
	Doctors     []Doctor
	Medicaments []Medicament
}

func DefaultReferenceData() ReferenceData {
	return ReferenceData{
		Doctors: []Doctor{
			{FirstName: "Anna", LastName: "Kowalska", Email: "anna.kowalska@clinic.example"},
			{FirstName: "Jan", LastName: "Nowak", Email: "jan.nowak@clinic.example"},
			{FirstName: "Maria", LastName: "Wisniewska", Email: "maria.wisniewska@clinic.example"},
		},
		Medicaments: []Medicament{
			{Name: "Paracetamol", Description: "Analgesic and antipyretic", Type: "Tablet"},
			{Name: "Ibuprofen", Description: "Non-steroidal anti-inflammatory", Type: "Tablet"},
			{Name: "Amoxicillin", Description: "Penicillin antibiotic", Type: "Capsule"},
			{Name: "Salbutamol", Description: "Short-acting bronchodilator", Type: "Inhaler"},
			{Name: "Omeprazole", Description: "Proton pump inhibitor", Type: "Capsule"},
		},
	}
}

type SeedResult struct {
	DoctorsCreated     int
	MedicamentsCreated int
}

// Seed inserts the reference rows that are not present yet. Running it twice
// creates nothing the second time.
func Seed(ctx context.Context, tx db.Transactor, doctors DoctorRepository, medicaments MedicamentRepository, data ReferenceData) (SeedResult, error) {
	var res SeedResult
	err := tx.InTx(ctx, func(ctx context.Context) error {
		res = SeedResult{}
		for i := range data.Doctors {
			d := data.Doctors[i]
			created, err := doctors.EnsureByEmail(ctx, &d)
			if err != nil {
				return err
			}
			if created {
				res.DoctorsCreated++
			}
		}
		for i := range data.Medicaments {
			m := data.Medicaments[i]
			created, err := medicaments.EnsureByName(ctx, &m)
			if err != nil {
				return err
			}
			if created {
				res.MedicamentsCreated++
			}
		}
		return nil
	})
	if err != nil {
		return SeedResult{}, fmt.Errorf("seed reference data: %w", err)
	}
	return res, nil
}
