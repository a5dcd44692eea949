package prescription

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rxapi/rxapi/internal/platform/db"
)

// -- Patient --

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewPatientRepoPG(pool *pgxpool.Pool) PatientRepository {
	return &patientRepoPG{pool: pool}
}

const patientCols = `id, first_name, last_name, birthdate`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	if err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Birthdate); err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *patientRepoPG) FindByIdentity(ctx context.Context, firstName, lastName string, birthdate time.Time) (*Patient, error) {
	return scanPatient(db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+patientCols+` FROM patient
		WHERE first_name = $1 AND last_name = $2 AND birthdate = $3::date`,
		firstName, lastName, DateOf(birthdate).Time))
}

func (r *patientRepoPG) InsertIfAbsent(ctx context.Context, p *Patient) (bool, error) {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO patient (first_name, last_name, birthdate)
		VALUES ($1, $2, $3::date)
		ON CONFLICT ON CONSTRAINT patient_identity_key DO NOTHING
		RETURNING id`,
		p.FirstName, p.LastName, DateOf(p.Birthdate).Time).Scan(&p.ID)
	if db.IsNoRows(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert patient: %w", err)
	}
	return true, nil
}

func (r *patientRepoPG) GetByID(ctx context.Context, id int64) (*Patient, error) {
	return scanPatient(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
}

// -- Doctor --

type doctorRepoPG struct{ pool *pgxpool.Pool }

func NewDoctorRepoPG(pool *pgxpool.Pool) DoctorRepository {
	return &doctorRepoPG{pool: pool}
}

func (r *doctorRepoPG) Exists(ctx context.Context, id int64) (bool, error) {
	var ok bool
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM doctor WHERE id = $1)`, id).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check doctor %d: %w", id, err)
	}
	return ok, nil
}

func (r *doctorRepoPG) EnsureByEmail(ctx context.Context, d *Doctor) (bool, error) {
	q := db.Conn(ctx, r.pool)
	err := q.QueryRow(ctx, `
		INSERT INTO doctor (first_name, last_name, email)
		SELECT $1::varchar, $2::varchar, $3::varchar
		WHERE NOT EXISTS (SELECT 1 FROM doctor WHERE email = $3)
		RETURNING id`,
		d.FirstName, d.LastName, d.Email).Scan(&d.ID)
	if err == nil {
		return true, nil
	}
	if !db.IsNoRows(err) {
		return false, fmt.Errorf("insert doctor: %w", err)
	}
	if err := q.QueryRow(ctx, `SELECT id FROM doctor WHERE email = $1 ORDER BY id LIMIT 1`, d.Email).Scan(&d.ID); err != nil {
		return false, fmt.Errorf("look up doctor %s: %w", d.Email, err)
	}
	return false, nil
}

// -- Medicament --

type medicamentRepoPG struct{ pool *pgxpool.Pool }

func NewMedicamentRepoPG(pool *pgxpool.Pool) MedicamentRepository {
	return &medicamentRepoPG{pool: pool}
}

func (r *medicamentRepoPG) ExistingIDs(ctx context.Context, ids []int64) ([]int64, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT id FROM medicament WHERE id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return nil, fmt.Errorf("look up medicaments: %w", err)
	}
	found, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("scan medicament ids: %w", err)
	}
	return found, nil
}

func (r *medicamentRepoPG) EnsureByName(ctx context.Context, m *Medicament) (bool, error) {
	q := db.Conn(ctx, r.pool)
	err := q.QueryRow(ctx, `
		INSERT INTO medicament (name, description, type)
		SELECT $1::varchar, $2::varchar, $3::varchar
		WHERE NOT EXISTS (SELECT 1 FROM medicament WHERE name = $1)
		RETURNING id`,
		m.Name, m.Description, m.Type).Scan(&m.ID)
	if err == nil {
		return true, nil
	}
	if !db.IsNoRows(err) {
		return false, fmt.Errorf("insert medicament: %w", err)
	}
	if err := q.QueryRow(ctx, `SELECT id FROM medicament WHERE name = $1 ORDER BY id LIMIT 1`, m.Name).Scan(&m.ID); err != nil {
		return false, fmt.Errorf("look up medicament %s: %w", m.Name, err)
	}
	return false, nil
}

// -- Prescription --

type prescriptionRepoPG struct{ pool *pgxpool.Pool }

func NewPrescriptionRepoPG(pool *pgxpool.Pool) PrescriptionRepository {
	return &prescriptionRepoPG{pool: pool}
}

func (r *prescriptionRepoPG) Create(ctx context.Context, p *Prescription) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO prescription (date, due_date, patient_id, doctor_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		p.Date, p.DueDate, p.PatientID, p.DoctorID).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("insert prescription: %w", err)
	}
	return nil
}

func (r *prescriptionRepoPG) AddMedicament(ctx context.Context, pm *PrescriptionMedicament) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO prescription_medicament (medicament_id, prescription_id, dose, details)
		VALUES ($1, $2, $3, $4)`,
		pm.MedicamentID, pm.PrescriptionID, pm.Dose, pm.Details)
	if err != nil {
		return fmt.Errorf("insert prescription line %d: %w", pm.MedicamentID, err)
	}
	return nil
}

const detailCols = `p.id, p.patient_id, p.date, p.due_date, d.id, d.first_name, d.last_name`

func scanDetail(row pgx.Row) (PrescriptionDetail, error) {
	var pd PrescriptionDetail
	err := row.Scan(&pd.IDPrescription, &pd.IDPatient, &pd.Date, &pd.DueDate,
		&pd.Doctor.IDDoctor, &pd.Doctor.FirstName, &pd.Doctor.LastName)
	return pd, err
}

func (r *prescriptionRepoPG) ListByPatient(ctx context.Context, patientID int64) ([]PrescriptionDetail, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+detailCols+`
		FROM prescription p
		JOIN doctor d ON d.id = p.doctor_id
		WHERE p.patient_id = $1
		ORDER BY p.due_date ASC, p.id ASC`, patientID)
	if err != nil {
		return nil, fmt.Errorf("list prescriptions: %w", err)
	}
	defer rows.Close()

	items := []PrescriptionDetail{}
	for rows.Next() {
		pd, err := scanDetail(rows)
		if err != nil {
			return nil, fmt.Errorf("scan prescription: %w", err)
		}
		items = append(items, pd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list prescriptions: %w", err)
	}
	return items, nil
}

func (r *prescriptionRepoPG) GetDetail(ctx context.Context, id int64) (*PrescriptionDetail, error) {
	pd, err := scanDetail(db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+detailCols+`
		FROM prescription p
		JOIN doctor d ON d.id = p.doctor_id
		WHERE p.id = $1`, id))
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get prescription %d: %w", id, err)
	}
	return &pd, nil
}

func (r *prescriptionRepoPG) ListMedicaments(ctx context.Context, prescriptionIDs []int64) (map[int64][]MedicamentDetail, error) {
	out := make(map[int64][]MedicamentDetail, len(prescriptionIDs))
	if len(prescriptionIDs) == 0 {
		return out, nil
	}

	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT pm.prescription_id, m.id, m.name, m.description, pm.dose, pm.details
		FROM prescription_medicament pm
		JOIN medicament m ON m.id = pm.medicament_id
		WHERE pm.prescription_id = ANY($1)
		ORDER BY pm.prescription_id, m.id`, prescriptionIDs)
	if err != nil {
		return nil, fmt.Errorf("list prescription lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var prescriptionID int64
		var md MedicamentDetail
		if err := rows.Scan(&prescriptionID, &md.IDMedicament, &md.Name, &md.Description, &md.Dose, &md.Details); err != nil {
			return nil, fmt.Errorf("scan prescription line: %w", err)
		}
		out[prescriptionID] = append(out[prescriptionID], md)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list prescription lines: %w", err)
	}
	return out, nil
}
