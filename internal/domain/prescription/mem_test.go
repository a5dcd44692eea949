package prescription

import (
	"context"
	"sort"
	"sync"
	"time"
)

type txKey struct{}

type memState struct {
	patients      map[int64]Patient
	doctors       map[int64]Doctor
	medicaments   map[int64]Medicament
	prescriptions map[int64]Prescription
	lines         []PrescriptionMedicament
	nextID        int64
}

func (s memState) clone() memState {
	out := memState{
		patients:      make(map[int64]Patient, len(s.patients)),
		doctors:       make(map[int64]Doctor, len(s.doctors)),
		medicaments:   make(map[int64]Medicament, len(s.medicaments)),
		prescriptions: make(map[int64]Prescription, len(s.prescriptions)),
		lines:         append([]PrescriptionMedicament(nil), s.lines...),
		nextID:        s.nextID,
	}
	for k, v := range s.patients {
		out.patients[k] = v
	}
	for k, v := range s.doctors {
		out.doctors[k] = v
	}
	for k, v := range s.medicaments {
		out.medicaments[k] = v
	}
	for k, v := range s.prescriptions {
		out.prescriptions[k] = v
	}
	return out
}

type memDB struct {
	mu    sync.Mutex
	state memState

	txMu      sync.Mutex
	txCount   int
	readOnly  int
	failLine  error
	onPatient func()
}

func newMemDB() *memDB {
	return &memDB{state: memState{}.clone()}
}

func (m *memDB) nextID() int64 {
	m.state.nextID++
	return m.state.nextID
}

func (m *memDB) addDoctor(first, last string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID()
	m.state.doctors[id] = Doctor{ID: id, FirstName: first, LastName: last, Email: first + "@clinic.example"}
	return id
}

func (m *memDB) addMedicament(name string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID()
	m.state.medicaments[id] = Medicament{ID: id, Name: name, Description: name + " description"}
	return id
}

func (m *memDB) counts() (patients, prescriptions, lines int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.patients), len(m.state.prescriptions), len(m.state.lines)
}

// InTx serializes transactions and restores the pre-transaction state when
// fn fails.
func (m *memDB) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	m.txMu.Lock()
	defer m.txMu.Unlock()
	m.txCount++

	m.mu.Lock()
	saved := m.state.clone()
	m.mu.Unlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		m.mu.Lock()
		m.state = saved
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memDB) InReadOnlyTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	m.readOnly++
	m.mu.Unlock()
	return m.InTx(ctx, fn)
}

// -- repositories --

type memPatients struct{ db *memDB }

func (r memPatients) FindByIdentity(_ context.Context, first, last string, birthdate time.Time) (*Patient, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	want := DateOf(birthdate)
	for _, p := range r.db.state.patients {
		if p.FirstName == first && p.LastName == last && DateOf(p.Birthdate).Equal(want.Time) {
			cp := p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (r memPatients) InsertIfAbsent(_ context.Context, p *Patient) (bool, error) {
	if hook := r.db.onPatient; hook != nil {
		r.db.onPatient = nil
		hook()
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	want := DateOf(p.Birthdate)
	for _, existing := range r.db.state.patients {
		if existing.FirstName == p.FirstName && existing.LastName == p.LastName && DateOf(existing.Birthdate).Equal(want.Time) {
			return false, nil
		}
	}
	p.ID = r.db.nextID()
	stored := *p
	stored.Birthdate = want.Time
	r.db.state.patients[p.ID] = stored
	return true, nil
}

func (r memPatients) GetByID(_ context.Context, id int64) (*Patient, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.state.patients[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

type memDoctors struct{ db *memDB }

func (r memDoctors) Exists(_ context.Context, id int64) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	_, ok := r.db.state.doctors[id]
	return ok, nil
}

func (r memDoctors) EnsureByEmail(_ context.Context, d *Doctor) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for id, existing := range r.db.state.doctors {
		if existing.Email == d.Email {
			d.ID = id
			return false, nil
		}
	}
	d.ID = r.db.nextID()
	r.db.state.doctors[d.ID] = *d
	return true, nil
}

type memMedicaments struct{ db *memDB }

func (r memMedicaments) ExistingIDs(_ context.Context, ids []int64) ([]int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []int64
	for _, id := range ids {
		if _, ok := r.db.state.medicaments[id]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func (r memMedicaments) EnsureByName(_ context.Context, m *Medicament) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for id, existing := range r.db.state.medicaments {
		if existing.Name == m.Name {
			m.ID = id
			return false, nil
		}
	}
	m.ID = r.db.nextID()
	r.db.state.medicaments[m.ID] = *m
	return true, nil
}

type memPrescriptions struct{ db *memDB }

func (r memPrescriptions) Create(_ context.Context, p *Prescription) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p.ID = r.db.nextID()
	r.db.state.prescriptions[p.ID] = *p
	return nil
}

func (r memPrescriptions) AddMedicament(_ context.Context, pm *PrescriptionMedicament) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.failLine != nil {
		return r.db.failLine
	}
	r.db.state.lines = append(r.db.state.lines, *pm)
	return nil
}

func (r memPrescriptions) detail(p Prescription) PrescriptionDetail {
	d := r.db.state.doctors[p.DoctorID]
	return PrescriptionDetail{
		IDPrescription: p.ID,
		IDPatient:      p.PatientID,
		Date:           p.Date,
		DueDate:        p.DueDate,
		Doctor:         DoctorDetail{IDDoctor: d.ID, FirstName: d.FirstName, LastName: d.LastName},
	}
}

func (r memPrescriptions) ListByPatient(_ context.Context, patientID int64) ([]PrescriptionDetail, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	items := []PrescriptionDetail{}
	for _, p := range r.db.state.prescriptions {
		if p.PatientID == patientID {
			items = append(items, r.detail(p))
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].DueDate.Equal(items[j].DueDate) {
			return items[i].DueDate.Before(items[j].DueDate)
		}
		return items[i].IDPrescription < items[j].IDPrescription
	})
	return items, nil
}

func (r memPrescriptions) GetDetail(_ context.Context, id int64) (*PrescriptionDetail, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.state.prescriptions[id]
	if !ok {
		return nil, ErrNotFound
	}
	pd := r.detail(p)
	return &pd, nil
}

func (r memPrescriptions) ListMedicaments(_ context.Context, ids []int64) (map[int64][]MedicamentDetail, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := make(map[int64][]MedicamentDetail)
	for _, l := range r.db.state.lines {
		if !want[l.PrescriptionID] {
			continue
		}
		m := r.db.state.medicaments[l.MedicamentID]
		out[l.PrescriptionID] = append(out[l.PrescriptionID], MedicamentDetail{
			IDMedicament: m.ID,
			Name:         m.Name,
			Description:  m.Description,
			Dose:         l.Dose,
			Details:      l.Details,
		})
	}
	for _, lines := range out {
		sort.Slice(lines, func(i, j int) bool { return lines[i].IDMedicament < lines[j].IDMedicament })
	}
	return out, nil
}

func newTestService() (*Service, *memDB) {
	mdb := newMemDB()
	svc := NewService(memPatients{mdb}, memDoctors{mdb}, memMedicaments{mdb}, memPrescriptions{mdb}, mdb)
	return svc, mdb
}
