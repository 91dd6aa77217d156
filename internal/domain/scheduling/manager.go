package scheduling

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ehr/hospital/internal/platform/metrics"
)

// Errors returned by the Manager.
var (
	ErrSlotUnavailable     = errors.New("slot is not available")
	ErrInvalidAppointment  = errors.New("appointment not found or not booked")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrPatientNotFound     = errors.New("patient not found")
	ErrPersistence         = errors.New("persistence failure")
)

// FailureMode selects how the Manager reacts to Store errors.
type FailureMode string

const (
	// FailureModeLog logs and counts the failure, keeps the in-memory
	// state and reports the operation as successful.
	FailureModeLog FailureMode = "log"
	// FailureModeStrict returns ErrPersistence and undoes the mutation.
	FailureModeStrict FailureMode = "strict"
)

// ParseFailureMode validates a configured failure mode. An empty string
// selects FailureModeLog.
func ParseFailureMode(s string) (FailureMode, error) {
	switch FailureMode(s) {
	case "", FailureModeLog:
		return FailureModeLog, nil
	case FailureModeStrict:
		return FailureModeStrict, nil
	}
	return "", fmt.Errorf("invalid persistence failure mode %q (want %q or %q)", s, FailureModeLog, FailureModeStrict)
}

// Option configures a Manager.
type Option func(*Manager)

// WithFailureMode sets the persistence failure policy.
func WithFailureMode(mode FailureMode) Option {
	return func(m *Manager) { m.mode = mode }
}

// WithMetrics records operation outcomes on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(m *Manager) { m.metrics = c }
}

// Manager owns the patient, doctor and appointment lists for the lifetime
// of the process. Every successful mutation is written through to the Store
// by saving the whole affected list. A single mutex guards the lists and
// their persistence so that concurrent callers cannot double-book a slot.
type Manager struct {
	mu      sync.Mutex
	store   Store
	logger  zerolog.Logger
	mode    FailureMode
	metrics *metrics.Collector

	patients     []Patient
	doctors      []Doctor
	appointments []Appointment

	nextPatientID     int
	nextDoctorID      int
	nextAppointmentID int
}

// NewManager loads all collections from store, derives the id counters and
// seeds the default doctors when none exist.
func NewManager(ctx context.Context, store Store, logger zerolog.Logger, opts ...Option) (*Manager, error) {
	m := &Manager{
		store:  store,
		logger: logger.With().Str("component", "scheduling").Logger(),
		mode:   FailureModeLog,
	}
	for _, opt := range opts {
		opt(m)
	}

	var err error
	m.patients, err = store.LoadPatients(ctx)
	if err = m.loaded(KindPatients, err); err != nil {
		return nil, err
	}
	m.doctors, err = store.LoadDoctors(ctx)
	if err = m.loaded(KindDoctors, err); err != nil {
		return nil, err
	}
	m.appointments, err = store.LoadAppointments(ctx)
	if err = m.loaded(KindAppointments, err); err != nil {
		return nil, err
	}

	m.nextPatientID = 1
	for _, p := range m.patients {
		m.nextPatientID = max(m.nextPatientID, p.ID+1)
	}
	m.nextDoctorID = 1
	for _, d := range m.doctors {
		m.nextDoctorID = max(m.nextDoctorID, d.ID+1)
	}
	m.nextAppointmentID = 1
	for _, a := range m.appointments {
		m.nextAppointmentID = max(m.nextAppointmentID, a.ID+1)
	}

	if len(m.doctors) == 0 {
		for _, d := range defaultDoctors {
			d.ID = m.nextDoctorID
			m.nextDoctorID++
			m.doctors = append(m.doctors, d)
		}
		if err := m.save(ctx, KindDoctors); err != nil {
			return nil, err
		}
		m.logger.Info().Int("count", len(defaultDoctors)).Msg("seeded default doctors")
	}

	m.logger.Info().
		Int("patients", len(m.patients)).
		Int("doctors", len(m.doctors)).
		Int("appointments", len(m.appointments)).
		Msg("scheduling state loaded")
	return m, nil
}

// loaded applies the failure policy to a load error. In log mode whatever
// the store managed to decode is kept.
func (m *Manager) loaded(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	m.metrics.RecordPersistenceFailure(string(kind), "load")
	m.logger.Error().Err(err).Str("kind", string(kind)).Msg("failed to load records")
	if m.mode == FailureModeStrict {
		return fmt.Errorf("%w: load %s: %w", ErrPersistence, kind, err)
	}
	return nil
}

// save writes the whole list of kind. Callers hold m.mu.
func (m *Manager) save(ctx context.Context, kind Kind) error {
	var err error
	switch kind {
	case KindPatients:
		err = m.store.SavePatients(ctx, m.patients)
	case KindDoctors:
		err = m.store.SaveDoctors(ctx, m.doctors)
	case KindAppointments:
		err = m.store.SaveAppointments(ctx, m.appointments)
	}
	if err == nil {
		return nil
	}
	m.metrics.RecordPersistenceFailure(string(kind), "save")
	m.logger.Error().Err(err).Str("kind", string(kind)).Msg("failed to save records")
	if m.mode == FailureModeStrict {
		return fmt.Errorf("%w: save %s: %w", ErrPersistence, kind, err)
	}
	return nil
}

// -- Patients --

// RegisterPatient allocates the next patient id and persists the patient list.
func (m *Manager) RegisterPatient(ctx context.Context, name string, age int, phone string) (Patient, error) {
	if err := checkFields("name", name, "phone", phone); err != nil {
		return Patient{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p := Patient{ID: m.nextPatientID, Name: name, Age: age, Phone: phone}
	m.nextPatientID++
	m.patients = append(m.patients, p)
	if err := m.save(ctx, KindPatients); err != nil {
		m.patients = m.patients[:len(m.patients)-1]
		return Patient{}, err
	}
	m.metrics.RecordRegistration("patient")
	return p, nil
}

// ListPatients returns a copy of all patients in registration order.
func (m *Manager) ListPatients(_ context.Context) []Patient {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Patient, len(m.patients))
	copy(out, m.patients)
	return out
}

func (m *Manager) GetPatient(_ context.Context, id int) (Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.patients {
		if p.ID == id {
			return p, nil
		}
	}
	return Patient{}, ErrPatientNotFound
}

// -- Doctors --

// RegisterDoctor allocates the next doctor id and persists the doctor list.
func (m *Manager) RegisterDoctor(ctx context.Context, name, specialization string) (Doctor, error) {
	if err := checkFields("name", name, "specialization", specialization); err != nil {
		return Doctor{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	d := Doctor{ID: m.nextDoctorID, Name: name, Specialization: specialization}
	m.nextDoctorID++
	m.doctors = append(m.doctors, d)
	if err := m.save(ctx, KindDoctors); err != nil {
		m.doctors = m.doctors[:len(m.doctors)-1]
		return Doctor{}, err
	}
	m.metrics.RecordRegistration("doctor")
	return d, nil
}

// ListDoctors returns a copy of all doctors in registration order.
func (m *Manager) ListDoctors(_ context.Context) []Doctor {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Doctor, len(m.doctors))
	copy(out, m.doctors)
	return out
}

// -- Appointments --

// slotTaken reports whether a booked appointment holds sl. The appointment at
// index skip is ignored; pass -1 to check every appointment.
func (m *Manager) slotTaken(sl Slot, skip int) bool {
	for i, a := range m.appointments {
		if i != skip && a.Occupies(sl) {
			return true
		}
	}
	return false
}

// BookAppointment books the slot (doctorID, date, t) for patientID. It
// returns ErrSlotUnavailable without touching any state when the doctor
// already has a booked appointment at that date and time.
func (m *Manager) BookAppointment(ctx context.Context, patientID, doctorID int, date, t string) (Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := checkFields("date", date, "time", t); err != nil {
		return Appointment{}, err
	}

	sl := Slot{DoctorID: doctorID, Date: date, Time: t}
	if m.slotTaken(sl, -1) {
		m.metrics.RecordBooking("conflict")
		return Appointment{}, ErrSlotUnavailable
	}

	a := Appointment{
		ID:        m.nextAppointmentID,
		PatientID: patientID,
		DoctorID:  doctorID,
		Date:      date,
		Time:      t,
		Status:    StatusBooked,
	}
	m.nextAppointmentID++
	m.appointments = append(m.appointments, a)
	if err := m.save(ctx, KindAppointments); err != nil {
		m.appointments = m.appointments[:len(m.appointments)-1]
		m.metrics.RecordBooking("error")
		return Appointment{}, err
	}

	m.metrics.RecordBooking("booked")
	m.logger.Info().Int("appointment_id", a.ID).Int("doctor_id", doctorID).
		Str("date", date).Str("time", t).Msg("appointment booked")
	return a, nil
}

// indexOf returns the position of the last appointment with id, or -1.
func (m *Manager) indexOf(id int) int {
	idx := -1
	for i, a := range m.appointments {
		if a.ID == id {
			idx = i
		}
	}
	return idx
}

// CancelAppointment marks a booked appointment as cancelled. Unknown ids and
// appointments that are already cancelled both yield ErrInvalidAppointment.
func (m *Manager) CancelAppointment(ctx context.Context, id int) (Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(id)
	if i < 0 || m.appointments[i].Status != StatusBooked {
		m.metrics.RecordCancellation("invalid")
		return Appointment{}, ErrInvalidAppointment
	}

	m.appointments[i].Status = StatusCancelled
	if err := m.save(ctx, KindAppointments); err != nil {
		m.appointments[i].Status = StatusBooked
		m.metrics.RecordCancellation("error")
		return Appointment{}, err
	}

	m.metrics.RecordCancellation("cancelled")
	m.logger.Info().Int("appointment_id", id).Msg("appointment cancelled")
	return m.appointments[i], nil
}

// RescheduleAppointment moves a booked appointment to newDate/newTime with
// the same doctor. The appointment itself is ignored by the conflict check,
// so rescheduling into its current slot succeeds without a write.
func (m *Manager) RescheduleAppointment(ctx context.Context, id int, newDate, newTime string) (Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := checkFields("date", newDate, "time", newTime); err != nil {
		return Appointment{}, err
	}

	i := m.indexOf(id)
	if i < 0 || m.appointments[i].Status != StatusBooked {
		m.metrics.RecordReschedule("invalid")
		return Appointment{}, ErrInvalidAppointment
	}

	prev := m.appointments[i]
	target := Slot{DoctorID: prev.DoctorID, Date: newDate, Time: newTime}
	if prev.Slot() == target {
		m.metrics.RecordReschedule("unchanged")
		return prev, nil
	}
	if m.slotTaken(target, i) {
		m.metrics.RecordReschedule("conflict")
		return Appointment{}, ErrSlotUnavailable
	}

	m.appointments[i].Date = newDate
	m.appointments[i].Time = newTime
	if err := m.save(ctx, KindAppointments); err != nil {
		m.appointments[i] = prev
		m.metrics.RecordReschedule("error")
		return Appointment{}, err
	}

	m.metrics.RecordReschedule("rescheduled")
	m.logger.Info().Int("appointment_id", id).
		Str("from_date", prev.Date).Str("from_time", prev.Time).
		Str("date", newDate).Str("time", newTime).
		Msg("appointment rescheduled")
	return m.appointments[i], nil
}

func (m *Manager) GetAppointment(_ context.Context, id int) (Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexOf(id)
	if i < 0 {
		return Appointment{}, ErrAppointmentNotFound
	}
	return m.appointments[i], nil
}

// ListAppointments returns appointments in booking order, restricted to
// patientID when it is non-zero. Cancelled appointments are included.
func (m *Manager) ListAppointments(_ context.Context, patientID int) []Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Appointment{}
	for _, a := range m.appointments {
		if patientID == 0 || a.PatientID == patientID {
			out = append(out, a)
		}
	}
	return out
}

// DoctorDailySchedule returns the booked appointments of doctorID on date in
// booking order.
func (m *Manager) DoctorDailySchedule(_ context.Context, doctorID int, date string) []Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Appointment{}
	for _, a := range m.appointments {
		if a.DoctorID == doctorID && a.Date == date && a.Status == StatusBooked {
			out = append(out, a)
		}
	}
	return out
}
