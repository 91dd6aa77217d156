package scheduling

import "context"

// Kind names a persisted record collection.
type Kind string

const (
	KindPatients     Kind = "patients"
	KindDoctors      Kind = "doctors"
	KindAppointments Kind = "appointments"
)

// Store loads and saves whole record collections. Implementations keep no
// state between calls: a Save fully replaces what was persisted for that
// kind, and loading a collection that was never saved yields an empty slice.
type Store interface {
	LoadPatients(ctx context.Context) ([]Patient, error)
	SavePatients(ctx context.Context, patients []Patient) error
	LoadDoctors(ctx context.Context) ([]Doctor, error)
	SaveDoctors(ctx context.Context, doctors []Doctor) error
	LoadAppointments(ctx context.Context) ([]Appointment, error)
	SaveAppointments(ctx context.Context, appts []Appointment) error
}
