package scheduling

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// =========== Postgres Store ===========

// Each table carries a position column so that a reload returns records in
// the order they were saved.
type pgStore struct{ pool *pgxpool.Pool }

func NewStorePG(pool *pgxpool.Pool) Store { return &pgStore{pool: pool} }

func (s *pgStore) LoadPatients(ctx context.Context) ([]Patient, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, age, phone FROM patient ORDER BY position`)
	if err != nil {
		return []Patient{}, fmt.Errorf("query patients: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Patient, error) {
		var p Patient
		err := row.Scan(&p.ID, &p.Name, &p.Age, &p.Phone)
		return p, err
	})
	if err != nil {
		return []Patient{}, fmt.Errorf("scan patients: %w", err)
	}
	return out, nil
}

func (s *pgStore) SavePatients(ctx context.Context, patients []Patient) error {
	return s.replace(ctx, "patient", []string{"position", "id", "name", "age", "phone"}, len(patients),
		func(i int) []any {
			p := patients[i]
			return []any{i, p.ID, p.Name, p.Age, p.Phone}
		})
}

func (s *pgStore) LoadDoctors(ctx context.Context) ([]Doctor, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, specialization FROM doctor ORDER BY position`)
	if err != nil {
		return []Doctor{}, fmt.Errorf("query doctors: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Doctor, error) {
		var d Doctor
		err := row.Scan(&d.ID, &d.Name, &d.Specialization)
		return d, err
	})
	if err != nil {
		return []Doctor{}, fmt.Errorf("scan doctors: %w", err)
	}
	return out, nil
}

func (s *pgStore) SaveDoctors(ctx context.Context, doctors []Doctor) error {
	return s.replace(ctx, "doctor", []string{"position", "id", "name", "specialization"}, len(doctors),
		func(i int) []any {
			d := doctors[i]
			return []any{i, d.ID, d.Name, d.Specialization}
		})
}

func (s *pgStore) LoadAppointments(ctx context.Context) ([]Appointment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, patient_id, doctor_id, appt_date, appt_time, status
		FROM appointment ORDER BY position`)
	if err != nil {
		return []Appointment{}, fmt.Errorf("query appointments: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Appointment, error) {
		var a Appointment
		var status string
		if err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.Date, &a.Time, &status); err != nil {
			return a, err
		}
		st, perr := ParseStatus(status)
		a.Status = st
		return a, perr
	})
	if err != nil {
		return []Appointment{}, fmt.Errorf("scan appointments: %w", err)
	}
	return out, nil
}

func (s *pgStore) SaveAppointments(ctx context.Context, appts []Appointment) error {
	cols := []string{"position", "id", "patient_id", "doctor_id", "appt_date", "appt_time", "status"}
	return s.replace(ctx, "appointment", cols, len(appts), func(i int) []any {
		a := appts[i]
		return []any{i, a.ID, a.PatientID, a.DoctorID, a.Date, a.Time, string(a.Status)}
	})
}

// replace swaps the full contents of table in a single transaction.
func (s *pgStore) replace(ctx context.Context, table string, cols []string, n int, row func(int) []any) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
		if n == 0 {
			return nil
		}
		_, err := tx.CopyFrom(ctx, pgx.Identifier{table}, cols,
			pgx.CopyFromSlice(n, func(i int) ([]any, error) { return row(i), nil }))
		if err != nil {
			return fmt.Errorf("copy into %s: %w", table, err)
		}
		return nil
	})
}
