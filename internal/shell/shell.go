// Package shell is the interactive front desk menu. It reads one answer per
// line and drives the scheduling Manager; every outcome is printed back.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ehr/hospital/internal/domain/scheduling"
)

const menu = `
===== HOSPITAL APPOINTMENT SYSTEM =====
1. Register Patient
2. List Doctors
3. Book Appointment
4. Cancel Appointment
5. Reschedule Appointment
6. Doctor's Daily Report
0. Exit
`

// errInput marks an answer that could not be parsed. The current action is
// abandoned and the menu is shown again.
var errInput = errors.New("invalid input")

type Shell struct {
	mgr    *scheduling.Manager
	in     *bufio.Scanner
	out    io.Writer
	logger zerolog.Logger
}

func New(mgr *scheduling.Manager, in io.Reader, out io.Writer, logger zerolog.Logger) *Shell {
	return &Shell{
		mgr:    mgr,
		in:     bufio.NewScanner(in),
		out:    out,
		logger: logger.With().Str("component", "shell").Logger(),
	}
}

// Run loops over the menu until the user picks 0 or input ends.
func (s *Shell) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprint(s.out, menu)
		choice, err := s.prompt("Enter choice: ")
		if err != nil {
			return s.eof(err)
		}

		switch strings.TrimSpace(choice) {
		case "1":
			err = s.registerPatient(ctx)
		case "2":
			s.listDoctors(ctx)
		case "3":
			err = s.book(ctx)
		case "4":
			err = s.cancel(ctx)
		case "5":
			err = s.reschedule(ctx)
		case "6":
			err = s.report(ctx)
		case "0":
			fmt.Fprintln(s.out, "Thank you!")
			return nil
		default:
			fmt.Fprintln(s.out, "Invalid choice!")
		}

		switch {
		case err == nil:
		case errors.Is(err, errInput), errors.Is(err, scheduling.ErrInvalidField):
			fmt.Fprintln(s.out, err)
		case errors.Is(err, scheduling.ErrPersistence):
			s.logger.Error().Err(err).Msg("action failed")
			fmt.Fprintf(s.out, "Error: %v\n", err)
		default:
			return s.eof(err)
		}
	}
}

// eof turns the end of input into a clean exit.
func (s *Shell) eof(err error) error {
	if errors.Is(err, io.EOF) {
		fmt.Fprintln(s.out)
		return nil
	}
	return err
}

func (s *Shell) prompt(label string) (string, error) {
	fmt.Fprint(s.out, label)
	if !s.in.Scan() {
		if err := s.in.Err(); err != nil {
			return "", fmt.Errorf("read input: %w", err)
		}
		return "", io.EOF
	}
	return strings.TrimRight(s.in.Text(), "\r"), nil
}

func (s *Shell) promptInt(label string) (int, error) {
	line, err := s.prompt(label)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", errInput, line)
	}
	return n, nil
}

func (s *Shell) registerPatient(ctx context.Context) error {
	name, err := s.prompt("Enter name: ")
	if err != nil {
		return err
	}
	age, err := s.promptInt("Enter age: ")
	if err != nil {
		return err
	}
	phone, err := s.prompt("Enter phone: ")
	if err != nil {
		return err
	}

	p, err := s.mgr.RegisterPatient(ctx, name, age, phone)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Patient Registered with ID: %d\n", p.ID)
	return nil
}

func (s *Shell) listDoctors(ctx context.Context) {
	fmt.Fprintln(s.out, "\nAvailable Doctors:")
	for _, d := range s.mgr.ListDoctors(ctx) {
		fmt.Fprintf(s.out, "%d. %s (%s)\n", d.ID, d.Name, d.Specialization)
	}
}

func (s *Shell) book(ctx context.Context) error {
	pid, err := s.promptInt("Enter Patient ID: ")
	if err != nil {
		return err
	}
	did, err := s.promptInt("Enter Doctor ID: ")
	if err != nil {
		return err
	}
	date, err := s.prompt("Enter Date (YYYY-MM-DD): ")
	if err != nil {
		return err
	}
	t, err := s.prompt("Enter Time (HH:MM): ")
	if err != nil {
		return err
	}

	a, err := s.mgr.BookAppointment(ctx, pid, did, date, t)
	if errors.Is(err, scheduling.ErrSlotUnavailable) {
		fmt.Fprintln(s.out, "Slot NOT available!")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Appointment Booked! ID: %d\n", a.ID)
	return nil
}

func (s *Shell) cancel(ctx context.Context) error {
	id, err := s.promptInt("Enter Appointment ID: ")
	if err != nil {
		return err
	}

	_, err = s.mgr.CancelAppointment(ctx, id)
	if errors.Is(err, scheduling.ErrInvalidAppointment) {
		fmt.Fprintln(s.out, "Invalid Appointment.")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, "Appointment Cancelled.")
	return nil
}

func (s *Shell) reschedule(ctx context.Context) error {
	id, err := s.promptInt("Enter Appointment ID: ")
	if err != nil {
		return err
	}
	date, err := s.prompt("Enter New Date (YYYY-MM-DD): ")
	if err != nil {
		return err
	}
	t, err := s.prompt("Enter New Time (HH:MM): ")
	if err != nil {
		return err
	}

	_, err = s.mgr.RescheduleAppointment(ctx, id, date, t)
	if errors.Is(err, scheduling.ErrInvalidAppointment) || errors.Is(err, scheduling.ErrSlotUnavailable) {
		fmt.Fprintln(s.out, "Reschedule Failed.")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, "Appointment Rescheduled.")
	return nil
}

func (s *Shell) report(ctx context.Context) error {
	did, err := s.promptInt("Enter Doctor ID: ")
	if err != nil {
		return err
	}
	date, err := s.prompt("Enter Date (YYYY-MM-DD): ")
	if err != nil {
		return err
	}
	WriteSchedule(s.out, did, date, s.mgr.DoctorDailySchedule(ctx, did, date))
	return nil
}

// WriteSchedule prints a doctor's booked appointments for one date.
func WriteSchedule(w io.Writer, doctorID int, date string, appts []scheduling.Appointment) {
	fmt.Fprintf(w, "\nSchedule for Doctor ID %d on %s:\n", doctorID, date)
	if len(appts) == 0 {
		fmt.Fprintln(w, "No Appointments.")
		return
	}
	for _, a := range appts {
		fmt.Fprintf(w, "Appt ID: %d, Patient ID: %d, Time: %s\n", a.ID, a.PatientID, a.Time)
	}
}
