package scheduling

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// fieldSep separates fields in the flat record encoding. Values are not
// escaped, so text fields must not contain it or a line break.
const fieldSep = ","

// ErrInvalidField is returned for text values the record encoding cannot hold.
var ErrInvalidField = errors.New("invalid field")

// CheckField rejects values containing the field separator or a line break.
func CheckField(name, value string) error {
	if strings.ContainsAny(value, fieldSep+"\r\n") {
		return fmt.Errorf("%w: %s must not contain commas or line breaks", ErrInvalidField, name)
	}
	return nil
}

// checkFields runs CheckField over name/value pairs.
func checkFields(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if err := CheckField(pairs[i], pairs[i+1]); err != nil {
			return err
		}
	}
	return nil
}

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusBooked    Status = "BOOKED"
	StatusCancelled Status = "CANCELLED"
)

// ParseStatus converts the stored representation into a Status.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusBooked, StatusCancelled:
		return Status(s), nil
	}
	return "", fmt.Errorf("invalid appointment status: %q", s)
}

// Patient is a registered patient. Patients are never modified or removed.
type Patient struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Age   int    `json:"age"`
	Phone string `json:"phone"`
}

// Doctor is a bookable practitioner.
type Doctor struct {
	ID             int    `json:"id"`
	Name           string `json:"name"`
	Specialization string `json:"specialization"`
}

// Appointment books a patient with a doctor at an opaque date (YYYY-MM-DD)
// and time (HH:MM). PatientID and DoctorID are stored as given.
type Appointment struct {
	ID        int    `json:"id"`
	PatientID int    `json:"patient_id"`
	DoctorID  int    `json:"doctor_id"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Status    Status `json:"status"`
}

// Slot is the key a booking conflict is checked against.
type Slot struct {
	DoctorID int
	Date     string
	Time     string
}

// Slot returns the slot this appointment occupies.
func (a Appointment) Slot() Slot {
	return Slot{DoctorID: a.DoctorID, Date: a.Date, Time: a.Time}
}

// Occupies reports whether a is a booked appointment holding sl.
func (a Appointment) Occupies(sl Slot) bool {
	return a.Status == StatusBooked && a.Slot() == sl
}

// defaultDoctors are seeded when no doctor has ever been registered.
var defaultDoctors = []Doctor{
	{Name: "Dr. Smith", Specialization: "General"},
	{Name: "Dr. Riya", Specialization: "Cardiology"},
	{Name: "Dr. Patel", Specialization: "Dermatology"},
}

// -- Flat record encoding --

// MarshalLine encodes the patient as id,name,age,phone.
func (p Patient) MarshalLine() string {
	return strings.Join([]string{strconv.Itoa(p.ID), p.Name, strconv.Itoa(p.Age), p.Phone}, fieldSep)
}

// ParsePatientLine decodes a line produced by Patient.MarshalLine.
func ParsePatientLine(line string) (Patient, error) {
	f, err := splitFields(line, 4)
	if err != nil {
		return Patient{}, fmt.Errorf("patient: %w", err)
	}
	id, err := atoi("id", f[0])
	if err != nil {
		return Patient{}, fmt.Errorf("patient: %w", err)
	}
	age, err := atoi("age", f[2])
	if err != nil {
		return Patient{}, fmt.Errorf("patient: %w", err)
	}
	return Patient{ID: id, Name: f[1], Age: age, Phone: f[3]}, nil
}

// MarshalLine encodes the doctor as id,name,specialization.
func (d Doctor) MarshalLine() string {
	return strings.Join([]string{strconv.Itoa(d.ID), d.Name, d.Specialization}, fieldSep)
}

// ParseDoctorLine decodes a line produced by Doctor.MarshalLine.
func ParseDoctorLine(line string) (Doctor, error) {
	f, err := splitFields(line, 3)
	if err != nil {
		return Doctor{}, fmt.Errorf("doctor: %w", err)
	}
	id, err := atoi("id", f[0])
	if err != nil {
		return Doctor{}, fmt.Errorf("doctor: %w", err)
	}
	return Doctor{ID: id, Name: f[1], Specialization: f[2]}, nil
}

// MarshalLine encodes the appointment as id,patientId,doctorId,date,time,status.
func (a Appointment) MarshalLine() string {
	return strings.Join([]string{
		strconv.Itoa(a.ID), strconv.Itoa(a.PatientID), strconv.Itoa(a.DoctorID),
		a.Date, a.Time, string(a.Status),
	}, fieldSep)
}

// ParseAppointmentLine decodes a line produced by Appointment.MarshalLine.
func ParseAppointmentLine(line string) (Appointment, error) {
	f, err := splitFields(line, 6)
	if err != nil {
		return Appointment{}, fmt.Errorf("appointment: %w", err)
	}
	var ids [3]int
	for i, name := range []string{"id", "patient_id", "doctor_id"} {
		if ids[i], err = atoi(name, f[i]); err != nil {
			return Appointment{}, fmt.Errorf("appointment: %w", err)
		}
	}
	status, err := ParseStatus(f[5])
	if err != nil {
		return Appointment{}, fmt.Errorf("appointment: %w", err)
	}
	return Appointment{
		ID: ids[0], PatientID: ids[1], DoctorID: ids[2],
		Date: f[3], Time: f[4], Status: status,
	}, nil
}

func splitFields(line string, want int) ([]string, error) {
	f := strings.Split(line, fieldSep)
	if len(f) != want {
		return nil, fmt.Errorf("expected %d fields, got %d in %q", want, len(f), line)
	}
	return f, nil
}

func atoi(field, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", field, s)
	}
	return n, nil
}
