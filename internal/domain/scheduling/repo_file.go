package scheduling

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// =========== Flat file Store ===========

type fileStore struct{ dir string }

// NewFileStore returns a Store keeping one text file per kind under dir,
// one comma-joined record per line.
func NewFileStore(dir string) Store { return &fileStore{dir: dir} }

func (s *fileStore) path(k Kind) string {
	return filepath.Join(s.dir, string(k)+".txt")
}

func (s *fileStore) LoadPatients(_ context.Context) ([]Patient, error) {
	return loadFile(s.path(KindPatients), ParsePatientLine)
}

func (s *fileStore) SavePatients(_ context.Context, patients []Patient) error {
	return saveFile(s.path(KindPatients), patients)
}

func (s *fileStore) LoadDoctors(_ context.Context) ([]Doctor, error) {
	return loadFile(s.path(KindDoctors), ParseDoctorLine)
}

func (s *fileStore) SaveDoctors(_ context.Context, doctors []Doctor) error {
	return saveFile(s.path(KindDoctors), doctors)
}

func (s *fileStore) LoadAppointments(_ context.Context) ([]Appointment, error) {
	return loadFile(s.path(KindAppointments), ParseAppointmentLine)
}

func (s *fileStore) SaveAppointments(_ context.Context, appts []Appointment) error {
	return saveFile(s.path(KindAppointments), appts)
}

type lineMarshaler interface {
	MarshalLine() string
}

// loadFile decodes path line by line. On a malformed line it returns the
// records decoded so far along with the error.
func loadFile[T any](path string, parse func(string) (T, error)) ([]T, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return []T{}, nil
	}
	if err != nil {
		return []T{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	out := []T{}
	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			continue
		}
		rec, err := parse(line)
		if err != nil {
			return out, fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return out, fmt.Errorf("read %s: %w", path, err)
	}
	return out, nil
}

// saveFile rewrites path with one line per record. The new content is
// written to a temporary file in the same directory and renamed over path.
func saveFile[T lineMarshaler](path string, recs []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	for _, r := range recs {
		w.WriteString(r.MarshalLine())
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
