package scheduling

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// =========== Redis Store ===========

// redisStore keeps each kind as a Redis list of encoded record lines.
type redisStore struct {
	rdb    redis.Cmdable
	prefix string
}

// NewStoreRedis returns a Store backed by rdb. Keys are "<prefix>:<kind>".
func NewStoreRedis(rdb redis.Cmdable, prefix string) Store {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "hospital"
	}
	return &redisStore{rdb: rdb, prefix: prefix}
}

func (s *redisStore) key(k Kind) string { return s.prefix + ":" + string(k) }

func (s *redisStore) LoadPatients(ctx context.Context) ([]Patient, error) {
	return loadList(ctx, s, KindPatients, ParsePatientLine)
}

func (s *redisStore) SavePatients(ctx context.Context, patients []Patient) error {
	return saveList(ctx, s, KindPatients, patients)
}

func (s *redisStore) LoadDoctors(ctx context.Context) ([]Doctor, error) {
	return loadList(ctx, s, KindDoctors, ParseDoctorLine)
}

func (s *redisStore) SaveDoctors(ctx context.Context, doctors []Doctor) error {
	return saveList(ctx, s, KindDoctors, doctors)
}

func (s *redisStore) LoadAppointments(ctx context.Context) ([]Appointment, error) {
	return loadList(ctx, s, KindAppointments, ParseAppointmentLine)
}

func (s *redisStore) SaveAppointments(ctx context.Context, appts []Appointment) error {
	return saveList(ctx, s, KindAppointments, appts)
}

func loadList[T any](ctx context.Context, s *redisStore, k Kind, parse func(string) (T, error)) ([]T, error) {
	lines, err := s.rdb.LRange(ctx, s.key(k), 0, -1).Result()
	if err != nil {
		return []T{}, fmt.Errorf("lrange %s: %w", s.key(k), err)
	}
	out := make([]T, 0, len(lines))
	for i, line := range lines {
		rec, err := parse(line)
		if err != nil {
			return out, fmt.Errorf("%s[%d]: %w", s.key(k), i, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// saveList replaces the list atomically with DEL + RPUSH inside MULTI/EXEC.
func saveList[T lineMarshaler](ctx context.Context, s *redisStore, k Kind, recs []T) error {
	key := s.key(k)
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(recs) == 0 {
			return nil
		}
		vals := make([]interface{}, len(recs))
		for i, r := range recs {
			vals[i] = r.MarshalLine()
		}
		pipe.RPush(ctx, key, vals...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace %s: %w", key, err)
	}
	return nil
}
