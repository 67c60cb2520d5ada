package session

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/TheAngryRaven/lap-tracker-pro/internal/db"
	"github.com/TheAngryRaven/lap-tracker-pro/internal/logparse"
	"github.com/TheAngryRaven/lap-tracker-pro/internal/publish"
	"github.com/TheAngryRaven/lap-tracker-pro/internal/speedevents"
	"github.com/TheAngryRaven/lap-tracker-pro/internal/stream"
	"github.com/TheAngryRaven/lap-tracker-pro/internal/telemetry"
	"github.com/TheAngryRaven/lap-tracker-pro/internal/timing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrEmptyUpload = errors.New("uploaded log is empty")

type Service struct {
	db       db.Querier
	redis    *redis.Client
	hub      *stream.Hub
	pub      *publish.Publisher
	cacheTTL time.Duration
}

func NewService(db db.Querier, redisClient *redis.Client, hub *stream.Hub, pub *publish.Publisher, cacheTTL time.Duration) *Service {
	return &Service{
		db:       db,
		redis:    redisClient,
		hub:      hub,
		pub:      pub,
		cacheTTL: cacheTTL,
	}
}

// Ingest decodes a raw log, stores the session row plus the original
// bytes, primes the cache and notifies listeners.
func (s *Service) Ingest(ctx context.Context, driverID, name string, raw []byte) (Session, error) {
	if len(raw) == 0 {
		return Session{}, ErrEmptyUpload
	}

	data, format, err := logparse.Parse(raw)
	if err != nil {
		return Session{}, err
	}

	session := Session{
		ID:          uuid.NewString(),
		DriverID:    driverID,
		Name:        name,
		Format:      format.String(),
		SampleCount: len(data.Samples),
		DurationMs:  data.DurationMs,
		StartTime:   data.StartTime,
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO sessions (id, driver_id, name, format, sample_count, duration_ms, start_time, raw)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at
	`, session.ID, session.DriverID, session.Name, session.Format,
		session.SampleCount, session.DurationMs, session.StartTime, raw)
	if err := row.Scan(&session.CreatedAt); err != nil {
		return Session{}, err
	}

	s.cacheData(ctx, session.ID, data)
	s.notify(session)
	return session, nil
}

func (s *Service) Get(ctx context.Context, id string) (Session, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, driver_id, name, format, sample_count, duration_ms, start_time, created_at
		FROM sessions WHERE id=$1
	`, id)
	var sess Session
	err := row.Scan(&sess.ID, &sess.DriverID, &sess.Name, &sess.Format,
		&sess.SampleCount, &sess.DurationMs, &sess.StartTime, &sess.CreatedAt)
	if err != nil {
		return Session{}, err
	}
	return sess, nil
}

func (s *Service) List(ctx context.Context, driverID string) ([]Session, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, driver_id, name, format, sample_count, duration_ms, start_time, created_at
		FROM sessions WHERE driver_id=$1
		ORDER BY created_at DESC
	`, driverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		err := rows.Scan(&sess.ID, &sess.DriverID, &sess.Name, &sess.Format,
			&sess.SampleCount, &sess.DurationMs, &sess.StartTime, &sess.CreatedAt)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM sessions WHERE id=$1`, id); err != nil {
		return err
	}
	if s.redis != nil {
		_ = s.redis.Del(context.Background(), cacheKey(id)).Err()
	}
	return nil
}

// Data returns the decoded stream, from cache when warm, otherwise by
// re-decoding the stored raw bytes.
func (s *Service) Data(ctx context.Context, id string) (*telemetry.ParsedData, error) {
	if s.redis != nil {
		cached, err := s.redis.Get(ctx, cacheKey(id)).Bytes()
		if err == nil {
			var data telemetry.ParsedData
			if err := json.Unmarshal(cached, &data); err == nil {
				return &data, nil
			}
		}
	}

	var format string
	var raw []byte
	row := s.db.QueryRow(ctx, `SELECT format, raw FROM sessions WHERE id=$1`, id)
	if err := row.Scan(&format, &raw); err != nil {
		return nil, err
	}

	data, err := logparse.ParseAs(raw, logparse.ParseFormat(format))
	if err != nil {
		return nil, err
	}
	s.cacheData(ctx, id, data)
	return data, nil
}

// Laps runs lap timing for a session against a course.
func (s *Service) Laps(ctx context.Context, id string, course timing.Course) (*timing.Result, error) {
	data, err := s.Data(ctx, id)
	if err != nil {
		return nil, err
	}
	return timing.Analyze(data, course)
}

// SpeedEvents detects straight-end peaks and corner valleys.
func (s *Service) SpeedEvents(ctx context.Context, id string, params speedevents.Params) ([]speedevents.Event, error) {
	data, err := s.Data(ctx, id)
	if err != nil {
		return nil, err
	}
	return speedevents.Detect(data, params), nil
}

func (s *Service) cacheData(ctx context.Context, id string, data *telemetry.ParsedData) {
	if s.redis == nil {
		return
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, cacheKey(id), payload, s.cacheTTL).Err(); err != nil {
		log.Printf("session cache write error: %v", err)
	}
}

func (s *Service) notify(session Session) {
	event := publish.SessionEvent{
		SessionID:   session.ID,
		DriverID:    session.DriverID,
		Name:        session.Name,
		Format:      session.Format,
		SampleCount: session.SampleCount,
		DurationMs:  session.DurationMs,
	}

	if s.hub != nil {
		payload, _ := json.Marshal(event)
		s.hub.Broadcast(session.ID, payload)
	}
	if err := s.pub.SessionReady(event); err != nil {
		log.Printf("mqtt session notify error: %v", err)
	}
}

func cacheKey(id string) string {
	return "session:" + id + ":data"
}
