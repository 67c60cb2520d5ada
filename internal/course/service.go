package course

import (
	"context"

	"github.com/TheAngryRaven/lap-tracker-pro/internal/db"
	"github.com/TheAngryRaven/lap-tracker-pro/internal/timing"

	"github.com/google/uuid"
)

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

func (s *Service) Create(ctx context.Context, input Course) (Course, error) {
	if err := input.Timing().Validate(); err != nil {
		return Course{}, err
	}

	input.ID = uuid.NewString()
	s2a, s2b := linePtrs(input.Sector2)
	s3a, s3b := linePtrs(input.Sector3)
	row := s.db.QueryRow(ctx, `
		INSERT INTO courses (id, name, track_name, created_by,
			sf_a_lat, sf_a_lon, sf_b_lat, sf_b_lon,
			s2_a_lat, s2_a_lon, s2_b_lat, s2_b_lon,
			s3_a_lat, s3_a_lon, s3_b_lat, s3_b_lon)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		RETURNING created_at
	`, input.ID, input.Name, input.TrackName, input.CreatedBy,
		input.StartFinish.A.Lat, input.StartFinish.A.Lon, input.StartFinish.B.Lat, input.StartFinish.B.Lon,
		s2a.lat, s2a.lon, s2b.lat, s2b.lon,
		s3a.lat, s3a.lon, s3b.lat, s3b.lon)
	if err := row.Scan(&input.CreatedAt); err != nil {
		return Course{}, err
	}
	return input, nil
}

func (s *Service) Update(ctx context.Context, id string, patch Course) (Course, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return Course{}, err
	}
	if patch.Name != "" {
		existing.Name = patch.Name
	}
	if patch.TrackName != "" {
		existing.TrackName = patch.TrackName
	}
	if patch.StartFinish != (timing.Line{}) {
		existing.StartFinish = patch.StartFinish
	}
	if patch.Sector2 != nil || patch.Sector3 != nil {
		existing.Sector2 = patch.Sector2
		existing.Sector3 = patch.Sector3
	}
	if err := existing.Timing().Validate(); err != nil {
		return Course{}, err
	}

	s2a, s2b := linePtrs(existing.Sector2)
	s3a, s3b := linePtrs(existing.Sector3)
	_, err = s.db.Exec(ctx, `
		UPDATE courses
		SET name=$2, track_name=$3,
		    sf_a_lat=$4, sf_a_lon=$5, sf_b_lat=$6, sf_b_lon=$7,
		    s2_a_lat=$8, s2_a_lon=$9, s2_b_lat=$10, s2_b_lon=$11,
		    s3_a_lat=$12, s3_a_lon=$13, s3_b_lat=$14, s3_b_lon=$15
		WHERE id=$1
	`, existing.ID, existing.Name, existing.TrackName,
		existing.StartFinish.A.Lat, existing.StartFinish.A.Lon, existing.StartFinish.B.Lat, existing.StartFinish.B.Lon,
		s2a.lat, s2a.lon, s2b.lat, s2b.lon,
		s3a.lat, s3a.lon, s3b.lat, s3b.lon)
	if err != nil {
		return Course{}, err
	}
	return existing, nil
}

func (s *Service) Get(ctx context.Context, id string) (Course, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, track_name, created_by,
		       sf_a_lat, sf_a_lon, sf_b_lat, sf_b_lon,
		       s2_a_lat, s2_a_lon, s2_b_lat, s2_b_lon,
		       s3_a_lat, s3_a_lon, s3_b_lat, s3_b_lon,
		       created_at
		FROM courses WHERE id=$1
	`, id)
	return scanCourse(row)
}

func (s *Service) List(ctx context.Context, createdBy string) ([]Course, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, track_name, created_by,
		       sf_a_lat, sf_a_lon, sf_b_lat, sf_b_lon,
		       s2_a_lat, s2_a_lon, s2_b_lat, s2_b_lon,
		       s3_a_lat, s3_a_lon, s3_b_lat, s3_b_lon,
		       created_at
		FROM courses
		WHERE created_by=$1 OR $1=''
		ORDER BY created_at DESC
	`, createdBy)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var courses []Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	return courses, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM courses WHERE id=$1`, id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCourse(row rowScanner) (Course, error) {
	var c Course
	var s2a, s2b, s3a, s3b coordPair
	err := row.Scan(&c.ID, &c.Name, &c.TrackName, &c.CreatedBy,
		&c.StartFinish.A.Lat, &c.StartFinish.A.Lon, &c.StartFinish.B.Lat, &c.StartFinish.B.Lon,
		&s2a.lat, &s2a.lon, &s2b.lat, &s2b.lon,
		&s3a.lat, &s3a.lon, &s3b.lat, &s3b.lon,
		&c.CreatedAt)
	if err != nil {
		return Course{}, err
	}
	c.Sector2 = lineFromPairs(s2a, s2b)
	c.Sector3 = lineFromPairs(s3a, s3b)
	return c, nil
}

// coordPair holds one nullable line endpoint as stored in the courses
// table. Sector columns are NULL when the course has no sector lines.
type coordPair struct {
	lat *float64
	lon *float64
}

func linePtrs(l *timing.Line) (coordPair, coordPair) {
	if l == nil {
		return coordPair{}, coordPair{}
	}
	a, b := l.A, l.B
	return coordPair{lat: &a.Lat, lon: &a.Lon}, coordPair{lat: &b.Lat, lon: &b.Lon}
}

func lineFromPairs(a, b coordPair) *timing.Line {
	if a.lat == nil || a.lon == nil || b.lat == nil || b.lon == nil {
		return nil
	}
	return &timing.Line{
		A: timing.Point{Lat: *a.lat, Lon: *a.lon},
		B: timing.Point{Lat: *b.lat, Lon: *b.lon},
	}
}
