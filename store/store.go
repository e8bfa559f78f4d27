package store

import (
	"context"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"

	"github.com/Momena-akhtar/classfellow-sub000/internal/profile"
)

// Store provides database access to durable session records.
type Store struct {
	profile *profile.Profile
	driver  Driver
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	return s.driver.Close()
}

// CreateStudySession persists a new active session. A UID is generated when none is given.
func (s *Store) CreateStudySession(ctx context.Context, create *StudySession) (*StudySession, error) {
	if create.CourseID == "" || create.StudentID == "" {
		return nil, errors.New("course id and student id are required")
	}
	if create.UID == "" {
		create.UID = shortuuid.New()
	}
	create.IsActive = true
	create.EndedTs = nil
	create.Meta = nil
	return s.driver.CreateStudySession(ctx, create)
}

func (s *Store) ListStudySessions(ctx context.Context, find *FindStudySession) ([]*StudySession, error) {
	return s.driver.ListStudySessions(ctx, find)
}

// GetStudySession returns the first matching session, or nil when none matches.
func (s *Store) GetStudySession(ctx context.Context, find *FindStudySession) (*StudySession, error) {
	limit := 1
	find.Limit = &limit
	list, err := s.driver.ListStudySessions(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// CloseStudySession finalizes an active session. Closing is write-once: a second
// close of the same session returns ErrStudySessionNotActive.
func (s *Store) CloseStudySession(ctx context.Context, close *CloseStudySession) error {
	if close.UID == "" {
		return errors.New("uid is required")
	}
	if close.Meta == nil {
		return errors.New("meta is required to close a session")
	}
	return s.driver.CloseStudySession(ctx, close)
}
