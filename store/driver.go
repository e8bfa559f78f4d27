package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)

	// StudySession model related methods.
	CreateStudySession(ctx context.Context, create *StudySession) (*StudySession, error)
	ListStudySessions(ctx context.Context, find *FindStudySession) ([]*StudySession, error)
	// CloseStudySession returns ErrStudySessionNotActive when no active row matches.
	CloseStudySession(ctx context.Context, close *CloseStudySession) error
}
