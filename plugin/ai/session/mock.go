package session

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/lithammer/shortuuid/v4"

	"github.com/Momena-akhtar/classfellow-sub000/store"
)

// MockRecordStore is an in-memory RecordStore for testing.
// Set the Err fields to make the matching call fail.
type MockRecordStore struct {
	mu       sync.RWMutex
	sessions map[string]*store.StudySession
	nextID   int32

	CreateErr error
	GetErr    error
	CloseErr  error
}

// NewMockRecordStore creates an empty MockRecordStore.
func NewMockRecordStore() *MockRecordStore {
	return &MockRecordStore{
		sessions: make(map[string]*store.StudySession),
	}
}

func (m *MockRecordStore) CreateStudySession(_ context.Context, create *store.StudySession) (*store.StudySession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CreateErr != nil {
		return nil, m.CreateErr
	}

	m.nextID++
	record := *create
	record.ID = m.nextID
	if record.UID == "" {
		record.UID = shortuuid.New()
	}
	record.IsActive = true
	record.EndedTs = nil
	record.Meta = nil
	m.sessions[record.UID] = &record

	out := record
	return &out, nil
}

func (m *MockRecordStore) GetStudySession(ctx context.Context, find *store.FindStudySession) (*store.StudySession, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	limit := 1
	find.Limit = &limit
	list, err := m.ListStudySessions(ctx, find)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return list[0], nil
}

func (m *MockRecordStore) ListStudySessions(_ context.Context, find *store.FindStudySession) ([]*store.StudySession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.GetErr != nil {
		return nil, m.GetErr
	}

	list := make([]*store.StudySession, 0)
	for _, s := range m.sessions {
		if find.ID != nil && s.ID != *find.ID {
			continue
		}
		if find.UID != nil && s.UID != *find.UID {
			continue
		}
		if find.CourseID != nil && s.CourseID != *find.CourseID {
			continue
		}
		if find.StudentID != nil && s.StudentID != *find.StudentID {
			continue
		}
		if find.IsActive != nil && s.IsActive != *find.IsActive {
			continue
		}
		if find.StartedBefore != nil && s.StartedTs >= *find.StartedBefore {
			continue
		}
		list = append(list, copyStudySession(s))
	}

	sort.Slice(list, func(i, j int) bool {
		if list[i].StartedTs != list[j].StartedTs {
			return list[i].StartedTs > list[j].StartedTs
		}
		return list[i].ID > list[j].ID
	})
	if find.Limit != nil && *find.Limit < len(list) {
		list = list[:*find.Limit]
	}
	return list, nil
}

func (m *MockRecordStore) CloseStudySession(_ context.Context, close *store.CloseStudySession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CloseErr != nil {
		return m.CloseErr
	}
	if close.Meta == nil {
		return errors.New("meta is required to close a session")
	}

	s, ok := m.sessions[close.UID]
	if !ok || !s.IsActive {
		return store.ErrStudySessionNotActive
	}
	endedTs := close.EndedTs
	meta := *close.Meta
	s.IsActive = false
	s.EndedTs = &endedTs
	s.Meta = &meta
	return nil
}

// Get returns a copy of the record with the given UID, or nil.
func (m *MockRecordStore) Get(uid string) *store.StudySession {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[uid]
	if !ok {
		return nil
	}
	return copyStudySession(s)
}

// Put inserts or replaces a record as-is.
func (m *MockRecordStore) Put(s *store.StudySession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.UID] = copyStudySession(s)
}

func copyStudySession(s *store.StudySession) *store.StudySession {
	out := *s
	if s.EndedTs != nil {
		endedTs := *s.EndedTs
		out.EndedTs = &endedTs
	}
	if s.Meta != nil {
		meta := *s.Meta
		out.Meta = &meta
	}
	return &out
}

// Ensure MockRecordStore implements RecordStore
var _ RecordStore = (*MockRecordStore)(nil)
