package test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Momena-akhtar/classfellow-sub000/store"
)

func TestStudySessionStore(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	studentID := "student-" + shortuuid.New()

	created, err := ts.CreateStudySession(ctx, &store.StudySession{
		CourseID:  "course-1",
		StudentID: studentID,
		StartedTs: 1700000000,
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.UID)
	require.Greater(t, created.ID, int32(0))
	assert.True(t, created.IsActive)
	assert.Equal(t, int64(1700000000), created.StartedTs)

	found, err := ts.GetStudySession(ctx, &store.FindStudySession{UID: &created.UID})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, "course-1", found.CourseID)
	assert.Equal(t, studentID, found.StudentID)
	assert.True(t, found.IsActive)
	assert.Nil(t, found.EndedTs)
	assert.Nil(t, found.Meta)

	meta := &store.StudySessionMeta{
		Transcription: "a b c",
		AISummary:     `[{"text":"summary"}]`,
		Duration:      90000,
	}
	require.NoError(t, ts.CloseStudySession(ctx, &store.CloseStudySession{
		UID:     created.UID,
		EndedTs: 1700000090,
		Meta:    meta,
	}))

	closed, err := ts.GetStudySession(ctx, &store.FindStudySession{UID: &created.UID})
	require.NoError(t, err)
	require.NotNil(t, closed)
	assert.False(t, closed.IsActive)
	require.NotNil(t, closed.EndedTs)
	assert.Equal(t, int64(1700000090), *closed.EndedTs)
	require.NotNil(t, closed.Meta)
	assert.Equal(t, "a b c", closed.Meta.Transcription)
	assert.Equal(t, int64(90000), closed.Meta.Duration)
	assert.Equal(t, []string{}, closed.Meta.Keywords)
	assert.Equal(t, []string{}, closed.Meta.AdditionalLinks)
	assert.Equal(t, []string{}, closed.Meta.ReferenceMaterials)
}

func TestStudySessionCloseIsWriteOnce(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	created, err := ts.CreateStudySession(ctx, &store.StudySession{CourseID: "c", StudentID: "s-" + shortuuid.New()})
	require.NoError(t, err)

	first := &store.StudySessionMeta{Transcription: "first"}
	require.NoError(t, ts.CloseStudySession(ctx, &store.CloseStudySession{UID: created.UID, EndedTs: time.Now().Unix(), Meta: first}))

	second := &store.StudySessionMeta{Transcription: "second"}
	err = ts.CloseStudySession(ctx, &store.CloseStudySession{UID: created.UID, EndedTs: time.Now().Unix(), Meta: second})
	assert.True(t, errors.Is(err, store.ErrStudySessionNotActive))

	found, err := ts.GetStudySession(ctx, &store.FindStudySession{UID: &created.UID})
	require.NoError(t, err)
	assert.Equal(t, "first", found.Meta.Transcription)
}

func TestStudySessionCloseUnknown(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	err := ts.CloseStudySession(ctx, &store.CloseStudySession{
		UID:     "missing",
		EndedTs: time.Now().Unix(),
		Meta:    &store.StudySessionMeta{},
	})
	assert.True(t, errors.Is(err, store.ErrStudySessionNotActive))
}

func TestStudySessionGetMissing(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	uid := "missing"
	found, err := ts.GetStudySession(ctx, &store.FindStudySession{UID: &uid})
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestListStudySessions(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	studentID := "student-" + shortuuid.New()

	for i := 0; i < 3; i++ {
		_, err := ts.CreateStudySession(ctx, &store.StudySession{
			CourseID:  "course-list",
			StudentID: studentID,
			StartedTs: int64(1700000000 + i),
		})
		require.NoError(t, err)
	}

	list, err := ts.ListStudySessions(ctx, &store.FindStudySession{StudentID: &studentID})
	require.NoError(t, err)
	require.Len(t, list, 3)
	// Newest first.
	assert.Equal(t, int64(1700000002), list[0].StartedTs)

	require.NoError(t, ts.CloseStudySession(ctx, &store.CloseStudySession{
		UID:     list[0].UID,
		EndedTs: 1700000100,
		Meta:    &store.StudySessionMeta{},
	}))

	active := true
	list, err = ts.ListStudySessions(ctx, &store.FindStudySession{StudentID: &studentID, IsActive: &active})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	before := int64(1700000002)
	limit := 1
	list, err = ts.ListStudySessions(ctx, &store.FindStudySession{StudentID: &studentID, StartedBefore: &before, Limit: &limit})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(1700000001), list[0].StartedTs)
}

func TestCreateStudySessionRequiresReferences(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	_, err := ts.CreateStudySession(ctx, &store.StudySession{CourseID: "c"})
	assert.Error(t, err)
}
