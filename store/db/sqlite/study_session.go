package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Momena-akhtar/classfellow-sub000/store"
)

func (d *DB) CreateStudySession(ctx context.Context, create *store.StudySession) (*store.StudySession, error) {
	fields := []string{"uid", "course_id", "student_id", "is_active"}
	args := []any{create.UID, create.CourseID, create.StudentID, create.IsActive}
	if create.StartedTs != 0 {
		fields, args = append(fields, "started_ts"), append(args, create.StartedTs)
	}

	stmt := `INSERT INTO study_session (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		RETURNING id, started_ts`
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&create.ID, &create.StartedTs); err != nil {
		return nil, fmt.Errorf("failed to create study_session: %w", err)
	}
	return create, nil
}

func (d *DB) ListStudySessions(ctx context.Context, find *store.FindStudySession) ([]*store.StudySession, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "`id` = ?"), append(args, *v)
	}
	if v := find.UID; v != nil {
		where, args = append(where, "`uid` = ?"), append(args, *v)
	}
	if v := find.CourseID; v != nil {
		where, args = append(where, "`course_id` = ?"), append(args, *v)
	}
	if v := find.StudentID; v != nil {
		where, args = append(where, "`student_id` = ?"), append(args, *v)
	}
	if v := find.IsActive; v != nil {
		where, args = append(where, "`is_active` = ?"), append(args, *v)
	}
	if v := find.StartedBefore; v != nil {
		where, args = append(where, "`started_ts` < ?"), append(args, *v)
	}

	query := "SELECT `id`, `uid`, `course_id`, `student_id`, `started_ts`, `ended_ts`, `is_active`, `meta` FROM `study_session` WHERE " +
		strings.Join(where, " AND ") + " ORDER BY `started_ts` DESC, `id` DESC"
	if find.Limit != nil {
		query = fmt.Sprintf("%s LIMIT %d", query, *find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list study_sessions: %w", err)
	}
	defer rows.Close()

	list := make([]*store.StudySession, 0)
	for rows.Next() {
		s := &store.StudySession{}
		var endedTs sql.NullInt64
		var meta string
		if err := rows.Scan(&s.ID, &s.UID, &s.CourseID, &s.StudentID, &s.StartedTs, &endedTs, &s.IsActive, &meta); err != nil {
			return nil, fmt.Errorf("failed to scan study_session: %w", err)
		}
		if endedTs.Valid {
			s.EndedTs = &endedTs.Int64
		}
		if s.Meta, err = store.UnmarshalStudySessionMeta(meta); err != nil {
			return nil, err
		}
		list = append(list, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate study_sessions: %w", err)
	}
	return list, nil
}

func (d *DB) CloseStudySession(ctx context.Context, close *store.CloseStudySession) error {
	meta, err := store.MarshalStudySessionMeta(close.Meta)
	if err != nil {
		return err
	}

	stmt := "UPDATE `study_session` SET `is_active` = 0, `ended_ts` = ?, `meta` = ? WHERE `uid` = ? AND `is_active` = 1"
	result, err := d.db.ExecContext(ctx, stmt, close.EndedTs, meta, close.UID)
	if err != nil {
		return fmt.Errorf("failed to close study_session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return store.ErrStudySessionNotActive
	}
	return nil
}
