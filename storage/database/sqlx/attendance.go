package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/makumbi/hudhurio/core"
	"github.com/makumbi/hudhurio/core/attendance"
)

// postgres error code for unique constraint violations
const uniqueViolation = "23505"

const (
	createSessionSQL = `
		INSERT INTO attendance_session
			(id, assignment_id, period_id, class_date, seq, starts_at, locked_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	getSessionSQL = `
		SELECT id, assignment_id, period_id, class_date, seq, starts_at, locked_at, created_at, updated_at
		FROM attendance_session WHERE id = $1`

	querySessionsSQL = `
		SELECT id, assignment_id, period_id, class_date, seq, starts_at, locked_at, created_at, updated_at
		FROM attendance_session`

	// the "locked_at IS NULL" predicate is the optimistic lock guard: a
	// concurrent lock between the service's check and this write makes the
	// statement a no-op.
	lockSessionSQL = `
		UPDATE attendance_session SET locked_at = $2, updated_at = $2
		WHERE id = $1 AND locked_at IS NULL`

	// insert-select guarded by the session being open; on conflict the
	// existing (session, enrollment) record is overwritten in place.
	upsertRecordSQL = `
		INSERT INTO attendance_record (id, session_id, enrollment_id, status, tardy_at, marked_at)
		SELECT $1, $2, $3, $4, $5, $6
		WHERE EXISTS (SELECT 1 FROM attendance_session s WHERE s.id = $2 AND s.locked_at IS NULL)
		ON CONFLICT (session_id, enrollment_id)
		DO UPDATE SET status = EXCLUDED.status, tardy_at = EXCLUDED.tardy_at, marked_at = EXCLUDED.marked_at
		RETURNING id`

	getRecordsSQL = `
		SELECT id, session_id, enrollment_id, status, tardy_at, marked_at
		FROM attendance_record WHERE session_id = $1
		ORDER BY enrollment_id`

	// records go with their session via the FK's ON DELETE CASCADE
	deleteSessionsSQL = `DELETE FROM attendance_session WHERE id = ANY($1)`
)

// fields a session listing may be ordered by
var sessionOrderFields = map[string]bool{
	"class_date": true,
	"seq":        true,
	"starts_at":  true,
	"created_at": true,
}

type attendanceRepository struct {
	db *sqlx.DB
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *sqlx.DB) *attendanceRepository {
	return &attendanceRepository{db: db}
}

func (repo attendanceRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.db
}

// getQueryer adapts the exec varargs for the sqlx scan helpers. *sqlx.DB and
// *sqlx.Tx both qualify; a plain executor falls back to the pool.
func (repo attendanceRepository) getQueryer(svcExec []core.DBExecutor) sqlx.QueryerContext {
	if len(svcExec) > 0 {
		if q, ok := svcExec[0].(sqlx.QueryerContext); ok {
			return q
		}
	}
	return repo.db
}

func (repo attendanceRepository) CreateSession(ctx context.Context, sess attendance.Session, exec ...core.DBExecutor) (attendance.Session, error) {
	sess.ID = uuid.New().String()
	_, err := repo.getExec(exec).ExecContext(ctx, createSessionSQL,
		sess.ID, sess.AssignmentID, sess.PeriodID, sess.ClassDate, sess.Seq,
		sess.StartsAt, sess.LockedAt, sess.CreatedAt, sess.UpdatedAt)
	if err != nil {
		if pqErr, ok := errors.Cause(err).(*pq.Error); ok && string(pqErr.Code) == uniqueViolation {
			return attendance.Session{}, attendance.ErrDuplicateSession
		}
		return attendance.Session{}, errors.Wrap(err, "inserting session")
	}
	return sess, nil
}

func (repo attendanceRepository) GetSession(ctx context.Context, id string, exec ...core.DBExecutor) (attendance.Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return attendance.Session{}, attendance.ErrNotFound
	}
	var sess attendance.Session
	if err := sqlx.GetContext(ctx, repo.getQueryer(exec), &sess, getSessionSQL, id); err != nil {
		if err == sql.ErrNoRows {
			return attendance.Session{}, attendance.ErrNotFound
		}
		return attendance.Session{}, errors.Wrap(err, "finding session by ID")
	}
	return sess, nil
}

func (repo attendanceRepository) QuerySessions(
	ctx context.Context,
	filter *attendance.SessionFilter,
	ordering []core.DBOrdering,
	exec ...core.DBExecutor,
) ([]attendance.Session, error) {
	q := querySessionsSQL
	var conds []string
	var args []interface{}

	if filter != nil {
		if filter.AssignmentID != "" {
			args = append(args, filter.AssignmentID)
			conds = append(conds, fmt.Sprintf("assignment_id = $%d", len(args)))
		}
		if filter.PeriodID != "" {
			args = append(args, filter.PeriodID)
			conds = append(conds, fmt.Sprintf("period_id = $%d", len(args)))
		}
		if !filter.ClassDate.IsZero() {
			args = append(args, filter.ClassDate)
			conds = append(conds, fmt.Sprintf("class_date = $%d", len(args)))
		}
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += sessionOrderBy(ordering)

	sessions := make([]attendance.Session, 0)
	if err := sqlx.SelectContext(ctx, repo.getQueryer(exec), &sessions, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying sessions")
	}
	return sessions, nil
}

func (repo attendanceRepository) LockSession(ctx context.Context, id string, lockedAt time.Time, exec ...core.DBExecutor) (attendance.Session, error) {
	res, err := repo.getExec(exec).ExecContext(ctx, lockSessionSQL, id, lockedAt)
	if err != nil {
		return attendance.Session{}, errors.Wrap(err, "locking session")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return attendance.Session{}, errors.Wrap(err, "locking session")
	}
	if n == 0 {
		// lost the race or the session never existed; re-read to tell which
		sess, gerr := repo.GetSession(ctx, id, exec...)
		if gerr != nil {
			return attendance.Session{}, gerr
		}
		if sess.IsLocked() {
			return attendance.Session{}, errors.Wrapf(attendance.ErrAlreadyLocked, "session %s", sess.Key())
		}
		return attendance.Session{}, errors.New("locking session: no rows updated")
	}
	return repo.GetSession(ctx, id, exec...)
}

func (repo attendanceRepository) UpsertRecord(ctx context.Context, rec attendance.Record, exec ...core.DBExecutor) (attendance.Record, error) {
	row := repo.getExec(exec).QueryRowContext(ctx, upsertRecordSQL,
		uuid.New().String(), rec.SessionID, rec.EnrollmentID, string(rec.Status), rec.TardyAt, rec.MarkedAt)

	var id string
	if err := row.Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			// the guard swallowed the write: session locked or deleted since
			// the service validated it
			sess, gerr := repo.GetSession(ctx, rec.SessionID, exec...)
			if gerr != nil {
				return attendance.Record{}, gerr
			}
			if sess.IsLocked() {
				return attendance.Record{}, errors.Wrapf(attendance.ErrSessionLocked, "session %s", sess.Key())
			}
			return attendance.Record{}, errors.New("upserting record: no rows written")
		}
		return attendance.Record{}, errors.Wrap(err, "upserting record")
	}
	rec.ID = id
	return rec, nil
}

func (repo attendanceRepository) BulkUpsertRecords(ctx context.Context, sessionID string, recs []attendance.Record, exec ...core.DBExecutor) ([]attendance.Record, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "beginning bulk mark")
	}

	out := make([]attendance.Record, 0, len(recs))
	for _, rec := range recs {
		saved, err := repo.UpsertRecord(ctx, rec, tx)
		if err != nil {
			_ = tx.Rollback()
			return nil, err
		}
		out = append(out, saved)
	}
	if err = tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "committing bulk mark")
	}
	return out, nil
}

func (repo attendanceRepository) GetRecords(ctx context.Context, sessionID string, exec ...core.DBExecutor) ([]attendance.Record, error) {
	recs := make([]attendance.Record, 0)
	if err := sqlx.SelectContext(ctx, repo.getQueryer(exec), &recs, getRecordsSQL, sessionID); err != nil {
		return nil, errors.Wrap(err, "querying records")
	}
	return recs, nil
}

func (repo attendanceRepository) DeleteSessionsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	res, err := repo.getExec(exec).ExecContext(ctx, deleteSessionsSQL, pq.Array(ids))
	if err != nil {
		return 0, errors.Wrap(err, "deleting sessions")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "deleting sessions")
	}
	return int(n), nil
}

func sessionOrderBy(ordering []core.DBOrdering) string {
	orderList := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		if sessionOrderFields[ord.Field] {
			orderList = append(orderList, ord.String())
		}
	}
	if len(orderList) == 0 {
		return " ORDER BY class_date ASC, seq ASC"
	}
	return " ORDER BY " + strings.Join(orderList, ", ")
}
