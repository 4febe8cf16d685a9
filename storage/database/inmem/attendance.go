package inmem

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/makumbi/hudhurio/core"
	"github.com/makumbi/hudhurio/core/attendance"
)

type attendanceRepository struct {
	db *DB
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *DB) *attendanceRepository {
	return &attendanceRepository{db: db}
}

func (repo *attendanceRepository) CreateSession(ctx context.Context, sess attendance.Session, exec ...core.DBExecutor) (attendance.Session, error) {
	tbl := &repo.db.attendanceTbl
	tbl.mutex.Lock()
	defer tbl.mutex.Unlock()

	for _, existing := range tbl.sessions {
		if existing.AssignmentID == sess.AssignmentID &&
			existing.PeriodID == sess.PeriodID &&
			existing.ClassDate.Equal(sess.ClassDate) &&
			existing.Seq == sess.Seq {
			return attendance.Session{}, attendance.ErrDuplicateSession
		}
	}

	sess.ID = uuid.New().String()
	tbl.sessions[sess.ID] = sess
	return sess, nil
}

func (repo *attendanceRepository) GetSession(ctx context.Context, id string, exec ...core.DBExecutor) (attendance.Session, error) {
	tbl := &repo.db.attendanceTbl
	tbl.mutex.RLock()
	defer tbl.mutex.RUnlock()
	return repo.getSession(id)
}

// getSession expects the table mutex to be held.
func (repo *attendanceRepository) getSession(id string) (attendance.Session, error) {
	sess, ok := repo.db.attendanceTbl.sessions[id]
	if !ok {
		return attendance.Session{}, attendance.ErrNotFound
	}
	return sess, nil
}

func (repo *attendanceRepository) QuerySessions(
	ctx context.Context,
	filter *attendance.SessionFilter,
	ordering []core.DBOrdering,
	exec ...core.DBExecutor,
) ([]attendance.Session, error) {
	tbl := &repo.db.attendanceTbl
	tbl.mutex.RLock()
	defer tbl.mutex.RUnlock()

	sessions := make([]attendance.Session, 0, len(tbl.sessions))
	for _, sess := range tbl.sessions {
		if filter != nil {
			if filter.AssignmentID != "" && sess.AssignmentID != filter.AssignmentID {
				continue
			}
			if filter.PeriodID != "" && sess.PeriodID != filter.PeriodID {
				continue
			}
			if !filter.ClassDate.IsZero() && !sess.ClassDate.Equal(filter.ClassDate) {
				continue
			}
		}
		sessions = append(sessions, sess)
	}
	sortSessions(sessions, ordering)
	return sessions, nil
}

func (repo *attendanceRepository) LockSession(ctx context.Context, id string, lockedAt time.Time, exec ...core.DBExecutor) (attendance.Session, error) {
	tbl := &repo.db.attendanceTbl
	tbl.mutex.Lock()
	defer tbl.mutex.Unlock()

	sess, err := repo.getSession(id)
	if err != nil {
		return attendance.Session{}, err
	}
	if sess.IsLocked() {
		return attendance.Session{}, errors.Wrapf(attendance.ErrAlreadyLocked, "session %s", sess.Key())
	}
	sess.LockedAt = null.TimeFrom(lockedAt)
	sess.UpdatedAt = lockedAt
	tbl.sessions[id] = sess
	return sess, nil
}

func (repo *attendanceRepository) UpsertRecord(ctx context.Context, rec attendance.Record, exec ...core.DBExecutor) (attendance.Record, error) {
	tbl := &repo.db.attendanceTbl
	tbl.mutex.Lock()
	defer tbl.mutex.Unlock()
	return repo.upsertRecord(rec)
}

// upsertRecord expects the table mutex to be held.
func (repo *attendanceRepository) upsertRecord(rec attendance.Record) (attendance.Record, error) {
	tbl := &repo.db.attendanceTbl

	sess, err := repo.getSession(rec.SessionID)
	if err != nil {
		return attendance.Record{}, err
	}
	if sess.IsLocked() {
		return attendance.Record{}, errors.Wrapf(attendance.ErrSessionLocked, "session %s", sess.Key())
	}

	key := recordKey(rec.SessionID, rec.EnrollmentID)
	if id, ok := tbl.bySessEn[key]; ok {
		rec.ID = id
	} else {
		rec.ID = uuid.New().String()
		tbl.bySessEn[key] = rec.ID
	}
	tbl.records[rec.ID] = rec
	return rec, nil
}

func (repo *attendanceRepository) BulkUpsertRecords(ctx context.Context, sessionID string, recs []attendance.Record, exec ...core.DBExecutor) ([]attendance.Record, error) {
	tbl := &repo.db.attendanceTbl
	tbl.mutex.Lock()
	defer tbl.mutex.Unlock()

	// stage on copies so a failure mid-batch leaves the tables untouched
	staged := make(map[string]attendance.Record, len(recs))
	stagedKeys := make(map[string]string, len(recs))

	sess, err := repo.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	if sess.IsLocked() {
		return nil, errors.Wrapf(attendance.ErrSessionLocked, "session %s", sess.Key())
	}

	out := make([]attendance.Record, 0, len(recs))
	for _, rec := range recs {
		key := recordKey(rec.SessionID, rec.EnrollmentID)
		if id, ok := stagedKeys[key]; ok {
			rec.ID = id
		} else if id, ok := tbl.bySessEn[key]; ok {
			rec.ID = id
		} else {
			rec.ID = uuid.New().String()
		}
		stagedKeys[key] = rec.ID
		staged[rec.ID] = rec
		out = append(out, rec)
	}

	for id, rec := range staged {
		tbl.records[id] = rec
	}
	for key, id := range stagedKeys {
		tbl.bySessEn[key] = id
	}
	return out, nil
}

func (repo *attendanceRepository) GetRecords(ctx context.Context, sessionID string, exec ...core.DBExecutor) ([]attendance.Record, error) {
	tbl := &repo.db.attendanceTbl
	tbl.mutex.RLock()
	defer tbl.mutex.RUnlock()

	recs := make([]attendance.Record, 0)
	for _, rec := range tbl.records {
		if rec.SessionID == sessionID {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].EnrollmentID < recs[j].EnrollmentID })
	return recs, nil
}

func (repo *attendanceRepository) DeleteSessionsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	tbl := &repo.db.attendanceTbl
	tbl.mutex.Lock()
	defer tbl.mutex.Unlock()

	var count int
	for _, id := range ids {
		if _, ok := tbl.sessions[id]; !ok {
			continue
		}
		delete(tbl.sessions, id)
		count++
		for recID, rec := range tbl.records {
			if rec.SessionID == id {
				delete(tbl.records, recID)
				delete(tbl.bySessEn, recordKey(rec.SessionID, rec.EnrollmentID))
			}
		}
	}
	return count, nil
}

func sortSessions(sessions []attendance.Session, ordering []core.DBOrdering) {
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{
			{Field: "class_date", Ascending: true},
			{Field: "seq", Ascending: true},
		}
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		for _, ord := range ordering {
			cmp := compareSessions(&sessions[i], &sessions[j], ord.Field)
			if cmp == 0 {
				continue
			}
			if ord.Ascending {
				return cmp < 0
			}
			return cmp > 0
		}
		return false
	})
}

func compareSessions(a, b *attendance.Session, field string) int {
	switch field {
	case "class_date":
		return compareTimes(a.ClassDate, b.ClassDate)
	case "seq":
		return a.Seq - b.Seq
	case "starts_at":
		return compareTimes(a.StartsAt, b.StartsAt)
	case "created_at":
		return compareTimes(a.CreatedAt, b.CreatedAt)
	}
	return 0
}

func compareTimes(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}
