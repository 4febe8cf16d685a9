package attendance

import (
	"context"
	"fmt"
	"net/mail"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/makumbi/hudhurio/core"
	"github.com/makumbi/hudhurio/core/access"
	"github.com/makumbi/hudhurio/core/roster"
	"github.com/makumbi/hudhurio/core/staff"
)

var (
	// errors
	ErrNotFound           = errors.New("session not found")
	ErrDuplicateSession   = errors.New("a session already exists for this assignment, period, date and sequence")
	ErrAlreadyLocked      = errors.New("session is already locked")
	ErrSessionLocked      = errors.New("session is locked")
	ErrEnrollmentMismatch = errors.New("enrollment does not belong to the session's group and period")
	ErrInvalidTransition  = errors.New("arrival within the grace window cannot be marked late")
)

const defaultTardyGrace = 10 * time.Minute

type (
	Repository interface {
		// CreateSession persists a new open session; the storage layer
		// enforces the (assignment, period, class date, seq) uniqueness and
		// returns ErrDuplicateSession on conflict.
		CreateSession(ctx context.Context, sess Session, exec ...core.DBExecutor) (Session, error)
		GetSession(ctx context.Context, id string, exec ...core.DBExecutor) (Session, error)
		QuerySessions(ctx context.Context, filter *SessionFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Session, error)
		// LockSession sets lockedAt iff the session is still open; the lock
		// state is re-validated by the write itself so a concurrent lock
		// loses with ErrAlreadyLocked.
		LockSession(ctx context.Context, id string, lockedAt time.Time, exec ...core.DBExecutor) (Session, error)
		// UpsertRecord writes a record iff its session is still open
		// (ErrSessionLocked otherwise). Last write wins.
		UpsertRecord(ctx context.Context, rec Record, exec ...core.DBExecutor) (Record, error)
		// BulkUpsertRecords applies all records in a single transaction;
		// either every record is written or none are.
		BulkUpsertRecords(ctx context.Context, sessionID string, recs []Record, exec ...core.DBExecutor) ([]Record, error)
		GetRecords(ctx context.Context, sessionID string, exec ...core.DBExecutor) ([]Record, error)
		// DeleteSessionsByID removes sessions and, by ownership, their records.
		DeleteSessionsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)
	}

	Service interface {
		Open(ctx context.Context, p access.Principal, ns NewSession) (Session, error)
		Lock(ctx context.Context, p access.Principal, sessionID string) (Session, error)
		Query(ctx context.Context, p access.Principal, filter *SessionFilter, ordering ...core.DBOrdering) ([]Session, error)
		Mark(ctx context.Context, p access.Principal, sessionID string, e Entry) (Record, error)
		BulkMark(ctx context.Context, p access.Principal, sessionID string, entries []Entry) ([]Record, error)
		Records(ctx context.Context, p access.Principal, sessionID string) ([]Record, error)
		// Delete removes sessions opened in error, along with their records.
		// Admin only; returns the number of sessions removed.
		Delete(ctx context.Context, p access.Principal, ids ...string) (int, error)
	}

	service struct {
		repo     Repository
		dir      roster.Directory
		staffSvc staff.Service
		mailSvc  core.EmailService
		logger   core.Logger
		grace    time.Duration
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	dir roster.Directory,
	staffSvc staff.Service,
	mailSvc core.EmailService,
	logger core.Logger,
	conf *core.Config,
) Service {
	grace := conf.Attendance.TardyGrace
	if grace <= 0 {
		grace = defaultTardyGrace
	}
	return &service{
		repo:     repo,
		dir:      dir,
		staffSvc: staffSvc,
		mailSvc:  mailSvc,
		logger:   logger,
		grace:    grace,
	}
}

func (svc *service) Open(ctx context.Context, p access.Principal, ns NewSession) (Session, error) {
	classDate, err := time.Parse(ClassDateLayout, core.CleanString(ns.ClassDate))
	if err != nil {
		return Session{}, core.NewValidationError(err,
			core.FieldError{Field: "class_date", Error: "must be a valid date in 2006-01-02 format"})
	}
	asg, err := svc.dir.GetAssignment(ctx, ns.AssignmentID)
	if err != nil {
		if errors.Cause(err) == roster.ErrAssignmentNotFound {
			return Session{}, core.NewValidationError(err,
				core.FieldError{Field: "assignment_id", Error: roster.ErrAssignmentNotFound.Error()})
		}
		return Session{}, errors.Wrap(err, "resolving assignment")
	}
	if ns.PeriodID != asg.PeriodID {
		return Session{}, core.NewValidationError(nil,
			core.FieldError{Field: "period_id", Error: "assignment does not teach in this period"})
	}
	if err = access.Authorize(p, access.OpenSession, &asg); err != nil {
		return Session{}, err
	}

	seq := ns.Seq
	if seq == 0 {
		seq = 1
	}
	now := time.Now().UTC()
	sess := Session{
		AssignmentID: asg.ID,
		PeriodID:     ns.PeriodID,
		ClassDate:    classDate,
		Seq:          seq,
		StartsAt:     ns.StartsAt.UTC(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	created, err := svc.repo.CreateSession(ctx, sess)
	if err != nil {
		if errors.Cause(err) == ErrDuplicateSession {
			return Session{}, errors.Wrapf(err, "session %s", sess.Key())
		}
		return Session{}, errors.Wrap(err, "creating session")
	}
	return created, nil
}

func (svc *service) Lock(ctx context.Context, p access.Principal, sessionID string) (Session, error) {
	sess, err := svc.repo.GetSession(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}
	if sess.IsLocked() {
		return Session{}, errors.Wrapf(ErrAlreadyLocked, "session %s", sess.Key())
	}
	asg, err := svc.dir.GetAssignment(ctx, sess.AssignmentID)
	if err != nil {
		return Session{}, errors.Wrap(err, "resolving assignment")
	}
	if err = access.Authorize(p, access.LockSession, &asg); err != nil {
		return Session{}, err
	}

	locked, err := svc.repo.LockSession(ctx, sess.ID, time.Now().UTC())
	if err != nil {
		return Session{}, err
	}
	svc.sendLockSummary(ctx, locked, asg)
	return locked, nil
}

func (svc *service) Query(ctx context.Context, p access.Principal, filter *SessionFilter, ordering ...core.DBOrdering) ([]Session, error) {
	if err := access.Authorize(p, access.ReadSessions, nil); err != nil {
		return nil, err
	}
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{
			{Field: "class_date", Ascending: true},
			{Field: "seq", Ascending: true},
		}
	}
	return svc.repo.QuerySessions(ctx, filter, ordering)
}

func (svc *service) Mark(ctx context.Context, p access.Principal, sessionID string, e Entry) (Record, error) {
	sess, _, members, err := svc.sessionForWrite(ctx, p, sessionID)
	if err != nil {
		return Record{}, err
	}
	rec, err := svc.buildRecord(&sess, members, e)
	if err != nil {
		return Record{}, err
	}
	return svc.repo.UpsertRecord(ctx, rec)
}

func (svc *service) BulkMark(ctx context.Context, p access.Principal, sessionID string, entries []Entry) ([]Record, error) {
	sess, _, members, err := svc.sessionForWrite(ctx, p, sessionID)
	if err != nil {
		return nil, err
	}

	// validate in input order; the first failure aborts before any write
	recs := make([]Record, 0, len(entries))
	for i := range entries {
		rec, err := svc.buildRecord(&sess, members, entries[i])
		if err != nil {
			return nil, errors.Wrapf(err, "entry %d", i)
		}
		recs = append(recs, rec)
	}
	return svc.repo.BulkUpsertRecords(ctx, sess.ID, recs)
}

func (svc *service) Records(ctx context.Context, p access.Principal, sessionID string) ([]Record, error) {
	if err := access.Authorize(p, access.ReadSessions, nil); err != nil {
		return nil, err
	}
	sess, err := svc.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	asg, err := svc.dir.GetAssignment(ctx, sess.AssignmentID)
	if err != nil {
		return nil, errors.Wrap(err, "resolving assignment")
	}
	enrs, err := svc.dir.ListEnrollments(ctx, asg.GroupID, sess.PeriodID)
	if err != nil {
		return nil, errors.Wrap(err, "listing enrollments")
	}
	recs, err := svc.repo.GetRecords(ctx, sess.ID)
	if err != nil {
		return nil, err
	}

	// order by the roster listing so roll-call UIs render consistently
	byEnrollment := make(map[string]Record, len(recs))
	for _, rec := range recs {
		byEnrollment[rec.EnrollmentID] = rec
	}
	ordered := make([]Record, 0, len(recs))
	for _, enr := range enrs {
		if rec, ok := byEnrollment[enr.ID]; ok {
			ordered = append(ordered, rec)
			delete(byEnrollment, enr.ID)
		}
	}
	// records whose enrollment has since left the roster go last
	rest := make([]Record, 0, len(byEnrollment))
	for _, rec := range byEnrollment {
		rest = append(rest, rec)
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i].EnrollmentID < rest[j].EnrollmentID })
	return append(ordered, rest...), nil
}

func (svc *service) Delete(ctx context.Context, p access.Principal, ids ...string) (int, error) {
	if err := access.Authorize(p, access.DeleteSession, nil); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	return svc.repo.DeleteSessionsByID(ctx, ids)
}

// sessionForWrite resolves the session and performs the write-side checks
// shared by Mark and BulkMark, in order: existence, lock state,
// authorization, roster membership set.
func (svc *service) sessionForWrite(
	ctx context.Context, p access.Principal, sessionID string,
) (Session, roster.TeachingAssignment, map[string]roster.Enrollment, error) {
	var asg roster.TeachingAssignment

	sess, err := svc.repo.GetSession(ctx, sessionID)
	if err != nil {
		return Session{}, asg, nil, err
	}
	if sess.IsLocked() {
		return Session{}, asg, nil, errors.Wrapf(ErrSessionLocked, "session %s", sess.Key())
	}
	asg, err = svc.dir.GetAssignment(ctx, sess.AssignmentID)
	if err != nil {
		return Session{}, asg, nil, errors.Wrap(err, "resolving assignment")
	}
	if err = access.Authorize(p, access.MarkAttendance, &asg); err != nil {
		return Session{}, asg, nil, err
	}
	enrs, err := svc.dir.ListEnrollments(ctx, asg.GroupID, sess.PeriodID)
	if err != nil {
		return Session{}, asg, nil, errors.Wrap(err, "listing enrollments")
	}
	members := make(map[string]roster.Enrollment, len(enrs))
	for _, enr := range enrs {
		members[enr.ID] = enr
	}
	return sess, asg, members, nil
}

func (svc *service) buildRecord(sess *Session, members map[string]roster.Enrollment, e Entry) (Record, error) {
	if _, ok := members[e.EnrollmentID]; !ok {
		return Record{}, errors.Wrapf(ErrEnrollmentMismatch, "enrollment %s, session %s", e.EnrollmentID, sess.Key())
	}
	if !e.Status.Valid() {
		return Record{}, core.NewValidationError(errors.Errorf("invalid status %q", e.Status),
			core.FieldError{Field: "status", Error: statusText})
	}

	rec := Record{
		SessionID:    sess.ID,
		EnrollmentID: e.EnrollmentID,
		Status:       e.Status,
		MarkedAt:     e.OccurredAt.UTC(),
	}
	if e.Status == StatusLate {
		deadline := sess.StartsAt.Add(svc.grace)
		// a LATE mark at or before startsAt+grace means the student was on
		// time; reject it instead of recording a bogus tardy
		if !e.OccurredAt.After(deadline) {
			return Record{}, errors.Wrapf(ErrInvalidTransition, "enrollment %s: %s is not after %s",
				e.EnrollmentID, e.OccurredAt.UTC().Format(time.RFC3339), deadline.UTC().Format(time.RFC3339))
		}
		rec.TardyAt = null.TimeFrom(e.OccurredAt.UTC())
	}
	return rec, nil
}

// sendLockSummary mails the assignment's teacher a digest of the closed
// session. Best effort: failures are logged, never surfaced.
func (svc *service) sendLockSummary(ctx context.Context, sess Session, asg roster.TeachingAssignment) {
	if svc.mailSvc == nil || svc.staffSvc == nil {
		return
	}
	teacher, err := svc.staffSvc.GetByID(ctx, asg.TeacherID)
	if err != nil || teacher.Email == "" {
		if err != nil && svc.logger != nil {
			svc.logger.Warn(fmt.Sprintf("lock summary: finding teacher %s: %v", asg.TeacherID, err))
		}
		return
	}
	recs, err := svc.repo.GetRecords(ctx, sess.ID)
	if err != nil {
		if svc.logger != nil {
			svc.logger.Warn(fmt.Sprintf("lock summary: listing records for session %s: %v", sess.ID, err))
		}
		return
	}

	counts := make(map[Status]int, len(Statuses))
	for _, rec := range recs {
		counts[rec.Status]++
	}
	body := fmt.Sprintf("Roll call for %s (sequence %d) is now locked.\n\n", sess.ClassDate.Format(ClassDateLayout), sess.Seq)
	for _, st := range Statuses {
		body += fmt.Sprintf("%s: %d\n", st, counts[st])
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:          []mail.Address{{Name: teacher.Name, Address: teacher.Email}},
		Subject:     fmt.Sprintf("Roll call locked: %s seq %d", sess.ClassDate.Format(ClassDateLayout), sess.Seq),
		TextContent: body,
	})
}
