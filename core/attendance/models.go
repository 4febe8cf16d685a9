package attendance

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/makumbi/hudhurio/core"
)

// ClassDateLayout is the wire format for class dates.
const ClassDateLayout = "2006-01-02"

// Status is a student's attendance outcome within a session.
type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
	StatusLate    Status = "late"
	StatusExcused Status = "excused"
)

var Statuses = []Status{StatusPresent, StatusAbsent, StatusLate, StatusExcused}

func (s Status) Valid() bool {
	for _, st := range Statuses {
		if s == st {
			return true
		}
	}
	return false
}

type (
	// Session is one roll-call event for an assignment/period/date/sequence.
	// It is OPEN until LockedAt is set; locking is terminal.
	Session struct {
		ID           string    `json:"id" db:"id"`
		AssignmentID string    `json:"assignment_id" db:"assignment_id"`
		PeriodID     string    `json:"period_id" db:"period_id"`
		ClassDate    time.Time `json:"class_date" db:"class_date"` // date only, UTC midnight
		Seq          int       `json:"seq" db:"seq"`
		StartsAt     time.Time `json:"starts_at" db:"starts_at"`
		LockedAt     null.Time `json:"locked_at" db:"locked_at"`
		CreatedAt    time.Time `json:"created_at" db:"created_at"` // UTC
		UpdatedAt    time.Time `json:"updated_at" db:"updated_at"` // UTC
	}

	// Record is one student's attendance outcome within a session. One per
	// (session, enrollment); overwritten on re-mark, frozen once the
	// session locks.
	Record struct {
		ID           string    `json:"id" db:"id"`
		SessionID    string    `json:"session_id" db:"session_id"`
		EnrollmentID string    `json:"enrollment_id" db:"enrollment_id"`
		Status       Status    `json:"status" db:"status"`
		TardyAt      null.Time `json:"tardy_at" db:"tardy_at"`
		MarkedAt     time.Time `json:"marked_at" db:"marked_at"` // UTC
	}
)

func (s *Session) IsLocked() bool { return s.LockedAt.Valid }

// Key renders the session's natural uniqueness key, for error context.
func (s *Session) Key() string {
	return fmt.Sprintf("%s/%s/%s/%d", s.AssignmentID, s.PeriodID, s.ClassDate.Format(ClassDateLayout), s.Seq)
}

func (r *Record) IsTardy() bool { return r.TardyAt.Valid }

// NewSession contains information needed to open a Session.
type NewSession struct {
	AssignmentID string    `json:"assignment_id" validate:"required"`
	PeriodID     string    `json:"period_id" validate:"required"`
	ClassDate    string    `json:"class_date" validate:"required,datetime=2006-01-02"`
	Seq          int       `json:"seq" validate:"omitempty,min=1"`
	StartsAt     time.Time `json:"starts_at" validate:"required"`
}

func (ns *NewSession) Validate(validate *validator.Validate) error {
	ns.AssignmentID = core.CleanString(ns.AssignmentID)
	ns.PeriodID = core.CleanString(ns.PeriodID)
	ns.ClassDate = core.CleanString(ns.ClassDate)
	return validate.Struct(ns)
}

// Entry is a single attendance mark for an enrollment.
type Entry struct {
	EnrollmentID string    `json:"enrollment_id" validate:"required"`
	Status       Status    `json:"status" validate:"required,attstatus"`
	OccurredAt   time.Time `json:"occurred_at" validate:"required"`
}

func (e *Entry) Validate(validate *validator.Validate) error {
	e.EnrollmentID = core.CleanString(e.EnrollmentID)
	return validate.Struct(e)
}

// BulkEntries is the payload of a bulk mark; applied all-or-nothing.
type BulkEntries struct {
	Entries []Entry `json:"entries" validate:"required,min=1,dive"`
}

func (be *BulkEntries) Validate(validate *validator.Validate) error {
	for i := range be.Entries {
		be.Entries[i].EnrollmentID = core.CleanString(be.Entries[i].EnrollmentID)
	}
	return validate.Struct(be)
}

// SessionFilter narrows a session listing. Zero fields are ignored.
type SessionFilter struct {
	AssignmentID string
	PeriodID     string
	ClassDate    time.Time
}

func (sf *SessionFilter) IsEmpty() bool {
	return sf.AssignmentID == "" && sf.PeriodID == "" && sf.ClassDate.IsZero()
}
