package roster

import (
	"context"

	"github.com/pkg/errors"
)

var (
	// errors
	ErrAssignmentNotFound = errors.New("teaching assignment not found")
)

type (
	// TeachingAssignment binds a teacher to a group and subject for a period.
	TeachingAssignment struct {
		ID        string `json:"id" db:"id"`
		TeacherID string `json:"teacher_id" db:"teacher_id"`
		GroupID   string `json:"group_id" db:"group_id"`
		SubjectID string `json:"subject_id" db:"subject_id"`
		PeriodID  string `json:"period_id" db:"period_id"`
	}

	// Enrollment is a student's membership in a group for a period.
	// ListOrder is the position the student appears at on the printed
	// roll-call list; it is the canonical ordering for attendance records.
	Enrollment struct {
		ID        string `json:"id" db:"id"`
		StudentID string `json:"student_id" db:"student_id"`
		GroupID   string `json:"group_id" db:"group_id"`
		PeriodID  string `json:"period_id" db:"period_id"`
		ListOrder int    `json:"list_order" db:"list_order"`
	}

	// Directory resolves assignments and group memberships. It is the
	// boundary to the enrollment subsystem; the attendance core only reads
	// from it.
	Directory interface {
		GetAssignment(ctx context.Context, id string) (TeachingAssignment, error)
		// ListEnrollments returns the members of (group, period) ordered by
		// ListOrder then ID.
		ListEnrollments(ctx context.Context, groupID, periodID string) ([]Enrollment, error)
	}
)
