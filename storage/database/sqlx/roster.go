package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/makumbi/hudhurio/core/roster"
)

const (
	getAssignmentSQL = `
		SELECT id, teacher_id, group_id, subject_id, period_id
		FROM teaching_assignment WHERE id = $1`

	listEnrollmentsSQL = `
		SELECT id, student_id, group_id, period_id, list_order
		FROM enrollment WHERE group_id = $1 AND period_id = $2
		ORDER BY list_order, id`
)

type rosterDirectory struct {
	db *sqlx.DB
}

var _ roster.Directory = (*rosterDirectory)(nil) // interface compliance check

func NewRosterDirectory(db *sqlx.DB) *rosterDirectory {
	return &rosterDirectory{db: db}
}

func (dir rosterDirectory) GetAssignment(ctx context.Context, id string) (roster.TeachingAssignment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return roster.TeachingAssignment{}, roster.ErrAssignmentNotFound
	}
	var asg roster.TeachingAssignment
	if err := sqlx.GetContext(ctx, dir.db, &asg, getAssignmentSQL, id); err != nil {
		if err == sql.ErrNoRows {
			return roster.TeachingAssignment{}, roster.ErrAssignmentNotFound
		}
		return roster.TeachingAssignment{}, errors.Wrap(err, "finding assignment by ID")
	}
	return asg, nil
}

func (dir rosterDirectory) ListEnrollments(ctx context.Context, groupID, periodID string) ([]roster.Enrollment, error) {
	enrs := make([]roster.Enrollment, 0)
	if err := sqlx.SelectContext(ctx, dir.db, &enrs, listEnrollmentsSQL, groupID, periodID); err != nil {
		return nil, errors.Wrap(err, "listing enrollments")
	}
	return enrs, nil
}
