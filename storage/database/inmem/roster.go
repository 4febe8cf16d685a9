package inmem

import (
	"context"
	"sort"

	"github.com/makumbi/hudhurio/core/roster"
)

type rosterDirectory struct {
	db *DB
}

var _ roster.Directory = (*rosterDirectory)(nil) // interface compliance check

func NewRosterDirectory(db *DB) *rosterDirectory {
	return &rosterDirectory{db: db}
}

func (dir *rosterDirectory) GetAssignment(ctx context.Context, id string) (roster.TeachingAssignment, error) {
	tbl := &dir.db.rosterTbl
	tbl.mutex.RLock()
	defer tbl.mutex.RUnlock()

	asg, ok := tbl.assignments[id]
	if !ok {
		return roster.TeachingAssignment{}, roster.ErrAssignmentNotFound
	}
	return asg, nil
}

func (dir *rosterDirectory) ListEnrollments(ctx context.Context, groupID, periodID string) ([]roster.Enrollment, error) {
	tbl := &dir.db.rosterTbl
	tbl.mutex.RLock()
	defer tbl.mutex.RUnlock()

	enrs := make([]roster.Enrollment, 0)
	for _, enr := range tbl.enrollments {
		if enr.GroupID == groupID && enr.PeriodID == periodID {
			enrs = append(enrs, enr)
		}
	}
	sort.Slice(enrs, func(i, j int) bool {
		if enrs[i].ListOrder != enrs[j].ListOrder {
			return enrs[i].ListOrder < enrs[j].ListOrder
		}
		return enrs[i].ID < enrs[j].ID
	})
	return enrs, nil
}
