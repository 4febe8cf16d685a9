package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/makumbi/hudhurio/core/roster"
	"github.com/makumbi/hudhurio/core/staff"
	"github.com/makumbi/hudhurio/storage/database/inmem"
)

func CreateStaff(
	t *testing.T,
	repo staff.Repository,
	name, uname, email, pwd string,
	roles []string,
) staff.Staff {
	t.Helper()

	stf := staff.Staff{
		Name:     name,
		Username: uname,
		Email:    email,
		Roles:    roles,
	}
	stf.SetActive(true)
	if pwd != "" {
		if err := stf.SetPassword(pwd); err != nil {
			t.Fatalf("CreateStaff() failed: %v", err)
		}
	}
	stf, err := repo.CreateStaff(context.Background(), stf)
	if err != nil {
		t.Fatalf("CreateStaff() failed: %v", err)
	}
	return stf
}

// SeedAssignment registers a teaching assignment with a fresh ID.
func SeedAssignment(t *testing.T, db *inmem.DB, teacherID, groupID, periodID string) roster.TeachingAssignment {
	t.Helper()

	asg := roster.TeachingAssignment{
		ID:        uuid.New().String(),
		TeacherID: teacherID,
		GroupID:   groupID,
		SubjectID: uuid.New().String(),
		PeriodID:  periodID,
	}
	db.SaveAssignment(asg)
	return asg
}

// SeedEnrollments registers n enrollments in (group, period), list-ordered
// in creation order.
func SeedEnrollments(t *testing.T, db *inmem.DB, groupID, periodID string, n int) []roster.Enrollment {
	t.Helper()

	enrs := make([]roster.Enrollment, 0, n)
	for i := 0; i < n; i++ {
		enr := roster.Enrollment{
			ID:        uuid.New().String(),
			StudentID: uuid.New().String(),
			GroupID:   groupID,
			PeriodID:  periodID,
			ListOrder: i + 1,
		}
		db.SaveEnrollment(enr)
		enrs = append(enrs, enr)
	}
	return enrs
}

// Date returns a UTC midnight timestamp for a class date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
