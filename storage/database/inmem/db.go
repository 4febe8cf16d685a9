// Package inmem provides map-backed repositories with the same semantics as
// the postgres backend. It backs tests and local tinkering; nothing survives
// a restart.
package inmem

import (
	"sync"

	"github.com/makumbi/hudhurio/core/attendance"
	"github.com/makumbi/hudhurio/core/roster"
	"github.com/makumbi/hudhurio/core/staff"
)

type (
	DB struct {
		staffTbl      staffTable
		rosterTbl     rosterTable
		attendanceTbl attendanceTable
	}

	staffTable struct {
		mutex sync.RWMutex
		rows  map[string]staff.Staff // keyed by ID
	}

	rosterTable struct {
		mutex       sync.RWMutex
		assignments map[string]roster.TeachingAssignment // keyed by ID
		enrollments map[string]roster.Enrollment         // keyed by ID
	}

	// attendanceTable holds sessions and their records behind one mutex so a
	// lock and a concurrent mark serialize against each other.
	attendanceTable struct {
		mutex    sync.RWMutex
		sessions map[string]attendance.Session  // keyed by ID
		records  map[string]attendance.Record   // keyed by ID
		bySessEn map[string]string              // (sessionID|enrollmentID) -> record ID
	}
)

func Open() *DB {
	return &DB{
		staffTbl: staffTable{rows: make(map[string]staff.Staff)},
		rosterTbl: rosterTable{
			assignments: make(map[string]roster.TeachingAssignment),
			enrollments: make(map[string]roster.Enrollment),
		},
		attendanceTbl: attendanceTable{
			sessions: make(map[string]attendance.Session),
			records:  make(map[string]attendance.Record),
			bySessEn: make(map[string]string),
		},
	}
}

func recordKey(sessionID, enrollmentID string) string {
	return sessionID + "|" + enrollmentID
}

// SaveAssignment seeds a teaching assignment, for fixtures.
func (db *DB) SaveAssignment(asg roster.TeachingAssignment) {
	db.rosterTbl.mutex.Lock()
	defer db.rosterTbl.mutex.Unlock()
	db.rosterTbl.assignments[asg.ID] = asg
}

// SaveEnrollment seeds an enrollment, for fixtures.
func (db *DB) SaveEnrollment(enr roster.Enrollment) {
	db.rosterTbl.mutex.Lock()
	defer db.rosterTbl.mutex.Unlock()
	db.rosterTbl.enrollments[enr.ID] = enr
}
