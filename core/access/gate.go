// Package access is the write-authorization gate shared by the attendance
// session and record operations. It is a pure predicate over the caller's
// role claims; callers surface the returned error, a denial is never
// swallowed.
package access

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/makumbi/hudhurio/core/roster"
	"github.com/makumbi/hudhurio/core/staff"
)

var ErrForbidden = errors.New("permission denied")

// Principal is an authenticated caller as asserted by the identity
// provider. A zero StaffID means the caller is not authenticated.
type Principal struct {
	StaffID string
	Roles   []string
}

func (p Principal) Authenticated() bool { return p.StaffID != "" }

func (p Principal) roleStartsWith(prefix string) bool {
	for _, role := range p.Roles {
		if strings.HasPrefix(role, prefix) {
			return true
		}
	}
	return false
}

func (p Principal) IsAdmin() bool       { return p.roleStartsWith(staff.RoleAdmin) }
func (p Principal) IsCoordinator() bool { return p.roleStartsWith(staff.RoleCoordinator) }
func (p Principal) IsTeacher() bool     { return p.roleStartsWith(staff.RoleTeacher) }

type Action int

const (
	ReadSessions Action = iota
	OpenSession
	LockSession
	MarkAttendance
	DeleteSession
)

func (a Action) String() string {
	switch a {
	case ReadSessions:
		return "read-sessions"
	case OpenSession:
		return "open-session"
	case LockSession:
		return "lock-session"
	case MarkAttendance:
		return "mark-attendance"
	case DeleteSession:
		return "delete-session"
	}
	return "unknown"
}

func (a Action) isWrite() bool { return a != ReadSessions }

// Authorize reports whether p may perform action against the session's
// teaching assignment. Reads are open to any authenticated principal;
// writes require an admin or coordinator role, or the teacher role when p
// is the assignment's own teacher. Deleting a session destroys its records,
// so only admins may do it.
func Authorize(p Principal, action Action, asg *roster.TeachingAssignment) error {
	if !p.Authenticated() {
		return errors.Wrapf(ErrForbidden, "%s: not authenticated", action)
	}
	if !action.isWrite() {
		return nil
	}
	if action == DeleteSession {
		if p.IsAdmin() {
			return nil
		}
		return errors.Wrapf(ErrForbidden, "%s: staff %s", action, p.StaffID)
	}
	if p.IsAdmin() || p.IsCoordinator() {
		return nil
	}
	if p.IsTeacher() && asg != nil && asg.TeacherID == p.StaffID {
		return nil
	}
	return errors.Wrapf(ErrForbidden, "%s: staff %s", action, p.StaffID)
}
