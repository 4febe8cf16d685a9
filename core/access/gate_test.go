package access

import (
	"testing"

	"github.com/pkg/errors"

	"github.com/makumbi/hudhurio/core/roster"
	"github.com/makumbi/hudhurio/core/staff"
)

func TestAuthorize(t *testing.T) {
	asg := roster.TeachingAssignment{
		ID:        "asg1",
		TeacherID: "t1",
		GroupID:   "g1",
		SubjectID: "s1",
		PeriodID:  "p1",
	}

	anon := Principal{}
	admin := Principal{StaffID: "a1", Roles: []string{staff.RoleAdmin}}
	superAdmin := Principal{StaffID: "a2", Roles: []string{staff.RoleAdminSuper}}
	coordinator := Principal{StaffID: "c1", Roles: []string{staff.RoleCoordinator}}
	secretary := Principal{StaffID: "s1", Roles: []string{staff.RoleSecretary}}
	ownTeacher := Principal{StaffID: "t1", Roles: []string{staff.RoleTeacher}}
	otherTeacher := Principal{StaffID: "t2", Roles: []string{staff.RoleTeacher}}

	tests := []struct {
		name    string
		p       Principal
		action  Action
		asg     *roster.TeachingAssignment
		wantErr bool
	}{
		{name: "anonymous cannot read", p: anon, action: ReadSessions, wantErr: true},
		{name: "anonymous cannot write", p: anon, action: OpenSession, asg: &asg, wantErr: true},
		{name: "any authenticated staff can read", p: secretary, action: ReadSessions},
		{name: "admin can open", p: admin, action: OpenSession, asg: &asg},
		{name: "super admin can lock", p: superAdmin, action: LockSession, asg: &asg},
		{name: "coordinator can mark", p: coordinator, action: MarkAttendance, asg: &asg},
		{name: "secretary cannot open", p: secretary, action: OpenSession, asg: &asg, wantErr: true},
		{name: "own teacher can open", p: ownTeacher, action: OpenSession, asg: &asg},
		{name: "own teacher can lock", p: ownTeacher, action: LockSession, asg: &asg},
		{name: "own teacher can mark", p: ownTeacher, action: MarkAttendance, asg: &asg},
		{name: "other teacher cannot open", p: otherTeacher, action: OpenSession, asg: &asg, wantErr: true},
		{name: "other teacher cannot mark", p: otherTeacher, action: MarkAttendance, asg: &asg, wantErr: true},
		{name: "teacher without assignment cannot write", p: ownTeacher, action: LockSession, wantErr: true},
		{name: "admin can delete", p: admin, action: DeleteSession},
		{name: "coordinator cannot delete", p: coordinator, action: DeleteSession, asg: &asg, wantErr: true},
		{name: "own teacher cannot delete", p: ownTeacher, action: DeleteSession, asg: &asg, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Authorize(tt.p, tt.action, tt.asg)
			if tt.wantErr {
				if errors.Cause(err) != ErrForbidden {
					t.Errorf("Authorize() error = %v, want ErrForbidden", err)
				}
			} else if err != nil {
				t.Errorf("Authorize() unexpected error = %v", err)
			}
		})
	}
}

func TestPrincipal_roles(t *testing.T) {
	p := Principal{StaffID: "x", Roles: []string{staff.RoleAdminSuper, staff.RoleTeacher}}
	if !p.IsAdmin() {
		t.Error("IsAdmin() = false, want true")
	}
	if !p.IsTeacher() {
		t.Error("IsTeacher() = false, want true")
	}
	if p.IsCoordinator() {
		t.Error("IsCoordinator() = true, want false")
	}
	if (Principal{}).Authenticated() {
		t.Error("Authenticated() = true for zero principal")
	}
}
