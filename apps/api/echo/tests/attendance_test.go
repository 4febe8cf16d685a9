package tests

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/makumbi/hudhurio/core/attendance"
	"github.com/makumbi/hudhurio/core/roster"
	"github.com/makumbi/hudhurio/core/staff"
	testutil "github.com/makumbi/hudhurio/tests"
)

type roll struct {
	teacher staff.Staff
	asg     roster.TeachingAssignment
	enrs    []roster.Enrollment
}

// seedRoll creates a teacher with their own assignment and a 3-student group.
func seedRoll(t *testing.T, uname string) roll {
	t.Helper()

	teacher := testutil.CreateStaff(t, staffRepo, "Teacher "+uname, uname, uname+"@school.test", "", []string{staff.RoleTeacher})
	groupID, periodID := uuid.New().String(), uuid.New().String()
	asg := testutil.SeedAssignment(t, db, teacher.ID, groupID, periodID)
	enrs := testutil.SeedEnrollments(t, db, groupID, periodID, 3)
	return roll{teacher: teacher, asg: asg, enrs: enrs}
}

func newSessionBody(t *testing.T, asg roster.TeachingAssignment, date string, seq int) []byte {
	return marshallObj(t, attendance.NewSession{
		AssignmentID: asg.ID,
		PeriodID:     asg.PeriodID,
		ClassDate:    date,
		Seq:          seq,
		StartsAt:     testutil.Date(2021, time.March, 15).Add(8 * time.Hour),
	})
}

func openSession(t *testing.T, r roll, date string, seq int) attendance.Session {
	t.Helper()

	req, rec := newAuthRequest(http.MethodPost, "/v1/sessions", getToken(t, r.teacher), newSessionBody(t, r.asg, date, seq))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("openSession() code = %d, body = %s", rec.Code, rec.Body.String())
	}
	var sess attendance.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &sess); err != nil {
		t.Fatalf("openSession() unmarshal: %v", err)
	}
	return sess
}

func entryBody(t *testing.T, enrID string, status attendance.Status, occurredAt time.Time) []byte {
	return marshallObj(t, attendance.Entry{
		EnrollmentID: enrID,
		Status:       status,
		OccurredAt:   occurredAt,
	})
}

func Test_attendanceApi_open(t *testing.T) {
	r := seedRoll(t, "open-t")
	other := testutil.CreateStaff(t, staffRepo, "Other", "open-other", "open-other@school.test", "", []string{staff.RoleTeacher})
	secretary := testutil.CreateStaff(t, staffRepo, "Sec", "open-sec", "open-sec@school.test", "", []string{staff.RoleSecretary})

	body := func(date string, seq int) []byte { return newSessionBody(t, r.asg, date, seq) }

	// seed the duplicate
	openSession(t, r, "2021-03-01", 1)

	tests := []httpTest{
		{
			name: "Auth required", method: http.MethodPost, path: "/v1/sessions", body: body("2021-03-02", 1),
			wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken),
		},
		{
			name: "Own teacher opens", method: http.MethodPost, path: "/v1/sessions", body: body("2021-03-03", 1),
			token: getToken(t, r.teacher), wantCode: http.StatusCreated,
		},
		{
			name: "Duplicate key conflicts", method: http.MethodPost, path: "/v1/sessions", body: body("2021-03-01", 1),
			token: getToken(t, r.teacher), wantCode: http.StatusConflict,
		},
		{
			name: "Other teacher is denied", method: http.MethodPost, path: "/v1/sessions", body: body("2021-03-04", 1),
			token: getToken(t, other), wantCode: http.StatusForbidden,
		},
		{
			name: "Secretary is denied", method: http.MethodPost, path: "/v1/sessions", body: body("2021-03-05", 1),
			token: getToken(t, secretary), wantCode: http.StatusForbidden,
		},
		{
			name: "Bad class date", method: http.MethodPost, path: "/v1/sessions",
			body:  marshallObj(t, map[string]interface{}{"assignment_id": r.asg.ID, "period_id": r.asg.PeriodID, "class_date": "15/03/2021", "starts_at": time.Now()}),
			token: getToken(t, r.teacher), wantCode: http.StatusBadRequest,
		},
		{
			name: "Missing fields", method: http.MethodPost, path: "/v1/sessions", body: []byte(`{}`),
			token: getToken(t, r.teacher), wantCode: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_attendanceApi_lock(t *testing.T) {
	r := seedRoll(t, "lock-t")
	sess := openSession(t, r, "2021-03-01", 1)
	other := testutil.CreateStaff(t, staffRepo, "Other", "lock-other", "lock-other@school.test", "", []string{staff.RoleTeacher})
	admin := testutil.CreateStaff(t, staffRepo, "Admin", "lock-admin", "lock-admin@school.test", "", []string{staff.RoleAdmin})

	lockPath := func(id string) string { return fmt.Sprintf("/v1/sessions/%s/lock", id) }

	tests := []httpTest{
		{
			name: "Auth required", method: http.MethodPost, path: lockPath(sess.ID),
			wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken),
		},
		{
			name: "Unknown session", method: http.MethodPost, path: lockPath(uuid.New().String()),
			token: getToken(t, admin), wantCode: http.StatusNotFound,
		},
		{
			name: "Other teacher is denied", method: http.MethodPost, path: lockPath(sess.ID),
			token: getToken(t, other), wantCode: http.StatusForbidden,
		},
		{
			name: "Own teacher locks", method: http.MethodPost, path: lockPath(sess.ID),
			token: getToken(t, r.teacher), wantCode: http.StatusOK,
		},
		{
			name: "Lock is terminal", method: http.MethodPost, path: lockPath(sess.ID),
			token: getToken(t, admin), wantCode: http.StatusConflict,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_attendanceApi_mark(t *testing.T) {
	r := seedRoll(t, "mark-t")
	sess := openSession(t, r, "2021-03-01", 1)
	locked := openSession(t, r, "2021-03-02", 1)
	admin := testutil.CreateStaff(t, staffRepo, "Admin", "mark-admin", "mark-admin@school.test", "", []string{staff.RoleAdmin})

	// lock the second session up front
	req, rec := newAuthRequest(http.MethodPost, fmt.Sprintf("/v1/sessions/%s/lock", locked.ID), getToken(t, admin))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("lock failed: %d %s", rec.Code, rec.Body.String())
	}

	markPath := func(id string) string { return fmt.Sprintf("/v1/sessions/%s/records", id) }
	onTime := sess.StartsAt
	late := sess.StartsAt.Add(15 * time.Minute)

	tests := []httpTest{
		{
			name: "Auth required", method: http.MethodPut, path: markPath(sess.ID),
			body:     entryBody(t, r.enrs[0].ID, attendance.StatusPresent, onTime),
			wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken),
		},
		{
			name: "Present", method: http.MethodPut, path: markPath(sess.ID),
			body:  entryBody(t, r.enrs[0].ID, attendance.StatusPresent, onTime),
			token: getToken(t, r.teacher), wantCode: http.StatusOK,
		},
		{
			name: "Re-mark wins", method: http.MethodPut, path: markPath(sess.ID),
			body:  entryBody(t, r.enrs[0].ID, attendance.StatusExcused, onTime),
			token: getToken(t, admin), wantCode: http.StatusOK,
		},
		{
			name: "Late past grace", method: http.MethodPut, path: markPath(sess.ID),
			body:  entryBody(t, r.enrs[1].ID, attendance.StatusLate, late),
			token: getToken(t, r.teacher), wantCode: http.StatusOK,
		},
		{
			name: "Late within grace", method: http.MethodPut, path: markPath(sess.ID),
			body:  entryBody(t, r.enrs[2].ID, attendance.StatusLate, onTime.Add(time.Minute)),
			token: getToken(t, r.teacher), wantCode: http.StatusBadRequest,
		},
		{
			name: "Invalid status", method: http.MethodPut, path: markPath(sess.ID),
			body:  entryBody(t, r.enrs[0].ID, "tardy", onTime),
			token: getToken(t, r.teacher), wantCode: http.StatusBadRequest,
		},
		{
			name: "Foreign enrollment", method: http.MethodPut, path: markPath(sess.ID),
			body:  entryBody(t, uuid.New().String(), attendance.StatusPresent, onTime),
			token: getToken(t, admin), wantCode: http.StatusBadRequest,
		},
		{
			name: "Locked session", method: http.MethodPut, path: markPath(locked.ID),
			body:  entryBody(t, r.enrs[0].ID, attendance.StatusPresent, onTime),
			token: getToken(t, admin), wantCode: http.StatusLocked,
		},
		{
			name: "Unknown session", method: http.MethodPut, path: markPath(uuid.New().String()),
			body:  entryBody(t, r.enrs[0].ID, attendance.StatusPresent, onTime),
			token: getToken(t, admin), wantCode: http.StatusNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_attendanceApi_bulkMark(t *testing.T) {
	r := seedRoll(t, "bulk-t")
	sess := openSession(t, r, "2021-03-01", 1)
	path := fmt.Sprintf("/v1/sessions/%s/records/bulk", sess.ID)

	entries := func() []attendance.Entry {
		out := make([]attendance.Entry, 0, len(r.enrs))
		for _, enr := range r.enrs {
			out = append(out, attendance.Entry{
				EnrollmentID: enr.ID,
				Status:       attendance.StatusPresent,
				OccurredAt:   sess.StartsAt,
			})
		}
		return out
	}

	t.Run("one bad entry writes nothing", func(t *testing.T) {
		bad := entries()
		bad[2].EnrollmentID = uuid.New().String()
		req, rec := newAuthRequest(http.MethodPut, path, getToken(t, r.teacher), marshallObj(t, attendance.BulkEntries{Entries: bad}))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("code = %d, want 400", rec.Code)
		}
		recs, err := attRepo.GetRecords(context.Background(), sess.ID)
		if err != nil {
			t.Fatalf("GetRecords(): %v", err)
		}
		if len(recs) != 0 {
			t.Errorf("len = %d, want 0", len(recs))
		}
	})

	t.Run("all good entries are written", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, path, getToken(t, r.teacher), marshallObj(t, attendance.BulkEntries{Entries: entries()}))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d, body = %s", rec.Code, rec.Body.String())
		}
		var recs []attendance.Record
		if err := json.Unmarshal(rec.Body.Bytes(), &recs); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if len(recs) != len(r.enrs) {
			t.Errorf("len = %d, want %d", len(recs), len(r.enrs))
		}
	})

	t.Run("empty payload is rejected", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, path, getToken(t, r.teacher), []byte(`{"entries": []}`))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("code = %d, want 400", rec.Code)
		}
	})
}

func Test_attendanceApi_destroy(t *testing.T) {
	r := seedRoll(t, "destroy-t")
	sess := openSession(t, r, "2021-03-01", 1)
	admin := testutil.CreateStaff(t, staffRepo, "Admin", "destroy-admin", "destroy-admin@school.test", "", []string{staff.RoleAdmin})
	coordinator := testutil.CreateStaff(t, staffRepo, "Coord", "destroy-coord", "destroy-coord@school.test", "", []string{staff.RoleCoordinator})

	// leave a record behind so the delete has something to cascade over
	req, rec := newAuthRequest(
		http.MethodPut,
		fmt.Sprintf("/v1/sessions/%s/records", sess.ID),
		getToken(t, r.teacher),
		entryBody(t, r.enrs[0].ID, attendance.StatusPresent, sess.StartsAt),
	)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("mark failed: %d %s", rec.Code, rec.Body.String())
	}

	destroyPath := func(id string) string { return "/v1/sessions/" + id }

	tests := []httpTest{
		{
			name: "Auth required", method: http.MethodDelete, path: destroyPath(sess.ID),
			wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken),
		},
		{
			name: "Coordinator is denied", method: http.MethodDelete, path: destroyPath(sess.ID),
			token: getToken(t, coordinator), wantCode: http.StatusForbidden,
		},
		{
			name: "Own teacher is denied", method: http.MethodDelete, path: destroyPath(sess.ID),
			token: getToken(t, r.teacher), wantCode: http.StatusForbidden,
		},
		{
			name: "Unknown session", method: http.MethodDelete, path: destroyPath(uuid.New().String()),
			token: getToken(t, admin), wantCode: http.StatusNotFound,
		},
		{
			name: "Admin deletes", method: http.MethodDelete, path: destroyPath(sess.ID),
			token: getToken(t, admin), wantCode: http.StatusNoContent,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("records go with the session", func(t *testing.T) {
		recs, err := attRepo.GetRecords(context.Background(), sess.ID)
		if err != nil {
			t.Fatalf("GetRecords(): %v", err)
		}
		if len(recs) != 0 {
			t.Errorf("len = %d, want 0 after delete", len(recs))
		}
	})
}

func Test_attendanceApi_queryAndRecords(t *testing.T) {
	r := seedRoll(t, "query-t")
	s1 := openSession(t, r, "2021-03-01", 1)
	s2 := openSession(t, r, "2021-03-01", 2)
	s3 := openSession(t, r, "2021-03-02", 1)
	secretary := testutil.CreateStaff(t, staffRepo, "Sec", "query-sec", "query-sec@school.test", "", []string{staff.RoleSecretary})

	queryPath := func(assignmentID, classDate, ordering string) string {
		v := make(url.Values)
		if assignmentID != "" {
			v.Add("assignment_id", assignmentID)
		}
		if classDate != "" {
			v.Add("class_date", classDate)
		}
		if ordering != "" {
			v.Add("ordering", ordering)
		}
		return "/v1/sessions?" + v.Encode()
	}

	t.Run("Auth required", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, queryPath(r.asg.ID, "", ""))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)}, rec)
	})

	t.Run("default ordering", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, queryPath(r.asg.ID, "", ""), getToken(t, secretary))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d, body = %s", rec.Code, rec.Body.String())
		}
		var sessions []attendance.Session
		if err := json.Unmarshal(rec.Body.Bytes(), &sessions); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		wantIDs := []string{s1.ID, s2.ID, s3.ID}
		if len(sessions) != len(wantIDs) {
			t.Fatalf("len = %d, want %d", len(sessions), len(wantIDs))
		}
		for i, want := range wantIDs {
			if sessions[i].ID != want {
				t.Errorf("sessions[%d].ID = %s, want %s", i, sessions[i].ID, want)
			}
		}
	})

	t.Run("descending ordering", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, queryPath(r.asg.ID, "", "-class_date,-seq"), getToken(t, secretary))
		app.ServeHTTP(rec, req)
		var sessions []attendance.Session
		if err := json.Unmarshal(rec.Body.Bytes(), &sessions); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if len(sessions) != 3 || sessions[0].ID != s3.ID {
			t.Errorf("first ID = %s, want %s", sessions[0].ID, s3.ID)
		}
	})

	t.Run("filter by class date", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, queryPath(r.asg.ID, "2021-03-02", ""), getToken(t, secretary))
		app.ServeHTTP(rec, req)
		var sessions []attendance.Session
		if err := json.Unmarshal(rec.Body.Bytes(), &sessions); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if len(sessions) != 1 || sessions[0].ID != s3.ID {
			t.Errorf("sessions = %+v, want only %s", sessions, s3.ID)
		}
	})

	t.Run("bad class date filter", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, queryPath("", "yesterday", ""), getToken(t, secretary))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("code = %d, want 400", rec.Code)
		}
	})

	t.Run("records come back in roster order", func(t *testing.T) {
		// mark students in reverse
		for i := len(r.enrs) - 1; i >= 0; i-- {
			req, rec := newAuthRequest(
				http.MethodPut,
				fmt.Sprintf("/v1/sessions/%s/records", s1.ID),
				getToken(t, r.teacher),
				entryBody(t, r.enrs[i].ID, attendance.StatusPresent, s1.StartsAt),
			)
			app.ServeHTTP(rec, req)
			if rec.Code != http.StatusOK {
				t.Fatalf("mark failed: %d %s", rec.Code, rec.Body.String())
			}
		}

		req, rec := newAuthRequest(http.MethodGet, fmt.Sprintf("/v1/sessions/%s/records", s1.ID), getToken(t, secretary))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d, body = %s", rec.Code, rec.Body.String())
		}
		var recs []attendance.Record
		if err := json.Unmarshal(rec.Body.Bytes(), &recs); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if len(recs) != len(r.enrs) {
			t.Fatalf("len = %d, want %d", len(recs), len(r.enrs))
		}
		for i, enr := range r.enrs {
			if recs[i].EnrollmentID != enr.ID {
				t.Errorf("recs[%d].EnrollmentID = %s, want %s", i, recs[i].EnrollmentID, enr.ID)
			}
		}
	})
}
