package attendance

import (
	"testing"
	"time"

	"github.com/volatiletech/null/v8"
)

func TestStatus_Valid(t *testing.T) {
	for _, st := range Statuses {
		if !st.Valid() {
			t.Errorf("Status(%q).Valid() = false, want true", st)
		}
	}
	for _, st := range []Status{"", "tardy", "PRESENT", "unknown"} {
		if st.Valid() {
			t.Errorf("Status(%q).Valid() = true, want false", st)
		}
	}
}

func TestSession_Key(t *testing.T) {
	sess := Session{
		AssignmentID: "asg1",
		PeriodID:     "p1",
		ClassDate:    time.Date(2021, 3, 15, 0, 0, 0, 0, time.UTC),
		Seq:          2,
	}
	if got, want := sess.Key(), "asg1/p1/2021-03-15/2"; got != want {
		t.Errorf("Key() = %q, want %q", got, want)
	}
}

func TestSession_IsLocked(t *testing.T) {
	var sess Session
	if sess.IsLocked() {
		t.Error("IsLocked() = true for open session")
	}
	sess.LockedAt = null.TimeFrom(time.Now())
	if !sess.IsLocked() {
		t.Error("IsLocked() = false for locked session")
	}
}

func TestRecord_IsTardy(t *testing.T) {
	var rec Record
	if rec.IsTardy() {
		t.Error("IsTardy() = true without TardyAt")
	}
	rec.TardyAt = null.TimeFrom(time.Now())
	if !rec.IsTardy() {
		t.Error("IsTardy() = false with TardyAt set")
	}
}
