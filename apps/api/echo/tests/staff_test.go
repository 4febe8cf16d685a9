package tests

import (
	"encoding/json"
	"net/http"
	"testing"

	. "github.com/makumbi/hudhurio/apps/api/echo"
	"github.com/makumbi/hudhurio/core/staff"
	testutil "github.com/makumbi/hudhurio/tests"
)

func Test_staffApi_register(t *testing.T) {
	admin := testutil.CreateStaff(t, staffRepo, "Admin", "reg-admin", "reg-admin@school.test", "", []string{staff.RoleAdmin})
	teacher := testutil.CreateStaff(t, staffRepo, "Teacher", "reg-teacher", "reg-teacher@school.test", "", []string{staff.RoleTeacher})

	body := func(mutate ...func(*staff.NewStaff)) []byte {
		ns := staff.NewStaff{
			Name:            "Zawadi Njoroge",
			Username:        "zawadi_n",
			Email:           "zawadi@school.test",
			Password:        "passw0rd",
			PasswordConfirm: "passw0rd",
			Roles:           []string{staff.RoleTeacher},
		}
		for _, m := range mutate {
			m(&ns)
		}
		return marshallObj(t, &ns)
	}

	tests := []httpTest{
		{
			name: "Auth required", method: http.MethodPost, path: "/v1/staff/register", body: body(),
			wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken),
		},
		{
			name: "Non-admin is denied", method: http.MethodPost, path: "/v1/staff/register", body: body(),
			token: getToken(t, teacher), wantCode: http.StatusForbidden,
		},
		{
			name: "Username with punctuation", method: http.MethodPost, path: "/v1/staff/register",
			body:  body(func(ns *staff.NewStaff) { ns.Username = "zawadi.n" }),
			token: getToken(t, admin), wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"username": "only alphanumeric characters and underscores are allowed"}),
		},
		{
			name: "Username too short", method: http.MethodPost, path: "/v1/staff/register",
			body:  body(func(ns *staff.NewStaff) { ns.Username = "zn" }),
			token: getToken(t, admin), wantCode: http.StatusBadRequest,
		},
		{
			name: "Password mismatch", method: http.MethodPost, path: "/v1/staff/register",
			body:  body(func(ns *staff.NewStaff) { ns.PasswordConfirm = "nope" }),
			token: getToken(t, admin), wantCode: http.StatusBadRequest,
		},
		{
			name: "Unknown role", method: http.MethodPost, path: "/v1/staff/register",
			body:  body(func(ns *staff.NewStaff) { ns.Roles = []string{"janitor:"} }),
			token: getToken(t, admin), wantCode: http.StatusBadRequest,
		},
		{
			name: "Admin registers", method: http.MethodPost, path: "/v1/staff/register", body: body(),
			token: getToken(t, admin), wantCode: http.StatusCreated,
		},
		{
			name: "Duplicate username", method: http.MethodPost, path: "/v1/staff/register",
			body:  body(func(ns *staff.NewStaff) { ns.Email = "zawadi2@school.test" }),
			token: getToken(t, admin), wantCode: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusCreated {
				var stf staff.Staff
				if err := json.Unmarshal(rec.Body.Bytes(), &stf); err != nil {
					t.Fatalf("unmarshal: %v", err)
				}
				if stf.ID == "" {
					t.Error("registered staff member has no ID")
				}
				if !stf.Active() {
					t.Error("registered staff member is inactive")
				}
			}
		})
	}
}

func Test_staffApi_login(t *testing.T) {
	stf := testutil.CreateStaff(t, staffRepo, "Neema", "neema", "neema@school.test", "passw0rd", []string{staff.RoleCoordinator})

	loginBody := func(uname, pwd string) []byte {
		return marshallObj(t, LoginRequest{Username: uname, Password: pwd})
	}

	tests := []httpTest{
		{name: "Missing fields", method: http.MethodPost, path: "/v1/staff/login", body: []byte(`{}`), wantCode: http.StatusBadRequest},
		{
			name: "Unknown staff member", method: http.MethodPost, path: "/v1/staff/login",
			body: loginBody("ghost", "passw0rd"), wantCode: http.StatusBadRequest,
		},
		{
			name: "Wrong password", method: http.MethodPost, path: "/v1/staff/login",
			body: loginBody("neema", "nope"), wantCode: http.StatusBadRequest,
		},
		{
			name: "Login with username", method: http.MethodPost, path: "/v1/staff/login",
			body: loginBody("neema", "passw0rd"), wantCode: http.StatusOK,
		},
		{
			name: "Login with email", method: http.MethodPost, path: "/v1/staff/login",
			body: loginBody(stf.Email, "passw0rd"), wantCode: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusOK {
				var res LoginResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
					t.Fatalf("unmarshal: %v", err)
				}
				if res.Token == "" {
					t.Error("empty token on successful login")
				}
			}
		})
	}
}

func Test_staffApi_tokenRefresh(t *testing.T) {
	stf := testutil.CreateStaff(t, staffRepo, "Juma", "juma", "juma@school.test", "passw0rd", []string{staff.RoleTeacher})

	t.Run("Auth required", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/staff/token-refresh")
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)}, rec)
	})

	t.Run("Refresh", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/staff/token-refresh", getToken(t, stf))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d, body = %s", rec.Code, rec.Body.String())
		}
		var res LoginResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if res.Token == "" {
			t.Error("empty refreshed token")
		}
	})
}

func Test_staffApi_queryRoles(t *testing.T) {
	stf := testutil.CreateStaff(t, staffRepo, "Amani", "amani", "amani@school.test", "", []string{staff.RoleAdmin})

	tests := []httpTest{
		{name: "Auth required", method: http.MethodGet, path: "/v1/staff/roles", wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)},
		{name: "Roles list", method: http.MethodGet, path: "/v1/staff/roles", token: getToken(t, stf), wantCode: http.StatusOK, wantData: marshallObj(t, staff.Roles)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
