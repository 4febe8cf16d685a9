package staff

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/makumbi/hudhurio/core"
)

// Roles
const (
	// Admin
	RoleAdmin      = "admin:"
	RoleAdminSuper = "admin:super"

	// School staff
	RoleCoordinator = "coordinator:"
	RoleSecretary   = "secretary:"
	RoleTeacher     = "teacher:"
)

var (
	AdminRoles = []string{RoleAdmin, RoleAdminSuper}
	AllRoles   = []string{RoleAdmin, RoleAdminSuper, RoleCoordinator, RoleSecretary, RoleTeacher}

	rolePriorities = map[string]int{
		// Admins: 30 - 21
		RoleAdminSuper: 30,
		RoleAdmin:      21,

		// Coordinators: 20 - 11
		RoleCoordinator: 20,

		// Teachers & secretaries: 10 - 1
		RoleTeacher:   10,
		RoleSecretary: 5,
	}

	Roles = []Role{
		{Name: "Teacher", Value: RoleTeacher},
		{Name: "Secretary", Value: RoleSecretary},
		{Name: "Coordinator", Value: RoleCoordinator},
		{Name: "Admin", Value: RoleAdmin},
		{Name: "Super Admin", Value: RoleAdminSuper},
	}
)

func RolePriority(role string) int {
	return rolePriorities[role]
}

func MaxRolePriority(roles []string) int {
	var max int
	for _, role := range roles {
		if RolePriority(role) > max {
			max = RolePriority(role)
		}
	}
	return max
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Staff is a school staff member able to authenticate against the API.
type Staff struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Username     string    `json:"username" db:"username"`
	Email        string    `json:"email" db:"email"`
	IsActive     *bool     `json:"is_active" db:"is_active"`
	Roles        []string  `json:"roles" db:"-"`
	PasswordHash []byte    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login" db:"last_login"` // UTC
}

func (s *Staff) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	s.PasswordHash = hash
	return nil
}

func (s *Staff) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(s.PasswordHash, []byte(pwd))
}

func (s *Staff) SetActive(active bool) { s.IsActive = &active }

func (s *Staff) Active() bool { return s.IsActive != nil && *s.IsActive }

func (s *Staff) RoleStartsWith(prefix string) bool {
	for _, role := range s.Roles {
		if strings.HasPrefix(role, prefix) {
			return true
		}
	}
	return false
}

func (s *Staff) IsAdmin() bool       { return s.RoleStartsWith(RoleAdmin) }
func (s *Staff) IsCoordinator() bool { return s.RoleStartsWith(RoleCoordinator) }
func (s *Staff) IsSecretary() bool   { return s.RoleStartsWith(RoleSecretary) }
func (s *Staff) IsTeacher() bool     { return s.RoleStartsWith(RoleTeacher) }

// NewStaff contains information needed to provision a staff account.
type NewStaff struct {
	Name            string   `json:"name" validate:"required"`
	Username        string   `json:"username" validate:"required,min=6,alphanum_"`
	Email           string   `json:"email" validate:"required,email"`
	Password        string   `json:"password" validate:"required"`
	PasswordConfirm string   `json:"password_confirm" validate:"required,eqfield=Password"`
	Roles           []string `json:"roles" validate:"omitempty,staffroles"`
}

func (ns *NewStaff) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Username = core.CleanString(ns.Username, true /* lower */)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	return validate.Struct(ns)
}
