package staff

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/makumbi/hudhurio/core"
)

var (
	// errors
	ErrNotFound       = errors.New("staff member not found")
	ErrUsernameExists = errors.New("a staff member with this username already exists")
	ErrEmailExists    = errors.New("a staff member with this email already exists")
)

type (
	// GetFilter matches a single staff member; the first set field wins.
	GetFilter struct {
		ID              string
		Username        string
		Email           string
		UsernameOrEmail []string
	}

	Repository interface {
		GetStaff(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (Staff, error)
		CreateStaff(ctx context.Context, stf Staff, exec ...core.DBExecutor) (Staff, error)
		UpdateStaff(ctx context.Context, stf Staff, exec ...core.DBExecutor) (Staff, error)
		UpdateOrCreateStaff(ctx context.Context, stf Staff, exec ...core.DBExecutor) (Staff, error)
	}

	// Service is the identity surface the API authenticates against and
	// provisions accounts through.
	Service interface {
		Create(ctx context.Context, ns NewStaff) (Staff, error)
		GetByID(ctx context.Context, id string) (Staff, error)
		GetByUsernameOrEmail(ctx context.Context, uname string) (Staff, error)
		SetLastLogin(ctx context.Context, stf Staff) (Staff, error)
	}

	service struct {
		repo Repository
		conf *core.Config
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, conf *core.Config) Service {
	return &service{repo: repo, conf: conf}
}

func (svc *service) Create(ctx context.Context, ns NewStaff) (Staff, error) {
	if err := svc.checkUniqueness(ctx, ns.Username, ns.Email); err != nil {
		return Staff{}, err
	}

	stf := Staff{
		Name:     ns.Name,
		Username: ns.Username,
		Email:    ns.Email,
		Roles:    ns.Roles,
	}
	stf.SetActive(true)
	if err := stf.SetPassword(ns.Password); err != nil {
		return Staff{}, errors.Wrap(err, "setting password")
	}
	return svc.repo.CreateStaff(ctx, stf)
}

func (svc *service) checkUniqueness(ctx context.Context, uname, email string) error {
	existing, err := svc.repo.GetStaff(ctx, GetFilter{UsernameOrEmail: []string{uname, email}})
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return nil
		}
		return errors.Wrap(err, "checking uniqueness")
	}

	dupErr, field := ErrEmailExists, "email"
	if existing.Username == uname {
		dupErr, field = ErrUsernameExists, "username"
	}
	return core.NewValidationError(dupErr, core.FieldError{Field: field, Error: dupErr.Error()})
}

func (svc *service) GetByID(ctx context.Context, id string) (Staff, error) {
	return svc.repo.GetStaff(ctx, GetFilter{ID: id})
}

func (svc *service) GetByUsernameOrEmail(ctx context.Context, uname string) (Staff, error) {
	uname = core.CleanString(uname, true /* lower */)
	return svc.repo.GetStaff(ctx, GetFilter{UsernameOrEmail: []string{uname, uname}})
}

func (svc *service) SetLastLogin(ctx context.Context, stf Staff) (Staff, error) {
	stf.LastLogin = time.Now().UTC()
	return svc.repo.UpdateStaff(ctx, stf)
}
