package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/makumbi/hudhurio/core"
	"github.com/makumbi/hudhurio/core/staff"
)

const (
	getStaffByIDSQL       = staffSelectSQL + ` WHERE id = $1`
	getStaffByUsernameSQL = staffSelectSQL + ` WHERE username = $1`
	getStaffByEmailSQL    = staffSelectSQL + ` WHERE email = $1`
	getStaffByUnameSQL    = staffSelectSQL + ` WHERE username = $1 OR email = $2`

	staffSelectSQL = `
		SELECT id, name, username, email, is_active, roles, password_hash, created_at, updated_at, last_login
		FROM staff`

	createStaffSQL = `
		INSERT INTO staff (id, name, username, email, is_active, roles, password_hash, created_at, updated_at, last_login)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	updateStaffSQL = `
		UPDATE staff SET name = $2, username = $3, email = $4, is_active = $5, roles = $6,
			password_hash = $7, updated_at = $8, last_login = $9
		WHERE id = $1`
)

// staffRow maps the roles text[] column; Roles on the core struct is not
// directly scannable.
type staffRow struct {
	staff.Staff
	Roles pq.StringArray `db:"roles"`
}

func (r *staffRow) model() staff.Staff {
	stf := r.Staff
	stf.Roles = r.Roles
	return stf
}

type staffRepository struct {
	db *sqlx.DB
}

var _ staff.Repository = (*staffRepository)(nil) // interface compliance check

func NewStaffRepository(db *sqlx.DB) *staffRepository {
	return &staffRepository{db: db}
}

func (repo staffRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.db
}

// getQueryer adapts the exec varargs for the sqlx scan helpers. *sqlx.DB and
// *sqlx.Tx both qualify; a plain executor falls back to the pool.
func (repo staffRepository) getQueryer(svcExec []core.DBExecutor) sqlx.QueryerContext {
	if len(svcExec) > 0 {
		if q, ok := svcExec[0].(sqlx.QueryerContext); ok {
			return q
		}
	}
	return repo.db
}

func (repo staffRepository) GetStaff(ctx context.Context, filter staff.GetFilter, exec ...core.DBExecutor) (staff.Staff, error) {
	var (
		query string
		args  []interface{}
	)
	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return staff.Staff{}, staff.ErrNotFound
		}
		query, args = getStaffByIDSQL, []interface{}{filter.ID}
	case filter.Username != "":
		query, args = getStaffByUsernameSQL, []interface{}{filter.Username}
	case filter.Email != "":
		query, args = getStaffByEmailSQL, []interface{}{filter.Email}
	case len(filter.UsernameOrEmail) == 2:
		query, args = getStaffByUnameSQL, []interface{}{filter.UsernameOrEmail[0], filter.UsernameOrEmail[1]}
	default:
		return staff.Staff{}, staff.ErrNotFound
	}

	var row staffRow
	if err := sqlx.GetContext(ctx, repo.getQueryer(exec), &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return staff.Staff{}, staff.ErrNotFound
		}
		return staff.Staff{}, errors.Wrap(err, "finding staff member")
	}
	return row.model(), nil
}

func (repo staffRepository) CreateStaff(ctx context.Context, stf staff.Staff, exec ...core.DBExecutor) (staff.Staff, error) {
	stf.ID = uuid.New().String()
	now := time.Now().UTC()
	stf.CreatedAt = now
	stf.UpdatedAt = now

	_, err := repo.getExec(exec).ExecContext(ctx, createStaffSQL,
		stf.ID, stf.Name, stf.Username, stf.Email, stf.IsActive, pq.StringArray(stf.Roles),
		stf.PasswordHash, stf.CreatedAt, stf.UpdatedAt, stf.LastLogin)
	if err != nil {
		return staff.Staff{}, errors.Wrap(err, "inserting staff member")
	}
	return stf, nil
}

func (repo staffRepository) UpdateStaff(ctx context.Context, stf staff.Staff, exec ...core.DBExecutor) (staff.Staff, error) {
	stf.UpdatedAt = time.Now().UTC()

	_, err := repo.getExec(exec).ExecContext(ctx, updateStaffSQL,
		stf.ID, stf.Name, stf.Username, stf.Email, stf.IsActive, pq.StringArray(stf.Roles),
		stf.PasswordHash, stf.UpdatedAt, stf.LastLogin)
	if err != nil {
		return staff.Staff{}, errors.Wrap(err, "updating staff member")
	}
	return stf, nil
}

func (repo staffRepository) UpdateOrCreateStaff(ctx context.Context, stf staff.Staff, exec ...core.DBExecutor) (staff.Staff, error) {
	if stf.ID == "" {
		return repo.CreateStaff(ctx, stf, exec...)
	}
	if _, err := repo.GetStaff(ctx, staff.GetFilter{ID: stf.ID}, exec...); err != nil {
		if errors.Cause(err) == staff.ErrNotFound {
			return repo.CreateStaff(ctx, stf, exec...)
		}
		return staff.Staff{}, err
	}
	return repo.UpdateStaff(ctx, stf, exec...)
}
