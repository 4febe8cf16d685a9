package inmem

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/makumbi/hudhurio/core"
	"github.com/makumbi/hudhurio/core/staff"
)

type staffRepository struct {
	db *DB
}

var _ staff.Repository = (*staffRepository)(nil) // interface compliance check

func NewStaffRepository(db *DB) *staffRepository {
	return &staffRepository{db: db}
}

func (repo *staffRepository) GetStaff(ctx context.Context, filter staff.GetFilter, exec ...core.DBExecutor) (staff.Staff, error) {
	tbl := &repo.db.staffTbl
	tbl.mutex.RLock()
	defer tbl.mutex.RUnlock()

	for _, stf := range tbl.rows {
		switch {
		case filter.ID != "":
			if stf.ID == filter.ID {
				return stf, nil
			}
		case filter.Username != "":
			if stf.Username == filter.Username {
				return stf, nil
			}
		case filter.Email != "":
			if stf.Email == filter.Email {
				return stf, nil
			}
		case len(filter.UsernameOrEmail) == 2:
			if stf.Username == filter.UsernameOrEmail[0] || stf.Email == filter.UsernameOrEmail[1] {
				return stf, nil
			}
		}
	}
	return staff.Staff{}, staff.ErrNotFound
}

func (repo *staffRepository) CreateStaff(ctx context.Context, stf staff.Staff, exec ...core.DBExecutor) (staff.Staff, error) {
	tbl := &repo.db.staffTbl
	tbl.mutex.Lock()
	defer tbl.mutex.Unlock()

	stf.ID = uuid.New().String()
	now := time.Now().UTC()
	stf.CreatedAt = now
	stf.UpdatedAt = now
	tbl.rows[stf.ID] = stf
	return stf, nil
}

func (repo *staffRepository) UpdateStaff(ctx context.Context, stf staff.Staff, exec ...core.DBExecutor) (staff.Staff, error) {
	tbl := &repo.db.staffTbl
	tbl.mutex.Lock()
	defer tbl.mutex.Unlock()

	if _, ok := tbl.rows[stf.ID]; !ok {
		return staff.Staff{}, staff.ErrNotFound
	}
	stf.UpdatedAt = time.Now().UTC()
	tbl.rows[stf.ID] = stf
	return stf, nil
}

func (repo *staffRepository) UpdateOrCreateStaff(ctx context.Context, stf staff.Staff, exec ...core.DBExecutor) (staff.Staff, error) {
	if stf.ID == "" {
		return repo.CreateStaff(ctx, stf, exec...)
	}
	updated, err := repo.UpdateStaff(ctx, stf, exec...)
	if err == staff.ErrNotFound {
		return repo.CreateStaff(ctx, stf, exec...)
	} else if err != nil {
		return staff.Staff{}, err
	}
	return updated, nil
}
