package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/makumbi/hudhurio/core"
	"github.com/makumbi/hudhurio/core/staff"
)

// addStaff updates or creates a staff.Staff
func (cli *commandLine) addStaff(uname, email, pwd string, isAdmin bool) error {
	var stf staff.Staff
	var err error
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	if stf, err = cli.staffRepo.GetStaff(ctx, staff.GetFilter{UsernameOrEmail: []string{uname, email}}); err != nil {
		if errors.Cause(err) != staff.ErrNotFound {
			return err
		}
		stf = staff.Staff{
			Username: uname,
			Email:    email,
		}
	}
	if isAdmin {
		stf.Roles = staff.AllRoles
	}
	stf.SetActive(true)
	if err := stf.SetPassword(pwd); err != nil {
		return err
	}
	if _, err := cli.staffRepo.UpdateOrCreateStaff(ctx, stf); err != nil {
		return err
	}
	return nil
}
