package main

import (
	"context"

	"github.com/makumbi/hudhurio/core"
	"github.com/makumbi/hudhurio/core/staff"
)

func (cli *commandLine) resetPassword(uname, pwd string) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	stf, err := cli.staffRepo.GetStaff(ctx, staff.GetFilter{UsernameOrEmail: []string{uname, uname}})
	if err != nil {
		return err
	}
	if err := stf.SetPassword(pwd); err != nil {
		return err
	}
	if _, err := cli.staffRepo.UpdateStaff(ctx, stf); err != nil {
		return err
	}
	return nil
}
