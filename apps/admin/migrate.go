package main

import (
	"github.com/makumbi/hudhurio/storage/database"
)

var migrationRunFunc = database.RunMigration // mockable

func (cli *commandLine) migrate(args []string) error {
	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	return migrationRunFunc(cli.db, args[0], arguments...)
}
