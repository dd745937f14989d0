package main

import (
	"github.com/trezcool/jamii/storage/database"
)

var migrateFunc = database.Run // mockable

func (cli *commandLine) migrate(args []string) error {
	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	return migrateFunc(args[0], cli.db, arguments...)
}
