package main

import (
	"context"

	"github.com/trezcool/gradebook/storage/database"
)

var gooseRunFunc = database.RunMigrations // mockable

func (cli *commandLine) migrate(ctx context.Context, args []string) error {
	if cli.db == nil {
		return errNoSQL
	}
	return gooseRunFunc(ctx, cli.db, args[0], args[1:]...)
}
