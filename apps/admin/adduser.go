package main

import (
	"context"
	"strings"

	"github.com/trezcool/gradebook/core/user"
)

// addUser creates an active user with the given password.
func (cli *commandLine) addUser(ctx context.Context, nu user.NewUser) error {
	nu.Role = user.Role(strings.ToUpper(string(nu.Role)))
	usr, err := cli.usrSvc.Create(ctx, nu)
	if err != nil {
		return err
	}
	logger.Printf("created %s %s (%s)", usr.Role.Label(), usr.FullName(), usr.ID)
	return nil
}
