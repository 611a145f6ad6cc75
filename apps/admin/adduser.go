package main

import (
	"context"
	"fmt"

	"github.com/trezcool/siku/core/user"
)

// addUser creates an active user; admins get every role.
func (cli *commandLine) addUser(name, uname, email, pwd string, isAdmin bool) error {
	ctx := context.Background()
	if name == "" {
		name = uname
	}
	nu := user.NewUser{
		Name:            name,
		Username:        uname,
		Email:           email,
		Password:        pwd,
		PasswordConfirm: pwd,
	}
	if isAdmin {
		nu.Roles = user.AllRoles
	}
	if err := nu.Validate(ctx, cli.validate, cli.usrSvc); err != nil {
		return err
	}

	usr, err := cli.usrSvc.Create(ctx, nu, cli.now())
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "created user %s (%s)\n", usr.Username, usr.ID)
	return nil
}
