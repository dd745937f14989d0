package main

import (
	"context"

	"github.com/trezcool/jamii/core/user"
)

// addUser creates an active user; admins get the moderator role.
func (cli *commandLine) addUser(name, uname, email, pwd string, isAdmin bool) error {
	nu := user.NewUser{
		Name:     name,
		Username: uname,
		Email:    email,
		Password: pwd,
	}
	if nu.Name == "" {
		nu.Name = uname
	}
	if isAdmin {
		nu.Roles = []string{user.RoleAdministrator}
	}
	if err := nu.Validate(cli.validate); err != nil {
		return err
	}

	usr, err := cli.usrSvc.Create(context.Background(), nu)
	if err != nil {
		return err
	}
	logger.Printf("user %q created (id %d)", usr.Username, usr.ID)
	return nil
}
