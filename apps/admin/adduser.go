package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/roster"
	"github.com/trezcool/academia/core/user"
)

// normalizeRole accepts "student" for "student:".
func normalizeRole(role string) string {
	role = core.CleanString(role, true /* lower */)
	if role != "" && !strings.Contains(role, ":") {
		role += ":"
	}
	return role
}

// addUser creates a user.User unless it exists, and grants every role with isAdmin.
func (cli *commandLine) addUser(email, name, role string, isAdmin bool) error {
	ctx := context.Background()

	email = core.CleanEmail(email)
	if !core.IsEmail(email) {
		return core.NewValidationError(nil, core.FieldError{Field: "email", Error: roster.MsgEmailInvalid})
	}
	role = normalizeRole(role)
	if !user.IsValidRole(role) {
		return core.NewArgumentError("role", "unknown role")
	}
	name = core.CleanString(name)
	if name == "" {
		name = roster.NameFromEmail(email)
	}

	usr, created, err := cli.usrSvc.CreateIfNotExists(ctx, user.User{
		Name:  name,
		Email: email,
		Roles: []string{role},
	})
	if err != nil {
		return err
	}

	if isAdmin {
		active := true
		usr, err = cli.usrSvc.Update(ctx, usr, user.UpdateUser{Name: usr.Name, IsActive: &active, Roles: user.AllRoles})
		if err != nil {
			return err
		}
	}

	if created {
		fmt.Fprintf(cli.out, "created user %s <%s> %v\n", usr.Name, usr.Email, usr.Roles)
	} else {
		fmt.Fprintf(cli.out, "user %s <%s> exists %v\n", usr.Name, usr.Email, usr.Roles)
	}
	return nil
}
