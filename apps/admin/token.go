package main

import (
	"context"
	"fmt"

	echoapi "github.com/trezcool/academia/apps/api/echo"
)

// printToken prints a signed API token, for local development without the identity provider.
func (cli *commandLine) printToken(email string) error {
	usr, err := cli.usrSvc.GetByEmail(context.Background(), email)
	if err != nil {
		return err
	}
	token, err := echoapi.GenerateToken(echoapi.GetUserClaims(usr, cli.conf), cli.conf.SecretKey)
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, token)
	return nil
}
