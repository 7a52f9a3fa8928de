package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/roster"
	"github.com/trezcool/academia/core/user"
	"github.com/trezcool/academia/storage/database"
)

var (
	migrateFunc  = database.RunMigrations // mockable
	readFileFunc = os.ReadFile            // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	conf       *core.Config
	db         *sql.DB
	usrSvc     user.Service
	reconciler *roster.Reconciler
	out        io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS...] - run a goose command against the embedded migrations")
	fmt.Fprintln(cli.out, "  adduser -email EMAIL -name NAME [-role ROLE] [-admin] - create a user or grant them roles")
	fmt.Fprintln(cli.out, "  importroster -file PATH -batch NAME [-role student|faculty] - create the accounts of a CSV roster")
	fmt.Fprintln(cli.out, "  token -email EMAIL - print an API token for a user")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserName := addUserCmd.String("name", "", "The user's name. Defaults to the email's local part.")
	addUserRole := addUserCmd.String("role", user.RoleStudent, "The role of a new user.")
	addUserAdmin := addUserCmd.Bool("admin", false, "Grant every role to the user.")

	importCmd := flag.NewFlagSet("importroster", flag.ContinueOnError)
	importFile := importCmd.String("file", "", "Path to the CSV roster.")
	importBatch := importCmd.String("batch", "", "Name of the batch.")
	importRole := importCmd.String("role", "student", "Role of the imported accounts: student or faculty.")

	tokenCmd := flag.NewFlagSet("token", flag.ContinueOnError)
	tokenEmail := tokenCmd.String("email", "", "The user's email.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserEmail, *addUserName, *addUserRole, *addUserAdmin)
	case "importroster":
		if err := importCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *importFile == "" || *importBatch == "" {
			importCmd.Usage()
			return errHelp
		}
		return cli.importRoster(*importFile, *importBatch, *importRole)
	case "token":
		if err := tokenCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *tokenEmail == "" {
			tokenCmd.Usage()
			return errHelp
		}
		return cli.printToken(*tokenEmail)
	default:
		cli.printUsage()
		return errHelp
	}
}
