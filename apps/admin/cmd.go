package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/term"

	"github.com/trezcool/siku/core/mission"
	"github.com/trezcool/siku/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp  = errors.New("help provided")
	errNoSQL = errors.New("migrate needs a postgres database (database engine is memory)")
)

type commandLine struct {
	db         *sql.DB // nil with the memory engine
	usrSvc     user.ServiceInterface
	missionSvc mission.ServiceInterface
	validate   *validator.Validate
	now        func() time.Time
	out        io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]                      - run a goose command (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  archive [-at RFC3339]                       - archive the missions of past days")
	fmt.Fprintln(cli.out, "  loadmissions -file PATH                     - import a JSON or YAML mission catalog")
	fmt.Fprintln(cli.out, "  adduser -name NAME -username USERNAME [-email EMAIL] [-admin] - create a user")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	archiveCmd := flag.NewFlagSet("archive", flag.ContinueOnError)
	archiveAt := archiveCmd.String("at", "", "Archive as of this RFC3339 time instead of now.")

	loadCmd := flag.NewFlagSet("loadmissions", flag.ContinueOnError)
	loadFile := loadCmd.String("file", "", "The catalog file (.json, .yaml or .yml).")

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserUname := addUserCmd.String("username", "", "The user's username. The password will be prompted next.")
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserAdmin := addUserCmd.Bool("admin", false, "Grant every role.")

	for _, fs := range []*flag.FlagSet{archiveCmd, loadCmd, addUserCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "archive":
		if err := archiveCmd.Parse(args[2:]); err != nil {
			return err
		}
		now := cli.now()
		if *archiveAt != "" {
			at, err := time.Parse(time.RFC3339, *archiveAt)
			if err != nil {
				return fmt.Errorf("-at must be an RFC3339 timestamp (got %q)", *archiveAt)
			}
			now = at
		}
		return cli.archive(now)

	case "loadmissions":
		if err := loadCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *loadFile == "" {
			loadCmd.Usage()
			return errHelp
		}
		return cli.loadMissions(*loadFile)

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserUname == "" && *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		fmt.Fprint(cli.out, "Enter password:")
		pwd, err := readPasswordFunc(int(syscall.Stdin))
		fmt.Fprintln(cli.out)
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserName, *addUserUname, *addUserEmail, string(pwd), *addUserAdmin)

	default:
		cli.printUsage()
		return errHelp
	}
}

func newCommandLine(db *sql.DB, usrSvc user.ServiceInterface, missionSvc mission.ServiceInterface, validate *validator.Validate) *commandLine {
	return &commandLine{
		db:         db,
		usrSvc:     usrSvc,
		missionSvc: missionSvc,
		validate:   validate,
		now:        time.Now,
		out:        os.Stdout,
	}
}
