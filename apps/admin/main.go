package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/siku/core"
	"github.com/trezcool/siku/core/mission"
	"github.com/trezcool/siku/core/program"
	"github.com/trezcool/siku/core/progress"
	"github.com/trezcool/siku/core/user"
	logsvc "github.com/trezcool/siku/services/logger"
	"github.com/trezcool/siku/storage/database"
	inmemdb "github.com/trezcool/siku/storage/database/inmem"
	sqlxrepos "github.com/trezcool/siku/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	logger.Enable(!conf.Debug)

	clock, err := program.NewClock(conf.Program.StartDate, conf.Program.CycleDays)
	errAndDie(logger, err)

	var (
		sqlDB    *sql.DB
		usrRepo  user.Repository
		accounts progress.AccountStore
		missions mission.Repository
	)
	if conf.Database.Engine == "memory" {
		mem := inmemdb.Open()
		usrRepo = inmemdb.NewUserRepository(mem)
		accounts = inmemdb.NewProgressRepository(mem)
		missions = inmemdb.NewMissionRepository(mem)
	} else {
		db, err := database.Open(conf)
		errAndDie(logger, err)
		defer func() { _ = db.Close() }()
		errAndDie(logger, db.Ping())

		sqlDB = db.DB
		usrRepo = sqlxrepos.NewUserRepository(db)
		accounts = sqlxrepos.NewProgressRepository(db)
		missions = sqlxrepos.NewMissionRepository(db)
	}

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	mission.InitValidators(validate, translator, conf.Program.CycleDays)
	user.LoadCommonPasswords(logger)

	cli := newCommandLine(
		sqlDB,
		user.NewService(usrRepo, progress.NewService(accounts, nil, logger), logger),
		mission.NewService(missions, clock, validate, translator, logger),
		validate,
	)
	if err = cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("admin: %v", err), err)
		}
		os.Exit(1)
	}
}

func errAndDie(logger core.Logger, err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
