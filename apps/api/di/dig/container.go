package dig_container

import (
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/siku/apps/api/echo"
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

const engineMemory = "memory"

type (
	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	// Repositories are backed by postgres, or by memory when Database.Engine is "memory".
	Repositories struct {
		dig.Out
		Users    user.Repository
		Missions mission.Repository
		Progress progress.AccountStore
	}

	ServerParams struct {
		dig.In
		Conf        *core.Config
		Logger      core.Logger
		Validate    *validator.Validate
		Translator  ut.Translator
		UserSvc     user.ServiceInterface
		MissionSvc  mission.ServiceInterface
		ProgressSvc progress.ServiceInterface
	}
)

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

// newDB returns nil with the memory engine.
func newDB(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
	if conf.Database.Engine == engineMemory {
		return nil
	}

	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db
}

func newRepositories(db *sqlx.DB) Repositories {
	if db == nil {
		mem := inmemdb.Open()
		return Repositories{
			Users:    inmemdb.NewUserRepository(mem),
			Missions: inmemdb.NewMissionRepository(mem),
			Progress: inmemdb.NewProgressRepository(mem),
		}
	}
	return Repositories{
		Users:    sqlxrepos.NewUserRepository(db),
		Missions: sqlxrepos.NewMissionRepository(db),
		Progress: sqlxrepos.NewProgressRepository(db),
	}
}

func newClock(conf *core.Config) (program.Clock, error) {
	return program.NewClock(conf.Program.StartDate, conf.Program.CycleDays)
}

// the server keeps no guest progress: guests reconcile by uploading their record
func newProgressService(accounts progress.AccountStore, logger core.Logger) *progress.Service {
	return progress.NewService(accounts, nil, logger)
}

func newServer(p ServerParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:        p.Conf,
		Logger:      p.Logger,
		Validate:    p.Validate,
		Translator:  p.Translator,
		UserSvc:     p.UserSvc,
		MissionSvc:  p.MissionSvc,
		ProgressSvc: p.ProgressSvc,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newRepositories))
	must(c.Provide(newClock))
	must(c.Provide(validator.New))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newProgressService, dig.As(new(progress.ServiceInterface), new(user.ProgressInitializer))))
	must(c.Provide(mission.NewService, dig.As(new(mission.ServiceInterface))))
	must(c.Provide(user.NewService, dig.As(new(user.ServiceInterface))))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
