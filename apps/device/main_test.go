package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/siku/apps/api/echo"
	"github.com/trezcool/siku/core"
	"github.com/trezcool/siku/core/mission"
	"github.com/trezcool/siku/core/program"
	"github.com/trezcool/siku/core/progress"
	"github.com/trezcool/siku/core/user"
	"github.com/trezcool/siku/services/siku"
	memcache "github.com/trezcool/siku/storage/cache/memory"
	inmemdb "github.com/trezcool/siku/storage/database/inmem"
	testutil "github.com/trezcool/siku/tests"
)

const pwd = "Mi$$ion42"

var now = testutil.DayOf(0, 2)

type env struct {
	dev      *device
	cache    *memcache.Cache
	accounts progress.AccountStore
	usr      user.User
}

func setup(t *testing.T) *env {
	logger := testutil.NewLogger(t)
	conf := &core.Config{
		AppName:   "Siku",
		SecretKey: "secret",
		TestMode:  true,
		Server: core.ServerConfig{
			DisableReqLogs:            true,
			JWTExpirationDelta:        10 * time.Minute,
			JWTRefreshExpirationDelta: time.Hour,
		},
		Program: core.ProgramConfig{StartDate: testutil.ProgramStart, CycleDays: program.DefaultCycleDays},
	}

	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	missionRepo := inmemdb.NewMissionRepository(db)
	accounts := inmemdb.NewProgressRepository(db)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	mission.InitValidators(validate, translator, program.DefaultCycleDays)

	progressSvc := progress.NewService(accounts, nil, logger)
	app := echoapi.NewServer(echoapi.ServerDeps{
		Conf:        conf,
		Logger:      logger,
		Validate:    validate,
		Translator:  translator,
		UserSvc:     user.NewService(usrRepo, progressSvc, logger),
		MissionSvc:  mission.NewService(
			missionRepo, program.MustClock(testutil.ProgramStart, program.DefaultCycleDays), validate, translator, logger,
		),
		ProgressSvc: progressSvc,
		Now:         func() time.Time { return now },
	})
	srv := httptest.NewServer(app)
	t.Cleanup(srv.Close)

	testutil.CreateMissions(t, missionRepo,
		mission.Mission{ID: "d1m1", Day: 1, ScheduledTime: "09:00", Title: "Morning run", Points: 10},
		mission.Mission{ID: "d2m1", Day: 2, ScheduledTime: "08:30", Title: "Make breakfast", Points: 20},
		mission.Mission{ID: "d2m2", Day: 2, Title: "Call a friend", Points: 5},
		mission.Mission{ID: "d3m1", Day: 3, ScheduledTime: "10:00", Title: "Plant a seed", Points: 25},
	)
	usr := testutil.CreateUser(t, usrRepo, "Amani", "amani", "amani@test.cd", pwd, nil, true)
	require.NoError(t, accounts.PutProgress(context.Background(), usr.ID, progress.NewCompletionRecord()))

	conf.Device = core.DeviceConfig{APIBaseURL: srv.URL}
	cache := memcache.New()
	dev, err := newDevice(conf, cache, srv.Client(), logger)
	require.NoError(t, err)
	dev.now = func() time.Time { return now }

	return &env{dev: dev, cache: cache, accounts: accounts, usr: usr}
}

func (e *env) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	open := func(*cobra.Command) (*device, func(), error) { return e.dev, func() {}, nil }
	buf := new(bytes.Buffer)
	cmd := NewRootCommand(open)
	cmd.SetOut(buf)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestRoot_invalidFormat(t *testing.T) {
	e := setup(t)
	_, err := e.run(t, "today", "--format", "xml")
	assert.EqualError(t, err, `invalid format "xml": must be one of [text json]`)

	_, err = e.run(t, "today", "--at", "tomorrow")
	assert.EqualError(t, err, `--at must be an RFC3339 timestamp (got "tomorrow")`)
}

func TestToday(t *testing.T) {
	e := setup(t)

	out, err := e.run(t, "today")
	require.NoError(t, err)
	assert.Contains(t, out, "Day 2 (cycle 0, 25 points)")
	assert.Contains(t, out, "[ ] 08:30  Make breakfast")
	assert.Contains(t, out, "[ ] --:--  Call a friend")
	assert.NotContains(t, out, "Morning run")

	out, err = e.run(t, "today", "--at", testutil.DayOf(0, 3).Format(time.RFC3339), "--format", "json")
	require.NoError(t, err)
	var group mission.DayGroup
	require.NoError(t, json.Unmarshal([]byte(out), &group))
	assert.Equal(t, 3, group.Day)
	assert.Equal(t, 0, group.Cycle)
	require.Len(t, group.Missions, 1)
	assert.Equal(t, "d3m1", group.Missions[0].ID)
}

func TestMissions(t *testing.T) {
	e := setup(t)
	_, err := e.run(t, "complete", "d1m1")
	require.NoError(t, err)

	out, err := e.run(t, "missions")
	require.NoError(t, err)
	assert.Contains(t, out, "Day 1")
	assert.Contains(t, out, "Day 2")
	assert.NotContains(t, out, "Day 3")
	assert.NotContains(t, out, "Plant a seed")
	assert.Regexp(t, `\[x\].*Morning run`, out)

	// text and JSON number cycles alike
	out, err = e.run(t, "missions", "--at", testutil.DayOf(1, 1).Format(time.RFC3339))
	require.NoError(t, err)
	assert.Contains(t, out, "Day 1 (cycle 0, 10 points)")
	assert.Contains(t, out, "Day 3 (cycle 0, 25 points)")
}

func TestComplete_guest(t *testing.T) {
	e := setup(t)

	out, err := e.run(t, "complete", "d2m1")
	require.NoError(t, err)
	assert.Contains(t, out, "20 points")

	// completing twice awards nothing
	out, err = e.run(t, "complete", "d2m1")
	require.NoError(t, err)
	assert.Contains(t, out, "20 points")

	_, err = e.run(t, "complete", "d3m1")
	assert.Equal(t, mission.ErrNotAvailable, err)

	_, err = e.run(t, "complete", "nope")
	assert.Equal(t, mission.ErrNotFound, err)

	out, err = e.run(t, "progress")
	require.NoError(t, err)
	assert.Contains(t, out, "guest")
	assert.Contains(t, out, "completed: d2m1")

	// guest progress never reaches the account on its own
	rec, err := e.accounts.GetProgress(context.Background(), e.usr.ID)
	require.NoError(t, err)
	assert.True(t, rec.IsEmpty())
}

func TestLogin(t *testing.T) {
	e := setup(t)
	_, err := e.run(t, "complete", "d1m1")
	require.NoError(t, err)
	_, err = e.run(t, "complete", "d2m1")
	require.NoError(t, err)

	t.Run("username required", func(t *testing.T) {
		_, err := e.run(t, "login")
		assert.EqualError(t, err, "--username is required")
	})

	t.Run("wrong password", func(t *testing.T) {
		readPasswordFunc = func(int) ([]byte, error) { return []byte("nope"), nil }
		_, err := e.run(t, "login", "-u", "amani")
		assert.EqualError(t, err, "authentication failed")

		id, err := e.dev.session.Identity(context.Background())
		require.NoError(t, err)
		assert.True(t, id.IsGuest())
	})

	t.Run("merged", func(t *testing.T) {
		readPasswordFunc = func(int) ([]byte, error) { return []byte(pwd), nil }
		out, err := e.run(t, "login", "-u", "amani")
		require.NoError(t, err)
		assert.Contains(t, out, "guest progress merged: 2 missions, 30 points")

		rec, err := e.accounts.GetProgress(context.Background(), e.usr.ID)
		require.NoError(t, err)
		assert.Equal(t, 30, rec.Points)
		assert.Equal(t, []string{"d1m1", "d2m1"}, rec.Completed.Sorted())
	})

	t.Run("completions go to the account", func(t *testing.T) {
		out, err := e.run(t, "complete", "d2m2")
		require.NoError(t, err)
		assert.Contains(t, out, "35 points")

		out, err = e.run(t, "sync")
		require.NoError(t, err)
		assert.Contains(t, out, "no guest progress to merge")
	})

	t.Run("logout", func(t *testing.T) {
		out, err := e.run(t, "logout")
		require.NoError(t, err)
		assert.Contains(t, out, "logged out")

		out, err = e.run(t, "progress")
		require.NoError(t, err)
		assert.Contains(t, out, "nothing completed yet")

		_, err = e.run(t, "sync")
		assert.Equal(t, progress.ErrNotLoggedIn, err)
	})
}

func TestLogin_clearsGuestProgress(t *testing.T) {
	e := setup(t)
	_, err := e.run(t, "complete", "d2m1")
	require.NoError(t, err)

	_, ok, err := e.cache.Get(context.Background(), progress.DefaultGuestKey)
	require.NoError(t, err)
	require.True(t, ok)

	readPasswordFunc = func(int) ([]byte, error) { return []byte(pwd), nil }
	_, err = e.run(t, "login", "-u", "amani")
	require.NoError(t, err)

	_, ok, err = e.cache.Get(context.Background(), progress.DefaultGuestKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLogin_unreachable(t *testing.T) {
	e := setup(t)
	_, err := e.run(t, "complete", "d2m1")
	require.NoError(t, err)

	e.dev.client = siku.NewClient("http://127.0.0.1:1", nil, nil)
	readPasswordFunc = func(int) ([]byte, error) { return []byte(pwd), nil }
	_, err = e.run(t, "login", "-u", "amani")
	assert.ErrorIs(t, err, core.ErrStorageUnavailable)

	// still a guest, progress untouched
	out, err := e.run(t, "progress")
	require.NoError(t, err)
	assert.Contains(t, out, "guest")
	assert.Contains(t, out, "completed: d2m1")
}
