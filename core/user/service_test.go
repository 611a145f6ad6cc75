package user_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/siku/core"
	"github.com/trezcool/siku/core/progress"
	"github.com/trezcool/siku/core/user"
	inmemdb "github.com/trezcool/siku/storage/database/inmem"
	testutil "github.com/trezcool/siku/tests"
)

var now = time.Date(2024, time.January, 2, 8, 0, 0, 0, time.UTC)

type failingInit struct{}

func (failingInit) InitAccount(context.Context, string, time.Time) error {
	return core.StorageError(errors.New("disk full"), "initializing progress")
}

func setup(t *testing.T) (*user.Service, user.Repository, progress.AccountStore) {
	db := inmemdb.Open()
	logger := testutil.NewLogger(t)
	accounts := inmemdb.NewProgressRepository(db)
	repo := inmemdb.NewUserRepository(db)
	return user.NewService(repo, progress.NewService(accounts, nil, logger), logger), repo, accounts
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	svc, _, accounts := setup(t)

	usr, err := svc.Create(ctx, user.NewUser{
		Name:     "Amani",
		Username: "amani",
		Password: "Mi$$ion42",
	}, now)
	require.NoError(t, err)
	assert.NotEmpty(t, usr.ID)
	assert.True(t, usr.IsActive)
	assert.True(t, usr.IsLearner())
	assert.Equal(t, now, usr.CreatedAt)
	assert.NoError(t, usr.CheckPassword("Mi$$ion42"))
	assert.Error(t, usr.CheckPassword("wrong"))

	rec, err := accounts.GetProgress(ctx, usr.ID)
	require.NoError(t, err)
	assert.True(t, rec.IsEmpty())

	got, err := svc.GetByUsernameOrEmail(ctx, " AMANI ")
	require.NoError(t, err)
	assert.Equal(t, usr.ID, got.ID)

	_, err = svc.Create(ctx, user.NewUser{Name: "Other", Username: "amani", Password: "Mi$$ion42"}, now)
	assert.ErrorIs(t, err, user.ErrUsernameExists)
}

func TestService_Create_progressFails(t *testing.T) {
	db := inmemdb.Open()
	svc := user.NewService(inmemdb.NewUserRepository(db), failingInit{}, testutil.NewLogger(t))

	_, err := svc.Create(context.Background(), user.NewUser{Name: "Amani", Email: "a@test.cd", Password: "Mi$$ion42"}, now)
	assert.ErrorIs(t, err, core.ErrStorageUnavailable)
}

func TestService_CheckUniqueness(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := setup(t)
	testutil.CreateUser(t, repo, "Amani", "amani", "amani@test.cd", "", nil, true)

	tests := []struct {
		name      string
		uname     string
		email     string
		wantField string
	}{
		{name: "free", uname: "baraka", email: "baraka@test.cd"},
		{name: "username taken", uname: "amani", email: "other@test.cd", wantField: "username"},
		{name: "email taken", uname: "other", email: "amani@test.cd", wantField: "email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.CheckUniqueness(ctx, tt.uname, tt.email)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var verr *core.ValidationError
			require.True(t, errors.As(err, &verr))
			require.Len(t, verr.Fields, 1)
			assert.Equal(t, tt.wantField, verr.Fields[0].Field)
		})
	}
}

func TestService_QueryAll(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := setup(t)
	older := testutil.CreateUser(t, repo, "Old", "old", "", "", nil, true, now.Add(-time.Hour))
	newer := testutil.CreateUser(t, repo, "New", "new", "", "", nil, true, now)

	users, err := svc.QueryAll(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, newer.ID, users[0].ID)
	assert.Equal(t, older.ID, users[1].ID)
}

func TestService_SetLastLogin(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := setup(t)
	usr := testutil.CreateUser(t, repo, "Amani", "amani", "", "", nil, true)

	usr, err := svc.SetLastLogin(ctx, usr, now)
	require.NoError(t, err)
	assert.Equal(t, now, usr.LastLogin)

	stored, err := svc.GetByID(ctx, usr.ID)
	require.NoError(t, err)
	assert.Equal(t, now, stored.LastLogin)

	_, err = svc.GetByID(ctx, "missing")
	assert.Equal(t, user.ErrNotFound, err)
}
