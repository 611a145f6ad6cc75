package progress_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/siku/core"
	"github.com/trezcool/siku/core/progress"
)

func TestGuestStore_Load(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		raw        string
		wantNil    bool
		wantPoints int
		wantIDs    []string
		wantWarn   bool
	}{
		{name: "absent", wantNil: true},
		{name: "empty string", raw: "", wantNil: true},
		{name: "not json", raw: "{oops", wantNil: true, wantWarn: true},
		{name: "wrong shape", raw: `{"points": "many"}`, wantNil: true, wantWarn: true},
		{name: "negative points", raw: `{"points": -5, "completed": ["a"]}`, wantNil: true, wantWarn: true},
		{name: "no completed", raw: `{"points": 5}`, wantPoints: 5, wantIDs: []string{}},
		{name: "duplicates", raw: `{"points": 5, "completed": ["b", "a", "b"]}`, wantPoints: 5, wantIDs: []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			if tt.raw != "" {
				require.NoError(t, f.cache.Set(ctx, progress.DefaultGuestKey, tt.raw))
			}

			rec, err := f.guest.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.wantWarn, len(f.logger.Entries("WARN")) > 0)
			if tt.wantNil {
				assert.Nil(t, rec)
				return
			}
			require.NotNil(t, rec)
			assert.Equal(t, tt.wantPoints, rec.Points)
			assert.Equal(t, tt.wantIDs, rec.Completed.Sorted())
		})
	}
}

func TestGuestStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	rec := progress.NewCompletionRecord()
	rec.Points = 35
	rec.Completed.Add("d1m1", "d1m2")
	rec.Syncs.Add("never-stored")
	require.NoError(t, f.guest.Save(ctx, rec))

	got, err := f.guest.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 35, got.Points)
	assert.Equal(t, []string{"d1m1", "d1m2"}, got.Completed.Sorted())
	assert.NotEmpty(t, got.SyncID)
	assert.Empty(t, got.Syncs)

	// overwrite keeps the sync ID it is given
	got.Points = 40
	require.NoError(t, f.guest.Save(ctx, *got))
	again, err := f.guest.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, got.SyncID, again.SyncID)
	assert.Equal(t, 40, again.Points)
}

func TestGuestStore_MergeIncrement(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	first, err := f.guest.MergeIncrement(ctx, 10, "d1m1")
	require.NoError(t, err)
	assert.Equal(t, 10, first.Points)
	assert.NotEmpty(t, first.SyncID)

	// union absorbs duplicates
	rec, err := f.guest.MergeIncrement(ctx, 5, "d1m1", "d1m2")
	require.NoError(t, err)
	assert.Equal(t, 15, rec.Points)
	assert.Equal(t, []string{"d1m1", "d1m2"}, rec.Completed.Sorted())
	assert.Equal(t, first.SyncID, rec.SyncID)

	stored, err := f.guest.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, rec.Points, stored.Points)
	assert.Equal(t, rec.SyncID, stored.SyncID)

	_, err = f.guest.MergeIncrement(ctx, -1)
	assert.IsType(t, &core.ArgumentError{}, err)
}

func TestGuestStore_Clear(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	_, err := f.guest.MergeIncrement(ctx, 10, "d1m1")
	require.NoError(t, err)
	require.NoError(t, f.guest.Clear(ctx))

	rec, err := f.guest.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, rec)

	// clearing nothing is fine
	require.NoError(t, f.guest.Clear(ctx))
}

func TestGuestStore_unavailable(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.cache.GetErr = errStoreDown

	_, err := f.guest.Load(ctx)
	assert.True(t, errors.Is(err, core.ErrStorageUnavailable))
	assert.True(t, errors.Is(err, errStoreDown))
}
