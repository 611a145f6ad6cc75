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

func TestService_Reconcile(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		account     []string
		accPoints   int
		guest       []string
		guestPoints int
		wantStatus  progress.ResultStatus
		wantIDs     []string
		wantPoints  int
		wantAdded   []string
	}{
		{
			name:    "no guest progress",
			account: []string{"d1m1"}, accPoints: 50,
			wantStatus: progress.ResultNoOp, wantIDs: []string{"d1m1"}, wantPoints: 50, wantAdded: []string{},
		},
		{
			name:    "mission completed on both sides",
			account: []string{"d1m1"}, accPoints: 50,
			guest: []string{"d1m1"}, guestPoints: 20,
			wantStatus: progress.ResultMerged, wantIDs: []string{"d1m1"}, wantPoints: 70, wantAdded: []string{},
		},
		{
			name:    "disjoint missions",
			account: []string{"d1m1"}, accPoints: 50,
			guest: []string{"d2m1", "d2m2"}, guestPoints: 30,
			wantStatus: progress.ResultMerged, wantIDs: []string{"d1m1", "d2m1", "d2m2"}, wantPoints: 80,
			wantAdded: []string{"d2m1", "d2m2"},
		},
		{
			name:  "fresh account",
			guest: []string{"d1m2"}, guestPoints: 10,
			wantStatus: progress.ResultMerged, wantIDs: []string{"d1m2"}, wantPoints: 10, wantAdded: []string{"d1m2"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			f.seedAccount(t, "acc-1", tt.accPoints, tt.account...)
			if len(tt.guest) > 0 {
				_, err := f.guest.MergeIncrement(ctx, tt.guestPoints, tt.guest...)
				require.NoError(t, err)
			}

			res, err := f.svc.Reconcile(ctx, progress.Account("acc-1"), now)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, res.Status)
			assert.Equal(t, tt.wantAdded, res.Added)

			acc, err := f.svc.ProgressOf(ctx, progress.Account("acc-1"))
			require.NoError(t, err)
			assert.Equal(t, tt.wantIDs, acc.Completed.Sorted())
			assert.Equal(t, tt.wantPoints, acc.Points)

			// guest store is drained
			guest, err := f.guest.Load(ctx)
			require.NoError(t, err)
			assert.Nil(t, guest)

			// and a second run is a no-op
			res, err = f.svc.Reconcile(ctx, progress.Account("acc-1"), now)
			require.NoError(t, err)
			assert.Equal(t, progress.ResultNoOp, res.Status)
			acc, err = f.svc.ProgressOf(ctx, progress.Account("acc-1"))
			require.NoError(t, err)
			assert.Equal(t, tt.wantPoints, acc.Points)
		})
	}
}

func TestService_Reconcile_singlePut(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	_, err := f.guest.MergeIncrement(ctx, 20, "d1m1", "d1m2")
	require.NoError(t, err)

	_, err = f.svc.Reconcile(ctx, progress.Account("acc-1"), now)
	require.NoError(t, err)
	assert.Equal(t, 1, f.store.puts)
}

func TestService_Reconcile_putFails(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.seedAccount(t, "acc-1", 50, "d1m1")
	stored, err := f.guest.MergeIncrement(ctx, 20, "d1m1")
	require.NoError(t, err)

	f.store.setFailPut(true)
	res, err := f.svc.Reconcile(ctx, progress.Account("acc-1"), now)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrReconciliationIncomplete))
	assert.True(t, errors.Is(err, core.ErrStorageUnavailable))
	var incomplete *core.ReconciliationIncompleteError
	require.True(t, errors.As(err, &incomplete))
	assert.Equal(t, "acc-1", incomplete.AccountID)
	assert.Empty(t, res.Status)

	// guest progress is preserved
	guest, err := f.guest.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, guest)
	assert.Equal(t, stored.SyncID, guest.SyncID)
	assert.Equal(t, 20, guest.Points)

	// account untouched
	acc, err := f.svc.ProgressOf(ctx, progress.Account("acc-1"))
	require.NoError(t, err)
	assert.Equal(t, 50, acc.Points)

	// retry once the store is back
	f.store.setFailPut(false)
	res, err = f.svc.Reconcile(ctx, progress.Account("acc-1"), now)
	require.NoError(t, err)
	assert.Equal(t, progress.ResultMerged, res.Status)
	assert.Equal(t, 70, res.Record.Points)
	assert.Equal(t, 20, res.PointsAdded)
}

func TestService_Reconcile_clearFails(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.seedAccount(t, "acc-1", 50, "d1m1")
	_, err := f.guest.MergeIncrement(ctx, 20, "d2m1")
	require.NoError(t, err)

	f.cache.RemoveErr = errStoreDown
	res, err := f.svc.Reconcile(ctx, progress.Account("acc-1"), now)
	require.NoError(t, err)
	assert.Equal(t, progress.ResultMerged, res.Status)
	assert.True(t, errors.Is(res.ClearErr, core.ErrStorageUnavailable))
	assert.Len(t, f.logger.Entries("WARN"), 1)

	// the guest record could not be cleared: retrying must not add its points again
	f.cache.RemoveErr = nil
	res, err = f.svc.Reconcile(ctx, progress.Account("acc-1"), now)
	require.NoError(t, err)
	assert.Equal(t, progress.ResultAlreadyMerged, res.Status)
	assert.Equal(t, 70, res.Record.Points)

	guest, err := f.guest.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, guest)

	acc, err := f.svc.ProgressOf(ctx, progress.Account("acc-1"))
	require.NoError(t, err)
	assert.Equal(t, 70, acc.Points)
	assert.Equal(t, []string{"d1m1", "d2m1"}, acc.Completed.Sorted())
}

func TestService_Reconcile_invalid(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	_, err := f.svc.Reconcile(ctx, progress.Guest(), now)
	assert.IsType(t, &core.ArgumentError{}, err)

	server := progress.NewService(f.store, nil, f.logger)
	_, err = server.Reconcile(ctx, progress.Account("acc-1"), now)
	assert.Equal(t, progress.ErrNoGuestStore, err)

	f.cache.GetErr = errStoreDown
	_, err = f.svc.Reconcile(ctx, progress.Account("acc-1"), now)
	assert.True(t, errors.Is(err, core.ErrStorageUnavailable))
}

func TestService_ReconcileRecord(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	server := progress.NewService(f.store, nil, f.logger)
	f.seedAccount(t, "acc-1", 50, "d1m1")

	upload := progress.NewCompletionRecord()
	upload.Points = 20
	upload.Completed.Add("d1m1", "d3m1")
	upload.SyncID = "sync-1"

	res, err := server.ReconcileRecord(ctx, progress.Account("acc-1"), upload, now)
	require.NoError(t, err)
	assert.Equal(t, progress.ResultMerged, res.Status)
	assert.Equal(t, []string{"d3m1"}, res.Added)
	assert.Equal(t, 70, res.Record.Points)
	assert.True(t, res.Record.Syncs.Has(progress.SyncMark("sync-1", 20)))

	// the client retries the same upload
	res, err = server.ReconcileRecord(ctx, progress.Account("acc-1"), upload, now)
	require.NoError(t, err)
	assert.Equal(t, progress.ResultAlreadyMerged, res.Status)
	assert.Equal(t, 70, res.Record.Points)

	empty, err := server.ReconcileRecord(ctx, progress.Account("acc-1"), progress.NewCompletionRecord(), now)
	require.NoError(t, err)
	assert.Equal(t, progress.ResultNoOp, empty.Status)

	// the same guest record kept growing on the client: only the new part is merged
	upload.Points = 35
	upload.Completed.Add("d4m1")
	res, err = server.ReconcileRecord(ctx, progress.Account("acc-1"), upload, now)
	require.NoError(t, err)
	assert.Equal(t, progress.ResultMerged, res.Status)
	assert.Equal(t, []string{"d4m1"}, res.Added)
	assert.Equal(t, 15, res.PointsAdded)
	assert.Equal(t, 85, res.Record.Points)

	upload.Points = -1
	_, err = server.ReconcileRecord(ctx, progress.Account("acc-1"), upload, now)
	assert.IsType(t, &core.ArgumentError{}, err)
}
