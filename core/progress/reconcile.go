package progress

import (
	"context"
	"time"

	"github.com/trezcool/siku/core"
)

// Reconcile drains the device's guest progress into the account of id.
// The guest store is cleared only once the combined account record has been written;
// a failed write returns a *core.ReconciliationIncompleteError and leaves guest progress in place.
func (svc *Service) Reconcile(ctx context.Context, id Identity, now time.Time) (ReconciliationResult, error) {
	if id.IsGuest() || id.AccountID == "" {
		return ReconciliationResult{}, core.NewArgumentError("reconciliation needs an account")
	}
	if svc.guest == nil {
		return ReconciliationResult{}, ErrNoGuestStore
	}

	unlock := svc.locks.lock(id.String())
	defer unlock()
	return svc.reconcileLocked(ctx, id.AccountID, now)
}

func (svc *Service) reconcileLocked(ctx context.Context, accountID string, now time.Time) (ReconciliationResult, error) {
	guest, err := svc.guest.Load(ctx)
	if err != nil {
		return ReconciliationResult{}, err
	}
	if guest == nil || guest.IsEmpty() {
		return ReconciliationResult{Status: ResultNoOp, AccountID: accountID, Added: []string{}, At: now.UTC()}, nil
	}

	res, err := svc.merge(ctx, accountID, *guest, now)
	if err != nil {
		return res, err
	}

	if err = svc.guest.Clear(ctx); err != nil {
		res.ClearErr = err
		svc.logger.Warn("guest progress merged but not cleared", map[string]interface{}{
			"account": accountID,
			"sync_id": guest.SyncID,
			"error":   err,
		})
	}
	return res, nil
}

// ReconcileRecord merges a guest record uploaded by a client that keeps guest progress itself.
// Retrying with the same record (same SyncID) adds nothing.
func (svc *Service) ReconcileRecord(ctx context.Context, id Identity, guest CompletionRecord, now time.Time) (ReconciliationResult, error) {
	if id.IsGuest() || id.AccountID == "" {
		return ReconciliationResult{}, core.NewArgumentError("reconciliation needs an account")
	}
	if guest.Points < 0 {
		return ReconciliationResult{}, core.NewArgumentError("guest points cannot be negative")
	}
	if guest.IsEmpty() {
		return ReconciliationResult{Status: ResultNoOp, AccountID: id.AccountID, Added: []string{}, At: now.UTC()}, nil
	}

	unlock := svc.locks.lock(id.String())
	defer unlock()
	return svc.merge(ctx, id.AccountID, guest.Clone(), now)
}

// merge writes account ∪ guest into the account in a single put.
// Points are added on top of the account's, even for missions both sides completed.
// A guest record merged before only contributes what it gained since: new missions
// and the points above those already merged from it.
func (svc *Service) merge(ctx context.Context, accountID string, guest CompletionRecord, now time.Time) (ReconciliationResult, error) {
	res := ReconciliationResult{AccountID: accountID, Added: []string{}, At: now.UTC()}

	account, err := svc.getAccount(ctx, accountID)
	if err != nil {
		return res, &core.ReconciliationIncompleteError{AccountID: accountID, Err: err}
	}

	added := account.Completed.Missing(guest.Completed)
	pointsAdded := guest.Points
	if before, ok := account.MergedPoints(guest.SyncID); ok {
		pointsAdded = guest.Points - before
		if pointsAdded < 0 {
			pointsAdded = 0
		}
		if pointsAdded == 0 && len(added) == 0 {
			res.Status = ResultAlreadyMerged
			res.Record = account
			svc.logger.Info("guest progress already merged", map[string]interface{}{
				"account": accountID,
				"sync_id": guest.SyncID,
			})
			return res, nil
		}
	}

	merged := account.Clone()
	merged.Completed = account.Completed.Union(guest.Completed)
	merged.Points = account.Points + pointsAdded
	if guest.SyncID != "" {
		merged.Syncs.Add(SyncMark(guest.SyncID, guest.Points))
	}
	merged.SyncID = ""
	merged.UpdatedAt = now.UTC()

	if err = svc.accounts.PutProgress(ctx, accountID, merged); err != nil {
		return res, &core.ReconciliationIncompleteError{AccountID: accountID, Err: err}
	}

	res.Status = ResultMerged
	res.Added = added
	res.PointsAdded = pointsAdded
	res.Record = merged
	svc.logger.Info("guest progress merged", map[string]interface{}{
		"account":      accountID,
		"added":        len(added),
		"points_added": pointsAdded,
	})
	return res, nil
}
