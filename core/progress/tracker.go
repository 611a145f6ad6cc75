// Package progress tracks mission completions per identity, keeps guest progress on the device
// and reconciles it into account records.
package progress

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/siku/core"
)

var (
	ErrNotFound = errors.New("progress record not found")
	// ErrRegression is returned when a write would remove a completion or take points away.
	ErrRegression = errors.New("progress cannot go backwards")
	// ErrNoGuestStore is returned for guest identities where no device cache is available (eg: the API server).
	ErrNoGuestStore = errors.New("guest progress is not available here")
)

type (
	// AccountStore is the durable store of account records.
	// Put must write the whole record in one call: points, completions and syncs together or not at all.
	AccountStore interface {
		GetProgress(ctx context.Context, accountID string) (CompletionRecord, error)
		PutProgress(ctx context.Context, accountID string, rec CompletionRecord) error
	}

	ServiceInterface interface {
		MarkComplete(ctx context.Context, id Identity, missionID string, points int, now time.Time) (CompletionRecord, error)
		ProgressOf(ctx context.Context, id Identity) (CompletionRecord, error)
		InitAccount(ctx context.Context, accountID string, now time.Time) error
		Replace(ctx context.Context, accountID string, rec CompletionRecord, now time.Time) (CompletionRecord, error)
		Reconcile(ctx context.Context, id Identity, now time.Time) (ReconciliationResult, error)
		ReconcileRecord(ctx context.Context, id Identity, guest CompletionRecord, now time.Time) (ReconciliationResult, error)
	}

	Service struct {
		accounts AccountStore
		guest    *GuestStore // nil when not running on a device
		locks    *keyLocks
		logger   core.Logger
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(accounts AccountStore, guest *GuestStore, logger core.Logger) *Service {
	return &Service{
		accounts: accounts,
		guest:    guest,
		locks:    newKeyLocks(),
		logger:   logger,
	}
}

// MarkComplete records missionID as completed by id and awards points the first time only.
// Catalog membership is not checked; re-marking a mission is a no-op.
func (svc *Service) MarkComplete(ctx context.Context, id Identity, missionID string, points int, now time.Time) (CompletionRecord, error) {
	missionID = core.CleanString(missionID)
	if missionID == "" {
		return CompletionRecord{}, core.NewArgumentError("mission ID is required")
	}
	if points < 0 {
		return CompletionRecord{}, core.NewArgumentError("points cannot be negative")
	}

	unlock := svc.locks.lock(id.String())
	defer unlock()

	if id.IsGuest() {
		return svc.markGuestComplete(ctx, missionID, points)
	}
	return svc.markAccountComplete(ctx, id.AccountID, missionID, points, now)
}

func (svc *Service) markGuestComplete(ctx context.Context, missionID string, points int) (CompletionRecord, error) {
	if svc.guest == nil {
		return CompletionRecord{}, ErrNoGuestStore
	}
	rec, err := svc.guest.Load(ctx)
	if err != nil {
		return CompletionRecord{}, err
	}
	if rec != nil && rec.HasCompleted(missionID) {
		return rec.Clone(), nil
	}
	return svc.guest.MergeIncrement(ctx, points, missionID)
}

func (svc *Service) markAccountComplete(ctx context.Context, accountID, missionID string, points int, now time.Time) (CompletionRecord, error) {
	rec, err := svc.getAccount(ctx, accountID)
	if err != nil {
		return CompletionRecord{}, err
	}
	if rec.HasCompleted(missionID) {
		return rec, nil
	}
	rec.Completed.Add(missionID)
	rec.Points += points
	rec.UpdatedAt = now.UTC()
	if err = svc.accounts.PutProgress(ctx, accountID, rec); err != nil {
		return CompletionRecord{}, errors.Wrap(err, "saving account progress")
	}
	return rec, nil
}

// ProgressOf returns a snapshot of id's progress. A guest without progress gets an empty record.
func (svc *Service) ProgressOf(ctx context.Context, id Identity) (CompletionRecord, error) {
	if id.IsGuest() {
		if svc.guest == nil {
			return CompletionRecord{}, ErrNoGuestStore
		}
		rec, err := svc.guest.Load(ctx)
		if err != nil {
			return CompletionRecord{}, err
		}
		if rec == nil {
			return NewCompletionRecord(), nil
		}
		return rec.Clone(), nil
	}
	return svc.getAccount(ctx, id.AccountID)
}

// InitAccount creates the empty record of a new account. Existing records are left untouched.
func (svc *Service) InitAccount(ctx context.Context, accountID string, now time.Time) error {
	unlock := svc.locks.lock(Account(accountID).String())
	defer unlock()

	if _, err := svc.accounts.GetProgress(ctx, accountID); err == nil {
		return nil
	} else if !errors.Is(err, ErrNotFound) {
		return errors.Wrap(err, "getting account progress")
	}
	rec := NewCompletionRecord()
	rec.UpdatedAt = now.UTC()
	return errors.Wrap(svc.accounts.PutProgress(ctx, accountID, rec), "creating account progress")
}

// Replace stores rec as the account's record, provided it only extends the current one.
// Merged guest sync IDs are kept whatever rec holds.
func (svc *Service) Replace(ctx context.Context, accountID string, rec CompletionRecord, now time.Time) (CompletionRecord, error) {
	unlock := svc.locks.lock(Account(accountID).String())
	defer unlock()

	curr, err := svc.getAccount(ctx, accountID)
	if err != nil {
		return CompletionRecord{}, err
	}
	next := rec.Clone()
	next.SyncID = ""
	next.Syncs = curr.Syncs.Union(next.Syncs)
	if !curr.ExtendedBy(next) {
		return CompletionRecord{}, ErrRegression
	}
	next.UpdatedAt = now.UTC()
	if err = svc.accounts.PutProgress(ctx, accountID, next); err != nil {
		return CompletionRecord{}, errors.Wrap(err, "saving account progress")
	}
	return next, nil
}

// getAccount returns a copy of the account record whose sets are safe to mutate.
// An account without a record yet reads as empty.
func (svc *Service) getAccount(ctx context.Context, accountID string) (CompletionRecord, error) {
	if accountID == "" {
		return CompletionRecord{}, core.NewArgumentError("account ID is required")
	}
	rec, err := svc.accounts.GetProgress(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return NewCompletionRecord(), nil
		}
		return CompletionRecord{}, errors.Wrap(err, "getting account progress")
	}
	return rec.Clone(), nil
}

// keyLocks serializes the read-modify-write cycles of one identity within the process.
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sync.Mutex
	refs int
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: make(map[string]*keyLock)}
}

func (kl *keyLocks) lock(key string) (unlock func()) {
	kl.mu.Lock()
	l, ok := kl.locks[key]
	if !ok {
		l = new(keyLock)
		kl.locks[key] = l
	}
	l.refs++
	kl.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		kl.mu.Lock()
		if l.refs--; l.refs == 0 {
			delete(kl.locks, key)
		}
		kl.mu.Unlock()
	}
}
