package progress

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/siku/core"
)

const DefaultSessionKey = "siku.session"

// ErrNotLoggedIn is returned by account-only session operations on a guest session.
var ErrNotLoggedIn = errors.New("not logged in")

type sessionState struct {
	AccountID string `json:"account_id"`
	Token     string `json:"token"`
}

// Session is the identity of a device: guest until Login, then an account until Logout.
// Completions made as a guest go to the guest store and are drained into the account on login.
type Session struct {
	cache  Cache
	key    string
	svc    *Service
	logger core.Logger
}

func NewSession(cache Cache, key string, svc *Service, logger core.Logger) *Session {
	if key == "" {
		key = DefaultSessionKey
	}
	return &Session{cache: cache, key: key, svc: svc, logger: logger}
}

func (s *Session) load(ctx context.Context) (sessionState, error) {
	var st sessionState
	raw, ok, err := s.cache.Get(ctx, s.key)
	if err != nil {
		return st, core.StorageError(err, "reading session")
	}
	if !ok || raw == "" {
		return st, nil
	}
	if err = json.Unmarshal([]byte(raw), &st); err != nil {
		s.logger.Warn("ignoring corrupt session", map[string]interface{}{"key": s.key, "error": err})
		return sessionState{}, nil
	}
	return st, nil
}

// Identity returns the identity progress is currently recorded for.
func (s *Session) Identity(ctx context.Context) (Identity, error) {
	st, err := s.load(ctx)
	if err != nil {
		return Identity{}, err
	}
	if st.AccountID == "" {
		return Guest(), nil
	}
	return Account(st.AccountID), nil
}

// Token returns the API token of the logged in account, or "" for a guest.
func (s *Session) Token(ctx context.Context) (string, error) {
	st, err := s.load(ctx)
	return st.Token, err
}

// Login switches the device to accountID and reconciles guest progress into it.
// A failed reconciliation does not fail the login: the result is ResultPending and
// the merge is retried by the next MarkComplete or Sync.
func (s *Session) Login(ctx context.Context, accountID, token string, now time.Time) (ReconciliationResult, error) {
	accountID = core.CleanString(accountID)
	if accountID == "" {
		return ReconciliationResult{}, core.NewArgumentError("account ID is required")
	}
	data, err := json.Marshal(sessionState{AccountID: accountID, Token: token})
	if err != nil {
		return ReconciliationResult{}, errors.Wrap(err, "encoding session")
	}
	if err = s.cache.Set(ctx, s.key, string(data)); err != nil {
		return ReconciliationResult{}, core.StorageError(err, "writing session")
	}

	res, err := s.svc.Reconcile(ctx, Account(accountID), now)
	if err != nil {
		s.logger.Warn("reconciliation pending after login", map[string]interface{}{"account": accountID, "error": err})
		return ReconciliationResult{Status: ResultPending, AccountID: accountID, Added: []string{}, At: now.UTC(), Err: err}, nil
	}
	return res, nil
}

// Logout forgets the account. Later completions are recorded as guest progress.
func (s *Session) Logout(ctx context.Context) error {
	return core.StorageError(s.cache.Remove(ctx, s.key), "clearing session")
}

// MarkComplete records a completion for the session's identity.
// For an account, pending guest progress is reconciled first, under the same lock,
// so a completion made after login is never merged twice.
func (s *Session) MarkComplete(ctx context.Context, missionID string, points int, now time.Time) (CompletionRecord, error) {
	id, err := s.Identity(ctx)
	if err != nil {
		return CompletionRecord{}, err
	}
	if id.IsGuest() {
		return s.svc.MarkComplete(ctx, id, missionID, points, now)
	}

	missionID = core.CleanString(missionID)
	if missionID == "" {
		return CompletionRecord{}, core.NewArgumentError("mission ID is required")
	}
	if points < 0 {
		return CompletionRecord{}, core.NewArgumentError("points cannot be negative")
	}

	unlock := s.svc.locks.lock(id.String())
	defer unlock()

	if _, err = s.svc.reconcileLocked(ctx, id.AccountID, now); err != nil {
		s.logger.Warn("reconciliation still pending", map[string]interface{}{"account": id.AccountID, "error": err})
	}
	return s.svc.markAccountComplete(ctx, id.AccountID, missionID, points, now)
}

// Progress returns the progress of the session's identity.
func (s *Session) Progress(ctx context.Context) (CompletionRecord, error) {
	id, err := s.Identity(ctx)
	if err != nil {
		return CompletionRecord{}, err
	}
	return s.svc.ProgressOf(ctx, id)
}

// Sync retries the reconciliation of the logged in account.
func (s *Session) Sync(ctx context.Context, now time.Time) (ReconciliationResult, error) {
	id, err := s.Identity(ctx)
	if err != nil {
		return ReconciliationResult{}, err
	}
	if id.IsGuest() {
		return ReconciliationResult{}, ErrNotLoggedIn
	}
	return s.svc.Reconcile(ctx, id, now)
}
