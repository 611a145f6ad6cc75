package progress

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/siku/core"
)

const DefaultGuestKey = "siku.guestProgress"

// Cache is a device-local string store.
// Get reports ok=false for a missing key; any returned error means the cache could not be reached.
type Cache interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// GuestStore keeps the progress of an unauthenticated user under one fixed cache key.
// It lives on the originating device only and is never a substitute for the account record.
type GuestStore struct {
	cache  Cache
	key    string
	logger core.Logger
}

func NewGuestStore(cache Cache, key string, logger core.Logger) *GuestStore {
	if key == "" {
		key = DefaultGuestKey
	}
	return &GuestStore{cache: cache, key: key, logger: logger}
}

// Load returns the stored guest record, or nil when there is none.
// A corrupt payload is logged and treated as absent.
func (gs *GuestStore) Load(ctx context.Context) (*CompletionRecord, error) {
	raw, ok, err := gs.cache.Get(ctx, gs.key)
	if err != nil {
		return nil, core.StorageError(err, "reading guest progress")
	}
	if !ok || raw == "" {
		return nil, nil
	}

	var rec CompletionRecord
	if err = json.Unmarshal([]byte(raw), &rec); err != nil || rec.Points < 0 {
		gs.logger.Warn("ignoring corrupt guest progress", map[string]interface{}{"key": gs.key, "error": err})
		return nil, nil
	}
	if rec.Completed == nil {
		rec.Completed = NewIDSet()
	}
	rec.Syncs = nil
	return &rec, nil
}

// Save overwrites the stored guest record.
func (gs *GuestStore) Save(ctx context.Context, rec CompletionRecord) error {
	rec = rec.Clone()
	if rec.SyncID == "" {
		rec.SyncID = uuid.New().String()
	}
	rec.Syncs = nil
	data, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "encoding guest progress")
	}
	return core.StorageError(gs.cache.Set(ctx, gs.key, string(data)), "writing guest progress")
}

// MergeIncrement adds pointsDelta to the stored points and unions ids into the completed set.
// Retrying with the same ids never duplicates a mission.
func (gs *GuestStore) MergeIncrement(ctx context.Context, pointsDelta int, ids ...string) (CompletionRecord, error) {
	if pointsDelta < 0 {
		return CompletionRecord{}, core.NewArgumentError("guest points can only grow")
	}
	rec, err := gs.Load(ctx)
	if err != nil {
		return CompletionRecord{}, err
	}
	if rec == nil {
		fresh := NewCompletionRecord()
		rec = &fresh
	}
	if rec.SyncID == "" {
		rec.SyncID = uuid.New().String()
	}
	rec.Points += pointsDelta
	rec.Completed.Add(ids...)
	if err = gs.Save(ctx, *rec); err != nil {
		return CompletionRecord{}, err
	}
	return *rec, nil
}

// Clear removes the stored guest record entirely.
func (gs *GuestStore) Clear(ctx context.Context) error {
	return core.StorageError(gs.cache.Remove(ctx, gs.key), "clearing guest progress")
}
