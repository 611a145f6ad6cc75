package inmemdb

import (
	"context"

	"github.com/trezcool/siku/core/progress"
)

type progressRepository struct {
	db *progressTable
}

var _ progress.AccountStore = (*progressRepository)(nil)

func NewProgressRepository(db *DB) progress.AccountStore {
	return &progressRepository{db: db.progress}
}

func (repo *progressRepository) GetProgress(_ context.Context, accountID string) (progress.CompletionRecord, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if rec, ok := repo.db.table[accountID]; ok {
		return rec.Clone(), nil
	}
	return progress.CompletionRecord{}, progress.ErrNotFound
}

// PutProgress swaps the whole record at once.
func (repo *progressRepository) PutProgress(_ context.Context, accountID string, rec progress.CompletionRecord) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	rec = rec.Clone()
	rec.SyncID = ""
	repo.db.table[accountID] = rec
	return nil
}
