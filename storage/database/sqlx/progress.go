package sqlxrepos

import (
	"context"
	"time"

	"github.com/lib/pq"

	"github.com/trezcool/siku/core"
	"github.com/trezcool/siku/core/progress"
)

type progressRow struct {
	AccountID string         `db:"account_id"`
	Points    int            `db:"points"`
	Completed pq.StringArray `db:"completed"`
	Syncs     pq.StringArray `db:"syncs"`
	UpdatedAt time.Time      `db:"updated_at"`
}

type progressRepository struct {
	db core.DB
}

var _ progress.AccountStore = (*progressRepository)(nil)

func NewProgressRepository(db core.DB) progress.AccountStore {
	return &progressRepository{db: db}
}

func (repo *progressRepository) GetProgress(ctx context.Context, accountID string) (progress.CompletionRecord, error) {
	var row progressRow
	q := `SELECT account_id, points, completed, syncs, updated_at FROM progress WHERE account_id = $1`
	if err := repo.db.GetContext(ctx, &row, q, accountID); err != nil {
		if isNoRows(err) {
			return progress.CompletionRecord{}, progress.ErrNotFound
		}
		return progress.CompletionRecord{}, core.StorageError(err, "getting progress")
	}
	return progress.CompletionRecord{
		Points:    row.Points,
		Completed: progress.NewIDSet(row.Completed...),
		Syncs:     progress.NewIDSet(row.Syncs...),
		UpdatedAt: row.UpdatedAt.UTC(),
	}, nil
}

// PutProgress writes points, completions and syncs in one statement.
func (repo *progressRepository) PutProgress(ctx context.Context, accountID string, rec progress.CompletionRecord) error {
	row := progressRow{
		AccountID: accountID,
		Points:    rec.Points,
		Completed: pq.StringArray(rec.Completed.Sorted()),
		Syncs:     pq.StringArray(rec.Syncs.Sorted()),
		UpdatedAt: rec.UpdatedAt,
	}
	q := `INSERT INTO progress (account_id, points, completed, syncs, updated_at)
		VALUES (:account_id, :points, :completed, :syncs, :updated_at)
		ON CONFLICT (account_id) DO UPDATE SET
			points = EXCLUDED.points,
			completed = EXCLUDED.completed,
			syncs = EXCLUDED.syncs,
			updated_at = EXCLUDED.updated_at`
	_, err := repo.db.NamedExecContext(ctx, q, row)
	return core.StorageError(err, "saving progress")
}
