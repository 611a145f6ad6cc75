package sqlxrepos

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/siku/core"
	"github.com/trezcool/siku/core/mission"
	"github.com/trezcool/siku/core/program"
)

const missionColumns = `id, seq, cycle, recurring, day_number, scheduled_time, title, category, duration, point_value,
	objectives, activity, materials, video_url, audio_url, victory_condition, archived, archived_at, created_at`

var catalogOrdering = core.DBOrdering{Field: "seq", Ascending: true}

type missionRow struct {
	ID               string         `db:"id"`
	Seq              int64          `db:"seq"`
	Cycle            int            `db:"cycle"`
	Recurring        bool           `db:"recurring"`
	Day              int            `db:"day_number"`
	ScheduledTime    string         `db:"scheduled_time"`
	Title            string         `db:"title"`
	Category         string         `db:"category"`
	Duration         string         `db:"duration"`
	Points           int            `db:"point_value"`
	Objectives       pq.StringArray `db:"objectives"`
	Activity         string         `db:"activity"`
	Materials        pq.StringArray `db:"materials"`
	VideoURL         null.String    `db:"video_url"`
	AudioURL         null.String    `db:"audio_url"`
	VictoryCondition string         `db:"victory_condition"`
	Archived         bool           `db:"archived"`
	ArchivedAt       null.Time      `db:"archived_at"`
	CreatedAt        time.Time      `db:"created_at"`
}

func toMissionRow(m mission.Mission) missionRow {
	return missionRow{
		ID:               m.ID,
		Cycle:            m.Cycle,
		Recurring:        m.Recurring,
		Day:              m.Day,
		ScheduledTime:    m.ScheduledTime,
		Title:            m.Title,
		Category:         m.Category,
		Duration:         m.Duration,
		Points:           m.Points,
		Objectives:       pq.StringArray(nonNil(m.Objectives)),
		Activity:         m.Activity,
		Materials:        pq.StringArray(nonNil(m.Materials)),
		VideoURL:         null.NewString(m.VideoURL, m.VideoURL != ""),
		AudioURL:         null.NewString(m.AudioURL, m.AudioURL != ""),
		VictoryCondition: m.VictoryCondition,
		Archived:         m.Archived,
		ArchivedAt:       null.NewTime(m.ArchivedAt, !m.ArchivedAt.IsZero()),
		CreatedAt:        m.CreatedAt,
	}
}

func (row missionRow) toMission() mission.Mission {
	return mission.Mission{
		ID:               row.ID,
		Seq:              row.Seq,
		Cycle:            row.Cycle,
		Recurring:        row.Recurring,
		Day:              row.Day,
		ScheduledTime:    row.ScheduledTime,
		Title:            row.Title,
		Category:         row.Category,
		Duration:         row.Duration,
		Points:           row.Points,
		Objectives:       nonNil(row.Objectives),
		Activity:         row.Activity,
		Materials:        nonNil(row.Materials),
		VideoURL:         row.VideoURL.String,
		AudioURL:         row.AudioURL.String,
		VictoryCondition: row.VictoryCondition,
		Archived:         row.Archived,
		ArchivedAt:       row.ArchivedAt.Time.UTC(),
		CreatedAt:        row.CreatedAt.UTC(),
	}
}

type missionRepository struct {
	db core.DB
}

var _ mission.Repository = (*missionRepository)(nil)

func NewMissionRepository(db core.DB) mission.Repository {
	return &missionRepository{db: db}
}

// CreateMissions inserts the whole batch in one transaction, in order.
func (repo *missionRepository) CreateMissions(ctx context.Context, missions []mission.Mission) ([]mission.Mission, error) {
	created := make([]mission.Mission, 0, len(missions))
	err := core.InTx(ctx, repo.db, func(tx core.DBExecutor) error {
		q := `INSERT INTO missions (id, cycle, recurring, day_number, scheduled_time, title, category, duration, point_value,
				objectives, activity, materials, video_url, audio_url, victory_condition, archived, archived_at, created_at)
			VALUES (:id, :cycle, :recurring, :day_number, :scheduled_time, :title, :category, :duration, :point_value,
				:objectives, :activity, :materials, :video_url, :audio_url, :victory_condition, :archived, :archived_at, :created_at)
			RETURNING seq`
		for _, m := range missions {
			row := toMissionRow(m)
			query, args, err := tx.BindNamed(q, row)
			if err != nil {
				return errors.Wrap(err, "binding mission")
			}
			if err = tx.QueryRowxContext(ctx, query, args...).Scan(&m.Seq); err != nil {
				if isUniqueViolation(err) {
					return mission.ErrExists
				}
				return errors.Wrapf(err, "inserting mission %q", m.ID)
			}
			created = append(created, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (repo *missionRepository) GetMission(ctx context.Context, id string) (mission.Mission, error) {
	var row missionRow
	q := `SELECT ` + missionColumns + ` FROM missions WHERE id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		if isNoRows(err) {
			return mission.Mission{}, mission.ErrNotFound
		}
		return mission.Mission{}, core.StorageError(err, "getting mission")
	}
	return row.toMission(), nil
}

func (repo *missionRepository) QueryMissions(ctx context.Context, filter mission.QueryFilter) ([]mission.Mission, error) {
	var (
		where []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if !filter.IncludeArchived {
		where = append(where, "NOT archived")
	}
	if filter.Until != nil {
		c, d := arg(filter.Until.Cycle), arg(filter.Until.Day)
		where = append(where, fmt.Sprintf(
			"((recurring AND day_number <= %s) OR (NOT recurring AND (cycle < %s OR (cycle = %s AND day_number <= %s))))", d, c, c, d))
	}
	if filter.Day != 0 {
		where = append(where, "day_number = "+arg(filter.Day))
	}
	if filter.Cycle != nil {
		where = append(where, "(recurring OR cycle = "+arg(*filter.Cycle)+")")
	}

	q := `SELECT ` + missionColumns + ` FROM missions`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY " + catalogOrdering.String()

	var rows []missionRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, core.StorageError(err, "querying missions")
	}
	missions := make([]mission.Mission, 0, len(rows))
	for _, row := range rows {
		missions = append(missions, row.toMission())
	}
	return missions, nil
}

// ArchiveBefore is a single UPDATE guarded by `NOT archived`, so reruns flag nothing.
// Recurring missions only compare day numbers.
func (repo *missionRepository) ArchiveBefore(ctx context.Context, pos program.Position, at time.Time) (int, error) {
	q := `UPDATE missions SET archived = TRUE, archived_at = $1
		WHERE NOT archived AND (
			(recurring AND day_number < $3) OR
			(NOT recurring AND (cycle < $2 OR (cycle = $2 AND day_number < $3))))`
	res, err := repo.db.ExecContext(ctx, q, at, pos.Cycle, pos.Day)
	if err != nil {
		return 0, core.StorageError(err, "archiving missions")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "counting archived missions")
	}
	return int(n), nil
}
