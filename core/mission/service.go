package mission

import (
	"context"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/siku/core"
	"github.com/trezcool/siku/core/program"
)

var (
	ErrNotFound = errors.New("mission not found")
	ErrExists   = errors.New("a mission with this ID already exists")
)

type (
	Repository interface {
		// CreateMissions inserts missions in order, assigning their Seq; it fails if an ID is taken.
		CreateMissions(ctx context.Context, missions []Mission) ([]Mission, error)
		GetMission(ctx context.Context, id string) (Mission, error)
		// QueryMissions returns the missions matching filter, in catalog insertion order.
		QueryMissions(ctx context.Context, filter QueryFilter) ([]Mission, error)
		// ArchiveBefore flags every unarchived mission that has passed at pos (see Mission.PassedAt),
		// in one batch, and returns how many were flagged.
		ArchiveBefore(ctx context.Context, pos program.Position, at time.Time) (int, error)
	}

	ServiceInterface interface {
		Today(ctx context.Context, now time.Time) (DayGroup, error)
		Catalog(ctx context.Context, now time.Time) ([]DayGroup, error)
		GetByID(ctx context.Context, id string) (Mission, error)
		GetAvailable(ctx context.Context, id string, now time.Time) (Mission, error)
		Import(ctx context.Context, missions []NewMission, now time.Time) ([]Mission, error)
		ImportRows(ctx context.Context, rows []Row, now time.Time) ([]Mission, error)
		ArchivePastDays(ctx context.Context, now time.Time) (int, error)
		Clock() program.Clock
	}

	Service struct {
		repo       Repository
		clock      program.Clock
		validate   *validator.Validate
		translator ut.Translator
		logger     core.Logger
	}
)

var (
	_ ServiceInterface = (*Service)(nil)

	// ErrNotAvailable is returned for missions of a future day, or archived ones.
	ErrNotAvailable = errors.New("mission not available")
)

// NewService expects validate to carry the mission validators (see InitValidators).
func NewService(
	repo Repository,
	clock program.Clock,
	validate *validator.Validate,
	translator ut.Translator,
	logger core.Logger,
) *Service {
	return &Service{repo: repo, clock: clock, validate: validate, translator: translator, logger: logger}
}

func (svc *Service) Clock() program.Clock { return svc.clock }

// Today returns the active missions of the current program day.
func (svc *Service) Today(ctx context.Context, now time.Time) (DayGroup, error) {
	pos := svc.clock.Position(now)
	missions, err := svc.repo.QueryMissions(ctx, QueryFilter{Day: pos.Day, Cycle: &pos.Cycle})
	if err != nil {
		return DayGroup{}, errors.Wrap(err, "querying today's missions")
	}
	today := DayGroup{Cycle: pos.Cycle, Day: pos.Day, Missions: []Mission{}}
	if groups := Group(occurrences(missions, pos.Cycle)); len(groups) > 0 {
		today.Missions = groups[0].Missions
	}
	return today, nil
}

// Catalog returns the visible catalog: active missions of the current day and of past, unarchived days.
func (svc *Service) Catalog(ctx context.Context, now time.Time) ([]DayGroup, error) {
	pos := svc.clock.Position(now)
	missions, err := svc.repo.QueryMissions(ctx, QueryFilter{Until: &pos})
	if err != nil {
		return nil, errors.Wrap(err, "querying catalog")
	}
	return Group(occurrences(missions, pos.Cycle)), nil
}

// occurrences places recurring missions in the given cycle.
func occurrences(missions []Mission, cycle int) []Mission {
	for i := range missions {
		missions[i] = missions[i].In(cycle)
	}
	return missions
}

func (svc *Service) GetByID(ctx context.Context, id string) (Mission, error) {
	return svc.repo.GetMission(ctx, core.CleanString(id))
}

// GetAvailable returns the mission only if it can be completed now.
func (svc *Service) GetAvailable(ctx context.Context, id string, now time.Time) (Mission, error) {
	m, err := svc.GetByID(ctx, id)
	if err != nil {
		return Mission{}, err
	}
	pos := svc.clock.Position(now)
	if m.Archived || !m.VisibleAt(pos) {
		return Mission{}, ErrNotAvailable
	}
	return m.In(pos.Cycle), nil
}

// Import adds already validated missions to the catalog in the given order.
func (svc *Service) Import(ctx context.Context, nms []NewMission, now time.Time) ([]Mission, error) {
	missions := make([]Mission, 0, len(nms))
	for _, nm := range nms {
		id := nm.ID
		if id == "" {
			id = uuid.New().String()
		}
		scheduled := nm.ScheduledTime
		if scheduled != "" {
			minutes, err := ParseClock(scheduled)
			if err != nil {
				return nil, core.NewArgumentError(err.Error())
			}
			scheduled = FormatClock(minutes)
		}
		missions = append(missions, Mission{
			ID:               id,
			Cycle:            nm.Cycle,
			Recurring:        nm.Recurring,
			Day:              nm.Day,
			ScheduledTime:    scheduled,
			Title:            nm.Title,
			Category:         nm.Category,
			Duration:         nm.Duration,
			Points:           nm.Points,
			Objectives:       nonNil(nm.Objectives),
			Activity:         nm.Activity,
			Materials:        nonNil(nm.Materials),
			VideoURL:         nm.VideoURL,
			AudioURL:         nm.AudioURL,
			VictoryCondition: nm.VictoryCondition,
			CreatedAt:        now.UTC(),
		})
	}
	created, err := svc.repo.CreateMissions(ctx, missions)
	if err != nil {
		return nil, errors.Wrap(err, "creating missions")
	}
	svc.logger.Info("missions imported", map[string]interface{}{"count": len(created)})
	return created, nil
}

// ImportRows normalizes and validates schema-less rows (rejecting the whole batch on the first
// malformed row) and imports them in catalog order.
func (svc *Service) ImportRows(ctx context.Context, rows []Row, now time.Time) ([]Mission, error) {
	nms := make([]NewMission, 0, len(rows))
	for i, row := range rows {
		m, err := FromRow(i, row)
		if err != nil {
			return nil, err
		}
		if m.Day > svc.clock.Days() {
			return nil, &core.MalformedRecordError{
				Index: i, ID: m.ID, Field: "day_number", Reason: "beyond the program cycle",
			}
		}
		nm := NewMission{
			ID:               m.ID,
			Cycle:            m.Cycle,
			Recurring:        m.Recurring,
			Day:              m.Day,
			ScheduledTime:    m.ScheduledTime,
			Title:            m.Title,
			Category:         m.Category,
			Duration:         m.Duration,
			Points:           m.Points,
			Objectives:       m.Objectives,
			Activity:         m.Activity,
			Materials:        m.Materials,
			VideoURL:         m.VideoURL,
			AudioURL:         m.AudioURL,
			VictoryCondition: m.VictoryCondition,
		}
		if err = nm.Validate(svc.validate); err != nil {
			return nil, svc.malformed(i, nm.ID, err)
		}
		nms = append(nms, nm)
	}
	return svc.Import(ctx, nms, now)
}

// malformed reports the first failed check of row i.
func (svc *Service) malformed(i int, id string, err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return errors.Wrapf(err, "validating mission %q", id)
	}
	fe := fieldErrs[0]
	return &core.MalformedRecordError{Index: i, ID: id, Field: fe.Field(), Reason: fe.Translate(svc.translator)}
}

// ArchivePastDays archives every active mission whose day has rolled past at `now`.
// Running it again with the same `now` archives nothing.
func (svc *Service) ArchivePastDays(ctx context.Context, now time.Time) (int, error) {
	pos := svc.clock.Position(now)
	n, err := svc.repo.ArchiveBefore(ctx, pos, now.UTC())
	if err != nil {
		return 0, errors.Wrap(err, "archiving missions")
	}
	svc.logger.Info("missions archived", map[string]interface{}{"count": n, "position": pos.String()})
	return n, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
