package mission

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/siku/core"
	"github.com/trezcool/siku/core/program"
)

// Mission is an immutable catalog entry. Only Archived (and ArchivedAt) ever change, exactly once.
type Mission struct {
	ID               string    `json:"id" db:"id"`
	Seq              int64     `json:"-" db:"seq"` // catalog insertion order
	Cycle            int       `json:"cycle" db:"cycle"`
	Recurring        bool      `json:"recurring" db:"recurring"` // served every cycle; Cycle is ignored
	Day              int       `json:"day_number" db:"day_number"`
	ScheduledTime    string    `json:"scheduled_time" db:"scheduled_time"` // HH:MM, may be empty
	Title            string    `json:"title" db:"title"`
	Category         string    `json:"category" db:"category"`
	Duration         string    `json:"duration" db:"duration"`
	Points           int       `json:"point_value" db:"point_value"`
	Objectives       []string  `json:"objectives" db:"-"`
	Activity         string    `json:"activity" db:"activity"`
	Materials        []string  `json:"materials" db:"-"`
	VideoURL         string    `json:"video_url,omitempty" db:"-"`
	AudioURL         string    `json:"audio_url,omitempty" db:"-"`
	VictoryCondition string    `json:"victory_condition" db:"victory_condition"`
	Archived         bool      `json:"archived" db:"archived"`
	ArchivedAt       time.Time `json:"archived_at,omitempty" db:"-"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

func (m Mission) Position() program.Position {
	return program.Position{Cycle: m.Cycle, Day: m.Day}
}

// VisibleAt reports whether m's day is current or past at pos.
// A recurring mission only compares day numbers within pos's cycle.
func (m Mission) VisibleAt(pos program.Position) bool {
	if m.Recurring {
		return m.Day <= pos.Day
	}
	return !pos.Before(m.Position())
}

// PassedAt reports whether m's day has rolled past at pos.
func (m Mission) PassedAt(pos program.Position) bool {
	if m.Recurring {
		return m.Day < pos.Day
	}
	return m.Position().Before(pos)
}

// In returns the occurrence of m in the given cycle. Only recurring missions move.
func (m Mission) In(cycle int) Mission {
	if m.Recurring {
		m.Cycle = cycle
	}
	return m
}

// DayGroup is a program day with its missions in chronological order. Always derived, never stored.
type DayGroup struct {
	Cycle    int       `json:"cycle"`
	Day      int       `json:"day_number"`
	Missions []Mission `json:"missions"`
}

func (g DayGroup) Position() program.Position {
	return program.Position{Cycle: g.Cycle, Day: g.Day}
}

// Points sums the point values of the group's missions.
func (g DayGroup) Points() int {
	var total int
	for _, m := range g.Missions {
		total += m.Points
	}
	return total
}

// NewMission contains the information needed to add a mission to the catalog.
type NewMission struct {
	ID               string   `json:"id" yaml:"id" validate:"omitempty,max=64,printascii"`
	Cycle            int      `json:"cycle" yaml:"cycle" validate:"min=0"`
	Recurring        bool     `json:"recurring" yaml:"recurring"`
	Day              int      `json:"day_number" yaml:"day_number" validate:"required,min=1,cycleday"`
	ScheduledTime    string   `json:"scheduled_time" yaml:"scheduled_time" validate:"omitempty,clock"`
	Title            string   `json:"title" yaml:"title" validate:"required"`
	Category         string   `json:"category" yaml:"category"`
	Duration         string   `json:"duration" yaml:"duration"`
	Points           int      `json:"point_value" yaml:"point_value" validate:"min=0"`
	Objectives       []string `json:"objectives" yaml:"objectives"`
	Activity         string   `json:"activity" yaml:"activity"`
	Materials        []string `json:"materials" yaml:"materials"`
	VideoURL         string   `json:"video_url" yaml:"video_url" validate:"omitempty,url"`
	AudioURL         string   `json:"audio_url" yaml:"audio_url" validate:"omitempty,url"`
	VictoryCondition string   `json:"victory_condition" yaml:"victory_condition"`
}

func (nm *NewMission) Validate(validate *validator.Validate) error {
	nm.ID = core.CleanString(nm.ID)
	nm.Title = core.CleanString(nm.Title)
	nm.Category = core.CleanString(nm.Category, true /* lower */)
	nm.ScheduledTime = core.CleanString(nm.ScheduledTime)
	return validate.Struct(nm)
}

type QueryFilter struct {
	IncludeArchived bool
	// Until, when set, restricts the catalog to missions at or before this position.
	Until *program.Position
	Day   int // 0: any
	// Cycle, when set, keeps the missions of that cycle and the recurring ones.
	Cycle *int
}

// Matches reports whether m passes the filter.
func (qf QueryFilter) Matches(m Mission) bool {
	if m.Archived && !qf.IncludeArchived {
		return false
	}
	if qf.Until != nil && !m.VisibleAt(*qf.Until) {
		return false
	}
	if qf.Day != 0 && m.Day != qf.Day {
		return false
	}
	if qf.Cycle != nil && !m.Recurring && m.Cycle != *qf.Cycle {
		return false
	}
	return true
}
