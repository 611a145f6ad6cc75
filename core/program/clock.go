// Package program maps calendar dates onto the fixed-length cycle of program days.
package program

import (
	"fmt"
	"time"

	"github.com/trezcool/siku/core"
)

const DefaultCycleDays = 8

const secondsPerDay = 24 * 60 * 60

// Position locates a program day inside the endless sequence of cycles.
// Cycle 0 starts on the program start date; earlier dates have negative cycles.
type Position struct {
	Cycle int `json:"cycle"`
	Day   int `json:"day"` // 1..N
}

// Before reports whether p comes strictly before o.
func (p Position) Before(o Position) bool {
	if p.Cycle != o.Cycle {
		return p.Cycle < o.Cycle
	}
	return p.Day < o.Day
}

func (p Position) String() string {
	return fmt.Sprintf("cycle %d, day %d", p.Cycle, p.Day)
}

// Clock is the Day Clock. It holds no mutable state: every answer is a function of `now`.
type Clock struct {
	start time.Time // midnight of the start date, in the start date's location
	days  int
}

func NewClock(start time.Time, days int) (Clock, error) {
	if days < 1 {
		return Clock{}, core.NewArgumentError(fmt.Sprintf("program cycle must last at least 1 day (got %d)", days))
	}
	return Clock{start: midnight(start, start.Location()), days: days}, nil
}

// MustClock is like NewClock but panics on an invalid cycle length.
func MustClock(start time.Time, days int) Clock {
	c, err := NewClock(start, days)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Clock) Start() time.Time { return c.start }

func (c Clock) Days() int { return c.days }

// Elapsed returns the number of calendar days between the start date and now's date,
// both taken in the start date's location. It is negative when now is before the start.
func (c Clock) Elapsed(now time.Time) int {
	return civilDay(now.In(c.start.Location())) - civilDay(c.start)
}

// civilDay numbers t's calendar date from 1970-01-01. The date is rebuilt in UTC so that
// DST transitions cannot shorten or stretch a day, and counted in seconds so that it
// does not overflow time.Duration centuries away from the start.
func civilDay(t time.Time) int {
	return int(time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).Unix() / secondsPerDay)
}

// CurrentDay returns the program day of now, always within [1, N].
func (c Clock) CurrentDay(now time.Time) int {
	return floorMod(c.Elapsed(now), c.days) + 1
}

// Cycle returns the zero-based cycle iteration now falls in.
func (c Clock) Cycle(now time.Time) int {
	return floorDiv(c.Elapsed(now), c.days)
}

func (c Clock) Position(now time.Time) Position {
	elapsed := c.Elapsed(now)
	return Position{Cycle: floorDiv(elapsed, c.days), Day: floorMod(elapsed, c.days) + 1}
}

// DateOf returns the calendar date (midnight, start location) on which pos begins.
func (c Clock) DateOf(pos Position) time.Time {
	return c.start.AddDate(0, 0, pos.Cycle*c.days+pos.Day-1)
}

func midnight(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// floorMod is a modulo whose result always has the sign of n: floorMod(-1, 8) == 7.
func floorMod(a, n int) int {
	return ((a % n) + n) % n
}

func floorDiv(a, n int) int {
	q := a / n
	if a%n != 0 && (a < 0) != (n < 0) {
		q--
	}
	return q
}
