package mission

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/trezcool/siku/core"
)

// Row is a raw, schema-less catalog record as read from a JSON/YAML document.
type Row map[string]interface{}

// noTime sorts untimed missions after every timed one.
const noTime = math.MaxInt32

var clockLayouts = []string{"15:04", "15:04:05", "3:04PM", "3:04 PM", "3:04pm", "3:04 pm"}

// ParseClock parses a time of day and returns the minutes elapsed since midnight.
func ParseClock(s string) (int, error) {
	s = strings.TrimSpace(s)
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Hour()*60 + t.Minute(), nil
		}
	}
	return 0, fmt.Errorf("invalid time of day %q", s)
}

// FormatClock formats minutes since midnight as HH:MM.
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

func sortKey(m Mission) int {
	if m.ScheduledTime == "" {
		return noTime
	}
	minutes, err := ParseClock(m.ScheduledTime)
	if err != nil {
		return noTime
	}
	return minutes
}

// FromRow maps a raw row onto a Mission. Missing optional fields get their zero value;
// a missing ID or day number, or an unreadable time, makes the row malformed.
func FromRow(index int, row Row) (Mission, error) {
	malformed := func(id, field, reason string) error {
		return &core.MalformedRecordError{Index: index, ID: id, Field: field, Reason: reason}
	}

	id := core.CleanString(row.getString("id"))
	if id == "" {
		return Mission{}, malformed("", "id", "missing")
	}

	day, ok, err := row.getInt("day_number", "day")
	switch {
	case err != nil:
		return Mission{}, malformed(id, "day_number", err.Error())
	case !ok:
		return Mission{}, malformed(id, "day_number", "missing")
	case day < 1:
		return Mission{}, malformed(id, "day_number", fmt.Sprintf("must be at least 1 (got %d)", day))
	}

	// a row without a cycle comes back every cycle
	cycle, hasCycle, err := row.getInt("cycle")
	if err != nil || cycle < 0 {
		return Mission{}, malformed(id, "cycle", "must be a non-negative integer")
	}

	var scheduled string
	if raw := core.CleanString(row.getString("scheduled_time", "time")); raw != "" {
		minutes, err := ParseClock(raw)
		if err != nil {
			return Mission{}, malformed(id, "scheduled_time", err.Error())
		}
		scheduled = FormatClock(minutes)
	}

	points, _, err := row.getInt("point_value", "points")
	if err != nil {
		return Mission{}, malformed(id, "point_value", err.Error())
	}

	return Mission{
		ID:               id,
		Cycle:            cycle,
		Recurring:        !hasCycle,
		Day:              day,
		ScheduledTime:    scheduled,
		Title:            row.getString("title"),
		Category:         core.CleanString(row.getString("category", "type"), true /* lower */),
		Duration:         row.getString("duration"),
		Points:           points,
		Objectives:       row.getStrings("objectives"),
		Activity:         row.getString("activity", "description"),
		Materials:        row.getStrings("materials"),
		VideoURL:         row.getString("video_url"),
		AudioURL:         row.getString("audio_url"),
		VictoryCondition: row.getString("victory_condition"),
		Archived:         row.getBool("archived"),
	}, nil
}

// Normalize turns raw rows into day groups ordered by (cycle, day) and, within a day,
// by scheduled time; equal times keep their input order.
// A single malformed row rejects the whole batch.
func Normalize(rows []Row) ([]DayGroup, error) {
	missions := make([]Mission, 0, len(rows))
	for i, row := range rows {
		m, err := FromRow(i, row)
		if err != nil {
			return nil, err
		}
		m.Seq = int64(i)
		missions = append(missions, m)
	}
	return Group(missions), nil
}

// Group groups typed missions by (cycle, day), ordered like Normalize; ties are broken by Seq.
// The input slice is left untouched.
func Group(missions []Mission) []DayGroup {
	sorted := make([]Mission, len(missions))
	copy(sorted, missions)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Cycle != b.Cycle {
			return a.Cycle < b.Cycle
		}
		if a.Day != b.Day {
			return a.Day < b.Day
		}
		if ka, kb := sortKey(a), sortKey(b); ka != kb {
			return ka < kb
		}
		return a.Seq < b.Seq
	})

	groups := make([]DayGroup, 0)
	for _, m := range sorted {
		if n := len(groups); n == 0 || groups[n-1].Cycle != m.Cycle || groups[n-1].Day != m.Day {
			groups = append(groups, DayGroup{Cycle: m.Cycle, Day: m.Day})
		}
		last := &groups[len(groups)-1]
		last.Missions = append(last.Missions, m)
	}
	return groups
}

// field extraction

func (r Row) lookup(keys ...string) (interface{}, bool) {
	for _, k := range keys {
		if v, ok := r[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func (r Row) getString(keys ...string) string {
	v, ok := r.lookup(keys...)
	if !ok {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

func (r Row) getInt(keys ...string) (int, bool, error) {
	v, ok := r.lookup(keys...)
	if !ok {
		return 0, false, nil
	}
	switch val := v.(type) {
	case int:
		return val, true, nil
	case int64:
		return int(val), true, nil
	case int32:
		return int(val), true, nil
	case uint64:
		return int(val), true, nil
	case float64:
		if val != math.Trunc(val) {
			return 0, true, fmt.Errorf("not an integer: %v", val)
		}
		return int(val), true, nil
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return 0, false, nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, true, fmt.Errorf("not an integer: %q", val)
		}
		return n, true, nil
	default:
		return 0, true, fmt.Errorf("not an integer: %v", val)
	}
}

func (r Row) getBool(keys ...string) bool {
	v, ok := r.lookup(keys...)
	if !ok {
		return false
	}
	switch val := v.(type) {
	case bool:
		return val
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(val))
		return b
	default:
		return false
	}
}

func (r Row) getStrings(keys ...string) []string {
	v, ok := r.lookup(keys...)
	if !ok {
		return []string{}
	}
	switch val := v.(type) {
	case []string:
		out := make([]string, len(val))
		copy(out, val)
		return out
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if item != nil {
				out = append(out, fmt.Sprint(item))
			}
		}
		return out
	case string:
		if strings.TrimSpace(val) == "" {
			return []string{}
		}
		return []string{val}
	default:
		return []string{}
	}
}
