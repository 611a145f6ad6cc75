package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/trezcool/siku/core"
	"github.com/trezcool/siku/core/mission"
	"github.com/trezcool/siku/core/user"
)

// ProgramStart is the program start date used across tests.
var ProgramStart = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// DayOf returns noon of the given 1-based day of the given cycle, for an 8-day program starting at ProgramStart.
func DayOf(cycle, day int) time.Time {
	return ProgramStart.AddDate(0, 0, cycle*8+day-1).Add(12 * time.Hour)
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		ID:        fmt.Sprintf("00000000-0000-4000-8000-%012d", nextID()),
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

func CreateMissions(t *testing.T, repo mission.Repository, missions ...mission.Mission) []mission.Mission {
	for i := range missions {
		if missions[i].CreatedAt.IsZero() {
			missions[i].CreatedAt = ProgramStart
		}
		if missions[i].Objectives == nil {
			missions[i].Objectives = []string{}
		}
		if missions[i].Materials == nil {
			missions[i].Materials = []string{}
		}
	}
	created, err := repo.CreateMissions(context.Background(), missions)
	if err != nil {
		t.Fatalf("createMissions() failed: %v", err)
	}
	return created
}

var (
	idMu   sync.Mutex
	lastID int
)

func nextID() int {
	idMu.Lock()
	defer idMu.Unlock()
	lastID++
	return lastID
}

// Entry is one recorded log call.
type Entry struct {
	Level string
	Msg   string
	Args  []interface{}
}

// Logger is a core.Logger that forwards to t.Log and records entries.
type Logger struct {
	t       testing.TB
	mu      sync.Mutex
	entries []Entry
}

var _ core.Logger = (*Logger)(nil)

func NewLogger(t testing.TB) *Logger {
	return &Logger{t: t}
}

func (l *Logger) log(level, msg string, args []interface{}) {
	l.mu.Lock()
	l.entries = append(l.entries, Entry{Level: level, Msg: msg, Args: args})
	l.mu.Unlock()
	l.t.Logf("%s: %s %v", level, msg, args)
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.log("DEBUG", msg, args) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log("INFO", msg, args) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.log("WARN", msg, args) }
func (l *Logger) Error(msg string, args ...interface{}) { l.log("ERROR", msg, args) }
func (l *Logger) Fatal(msg string, args ...interface{}) {
	l.log("FATAL", msg, args)
	l.t.FailNow()
}

// Entries returns the recorded entries of the given level.
func (l *Logger) Entries(level string) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, 0)
	for _, e := range l.entries {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}
