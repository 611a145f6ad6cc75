// Package inmemdb implements the repositories in memory, for tests and DB_ENGINE=memory.
package inmemdb

import (
	"sync"

	"github.com/trezcool/siku/core/mission"
	"github.com/trezcool/siku/core/progress"
	"github.com/trezcool/siku/core/user"
)

type (
	DB struct {
		mission  *missionTable
		user     *userTable
		progress *progressTable
	}

	missionTable struct {
		mutex sync.RWMutex
		seq   int64
		table map[string]*mission.Mission
	}

	userTable struct {
		mutex sync.RWMutex
		table map[string]*user.User
	}

	progressTable struct {
		mutex sync.RWMutex
		table map[string]progress.CompletionRecord
	}
)

func Open() *DB {
	return &DB{
		mission:  &missionTable{table: make(map[string]*mission.Mission)},
		user:     &userTable{table: make(map[string]*user.User)},
		progress: &progressTable{table: make(map[string]progress.CompletionRecord)},
	}
}
