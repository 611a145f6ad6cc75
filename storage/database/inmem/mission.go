package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/siku/core/mission"
	"github.com/trezcool/siku/core/program"
)

type missionRepository struct {
	db *missionTable
}

var _ mission.Repository = (*missionRepository)(nil)

func NewMissionRepository(db *DB) mission.Repository {
	return &missionRepository{db: db.mission}
}

func (repo *missionRepository) CreateMissions(_ context.Context, missions []mission.Mission) ([]mission.Mission, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	seen := make(map[string]bool, len(missions))
	for _, m := range missions {
		if _, ok := repo.db.table[m.ID]; ok || seen[m.ID] {
			return nil, mission.ErrExists
		}
		seen[m.ID] = true
	}

	created := make([]mission.Mission, 0, len(missions))
	for _, m := range missions {
		repo.db.seq++
		m.Seq = repo.db.seq
		m.Objectives = copyStrings(m.Objectives)
		m.Materials = copyStrings(m.Materials)
		stored := m
		repo.db.table[m.ID] = &stored
		created = append(created, m)
	}
	return created, nil
}

func (repo *missionRepository) GetMission(_ context.Context, id string) (mission.Mission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if m, ok := repo.db.table[id]; ok {
		return *m, nil
	}
	return mission.Mission{}, mission.ErrNotFound
}

func (repo *missionRepository) QueryMissions(_ context.Context, filter mission.QueryFilter) ([]mission.Mission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	missions := make([]mission.Mission, 0)
	for _, m := range repo.db.table {
		if filter.Matches(*m) {
			missions = append(missions, *m)
		}
	}
	sort.Slice(missions, func(i, j int) bool { return missions[i].Seq < missions[j].Seq })
	return missions, nil
}

func (repo *missionRepository) ArchiveBefore(_ context.Context, pos program.Position, at time.Time) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var n int
	for _, m := range repo.db.table {
		if !m.Archived && m.PassedAt(pos) {
			m.Archived = true
			m.ArchivedAt = at
			n++
		}
	}
	return n, nil
}

func copyStrings(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}
