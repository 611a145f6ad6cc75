package tests

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/siku/apps/api/echo"
	"github.com/trezcool/siku/core/mission"
	"github.com/trezcool/siku/core/program"
	"github.com/trezcool/siku/core/user"
	testutil "github.com/trezcool/siku/tests"
)

func seedMissions(t *testing.T, e *env) {
	testutil.CreateMissions(t, e.missionRepo,
		mission.Mission{ID: "d1m1", Day: 1, ScheduledTime: "09:00", Title: "Morning run", Points: 10},
		mission.Mission{ID: "d2m2", Day: 2, ScheduledTime: "14:00", Title: "Read a chapter", Points: 15},
		mission.Mission{ID: "d2m1", Day: 2, ScheduledTime: "08:30", Title: "Make breakfast", Points: 20},
		mission.Mission{ID: "d3m1", Day: 3, ScheduledTime: "10:00", Title: "Plant a seed", Points: 25},
	)
}

func groupIDs(groups ...mission.DayGroup) [][]string {
	out := make([][]string, 0, len(groups))
	for _, g := range groups {
		ids := make([]string, 0, len(g.Missions))
		for _, m := range g.Missions {
			ids = append(ids, m.ID)
		}
		out = append(out, ids)
	}
	return out
}

func Test_missionApi_today(t *testing.T) {
	e := setup(t)
	seedMissions(t, e)

	tests := []struct {
		name    string
		path    string
		wantDay int
		wantIDs []string
	}{
		{name: "server clock", path: "/v1/missions/today", wantDay: 2, wantIDs: []string{"d2m1", "d2m2"}},
		{
			name: "at override", path: "/v1/missions/today?at=" + testutil.DayOf(0, 3).Format(time.RFC3339),
			wantDay: 3, wantIDs: []string{"d3m1"},
		},
		{
			name: "day without missions", path: "/v1/missions/today?at=" + testutil.DayOf(0, 8).Format(time.RFC3339),
			wantDay: 8, wantIDs: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodGet, tt.path)
			e.app.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var group mission.DayGroup
			unmarshalObj(t, rec, &group)
			assert.Equal(t, tt.wantDay, group.Day)
			assert.Equal(t, [][]string{tt.wantIDs}, groupIDs(group))
		})
	}

	e.run(t, []httpTest{
		{
			name: "bad at", path: "/v1/missions/today?at=yesterday", wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"at": "must be an RFC3339 timestamp"}),
		},
	})
}

func Test_missionApi_catalog(t *testing.T) {
	e := setup(t)
	seedMissions(t, e)

	req, rec := newRequest(http.MethodGet, "/v1/missions")
	e.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var groups []mission.DayGroup
	unmarshalObj(t, rec, &groups)
	assert.Equal(t, [][]string{{"d1m1"}, {"d2m1", "d2m2"}}, groupIDs(groups...))
}

func Test_missionApi_retrieve(t *testing.T) {
	e := setup(t)
	seedMissions(t, e)
	m, err := e.missionRepo.GetMission(context.Background(), "d3m1")
	require.NoError(t, err)

	e.run(t, []httpTest{
		{name: "found", path: "/v1/missions/d3m1", wantCode: http.StatusOK, wantData: marshalObj(t, m)},
		{
			name: "not found", path: "/v1/missions/nope", wantCode: http.StatusNotFound,
			wantData: marshalObj(t, httpErr{Error: mission.ErrNotFound.Error()}),
		},
	})
}

func Test_missionApi_import(t *testing.T) {
	e := setup(t)
	learner := testutil.CreateUser(t, e.usrRepo, "Amani", "amani", "", "", []string{user.RoleLearner}, true)
	admin := testutil.CreateUser(t, e.usrRepo, "Admin", "admin", "", "", []string{user.RoleAdmin}, true)
	rows := []byte(`[
		{"id": "d2m2", "day_number": 2, "scheduled_time": "2:00 PM", "title": "Read", "point_value": 15},
		{"id": "d2m1", "day": "2", "time": "08:30", "title": "Breakfast", "points": 20}
	]`)

	e.run(t, []httpTest{
		{name: "auth required", method: http.MethodPost, path: "/v1/missions/import", body: rows, wantCode: http.StatusUnauthorized},
		{
			name: "admin required", method: http.MethodPost, path: "/v1/missions/import", body: rows,
			token: e.token(t, learner), wantCode: http.StatusForbidden,
		},
		{
			name: "malformed row", method: http.MethodPost, path: "/v1/missions/import", token: e.token(t, admin),
			body:     []byte(`[{"id": "ok", "day_number": 1, "title": "Fine"}, {"title": "no id", "day_number": 1}]`),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]interface{}{
				"error": "malformed record #1: id: missing", "index": 1, "id": "", "field": "id",
			}),
		},
		{
			name: "row without title", method: http.MethodPost, path: "/v1/missions/import", token: e.token(t, admin),
			body:     []byte(`[{"id": "ok", "day_number": 1, "title": "Fine"}, {"id": "untitled", "day_number": 1}]`),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]interface{}{
				"error": "malformed record #1 (untitled): title: this field is required",
				"index": 1, "id": "untitled", "field": "title",
			}),
		},
		{
			name: "negative points", method: http.MethodPost, path: "/v1/missions/import", token: e.token(t, admin),
			body:     []byte(`[{"id": "neg", "day_number": 1, "title": "Debt", "point_value": -5}]`),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]interface{}{
				"error": "malformed record #0 (neg): point_value: point_value must be 0 or greater",
				"index": 0, "id": "neg", "field": "point_value",
			}),
		},
		{
			name: "not a list", method: http.MethodPost, path: "/v1/missions/import", token: e.token(t, admin),
			body: []byte(`{"id": "d1m1"}`), wantCode: http.StatusBadRequest,
		},
	})

	t.Run("imported", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/missions/import", e.token(t, admin), rows)
		e.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var groups []mission.DayGroup
		unmarshalObj(t, rec, &groups)
		assert.Equal(t, [][]string{{"d2m1", "d2m2"}}, groupIDs(groups...))
		assert.Equal(t, "14:00", groups[0].Missions[1].ScheduledTime)

		// the whole batch is refused when an ID is taken
		req, rec = newAuthRequest(http.MethodPost, "/v1/missions/import", e.token(t, admin), rows)
		e.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("yaml", func(t *testing.T) {
		doc := "- id: d3m1\n  day_number: 3\n  title: Plant a seed\n  point_value: 25\n"
		req, rec := newAuthRequest(http.MethodPost, "/v1/missions/import", e.token(t, admin), []byte(doc))
		req.Header.Set("Content-Type", "application/x-yaml")
		e.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		m, err := e.missionRepo.GetMission(context.Background(), "d3m1")
		require.NoError(t, err)
		assert.Equal(t, 25, m.Points)
	})
}

func Test_missionApi_archive(t *testing.T) {
	e := setup(t)
	seedMissions(t, e)
	learner := testutil.CreateUser(t, e.usrRepo, "Amani", "amani", "", "", []string{user.RoleLearner}, true)
	admin := testutil.CreateUser(t, e.usrRepo, "Admin", "admin", "", "", []string{user.RoleAdmin}, true)
	at := "?at=" + testutil.DayOf(0, 3).Format(time.RFC3339)

	e.run(t, []httpTest{
		{
			name: "admin required", method: http.MethodPost, path: "/v1/missions/archive" + at,
			token: e.token(t, learner), wantCode: http.StatusForbidden,
		},
		{
			name: "archive", method: http.MethodPost, path: "/v1/missions/archive" + at, token: e.token(t, admin),
			wantCode: http.StatusOK,
			wantData: marshalObj(t, echoapi.ArchiveResponse{Archived: 3, Position: program.Position{Cycle: 0, Day: 3}}),
		},
		{
			name: "idempotent", method: http.MethodPost, path: "/v1/missions/archive" + at, token: e.token(t, admin),
			wantCode: http.StatusOK,
			wantData: marshalObj(t, echoapi.ArchiveResponse{Archived: 0, Position: program.Position{Cycle: 0, Day: 3}}),
		},
	})

	// only day 3 is left in the visible catalog
	req, rec := newRequest(http.MethodGet, "/v1/missions"+at)
	e.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var groups []mission.DayGroup
	unmarshalObj(t, rec, &groups)
	assert.Equal(t, [][]string{{"d3m1"}}, groupIDs(groups...))
	assert.False(t, strings.Contains(rec.Body.String(), `"archived":true`))
}
