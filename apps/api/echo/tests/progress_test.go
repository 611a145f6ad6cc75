package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/siku/core/progress"
	testutil "github.com/trezcool/siku/tests"
)

func record(points int, ids ...string) progress.CompletionRecord {
	rec := progress.NewCompletionRecord()
	rec.Points = points
	rec.Completed.Add(ids...)
	return rec
}

func decodeRecord(t *testing.T, body []byte) progress.CompletionRecord {
	var rec progress.CompletionRecord
	require.NoError(t, json.Unmarshal(body, &rec))
	return rec
}

func Test_progressApi_complete(t *testing.T) {
	e := setup(t)
	seedMissions(t, e)
	usr := testutil.CreateUser(t, e.usrRepo, "Amani", "amani", "", "", nil, true)
	token := e.token(t, usr)

	complete := func(id string) []byte { return []byte(`{"mission_id": "` + id + `"}`) }

	e.run(t, []httpTest{
		{name: "auth required", method: http.MethodPost, path: "/v1/progress/complete", body: complete("d2m1"), wantCode: http.StatusUnauthorized},
		{
			name: "missing mission", method: http.MethodPost, path: "/v1/progress/complete", body: []byte(`{}`),
			token: token, wantCode: http.StatusBadRequest,
		},
		{
			name: "unknown mission", method: http.MethodPost, path: "/v1/progress/complete", body: complete("nope"),
			token: token, wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "mission not found"}),
		},
		{
			name: "future mission", method: http.MethodPost, path: "/v1/progress/complete", body: complete("d3m1"),
			token: token, wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "mission not available"}),
		},
	})

	// points come from the catalog, once
	for i := 0; i < 2; i++ {
		req, rec := newAuthRequest(http.MethodPost, "/v1/progress/complete", token, complete("d2m1"))
		e.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		got := decodeRecord(t, rec.Body.Bytes())
		assert.Equal(t, 20, got.Points)
		assert.Equal(t, []string{"d2m1"}, got.Completed.Sorted())
	}

	// yesterday's missions can still be completed until archived
	req, rec := newAuthRequest(http.MethodPost, "/v1/progress/complete", token, complete("d1m1"))
	e.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 30, decodeRecord(t, rec.Body.Bytes()).Points)

	req, rec = newAuthRequest(http.MethodGet, "/v1/progress", token)
	e.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeRecord(t, rec.Body.Bytes())
	assert.Equal(t, 30, got.Points)
	assert.Equal(t, []string{"d1m1", "d2m1"}, got.Completed.Sorted())
}

func Test_progressApi_replace(t *testing.T) {
	e := setup(t)
	usr := testutil.CreateUser(t, e.usrRepo, "Amani", "amani", "", "", nil, true)
	token := e.token(t, usr)
	require.NoError(t, e.accounts.PutProgress(context.Background(), usr.ID, record(30, "d1m1", "d1m2")))

	e.run(t, []httpTest{
		{
			name: "fewer points", method: http.MethodPut, path: "/v1/progress", token: token,
			body: marshalObj(t, record(10, "d1m1", "d1m2")), wantCode: http.StatusConflict,
			wantData: marshalObj(t, httpErr{Error: progress.ErrRegression.Error()}),
		},
		{
			name: "lost mission", method: http.MethodPut, path: "/v1/progress", token: token,
			body: marshalObj(t, record(50, "d1m1")), wantCode: http.StatusConflict,
		},
		{
			name: "negative points", method: http.MethodPut, path: "/v1/progress", token: token,
			body: []byte(`{"points": -1, "completed": []}`), wantCode: http.StatusBadRequest,
		},
	})

	req, rec := newAuthRequest(http.MethodPut, "/v1/progress", token, marshalObj(t, record(45, "d1m1", "d1m2", "d2m1")))
	e.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decodeRecord(t, rec.Body.Bytes())
	assert.Equal(t, 45, got.Points)
	assert.Equal(t, now, got.UpdatedAt)
}

func Test_progressApi_reconcile(t *testing.T) {
	e := setup(t)
	usr := testutil.CreateUser(t, e.usrRepo, "Amani", "amani", "", "", nil, true)
	token := e.token(t, usr)
	require.NoError(t, e.accounts.PutProgress(context.Background(), usr.ID, record(50, "d1m1")))

	guest := record(20, "d1m1", "d2m1")
	guest.SyncID = "browser-1"

	req, rec := newAuthRequest(http.MethodPost, "/v1/progress/reconcile", token, marshalObj(t, guest))
	e.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res progress.ReconciliationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, progress.ResultMerged, res.Status)
	assert.Equal(t, usr.ID, res.AccountID)
	assert.Equal(t, []string{"d2m1"}, res.Added)
	assert.Equal(t, 70, res.Record.Points)

	// the browser retries: nothing is added twice
	req, rec = newAuthRequest(http.MethodPost, "/v1/progress/reconcile", token, marshalObj(t, guest))
	e.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res = progress.ReconciliationResult{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, progress.ResultAlreadyMerged, res.Status)
	assert.Equal(t, 70, res.Record.Points)

	// nothing to merge
	req, rec = newAuthRequest(http.MethodPost, "/v1/progress/reconcile", token, []byte(`{}`))
	e.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res = progress.ReconciliationResult{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, progress.ResultNoOp, res.Status)
}

func Test_progressApi_storeDown(t *testing.T) {
	e := setup(t)
	usr := testutil.CreateUser(t, e.usrRepo, "Amani", "amani", "", "", nil, true)
	token := e.token(t, usr)
	e.accounts.setDown(true)

	guest := record(20, "d2m1")
	guest.SyncID = "browser-1"

	e.run(t, []httpTest{
		{
			name: "read", path: "/v1/progress", token: token,
			wantCode: http.StatusServiceUnavailable, wantData: marshalObj(t, httpErr{Error: "Service Unavailable"}),
		},
		{
			name: "reconcile", method: http.MethodPost, path: "/v1/progress/reconcile", token: token,
			body: marshalObj(t, guest), wantCode: http.StatusServiceUnavailable,
		},
	})
	assert.Len(t, e.logger.Entries("ERROR"), 2)

	// the upload is merged once the store is back
	e.accounts.setDown(false)
	req, rec := newAuthRequest(http.MethodPost, "/v1/progress/reconcile", token, marshalObj(t, guest))
	e.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"status":"merged"`)
}
