// Package siku is the device's client of the Siku API.
// It is the AccountStore of a device session and its read-only window on the mission catalog.
package siku

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/siku/core"
	"github.com/trezcool/siku/core/mission"
	"github.com/trezcool/siku/core/progress"
	"github.com/trezcool/siku/core/user"
)

// ErrUnauthorized is returned when the API refuses the session token.
var ErrUnauthorized = errors.New("not authorized: log in again")

// TokenFunc returns the token to authenticate with, "" for anonymous calls.
type TokenFunc func(ctx context.Context) (string, error)

type Client struct {
	baseURL string
	http    *http.Client
	token   TokenFunc
}

var _ progress.AccountStore = (*Client)(nil)

func NewClient(baseURL string, httpClient *http.Client, token TokenFunc) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if token == nil {
		token = func(context.Context) (string, error) { return "", nil }
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient, token: token}
}

type (
	loginRequest struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	// Login is a successful login.
	Login struct {
		Token string     `json:"token"`
		User  *user.User `json:"user,omitempty"`
	}

	apiError struct {
		Error string `json:"error"`
	}
)

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, uname, pwd string) (Login, error) {
	var resp Login
	if err := c.do(ctx, http.MethodPost, "/v1/users/login", loginRequest{Username: uname, Password: pwd}, &resp, nil); err != nil {
		return Login{}, err
	}
	if resp.User == nil {
		return Login{}, errors.New("login: no user in response")
	}
	return resp, nil
}

// Today returns the missions of the program day at `at`.
func (c *Client) Today(ctx context.Context, at time.Time) (mission.DayGroup, error) {
	var group mission.DayGroup
	err := c.do(ctx, http.MethodGet, "/v1/missions/today"+atQuery(at), nil, &group, mission.ErrNotFound)
	return group, err
}

// Catalog returns the visible catalog at `at`.
func (c *Client) Catalog(ctx context.Context, at time.Time) ([]mission.DayGroup, error) {
	groups := make([]mission.DayGroup, 0)
	err := c.do(ctx, http.MethodGet, "/v1/missions"+atQuery(at), nil, &groups, mission.ErrNotFound)
	return groups, err
}

func (c *Client) Mission(ctx context.Context, id string) (mission.Mission, error) {
	var m mission.Mission
	err := c.do(ctx, http.MethodGet, "/v1/missions/"+url.PathEscape(id), nil, &m, mission.ErrNotFound)
	return m, err
}

// GetProgress reads the record of the logged in account. accountID must be the token's subject.
func (c *Client) GetProgress(ctx context.Context, _ string) (progress.CompletionRecord, error) {
	var rec progress.CompletionRecord
	if err := c.do(ctx, http.MethodGet, "/v1/progress", nil, &rec, progress.ErrNotFound); err != nil {
		return progress.CompletionRecord{}, err
	}
	if rec.Completed == nil {
		rec.Completed = progress.NewIDSet()
	}
	if rec.Syncs == nil {
		rec.Syncs = progress.NewIDSet()
	}
	return rec, nil
}

// PutProgress writes the whole record. The API refuses any write that loses progress.
func (c *Client) PutProgress(ctx context.Context, _ string, rec progress.CompletionRecord) error {
	return c.do(ctx, http.MethodPut, "/v1/progress", rec, nil, progress.ErrNotFound)
}

func atQuery(at time.Time) string {
	if at.IsZero() {
		return ""
	}
	return "?at=" + url.QueryEscape(at.Format(time.RFC3339))
}

// do sends a JSON request and decodes a JSON response into out (when not nil).
// A 404 maps to notFound; transport failures and 5xx map to core.ErrStorageUnavailable.
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}, notFound error) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "encoding request")
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	token, err := c.token(ctx)
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return core.StorageError(err, fmt.Sprintf("%s %s", method, path))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		return statusError(resp, notFound)
	}
	if out == nil {
		return nil
	}
	return errors.Wrap(json.NewDecoder(resp.Body).Decode(out), "decoding response")
}

func statusError(resp *http.Response, notFound error) error {
	var apiErr apiError
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(raw, &apiErr) != nil || apiErr.Error == "" {
		apiErr.Error = strings.TrimSpace(string(raw))
	}
	if apiErr.Error == "" {
		apiErr.Error = http.StatusText(resp.StatusCode)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound && notFound != nil:
		return notFound
	case resp.StatusCode == http.StatusConflict && apiErr.Error == progress.ErrRegression.Error():
		return progress.ErrRegression
	case resp.StatusCode == http.StatusBadRequest && apiErr.Error == mission.ErrNotAvailable.Error():
		return mission.ErrNotAvailable
	case resp.StatusCode >= http.StatusInternalServerError:
		return core.StorageError(errors.New(apiErr.Error), fmt.Sprintf("siku api: %d", resp.StatusCode))
	default:
		return core.NewArgumentError(apiErr.Error)
	}
}
