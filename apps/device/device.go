package main

import (
	"context"
	"net/http"
	"time"

	"github.com/trezcool/siku/core"
	"github.com/trezcool/siku/core/mission"
	"github.com/trezcool/siku/core/program"
	"github.com/trezcool/siku/core/progress"
	"github.com/trezcool/siku/services/siku"
)

// device wires a session on top of the local cache and the API.
type device struct {
	client  *siku.Client
	session *progress.Session
	clock   program.Clock
	now     func() time.Time
}

func newDevice(conf *core.Config, cache progress.Cache, httpClient *http.Client, logger core.Logger) (*device, error) {
	clock, err := program.NewClock(conf.Program.StartDate, conf.Program.CycleDays)
	if err != nil {
		return nil, err
	}

	d := &device{clock: clock, now: time.Now}
	d.client = siku.NewClient(conf.Device.APIBaseURL, httpClient, func(ctx context.Context) (string, error) {
		return d.session.Token(ctx)
	})
	svc := progress.NewService(d.client, progress.NewGuestStore(cache, conf.Device.GuestKey, logger), logger)
	d.session = progress.NewSession(cache, conf.Device.SessionKey, svc, logger)
	return d, nil
}

// complete records a catalog mission for the session, with the catalog's points.
func (d *device) complete(ctx context.Context, missionID string, now time.Time) (progress.CompletionRecord, error) {
	m, err := d.client.Mission(ctx, missionID)
	if err != nil {
		return progress.CompletionRecord{}, err
	}
	if m.Archived || d.clock.Position(now).Before(m.Position()) {
		return progress.CompletionRecord{}, mission.ErrNotAvailable
	}
	return d.session.MarkComplete(ctx, m.ID, m.Points, now)
}

func (d *device) login(ctx context.Context, uname, pwd string, now time.Time) (progress.ReconciliationResult, error) {
	login, err := d.client.Login(ctx, uname, pwd)
	if err != nil {
		return progress.ReconciliationResult{}, err
	}
	return d.session.Login(ctx, login.User.ID, login.Token, now)
}
