package echoapi

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/siku/core"
	"github.com/trezcool/siku/core/mission"
	"github.com/trezcool/siku/core/progress"
)

type progressApi struct {
	svc        progress.ServiceInterface
	missionSvc mission.ServiceInterface
	validate   *validator.Validate
	now        func() time.Time
}

func registerProgressAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := progressApi{
		svc:        deps.ProgressSvc,
		missionSvc: deps.MissionSvc,
		validate:   deps.Validate,
		now:        deps.Now,
	}

	pg := g.Group("/progress", jwt)
	pg.GET("", api.retrieve)
	pg.PUT("", api.replace)
	pg.POST("/complete", api.complete)
	pg.POST("/reconcile", api.reconcile)
}

// Handlers

func (api *progressApi) retrieve(ctx echo.Context) error {
	id, err := accountID(ctx)
	if err != nil {
		return err
	}
	rec, err := api.svc.ProgressOf(ctx.Request().Context(), progress.Account(id))
	if err != nil {
		return errors.Wrap(err, "getting progress")
	}
	return ctx.JSON(http.StatusOK, rec)
}

// replace stores a whole record; it must extend the stored one.
func (api *progressApi) replace(ctx echo.Context) error {
	id, err := accountID(ctx)
	if err != nil {
		return err
	}
	rec := progress.NewCompletionRecord()
	if err = ctx.Bind(&rec); err != nil {
		return errors.Wrap(err, "binding to CompletionRecord")
	}
	if err = validateRecord(rec); err != nil {
		return err
	}
	rec, err = api.svc.Replace(ctx.Request().Context(), id, rec, api.now())
	if err != nil {
		return errors.Wrap(err, "replacing progress")
	}
	return ctx.JSON(http.StatusOK, rec)
}

// complete marks a mission complete, awarding the points the catalog gives it.
func (api *progressApi) complete(ctx echo.Context) error {
	id, err := accountID(ctx)
	if err != nil {
		return err
	}
	var data CompleteRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CompleteRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	now := api.now()
	m, err := api.missionSvc.GetAvailable(ctx.Request().Context(), data.MissionID, now)
	if err != nil {
		return errors.Wrap(err, "finding available mission")
	}
	rec, err := api.svc.MarkComplete(ctx.Request().Context(), progress.Account(id), m.ID, m.Points, now)
	if err != nil {
		return errors.Wrap(err, "marking mission complete")
	}
	return ctx.JSON(http.StatusOK, rec)
}

// reconcile merges a guest record uploaded by a client into the account.
// Uploading the same record twice (same sync_id) merges it once.
func (api *progressApi) reconcile(ctx echo.Context) error {
	id, err := accountID(ctx)
	if err != nil {
		return err
	}
	guest := progress.NewCompletionRecord()
	if err = ctx.Bind(&guest); err != nil {
		return errors.Wrap(err, "binding to CompletionRecord")
	}
	if err = validateRecord(guest); err != nil {
		return err
	}
	res, err := api.svc.ReconcileRecord(ctx.Request().Context(), progress.Account(id), guest, api.now())
	if err != nil {
		return errors.Wrap(err, "reconciling guest progress")
	}
	return ctx.JSON(http.StatusOK, res)
}

func validateRecord(rec progress.CompletionRecord) error {
	if rec.Points < 0 {
		return core.NewValidationError(nil, core.FieldError{Field: "points", Error: "points cannot be negative"})
	}
	return nil
}

type CompleteRequest struct {
	MissionID string `json:"mission_id" validate:"required"`
}

func (cr *CompleteRequest) Validate(validate *validator.Validate) error {
	cr.MissionID = core.CleanString(cr.MissionID)
	return validate.Struct(cr)
}
