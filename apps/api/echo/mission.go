package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/siku/core/mission"
	"github.com/trezcool/siku/core/program"
)

type missionApi struct {
	svc mission.ServiceInterface
	now func() time.Time
}

func registerMissionAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := missionApi{svc: deps.MissionSvc, now: deps.Now}

	mg := g.Group("/missions")
	mg.GET("", api.catalog)
	mg.GET("/today", api.today)
	mg.POST("/import", api.importRows, jwt, adminMiddleware())
	mg.POST("/archive", api.archive, jwt, adminMiddleware())
	mg.GET("/:id", api.retrieve)
}

// Handlers

func (api *missionApi) today(ctx echo.Context) error {
	var at At
	if err := at.Bind(ctx, api.now); err != nil {
		return err
	}
	group, err := api.svc.Today(ctx.Request().Context(), at.Time)
	if err != nil {
		return errors.Wrap(err, "getting today's missions")
	}
	return ctx.JSON(http.StatusOK, group)
}

func (api *missionApi) catalog(ctx echo.Context) error {
	var at At
	if err := at.Bind(ctx, api.now); err != nil {
		return err
	}
	groups, err := api.svc.Catalog(ctx.Request().Context(), at.Time)
	if err != nil {
		return errors.Wrap(err, "getting catalog")
	}
	return ctx.JSON(http.StatusOK, groups)
}

func (api *missionApi) retrieve(ctx echo.Context) error {
	m, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding mission by ID")
	}
	return ctx.JSON(http.StatusOK, m)
}

// importRows accepts a JSON (or YAML, by content type) list of raw mission rows.
func (api *missionApi) importRows(ctx echo.Context) error {
	req := ctx.Request()
	rows, err := mission.DecodeRows(req.Body, mission.FormatOf(req.Header.Get(echo.HeaderContentType)))
	if err != nil {
		return err
	}
	created, err := api.svc.ImportRows(req.Context(), rows, api.now())
	if err != nil {
		return errors.Wrap(err, "importing missions")
	}
	return ctx.JSON(http.StatusCreated, mission.Group(created))
}

func (api *missionApi) archive(ctx echo.Context) error {
	var at At
	if err := at.Bind(ctx, api.now); err != nil {
		return err
	}
	n, err := api.svc.ArchivePastDays(ctx.Request().Context(), at.Time)
	if err != nil {
		return errors.Wrap(err, "archiving missions")
	}
	return ctx.JSON(http.StatusOK, ArchiveResponse{
		Archived: n,
		Position: api.svc.Clock().Position(at.Time),
	})
}

type ArchiveResponse struct {
	Archived int              `json:"archived"`
	Position program.Position `json:"position"`
}
