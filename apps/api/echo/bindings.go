package echoapi

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/siku/core"
)

var atParam = "at"

// At is the moment a program-clock request is evaluated at: `?at=RFC3339`, or the server's now.
type At struct {
	Time time.Time
}

func (at *At) Bind(ctx echo.Context, now func() time.Time) error {
	val := strings.TrimSpace(ctx.QueryParam(atParam))
	if val == "" {
		at.Time = now()
		return nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: atParam, Error: "must be an RFC3339 timestamp"})
	}
	at.Time = t
	return nil
}
