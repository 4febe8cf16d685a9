package echoapi

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/makumbi/hudhurio/core"
	"github.com/makumbi/hudhurio/core/attendance"
)

type attendanceApi struct {
	svc      attendance.Service
	validate *validator.Validate
}

func registerAttendanceAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc attendance.Service, validate *validator.Validate) {
	api := attendanceApi{
		svc:      svc,
		validate: validate,
	}

	sg := g.Group("/sessions", jwt)
	sg.POST("", api.open)
	sg.GET("", api.query)
	sg.DELETE("/:id", api.destroy)
	sg.POST("/:id/lock", api.lock)
	sg.GET("/:id/records", api.records)
	sg.PUT("/:id/records", api.mark)
	sg.PUT("/:id/records/bulk", api.bulkMark)
}

// Handlers

func (api *attendanceApi) open(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}

	var data attendance.NewSession
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSession")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sess, err := api.svc.Open(ctx.Request().Context(), p, data)
	if err != nil {
		return err
	}
	sessionsOpenedTotal.Inc()
	return ctx.JSON(http.StatusCreated, sess)
}

func (api *attendanceApi) lock(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}

	sess, err := api.svc.Lock(ctx.Request().Context(), p, ctx.Param("id"))
	if err != nil {
		return err
	}
	sessionsLockedTotal.Inc()
	return ctx.JSON(http.StatusOK, sess)
}

func (api *attendanceApi) destroy(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}

	n, err := api.svc.Delete(ctx.Request().Context(), p, ctx.Param("id"))
	if err != nil {
		return err
	}
	if n == 0 {
		return attendance.ErrNotFound
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *attendanceApi) query(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}

	var q SessionQuery
	if err := ctx.Bind(&q); err != nil {
		return ctx.JSON(http.StatusOK, []attendance.Session{})
	}
	filter, err := q.filter()
	if err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	sessions, err := api.svc.Query(ctx.Request().Context(), p, filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying sessions")
	}
	if sessions == nil {
		sessions = []attendance.Session{}
	}
	return ctx.JSON(http.StatusOK, sessions)
}

func (api *attendanceApi) mark(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}

	var data attendance.Entry
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Entry")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	rec, err := api.svc.Mark(ctx.Request().Context(), p, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	recordsMarkedTotal.Inc()
	return ctx.JSON(http.StatusOK, rec)
}

func (api *attendanceApi) bulkMark(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}

	var data attendance.BulkEntries
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BulkEntries")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	recs, err := api.svc.BulkMark(ctx.Request().Context(), p, ctx.Param("id"), data.Entries)
	if err != nil {
		return err
	}
	recordsMarkedTotal.Add(float64(len(recs)))
	return ctx.JSON(http.StatusOK, recs)
}

func (api *attendanceApi) records(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}

	recs, err := api.svc.Records(ctx.Request().Context(), p, ctx.Param("id"))
	if err != nil {
		return err
	}
	if recs == nil {
		recs = []attendance.Record{}
	}
	return ctx.JSON(http.StatusOK, recs)
}

// SessionQuery narrows a session listing.
type SessionQuery struct {
	AssignmentID string `query:"assignment_id"`
	PeriodID     string `query:"period_id"`
	ClassDate    string `query:"class_date"`
}

func (q *SessionQuery) filter() (*attendance.SessionFilter, error) {
	filter := &attendance.SessionFilter{
		AssignmentID: core.CleanString(q.AssignmentID),
		PeriodID:     core.CleanString(q.PeriodID),
	}
	if date := core.CleanString(q.ClassDate); date != "" {
		d, err := time.Parse(attendance.ClassDateLayout, date)
		if err != nil {
			return nil, core.NewValidationError(err,
				core.FieldError{Field: "class_date", Error: "must be a valid date in 2006-01-02 format"})
		}
		filter.ClassDate = d
	}
	return filter, nil
}
