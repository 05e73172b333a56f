package echoapi

import (
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/JoinupRosario/evaluacionesUAOback/core/evaluation"
)

type evaluationApi struct {
	svc evaluation.Servicer
}

func registerEvaluationAPI(g *echo.Group, svc evaluation.Servicer) {
	api := evaluationApi{svc: svc}

	eg := g.Group("/evaluations")

	// respondent endpoints, keyed by the mailed secret
	eg.GET("/respond/:secret", api.resolveForm)
	eg.POST("/respond/:secret", api.submit)

	eg.POST("", api.create)
	eg.GET("", api.query)

	dg := eg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.POST("/refresh", api.refresh)
	dg.POST("/recount", api.recount)
	dg.POST("/send", api.send)
}

// Handlers

func (api *evaluationApi) create(ctx echo.Context) error {
	var data evaluation.NewEvaluation
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEvaluation")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	ev, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, ev)
}

func (api *evaluationApi) query(ctx echo.Context) error {
	filter := evaluation.QueryFilter{
		Kind:   evaluation.Kind(ctx.QueryParam("kind")),
		Status: evaluation.Status(ctx.QueryParam("status")),
	}
	if p := ctx.QueryParam("period"); p != "" {
		period, err := strconv.Atoi(p)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid period")
		}
		filter.Period = period
	}

	evs, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, evs)
}

func (api *evaluationApi) retrieve(ctx echo.Context) error {
	ev, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ev)
}

func (api *evaluationApi) update(ctx echo.Context) error {
	var data evaluation.UpdateEvaluation
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateEvaluation")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	ev, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ev)
}

func (api *evaluationApi) refresh(ctx echo.Context) error {
	report, err := api.svc.RefreshEligibility(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, report)
}

func (api *evaluationApi) recount(ctx echo.Context) error {
	percentages, err := api.svc.RecountParticipation(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"percentages": percentages})
}

func (api *evaluationApi) send(ctx echo.Context) error {
	report, err := api.svc.SendInvitations(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, report)
}

func (api *evaluationApi) resolveForm(ctx echo.Context) error {
	view, err := api.svc.ResolveForm(ctx.Request().Context(), ctx.Param("secret"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, view)
}

func (api *evaluationApi) submit(ctx echo.Context) error {
	body, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return errors.Wrap(err, "reading request body")
	}

	res, err := api.svc.Submit(ctx.Request().Context(), ctx.Param("secret"), answersPayload(body))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}
