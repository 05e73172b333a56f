package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/JoinupRosario/evaluacionesUAOback/core/survey"
)

type surveyApi struct {
	svc survey.Servicer
}

func registerSurveyAPI(g *echo.Group, svc survey.Servicer) {
	api := surveyApi{svc: svc}

	sg := g.Group("/surveys")
	sg.POST("", api.create)
	sg.GET("", api.query)

	dg := sg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
}

// Handlers

func (api *surveyApi) create(ctx echo.Context) error {
	var data survey.NewDefinition
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewDefinition")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	def, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, def)
}

func (api *surveyApi) query(ctx echo.Context) error {
	defs, err := api.svc.Query(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, defs)
}

func (api *surveyApi) retrieve(ctx echo.Context) error {
	def, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, def)
}

func (api *surveyApi) update(ctx echo.Context) error {
	var data survey.NewDefinition
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewDefinition")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	def, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, def)
}
