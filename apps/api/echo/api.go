package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/dashboard"
	"github.com/trezcool/gradebook/core/grade"
)

type teacherAPI struct {
	deps *Deps
}

func registerTeacherAPI(g *echo.Group, deps *Deps) {
	api := teacherAPI{deps: deps}

	gg := g.Group("/grades")
	gg.GET("", api.listGrades)
	gg.POST("", api.createGrade)
	gg.POST("/bulk", api.bulkSave)
	gg.PUT("/:id", api.updateGrade)
	gg.PATCH("/:id/feedback", api.updateFeedback)
	gg.DELETE("/:id", api.deleteGrade)

	g.GET("/grading", api.gradingSheet)
}

func (api *teacherAPI) listGrades(ctx echo.Context) error {
	studentID := core.CleanString(ctx.QueryParam("studentId"), true /* lower */)
	if studentID == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "studentId", Error: "this field is required"})
	}
	grades, err := api.deps.GradeSvc.ListByStudent(ctx.Request().Context(), studentID)
	if err != nil {
		return errors.Wrap(err, "listing grades")
	}
	return ctx.JSON(http.StatusOK, grades)
}

func (api *teacherAPI) createGrade(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	var data grade.NewGrade
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGrade")
	}
	g, err := api.deps.GradeSvc.Create(ctx.Request().Context(), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "creating grade")
	}
	return ctx.JSON(http.StatusCreated, g)
}

func (api *teacherAPI) updateGrade(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	var data grade.UpdateGrade
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateGrade")
	}
	g, err := api.deps.GradeSvc.Update(ctx.Request().Context(), usr.ID, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating grade")
	}
	return ctx.JSON(http.StatusOK, g)
}

func (api *teacherAPI) updateFeedback(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	var data grade.UpdateFeedback
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateFeedback")
	}
	g, err := api.deps.GradeSvc.UpdateFeedback(ctx.Request().Context(), usr.ID, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating feedback")
	}
	return ctx.JSON(http.StatusOK, g)
}

func (api *teacherAPI) deleteGrade(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	if err = api.deps.GradeSvc.Delete(ctx.Request().Context(), usr.ID, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting grade")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *teacherAPI) bulkSave(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	var data grade.BulkGrades
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BulkGrades")
	}
	grades, err := api.deps.GradeSvc.BulkSave(ctx.Request().Context(), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "saving grades")
	}
	return ctx.JSON(http.StatusCreated, grades)
}

func (api *teacherAPI) gradingSheet(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	var filter dashboard.GradingFilter
	if err = ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to GradingFilter")
	}
	sheet, err := api.deps.DashboardSvc.GradingSheet(ctx.Request().Context(), usr.ID, filter)
	if err != nil {
		return errors.Wrap(err, "building grading sheet")
	}
	return ctx.JSON(http.StatusOK, sheet)
}
