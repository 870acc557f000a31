package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/assignment"
	"github.com/trezcool/gradebook/core/grade"
)

type studentPages struct {
	deps *Deps
}

func registerStudentPages(g *echo.Group, deps *Deps) {
	p := studentPages{deps: deps}
	g.GET("/home", p.home)
	g.GET("/grades", p.grades)
	g.GET("/assignments", p.assignments)
	g.POST("/assignments/:id/turn-in", p.turnIn)
}

func registerStudentAPI(g *echo.Group, deps *Deps) {
	p := studentPages{deps: deps}
	g.GET("/home", p.homeJSON)
}

type (
	studentGradesPage struct {
		Summary grade.Summary
	}

	studentAssignmentsPage struct {
		Assignments []assignment.Assignment
		Now         time.Time
	}
)

func (p *studentPages) home(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	home, err := p.deps.DashboardSvc.StudentHome(ctx.Request().Context(), usr.ID, bearerToken(ctx))
	if err != nil {
		return errors.Wrap(err, "building student home")
	}
	return ctx.Render(http.StatusOK, "student_home", home)
}

func (p *studentPages) homeJSON(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	home, err := p.deps.DashboardSvc.StudentHome(ctx.Request().Context(), usr.ID, bearerToken(ctx))
	if err != nil {
		return errors.Wrap(err, "building student home")
	}
	return ctx.JSON(http.StatusOK, home)
}

func (p *studentPages) grades(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	grades, err := p.deps.GradeSvc.ListByStudent(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "listing grades")
	}
	return ctx.Render(http.StatusOK, "student_grades", studentGradesPage{Summary: grade.Summarize(grades)})
}

func (p *studentPages) assignments(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	page := studentAssignmentsPage{Assignments: []assignment.Assignment{}, Now: core.NowFunc()}
	if usr.CourseID != "" {
		as, err := p.deps.AssignmentSvc.ListByCourse(ctx.Request().Context(), usr.CourseID)
		if err != nil {
			return errors.Wrap(err, "listing assignments")
		}
		page.Assignments = as
	}
	return ctx.Render(http.StatusOK, "student_assignments", page)
}

func (p *studentPages) turnIn(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	if _, err = p.deps.AssignmentSvc.TurnIn(ctx.Request().Context(), usr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "turning in assignment")
	}
	return ctx.Redirect(http.StatusSeeOther, "/student/assignments")
}
