package echoapi

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/assignment"
	"github.com/trezcool/gradebook/core/attendance"
	"github.com/trezcool/gradebook/core/course"
	"github.com/trezcool/gradebook/core/dashboard"
	"github.com/trezcool/gradebook/core/grade"
)

type teacherPages struct {
	deps *Deps
}

func registerTeacherPages(g *echo.Group, deps *Deps) {
	p := teacherPages{deps: deps}
	g.GET("/home", p.home)
	g.GET("/grading", p.grading)
	g.POST("/grading", p.saveGrades)
	g.POST("/courses", p.createCourse)
	g.POST("/assignments", p.createAssignment)
	g.POST("/assignments/:id/delete", p.deleteAssignment)
	g.POST("/attendance", p.markAttendance)
	g.POST("/attendance/:id/delete", p.deleteAttendance)
}

type (
	teacherHomePage struct {
		Home            dashboard.TeacherHome
		AssignmentTypes []assignment.Type
	}

	gradingPage struct {
		Sheet  dashboard.GradingSheet
		Form   gradingForm
		Errors map[string]string
	}

	// gradingForm is a submitted grading sheet. Entries are read from `entries[<student id>]` params.
	gradingForm struct {
		CourseID   string `form:"course"`
		Assignment string `form:"assignment"`
		Subject    string `form:"subject"`
		Type       string `form:"type"`
		Date       string `form:"date"`
		Entries    map[string]string
	}

	courseForm struct {
		Name        string `form:"name"`
		Description string `form:"description"`
		Subjects    string `form:"subjects"` // comma separated
		SchoolYear  string `form:"school_year"`
	}

	assignmentForm struct {
		Title        string `form:"title"`
		Description  string `form:"description"`
		Type         string `form:"type"`
		DueDate      string `form:"due_date"`
		AssignedDate string `form:"assigned_date"`
		CourseID     string `form:"course_id"`
	}

	attendanceForm struct {
		StudentID string `form:"student_id"`
		Status    string `form:"status"`
	}
)

// Value returns the submitted cell of a student, falling back to their existing grade.
func (p gradingPage) Value(studentID string) string {
	if v, ok := p.Form.Entries[studentID]; ok {
		return v
	}
	if g, ok := p.Sheet.ExistingGrades[studentID]; ok {
		return string(g.Letter)
	}
	return ""
}

func (p *teacherPages) home(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	home, err := p.deps.DashboardSvc.TeacherHome(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "building teacher home")
	}
	return ctx.Render(http.StatusOK, "teacher_home", teacherHomePage{Home: home, AssignmentTypes: assignment.Types})
}

func (p *teacherPages) grading(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	var filter dashboard.GradingFilter
	if err = ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to GradingFilter")
	}
	sheet, err := p.deps.DashboardSvc.GradingSheet(ctx.Request().Context(), usr.ID, filter)
	if err != nil {
		return errors.Wrap(err, "building grading sheet")
	}
	return ctx.Render(http.StatusOK, "teacher_grading", gradingPage{Sheet: sheet})
}

func (p *teacherPages) saveGrades(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	var form gradingForm
	if err = ctx.Bind(&form); err != nil {
		return errors.Wrap(err, "binding to gradingForm")
	}
	if form.Entries, err = bracketParams(ctx, "entries"); err != nil {
		return err
	}

	bg := grade.BulkGrades{
		CourseID:   form.CourseID,
		Assignment: form.Assignment,
		Subject:    form.Subject,
		Type:       grade.Type(strings.ToUpper(core.CleanString(form.Type))),
		Entries:    form.Entries,
	}
	if bg.Date, err = parseDate("date", form.Date); err == nil {
		_, err = p.deps.GradeSvc.BulkSave(ctx.Request().Context(), usr.ID, bg)
	}
	if err != nil {
		vErr, ok := errors.Cause(err).(*core.ValidationError)
		if !ok {
			return errors.Wrap(err, "saving grades")
		}
		// redisplay the sheet with the submitted values
		sheet, sErr := p.deps.DashboardSvc.GradingSheet(ctx.Request().Context(), usr.ID, dashboard.GradingFilter{
			CourseID:     form.CourseID,
			AssignmentID: grade.OptionID(core.CleanString(form.Assignment)),
			Subject:      form.Subject,
		})
		if sErr != nil {
			return errors.Wrap(sErr, "building grading sheet")
		}
		errs := vErr.FieldMap()
		if len(errs) == 0 {
			errs = map[string]string{"": vErr.Error()}
		}
		return ctx.Render(http.StatusBadRequest, "teacher_grading", gradingPage{Sheet: sheet, Form: form, Errors: errs})
	}

	q := url.Values{}
	q.Set("course", core.CleanString(form.CourseID, true /* lower */))
	q.Set("assignment", grade.OptionID(core.CleanString(form.Assignment)))
	q.Set("subject", core.CleanString(form.Subject))
	return ctx.Redirect(http.StatusSeeOther, "/teacher/grading?"+q.Encode())
}

func (p *teacherPages) createCourse(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	var form courseForm
	if err = ctx.Bind(&form); err != nil {
		return errors.Wrap(err, "binding to courseForm")
	}
	nc := course.NewCourse{
		Name:        form.Name,
		Description: form.Description,
		Subjects:    strings.Split(form.Subjects, ","),
		SchoolYear:  form.SchoolYear,
		TeacherID:   usr.ID,
	}
	if _, err = p.deps.CourseSvc.Create(ctx.Request().Context(), nc); err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.Redirect(http.StatusSeeOther, "/teacher/home")
}

func (p *teacherPages) createAssignment(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	var form assignmentForm
	if err = ctx.Bind(&form); err != nil {
		return errors.Wrap(err, "binding to assignmentForm")
	}
	na := assignment.NewAssignment{
		Title:       form.Title,
		Description: form.Description,
		Type:        assignment.Type(strings.ToUpper(core.CleanString(form.Type))),
		CourseID:    form.CourseID,
	}
	if na.DueDate, err = parseDate("due_date", form.DueDate); err != nil {
		return err
	}
	if na.AssignedDate, err = parseDate("assigned_date", form.AssignedDate); err != nil {
		return err
	}
	if _, err = p.deps.AssignmentSvc.Create(ctx.Request().Context(), usr.ID, na); err != nil {
		return errors.Wrap(err, "creating assignment")
	}
	return ctx.Redirect(http.StatusSeeOther, "/teacher/home")
}

func (p *teacherPages) deleteAssignment(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	if err = p.deps.AssignmentSvc.Delete(ctx.Request().Context(), usr.ID, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	return ctx.Redirect(http.StatusSeeOther, "/teacher/home")
}

// markAttendance records an absence or a late arrival for a student of one of the teacher's courses.
func (p *teacherPages) markAttendance(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	var form attendanceForm
	if err = ctx.Bind(&form); err != nil {
		return errors.Wrap(err, "binding to attendanceForm")
	}

	rctx := ctx.Request().Context()
	student, err := p.deps.UserSvc.GetByID(rctx, core.CleanString(form.StudentID, true /* lower */))
	if err != nil {
		return errors.Wrap(err, "finding student")
	}
	if !student.IsStudent() || student.CourseID == "" {
		return dashboard.ErrNotCourseOwner
	}
	c, err := p.deps.CourseSvc.GetByID(rctx, student.CourseID)
	if err != nil {
		return errors.Wrap(err, "finding course")
	}
	if c.TeacherID != usr.ID {
		return dashboard.ErrNotCourseOwner
	}

	_, err = p.deps.AttendanceSvc.Mark(rctx, bearerToken(ctx), attendance.NewRecord{
		StudentID:  student.ID,
		Name:       student.FullName(),
		CourseName: c.Name,
		Status:     attendance.Status(form.Status),
	})
	if err != nil {
		return errors.Wrap(err, "marking attendance")
	}
	return ctx.Redirect(http.StatusSeeOther, "/teacher/home")
}

func (p *teacherPages) deleteAttendance(ctx echo.Context) error {
	if err := p.deps.AttendanceSvc.Delete(ctx.Request().Context(), bearerToken(ctx), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting attendance record")
	}
	return ctx.Redirect(http.StatusSeeOther, "/teacher/home")
}
