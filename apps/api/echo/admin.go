package echoapi

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/course"
	"github.com/trezcool/gradebook/core/user"
)

type adminPages struct {
	deps *Deps
}

func registerAdminPages(g *echo.Group, deps *Deps) {
	p := adminPages{deps: deps}
	g.GET("", p.index)
	g.POST("/users/bulk", p.bulkRegister)
	g.POST("/courses/:id/enroll", p.enroll)
	g.POST("/users/:id/delete", p.deleteUser)
}

type (
	adminFilter struct {
		Search string `query:"search"`
		Role   string `query:"role"`
	}

	adminPage struct {
		Filter   adminFilter
		Users    []user.User
		Students []user.User
		Courses  []course.Course
		Roles    []user.Role
	}
)

func (p *adminPages) index(ctx echo.Context) error {
	var filter adminFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to adminFilter")
	}
	qf := user.QueryFilter{Search: core.CleanString(filter.Search)}
	if role, err := user.ParseRole(filter.Role); err == nil {
		qf.Roles = []user.Role{role}
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	rctx := ctx.Request().Context()
	users, err := p.deps.UserSvc.Query(rctx, qf, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	students, err := p.deps.UserSvc.Query(rctx, user.QueryFilter{Roles: []user.Role{user.RoleStudent}})
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	courses, err := p.deps.CourseSvc.List(rctx)
	if err != nil {
		return errors.Wrap(err, "listing courses")
	}
	return ctx.Render(http.StatusOK, "admin", adminPage{
		Filter:   filter,
		Users:    users,
		Students: students,
		Courses:  courses,
		Roles:    user.Roles,
	})
}

// parseUsersCSV reads one user per line: first name, last name, email, role[, class label].
func parseUsersCSV(in string) ([]user.NewUser, error) {
	r := csv.NewReader(strings.NewReader(in))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var (
		nus    []user.NewUser
		fldErr []core.FieldError
	)
	for line := 1; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, core.NewValidationError(nil, core.FieldError{Field: "users", Error: err.Error()})
		}
		if len(rec) < 4 {
			fldErr = append(fldErr, core.FieldError{
				Field: fmt.Sprintf("users[%d]", len(nus)),
				Error: fmt.Sprintf("line %d: expected first name, last name, email, role", line),
			})
			continue
		}
		nu := user.NewUser{
			FirstName: rec[0],
			LastName:  rec[1],
			Email:     rec[2],
			Role:      user.Role(strings.ToUpper(strings.TrimSpace(rec[3]))),
		}
		if len(rec) > 4 {
			nu.ClassLabel = rec[4]
		}
		nus = append(nus, nu)
	}
	if len(fldErr) > 0 {
		return nil, core.NewValidationError(nil, fldErr...)
	}
	return nus, nil
}

func (p *adminPages) bulkRegister(ctx echo.Context) error {
	nus, err := parseUsersCSV(ctx.FormValue("users"))
	if err != nil {
		return err
	}
	if _, err = p.deps.UserSvc.BulkRegister(ctx.Request().Context(), nus); err != nil {
		return errors.Wrap(err, "registering users")
	}
	return ctx.Redirect(http.StatusSeeOther, "/admin-panel")
}

func (p *adminPages) enroll(ctx echo.Context) error {
	params, err := ctx.FormParams()
	if err != nil {
		return errors.Wrap(err, "reading form params")
	}
	ids := make([]string, 0, len(params["student_ids"]))
	for _, id := range params["student_ids"] {
		if id = core.CleanString(id, true /* lower */); id != "" {
			ids = append(ids, id)
		}
	}
	if err = p.deps.CourseSvc.Enroll(ctx.Request().Context(), ctx.Param("id"), ids...); err != nil {
		return errors.Wrap(err, "enrolling students")
	}
	return ctx.Redirect(http.StatusSeeOther, "/admin-panel")
}

func (p *adminPages) deleteUser(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	id := core.CleanString(ctx.Param("id"), true /* lower */)
	// admins cannot delete themselves
	if id == usr.ID {
		return errHttpForbidden
	}
	if _, err = p.deps.UserSvc.GetByID(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "finding user")
	}
	if err = p.deps.UserSvc.Delete(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	return ctx.Redirect(http.StatusSeeOther, "/admin-panel")
}
