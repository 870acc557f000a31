package echoapi

import (
	"context"
	"net/http"
	"os"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/assignment"
	"github.com/trezcool/gradebook/core/attendance"
	"github.com/trezcool/gradebook/core/course"
	"github.com/trezcool/gradebook/core/dashboard"
	"github.com/trezcool/gradebook/core/grade"
	"github.com/trezcool/gradebook/core/user"
)

type (
	Deps struct {
		Logger        core.Logger
		Translator    ut.Translator
		UserSvc       user.Service
		CourseSvc     course.Service
		AssignmentSvc assignment.Service
		GradeSvc      grade.Service
		AttendanceSvc attendance.Service
		DashboardSvc  dashboard.Service
	}

	Server interface {
		http.Handler
		Start() error
		Stop(context.Context) error
	}

	server struct {
		conf     *core.Config
		deps     *Deps
		shutdown chan os.Signal
		app      *echo.Echo
		sessions *sessionManager
	}
)

var _ Server = (*server)(nil)

func NewServer(conf *core.Config, shutdown chan os.Signal, deps *Deps) Server {
	s := &server{
		conf:     conf,
		deps:     deps,
		shutdown: shutdown,
		app:      echo.New(),
		sessions: newSessionManager(conf, deps.UserSvc),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	s.app.HideBanner = true
	s.app.Debug = s.conf.Debug
	s.app.Server.ReadTimeout = s.conf.Server.ReadTimeout
	s.app.Server.WriteTimeout = s.conf.Server.WriteTimeout
	s.app.Renderer = newTemplateRenderer()
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(s.conf.Debug || s.conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.GET("/health", s.health)
	s.app.GET("/login", s.loginPage)
	s.app.POST("/login", s.login)
	s.app.POST("/logout", s.logout)

	authed := s.sessions.middleware()
	s.app.GET("/", s.home, authed...)

	registerStudentPages(s.app.Group("/student", append(authed, requireRole(user.RoleStudent))...), s.deps)
	registerTeacherPages(s.app.Group("/teacher", append(authed, requireRole(user.RoleTeacher))...), s.deps)
	registerAdminPages(s.app.Group("/admin-panel", append(authed, requireRole(user.RoleAdmin))...), s.deps)

	v1 := s.app.Group("/api/v1")
	registerTeacherAPI(v1.Group("/teacher", append(authed, requireRole(user.RoleTeacher))...), s.deps)
	registerStudentAPI(v1.Group("/student", append(authed, requireRole(user.RoleStudent))...), s.deps)
}

func (s *server) signalShutdown() {
	if s.shutdown != nil {
		s.shutdown <- syscall.SIGTERM
	}
}

func (s *server) Start() error {
	return s.app.Start(s.conf.Server.Address)
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *server) health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{"status": "ok", "build": s.conf.Build})
}

// home sends users to the portal of their role.
func (s *server) home(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	switch usr.Role {
	case user.RoleAdmin:
		return ctx.Redirect(http.StatusFound, "/admin-panel")
	case user.RoleTeacher:
		return ctx.Redirect(http.StatusFound, "/teacher/home")
	case user.RoleStudent:
		return ctx.Redirect(http.StatusFound, "/student/home")
	default:
		return errHttpForbidden
	}
}
