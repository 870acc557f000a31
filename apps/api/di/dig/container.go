package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"
	"go.uber.org/zap"

	echoapi "github.com/trezcool/gradebook/apps/api/echo"
	"github.com/trezcool/gradebook/apps/api/scheduler"
	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/assignment"
	"github.com/trezcool/gradebook/core/attendance"
	"github.com/trezcool/gradebook/core/course"
	"github.com/trezcool/gradebook/core/dashboard"
	"github.com/trezcool/gradebook/core/grade"
	"github.com/trezcool/gradebook/core/user"
	attendancesvc "github.com/trezcool/gradebook/services/attendance"
	"github.com/trezcool/gradebook/services/cache/inmemcache"
	"github.com/trezcool/gradebook/services/cache/rediscache"
	emailsvc "github.com/trezcool/gradebook/services/email"
	logsvc "github.com/trezcool/gradebook/services/logger"
	"github.com/trezcool/gradebook/storage/database"
	inmemdb "github.com/trezcool/gradebook/storage/database/inmem"
	sqlxrepos "github.com/trezcool/gradebook/storage/database/sqlx"
)

const connectTimeout = 30 * time.Second

type (
	// Storage holds the open store: SQL is nil on the memory engine.
	Storage struct {
		SQL *sqlx.DB
		Mem *inmemdb.DB
	}

	// Closers are run on shutdown, in order.
	Closers []func() error

	cacheResult struct {
		dig.Out
		Cache  assignment.Cache
		Closer func() error `name:"cacheCloser"`
	}

	ServerParams struct {
		dig.In
		Conf          *core.Config
		Shutdown      chan os.Signal
		Logger        core.Logger
		Translator    ut.Translator
		UserSvc       user.Service
		CourseSvc     course.Service
		AssignmentSvc assignment.Service
		GradeSvc      grade.Service
		AttendanceSvc attendance.Service
		DashboardSvc  dashboard.Service
	}

	closersParams struct {
		dig.In
		Storage     *Storage
		CacheCloser func() error `name:"cacheCloser"`
	}
)

// Close closes the store if it needs closing.
func (s *Storage) Close() error {
	if s.SQL != nil {
		return s.SQL.Close()
	}
	return nil
}

func newLogger(conf *core.Config) (core.Logger, *zap.SugaredLogger, error) {
	sink, err := logsvc.NewZapLogger(conf)
	if err != nil {
		return nil, nil, errors.Wrap(err, "building zap logger")
	}
	return logsvc.NewRollbarLogger(sink, conf), sink, nil
}

func newStorage(conf *core.Config, logger core.Logger) (*Storage, error) {
	switch conf.Database.Engine {
	case "memory":
		logger.Warn("using the in-memory store: data will not survive a restart")
		return &Storage{Mem: inmemdb.Open()}, nil
	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		db, err := database.Open(ctx, conf)
		if err != nil {
			return nil, err
		}
		return &Storage{SQL: db}, nil
	default:
		return nil, errors.Errorf("unknown database engine %q", conf.Database.Engine)
	}
}

func newUserRepository(s *Storage) user.Repository {
	if s.SQL != nil {
		return sqlxrepos.NewUserRepository(s.SQL)
	}
	return inmemdb.NewUserRepository(s.Mem)
}

func newCourseRepository(s *Storage) course.Repository {
	if s.SQL != nil {
		return sqlxrepos.NewCourseRepository(s.SQL)
	}
	return inmemdb.NewCourseRepository(s.Mem)
}

func newAssignmentRepository(s *Storage) assignment.Repository {
	if s.SQL != nil {
		return sqlxrepos.NewAssignmentRepository(s.SQL)
	}
	return inmemdb.NewAssignmentRepository(s.Mem)
}

func newGradeRepository(s *Storage) grade.Repository {
	if s.SQL != nil {
		return sqlxrepos.NewGradeRepository(s.SQL)
	}
	return inmemdb.NewGradeRepository(s.Mem)
}

// newCache uses redis when it is configured and reachable, the in-process cache otherwise.
func newCache(conf *core.Config, logger core.Logger) cacheResult {
	nop := func() error { return nil }
	if conf.Redis.Addr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		rdb, err := rediscache.Open(ctx, conf)
		if err == nil {
			return cacheResult{Cache: rediscache.NewAssignmentCache(rdb, conf.Redis.AssignmentTTL), Closer: rdb.Close}
		}
		logger.Warn("redis unavailable, falling back to the in-process cache", err)
	}
	return cacheResult{Cache: inmemcache.NewAssignmentCache(conf.Redis.AssignmentTTL), Closer: nop}
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.Email.SendgridAPIKey == "" {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newScheduler(conf *core.Config, svc assignment.Service, logger core.Logger) *scheduler.Scheduler {
	return scheduler.New(conf, svc, logger)
}

func newShutdownChan() chan os.Signal {
	return make(chan os.Signal, 1)
}

func newServer(p ServerParams) echoapi.Server {
	return echoapi.NewServer(p.Conf, p.Shutdown, &echoapi.Deps{
		Logger:        p.Logger,
		Translator:    p.Translator,
		UserSvc:       p.UserSvc,
		CourseSvc:     p.CourseSvc,
		AssignmentSvc: p.AssignmentSvc,
		GradeSvc:      p.GradeSvc,
		AttendanceSvc: p.AttendanceSvc,
		DashboardSvc:  p.DashboardSvc,
	})
}

func newClosers(p closersParams) Closers {
	return Closers{p.CacheCloser, p.Storage.Close}
}

// New returns a new dependency injection dig.Container.
// conf is provided as is when not nil (tests), loaded with core.NewConfig otherwise.
func New(conf *core.Config) *dig.Container {
	c := dig.New()

	if conf != nil {
		must(c.Provide(func() *core.Config { return conf }))
	} else {
		must(c.Provide(core.NewConfig))
	}
	must(c.Provide(newLogger))
	must(c.Provide(newStorage))
	must(c.Provide(newUserRepository))
	must(c.Provide(newCourseRepository))
	must(c.Provide(newAssignmentRepository))
	must(c.Provide(newGradeRepository))
	must(c.Provide(newCache))
	must(c.Provide(newClosers))
	must(c.Provide(newEmailService))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(core.NewValidator))
	must(c.Provide(attendancesvc.NewClient))
	must(c.Provide(attendance.NewService))
	must(c.Provide(user.NewService))
	must(c.Provide(course.NewService))
	must(c.Provide(assignment.NewService))
	must(c.Provide(grade.NewService))
	must(c.Provide(dashboard.NewService))
	must(c.Provide(newScheduler))
	must(c.Provide(newShutdownChan))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}

// Describe returns a one-line description of the configured store & cache, for startup logs.
func Describe(conf *core.Config) string {
	cache := "in-process"
	if conf.Redis.Addr != "" {
		cache = "redis@" + conf.Redis.Addr
	}
	return fmt.Sprintf("engine=%s cache=%s", conf.Database.Engine, cache)
}
