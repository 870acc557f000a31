package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	dig_container "github.com/trezcool/gradebook/apps/api/di/dig"
	echoapi "github.com/trezcool/gradebook/apps/api/echo"
	"github.com/trezcool/gradebook/apps/api/scheduler"
	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/storage/database"
)

func main() {
	c := dig_container.New(nil)

	must(c.Invoke(func(
		conf *core.Config,
		logger core.Logger,
		sink *zap.SugaredLogger,
		storage *dig_container.Storage,
		closers dig_container.Closers,
		sweeper *scheduler.Scheduler,
		server echoapi.Server,
		shutdown chan os.Signal,
	) {
		// =========================================================================
		// Initialize App

		logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build), map[string]interface{}{
			"env":     conf.Env,
			"storage": dig_container.Describe(conf),
		})
		defer func() { _ = sink.Sync() }()
		defer logger.Info("Application stopped")
		defer func() {
			for _, closeFn := range closers {
				if err := closeFn(); err != nil {
					logger.Error("closing resource", err)
				}
			}
		}()

		if storage.SQL != nil {
			if err := database.Migrate(context.Background(), storage.SQL.DB); err != nil {
				logger.Fatal("migrating database", err)
			}
		}

		// =========================================================================
		// Start Debug Service
		//
		// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
		// /debug/vars - Added to the default mux by importing the expvar package.

		// Expose important info under /debug/vars.
		expvar.NewString("build").Set(conf.Build)
		expvar.NewString("env").Set(conf.Env)

		go func() {
			if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
				logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
			}
		}()

		// =========================================================================
		// Start Background Jobs

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		if conf.Sweep.Enabled() {
			sweeper.Start(ctx)
			defer sweeper.Stop()
		} else if !conf.Sweep.Disabled {
			logger.Warn(fmt.Sprintf("assignment sweep disabled: invalid interval %v", conf.Sweep.Interval))
		}

		// =========================================================================
		// Start API Service

		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("API listening on " + conf.Server.Address)
			serverErrors <- server.Start()
		}()

		// =========================================================================
		// Shutdown

		select {
		case err := <-serverErrors:
			if !errors.Is(err, http.ErrServerClosed) {
				logger.Error(fmt.Sprintf("server error: %v", err), err)
			}

		case sig := <-shutdown:
			logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

			// give outstanding requests a deadline for completion
			sctx, scancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
			defer scancel()

			if err := server.Stop(sctx); err != nil {
				logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)
			}
		}
	}))
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
