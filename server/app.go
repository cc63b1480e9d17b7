package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"devmon/config"
	"devmon/internal/db"
	"devmon/internal/devices"
	"devmon/internal/health"
	"devmon/internal/logs"
	"devmon/internal/middleware"
	"devmon/internal/repo"

	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

type App struct {
	cfg        *config.Config
	Router     *mux.Router
	httpServer *http.Server

	db     *gorm.DB
	ctx    context.Context
	cancel context.CancelFunc
}

// Initialize wires logging, the database and routes. A nil gdb opens the
// database from cfg; tests pass their own handle.
func (a *App) Initialize(cfg *config.Config, gdb *gorm.DB) error {
	a.cfg = cfg
	a.ctx, a.cancel = context.WithCancel(context.Background())

	// 1) logs
	logs.Init(logs.Options{
		Level:  a.cfg.Logging.Level,
		Format: a.cfg.Logging.Format,
		File:   a.cfg.Logging.File,
	})

	// 2) database
	if gdb == nil {
		d, err := db.Open(a.cfg.Database.Driver, a.cfg.Database.DSN)
		if err != nil {
			return err
		}
		if d == nil {
			return errors.New("database driver not configured")
		}
		if err := db.Configure(d, a.cfg.Database.MaxOpenConns, a.cfg.Database.MaxIdleConns); err != nil {
			return err
		}
		gdb = d
	}
	a.db = gdb
	if err := db.Migrate(a.db); err != nil {
		return err
	}

	// 3) router + middleware; encoded path so device names may hold '/'
	a.Router = mux.NewRouter().UseEncodedPath()
	a.Router.Use(middleware.RequestID)
	a.Router.Use(middleware.Recoverer)
	a.Router.Use(middleware.LoggerMW)

	// 4) health: /healthz, /readyz
	health.RegisterRoutesWithDB(a.Router, a.db)

	// 5) device registry
	devices.NewHTTP(repo.NewDeviceStore(a.db)).RegisterRoutes(a.Router)

	// 6) browser view
	if err := a.RegisterWebUI("/ui/"); err != nil {
		return err
	}

	_ = a.Router.Walk(func(rt *mux.Route, r *mux.Router, ancestors []*mux.Route) error {
		path, _ := rt.GetPathTemplate()
		methods, _ := rt.GetMethods()
		logs.Logger.Debugf("route: %-6v %s", methods, path)
		return nil
	})
	return nil
}

func (a *App) Run() error {
	if a.Router == nil || a.cfg == nil {
		return ErrNotInitialized
	}
	bind := net.JoinHostPort(a.cfg.Server.Address, a.cfg.Server.HTTPPort)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		select {
		case <-sigs:
			a.cancel()
		case <-a.ctx.Done():
		}
	}()

	a.httpServer = &http.Server{
		Addr:         bind,
		Handler:      a.Router,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
		IdleTimeout:  a.cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logs.Logger.Infof("HTTP listening on %s", bind)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var runErr error
	select {
	case <-a.ctx.Done():
	case runErr = <-errCh:
		a.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Shutdown(ctx); err != nil {
		logs.Logger.Warnf("http shutdown: %v", err)
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	logs.Logger.Info("server stopped")
	return runErr
}

// Stop triggers the same graceful shutdown as SIGTERM. It may be called
// any time after Initialize, including before Run.
func (a *App) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
}

var ErrNotInitialized = &initError{"server not initialized (call Initialize(cfg) first)"}

type initError struct{ s string }

func (e *initError) Error() string { return e.s }
