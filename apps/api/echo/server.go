package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/jamii/core"
	"github.com/trezcool/jamii/core/avatar"
	"github.com/trezcool/jamii/core/group"
	"github.com/trezcool/jamii/core/notification"
	"github.com/trezcool/jamii/core/user"
)

type (
	ServerDeps struct {
		Conf            *core.Config
		Logger          core.Logger
		UserSvc         *user.Service
		GroupSvc        *group.Service
		NotificationSvc *notification.Service
		AvatarSvc       *avatar.Service
		Validate        *validator.Validate
		Translator      ut.Translator
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		jwt      *jwtAuth
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	srv := &Server{
		deps:     deps,
		app:      echo.New(),
		jwt:      newJWTAuth(deps.Conf),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	srv.setup()
	return srv
}

func (srv *Server) setup() {
	conf := srv.deps.Conf

	srv.app.HideBanner = true
	srv.app.Pre(middleware.RemoveTrailingSlash())
	srv.app.Use(middleware.RequestID())
	if !conf.Server.DisableReqLogs {
		srv.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		srv.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	if conf.Server.BodyLimit != "" {
		srv.app.Use(middleware.BodyLimit(conf.Server.BodyLimit))
	}

	srv.app.HTTPErrorHandler = newAppHTTPErrorHandler(srv.deps.Logger, srv.deps.Translator, srv.signalShutdown)
	srv.app.Debug = conf.Debug && !conf.TestMode

	srv.app.GET("/", srv.home)
	srv.app.Static("/uploads", conf.Avatar.UploadPath)

	registerAuthAPI(srv.app.Group("/auth"), srv.jwt, srv.deps.UserSvc, srv.deps.Validate, srv.deps.Logger)

	// anonymous callers are let through; each endpoint decides what they may do
	ns := srv.app.Group(conf.RESTNamespace(), srv.jwt.optional())
	nsDeps := &namespaceDeps{
		namespace: conf.REST.Namespace + "/" + conf.REST.Version,
		logger:    srv.deps.Logger,
		usrSvc:    srv.deps.UserSvc,
	}
	registerCoverAPI(ns, nsDeps, srv.deps.GroupSvc, srv.deps.AvatarSvc)
	registerNotificationAPI(ns, nsDeps, srv.deps.NotificationSvc, srv.deps.Validate)
}

// Start listens on the configured host. Errors are reported on Errors().
func (srv *Server) Start() {
	signal.Notify(srv.shutdown, os.Interrupt, syscall.SIGTERM)
	if err := srv.app.Start(srv.deps.Conf.Server.Host); err != nil && err != http.ErrServerClosed {
		srv.errors <- err
	}
}

func (srv *Server) Shutdown(ctx context.Context) error {
	return srv.app.Shutdown(ctx)
}

func (srv *Server) Close() error {
	return srv.app.Close()
}

func (srv *Server) Errors() <-chan error {
	return srv.errors
}

func (srv *Server) ShutdownSignal() <-chan os.Signal {
	return srv.shutdown
}

func (srv *Server) signalShutdown() {
	select {
	case srv.shutdown <- syscall.SIGTERM:
	default: // already signaled
	}
}

func (srv *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	srv.app.ServeHTTP(w, r)
}

func (srv *Server) home(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{
		"name":      srv.deps.Conf.AppName,
		"build":     srv.deps.Conf.Build,
		"namespace": srv.deps.Conf.REST.Namespace + "/" + srv.deps.Conf.REST.Version,
	})
}
