// Package httpserver exposes the platform services as a JSON REST API on echo.
package httpserver

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/tamir303/Afekaton2024/internal/convert"
	"github.com/tamir303/Afekaton2024/internal/service"
	"github.com/tamir303/Afekaton2024/internal/token"
)

// Options configures the REST server.
type Options struct {
	Addr     string
	Debug    bool
	Services service.Services
	Tokens   *token.Manager
	Log      *zap.Logger
}

// Server is the echo application plus its lifecycle.
type Server struct {
	opts Options
	app  *echo.Echo
	log  *zap.Logger
}

var _ http.Handler = (*Server)(nil)

type appValidator struct{}

func (appValidator) Validate(i any) error { return convert.Validate(i) }

// New builds the router. Call Start to listen.
func New(opts Options) *Server {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{opts: opts, app: echo.New(), log: log}
	s.setup()
	return s
}

func (s *Server) setup() {
	e := s.app
	e.HideBanner = true
	e.HidePort = true
	e.Debug = s.opts.Debug
	e.Validator = appValidator{}
	e.HTTPErrorHandler = newErrorHandler(s.log)

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(requestLogger(s.log))
	e.Use(middleware.Recover())

	e.GET("/", func(c echo.Context) error { return c.String(http.StatusOK, "Afekaton platform API") })

	h := handlers{svc: s.opts.Services}
	auth := s.actorMiddleware

	entry := e.Group("/entry")
	entry.POST("/register", h.register)
	entry.POST("/login", h.login)

	users := e.Group("/users", auth)
	users.GET("", h.listUsers)
	users.DELETE("", h.deleteUsers)
	users.GET("/:id", h.getUser)
	users.PUT("/:id", h.updateUser)

	objects := e.Group("/objects", auth)
	objects.POST("", h.createObject)
	objects.GET("", h.listObjects)
	objects.DELETE("", h.deleteObjects)
	objects.GET("/type/:type", h.byType)
	objects.GET("/type/distinct/:type", h.distinctByType)
	objects.GET("/:id", h.getObject)
	objects.PUT("/:id", h.updateObject)
	objects.PUT("/:id/bind", h.bind)
	objects.PUT("/:id/unbind", h.unbind)
	objects.GET("/:id/children", h.children)
	objects.GET("/:id/children/:type/:alias", h.childrenByTypeAndAlias)
	objects.GET("/:id/parents", h.parents)
	objects.GET("/:id/parents/:type/:alias", h.parentsByTypeAndAlias)

	commands := e.Group("/commands", auth)
	commands.POST("", h.invokeCommand)
	commands.GET("", h.listCommands)
	commands.DELETE("", h.deleteCommands)

	e.GET("/subjects", h.listSubjects)
	e.POST("/subjects", h.addSubject, auth)
}

// Start listens on Options.Addr until Stop. http.ErrServerClosed is not an error.
func (s *Server) Start() error {
	s.log.Info("http listening", zap.String("addr", s.opts.Addr))
	if err := s.app.Start(s.opts.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop drains in-flight requests.
func (s *Server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.app.ServeHTTP(w, r)
}
