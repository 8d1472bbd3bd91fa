package httpserver

import (
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/tamir303/Afekaton2024/internal/errs"
	"github.com/tamir303/Afekaton2024/internal/model"
)

const actorKey = "actor"

// actorMiddleware authenticates the caller. A bearer token wins; otherwise the
// email and platform query parameters name a registered identity.
func (s *Server) actorMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		actor, err := s.authenticate(c)
		if err != nil {
			return err
		}
		c.Set(actorKey, actor)
		return next(c)
	}
}

func (s *Server) authenticate(c echo.Context) (model.Actor, error) {
	if h := c.Request().Header.Get(echo.HeaderAuthorization); h != "" {
		tok, ok := bearerToken(h)
		if !ok {
			return model.Actor{}, fmt.Errorf("malformed authorization header: %w", errs.ErrUnauthorized)
		}
		return s.opts.Tokens.Verify(tok)
	}
	id := model.Identity{Email: c.QueryParam("email"), Platform: c.QueryParam("platform")}
	if id.Email == "" && id.Platform == "" {
		return model.Actor{}, fmt.Errorf("no credentials: %w", errs.ErrUnauthorized)
	}
	return s.opts.Services.Users.Resolve(c.Request().Context(), id)
}

func bearerToken(h string) (string, bool) {
	h = strings.TrimSpace(h)
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(h[7:])
	return tok, tok != ""
}

func actorFrom(c echo.Context) model.Actor {
	a, _ := c.Get(actorKey).(model.Actor)
	return a
}

// requestLogger logs one line per request, without bodies.
func requestLogger(log *zap.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURIPath:  true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("path", v.URIPath),
				zap.Int("status", v.Status),
				zap.Duration("dur", v.Latency),
				zap.String("peer", v.RemoteIP),
			}
			switch {
			case v.Status >= 500:
				log.Error("http", append(fields, zap.Error(v.Error))...)
			case v.Status >= 400:
				log.Warn("http", fields...)
			default:
				log.Info("http", fields...)
			}
			return nil
		},
	})
}
