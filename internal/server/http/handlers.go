package httpserver

import (
	"net/http"

	"github.com/gofrs/uuid/v5"
	"github.com/labstack/echo/v4"

	"github.com/tamir303/Afekaton2024/internal/convert"
	"github.com/tamir303/Afekaton2024/internal/model"
	"github.com/tamir303/Afekaton2024/internal/service"
)

type handlers struct {
	svc service.Services
}

// bindValid binds the body into dst and checks its struct tags.
func bindValid(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return err
	}
	return c.Validate(dst)
}

func pathID(c echo.Context) (uuid.UUID, error) {
	return convert.ParseID(c.Param("id"))
}

// Users

func (h handlers) register(c echo.Context) error {
	var req convert.NewUser
	if err := bindValid(c, &req); err != nil {
		return err
	}
	u, err := h.svc.Users.Register(c.Request().Context(), convert.ToNewUser(req))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, convert.FromUser(u))
}

func (h handlers) login(c echo.Context) error {
	var req convert.Login
	if err := bindValid(c, &req); err != nil {
		return err
	}
	id := model.Identity{Email: req.Email, Platform: req.Platform}
	tok, u, err := h.svc.Users.Login(c.Request().Context(), id, req.Password, c.RealIP())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, convert.FromLogin(tok, u))
}

func (h handlers) getUser(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	u, err := h.svc.Users.Get(c.Request().Context(), actorFrom(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, convert.FromUser(u))
}

func (h handlers) updateUser(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var patch convert.UserPatch
	if err := bindValid(c, &patch); err != nil {
		return err
	}
	u, err := h.svc.Users.Update(c.Request().Context(), actorFrom(c), id, convert.ToUserPatch(patch))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, convert.FromUser(u))
}

func (h handlers) listUsers(c echo.Context) error {
	us, err := h.svc.Users.List(c.Request().Context(), actorFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, convert.FromUsers(us))
}

func (h handlers) deleteUsers(c echo.Context) error {
	n, err := h.svc.Users.DeleteAll(c.Request().Context(), actorFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, convert.Count{Count: n})
}

// Objects

func (h handlers) createObject(c echo.Context) error {
	var req convert.Object
	if err := bindValid(c, &req); err != nil {
		return err
	}
	nobj, err := convert.ToNewObject(req)
	if err != nil {
		return err
	}
	o, err := h.svc.Objects.Create(c.Request().Context(), actorFrom(c), nobj)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, convert.FromObject(o))
}

func (h handlers) getObject(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	o, err := h.svc.Objects.Get(c.Request().Context(), actorFrom(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, convert.FromObject(o))
}

func (h handlers) updateObject(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var patch convert.ObjectPatch
	if err := bindValid(c, &patch); err != nil {
		return err
	}
	if err := h.svc.Objects.Update(c.Request().Context(), actorFrom(c), id, convert.ToObjectPatch(patch)); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h handlers) listObjects(c echo.Context) error {
	objs, err := h.svc.Objects.List(c.Request().Context(), actorFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, convert.FromObjects(objs))
}

func (h handlers) deleteObjects(c echo.Context) error {
	n, err := h.svc.Objects.DeleteAll(c.Request().Context(), actorFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, convert.Count{Count: n})
}

// edge reads the parent from the path and the child from the body.
func edge(c echo.Context) (parent, child uuid.UUID, err error) {
	if parent, err = pathID(c); err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	var body convert.ObjectID
	if err = bindValid(c, &body); err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	child, err = convert.ParseID(body.InternalObjectID)
	return parent, child, err
}

func (h handlers) bind(c echo.Context) error {
	parent, child, err := edge(c)
	if err != nil {
		return err
	}
	if err := h.svc.Objects.Bind(c.Request().Context(), actorFrom(c), parent, child); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h handlers) unbind(c echo.Context) error {
	parent, child, err := edge(c)
	if err != nil {
		return err
	}
	if err := h.svc.Objects.Unbind(c.Request().Context(), actorFrom(c), parent, child); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h handlers) children(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	objs, err := h.svc.Objects.Children(c.Request().Context(), actorFrom(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, convert.FromObjects(objs))
}

func (h handlers) parents(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	objs, err := h.svc.Objects.Parents(c.Request().Context(), actorFrom(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, convert.FromObjects(objs))
}

// Queries

func (h handlers) byType(c echo.Context) error {
	objs, err := h.svc.Query.ByType(c.Request().Context(), actorFrom(c), c.Param("type"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, convert.FromObjects(objs))
}

func (h handlers) distinctByType(c echo.Context) error {
	o, err := h.svc.Query.DistinctByType(c.Request().Context(), actorFrom(c), c.Param("type"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, convert.FromObject(o))
}

func (h handlers) childrenByTypeAndAlias(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	objs, err := h.svc.Query.ChildrenByTypeAndAlias(c.Request().Context(), actorFrom(c), id, c.Param("type"), c.Param("alias"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, convert.FromObjects(objs))
}

func (h handlers) parentsByTypeAndAlias(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	objs, err := h.svc.Query.ParentsByTypeAndAlias(c.Request().Context(), actorFrom(c), id, c.Param("type"), c.Param("alias"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, convert.FromObjects(objs))
}

// Commands

func (h handlers) invokeCommand(c echo.Context) error {
	var req convert.Command
	if err := bindValid(c, &req); err != nil {
		return err
	}
	nc, err := convert.ToNewCommand(req)
	if err != nil {
		return err
	}
	cmd, err := h.svc.Commands.Invoke(c.Request().Context(), actorFrom(c), nc)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, convert.FromCommand(cmd))
}

func (h handlers) listCommands(c echo.Context) error {
	cs, err := h.svc.Commands.List(c.Request().Context(), actorFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, convert.FromCommands(cs))
}

func (h handlers) deleteCommands(c echo.Context) error {
	n, err := h.svc.Commands.DeleteAll(c.Request().Context(), actorFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, convert.Count{Count: n})
}

// Subjects

func (h handlers) listSubjects(c echo.Context) error {
	ss, err := h.svc.Subjects.List(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, convert.FromSubjects(ss))
}

func (h handlers) addSubject(c echo.Context) error {
	var req convert.Subject
	if err := bindValid(c, &req); err != nil {
		return err
	}
	s, err := h.svc.Subjects.Add(c.Request().Context(), actorFrom(c), convert.ToSubject(req))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, convert.FromSubject(s))
}
