package catalog

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/labdesk/labdesk/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleReception, auth.RoleLabTech))
	readGroup.GET("/tests", h.ListTests)
	readGroup.GET("/tests/:id", h.GetTest)
	readGroup.GET("/tests/groups", h.ListGroups)
	readGroup.GET("/tests/groups/:id", h.GetGroup)

	writeGroup := api.Group("", auth.RequireRole(auth.RoleAdmin))
	writeGroup.POST("/tests", h.CreateTest)
	writeGroup.PUT("/tests/:id", h.UpdateTest)
	writeGroup.DELETE("/tests/:id", h.DeleteTest)
	writeGroup.POST("/tests/groups", h.CreateGroup)
	writeGroup.PUT("/tests/groups/:id", h.UpdateGroup)
	writeGroup.DELETE("/tests/groups/:id", h.DeleteGroup)
}

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func httpError(err error, notFoundMsg string) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, notFoundMsg)
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

// -- Test Handlers --

func (h *Handler) ListTests(c echo.Context) error {
	activeOnly, _ := strconv.ParseBool(c.QueryParam("active"))
	items, err := h.svc.ListTests(c.Request().Context(), activeOnly)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []*Test{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) GetTest(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	t, err := h.svc.GetTest(c.Request().Context(), id)
	if err != nil {
		return httpError(err, "test not found")
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) CreateTest(c echo.Context) error {
	var in TestInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	t, err := h.svc.CreateTest(c.Request().Context(), in)
	if err != nil {
		return httpError(err, "test not found")
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) UpdateTest(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in TestInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	t, err := h.svc.UpdateTest(c.Request().Context(), id, in)
	if err != nil {
		return httpError(err, "test not found")
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) DeleteTest(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteTest(c.Request().Context(), id); err != nil {
		return httpError(err, "test not found")
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Group Handlers --

func (h *Handler) ListGroups(c echo.Context) error {
	items, err := h.svc.ListGroups(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []*Group{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) GetGroup(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	g, err := h.svc.GetGroup(c.Request().Context(), id)
	if err != nil {
		return httpError(err, "group not found")
	}
	return c.JSON(http.StatusOK, g)
}

func (h *Handler) CreateGroup(c echo.Context) error {
	var g Group
	if err := c.Bind(&g); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	g.ID = 0
	if err := h.svc.CreateGroup(c.Request().Context(), &g); err != nil {
		return httpError(err, "group not found")
	}
	return c.JSON(http.StatusCreated, g)
}

func (h *Handler) UpdateGroup(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var g Group
	if err := c.Bind(&g); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	g.ID = id
	if err := h.svc.UpdateGroup(c.Request().Context(), &g); err != nil {
		return httpError(err, "group not found")
	}
	return c.JSON(http.StatusOK, g)
}

func (h *Handler) DeleteGroup(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteGroup(c.Request().Context(), id); err != nil {
		return httpError(err, "group not found")
	}
	return c.NoContent(http.StatusNoContent)
}
