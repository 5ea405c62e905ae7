package dashboard

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/luskaa234/integrarneurpp-sub000/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/menu", h.Menu)
	api.GET("/dashboard", h.Dashboard)
}

type menuResponse struct {
	Role   string     `json:"role"`
	Items  []MenuItem `json:"items"`
	Screen Screen     `json:"screen"`
}

// Menu returns the caller's menu. ?screen= is resolved against it.
func (h *Handler) Menu(c echo.Context) error {
	role := auth.RoleFromContext(c.Request().Context())
	if !auth.ValidRole(role) {
		return echo.NewHTTPError(http.StatusForbidden, "unknown role")
	}
	screen := Screen(c.QueryParam("screen"))
	if screen == "" {
		screen = ScreenDashboard
	}
	return c.JSON(http.StatusOK, menuResponse{
		Role:   role,
		Items:  ScreensFor(role),
		Screen: Resolve(role, screen),
	})
}

func (h *Handler) Dashboard(c echo.Context) error {
	ctx := c.Request().Context()
	role := auth.RoleFromContext(ctx)
	if !auth.ValidRole(role) {
		return echo.NewHTTPError(http.StatusForbidden, "unknown role")
	}
	var self uuid.UUID
	if role == auth.RoleClinician || role == auth.RolePatient {
		id, err := uuid.Parse(auth.UserIDFromContext(ctx))
		if err != nil {
			return echo.NewHTTPError(http.StatusForbidden, "session has no account")
		}
		self = id
	}
	return c.JSON(http.StatusOK, h.svc.Build(role, self))
}
