package account

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/luskaa234/integrarneurpp-sub000/internal/platform/auth"
	"github.com/luskaa234/integrarneurpp-sub000/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Session endpoints; /auth/login is public.
	api.POST("/auth/login", h.Login)
	api.GET("/auth/me", h.Me)
	api.PUT("/auth/me", h.UpdateMe)
	api.POST("/auth/password", h.ChangePassword)
	api.POST("/auth/logout", h.Logout)

	// Directory of clinicians, needed by every role to book.
	api.GET("/clinicians", h.ListClinicians)

	readGroup := api.Group("", auth.RequireRole(auth.RoleScheduling, auth.RoleFinancial, auth.RoleClinician))
	readGroup.GET("/accounts", h.List)
	readGroup.GET("/accounts/:id", h.Get)
	readGroup.GET("/patients", h.ListPatients)

	adminGroup := api.Group("", auth.RequireRole(auth.RoleAdmin))
	adminGroup.POST("/accounts", h.Create)
	adminGroup.PUT("/accounts/:id", h.Update)
	adminGroup.DELETE("/accounts/:id", h.Delete)
	adminGroup.POST("/accounts/:id/activate", h.Activate)
	adminGroup.POST("/accounts/:id/deactivate", h.Deactivate)
}

func httpError(err error, fallback int) *echo.HTTPError {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrEmailTaken):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	return echo.NewHTTPError(fallback, err.Error())
}

// -- Sessions --

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Account   *Account  `json:"account,omitempty"`
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Email == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email and password are required")
	}
	sess, a, err := h.svc.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, sessionResponse{Token: sess.Token, ExpiresAt: sess.ExpiresAt, Account: a})
}

type meResponse struct {
	ID      string   `json:"id"`
	Role    string   `json:"role"`
	Name    string   `json:"name"`
	Account *Account `json:"account,omitempty"`
}

func (h *Handler) Me(c echo.Context) error {
	ctx := c.Request().Context()
	resp := meResponse{
		ID:   auth.UserIDFromContext(ctx),
		Role: auth.RoleFromContext(ctx),
		Name: auth.NameFromContext(ctx),
	}
	if resp.ID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "not signed in")
	}
	// The development identity has no account row.
	if id, err := uuid.Parse(resp.ID); err == nil {
		a, err := h.svc.Get(ctx, id)
		if err != nil {
			return httpError(err, http.StatusInternalServerError)
		}
		resp.Account = a
	}
	return c.JSON(http.StatusOK, resp)
}

func currentAccountID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "session has no account")
	}
	return id, nil
}

func (h *Handler) UpdateMe(c echo.Context) error {
	id, err := currentAccountID(c)
	if err != nil {
		return err
	}
	var p Profile
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.UpdateProfile(c.Request().Context(), id, p)
	if err != nil {
		return httpError(err, http.StatusBadRequest)
	}
	return c.JSON(http.StatusOK, a)
}

type passwordRequest struct {
	Current string `json:"current_password"`
	New     string `json:"new_password"`
}

func (h *Handler) ChangePassword(c echo.Context) error {
	id, err := currentAccountID(c)
	if err != nil {
		return err
	}
	var req passwordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sess, err := h.svc.ChangePassword(c.Request().Context(), id, req.Current, req.New)
	if err != nil {
		return httpError(err, http.StatusBadRequest)
	}
	return c.JSON(http.StatusOK, sessionResponse{Token: sess.Token, ExpiresAt: sess.ExpiresAt})
}

func (h *Handler) Logout(c echo.Context) error {
	if err := h.svc.Logout(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Accounts --

func (h *Handler) Create(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.Create(c.Request().Context(), &req)
	if err != nil {
		return httpError(err, http.StatusBadRequest)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) list(c echo.Context, f ListFilter) error {
	if v := c.QueryParam("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid active")
		}
		f.Active = &active
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) List(c echo.Context) error {
	role := c.QueryParam("role")
	if role != "" && !auth.ValidRole(role) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid role")
	}
	return h.list(c, ListFilter{Role: role})
}

func (h *Handler) ListPatients(c echo.Context) error {
	return h.list(c, ListFilter{Role: auth.RolePatient})
}

func (h *Handler) ListClinicians(c echo.Context) error {
	active := true
	return h.list(c, ListFilter{Role: auth.RoleClinician, Active: &active})
}

func (h *Handler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var a Account
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a.ID = id
	if err := h.svc.Update(c.Request().Context(), &a); err != nil {
		return httpError(err, http.StatusBadRequest)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) setActive(c echo.Context, active bool) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.SetActive(c.Request().Context(), id, active)
	if err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Activate(c echo.Context) error { return h.setActive(c, true) }

func (h *Handler) Deactivate(c echo.Context) error { return h.setActive(c, false) }
