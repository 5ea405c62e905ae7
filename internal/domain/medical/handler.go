package medical

import (
	"errors"
	"net/http"

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
	readGroup := api.Group("/medical-records", auth.RequireRole(auth.RoleClinician, auth.RolePatient))
	readGroup.GET("", h.List)
	readGroup.GET("/:id", h.Get)

	writeGroup := api.Group("/medical-records", auth.RequireRole(auth.RoleClinician))
	writeGroup.POST("", h.Create)
	writeGroup.PUT("/:id", h.Update)
	writeGroup.DELETE("/:id", h.Delete)
}

func httpError(err error, fallback int) *echo.HTTPError {
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return echo.NewHTTPError(fallback, err.Error())
}

// caller returns the caller's role and account id. The id is uuid.Nil for
// roles that are not narrowed to their own rows.
func caller(c echo.Context) (string, uuid.UUID, error) {
	ctx := c.Request().Context()
	role := auth.RoleFromContext(ctx)
	if role != auth.RolePatient && role != auth.RoleClinician {
		return role, uuid.Nil, nil
	}
	id, err := uuid.Parse(auth.UserIDFromContext(ctx))
	if err != nil {
		return role, uuid.Nil, echo.NewHTTPError(http.StatusForbidden, "session has no account")
	}
	return role, id, nil
}

func (h *Handler) Create(c echo.Context) error {
	var r Record
	if err := c.Bind(&r); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	role, self, err := caller(c)
	if err != nil {
		return err
	}
	if role == auth.RoleClinician {
		r.ClinicianID = self
	}
	if err := h.svc.Create(c.Request().Context(), &r); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	role, self, err := caller(c)
	if err != nil {
		return err
	}
	r, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	if role == auth.RolePatient && r.PatientID != self {
		return echo.NewHTTPError(http.StatusNotFound, ErrNotFound.Error())
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) List(c echo.Context) error {
	var f ListFilter
	if v := c.QueryParam("patient_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		f.PatientID = &id
	}
	if v := c.QueryParam("clinician_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid clinician_id")
		}
		f.ClinicianID = &id
	}
	role, self, err := caller(c)
	if err != nil {
		return err
	}
	if role == auth.RolePatient {
		f.PatientID = &self
	}

	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

// authorOnly rejects a clinician touching another clinician's record.
func (h *Handler) authorOnly(c echo.Context, id uuid.UUID) error {
	role, self, err := caller(c)
	if err != nil {
		return err
	}
	if role != auth.RoleClinician {
		return nil
	}
	cur, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	if cur.ClinicianID != self {
		return echo.NewHTTPError(http.StatusForbidden, "record belongs to another clinician")
	}
	return nil
}

func (h *Handler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var r Record
	if err := c.Bind(&r); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.authorOnly(c, id); err != nil {
		return err
	}
	r.ID = id
	if role, self, _ := caller(c); role == auth.RoleClinician {
		r.ClinicianID = self
	}
	if err := h.svc.Update(c.Request().Context(), &r); err != nil {
		return httpError(err, http.StatusBadRequest)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.authorOnly(c, id); err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.NoContent(http.StatusNoContent)
}
