package scheduling

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
	// Every role reads; patients and clinicians are narrowed to their own rows.
	api.GET("/appointments", h.List)
	api.GET("/appointments/availability", h.Availability)
	api.GET("/appointments/:id", h.Get)

	writeGroup := api.Group("", auth.RequireRole(auth.RoleScheduling, auth.RoleClinician))
	writeGroup.POST("/appointments", h.Create)
	writeGroup.PUT("/appointments/:id", h.Update)
	writeGroup.PATCH("/appointments/:id/status", h.SetStatus)

	deleteGroup := api.Group("", auth.RequireRole(auth.RoleScheduling))
	deleteGroup.DELETE("/appointments/:id", h.Delete)
}

func httpError(err error, fallback int) *echo.HTTPError {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrSlotTaken):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return echo.NewHTTPError(fallback, err.Error())
}

// scope returns the caller's role and, for patients and clinicians, their
// account id.
func scope(c echo.Context) (string, uuid.UUID, error) {
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

func visible(role string, self uuid.UUID, a *Appointment) bool {
	switch role {
	case auth.RolePatient:
		return a.PatientID == self
	case auth.RoleClinician:
		return a.ClinicianID == self
	}
	return true
}

func (h *Handler) Create(c echo.Context) error {
	var a Appointment
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	role, self, err := scope(c)
	if err != nil {
		return err
	}
	if role == auth.RoleClinician && a.ClinicianID != self {
		return echo.NewHTTPError(http.StatusForbidden, "clinicians book only their own agenda")
	}
	if err := h.svc.Create(c.Request().Context(), &a); err != nil {
		return httpError(err, http.StatusBadRequest)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	role, self, err := scope(c)
	if err != nil {
		return err
	}
	a, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	if !visible(role, self, a) {
		return echo.NewHTTPError(http.StatusNotFound, ErrNotFound.Error())
	}
	return c.JSON(http.StatusOK, a)
}

func parseUUIDParam(c echo.Context, name string) (*uuid.UUID, error) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return &id, nil
}

func (h *Handler) List(c echo.Context) error {
	f := ListFilter{
		Date:   c.QueryParam("date"),
		From:   c.QueryParam("from"),
		To:     c.QueryParam("to"),
		Status: c.QueryParam("status"),
	}
	var err error
	if f.PatientID, err = parseUUIDParam(c, "patient_id"); err != nil {
		return err
	}
	if f.ClinicianID, err = parseUUIDParam(c, "clinician_id"); err != nil {
		return err
	}
	role, self, err := scope(c)
	if err != nil {
		return err
	}
	switch role {
	case auth.RolePatient:
		f.PatientID = &self
	case auth.RoleClinician:
		f.ClinicianID = &self
	}

	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

type availabilityResponse struct {
	Available bool         `json:"available"`
	Date      string       `json:"date"`
	Time      string       `json:"time"`
	Conflict  *Appointment `json:"conflict,omitempty"`
	Message   string       `json:"message,omitempty"`
}

func (h *Handler) Availability(c echo.Context) error {
	clinicianID, err := uuid.Parse(c.QueryParam("clinician_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid clinician_id")
	}
	excludeID := uuid.Nil
	if v := c.QueryParam("exclude_id"); v != "" {
		if excludeID, err = uuid.Parse(v); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid exclude_id")
		}
	}
	ctx := c.Request().Context()
	ok, existing, err := h.svc.CheckAvailability(ctx, clinicianID, c.QueryParam("date"), c.QueryParam("time"), excludeID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	resp := availabilityResponse{Available: ok}
	resp.Date, _ = NormalizeDate(c.QueryParam("date"))
	resp.Time, _ = NormalizeTime(c.QueryParam("time"))
	if existing != nil {
		role, self, err := scope(c)
		if err != nil {
			return err
		}
		resp.Message = ErrSlotTaken.Error()
		if visible(role, self, existing) {
			resp.Conflict = existing
			resp.Message = h.svc.Describe(ctx, existing).Error()
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var a Appointment
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a.ID = id
	role, self, err := scope(c)
	if err != nil {
		return err
	}
	if role == auth.RoleClinician {
		cur, err := h.svc.Get(c.Request().Context(), id)
		if err != nil {
			return httpError(err, http.StatusInternalServerError)
		}
		if !visible(role, self, cur) || a.ClinicianID != self {
			return echo.NewHTTPError(http.StatusForbidden, "clinicians edit only their own agenda")
		}
	}
	if err := h.svc.Update(c.Request().Context(), &a); err != nil {
		return httpError(err, http.StatusBadRequest)
	}
	return c.JSON(http.StatusOK, a)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) SetStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	role, self, err := scope(c)
	if err != nil {
		return err
	}
	if role == auth.RoleClinician {
		cur, err := h.svc.Get(c.Request().Context(), id)
		if err != nil {
			return httpError(err, http.StatusInternalServerError)
		}
		if !visible(role, self, cur) {
			return echo.NewHTTPError(http.StatusForbidden, "clinicians edit only their own agenda")
		}
	}
	a, err := h.svc.SetStatus(c.Request().Context(), id, req.Status)
	if err != nil {
		return httpError(err, http.StatusBadRequest)
	}
	return c.JSON(http.StatusOK, a)
}

type deleteResponse struct {
	ID                   uuid.UUID `json:"id"`
	LinkedRecordsRemoved int       `json:"linked_records_removed"`
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	n, err := h.svc.Delete(c.Request().Context(), id)
	if err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, deleteResponse{ID: id, LinkedRecordsRemoved: n})
}
