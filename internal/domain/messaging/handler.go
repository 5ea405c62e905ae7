package messaging

import (
	"net/http"
	"strconv"

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
	msg := api.Group("/messages", auth.RequireRole(auth.RoleScheduling))
	msg.GET("/templates", h.ListTemplates)
	msg.POST("/templates", h.CreateTemplate)
	msg.GET("/templates/:id", h.GetTemplate)
	msg.PUT("/templates/:id", h.UpdateTemplate)
	msg.DELETE("/templates/:id", h.DeleteTemplate)
	msg.POST("/templates/:id/preview", h.Preview)
	msg.POST("/send", h.Send)
	msg.POST("/bulk", h.BulkSend)
	msg.POST("/reminders", h.SendReminders)
	msg.GET("/history", h.History)

	// The catalog is read by every role when booking; only admins edit it.
	api.GET("/services", h.ListCatalog)
	api.GET("/services/:id", h.GetCatalogItem)
	admin := api.Group("/services", auth.RequireRole(auth.RoleAdmin))
	admin.POST("", h.CreateCatalogItem)
	admin.PUT("/:id", h.UpdateCatalogItem)
	admin.DELETE("/:id", h.DeleteCatalogItem)
}

func httpError(err error, fallback int) *echo.HTTPError {
	if isNotFound(err) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return echo.NewHTTPError(fallback, err.Error())
}

func idParam(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// -- Templates --

func (h *Handler) ListTemplates(c echo.Context) error {
	items, err := h.svc.ListTemplates(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []*Template{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) CreateTemplate(c echo.Context) error {
	var t Template
	if err := c.Bind(&t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateTemplate(c.Request().Context(), &t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) GetTemplate(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	t, err := h.svc.GetTemplate(c.Request().Context(), id)
	if err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) UpdateTemplate(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var t Template
	if err := c.Bind(&t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	t.ID = id
	if err := h.svc.UpdateTemplate(c.Request().Context(), &t); err != nil {
		return httpError(err, http.StatusBadRequest)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) DeleteTemplate(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteTemplate(c.Request().Context(), id); err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.NoContent(http.StatusNoContent)
}

type previewRequest struct {
	Vars map[string]string `json:"vars"`
}

type previewResponse struct {
	Body         string   `json:"body"`
	Placeholders []string `json:"placeholders"`
}

func (h *Handler) Preview(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var req previewRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	body, keys, err := h.svc.Preview(c.Request().Context(), id, req.Vars)
	if err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, previewResponse{Body: body, Placeholders: keys})
}

// -- Sending --

func (h *Handler) Send(c echo.Context) error {
	var req SendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	entry, err := h.svc.Send(c.Request().Context(), req)
	if entry != nil {
		// A failed dispatch is still recorded; the entry carries the error.
		return c.JSON(http.StatusCreated, entry)
	}
	return httpError(err, http.StatusBadRequest)
}

func (h *Handler) BulkSend(c echo.Context) error {
	var req BulkRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := h.svc.BulkSend(c.Request().Context(), req)
	if err != nil && res == nil {
		return httpError(err, http.StatusBadRequest)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) SendReminders(c echo.Context) error {
	date := c.QueryParam("date")
	if date == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "date is required")
	}
	var templateID *uuid.UUID
	if v := c.QueryParam("template_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid template_id")
		}
		templateID = &id
	}
	res, err := h.svc.SendReminders(c.Request().Context(), date, templateID)
	if err != nil && res == nil {
		return httpError(err, http.StatusBadRequest)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) History(c echo.Context) error {
	f := LogFilter{Status: c.QueryParam("status")}
	if v := c.QueryParam("recipient_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid recipient_id")
		}
		f.RecipientID = &id
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.History(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

// -- Service catalog --

func (h *Handler) ListCatalog(c echo.Context) error {
	activeOnly := true
	if v := c.QueryParam("all"); v != "" {
		all, _ := strconv.ParseBool(v)
		activeOnly = !all
	}
	items, err := h.svc.ListCatalog(c.Request().Context(), activeOnly)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []*CatalogItem{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) GetCatalogItem(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	it, err := h.svc.GetCatalogItem(c.Request().Context(), id)
	if err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, it)
}

func (h *Handler) CreateCatalogItem(c echo.Context) error {
	it := CatalogItem{Active: true, DurationMinutes: 30}
	if err := c.Bind(&it); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateCatalogItem(c.Request().Context(), &it); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, it)
}

func (h *Handler) UpdateCatalogItem(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var it CatalogItem
	if err := c.Bind(&it); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	it.ID = id
	if err := h.svc.UpdateCatalogItem(c.Request().Context(), &it); err != nil {
		return httpError(err, http.StatusBadRequest)
	}
	return c.JSON(http.StatusOK, it)
}

func (h *Handler) DeleteCatalogItem(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteCatalogItem(c.Request().Context(), id); err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.NoContent(http.StatusNoContent)
}
