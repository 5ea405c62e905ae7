package scheduling

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/luskaa234/integrarneurpp-sub000/internal/platform/auth"
)

func newTestHandler() (*Handler, *fixture, *echo.Echo) {
	f := newFixture(nil)
	return NewHandler(f.svc), f, echo.New()
}

func jsonRequest(method, body string) *http.Request {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func as(req *http.Request, id uuid.UUID, role string) *http.Request {
	return req.WithContext(auth.WithIdentity(req.Context(), id.String(), role, role))
}

func expectHTTPStatus(t *testing.T, err error, code int) {
	t.Helper()
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %T (%v)", err, err)
	}
	if httpErr.Code != code {
		t.Errorf("expected %d, got %d", code, httpErr.Code)
	}
}

func bookingBody(patient, clinician uuid.UUID, date, slotTime string) string {
	return fmt.Sprintf(`{"patient_id":%q,"clinician_id":%q,"date":%q,"time":%q,"price":150}`,
		patient, clinician, date, slotTime)
}

func TestHandler_Create(t *testing.T) {
	h, f, e := newTestHandler()
	rec := httptest.NewRecorder()
	req := as(jsonRequest(http.MethodPost, bookingBody(f.patient, f.doctor, "2024-12-20", "9h")), uuid.New(), auth.RoleScheduling)
	if err := h.Create(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var a Appointment
	json.Unmarshal(rec.Body.Bytes(), &a)
	if a.Time != "09:00" || a.Price.String() != "150" {
		t.Errorf("unexpected appointment %s", rec.Body.String())
	}
}

func TestHandler_Create_Conflict(t *testing.T) {
	h, f, e := newTestHandler()
	f.book(t, f.patient, "2024-12-20", "09:00")
	req := as(jsonRequest(http.MethodPost, bookingBody(f.other, f.doctor, "2024-12-20", "09:00")), uuid.New(), auth.RoleScheduling)
	err := h.Create(e.NewContext(req, httptest.NewRecorder()))
	expectHTTPStatus(t, err, http.StatusConflict)
	if msg := fmt.Sprint(err.(*echo.HTTPError).Message); !strings.Contains(msg, "P1") {
		t.Errorf("expected holder in message, got %q", msg)
	}
}

func TestHandler_Create_ClinicianOtherAgenda(t *testing.T) {
	h, f, e := newTestHandler()
	req := as(jsonRequest(http.MethodPost, bookingBody(f.patient, f.doctor, "2024-12-20", "09:00")), uuid.New(), auth.RoleClinician)
	expectHTTPStatus(t, h.Create(e.NewContext(req, httptest.NewRecorder())), http.StatusForbidden)
}

func TestHandler_Create_ClinicianOwnAgenda(t *testing.T) {
	h, f, e := newTestHandler()
	req := as(jsonRequest(http.MethodPost, bookingBody(f.patient, f.doctor, "2024-12-20", "09:00")), f.doctor, auth.RoleClinician)
	if err := h.Create(e.NewContext(req, httptest.NewRecorder())); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestHandler_Availability(t *testing.T) {
	h, f, e := newTestHandler()
	a := f.book(t, f.patient, "2024-12-20", "09:00")

	target := fmt.Sprintf("/?clinician_id=%s&date=20/12/2024&time=9:00", f.doctor)
	rec := httptest.NewRecorder()
	req := as(httptest.NewRequest(http.MethodGet, target, nil), uuid.New(), auth.RoleScheduling)
	if err := h.Availability(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp availabilityResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Available || resp.Conflict == nil || resp.Conflict.ID != a.ID {
		t.Errorf("expected the slot reported taken, got %s", rec.Body.String())
	}
	if resp.Date != "2024-12-20" || resp.Time != "09:00" || !strings.Contains(resp.Message, "P1") {
		t.Errorf("unexpected response %s", rec.Body.String())
	}
}

func TestHandler_Availability_HidesOtherPatients(t *testing.T) {
	h, f, e := newTestHandler()
	f.book(t, f.patient, "2024-12-20", "09:00")

	target := fmt.Sprintf("/?clinician_id=%s&date=2024-12-20&time=09:00", f.doctor)
	rec := httptest.NewRecorder()
	req := as(httptest.NewRequest(http.MethodGet, target, nil), f.other, auth.RolePatient)
	if err := h.Availability(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp availabilityResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Available || resp.Conflict != nil {
		t.Errorf("another patient's appointment must not be exposed: %s", rec.Body.String())
	}
	if resp.Message != ErrSlotTaken.Error() || strings.Contains(resp.Message, "P1") {
		t.Errorf("message must not name the holder, got %q", resp.Message)
	}
}

func TestHandler_Availability_BadParams(t *testing.T) {
	h, f, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?clinician_id=x", nil), httptest.NewRecorder())
	expectHTTPStatus(t, h.Availability(c), http.StatusBadRequest)

	target := fmt.Sprintf("/?clinician_id=%s&date=tomorrow&time=09:00", f.doctor)
	c = e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder())
	expectHTTPStatus(t, h.Availability(c), http.StatusBadRequest)
}

func TestHandler_List_PatientScope(t *testing.T) {
	h, f, e := newTestHandler()
	f.book(t, f.patient, "2024-12-20", "09:00")
	f.book(t, f.other, "2024-12-20", "10:00")

	rec := httptest.NewRecorder()
	req := as(httptest.NewRequest(http.MethodGet, "/", nil), f.patient, auth.RolePatient)
	if err := h.List(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp struct {
		Data  []Appointment `json:"data"`
		Total int           `json:"total"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Total != 1 || len(resp.Data) != 1 || resp.Data[0].PatientID != f.patient {
		t.Errorf("patients should see only their own rows, got %s", rec.Body.String())
	}
}

func TestHandler_Get_OtherPatientIsNotFound(t *testing.T) {
	h, f, e := newTestHandler()
	a := f.book(t, f.patient, "2024-12-20", "09:00")
	req := as(httptest.NewRequest(http.MethodGet, "/", nil), f.other, auth.RolePatient)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())
	expectHTTPStatus(t, h.Get(c), http.StatusNotFound)
}

func TestHandler_Update_Conflict(t *testing.T) {
	h, f, e := newTestHandler()
	a := f.book(t, f.patient, "2024-12-20", "09:00")
	f.book(t, f.other, "2024-12-20", "10:00")

	req := as(jsonRequest(http.MethodPut, bookingBody(f.patient, f.doctor, "2024-12-20", "10:00")), uuid.New(), auth.RoleScheduling)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())
	expectHTTPStatus(t, h.Update(c), http.StatusConflict)
}

func TestHandler_SetStatus(t *testing.T) {
	h, f, e := newTestHandler()
	a := f.book(t, f.patient, "2024-12-20", "09:00")

	rec := httptest.NewRecorder()
	req := as(jsonRequest(http.MethodPatch, `{"status":"canceled"}`), uuid.New(), auth.RoleScheduling)
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())
	if err := h.SetStatus(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"status":"canceled"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_Delete(t *testing.T) {
	h, f, e := newTestHandler()
	a := f.book(t, f.patient, "2024-12-20", "09:00")

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())
	if err := h.Delete(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp deleteResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.ID != a.ID || resp.LinkedRecordsRemoved != 1 {
		t.Errorf("unexpected response %s", rec.Body.String())
	}
}

func TestHandler_RoleGates(t *testing.T) {
	h, f, e := newTestHandler()
	h.RegisterRoutes(e.Group("/api/v1"))
	a := f.book(t, f.patient, "2024-12-20", "09:00")

	tests := []struct {
		name   string
		method string
		path   string
		role   string
		want   int
	}{
		{"patient cannot book", http.MethodPost, "/api/v1/appointments", auth.RolePatient, http.StatusForbidden},
		{"financial cannot book", http.MethodPost, "/api/v1/appointments", auth.RoleFinancial, http.StatusForbidden},
		{"clinician cannot delete", http.MethodDelete, "/api/v1/appointments/" + a.ID.String(), auth.RoleClinician, http.StatusForbidden},
		{"admin deletes", http.MethodDelete, "/api/v1/appointments/" + a.ID.String(), auth.RoleAdmin, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := as(jsonRequest(tt.method, "{}"), uuid.New(), tt.role)
			req.URL.Path = tt.path
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}
