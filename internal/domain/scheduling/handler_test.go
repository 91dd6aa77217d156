package scheduling

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func newTestHandler(t *testing.T) (*Handler, *echo.Echo) {
	t.Helper()
	h := NewHandler(newTestManager(t, newMockStore()))
	e := echo.New()
	return h, e
}

func jsonRequest(method, body string) *http.Request {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func expectHTTPError(t *testing.T, err error, code int) {
	t.Helper()
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected *echo.HTTPError, got %v", err)
	}
	if he.Code != code {
		t.Errorf("expected status %d, got %d (%v)", code, he.Code, he.Message)
	}
}

func TestHandler_RegisterPatient(t *testing.T) {
	h, e := newTestHandler(t)
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, `{"name":"Asha","age":30,"phone":"555-1111"}`), rec)

	if err := h.RegisterPatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var p Patient
	json.Unmarshal(rec.Body.Bytes(), &p)
	if p.ID != 1 || p.Name != "Asha" {
		t.Errorf("unexpected patient %+v", p)
	}
}

func TestHandler_RegisterPatient_MissingName(t *testing.T) {
	h, e := newTestHandler(t)
	c := e.NewContext(jsonRequest(http.MethodPost, `{"age":30}`), httptest.NewRecorder())
	expectHTTPError(t, h.RegisterPatient(c), http.StatusBadRequest)
}

func TestHandler_GetPatient_NotFound(t *testing.T) {
	h, e := newTestHandler(t)
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("12")
	expectHTTPError(t, h.GetPatient(c), http.StatusNotFound)
}

func TestHandler_ListDoctors(t *testing.T) {
	h, e := newTestHandler(t)
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?limit=2", nil), rec)

	if err := h.ListDoctors(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp struct {
		Data    []Doctor `json:"data"`
		Total   int      `json:"total"`
		HasMore bool     `json:"has_more"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 3 || len(resp.Data) != 2 || !resp.HasMore {
		t.Errorf("unexpected page: %+v", resp)
	}
	if resp.Data[0].Name != "Dr. Smith" {
		t.Errorf("expected Dr. Smith first, got %s", resp.Data[0].Name)
	}
}

func TestHandler_BookAppointment_Conflict(t *testing.T) {
	h, e := newTestHandler(t)
	body := `{"patient_id":1,"doctor_id":1,"date":"2024-05-01","time":"10:00"}`

	rec := httptest.NewRecorder()
	if err := h.BookAppointment(e.NewContext(jsonRequest(http.MethodPost, body), rec)); err != nil {
		t.Fatalf("first booking failed: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	err := h.BookAppointment(e.NewContext(jsonRequest(http.MethodPost, body), httptest.NewRecorder()))
	expectHTTPError(t, err, http.StatusConflict)
}

func TestHandler_BookAppointment_MissingTime(t *testing.T) {
	h, e := newTestHandler(t)
	c := e.NewContext(jsonRequest(http.MethodPost, `{"patient_id":1,"doctor_id":1,"date":"2024-05-01"}`), httptest.NewRecorder())
	expectHTTPError(t, h.BookAppointment(c), http.StatusBadRequest)
}

func TestHandler_RejectsSeparatorsInText(t *testing.T) {
	h, e := newTestHandler(t)

	c := e.NewContext(jsonRequest(http.MethodPost, `{"name":"Asha, Jr","age":30,"phone":"555-1111"}`), httptest.NewRecorder())
	expectHTTPError(t, h.RegisterPatient(c), http.StatusBadRequest)

	c = e.NewContext(jsonRequest(http.MethodPost, `{"name":"Dr. Lee","specialization":"ENT\nX"}`), httptest.NewRecorder())
	expectHTTPError(t, h.RegisterDoctor(c), http.StatusBadRequest)

	c = e.NewContext(jsonRequest(http.MethodPost, `{"patient_id":1,"doctor_id":1,"date":"2024-05-01","time":"10:00\n77,9,1,2024-05-01,10:00,BOOKED"}`), httptest.NewRecorder())
	expectHTTPError(t, h.BookAppointment(c), http.StatusBadRequest)

	if n := len(h.mgr.ListAppointments(c.Request().Context(), 0)); n != 0 {
		t.Errorf("expected no appointments, got %d", n)
	}
}

func TestHandler_CancelAppointment(t *testing.T) {
	h, e := newTestHandler(t)
	a := mustBook(t, h.mgr, 1, 1, "2024-05-01", "10:00")

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues("1")
	if err := h.CancelAppointment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got Appointment
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got.ID != a.ID || got.Status != StatusCancelled {
		t.Errorf("unexpected appointment %+v", got)
	}

	c = e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("1")
	expectHTTPError(t, h.CancelAppointment(c), http.StatusNotFound)
}

func TestHandler_CancelAppointment_InvalidID(t *testing.T) {
	h, e := newTestHandler(t)
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("abc")
	expectHTTPError(t, h.CancelAppointment(c), http.StatusBadRequest)
}

func TestHandler_RescheduleAppointment(t *testing.T) {
	h, e := newTestHandler(t)
	mustBook(t, h.mgr, 1, 1, "2024-05-01", "10:00")
	mustBook(t, h.mgr, 2, 1, "2024-05-01", "11:00")

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, `{"date":"2024-05-02","time":"09:00"}`), rec)
	c.SetParamNames("id")
	c.SetParamValues("1")
	if err := h.RescheduleAppointment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	c = e.NewContext(jsonRequest(http.MethodPost, `{"date":"2024-05-01","time":"11:00"}`), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("1")
	expectHTTPError(t, h.RescheduleAppointment(c), http.StatusConflict)
}

func TestHandler_DoctorDailySchedule(t *testing.T) {
	h, e := newTestHandler(t)
	mustBook(t, h.mgr, 1, 1, "2024-05-02", "09:00")
	mustBook(t, h.mgr, 2, 1, "2024-05-03", "09:00")

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?date=2024-05-02", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues("1")
	if err := h.DoctorDailySchedule(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got DailySchedule
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.DoctorID != 1 || len(got.Appointments) != 1 || got.Appointments[0].Time != "09:00" {
		t.Errorf("unexpected schedule %+v", got)
	}
}

func TestHandler_DoctorDailySchedule_MissingDate(t *testing.T) {
	h, e := newTestHandler(t)
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("1")
	expectHTTPError(t, h.DoctorDailySchedule(c), http.StatusBadRequest)
}

func TestHandler_ListAppointments_ByPatient(t *testing.T) {
	h, e := newTestHandler(t)
	mustBook(t, h.mgr, 1, 1, "2024-05-01", "10:00")
	mustBook(t, h.mgr, 2, 1, "2024-05-01", "11:00")

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?patient_id=2", nil), rec)
	if err := h.ListAppointments(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp struct {
		Data  []Appointment `json:"data"`
		Total int           `json:"total"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Total != 1 || resp.Data[0].PatientID != 2 {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestHandler_RegisterRoutes(t *testing.T) {
	h, e := newTestHandler(t)
	h.RegisterRoutes(e.Group("/api/v1"))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/doctors/2/schedule?date=2024-05-01", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, jsonRequestTo(http.MethodPost, "/api/v1/appointments/9/cancel", ""))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func jsonRequestTo(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}
