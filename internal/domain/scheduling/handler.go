package scheduling

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ehr/hospital/pkg/pagination"
)

type Handler struct {
	mgr *Manager
}

func NewHandler(mgr *Manager) *Handler {
	return &Handler{mgr: mgr}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/patients", h.RegisterPatient)
	api.GET("/patients", h.ListPatients)
	api.GET("/patients/:id", h.GetPatient)

	api.GET("/doctors", h.ListDoctors)
	api.POST("/doctors", h.RegisterDoctor)
	api.GET("/doctors/:id/schedule", h.DoctorDailySchedule)

	api.POST("/appointments", h.BookAppointment)
	api.GET("/appointments", h.ListAppointments)
	api.GET("/appointments/:id", h.GetAppointment)
	api.POST("/appointments/:id/cancel", h.CancelAppointment)
	api.POST("/appointments/:id/reschedule", h.RescheduleAppointment)
}

type registerPatientRequest struct {
	Name  string `json:"name"`
	Age   int    `json:"age"`
	Phone string `json:"phone"`
}

type registerDoctorRequest struct {
	Name           string `json:"name"`
	Specialization string `json:"specialization"`
}

type bookRequest struct {
	PatientID int    `json:"patient_id"`
	DoctorID  int    `json:"doctor_id"`
	Date      string `json:"date"`
	Time      string `json:"time"`
}

type rescheduleRequest struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

// DailySchedule is the response body of the doctor daily report.
type DailySchedule struct {
	DoctorID     int           `json:"doctor_id"`
	Date         string        `json:"date"`
	Appointments []Appointment `json:"appointments"`
}

// mapError converts Manager errors into HTTP errors.
func mapError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidField):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrSlotUnavailable):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidAppointment),
		errors.Is(err, ErrAppointmentNotFound),
		errors.Is(err, ErrPatientNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func intParam(c echo.Context, name string) (int, error) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// -- Patient Handlers --

func (h *Handler) RegisterPatient(c echo.Context) error {
	var req registerPatientRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}
	p, err := h.mgr.RegisterPatient(c.Request().Context(), req.Name, req.Age, req.Phone)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	all := h.mgr.ListPatients(c.Request().Context())
	return c.JSON(http.StatusOK, pagination.NewResponse(pagination.Page(all, pg), len(all), pg.Limit, pg.Offset))
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := intParam(c, "id")
	if err != nil {
		return err
	}
	p, err := h.mgr.GetPatient(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, p)
}

// -- Doctor Handlers --

func (h *Handler) ListDoctors(c echo.Context) error {
	pg := pagination.FromContext(c)
	all := h.mgr.ListDoctors(c.Request().Context())
	return c.JSON(http.StatusOK, pagination.NewResponse(pagination.Page(all, pg), len(all), pg.Limit, pg.Offset))
}

func (h *Handler) RegisterDoctor(c echo.Context) error {
	var req registerDoctorRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}
	d, err := h.mgr.RegisterDoctor(c.Request().Context(), req.Name, req.Specialization)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) DoctorDailySchedule(c echo.Context) error {
	id, err := intParam(c, "id")
	if err != nil {
		return err
	}
	date := c.QueryParam("date")
	if date == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "date query parameter is required")
	}
	appts := h.mgr.DoctorDailySchedule(c.Request().Context(), id, date)
	return c.JSON(http.StatusOK, DailySchedule{DoctorID: id, Date: date, Appointments: appts})
}

// -- Appointment Handlers --

func (h *Handler) BookAppointment(c echo.Context) error {
	var req bookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Date == "" || req.Time == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "date and time are required")
	}
	a, err := h.mgr.BookAppointment(c.Request().Context(), req.PatientID, req.DoctorID, req.Date, req.Time)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) ListAppointments(c echo.Context) error {
	patientID := 0
	if v := c.QueryParam("patient_id"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		patientID = id
	}
	pg := pagination.FromContext(c)
	all := h.mgr.ListAppointments(c.Request().Context(), patientID)
	return c.JSON(http.StatusOK, pagination.NewResponse(pagination.Page(all, pg), len(all), pg.Limit, pg.Offset))
}

func (h *Handler) GetAppointment(c echo.Context) error {
	id, err := intParam(c, "id")
	if err != nil {
		return err
	}
	a, err := h.mgr.GetAppointment(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) CancelAppointment(c echo.Context) error {
	id, err := intParam(c, "id")
	if err != nil {
		return err
	}
	a, err := h.mgr.CancelAppointment(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) RescheduleAppointment(c echo.Context) error {
	id, err := intParam(c, "id")
	if err != nil {
		return err
	}
	var req rescheduleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Date == "" || req.Time == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "date and time are required")
	}
	a, err := h.mgr.RescheduleAppointment(c.Request().Context(), id, req.Date, req.Time)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, a)
}
