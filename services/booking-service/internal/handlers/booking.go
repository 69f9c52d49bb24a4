package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/rduplessis/clinicbook/services/booking-service/internal/booking"
	"github.com/rduplessis/clinicbook/services/booking-service/internal/model"
	"github.com/rduplessis/clinicbook/services/booking-service/internal/outcome"
)

// Engine is the reservation engine surface the handlers call.
type Engine interface {
	ListClinics(ctx context.Context) outcome.Outcome[[]model.Clinic]
	GetAvailableSlots(ctx context.Context, clinicID int64, startDate, endDate *time.Time) outcome.Outcome[[]model.SlotAvailability]
	CreateBooking(ctx context.Context, req booking.CreateBookingRequest) outcome.Outcome[model.BookingDetails]
	GetBookingByID(ctx context.Context, bookingID int64) outcome.Outcome[model.BookingDetails]
	DeleteBooking(ctx context.Context, bookingID int64) outcome.Outcome[outcome.Unit]
}

type BookingHandler struct {
	engine Engine
}

func NewBookingHandler(engine Engine) *BookingHandler {
	return &BookingHandler{engine: engine}
}

// Register wires the routes onto the mux.
func (h *BookingHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/public/clinics", h.ListClinics)
	mux.HandleFunc("GET /api/v1/public/clinics/{clinic_id}/availability", h.Availability)
	mux.HandleFunc("POST /api/v1/bookings", h.Create)
	mux.HandleFunc("GET /api/v1/bookings/{id}", h.Get)
	mux.HandleFunc("DELETE /api/v1/bookings/{id}", h.Delete)
}

type clinicItem struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Address     string `json:"address,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
	LogoURL     string `json:"logo_url,omitempty"`
}

type slotItem struct {
	SlotID     int64  `json:"slot_id"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	IsReserved bool   `json:"is_reserved"`
	BookingID  *int64 `json:"booking_id,omitempty"`
}

type createBookingRequest struct {
	ClinicID          int64  `json:"clinic_id"`
	AppointmentSlotID int64  `json:"appointment_slot_id"`
	PatientName       string `json:"patient_name"`
	PatientEmail      string `json:"patient_email"`
	Notes             string `json:"notes"`
}

type bookingResponse struct {
	BookingID    int64  `json:"booking_id"`
	ClinicID     int64  `json:"clinic_id"`
	ClinicName   string `json:"clinic_name"`
	SlotID       int64  `json:"slot_id"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	PatientName  string `json:"patient_name"`
	PatientEmail string `json:"patient_email"`
	Notes        string `json:"notes,omitempty"`
	CreatedAt    string `json:"created_at"`
}

type errorResponse struct {
	Errors []string `json:"errors"`
}

const (
	maxPatientNameLen = 128
	maxEmailLen       = 200
	maxNotesLen       = 2000
)

func (h *BookingHandler) ListClinics(w http.ResponseWriter, r *http.Request) {
	res := h.engine.ListClinics(r.Context())
	if res.Status != outcome.StatusSuccess {
		writeOutcomeError(w, res.Status, res.Errors)
		return
	}

	items := make([]clinicItem, 0, len(res.Data))
	for _, c := range res.Data {
		items = append(items, clinicItem{
			ID:          c.ID,
			Name:        c.Name,
			Address:     c.Address,
			PhoneNumber: c.PhoneNumber,
			LogoURL:     c.LogoURL,
		})
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *BookingHandler) Availability(w http.ResponseWriter, r *http.Request) {
	clinicID, ok := pathID(w, r, "clinic_id")
	if !ok {
		return
	}

	startDate, ok := queryDate(w, r, "start_date")
	if !ok {
		return
	}
	endDate, ok := queryDate(w, r, "end_date")
	if !ok {
		return
	}

	res := h.engine.GetAvailableSlots(r.Context(), clinicID, startDate, endDate)
	if res.Status != outcome.StatusSuccess {
		writeOutcomeError(w, res.Status, res.Errors)
		return
	}

	items := make([]slotItem, 0, len(res.Data))
	for _, s := range res.Data {
		items = append(items, slotItem{
			SlotID:     s.SlotID,
			StartTime:  s.StartTime.UTC().Format(time.RFC3339),
			EndTime:    s.EndTime.UTC().Format(time.RFC3339),
			IsReserved: s.IsReserved,
			BookingID:  s.BookingID,
		})
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Errors: []string{"invalid json body"}})
		return
	}

	req.PatientName = strings.TrimSpace(req.PatientName)
	req.PatientEmail = strings.TrimSpace(req.PatientEmail)
	req.Notes = strings.TrimSpace(req.Notes)

	if errs := validateCreate(req); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Errors: errs})
		return
	}

	res := h.engine.CreateBooking(r.Context(), booking.CreateBookingRequest{
		ClinicID:          req.ClinicID,
		AppointmentSlotID: req.AppointmentSlotID,
		PatientName:       req.PatientName,
		PatientEmail:      req.PatientEmail,
		Notes:             req.Notes,
	})
	switch res.Status {
	case outcome.StatusSuccess:
		writeJSON(w, http.StatusCreated, toBookingResponse(res.Data))
	case outcome.StatusConflict:
		// The conflict payload, when present, tells the caller who holds the slot.
		if res.Data.BookingID != 0 {
			writeJSON(w, http.StatusConflict, struct {
				Errors  []string        `json:"errors"`
				Booking bookingResponse `json:"booking"`
			}{Errors: res.Errors, Booking: toBookingResponse(res.Data)})
			return
		}
		writeJSON(w, http.StatusConflict, errorResponse{Errors: res.Errors})
	default:
		writeOutcomeError(w, res.Status, res.Errors)
	}
}

func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	bookingID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	res := h.engine.GetBookingByID(r.Context(), bookingID)
	if res.Status != outcome.StatusSuccess {
		writeOutcomeError(w, res.Status, res.Errors)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(res.Data))
}

func (h *BookingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	bookingID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	res := h.engine.DeleteBooking(r.Context(), bookingID)
	if res.Status != outcome.StatusSuccess {
		writeOutcomeError(w, res.Status, res.Errors)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func validateCreate(req createBookingRequest) []string {
	var errs []string
	if req.ClinicID <= 0 {
		errs = append(errs, "clinic_id is required")
	}
	if req.AppointmentSlotID <= 0 {
		errs = append(errs, "appointment_slot_id is required")
	}
	if req.PatientName == "" {
		errs = append(errs, "patient_name is required")
	} else if len(req.PatientName) > maxPatientNameLen {
		errs = append(errs, "patient_name must be at most 128 characters")
	}
	if req.PatientEmail == "" || len(req.PatientEmail) > maxEmailLen {
		errs = append(errs, "patient_email is required and must be at most 200 characters")
	} else if _, err := mail.ParseAddress(req.PatientEmail); err != nil {
		errs = append(errs, "patient_email must be a valid email address")
	}
	if len(req.Notes) > maxNotesLen {
		errs = append(errs, "notes must be at most 2000 characters")
	}
	return errs
}

func toBookingResponse(d model.BookingDetails) bookingResponse {
	return bookingResponse{
		BookingID:    d.BookingID,
		ClinicID:     d.ClinicID,
		ClinicName:   d.ClinicName,
		SlotID:       d.SlotID,
		StartTime:    d.StartTime.UTC().Format(time.RFC3339),
		EndTime:      d.EndTime.UTC().Format(time.RFC3339),
		PatientName:  d.PatientName,
		PatientEmail: d.PatientEmail,
		Notes:        d.Notes,
		CreatedAt:    d.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Errors: []string{name + " must be a positive integer"}})
		return 0, false
	}
	return id, true
}

// queryDate parses an optional YYYY-MM-DD query parameter.
func queryDate(w http.ResponseWriter, r *http.Request, name string) (*time.Time, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, true
	}
	t, err := time.ParseInLocation("2006-01-02", raw, time.UTC)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Errors: []string{name + " must be formatted as YYYY-MM-DD"}})
		return nil, false
	}
	return &t, true
}

func writeOutcomeError(w http.ResponseWriter, status outcome.Status, errs []string) {
	if len(errs) == 0 {
		errs = []string{status.String()}
	}
	writeJSON(w, httpStatus(status), errorResponse{Errors: errs})
}

func httpStatus(status outcome.Status) int {
	switch status {
	case outcome.StatusSuccess:
		return http.StatusOK
	case outcome.StatusNotFound:
		return http.StatusNotFound
	case outcome.StatusConflict:
		return http.StatusConflict
	case outcome.StatusUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
