package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rduplessis/clinicbook/services/booking-service/internal/booking"
	"github.com/rduplessis/clinicbook/services/booking-service/internal/model"
	"github.com/rduplessis/clinicbook/services/booking-service/internal/outcome"
)

type stubEngine struct {
	clinics      outcome.Outcome[[]model.Clinic]
	availability outcome.Outcome[[]model.SlotAvailability]
	created      outcome.Outcome[model.BookingDetails]
	fetched      outcome.Outcome[model.BookingDetails]
	deleted      outcome.Outcome[outcome.Unit]

	gotCreate    booking.CreateBookingRequest
	gotClinicID  int64
	gotStartDate *time.Time
	gotEndDate   *time.Time
}

func (s *stubEngine) ListClinics(ctx context.Context) outcome.Outcome[[]model.Clinic] {
	return s.clinics
}

func (s *stubEngine) GetAvailableSlots(ctx context.Context, clinicID int64, startDate, endDate *time.Time) outcome.Outcome[[]model.SlotAvailability] {
	s.gotClinicID = clinicID
	s.gotStartDate = startDate
	s.gotEndDate = endDate
	return s.availability
}

func (s *stubEngine) CreateBooking(ctx context.Context, req booking.CreateBookingRequest) outcome.Outcome[model.BookingDetails] {
	s.gotCreate = req
	return s.created
}

func (s *stubEngine) GetBookingByID(ctx context.Context, bookingID int64) outcome.Outcome[model.BookingDetails] {
	return s.fetched
}

func (s *stubEngine) DeleteBooking(ctx context.Context, bookingID int64) outcome.Outcome[outcome.Unit] {
	return s.deleted
}

func newTestMux(engine Engine) *http.ServeMux {
	mux := http.NewServeMux()
	h := NewBookingHandler(engine)
	h.Register(mux)
	return mux
}

func sampleDetails() model.BookingDetails {
	return model.BookingDetails{
		BookingID:    7,
		ClinicID:     1,
		ClinicName:   "Milnerton Health Clinic",
		SlotID:       12,
		StartTime:    time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC),
		EndTime:      time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC),
		PatientName:  "Thandi Nkosi",
		PatientEmail: "thandi@example.com",
		CreatedAt:    time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC),
	}
}

func TestListClinics(t *testing.T) {
	engine := &stubEngine{clinics: outcome.OK([]model.Clinic{{ID: 1, Name: "Milnerton Health Clinic"}})}
	mux := newTestMux(engine)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/public/clinics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var items []clinicItem
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if len(items) != 1 || items[0].Name != "Milnerton Health Clinic" {
		t.Fatalf("unexpected body: %+v", items)
	}
}

func TestAvailabilityParsesDates(t *testing.T) {
	engine := &stubEngine{availability: outcome.OK([]model.SlotAvailability{})}
	mux := newTestMux(engine)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/v1/public/clinics/3/availability?start_date=2026-09-01&end_date=2026-09-05", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}
	if engine.gotClinicID != 3 {
		t.Fatalf("clinic id = %d, want 3", engine.gotClinicID)
	}
	want := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	if engine.gotStartDate == nil || !engine.gotStartDate.Equal(want) {
		t.Fatalf("start date = %v, want %v", engine.gotStartDate, want)
	}
	if engine.gotEndDate == nil {
		t.Fatal("end date not forwarded")
	}
}

func TestAvailabilityRejectsBadDate(t *testing.T) {
	mux := newTestMux(&stubEngine{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/v1/public/clinics/3/availability?start_date=01-09-2026", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestAvailabilityUnknownClinic(t *testing.T) {
	engine := &stubEngine{availability: outcome.NotFound[[]model.SlotAvailability]("clinic with id 9 was not found")}
	mux := newTestMux(engine)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/public/clinics/9/availability", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if len(resp.Errors) == 0 {
		t.Fatal("expected error messages")
	}
}

func TestCreateBookingSuccess(t *testing.T) {
	engine := &stubEngine{created: outcome.OK(sampleDetails())}
	mux := newTestMux(engine)

	body := `{"clinic_id":1,"appointment_slot_id":12,"patient_name":" Thandi Nkosi ","patient_email":"thandi@example.com","notes":"first visit"}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(body)))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (%s)", rec.Code, rec.Body.String())
	}
	if engine.gotCreate.PatientName != "Thandi Nkosi" {
		t.Fatalf("name not trimmed: %q", engine.gotCreate.PatientName)
	}
	var resp bookingResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if resp.BookingID != 7 || resp.ClinicName != "Milnerton Health Clinic" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestCreateBookingValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing name", `{"clinic_id":1,"appointment_slot_id":2,"patient_email":"a@b.co"}`},
		{"bad email", `{"clinic_id":1,"appointment_slot_id":2,"patient_name":"A","patient_email":"not-an-email"}`},
		{"missing slot", `{"clinic_id":1,"patient_name":"A","patient_email":"a@b.co"}`},
		{"long name", `{"clinic_id":1,"appointment_slot_id":2,"patient_name":"` + strings.Repeat("x", 129) + `","patient_email":"a@b.co"}`},
		{"long notes", `{"clinic_id":1,"appointment_slot_id":2,"patient_name":"A","patient_email":"a@b.co","notes":"` + strings.Repeat("n", 2001) + `"}`},
		{"not json", `{{{`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mux := newTestMux(&stubEngine{created: outcome.OK(sampleDetails())})
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(tc.body)))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestCreateBookingConflictIncludesHolder(t *testing.T) {
	engine := &stubEngine{created: outcome.ConflictWith(sampleDetails(), "appointment slot with id 12 is already booked")}
	mux := newTestMux(engine)

	body := `{"clinic_id":1,"appointment_slot_id":12,"patient_name":"Sipho","patient_email":"sipho@example.com"}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(body)))

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	var resp struct {
		Errors  []string        `json:"errors"`
		Booking bookingResponse `json:"booking"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if resp.Booking.BookingID != 7 {
		t.Fatalf("conflict payload missing holder: %+v", resp)
	}
}

func TestCreateBookingConflictWithoutHolder(t *testing.T) {
	engine := &stubEngine{created: outcome.Conflict[model.BookingDetails]("appointment slot with id 12 is already booked")}
	mux := newTestMux(engine)

	body := `{"clinic_id":1,"appointment_slot_id":12,"patient_name":"Sipho","patient_email":"sipho@example.com"}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(body)))

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if strings.Contains(rec.Body.String(), `"booking"`) {
		t.Fatalf("no holder payload expected: %s", rec.Body.String())
	}
}

func TestGetBooking(t *testing.T) {
	engine := &stubEngine{fetched: outcome.OK(sampleDetails())}
	mux := newTestMux(engine)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/bookings/7", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestGetBookingBadID(t *testing.T) {
	mux := newTestMux(&stubEngine{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/bookings/abc", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestDeleteBooking(t *testing.T) {
	engine := &stubEngine{deleted: outcome.OK(outcome.Unit{})}
	mux := newTestMux(engine)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/bookings/7", nil))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("expected empty body, got %q", rec.Body.String())
	}
}

func TestDeleteBookingNotFound(t *testing.T) {
	engine := &stubEngine{deleted: outcome.NotFound[outcome.Unit]("booking with id 7 was not found")}
	mux := newTestMux(engine)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/bookings/7", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestUnexpectedMapsTo500(t *testing.T) {
	engine := &stubEngine{fetched: outcome.Unexpected[model.BookingDetails]("an unexpected error occurred")}
	mux := newTestMux(engine)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/bookings/7", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}
