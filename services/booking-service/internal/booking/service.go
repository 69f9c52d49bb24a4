// Package booking holds the reservation engine: computing availability,
// claiming a slot, looking a booking up and releasing it. Every operation
// reports through the outcome type; the persistence layer's unique index on
// the booking's slot id is the final arbiter of double-booking.
package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rduplessis/clinicbook/services/booking-service/internal/daterange"
	"github.com/rduplessis/clinicbook/services/booking-service/internal/model"
	"github.com/rduplessis/clinicbook/services/booking-service/internal/outbox"
	"github.com/rduplessis/clinicbook/services/booking-service/internal/outcome"
	"github.com/rduplessis/clinicbook/services/booking-service/internal/storage"
)

// Store is the persistence surface the engine needs. The Postgres
// implementation lives in the storage package; tests supply an in-memory one.
// Implementations signal expected conditions with storage.ErrNotFound and
// storage.ErrSlotTaken.
type Store interface {
	ListClinics(ctx context.Context) ([]model.Clinic, error)
	ClinicExists(ctx context.Context, clinicID int64) (bool, error)
	SlotAvailability(ctx context.Context, clinicID int64, w daterange.Window) ([]model.SlotAvailability, error)
	ActiveSlot(ctx context.Context, clinicID, slotID int64) (model.SlotWithClinic, error)
	BookingForSlot(ctx context.Context, slotID int64) (model.BookingDetails, error)
	ClaimSlot(ctx context.Context, b model.Booking, evt func(model.Booking) outbox.Event) (model.Booking, error)
	BookingDetails(ctx context.Context, bookingID int64) (model.BookingDetails, error)
	ReleaseBooking(ctx context.Context, bookingID int64, evt outbox.Event) error
}

type Service struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger, now: time.Now}
}

type CreateBookingRequest struct {
	ClinicID          int64
	AppointmentSlotID int64
	PatientName       string
	PatientEmail      string
	Notes             string
}

const unexpectedMsg = "an unexpected error occurred"

// ListClinics returns the clinic directory fronting slot discovery.
func (s *Service) ListClinics(ctx context.Context) outcome.Outcome[[]model.Clinic] {
	clinics, err := s.store.ListClinics(ctx)
	if err != nil {
		s.logger.Error("list clinics failed", "err", err)
		return outcome.Unexpected[[]model.Clinic](unexpectedMsg)
	}
	return outcome.OK(clinics)
}

// GetAvailableSlots reports every active slot of the clinic inside the date
// window together with its reservation state. The clinic existence check runs
// first so an unknown clinic is NotFound rather than an empty list.
func (s *Service) GetAvailableSlots(ctx context.Context, clinicID int64, startDate, endDate *time.Time) outcome.Outcome[[]model.SlotAvailability] {
	exists, err := s.store.ClinicExists(ctx, clinicID)
	if err != nil {
		s.logger.Error("clinic lookup failed", "clinic_id", clinicID, "err", err)
		return outcome.Unexpected[[]model.SlotAvailability](unexpectedMsg)
	}
	if !exists {
		return outcome.NotFound[[]model.SlotAvailability](fmt.Sprintf("clinic with id %d was not found", clinicID))
	}

	window := daterange.Resolve(startDate, endDate, s.now())
	slots, err := s.store.SlotAvailability(ctx, clinicID, window)
	if err != nil {
		s.logger.Error("slot availability query failed", "clinic_id", clinicID, "err", err)
		return outcome.Unexpected[[]model.SlotAvailability](unexpectedMsg)
	}
	return outcome.OK(slots)
}

// CreateBooking claims a slot. The slot lookup and existing-booking check are
// an optimistic fast path for friendly errors; the insert behind ClaimSlot is
// the actual guarantee, so a constraint violation there still comes back as a
// conflict rather than an unexpected failure.
func (s *Service) CreateBooking(ctx context.Context, req CreateBookingRequest) outcome.Outcome[model.BookingDetails] {
	sc, err := s.store.ActiveSlot(ctx, req.ClinicID, req.AppointmentSlotID)
	if err != nil {
		if storage.IsNotFound(err) {
			return outcome.NotFound[model.BookingDetails](
				fmt.Sprintf("appointment slot with id %d was not available", req.AppointmentSlotID))
		}
		s.logger.Error("slot lookup failed", "slot_id", req.AppointmentSlotID, "err", err)
		return outcome.Unexpected[model.BookingDetails](unexpectedMsg)
	}

	existing, err := s.store.BookingForSlot(ctx, req.AppointmentSlotID)
	if err == nil {
		return outcome.ConflictWith(existing,
			fmt.Sprintf("appointment slot with id %d is already booked", req.AppointmentSlotID))
	}
	if !storage.IsNotFound(err) {
		s.logger.Error("existing booking check failed", "slot_id", req.AppointmentSlotID, "err", err)
		return outcome.Unexpected[model.BookingDetails](unexpectedMsg)
	}

	booked, err := s.store.ClaimSlot(ctx, model.Booking{
		AppointmentSlotID: req.AppointmentSlotID,
		PatientName:       req.PatientName,
		PatientEmail:      req.PatientEmail,
		Notes:             req.Notes,
		CreatedAt:         s.now().UTC(),
	}, func(b model.Booking) outbox.Event {
		return createdEvent(b, sc)
	})
	if err != nil {
		if errors.Is(err, storage.ErrSlotTaken) {
			// Lost the race after the pre-check; the competing row may not be
			// visible yet, so no payload here.
			return outcome.Conflict[model.BookingDetails](
				fmt.Sprintf("appointment slot with id %d is already booked", req.AppointmentSlotID))
		}
		s.logger.Error("booking insert failed", "slot_id", req.AppointmentSlotID, "err", err)
		return outcome.Unexpected[model.BookingDetails](unexpectedMsg)
	}

	return outcome.OK(model.BookingDetails{
		BookingID:    booked.ID,
		ClinicID:     sc.Slot.ClinicID,
		ClinicName:   sc.ClinicName,
		SlotID:       sc.Slot.ID,
		StartTime:    sc.Slot.StartTime,
		EndTime:      sc.Slot.EndTime,
		PatientName:  booked.PatientName,
		PatientEmail: booked.PatientEmail,
		Notes:        booked.Notes,
		CreatedAt:    booked.CreatedAt,
	})
}

// GetBookingByID is read-only. A booking whose slot was deactivated after the
// claim is still returned.
func (s *Service) GetBookingByID(ctx context.Context, bookingID int64) outcome.Outcome[model.BookingDetails] {
	details, err := s.store.BookingDetails(ctx, bookingID)
	if err != nil {
		if storage.IsNotFound(err) {
			return outcome.NotFound[model.BookingDetails](
				fmt.Sprintf("booking with id %d was not found", bookingID))
		}
		s.logger.Error("booking lookup failed", "booking_id", bookingID, "err", err)
		return outcome.Unexpected[model.BookingDetails](unexpectedMsg)
	}
	return outcome.OK(details)
}

// DeleteBooking releases the slot. The delete is a hard delete; the release
// event in the outbox is the only durable trace.
func (s *Service) DeleteBooking(ctx context.Context, bookingID int64) outcome.Outcome[outcome.Unit] {
	details, err := s.store.BookingDetails(ctx, bookingID)
	if err != nil {
		if storage.IsNotFound(err) {
			return outcome.NotFound[outcome.Unit](
				fmt.Sprintf("booking with id %d was not found", bookingID))
		}
		s.logger.Error("booking lookup failed", "booking_id", bookingID, "err", err)
		return outcome.Unexpected[outcome.Unit](unexpectedMsg)
	}

	err = s.store.ReleaseBooking(ctx, bookingID, releasedEvent(details, s.now().UTC()))
	if err != nil {
		if storage.IsNotFound(err) {
			// Deleted concurrently between the fetch and the delete.
			return outcome.NotFound[outcome.Unit](
				fmt.Sprintf("booking with id %d was not found", bookingID))
		}
		s.logger.Error("booking delete failed", "booking_id", bookingID, "err", err)
		return outcome.Unexpected[outcome.Unit](unexpectedMsg)
	}
	return outcome.OK(outcome.Unit{})
}

func createdEvent(b model.Booking, sc model.SlotWithClinic) outbox.Event {
	payload, _ := json.Marshal(map[string]any{
		"booking_id":    b.ID,
		"clinic_id":     sc.Slot.ClinicID,
		"slot_id":       sc.Slot.ID,
		"start_time":    sc.Slot.StartTime.UTC().Format(time.RFC3339),
		"end_time":      sc.Slot.EndTime.UTC().Format(time.RFC3339),
		"patient_email": b.PatientEmail,
		"created_at":    b.CreatedAt.UTC().Format(time.RFC3339),
	})
	return outbox.Event{
		AggregateType: outbox.AggregateBooking,
		AggregateID:   fmt.Sprintf("%d", b.ID),
		EventType:     outbox.EventBookingCreated,
		Payload:       payload,
	}
}

func releasedEvent(d model.BookingDetails, releasedAt time.Time) outbox.Event {
	payload, _ := json.Marshal(map[string]any{
		"booking_id":    d.BookingID,
		"clinic_id":     d.ClinicID,
		"slot_id":       d.SlotID,
		"start_time":    d.StartTime.UTC().Format(time.RFC3339),
		"end_time":      d.EndTime.UTC().Format(time.RFC3339),
		"patient_email": d.PatientEmail,
		"released_at":   releasedAt.Format(time.RFC3339),
	})
	return outbox.Event{
		AggregateType: outbox.AggregateBooking,
		AggregateID:   fmt.Sprintf("%d", d.BookingID),
		EventType:     outbox.EventBookingReleased,
		Payload:       payload,
	}
}
