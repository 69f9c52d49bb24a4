package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rduplessis/clinicbook/libs/db"
	"github.com/rduplessis/clinicbook/services/booking-service/internal/daterange"
	"github.com/rduplessis/clinicbook/services/booking-service/internal/model"
	"github.com/rduplessis/clinicbook/services/booking-service/internal/outbox"
)

// Sentinel errors the engine branches on. Anything else coming out of this
// package is infrastructure failure.
var (
	ErrNotFound  = errors.New("not found")
	ErrSlotTaken = errors.New("appointment slot already booked")
)

type Repository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewRepository(pool *db.Pool, outboxRepo *outbox.Repository) *Repository {
	return &Repository{pool: pool, outbox: outboxRepo}
}

func (r *Repository) ListClinics(ctx context.Context) ([]model.Clinic, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, COALESCE(address, ''), COALESCE(phone_number, ''), COALESCE(logo_url, '')
		FROM clinics
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clinics []model.Clinic
	for rows.Next() {
		var c model.Clinic
		if err := rows.Scan(&c.ID, &c.Name, &c.Address, &c.PhoneNumber, &c.LogoURL); err != nil {
			return nil, err
		}
		clinics = append(clinics, c)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return clinics, nil
}

func (r *Repository) ClinicExists(ctx context.Context, clinicID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM clinics WHERE id = $1)
	`, clinicID).Scan(&exists)
	return exists, err
}

// SlotAvailability returns every active slot of the clinic starting inside
// the window, with its current reservation state, ordered by start time.
// Inactive slots are excluded even when booked.
func (r *Repository) SlotAvailability(ctx context.Context, clinicID int64, w daterange.Window) ([]model.SlotAvailability, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT s.id, s.start_time, s.end_time, b.id
		FROM appointment_slots s
		LEFT JOIN bookings b ON b.appointment_slot_id = s.id
		WHERE s.clinic_id = $1
			AND s.is_active
			AND s.start_time >= $2
			AND s.start_time < $3
		ORDER BY s.start_time ASC
	`, clinicID, w.From, w.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []model.SlotAvailability
	for rows.Next() {
		var s model.SlotAvailability
		var bookingID *int64
		if err := rows.Scan(&s.SlotID, &s.StartTime, &s.EndTime, &bookingID); err != nil {
			return nil, err
		}
		s.BookingID = bookingID
		s.IsReserved = bookingID != nil
		slots = append(slots, s)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return slots, nil
}

// ActiveSlot finds the slot scoped to the clinic; retired slots look absent.
func (r *Repository) ActiveSlot(ctx context.Context, clinicID, slotID int64) (model.SlotWithClinic, error) {
	var sc model.SlotWithClinic
	err := r.pool.QueryRow(ctx, `
		SELECT s.id, s.clinic_id, s.start_time, s.end_time, s.is_active, c.name
		FROM appointment_slots s
		JOIN clinics c ON c.id = s.clinic_id
		WHERE s.id = $1 AND s.clinic_id = $2 AND s.is_active
	`, slotID, clinicID).Scan(
		&sc.Slot.ID,
		&sc.Slot.ClinicID,
		&sc.Slot.StartTime,
		&sc.Slot.EndTime,
		&sc.Slot.IsActive,
		&sc.ClinicName,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.SlotWithClinic{}, ErrNotFound
	}
	if err != nil {
		return model.SlotWithClinic{}, err
	}
	return sc, nil
}

// BookingForSlot returns the booking currently holding the slot, if any.
func (r *Repository) BookingForSlot(ctx context.Context, slotID int64) (model.BookingDetails, error) {
	return r.queryBookingDetails(ctx, `WHERE b.appointment_slot_id = $1`, slotID)
}

// ClaimSlot inserts the booking and its outbox event in one transaction. The
// unique index on bookings.appointment_slot_id is the authority on slot
// uniqueness: a violation means another request committed first, reported as
// ErrSlotTaken. evt receives the persisted booking so the event payload can
// carry the generated id.
func (r *Repository) ClaimSlot(ctx context.Context, b model.Booking, evt func(model.Booking) outbox.Event) (model.Booking, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Booking{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO bookings (appointment_slot_id, patient_name, patient_email, notes, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5)
		RETURNING id, created_at
	`, b.AppointmentSlotID, b.PatientName, b.PatientEmail, b.Notes, b.CreatedAt).Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Booking{}, ErrSlotTaken
		}
		return model.Booking{}, err
	}

	if evt != nil {
		if err := r.outbox.Insert(ctx, tx, evt(b)); err != nil {
			return model.Booking{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Booking{}, err
	}
	return b, nil
}

func (r *Repository) BookingDetails(ctx context.Context, bookingID int64) (model.BookingDetails, error) {
	return r.queryBookingDetails(ctx, `WHERE b.id = $1`, bookingID)
}

// ReleaseBooking deletes the booking and records the release event in one
// transaction. ErrNotFound when the booking is already gone; nothing is
// removed or published in that case.
func (r *Repository) ReleaseBooking(ctx context.Context, bookingID int64, evt outbox.Event) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `DELETE FROM bookings WHERE id = $1`, bookingID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if err := r.outbox.Insert(ctx, tx, evt); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// queryBookingDetails joins booking -> slot -> clinic. The join does not
// filter on slot activity: a booking whose slot was later retired stays
// visible here even though availability queries hide the slot.
func (r *Repository) queryBookingDetails(ctx context.Context, where string, arg any) (model.BookingDetails, error) {
	var d model.BookingDetails
	err := r.pool.QueryRow(ctx, `
		SELECT b.id, c.id, c.name, s.id, s.start_time, s.end_time,
			b.patient_name, b.patient_email, COALESCE(b.notes, ''), b.created_at
		FROM bookings b
		JOIN appointment_slots s ON s.id = b.appointment_slot_id
		JOIN clinics c ON c.id = s.clinic_id
		`+where, arg).Scan(
		&d.BookingID,
		&d.ClinicID,
		&d.ClinicName,
		&d.SlotID,
		&d.StartTime,
		&d.EndTime,
		&d.PatientName,
		&d.PatientEmail,
		&d.Notes,
		&d.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.BookingDetails{}, ErrNotFound
	}
	if err != nil {
		return model.BookingDetails{}, err
	}
	return d, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
