package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/rduplessis/clinicbook/libs/db"
)

// Schema is managed in-repo and applied on startup when MIGRATE_ON_START is
// set. Every statement is idempotent. The two unique indexes are load-bearing:
// uq_slots_clinic_start keeps a clinic from publishing duplicate slots, and
// the UNIQUE on bookings.appointment_slot_id is the single source of truth
// for the one-booking-per-slot invariant.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS clinics (
	id           bigserial PRIMARY KEY,
	name         text NOT NULL,
	address      text,
	phone_number text,
	logo_url     text
);

CREATE TABLE IF NOT EXISTS appointment_slots (
	id         bigserial PRIMARY KEY,
	clinic_id  bigint NOT NULL REFERENCES clinics (id) ON DELETE CASCADE,
	start_time timestamptz NOT NULL,
	end_time   timestamptz NOT NULL,
	is_active  boolean NOT NULL DEFAULT true
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_slots_clinic_start
	ON appointment_slots (clinic_id, start_time);

CREATE TABLE IF NOT EXISTS bookings (
	id                  bigserial PRIMARY KEY,
	appointment_slot_id bigint NOT NULL UNIQUE REFERENCES appointment_slots (id) ON DELETE CASCADE,
	patient_name        text NOT NULL,
	patient_email       text NOT NULL,
	notes               text,
	created_at          timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS outbox_events (
	id             bigserial PRIMARY KEY,
	event_id       uuid NOT NULL,
	aggregate_type text NOT NULL,
	aggregate_id   text NOT NULL,
	event_type     text NOT NULL,
	payload        jsonb NOT NULL,
	traceparent    text NOT NULL DEFAULT '',
	tracestate     text NOT NULL DEFAULT '',
	created_at     timestamptz NOT NULL DEFAULT now(),
	published_at   timestamptz
);

CREATE INDEX IF NOT EXISTS idx_outbox_unpublished
	ON outbox_events (id) WHERE published_at IS NULL;
`

func EnsureSchema(ctx context.Context, pool *db.Pool) error {
	_, err := pool.Exec(ctx, schemaDDL)
	return err
}

// SeedDemoData loads two clinics with a week of hourly slots (09:00-17:00
// UTC) starting today. No-op when clinics already exist.
func SeedDemoData(ctx context.Context, pool *db.Pool) error {
	var haveClinics bool
	if err := pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM clinics)`).Scan(&haveClinics); err != nil {
		return err
	}
	if haveClinics {
		return nil
	}

	clinics := []struct {
		name, address, phone string
	}{
		{"Milnerton Health Clinic", "123 Main Street, Cape Town, Western Cape, 7441", "072 101 2002"},
		{"Lakeside Family Practice", "40 Van Wouw, Pretoria, Gauteng, 1007", "082 303 6006"},
	}

	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, c := range clinics {
		var clinicID int64
		err := tx.QueryRow(ctx, `
			INSERT INTO clinics (name, address, phone_number)
			VALUES ($1, $2, $3)
			RETURNING id
		`, c.name, c.address, c.phone).Scan(&clinicID)
		if err != nil {
			return fmt.Errorf("seed clinic %q: %w", c.name, err)
		}

		for dayOffset := 0; dayOffset < 7; dayOffset++ {
			day := today.AddDate(0, 0, dayOffset)
			for hour := 9; hour < 17; hour++ {
				start := day.Add(time.Duration(hour) * time.Hour)
				_, err := tx.Exec(ctx, `
					INSERT INTO appointment_slots (clinic_id, start_time, end_time)
					VALUES ($1, $2, $3)
				`, clinicID, start, start.Add(time.Hour))
				if err != nil {
					return fmt.Errorf("seed slots for clinic %d: %w", clinicID, err)
				}
			}
		}
	}

	return tx.Commit(ctx)
}
