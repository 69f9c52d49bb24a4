package model

import "time"

// Clinic is owned by clinic administration; the booking service only reads it.
type Clinic struct {
	ID          int64
	Name        string
	Address     string
	PhoneNumber string
	LogoURL     string
}

// AppointmentSlot is a fixed, clinic-scoped time window [StartTime, EndTime).
// Administration retires slots by clearing IsActive rather than deleting them.
type AppointmentSlot struct {
	ID        int64
	ClinicID  int64
	StartTime time.Time
	EndTime   time.Time
	IsActive  bool
}

// Booking is a patient's claim on exactly one slot. It is created by the
// claim operation, removed by the release operation, and never edited.
type Booking struct {
	ID                int64
	AppointmentSlotID int64
	PatientName       string
	PatientEmail      string
	Notes             string
	CreatedAt         time.Time
}

// SlotAvailability is one row of an availability query: a slot plus its
// current reservation state.
type SlotAvailability struct {
	SlotID     int64
	StartTime  time.Time
	EndTime    time.Time
	IsReserved bool
	BookingID  *int64
}

// SlotWithClinic is an active slot joined with the clinic it belongs to.
type SlotWithClinic struct {
	Slot       AppointmentSlot
	ClinicName string
}

// BookingDetails is the caller-facing view of a booking. Raw entities never
// cross the engine boundary.
type BookingDetails struct {
	BookingID    int64
	ClinicID     int64
	ClinicName   string
	SlotID       int64
	StartTime    time.Time
	EndTime      time.Time
	PatientName  string
	PatientEmail string
	Notes        string
	CreatedAt    time.Time
}
