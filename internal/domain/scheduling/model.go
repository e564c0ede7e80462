package scheduling

import (
	"time"

	"github.com/google/uuid"
)

// Appointment statuses. CHECKED_IN and COMPLETED are driven by the visit
// lifecycle; the rest by the front desk.
const (
	StatusRequested = "REQUESTED"
	StatusConfirmed = "CONFIRMED"
	StatusCheckedIn = "CHECKED_IN"
	StatusCompleted = "COMPLETED"
	StatusCancelled = "CANCELLED"
)

// DefaultDurationMinutes applies when a booking omits the duration.
const DefaultDurationMinutes = 30

var validStatuses = map[string]bool{
	StatusRequested: true, StatusConfirmed: true, StatusCheckedIn: true,
	StatusCompleted: true, StatusCancelled: true,
}

// Appointment maps to the appointment table.
type Appointment struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	PatientID       uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID        uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	RoomID          *uuid.UUID `db:"room_id" json:"room_id,omitempty"`
	ScheduledAt     time.Time  `db:"scheduled_at" json:"scheduled_at"`
	DurationMinutes int        `db:"duration_minutes" json:"duration_minutes"`
	Status          string     `db:"status" json:"status"`
	Reason          *string    `db:"reason" json:"reason,omitempty"`
	Notes           *string    `db:"notes" json:"notes,omitempty"`
	CreatedBy       string     `db:"created_by" json:"created_by"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// EndsAt returns the exclusive end of the appointment's time window.
func (a *Appointment) EndsAt() time.Time {
	return a.ScheduledAt.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// Overlaps reports whether the half-open windows [a.start, a.end) and
// [start, end) intersect. Appointments that merely touch do not overlap.
func (a *Appointment) Overlaps(start, end time.Time) bool {
	return a.ScheduledAt.Before(end) && a.EndsAt().After(start)
}
