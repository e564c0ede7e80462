package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicsys/clinic/internal/platform/apperr"
	"github.com/clinicsys/clinic/internal/platform/auth"
	"github.com/clinicsys/clinic/internal/platform/db"
)

type Service struct {
	pool         *pgxpool.Pool
	appointments AppointmentRepository
}

func NewService(pool *pgxpool.Pool, appts AppointmentRepository) *Service {
	return &Service{pool: pool, appointments: appts}
}

// CreateAppointmentInput carries a booking request.
type CreateAppointmentInput struct {
	PatientID       uuid.UUID  `json:"patient_id"`
	DoctorID        uuid.UUID  `json:"doctor_id"`
	RoomID          *uuid.UUID `json:"room_id,omitempty"`
	ScheduledAt     time.Time  `json:"scheduled_at"`
	DurationMinutes int        `json:"duration_minutes"`
	Reason          *string    `json:"reason,omitempty"`
	Notes           *string    `json:"notes,omitempty"`
}

// Schedule books an appointment. The conflict check and the insert share one
// transaction so concurrent bookings serialize against each other.
func (s *Service) Schedule(ctx context.Context, actor auth.Actor, in CreateAppointmentInput) (*Appointment, error) {
	if in.PatientID == uuid.Nil {
		return nil, apperr.Validation("patient_id is required")
	}
	if in.DoctorID == uuid.Nil {
		return nil, apperr.Validation("doctor_id is required")
	}
	if in.ScheduledAt.IsZero() {
		return nil, apperr.Validation("scheduled_at is required")
	}
	if in.DurationMinutes <= 0 {
		in.DurationMinutes = DefaultDurationMinutes
	}

	appt := &Appointment{
		PatientID:       in.PatientID,
		DoctorID:        in.DoctorID,
		RoomID:          in.RoomID,
		ScheduledAt:     in.ScheduledAt,
		DurationMinutes: in.DurationMinutes,
		Status:          StatusConfirmed,
		Reason:          in.Reason,
		Notes:           in.Notes,
		CreatedBy:       actor.ID,
	}

	err := db.WithTx(ctx, s.pool, func(ctx context.Context) error {
		if err := s.ensureNoConflict(ctx, appt, uuid.Nil); err != nil {
			return err
		}
		return s.appointments.Create(ctx, appt)
	})
	if err != nil {
		return nil, err
	}
	return appt, nil
}

// Reschedule moves an existing appointment to a new time, room or doctor,
// running the same conflict check but ignoring the appointment itself.
func (s *Service) Reschedule(ctx context.Context, actor auth.Actor, id uuid.UUID, in CreateAppointmentInput) (*Appointment, error) {
	var appt *Appointment
	err := db.WithTx(ctx, s.pool, func(ctx context.Context) error {
		var err error
		appt, err = s.appointments.GetByID(ctx, id)
		if err != nil {
			return apperr.NotFound("appointment %s not found", id)
		}
		if appt.Status == StatusCancelled || appt.Status == StatusCompleted {
			return apperr.Invariant("appointment %s is %s and cannot be rescheduled", id, appt.Status)
		}

		if in.PatientID != uuid.Nil {
			appt.PatientID = in.PatientID
		}
		if in.DoctorID != uuid.Nil {
			appt.DoctorID = in.DoctorID
		}
		if in.RoomID != nil {
			appt.RoomID = in.RoomID
		}
		if !in.ScheduledAt.IsZero() {
			appt.ScheduledAt = in.ScheduledAt
		}
		if in.DurationMinutes > 0 {
			appt.DurationMinutes = in.DurationMinutes
		}
		if in.Reason != nil {
			appt.Reason = in.Reason
		}
		if in.Notes != nil {
			appt.Notes = in.Notes
		}

		if err := s.ensureNoConflict(ctx, appt, appt.ID); err != nil {
			return err
		}
		return s.appointments.Update(ctx, appt)
	})
	if err != nil {
		return nil, err
	}
	return appt, nil
}

func (s *Service) ensureNoConflict(ctx context.Context, appt *Appointment, ignoreID uuid.UUID) error {
	conflicts, err := s.appointments.FindConflicts(ctx, appt.DoctorID, appt.RoomID,
		appt.ScheduledAt, appt.EndsAt(), ignoreID)
	if err != nil {
		return err
	}
	for _, c := range conflicts {
		if c.DoctorID == appt.DoctorID {
			return apperr.Conflict("doctor already has an appointment from %s to %s",
				c.ScheduledAt.Format(time.RFC3339), c.EndsAt().Format(time.RFC3339))
		}
		if appt.RoomID != nil && c.RoomID != nil && *c.RoomID == *appt.RoomID {
			return apperr.Conflict("room is occupied from %s to %s",
				c.ScheduledAt.Format(time.RFC3339), c.EndsAt().Format(time.RFC3339))
		}
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.NotFound("appointment %s not found", id)
	}
	return appt, nil
}

// UpdateStatus sets the appointment status. CHECKED_IN and COMPLETED normally
// arrive through the visit lifecycle; the front desk uses this for
// confirmations and cancellations.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string, note *string) (*Appointment, error) {
	if !validStatuses[status] {
		return nil, apperr.Validation("invalid appointment status: %s", status)
	}
	var appt *Appointment
	err := db.WithTx(ctx, s.pool, func(ctx context.Context) error {
		var err error
		appt, err = s.appointments.GetByID(ctx, id)
		if err != nil {
			return apperr.NotFound("appointment %s not found", id)
		}
		// A cancelled appointment stopped blocking its slot, so bringing it
		// back has to re-check the slot like a fresh booking would.
		if appt.Status == StatusCancelled && status != StatusCancelled {
			if err := s.ensureNoConflict(ctx, appt, appt.ID); err != nil {
				return err
			}
		}
		appt.Status = status
		if note != nil {
			appt.Notes = note
		}
		return s.appointments.Update(ctx, appt)
	})
	if err != nil {
		return nil, err
	}
	return appt, nil
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Appointment, int, error) {
	return s.appointments.List(ctx, limit, offset)
}

func (s *Service) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.appointments.ListByDoctor(ctx, doctorID, limit, offset)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.appointments.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) ListByStatus(ctx context.Context, status string, limit, offset int) ([]*Appointment, int, error) {
	if !validStatuses[status] {
		return nil, 0, apperr.Validation("invalid appointment status: %s", status)
	}
	return s.appointments.ListByStatus(ctx, status, limit, offset)
}
