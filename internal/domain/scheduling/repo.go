package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	List(ctx context.Context, limit, offset int) ([]*Appointment, int, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	ListByStatus(ctx context.Context, status string, limit, offset int) ([]*Appointment, int, error)
	// FindConflicts returns non-cancelled appointments for the doctor, or in
	// the room when roomID is set, whose window overlaps [start, end).
	// ignoreID excludes the appointment being rescheduled.
	FindConflicts(ctx context.Context, doctorID uuid.UUID, roomID *uuid.UUID, start, end time.Time, ignoreID uuid.UUID) ([]*Appointment, error)
}
