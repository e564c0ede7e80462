package visit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/clinicsys/clinic/internal/domain/catalog"
	"github.com/clinicsys/clinic/internal/domain/scheduling"
)

type VisitRepository interface {
	Create(ctx context.Context, v *Visit) error
	GetByID(ctx context.Context, id uuid.UUID) (*Visit, error)
	GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Visit, error)
	Update(ctx context.Context, v *Visit) error
	List(ctx context.Context, limit, offset int) ([]*Visit, int, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Visit, int, error)
	ListByStatus(ctx context.Context, status string, limit, offset int) ([]*Visit, int, error)
}

type ServiceOrderRepository interface {
	Create(ctx context.Context, o *ServiceOrder) error
	GetByID(ctx context.Context, id uuid.UUID) (*ServiceOrder, error)
	Update(ctx context.Context, o *ServiceOrder) error
	ListByVisit(ctx context.Context, visitID uuid.UUID) ([]*ServiceOrder, error)
}

type IndicatorResultRepository interface {
	// ReplaceForOrder deletes the order's existing results and inserts the
	// given set in one pass.
	ReplaceForOrder(ctx context.Context, orderID uuid.UUID, results []*IndicatorResult) error
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*IndicatorResult, error)
}

// AppointmentStore is the slice of the scheduling repository the visit
// lifecycle drives: reading the source appointment and flipping its status.
type AppointmentStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
}

// Catalog resolves services, their indicator mappings, and room staffing.
// Satisfied by catalog.Service.
type Catalog interface {
	GetMedicalService(ctx context.Context, id uuid.UUID) (*catalog.MedicalService, error)
	ListServiceIndicators(ctx context.Context, serviceID uuid.UUID) ([]*catalog.ServiceIndicatorDetail, error)
	AssignedDoctorForRoom(ctx context.Context, roomID uuid.UUID, at time.Time) (uuid.UUID, error)
}
