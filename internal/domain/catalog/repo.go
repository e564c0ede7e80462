package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ServiceRepository interface {
	Create(ctx context.Context, s *MedicalService) error
	GetByID(ctx context.Context, id uuid.UUID) (*MedicalService, error)
	GetByCode(ctx context.Context, code string) (*MedicalService, error)
	Update(ctx context.Context, s *MedicalService) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*MedicalService, int, error)
}

type IndicatorRepository interface {
	Create(ctx context.Context, t *IndicatorTemplate) error
	GetByID(ctx context.Context, id uuid.UUID) (*IndicatorTemplate, error)
	GetByCode(ctx context.Context, code string) (*IndicatorTemplate, error)
	Update(ctx context.Context, t *IndicatorTemplate) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*IndicatorTemplate, int, error)
}

type MappingRepository interface {
	// ListForService returns the service's indicator mappings joined with
	// their templates, ordered by display order.
	ListForService(ctx context.Context, serviceID uuid.UUID) ([]*ServiceIndicatorDetail, error)
	// Replace swaps the full mapping set for a service.
	Replace(ctx context.Context, serviceID uuid.UUID, mappings []*ServiceIndicator) error
}

type RosterRepository interface {
	// DoctorsForShift returns the doctors staffing the room for the given
	// half-day, in stable order.
	DoctorsForShift(ctx context.Context, roomID uuid.UUID, weekday time.Weekday, morning bool) ([]uuid.UUID, error)
	CreateShift(ctx context.Context, w *WorkShift) error
	DeleteShift(ctx context.Context, id uuid.UUID) error
}
