package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicsys/clinic/internal/platform/apperr"
	"github.com/clinicsys/clinic/internal/platform/db"
)

type Service struct {
	pool       *pgxpool.Pool
	services   ServiceRepository
	indicators IndicatorRepository
	mappings   MappingRepository
	roster     RosterRepository
}

func NewService(pool *pgxpool.Pool, svc ServiceRepository, ind IndicatorRepository, mp MappingRepository, roster RosterRepository) *Service {
	return &Service{pool: pool, services: svc, indicators: ind, mappings: mp, roster: roster}
}

// -- Medical services --

func (s *Service) CreateMedicalService(ctx context.Context, ms *MedicalService) error {
	ms.Code = strings.TrimSpace(ms.Code)
	ms.Name = strings.TrimSpace(ms.Name)
	if ms.Code == "" {
		return apperr.Validation("service code is required")
	}
	if ms.Name == "" {
		return apperr.Validation("service name is required")
	}
	if ms.BasePrice < 0 {
		return apperr.Validation("base price must not be negative")
	}
	if existing, err := s.services.GetByCode(ctx, ms.Code); err == nil && existing != nil {
		return apperr.Conflict("service code %s already exists", ms.Code)
	}
	return s.services.Create(ctx, ms)
}

func (s *Service) GetMedicalService(ctx context.Context, id uuid.UUID) (*MedicalService, error) {
	ms, err := s.services.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.NotFound("medical service %s not found", id)
	}
	return ms, nil
}

func (s *Service) UpdateMedicalService(ctx context.Context, ms *MedicalService) error {
	current, err := s.services.GetByID(ctx, ms.ID)
	if err != nil {
		return apperr.NotFound("medical service %s not found", ms.ID)
	}
	ms.Code = strings.TrimSpace(ms.Code)
	ms.Name = strings.TrimSpace(ms.Name)
	if ms.Code == "" || ms.Name == "" {
		return apperr.Validation("service code and name are required")
	}
	if ms.BasePrice < 0 {
		return apperr.Validation("base price must not be negative")
	}
	if ms.Code != current.Code {
		if existing, err := s.services.GetByCode(ctx, ms.Code); err == nil && existing != nil {
			return apperr.Conflict("service code %s already exists", ms.Code)
		}
	}
	return s.services.Update(ctx, ms)
}

func (s *Service) DeleteMedicalService(ctx context.Context, id uuid.UUID) error {
	return s.services.Delete(ctx, id)
}

func (s *Service) ListMedicalServices(ctx context.Context, limit, offset int) ([]*MedicalService, int, error) {
	return s.services.List(ctx, limit, offset)
}

// -- Indicator templates --

func (s *Service) CreateIndicator(ctx context.Context, t *IndicatorTemplate) error {
	t.Code = strings.TrimSpace(t.Code)
	t.Name = strings.TrimSpace(t.Name)
	if t.Code == "" {
		return apperr.Validation("indicator code is required")
	}
	if t.Name == "" {
		return apperr.Validation("indicator name is required")
	}
	if t.NormalMin != nil && t.NormalMax != nil && *t.NormalMin > *t.NormalMax {
		return apperr.Validation("normal range lower bound exceeds upper bound")
	}
	if existing, err := s.indicators.GetByCode(ctx, t.Code); err == nil && existing != nil {
		return apperr.Conflict("indicator code %s already exists", t.Code)
	}
	return s.indicators.Create(ctx, t)
}

func (s *Service) GetIndicator(ctx context.Context, id uuid.UUID) (*IndicatorTemplate, error) {
	t, err := s.indicators.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.NotFound("indicator %s not found", id)
	}
	return t, nil
}

func (s *Service) UpdateIndicator(ctx context.Context, t *IndicatorTemplate) error {
	if t.NormalMin != nil && t.NormalMax != nil && *t.NormalMin > *t.NormalMax {
		return apperr.Validation("normal range lower bound exceeds upper bound")
	}
	return s.indicators.Update(ctx, t)
}

func (s *Service) DeleteIndicator(ctx context.Context, id uuid.UUID) error {
	return s.indicators.Delete(ctx, id)
}

func (s *Service) ListIndicators(ctx context.Context, limit, offset int) ([]*IndicatorTemplate, int, error) {
	return s.indicators.List(ctx, limit, offset)
}

// -- Service/indicator mappings --

func (s *Service) ListServiceIndicators(ctx context.Context, serviceID uuid.UUID) ([]*ServiceIndicatorDetail, error) {
	if _, err := s.services.GetByID(ctx, serviceID); err != nil {
		return nil, apperr.NotFound("medical service %s not found", serviceID)
	}
	return s.mappings.ListForService(ctx, serviceID)
}

func (s *Service) SetServiceIndicators(ctx context.Context, serviceID uuid.UUID, mappings []*ServiceIndicator) error {
	if _, err := s.services.GetByID(ctx, serviceID); err != nil {
		return apperr.NotFound("medical service %s not found", serviceID)
	}
	seen := make(map[uuid.UUID]bool, len(mappings))
	for _, m := range mappings {
		if m.IndicatorID == uuid.Nil {
			return apperr.Validation("indicator_id is required")
		}
		if seen[m.IndicatorID] {
			return apperr.Validation("indicator %s listed more than once", m.IndicatorID)
		}
		seen[m.IndicatorID] = true
		if _, err := s.indicators.GetByID(ctx, m.IndicatorID); err != nil {
			return apperr.NotFound("indicator %s not found", m.IndicatorID)
		}
	}
	return db.WithTx(ctx, s.pool, func(ctx context.Context) error {
		return s.mappings.Replace(ctx, serviceID, mappings)
	})
}

// -- Roster --

func (s *Service) AddShift(ctx context.Context, w *WorkShift) error {
	if w.DoctorID == uuid.Nil {
		return apperr.Validation("doctor_id is required")
	}
	if w.RoomID == uuid.Nil {
		return apperr.Validation("room_id is required")
	}
	return s.roster.CreateShift(ctx, w)
}

func (s *Service) RemoveShift(ctx context.Context, id uuid.UUID) error {
	return s.roster.DeleteShift(ctx, id)
}

// AssignedDoctorForRoom picks the doctor staffing the room around the given
// time. It prefers the current half-day, then the other half-day of the same
// weekday, then any shift in the week.
func (s *Service) AssignedDoctorForRoom(ctx context.Context, roomID uuid.UUID, at time.Time) (uuid.UUID, error) {
	weekday := at.Weekday()
	morning := at.Hour() < 12

	candidates := []struct {
		weekday time.Weekday
		morning bool
	}{
		{weekday, morning},
		{weekday, !morning},
	}
	for d := time.Monday; d <= time.Saturday; d++ {
		candidates = append(candidates,
			struct {
				weekday time.Weekday
				morning bool
			}{d, true},
			struct {
				weekday time.Weekday
				morning bool
			}{d, false},
		)
	}

	for _, c := range candidates {
		doctors, err := s.roster.DoctorsForShift(ctx, roomID, c.weekday, c.morning)
		if err != nil {
			return uuid.Nil, err
		}
		if len(doctors) > 0 {
			return doctors[0], nil
		}
	}
	return uuid.Nil, apperr.Invariant("no doctor is rostered for room %s", roomID)
}
