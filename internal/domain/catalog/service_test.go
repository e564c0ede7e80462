package catalog

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clinicsys/clinic/internal/platform/apperr"
)

// -- Mock Repositories --

type mockServiceRepo struct {
	services map[uuid.UUID]*MedicalService
}

func newMockServiceRepo() *mockServiceRepo {
	return &mockServiceRepo{services: make(map[uuid.UUID]*MedicalService)}
}

func (m *mockServiceRepo) Create(_ context.Context, s *MedicalService) error {
	s.ID = uuid.New()
	s.CreatedAt = time.Now()
	s.UpdatedAt = time.Now()
	m.services[s.ID] = s
	return nil
}

func (m *mockServiceRepo) GetByID(_ context.Context, id uuid.UUID) (*MedicalService, error) {
	s, ok := m.services[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return s, nil
}

func (m *mockServiceRepo) GetByCode(_ context.Context, code string) (*MedicalService, error) {
	for _, s := range m.services {
		if s.Code == code {
			return s, nil
		}
	}
	return nil, fmt.Errorf("not found")
}

func (m *mockServiceRepo) Update(_ context.Context, s *MedicalService) error {
	m.services[s.ID] = s
	return nil
}

func (m *mockServiceRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.services, id)
	return nil
}

func (m *mockServiceRepo) List(_ context.Context, limit, offset int) ([]*MedicalService, int, error) {
	var result []*MedicalService
	for _, s := range m.services {
		result = append(result, s)
	}
	return result, len(result), nil
}

type mockIndicatorRepo struct {
	indicators map[uuid.UUID]*IndicatorTemplate
}

func newMockIndicatorRepo() *mockIndicatorRepo {
	return &mockIndicatorRepo{indicators: make(map[uuid.UUID]*IndicatorTemplate)}
}

func (m *mockIndicatorRepo) Create(_ context.Context, t *IndicatorTemplate) error {
	t.ID = uuid.New()
	m.indicators[t.ID] = t
	return nil
}

func (m *mockIndicatorRepo) GetByID(_ context.Context, id uuid.UUID) (*IndicatorTemplate, error) {
	t, ok := m.indicators[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return t, nil
}

func (m *mockIndicatorRepo) GetByCode(_ context.Context, code string) (*IndicatorTemplate, error) {
	for _, t := range m.indicators {
		if t.Code == code {
			return t, nil
		}
	}
	return nil, fmt.Errorf("not found")
}

func (m *mockIndicatorRepo) Update(_ context.Context, t *IndicatorTemplate) error {
	m.indicators[t.ID] = t
	return nil
}

func (m *mockIndicatorRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.indicators, id)
	return nil
}

func (m *mockIndicatorRepo) List(_ context.Context, limit, offset int) ([]*IndicatorTemplate, int, error) {
	var result []*IndicatorTemplate
	for _, t := range m.indicators {
		result = append(result, t)
	}
	return result, len(result), nil
}

type mockMappingRepo struct {
	byService map[uuid.UUID][]*ServiceIndicator
	templates *mockIndicatorRepo
}

func newMockMappingRepo(templates *mockIndicatorRepo) *mockMappingRepo {
	return &mockMappingRepo{byService: make(map[uuid.UUID][]*ServiceIndicator), templates: templates}
}

func (m *mockMappingRepo) ListForService(_ context.Context, serviceID uuid.UUID) ([]*ServiceIndicatorDetail, error) {
	var result []*ServiceIndicatorDetail
	for _, si := range m.byService[serviceID] {
		t := m.templates.indicators[si.IndicatorID]
		if t == nil {
			continue
		}
		result = append(result, &ServiceIndicatorDetail{ServiceIndicator: *si, Template: *t})
	}
	return result, nil
}

func (m *mockMappingRepo) Replace(_ context.Context, serviceID uuid.UUID, mappings []*ServiceIndicator) error {
	for _, mp := range mappings {
		mp.ID = uuid.New()
		mp.ServiceID = serviceID
	}
	m.byService[serviceID] = mappings
	return nil
}

type mockRosterRepo struct {
	shifts []*WorkShift
}

func (m *mockRosterRepo) DoctorsForShift(_ context.Context, roomID uuid.UUID, weekday time.Weekday, morning bool) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, w := range m.shifts {
		if w.RoomID == roomID && w.Weekday == weekday && w.Morning == morning {
			ids = append(ids, w.DoctorID)
		}
	}
	return ids, nil
}

func (m *mockRosterRepo) CreateShift(_ context.Context, w *WorkShift) error {
	w.ID = uuid.New()
	m.shifts = append(m.shifts, w)
	return nil
}

func (m *mockRosterRepo) DeleteShift(_ context.Context, id uuid.UUID) error {
	for i, w := range m.shifts {
		if w.ID == id {
			m.shifts = append(m.shifts[:i], m.shifts[i+1:]...)
			return nil
		}
	}
	return nil
}

func newTestService() (*Service, *mockServiceRepo, *mockIndicatorRepo, *mockMappingRepo, *mockRosterRepo) {
	services := newMockServiceRepo()
	indicators := newMockIndicatorRepo()
	mappings := newMockMappingRepo(indicators)
	roster := &mockRosterRepo{}
	return NewService(nil, services, indicators, mappings, roster), services, indicators, mappings, roster
}

// -- Tests --

func TestCreateMedicalService(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	ctx := context.Background()

	ms := &MedicalService{Code: "CBC", Name: "Complete blood count", BasePrice: 200000}
	if err := svc.CreateMedicalService(ctx, ms); err != nil {
		t.Fatalf("CreateMedicalService() error = %v", err)
	}
	if ms.ID == uuid.Nil {
		t.Error("expected generated ID")
	}
}

func TestCreateMedicalService_Validation(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	ctx := context.Background()

	cases := []struct {
		name string
		ms   *MedicalService
	}{
		{"missing code", &MedicalService{Name: "X-ray", BasePrice: 100}},
		{"missing name", &MedicalService{Code: "XR", BasePrice: 100}},
		{"negative price", &MedicalService{Code: "XR", Name: "X-ray", BasePrice: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.CreateMedicalService(ctx, tc.ms)
			if !apperr.IsKind(err, apperr.KindValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCreateMedicalService_DuplicateCode(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	ctx := context.Background()

	if err := svc.CreateMedicalService(ctx, &MedicalService{Code: "CBC", Name: "Blood count", BasePrice: 1}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	err := svc.CreateMedicalService(ctx, &MedicalService{Code: "CBC", Name: "Another", BasePrice: 1})
	if !apperr.IsKind(err, apperr.KindConflict) {
		t.Errorf("expected conflict, got %v", err)
	}
}

func TestCreateIndicator_RangeValidation(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	ctx := context.Background()

	lo, hi := 10.0, 4.0
	err := svc.CreateIndicator(ctx, &IndicatorTemplate{Code: "HGB", Name: "Hemoglobin", NormalMin: &lo, NormalMax: &hi})
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Errorf("expected validation error for inverted range, got %v", err)
	}

	lo2, hi2 := 4.0, 10.0
	if err := svc.CreateIndicator(ctx, &IndicatorTemplate{Code: "HGB", Name: "Hemoglobin", NormalMin: &lo2, NormalMax: &hi2}); err != nil {
		t.Fatalf("valid range rejected: %v", err)
	}
}

func TestSetServiceIndicators(t *testing.T) {
	svc, _, indicators, mappings, _ := newTestService()
	ctx := context.Background()

	ms := &MedicalService{Code: "CBC", Name: "Blood count", BasePrice: 1}
	if err := svc.CreateMedicalService(ctx, ms); err != nil {
		t.Fatal(err)
	}
	hgb := &IndicatorTemplate{Code: "HGB", Name: "Hemoglobin"}
	wbc := &IndicatorTemplate{Code: "WBC", Name: "White cells"}
	indicators.Create(ctx, hgb)
	indicators.Create(ctx, wbc)

	set := []*ServiceIndicator{
		{IndicatorID: hgb.ID, Required: true, DisplayOrder: 1},
		{IndicatorID: wbc.ID, Required: false, DisplayOrder: 2},
	}
	if err := svc.SetServiceIndicators(ctx, ms.ID, set); err != nil {
		t.Fatalf("SetServiceIndicators() error = %v", err)
	}
	got, err := svc.ListServiceIndicators(ctx, ms.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 mappings, got %d", len(got))
	}
	_ = mappings

	dup := []*ServiceIndicator{
		{IndicatorID: hgb.ID},
		{IndicatorID: hgb.ID},
	}
	err = svc.SetServiceIndicators(ctx, ms.ID, dup)
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Errorf("expected validation error for duplicate indicator, got %v", err)
	}

	err = svc.SetServiceIndicators(ctx, ms.ID, []*ServiceIndicator{{IndicatorID: uuid.New()}})
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Errorf("expected not found for unknown indicator, got %v", err)
	}
}

func TestAssignedDoctorForRoom(t *testing.T) {
	svc, _, _, _, roster := newTestService()
	ctx := context.Background()

	room := uuid.New()
	monMorningDoc := uuid.New()
	monAfternoonDoc := uuid.New()

	// Monday 09:00
	monMorning := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

	// No shifts at all: invariant error.
	if _, err := svc.AssignedDoctorForRoom(ctx, room, monMorning); !apperr.IsKind(err, apperr.KindInvariant) {
		t.Errorf("expected invariant error with empty roster, got %v", err)
	}

	// Only an afternoon doctor: same-day fallback should find them.
	roster.CreateShift(ctx, &WorkShift{DoctorID: monAfternoonDoc, RoomID: room, Weekday: time.Monday, Morning: false})
	got, err := svc.AssignedDoctorForRoom(ctx, room, monMorning)
	if err != nil {
		t.Fatalf("AssignedDoctorForRoom() error = %v", err)
	}
	if got != monAfternoonDoc {
		t.Errorf("expected afternoon doctor via fallback, got %s", got)
	}

	// Matching shift wins over the fallback.
	roster.CreateShift(ctx, &WorkShift{DoctorID: monMorningDoc, RoomID: room, Weekday: time.Monday, Morning: true})
	got, err = svc.AssignedDoctorForRoom(ctx, room, monMorning)
	if err != nil {
		t.Fatalf("AssignedDoctorForRoom() error = %v", err)
	}
	if got != monMorningDoc {
		t.Errorf("expected morning doctor, got %s", got)
	}

	// A different room's roster never leaks in.
	otherRoom := uuid.New()
	if _, err := svc.AssignedDoctorForRoom(ctx, otherRoom, monMorning); !apperr.IsKind(err, apperr.KindInvariant) {
		t.Errorf("expected invariant error for unstaffed room, got %v", err)
	}
}
