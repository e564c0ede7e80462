package scheduling

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clinicsys/clinic/internal/platform/apperr"
	"github.com/clinicsys/clinic/internal/platform/auth"
)

// -- Mock Repository --

type mockAppointmentRepo struct {
	appts map[uuid.UUID]*Appointment
}

func newMockAppointmentRepo() *mockAppointmentRepo {
	return &mockAppointmentRepo{appts: make(map[uuid.UUID]*Appointment)}
}

func (m *mockAppointmentRepo) Create(_ context.Context, a *Appointment) error {
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	a.UpdatedAt = time.Now()
	m.appts[a.ID] = a
	return nil
}

func (m *mockAppointmentRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok := m.appts[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	cp := *a
	return &cp, nil
}

func (m *mockAppointmentRepo) Update(_ context.Context, a *Appointment) error {
	m.appts[a.ID] = a
	return nil
}

func (m *mockAppointmentRepo) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	a, ok := m.appts[id]
	if !ok {
		return fmt.Errorf("not found")
	}
	a.Status = status
	return nil
}

func (m *mockAppointmentRepo) List(_ context.Context, limit, offset int) ([]*Appointment, int, error) {
	var result []*Appointment
	for _, a := range m.appts {
		result = append(result, a)
	}
	return result, len(result), nil
}

func (m *mockAppointmentRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	var result []*Appointment
	for _, a := range m.appts {
		if a.DoctorID == doctorID {
			result = append(result, a)
		}
	}
	return result, len(result), nil
}

func (m *mockAppointmentRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	var result []*Appointment
	for _, a := range m.appts {
		if a.PatientID == patientID {
			result = append(result, a)
		}
	}
	return result, len(result), nil
}

func (m *mockAppointmentRepo) ListByStatus(_ context.Context, status string, limit, offset int) ([]*Appointment, int, error) {
	var result []*Appointment
	for _, a := range m.appts {
		if a.Status == status {
			result = append(result, a)
		}
	}
	return result, len(result), nil
}

func (m *mockAppointmentRepo) FindConflicts(_ context.Context, doctorID uuid.UUID, roomID *uuid.UUID, start, end time.Time, ignoreID uuid.UUID) ([]*Appointment, error) {
	var result []*Appointment
	for _, a := range m.appts {
		if a.ID == ignoreID || a.Status == StatusCancelled {
			continue
		}
		sameDoctor := a.DoctorID == doctorID
		sameRoom := roomID != nil && a.RoomID != nil && *a.RoomID == *roomID
		if !sameDoctor && !sameRoom {
			continue
		}
		if a.Overlaps(start, end) {
			result = append(result, a)
		}
	}
	return result, nil
}

// -- Tests --

var testActor = auth.Actor{ID: "recept-1", Name: "Front Desk", Role: auth.RoleReceptionist}

func at(hour, minute int) time.Time {
	return time.Date(2025, 6, 2, hour, minute, 0, 0, time.UTC)
}

func TestSchedule_DefaultsAndStatus(t *testing.T) {
	repo := newMockAppointmentRepo()
	svc := NewService(nil, repo)
	ctx := context.Background()

	appt, err := svc.Schedule(ctx, testActor, CreateAppointmentInput{
		PatientID:   uuid.New(),
		DoctorID:    uuid.New(),
		ScheduledAt: at(9, 0),
	})
	if err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	if appt.DurationMinutes != DefaultDurationMinutes {
		t.Errorf("DurationMinutes = %d, want %d", appt.DurationMinutes, DefaultDurationMinutes)
	}
	if appt.Status != StatusConfirmed {
		t.Errorf("Status = %s, want %s", appt.Status, StatusConfirmed)
	}
	if appt.CreatedBy != testActor.ID {
		t.Errorf("CreatedBy = %s, want %s", appt.CreatedBy, testActor.ID)
	}
}

func TestSchedule_Validation(t *testing.T) {
	svc := NewService(nil, newMockAppointmentRepo())
	ctx := context.Background()

	cases := []struct {
		name string
		in   CreateAppointmentInput
	}{
		{"missing patient", CreateAppointmentInput{DoctorID: uuid.New(), ScheduledAt: at(9, 0)}},
		{"missing doctor", CreateAppointmentInput{PatientID: uuid.New(), ScheduledAt: at(9, 0)}},
		{"missing time", CreateAppointmentInput{PatientID: uuid.New(), DoctorID: uuid.New()}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Schedule(ctx, testActor, tc.in)
			if !apperr.IsKind(err, apperr.KindValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestSchedule_DoctorConflictMatrix(t *testing.T) {
	repo := newMockAppointmentRepo()
	svc := NewService(nil, repo)
	ctx := context.Background()
	doctor := uuid.New()

	// Existing 09:00 appointment, default 30 minutes.
	if _, err := svc.Schedule(ctx, testActor, CreateAppointmentInput{
		PatientID: uuid.New(), DoctorID: doctor, ScheduledAt: at(9, 0),
	}); err != nil {
		t.Fatalf("seed appointment: %v", err)
	}

	// 09:15 overlaps.
	_, err := svc.Schedule(ctx, testActor, CreateAppointmentInput{
		PatientID: uuid.New(), DoctorID: doctor, ScheduledAt: at(9, 15),
	})
	if !apperr.IsKind(err, apperr.KindConflict) {
		t.Errorf("09:15 booking: expected conflict, got %v", err)
	}

	// 09:30 touches the end of the window and is allowed.
	if _, err := svc.Schedule(ctx, testActor, CreateAppointmentInput{
		PatientID: uuid.New(), DoctorID: doctor, ScheduledAt: at(9, 30),
	}); err != nil {
		t.Errorf("09:30 booking: expected success, got %v", err)
	}

	// 08:45 ends exactly at 09:15 and overlaps the 09:00 slot.
	_, err = svc.Schedule(ctx, testActor, CreateAppointmentInput{
		PatientID: uuid.New(), DoctorID: doctor, ScheduledAt: at(8, 45),
	})
	if !apperr.IsKind(err, apperr.KindConflict) {
		t.Errorf("08:45 booking: expected conflict, got %v", err)
	}

	// 08:30 ends exactly at 09:00 and does not overlap.
	if _, err := svc.Schedule(ctx, testActor, CreateAppointmentInput{
		PatientID: uuid.New(), DoctorID: doctor, ScheduledAt: at(8, 30),
	}); err != nil {
		t.Errorf("08:30 booking: expected success, got %v", err)
	}

	// Another doctor at 09:00 is fine.
	if _, err := svc.Schedule(ctx, testActor, CreateAppointmentInput{
		PatientID: uuid.New(), DoctorID: uuid.New(), ScheduledAt: at(9, 0),
	}); err != nil {
		t.Errorf("other doctor: expected success, got %v", err)
	}
}

func TestSchedule_RoomConflict(t *testing.T) {
	repo := newMockAppointmentRepo()
	svc := NewService(nil, repo)
	ctx := context.Background()
	room := uuid.New()

	if _, err := svc.Schedule(ctx, testActor, CreateAppointmentInput{
		PatientID: uuid.New(), DoctorID: uuid.New(), RoomID: &room, ScheduledAt: at(10, 0),
	}); err != nil {
		t.Fatalf("seed appointment: %v", err)
	}

	// Different doctor, same room, overlapping time.
	_, err := svc.Schedule(ctx, testActor, CreateAppointmentInput{
		PatientID: uuid.New(), DoctorID: uuid.New(), RoomID: &room, ScheduledAt: at(10, 15),
	})
	if !apperr.IsKind(err, apperr.KindConflict) {
		t.Errorf("expected room conflict, got %v", err)
	}

	// Same time, different room.
	otherRoom := uuid.New()
	if _, err := svc.Schedule(ctx, testActor, CreateAppointmentInput{
		PatientID: uuid.New(), DoctorID: uuid.New(), RoomID: &otherRoom, ScheduledAt: at(10, 15),
	}); err != nil {
		t.Errorf("different room: expected success, got %v", err)
	}
}

func TestSchedule_CancelledIgnored(t *testing.T) {
	repo := newMockAppointmentRepo()
	svc := NewService(nil, repo)
	ctx := context.Background()
	doctor := uuid.New()

	appt, err := svc.Schedule(ctx, testActor, CreateAppointmentInput{
		PatientID: uuid.New(), DoctorID: doctor, ScheduledAt: at(9, 0),
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.UpdateStatus(ctx, appt.ID, StatusCancelled, nil); err != nil {
		t.Fatal(err)
	}

	// The cancelled slot no longer blocks.
	if _, err := svc.Schedule(ctx, testActor, CreateAppointmentInput{
		PatientID: uuid.New(), DoctorID: doctor, ScheduledAt: at(9, 0),
	}); err != nil {
		t.Errorf("expected success over cancelled appointment, got %v", err)
	}
}

func TestUpdateStatus_ReactivationReChecksSlot(t *testing.T) {
	repo := newMockAppointmentRepo()
	svc := NewService(nil, repo)
	ctx := context.Background()
	doctor := uuid.New()

	first, err := svc.Schedule(ctx, testActor, CreateAppointmentInput{
		PatientID: uuid.New(), DoctorID: doctor, ScheduledAt: at(9, 0),
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.UpdateStatus(ctx, first.ID, StatusCancelled, nil); err != nil {
		t.Fatal(err)
	}

	// The freed slot is rebooked.
	if _, err := svc.Schedule(ctx, testActor, CreateAppointmentInput{
		PatientID: uuid.New(), DoctorID: doctor, ScheduledAt: at(9, 0),
	}); err != nil {
		t.Fatal(err)
	}

	// Bringing the cancelled appointment back would overlap the rebooking.
	_, err = svc.UpdateStatus(ctx, first.ID, StatusConfirmed, nil)
	if !apperr.IsKind(err, apperr.KindConflict) {
		t.Errorf("expected conflict on reactivation into a taken slot, got %v", err)
	}
	if repo.appts[first.ID].Status != StatusCancelled {
		t.Errorf("appointment status = %s, want CANCELLED unchanged", repo.appts[first.ID].Status)
	}
}

func TestReschedule_IgnoresSelf(t *testing.T) {
	repo := newMockAppointmentRepo()
	svc := NewService(nil, repo)
	ctx := context.Background()
	doctor := uuid.New()

	appt, err := svc.Schedule(ctx, testActor, CreateAppointmentInput{
		PatientID: uuid.New(), DoctorID: doctor, ScheduledAt: at(9, 0),
	})
	if err != nil {
		t.Fatal(err)
	}

	// Shifting by 5 minutes overlaps only itself and must succeed.
	moved, err := svc.Reschedule(ctx, testActor, appt.ID, CreateAppointmentInput{
		ScheduledAt: at(9, 5),
	})
	if err != nil {
		t.Fatalf("Reschedule() error = %v", err)
	}
	if !moved.ScheduledAt.Equal(at(9, 5)) {
		t.Errorf("ScheduledAt = %v, want 09:05", moved.ScheduledAt)
	}
}

func TestReschedule_ConflictWithOther(t *testing.T) {
	repo := newMockAppointmentRepo()
	svc := NewService(nil, repo)
	ctx := context.Background()
	doctor := uuid.New()

	if _, err := svc.Schedule(ctx, testActor, CreateAppointmentInput{
		PatientID: uuid.New(), DoctorID: doctor, ScheduledAt: at(9, 0),
	}); err != nil {
		t.Fatal(err)
	}
	second, err := svc.Schedule(ctx, testActor, CreateAppointmentInput{
		PatientID: uuid.New(), DoctorID: doctor, ScheduledAt: at(10, 0),
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = svc.Reschedule(ctx, testActor, second.ID, CreateAppointmentInput{
		ScheduledAt: at(9, 15),
	})
	if !apperr.IsKind(err, apperr.KindConflict) {
		t.Errorf("expected conflict, got %v", err)
	}
}

func TestReschedule_TerminalStates(t *testing.T) {
	repo := newMockAppointmentRepo()
	svc := NewService(nil, repo)
	ctx := context.Background()

	appt, err := svc.Schedule(ctx, testActor, CreateAppointmentInput{
		PatientID: uuid.New(), DoctorID: uuid.New(), ScheduledAt: at(9, 0),
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.UpdateStatus(ctx, appt.ID, StatusCancelled, nil); err != nil {
		t.Fatal(err)
	}

	_, err = svc.Reschedule(ctx, testActor, appt.ID, CreateAppointmentInput{ScheduledAt: at(11, 0)})
	if !apperr.IsKind(err, apperr.KindInvariant) {
		t.Errorf("expected invariant error for cancelled appointment, got %v", err)
	}
}

func TestUpdateStatus_InvalidValue(t *testing.T) {
	svc := NewService(nil, newMockAppointmentRepo())
	_, err := svc.UpdateStatus(context.Background(), uuid.New(), "NO_SHOW", nil)
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestOverlapInvariantAfterSequence(t *testing.T) {
	repo := newMockAppointmentRepo()
	svc := NewService(nil, repo)
	ctx := context.Background()
	doctor := uuid.New()

	times := []time.Time{at(8, 0), at(8, 30), at(9, 0), at(9, 15), at(10, 0), at(9, 45)}
	for _, ts := range times {
		svc.Schedule(ctx, testActor, CreateAppointmentInput{
			PatientID: uuid.New(), DoctorID: doctor, ScheduledAt: ts,
		})
	}

	var active []*Appointment
	for _, a := range repo.appts {
		if a.Status != StatusCancelled {
			active = append(active, a)
		}
	}
	for i := 0; i < len(active); i++ {
		for j := i + 1; j < len(active); j++ {
			if active[i].Overlaps(active[j].ScheduledAt, active[j].EndsAt()) {
				t.Errorf("appointments %v and %v overlap", active[i].ScheduledAt, active[j].ScheduledAt)
			}
		}
	}
}
