package visit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicsys/clinic/internal/domain/catalog"
	"github.com/clinicsys/clinic/internal/domain/scheduling"
	"github.com/clinicsys/clinic/internal/platform/apperr"
	"github.com/clinicsys/clinic/internal/platform/db"
)

type Service struct {
	pool         *pgxpool.Pool
	visits       VisitRepository
	orders       ServiceOrderRepository
	results      IndicatorResultRepository
	appointments AppointmentStore
	catalog      Catalog
}

func NewService(pool *pgxpool.Pool, visits VisitRepository, orders ServiceOrderRepository,
	results IndicatorResultRepository, appointments AppointmentStore, cat Catalog) *Service {
	return &Service{pool: pool, visits: visits, orders: orders, results: results,
		appointments: appointments, catalog: cat}
}

// CreateVisitInput opens a visit from a confirmed appointment.
type CreateVisitInput struct {
	AppointmentID        uuid.UUID `json:"appointment_id"`
	ProvisionalDiagnosis *string   `json:"provisional_diagnosis,omitempty"`
	ClinicalNote         *string   `json:"clinical_note,omitempty"`
}

// Create checks in a confirmed appointment: the visit opens and the
// appointment moves to CHECKED_IN in the same unit of work. An appointment
// produces at most one visit.
func (s *Service) Create(ctx context.Context, in CreateVisitInput) (*Visit, error) {
	if in.AppointmentID == uuid.Nil {
		return nil, apperr.Validation("appointment_id is required")
	}
	var v *Visit
	err := db.WithTx(ctx, s.pool, func(ctx context.Context) error {
		appt, err := s.appointments.GetByID(ctx, in.AppointmentID)
		if err != nil {
			return apperr.NotFound("appointment %s not found", in.AppointmentID)
		}
		// The duplicate check comes first: once the first check-in flips the
		// appointment to CHECKED_IN, the status guard alone would mask the
		// conflict.
		if existing, err := s.visits.GetByAppointment(ctx, in.AppointmentID); err == nil && existing != nil {
			return apperr.Conflict("appointment %s already has a visit", in.AppointmentID)
		}
		if appt.Status != scheduling.StatusConfirmed {
			return apperr.Invariant("appointment %s is %s, only CONFIRMED appointments can be checked in", appt.ID, appt.Status)
		}

		v = &Visit{
			AppointmentID:        in.AppointmentID,
			PatientID:            appt.PatientID,
			Status:               StatusOpen,
			ProvisionalDiagnosis: in.ProvisionalDiagnosis,
			ClinicalNote:         in.ClinicalNote,
		}
		if err := s.visits.Create(ctx, v); err != nil {
			return err
		}
		return s.appointments.UpdateStatus(ctx, appt.ID, scheduling.StatusCheckedIn)
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Visit, error) {
	v, err := s.visits.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.NotFound("visit %s not found", id)
	}
	return v, nil
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Visit, int, error) {
	return s.visits.List(ctx, limit, offset)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Visit, int, error) {
	return s.visits.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) ListByStatus(ctx context.Context, status string, limit, offset int) ([]*Visit, int, error) {
	return s.visits.ListByStatus(ctx, status, limit, offset)
}

// UpdateClinicalInput edits the visit's free-text clinical fields.
type UpdateClinicalInput struct {
	ProvisionalDiagnosis *string `json:"provisional_diagnosis,omitempty"`
	ClinicalNote         *string `json:"clinical_note,omitempty"`
	DiagnosisNote        *string `json:"diagnosis_note,omitempty"`
}

func (s *Service) UpdateClinicalInfo(ctx context.Context, id uuid.UUID, in UpdateClinicalInput) (*Visit, error) {
	v, err := s.visits.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.NotFound("visit %s not found", id)
	}
	if v.Status != StatusOpen {
		return nil, apperr.Invariant("visit %s is %s and can no longer be edited", id, v.Status)
	}
	if in.ProvisionalDiagnosis != nil {
		v.ProvisionalDiagnosis = in.ProvisionalDiagnosis
	}
	if in.ClinicalNote != nil {
		v.ClinicalNote = in.ClinicalNote
	}
	if in.DiagnosisNote != nil {
		v.DiagnosisNote = in.DiagnosisNote
	}
	if err := s.visits.Update(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// UpdateStatus drives the visit state machine. Completion requires every
// owned order to be resolved and also completes the source appointment.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*Visit, error) {
	if status != StatusCompleted && status != StatusCancelled {
		return nil, apperr.Validation("invalid visit status %q", status)
	}
	var v *Visit
	err := db.WithTx(ctx, s.pool, func(ctx context.Context) error {
		var err error
		v, err = s.visits.GetByID(ctx, id)
		if err != nil {
			return apperr.NotFound("visit %s not found", id)
		}
		if v.Status != StatusOpen {
			return apperr.Invariant("visit %s is already %s", id, v.Status)
		}

		if status == StatusCompleted {
			orders, err := s.orders.ListByVisit(ctx, id)
			if err != nil {
				return err
			}
			for _, o := range orders {
				if o.Open() {
					return apperr.Invariant("visit %s has an unresolved service order in status %s", id, o.Status)
				}
			}
			if err := s.appointments.UpdateStatus(ctx, v.AppointmentID, scheduling.StatusCompleted); err != nil {
				return err
			}
		}
		v.Status = status
		return s.visits.Update(ctx, v)
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// OrderInput is one requested service within a visit.
type OrderInput struct {
	ServiceID uuid.UUID `json:"service_id"`
	Note      *string   `json:"note,omitempty"`
}

// CreateServiceOrders places orders on an open visit. Each order starts
// PENDING with the doctor staffing the service's room assigned to it.
func (s *Service) CreateServiceOrders(ctx context.Context, visitID uuid.UUID, inputs []OrderInput) ([]*ServiceOrder, error) {
	if len(inputs) == 0 {
		return nil, apperr.Validation("at least one service order is required")
	}
	var created []*ServiceOrder
	err := db.WithTx(ctx, s.pool, func(ctx context.Context) error {
		v, err := s.visits.GetByID(ctx, visitID)
		if err != nil {
			return apperr.NotFound("visit %s not found", visitID)
		}
		if v.Status != StatusOpen {
			return apperr.Invariant("visit %s is %s, orders can only be placed on an open visit", visitID, v.Status)
		}

		now := time.Now()
		for _, in := range inputs {
			svc, err := s.catalog.GetMedicalService(ctx, in.ServiceID)
			if err != nil {
				return apperr.NotFound("medical service %s not found", in.ServiceID)
			}
			if svc.RoomID == nil {
				return apperr.Invariant("service %s has no room and no doctor can be assigned", svc.Code)
			}
			doctorID, err := s.catalog.AssignedDoctorForRoom(ctx, *svc.RoomID, now)
			if err != nil {
				return err
			}

			o := &ServiceOrder{
				VisitID:          visitID,
				ServiceID:        in.ServiceID,
				AssignedDoctorID: doctorID,
				Status:           OrderPending,
				Note:             in.Note,
			}
			if err := s.orders.Create(ctx, o); err != nil {
				return err
			}
			created = append(created, o)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Service) GetOrder(ctx context.Context, id uuid.UUID) (*ServiceOrder, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.NotFound("service order %s not found", id)
	}
	return o, nil
}

func (s *Service) ListOrders(ctx context.Context, visitID uuid.UUID) ([]*ServiceOrder, error) {
	if _, err := s.visits.GetByID(ctx, visitID); err != nil {
		return nil, apperr.NotFound("visit %s not found", visitID)
	}
	return s.orders.ListByVisit(ctx, visitID)
}

// UpdateOrderStatus applies an explicit status transition. All legality
// checks live in the transition table.
func (s *Service) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status string, resultNote *string) (*ServiceOrder, error) {
	var o *ServiceOrder
	err := db.WithTx(ctx, s.pool, func(ctx context.Context) error {
		var err error
		o, err = s.orders.GetByID(ctx, id)
		if err != nil {
			return apperr.NotFound("service order %s not found", id)
		}
		if !CanTransitionOrder(o.Status, status) {
			return apperr.Invariant("service order cannot move from %s to %s", o.Status, status)
		}
		o.Status = status
		if resultNote != nil {
			o.ResultNote = resultNote
		}
		if status == OrderCompleted || status == OrderCompletedWithResult {
			now := time.Now()
			o.PerformedAt = &now
			if o.PerformedByID == nil {
				performer := o.AssignedDoctorID
				o.PerformedByID = &performer
			}
		}
		return s.orders.Update(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// ResultEntry is one measured indicator value submitted for an order.
type ResultEntry struct {
	IndicatorID uuid.UUID `json:"indicator_id"`
	Value       *float64  `json:"value,omitempty"`
	Note        *string   `json:"note,omitempty"`
}

// RecordResultsInput carries a full result set for an order. The set replaces
// any previously recorded results.
type RecordResultsInput struct {
	PerformedByID *uuid.UUID    `json:"performed_by_id,omitempty"`
	PerformedAt   *time.Time    `json:"performed_at,omitempty"`
	ResultNote    *string       `json:"result_note,omitempty"`
	Entries       []ResultEntry `json:"entries"`
}

// RecordResults validates the submitted values against the service's
// indicator mappings, grades each against its normal range, and moves the
// order to COMPLETED_WITH_RESULT.
func (s *Service) RecordResults(ctx context.Context, orderID uuid.UUID, in RecordResultsInput) (*ServiceOrder, error) {
	if len(in.Entries) == 0 {
		return nil, apperr.Validation("at least one indicator result is required")
	}
	var o *ServiceOrder
	err := db.WithTx(ctx, s.pool, func(ctx context.Context) error {
		var err error
		o, err = s.orders.GetByID(ctx, orderID)
		if err != nil {
			return apperr.NotFound("service order %s not found", orderID)
		}
		if o.Status == OrderCancelled {
			return apperr.Invariant("service order %s is cancelled", orderID)
		}
		if o.Status != OrderCompletedWithResult && !CanTransitionOrder(o.Status, OrderCompletedWithResult) {
			return apperr.Invariant("service order cannot move from %s to %s", o.Status, OrderCompletedWithResult)
		}

		mappings, err := s.catalog.ListServiceIndicators(ctx, o.ServiceID)
		if err != nil {
			return err
		}
		byIndicator := make(map[uuid.UUID]*catalog.ServiceIndicatorDetail, len(mappings))
		for _, m := range mappings {
			byIndicator[m.IndicatorID] = m
		}

		seen := make(map[uuid.UUID]bool, len(in.Entries))
		results := make([]*IndicatorResult, 0, len(in.Entries))
		for _, e := range in.Entries {
			m, ok := byIndicator[e.IndicatorID]
			if !ok {
				return apperr.Validation("indicator %s is not mapped to this service", e.IndicatorID)
			}
			if seen[e.IndicatorID] {
				return apperr.Validation("duplicate result for indicator %s", m.Template.Name)
			}
			seen[e.IndicatorID] = true
			results = append(results, &IndicatorResult{
				IndicatorID: e.IndicatorID,
				Name:        m.Template.Name,
				Unit:        m.Template.Unit,
				Value:       e.Value,
				Evaluation:  Evaluate(e.Value, m.Template.NormalMin, m.Template.NormalMax),
				Note:        e.Note,
			})
		}
		for id, m := range byIndicator {
			if m.Required && !seen[id] {
				return apperr.Validation("required indicator %s is missing a result", m.Template.Name)
			}
		}

		if err := s.results.ReplaceForOrder(ctx, orderID, results); err != nil {
			return err
		}

		o.Status = OrderCompletedWithResult
		at := time.Now()
		if in.PerformedAt != nil {
			at = *in.PerformedAt
		}
		o.PerformedAt = &at
		performer := o.AssignedDoctorID
		if in.PerformedByID != nil {
			performer = *in.PerformedByID
		}
		o.PerformedByID = &performer
		if in.ResultNote != nil {
			o.ResultNote = in.ResultNote
		}
		return s.orders.Update(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Service) ListResults(ctx context.Context, orderID uuid.UUID) ([]*IndicatorResult, error) {
	if _, err := s.orders.GetByID(ctx, orderID); err != nil {
		return nil, apperr.NotFound("service order %s not found", orderID)
	}
	return s.results.ListByOrder(ctx, orderID)
}
