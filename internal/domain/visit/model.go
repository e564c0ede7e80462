package visit

import (
	"time"

	"github.com/google/uuid"
)

// Visit statuses. COMPLETED and CANCELLED are terminal.
const (
	StatusOpen      = "OPEN"
	StatusCompleted = "COMPLETED"
	StatusCancelled = "CANCELLED"
)

// Service order statuses.
const (
	OrderPending             = "PENDING"
	OrderScheduled           = "SCHEDULED"
	OrderInProgress          = "IN_PROGRESS"
	OrderCompleted           = "COMPLETED"
	OrderCompletedWithResult = "COMPLETED_WITH_RESULT"
	OrderCancelled           = "CANCELLED"
)

// Indicator result evaluations against the template's normal range.
const (
	EvalLow     = "LOW"
	EvalNormal  = "NORMAL"
	EvalHigh    = "HIGH"
	EvalUnknown = "UNKNOWN"
)

// orderTransitions is the full legal-transition table for service orders.
// Every status write goes through it; terminal states have no outgoing edges.
var orderTransitions = map[string]map[string]bool{
	OrderPending: {
		OrderScheduled: true, OrderInProgress: true, OrderCompleted: true,
		OrderCompletedWithResult: true, OrderCancelled: true,
	},
	OrderScheduled: {
		OrderInProgress: true, OrderCompleted: true,
		OrderCompletedWithResult: true, OrderCancelled: true,
	},
	OrderInProgress: {
		OrderCompleted: true, OrderCompletedWithResult: true, OrderCancelled: true,
	},
}

// CanTransitionOrder reports whether a service order may move from one status
// to another.
func CanTransitionOrder(from, to string) bool {
	return orderTransitions[from][to]
}

// Visit maps to the visit table. A visit is opened by checking in a confirmed
// appointment and owns the service orders placed during the encounter.
type Visit struct {
	ID                   uuid.UUID `db:"id" json:"id"`
	AppointmentID        uuid.UUID `db:"appointment_id" json:"appointment_id"`
	PatientID            uuid.UUID `db:"patient_id" json:"patient_id"`
	Status               string    `db:"status" json:"status"`
	ProvisionalDiagnosis *string   `db:"provisional_diagnosis" json:"provisional_diagnosis,omitempty"`
	ClinicalNote         *string   `db:"clinical_note" json:"clinical_note,omitempty"`
	DiagnosisNote        *string   `db:"diagnosis_note" json:"diagnosis_note,omitempty"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time `db:"updated_at" json:"updated_at"`
}

// ServiceOrder maps to the service_order table.
type ServiceOrder struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	VisitID          uuid.UUID  `db:"visit_id" json:"visit_id"`
	ServiceID        uuid.UUID  `db:"service_id" json:"service_id"`
	AssignedDoctorID uuid.UUID  `db:"assigned_doctor_id" json:"assigned_doctor_id"`
	PerformedByID    *uuid.UUID `db:"performed_by_id" json:"performed_by_id,omitempty"`
	PerformedAt      *time.Time `db:"performed_at" json:"performed_at,omitempty"`
	Status           string     `db:"status" json:"status"`
	Note             *string    `db:"note" json:"note,omitempty"`
	ResultNote       *string    `db:"result_note" json:"result_note,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// Open reports whether the order still blocks visit completion.
func (o *ServiceOrder) Open() bool {
	switch o.Status {
	case OrderPending, OrderScheduled, OrderInProgress:
		return true
	}
	return false
}

// Resolved reports whether the order counts for billing and prescription
// gating. Cancelled orders are resolved but excluded from billing separately.
func (o *ServiceOrder) Resolved() bool {
	return !o.Open()
}

// IndicatorResult maps to the indicator_result table. Name and Unit are
// snapshotted from the template at record time.
type IndicatorResult struct {
	ID          uuid.UUID `db:"id" json:"id"`
	OrderID     uuid.UUID `db:"order_id" json:"order_id"`
	IndicatorID uuid.UUID `db:"indicator_id" json:"indicator_id"`
	Name        string    `db:"name" json:"name"`
	Unit        *string   `db:"unit" json:"unit,omitempty"`
	Value       *float64  `db:"value" json:"value,omitempty"`
	Evaluation  string    `db:"evaluation" json:"evaluation"`
	Note        *string   `db:"note" json:"note,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Evaluate grades a measured value against a normal range. Open sides are
// not checked; a range with neither side yields UNKNOWN.
func Evaluate(value *float64, normalMin, normalMax *float64) string {
	if value == nil || (normalMin == nil && normalMax == nil) {
		return EvalUnknown
	}
	if normalMin != nil && *value < *normalMin {
		return EvalLow
	}
	if normalMax != nil && *value > *normalMax {
		return EvalHigh
	}
	return EvalNormal
}
