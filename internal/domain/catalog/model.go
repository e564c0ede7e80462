package catalog

import (
	"time"

	"github.com/google/uuid"
)

// MedicalService maps to the medical_service table. BasePrice is the amount
// billed per order of this service.
type MedicalService struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	Code      string     `db:"code" json:"code"`
	Name      string     `db:"name" json:"name"`
	BasePrice float64    `db:"base_price" json:"base_price"`
	RoomID    *uuid.UUID `db:"room_id" json:"room_id,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// IndicatorTemplate maps to the indicator_template table. NormalMin and
// NormalMax bound the normal range used to evaluate measured values; either
// side may be open.
type IndicatorTemplate struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	Unit      *string   `db:"unit" json:"unit,omitempty"`
	NormalMin *float64  `db:"normal_min" json:"normal_min,omitempty"`
	NormalMax *float64  `db:"normal_max" json:"normal_max,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ServiceIndicator maps to the service_indicator table. It binds an indicator
// template to a medical service; Required indicators must carry a result
// before the order counts as fully resulted.
type ServiceIndicator struct {
	ID           uuid.UUID `db:"id" json:"id"`
	ServiceID    uuid.UUID `db:"service_id" json:"service_id"`
	IndicatorID  uuid.UUID `db:"indicator_id" json:"indicator_id"`
	Required     bool      `db:"required" json:"required"`
	DisplayOrder int       `db:"display_order" json:"display_order"`
}

// ServiceIndicatorDetail joins a mapping with its template so callers can
// validate and evaluate results in one pass.
type ServiceIndicatorDetail struct {
	ServiceIndicator
	Template IndicatorTemplate `json:"template"`
}

// WorkShift maps to the work_shift table: which doctor staffs which room on
// which weekday half-day.
type WorkShift struct {
	ID       uuid.UUID    `db:"id" json:"id"`
	DoctorID uuid.UUID    `db:"doctor_id" json:"doctor_id"`
	RoomID   uuid.UUID    `db:"room_id" json:"room_id"`
	Weekday  time.Weekday `db:"weekday" json:"weekday"`
	Morning  bool         `db:"morning" json:"morning"`
}
