package prescription

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Prescription statuses. Inventory moves only when a transition crosses the
// DISPENSED boundary in either direction.
const (
	StatusWaiting   = "WAITING"
	StatusPreparing = "PREPARING"
	StatusDispensed = "DISPENSED"
	StatusCancelled = "CANCELLED"
)

var validStatuses = map[string]bool{
	StatusWaiting: true, StatusPreparing: true,
	StatusDispensed: true, StatusCancelled: true,
}

// Prescription maps to the prescription table.
type Prescription struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	VisitID        uuid.UUID  `db:"visit_id" json:"visit_id"`
	PrescribedByID *uuid.UUID `db:"prescribed_by_id" json:"prescribed_by_id,omitempty"`
	Status         string     `db:"status" json:"status"`
	IssuedAt       time.Time  `db:"issued_at" json:"issued_at"`
	DispensedAt    *time.Time `db:"dispensed_at" json:"dispensed_at,omitempty"`
	PharmacistNote *string    `db:"pharmacist_note" json:"pharmacist_note,omitempty"`
	Notes          *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// PrescriptionItem maps to the prescription_item table. UnitPrice and
// ExpiryDate are snapshots taken at prescription time; later catalog edits do
// not change them.
type PrescriptionItem struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	PrescriptionID uuid.UUID  `db:"prescription_id" json:"prescription_id"`
	MedicationID   *uuid.UUID `db:"medication_id" json:"medication_id,omitempty"`
	BatchID        *uuid.UUID `db:"batch_id" json:"batch_id,omitempty"`
	MedicationName string     `db:"medication_name" json:"medication_name"`
	Dosage         *string    `db:"dosage" json:"dosage,omitempty"`
	Frequency      *string    `db:"frequency" json:"frequency,omitempty"`
	Duration       *string    `db:"duration" json:"duration,omitempty"`
	Instruction    *string    `db:"instruction" json:"instruction,omitempty"`
	Quantity       int64      `db:"quantity" json:"quantity"`
	UnitPrice      float64    `db:"unit_price" json:"unit_price"`
	ExpiryDate     *time.Time `db:"expiry_date" json:"expiry_date,omitempty"`
	Amount         float64    `db:"amount" json:"amount"`
}

// Detail joins a prescription with its items.
type Detail struct {
	Prescription
	Items []*PrescriptionItem `json:"items"`
}

// round2 rounds half away from zero to two decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
