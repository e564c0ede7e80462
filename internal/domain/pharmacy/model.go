package pharmacy

import (
	"time"

	"github.com/google/uuid"
)

// Medication maps to the medication table. StockQuantity is the sum of the
// medication's batch quantities; it is only ever changed by applying the same
// delta that changed a batch.
type Medication struct {
	ID            uuid.UUID `db:"id" json:"id"`
	Code          string    `db:"code" json:"code"`
	Name          string    `db:"name" json:"name"`
	Unit          string    `db:"unit" json:"unit"`
	UnitPrice     float64   `db:"unit_price" json:"unit_price"`
	StockQuantity int64     `db:"stock_quantity" json:"stock_quantity"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// MedicationBatch maps to the medication_batch table. BatchCode is unique per
// medication.
type MedicationBatch struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	MedicationID    uuid.UUID  `db:"medication_id" json:"medication_id"`
	BatchCode       string     `db:"batch_code" json:"batch_code"`
	Origin          *string    `db:"origin" json:"origin,omitempty"`
	ManufactureDate *time.Time `db:"manufacture_date" json:"manufacture_date,omitempty"`
	ExpiryDate      *time.Time `db:"expiry_date" json:"expiry_date,omitempty"`
	UnitPrice       *float64   `db:"unit_price" json:"unit_price,omitempty"`
	PackageCount    *int64     `db:"package_count" json:"package_count,omitempty"`
	UnitsPerPackage *int64     `db:"units_per_package" json:"units_per_package,omitempty"`
	QuantityOnHand  int64      `db:"quantity_on_hand" json:"quantity_on_hand"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}
