package billing

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Billing statuses.
const (
	StatusUnpaid    = "UNPAID"
	StatusPaid      = "PAID"
	StatusCancelled = "CANCELLED"
)

// Billing item types. Each type feeds its own subtotal.
const (
	ItemService    = "SERVICE"
	ItemMedication = "MEDICATION"
	ItemOther      = "OTHER"
)

var validItemTypes = map[string]bool{
	ItemService: true, ItemMedication: true, ItemOther: true,
}

// Billing maps to the billing table. The three subtotals and the grand total
// are derived from the items and written only by recalculateTotals.
type Billing struct {
	ID              uuid.UUID `db:"id" json:"id"`
	VisitID         uuid.UUID `db:"visit_id" json:"visit_id"`
	PatientID       uuid.UUID `db:"patient_id" json:"patient_id"`
	Status          string    `db:"status" json:"status"`
	PaymentMethod   *string   `db:"payment_method" json:"payment_method,omitempty"`
	IssuedAt        time.Time `db:"issued_at" json:"issued_at"`
	Notes           *string   `db:"notes" json:"notes,omitempty"`
	ServiceTotal    float64   `db:"service_total" json:"service_total"`
	MedicationTotal float64   `db:"medication_total" json:"medication_total"`
	OtherTotal      float64   `db:"other_total" json:"other_total"`
	TotalAmount     float64   `db:"total_amount" json:"total_amount"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// BillingItem maps to the billing_item table. The optional references point
// back at the source row the line was generated from; manual lines carry
// none.
type BillingItem struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	BillingID          uuid.UUID  `db:"billing_id" json:"billing_id"`
	ItemType           string     `db:"item_type" json:"item_type"`
	Description        string     `db:"description" json:"description"`
	Quantity           int64      `db:"quantity" json:"quantity"`
	UnitPrice          float64    `db:"unit_price" json:"unit_price"`
	Amount             float64    `db:"amount" json:"amount"`
	ServiceOrderID     *uuid.UUID `db:"service_order_id" json:"service_order_id,omitempty"`
	PrescriptionItemID *uuid.UUID `db:"prescription_item_id" json:"prescription_item_id,omitempty"`
	ServiceID          *uuid.UUID `db:"service_id" json:"service_id,omitempty"`
	MedicationID       *uuid.UUID `db:"medication_id" json:"medication_id,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
}

// Detail joins a billing with its items.
type Detail struct {
	Billing
	Items []*BillingItem `json:"items"`
}

// round2 rounds half away from zero to two decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// recalculateTotals is the only writer of the four derived total fields. It
// is a pure fold over the items, so repeated calls yield identical values.
func recalculateTotals(b *Billing, items []*BillingItem) {
	var service, medication, other float64
	for _, it := range items {
		switch it.ItemType {
		case ItemService:
			service += it.Amount
		case ItemMedication:
			medication += it.Amount
		default:
			other += it.Amount
		}
	}
	b.ServiceTotal = round2(service)
	b.MedicationTotal = round2(medication)
	b.OtherTotal = round2(other)
	b.TotalAmount = round2(service + medication + other)
}
