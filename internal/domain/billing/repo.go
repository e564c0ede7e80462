package billing

import (
	"context"

	"github.com/google/uuid"

	"github.com/clinicsys/clinic/internal/domain/catalog"
	"github.com/clinicsys/clinic/internal/domain/pharmacy"
	"github.com/clinicsys/clinic/internal/domain/prescription"
	"github.com/clinicsys/clinic/internal/domain/visit"
)

type BillingRepository interface {
	Create(ctx context.Context, b *Billing) error
	GetByID(ctx context.Context, id uuid.UUID) (*Billing, error)
	GetByVisit(ctx context.Context, visitID uuid.UUID) (*Billing, error)
	Update(ctx context.Context, b *Billing) error
	List(ctx context.Context, status string, limit, offset int) ([]*Billing, int, error)
	// ListUnbilledVisits returns completed visits that have no billing yet,
	// the cashier's work queue.
	ListUnbilledVisits(ctx context.Context, limit, offset int) ([]*visit.Visit, int, error)
}

type BillingItemRepository interface {
	Create(ctx context.Context, it *BillingItem) error
	GetByID(ctx context.Context, id uuid.UUID) (*BillingItem, error)
	Update(ctx context.Context, it *BillingItem) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByBilling(ctx context.Context, billingID uuid.UUID) ([]*BillingItem, error)
}

// VisitStore is the slice of the visit service the aggregator reads.
// Satisfied by visit.Service.
type VisitStore interface {
	Get(ctx context.Context, id uuid.UUID) (*visit.Visit, error)
	ListOrders(ctx context.Context, visitID uuid.UUID) ([]*visit.ServiceOrder, error)
}

// Catalog resolves service base prices. Satisfied by catalog.Service.
type Catalog interface {
	GetMedicalService(ctx context.Context, id uuid.UUID) (*catalog.MedicalService, error)
}

// PrescriptionStore provides the visit's prescriptions and their items.
// Satisfied by prescription.Service.
type PrescriptionStore interface {
	ListByVisit(ctx context.Context, visitID uuid.UUID) ([]*prescription.Prescription, error)
	Get(ctx context.Context, id uuid.UUID) (*prescription.Detail, error)
}

// Stock resolves medication names and prices when an item snapshot is
// incomplete. Satisfied by pharmacy.Service.
type Stock interface {
	GetMedication(ctx context.Context, id uuid.UUID) (*pharmacy.Medication, error)
}
