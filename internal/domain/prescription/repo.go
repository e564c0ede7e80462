package prescription

import (
	"context"

	"github.com/google/uuid"

	"github.com/clinicsys/clinic/internal/domain/catalog"
	"github.com/clinicsys/clinic/internal/domain/pharmacy"
	"github.com/clinicsys/clinic/internal/domain/visit"
)

type PrescriptionRepository interface {
	Create(ctx context.Context, p *Prescription) error
	GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error)
	Update(ctx context.Context, p *Prescription) error
	ListByVisit(ctx context.Context, visitID uuid.UUID) ([]*Prescription, error)
	List(ctx context.Context, status string, limit, offset int) ([]*Prescription, int, error)
}

type ItemRepository interface {
	// ReplaceForPrescription deletes the prescription's existing items and
	// inserts the given set in one pass.
	ReplaceForPrescription(ctx context.Context, prescriptionID uuid.UUID, items []*PrescriptionItem) error
	ListByPrescription(ctx context.Context, prescriptionID uuid.UUID) ([]*PrescriptionItem, error)
}

// VisitStore is the slice of the visit service the gating check reads.
// Satisfied by visit.Service.
type VisitStore interface {
	Get(ctx context.Context, id uuid.UUID) (*visit.Visit, error)
	ListOrders(ctx context.Context, visitID uuid.UUID) ([]*visit.ServiceOrder, error)
}

// Catalog resolves services and their indicator mappings for the gating
// check. Satisfied by catalog.Service.
type Catalog interface {
	GetMedicalService(ctx context.Context, id uuid.UUID) (*catalog.MedicalService, error)
	ListServiceIndicators(ctx context.Context, serviceID uuid.UUID) ([]*catalog.ServiceIndicatorDetail, error)
}

// Stock is the pharmacy surface the dispensing engine uses: snapshot lookups
// at prescription time and ledger movements at the DISPENSED boundary.
// Satisfied by pharmacy.Service.
type Stock interface {
	GetMedication(ctx context.Context, id uuid.UUID) (*pharmacy.Medication, error)
	GetBatch(ctx context.Context, id uuid.UUID) (*pharmacy.MedicationBatch, error)
	Deduct(ctx context.Context, medicationID uuid.UUID, batchID *uuid.UUID, quantity int64) error
	Return(ctx context.Context, medicationID uuid.UUID, batchID *uuid.UUID, quantity int64) error
}
