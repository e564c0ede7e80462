package prescription

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicsys/clinic/internal/domain/visit"
	"github.com/clinicsys/clinic/internal/platform/apperr"
	"github.com/clinicsys/clinic/internal/platform/db"
)

type Service struct {
	pool          *pgxpool.Pool
	prescriptions PrescriptionRepository
	items         ItemRepository
	visits        VisitStore
	catalog       Catalog
	stock         Stock
}

func NewService(pool *pgxpool.Pool, prescriptions PrescriptionRepository, items ItemRepository,
	visits VisitStore, cat Catalog, stock Stock) *Service {
	return &Service{pool: pool, prescriptions: prescriptions, items: items,
		visits: visits, catalog: cat, stock: stock}
}

// ItemInput is one prescribed line. Either a catalog medication (directly or
// through a batch) or a free-text name must be given.
type ItemInput struct {
	MedicationID *uuid.UUID `json:"medication_id,omitempty"`
	BatchID      *uuid.UUID `json:"batch_id,omitempty"`
	Name         string     `json:"name,omitempty"`
	Dosage       *string    `json:"dosage,omitempty"`
	Frequency    *string    `json:"frequency,omitempty"`
	Duration     *string    `json:"duration,omitempty"`
	Instruction  *string    `json:"instruction,omitempty"`
	Quantity     int64      `json:"quantity"`
	UnitPrice    *float64   `json:"unit_price,omitempty"`
}

// CreateInput carries a new prescription for a visit.
type CreateInput struct {
	VisitID        uuid.UUID   `json:"visit_id"`
	PrescribedByID *uuid.UUID  `json:"prescribed_by_id,omitempty"`
	Notes          *string     `json:"notes,omitempty"`
	Items          []ItemInput `json:"items"`
}

// Create gates on the visit's service orders and snapshots prices before
// writing. No inventory moves here; stock is touched only when the
// prescription is dispensed.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Detail, error) {
	if in.VisitID == uuid.Nil {
		return nil, apperr.Validation("visit_id is required")
	}
	if len(in.Items) == 0 {
		return nil, apperr.Validation("at least one prescription item is required")
	}

	var detail *Detail
	err := db.WithTx(ctx, s.pool, func(ctx context.Context) error {
		v, err := s.visits.Get(ctx, in.VisitID)
		if err != nil {
			return err
		}
		if v.Status == visit.StatusCancelled {
			return apperr.Invariant("visit %s is cancelled", in.VisitID)
		}
		if err := s.checkOrdersResolved(ctx, in.VisitID); err != nil {
			return err
		}

		items, err := s.buildItems(ctx, in.Items)
		if err != nil {
			return err
		}

		p := &Prescription{
			VisitID:        in.VisitID,
			PrescribedByID: in.PrescribedByID,
			Status:         StatusWaiting,
			IssuedAt:       time.Now(),
			Notes:          in.Notes,
		}
		if err := s.prescriptions.Create(ctx, p); err != nil {
			return err
		}
		if err := s.items.ReplaceForPrescription(ctx, p.ID, items); err != nil {
			return err
		}
		detail = &Detail{Prescription: *p, Items: items}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// checkOrdersResolved enforces the prescription gate: every order resolved,
// and orders whose service defines a required indicator specifically
// COMPLETED_WITH_RESULT. Errors name the offending service.
func (s *Service) checkOrdersResolved(ctx context.Context, visitID uuid.UUID) error {
	orders, err := s.visits.ListOrders(ctx, visitID)
	if err != nil {
		return err
	}
	for _, o := range orders {
		svc, err := s.catalog.GetMedicalService(ctx, o.ServiceID)
		if err != nil {
			return err
		}
		if o.Open() {
			return apperr.Invariant("service %s still has an unresolved order (%s)", svc.Name, o.Status)
		}
		if o.Status == visit.OrderCancelled || o.Status == visit.OrderCompletedWithResult {
			continue
		}
		mappings, err := s.catalog.ListServiceIndicators(ctx, o.ServiceID)
		if err != nil {
			return err
		}
		for _, m := range mappings {
			if m.Required {
				return apperr.Invariant("service %s requires recorded results before prescribing", svc.Name)
			}
		}
	}
	return nil
}

func (s *Service) buildItems(ctx context.Context, inputs []ItemInput) ([]*PrescriptionItem, error) {
	seenMed := make(map[uuid.UUID]bool, len(inputs))
	seenName := make(map[string]bool, len(inputs))

	items := make([]*PrescriptionItem, 0, len(inputs))
	for _, in := range inputs {
		if in.Quantity <= 0 {
			return nil, apperr.Validation("item quantity must be positive")
		}

		item := &PrescriptionItem{
			Dosage:      in.Dosage,
			Frequency:   in.Frequency,
			Duration:    in.Duration,
			Instruction: in.Instruction,
			Quantity:    in.Quantity,
		}

		switch {
		case in.BatchID != nil:
			batch, err := s.stock.GetBatch(ctx, *in.BatchID)
			if err != nil {
				return nil, err
			}
			if in.MedicationID != nil && *in.MedicationID != batch.MedicationID {
				return nil, apperr.Validation("batch %s does not belong to the given medication", batch.BatchCode)
			}
			med, err := s.stock.GetMedication(ctx, batch.MedicationID)
			if err != nil {
				return nil, err
			}
			medID := batch.MedicationID
			item.MedicationID = &medID
			item.BatchID = in.BatchID
			item.MedicationName = med.Name
			item.UnitPrice = med.UnitPrice
			if batch.UnitPrice != nil {
				item.UnitPrice = *batch.UnitPrice
			}
			item.ExpiryDate = batch.ExpiryDate

		case in.MedicationID != nil:
			med, err := s.stock.GetMedication(ctx, *in.MedicationID)
			if err != nil {
				return nil, err
			}
			item.MedicationID = in.MedicationID
			item.MedicationName = med.Name
			item.UnitPrice = med.UnitPrice

		default:
			name := strings.TrimSpace(in.Name)
			if name == "" {
				return nil, apperr.Validation("an item needs a medication, a batch, or a name")
			}
			item.MedicationName = name
			if in.UnitPrice != nil {
				item.UnitPrice = *in.UnitPrice
			}
		}

		if item.MedicationID != nil {
			if seenMed[*item.MedicationID] {
				return nil, apperr.Conflict("medication %s appears more than once in the prescription", item.MedicationName)
			}
			seenMed[*item.MedicationID] = true
		}
		key := strings.ToLower(item.MedicationName)
		if seenName[key] {
			return nil, apperr.Conflict("medication %s appears more than once in the prescription", item.MedicationName)
		}
		seenName[key] = true

		item.UnitPrice = round2(item.UnitPrice)
		item.Amount = round2(item.UnitPrice * float64(item.Quantity))
		items = append(items, item)
	}
	return items, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Detail, error) {
	p, err := s.prescriptions.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.NotFound("prescription %s not found", id)
	}
	items, err := s.items.ListByPrescription(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Detail{Prescription: *p, Items: items}, nil
}

func (s *Service) ListByVisit(ctx context.Context, visitID uuid.UUID) ([]*Prescription, error) {
	return s.prescriptions.ListByVisit(ctx, visitID)
}

func (s *Service) List(ctx context.Context, status string, limit, offset int) ([]*Prescription, int, error) {
	return s.prescriptions.List(ctx, status, limit, offset)
}

// UpdateItems replaces the item set. Only allowed while the prescription has
// not been dispensed.
func (s *Service) UpdateItems(ctx context.Context, id uuid.UUID, inputs []ItemInput) (*Detail, error) {
	if len(inputs) == 0 {
		return nil, apperr.Validation("at least one prescription item is required")
	}
	var detail *Detail
	err := db.WithTx(ctx, s.pool, func(ctx context.Context) error {
		p, err := s.prescriptions.GetByID(ctx, id)
		if err != nil {
			return apperr.NotFound("prescription %s not found", id)
		}
		if p.Status == StatusDispensed || p.Status == StatusCancelled {
			return apperr.Invariant("prescription %s is %s and its items can no longer change", id, p.Status)
		}
		items, err := s.buildItems(ctx, inputs)
		if err != nil {
			return err
		}
		if err := s.items.ReplaceForPrescription(ctx, id, items); err != nil {
			return err
		}
		detail = &Detail{Prescription: *p, Items: items}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// UpdateStatus moves the prescription between statuses. Entering DISPENSED
// deducts every catalog-backed item from inventory in the same unit of work;
// any insufficiency aborts the whole transition. Leaving DISPENSED returns
// the same quantities.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string, pharmacistNote *string) (*Prescription, error) {
	if !validStatuses[status] {
		return nil, apperr.Validation("invalid prescription status %q", status)
	}
	var p *Prescription
	err := db.WithTx(ctx, s.pool, func(ctx context.Context) error {
		var err error
		p, err = s.prescriptions.GetByID(ctx, id)
		if err != nil {
			return apperr.NotFound("prescription %s not found", id)
		}
		if p.Status == StatusCancelled {
			return apperr.Invariant("prescription %s is cancelled", id)
		}
		if p.Status == status {
			return nil
		}

		entering := status == StatusDispensed
		leaving := p.Status == StatusDispensed
		if entering || leaving {
			items, err := s.items.ListByPrescription(ctx, id)
			if err != nil {
				return err
			}
			for _, it := range items {
				// Only batch-backed items move inventory; a medication-only
				// or free-text line has no batch to draw from, and deducting
				// the medication alone would desync stock from its batches.
				if it.MedicationID == nil || it.BatchID == nil {
					continue
				}
				if entering {
					err = s.stock.Deduct(ctx, *it.MedicationID, it.BatchID, it.Quantity)
				} else {
					err = s.stock.Return(ctx, *it.MedicationID, it.BatchID, it.Quantity)
				}
				if err != nil {
					return err
				}
			}
			if entering {
				now := time.Now()
				p.DispensedAt = &now
			} else {
				p.DispensedAt = nil
			}
		}

		p.Status = status
		if pharmacistNote != nil {
			p.PharmacistNote = pharmacistNote
		}
		return s.prescriptions.Update(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}
