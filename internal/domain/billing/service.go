package billing

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
	billings      BillingRepository
	items         BillingItemRepository
	visits        VisitStore
	catalog       Catalog
	prescriptions PrescriptionStore
	stock         Stock
}

func NewService(pool *pgxpool.Pool, billings BillingRepository, items BillingItemRepository,
	visits VisitStore, cat Catalog, prescriptions PrescriptionStore, stock Stock) *Service {
	return &Service{pool: pool, billings: billings, items: items,
		visits: visits, catalog: cat, prescriptions: prescriptions, stock: stock}
}

// GenerateForVisit builds the visit's invoice: one SERVICE line per resolved
// non-cancelled order, one MEDICATION line per prescription item. A visit is
// billed at most once; a second call fails and leaves the first billing
// untouched.
func (s *Service) GenerateForVisit(ctx context.Context, visitID uuid.UUID) (*Detail, error) {
	var detail *Detail
	err := db.WithTx(ctx, s.pool, func(ctx context.Context) error {
		v, err := s.visits.Get(ctx, visitID)
		if err != nil {
			return err
		}
		if v.Status == visit.StatusCancelled {
			return apperr.Invariant("visit %s is cancelled", visitID)
		}
		if existing, err := s.billings.GetByVisit(ctx, visitID); err == nil && existing != nil {
			return apperr.Conflict("visit %s is already billed", visitID)
		}

		b := &Billing{
			VisitID:   visitID,
			PatientID: v.PatientID,
			Status:    StatusUnpaid,
			IssuedAt:  time.Now(),
		}

		items, err := s.buildGeneratedItems(ctx, visitID)
		if err != nil {
			return err
		}
		recalculateTotals(b, items)

		if err := s.billings.Create(ctx, b); err != nil {
			return err
		}
		for _, it := range items {
			it.BillingID = b.ID
			if err := s.items.Create(ctx, it); err != nil {
				return err
			}
		}
		detail = &Detail{Billing: *b, Items: items}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

func (s *Service) buildGeneratedItems(ctx context.Context, visitID uuid.UUID) ([]*BillingItem, error) {
	var items []*BillingItem

	orders, err := s.visits.ListOrders(ctx, visitID)
	if err != nil {
		return nil, err
	}
	for _, o := range orders {
		if !o.Resolved() || o.Status == visit.OrderCancelled {
			continue
		}
		svc, err := s.catalog.GetMedicalService(ctx, o.ServiceID)
		if err != nil {
			return nil, err
		}
		if svc.BasePrice <= 0 {
			continue
		}
		orderID := o.ID
		serviceID := svc.ID
		items = append(items, &BillingItem{
			ItemType:       ItemService,
			Description:    svc.Name,
			Quantity:       1,
			UnitPrice:      round2(svc.BasePrice),
			Amount:         round2(svc.BasePrice),
			ServiceOrderID: &orderID,
			ServiceID:      &serviceID,
		})
	}

	prescriptions, err := s.prescriptions.ListByVisit(ctx, visitID)
	if err != nil {
		return nil, err
	}
	for _, p := range prescriptions {
		d, err := s.prescriptions.Get(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		for _, pi := range d.Items {
			desc := pi.MedicationName
			price := pi.UnitPrice
			if (desc == "" || price == 0) && pi.MedicationID != nil {
				med, err := s.stock.GetMedication(ctx, *pi.MedicationID)
				if err == nil {
					if desc == "" {
						desc = med.Name
					}
					if price == 0 {
						price = med.UnitPrice
					}
				}
			}
			amount := pi.Amount
			if amount == 0 {
				amount = round2(price * float64(pi.Quantity))
			}
			itemID := pi.ID
			items = append(items, &BillingItem{
				ItemType:           ItemMedication,
				Description:        desc,
				Quantity:           pi.Quantity,
				UnitPrice:          round2(price),
				Amount:             amount,
				PrescriptionItemID: &itemID,
				MedicationID:       pi.MedicationID,
			})
		}
	}
	return items, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Detail, error) {
	b, err := s.billings.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.NotFound("billing %s not found", id)
	}
	items, err := s.items.ListByBilling(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Detail{Billing: *b, Items: items}, nil
}

func (s *Service) GetByVisit(ctx context.Context, visitID uuid.UUID) (*Detail, error) {
	b, err := s.billings.GetByVisit(ctx, visitID)
	if err != nil {
		return nil, apperr.NotFound("no billing for visit %s", visitID)
	}
	return s.Get(ctx, b.ID)
}

func (s *Service) List(ctx context.Context, status string, limit, offset int) ([]*Billing, int, error) {
	return s.billings.List(ctx, status, limit, offset)
}

func (s *Service) ListUnbilledVisits(ctx context.Context, limit, offset int) ([]*visit.Visit, int, error) {
	return s.billings.ListUnbilledVisits(ctx, limit, offset)
}

// ItemInput carries a manual billing line.
type ItemInput struct {
	ItemType    string  `json:"item_type"`
	Description string  `json:"description"`
	Quantity    int64   `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
}

func validateItemInput(in ItemInput) error {
	if !validItemTypes[in.ItemType] {
		return apperr.Validation("invalid item type %q", in.ItemType)
	}
	if strings.TrimSpace(in.Description) == "" {
		return apperr.Validation("item description is required")
	}
	if in.Quantity <= 0 {
		return apperr.Validation("item quantity must be positive")
	}
	if in.UnitPrice < 0 {
		return apperr.Validation("item unit price must not be negative")
	}
	return nil
}

// AddManualItem appends a staff-entered line and recomputes the totals.
func (s *Service) AddManualItem(ctx context.Context, billingID uuid.UUID, in ItemInput) (*Detail, error) {
	if err := validateItemInput(in); err != nil {
		return nil, err
	}
	return s.mutateItems(ctx, billingID, func(ctx context.Context, b *Billing) error {
		return s.items.Create(ctx, &BillingItem{
			BillingID:   b.ID,
			ItemType:    in.ItemType,
			Description: strings.TrimSpace(in.Description),
			Quantity:    in.Quantity,
			UnitPrice:   round2(in.UnitPrice),
			Amount:      round2(in.UnitPrice * float64(in.Quantity)),
		})
	})
}

// UpdateItem edits a line; it must belong to the billing.
func (s *Service) UpdateItem(ctx context.Context, billingID, itemID uuid.UUID, in ItemInput) (*Detail, error) {
	if err := validateItemInput(in); err != nil {
		return nil, err
	}
	return s.mutateItems(ctx, billingID, func(ctx context.Context, b *Billing) error {
		it, err := s.items.GetByID(ctx, itemID)
		if err != nil {
			return apperr.NotFound("billing item %s not found", itemID)
		}
		if it.BillingID != billingID {
			return apperr.Validation("item %s does not belong to billing %s", itemID, billingID)
		}
		it.ItemType = in.ItemType
		it.Description = strings.TrimSpace(in.Description)
		it.Quantity = in.Quantity
		it.UnitPrice = round2(in.UnitPrice)
		it.Amount = round2(in.UnitPrice * float64(in.Quantity))
		return s.items.Update(ctx, it)
	})
}

// DeleteItem removes a line; it must belong to the billing.
func (s *Service) DeleteItem(ctx context.Context, billingID, itemID uuid.UUID) (*Detail, error) {
	return s.mutateItems(ctx, billingID, func(ctx context.Context, b *Billing) error {
		it, err := s.items.GetByID(ctx, itemID)
		if err != nil {
			return apperr.NotFound("billing item %s not found", itemID)
		}
		if it.BillingID != billingID {
			return apperr.Validation("item %s does not belong to billing %s", itemID, billingID)
		}
		return s.items.Delete(ctx, itemID)
	})
}

// mutateItems wraps an item mutation with the billing-state guard and the
// mandatory total recalculation, all inside one unit of work.
func (s *Service) mutateItems(ctx context.Context, billingID uuid.UUID, fn func(ctx context.Context, b *Billing) error) (*Detail, error) {
	var detail *Detail
	err := db.WithTx(ctx, s.pool, func(ctx context.Context) error {
		b, err := s.billings.GetByID(ctx, billingID)
		if err != nil {
			return apperr.NotFound("billing %s not found", billingID)
		}
		if b.Status != StatusUnpaid {
			return apperr.Invariant("billing %s is %s and can no longer change", billingID, b.Status)
		}
		if err := fn(ctx, b); err != nil {
			return err
		}
		items, err := s.items.ListByBilling(ctx, billingID)
		if err != nil {
			return err
		}
		recalculateTotals(b, items)
		if err := s.billings.Update(ctx, b); err != nil {
			return err
		}
		detail = &Detail{Billing: *b, Items: items}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// UpdateStatus settles or cancels an unpaid billing.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string, paymentMethod, notes *string) (*Billing, error) {
	if status != StatusPaid && status != StatusCancelled {
		return nil, apperr.Validation("invalid billing status %q", status)
	}
	var b *Billing
	err := db.WithTx(ctx, s.pool, func(ctx context.Context) error {
		var err error
		b, err = s.billings.GetByID(ctx, id)
		if err != nil {
			return apperr.NotFound("billing %s not found", id)
		}
		if b.Status != StatusUnpaid {
			return apperr.Invariant("billing %s is already %s", id, b.Status)
		}
		b.Status = status
		if paymentMethod != nil {
			b.PaymentMethod = paymentMethod
		}
		if notes != nil {
			b.Notes = notes
		}
		return s.billings.Update(ctx, b)
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}
