package pharmacy

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicsys/clinic/internal/platform/apperr"
	"github.com/clinicsys/clinic/internal/platform/db"
)

type Service struct {
	pool        *pgxpool.Pool
	medications MedicationRepository
	batches     BatchRepository
}

func NewService(pool *pgxpool.Pool, meds MedicationRepository, batches BatchRepository) *Service {
	return &Service{pool: pool, medications: meds, batches: batches}
}

// -- Medications --

func (s *Service) CreateMedication(ctx context.Context, m *Medication) error {
	m.Code = strings.TrimSpace(m.Code)
	m.Name = strings.TrimSpace(m.Name)
	if m.Code == "" {
		return apperr.Validation("medication code is required")
	}
	if m.Name == "" {
		return apperr.Validation("medication name is required")
	}
	if m.UnitPrice < 0 {
		return apperr.Validation("unit price must not be negative")
	}
	if existing, err := s.medications.GetByCode(ctx, m.Code); err == nil && existing != nil {
		return apperr.Conflict("medication code %s already exists", m.Code)
	}
	// Stock always enters through batches.
	m.StockQuantity = 0
	return s.medications.Create(ctx, m)
}

func (s *Service) GetMedication(ctx context.Context, id uuid.UUID) (*Medication, error) {
	m, err := s.medications.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.NotFound("medication %s not found", id)
	}
	return m, nil
}

func (s *Service) UpdateMedication(ctx context.Context, m *Medication) error {
	current, err := s.medications.GetByID(ctx, m.ID)
	if err != nil {
		return apperr.NotFound("medication %s not found", m.ID)
	}
	m.Code = strings.TrimSpace(m.Code)
	m.Name = strings.TrimSpace(m.Name)
	if m.Code == "" || m.Name == "" {
		return apperr.Validation("medication code and name are required")
	}
	if m.UnitPrice < 0 {
		return apperr.Validation("unit price must not be negative")
	}
	if m.Code != current.Code {
		if existing, err := s.medications.GetByCode(ctx, m.Code); err == nil && existing != nil {
			return apperr.Conflict("medication code %s already exists", m.Code)
		}
	}
	return s.medications.Update(ctx, m)
}

func (s *Service) DeleteMedication(ctx context.Context, id uuid.UUID) error {
	m, err := s.medications.GetByID(ctx, id)
	if err != nil {
		return apperr.NotFound("medication %s not found", id)
	}
	if m.StockQuantity > 0 {
		return apperr.Invariant("medication %s still has %d units on hand", m.Code, m.StockQuantity)
	}
	return s.medications.Delete(ctx, id)
}

func (s *Service) ListMedications(ctx context.Context, search string, limit, offset int) ([]*Medication, int, error) {
	return s.medications.List(ctx, search, limit, offset)
}

// -- Batches --

// BatchInput carries a batch create or update request. TotalUnits may be
// given directly or derived from PackageCount times UnitsPerPackage; when both
// forms are present they must agree.
type BatchInput struct {
	MedicationID    uuid.UUID  `json:"medication_id"`
	BatchCode       string     `json:"batch_code"`
	Origin          *string    `json:"origin,omitempty"`
	ManufactureDate *time.Time `json:"manufacture_date,omitempty"`
	ExpiryDate      *time.Time `json:"expiry_date,omitempty"`
	UnitPrice       *float64   `json:"unit_price,omitempty"`
	PackageCount    *int64     `json:"package_count,omitempty"`
	UnitsPerPackage *int64     `json:"units_per_package,omitempty"`
	TotalUnits      *int64     `json:"total_units,omitempty"`
}

func resolveTotalUnits(in BatchInput) (int64, error) {
	var derived *int64
	if in.PackageCount != nil && in.UnitsPerPackage != nil {
		if *in.PackageCount <= 0 || *in.UnitsPerPackage <= 0 {
			return 0, apperr.Validation("package count and units per package must be positive")
		}
		d := *in.PackageCount * *in.UnitsPerPackage
		derived = &d
	}
	switch {
	case in.TotalUnits != nil && derived != nil:
		if *in.TotalUnits != *derived {
			return 0, apperr.Validation("total units %d does not match %d packages of %d",
				*in.TotalUnits, *in.PackageCount, *in.UnitsPerPackage)
		}
		return *in.TotalUnits, nil
	case in.TotalUnits != nil:
		if *in.TotalUnits <= 0 {
			return 0, apperr.Validation("total units must be positive")
		}
		return *in.TotalUnits, nil
	case derived != nil:
		return *derived, nil
	default:
		return 0, apperr.Validation("batch quantity is required")
	}
}

// CreateBatch registers a received batch and raises the medication stock by
// the batch total in the same transaction.
func (s *Service) CreateBatch(ctx context.Context, in BatchInput) (*MedicationBatch, error) {
	in.BatchCode = strings.TrimSpace(in.BatchCode)
	if in.MedicationID == uuid.Nil {
		return nil, apperr.Validation("medication_id is required")
	}
	if in.BatchCode == "" {
		return nil, apperr.Validation("batch code is required")
	}
	total, err := resolveTotalUnits(in)
	if err != nil {
		return nil, err
	}

	var batch *MedicationBatch
	err = db.WithTx(ctx, s.pool, func(ctx context.Context) error {
		if _, err := s.medications.GetByID(ctx, in.MedicationID); err != nil {
			return apperr.NotFound("medication %s not found", in.MedicationID)
		}
		if existing, err := s.batches.GetByCode(ctx, in.MedicationID, in.BatchCode); err == nil && existing != nil {
			return apperr.Conflict("batch code %s already exists for this medication", in.BatchCode)
		}

		batch = &MedicationBatch{
			MedicationID:    in.MedicationID,
			BatchCode:       in.BatchCode,
			Origin:          in.Origin,
			ManufactureDate: in.ManufactureDate,
			ExpiryDate:      in.ExpiryDate,
			UnitPrice:       in.UnitPrice,
			PackageCount:    in.PackageCount,
			UnitsPerPackage: in.UnitsPerPackage,
			QuantityOnHand:  total,
		}
		if err := s.batches.Create(ctx, batch); err != nil {
			return err
		}
		applied, err := s.medications.AdjustStock(ctx, in.MedicationID, total)
		if err != nil {
			return err
		}
		if !applied {
			return apperr.Invariant("stock adjustment failed for medication %s", in.MedicationID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}

// UpdateBatch edits batch fields. A quantity change is applied as a single
// delta to both the batch and its medication.
func (s *Service) UpdateBatch(ctx context.Context, id uuid.UUID, in BatchInput) (*MedicationBatch, error) {
	var batch *MedicationBatch
	err := db.WithTx(ctx, s.pool, func(ctx context.Context) error {
		var err error
		batch, err = s.batches.GetByID(ctx, id)
		if err != nil {
			return apperr.NotFound("batch %s not found", id)
		}

		if code := strings.TrimSpace(in.BatchCode); code != "" && code != batch.BatchCode {
			if existing, err := s.batches.GetByCode(ctx, batch.MedicationID, code); err == nil && existing != nil {
				return apperr.Conflict("batch code %s already exists for this medication", code)
			}
			batch.BatchCode = code
		}
		if in.Origin != nil {
			batch.Origin = in.Origin
		}
		if in.ManufactureDate != nil {
			batch.ManufactureDate = in.ManufactureDate
		}
		if in.ExpiryDate != nil {
			batch.ExpiryDate = in.ExpiryDate
		}
		if in.UnitPrice != nil {
			batch.UnitPrice = in.UnitPrice
		}

		if in.TotalUnits != nil || (in.PackageCount != nil && in.UnitsPerPackage != nil) {
			target, err := resolveTotalUnits(in)
			if err != nil {
				return err
			}
			delta := target - batch.QuantityOnHand
			if delta != 0 {
				applied, err := s.medications.AdjustStock(ctx, batch.MedicationID, delta)
				if err != nil {
					return err
				}
				if !applied {
					return apperr.Invariant("stock for medication %s cannot go negative", batch.MedicationID)
				}
			}
			batch.QuantityOnHand = target
			if in.PackageCount != nil {
				batch.PackageCount = in.PackageCount
			}
			if in.UnitsPerPackage != nil {
				batch.UnitsPerPackage = in.UnitsPerPackage
			}
		}
		return s.batches.Update(ctx, batch)
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}

// DeleteBatch removes a batch and returns its remaining quantity to zero,
// lowering the medication stock by the same amount.
func (s *Service) DeleteBatch(ctx context.Context, id uuid.UUID) error {
	return db.WithTx(ctx, s.pool, func(ctx context.Context) error {
		batch, err := s.batches.GetByID(ctx, id)
		if err != nil {
			return apperr.NotFound("batch %s not found", id)
		}
		if batch.QuantityOnHand > 0 {
			applied, err := s.medications.AdjustStock(ctx, batch.MedicationID, -batch.QuantityOnHand)
			if err != nil {
				return err
			}
			if !applied {
				return apperr.Invariant("stock for medication %s cannot go negative", batch.MedicationID)
			}
		}
		return s.batches.Delete(ctx, id)
	})
}

func (s *Service) GetBatch(ctx context.Context, id uuid.UUID) (*MedicationBatch, error) {
	b, err := s.batches.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.NotFound("batch %s not found", id)
	}
	return b, nil
}

func (s *Service) ListBatches(ctx context.Context, medicationID uuid.UUID, limit, offset int) ([]*MedicationBatch, int, error) {
	return s.batches.ListByMedication(ctx, medicationID, limit, offset)
}

// -- Ledger operations (used by the dispensing engine) --

// Deduct removes quantity units from the given batch and its medication. It
// joins the caller's transaction and fails with an invariant error on
// insufficiency, leaving nothing applied once the tx rolls back. A batch is
// mandatory: every movement hits a batch and its medication by the same
// delta, which is what keeps medication stock equal to the sum of its
// batches.
func (s *Service) Deduct(ctx context.Context, medicationID uuid.UUID, batchID *uuid.UUID, quantity int64) error {
	return s.move(ctx, medicationID, batchID, -quantity)
}

// Return is the inverse of Deduct.
func (s *Service) Return(ctx context.Context, medicationID uuid.UUID, batchID *uuid.UUID, quantity int64) error {
	return s.move(ctx, medicationID, batchID, quantity)
}

func (s *Service) move(ctx context.Context, medicationID uuid.UUID, batchID *uuid.UUID, delta int64) error {
	if delta == 0 {
		return nil
	}
	if batchID == nil {
		return apperr.Validation("a batch is required to move stock for medication %s", medicationID)
	}
	applied, err := s.batches.AdjustQuantity(ctx, *batchID, delta)
	if err != nil {
		return err
	}
	if !applied {
		return apperr.Invariant("insufficient stock in batch %s", *batchID)
	}
	applied, err = s.medications.AdjustStock(ctx, medicationID, delta)
	if err != nil {
		return err
	}
	if !applied {
		return apperr.Invariant("insufficient stock for medication %s", medicationID)
	}
	return nil
}
