package pharmacy

import (
	"context"

	"github.com/google/uuid"
)

type MedicationRepository interface {
	Create(ctx context.Context, m *Medication) error
	GetByID(ctx context.Context, id uuid.UUID) (*Medication, error)
	GetByCode(ctx context.Context, code string) (*Medication, error)
	Update(ctx context.Context, m *Medication) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, search string, limit, offset int) ([]*Medication, int, error)
	// AdjustStock atomically applies delta to stock_quantity, refusing any
	// change that would take it negative. The boolean reports whether the
	// update applied.
	AdjustStock(ctx context.Context, id uuid.UUID, delta int64) (bool, error)
}

type BatchRepository interface {
	Create(ctx context.Context, b *MedicationBatch) error
	GetByID(ctx context.Context, id uuid.UUID) (*MedicationBatch, error)
	GetByCode(ctx context.Context, medicationID uuid.UUID, batchCode string) (*MedicationBatch, error)
	Update(ctx context.Context, b *MedicationBatch) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByMedication(ctx context.Context, medicationID uuid.UUID, limit, offset int) ([]*MedicationBatch, int, error)
	// AdjustQuantity mirrors MedicationRepository.AdjustStock for a batch row.
	AdjustQuantity(ctx context.Context, id uuid.UUID, delta int64) (bool, error)
}
