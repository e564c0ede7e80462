package pharmacy

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicsys/clinic/internal/platform/db"
)

// =========== Medication Repository ===========

type medicationRepoPG struct{ pool *pgxpool.Pool }

func NewMedicationRepoPG(pool *pgxpool.Pool) MedicationRepository {
	return &medicationRepoPG{pool: pool}
}

func (r *medicationRepoPG) conn(ctx context.Context) db.Querier {
	if q := db.QuerierFromContext(ctx); q != nil {
		return q
	}
	return r.pool
}

const medCols = `id, code, name, unit, unit_price, stock_quantity, created_at, updated_at`

func scanMedication(row pgx.Row) (*Medication, error) {
	var m Medication
	err := row.Scan(&m.ID, &m.Code, &m.Name, &m.Unit, &m.UnitPrice, &m.StockQuantity, &m.CreatedAt, &m.UpdatedAt)
	return &m, err
}

func (r *medicationRepoPG) Create(ctx context.Context, m *Medication) error {
	m.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO medication (id, code, name, unit, unit_price, stock_quantity)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		m.ID, m.Code, m.Name, m.Unit, m.UnitPrice, m.StockQuantity)
	return err
}

func (r *medicationRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Medication, error) {
	return scanMedication(r.conn(ctx).QueryRow(ctx, `SELECT `+medCols+` FROM medication WHERE id = $1`, id))
}

func (r *medicationRepoPG) GetByCode(ctx context.Context, code string) (*Medication, error) {
	return scanMedication(r.conn(ctx).QueryRow(ctx, `SELECT `+medCols+` FROM medication WHERE code = $1`, code))
}

func (r *medicationRepoPG) Update(ctx context.Context, m *Medication) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE medication SET code=$2, name=$3, unit=$4, unit_price=$5, updated_at=NOW()
		WHERE id = $1`,
		m.ID, m.Code, m.Name, m.Unit, m.UnitPrice)
	return err
}

func (r *medicationRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM medication WHERE id = $1`, id)
	return err
}

func (r *medicationRepoPG) List(ctx context.Context, search string, limit, offset int) ([]*Medication, int, error) {
	where := ``
	args := []interface{}{}
	if search != "" {
		where = `WHERE name ILIKE '%' || $1 || '%' OR code ILIKE '%' || $1 || '%'`
		args = append(args, search)
	}
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM medication `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := `SELECT ` + medCols + ` FROM medication ` + where + ` ORDER BY name`
	if search != "" {
		query += ` LIMIT $2 OFFSET $3`
	} else {
		query += ` LIMIT $1 OFFSET $2`
	}
	rows, err := r.conn(ctx).Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Medication
	for rows.Next() {
		m, err := scanMedication(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	return items, total, rows.Err()
}

func (r *medicationRepoPG) AdjustStock(ctx context.Context, id uuid.UUID, delta int64) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE medication SET stock_quantity = stock_quantity + $2, updated_at = NOW()
		WHERE id = $1 AND stock_quantity + $2 >= 0`, id, delta)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// =========== Batch Repository ===========

type batchRepoPG struct{ pool *pgxpool.Pool }

func NewBatchRepoPG(pool *pgxpool.Pool) BatchRepository {
	return &batchRepoPG{pool: pool}
}

func (r *batchRepoPG) conn(ctx context.Context) db.Querier {
	if q := db.QuerierFromContext(ctx); q != nil {
		return q
	}
	return r.pool
}

const batchCols = `id, medication_id, batch_code, origin, manufacture_date, expiry_date,
	unit_price, package_count, units_per_package, quantity_on_hand, created_at, updated_at`

func scanBatch(row pgx.Row) (*MedicationBatch, error) {
	var b MedicationBatch
	err := row.Scan(&b.ID, &b.MedicationID, &b.BatchCode, &b.Origin, &b.ManufactureDate, &b.ExpiryDate,
		&b.UnitPrice, &b.PackageCount, &b.UnitsPerPackage, &b.QuantityOnHand, &b.CreatedAt, &b.UpdatedAt)
	return &b, err
}

func (r *batchRepoPG) Create(ctx context.Context, b *MedicationBatch) error {
	b.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO medication_batch (id, medication_id, batch_code, origin, manufacture_date,
			expiry_date, unit_price, package_count, units_per_package, quantity_on_hand)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		b.ID, b.MedicationID, b.BatchCode, b.Origin, b.ManufactureDate,
		b.ExpiryDate, b.UnitPrice, b.PackageCount, b.UnitsPerPackage, b.QuantityOnHand)
	return err
}

func (r *batchRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*MedicationBatch, error) {
	return scanBatch(r.conn(ctx).QueryRow(ctx, `SELECT `+batchCols+` FROM medication_batch WHERE id = $1`, id))
}

func (r *batchRepoPG) GetByCode(ctx context.Context, medicationID uuid.UUID, batchCode string) (*MedicationBatch, error) {
	return scanBatch(r.conn(ctx).QueryRow(ctx,
		`SELECT `+batchCols+` FROM medication_batch WHERE medication_id = $1 AND batch_code = $2`,
		medicationID, batchCode))
}

func (r *batchRepoPG) Update(ctx context.Context, b *MedicationBatch) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE medication_batch SET batch_code=$2, origin=$3, manufacture_date=$4, expiry_date=$5,
			unit_price=$6, package_count=$7, units_per_package=$8, quantity_on_hand=$9, updated_at=NOW()
		WHERE id = $1`,
		b.ID, b.BatchCode, b.Origin, b.ManufactureDate, b.ExpiryDate,
		b.UnitPrice, b.PackageCount, b.UnitsPerPackage, b.QuantityOnHand)
	return err
}

func (r *batchRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM medication_batch WHERE id = $1`, id)
	return err
}

func (r *batchRepoPG) ListByMedication(ctx context.Context, medicationID uuid.UUID, limit, offset int) ([]*MedicationBatch, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM medication_batch WHERE medication_id = $1`, medicationID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+batchCols+` FROM medication_batch WHERE medication_id = $1
		ORDER BY expiry_date NULLS LAST, batch_code LIMIT $2 OFFSET $3`,
		medicationID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*MedicationBatch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, b)
	}
	return items, total, rows.Err()
}

func (r *batchRepoPG) AdjustQuantity(ctx context.Context, id uuid.UUID, delta int64) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE medication_batch SET quantity_on_hand = quantity_on_hand + $2, updated_at = NOW()
		WHERE id = $1 AND quantity_on_hand + $2 >= 0`, id, delta)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
