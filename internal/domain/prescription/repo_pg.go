package prescription

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicsys/clinic/internal/platform/db"
)

type prescriptionRepoPG struct{ pool *pgxpool.Pool }

func NewPrescriptionRepoPG(pool *pgxpool.Pool) PrescriptionRepository {
	return &prescriptionRepoPG{pool: pool}
}

func (r *prescriptionRepoPG) conn(ctx context.Context) db.Querier {
	if q := db.QuerierFromContext(ctx); q != nil {
		return q
	}
	return r.pool
}

const prescriptionCols = `id, visit_id, prescribed_by_id, status, issued_at, dispensed_at,
	pharmacist_note, notes, created_at, updated_at`

func scanPrescription(row pgx.Row) (*Prescription, error) {
	var p Prescription
	err := row.Scan(&p.ID, &p.VisitID, &p.PrescribedByID, &p.Status, &p.IssuedAt, &p.DispensedAt,
		&p.PharmacistNote, &p.Notes, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *prescriptionRepoPG) Create(ctx context.Context, p *Prescription) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO prescription (id, visit_id, prescribed_by_id, status, issued_at, notes)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		p.ID, p.VisitID, p.PrescribedByID, p.Status, p.IssuedAt, p.Notes)
	return err
}

func (r *prescriptionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	return scanPrescription(r.conn(ctx).QueryRow(ctx,
		`SELECT `+prescriptionCols+` FROM prescription WHERE id = $1`, id))
}

func (r *prescriptionRepoPG) Update(ctx context.Context, p *Prescription) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE prescription SET status=$2, dispensed_at=$3, pharmacist_note=$4, notes=$5, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.Status, p.DispensedAt, p.PharmacistNote, p.Notes)
	return err
}

func (r *prescriptionRepoPG) ListByVisit(ctx context.Context, visitID uuid.UUID) ([]*Prescription, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+prescriptionCols+` FROM prescription WHERE visit_id = $1 ORDER BY issued_at`, visitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Prescription
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (r *prescriptionRepoPG) List(ctx context.Context, status string, limit, offset int) ([]*Prescription, int, error) {
	where := ``
	args := []interface{}{}
	if status != "" {
		where = `WHERE status = $1`
		args = append(args, status)
	}
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM prescription `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	n := len(args)
	query := fmt.Sprintf(`SELECT `+prescriptionCols+` FROM prescription %s ORDER BY issued_at DESC LIMIT $%d OFFSET $%d`, where, n+1, n+2)
	rows, err := r.conn(ctx).Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Prescription
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

type itemRepoPG struct{ pool *pgxpool.Pool }

func NewItemRepoPG(pool *pgxpool.Pool) ItemRepository {
	return &itemRepoPG{pool: pool}
}

func (r *itemRepoPG) conn(ctx context.Context) db.Querier {
	if q := db.QuerierFromContext(ctx); q != nil {
		return q
	}
	return r.pool
}

func (r *itemRepoPG) ReplaceForPrescription(ctx context.Context, prescriptionID uuid.UUID, items []*PrescriptionItem) error {
	q := r.conn(ctx)
	if _, err := q.Exec(ctx, `DELETE FROM prescription_item WHERE prescription_id = $1`, prescriptionID); err != nil {
		return err
	}
	for _, it := range items {
		it.ID = uuid.New()
		it.PrescriptionID = prescriptionID
		_, err := q.Exec(ctx, `
			INSERT INTO prescription_item (id, prescription_id, medication_id, batch_id, medication_name,
				dosage, frequency, duration, instruction, quantity, unit_price, expiry_date, amount)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
			it.ID, it.PrescriptionID, it.MedicationID, it.BatchID, it.MedicationName,
			it.Dosage, it.Frequency, it.Duration, it.Instruction, it.Quantity, it.UnitPrice, it.ExpiryDate, it.Amount)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *itemRepoPG) ListByPrescription(ctx context.Context, prescriptionID uuid.UUID) ([]*PrescriptionItem, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, prescription_id, medication_id, batch_id, medication_name, dosage, frequency,
			duration, instruction, quantity, unit_price, expiry_date, amount
		FROM prescription_item WHERE prescription_id = $1 ORDER BY medication_name`, prescriptionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*PrescriptionItem
	for rows.Next() {
		var it PrescriptionItem
		if err := rows.Scan(&it.ID, &it.PrescriptionID, &it.MedicationID, &it.BatchID, &it.MedicationName,
			&it.Dosage, &it.Frequency, &it.Duration, &it.Instruction, &it.Quantity, &it.UnitPrice,
			&it.ExpiryDate, &it.Amount); err != nil {
			return nil, err
		}
		items = append(items, &it)
	}
	return items, rows.Err()
}
