package billing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicsys/clinic/internal/domain/visit"
	"github.com/clinicsys/clinic/internal/platform/db"
)

type billingRepoPG struct{ pool *pgxpool.Pool }

func NewBillingRepoPG(pool *pgxpool.Pool) BillingRepository {
	return &billingRepoPG{pool: pool}
}

func (r *billingRepoPG) conn(ctx context.Context) db.Querier {
	if q := db.QuerierFromContext(ctx); q != nil {
		return q
	}
	return r.pool
}

const billingCols = `id, visit_id, patient_id, status, payment_method, issued_at, notes,
	service_total, medication_total, other_total, total_amount, created_at, updated_at`

func scanBilling(row pgx.Row) (*Billing, error) {
	var b Billing
	err := row.Scan(&b.ID, &b.VisitID, &b.PatientID, &b.Status, &b.PaymentMethod, &b.IssuedAt, &b.Notes,
		&b.ServiceTotal, &b.MedicationTotal, &b.OtherTotal, &b.TotalAmount, &b.CreatedAt, &b.UpdatedAt)
	return &b, err
}

func (r *billingRepoPG) Create(ctx context.Context, b *Billing) error {
	b.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO billing (id, visit_id, patient_id, status, issued_at, notes,
			service_total, medication_total, other_total, total_amount)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		b.ID, b.VisitID, b.PatientID, b.Status, b.IssuedAt, b.Notes,
		b.ServiceTotal, b.MedicationTotal, b.OtherTotal, b.TotalAmount)
	return err
}

func (r *billingRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Billing, error) {
	return scanBilling(r.conn(ctx).QueryRow(ctx, `SELECT `+billingCols+` FROM billing WHERE id = $1`, id))
}

func (r *billingRepoPG) GetByVisit(ctx context.Context, visitID uuid.UUID) (*Billing, error) {
	return scanBilling(r.conn(ctx).QueryRow(ctx, `SELECT `+billingCols+` FROM billing WHERE visit_id = $1`, visitID))
}

func (r *billingRepoPG) Update(ctx context.Context, b *Billing) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE billing SET status=$2, payment_method=$3, notes=$4,
			service_total=$5, medication_total=$6, other_total=$7, total_amount=$8, updated_at=NOW()
		WHERE id = $1`,
		b.ID, b.Status, b.PaymentMethod, b.Notes,
		b.ServiceTotal, b.MedicationTotal, b.OtherTotal, b.TotalAmount)
	return err
}

func (r *billingRepoPG) List(ctx context.Context, status string, limit, offset int) ([]*Billing, int, error) {
	where := ``
	args := []interface{}{}
	if status != "" {
		where = `WHERE status = $1`
		args = append(args, status)
	}
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM billing `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	n := len(args)
	query := fmt.Sprintf(`SELECT `+billingCols+` FROM billing %s ORDER BY issued_at DESC LIMIT $%d OFFSET $%d`, where, n+1, n+2)
	rows, err := r.conn(ctx).Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Billing
	for rows.Next() {
		b, err := scanBilling(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, b)
	}
	return items, total, rows.Err()
}

func (r *billingRepoPG) ListUnbilledVisits(ctx context.Context, limit, offset int) ([]*visit.Visit, int, error) {
	const where = `FROM visit v LEFT JOIN billing b ON b.visit_id = v.id
		WHERE v.status = 'COMPLETED' AND b.id IS NULL`
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) `+where).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT v.id, v.appointment_id, v.patient_id, v.status, v.provisional_diagnosis,
			v.clinical_note, v.diagnosis_note, v.created_at, v.updated_at
		`+where+` ORDER BY v.updated_at LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*visit.Visit
	for rows.Next() {
		var v visit.Visit
		if err := rows.Scan(&v.ID, &v.AppointmentID, &v.PatientID, &v.Status, &v.ProvisionalDiagnosis,
			&v.ClinicalNote, &v.DiagnosisNote, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, &v)
	}
	return items, total, rows.Err()
}

type itemRepoPG struct{ pool *pgxpool.Pool }

func NewBillingItemRepoPG(pool *pgxpool.Pool) BillingItemRepository {
	return &itemRepoPG{pool: pool}
}

func (r *itemRepoPG) conn(ctx context.Context) db.Querier {
	if q := db.QuerierFromContext(ctx); q != nil {
		return q
	}
	return r.pool
}

const itemCols = `id, billing_id, item_type, description, quantity, unit_price, amount,
	service_order_id, prescription_item_id, service_id, medication_id, created_at`

func scanItem(row pgx.Row) (*BillingItem, error) {
	var it BillingItem
	err := row.Scan(&it.ID, &it.BillingID, &it.ItemType, &it.Description, &it.Quantity, &it.UnitPrice,
		&it.Amount, &it.ServiceOrderID, &it.PrescriptionItemID, &it.ServiceID, &it.MedicationID, &it.CreatedAt)
	return &it, err
}

func (r *itemRepoPG) Create(ctx context.Context, it *BillingItem) error {
	it.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO billing_item (id, billing_id, item_type, description, quantity, unit_price,
			amount, service_order_id, prescription_item_id, service_id, medication_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		it.ID, it.BillingID, it.ItemType, it.Description, it.Quantity, it.UnitPrice,
		it.Amount, it.ServiceOrderID, it.PrescriptionItemID, it.ServiceID, it.MedicationID)
	return err
}

func (r *itemRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*BillingItem, error) {
	return scanItem(r.conn(ctx).QueryRow(ctx, `SELECT `+itemCols+` FROM billing_item WHERE id = $1`, id))
}

func (r *itemRepoPG) Update(ctx context.Context, it *BillingItem) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE billing_item SET item_type=$2, description=$3, quantity=$4, unit_price=$5, amount=$6
		WHERE id = $1`,
		it.ID, it.ItemType, it.Description, it.Quantity, it.UnitPrice, it.Amount)
	return err
}

func (r *itemRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM billing_item WHERE id = $1`, id)
	return err
}

func (r *itemRepoPG) ListByBilling(ctx context.Context, billingID uuid.UUID) ([]*BillingItem, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+itemCols+` FROM billing_item WHERE billing_id = $1 ORDER BY created_at`, billingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*BillingItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
