package visit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicsys/clinic/internal/platform/db"
)

type visitRepoPG struct{ pool *pgxpool.Pool }

func NewVisitRepoPG(pool *pgxpool.Pool) VisitRepository {
	return &visitRepoPG{pool: pool}
}

func (r *visitRepoPG) conn(ctx context.Context) db.Querier {
	if q := db.QuerierFromContext(ctx); q != nil {
		return q
	}
	return r.pool
}

const visitCols = `id, appointment_id, patient_id, status, provisional_diagnosis,
	clinical_note, diagnosis_note, created_at, updated_at`

func scanVisit(row pgx.Row) (*Visit, error) {
	var v Visit
	err := row.Scan(&v.ID, &v.AppointmentID, &v.PatientID, &v.Status, &v.ProvisionalDiagnosis,
		&v.ClinicalNote, &v.DiagnosisNote, &v.CreatedAt, &v.UpdatedAt)
	return &v, err
}

func (r *visitRepoPG) Create(ctx context.Context, v *Visit) error {
	v.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO visit (id, appointment_id, patient_id, status, provisional_diagnosis, clinical_note, diagnosis_note)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		v.ID, v.AppointmentID, v.PatientID, v.Status, v.ProvisionalDiagnosis, v.ClinicalNote, v.DiagnosisNote)
	return err
}

func (r *visitRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Visit, error) {
	return scanVisit(r.conn(ctx).QueryRow(ctx, `SELECT `+visitCols+` FROM visit WHERE id = $1`, id))
}

func (r *visitRepoPG) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Visit, error) {
	return scanVisit(r.conn(ctx).QueryRow(ctx, `SELECT `+visitCols+` FROM visit WHERE appointment_id = $1`, appointmentID))
}

func (r *visitRepoPG) Update(ctx context.Context, v *Visit) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE visit SET status=$2, provisional_diagnosis=$3, clinical_note=$4, diagnosis_note=$5, updated_at=NOW()
		WHERE id = $1`,
		v.ID, v.Status, v.ProvisionalDiagnosis, v.ClinicalNote, v.DiagnosisNote)
	return err
}

func (r *visitRepoPG) list(ctx context.Context, where string, args []interface{}, limit, offset int) ([]*Visit, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM visit `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	n := len(args)
	query := fmt.Sprintf(`SELECT `+visitCols+` FROM visit %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, where, n+1, n+2)
	rows, err := r.conn(ctx).Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Visit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, v)
	}
	return items, total, rows.Err()
}

func (r *visitRepoPG) List(ctx context.Context, limit, offset int) ([]*Visit, int, error) {
	return r.list(ctx, ``, nil, limit, offset)
}

func (r *visitRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Visit, int, error) {
	return r.list(ctx, `WHERE patient_id = $1`, []interface{}{patientID}, limit, offset)
}

func (r *visitRepoPG) ListByStatus(ctx context.Context, status string, limit, offset int) ([]*Visit, int, error) {
	return r.list(ctx, `WHERE status = $1`, []interface{}{status}, limit, offset)
}

type orderRepoPG struct{ pool *pgxpool.Pool }

func NewServiceOrderRepoPG(pool *pgxpool.Pool) ServiceOrderRepository {
	return &orderRepoPG{pool: pool}
}

func (r *orderRepoPG) conn(ctx context.Context) db.Querier {
	if q := db.QuerierFromContext(ctx); q != nil {
		return q
	}
	return r.pool
}

const orderCols = `id, visit_id, service_id, assigned_doctor_id, performed_by_id,
	performed_at, status, note, result_note, created_at, updated_at`

func scanOrder(row pgx.Row) (*ServiceOrder, error) {
	var o ServiceOrder
	err := row.Scan(&o.ID, &o.VisitID, &o.ServiceID, &o.AssignedDoctorID, &o.PerformedByID,
		&o.PerformedAt, &o.Status, &o.Note, &o.ResultNote, &o.CreatedAt, &o.UpdatedAt)
	return &o, err
}

func (r *orderRepoPG) Create(ctx context.Context, o *ServiceOrder) error {
	o.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO service_order (id, visit_id, service_id, assigned_doctor_id, status, note)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		o.ID, o.VisitID, o.ServiceID, o.AssignedDoctorID, o.Status, o.Note)
	return err
}

func (r *orderRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*ServiceOrder, error) {
	return scanOrder(r.conn(ctx).QueryRow(ctx, `SELECT `+orderCols+` FROM service_order WHERE id = $1`, id))
}

func (r *orderRepoPG) Update(ctx context.Context, o *ServiceOrder) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE service_order SET status=$2, performed_by_id=$3, performed_at=$4, note=$5, result_note=$6, updated_at=NOW()
		WHERE id = $1`,
		o.ID, o.Status, o.PerformedByID, o.PerformedAt, o.Note, o.ResultNote)
	return err
}

func (r *orderRepoPG) ListByVisit(ctx context.Context, visitID uuid.UUID) ([]*ServiceOrder, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+orderCols+` FROM service_order WHERE visit_id = $1 ORDER BY created_at`, visitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*ServiceOrder
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

type resultRepoPG struct{ pool *pgxpool.Pool }

func NewIndicatorResultRepoPG(pool *pgxpool.Pool) IndicatorResultRepository {
	return &resultRepoPG{pool: pool}
}

func (r *resultRepoPG) conn(ctx context.Context) db.Querier {
	if q := db.QuerierFromContext(ctx); q != nil {
		return q
	}
	return r.pool
}

func (r *resultRepoPG) ReplaceForOrder(ctx context.Context, orderID uuid.UUID, results []*IndicatorResult) error {
	q := r.conn(ctx)
	if _, err := q.Exec(ctx, `DELETE FROM indicator_result WHERE order_id = $1`, orderID); err != nil {
		return err
	}
	for _, res := range results {
		res.ID = uuid.New()
		res.OrderID = orderID
		_, err := q.Exec(ctx, `
			INSERT INTO indicator_result (id, order_id, indicator_id, name, unit, value, evaluation, note)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			res.ID, res.OrderID, res.IndicatorID, res.Name, res.Unit, res.Value, res.Evaluation, res.Note)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *resultRepoPG) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*IndicatorResult, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, order_id, indicator_id, name, unit, value, evaluation, note, created_at
		FROM indicator_result WHERE order_id = $1 ORDER BY created_at`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*IndicatorResult
	for rows.Next() {
		var res IndicatorResult
		if err := rows.Scan(&res.ID, &res.OrderID, &res.IndicatorID, &res.Name, &res.Unit,
			&res.Value, &res.Evaluation, &res.Note, &res.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &res)
	}
	return items, rows.Err()
}
