package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicsys/clinic/internal/platform/db"
)

// =========== Service Repository ===========

type serviceRepoPG struct{ pool *pgxpool.Pool }

func NewServiceRepoPG(pool *pgxpool.Pool) ServiceRepository { return &serviceRepoPG{pool: pool} }

func (r *serviceRepoPG) conn(ctx context.Context) db.Querier {
	if q := db.QuerierFromContext(ctx); q != nil {
		return q
	}
	return r.pool
}

const svcCols = `id, code, name, base_price, room_id, created_at, updated_at`

func scanService(row pgx.Row) (*MedicalService, error) {
	var s MedicalService
	err := row.Scan(&s.ID, &s.Code, &s.Name, &s.BasePrice, &s.RoomID, &s.CreatedAt, &s.UpdatedAt)
	return &s, err
}

func (r *serviceRepoPG) Create(ctx context.Context, s *MedicalService) error {
	s.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO medical_service (id, code, name, base_price, room_id)
		VALUES ($1,$2,$3,$4,$5)`,
		s.ID, s.Code, s.Name, s.BasePrice, s.RoomID)
	return err
}

func (r *serviceRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*MedicalService, error) {
	return scanService(r.conn(ctx).QueryRow(ctx, `SELECT `+svcCols+` FROM medical_service WHERE id = $1`, id))
}

func (r *serviceRepoPG) GetByCode(ctx context.Context, code string) (*MedicalService, error) {
	return scanService(r.conn(ctx).QueryRow(ctx, `SELECT `+svcCols+` FROM medical_service WHERE code = $1`, code))
}

func (r *serviceRepoPG) Update(ctx context.Context, s *MedicalService) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE medical_service SET code=$2, name=$3, base_price=$4, room_id=$5, updated_at=NOW()
		WHERE id = $1`,
		s.ID, s.Code, s.Name, s.BasePrice, s.RoomID)
	return err
}

func (r *serviceRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM medical_service WHERE id = $1`, id)
	return err
}

func (r *serviceRepoPG) List(ctx context.Context, limit, offset int) ([]*MedicalService, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM medical_service`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+svcCols+` FROM medical_service ORDER BY code LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*MedicalService
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}

// =========== Indicator Repository ===========

type indicatorRepoPG struct{ pool *pgxpool.Pool }

func NewIndicatorRepoPG(pool *pgxpool.Pool) IndicatorRepository { return &indicatorRepoPG{pool: pool} }

func (r *indicatorRepoPG) conn(ctx context.Context) db.Querier {
	if q := db.QuerierFromContext(ctx); q != nil {
		return q
	}
	return r.pool
}

const indCols = `id, code, name, unit, normal_min, normal_max, created_at, updated_at`

func scanIndicator(row pgx.Row) (*IndicatorTemplate, error) {
	var t IndicatorTemplate
	err := row.Scan(&t.ID, &t.Code, &t.Name, &t.Unit, &t.NormalMin, &t.NormalMax, &t.CreatedAt, &t.UpdatedAt)
	return &t, err
}

func (r *indicatorRepoPG) Create(ctx context.Context, t *IndicatorTemplate) error {
	t.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO indicator_template (id, code, name, unit, normal_min, normal_max)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		t.ID, t.Code, t.Name, t.Unit, t.NormalMin, t.NormalMax)
	return err
}

func (r *indicatorRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*IndicatorTemplate, error) {
	return scanIndicator(r.conn(ctx).QueryRow(ctx, `SELECT `+indCols+` FROM indicator_template WHERE id = $1`, id))
}

func (r *indicatorRepoPG) GetByCode(ctx context.Context, code string) (*IndicatorTemplate, error) {
	return scanIndicator(r.conn(ctx).QueryRow(ctx, `SELECT `+indCols+` FROM indicator_template WHERE code = $1`, code))
}

func (r *indicatorRepoPG) Update(ctx context.Context, t *IndicatorTemplate) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE indicator_template SET code=$2, name=$3, unit=$4, normal_min=$5, normal_max=$6, updated_at=NOW()
		WHERE id = $1`,
		t.ID, t.Code, t.Name, t.Unit, t.NormalMin, t.NormalMax)
	return err
}

func (r *indicatorRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM indicator_template WHERE id = $1`, id)
	return err
}

func (r *indicatorRepoPG) List(ctx context.Context, limit, offset int) ([]*IndicatorTemplate, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM indicator_template`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+indCols+` FROM indicator_template ORDER BY code LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*IndicatorTemplate
	for rows.Next() {
		t, err := scanIndicator(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, t)
	}
	return items, total, rows.Err()
}

// =========== Mapping Repository ===========

type mappingRepoPG struct{ pool *pgxpool.Pool }

func NewMappingRepoPG(pool *pgxpool.Pool) MappingRepository { return &mappingRepoPG{pool: pool} }

func (r *mappingRepoPG) conn(ctx context.Context) db.Querier {
	if q := db.QuerierFromContext(ctx); q != nil {
		return q
	}
	return r.pool
}

func (r *mappingRepoPG) ListForService(ctx context.Context, serviceID uuid.UUID) ([]*ServiceIndicatorDetail, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT si.id, si.service_id, si.indicator_id, si.required, si.display_order,
		       t.id, t.code, t.name, t.unit, t.normal_min, t.normal_max, t.created_at, t.updated_at
		FROM service_indicator si
		JOIN indicator_template t ON t.id = si.indicator_id
		WHERE si.service_id = $1
		ORDER BY si.display_order, t.code`, serviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*ServiceIndicatorDetail
	for rows.Next() {
		var d ServiceIndicatorDetail
		if err := rows.Scan(&d.ID, &d.ServiceID, &d.IndicatorID, &d.Required, &d.DisplayOrder,
			&d.Template.ID, &d.Template.Code, &d.Template.Name, &d.Template.Unit,
			&d.Template.NormalMin, &d.Template.NormalMax, &d.Template.CreatedAt, &d.Template.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, &d)
	}
	return items, rows.Err()
}

func (r *mappingRepoPG) Replace(ctx context.Context, serviceID uuid.UUID, mappings []*ServiceIndicator) error {
	q := r.conn(ctx)
	if _, err := q.Exec(ctx, `DELETE FROM service_indicator WHERE service_id = $1`, serviceID); err != nil {
		return err
	}
	for _, m := range mappings {
		m.ID = uuid.New()
		m.ServiceID = serviceID
		if _, err := q.Exec(ctx, `
			INSERT INTO service_indicator (id, service_id, indicator_id, required, display_order)
			VALUES ($1,$2,$3,$4,$5)`,
			m.ID, m.ServiceID, m.IndicatorID, m.Required, m.DisplayOrder); err != nil {
			return err
		}
	}
	return nil
}

// =========== Roster Repository ===========

type rosterRepoPG struct{ pool *pgxpool.Pool }

func NewRosterRepoPG(pool *pgxpool.Pool) RosterRepository { return &rosterRepoPG{pool: pool} }

func (r *rosterRepoPG) conn(ctx context.Context) db.Querier {
	if q := db.QuerierFromContext(ctx); q != nil {
		return q
	}
	return r.pool
}

func (r *rosterRepoPG) DoctorsForShift(ctx context.Context, roomID uuid.UUID, weekday time.Weekday, morning bool) ([]uuid.UUID, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT doctor_id FROM work_shift
		WHERE room_id = $1 AND weekday = $2 AND morning = $3
		ORDER BY doctor_id`, roomID, int(weekday), morning)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *rosterRepoPG) CreateShift(ctx context.Context, w *WorkShift) error {
	w.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO work_shift (id, doctor_id, room_id, weekday, morning)
		VALUES ($1,$2,$3,$4,$5)`,
		w.ID, w.DoctorID, w.RoomID, int(w.Weekday), w.Morning)
	return err
}

func (r *rosterRepoPG) DeleteShift(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM work_shift WHERE id = $1`, id)
	return err
}
