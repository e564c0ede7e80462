package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicsys/clinic/internal/platform/apperr"
	"github.com/clinicsys/clinic/internal/platform/db"
)

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

func (r *appointmentRepoPG) conn(ctx context.Context) db.Querier {
	if q := db.QuerierFromContext(ctx); q != nil {
		return q
	}
	return r.pool
}

const apptCols = `id, patient_id, doctor_id, room_id, scheduled_at, duration_minutes,
	status, reason, notes, created_by, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.RoomID, &a.ScheduledAt, &a.DurationMinutes,
		&a.Status, &a.Reason, &a.Notes, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt)
	return &a, err
}

// The appointment table carries gist exclusion constraints on the doctor and
// room time ranges. The service's conflict query produces the friendly error;
// this mapping covers the race where two bookings pass that query
// concurrently and the constraint rejects the second insert.
func mapOverlapViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23P01" {
		return apperr.Conflict("the requested slot was booked concurrently")
	}
	return err
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO appointment (id, patient_id, doctor_id, room_id, scheduled_at,
			duration_minutes, status, reason, notes, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		a.ID, a.PatientID, a.DoctorID, a.RoomID, a.ScheduledAt,
		a.DurationMinutes, a.Status, a.Reason, a.Notes, a.CreatedBy)
	return mapOverlapViolation(err)
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scanAppointment(r.conn(ctx).QueryRow(ctx, `SELECT `+apptCols+` FROM appointment WHERE id = $1`, id))
}

func (r *appointmentRepoPG) Update(ctx context.Context, a *Appointment) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointment SET patient_id=$2, doctor_id=$3, room_id=$4, scheduled_at=$5,
			duration_minutes=$6, status=$7, reason=$8, notes=$9, updated_at=NOW()
		WHERE id = $1`,
		a.ID, a.PatientID, a.DoctorID, a.RoomID, a.ScheduledAt,
		a.DurationMinutes, a.Status, a.Reason, a.Notes)
	return mapOverlapViolation(err)
}

func (r *appointmentRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE appointment SET status=$2, updated_at=NOW() WHERE id = $1`, id, status)
	return mapOverlapViolation(err)
}

func (r *appointmentRepoPG) list(ctx context.Context, where string, args []interface{}, limit, offset int) ([]*Appointment, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM appointment `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	n := len(args)
	query := fmt.Sprintf(`SELECT `+apptCols+` FROM appointment %s ORDER BY scheduled_at DESC LIMIT $%d OFFSET $%d`, where, n+1, n+2)
	rows, err := r.conn(ctx).Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

func (r *appointmentRepoPG) List(ctx context.Context, limit, offset int) ([]*Appointment, int, error) {
	return r.list(ctx, ``, nil, limit, offset)
}

func (r *appointmentRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return r.list(ctx, `WHERE doctor_id = $1`, []interface{}{doctorID}, limit, offset)
}

func (r *appointmentRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return r.list(ctx, `WHERE patient_id = $1`, []interface{}{patientID}, limit, offset)
}

func (r *appointmentRepoPG) ListByStatus(ctx context.Context, status string, limit, offset int) ([]*Appointment, int, error) {
	return r.list(ctx, `WHERE status = $1`, []interface{}{status}, limit, offset)
}

func (r *appointmentRepoPG) FindConflicts(ctx context.Context, doctorID uuid.UUID, roomID *uuid.UUID, start, end time.Time, ignoreID uuid.UUID) ([]*Appointment, error) {
	query := `SELECT ` + apptCols + ` FROM appointment
		WHERE status <> 'CANCELLED'
		  AND id <> $1
		  AND scheduled_at < $2
		  AND scheduled_at + duration_minutes * INTERVAL '1 minute' > $3
		  AND (doctor_id = $4 OR ($5::uuid IS NOT NULL AND room_id = $5))`
	rows, err := r.conn(ctx).Query(ctx, query, ignoreID, end, start, doctorID, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}
