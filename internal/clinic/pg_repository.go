package clinic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx so the same query
// methods run inside and outside WithTx.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PgRepository struct {
	pool *pgxpool.Pool
	q    querier
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool, q: pool}
}

func (r *PgRepository) WithTx(ctx context.Context, fn func(Repository) error) error {
	if _, nested := r.q.(pgx.Tx); nested {
		return fn(r)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&PgRepository{pool: r.pool, q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var email *string
	var history []byte

	err := row.Scan(
		&p.ID,
		&p.AppID,
		&p.Name,
		&email,
		&p.Phone,
		&p.Notes,
		&history,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.Email = email
	if len(history) > 0 {
		var mh MedicalHistory
		if err := json.Unmarshal(history, &mh); err != nil {
			return nil, fmt.Errorf("decode medical history: %w", err)
		}
		p.MedicalHistory = &mh
	}
	return &p, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var serviceID *string
	var note []byte

	err := row.Scan(
		&a.ID,
		&a.AppID,
		&a.PatientID,
		&a.LocationID,
		&serviceID,
		&a.Reason,
		&a.StartsAt,
		&a.Status,
		&a.Notes,
		&note,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.ServiceID = serviceID
	if serviceID != nil {
		if svc, ok := ServiceByID(*serviceID); ok {
			a.ServiceName = svc.Name
		}
	}
	if len(note) > 0 {
		var sn SoapNote
		if err := json.Unmarshal(note, &sn); err != nil {
			return nil, fmt.Errorf("decode clinical note: %w", err)
		}
		a.ClinicalNote = &sn
	}
	a.StartsAt = a.StartsAt.Local()
	return &a, nil
}

func scanUpload(row pgx.Row) (*Upload, error) {
	var u Upload

	err := row.Scan(
		&u.ID,
		&u.PatientID,
		&u.FileName,
		&u.Path,
		&u.ContentType,
		&u.Size,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUploadNotFound
		}
		return nil, err
	}
	return &u, nil
}

func marshalJSONB(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

const patientCols = `id, app_id, name, email, phone, notes, medical_history, created_at, updated_at`
const appointmentCols = `id, app_id, patient_id, location_id, service_id, reason, starts_at, status, notes, clinical_note, created_at, updated_at`

// Patients

func (r *PgRepository) FindPatientByEmail(ctx context.Context, appID, email string) (*Patient, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+patientCols+`
		FROM patients
		WHERE app_id = $1 AND email = $2
	`, appID, email)
	return scanPatient(row)
}

func (r *PgRepository) FindPatientByContact(ctx context.Context, appID, name, phone string) (*Patient, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+patientCols+`
		FROM patients
		WHERE app_id = $1 AND name = $2 AND phone = $3
	`, appID, name, phone)
	return scanPatient(row)
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+patientCols+`
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) ListPatients(ctx context.Context, appID string) ([]Patient, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+patientCols+`
		FROM patients
		WHERE app_id = $1
		ORDER BY name
	`, appID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	return result, rows.Err()
}

func (r *PgRepository) InsertPatient(ctx context.Context, p *Patient) (*Patient, error) {
	id := uuid.New()
	history, err := marshalJSONB(p.MedicalHistory)
	if err != nil {
		return nil, fmt.Errorf("encode medical history: %w", err)
	}

	row := r.q.QueryRow(ctx, `
		INSERT INTO patients (id, app_id, name, email, phone, notes, medical_history, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		RETURNING `+patientCols+`
	`, id, p.AppID, p.Name, p.Email, p.Phone, p.Notes, history)

	return scanPatient(row)
}

func (r *PgRepository) UpdatePatientContact(ctx context.Context, id uuid.UUID, name, phone string, email *string) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE patients
		SET name = $2,
		    phone = $3,
		    email = $4,
		    updated_at = now()
		WHERE id = $1
	`, id, name, phone, email)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPatientNotFound
	}
	return nil
}

func (r *PgRepository) UpdatePatientRecord(ctx context.Context, id uuid.UUID, notes string, history *MedicalHistory) error {
	encoded, err := marshalJSONB(history)
	if err != nil {
		return fmt.Errorf("encode medical history: %w", err)
	}

	tag, err := r.q.Exec(ctx, `
		UPDATE patients
		SET notes = $2,
		    medical_history = $3,
		    updated_at = now()
		WHERE id = $1
	`, id, notes, encoded)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPatientNotFound
	}
	return nil
}

func (r *PgRepository) DeletePatient(ctx context.Context, id uuid.UUID) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPatientNotFound
	}
	return nil
}

func (r *PgRepository) DeleteAppointmentsByPatient(ctx context.Context, patientID uuid.UUID) (int64, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM appointments WHERE patient_id = $1`, patientID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Appointments

func (r *PgRepository) ListAppointments(ctx context.Context, appID string) ([]Appointment, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+appointmentCols+`
		FROM appointments
		WHERE app_id = $1
		ORDER BY starts_at
	`, appID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func (r *PgRepository) ListAppointmentsByLocation(ctx context.Context, appID, locationID string) ([]AppointmentDetail, error) {
	rows, err := r.q.Query(ctx, `
		SELECT a.id, a.app_id, a.patient_id, a.location_id, a.service_id, a.reason, a.starts_at,
		       a.status, a.notes, a.clinical_note, a.created_at, a.updated_at,
		       p.id, p.app_id, p.name, p.email, p.phone, p.notes, p.medical_history, p.created_at, p.updated_at
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		WHERE a.app_id = $1 AND a.location_id = $2
		ORDER BY a.starts_at
	`, appID, locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AppointmentDetail
	for rows.Next() {
		var a Appointment
		var p Patient
		var serviceID, email *string
		var note, history []byte

		err := rows.Scan(
			&a.ID, &a.AppID, &a.PatientID, &a.LocationID, &serviceID, &a.Reason, &a.StartsAt,
			&a.Status, &a.Notes, &note, &a.CreatedAt, &a.UpdatedAt,
			&p.ID, &p.AppID, &p.Name, &email, &p.Phone, &p.Notes, &history, &p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}

		a.ServiceID = serviceID
		if serviceID != nil {
			if svc, ok := ServiceByID(*serviceID); ok {
				a.ServiceName = svc.Name
			}
		}
		if len(note) > 0 {
			var sn SoapNote
			if err := json.Unmarshal(note, &sn); err != nil {
				return nil, fmt.Errorf("decode clinical note: %w", err)
			}
			a.ClinicalNote = &sn
		}
		a.StartsAt = a.StartsAt.Local()

		p.Email = email
		if len(history) > 0 {
			var mh MedicalHistory
			if err := json.Unmarshal(history, &mh); err != nil {
				return nil, fmt.Errorf("decode medical history: %w", err)
			}
			p.MedicalHistory = &mh
		}

		result = append(result, AppointmentDetail{Appointment: a, Patient: &p})
	}
	return result, rows.Err()
}

func (r *PgRepository) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+appointmentCols+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY starts_at DESC
	`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func (r *PgRepository) ListAppointmentsOnDay(ctx context.Context, appID, locationID string, day time.Time) ([]Appointment, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.Local)
	end := start.AddDate(0, 0, 1)

	rows, err := r.q.Query(ctx, `
		SELECT `+appointmentCols+`
		FROM appointments
		WHERE app_id = $1 AND location_id = $2
		  AND starts_at >= $3 AND starts_at < $4
		ORDER BY starts_at
	`, appID, locationID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+appointmentCols+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) InsertAppointment(ctx context.Context, a *Appointment) (*Appointment, error) {
	id := uuid.New()
	note, err := marshalJSONB(a.ClinicalNote)
	if err != nil {
		return nil, fmt.Errorf("encode clinical note: %w", err)
	}

	row := r.q.QueryRow(ctx, `
		INSERT INTO appointments (id, app_id, patient_id, location_id, service_id, reason, starts_at, status, notes, clinical_note, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
		RETURNING `+appointmentCols+`
	`, id, a.AppID, a.PatientID, a.LocationID, a.ServiceID, a.Reason, a.StartsAt, a.Status, a.Notes, note)

	return scanAppointment(row)
}

func (r *PgRepository) UpdateAppointment(ctx context.Context, id uuid.UUID, upd AppointmentUpdate) (*Appointment, error) {
	var note []byte
	var err error
	if upd.ClinicalNote != nil {
		note, err = marshalJSONB(upd.ClinicalNote)
		if err != nil {
			return nil, fmt.Errorf("encode clinical note: %w", err)
		}
	}

	row := r.q.QueryRow(ctx, `
		UPDATE appointments
		SET starts_at     = COALESCE($2, starts_at),
		    service_id    = COALESCE($3, service_id),
		    notes         = COALESCE($4, notes),
		    clinical_note = COALESCE($5, clinical_note),
		    updated_at    = now()
		WHERE id = $1
		RETURNING `+appointmentCols+`
	`, id, upd.StartsAt, upd.ServiceID, upd.Notes, note)

	return scanAppointment(row)
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := r.q.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentCols+`
	`, id, to, from)

	return scanAppointment(row)
}

func (r *PgRepository) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

// Uploads

func (r *PgRepository) InsertUpload(ctx context.Context, u *Upload) (*Upload, error) {
	id := uuid.New()

	row := r.q.QueryRow(ctx, `
		INSERT INTO patient_uploads (id, patient_id, file_name, path, content_type, size, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		RETURNING id, patient_id, file_name, path, content_type, size, created_at
	`, id, u.PatientID, u.FileName, u.Path, u.ContentType, u.Size)

	return scanUpload(row)
}

func (r *PgRepository) ListUploadsByPatient(ctx context.Context, patientID uuid.UUID) ([]Upload, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, patient_id, file_name, path, content_type, size, created_at
		FROM patient_uploads
		WHERE patient_id = $1
		ORDER BY created_at DESC
	`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Upload
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *u)
	}
	return result, rows.Err()
}

func (r *PgRepository) GetUploadByID(ctx context.Context, id uuid.UUID) (*Upload, error) {
	row := r.q.QueryRow(ctx, `
		SELECT id, patient_id, file_name, path, content_type, size, created_at
		FROM patient_uploads
		WHERE id = $1
	`, id)
	return scanUpload(row)
}

func (r *PgRepository) DeleteUpload(ctx context.Context, id uuid.UUID) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM patient_uploads WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUploadNotFound
	}
	return nil
}

// Admin users

func (r *PgRepository) GetAdminByEmail(ctx context.Context, email string) (*AdminUser, error) {
	var u AdminUser

	err := r.q.QueryRow(ctx, `
		SELECT id, email, password_hash, created_at
		FROM admin_users
		WHERE email = $1
	`, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAdminNotFound
		}
		return nil, err
	}
	return &u, nil
}
