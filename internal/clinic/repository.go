package clinic

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrUploadNotFound      = errors.New("upload not found")
	ErrAdminNotFound       = errors.New("admin user not found")
)

// AppointmentUpdate carries the mutable appointment fields for a partial
// update. Nil pointers leave the column unchanged.
type AppointmentUpdate struct {
	StartsAt     *time.Time
	ServiceID    *string
	Notes        *string
	ClinicalNote *SoapNote
}

// Repository contains all DB interactions needed by the service.
type Repository interface {
	// WithTx runs fn against a transaction-scoped view of the repository.
	// fn returning an error rolls everything back.
	WithTx(ctx context.Context, fn func(Repository) error) error

	FindPatientByEmail(ctx context.Context, appID, email string) (*Patient, error)
	FindPatientByContact(ctx context.Context, appID, name, phone string) (*Patient, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	ListPatients(ctx context.Context, appID string) ([]Patient, error)
	InsertPatient(ctx context.Context, p *Patient) (*Patient, error)
	UpdatePatientContact(ctx context.Context, id uuid.UUID, name, phone string, email *string) error
	UpdatePatientRecord(ctx context.Context, id uuid.UUID, notes string, history *MedicalHistory) error
	DeletePatient(ctx context.Context, id uuid.UUID) error
	DeleteAppointmentsByPatient(ctx context.Context, patientID uuid.UUID) (int64, error)

	ListAppointments(ctx context.Context, appID string) ([]Appointment, error)
	ListAppointmentsByLocation(ctx context.Context, appID, locationID string) ([]AppointmentDetail, error)
	ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error)
	// ListAppointmentsOnDay returns every appointment, any status, whose
	// timestamp falls on the given local calendar day at one location.
	ListAppointmentsOnDay(ctx context.Context, appID, locationID string, day time.Time) ([]Appointment, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	InsertAppointment(ctx context.Context, a *Appointment) (*Appointment, error)
	UpdateAppointment(ctx context.Context, id uuid.UUID, upd AppointmentUpdate) (*Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)
	DeleteAppointment(ctx context.Context, id uuid.UUID) error

	InsertUpload(ctx context.Context, u *Upload) (*Upload, error)
	ListUploadsByPatient(ctx context.Context, patientID uuid.UUID) ([]Upload, error)
	GetUploadByID(ctx context.Context, id uuid.UUID) (*Upload, error)
	DeleteUpload(ctx context.Context, id uuid.UUID) error

	GetAdminByEmail(ctx context.Context, email string) (*AdminUser, error)
}
