package clinic

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/parisrizo/clinic-booking/internal/config"
	redisclient "github.com/parisrizo/clinic-booking/internal/redis"
)

var (
	ErrUnknownLocation    = errors.New("unknown location")
	ErrUnknownService     = errors.New("unknown service")
	ErrInvalidReason      = errors.New("invalid appointment reason")
	ErrInvalidDateTime    = errors.New("invalid date or time")
	ErrDayNotAllowed      = errors.New("location does not book appointments on this day")
	ErrSlotTaken          = errors.New("requested slot is no longer available")
	ErrSlotBeingBooked    = errors.New("slot is currently being booked, please retry")
	ErrPatientExists      = errors.New("patient already registered")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrBlockedAppointment = errors.New("blocked slots cannot be modified")
	ErrMissingContact     = errors.New("patient name and phone are required")
)

// PatientContact is the submitted contact block of a booking or registration.
// An empty Email means a phone-only patient; matching then falls back to the
// (name, phone) pair.
type PatientContact struct {
	Name  string
	Email string
	Phone string
	Notes string
}

// BookingDraft is everything the public booking form submits.
type BookingDraft struct {
	LocationID         string
	ServiceID          string // optional
	Reason             Reason
	ServiceDescription string // only meaningful when Reason is specific-service
	Date               string // YYYY-MM-DD
	Time               string // HH:MM
	Notes              string
	Contact            PatientContact
}

type Service struct {
	repo   Repository
	locker redisclient.Locker
	cfg    config.Config
}

func NewService(repo Repository, locker redisclient.Locker, cfg config.Config) *Service {
	return &Service{
		repo:   repo,
		locker: locker,
		cfg:    cfg,
	}
}

// AvailableSlots returns the bookable HH:MM start times on one day at one
// location, for the requested service's slot span. An empty serviceID means
// a single-slot booking.
func (s *Service) AvailableSlots(ctx context.Context, date, locationID, serviceID string) ([]string, error) {
	day, err := time.ParseInLocation(DateLayout, date, time.Local)
	if err != nil {
		return nil, ErrInvalidDateTime
	}

	slotsNeeded := 1
	if serviceID != "" {
		svc, ok := ServiceByID(serviceID)
		if !ok {
			return nil, ErrUnknownService
		}
		slotsNeeded = svc.Slots
	}

	appts, err := s.repo.ListAppointmentsOnDay(ctx, s.cfg.AppID, locationID, day)
	if err != nil {
		return nil, fmt.Errorf("list day appointments: %w", err)
	}

	return AvailableSlots(date, locationID, appts, slotsNeeded), nil
}

// BookAppointment runs the full reconciliation flow: match or materialize the
// patient, then insert the confirmed appointment. The whole sequence executes
// inside one transaction under a per location-day distributed lock, and the
// requested slot range is re-checked against the live appointment set before
// the insert, so two clients racing for the same slot cannot both succeed.
func (s *Service) BookAppointment(ctx context.Context, draft BookingDraft) (*Appointment, error) {
	draft.Contact.Email = strings.TrimSpace(draft.Contact.Email)
	if draft.Contact.Name == "" || draft.Contact.Phone == "" {
		return nil, ErrMissingContact
	}
	if !draft.Reason.Valid() {
		return nil, ErrInvalidReason
	}
	loc, ok := LocationByID(draft.LocationID)
	if !ok {
		return nil, ErrUnknownLocation
	}

	startsAt, err := CombineDateTime(draft.Date, draft.Time)
	if err != nil {
		return nil, ErrInvalidDateTime
	}
	if !loc.allowsDay(startsAt.Weekday()) {
		return nil, ErrDayNotAllowed
	}

	slotsNeeded := 1
	var serviceID *string
	if draft.ServiceID != "" {
		svc, ok := ServiceByID(draft.ServiceID)
		if !ok {
			return nil, ErrUnknownService
		}
		slotsNeeded = svc.Slots
		serviceID = &draft.ServiceID
	}

	notes := draft.Notes
	if draft.Reason == ReasonSpecificService && draft.ServiceDescription != "" {
		if notes != "" {
			notes = draft.ServiceDescription + "\n" + notes
		} else {
			notes = draft.ServiceDescription
		}
	}

	var created *Appointment

	err = s.locker.WithBookingLock(ctx, draft.LocationID, draft.Date, func(lockCtx context.Context) error {
		return s.repo.WithTx(lockCtx, func(tx Repository) error {
			// Re-check the slot range inside the critical section.
			dayAppts, err := tx.ListAppointmentsOnDay(lockCtx, s.cfg.AppID, draft.LocationID, startsAt)
			if err != nil {
				return fmt.Errorf("check day appointments: %w", err)
			}
			if !slotFree(draft.Date, draft.LocationID, draft.Time, dayAppts, slotsNeeded) {
				return ErrSlotTaken
			}

			patient, err := s.materializePatient(lockCtx, tx, draft.Contact)
			if err != nil {
				return err
			}

			appt, err := tx.InsertAppointment(lockCtx, &Appointment{
				AppID:      s.cfg.AppID,
				PatientID:  patient.ID,
				LocationID: draft.LocationID,
				ServiceID:  serviceID,
				Reason:     draft.Reason,
				StartsAt:   startsAt,
				Status:     StatusConfirmed,
				Notes:      notes,
			})
			if err != nil {
				return fmt.Errorf("insert appointment: %w", err)
			}

			created = appt
			return nil
		})
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	return created, nil
}

// materializePatient resolves the submitted contact to a patient row: matched
// by email, or by (name, phone) when no email was given. A match is
// authoritative and gets its contact fields overwritten with the fresh
// values; no match inserts a new row.
func (s *Service) materializePatient(ctx context.Context, repo Repository, contact PatientContact) (*Patient, error) {
	existing, err := s.matchPatient(ctx, repo, contact)
	if err != nil {
		return nil, err
	}

	email := normalizeEmail(contact.Email)

	if existing != nil {
		if err := repo.UpdatePatientContact(ctx, existing.ID, contact.Name, contact.Phone, email); err != nil {
			return nil, fmt.Errorf("update patient: %w", err)
		}
		existing.Name = contact.Name
		existing.Phone = contact.Phone
		existing.Email = email
		return existing, nil
	}

	created, err := repo.InsertPatient(ctx, &Patient{
		AppID: s.cfg.AppID,
		Name:  contact.Name,
		Email: email,
		Phone: contact.Phone,
		Notes: contact.Notes,
	})
	if err != nil {
		return nil, fmt.Errorf("create patient: %w", err)
	}
	return created, nil
}

func (s *Service) matchPatient(ctx context.Context, repo Repository, contact PatientContact) (*Patient, error) {
	var existing *Patient
	var err error

	if contact.Email != "" {
		existing, err = repo.FindPatientByEmail(ctx, s.cfg.AppID, contact.Email)
	} else {
		existing, err = repo.FindPatientByContact(ctx, s.cfg.AppID, contact.Name, contact.Phone)
	}
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("match patient: %w", err)
	}
	return existing, nil
}

func normalizeEmail(email string) *string {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil
	}
	return &email
}

// slotFree reports whether time plus the next slotsNeeded-1 slots are all
// open on the given day.
func slotFree(date, locationID, clock string, dayAppts []Appointment, slotsNeeded int) bool {
	for _, free := range AvailableSlots(date, locationID, dayAppts, slotsNeeded) {
		if free == clock {
			return true
		}
	}
	return false
}

// RegisterPatient is the standalone "new patient" flow used by the admin
// directory. Unlike booking it never upserts: a match on the same key raises
// ErrPatientExists because the caller's intent is explicitly to create.
func (s *Service) RegisterPatient(ctx context.Context, contact PatientContact) (*Patient, error) {
	contact.Email = strings.TrimSpace(contact.Email)
	if contact.Name == "" || contact.Phone == "" {
		return nil, ErrMissingContact
	}

	existing, err := s.matchPatient(ctx, s.repo, contact)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrPatientExists
	}

	created, err := s.repo.InsertPatient(ctx, &Patient{
		AppID: s.cfg.AppID,
		Name:  contact.Name,
		Email: normalizeEmail(contact.Email),
		Phone: contact.Phone,
		Notes: contact.Notes,
	})
	if err != nil {
		return nil, fmt.Errorf("create patient: %w", err)
	}
	return created, nil
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetPatientByID(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context) ([]Patient, error) {
	return s.repo.ListPatients(ctx, s.cfg.AppID)
}

// UpdatePatientRecord saves the internal notes and structured medical history
// edited in the admin panel.
func (s *Service) UpdatePatientRecord(ctx context.Context, id uuid.UUID, notes string, history *MedicalHistory) (*Patient, error) {
	if err := s.repo.UpdatePatientRecord(ctx, id, notes, history); err != nil {
		return nil, err
	}
	return s.repo.GetPatientByID(ctx, id)
}

// DeletePatient removes the patient and every appointment referencing them in
// one transaction, so no orphaned appointment survives.
func (s *Service) DeletePatient(ctx context.Context, id uuid.UUID) error {
	return s.repo.WithTx(ctx, func(tx Repository) error {
		removed, err := tx.DeleteAppointmentsByPatient(ctx, id)
		if err != nil {
			return fmt.Errorf("delete patient appointments: %w", err)
		}
		if err := tx.DeletePatient(ctx, id); err != nil {
			return err
		}
		log.Printf("deleted patient %s and %d appointments", id, removed)
		return nil
	})
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetAppointmentByID(ctx, id)
}

func (s *Service) ListAppointmentsByLocation(ctx context.Context, locationID string) ([]AppointmentDetail, error) {
	return s.repo.ListAppointmentsByLocation(ctx, s.cfg.AppID, locationID)
}

func (s *Service) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error) {
	return s.repo.ListAppointmentsByPatient(ctx, patientID)
}

// AppointmentPatch is the admin edit surface of an appointment. Date and Time
// must be set together to reschedule.
type AppointmentPatch struct {
	Date         string
	Time         string
	ServiceID    *string
	Notes        *string
	ClinicalNote *SoapNote
}

// UpdateAppointment applies admin edits. Any change that moves or widens the
// occupied slot range, rescheduling or swapping to a service with a different
// span, re-runs the availability check under the booking lock with the
// appointment itself excluded from the occupied set.
func (s *Service) UpdateAppointment(ctx context.Context, id uuid.UUID, patch AppointmentPatch) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.Status == StatusBlocked {
		return nil, ErrBlockedAppointment
	}

	upd := AppointmentUpdate{
		ServiceID:    patch.ServiceID,
		Notes:        patch.Notes,
		ClinicalNote: patch.ClinicalNote,
	}

	slotsNeeded := serviceSlots(appt)
	if patch.ServiceID != nil {
		svc, ok := ServiceByID(*patch.ServiceID)
		if !ok {
			return nil, ErrUnknownService
		}
		slotsNeeded = svc.Slots
	}

	// The slot range the updated appointment will occupy.
	date, clock := appt.Date(), appt.ClockTime()
	target := appt.StartsAt

	if patch.Date != "" || patch.Time != "" {
		if patch.Date == "" || patch.Time == "" {
			return nil, ErrInvalidDateTime
		}

		loc, ok := LocationByID(appt.LocationID)
		if !ok {
			return nil, ErrUnknownLocation
		}
		startsAt, err := CombineDateTime(patch.Date, patch.Time)
		if err != nil {
			return nil, ErrInvalidDateTime
		}
		if !loc.allowsDay(startsAt.Weekday()) {
			return nil, ErrDayNotAllowed
		}

		upd.StartsAt = &startsAt
		date, clock = patch.Date, patch.Time
		target = startsAt
	}

	if upd.StartsAt == nil && patch.ServiceID == nil {
		// Notes and clinical-note edits cannot create a conflict.
		return s.repo.UpdateAppointment(ctx, id, upd)
	}

	var updated *Appointment
	err = s.locker.WithBookingLock(ctx, appt.LocationID, date, func(lockCtx context.Context) error {
		return s.repo.WithTx(lockCtx, func(tx Repository) error {
			dayAppts, err := tx.ListAppointmentsOnDay(lockCtx, s.cfg.AppID, appt.LocationID, target)
			if err != nil {
				return fmt.Errorf("check day appointments: %w", err)
			}
			others := dayAppts[:0]
			for _, a := range dayAppts {
				if a.ID != id {
					others = append(others, a)
				}
			}
			if !slotFree(date, appt.LocationID, clock, others, slotsNeeded) {
				return ErrSlotTaken
			}

			updated, err = tx.UpdateAppointment(lockCtx, id, upd)
			return err
		})
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}
	return updated, nil
}

// ChangeStatus moves an appointment through the lifecycle. Illegal jumps are
// rejected, and the update itself is a compare-and-swap on the current status
// so a concurrent change loses cleanly.
func (s *Service) ChangeStatus(ctx context.Context, id uuid.UUID, to AppointmentStatus) (*Appointment, error) {
	if !to.Valid() || to == StatusBlocked {
		return nil, ErrInvalidTransition
	}

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.Status == StatusBlocked {
		return nil, ErrBlockedAppointment
	}
	if !appt.Status.CanTransitionTo(to) {
		return nil, ErrInvalidTransition
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, id, appt.Status, to)
	if err != nil {
		return nil, fmt.Errorf("change status: %w", err)
	}
	return updated, nil
}

func (s *Service) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteAppointment(ctx, id)
}

// BlockSlot manually removes a slot from availability by inserting a
// synthetic appointment against the sentinel block patient, creating the
// sentinel on first use.
func (s *Service) BlockSlot(ctx context.Context, locationID, date, clock string) (*Appointment, error) {
	loc, ok := LocationByID(locationID)
	if !ok {
		return nil, ErrUnknownLocation
	}
	startsAt, err := CombineDateTime(date, clock)
	if err != nil {
		return nil, ErrInvalidDateTime
	}
	if !loc.allowsDay(startsAt.Weekday()) {
		return nil, ErrDayNotAllowed
	}

	var created *Appointment

	err = s.locker.WithBookingLock(ctx, locationID, date, func(lockCtx context.Context) error {
		return s.repo.WithTx(lockCtx, func(tx Repository) error {
			sentinel, err := tx.FindPatientByEmail(lockCtx, s.cfg.AppID, BlockPatientEmail)
			if err != nil {
				if !errors.Is(err, ErrPatientNotFound) {
					return fmt.Errorf("find block patient: %w", err)
				}
				email := BlockPatientEmail
				sentinel, err = tx.InsertPatient(lockCtx, &Patient{
					AppID: s.cfg.AppID,
					Name:  "BLOQUEO DE HORARIO",
					Email: &email,
					Phone: "0000000000",
					Notes: "Usuario sistema para bloqueos",
				})
				if err != nil {
					return fmt.Errorf("create block patient: %w", err)
				}
			}

			dayAppts, err := tx.ListAppointmentsOnDay(lockCtx, s.cfg.AppID, locationID, startsAt)
			if err != nil {
				return fmt.Errorf("check day appointments: %w", err)
			}
			if !slotFree(date, locationID, clock, dayAppts, 1) {
				return ErrSlotTaken
			}

			created, err = tx.InsertAppointment(lockCtx, &Appointment{
				AppID:      s.cfg.AppID,
				PatientID:  sentinel.ID,
				LocationID: locationID,
				Reason:     ReasonSpecificService,
				StartsAt:   startsAt,
				Status:     StatusBlocked,
				Notes:      "Horario Bloqueado Manualmente",
			})
			return err
		})
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	return created, nil
}
