package clinic

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusPending     AppointmentStatus = "pending"
	StatusConfirmed   AppointmentStatus = "confirmed"
	StatusWaitingRoom AppointmentStatus = "waiting_room"
	StatusInProgress  AppointmentStatus = "in_progress"
	StatusFinished    AppointmentStatus = "finished"
	StatusCancelled   AppointmentStatus = "cancelled"
	StatusBlocked     AppointmentStatus = "blocked"
)

// transitions is the total transition table for appointment statuses.
// Finished, cancelled and blocked are terminal. Blocked rows are synthetic
// (sentinel patient) and never move through the normal lifecycle.
var transitions = map[AppointmentStatus][]AppointmentStatus{
	StatusPending:     {StatusConfirmed, StatusCancelled},
	StatusConfirmed:   {StatusWaitingRoom, StatusCancelled},
	StatusWaitingRoom: {StatusInProgress, StatusCancelled},
	StatusInProgress:  {StatusFinished, StatusCancelled},
	StatusFinished:    {},
	StatusCancelled:   {},
	StatusBlocked:     {},
}

func (s AppointmentStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransitionTo reports whether moving from s to the target status is a
// legal lifecycle step.
func (s AppointmentStatus) CanTransitionTo(to AppointmentStatus) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

type Reason string

const (
	ReasonFirstVisit      Reason = "first-visit"
	ReasonFollowUp        Reason = "follow-up"
	ReasonSpecificService Reason = "specific-service"
)

func (r Reason) Valid() bool {
	switch r {
	case ReasonFirstVisit, ReasonFollowUp, ReasonSpecificService:
		return true
	}
	return false
}

// BlockPatientEmail is the reserved address of the sentinel patient that owns
// manually blocked calendar slots. Rows bound to it are not real bookings.
const BlockPatientEmail = "system@block.com"

// Location is a clinic branch. Reference data, kept as a static in-code
// table rather than a live collection.
type Location struct {
	ID          string
	Name        string
	Address     string
	Image       string
	AllowedDays []time.Weekday
	StartHour   int
	EndHour     int
	IntervalMin int
}

// Treatment is a bookable service from the clinic's catalog. Duration is
// expressed as a count of consecutive 30-minute slots.
type Treatment struct {
	ID          string
	Name        string
	Description string
	Slots       int
	Price       *float64
}

type Address struct {
	Street       string `json:"street,omitempty"`
	Number       string `json:"number,omitempty"`
	Neighborhood string `json:"neighborhood,omitempty"`
	Municipality string `json:"municipality,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	ZipCode      string `json:"zip_code,omitempty"`
}

// MedicalHistory is the structured intake record stored as JSONB on the
// patient row.
type MedicalHistory struct {
	Sex              string   `json:"sex,omitempty"`
	DateOfBirth      string   `json:"date_of_birth,omitempty"`
	MaritalStatus    string   `json:"marital_status,omitempty"`
	SpouseName       string   `json:"spouse_name,omitempty"`
	HomePhone        string   `json:"home_phone,omitempty"`
	OfficePhone      string   `json:"office_phone,omitempty"`
	Occupation       string   `json:"occupation,omitempty"`
	Address          *Address `json:"address,omitempty"`
	Insurance        bool     `json:"insurance,omitempty"`
	InsuranceCompany string   `json:"insurance_company,omitempty"`
	Sports           string   `json:"sports,omitempty"`
	RecommendedBy    string   `json:"recommended_by,omitempty"`

	BloodType     string `json:"blood_type,omitempty"`
	Allergies     string `json:"allergies,omitempty"`
	Conditions    string `json:"conditions,omitempty"`
	Medications   string `json:"medications,omitempty"`
	Surgeries     string `json:"surgeries,omitempty"`
	FamilyHistory string `json:"family_history,omitempty"`

	NonPathologicalHistory string `json:"non_pathological_history,omitempty"`
	PathologicalHistory    string `json:"pathological_history,omitempty"`
	GynecoObstetricHistory string `json:"gyneco_obstetric_history,omitempty"`
	PerinatalHistory       string `json:"perinatal_history,omitempty"`
	CurrentCondition       string `json:"current_condition,omitempty"`
	PhysicalExploration    string `json:"physical_exploration,omitempty"`
	LabStudies             string `json:"lab_studies,omitempty"`
	Treatment              string `json:"treatment,omitempty"`
	Prognosis              string `json:"prognosis,omitempty"`
}

// SoapNote is the per-appointment clinical note (JSONB).
type SoapNote struct {
	Subjective string `json:"subjective"`
	Objective  string `json:"objective"`
	Analysis   string `json:"analysis"`
	Plan       string `json:"plan"`
}

type Patient struct {
	ID             uuid.UUID
	AppID          string
	Name           string
	Email          *string
	Phone          string
	Notes          string
	MedicalHistory *MedicalHistory
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsBlockSentinel reports whether this patient is the reserved slot-blocking
// account rather than a real person.
func (p *Patient) IsBlockSentinel() bool {
	return p.Email != nil && *p.Email == BlockPatientEmail
}

type Appointment struct {
	ID           uuid.UUID
	AppID        string
	PatientID    uuid.UUID
	LocationID   string
	ServiceID    *string
	ServiceName  string
	Reason       Reason
	StartsAt     time.Time
	Status       AppointmentStatus
	Notes        string
	ClinicalNote *SoapNote
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Date returns the calendar-day half of StartsAt as YYYY-MM-DD.
func (a *Appointment) Date() string {
	return a.StartsAt.Format(DateLayout)
}

// ClockTime returns the half-hour-aligned clock half of StartsAt as HH:MM.
func (a *Appointment) ClockTime() string {
	return a.StartsAt.Format(TimeLayout)
}

// CombineDateTime builds the single timestamp stored in the database from the
// separate date and time strings the handlers work with.
func CombineDateTime(date, clock string) (time.Time, error) {
	return time.ParseInLocation(DateLayout+"T"+TimeLayout, date+"T"+clock, time.Local)
}

// AppointmentDetail is an appointment hydrated with its patient for list
// views.
type AppointmentDetail struct {
	Appointment
	Patient *Patient
}

// Upload is the metadata row paired with a blob in file storage.
type Upload struct {
	ID          uuid.UUID
	PatientID   uuid.UUID
	FileName    string
	Path        string
	ContentType string
	Size        int64
	CreatedAt   time.Time
}

// AdminUser is a back-office account allowed to sign in to the panel.
type AdminUser struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}
