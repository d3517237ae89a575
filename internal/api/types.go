package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/parisrizo/clinic-booking/internal/clinic"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

type SessionResponse struct {
	Subject   string    `json:"subject"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

type LocationResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Address     string `json:"address"`
	Image       string `json:"image"`
	AllowedDays []int  `json:"allowed_days"`
}

type ServiceResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Slots       int      `json:"slots"`
	Price       *float64 `json:"price,omitempty"`
}

type AvailabilityResponse struct {
	LocationID string   `json:"location_id"`
	Date       string   `json:"date"`
	Slots      []string `json:"slots"`
}

type PatientPayload struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	Notes string `json:"notes"`
}

type BookingRequest struct {
	LocationID         string         `json:"location_id"`
	ServiceID          string         `json:"service_id"`
	Reason             string         `json:"reason"`
	ServiceDescription string         `json:"service_description"`
	Date               string         `json:"date"`
	Time               string         `json:"time"`
	Notes              string         `json:"notes"`
	Patient            PatientPayload `json:"patient"`
}

type AppointmentResponse struct {
	ID           uuid.UUID        `json:"id"`
	PatientID    uuid.UUID        `json:"patient_id"`
	PatientName  string           `json:"patient_name,omitempty"`
	LocationID   string           `json:"location_id"`
	ServiceID    *string          `json:"service_id,omitempty"`
	ServiceName  string           `json:"service_name,omitempty"`
	Reason       string           `json:"reason"`
	Date         string           `json:"date"`
	Time         string           `json:"time"`
	Status       string           `json:"status"`
	Notes        string           `json:"notes,omitempty"`
	ClinicalNote *clinic.SoapNote `json:"clinical_note,omitempty"`
}

type PatientResponse struct {
	ID             uuid.UUID              `json:"id"`
	Name           string                 `json:"name"`
	Email          *string                `json:"email"`
	Phone          string                 `json:"phone"`
	Notes          string                 `json:"notes"`
	MedicalHistory *clinic.MedicalHistory `json:"medical_history,omitempty"`
	History        []uuid.UUID            `json:"history,omitempty"`
}

type UpdatePatientRequest struct {
	Notes          string                 `json:"notes"`
	MedicalHistory *clinic.MedicalHistory `json:"medical_history"`
}

type UpdateAppointmentRequest struct {
	Date         string           `json:"date"`
	Time         string           `json:"time"`
	ServiceID    *string          `json:"service_id"`
	Notes        *string          `json:"notes"`
	ClinicalNote *clinic.SoapNote `json:"clinical_note"`
}

type StatusRequest struct {
	Status string `json:"status"`
}

type BlockRequest struct {
	LocationID string `json:"location_id"`
	Date       string `json:"date"`
	Time       string `json:"time"`
}

type AttachmentResponse struct {
	ID          uuid.UUID `json:"id"`
	PatientID   uuid.UUID `json:"patient_id"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	URL         string    `json:"url"`
	CreatedAt   time.Time `json:"created_at"`
}

func toAppointmentResponse(a *clinic.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:           a.ID,
		PatientID:    a.PatientID,
		LocationID:   a.LocationID,
		ServiceID:    a.ServiceID,
		ServiceName:  a.ServiceName,
		Reason:       string(a.Reason),
		Date:         a.Date(),
		Time:         a.ClockTime(),
		Status:       string(a.Status),
		Notes:        a.Notes,
		ClinicalNote: a.ClinicalNote,
	}
}

func toPatientResponse(p *clinic.Patient, history []clinic.Appointment) PatientResponse {
	resp := PatientResponse{
		ID:             p.ID,
		Name:           p.Name,
		Email:          p.Email,
		Phone:          p.Phone,
		Notes:          p.Notes,
		MedicalHistory: p.MedicalHistory,
	}
	for _, a := range history {
		resp.History = append(resp.History, a.ID)
	}
	return resp
}
