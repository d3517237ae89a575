package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/parisrizo/clinic-booking/internal/auth"
	"github.com/parisrizo/clinic-booking/internal/clinic"
	"github.com/parisrizo/clinic-booking/internal/files"
)

// Auth

func loginHandler(sessions *auth.Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if req.Email == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "missing_credentials", "email and password are required")
			return
		}

		token, err := sessions.SignInWithPassword(r.Context(), req.Email, req.Password)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				writeError(w, http.StatusUnauthorized, "invalid_credentials", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, LoginResponse{Token: token})
	}
}

func sessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := GetClaims(r.Context())
		if claims == nil {
			writeError(w, http.StatusUnauthorized, "no_session", "no active session")
			return
		}
		writeJSON(w, http.StatusOK, SessionResponse{
			Subject:   claims.Subject,
			Email:     claims.Email,
			ExpiresAt: claims.ExpiresAt.Time,
		})
	}
}

// Reference data

func listLocationsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := make([]LocationResponse, 0, len(clinic.Locations))
		for _, l := range clinic.Locations {
			days := make([]int, 0, len(l.AllowedDays))
			for _, d := range l.AllowedDays {
				days = append(days, int(d))
			}
			resp = append(resp, LocationResponse{
				ID:          l.ID,
				Name:        l.Name,
				Address:     l.Address,
				Image:       l.Image,
				AllowedDays: days,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func listServicesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := make([]ServiceResponse, 0, len(clinic.Services))
		for _, s := range clinic.Services {
			resp = append(resp, ServiceResponse{
				ID:          s.ID,
				Name:        s.Name,
				Description: s.Description,
				Slots:       s.Slots,
				Price:       s.Price,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// Availability and booking

func availabilityHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		locationID := r.URL.Query().Get("location_id")
		date := r.URL.Query().Get("date")
		serviceID := r.URL.Query().Get("service_id")
		if locationID == "" || date == "" {
			writeError(w, http.StatusBadRequest, "missing_params", "location_id and date are required")
			return
		}

		slots, err := svc.AvailableSlots(r.Context(), date, locationID, serviceID)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		if slots == nil {
			slots = []string{}
		}

		writeJSON(w, http.StatusOK, AvailabilityResponse{
			LocationID: locationID,
			Date:       date,
			Slots:      slots,
		})
	}
}

func createBookingHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appt, err := svc.BookAppointment(r.Context(), clinic.BookingDraft{
			LocationID:         req.LocationID,
			ServiceID:          req.ServiceID,
			Reason:             clinic.Reason(req.Reason),
			ServiceDescription: req.ServiceDescription,
			Date:               req.Date,
			Time:               req.Time,
			Notes:              req.Notes,
			Contact: clinic.PatientContact{
				Name:  req.Patient.Name,
				Email: req.Patient.Email,
				Phone: req.Patient.Phone,
				Notes: req.Patient.Notes,
			},
		})
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

// Patients

func listPatientsHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patients, err := svc.ListPatients(r.Context())
		if err != nil {
			handleServiceError(w, err)
			return
		}

		resp := make([]PatientResponse, 0, len(patients))
		for i := range patients {
			resp = append(resp, toPatientResponse(&patients[i], nil))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func registerPatientHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PatientPayload
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patient, err := svc.RegisterPatient(r.Context(), clinic.PatientContact{
			Name:  req.Name,
			Email: req.Email,
			Phone: req.Phone,
			Notes: req.Notes,
		})
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toPatientResponse(patient, nil))
	}
}

func getPatientHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "id must be a valid UUID")
			return
		}

		patient, err := svc.GetPatient(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		history, err := svc.ListAppointmentsByPatient(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toPatientResponse(patient, history))
	}
}

func updatePatientHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "id must be a valid UUID")
			return
		}

		var req UpdatePatientRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patient, err := svc.UpdatePatientRecord(r.Context(), id, req.Notes, req.MedicalHistory)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toPatientResponse(patient, nil))
	}
}

func deletePatientHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "id must be a valid UUID")
			return
		}

		if err := svc.DeletePatient(r.Context(), id); err != nil {
			handleServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// Appointments

func listAppointmentsHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		locationID := r.URL.Query().Get("location_id")
		if locationID == "" {
			writeError(w, http.StatusBadRequest, "missing_params", "location_id is required")
			return
		}

		details, err := svc.ListAppointmentsByLocation(r.Context(), locationID)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		resp := make([]AppointmentResponse, 0, len(details))
		for i := range details {
			item := toAppointmentResponse(&details[i].Appointment)
			if details[i].Patient != nil {
				item.PatientName = details[i].Patient.Name
			}
			resp = append(resp, item)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func listPatientAppointmentsHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "id must be a valid UUID")
			return
		}

		appts, err := svc.ListAppointmentsByPatient(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		resp := make([]AppointmentResponse, 0, len(appts))
		for i := range appts {
			resp = append(resp, toAppointmentResponse(&appts[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func updateAppointmentHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req UpdateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appt, err := svc.UpdateAppointment(r.Context(), id, clinic.AppointmentPatch{
			Date:         req.Date,
			Time:         req.Time,
			ServiceID:    req.ServiceID,
			Notes:        req.Notes,
			ClinicalNote: req.ClinicalNote,
		})
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func changeStatusHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req StatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appt, err := svc.ChangeStatus(r.Context(), id, clinic.AppointmentStatus(req.Status))
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func deleteAppointmentHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		if err := svc.DeleteAppointment(r.Context(), id); err != nil {
			handleServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func blockSlotHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BlockRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appt, err := svc.BlockSlot(r.Context(), req.LocationID, req.Date, req.Time)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

// Patient files

func uploadFileHandler(mgr *files.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "id must be a valid UUID")
			return
		}

		if err := r.ParseMultipartForm(files.MaxFileSize); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_upload", "could not parse multipart form")
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "missing_file", "a \"file\" form field is required")
			return
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, files.MaxFileSize+1))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		attachment, err := mgr.Attach(r.Context(), patientID, header.Filename, header.Header.Get("Content-Type"), data)
		if err != nil {
			handleFileError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAttachmentResponse(attachment))
	}
}

func listFilesHandler(mgr *files.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "id must be a valid UUID")
			return
		}

		attachments, err := mgr.ListForPatient(r.Context(), patientID)
		if err != nil {
			handleFileError(w, err)
			return
		}

		resp := make([]AttachmentResponse, 0, len(attachments))
		for i := range attachments {
			resp = append(resp, toAttachmentResponse(&attachments[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func deleteFileHandler(mgr *files.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_upload_id", "id must be a valid UUID")
			return
		}

		if err := mgr.Remove(r.Context(), id); err != nil {
			handleFileError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func serveFileHandler(store *files.FSStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := chi.URLParam(r, "*")
		full, err := store.Open(path)
		if err != nil {
			if errors.Is(err, files.ErrBlobNotFound) || errors.Is(err, files.ErrInvalidPath) {
				writeError(w, http.StatusNotFound, "file_not_found", "no such file")
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		http.ServeFile(w, r, full)
	}
}

func toAttachmentResponse(a *files.Attachment) AttachmentResponse {
	return AttachmentResponse{
		ID:          a.ID,
		PatientID:   a.PatientID,
		FileName:    a.FileName,
		ContentType: a.ContentType,
		Size:        a.Size,
		URL:         a.URL,
		CreatedAt:   a.CreatedAt,
	}
}

// Error mapping

func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, clinic.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, clinic.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, clinic.ErrUnknownLocation):
		writeError(w, http.StatusNotFound, "unknown_location", err.Error())
	case errors.Is(err, clinic.ErrUnknownService):
		writeError(w, http.StatusNotFound, "unknown_service", err.Error())
	case errors.Is(err, clinic.ErrInvalidReason),
		errors.Is(err, clinic.ErrInvalidDateTime),
		errors.Is(err, clinic.ErrMissingContact):
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, clinic.ErrDayNotAllowed):
		writeError(w, http.StatusUnprocessableEntity, "day_not_allowed", err.Error())
	case errors.Is(err, clinic.ErrSlotTaken):
		writeError(w, http.StatusConflict, "slot_taken", err.Error())
	case errors.Is(err, clinic.ErrSlotBeingBooked):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
	case errors.Is(err, clinic.ErrPatientExists):
		writeError(w, http.StatusConflict, "patient_exists", err.Error())
	case errors.Is(err, clinic.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, clinic.ErrBlockedAppointment):
		writeError(w, http.StatusConflict, "blocked_appointment", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func handleFileError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, clinic.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, clinic.ErrUploadNotFound):
		writeError(w, http.StatusNotFound, "upload_not_found", err.Error())
	case errors.Is(err, files.ErrFileTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "file_too_large", err.Error())
	case errors.Is(err, files.ErrContentType):
		writeError(w, http.StatusUnsupportedMediaType, "content_type_not_allowed", err.Error())
	case errors.Is(err, files.ErrMissingName), errors.Is(err, files.ErrInvalidPath):
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
