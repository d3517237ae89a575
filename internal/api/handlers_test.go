package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/parisrizo/clinic-booking/internal/auth"
	"github.com/parisrizo/clinic-booking/internal/clinic"
	"github.com/parisrizo/clinic-booking/internal/config"
	"github.com/parisrizo/clinic-booking/internal/files"
)

const (
	testLocation = "consultorio-paris-rizo"
	openDay      = "2026-09-07" // a Monday
)

// fakeRepo is a minimal in-memory repository covering only the calls the
// routed handlers under test reach.
type fakeRepo struct {
	clinic.Repository

	appointments []clinic.Appointment
	patients     []clinic.Patient
	admin        *clinic.AdminUser
}

func (r *fakeRepo) WithTx(ctx context.Context, fn func(clinic.Repository) error) error {
	return fn(r)
}

func (r *fakeRepo) ListAppointmentsOnDay(ctx context.Context, appID, locationID string, day time.Time) ([]clinic.Appointment, error) {
	var result []clinic.Appointment
	for _, a := range r.appointments {
		if a.LocationID == locationID && a.Date() == day.Format(clinic.DateLayout) {
			result = append(result, a)
		}
	}
	return result, nil
}

func (r *fakeRepo) FindPatientByEmail(ctx context.Context, appID, email string) (*clinic.Patient, error) {
	for i := range r.patients {
		if r.patients[i].Email != nil && *r.patients[i].Email == email {
			return &r.patients[i], nil
		}
	}
	return nil, clinic.ErrPatientNotFound
}

func (r *fakeRepo) FindPatientByContact(ctx context.Context, appID, name, phone string) (*clinic.Patient, error) {
	for i := range r.patients {
		if r.patients[i].Name == name && r.patients[i].Phone == phone {
			return &r.patients[i], nil
		}
	}
	return nil, clinic.ErrPatientNotFound
}

func (r *fakeRepo) InsertPatient(ctx context.Context, p *clinic.Patient) (*clinic.Patient, error) {
	created := *p
	created.ID = uuid.New()
	r.patients = append(r.patients, created)
	return &created, nil
}

func (r *fakeRepo) InsertAppointment(ctx context.Context, a *clinic.Appointment) (*clinic.Appointment, error) {
	created := *a
	created.ID = uuid.New()
	r.appointments = append(r.appointments, created)
	return &created, nil
}

func (r *fakeRepo) GetAdminByEmail(ctx context.Context, email string) (*clinic.AdminUser, error) {
	if r.admin != nil && r.admin.Email == email {
		return r.admin, nil
	}
	return nil, clinic.ErrAdminNotFound
}

type noopLocker struct{}

func (noopLocker) WithBookingLock(ctx context.Context, locationID, date string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newTestServer(t *testing.T, repo *fakeRepo) *httptest.Server {
	t.Helper()

	cfg := config.Config{AppID: "dental"}
	svc := clinic.NewService(repo, noopLocker{}, cfg)
	sessions := auth.NewSessions(repo, "test-secret", time.Hour)

	store, err := files.NewFSStore(t.TempDir(), "http://localhost/files")
	assert.NoError(t, err)

	router := NewRouter(RouterConfig{
		Service:   svc,
		Sessions:  sessions,
		Files:     files.NewManager(repo, store),
		FileStore: store,
		Env:       "test",
		Version:   "test",
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	assert.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	assert.NoError(t, err)
	return resp
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestAvailabilityEndpoint(t *testing.T) {
	server := newTestServer(t, &fakeRepo{})

	resp, err := http.Get(server.URL + "/availability?location_id=" + testLocation + "&date=" + openDay)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeJSON[AvailabilityResponse](t, resp)
	assert.Equal(t, testLocation, body.LocationID)
	assert.Contains(t, body.Slots, "09:00")
	assert.Contains(t, body.Slots, "14:30")
}

func TestAvailabilityEndpointMissingParams(t *testing.T) {
	server := newTestServer(t, &fakeRepo{})

	resp, err := http.Get(server.URL + "/availability?date=" + openDay)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestBookingEndpointCreatesAppointment(t *testing.T) {
	repo := &fakeRepo{}
	server := newTestServer(t, repo)

	resp := postJSON(t, server.URL+"/bookings", BookingRequest{
		LocationID: testLocation,
		Reason:     "first-visit",
		Date:       openDay,
		Time:       "10:00",
		Patient: PatientPayload{
			Name:  "Ana Torres",
			Email: "ana@example.com",
			Phone: "5512345678",
		},
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decodeJSON[AppointmentResponse](t, resp)
	assert.Equal(t, "confirmed", body.Status)
	assert.Equal(t, "10:00", body.Time)
	assert.Len(t, repo.patients, 1)
	assert.Len(t, repo.appointments, 1)
}

func TestBookingEndpointConflict(t *testing.T) {
	repo := &fakeRepo{}
	server := newTestServer(t, repo)

	booking := BookingRequest{
		LocationID: testLocation,
		Reason:     "first-visit",
		Date:       openDay,
		Time:       "10:00",
		Patient: PatientPayload{
			Name:  "Ana Torres",
			Email: "ana@example.com",
			Phone: "5512345678",
		},
	}

	resp := postJSON(t, server.URL+"/bookings", booking)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	booking.Patient.Email = "otro@example.com"
	resp = postJSON(t, server.URL+"/bookings", booking)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	body := decodeJSON[ErrorResponse](t, resp)
	assert.Equal(t, "slot_taken", body.Error)
	assert.Len(t, repo.appointments, 1)
}

func TestBookingEndpointDisallowedDay(t *testing.T) {
	server := newTestServer(t, &fakeRepo{})

	resp := postJSON(t, server.URL+"/bookings", BookingRequest{
		LocationID: testLocation,
		Reason:     "first-visit",
		Date:       "2026-09-06", // Sunday
		Time:       "10:00",
		Patient:    PatientPayload{Name: "Ana", Phone: "5512345678"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	resp.Body.Close()
}

func TestAdminRoutesRequireToken(t *testing.T) {
	server := newTestServer(t, &fakeRepo{})

	resp, err := http.Get(server.URL + "/patients")
	assert.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestLoginAndSessionRoundtrip(t *testing.T) {
	hash, err := auth.HashPassword("hunter22")
	assert.NoError(t, err)

	repo := &fakeRepo{admin: &clinic.AdminUser{
		ID:           uuid.New(),
		Email:        "doctor@clinic.test",
		PasswordHash: hash,
	}}
	server := newTestServer(t, repo)

	resp := postJSON(t, server.URL+"/auth/login", LoginRequest{
		Email:    "doctor@clinic.test",
		Password: "hunter22",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	login := decodeJSON[LoginResponse](t, resp)
	assert.NotEmpty(t, login.Token)

	req, err := http.NewRequest(http.MethodGet, server.URL+"/auth/session", nil)
	assert.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+login.Token)

	sessionResp, err := http.DefaultClient.Do(req)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, sessionResp.StatusCode)

	session := decodeJSON[SessionResponse](t, sessionResp)
	assert.Equal(t, "doctor@clinic.test", session.Email)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	hash, err := auth.HashPassword("hunter22")
	assert.NoError(t, err)

	repo := &fakeRepo{admin: &clinic.AdminUser{
		ID:           uuid.New(),
		Email:        "doctor@clinic.test",
		PasswordHash: hash,
	}}
	server := newTestServer(t, repo)

	resp := postJSON(t, server.URL+"/auth/login", LoginRequest{
		Email:    "doctor@clinic.test",
		Password: "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}
