package files

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/parisrizo/clinic-booking/internal/clinic"
)

// uploadRepo stubs the metadata calls Manager needs.
type uploadRepo struct {
	clinic.Repository

	patient *clinic.Patient
	uploads map[uuid.UUID]*clinic.Upload
	deleted []uuid.UUID
}

func (r *uploadRepo) GetPatientByID(ctx context.Context, id uuid.UUID) (*clinic.Patient, error) {
	if r.patient != nil && r.patient.ID == id {
		return r.patient, nil
	}
	return nil, clinic.ErrPatientNotFound
}

func (r *uploadRepo) InsertUpload(ctx context.Context, u *clinic.Upload) (*clinic.Upload, error) {
	created := *u
	created.ID = uuid.New()
	if r.uploads == nil {
		r.uploads = map[uuid.UUID]*clinic.Upload{}
	}
	r.uploads[created.ID] = &created
	return &created, nil
}

func (r *uploadRepo) GetUploadByID(ctx context.Context, id uuid.UUID) (*clinic.Upload, error) {
	if u, ok := r.uploads[id]; ok {
		return u, nil
	}
	return nil, clinic.ErrUploadNotFound
}

func (r *uploadRepo) DeleteUpload(ctx context.Context, id uuid.UUID) error {
	if _, ok := r.uploads[id]; !ok {
		return clinic.ErrUploadNotFound
	}
	delete(r.uploads, id)
	r.deleted = append(r.deleted, id)
	return nil
}

func newTestManager(t *testing.T) (*Manager, *uploadRepo, *FSStore) {
	t.Helper()
	store := newTestStore(t)
	repo := &uploadRepo{patient: &clinic.Patient{ID: uuid.New(), Name: "Ana Torres"}}
	return NewManager(repo, store), repo, store
}

func TestManagerAttachAndList(t *testing.T) {
	mgr, repo, _ := newTestManager(t)

	attachment, err := mgr.Attach(context.Background(), repo.patient.ID, "radiografia.png", "image/png", []byte("png"))
	assert.NoError(t, err)
	assert.Equal(t, repo.patient.ID, attachment.PatientID)
	assert.Contains(t, attachment.URL, "radiografia.png")
}

func TestManagerAttachValidation(t *testing.T) {
	mgr, repo, _ := newTestManager(t)

	_, err := mgr.Attach(context.Background(), repo.patient.ID, "", "image/png", []byte("x"))
	assert.ErrorIs(t, err, ErrMissingName)

	_, err = mgr.Attach(context.Background(), repo.patient.ID, "virus.exe", "application/octet-stream", []byte("x"))
	assert.ErrorIs(t, err, ErrContentType)

	_, err = mgr.Attach(context.Background(), uuid.New(), "scan.png", "image/png", []byte("x"))
	assert.ErrorIs(t, err, clinic.ErrPatientNotFound)
}

func TestManagerRemoveToleratesMissingBlob(t *testing.T) {
	mgr, repo, store := newTestManager(t)

	attachment, err := mgr.Attach(context.Background(), repo.patient.ID, "scan.png", "image/png", []byte("png"))
	assert.NoError(t, err)

	// The blob vanished out of band; the metadata row must still go away.
	assert.NoError(t, store.Delete(attachment.Path))
	assert.NoError(t, mgr.Remove(context.Background(), attachment.ID))
	assert.Contains(t, repo.deleted, attachment.ID)
}
