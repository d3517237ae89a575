package files

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/google/uuid"

	"github.com/parisrizo/clinic-booking/internal/clinic"
)

// Attachment is an upload row plus its resolved public URL.
type Attachment struct {
	clinic.Upload
	URL string
}

// Manager pairs blob storage with the patient_uploads metadata table.
type Manager struct {
	repo  clinic.Repository
	store Store
}

func NewManager(repo clinic.Repository, store Store) *Manager {
	return &Manager{repo: repo, store: store}
}

// Attach stores the blob and records its metadata row. The blob is written
// first; a failed metadata insert leaves an unreferenced blob behind rather
// than a dangling row.
func (m *Manager) Attach(ctx context.Context, patientID uuid.UUID, fileName, contentType string, data []byte) (*Attachment, error) {
	if fileName == "" {
		return nil, ErrMissingName
	}
	if !AllowedContentTypes[contentType] {
		return nil, ErrContentType
	}

	if _, err := m.repo.GetPatientByID(ctx, patientID); err != nil {
		return nil, err
	}

	blobPath := path.Join(patientID.String(), uuid.NewString()+"-"+path.Base(fileName))
	if err := m.store.Upload(blobPath, data); err != nil {
		return nil, fmt.Errorf("upload blob: %w", err)
	}

	row, err := m.repo.InsertUpload(ctx, &clinic.Upload{
		PatientID:   patientID,
		FileName:    fileName,
		Path:        blobPath,
		ContentType: contentType,
		Size:        int64(len(data)),
	})
	if err != nil {
		return nil, fmt.Errorf("record upload: %w", err)
	}

	return &Attachment{Upload: *row, URL: m.store.PublicURL(blobPath)}, nil
}

func (m *Manager) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]Attachment, error) {
	rows, err := m.repo.ListUploadsByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}

	result := make([]Attachment, 0, len(rows))
	for _, row := range rows {
		result = append(result, Attachment{Upload: row, URL: m.store.PublicURL(row.Path)})
	}
	return result, nil
}

// Remove deletes the blob and then its metadata row, mirroring the
// storage-then-table order of the admin panel.
func (m *Manager) Remove(ctx context.Context, id uuid.UUID) error {
	row, err := m.repo.GetUploadByID(ctx, id)
	if err != nil {
		return err
	}

	if err := m.store.Delete(row.Path); err != nil && !errors.Is(err, ErrBlobNotFound) {
		return fmt.Errorf("delete blob: %w", err)
	}

	return m.repo.DeleteUpload(ctx, id)
}
