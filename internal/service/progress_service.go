package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"garage/internal/database"
	"garage/internal/domain"
	"garage/internal/events"
	"garage/internal/models"

	"github.com/rs/zerolog"
)

// ProgressService keeps the append-only work ledger: dated progress notes
// and photos tied to a request.
type ProgressService struct {
	repo      domain.Repository
	uploader  domain.Uploader
	eventBus  domain.EventPublisher
	dbTimeout time.Duration
	logger    *zerolog.Logger
}

func NewProgressService(repo domain.Repository, uploader domain.Uploader, eventBus domain.EventPublisher, dbTimeout time.Duration, logger *zerolog.Logger) *ProgressService {
	if dbTimeout <= 0 {
		dbTimeout = models.DefaultDBTimeout * time.Second
	}
	return &ProgressService{
		repo:      repo,
		uploader:  uploader,
		eventBus:  eventBus,
		dbTimeout: dbTimeout,
		logger:    logger,
	}
}

func (s *ProgressService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.dbTimeout)
}

// AddProgress appends one dated work note. Only the assigned mechanic may
// write, and only while the job is in progress.
func (s *ProgressService) AddProgress(ctx context.Context, requestID int64, mechanicID int64, date time.Time, description string) (*models.ServiceProgress, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, fmt.Errorf("%w: description is required", database.ErrValidation)
	}

	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	req, err := s.repo.GetRequest(opCtx, requestID)
	if err != nil {
		return nil, err
	}
	if !req.IsAssignedTo(mechanicID) {
		return nil, fmt.Errorf("%w: mechanic %d is not assigned to request %d", database.ErrForbidden, mechanicID, requestID)
	}
	if req.Status != models.StatusInProgress {
		return nil, fmt.Errorf("%w: progress may only be recorded while in_progress", database.ErrValidation)
	}

	if date.IsZero() {
		date = time.Now()
	}
	progress := &models.ServiceProgress{
		RequestID:    requestID,
		MechanicID:   mechanicID,
		ProgressDate: date,
		Description:  description,
	}
	if err := s.repo.AppendProgress(opCtx, progress); err != nil {
		return nil, err
	}

	s.publishProgressEvent(req, mechanicID, description)

	return progress, nil
}

// AttachPhoto associates an already-uploaded image reference with a
// request and, optionally, with one of its progress entries.
func (s *ProgressService) AttachPhoto(ctx context.Context, requestID int64, progressID *int64, uploaderID int64, photoRef, description string) (*models.ServicePhoto, error) {
	if strings.TrimSpace(photoRef) == "" {
		return nil, fmt.Errorf("%w: photo reference is required", database.ErrValidation)
	}

	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.repo.GetRequest(opCtx, requestID); err != nil {
		return nil, err
	}
	if progressID != nil {
		progress, err := s.repo.GetProgress(opCtx, *progressID)
		if err != nil {
			return nil, err
		}
		if progress.RequestID != requestID {
			return nil, fmt.Errorf("%w: progress %d does not belong to request %d", database.ErrValidation, *progressID, requestID)
		}
	}

	photo := &models.ServicePhoto{
		RequestID:   requestID,
		ProgressID:  progressID,
		UploadedBy:  uploaderID,
		Path:        photoRef,
		Description: description,
	}
	if err := s.repo.AppendPhoto(opCtx, photo); err != nil {
		return nil, err
	}
	return photo, nil
}

// UploadPhoto stores raw image bytes via the upload collaborator and then
// attaches the resulting reference. The upload is awaited first; a failed
// upload reports UploadFailed and writes nothing, and never rolls back a
// progress entry created earlier.
func (s *ProgressService) UploadPhoto(ctx context.Context, requestID int64, progressID *int64, uploaderID int64, data []byte, description string) (*models.ServicePhoto, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty photo payload", database.ErrValidation)
	}

	ref, err := s.uploader.Upload(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", database.ErrUploadFailed, err)
	}

	return s.AttachPhoto(ctx, requestID, progressID, uploaderID, ref, description)
}

func (s *ProgressService) ListProgress(ctx context.Context, requestID int64) ([]*models.ServiceProgress, error) {
	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.repo.ListProgress(opCtx, requestID)
}

func (s *ProgressService) ListPhotos(ctx context.Context, requestID int64) ([]*models.ServicePhoto, error) {
	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.repo.ListPhotos(opCtx, requestID)
}

func (s *ProgressService) publishProgressEvent(req *models.ServiceRequest, mechanicID int64, notes string) {
	if s.eventBus == nil {
		return
	}

	payload := events.RequestEventPayload{
		RequestID:  req.ID,
		CustomerID: req.CustomerID,
		VehicleID:  req.VehicleID,
		Status:     req.Status,
		MechanicID: req.AssignedMechanicID,
		ChangedBy:  mechanicID,
		ActorRole:  models.RoleMechanic,
		Notes:      notes,
	}

	if err := s.eventBus.PublishJSON(events.EventProgressAdded, payload); err != nil {
		s.logger.Error().Err(err).Int64("request_id", req.ID).Msg("publish event error")
	}
}
