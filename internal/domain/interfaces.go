package domain

import (
	"context"
	"time"

	"garage/internal/models"
)

// Repository is the persistence surface the lifecycle engine consumes.
// The sqlite adapter in internal/database implements it.
type Repository interface {
	CreateRequest(ctx context.Context, req *models.ServiceRequest) error
	GetRequest(ctx context.Context, id int64) (*models.ServiceRequest, error)
	ListRequests(ctx context.Context, from, to time.Time) ([]*models.ServiceRequest, error)
	UpdateRequestWithVersion(ctx context.Context, req *models.ServiceRequest, fromVersion int64) error
	// ApplyTransition must write the request row and the history entry
	// atomically; hist may be nil for in-place payload updates.
	ApplyTransition(ctx context.Context, req *models.ServiceRequest, fromVersion int64, hist *models.StatusHistory) error

	AppendHistory(ctx context.Context, hist *models.StatusHistory) error
	ListHistory(ctx context.Context, requestID int64) ([]*models.StatusHistory, error)

	AppendProgress(ctx context.Context, p *models.ServiceProgress) error
	GetProgress(ctx context.Context, id int64) (*models.ServiceProgress, error)
	ListProgress(ctx context.Context, requestID int64) ([]*models.ServiceProgress, error)
	AppendPhoto(ctx context.Context, photo *models.ServicePhoto) error
	ListPhotos(ctx context.Context, requestID int64) ([]*models.ServicePhoto, error)

	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetVehicle(ctx context.Context, id int64) (*models.Vehicle, error)
}

// Uploader is the external collaborator that stores raw photo bytes and
// hands back an opaque reference.
type Uploader interface {
	Upload(ctx context.Context, data []byte) (string, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type SyncWorker interface {
	EnqueueTask(ctx context.Context, taskType string, requestID int64, req *models.ServiceRequest, status string) error
}

// RateLimitStore throttles write operations per actor at the API edge.
type RateLimitStore interface {
	CheckRateLimit(ctx context.Context, actorID int64, limit int, window time.Duration) (bool, error)
}
