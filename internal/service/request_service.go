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

// Actor is the explicit identity + role behind every engine call. There is
// no ambient current user.
type Actor struct {
	ID   int64
	Role string
}

// TransitionPayload carries the optional fields a transition may set. Nil
// fields are left untouched on the request.
type TransitionPayload struct {
	AssignedMechanicID *int64
	AdminNotes         *string
	MechanicNotes      []models.MechanicNoteItem
	EstimatedCost      *float64
	DownPayment        *float64
	TotalCost          *float64
	PaymentMethod      *string
}

func (p TransitionPayload) isEmpty() bool {
	return p.AssignedMechanicID == nil &&
		p.AdminNotes == nil &&
		len(p.MechanicNotes) == 0 &&
		p.EstimatedCost == nil &&
		p.DownPayment == nil &&
		p.TotalCost == nil &&
		p.PaymentMethod == nil
}

// CreateRequestInput is the customer-authored part of a new request.
type CreateRequestInput struct {
	CustomerID    int64
	VehicleID     int64
	ServiceType   string
	Description   string
	PreferredDate time.Time
}

type RequestService struct {
	repo       domain.Repository
	eventBus   domain.EventPublisher
	syncWorker domain.SyncWorker
	dbTimeout  time.Duration
	logger     *zerolog.Logger
}

func NewRequestService(repo domain.Repository, eventBus domain.EventPublisher, syncWorker domain.SyncWorker, dbTimeout time.Duration, logger *zerolog.Logger) *RequestService {
	if dbTimeout <= 0 {
		dbTimeout = models.DefaultDBTimeout * time.Second
	}
	return &RequestService{
		repo:       repo,
		eventBus:   eventBus,
		syncWorker: syncWorker,
		dbTimeout:  dbTimeout,
		logger:     logger,
	}
}

// withTimeout bounds a single persistence call so the operation surfaces
// Timeout instead of hanging.
func (s *RequestService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.dbTimeout)
}

func (s *RequestService) CreateRequest(ctx context.Context, input CreateRequestInput) (*models.ServiceRequest, error) {
	if input.CustomerID == 0 || input.VehicleID == 0 {
		return nil, fmt.Errorf("%w: customer_id and vehicle_id are required", database.ErrValidation)
	}
	if strings.TrimSpace(input.ServiceType) == "" {
		return nil, fmt.Errorf("%w: service_type is required", database.ErrValidation)
	}

	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	vehicle, err := s.repo.GetVehicle(opCtx, input.VehicleID)
	if err != nil {
		return nil, err
	}
	if vehicle.CustomerID != input.CustomerID {
		return nil, fmt.Errorf("%w: vehicle %d does not belong to customer %d", database.ErrValidation, input.VehicleID, input.CustomerID)
	}

	req := &models.ServiceRequest{
		CustomerID:    input.CustomerID,
		VehicleID:     input.VehicleID,
		ServiceType:   strings.TrimSpace(input.ServiceType),
		Description:   input.Description,
		PreferredDate: input.PreferredDate,
		Status:        models.StatusPending,
	}
	if err := s.repo.CreateRequest(opCtx, req); err != nil {
		return nil, err
	}

	s.publishEvent(events.EventRequestCreated, req, Actor{ID: input.CustomerID, Role: models.RoleCustomer}, "")
	s.enqueueSync(ctx, req, "upsert")

	return req, nil
}

// Transition validates and applies one status change. On success exactly
// one request row is written and exactly one history row is appended, both
// in the same storage transaction.
func (s *RequestService) Transition(ctx context.Context, requestID int64, actor Actor, target string, payload TransitionPayload) (*models.ServiceRequest, error) {
	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	req, err := s.repo.GetRequest(opCtx, requestID)
	if err != nil {
		return nil, err
	}
	fromVersion := req.Version

	// Terminal requests are frozen for every actor and payload.
	if models.IsTerminalStatus(req.Status) {
		return nil, fmt.Errorf("%w: %s is terminal", database.ErrInvalidTransition, req.Status)
	}

	if err := s.authorizeActor(req, actor); err != nil {
		return nil, err
	}

	// Same-status resubmission: payload applied in place, no history row.
	if target == req.Status {
		return s.resubmit(opCtx, req, fromVersion, actor, payload)
	}

	rule, ok := LookupTransition(req.Status, target)
	if !ok {
		return nil, fmt.Errorf("%w: %s -> %s", database.ErrInvalidTransition, req.Status, target)
	}
	if !roleAllowed(rule, actor.Role, req.IsAssignedTo(actor.ID)) {
		return nil, fmt.Errorf("%w: role %s may not move %s -> %s", database.ErrForbidden, actor.Role, req.Status, target)
	}
	if err := checkRequiredFields(rule, payload); err != nil {
		return nil, err
	}

	if err := s.applyPayload(opCtx, req, actor, target, payload); err != nil {
		return nil, err
	}

	req.Status = target
	req.UpdatedAt = time.Now()

	hist := &models.StatusHistory{
		RequestID: req.ID,
		Status:    target,
		Notes:     historyNotes(target, payload),
		ChangedBy: actor.ID,
	}
	if err := s.repo.ApplyTransition(opCtx, req, fromVersion, hist); err != nil {
		return nil, err
	}

	s.publishEvent(events.EventStatusChanged, req, actor, derefOrEmpty(hist.Notes))
	s.enqueueSync(ctx, req, "update_status")

	return req, nil
}

// AssignMechanic sets job ownership outside of a status transition. The
// job may only change hands before work starts.
func (s *RequestService) AssignMechanic(ctx context.Context, requestID int64, actor Actor, mechanicID int64) (*models.ServiceRequest, error) {
	if actor.Role != models.RoleAdmin {
		return nil, fmt.Errorf("%w: only admin may assign a mechanic", database.ErrForbidden)
	}

	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	req, err := s.repo.GetRequest(opCtx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != models.StatusPending && req.Status != models.StatusApproved {
		return nil, fmt.Errorf("%w: job already claimed, cannot reassign while %s", database.ErrForbidden, req.Status)
	}

	if err := s.checkMechanic(opCtx, mechanicID); err != nil {
		return nil, err
	}

	fromVersion := req.Version
	req.AssignedMechanicID = &mechanicID
	req.UpdatedAt = time.Now()

	if err := s.repo.UpdateRequestWithVersion(opCtx, req, fromVersion); err != nil {
		return nil, err
	}

	s.publishEvent(events.EventMechanicAssigned, req, actor, "")
	s.enqueueSync(ctx, req, "upsert")

	return req, nil
}

// RecordPayment settles the job: awaiting_payment -> completed with the
// final cost and payment method, atomically.
func (s *RequestService) RecordPayment(ctx context.Context, requestID int64, actor Actor, totalCost float64, method string) (*models.ServiceRequest, error) {
	req, err := s.Transition(ctx, requestID, actor, models.StatusCompleted, TransitionPayload{
		TotalCost:     &totalCost,
		PaymentMethod: &method,
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(events.EventPaymentRecorded, req, actor, method)
	return req, nil
}

func (s *RequestService) GetRequest(ctx context.Context, id int64) (*models.ServiceRequest, error) {
	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.repo.GetRequest(opCtx, id)
}

func (s *RequestService) ListRequests(ctx context.Context, from, to time.Time) ([]*models.ServiceRequest, error) {
	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.repo.ListRequests(opCtx, from, to)
}

// ListHistory returns the audit trail newest-first.
func (s *RequestService) ListHistory(ctx context.Context, requestID int64) ([]*models.StatusHistory, error) {
	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.repo.ListHistory(opCtx, requestID)
}

// ListHistoryChronological returns the audit trail oldest-first, the order
// used to replay a request's path through the transition graph.
func (s *RequestService) ListHistoryChronological(ctx context.Context, requestID int64) ([]*models.StatusHistory, error) {
	entries, err := s.ListHistory(ctx, requestID)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// authorizeActor enforces the ownership rules common to all transitions:
// customers never transition, mechanics only touch their own jobs.
func (s *RequestService) authorizeActor(req *models.ServiceRequest, actor Actor) error {
	switch actor.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleMechanic:
		if !req.IsAssignedTo(actor.ID) {
			return fmt.Errorf("%w: mechanic %d is not assigned to request %d", database.ErrForbidden, actor.ID, req.ID)
		}
		return nil
	default:
		return fmt.Errorf("%w: role %q may not transition requests", database.ErrForbidden, actor.Role)
	}
}

// resubmit handles a transition call targeting the current status. An
// unchanged payload is a no-op success; otherwise fields are updated in
// place without duplicating the audit entry.
func (s *RequestService) resubmit(ctx context.Context, req *models.ServiceRequest, fromVersion int64, actor Actor, payload TransitionPayload) (*models.ServiceRequest, error) {
	if payload.isEmpty() {
		return req, nil
	}
	if err := s.applyPayload(ctx, req, actor, req.Status, payload); err != nil {
		return nil, err
	}
	req.UpdatedAt = time.Now()
	if err := s.repo.ApplyTransition(ctx, req, fromVersion, nil); err != nil {
		return nil, err
	}
	s.enqueueSync(ctx, req, "upsert")
	return req, nil
}

func checkRequiredFields(rule TransitionRule, payload TransitionPayload) error {
	for _, field := range rule.Required {
		var present bool
		switch field {
		case FieldAssignedMechanicID:
			present = payload.AssignedMechanicID != nil
		case FieldAdminNotes:
			present = payload.AdminNotes != nil && strings.TrimSpace(*payload.AdminNotes) != ""
		case FieldMechanicNotes:
			// At least one item that survives trimming.
			present = models.SerializeMechanicNotes(payload.MechanicNotes) != nil
		case FieldTotalCost:
			present = payload.TotalCost != nil
		case FieldPaymentMethod:
			present = payload.PaymentMethod != nil
		}
		if !present {
			return fmt.Errorf("%w: %s", database.ErrMissingField, field)
		}
	}
	return nil
}

// applyPayload copies provided fields onto the request, enforcing the
// field-level invariants. Status itself is not touched here. Assigned
// mechanic and admin notes are admin-authored fields regardless of which
// role drives the transition.
func (s *RequestService) applyPayload(ctx context.Context, req *models.ServiceRequest, actor Actor, target string, payload TransitionPayload) error {
	if actor.Role != models.RoleAdmin {
		if payload.AssignedMechanicID != nil {
			return fmt.Errorf("%w: only admin may set assigned_mechanic_id", database.ErrForbidden)
		}
		if payload.AdminNotes != nil {
			return fmt.Errorf("%w: only admin may set admin_notes", database.ErrForbidden)
		}
	}
	if payload.AssignedMechanicID != nil {
		if err := s.checkMechanic(ctx, *payload.AssignedMechanicID); err != nil {
			return err
		}
		req.AssignedMechanicID = payload.AssignedMechanicID
	}
	if payload.AdminNotes != nil {
		req.AdminNotes = payload.AdminNotes
	}
	if len(payload.MechanicNotes) > 0 {
		if raw := models.SerializeMechanicNotes(payload.MechanicNotes); raw != nil {
			req.MechanicNotes = raw
		}
	}
	if payload.EstimatedCost != nil {
		if *payload.EstimatedCost < 0 {
			return fmt.Errorf("%w: estimated_cost must be >= 0", database.ErrValidation)
		}
		req.EstimatedCost = payload.EstimatedCost
	}
	if payload.DownPayment != nil {
		if *payload.DownPayment < 0 {
			return fmt.Errorf("%w: down_payment must be >= 0", database.ErrValidation)
		}
		req.DownPayment = payload.DownPayment
	}
	if payload.TotalCost != nil {
		if target != models.StatusAwaitingPayment && target != models.StatusCompleted {
			return fmt.Errorf("%w: total_cost may only be set while awaiting payment or completing", database.ErrValidation)
		}
		if *payload.TotalCost < 0 {
			return fmt.Errorf("%w: total_cost must be >= 0", database.ErrValidation)
		}
		if req.DownPayment != nil && *payload.TotalCost < *req.DownPayment {
			return fmt.Errorf("%w: total_cost %.2f is below down_payment %.2f", database.ErrValidation, *payload.TotalCost, *req.DownPayment)
		}
		req.TotalCost = payload.TotalCost
	}
	if payload.PaymentMethod != nil {
		if target != models.StatusCompleted {
			return fmt.Errorf("%w: payment_method is set at completion", database.ErrValidation)
		}
		if *payload.PaymentMethod != models.PaymentCash && *payload.PaymentMethod != models.PaymentNonCash {
			return fmt.Errorf("%w: payment_method must be cash or non_cash", database.ErrValidation)
		}
		req.PaymentMethod = payload.PaymentMethod
	}
	return nil
}

func (s *RequestService) checkMechanic(ctx context.Context, mechanicID int64) error {
	user, err := s.repo.GetUser(ctx, mechanicID)
	if err != nil {
		return err
	}
	if user.Role != models.RoleMechanic {
		return fmt.Errorf("%w: user %d is not a mechanic", database.ErrValidation, mechanicID)
	}
	return nil
}

// historyNotes derives the audit summary accompanying a transition.
func historyNotes(target string, payload TransitionPayload) *string {
	var summary string
	switch {
	case len(payload.MechanicNotes) > 0:
		summary = models.NotesSummary(payload.MechanicNotes)
	case payload.AdminNotes != nil:
		summary = strings.TrimSpace(*payload.AdminNotes)
	case target == models.StatusCompleted && payload.TotalCost != nil && payload.PaymentMethod != nil:
		summary = fmt.Sprintf("payment recorded: %.2f (%s)", *payload.TotalCost, *payload.PaymentMethod)
	}
	if summary == "" {
		return nil
	}
	return &summary
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (s *RequestService) publishEvent(eventType string, req *models.ServiceRequest, actor Actor, notes string) {
	if s.eventBus == nil {
		return
	}

	payload := events.RequestEventPayload{
		RequestID:  req.ID,
		CustomerID: req.CustomerID,
		VehicleID:  req.VehicleID,
		Status:     req.Status,
		MechanicID: req.AssignedMechanicID,
		TotalCost:  req.TotalCost,
		ChangedBy:  actor.ID,
		ActorRole:  actor.Role,
		Notes:      notes,
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("request_id", req.ID).Msg("publish event error")
	}
}

func (s *RequestService) enqueueSync(ctx context.Context, req *models.ServiceRequest, taskType string) {
	if s.syncWorker == nil {
		return
	}

	var status string
	if taskType == "update_status" {
		status = req.Status
	}

	if err := s.syncWorker.EnqueueTask(ctx, taskType, req.ID, req, status); err != nil {
		s.logger.Error().Err(err).Int64("request_id", req.ID).Str("task", taskType).Msg("journal enqueue error")
	}
}
