package models

import "time"

// ServiceRequest is the aggregate root of one customer repair job.
// History, progress and photo rows belong to it and never outlive it.
type ServiceRequest struct {
	ID                 int64      `json:"id"`
	CustomerID         int64      `json:"customer_id"`
	VehicleID          int64      `json:"vehicle_id"`
	ServiceType        string     `json:"service_type"`
	Description        string     `json:"description"`
	PreferredDate      time.Time  `json:"preferred_date"`
	Status             string     `json:"status"`
	AssignedMechanicID *int64     `json:"assigned_mechanic_id,omitempty"`
	EstimatedCost      *float64   `json:"estimated_cost,omitempty"`
	DownPayment        *float64   `json:"down_payment,omitempty"`
	TotalCost          *float64   `json:"total_cost,omitempty"`
	PaymentMethod      *string    `json:"payment_method,omitempty"`
	AdminNotes         *string    `json:"admin_notes,omitempty"`
	MechanicNotes      *string    `json:"mechanic_notes,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	Version            int64      `json:"version"`
}

// IsAssignedTo reports whether mechanicID currently owns the job.
func (r *ServiceRequest) IsAssignedTo(mechanicID int64) bool {
	return r.AssignedMechanicID != nil && *r.AssignedMechanicID == mechanicID
}

// StatusHistory is one append-only audit record of a status change.
type StatusHistory struct {
	ID        int64     `json:"id"`
	RequestID int64     `json:"request_id"`
	Status    string    `json:"status"`
	Notes     *string   `json:"notes,omitempty"`
	ChangedBy int64     `json:"changed_by"`
	CreatedAt time.Time `json:"created_at"`
}

// ServiceProgress is a dated, mechanic-authored note describing work
// performed while the job is in progress.
type ServiceProgress struct {
	ID           int64     `json:"id"`
	RequestID    int64     `json:"request_id"`
	MechanicID   int64     `json:"mechanic_id"`
	ProgressDate time.Time `json:"progress_date"`
	Description  string    `json:"description"`
	CreatedAt    time.Time `json:"created_at"`
}

// ServicePhoto references an already-uploaded image, optionally tied to
// one progress entry.
type ServicePhoto struct {
	ID          int64     `json:"id"`
	RequestID   int64     `json:"request_id"`
	ProgressID  *int64    `json:"progress_id,omitempty"`
	UploadedBy  int64     `json:"uploaded_by"`
	Path        string    `json:"path"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
