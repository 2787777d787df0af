package models

const (
	StatusPending         = "pending"
	StatusApproved        = "approved"
	StatusInProgress      = "in_progress"
	StatusPartsNeeded     = "parts_needed"
	StatusQualityCheck    = "quality_check"
	StatusAwaitingPayment = "awaiting_payment"
	StatusCompleted       = "completed"
	StatusRejected        = "rejected"
)

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
	RoleMechanic = "mechanic"
)

const (
	PaymentCash    = "cash"
	PaymentNonCash = "non_cash"
)

// IsTerminalStatus reports whether no further transitions are permitted.
func IsTerminalStatus(status string) bool {
	return status == StatusCompleted || status == StatusRejected
}

// AllStatuses lists every valid request status.
func AllStatuses() []string {
	return []string{
		StatusPending,
		StatusApproved,
		StatusInProgress,
		StatusPartsNeeded,
		StatusQualityCheck,
		StatusAwaitingPayment,
		StatusCompleted,
		StatusRejected,
	}
}

const (
	// DefaultDBTimeout ограничение на один вызов хранилища в секундах
	DefaultDBTimeout = 5

	// WorkerQueueSize размер очереди воркера
	WorkerQueueSize = 128

	// RateLimitWrites количество записывающих вызовов в окне
	RateLimitWrites = 30

	// RateLimitWindow окно ограничения частоты в секундах
	RateLimitWindow = 60
)
