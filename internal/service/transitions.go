package service

import "garage/internal/models"

// Who may trigger a transition.
const (
	actorAdmin            = "admin_only"
	actorAssignedMechanic = "assigned_mechanic"
	actorAdminOrMechanic  = "admin_or_assigned_mechanic"
)

// Required payload field names, matched against TransitionPayload.
const (
	FieldAssignedMechanicID = "assigned_mechanic_id"
	FieldAdminNotes         = "admin_notes"
	FieldMechanicNotes      = "mechanic_notes"
	FieldTotalCost          = "total_cost"
	FieldPaymentMethod      = "payment_method"
)

// TransitionRule describes one legal edge of the status graph.
type TransitionRule struct {
	Actor    string
	Required []string
}

// transitionTable is the single authoritative source of legal status
// moves. Every actor surface goes through it; nothing else decides.
var transitionTable = map[string]map[string]TransitionRule{
	models.StatusPending: {
		models.StatusApproved: {Actor: actorAdmin, Required: []string{FieldAssignedMechanicID}},
		models.StatusRejected: {Actor: actorAdmin, Required: []string{FieldAdminNotes}},
	},
	models.StatusApproved: {
		models.StatusInProgress: {Actor: actorAdminOrMechanic},
		models.StatusRejected:   {Actor: actorAdmin, Required: []string{FieldAdminNotes}},
	},
	models.StatusInProgress: {
		models.StatusPartsNeeded:     {Actor: actorAssignedMechanic, Required: []string{FieldMechanicNotes}},
		models.StatusQualityCheck:    {Actor: actorAssignedMechanic, Required: []string{FieldMechanicNotes}},
		models.StatusAwaitingPayment: {Actor: actorAssignedMechanic, Required: []string{FieldMechanicNotes}},
		models.StatusRejected:        {Actor: actorAdmin, Required: []string{FieldAdminNotes}},
	},
	models.StatusPartsNeeded: {
		models.StatusInProgress: {Actor: actorAssignedMechanic},
		models.StatusRejected:   {Actor: actorAdmin, Required: []string{FieldAdminNotes}},
	},
	models.StatusQualityCheck: {
		models.StatusInProgress:      {Actor: actorAssignedMechanic},
		models.StatusAwaitingPayment: {Actor: actorAssignedMechanic, Required: []string{FieldMechanicNotes}},
		models.StatusRejected:        {Actor: actorAdmin, Required: []string{FieldAdminNotes}},
	},
	models.StatusAwaitingPayment: {
		models.StatusCompleted: {Actor: actorAdmin, Required: []string{FieldTotalCost, FieldPaymentMethod}},
		models.StatusRejected:  {Actor: actorAdmin, Required: []string{FieldAdminNotes}},
	},
	// completed and rejected are terminal: no outgoing edges.
}

// LookupTransition returns the rule for current → target, if legal.
func LookupTransition(current, target string) (TransitionRule, bool) {
	targets, ok := transitionTable[current]
	if !ok {
		return TransitionRule{}, false
	}
	rule, ok := targets[target]
	return rule, ok
}

// roleAllowed checks the rule's actor constraint against an actor's role
// and assignment.
func roleAllowed(rule TransitionRule, role string, isAssignedMechanic bool) bool {
	switch rule.Actor {
	case actorAdmin:
		return role == models.RoleAdmin
	case actorAssignedMechanic:
		return role == models.RoleMechanic && isAssignedMechanic
	case actorAdminOrMechanic:
		if role == models.RoleAdmin {
			return true
		}
		return role == models.RoleMechanic && isAssignedMechanic
	default:
		return false
	}
}

// ValidWalk reports whether a chronological status sequence is a legal
// path through the transition graph. Creation does not write a history
// row, so every walk implicitly starts at pending.
func ValidWalk(statuses []string) bool {
	current := models.StatusPending
	for _, next := range statuses {
		if _, ok := LookupTransition(current, next); !ok {
			return false
		}
		current = next
	}
	return true
}
