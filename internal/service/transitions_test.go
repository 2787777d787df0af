package service

import (
	"testing"

	"garage/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestLookupTransition(t *testing.T) {
	tests := []struct {
		name   string
		from   string
		to     string
		ok     bool
		actor  string
		fields []string
	}{
		{"pending approve", models.StatusPending, models.StatusApproved, true, actorAdmin, []string{FieldAssignedMechanicID}},
		{"pending reject", models.StatusPending, models.StatusRejected, true, actorAdmin, []string{FieldAdminNotes}},
		{"approved start", models.StatusApproved, models.StatusInProgress, true, actorAdminOrMechanic, nil},
		{"in_progress parts", models.StatusInProgress, models.StatusPartsNeeded, true, actorAssignedMechanic, []string{FieldMechanicNotes}},
		{"in_progress qc", models.StatusInProgress, models.StatusQualityCheck, true, actorAssignedMechanic, []string{FieldMechanicNotes}},
		{"in_progress bill", models.StatusInProgress, models.StatusAwaitingPayment, true, actorAssignedMechanic, []string{FieldMechanicNotes}},
		{"parts resume", models.StatusPartsNeeded, models.StatusInProgress, true, actorAssignedMechanic, nil},
		{"qc rework", models.StatusQualityCheck, models.StatusInProgress, true, actorAssignedMechanic, nil},
		{"qc bill", models.StatusQualityCheck, models.StatusAwaitingPayment, true, actorAssignedMechanic, []string{FieldMechanicNotes}},
		{"settle", models.StatusAwaitingPayment, models.StatusCompleted, true, actorAdmin, []string{FieldTotalCost, FieldPaymentMethod}},

		{"pending cannot start", models.StatusPending, models.StatusInProgress, false, "", nil},
		{"pending cannot complete", models.StatusPending, models.StatusCompleted, false, "", nil},
		{"approved cannot bill", models.StatusApproved, models.StatusAwaitingPayment, false, "", nil},
		{"in_progress cannot complete", models.StatusInProgress, models.StatusCompleted, false, "", nil},
		{"completed frozen", models.StatusCompleted, models.StatusInProgress, false, "", nil},
		{"rejected frozen", models.StatusRejected, models.StatusPending, false, "", nil},
		{"unknown status", "smoke_break", models.StatusInProgress, false, "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, ok := LookupTransition(tt.from, tt.to)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.actor, rule.Actor)
				assert.Equal(t, tt.fields, rule.Required)
			}
		})
	}
}

func TestEveryNonTerminalStatusCanBeRejected(t *testing.T) {
	for _, status := range models.AllStatuses() {
		if models.IsTerminalStatus(status) {
			continue
		}
		rule, ok := LookupTransition(status, models.StatusRejected)
		assert.True(t, ok, "no rejection edge from %s", status)
		assert.Equal(t, actorAdmin, rule.Actor)
		assert.Equal(t, []string{FieldAdminNotes}, rule.Required)
	}
}

func TestTerminalStatusesHaveNoEdges(t *testing.T) {
	for _, terminal := range []string{models.StatusCompleted, models.StatusRejected} {
		for _, target := range models.AllStatuses() {
			_, ok := LookupTransition(terminal, target)
			assert.False(t, ok, "%s -> %s must be illegal", terminal, target)
		}
	}
}

func TestRoleAllowed(t *testing.T) {
	adminRule := TransitionRule{Actor: actorAdmin}
	mechanicRule := TransitionRule{Actor: actorAssignedMechanic}
	eitherRule := TransitionRule{Actor: actorAdminOrMechanic}

	assert.True(t, roleAllowed(adminRule, models.RoleAdmin, false))
	assert.False(t, roleAllowed(adminRule, models.RoleMechanic, true))
	assert.False(t, roleAllowed(adminRule, models.RoleCustomer, false))

	assert.True(t, roleAllowed(mechanicRule, models.RoleMechanic, true))
	assert.False(t, roleAllowed(mechanicRule, models.RoleMechanic, false))
	assert.False(t, roleAllowed(mechanicRule, models.RoleAdmin, false))

	assert.True(t, roleAllowed(eitherRule, models.RoleAdmin, false))
	assert.True(t, roleAllowed(eitherRule, models.RoleMechanic, true))
	assert.False(t, roleAllowed(eitherRule, models.RoleMechanic, false))
	assert.False(t, roleAllowed(eitherRule, models.RoleCustomer, false))
}

func TestValidWalk(t *testing.T) {
	tests := []struct {
		name     string
		statuses []string
		want     bool
	}{
		{"empty walk", nil, true},
		{"straight to done", []string{
			models.StatusApproved, models.StatusInProgress,
			models.StatusAwaitingPayment, models.StatusCompleted,
		}, true},
		{"with detours", []string{
			models.StatusApproved, models.StatusInProgress,
			models.StatusPartsNeeded, models.StatusInProgress,
			models.StatusQualityCheck, models.StatusInProgress,
			models.StatusQualityCheck, models.StatusAwaitingPayment,
			models.StatusCompleted,
		}, true},
		{"early rejection", []string{models.StatusRejected}, true},
		{"skips approval", []string{models.StatusInProgress}, false},
		{"continues after terminal", []string{
			models.StatusRejected, models.StatusApproved,
		}, false},
		{"backwards", []string{
			models.StatusApproved, models.StatusInProgress, models.StatusApproved,
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidWalk(tt.statuses))
		})
	}
}
