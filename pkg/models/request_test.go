package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestStatusCanTransition(t *testing.T) {
	tests := []struct {
		from    RequestStatus
		to      RequestStatus
		allowed bool
	}{
		{RequestStatusApproved, RequestStatusActive, true},
		{RequestStatusApproved, RequestStatusRejected, true},
		{RequestStatusActive, RequestStatusLapsed, true},
		{RequestStatusActive, RequestStatusCancelled, true},
		{RequestStatusActive, RequestStatusApproved, false},
		{RequestStatusRejected, RequestStatusSubmitted, false},
		{RequestStatusRejected, RequestStatusDraft, false},
		{RequestStatusLapsed, RequestStatusActive, false},
		{RequestStatusLapsed, RequestStatusSubmitted, false},
		{RequestStatusCancelled, RequestStatusDraft, false},
		{RequestStatusDraft, RequestStatusSubmitted, true},
		{RequestStatusDraft, RequestStatusApproved, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransition(tt.to))
		})
	}
}

func TestRequestStatusIsTerminal(t *testing.T) {
	assert.True(t, RequestStatusRejected.IsTerminal())
	assert.True(t, RequestStatusLapsed.IsTerminal())
	assert.True(t, RequestStatusCancelled.IsTerminal())
	assert.False(t, RequestStatusActive.IsTerminal())
	assert.False(t, RequestStatusApproved.IsTerminal())
	assert.False(t, RequestStatusDraft.IsTerminal())
}

func TestFollowUpMilestone(t *testing.T) {
	m, ok := FollowUpMilestone(1)
	assert.True(t, ok)
	assert.Equal(t, MilestoneFollowUp1, m)

	m, ok = FollowUpMilestone(3)
	assert.True(t, ok)
	assert.Equal(t, MilestoneFollowUp3, m)

	_, ok = FollowUpMilestone(0)
	assert.False(t, ok)
	_, ok = FollowUpMilestone(4)
	assert.False(t, ok)
}
