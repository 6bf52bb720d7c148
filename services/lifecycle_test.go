package services

import (
	"testing"
	"time"

	"vcspos-server/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ts(t time.Time) *time.Time { return &t }

func TestSelfReactivateConsumesBudget(t *testing.T) {
	now := time.Now()
	m := &models.LoyaltyMember{
		IsActive:              false,
		DeactivatedAt:         ts(now.AddDate(0, -2, 0)),
		ReactivationRemaining: 3,
	}

	require.NoError(t, SelfReactivate(m, now))
	assert.True(t, m.IsActive)
	assert.Equal(t, 2, m.ReactivationRemaining)
	assert.Nil(t, m.DeactivatedAt)
	require.NotNil(t, m.LastActiveAt)
	assert.Equal(t, now, *m.LastActiveAt)
	require.NotNil(t, m.ActivatedAt)
}

func TestSelfReactivateExhaustsBudget(t *testing.T) {
	now := time.Now()
	m := &models.LoyaltyMember{IsActive: false, ReactivationRemaining: 1}

	require.NoError(t, SelfReactivate(m, now))
	assert.Equal(t, 0, m.ReactivationRemaining)

	m.IsActive = false
	err := SelfReactivate(m, now)
	assert.ErrorIs(t, err, ErrReactivationLimit)
	assert.False(t, m.IsActive)
	assert.Equal(t, 0, m.ReactivationRemaining)
}

func TestSelfReactivateClearsArchiveFlags(t *testing.T) {
	now := time.Now()
	m := &models.LoyaltyMember{
		IsActive:              false,
		IsArchived:            true,
		ArchivedAt:            ts(now.AddDate(0, -1, 0)),
		DeactivatedAt:         ts(now.AddDate(0, -14, 0)),
		ReactivationRemaining: 1,
	}

	require.NoError(t, SelfReactivate(m, now))
	assert.True(t, m.IsActive)
	assert.False(t, m.IsArchived)
	assert.Nil(t, m.ArchivedAt)
	assert.Nil(t, m.DeactivatedAt)
	assert.Equal(t, 0, m.ReactivationRemaining)
}

func TestSelfReactivateArchivedWithoutBudget(t *testing.T) {
	m := &models.LoyaltyMember{
		IsActive:              false,
		IsArchived:            true,
		ReactivationRemaining: 0,
	}
	err := SelfReactivate(m, time.Now())
	assert.ErrorIs(t, err, ErrReactivationLimit)
	assert.True(t, m.IsArchived)
	assert.False(t, m.IsActive)
}

func TestLoginEligibility(t *testing.T) {
	tests := []struct {
		name string
		m    models.LoyaltyMember
		want error
	}{
		{"active member, active card", models.LoyaltyMember{IsActive: true, CardStatus: "active"}, nil},
		{"active member, no card status", models.LoyaltyMember{IsActive: true}, nil},
		{"suspended card", models.LoyaltyMember{IsActive: true, CardStatus: "suspended"}, ErrCardNotActive},
		{"lost card", models.LoyaltyMember{IsActive: true, CardStatus: "lost"}, ErrCardNotActive},
		{"expired card", models.LoyaltyMember{IsActive: true, CardStatus: "expired"}, ErrCardNotActive},
		{"inactive with budget", models.LoyaltyMember{CardStatus: "active", ReactivationRemaining: 2}, nil},
		{"inactive without budget", models.LoyaltyMember{CardStatus: "active"}, ErrReactivationLimit},
		{"archived with budget", models.LoyaltyMember{IsActive: true, IsArchived: true, CardStatus: "active", ReactivationRemaining: 1}, nil},
		{"archived without budget", models.LoyaltyMember{IsActive: true, IsArchived: true, CardStatus: "active"}, ErrReactivationLimit},
		{"suspended card wins over budget", models.LoyaltyMember{CardStatus: "suspended", ReactivationRemaining: 3}, ErrCardNotActive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := LoginEligibility(&tt.m)
			if tt.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestSelfReactivateActiveMemberIsNoop(t *testing.T) {
	m := &models.LoyaltyMember{IsActive: true, ReactivationRemaining: 2}
	require.NoError(t, SelfReactivate(m, time.Now()))
	assert.Equal(t, 2, m.ReactivationRemaining)
}

func TestSelfReactivateKeepsFirstActivation(t *testing.T) {
	now := time.Now()
	first := now.AddDate(-1, 0, 0)
	m := &models.LoyaltyMember{
		IsActive:              false,
		ActivatedAt:           ts(first),
		ReactivationRemaining: 3,
	}
	require.NoError(t, SelfReactivate(m, now))
	assert.Equal(t, first, *m.ActivatedAt)
}

func TestArchiveEligible(t *testing.T) {
	now := time.Now()
	activated := now.AddDate(-2, 0, 0)

	tests := []struct {
		name string
		m    models.LoyaltyMember
		want bool
	}{
		{
			"dormant for over a year",
			models.LoyaltyMember{IsActive: true, ActivatedAt: ts(activated), LastActiveAt: ts(now.AddDate(0, -13, 0))},
			true,
		},
		{
			"active recently",
			models.LoyaltyMember{IsActive: true, ActivatedAt: ts(activated), LastActiveAt: ts(now.AddDate(0, -1, 0))},
			false,
		},
		{
			"never activated",
			models.LoyaltyMember{IsActive: true, CreatedAt: now.AddDate(-2, 0, 0)},
			false,
		},
		{
			"already archived",
			models.LoyaltyMember{IsActive: false, IsArchived: true, ActivatedAt: ts(activated)},
			false,
		},
		{
			"no last_active falls back to activation date",
			models.LoyaltyMember{IsActive: true, ActivatedAt: ts(now.AddDate(0, -13, 0))},
			true,
		},
		{
			"exactly at the boundary",
			models.LoyaltyMember{IsActive: true, ActivatedAt: ts(activated), LastActiveAt: ts(now.Add(-ArchiveAfter))},
			true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ArchiveEligible(&tt.m, now))
		})
	}
}

func TestPurgeEligible(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name string
		m    models.LoyaltyMember
		want bool
	}{
		{
			"archived, never activated, past grace",
			models.LoyaltyMember{IsArchived: true, CreatedAt: now.AddDate(0, -2, 0)},
			true,
		},
		{
			"archived but once activated is kept",
			models.LoyaltyMember{IsArchived: true, ActivatedAt: ts(now.AddDate(-2, 0, 0)), CreatedAt: now.AddDate(-2, 0, 0)},
			false,
		},
		{
			"not archived",
			models.LoyaltyMember{IsArchived: false, CreatedAt: now.AddDate(0, -2, 0)},
			false,
		},
		{
			"still inside the grace window",
			models.LoyaltyMember{IsArchived: true, CreatedAt: now.AddDate(0, 0, -10)},
			false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PurgeEligible(&tt.m, now))
		})
	}
}
