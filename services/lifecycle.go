package services

import (
	"errors"
	"time"

	"vcspos-server/models"
)

var (
	ErrReactivationLimit = errors.New("self-reactivation limit reached")
	ErrCardNotActive     = errors.New("card is not active")
)

// Retention windows for the maintenance job.
const (
	ArchiveAfter = 365 * 24 * time.Hour
	PurgeAfter   = 30 * 24 * time.Hour
)

// LoginEligibility decides whether a member may sign in to the app:
// the card must be active, and an inactive or archived member must
// still have reactivation budget left. Checked before a code is issued
// so exhausted members are not sent codes they cannot use.
func LoginEligibility(m *models.LoyaltyMember) error {
	if m.CardStatus != "" && m.CardStatus != "active" {
		return ErrCardNotActive
	}
	if (!m.IsActive || m.IsArchived) && m.ReactivationRemaining <= 0 {
		return ErrReactivationLimit
	}
	return nil
}

// SelfReactivate flips an inactive or archived member back to active
// through the member app, consuming one unit of the reactivation
// budget. An archived member comes out of the archive too. Staff
// restores do not go through here and never touch the budget.
func SelfReactivate(m *models.LoyaltyMember, now time.Time) error {
	if m.IsActive && !m.IsArchived {
		return nil
	}
	if m.ReactivationRemaining <= 0 {
		return ErrReactivationLimit
	}
	m.ReactivationRemaining--
	m.IsActive = true
	m.IsArchived = false
	m.ArchivedAt = nil
	m.DeactivatedAt = nil
	m.LastActiveAt = &now
	if m.ActivatedAt == nil {
		m.ActivatedAt = &now
	}
	return nil
}

// lastSeen picks the timestamp the archive rule measures dormancy from.
func lastSeen(m *models.LoyaltyMember) time.Time {
	if m.LastActiveAt != nil {
		return *m.LastActiveAt
	}
	if m.ActivatedAt != nil {
		return *m.ActivatedAt
	}
	return m.CreatedAt
}

// ArchiveEligible reports whether the maintenance job should archive
// the member: activated at some point, still active, and dormant for a
// full year.
func ArchiveEligible(m *models.LoyaltyMember, now time.Time) bool {
	if m.IsArchived || !m.IsActive || m.ActivatedAt == nil {
		return false
	}
	return !lastSeen(m).After(now.Add(-ArchiveAfter))
}

// PurgeEligible reports whether the maintenance job should delete the
// member outright: archived, never activated, and created over 30 days
// ago. Members who ever activated are kept archived indefinitely.
func PurgeEligible(m *models.LoyaltyMember, now time.Time) bool {
	if !m.IsArchived || m.ActivatedAt != nil {
		return false
	}
	return !m.CreatedAt.After(now.Add(-PurgeAfter))
}
