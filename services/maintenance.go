package services

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// MaintenanceReport counts what one maintenance run changed.
type MaintenanceReport struct {
	Archived int64 `json:"archived"`
	Purged   int64 `json:"purged"`
}

// RunMemberMaintenance applies the retention policy in two passes:
// archive members dormant for a year, then purge archived members that
// never activated and are past the 30-day grace window. Both passes
// are idempotent, so rerunning (or overlapping cron invocations) is
// harmless.
func RunMemberMaintenance(db *sql.DB, now time.Time) (*MaintenanceReport, error) {
	report := &MaintenanceReport{}

	archiveCutoff := now.Add(-ArchiveAfter)
	res, err := db.Exec(`
		UPDATE loyalty_members
		SET is_archived = TRUE, is_active = FALSE, archived_at = $1,
		    deactivated_at = COALESCE(deactivated_at, $1), updated_at = $1
		WHERE is_archived = FALSE
		  AND is_active = TRUE
		  AND activated_at IS NOT NULL
		  AND COALESCE(last_active_at, activated_at, created_at) <= $2`,
		now, archiveCutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to archive dormant members: %w", err)
	}
	report.Archived, _ = res.RowsAffected()

	purgeCutoff := now.Add(-PurgeAfter)
	rows, err := db.Query(`
		SELECT id, customer_id, member_number FROM loyalty_members
		WHERE is_archived = TRUE
		  AND activated_at IS NULL
		  AND created_at <= $1`, purgeCutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list purge candidates: %w", err)
	}
	type candidate struct {
		id           string
		customerID   string
		memberNumber string
	}
	var candidates []candidate
	for rows.Next() {
		var c candidate
		if err := rows.Scan(&c.id, &c.customerID, &c.memberNumber); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan purge candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read purge candidates: %w", err)
	}

	for _, c := range candidates {
		if err := purgeMember(db, c.id, c.customerID); err != nil {
			log.Error().Err(err).Str("member_number", c.memberNumber).Msg("failed to purge member")
			continue
		}
		report.Purged++
		log.Info().Str("member_number", c.memberNumber).Msg("purged never-activated member")
	}

	log.Info().
		Int64("archived", report.Archived).
		Int64("purged", report.Purged).
		Msg("member maintenance run complete")
	return report, nil
}

// purgeMember removes one member and its customer record. Sales keep
// their rows but lose the customer link; ledger rows go with the member.
func purgeMember(db *sql.DB, memberID, customerID string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin purge transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE transactions SET customer_id = NULL WHERE customer_id = $1`, customerID); err != nil {
		return fmt.Errorf("failed to detach sales: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM loyalty_members WHERE id = $1`, memberID); err != nil {
		return fmt.Errorf("failed to delete member: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM customers WHERE id = $1`, customerID); err != nil {
		return fmt.Errorf("failed to delete customer: %w", err)
	}
	return tx.Commit()
}
