package handlers

import (
	"database/sql"
	"encoding/json"

	"vcspos-server/services"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DB is the shared connection pool, set once at startup.
var DB *sql.DB

// OTP is the shared one-time-code service for member app logins.
var OTP *services.OTPService

// Init wires the package-level dependencies before routes are served.
func Init(db *sql.DB, otp *services.OTPService) {
	DB = db
	OTP = otp
}

// logActivity records a staff action in the audit trail. Failures are
// logged and swallowed so auditing never breaks the operation itself.
func logActivity(userID *uuid.UUID, action, entityType, entityID string, details map[string]interface{}) {
	var detailsJSON *string
	if details != nil {
		if raw, err := json.Marshal(details); err == nil {
			s := string(raw)
			detailsJSON = &s
		}
	}
	var eid *string
	if entityID != "" {
		eid = &entityID
	}
	_, err := DB.Exec(`
		INSERT INTO activity_logs (user_id, action, entity_type, entity_id, details)
		VALUES ($1, $2, $3, $4, $5)`,
		userID, action, entityType, eid, detailsJSON)
	if err != nil {
		log.Warn().Err(err).Str("action", action).Msg("failed to write activity log")
	}
}
