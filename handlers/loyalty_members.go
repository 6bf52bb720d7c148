package handlers

import (
	"database/sql"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"vcspos-server/config"
	"vcspos-server/models"
	"vcspos-server/services"
	"vcspos-server/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const memberSelectColumns = `
	m.id, m.customer_id, m.member_number, m.card_barcode, m.tier_id,
	m.join_date, m.expiry_date, m.current_points, m.lifetime_points,
	m.card_issued, m.card_issued_date, m.card_status,
	m.is_active, m.is_archived, m.archived_at,
	m.deactivated_at, m.activated_at, m.last_active_at,
	m.reactivation_remaining, m.created_at, m.updated_at,
	c.name, c.email, c.phone,
	t.name`

type memberRow struct {
	models.LoyaltyMember
	CustomerName  string  `json:"customer_name"`
	CustomerEmail *string `json:"customer_email"`
	CustomerPhone *string `json:"customer_phone"`
	TierName      *string `json:"tier_name"`
}

func scanMemberRow(scan func(dest ...interface{}) error) (*memberRow, error) {
	var m memberRow
	err := scan(
		&m.ID, &m.CustomerID, &m.MemberNumber, &m.CardBarcode, &m.TierID,
		&m.JoinDate, &m.ExpiryDate, &m.CurrentPoints, &m.LifetimePoints,
		&m.CardIssued, &m.CardIssuedDate, &m.CardStatus,
		&m.IsActive, &m.IsArchived, &m.ArchivedAt,
		&m.DeactivatedAt, &m.ActivatedAt, &m.LastActiveAt,
		&m.ReactivationRemaining, &m.CreatedAt, &m.UpdatedAt,
		&m.CustomerName, &m.CustomerEmail, &m.CustomerPhone,
		&m.TierName,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

const memberJoin = `
	FROM loyalty_members m
	JOIN customers c ON c.id = m.customer_id
	LEFT JOIN loyalty_tiers t ON t.id = m.tier_id`

// List enrolled members. Archived members are hidden unless the
// archived filter asks for them explicitly.
func ListLoyaltyMembers(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "50"))
	if perPage < 1 || perPage > 200 {
		perPage = 50
	}

	where := "WHERE m.is_archived = FALSE"
	args := []interface{}{}
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		args = append(args, "%"+q+"%")
		where += fmt.Sprintf(` AND (c.name ILIKE $%d OR m.member_number ILIKE $%d OR m.card_barcode ILIKE $%d OR c.phone ILIKE $%d)`,
			len(args), len(args), len(args), len(args))
	}

	var total int
	if err := DB.QueryRow("SELECT COUNT(*) "+memberJoin+" "+where, args...).Scan(&total); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}

	args = append(args, perPage, (page-1)*perPage)
	query := "SELECT " + memberSelectColumns + " " + memberJoin + " " + where +
		fmt.Sprintf(" ORDER BY m.created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	rows, err := DB.Query(query, args...)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}
	defer rows.Close()

	members := []memberRow{}
	for rows.Next() {
		m, err := scanMemberRow(rows.Scan)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
			return
		}
		members = append(members, *m)
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"members":  members,
			"total":    total,
			"page":     page,
			"per_page": perPage,
		},
	})
}

// List archived members only.
func ListArchivedLoyaltyMembers(c *gin.Context) {
	rows, err := DB.Query("SELECT "+memberSelectColumns+" "+memberJoin+
		" WHERE m.is_archived = TRUE ORDER BY m.archived_at DESC NULLS LAST")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}
	defer rows.Close()

	members := []memberRow{}
	for rows.Next() {
		m, err := scanMemberRow(rows.Scan)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
			return
		}
		members = append(members, *m)
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"members": members}})
}

// Most recently enrolled members, for the admin landing page.
func ListRecentLoyaltyMembers(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if limit < 1 || limit > 50 {
		limit = 10
	}

	rows, err := DB.Query("SELECT "+memberSelectColumns+" "+memberJoin+
		" WHERE m.is_archived = FALSE ORDER BY m.created_at DESC LIMIT $1", limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}
	defer rows.Close()

	members := []memberRow{}
	for rows.Next() {
		m, err := scanMemberRow(rows.Scan)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
			return
		}
		members = append(members, *m)
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"members": members}})
}

func loadMember(where string, arg interface{}) (*memberRow, error) {
	row := DB.QueryRow("SELECT "+memberSelectColumns+" "+memberJoin+" WHERE "+where, arg)
	return scanMemberRow(row.Scan)
}

func GetLoyaltyMember(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid member id"})
		return
	}
	m, err := loadMember("m.id = $1", id)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Member not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": m})
}

// Scan a loyalty card at the register. Archived and inactive members
// resolve but are flagged so the POS can refuse them.
func ScanLoyaltyMember(c *gin.Context) {
	barcode := strings.TrimSpace(c.Param("barcode"))
	if barcode == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Barcode is required"})
		return
	}

	m, err := loadMember("m.card_barcode = $1", barcode)
	if err == sql.ErrNoRows {
		m, err = loadMember("m.member_number = $1", strings.ToUpper(barcode))
	}
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "No member found for this card"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"member":   m,
			"usable":   m.IsActive && !m.IsArchived && m.CardStatus == "active",
			"archived": m.IsArchived,
		},
	})
}

// Enroll a customer into the loyalty program. An existing customer
// matched by phone or email is reused; otherwise one is created.
func EnrollLoyaltyMember(c *gin.Context) {
	var req struct {
		Name    string `json:"name" binding:"required"`
		Phone   string `json:"phone" binding:"required"`
		Email   string `json:"email"`
		Address string `json:"address"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Name and phone are required"})
		return
	}

	phone := utils.NormalizePhone(req.Phone)
	if !utils.ValidPhone(phone) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Phone must be 11-12 digits"})
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	tx, err := DB.Begin()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}
	defer tx.Rollback()

	// Reuse a customer matched on any stored phone format or email.
	variants := utils.PhoneVariants(phone, config.AppConfig.SMSCountryCode)
	var customerID uuid.UUID
	err = tx.QueryRow(`
		SELECT id FROM customers
		WHERE phone = ANY($1) OR (email IS NOT NULL AND email = NULLIF($2, ''))
		LIMIT 1`, pq.Array(variants), email).Scan(&customerID)
	if err == sql.ErrNoRows {
		var emailArg, addrArg *string
		if email != "" {
			emailArg = &email
		}
		if a := strings.TrimSpace(req.Address); a != "" {
			addrArg = &a
		}
		err = tx.QueryRow(`
			INSERT INTO customers (name, email, phone, address)
			VALUES ($1, $2, $3, $4) RETURNING id`,
			req.Name, emailArg, phone, addrArg).Scan(&customerID)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to create customer"})
		return
	}

	var existing uuid.UUID
	err = tx.QueryRow(`SELECT id FROM loyalty_members WHERE customer_id = $1`, customerID).Scan(&existing)
	if err == nil {
		c.JSON(http.StatusConflict, gin.H{"success": false, "message": "Customer is already a loyalty member"})
		return
	}
	if err != sql.ErrNoRows {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}

	memberNumber, barcode, err := uniqueMemberCredentials(tx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to generate member credentials"})
		return
	}

	tiers, err := services.LoadActiveTiers(tx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}
	var tierID *uuid.UUID
	if tier := services.ResolveTier(tiers, 0); tier != nil {
		tierID = &tier.ID
	}

	expiry := time.Now().AddDate(1, 0, 0)
	var memberID uuid.UUID
	err = tx.QueryRow(`
		INSERT INTO loyalty_members (customer_id, member_number, card_barcode, tier_id, expiry_date)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		customerID, memberNumber, barcode, tierID, expiry).Scan(&memberID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to enroll member"})
		return
	}

	if err := tx.Commit(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}

	actorID := currentUserID(c)
	logActivity(&actorID, "loyalty.enroll", "loyalty_member", memberID.String(), map[string]interface{}{
		"member_number": memberNumber,
	})

	m, err := loadMember("m.id = $1", memberID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Member enrolled", "data": m})
}

// uniqueMemberCredentials draws random member numbers and barcodes
// until both are free. Collisions are rare; bail after a few tries.
func uniqueMemberCredentials(tx *sql.Tx) (string, string, error) {
	for i := 0; i < 10; i++ {
		memberNumber := utils.GenerateMemberNumber()
		barcode := utils.GenerateCardBarcode()
		var taken bool
		err := tx.QueryRow(`
			SELECT EXISTS (
				SELECT 1 FROM loyalty_members WHERE member_number = $1 OR card_barcode = $2
			)`, memberNumber, barcode).Scan(&taken)
		if err != nil {
			return "", "", err
		}
		if !taken {
			return memberNumber, barcode, nil
		}
	}
	return "", "", fmt.Errorf("could not find free member credentials")
}

// Update a member's customer details and card status.
func UpdateLoyaltyMember(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid member id"})
		return
	}

	var req struct {
		Name       *string `json:"name"`
		Phone      *string `json:"phone"`
		Email      *string `json:"email"`
		Address    *string `json:"address"`
		CardStatus *string `json:"card_status"`
		IsActive   *bool   `json:"is_active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request format"})
		return
	}

	var customerID uuid.UUID
	var isActive bool
	err = DB.QueryRow(`SELECT customer_id, is_active FROM loyalty_members WHERE id = $1`, id).Scan(&customerID, &isActive)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Member not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}

	if req.Phone != nil {
		phone := utils.NormalizePhone(*req.Phone)
		if !utils.ValidPhone(phone) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Phone must be 11-12 digits"})
			return
		}
		var taken bool
		err := DB.QueryRow(`
			SELECT EXISTS (SELECT 1 FROM customers WHERE phone = $1 AND id <> $2)`,
			phone, customerID).Scan(&taken)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
			return
		}
		if taken {
			c.JSON(http.StatusConflict, gin.H{"success": false, "message": "Phone number is already in use"})
			return
		}
		req.Phone = &phone
	}
	if req.CardStatus != nil {
		switch *req.CardStatus {
		case "active", "suspended", "expired", "lost":
		default:
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid card status"})
			return
		}
	}

	tx, err := DB.Begin()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		UPDATE customers SET
			name = COALESCE($1, name),
			phone = COALESCE($2, phone),
			email = COALESCE($3, email),
			address = COALESCE($4, address),
			updated_at = now()
		WHERE id = $5`,
		req.Name, req.Phone, req.Email, req.Address, customerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to update customer"})
		return
	}

	if req.CardStatus != nil || req.IsActive != nil {
		var deactivatedAt interface{}
		if req.IsActive != nil && !*req.IsActive && isActive {
			deactivatedAt = time.Now()
		}
		_, err = tx.Exec(`
			UPDATE loyalty_members SET
				card_status = COALESCE($1, card_status),
				is_active = COALESCE($2, is_active),
				deactivated_at = COALESCE($3, deactivated_at),
				updated_at = now()
			WHERE id = $4`,
			req.CardStatus, req.IsActive, deactivatedAt, id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to update member"})
			return
		}
	}

	if err := tx.Commit(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}

	actorID := currentUserID(c)
	logActivity(&actorID, "loyalty.update", "loyalty_member", id.String(), nil)

	m, err := loadMember("m.id = $1", id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Member updated", "data": m})
}

// Archive a member. Idempotent; points and history are kept.
func ArchiveLoyaltyMember(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid member id"})
		return
	}

	res, err := DB.Exec(`
		UPDATE loyalty_members
		SET is_archived = TRUE, is_active = FALSE, archived_at = now(),
		    deactivated_at = COALESCE(deactivated_at, now()), updated_at = now()
		WHERE id = $1`, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Member not found"})
		return
	}

	actorID := currentUserID(c)
	logActivity(&actorID, "loyalty.archive", "loyalty_member", id.String(), nil)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Member archived"})
}

// Restore an archived member. A staff restore reactivates without
// consuming the member's self-reactivation budget.
func RestoreLoyaltyMember(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid member id"})
		return
	}

	res, err := DB.Exec(`
		UPDATE loyalty_members
		SET is_archived = FALSE, is_active = TRUE, archived_at = NULL,
		    deactivated_at = NULL, last_active_at = now(), updated_at = now()
		WHERE id = $1`, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Member not found"})
		return
	}

	actorID := currentUserID(c)
	logActivity(&actorID, "loyalty.restore", "loyalty_member", id.String(), nil)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Member restored"})
}

// Permanently delete a member. Only archived members qualify; the
// customer record goes with them and their sales lose the link.
func DeleteLoyaltyMember(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid member id"})
		return
	}

	tx, err := DB.Begin()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}
	defer tx.Rollback()

	var customerID uuid.UUID
	var isArchived bool
	var memberNumber string
	err = tx.QueryRow(`
		SELECT customer_id, is_archived, member_number FROM loyalty_members WHERE id = $1 FOR UPDATE`, id).
		Scan(&customerID, &isArchived, &memberNumber)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Member not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}
	if !isArchived {
		c.JSON(http.StatusConflict, gin.H{"success": false, "message": "Member must be archived before deletion"})
		return
	}

	if _, err := tx.Exec(`UPDATE transactions SET customer_id = NULL WHERE customer_id = $1`, customerID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}
	if _, err := tx.Exec(`DELETE FROM loyalty_members WHERE id = $1`, id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}
	if _, err := tx.Exec(`DELETE FROM customers WHERE id = $1`, customerID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}

	if err := tx.Commit(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}

	actorID := currentUserID(c)
	logActivity(&actorID, "loyalty.delete", "loyalty_member", id.String(), map[string]interface{}{
		"member_number": memberNumber,
	})
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Member deleted"})
}

// Extend the membership by one year from the later of now and the
// current expiry.
func RenewLoyaltyMembership(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid member id"})
		return
	}

	var newExpiry time.Time
	err = DB.QueryRow(`
		UPDATE loyalty_members
		SET expiry_date = GREATEST(COALESCE(expiry_date, now()), now()) + INTERVAL '1 year',
		    card_status = CASE WHEN card_status = 'expired' THEN 'active' ELSE card_status END,
		    updated_at = now()
		WHERE id = $1
		RETURNING expiry_date`, id).Scan(&newExpiry)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Member not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}

	actorID := currentUserID(c)
	logActivity(&actorID, "loyalty.renew", "loyalty_member", id.String(), nil)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Membership renewed", "data": gin.H{"expiry_date": newExpiry}})
}

// Mark the physical card as issued.
func IssueLoyaltyCard(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid member id"})
		return
	}

	res, err := DB.Exec(`
		UPDATE loyalty_members
		SET card_issued = TRUE, card_issued_date = COALESCE(card_issued_date, now()), updated_at = now()
		WHERE id = $1`, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Member not found"})
		return
	}

	actorID := currentUserID(c)
	logActivity(&actorID, "loyalty.issue_card", "loyalty_member", id.String(), nil)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Card issued"})
}

// Card data for printing: barcode, member number, name, tier.
func GetLoyaltyCardData(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid member id"})
		return
	}
	m, err := loadMember("m.id = $1", id)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Member not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"member_number": m.MemberNumber,
			"card_barcode":  m.CardBarcode,
			"customer_name": m.CustomerName,
			"tier_name":     m.TierName,
			"expiry_date":   m.ExpiryDate,
			"valid_ean13":   utils.ValidEAN13(m.CardBarcode),
		},
	})
}

// Member's points ledger, newest first.
func GetLoyaltyMemberTransactions(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid member id"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit < 1 || limit > 500 {
		limit = 50
	}

	entries, err := loadLedger(id, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"transactions": entries}})
}

func loadLedger(memberID uuid.UUID, limit int) ([]models.LoyaltyTransaction, error) {
	rows, err := DB.Query(`
		SELECT id, member_id, transaction_id, transaction_type, points, balance_after,
		       COALESCE(description, ''), COALESCE(reference_code, ''), adjusted_by, created_at
		FROM loyalty_transactions
		WHERE member_id = $1
		ORDER BY id DESC
		LIMIT $2`, memberID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []models.LoyaltyTransaction{}
	for rows.Next() {
		var e models.LoyaltyTransaction
		if err := rows.Scan(&e.ID, &e.MemberID, &e.TransactionID, &e.TransactionType, &e.Points,
			&e.BalanceAfter, &e.Description, &e.ReferenceCode, &e.AdjustedBy, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Staff-side reward redemption at the register.
func RedeemLoyaltyProduct(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid member id"})
		return
	}

	var req struct {
		ProductID string `json:"product_id" binding:"required"`
		Quantity  int64  `json:"quantity"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Product id is required"})
		return
	}
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid product id"})
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	actorID := currentUserID(c)
	result, err := services.RedeemProduct(DB, id, productID, req.Quantity, &actorID)
	if err != nil {
		status, msg := redemptionError(err)
		c.JSON(status, gin.H{"success": false, "message": msg})
		return
	}

	logActivity(&actorID, "loyalty.redeem_product", "loyalty_member", id.String(), map[string]interface{}{
		"product_id": productID.String(),
		"points":     result.PointsSpent,
		"reference":  result.ReferenceCode,
	})
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Reward redeemed", "data": result})
}

func redemptionError(err error) (int, string) {
	switch err {
	case services.ErrMemberNotFound:
		return http.StatusNotFound, "Member not found"
	case services.ErrProductNotFound:
		return http.StatusNotFound, "Product not found"
	case services.ErrNotRedeemable:
		return http.StatusBadRequest, "Product cannot be redeemed with points"
	case services.ErrInsufficientStock:
		return http.StatusConflict, "Not enough stock to redeem"
	case services.ErrInsufficientPoints:
		return http.StatusConflict, "Not enough points"
	case services.ErrRedemptionDisabled:
		return http.StatusForbidden, "Points redemption is disabled"
	case services.ErrInvalidQuantity:
		return http.StatusBadRequest, "Quantity must be at least 1"
	}
	return http.StatusInternalServerError, "Failed to redeem reward"
}

// Products redeemable with points and currently in stock.
func ListRedeemableProducts(c *gin.Context) {
	rows, err := DB.Query(`
		SELECT id, sku, name, description, selling_price, points_cost, stock_quantity, category
		FROM products
		WHERE is_active = TRUE AND points_cost > 0
		ORDER BY points_cost, name`)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}
	defer rows.Close()

	products := []gin.H{}
	for rows.Next() {
		var id uuid.UUID
		var sku, name string
		var description, category *string
		var sellingPrice float64
		var pointsCost, stock int64
		if err := rows.Scan(&id, &sku, &name, &description, &sellingPrice, &pointsCost, &stock, &category); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
			return
		}
		products = append(products, gin.H{
			"id":             id,
			"sku":            sku,
			"name":           name,
			"description":    description,
			"selling_price":  sellingPrice,
			"points_cost":    pointsCost,
			"stock_quantity": stock,
			"category":       category,
			"in_stock":       stock > 0,
		})
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"products": products}})
}
