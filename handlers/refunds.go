package handlers

import (
	"database/sql"
	"net/http"
	"strings"
	"time"

	"vcspos-server/models"
	"vcspos-server/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Cashiers file a refund request for supervisor approval. Supervisors
// and up refund immediately; the request row is recorded pre-approved
// so the audit trail is uniform.
func CreateRefundRequest(c *gin.Context) {
	var req struct {
		TransactionID  string `json:"transaction_id" binding:"required"`
		Reason         string `json:"reason" binding:"required"`
		MemberCardHint string `json:"member_card_hint"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Transaction id and reason are required"})
		return
	}

	saleID, err := uuid.Parse(req.TransactionID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid transaction id"})
		return
	}

	// Fold the card hint into the stored reason so the approval step
	// can resolve the member even on unlinked sales.
	reason := strings.TrimSpace(req.Reason)
	if hint := strings.TrimSpace(req.MemberCardHint); hint != "" {
		reason = reason + "\nMember card: " + hint
	}

	userID := currentUserID(c)
	role := c.GetString("role")

	if role == "cashier" {
		var status string
		err := DB.QueryRow(`SELECT status FROM transactions WHERE id = $1`, saleID).Scan(&status)
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Transaction not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
			return
		}
		if status != "completed" {
			c.JSON(http.StatusConflict, gin.H{"success": false, "message": "Only completed sales can be refunded"})
			return
		}

		var pending bool
		err = DB.QueryRow(`
			SELECT EXISTS (
				SELECT 1 FROM refund_requests WHERE transaction_id = $1 AND status = 'pending'
			)`, saleID).Scan(&pending)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
			return
		}
		if pending {
			c.JSON(http.StatusConflict, gin.H{"success": false, "message": "A refund request for this sale is already pending"})
			return
		}

		var requestID uuid.UUID
		err = DB.QueryRow(`
			INSERT INTO refund_requests (transaction_id, requested_by, reason)
			VALUES ($1, $2, $3) RETURNING id`,
			saleID, userID, reason).Scan(&requestID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to create refund request"})
			return
		}

		logActivity(&userID, "refund.request", "refund_request", requestID.String(), map[string]interface{}{
			"transaction_id": saleID.String(),
		})
		c.JSON(http.StatusCreated, gin.H{
			"success": true,
			"message": "Refund request submitted for approval",
			"data":    gin.H{"id": requestID, "status": "pending"},
		})
		return
	}

	// Supervisor and up: process immediately.
	outcome, requestID, err := executeRefund(saleID, userID, userID, reason)
	if err != nil {
		status, msg := refundError(err)
		c.JSON(status, gin.H{"success": false, "message": msg})
		return
	}

	logActivity(&userID, "refund.instant", "refund_request", requestID.String(), map[string]interface{}{
		"transaction_id": saleID.String(),
	})
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Refund processed", "data": outcome})
}

// executeRefund runs the full refund in one transaction: the request
// row, the status flip, the stock restore, and both points reversals
// commit or roll back together.
func executeRefund(saleID, requestedBy, approvedBy uuid.UUID, reason string) (*services.RefundOutcome, uuid.UUID, error) {
	tx, err := DB.Begin()
	if err != nil {
		return nil, uuid.Nil, err
	}
	defer tx.Rollback()

	outcome, err := services.ProcessRefund(tx, saleID, approvedBy, reason)
	if err != nil {
		return nil, uuid.Nil, err
	}

	var requestID uuid.UUID
	now := time.Now()
	err = tx.QueryRow(`
		INSERT INTO refund_requests (transaction_id, requested_by, status, reason, approved_by, approved_at)
		VALUES ($1, $2, 'approved', $3, $4, $5) RETURNING id`,
		saleID, requestedBy, reason, approvedBy, now).Scan(&requestID)
	if err != nil {
		return nil, uuid.Nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, uuid.Nil, err
	}
	return outcome, requestID, nil
}

func refundError(err error) (int, string) {
	switch err {
	case services.ErrSaleNotFound:
		return http.StatusNotFound, "Transaction not found"
	case services.ErrSaleAlreadyRefunded:
		return http.StatusConflict, "Sale has already been refunded"
	case services.ErrSaleVoided:
		return http.StatusConflict, "Voided sales cannot be refunded"
	case services.ErrSaleNotCompleted:
		return http.StatusConflict, "Only completed sales can be refunded"
	}
	return http.StatusInternalServerError, "Failed to process refund"
}

// Pending refund requests for the approval queue.
func ListPendingRefundRequests(c *gin.Context) {
	rows, err := DB.Query(`
		SELECT r.id, r.transaction_id, r.requested_by, r.status, r.reason, r.created_at,
		       t.transaction_code, t.total_amount, u.username
		FROM refund_requests r
		JOIN transactions t ON t.id = r.transaction_id
		JOIN users u ON u.id = r.requested_by
		WHERE r.status = 'pending'
		ORDER BY r.created_at`)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}
	defer rows.Close()

	requests := []gin.H{}
	for rows.Next() {
		var r models.RefundRequest
		var code, username string
		var total float64
		if err := rows.Scan(&r.ID, &r.TransactionID, &r.RequestedBy, &r.Status, &r.Reason,
			&r.CreatedAt, &code, &total, &username); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
			return
		}
		requests = append(requests, gin.H{
			"id":               r.ID,
			"transaction_id":   r.TransactionID,
			"transaction_code": code,
			"total_amount":     total,
			"requested_by":     username,
			"reason":           r.Reason,
			"created_at":       r.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"requests": requests}})
}

// A cashier's own refund requests, any status.
func ListMyRefundRequests(c *gin.Context) {
	userID := currentUserID(c)
	rows, err := DB.Query(`
		SELECT r.id, r.transaction_id, r.status, r.reason, r.created_at, r.approved_at, r.rejected_at,
		       t.transaction_code, t.total_amount
		FROM refund_requests r
		JOIN transactions t ON t.id = r.transaction_id
		WHERE r.requested_by = $1
		ORDER BY r.created_at DESC
		LIMIT 100`, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}
	defer rows.Close()

	requests := []gin.H{}
	for rows.Next() {
		var r models.RefundRequest
		var code string
		var total float64
		if err := rows.Scan(&r.ID, &r.TransactionID, &r.Status, &r.Reason, &r.CreatedAt,
			&r.ApprovedAt, &r.RejectedAt, &code, &total); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
			return
		}
		requests = append(requests, gin.H{
			"id":               r.ID,
			"transaction_code": code,
			"total_amount":     total,
			"status":           r.Status,
			"reason":           r.Reason,
			"created_at":       r.CreatedAt,
			"approved_at":      r.ApprovedAt,
			"rejected_at":      r.RejectedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"requests": requests}})
}

// Approve a pending request and process the refund atomically.
func ApproveRefundRequest(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request id"})
		return
	}

	tx, err := DB.Begin()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}
	defer tx.Rollback()

	var saleID uuid.UUID
	var status string
	var reason *string
	err = tx.QueryRow(`
		SELECT transaction_id, status, reason FROM refund_requests WHERE id = $1 FOR UPDATE`, id).
		Scan(&saleID, &status, &reason)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Refund request not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}
	if status != "pending" {
		c.JSON(http.StatusConflict, gin.H{"success": false, "message": "Refund request is not pending"})
		return
	}

	reasonText := ""
	if reason != nil {
		reasonText = *reason
	}
	approverID := currentUserID(c)
	outcome, err := services.ProcessRefund(tx, saleID, approverID, reasonText)
	if err != nil {
		httpStatus, msg := refundError(err)
		c.JSON(httpStatus, gin.H{"success": false, "message": msg})
		return
	}

	_, err = tx.Exec(`
		UPDATE refund_requests SET status = 'approved', approved_by = $1, approved_at = now()
		WHERE id = $2`, approverID, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}

	if err := tx.Commit(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}

	logActivity(&approverID, "refund.approve", "refund_request", id.String(), map[string]interface{}{
		"transaction_id": saleID.String(),
	})
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Refund approved and processed", "data": outcome})
}

func RejectRefundRequest(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request id"})
		return
	}

	rejecterID := currentUserID(c)
	res, err := DB.Exec(`
		UPDATE refund_requests SET status = 'rejected', rejected_by = $1, rejected_at = now()
		WHERE id = $2 AND status = 'pending'`, rejecterID, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		c.JSON(http.StatusConflict, gin.H{"success": false, "message": "Refund request not found or not pending"})
		return
	}

	logActivity(&rejecterID, "refund.reject", "refund_request", id.String(), nil)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Refund request rejected"})
}
