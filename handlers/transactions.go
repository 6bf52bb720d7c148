package handlers

import (
	"database/sql"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"vcspos-server/models"
	"vcspos-server/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Checkout. Lines flagged skip_stock are redeemed rewards whose stock
// was already consumed at redemption time; they enter at zero price so
// the refund path can recognize them.
func CreateTransaction(c *gin.Context) {
	var req struct {
		CustomerID     string  `json:"customer_id"`
		MemberBarcode  string  `json:"member_barcode"`
		PaymentMethod  string  `json:"payment_method" binding:"required,oneof=cash card gcash maya"`
		AmountReceived float64 `json:"amount_received"`
		DiscountAmount float64 `json:"discount_amount"`
		TaxAmount      float64 `json:"tax_amount"`
		Notes          string  `json:"notes"`
		Items          []struct {
			ProductID       string  `json:"product_id" binding:"required"`
			Quantity        int64   `json:"quantity" binding:"required,min=1"`
			DiscountPercent float64 `json:"discount_percent"`
			SkipStock       bool    `json:"skip_stock"`
			ZeroPrice       bool    `json:"zero_price"`
		} `json:"items" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid transaction data"})
		return
	}

	// Resolve the customer: explicit id, or a scanned loyalty card.
	var customerID *uuid.UUID
	if req.CustomerID != "" {
		id, err := uuid.Parse(req.CustomerID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid customer id"})
			return
		}
		customerID = &id
	} else if req.MemberBarcode != "" {
		var id uuid.UUID
		err := DB.QueryRow(`
			SELECT customer_id FROM loyalty_members
			WHERE card_barcode = $1 AND is_active AND NOT is_archived`,
			req.MemberBarcode).Scan(&id)
		if err == sql.ErrNoRows {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "No active member for this card"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
			return
		}
		customerID = &id
	}

	tx, err := DB.Begin()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}
	defer tx.Rollback()

	var subtotal float64
	type line struct {
		item models.TransactionItem
	}
	lines := make([]line, 0, len(req.Items))

	for _, it := range req.Items {
		productID, err := uuid.Parse(it.ProductID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid product id"})
			return
		}

		var name, sku string
		var price float64
		var active bool
		err = tx.QueryRow(`
			SELECT name, sku, selling_price, is_active
			FROM products WHERE id = $1 FOR UPDATE`, productID).
			Scan(&name, &sku, &price, &active)
		if err == sql.ErrNoRows {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": fmt.Sprintf("Product %s not found", it.ProductID)})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
			return
		}
		if !active {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": fmt.Sprintf("Product %s is not for sale", name)})
			return
		}

		if !it.SkipStock {
			res, err := tx.Exec(`
				UPDATE products SET stock_quantity = stock_quantity - $1, updated_at = now()
				WHERE id = $2 AND stock_quantity >= $1`, it.Quantity, productID)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
				return
			}
			if n, _ := res.RowsAffected(); n == 0 {
				c.JSON(http.StatusConflict, gin.H{"success": false, "message": fmt.Sprintf("Not enough stock for %s", name)})
				return
			}
		}

		unitPrice := price
		if it.ZeroPrice {
			unitPrice = 0
		}
		lineSubtotal := unitPrice * float64(it.Quantity) * (1 - it.DiscountPercent/100)
		subtotal += lineSubtotal

		lines = append(lines, line{item: models.TransactionItem{
			ProductID:       productID,
			ProductName:     name,
			ProductSKU:      sku,
			UnitPrice:       unitPrice,
			Quantity:        it.Quantity,
			DiscountPercent: it.DiscountPercent,
			Subtotal:        lineSubtotal,
		}})
	}

	total := subtotal - req.DiscountAmount + req.TaxAmount
	if total < 0 {
		total = 0
	}
	change := req.AmountReceived - total
	if change < 0 && req.PaymentMethod == "cash" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Amount received is less than the total"})
		return
	}
	if change < 0 {
		change = 0
	}

	code := "TXN-" + time.Now().Format("20060102150405")
	userID := currentUserID(c)
	var notes *string
	if req.Notes != "" {
		notes = &req.Notes
	}

	var saleID uuid.UUID
	err = tx.QueryRow(`
		INSERT INTO transactions
			(transaction_code, customer_id, user_id, subtotal, discount_amount, tax_amount,
			 total_amount, payment_method, amount_received, change_amount, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		code, customerID, userID, subtotal, req.DiscountAmount, req.TaxAmount,
		total, req.PaymentMethod, req.AmountReceived, change, notes).Scan(&saleID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to record transaction"})
		return
	}

	for _, l := range lines {
		_, err := tx.Exec(`
			INSERT INTO transaction_items
				(transaction_id, product_id, product_name, product_sku, unit_price, quantity, discount_percent, subtotal)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			saleID, l.item.ProductID, l.item.ProductName, l.item.ProductSKU,
			l.item.UnitPrice, l.item.Quantity, l.item.DiscountPercent, l.item.Subtotal)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to record transaction items"})
			return
		}
	}

	if customerID != nil {
		_, err = tx.Exec(`
			UPDATE customers SET total_purchases = total_purchases + $1, updated_at = now()
			WHERE id = $2`, total, *customerID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
			return
		}
	}

	if err := tx.Commit(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}

	// Points accrual is best-effort after the commit: a failure here
	// never fails the sale the customer already paid for.
	var pointsEarned int64
	if customerID != nil {
		pointsEarned, err = services.AwardPointsForSale(DB, saleID)
		if err != nil {
			log.Error().Err(err).Str("sale", code).Msg("points accrual failed")
		}
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Transaction completed",
		"data": gin.H{
			"id":               saleID,
			"transaction_code": code,
			"subtotal":         subtotal,
			"total_amount":     total,
			"change_amount":    change,
			"points_earned":    pointsEarned,
		},
	})
}

// List sales. Cashiers see their own; supervisors and up see all.
func ListTransactions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit < 1 || limit > 500 {
		limit = 50
	}

	query := `
		SELECT t.id, t.transaction_code, t.customer_id, t.user_id, t.subtotal,
		       t.discount_amount, t.tax_amount, t.total_amount, t.payment_method,
		       t.amount_received, t.change_amount, t.status, t.notes, t.created_at, t.updated_at
		FROM transactions t`
	args := []interface{}{}

	if c.GetString("role") == "cashier" {
		args = append(args, currentUserID(c))
		query += fmt.Sprintf(" WHERE t.user_id = $%d", len(args))
	}
	if status := c.Query("status"); status != "" {
		conj := "WHERE"
		if len(args) > 0 {
			conj = "AND"
		}
		args = append(args, status)
		query += fmt.Sprintf(" %s t.status = $%d", conj, len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY t.created_at DESC LIMIT $%d", len(args))

	rows, err := DB.Query(query, args...)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}
	defer rows.Close()

	sales := []models.Transaction{}
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.TransactionCode, &t.CustomerID, &t.UserID, &t.Subtotal,
			&t.DiscountAmount, &t.TaxAmount, &t.TotalAmount, &t.PaymentMethod,
			&t.AmountReceived, &t.ChangeAmount, &t.Status, &t.Notes, &t.CreatedAt, &t.UpdatedAt); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
			return
		}
		sales = append(sales, t)
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"transactions": sales}})
}

func GetTransaction(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid transaction id"})
		return
	}

	var t models.Transaction
	err = DB.QueryRow(`
		SELECT id, transaction_code, customer_id, user_id, subtotal, discount_amount,
		       tax_amount, total_amount, payment_method, amount_received, change_amount,
		       status, notes, created_at, updated_at
		FROM transactions WHERE id = $1`, id).
		Scan(&t.ID, &t.TransactionCode, &t.CustomerID, &t.UserID, &t.Subtotal, &t.DiscountAmount,
			&t.TaxAmount, &t.TotalAmount, &t.PaymentMethod, &t.AmountReceived, &t.ChangeAmount,
			&t.Status, &t.Notes, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Transaction not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}

	if c.GetString("role") == "cashier" && t.UserID != currentUserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "Insufficient permissions"})
		return
	}

	itemRows, err := DB.Query(`
		SELECT id, transaction_id, product_id, product_name, product_sku,
		       unit_price, quantity, discount_percent, subtotal
		FROM transaction_items WHERE transaction_id = $1`, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var it models.TransactionItem
		if err := itemRows.Scan(&it.ID, &it.TransactionID, &it.ProductID, &it.ProductName,
			&it.ProductSKU, &it.UnitPrice, &it.Quantity, &it.DiscountPercent, &it.Subtotal); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
			return
		}
		t.Items = append(t.Items, it)
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": t})
}

// Void a completed sale: stock comes back, status flips, and any
// points earned are reversed the same way a refund reverses them.
func VoidTransaction(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid transaction id"})
		return
	}

	var req struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "A reason is required to void a sale"})
		return
	}

	tx, err := DB.Begin()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}
	defer tx.Rollback()

	var status, code string
	err = tx.QueryRow(`SELECT status, transaction_code FROM transactions WHERE id = $1 FOR UPDATE`, id).
		Scan(&status, &code)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Transaction not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}
	if status != "completed" {
		c.JSON(http.StatusConflict, gin.H{"success": false, "message": "Only completed sales can be voided"})
		return
	}

	_, err = tx.Exec(`
		UPDATE products p SET stock_quantity = p.stock_quantity + ti.quantity, updated_at = now()
		FROM transaction_items ti
		WHERE ti.transaction_id = $1 AND ti.product_id = p.id`, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}

	_, err = tx.Exec(`
		UPDATE transactions
		SET status = 'voided', notes = COALESCE(notes || E'\n', '') || $1, updated_at = now()
		WHERE id = $2`, "Voided: "+req.Reason, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}

	if _, err := services.ReverseSalePoints(tx, id, currentUserID(c)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to reverse loyalty points"})
		return
	}

	if err := tx.Commit(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}

	actorID := currentUserID(c)
	logActivity(&actorID, "transaction.void", "transaction", id.String(), map[string]interface{}{
		"transaction_code": code,
		"reason":           req.Reason,
	})
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Transaction voided"})
}
