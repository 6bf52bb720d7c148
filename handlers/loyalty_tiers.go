package handlers

import (
	"database/sql"
	"net/http"

	"vcspos-server/models"
	"vcspos-server/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func ListLoyaltyTiers(c *gin.Context) {
	rows, err := DB.Query(`
		SELECT id, name, min_points, max_points, discount_percent, points_multiplier,
		       color, icon, benefits, is_active, created_at, updated_at
		FROM loyalty_tiers
		ORDER BY min_points`)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}
	defer rows.Close()

	tiers := []models.LoyaltyTier{}
	for rows.Next() {
		var t models.LoyaltyTier
		if err := rows.Scan(&t.ID, &t.Name, &t.MinPoints, &t.MaxPoints, &t.DiscountPercent,
			&t.PointsMultiplier, &t.Color, &t.Icon, &t.Benefits, &t.IsActive,
			&t.CreatedAt, &t.UpdatedAt); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
			return
		}
		tiers = append(tiers, t)
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"tiers": tiers}})
}

// Update a tier's benefits. Discounts are capped by the
// max_discount_percent setting and multipliers are held to a sane
// range so a typo cannot give away 50x points.
func UpdateLoyaltyTier(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid tier id"})
		return
	}

	var req struct {
		Name             *string  `json:"name"`
		MinPoints        *int64   `json:"min_points"`
		MaxPoints        *int64   `json:"max_points"`
		DiscountPercent  *float64 `json:"discount_percent"`
		PointsMultiplier *float64 `json:"points_multiplier"`
		Color            *string  `json:"color"`
		Benefits         *string  `json:"benefits"`
		IsActive         *bool    `json:"is_active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request format"})
		return
	}

	if req.DiscountPercent != nil {
		maxDiscount := services.GetSettingNumber(DB, "max_discount_percent", 20)
		if *req.DiscountPercent < 0 || *req.DiscountPercent > maxDiscount {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"message": "Discount percent is out of range",
			})
			return
		}
	}
	if req.PointsMultiplier != nil && (*req.PointsMultiplier < 1 || *req.PointsMultiplier > 5) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Points multiplier must be between 1 and 5"})
		return
	}
	if req.MinPoints != nil && *req.MinPoints < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Minimum points cannot be negative"})
		return
	}

	res, err := DB.Exec(`
		UPDATE loyalty_tiers SET
			name = COALESCE($1, name),
			min_points = COALESCE($2, min_points),
			max_points = COALESCE($3, max_points),
			discount_percent = COALESCE($4, discount_percent),
			points_multiplier = COALESCE($5, points_multiplier),
			color = COALESCE($6, color),
			benefits = COALESCE($7, benefits),
			is_active = COALESCE($8, is_active),
			updated_at = now()
		WHERE id = $9`,
		req.Name, req.MinPoints, req.MaxPoints, req.DiscountPercent,
		req.PointsMultiplier, req.Color, req.Benefits, req.IsActive, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Tier not found"})
		return
	}

	actorID := currentUserID(c)
	logActivity(&actorID, "loyalty.tier_update", "loyalty_tier", id.String(), nil)

	var t models.LoyaltyTier
	err = DB.QueryRow(`
		SELECT id, name, min_points, max_points, discount_percent, points_multiplier,
		       color, icon, benefits, is_active, created_at, updated_at
		FROM loyalty_tiers WHERE id = $1`, id).
		Scan(&t.ID, &t.Name, &t.MinPoints, &t.MaxPoints, &t.DiscountPercent,
			&t.PointsMultiplier, &t.Color, &t.Icon, &t.Benefits, &t.IsActive,
			&t.CreatedAt, &t.UpdatedAt)
	if err != nil && err != sql.ErrNoRows {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Tier updated", "data": t})
}
